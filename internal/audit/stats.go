package audit

import "sort"

// DepthBucket counts the nodes stored at one level.
type DepthBucket struct {
	Level int `json:"level"`
	Count int `json:"count"`
}

// FamilySize is one family and the number of nodes tagged with it.
type FamilySize struct {
	FamilyID int64 `json:"family_id"`
	Size     int   `json:"size"`
}

// TreeStats summarizes the shape of the stored forest.
type TreeStats struct {
	TotalNodes      int           `json:"total_nodes"`
	Roots           int           `json:"roots"`
	Leaves          int           `json:"leaves"`
	Trees           int           `json:"trees"`
	Loops           int           `json:"loops"` // trees whose parent links close a loop
	LargestTree     int           `json:"largest_tree"`
	LargestTreeRoot int64         `json:"largest_tree_root"`
	MaxDepth        int           `json:"max_depth"`
	AvgBranching    float64       `json:"avg_branching"`
	DepthHistogram  []DepthBucket `json:"depth_histogram"`
	Families        []FamilySize  `json:"families"`
}

// ComputeStats derives tree statistics from parent links and the stored
// level and family columns. At most topN families are listed, largest
// first; a negative topN lists them all.
func ComputeStats(snap *Snapshot, topN int) *TreeStats {
	stats := &TreeStats{TotalNodes: len(snap.Nodes)}
	if stats.TotalNodes == 0 {
		return stats
	}

	ids := snap.NodeIDs()
	f := forestOf(snap)
	depths := make(map[int]int)
	families := make(map[int64]int)
	internal, edges := 0, 0

	for _, id := range ids {
		n := snap.Nodes[id]
		if n.ParentID == nil {
			stats.Roots++
		}
		if kids := len(snap.Children[id]); kids == 0 {
			stats.Leaves++
		} else {
			internal++
			edges += kids
		}
		depths[n.Level]++
		if n.Level > stats.MaxDepth {
			stats.MaxDepth = n.Level
		}
		if n.FamilyID != nil {
			families[*n.FamilyID]++
		}
	}

	trees := f.trees()
	stats.Trees = len(trees)
	for _, members := range trees {
		if f.hasLoop(members[0]) {
			stats.Loops++
		}
		if len(members) <= stats.LargestTree {
			continue
		}
		stats.LargestTree = len(members)
		stats.LargestTreeRoot = members[0]
		for _, id := range members {
			if snap.Nodes[id].ParentID == nil {
				stats.LargestTreeRoot = id
				break
			}
		}
	}
	if internal > 0 {
		stats.AvgBranching = float64(edges) / float64(internal)
	}

	for level, count := range depths {
		stats.DepthHistogram = append(stats.DepthHistogram, DepthBucket{Level: level, Count: count})
	}
	sort.Slice(stats.DepthHistogram, func(i, j int) bool {
		return stats.DepthHistogram[i].Level < stats.DepthHistogram[j].Level
	})

	for id, size := range families {
		stats.Families = append(stats.Families, FamilySize{FamilyID: id, Size: size})
	}
	sort.Slice(stats.Families, func(i, j int) bool {
		if stats.Families[i].Size != stats.Families[j].Size {
			return stats.Families[i].Size > stats.Families[j].Size
		}
		return stats.Families[i].FamilyID < stats.Families[j].FamilyID
	})
	if topN >= 0 && len(stats.Families) > topN {
		stats.Families = stats.Families[:topN]
	}
	return stats
}
