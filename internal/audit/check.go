package audit

import (
	"strconv"

	"treeline/arbor/internal/db"
	"treeline/arbor/internal/tree"
)

// ViolationKind names the invariant a node breaks.
type ViolationKind string

const (
	KindPath          ViolationKind = "path"
	KindLevel         ViolationKind = "level"
	KindChildrenCount ViolationKind = "children_count"
	KindFamily        ViolationKind = "family_id"
	KindDangling      ViolationKind = "dangling_parent"
	KindCycle         ViolationKind = "cycle"
)

// Violation is one derived field that disagrees with the parent links.
type Violation struct {
	NodeID int64         `json:"node_id"`
	Kind   ViolationKind `json:"kind"`
	Want   string        `json:"want,omitempty"`
	Got    string        `json:"got,omitempty"`
}

// Report is the result of checking a whole table.
type Report struct {
	TotalNodes    int         `json:"total_nodes"`
	AffectedNodes int         `json:"affected_nodes"`
	Score         float64     `json:"score"` // share of nodes without violations
	Violations    []Violation `json:"violations"`
}

// Consistent reports whether no violation was found.
func (r *Report) Consistent() bool {
	return len(r.Violations) == 0
}

// CheckConfig holds the parameters the derived fields were computed with.
type CheckConfig struct {
	FamilyLevel int
	Family      bool // the table stores family_id
}

// Check recomputes every derived field from the parent links alone and
// reports each stored value that differs. Nodes whose parent chain loops
// or ends at a missing row are reported as such and not checked further.
func Check(snap *Snapshot, config CheckConfig) *Report {
	c := &checker{
		snap:   snap,
		config: config,
		forest: forestOf(snap),
		paths:  make(map[int64]string, len(snap.Nodes)),
	}

	report := &Report{TotalNodes: len(snap.Nodes)}
	affected := make(map[int64]bool)
	add := func(v Violation) {
		report.Violations = append(report.Violations, v)
		affected[v.NodeID] = true
	}

	for _, id := range snap.NodeIDs() {
		n := snap.Nodes[id]

		if got := len(snap.Children[id]); got != n.ChildrenCount {
			add(Violation{NodeID: id, Kind: KindChildrenCount,
				Want: strconv.Itoa(got), Got: strconv.Itoa(n.ChildrenCount)})
		}

		if c.forest.hasLoop(id) {
			add(Violation{NodeID: id, Kind: KindCycle})
			continue
		}
		if n.ParentID != nil {
			if _, ok := snap.Nodes[*n.ParentID]; !ok {
				add(Violation{NodeID: id, Kind: KindDangling, Want: "existing node",
					Got: strconv.FormatInt(*n.ParentID, 10)})
				continue
			}
		}

		want, ok := c.expectedPath(id)
		if !ok {
			// An ancestor is dangling; that ancestor carries the violation.
			continue
		}
		if want != n.Path {
			add(Violation{NodeID: id, Kind: KindPath, Want: want, Got: n.Path})
		}
		segs, _ := tree.SplitPath(want)
		if wantLevel := len(segs) - 1; wantLevel != n.Level {
			add(Violation{NodeID: id, Kind: KindLevel,
				Want: strconv.Itoa(wantLevel), Got: strconv.Itoa(n.Level)})
		}
		if config.Family {
			var wantFamily *int64
			if n.ParentID != nil {
				wantFamily = tree.FamilyOf(want, id, config.FamilyLevel)
			}
			if !db.SameParent(wantFamily, n.FamilyID) {
				add(Violation{NodeID: id, Kind: KindFamily,
					Want: formatID(wantFamily), Got: formatID(n.FamilyID)})
			}
		}
	}

	report.AffectedNodes = len(affected)
	if report.TotalNodes > 0 {
		report.Score = clamp(1.0-float64(report.AffectedNodes)/float64(report.TotalNodes), 0, 1)
	} else {
		report.Score = 1
	}
	return report
}

type checker struct {
	snap   *Snapshot
	config CheckConfig
	forest *forest
	paths  map[int64]string // memoized expected paths, "" when unreachable
}

// expectedPath derives id's path from the parent links. Only called for
// nodes outside cyclic components.
func (c *checker) expectedPath(id int64) (string, bool) {
	if p, ok := c.paths[id]; ok {
		return p, p != ""
	}
	n := c.snap.Nodes[id]
	var path string
	if n.ParentID == nil {
		path, _ = tree.ComputePath(id, nil)
	} else if parent, ok := c.snap.Nodes[*n.ParentID]; ok {
		if pp, ok := c.expectedPath(parent.ID); ok {
			path = pp + tree.Delimiter + strconv.FormatInt(id, 10)
		}
	}
	c.paths[id] = path
	return path, path != ""
}

func formatID(id *int64) string {
	if id == nil {
		return "null"
	}
	return strconv.FormatInt(*id, 10)
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
