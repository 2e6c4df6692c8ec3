package audit

import (
	"context"
	"sort"

	"treeline/arbor/internal/db"
)

// Snapshot is an in-memory copy of the node table with the parent links
// inverted into child lists.
type Snapshot struct {
	Nodes    map[int64]*db.Node
	Children map[int64][]int64 // parent id -> child ids, ascending
}

// NewSnapshot builds a Snapshot from raw rows.
func NewSnapshot(nodes []db.Node) *Snapshot {
	nodeMap := make(map[int64]*db.Node, len(nodes))
	children := make(map[int64][]int64)
	for i := range nodes {
		n := &nodes[i]
		nodeMap[n.ID] = n
	}
	for _, id := range sortedIDs(nodeMap) {
		n := nodeMap[id]
		if n.ParentID != nil {
			children[*n.ParentID] = append(children[*n.ParentID], id)
		}
	}
	return &Snapshot{Nodes: nodeMap, Children: children}
}

// SnapshotFromDB loads every row of the store.
func SnapshotFromDB(ctx context.Context, s db.Store) (*Snapshot, error) {
	nodes, err := s.Scan(ctx, db.Filter{}, db.OrderID)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(nodes), nil
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output)
func (s *Snapshot) NodeIDs() []int64 {
	return sortedIDs(s.Nodes)
}

func sortedIDs(nodes map[int64]*db.Node) []int64 {
	ids := make([]int64, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
