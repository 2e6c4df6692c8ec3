package db

// Node represents a row in the node table
type Node struct {
	ID            int64  `json:"id"`
	ParentID      *int64 `json:"parent_id"`
	Path          string `json:"path"`  // comma-joined ancestor ids, self last
	Level         int    `json:"level"` // 0 for roots
	ChildrenCount int    `json:"children_count"`
	FamilyID      *int64 `json:"family_id"`
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.ChildrenCount == 0
}

// SameParent reports whether two parent references point at the same node.
func SameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
