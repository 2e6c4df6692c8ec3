package tree

import (
	"context"
	"sort"

	"treeline/arbor/internal/db"
)

// Order selects how descendant lists are sorted.
type Order int

const (
	// OrderLevel is breadth first: level ascending, then id.
	OrderLevel Order = iota
	// OrderTree is the order of a depth-first walk: every node is followed
	// by its whole subtree, siblings by id.
	OrderTree
)

// Get returns node id as currently stored.
func (e *Engine) Get(ctx context.Context, id int64) (*db.Node, error) {
	return e.backend.Get(ctx, id)
}

// Roots returns every node without a parent, by id.
func (e *Engine) Roots(ctx context.Context) ([]db.Node, error) {
	return e.backend.Scan(ctx, db.Filter{RootsOnly: true}, db.OrderID)
}

// Parent returns n's parent, or nil for a root.
func (e *Engine) Parent(ctx context.Context, n *db.Node) (*db.Node, error) {
	if n.IsRoot() {
		return nil, nil
	}
	return e.backend.Get(ctx, *n.ParentID)
}

// Children returns n's direct children in the configured child order.
func (e *Engine) Children(ctx context.Context, n *db.Node) ([]db.Node, error) {
	return e.backend.Scan(ctx, db.Filter{ParentID: &n.ID}, db.OrderChildren)
}

// Family returns the node n's family_id points at, or nil when it has none.
func (e *Engine) Family(ctx context.Context, n *db.Node) (*db.Node, error) {
	if n.FamilyID == nil {
		return nil, nil
	}
	return e.backend.Get(ctx, *n.FamilyID)
}

// Ancestors returns the nodes on n's path, root first. n itself is only
// included when includeSelf is set; for a root without it the result is nil.
func (e *Engine) Ancestors(ctx context.Context, n *db.Node, includeSelf bool) ([]db.Node, error) {
	if n.IsRoot() && !includeSelf {
		return nil, nil
	}
	ids, err := SplitPath(n.Path)
	if err != nil {
		return nil, err
	}
	if !includeSelf {
		ids = ids[:len(ids)-1]
	}
	return e.backend.Scan(ctx, db.Filter{IDs: ids}, db.OrderLevel)
}

// Root returns the first ancestor of n. A root has no root of its own and
// gets nil; callers treat it as its own root.
func (e *Engine) Root(ctx context.Context, n *db.Node) (*db.Node, error) {
	ancestors, err := e.Ancestors(ctx, n, false)
	if err != nil || len(ancestors) == 0 {
		return nil, err
	}
	return &ancestors[0], nil
}

// Descendants returns every node below n, excluding n. Leaves have none
// and get nil.
func (e *Engine) Descendants(ctx context.Context, n *db.Node, order Order) ([]db.Node, error) {
	if n.IsLeaf() {
		return nil, nil
	}
	return e.below(ctx, n, false, order)
}

// Leafs returns the descendants of n that have no children.
func (e *Engine) Leafs(ctx context.Context, n *db.Node, order Order) ([]db.Node, error) {
	if n.IsLeaf() {
		return nil, nil
	}
	return e.below(ctx, n, true, order)
}

func (e *Engine) below(ctx context.Context, n *db.Node, leavesOnly bool, order Order) ([]db.Node, error) {
	f := db.Filter{PathPrefix: descendantPrefix(n.Path), LeavesOnly: leavesOnly}
	if order == OrderTree {
		nodes, err := e.backend.Scan(ctx, f, db.OrderPath)
		if err != nil {
			return nil, err
		}
		SortByPath(nodes)
		return nodes, nil
	}
	return e.backend.Scan(ctx, f, db.OrderLevel)
}

// MinimumCoveringSubtree returns the given nodes together with all of their
// ancestors, ordered by path: the smallest set of subtrees reaching from
// each node up to its root. Unknown ids are ignored.
func (e *Engine) MinimumCoveringSubtree(ctx context.Context, ids []int64) ([]db.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	nodes, err := e.backend.Scan(ctx, db.Filter{IDs: ids}, db.OrderNone)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var cover []int64
	for _, n := range nodes {
		segs, err := SplitPath(n.Path)
		if err != nil {
			return nil, err
		}
		for _, id := range segs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			cover = append(cover, id)
		}
	}
	if len(cover) == 0 {
		return nil, nil
	}

	result, err := e.backend.Scan(ctx, db.Filter{IDs: cover}, db.OrderNone)
	if err != nil {
		return nil, err
	}
	SortByPath(result)
	return result, nil
}

// SortByPath sorts nodes in depth-first tree order.
func SortByPath(nodes []db.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return ComparePaths(nodes[i].Path, nodes[j].Path) < 0
	})
}
