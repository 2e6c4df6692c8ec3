package tree

import (
	"context"

	"treeline/arbor/internal/db"
)

// View is one node plus memoized query results. Results are fetched on
// first use and kept until Reload or Invalidate; mutations made elsewhere
// are not noticed. A View belongs to its caller and is not safe for
// concurrent use.
type View struct {
	Node db.Node

	engine      *Engine
	ancestors   []db.Node
	hasAnc      bool
	descendants map[Order][]db.Node
	leafs       map[Order][]db.Node
}

// View loads node id into a fresh View.
func (e *Engine) View(ctx context.Context, id int64) (*View, error) {
	n, err := e.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{Node: *n, engine: e}, nil
}

// Invalidate drops every memoized result. The node itself is kept.
func (v *View) Invalidate() {
	v.ancestors, v.hasAnc = nil, false
	v.descendants = nil
	v.leafs = nil
}

// Reload re-reads the node and drops every memoized result.
func (v *View) Reload(ctx context.Context) error {
	n, err := v.engine.backend.Get(ctx, v.Node.ID)
	if err != nil {
		return err
	}
	v.Node = *n
	v.Invalidate()
	return nil
}

// Ancestors is Engine.Ancestors without the node itself, memoized.
func (v *View) Ancestors(ctx context.Context, reload bool) ([]db.Node, error) {
	if v.hasAnc && !reload {
		return v.ancestors, nil
	}
	a, err := v.engine.Ancestors(ctx, &v.Node, false)
	if err != nil {
		return nil, err
	}
	v.ancestors, v.hasAnc = a, true
	return a, nil
}

// Root is the first memoized ancestor, or nil for a root.
func (v *View) Root(ctx context.Context, reload bool) (*db.Node, error) {
	a, err := v.Ancestors(ctx, reload)
	if err != nil || len(a) == 0 {
		return nil, err
	}
	return &a[0], nil
}

// Descendants is Engine.Descendants, memoized per order. reload refreshes
// the result but not v.Node: a node loaded as a leaf keeps returning nil
// until Reload picks up its new children_count.
func (v *View) Descendants(ctx context.Context, order Order, reload bool) ([]db.Node, error) {
	if d, ok := v.descendants[order]; ok && !reload {
		return d, nil
	}
	d, err := v.engine.Descendants(ctx, &v.Node, order)
	if err != nil {
		return nil, err
	}
	if v.descendants == nil {
		v.descendants = make(map[Order][]db.Node)
	}
	v.descendants[order] = d
	return d, nil
}

// Leafs is Engine.Leafs, memoized per order. Like Descendants, leafness is
// judged from the loaded v.Node even when reload is set.
func (v *View) Leafs(ctx context.Context, order Order, reload bool) ([]db.Node, error) {
	if l, ok := v.leafs[order]; ok && !reload {
		return l, nil
	}
	l, err := v.engine.Leafs(ctx, &v.Node, order)
	if err != nil {
		return nil, err
	}
	if v.leafs == nil {
		v.leafs = make(map[Order][]db.Node)
	}
	v.leafs[order] = l
	return l, nil
}
