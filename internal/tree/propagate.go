package tree

import (
	"context"
	"errors"
	"fmt"

	"treeline/arbor/internal/db"
)

// Create inserts a node under parentID (nil for a root) and persists its
// derived fields in the same transaction. The parent's children count is
// recomputed.
func (e *Engine) Create(ctx context.Context, parentID *int64) (*db.Node, error) {
	var created *db.Node
	err := e.mutate(ctx, "create", func(s db.Store) (int, error) {
		var parent *db.Node
		if parentID != nil {
			p, err := lookupParent(ctx, s, *parentID)
			if err != nil {
				return 0, err
			}
			parent = p
		}

		// The id is part of the path, so the row has to exist first.
		id, err := s.Insert(ctx, parentID)
		if err != nil {
			return 0, err
		}
		n := &db.Node{ID: id, ParentID: copyID(parentID)}
		e.derive(n, parent)
		if err := s.Update(ctx, n); err != nil {
			return 0, err
		}
		rewritten := 1

		if parent != nil {
			w := e.newWalk(s, false)
			if err := w.recalc(ctx, parent); err != nil {
				return 0, err
			}
			rewritten += w.written
		}

		created = n
		e.log.Debug().Int64("id", n.ID).Str("path", n.Path).Msg("node created")
		return rewritten, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Move gives node id a new parent (nil makes it a root). The node, its
// previous and new parents and every descendant are brought up to date in
// one transaction. Moving a node under itself or one of its descendants
// fails with ErrCycle; moving it under a missing node fails with
// ErrDanglingReference. In both cases nothing is written.
//
// When the parent does not actually change this is the same as Recalc.
func (e *Engine) Move(ctx context.Context, id int64, newParentID *int64) (*db.Node, error) {
	var moved *db.Node
	err := e.mutate(ctx, "move", func(s db.Store) (int, error) {
		n, err := s.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		w := e.newWalk(s, false)
		if db.SameParent(n.ParentID, newParentID) {
			err = w.recalc(ctx, n)
		} else {
			err = w.move(ctx, n, newParentID)
		}
		if err != nil {
			return 0, err
		}
		moved = n
		return w.written, nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// Recalc re-derives the children count, path, level and family of node id
// and persists whatever changed. When the path changed the children are
// recalculated in turn. It never touches the parent, and a second call with
// no mutation in between writes nothing.
func (e *Engine) Recalc(ctx context.Context, id int64) (*db.Node, error) {
	var n *db.Node
	err := e.mutate(ctx, "recalc", func(s db.Store) (int, error) {
		var err error
		if n, err = s.Get(ctx, id); err != nil {
			return 0, err
		}
		w := e.newWalk(s, false)
		if err := w.recalc(ctx, n); err != nil {
			return 0, err
		}
		return w.written, nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Repair recomputes node id and its whole subtree top-down, following
// parent links rather than the stored paths. It is the recovery for a
// cascade that was interrupted and is safe to run any number of times.
// It returns the number of rows it had to rewrite.
func (e *Engine) Repair(ctx context.Context, id int64) (int, error) {
	var written int
	err := e.mutate(ctx, "repair", func(s db.Store) (int, error) {
		n, err := s.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		w := e.newWalk(s, true)
		if err := w.recalc(ctx, n); err != nil {
			return 0, err
		}
		written = w.written
		return written, nil
	})
	return written, err
}

// RepairAll runs Repair from every root in one transaction.
func (e *Engine) RepairAll(ctx context.Context) (int, error) {
	var written int
	err := e.mutate(ctx, "repair", func(s db.Store) (int, error) {
		roots, err := s.Scan(ctx, db.Filter{RootsOnly: true}, db.OrderID)
		if err != nil {
			return 0, err
		}
		w := e.newWalk(s, true)
		for i := range roots {
			if err := w.recalc(ctx, &roots[i]); err != nil {
				return 0, err
			}
		}
		written = w.written
		return written, nil
	})
	return written, err
}

// Delete removes node id. What happens to its children depends on the
// configured DeleteBehavior. With the default DeleteNone the caller must
// make sure there are none, and the former parent is not recounted; every
// other behavior recounts it.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	return e.mutate(ctx, "delete", func(s db.Store) (int, error) {
		n, err := s.Get(ctx, id)
		if err != nil {
			return 0, err
		}

		w := e.newWalk(s, false)
		switch e.config.DeleteBehavior {
		case DeleteRestrict:
			count, err := s.Count(ctx, db.Filter{ParentID: &n.ID})
			if err != nil {
				return 0, err
			}
			if count > 0 {
				return 0, fmt.Errorf("%w: %d has %d", ErrHasChildren, n.ID, count)
			}
		case DeleteNullify:
			children, err := s.Scan(ctx, db.Filter{ParentID: &n.ID}, db.OrderChildren)
			if err != nil {
				return 0, err
			}
			for i := range children {
				if err := w.move(ctx, &children[i], nil); err != nil {
					return 0, err
				}
			}
		case DeleteDestroy:
			removed, err := w.deleteBranch(ctx, n)
			if err != nil {
				return 0, err
			}
			return w.written + removed, nil
		}

		if err := s.Delete(ctx, n.ID); err != nil {
			return 0, err
		}
		e.log.Debug().Int64("id", n.ID).Msg("node deleted")

		if e.config.DeleteBehavior != DeleteNone && n.ParentID != nil {
			if _, err := w.recalcIfExists(ctx, *n.ParentID); err != nil {
				return 0, err
			}
		}
		return w.written + 1, nil
	})
}

// DeleteBranch removes node id and every descendant, deepest first, so no
// row is deleted while it still has children. The former parent's children
// count is recomputed. It returns the number of nodes removed.
func (e *Engine) DeleteBranch(ctx context.Context, id int64) (int, error) {
	var removed int
	err := e.mutate(ctx, "delete_branch", func(s db.Store) (int, error) {
		n, err := s.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		w := e.newWalk(s, false)
		if removed, err = w.deleteBranch(ctx, n); err != nil {
			return 0, err
		}
		return removed + w.written, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// walk carries one cascade. descending holds the nodes whose children are
// being visited, so parent links that loop are caught instead of followed.
type walk struct {
	e          *Engine
	s          db.Store
	force      bool // descend into children even when a node did not change
	descending map[int64]struct{}
	written    int
}

func (e *Engine) newWalk(s db.Store, force bool) *walk {
	return &walk{e: e, s: s, force: force, descending: make(map[int64]struct{})}
}

// recalc re-derives n from its persisted parent, writes it if anything
// differs and then descends into the children when the path moved.
func (w *walk) recalc(ctx context.Context, n *db.Node) error {
	var parent *db.Node
	if n.ParentID != nil {
		p, err := lookupParent(ctx, w.s, *n.ParentID)
		if err != nil {
			return fmt.Errorf("recalculating %d: %w", n.ID, err)
		}
		parent = p
	}
	count, err := w.s.Count(ctx, db.Filter{ParentID: &n.ID})
	if err != nil {
		return err
	}

	next := *n
	w.e.derive(&next, parent)
	next.ChildrenCount = count

	pathChanged := next.Path != n.Path
	if !sameFields(n, &next) {
		if err := w.s.Update(ctx, &next); err != nil {
			return err
		}
		w.written++
	}
	*n = next

	if pathChanged || w.force {
		return w.children(ctx, n)
	}
	return nil
}

// move reparents n and runs the full cascade: n itself, the new parent,
// the old parent, then the subtree top-down.
func (w *walk) move(ctx context.Context, n *db.Node, newParentID *int64) error {
	var parent *db.Node
	if newParentID != nil {
		p, err := lookupParent(ctx, w.s, *newParentID)
		if err != nil {
			return err
		}
		if p.ID == n.ID || HasAncestor(p.Path, n.ID) {
			return fmt.Errorf("%w: %d under %d", ErrCycle, n.ID, p.ID)
		}
		parent = p
	}

	oldParentID := n.ParentID
	count, err := w.s.Count(ctx, db.Filter{ParentID: &n.ID})
	if err != nil {
		return err
	}
	n.ParentID = copyID(newParentID)
	w.e.derive(n, parent)
	n.ChildrenCount = count
	if err := w.s.Update(ctx, n); err != nil {
		return err
	}
	w.written++
	w.e.log.Debug().Int64("id", n.ID).Str("path", n.Path).Msg("node moved")

	if parent != nil {
		if err := w.recalc(ctx, parent); err != nil {
			return err
		}
	}
	if oldParentID != nil {
		found, err := w.recalcIfExists(ctx, *oldParentID)
		if err != nil {
			return err
		}
		if !found {
			w.e.metrics.SkippedParent()
			w.e.log.Debug().Int64("id", *oldParentID).Msg("previous parent gone, not recounted")
		}
	}

	return w.children(ctx, n)
}

// children recalculates every direct child of n. n's new path is already
// persisted, so each child derives from it.
func (w *walk) children(ctx context.Context, n *db.Node) error {
	if n.ChildrenCount == 0 && !w.force {
		return nil
	}
	if _, ok := w.descending[n.ID]; ok {
		return fmt.Errorf("%w: node %d is its own ancestor", ErrCycle, n.ID)
	}
	w.descending[n.ID] = struct{}{}
	defer delete(w.descending, n.ID)

	kids, err := w.s.Scan(ctx, db.Filter{ParentID: &n.ID}, db.OrderChildren)
	if err != nil {
		return err
	}
	for i := range kids {
		if err := w.recalc(ctx, &kids[i]); err != nil {
			return err
		}
	}
	return nil
}

// deleteBranch removes n's descendants deepest first, then n, then
// recounts n's parent if it still exists.
func (w *walk) deleteBranch(ctx context.Context, n *db.Node) (int, error) {
	desc, err := w.s.Scan(ctx, db.Filter{PathPrefix: descendantPrefix(n.Path)}, db.OrderLevelDesc)
	if err != nil {
		return 0, err
	}
	for _, d := range desc {
		if err := w.s.Delete(ctx, d.ID); err != nil {
			return 0, err
		}
	}
	if err := w.s.Delete(ctx, n.ID); err != nil {
		return 0, err
	}
	w.e.log.Debug().Int64("id", n.ID).Int("descendants", len(desc)).Msg("branch deleted")

	if n.ParentID != nil {
		if _, err := w.recalcIfExists(ctx, *n.ParentID); err != nil {
			return 0, err
		}
	}
	return len(desc) + 1, nil
}

// recalcIfExists recalculates node id unless it is gone, and reports
// whether it was found.
func (w *walk) recalcIfExists(ctx context.Context, id int64) (bool, error) {
	n, err := w.s.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, w.recalc(ctx, n)
}

func lookupParent(ctx context.Context, s db.Store, id int64) (*db.Node, error) {
	p, err := s.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: parent %d does not exist", ErrDanglingReference, id)
	}
	return p, err
}

func sameFields(a, b *db.Node) bool {
	return a.Path == b.Path &&
		a.Level == b.Level &&
		a.ChildrenCount == b.ChildrenCount &&
		db.SameParent(a.FamilyID, b.FamilyID)
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
