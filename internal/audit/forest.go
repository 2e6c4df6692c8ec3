package audit

import "sort"

// forest groups nodes into the trees their parent links form. Components
// merge by size with path halving. Every node has at most one parent, so a
// link between two nodes that are already connected closes a loop; the
// component is marked and stays marked through later merges.
type forest struct {
	parent map[int64]int64
	size   map[int64]int
	loop   map[int64]bool // keyed by component root
}

func newForest(ids []int64) *forest {
	f := &forest{
		parent: make(map[int64]int64, len(ids)),
		size:   make(map[int64]int, len(ids)),
		loop:   make(map[int64]bool),
	}
	for _, id := range ids {
		f.parent[id] = id
		f.size[id] = 1
	}
	return f
}

// forestOf links every node of snap to its parent. Links to rows missing
// from the snapshot are skipped, so a dangling node roots its own tree.
func forestOf(snap *Snapshot) *forest {
	ids := snap.NodeIDs()
	f := newForest(ids)
	for _, id := range ids {
		n := snap.Nodes[id]
		if n.ParentID == nil {
			continue
		}
		if _, ok := snap.Nodes[*n.ParentID]; ok {
			f.link(id, *n.ParentID)
		}
	}
	return f
}

// root returns the representative of id's component.
func (f *forest) root(id int64) int64 {
	for {
		p, ok := f.parent[id]
		if !ok || p == id {
			return id
		}
		gp := f.parent[p]
		f.parent[id] = gp
		id = gp
	}
}

// link records that child hangs off parent and reports whether the link
// closed a loop.
func (f *forest) link(child, parent int64) bool {
	a, b := f.root(child), f.root(parent)
	if a == b {
		f.loop[a] = true
		return true
	}
	if f.size[a] < f.size[b] {
		a, b = b, a
	}
	f.parent[b] = a
	f.size[a] += f.size[b]
	if f.loop[b] {
		f.loop[a] = true
		delete(f.loop, b)
	}
	return false
}

// hasLoop reports whether id's component contains a parent loop.
func (f *forest) hasLoop(id int64) bool {
	return f.loop[f.root(id)]
}

// trees returns the members of every component, ascending, with the
// components ordered by their smallest id.
func (f *forest) trees() [][]int64 {
	ids := make([]int64, 0, len(f.parent))
	for id := range f.parent {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	index := make(map[int64]int)
	var out [][]int64
	for _, id := range ids {
		r := f.root(id)
		i, ok := index[r]
		if !ok {
			i = len(out)
			index[r] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], id)
	}
	return out
}
