package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treeline/arbor/internal/db"
)

// buildSample creates
//
//	1
//	├── 2
//	│   ├── 4
//	│   └── 5
//	│       └── 6
//	└── 3
//	7
func buildSample(t *testing.T, e *Engine) {
	t.Helper()
	mustCreate(t, e, nil)
	mustCreate(t, e, idPtr(1))
	mustCreate(t, e, idPtr(1))
	mustCreate(t, e, idPtr(2))
	mustCreate(t, e, idPtr(2))
	mustCreate(t, e, idPtr(5))
	mustCreate(t, e, nil)
}

func TestAncestorsAndRoot(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)
	buildSample(t, e)

	n := mustGet(t, e, 6)
	anc, err := e.Ancestors(ctx, n, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5}, ids(anc))

	anc, err = e.Ancestors(ctx, n, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5, 6}, ids(anc))

	root, err := e.Root(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, int64(1), root.ID)

	top := mustGet(t, e, 1)
	anc, err = e.Ancestors(ctx, top, false)
	require.NoError(t, err)
	assert.Nil(t, anc)
	root, err = e.Root(ctx, top)
	require.NoError(t, err)
	assert.Nil(t, root)

	anc, err = e.Ancestors(ctx, top, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(anc))
}

func TestParentChildrenFamily(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)
	buildSample(t, e)

	n := mustGet(t, e, 5)
	parent, err := e.Parent(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, int64(2), parent.ID)

	fam, err := e.Family(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fam.ID)

	kids, err := e.Children(ctx, mustGet(t, e, 2))
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, ids(kids))

	top := mustGet(t, e, 7)
	parent, err = e.Parent(ctx, top)
	require.NoError(t, err)
	assert.Nil(t, parent)
	fam, err = e.Family(ctx, top)
	require.NoError(t, err)
	assert.Nil(t, fam)

	roots, err := e.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 7}, ids(roots))
}

func TestDescendantsAndLeafs(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)
	buildSample(t, e)
	top := mustGet(t, e, 1)

	desc, err := e.Descendants(ctx, top, OrderLevel)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4, 5, 6}, ids(desc))

	desc, err = e.Descendants(ctx, top, OrderTree)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 5, 6, 3}, ids(desc))

	leafs, err := e.Leafs(ctx, top, OrderTree)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 6, 3}, ids(leafs))

	leaf := mustGet(t, e, 4)
	desc, err = e.Descendants(ctx, leaf, OrderLevel)
	require.NoError(t, err)
	assert.Nil(t, desc)
	leafs, err = e.Leafs(ctx, leaf, OrderLevel)
	require.NoError(t, err)
	assert.Nil(t, leafs)
}

// Ids with more digits must not be taken for descendants of a shorter
// sibling whose path is a textual prefix of theirs.
func TestDescendantsDoNotLeakAcrossSiblings(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)
	root := mustCreate(t, e, nil)
	for i := 0; i < 11; i++ {
		mustCreate(t, e, &root.ID)
	}
	// ids 2..12; 12 is a child of 2 now
	_, err := e.Move(ctx, 12, idPtr(2))
	require.NoError(t, err)

	two := mustGet(t, e, 2)
	desc, err := e.Descendants(ctx, two, OrderLevel)
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, ids(desc))

	desc, err = e.Descendants(ctx, mustGet(t, e, root.ID), OrderTree)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 12, 3, 4, 5, 6, 7, 8, 9, 10, 11}, ids(desc))
}

func TestMinimumCoveringSubtree(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)
	buildSample(t, e)

	cover, err := e.MinimumCoveringSubtree(ctx, []int64{6, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5, 6, 3}, ids(cover))

	// Every member's parent is a member too.
	members := make(map[int64]bool)
	for _, n := range cover {
		members[n.ID] = true
	}
	for _, n := range cover {
		if n.ParentID != nil {
			assert.True(t, members[*n.ParentID], "parent of %d missing", n.ID)
		}
	}

	cover, err = e.MinimumCoveringSubtree(ctx, []int64{7, 99})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids(cover))

	cover, err = e.MinimumCoveringSubtree(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, cover)
}

func TestChildrenOrderBy(t *testing.T) {
	ctx := context.Background()
	schema := db.DefaultSchema()
	schema.OrderBy = "id DESC"
	d := newTestDB(t, schema)
	e, err := New(d, nil)
	require.NoError(t, err)
	buildSample(t, e)

	kids, err := e.Children(ctx, mustGet(t, e, 1))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, ids(kids))
}

func TestWithoutOptionalColumns(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t, db.Schema{Table: "categories", ForeignKey: "category_id"})
	e, err := New(d, nil)
	require.NoError(t, err)
	buildSample(t, e)

	n := mustGet(t, e, 6)
	assert.Equal(t, 3, n.Level)
	assert.Nil(t, n.FamilyID)

	desc, err := e.Descendants(ctx, mustGet(t, e, 1), OrderLevel)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4, 5, 6}, ids(desc))

	_, err = e.Move(ctx, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, mustGet(t, e, 6).Level)
}

func TestViewMemoizes(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)
	buildSample(t, e)

	v, err := e.View(ctx, 2)
	require.NoError(t, err)

	desc, err := v.Descendants(ctx, OrderLevel, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6}, ids(desc))
	anc, err := v.Ancestors(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(anc))

	_, err = e.Create(ctx, idPtr(4))
	require.NoError(t, err)

	// Stale until asked to reload.
	desc, err = v.Descendants(ctx, OrderLevel, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6}, ids(desc))

	desc, err = v.Descendants(ctx, OrderLevel, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6, 8}, ids(desc))

	leafs, err := v.Leafs(ctx, OrderTree, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 6}, ids(leafs))

	_, err = e.Move(ctx, 2, nil)
	require.NoError(t, err)
	root, err := v.Root(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), root.ID)

	require.NoError(t, v.Reload(ctx))
	assert.Equal(t, "2", v.Node.Path)
	root, err = v.Root(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, root)
}

func TestViewLeafNeedsReloadToSeeChildren(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil)
	buildSample(t, e)

	v, err := e.View(ctx, 6)
	require.NoError(t, err)
	require.True(t, v.Node.IsLeaf())

	child := mustCreate(t, e, idPtr(6))

	// reload re-runs the query but the loaded node still says leaf.
	desc, err := v.Descendants(ctx, OrderLevel, true)
	require.NoError(t, err)
	assert.Empty(t, desc)
	leafs, err := v.Leafs(ctx, OrderLevel, true)
	require.NoError(t, err)
	assert.Empty(t, leafs)

	require.NoError(t, v.Reload(ctx))
	desc, err = v.Descendants(ctx, OrderLevel, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{child.ID}, ids(desc))
	leafs, err = v.Leafs(ctx, OrderLevel, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{child.ID}, ids(leafs))
}
