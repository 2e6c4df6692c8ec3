package tree

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"treeline/arbor/internal/db"
)

func newTestDB(t *testing.T, schema db.Schema) *db.DB {
	t.Helper()
	d, err := db.OpenDB(filepath.Join(t.TempDir(), "tree.db"), schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.EnsureSchema(context.Background()))
	return d
}

func newTestEngine(t *testing.T, config *Config) (*Engine, *db.DB) {
	t.Helper()
	d := newTestDB(t, db.DefaultSchema())
	e, err := New(d, config)
	require.NoError(t, err)
	return e, d
}

func idPtr(v int64) *int64 { return &v }

func mustCreate(t *testing.T, e *Engine, parentID *int64) *db.Node {
	t.Helper()
	n, err := e.Create(context.Background(), parentID)
	require.NoError(t, err)
	return n
}

func mustGet(t *testing.T, e *Engine, id int64) *db.Node {
	t.Helper()
	n, err := e.Get(context.Background(), id)
	require.NoError(t, err)
	return n
}

func ids(nodes []db.Node) []int64 {
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

// countingBackend counts Update calls made through transactions.
type countingBackend struct {
	*db.DB
	updates int
}

func (c *countingBackend) Atomic(ctx context.Context, fn func(db.Store) error) error {
	return c.DB.Atomic(ctx, func(s db.Store) error {
		return fn(&countingStore{Store: s, updates: &c.updates})
	})
}

type countingStore struct {
	db.Store
	updates *int
}

func (c *countingStore) Update(ctx context.Context, n *db.Node) error {
	*c.updates++
	return c.Store.Update(ctx, n)
}

// failingBackend fails the Update of one node id inside transactions.
type failingBackend struct {
	*db.DB
	failID int64
	err    error
}

func (f *failingBackend) Atomic(ctx context.Context, fn func(db.Store) error) error {
	return f.DB.Atomic(ctx, func(s db.Store) error {
		return fn(&failingStore{Store: s, failID: f.failID, err: f.err})
	})
}

type failingStore struct {
	db.Store
	failID int64
	err    error
}

func (f *failingStore) Update(ctx context.Context, n *db.Node) error {
	if n.ID == f.failID {
		return f.err
	}
	return f.Store.Update(ctx, n)
}
