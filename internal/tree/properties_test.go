package tree_test

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"treeline/arbor/internal/audit"
	"treeline/arbor/internal/db"
	"treeline/arbor/internal/tree"
)

// Applies a long random sequence of mutations and checks after each one
// that every stored field matches what the parent links imply.
func TestRandomMutationsStayConsistent(t *testing.T) {
	for _, behavior := range []tree.DeleteBehavior{tree.DeleteNullify, tree.DeleteDestroy} {
		t.Run(string(behavior), func(t *testing.T) {
			runRandomMutations(t, behavior, 2, 300)
		})
	}
}

func runRandomMutations(t *testing.T, behavior tree.DeleteBehavior, familyLevel, steps int) {
	ctx := context.Background()
	d, err := db.OpenDB(filepath.Join(t.TempDir(), "random.db"), db.DefaultSchema())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.EnsureSchema(ctx))

	e, err := tree.New(d, &tree.Config{FamilyLevel: familyLevel, DeleteBehavior: behavior})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	var live []int64
	pick := func() *int64 {
		if len(live) == 0 || rng.Intn(5) == 0 {
			return nil
		}
		id := live[rng.Intn(len(live))]
		return &id
	}
	refresh := func() {
		nodes, err := d.Scan(ctx, db.Filter{}, db.OrderID)
		require.NoError(t, err)
		live = live[:0]
		for _, n := range nodes {
			live = append(live, n.ID)
		}
	}

	for step := 0; step < steps; step++ {
		switch op := rng.Intn(10); {
		case op < 5 || len(live) == 0:
			_, err := e.Create(ctx, pick())
			require.NoError(t, err)
		case op < 8:
			id := live[rng.Intn(len(live))]
			_, err := e.Move(ctx, id, pick())
			if err != nil {
				require.ErrorIs(t, err, tree.ErrCycle)
			}
		case op < 9:
			require.NoError(t, e.Delete(ctx, live[rng.Intn(len(live))]))
		default:
			_, err := e.DeleteBranch(ctx, live[rng.Intn(len(live))])
			require.NoError(t, err)
		}
		refresh()

		snap, err := audit.SnapshotFromDB(ctx, d)
		require.NoError(t, err)
		report := audit.Check(snap, audit.CheckConfig{FamilyLevel: familyLevel, Family: true})
		require.True(t, report.Consistent(), "step %d: %+v", step, report.Violations)
	}

	written, err := e.RepairAll(ctx)
	require.NoError(t, err)
	require.Zero(t, written)
}
