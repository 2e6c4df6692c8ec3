package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no row has the requested id.
var ErrNotFound = errors.New("node not found")

// Store is the persistence surface the tree engine works against. Both
// *DB and *Tx implement it.
type Store interface {
	Insert(ctx context.Context, parentID *int64) (int64, error)
	Get(ctx context.Context, id int64) (*Node, error)
	Update(ctx context.Context, n *Node) error
	Delete(ctx context.Context, id int64) error
	Scan(ctx context.Context, f Filter, order Order) ([]Node, error)
	Count(ctx context.Context, f Filter) (int, error)
}

// Filter restricts a Scan. Set fields are ANDed together; a zero Filter
// matches every row.
type Filter struct {
	ParentID   *int64  // exact parent match
	RootsOnly  bool    // parent IS NULL
	PathPrefix string  // path starts with this string
	IDs        []int64 // id set membership; a non-nil empty slice matches nothing
	LeavesOnly bool    // children_count = 0
}

// Order selects the ORDER BY clause of a Scan.
type Order int

const (
	OrderNone      Order = iota
	OrderID              // id asc
	OrderPath            // path asc
	OrderLevel           // level asc, id asc
	OrderLevelDesc       // level desc, id desc
	OrderChildren        // the schema's OrderBy, or id asc when unset
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// table implements Store on top of a connection or a transaction.
type table struct {
	q querier
	s Schema
}

// scanNode scans a row into a Node. The row must have the columns produced
// by Schema.selectColumns in that order.
func scanNode(scanner interface{ Scan(dest ...any) error }) (Node, error) {
	var n Node
	var parentID, familyID sql.NullInt64
	err := scanner.Scan(&n.ID, &parentID, &n.Path, &n.Level, &n.ChildrenCount, &familyID)
	if parentID.Valid {
		v := parentID.Int64
		n.ParentID = &v
	}
	if familyID.Valid {
		v := familyID.Int64
		n.FamilyID = &v
	}
	return n, err
}

// Insert adds a row with the given parent and returns its assigned id. The
// derived columns are left at their defaults for the caller to fill in.
func (t *table) Insert(ctx context.Context, parentID *int64) (int64, error) {
	res, err := t.q.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", t.s.Table, t.s.ForeignKey),
		nullable(parentID))
	if err != nil {
		return 0, fmt.Errorf("inserting node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}

// Get returns a single node by ID, or ErrNotFound
func (t *table) Get(ctx context.Context, id int64) (*Node, error) {
	row := t.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.s.selectColumns(), t.s.Table), id)

	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Update writes every column of n back to its row.
func (t *table) Update(ctx context.Context, n *Node) error {
	sets := []string{t.s.ForeignKey + " = ?", "path = ?", "children_count = ?"}
	args := []any{nullable(n.ParentID), n.Path, n.ChildrenCount}
	if t.s.Level {
		sets = append(sets, "level = ?")
		args = append(args, n.Level)
	}
	if t.s.Family {
		sets = append(sets, "family_id = ?")
		args = append(args, nullable(n.FamilyID))
	}
	args = append(args, n.ID)

	res, err := t.q.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.s.Table, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return fmt.Errorf("updating node %d: %w", n.ID, err)
	}
	return expectOneRow(res, n.ID)
}

// Delete removes a single row. Children are not touched.
func (t *table) Delete(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.s.Table), id)
	if err != nil {
		return fmt.Errorf("deleting node %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

// Scan returns every node matching f in the requested order.
func (t *table) Scan(ctx context.Context, f Filter, order Order) ([]Node, error) {
	where, args := t.where(f)
	query := fmt.Sprintf("SELECT %s FROM %s%s%s", t.s.selectColumns(), t.s.Table, where, t.orderClause(order))

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Count returns the number of nodes matching f.
func (t *table) Count(ctx context.Context, f Filter) (int, error) {
	where, args := t.where(f)
	var count int
	err := t.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s%s", t.s.Table, where), args...).Scan(&count)
	return count, err
}

func (t *table) where(f Filter) (string, []any) {
	var conds []string
	var args []any

	if f.ParentID != nil {
		conds = append(conds, t.s.ForeignKey+" = ?")
		args = append(args, *f.ParentID)
	}
	if f.RootsOnly {
		conds = append(conds, t.s.ForeignKey+" IS NULL")
	}
	if f.PathPrefix != "" {
		// Half-open range so the path index serves the prefix match.
		conds = append(conds, "path >= ? AND path < ?")
		args = append(args, f.PathPrefix, prefixUpperBound(f.PathPrefix))
	}
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			conds = append(conds, "1 = 0")
		} else {
			marks := make([]string, len(f.IDs))
			for i, id := range f.IDs {
				marks[i] = "?"
				args = append(args, id)
			}
			conds = append(conds, "id IN ("+strings.Join(marks, ", ")+")")
		}
	}
	if f.LeavesOnly {
		conds = append(conds, "children_count = 0")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (t *table) orderClause(order Order) string {
	switch order {
	case OrderID:
		return " ORDER BY id ASC"
	case OrderPath:
		return " ORDER BY path ASC"
	case OrderLevel:
		return fmt.Sprintf(" ORDER BY %s ASC, id ASC", t.s.levelExpr())
	case OrderLevelDesc:
		return fmt.Sprintf(" ORDER BY %s DESC, id DESC", t.s.levelExpr())
	case OrderChildren:
		if t.s.OrderBy != "" {
			return " ORDER BY " + t.s.OrderBy
		}
		return " ORDER BY id ASC"
	default:
		return ""
	}
}

// prefixUpperBound returns the smallest string greater than every string
// starting with prefix. Paths are ASCII so bumping the last byte is enough.
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	b[len(b)-1]++
	return string(b)
}

func nullable(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
