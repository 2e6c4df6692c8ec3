package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection holding one node table
type DB struct {
	table
	conn *sql.DB
	Path string
}

// OpenDB opens a SQLite database with WAL mode and foreign keys enabled.
// The schema is validated here so that column names can be interpolated
// into queries later without further checks.
func OpenDB(path string, schema Schema) (*DB, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: mutations are serialized through a single writer and
	// in-memory databases would otherwise be private to each connection.
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &DB{table: table{q: conn, s: schema}, conn: conn, Path: path}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Schema returns the table layout this DB was opened with.
func (d *DB) Schema() Schema {
	return d.s
}

// EnsureSchema creates the node table and its parent and path indexes if
// they do not exist yet, then checks the result with CheckSchema.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range d.s.createStatements() {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return d.CheckSchema(ctx)
}

// CheckSchema compares the live table against the configured Schema and
// fails with ErrInvalidSchema when the table or any column the queries use
// (order by columns included) is missing.
func (d *DB) CheckSchema(ctx context.Context) error {
	rows, err := d.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.s.Table))
	if err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scanning table info: %w", err)
		}
		have[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}

	if len(have) == 0 {
		return fmt.Errorf("%w: table %q does not exist", ErrInvalidSchema, d.s.Table)
	}
	for _, col := range d.s.requiredColumns() {
		if !have[strings.ToLower(col)] {
			return fmt.Errorf("%w: table %q has no column %q", ErrInvalidSchema, d.s.Table, col)
		}
	}
	return nil
}

// Atomic runs fn inside a single transaction. Every write fn performs
// through the Store it receives is rolled back if fn returns an error.
func (d *DB) Atomic(ctx context.Context, fn func(Store) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&Tx{table: table{q: tx, s: d.s}, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Tx is a Store bound to an open transaction. It is only valid inside the
// Atomic callback that created it.
type Tx struct {
	table
	tx *sql.Tx
}
