package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	identRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	orderByRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\s+(?i:asc|desc))?(\s*,\s*[A-Za-z_][A-Za-z0-9_]*(\s+(?i:asc|desc))?)*$`)
)

// ErrInvalidSchema is returned when a Schema names an unusable table or column.
var ErrInvalidSchema = errors.New("invalid schema")

// Schema describes the node table. Level and Family switch the optional
// derived columns on; when Level is off the depth is computed from the path
// on read, and when Family is off family_id always reads as NULL.
type Schema struct {
	Table      string
	ForeignKey string
	OrderBy    string // applied when listing a node's direct children
	Level      bool
	Family     bool
}

// DefaultSchema returns the layout used when nothing is configured.
func DefaultSchema() Schema {
	return Schema{
		Table:      "nodes",
		ForeignKey: "parent_id",
		Level:      true,
		Family:     true,
	}
}

// Validate checks the identifiers that end up inside SQL text.
func (s Schema) Validate() error {
	if !identRe.MatchString(s.Table) {
		return fmt.Errorf("%w: table %q", ErrInvalidSchema, s.Table)
	}
	if !identRe.MatchString(s.ForeignKey) {
		return fmt.Errorf("%w: foreign key %q", ErrInvalidSchema, s.ForeignKey)
	}
	switch s.ForeignKey {
	case "id", "path", "level", "children_count", "family_id":
		return fmt.Errorf("%w: foreign key %q collides with a derived column", ErrInvalidSchema, s.ForeignKey)
	}
	if s.OrderBy != "" && !orderByRe.MatchString(s.OrderBy) {
		return fmt.Errorf("%w: order by %q", ErrInvalidSchema, s.OrderBy)
	}
	return nil
}

// requiredColumns lists every column the queries touch, including the ones
// named by OrderBy.
func (s Schema) requiredColumns() []string {
	cols := []string{"id", s.ForeignKey, "path", "children_count"}
	if s.Level {
		cols = append(cols, "level")
	}
	if s.Family {
		cols = append(cols, "family_id")
	}
	if s.OrderBy != "" {
		for _, part := range strings.Split(s.OrderBy, ",") {
			if f := strings.Fields(part); len(f) > 0 {
				cols = append(cols, f[0])
			}
		}
	}
	return cols
}

func (s Schema) createStatements() []string {
	cols := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		s.ForeignKey + " INTEGER",
		"path TEXT NOT NULL DEFAULT ''",
		"children_count INTEGER NOT NULL DEFAULT 0",
	}
	if s.Level {
		cols = append(cols, "level INTEGER NOT NULL DEFAULT 0")
	}
	if s.Family {
		cols = append(cols, "family_id INTEGER")
	}
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", s.Table, strings.Join(cols, ",\n\t")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", s.Table, s.ForeignKey, s.Table, s.ForeignKey),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_path ON %s(path)", s.Table, s.Table),
	}
}

// levelExpr is the depth column, or the number of delimiters in the path
// when the table has no level column.
func (s Schema) levelExpr() string {
	if s.Level {
		return "level"
	}
	return "(length(path) - length(replace(path, ',', '')))"
}

func (s Schema) familyExpr() string {
	if s.Family {
		return "family_id"
	}
	return "NULL"
}

func (s Schema) selectColumns() string {
	return fmt.Sprintf("id, %s, path, %s, children_count, %s",
		s.ForeignKey, s.levelExpr(), s.familyExpr())
}
