package tree

import (
	"fmt"
	"strconv"
	"strings"

	"treeline/arbor/internal/db"
)

// Delimiter separates ids inside a materialized path.
const Delimiter = ","

// ComputePath derives the path and level of node id from its parent. The
// parent must carry its current persisted path; ancestor paths are never
// re-derived here.
func ComputePath(id int64, parent *db.Node) (string, int) {
	self := strconv.FormatInt(id, 10)
	if parent == nil {
		return self, 0
	}
	return parent.Path + Delimiter + self, parent.Level + 1
}

// SplitPath parses a path into its ids, root first.
func SplitPath(path string) ([]int64, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrMalformedPath)
	}
	parts := strings.Split(path, Delimiter)
	ids := make([]int64, len(parts))
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedPath, path)
		}
		ids[i] = id
	}
	return ids, nil
}

// JoinPath renders ids as a path.
func JoinPath(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, Delimiter)
}

// FamilyOf returns the path segment at familyLevel, or nil when the path is
// too short or the segment is the node itself.
func FamilyOf(path string, id int64, familyLevel int) *int64 {
	ids, err := SplitPath(path)
	if err != nil || familyLevel < 0 || familyLevel >= len(ids) {
		return nil
	}
	family := ids[familyLevel]
	if family == id {
		return nil
	}
	return &family
}

// HasAncestor reports whether id appears in path. A node's own id is the
// last segment, so this is also true for the node itself.
func HasAncestor(path string, id int64) bool {
	self := strconv.FormatInt(id, 10)
	for _, seg := range strings.Split(path, Delimiter) {
		if seg == self {
			return true
		}
	}
	return false
}

// ComparePaths orders paths segment by segment, comparing segments as
// numbers so that "1,2" sorts before "1,10". A path sorts before every path
// it is a prefix of, which keeps each subtree contiguous.
func ComparePaths(a, b string) int {
	as := strings.Split(a, Delimiter)
	bs := strings.Split(b, Delimiter)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegments(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

func compareSegments(a, b string) int {
	// Unpadded decimal ids: the longer one is larger.
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// descendantPrefix is the path prefix shared by every strict descendant.
func descendantPrefix(path string) string {
	return path + Delimiter
}
