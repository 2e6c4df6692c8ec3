package tree

import "errors"

var (
	// ErrDanglingReference is returned when a parent id does not resolve to
	// an existing node. Nothing is written when it is returned.
	ErrDanglingReference = errors.New("dangling parent reference")

	// ErrCycle is returned when a move would make a node its own ancestor.
	ErrCycle = errors.New("move would create a cycle")

	// ErrHasChildren is returned by Delete under DeleteRestrict.
	ErrHasChildren = errors.New("node has children")

	// ErrMalformedPath is returned when a stored path cannot be parsed.
	ErrMalformedPath = errors.New("malformed path")
)
