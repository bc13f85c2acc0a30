// Package treemodel defines the contract between a hierarchical data source
// and a display layer: rows and columns addressed through opaque indices.
package treemodel

import (
	"errors"
	"strings"
)

// ErrStaleIndex is returned by Model.Validate for an index created before
// the last structural change of the model.
var ErrStaleIndex = errors.New("treemodel: stale index")

// Role selects which aspect of a cell Data returns.
type Role int

const (
	RoleDisplay Role = iota
	RoleTextAlignment
)

// Alignment is the value of RoleTextAlignment cells.
type Alignment int

const (
	AlignCenterLeft Alignment = iota
	AlignCenterRight
)

// MatchFlags tune Model.Matches. The zero value is a case-sensitive
// substring match over the direct children of the scope.
type MatchFlags uint

const (
	MatchCaseInsensitive MatchFlags = 1 << iota
	MatchAtStart
	MatchFull
	MatchFirstOnly
	MatchRecursive
)

// Index addresses one cell. Only the model that created an index can
// interpret it; the zero Index is invalid and stands for the (hidden) root.
type Index struct {
	row        int
	column     int
	node       int
	generation uint64
	valid      bool
}

// NewIndex is used by Model implementations to mint indices.
func NewIndex(row, column, node int, generation uint64) Index {
	return Index{row: row, column: column, node: node, generation: generation, valid: true}
}

// IsValid reports whether the index refers to a cell.
func (i Index) IsValid() bool { return i.valid }

// Row returns the position of the cell among its siblings.
func (i Index) Row() int { return i.row }

// Column returns the cell's column.
func (i Index) Column() int { return i.column }

// Node returns the model-private node handle.
func (i Index) Node() int { return i.node }

// Generation returns the model generation the index was created in.
func (i Index) Generation() uint64 { return i.generation }

// Sibling returns the index of the same row in another column.
func (i Index) Sibling(column int) Index {
	if !i.valid {
		return i
	}
	i.column = column
	return i
}

// Model is a read-only tree of rows with a fixed set of columns.
type Model interface {
	Index(row, column int, parent Index) Index
	ParentIndex(index Index) Index
	RowCount(index Index) int
	ColumnCount() int
	ColumnName(column int) string
	Data(index Index, role Role) any
	Matches(query string, flags MatchFlags, scope Index) []Index
	Validate(index Index) error
}

// StringMatches applies flags to a single candidate.
func StringMatches(candidate, query string, flags MatchFlags) bool {
	if flags&MatchCaseInsensitive != 0 {
		candidate = strings.ToLower(candidate)
		query = strings.ToLower(query)
	}
	switch {
	case flags&MatchFull != 0:
		return candidate == query
	case flags&MatchAtStart != 0:
		return strings.HasPrefix(candidate, query)
	default:
		return strings.Contains(candidate, query)
	}
}
