package filetree

import (
	"fmt"

	"github.com/blackwell-systems/fsprof/internal/treemodel"
)

// Columns of Model.
const (
	ColumnPath = iota
	ColumnCount
	columnTotal
)

// Model presents a Tree through treemodel.Model. The root is the single
// top-level row; its children and their descendants hang below it.
//
// Indices embed the tree generation and go stale as soon as a node is
// added.
type Model struct {
	tree *Tree
}

var _ treemodel.Model = (*Model)(nil)

// NewModel wraps tree. The model never modifies it.
func NewModel(tree *Tree) *Model {
	return &Model{tree: tree}
}

// Tree returns the observed tree.
func (m *Model) Tree() *Tree { return m.tree }

// Node returns the tree node an index refers to.
func (m *Model) Node(index treemodel.Index) (NodeID, bool) {
	if !index.IsValid() || m.Validate(index) != nil {
		return NoNode, false
	}
	return NodeID(index.Node()), true
}

func (m *Model) newIndex(row, column int, id NodeID) treemodel.Index {
	return treemodel.NewIndex(row, column, int(id), m.tree.Generation())
}

func (m *Model) Index(row, column int, parent treemodel.Index) treemodel.Index {
	if row < 0 || column < 0 || column >= columnTotal {
		return treemodel.Index{}
	}
	if !parent.IsValid() {
		if row != 0 {
			return treemodel.Index{}
		}
		return m.newIndex(0, column, m.tree.Root())
	}

	id, ok := m.Node(parent)
	if !ok || row >= m.tree.ChildCount(id) {
		return treemodel.Index{}
	}
	return m.newIndex(row, column, m.tree.Child(id, row))
}

// ParentIndex returns the index of index's parent node, whose row is the
// parent's own position among its siblings. The root's row is 0 because it
// is the only top-level row.
func (m *Model) ParentIndex(index treemodel.Index) treemodel.Index {
	id, ok := m.Node(index)
	if !ok {
		return treemodel.Index{}
	}
	parent := m.tree.Parent(id)
	if parent == NoNode {
		return treemodel.Index{}
	}
	return m.newIndex(m.rowOf(parent), index.Column(), parent)
}

func (m *Model) rowOf(id NodeID) int {
	if id == m.tree.Root() {
		return 0
	}
	row, ok := m.tree.RowOf(id)
	if !ok {
		panic(fmt.Sprintf("filetree: node %d (%q) missing from the children of its parent %d",
			id, m.tree.Segment(id), m.tree.Parent(id)))
	}
	return row
}

func (m *Model) RowCount(index treemodel.Index) int {
	if !index.IsValid() {
		return 1
	}
	id, ok := m.Node(index)
	if !ok {
		return 0
	}
	return m.tree.ChildCount(id)
}

func (m *Model) ColumnCount() int { return columnTotal }

func (m *Model) ColumnName(column int) string {
	switch column {
	case ColumnPath:
		return "Path"
	case ColumnCount:
		return "Count"
	default:
		return ""
	}
}

func (m *Model) Data(index treemodel.Index, role treemodel.Role) any {
	if role == treemodel.RoleTextAlignment {
		if index.Column() == ColumnPath {
			return treemodel.AlignCenterLeft
		}
		return treemodel.AlignCenterRight
	}

	id, ok := m.Node(index)
	if !ok || role != treemodel.RoleDisplay {
		return nil
	}
	switch index.Column() {
	case ColumnPath:
		return m.tree.Segment(id)
	case ColumnCount:
		return m.tree.Count(id)
	}
	return nil
}

// Matches returns the Path-column indices below scope whose segment text
// matches query. Only direct children are searched unless flags include
// treemodel.MatchRecursive.
func (m *Model) Matches(query string, flags treemodel.MatchFlags, scope treemodel.Index) []treemodel.Index {
	var found []treemodel.Index
	m.collectMatches(query, flags, scope.Sibling(ColumnPath), &found)
	return found
}

func (m *Model) collectMatches(query string, flags treemodel.MatchFlags, scope treemodel.Index, found *[]treemodel.Index) bool {
	rows := m.RowCount(scope)
	for row := 0; row < rows; row++ {
		index := m.Index(row, ColumnPath, scope)
		text, _ := m.Data(index, treemodel.RoleDisplay).(string)
		if treemodel.StringMatches(text, query, flags) {
			*found = append(*found, index)
			if flags&treemodel.MatchFirstOnly != 0 {
				return true
			}
		}
		if flags&treemodel.MatchRecursive != 0 {
			if m.collectMatches(query, flags, index, found) {
				return true
			}
		}
	}
	return false
}

// Validate reports treemodel.ErrStaleIndex for indices minted before the
// tree last grew. The invalid index is always valid as a parent.
func (m *Model) Validate(index treemodel.Index) error {
	if !index.IsValid() {
		return nil
	}
	if index.Generation() != m.tree.Generation() || !m.tree.Contains(NodeID(index.Node())) {
		return treemodel.ErrStaleIndex
	}
	return nil
}

// FullPath returns the path an index stands for, or "" for an invalid or
// stale index.
func (m *Model) FullPath(index treemodel.Index) string {
	id, ok := m.Node(index)
	if !ok {
		return ""
	}
	return m.tree.FullPath(id)
}
