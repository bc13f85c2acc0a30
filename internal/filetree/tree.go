// Package filetree aggregates traced file paths into a trie of path
// segments with per-node visit counts, and exposes the trie to display code
// through the treemodel contract.
//
// Absolute paths are split on "/" and share prefixes; anything else (pseudo
// paths such as "socket:[123]", relative fragments, the invalid-path
// sentinel) becomes a single flat child of the root, since separators inside
// those labels are not file system boundaries.
//
// A Tree is not safe for concurrent use. It is built once from a drained
// event stream and then only read.
package filetree

import (
	"path"
	"strings"
)

// NodeID addresses a node in its Tree. IDs are never reused.
type NodeID int32

// NoNode is the parent of the root.
const NoNode NodeID = -1

const (
	rootID      NodeID = 0
	rootSegment        = "/"
	separator          = "/"
)

type node struct {
	segment  string
	count    uint64
	parent   NodeID
	children []NodeID
	byName   map[string]NodeID
	pseudo   bool

	// pseudoByName indexes the root's flat pseudo children apart from its
	// path segments, so "usr" and "/usr" stay distinct nodes.
	pseudoByName map[string]NodeID
}

// Tree is an arena of path segment nodes. Children are owned through the
// arena; parent links are plain IDs used for upward traversal only.
type Tree struct {
	nodes      []node
	generation uint64
}

// New creates a tree holding only the root.
func New() *Tree {
	return &Tree{
		nodes: []node{{segment: rootSegment, parent: NoNode}},
	}
}

// Root returns the root node.
func (t *Tree) Root() NodeID { return rootID }

// Len returns the number of nodes including the root.
func (t *Tree) Len() int { return len(t.nodes) }

// Generation is bumped every time a node is added.
func (t *Tree) Generation() uint64 { return t.generation }

// Contains reports whether id belongs to this tree.
func (t *Tree) Contains(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Segment returns the node's own path segment.
func (t *Tree) Segment(id NodeID) string { return t.nodes[id].segment }

// Count returns how many times the node was visited.
func (t *Tree) Count(id NodeID) uint64 { return t.nodes[id].count }

// Parent returns the node's parent, NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].parent }

// Pseudo reports whether the node is a flat pseudo-path entry.
func (t *Tree) Pseudo(id NodeID) bool { return t.nodes[id].pseudo }

// ChildCount returns the number of children of id.
func (t *Tree) ChildCount(id NodeID) int { return len(t.nodes[id].children) }

// Child returns the row-th child of id in insertion order.
func (t *Tree) Child(id NodeID, row int) NodeID { return t.nodes[id].children[row] }

// Children returns a copy of id's children in insertion order.
func (t *Tree) Children(id NodeID) []NodeID {
	out := make([]NodeID, len(t.nodes[id].children))
	copy(out, t.nodes[id].children)
	return out
}

// Visit adds one visit to id.
func (t *Tree) Visit(id NodeID) {
	t.nodes[id].count++
}

// RowOf returns the position of id among its parent's children. The root
// has no row.
func (t *Tree) RowOf(id NodeID) (int, bool) {
	parent := t.nodes[id].parent
	if parent == NoNode {
		return 0, false
	}
	for row, child := range t.nodes[parent].children {
		if child == id {
			return row, true
		}
	}
	return 0, false
}

// LocateOrCreate returns the node for p, creating any missing nodes on the
// way, and reports whether the returned node was created by this call. A new
// node starts with a count of 1; counting repeat visits is up to the caller
// (see Aggregator).
//
// An empty path matches the root.
func (t *Tree) LocateOrCreate(p string) (NodeID, bool) {
	if p == "" {
		return rootID, false
	}
	if !strings.HasPrefix(p, separator) {
		return t.locatePseudo(p)
	}
	return t.locate(rootID, strings.TrimLeft(path.Clean(p), separator))
}

// Find looks p up without creating anything.
func (t *Tree) Find(p string) (NodeID, bool) {
	if p == "" {
		return rootID, true
	}
	if !strings.HasPrefix(p, separator) {
		id, ok := t.nodes[rootID].pseudoByName[p]
		return id, ok
	}

	n := rootID
	rest := strings.TrimLeft(path.Clean(p), separator)
	for rest != "" {
		var first string
		first, rest = splitFirst(rest)
		child, ok := t.nodes[n].byName[first]
		if !ok {
			return NoNode, false
		}
		n = child
	}
	return n, true
}

// locate walks from n along the segments of rest, extending the tree with a
// new chain at the first missing segment.
func (t *Tree) locate(n NodeID, rest string) (NodeID, bool) {
	for rest != "" {
		first, remainder := splitFirst(rest)
		child, ok := t.nodes[n].byName[first]
		if !ok {
			return t.createChain(n, rest), true
		}
		n, rest = child, remainder
	}
	return n, false
}

// locatePseudo finds or creates the flat root child named p.
func (t *Tree) locatePseudo(p string) (NodeID, bool) {
	if id, ok := t.nodes[rootID].pseudoByName[p]; ok {
		return id, false
	}
	return t.addChild(rootID, p, true), true
}

// createChain adds one node per segment of rest below n, each the sole child
// of the previous one, and returns the deepest.
func (t *Tree) createChain(n NodeID, rest string) NodeID {
	for rest != "" {
		var first string
		first, rest = splitFirst(rest)
		n = t.addChild(n, first, false)
	}
	return n
}

func (t *Tree) addChild(parent NodeID, segment string, pseudo bool) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{segment: segment, count: 1, parent: parent, pseudo: pseudo})

	p := &t.nodes[parent]
	p.children = append(p.children, id)
	if pseudo {
		if p.pseudoByName == nil {
			p.pseudoByName = make(map[string]NodeID)
		}
		p.pseudoByName[segment] = id
	} else {
		if p.byName == nil {
			p.byName = make(map[string]NodeID)
		}
		p.byName[segment] = id
	}

	t.generation++
	return id
}

// FullPath reconstructs the path id stands for.
func (t *Tree) FullPath(id NodeID) string {
	if id == rootID {
		return rootSegment
	}
	if t.nodes[id].pseudo {
		return t.nodes[id].segment
	}

	var segments []string
	for n := id; n != rootID; n = t.nodes[n].parent {
		segments = append(segments, t.nodes[n].segment)
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return separator + strings.Join(segments, separator)
}

// Depth returns the number of edges between id and the root.
func (t *Tree) Depth(id NodeID) int {
	depth := 0
	for n := t.nodes[id].parent; n != NoNode; n = t.nodes[n].parent {
		depth++
	}
	return depth
}

// Walk visits every node depth-first in child order, starting at the root.
// Returning false from fn skips the node's subtree.
func (t *Tree) Walk(fn func(id NodeID, depth int) bool) {
	t.walk(rootID, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, int) bool) {
	if !fn(id, depth) {
		return
	}
	for _, child := range t.nodes[id].children {
		t.walk(child, depth+1, fn)
	}
}

// splitFirst splits a separator-relative path into its first segment and the
// remainder, skipping empty segments.
func splitFirst(p string) (string, string) {
	p = strings.TrimLeft(p, separator)
	first, rest, _ := strings.Cut(p, separator)
	return first, strings.TrimLeft(rest, separator)
}
