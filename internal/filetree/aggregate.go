package filetree

import "github.com/blackwell-systems/fsprof/internal/perf"

// Aggregator feeds paths into a Tree and owns the counting rule: a node
// created by the visit already carries its first count, a node that existed
// before gains one.
type Aggregator struct {
	tree    *Tree
	records uint64
}

// NewAggregator aggregates into tree, or into a fresh tree when tree is nil.
func NewAggregator(tree *Tree) *Aggregator {
	if tree == nil {
		tree = New()
	}
	return &Aggregator{tree: tree}
}

// Tree returns the tree being built.
func (a *Aggregator) Tree() *Tree { return a.tree }

// Records returns how many paths were added.
func (a *Aggregator) Records() uint64 { return a.records }

// Add records one visit of p and returns its node.
func (a *Aggregator) Add(p string) NodeID {
	id, created := a.tree.LocateOrCreate(p)
	if !created {
		a.tree.Visit(id)
	}
	a.records++
	return id
}

// AddRecords adds the path of every record in order.
func (a *Aggregator) AddRecords(records []perf.PathRecord) {
	for _, r := range records {
		a.Add(r.Path)
	}
}

// AddProfile adds every event of p that carries a path.
func (a *Aggregator) AddProfile(p *perf.Profile) {
	a.AddRecords(p.Records())
}

// Build aggregates the given profiles into a new tree.
func Build(profiles ...*perf.Profile) *Tree {
	agg := NewAggregator(nil)
	for _, p := range profiles {
		agg.AddProfile(p)
	}
	return agg.Tree()
}
