package analyzer

import (
	"sort"

	"github.com/blackwell-systems/fsprof/internal/filetree"
	"github.com/blackwell-systems/fsprof/internal/perf"
)

// Summarize computes per-kind counts, failures by errno and the most
// visited paths of p. Paths are keyed by their trie node, so spellings that
// clean to the same path are counted together. Events with the invalid-path
// sentinel count as a path of their own.
func Summarize(p *perf.Profile, topN int) *Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}

	s := &Summary{
		SessionID: p.SessionID,
		PID:       p.PID,
		Command:   p.Command,
		Started:   p.Started,
		Events:    len(p.Events),
		Dropped:   p.Dropped,
	}

	kinds := make(map[perf.Kind]*KindStat)
	failures := make(map[int32]int)
	for i, e := range p.Events {
		ks, ok := kinds[e.Kind]
		if !ok {
			ks = &KindStat{Kind: e.Kind}
			kinds[e.Kind] = ks
		}
		ks.Count++
		if e.Result.IsError {
			ks.Failed++
			failures[e.Result.Code]++
		}

		if i == 0 || e.StartMS < s.FirstMS {
			s.FirstMS = e.StartMS
		}
		if e.StartMS > s.LastMS {
			s.LastMS = e.StartMS
		}
		if e.Pread != nil {
			s.BytesRequested += e.Pread.Size
		}
		if _, ok := e.PathIndex(); !ok {
			s.PathlessEvents++
		}
	}

	for _, k := range perf.Kinds() {
		if ks, ok := kinds[k]; ok {
			s.Kinds = append(s.Kinds, *ks)
		}
	}

	for code, n := range failures {
		s.Failures = append(s.Failures, FailureStat{Code: code, Name: ErrnoName(code), Count: n})
	}
	sort.Slice(s.Failures, func(i, j int) bool {
		if s.Failures[i].Count != s.Failures[j].Count {
			return s.Failures[i].Count > s.Failures[j].Count
		}
		return s.Failures[i].Code < s.Failures[j].Code
	})

	s.rankPaths(p, topN)
	return s
}

func (s *Summary) rankPaths(p *perf.Profile, topN int) {
	agg := filetree.NewAggregator(nil)
	paths := make(map[filetree.NodeID]int)
	dirs := make(map[filetree.NodeID]int)

	for _, rec := range p.Records() {
		id := agg.Add(rec.Path)
		paths[id]++

		tree := agg.Tree()
		if !tree.Pseudo(id) && id != tree.Root() {
			dirs[tree.Parent(id)]++
		}
	}

	s.DistinctPaths = len(paths)
	s.TopPaths = topStats(agg.Tree(), paths, topN)
	s.TopDirectories = topStats(agg.Tree(), dirs, topN)
}

func topStats(tree *filetree.Tree, counts map[filetree.NodeID]int, n int) []PathStat {
	stats := make([]PathStat, 0, len(counts))
	for id, c := range counts {
		stats = append(stats, PathStat{Path: tree.FullPath(id), Count: c})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Path < stats[j].Path
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}
