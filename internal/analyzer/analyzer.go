package analyzer

import (
	"fmt"

	"github.com/blackwell-systems/fsprof/internal/store"
)

// Analyzer computes summaries of stored sessions.
type Analyzer struct {
	store *store.Store
}

// New creates a new Analyzer instance with the given store.
func New(store *store.Store) *Analyzer {
	return &Analyzer{store: store}
}

// SessionSummary loads the session matching id (a full ID or a unique
// prefix) and summarizes it.
func (a *Analyzer) SessionSummary(id string, topN int) (*Summary, error) {
	sess, err := a.store.FindSession(id)
	if err != nil {
		return nil, err
	}

	p, err := a.store.LoadProfile(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sess.ID, err)
	}

	return Summarize(p, topN), nil
}
