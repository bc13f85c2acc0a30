package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fsprof/internal/perf"
	"github.com/blackwell-systems/fsprof/internal/store"
)

// openStore opens the configured database. With create set the schema is
// created if needed; otherwise a missing schema surfaces as
// store.ErrNotInitialized from the first query.
func openStore(create bool) (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, err
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if create {
		if err := st.CreateSchema(); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create database schema: %w", err)
		}
	}
	return st, nil
}

// loadProfile returns the profile named on the command line: the file given
// with --file, the session given as argument, or the most recent session.
func loadProfile(file string, args []string) (*perf.Profile, error) {
	if file != "" {
		if len(args) > 0 {
			return nil, errors.New("pass either a session or --file, not both")
		}
		return perf.LoadProfile(file)
	}

	st, err := openStore(false)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	sess, err := resolveSession(st, args)
	if err != nil {
		return nil, err
	}
	return st.LoadProfile(sess.ID)
}

// resolveSession finds the session named by args[0], a full ID or a unique
// prefix, and falls back to the latest session without arguments.
func resolveSession(st *store.Store, args []string) (*store.Session, error) {
	if len(args) > 0 {
		return st.FindSession(args[0])
	}

	sessions, err := st.ListSessions()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w: no sessions recorded yet", store.ErrSessionNotFound)
	}
	return sessions[0], nil
}

// parseKinds parses --kind values.
func parseKinds(names []string) ([]perf.Kind, error) {
	kinds := make([]perf.Kind, 0, len(names))
	for _, name := range names {
		k, err := perf.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// commandContext returns the command's context, which is only set when the
// command runs through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
