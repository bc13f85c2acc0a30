package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackwell-systems/fsprof/internal/perf"
	"github.com/blackwell-systems/fsprof/internal/store"
)

const maxFilesPerSweep = 1_000

// badSuffix is appended to spool files that cannot be decoded.
const badSuffix = ".bad"

// IngestResult describes what IngestFile did with one file.
type IngestResult struct {
	SessionID uuid.UUID
	Events    int
	// Skipped is set when the file had been ingested before.
	Skipped bool
}

// IngestFile stores the profile at path as a session. Ingesting the same
// path again is a no-op. A profile whose session already exists (the file
// was copied, or a previous run crashed between insert and bookkeeping) is
// only marked as ingested.
func IngestFile(st *store.Store, path string) (*IngestResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	done, err := st.IsIngested(abs)
	if err != nil {
		return nil, err
	}
	if done {
		return &IngestResult{Skipped: true}, nil
	}

	p, err := perf.LoadProfile(abs)
	if err != nil {
		return nil, err
	}

	res := &IngestResult{SessionID: p.SessionID, Events: len(p.Events)}
	if _, err := st.GetSession(p.SessionID); err == nil {
		res.Skipped = true
	} else if !errors.Is(err, store.ErrSessionNotFound) {
		return nil, err
	} else if err := st.InsertProfile(p); err != nil {
		return nil, err
	}

	// Only mark after the session is committed, so a crash means a retry.
	if err := st.MarkIngested(abs, p.SessionID); err != nil {
		return nil, err
	}
	return res, nil
}

// isProfileFile reports whether name is a finished profile. Temp files
// written by perf.SaveProfile start with a dot.
func isProfileFile(name string) bool {
	return !strings.HasPrefix(name, ".") && filepath.Ext(name) == perf.ProfileExt
}

// listSpool returns the finished profiles in dir in name order. A missing
// directory holds no profiles.
func listSpool(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read spool %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && isProfileFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// SweepStats summarizes one pass over the spool.
type SweepStats struct {
	Ingested int
	Skipped  int
	Failed   int
}

// Sweep ingests up to maxFilesPerSweep new profiles from dir; files ingested
// earlier are skipped without counting against that budget. Per-file failures
// are logged and counted, never returned: one corrupt profile must not stall
// the spool. Files that do not decode are renamed with a .bad suffix, and
// with remove set, files are deleted once ingested.
func Sweep(st *store.Store, dir string, remove bool, logger *zap.Logger) (SweepStats, error) {
	var stats SweepStats

	files, err := listSpool(dir)
	if err != nil {
		return stats, err
	}

	for _, path := range files {
		if stats.Ingested+stats.Failed >= maxFilesPerSweep {
			break
		}
		res, err := IngestFile(st, path)
		switch {
		case errors.Is(err, store.ErrNotInitialized):
			return stats, err
		case err != nil:
			stats.Failed++
			logger.Warn("failed to ingest profile", zap.String("file", path), zap.Error(err))
			if errors.Is(err, perf.ErrBadProfile) {
				quarantine(path, logger)
			}
			continue
		case res.Skipped:
			stats.Skipped++
		default:
			stats.Ingested++
			logger.Info("ingested profile",
				zap.String("file", path),
				zap.Stringer("session", res.SessionID),
				zap.Int("events", res.Events))
		}

		if remove {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove ingested profile", zap.String("file", path), zap.Error(err))
			}
		}
	}
	return stats, nil
}

func quarantine(path string, logger *zap.Logger) {
	if err := os.Rename(path, path+badSuffix); err != nil {
		logger.Warn("failed to quarantine profile", zap.String("file", path), zap.Error(err))
	}
}

// Pending counts the profiles in dir that have not been ingested yet.
func Pending(st *store.Store, dir string) (int, error) {
	files, err := listSpool(dir)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, path := range files {
		abs, err := filepath.Abs(path)
		if err != nil {
			return 0, fmt.Errorf("resolve %s: %w", path, err)
		}
		done, err := st.IsIngested(abs)
		if err != nil {
			return 0, err
		}
		if !done {
			n++
		}
	}
	return n, nil
}
