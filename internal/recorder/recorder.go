// Package recorder drives traced file reads and packages the resulting
// profile. It is the workload behind `fsprof record` and cmd/fsprof-cat.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/blackwell-systems/fsprof/internal/perf"
	"github.com/blackwell-systems/fsprof/internal/trace"
)

// BlockSize is the read size used by Cat.
const BlockSize = 32 << 10

// CatStats summarizes a Cat run.
type CatStats struct {
	Files  int
	Failed int
	Bytes  int64
}

// Cat copies each file in paths to w using only traced calls. The first
// block of every file is probed with Pread, the way readers sniffing a file
// header do, then read with Readv; the rest is read with Read. A failure on
// one file is collected and the next file is still processed.
func Cat(ctx context.Context, proc *trace.Process, th *trace.Thread, w io.Writer, paths []string) (CatStats, error) {
	var stats CatStats
	var errs error

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, multierr.Append(errs, err)
		}

		n, err := catFile(proc, th, w, path)
		stats.Bytes += n
		if err != nil {
			stats.Failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		stats.Files++
	}
	return stats, errs
}

func catFile(proc *trace.Process, th *trace.Thread, w io.Writer, path string) (written int64, err error) {
	fd, err := proc.Open(th, trace.OpenParams{Path: path, Dirfd: trace.AtFDCWD, Flags: trace.OpenReadOnly})
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := proc.Close(th, fd); cerr != nil && err == nil {
			err = cerr
		}
	}()

	block := make([]byte, BlockSize)

	// Pread fails on pipes and other unseekable descriptors; the copy
	// itself does not depend on it.
	_, _ = proc.Pread(th, fd, block, 0)

	half := len(block) / 2
	n, err := proc.Readv(th, fd, [][]byte{block[:half], block[half:]})
	if err != nil {
		return 0, err
	}

	for n > 0 {
		m, werr := w.Write(block[:n])
		written += int64(m)
		if werr != nil {
			return written, werr
		}
		n, err = proc.Read(th, fd, block)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Options configure Record.
type Options struct {
	Host     trace.Host
	Resolver trace.Resolver
	Logger   *zap.Logger

	Table    perf.TableOptions
	Capacity int

	// PID and Command identify the traced process in the profile. Zero
	// values fall back to the current process.
	PID     int
	Command string
}

// Record runs Cat inside a fresh profiling session and returns the drained
// profile along with the copy result. The profile is returned even when
// some files failed.
func Record(ctx context.Context, opts Options, w io.Writer, paths []string) (*perf.Profile, CatStats, error) {
	if opts.Host == nil || opts.Resolver == nil {
		host, resolver, err := trace.NewSystem()
		if err != nil {
			return nil, CatStats{}, err
		}
		opts.Host, opts.Resolver = host, resolver
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var procOpts []trace.Option
	procOpts = append(procOpts, trace.WithLogger(opts.Logger))
	if opts.PID != 0 || opts.Command != "" {
		pid, command := opts.PID, opts.Command
		if pid == 0 {
			pid = os.Getpid()
		}
		if command == "" {
			command = filepath.Base(os.Args[0])
		}
		procOpts = append(procOpts, trace.WithIdentity(pid, command))
	}

	proc := trace.NewProcess(opts.Host, opts.Resolver, procOpts...)
	if err := proc.EnableProfiling(opts.Table, opts.Capacity); err != nil {
		return nil, CatStats{}, err
	}

	stats, catErr := Cat(ctx, proc, proc.NewThread(), w, paths)

	prof, ok := proc.DisableProfiling()
	if !ok {
		return nil, stats, errors.New("profiling session ended unexpectedly")
	}

	opts.Logger.Debug("recorded",
		zap.Stringer("session", prof.SessionID),
		zap.Int("files", stats.Files),
		zap.Int("failed", stats.Failed),
		zap.Int("events", len(prof.Events)),
		zap.Uint64("dropped", prof.Dropped))
	return prof, stats, catErr
}

// SpoolName is the file name a profile gets in the spool directory. Names
// sort by start time.
func SpoolName(p *perf.Profile) string {
	return fmt.Sprintf("%019d-%s%s", p.Started.UnixNano(), p.SessionID, perf.ProfileExt)
}

// WriteSpool saves p into the spool directory, creating it if needed, and
// returns the file's path.
func WriteSpool(dir string, p *perf.Profile) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create spool directory: %w", err)
	}
	path := filepath.Join(dir, SpoolName(p))
	if err := perf.SaveProfile(path, p); err != nil {
		return "", err
	}
	return path, nil
}
