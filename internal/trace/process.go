package trace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackwell-systems/fsprof/internal/perf"
)

// ErrProfilingActive is returned by EnableProfiling when a session is already
// running for the process.
var ErrProfilingActive = errors.New("trace: profiling already enabled")

// Clock supplies the monotonic start timestamps of events.
type Clock interface {
	UptimeMS() uint64
}

type monotonicClock struct {
	origin time.Time
}

func (c monotonicClock) UptimeMS() uint64 {
	return uint64(time.Since(c.origin).Milliseconds())
}

// Option configures a Process.
type Option func(*Process)

// WithLogger sets the logger used for swallowed telemetry failures.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Process) { p.logger = logger }
}

// WithClock replaces the default monotonic clock.
func WithClock(clock Clock) Option {
	return func(p *Process) { p.clock = clock }
}

// WithIdentity overrides the pid and command recorded in exported profiles.
func WithIdentity(pid int, command string) Option {
	return func(p *Process) {
		p.pid = pid
		p.command = command
	}
}

// Process owns the tracing state of one process: the process-wide lock that
// serialises traced calls and the event buffer of the active session, if
// any.
type Process struct {
	mu       sync.Mutex
	host     Host
	resolver Resolver
	clock    Clock
	logger   *zap.Logger

	pid     int
	command string
	nextTID atomic.Int32

	// guarded by mu
	buffer    *perf.EventBuffer
	sessionID uuid.UUID
	started   time.Time
}

// NewProcess creates a process whose traced calls run on host.
func NewProcess(host Host, resolver Resolver, opts ...Option) *Process {
	p := &Process{
		host:     host,
		resolver: resolver,
		clock:    monotonicClock{origin: time.Now()},
		logger:   zap.NewNop(),
		pid:      os.Getpid(),
		command:  filepath.Base(os.Args[0]),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Thread is a caller of traced operations. Suppression is per thread and is
// checked before any tracing work.
type Thread struct {
	proc       *Process
	tid        int
	suppressed atomic.Bool
}

// NewThread registers a new calling thread.
func (p *Process) NewThread() *Thread {
	return &Thread{proc: p, tid: int(p.nextTID.Add(1))}
}

// ID returns the thread's identifier within its process.
func (t *Thread) ID() int { return t.tid }

// SetProfilingSuppressed turns tracing off (or back on) for this thread. It
// takes effect on the thread's next traced call.
func (t *Thread) SetProfilingSuppressed(suppressed bool) {
	t.suppressed.Store(suppressed)
}

// ProfilingSuppressed reports whether tracing is suppressed for the thread.
func (t *Thread) ProfilingSuppressed() bool {
	return t.suppressed.Load()
}

// EnableProfiling starts a session with a fresh event buffer.
func (p *Process) EnableProfiling(opts perf.TableOptions, capacity int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buffer != nil {
		return ErrProfilingActive
	}
	p.buffer = perf.NewEventBuffer(capacity, opts)
	p.sessionID = uuid.New()
	p.started = time.Now()

	p.logger.Debug("profiling enabled",
		zap.Int("pid", p.pid),
		zap.String("session", p.sessionID.String()))
	return nil
}

// Profiling reports whether a session is active.
func (p *Process) Profiling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer != nil
}

// Flush drains the active session without ending it. The returned profile
// carries the full string table so every drained index resolves.
func (p *Process) Flush() (*perf.Profile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buffer == nil {
		return nil, false
	}
	return p.snapshotLocked(), true
}

// DisableProfiling ends the active session, draining and discarding its
// buffer.
func (p *Process) DisableProfiling() (*perf.Profile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buffer == nil {
		return nil, false
	}
	prof := p.snapshotLocked()
	p.buffer = nil

	p.logger.Debug("profiling disabled",
		zap.String("session", prof.SessionID.String()),
		zap.Int("events", len(prof.Events)),
		zap.Uint64("dropped", prof.Dropped))
	return prof, true
}

func (p *Process) snapshotLocked() *perf.Profile {
	return &perf.Profile{
		SessionID: p.sessionID,
		PID:       p.pid,
		Command:   p.command,
		Started:   p.started,
		Strings:   p.buffer.Strings().Strings(),
		Events:    p.buffer.Drain(),
		Dropped:   p.buffer.Dropped(),
	}
}

// activeBuffer returns the buffer to record into, or nil when the call must
// not be traced. Callers hold p.mu.
func (p *Process) activeBuffer(th *Thread) *perf.EventBuffer {
	if th != nil && th.ProfilingSuppressed() {
		return nil
	}
	return p.buffer
}

// describe resolves the descriptive path of fd: the original absolute path,
// then a pseudo-path, then the invalid-path sentinel.
func (p *Process) describe(fd int) string {
	if path, err := p.resolver.OriginalAbsolutePath(fd); err == nil {
		return path
	}
	if path, err := p.resolver.PseudoPath(fd); err == nil {
		return path
	}
	return perf.InvalidPath
}

// register interns path, logging and absorbing any failure.
func (p *Process) register(buf *perf.EventBuffer, kind perf.Kind, path string) (perf.Index, bool) {
	idx, err := buf.RegisterString(path)
	if err != nil {
		p.logger.Debug("path not recorded",
			zap.Stringer("kind", kind),
			zap.String("path", path),
			zap.Error(err))
		return 0, false
	}
	return idx, true
}

func (p *Process) append(buf *perf.EventBuffer, e perf.Event) {
	if !buf.Append(e) {
		p.logger.Debug("event dropped, buffer full",
			zap.Stringer("kind", e.Kind),
			zap.Uint64("dropped", buf.Dropped()))
	}
}

// resultOf maps the error of a real operation to an event outcome.
func resultOf(err error) perf.Result {
	if err == nil {
		return perf.Success()
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return perf.Failed(int32(errno))
	}
	return perf.Failed(int32(syscall.EIO))
}

// String implements fmt.Stringer for log fields.
func (p *Process) String() string {
	return fmt.Sprintf("%s[%d]", p.command, p.pid)
}
