package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/blackwell-systems/fsprof/internal/store"
)

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = 30 * time.Second

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the period of the backstop sweep.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithRemoveIngested deletes spool files once they are stored.
func WithRemoveIngested(remove bool) Option {
	return func(w *Watcher) { w.removeIngested = remove }
}

// Watcher moves profiles from the spool directory into the store. New files
// are ingested as soon as fsnotify reports them; a ticker sweep catches
// anything a notification missed.
type Watcher struct {
	store          *store.Store
	spoolDir       string
	logger         *zap.Logger
	interval       time.Duration
	removeIngested bool

	// sweepMu serializes sweeps from the notification and ticker paths.
	sweepMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
	ticker   *time.Ticker
	fsw      *fsnotify.Watcher
}

// New creates a new Watcher instance.
func New(st *store.Store, spoolDir string, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if spoolDir == "" {
		return nil, fmt.Errorf("spool directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		store:    st,
		spoolDir: spoolDir,
		logger:   logger.Named("watcher"),
		interval: DefaultInterval,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SpoolDir returns the watched directory.
func (w *Watcher) SpoolDir() string { return w.spoolDir }

// Start creates the spool directory if needed, ingests whatever is already
// there and begins watching. When fsnotify is unavailable the watcher falls
// back to sweeping on the ticker alone.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.spoolDir, 0755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	if _, err := w.Sweep(); err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			return err
		}
		w.logger.Warn("initial spool sweep failed", zap.Error(err))
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		if err = fsw.Add(w.spoolDir); err != nil {
			fsw.Close()
		}
	}
	if err != nil {
		w.logger.Warn("file notifications unavailable, polling only", zap.Error(err))
	} else {
		w.fsw = fsw
	}

	w.ticker = time.NewTicker(w.interval)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("watching spool", zap.String("dir", w.spoolDir), zap.Duration("interval", w.interval))
	return nil
}

// Sweep runs one pass over the spool directory.
func (w *Watcher) Sweep() (SweepStats, error) {
	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()
	return Sweep(w.store, w.spoolDir, w.removeIngested, w.logger)
}

func (w *Watcher) run() {
	defer w.wg.Done()

	// nil channels block forever, so a missing fsnotify watcher just never
	// fires
	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.fsw != nil {
		events = w.fsw.Events
		errs = w.fsw.Errors
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.handleFileEvent(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("file notification error", zap.Error(err))
		case <-w.ticker.C:
			w.sweep("periodic")
		case <-w.stopCh:
			w.sweep("final")
			return
		}
	}
}

// handleFileEvent reacts to a finished profile appearing in the spool.
// Renames into the directory arrive as Create.
func (w *Watcher) handleFileEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if !isProfileFile(filepath.Base(ev.Name)) {
		return
	}
	w.sweep("notification")
}

func (w *Watcher) sweep(reason string) {
	stats, err := w.Sweep()
	if err != nil {
		w.logger.Warn("spool sweep failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	if stats.Ingested > 0 || stats.Failed > 0 {
		w.logger.Debug("spool sweep",
			zap.String("reason", reason),
			zap.Int("ingested", stats.Ingested),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed))
	}
}

// Stop halts the watcher after a final sweep. It is safe to call before
// Start and more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()

		if w.ticker != nil {
			w.ticker.Stop()
		}
		if w.fsw != nil {
			if err := w.fsw.Close(); err != nil {
				w.logger.Warn("failed to close file watcher", zap.Error(err))
			}
		}
	})
	return nil
}
