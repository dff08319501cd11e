// Package coordinator turns raw file change events into debounced,
// self-trigger-suppressed processing runs, with at most one run in flight
// per file.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/storage"
)

// defaultDebounce is the quiet period after the last change event before a
// file is processed.
const defaultDebounce = 2 * time.Second

// Processor runs the block pipeline for one file. It reports whether it
// wrote the file and, if so, the checksum of the written content.
type Processor interface {
	ProcessDocument(ctx context.Context, path string) (bool, string, error)
}

// fileState tracks one file's position in the debounce/process cycle. All
// fields are owned by the run loop.
type fileState struct {
	timer *time.Timer // non-nil while debouncing
	gen   uint64      // invalidates stale timer fires after a reset

	processing bool
	queued     bool // change arrived while processing; rerun after

	// lastWrite holds the checksum of the coordinator's own most recent
	// write to this file. A change event whose content matches it is the
	// echo of that write and must not start another run.
	lastWrite string
}

type fireMsg struct {
	path string
	gen  uint64
}

type doneMsg struct {
	path  string
	wrote bool
	sum   string
	err   error
}

// Coordinator serializes processing per file. A single loop owns all state;
// Notify is safe from any goroutine.
type Coordinator struct {
	proc     Processor
	store    storage.Provider
	debounce time.Duration
	logger   *slog.Logger

	notifyCh chan string
	fireCh   chan fireMsg
	doneCh   chan doneMsg
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a Coordinator. Call Run to start it.
func New(proc Processor, store storage.Provider, opts ...Option) *Coordinator {
	c := &Coordinator{
		proc:     proc,
		store:    store,
		debounce: defaultDebounce,
		logger:   slog.Default(),
		notifyCh: make(chan string, 64),
		fireCh:   make(chan fireMsg, 64),
		doneCh:   make(chan doneMsg),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Notify reports a change event for a vault-relative file path. It never
// blocks the caller; under sustained pressure events for a file collapse
// into the debounce window anyway.
func (c *Coordinator) Notify(path string) {
	select {
	case c.notifyCh <- path:
	default:
		c.logger.Warn("coordinator: notify queue full, dropping event", slog.String("path", path))
	}
}

// Run drives the state loop until ctx is cancelled. In-flight processing
// runs are cancelled through the same ctx.
func (c *Coordinator) Run(ctx context.Context) error {
	states := make(map[string]*fileState)

	for {
		select {
		case <-ctx.Done():
			for _, st := range states {
				if st.timer != nil {
					st.timer.Stop()
				}
			}
			c.logger.Info("coordinator: stopped")
			return ctx.Err()

		case path := <-c.notifyCh:
			st := states[path]
			if st == nil {
				st = &fileState{}
				states[path] = st
			}

			// Editors and watchers may emit several events for one save,
			// so a matching fingerprint keeps suppressing until the
			// content actually diverges.
			if st.lastWrite != "" && c.matchesLastWrite(path, st.lastWrite) {
				c.logger.Debug("coordinator: suppressed self-trigger", slog.String("path", path))
				continue
			}
			st.lastWrite = ""

			if st.processing {
				st.queued = true
				continue
			}
			c.startDebounce(path, st)

		case fire := <-c.fireCh:
			st := states[fire.path]
			if st == nil || st.timer == nil || st.gen != fire.gen {
				continue // stale fire from a reset timer
			}
			st.timer = nil
			st.processing = true
			go c.process(ctx, fire.path)

		case done := <-c.doneCh:
			st := states[done.path]
			if st == nil {
				continue
			}
			st.processing = false
			if done.wrote {
				st.lastWrite = done.sum
			}
			if done.err != nil {
				c.logger.Error("coordinator: processing failed",
					slog.String("path", done.path),
					slog.String("error", done.err.Error()))
			}
			if st.queued {
				st.queued = false
				c.startDebounce(done.path, st)
			}
		}
	}
}

func (c *Coordinator) startDebounce(path string, st *fileState) {
	st.gen++
	gen := st.gen
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(c.debounce, func() {
		c.fireCh <- fireMsg{path: path, gen: gen}
	})
}

func (c *Coordinator) process(ctx context.Context, path string) {
	wrote, sum, err := c.proc.ProcessDocument(ctx, path)
	select {
	case c.doneCh <- doneMsg{path: path, wrote: wrote, sum: sum, err: err}:
	case <-ctx.Done():
	}
}

// matchesLastWrite checks whether the file's current content is the echo
// of the coordinator's own write.
func (c *Coordinator) matchesLastWrite(path, want string) bool {
	data, err := c.store.Read(path)
	if err != nil {
		return false
	}
	return checksum.Sum(data) == want
}
