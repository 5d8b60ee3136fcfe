// Package updater runs the background index worker. Each drain cycle
// takes every queued entry, writes the new documents, commits, and only
// then deletes the superseded versions through a freshly opened reader
// before publishing a new view.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/wikindex/internal/entry"
	ierrors "github.com/Aman-CERP/wikindex/internal/errors"
	"github.com/Aman-CERP/wikindex/internal/metrics"
	"github.com/Aman-CERP/wikindex/internal/queue"
	"github.com/Aman-CERP/wikindex/internal/store"
)

// State is the worker phase.
type State int32

const (
	// StateIdle means no cycle is running.
	StateIdle State = iota
	// StateDraining means the writer is open and entries are being added.
	StateDraining
	// StateCommitting means the batch is being committed and stale
	// versions removed.
	StateCommitting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateCommitting:
		return "committing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DefaultInterval is the pause between drain cycles.
const DefaultInterval = 300 * time.Second

// Options configures an Updater.
type Options struct {
	// Interval between drain cycles (default: 300s).
	Interval time.Duration
	// WriterRetries is how many extra attempts are made to open the writer.
	WriterRetries int
	// RetryDelay is the first backoff delay between writer attempts
	// (default: 200ms).
	RetryDelay time.Duration
	// Compact forces a segment merge after each commit.
	Compact bool
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// CycleResult summarises one drain cycle.
type CycleResult struct {
	Processed  int           `json:"processed"`
	Added      int           `json:"added"`
	Skipped    int           `json:"skipped"`
	Deleted    int           `json:"deleted"`
	Generation uint64        `json:"generation"`
	Duration   time.Duration `json:"duration"`
}

// Updater is the single consumer of the index queue.
type Updater struct {
	store     *store.Store
	queue     *queue.Queue
	extractor entry.TextExtractor
	opts      Options
	logger    *slog.Logger

	state atomic.Int32

	// cycleMu serializes Drain and ClearIndex.
	cycleMu sync.Mutex
	// pendingDeletes holds superseded IDs whose deletion failed; guarded by cycleMu.
	pendingDeletes []string

	last atomic.Pointer[CycleResult]

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	running  atomic.Bool
}

// New creates an updater. extractor may be nil, in which case attachments
// are indexed without extracted text.
func New(st *store.Store, q *queue.Queue, extractor entry.TextExtractor, opts Options) *Updater {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	if opts.WriterRetries < 0 {
		opts.WriterRetries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		store:     st,
		queue:     q,
		extractor: extractor,
		opts:      opts,
		logger:    logger.With(slog.String("component", "updater")),
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// State returns the current phase.
func (u *Updater) State() State {
	return State(u.state.Load())
}

func (u *Updater) setState(s State) {
	u.state.Store(int32(s))
}

// LastCycle returns the result of the most recent cycle that did work.
func (u *Updater) LastCycle() (CycleResult, bool) {
	r := u.last.Load()
	if r == nil {
		return CycleResult{}, false
	}
	return *r, true
}

// Wake asks the worker to run a cycle without waiting for the interval.
func (u *Updater) Wake() {
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// Stop asks Run to return after the current cycle.
func (u *Updater) Stop() {
	u.stopOnce.Do(func() { close(u.stopCh) })
}

// Done is closed when Run returns.
func (u *Updater) Done() <-chan struct{} {
	return u.done
}

// Run loops until ctx is done or Stop is called. A cycle that has started
// always finishes first. Run may only be called once.
func (u *Updater) Run(ctx context.Context) {
	if !u.running.CompareAndSwap(false, true) {
		return
	}
	defer close(u.done)

	ticker := time.NewTicker(u.opts.Interval)
	defer ticker.Stop()

	u.logger.Info("updater_started", slog.Duration("interval", u.opts.Interval))
	defer u.logger.Info("updater_stopped")

	for {
		if u.stopping(ctx) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-u.stopCh:
			return
		case <-ticker.C:
		case <-u.wake:
		}

		if u.queue.IsEmpty() && !u.hasPendingDeletes() {
			continue
		}
		if _, err := u.Drain(ctx); err != nil {
			u.logger.Warn("index_cycle_failed", slog.String("error", err.Error()))
		}
	}
}

func (u *Updater) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-u.stopCh:
		return true
	default:
		return false
	}
}

func (u *Updater) hasPendingDeletes() bool {
	u.cycleMu.Lock()
	defer u.cycleMu.Unlock()
	return len(u.pendingDeletes) > 0
}

func (u *Updater) retryConfig() ierrors.RetryConfig {
	cfg := ierrors.DefaultRetryConfig()
	cfg.MaxRetries = u.opts.WriterRetries
	cfg.InitialDelay = u.opts.RetryDelay
	return cfg
}
