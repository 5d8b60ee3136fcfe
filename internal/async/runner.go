package async

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunFunc is the work executed by a Runner.
type RunFunc func(ctx context.Context, progress *Progress) error

// ErrAlreadyRunning is returned by Start when a run is in flight.
var ErrAlreadyRunning = fmt.Errorf("rebuild already running")

const lockFileName = "rebuild.lock"

// Runner executes one RunFunc at a time in a background goroutine and
// leaves a marker file in DataDir while it runs, so an interrupted rebuild
// can be detected on the next start.
type Runner struct {
	dataDir  string
	progress *Progress
	fn       RunFunc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

// NewRunner creates a runner for fn. dataDir may be empty to skip the marker.
func NewRunner(dataDir string, progress *Progress, fn RunFunc) *Runner {
	if progress == nil {
		progress = NewProgress()
	}
	done := make(chan struct{})
	close(done)
	return &Runner{
		dataDir:  dataDir,
		progress: progress,
		fn:       fn,
		doneCh:   done,
	}
}

// Progress returns the tracker shared with the RunFunc.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// IsRunning returns true if a run is in progress.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start begins a run in the background. It returns immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.err = nil
	r.doneCh = make(chan struct{})
	r.progress.Start()

	go r.run(ctx, r.doneCh)
	return nil
}

func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.cancel()
		r.mu.Unlock()
	}()

	err := r.execute(ctx)
	if err != nil {
		r.progress.SetError(err.Error())
	} else {
		r.progress.SetDone()
	}

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Runner) execute(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("rebuild panicked: %v", p)
		}
	}()

	if r.dataDir != "" {
		if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
			return err
		}
		lockPath := filepath.Join(r.dataDir, lockFileName)
		if err := os.WriteFile(lockPath, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
			return err
		}
		defer func() {
			// Keep the marker when the run failed so the next start notices.
			if err == nil {
				_ = os.Remove(lockPath)
			}
		}()
	}

	if r.fn == nil {
		return nil
	}
	return r.fn(ctx, r.progress)
}

// Stop cancels the current run and waits for it to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.cancel()
	done := r.doneCh
	r.mu.Unlock()

	<-done
}

// Wait blocks until the current run completes and returns its error.
func (r *Runner) Wait() error {
	r.mu.Lock()
	done := r.doneCh
	r.mu.Unlock()

	<-done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// HasIncompleteLock reports whether a previous rebuild left its marker behind.
func HasIncompleteLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, lockFileName))
	return err == nil
}
