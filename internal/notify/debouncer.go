package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces bursts of events. Events with the same key within
// the window collapse to the latest one; the window restarts on every Add.
type Debouncer struct {
	window  time.Duration
	pending map[string]Event
	order   []string
	mu      sync.Mutex
	output  chan []Event
	timer   *time.Timer
	stopped bool
	logger  *slog.Logger
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		pending: make(map[string]Event),
		output:  make(chan []Event, 10),
		logger:  logger,
	}
}

// Add schedules ev for the next flush.
func (d *Debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	k := ev.key()
	if _, ok := d.pending[k]; !ok {
		d.order = append(d.order, k)
	}
	d.pending[k] = ev

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits pending events in first-seen order. When the consumer is
// behind, the events stay pending and the flush is retried after another
// window, so nothing is dropped.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}
	events := make([]Event, 0, len(d.order))
	for _, k := range d.order {
		events = append(events, d.pending[k])
	}

	select {
	case d.output <- events:
		d.pending = make(map[string]Event)
		d.order = nil
	default:
		d.logger.Warn("debouncer_output_full",
			slog.Int("pending", len(events)),
			slog.Duration("retry_in", d.window))
		d.timer = time.AfterFunc(d.window, d.flush)
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Stop stops the debouncer and closes the output channel. Safe to call
// multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
