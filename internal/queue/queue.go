// Package queue holds pending index entries between producers
// (notifications, rebuilds) and the single updater worker.
package queue

import (
	"context"
	"sync"

	"github.com/Aman-CERP/wikindex/internal/entry"
)

// DedupPolicy controls how DequeueAll treats repeated keys.
type DedupPolicy int

const (
	// DedupNone returns every entry in FIFO order.
	DedupNone DedupPolicy = iota
	// DedupKeepLast collapses entries sharing a key to the most recent one,
	// placed where that last occurrence sat.
	DedupKeepLast
)

// ParseDedupPolicy maps a config value to a policy.
func ParseDedupPolicy(s string) DedupPolicy {
	if s == "keep_last" {
		return DedupKeepLast
	}
	return DedupNone
}

// Queue is an unbounded FIFO safe for many producers and one consumer.
type Queue struct {
	mu      sync.Mutex
	items   []*entry.Entry
	policy  DedupPolicy
	notify  chan struct{}
	onDepth func(int)
}

// Option configures a Queue.
type Option func(*Queue)

// WithDedup sets the dedup policy applied by DequeueAll.
func WithDedup(p DedupPolicy) Option {
	return func(q *Queue) { q.policy = p }
}

// WithDepthObserver registers fn to receive the queue length after every
// change. fn is called with the queue lock held and must not block.
func WithDepthObserver(fn func(int)) Option {
	return func(q *Queue) { q.onDepth = fn }
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{notify: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends e. It never blocks. A nil entry is ignored.
func (q *Queue) Enqueue(e *entry.Entry) {
	if e == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, e)
	q.changed()
	q.mu.Unlock()
	q.signal()
}

// EnqueueAll appends entries in order.
func (q *Queue) EnqueueAll(entries []*entry.Entry) {
	q.mu.Lock()
	added := 0
	for _, e := range entries {
		if e != nil {
			q.items = append(q.items, e)
			added++
		}
	}
	q.changed()
	q.mu.Unlock()
	if added > 0 {
		q.signal()
	}
}

// Requeue puts batch back at the front, ahead of anything enqueued since
// it was taken, keeping its internal order.
func (q *Queue) Requeue(batch []*entry.Entry) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	items := make([]*entry.Entry, 0, len(batch)+len(q.items))
	items = append(items, batch...)
	items = append(items, q.items...)
	q.items = items
	q.changed()
	q.mu.Unlock()
	q.signal()
}

// DequeueAll removes and returns every pending entry without blocking.
func (q *Queue) DequeueAll() []*entry.Entry {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.changed()
	q.mu.Unlock()

	if q.policy == DedupKeepLast {
		return keepLast(items)
	}
	return items
}

// Wait blocks until the queue is non-empty or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		if !q.IsEmpty() {
			return nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether nothing is pending.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue) changed() {
	if q.onDepth != nil {
		q.onDepth(len(q.items))
	}
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func keepLast(items []*entry.Entry) []*entry.Entry {
	if len(items) < 2 {
		return items
	}
	last := make(map[entry.Key]int, len(items))
	for i, e := range items {
		last[e.Key()] = i
	}
	if len(last) == len(items) {
		return items
	}
	out := make([]*entry.Entry, 0, len(last))
	for i, e := range items {
		if last[e.Key()] == i {
			out = append(out, e)
		}
	}
	return out
}
