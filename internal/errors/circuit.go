package errors

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown has passed.
	BreakerOpen
	// BreakerHalfOpen lets a single trial call through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker fails fast against a collaborator that keeps erroring, such as a
// remote extraction server that is down. After maxFailures consecutive
// failures it rejects calls for the cooldown, then admits one trial call: a
// successful trial closes it, a failed one reopens it.
//
// Cancellation by the caller is not counted as a failure.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	onChange    func(name string, from, to BreakerState)
	now         func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithMaxFailures sets how many consecutive failures open the breaker.
func WithMaxFailures(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxFailures = n
		}
	}
}

// WithCooldown sets how long an open breaker rejects calls.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithStateChange registers a callback run on every transition, outside the
// breaker's lock.
func WithStateChange(fn func(name string, from, to BreakerState)) BreakerOption {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// NewBreaker returns a closed breaker. Defaults: 5 failures, 30s cooldown.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:        name,
		maxFailures: 5,
		cooldown:    30 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// acquire admits or rejects one call. Only one caller wins the move from
// open to half-open.
func (b *Breaker) acquire() error {
	b.mu.Lock()
	if b.state == BreakerClosed {
		b.mu.Unlock()
		return nil
	}
	if b.state == BreakerHalfOpen || b.now().Sub(b.openedAt) < b.cooldown {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.state = BreakerHalfOpen
	b.mu.Unlock()

	b.notify(BreakerOpen, BreakerHalfOpen)
	return nil
}

// record feeds the outcome of an admitted call back into the breaker.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	switch {
	case errors.Is(err, context.Canceled):
		// An abandoned trial leaves the cooldown expired, so the next call
		// tries again.
		if from == BreakerHalfOpen {
			b.state = BreakerOpen
		}
	case err == nil:
		b.failures = 0
		b.state = BreakerClosed
	default:
		b.failures++
		if from == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.state = BreakerOpen
			b.openedAt = b.now()
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) notify(from, to BreakerState) {
	if from != to && b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// Guard runs fn through b. A rejected call returns ErrCircuitOpen without
// running fn.
func Guard[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if err := b.acquire(); err != nil {
		var zero T
		return zero, err
	}
	result, err := fn()
	b.record(err)
	return result, err
}
