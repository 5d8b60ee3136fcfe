package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a breaker's cooldown without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...BreakerOption) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("tika", opts...)
	b.now = clock.now
	return b, clock
}

func fail() (string, error) { return "", errors.New("down") }
func ok() (string, error)   { return "text", nil }

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that tolerates three failures
	b, _ := newTestBreaker(WithMaxFailures(3), WithCooldown(time.Minute))

	// When: three calls fail
	for i := 0; i < 3; i++ {
		_, _ = Guard(b, fail)
	}

	// Then: it is open and the next call is rejected without running
	assert.Equal(t, BreakerOpen, b.State())
	ran := false
	_, err := Guard(b, func() (string, error) {
		ran = true
		return "", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(WithMaxFailures(2))

	_, _ = Guard(b, fail)
	_, _ = Guard(b, ok)
	_, _ = Guard(b, fail)

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_TrialCallAfterCooldown(t *testing.T) {
	// Given: an open breaker
	b, clock := newTestBreaker(WithMaxFailures(1), WithCooldown(time.Minute))
	_, _ = Guard(b, fail)
	require.Equal(t, BreakerOpen, b.State())

	// When: the cooldown passes and the trial call succeeds
	clock.advance(time.Minute)
	got, err := Guard(b, ok)

	// Then: the breaker closes
	require.NoError(t, err)
	assert.Equal(t, "text", got)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	b, clock := newTestBreaker(WithMaxFailures(3), WithCooldown(time.Minute))
	for i := 0; i < 3; i++ {
		_, _ = Guard(b, fail)
	}

	clock.advance(time.Minute)
	_, err := Guard(b, fail)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)

	// A single failed trial call is enough to reopen, and the cooldown restarts.
	assert.Equal(t, BreakerOpen, b.State())
	_, err = Guard(b, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_SingleTrialInFlight(t *testing.T) {
	// Given: a breaker whose cooldown has passed
	b, clock := newTestBreaker(WithMaxFailures(1), WithCooldown(time.Minute))
	_, _ = Guard(b, fail)
	clock.advance(time.Minute)

	// When: a second call arrives while the trial call is running
	var inner error
	_, err := Guard(b, func() (string, error) {
		_, inner = Guard(b, ok)
		return "trial", nil
	})

	// Then: only the trial call runs
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrCircuitOpen)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b, clock := newTestBreaker(WithMaxFailures(1), WithCooldown(time.Minute))
	cancelled := func() (string, error) { return "", context.Canceled }

	// Cancelled calls leave a closed breaker closed.
	_, _ = Guard(b, cancelled)
	assert.Equal(t, BreakerClosed, b.State())

	// A cancelled trial call lets the next call try again.
	_, _ = Guard(b, fail)
	clock.advance(time.Minute)
	_, _ = Guard(b, cancelled)
	assert.Equal(t, BreakerOpen, b.State())
	_, err := Guard(b, ok)
	assert.NoError(t, err)
}

func TestBreaker_ReportsTransitions(t *testing.T) {
	var seen []string
	b, clock := newTestBreaker(WithMaxFailures(1), WithCooldown(time.Minute),
		WithStateChange(func(name string, from, to BreakerState) {
			seen = append(seen, name+":"+from.String()+"->"+to.String())
		}))

	_, _ = Guard(b, fail)
	clock.advance(time.Minute)
	_, _ = Guard(b, ok)

	assert.Equal(t, []string{
		"tika:closed->open",
		"tika:open->half-open",
		"tika:half-open->closed",
	}, seen)
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
