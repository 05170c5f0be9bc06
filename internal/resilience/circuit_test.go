package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(_ context.Context) error    { return errBoom }
func succeed(_ context.Context) error { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, reset time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("test", BreakerConfig{FailureThreshold: threshold, ResetTimeout: reset})
	b.now = clock.Now
	return b, clock
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	require.NoError(t, b.Execute(context.Background(), succeed))
	assert.Equal(t, CircuitClosed, b.State())
	assert.Equal(t, "test", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	for range 3 {
		assert.ErrorIs(t, b.Execute(context.Background(), fail), errBoom)
	}
	assert.Equal(t, CircuitOpen, b.State())

	err := b.Execute(context.Background(), func(_ context.Context) error {
		t.Fatal("must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)
	require.NoError(t, b.Execute(context.Background(), succeed))
	assert.Zero(t, b.Failures())

	_ = b.Execute(context.Background(), fail)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	b, clock := newTestBreaker(1, 30*time.Second)
	_ = b.Execute(context.Background(), fail)
	require.Equal(t, CircuitOpen, b.State())

	clock.Advance(31 * time.Second)
	assert.Equal(t, CircuitHalfOpen, b.State())

	require.NoError(t, b.Execute(context.Background(), succeed))
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(2, 30*time.Second)
	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)

	clock.Advance(30 * time.Second)
	_ = b.Execute(context.Background(), fail)
	assert.Equal(t, CircuitOpen, b.State())

	clock.Advance(10 * time.Second)
	assert.ErrorIs(t, b.Execute(context.Background(), succeed), ErrCircuitOpen)
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	err := b.Execute(context.Background(), func(_ context.Context) error {
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_CustomShouldTrip(t *testing.T) {
	b := NewBreaker("custom", BreakerConfig{
		FailureThreshold: 1,
		ShouldTrip:       IsTransient,
	})
	_ = b.Execute(context.Background(), fail)
	assert.Equal(t, CircuitClosed, b.State())

	_ = b.Execute(context.Background(), func(_ context.Context) error {
		return NewTransientError(errBoom, 503)
	})
	assert.Equal(t, CircuitOpen, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Hour)
	_ = b.Execute(context.Background(), fail)
	require.Equal(t, CircuitOpen, b.State())

	b.Reset()
	assert.Equal(t, CircuitClosed, b.State())
	assert.Zero(t, b.Failures())
}

func TestCall_ReturnsValue(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	n, err := Call(context.Background(), b, func(_ context.Context) (int, error) {
		return 67, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 67, n)
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker("defaults", BreakerConfig{})
	assert.Equal(t, DefaultBreakerConfig().FailureThreshold, b.cfg.FailureThreshold)
	assert.Equal(t, DefaultBreakerConfig().ResetTimeout, b.cfg.ResetTimeout)
	assert.Equal(t, 1, b.cfg.HalfOpenProbes)
}

func TestBreakers_GetAndStates(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})

	boundary := r.Get("boundary")
	assert.Same(t, boundary, r.Get("boundary"))
	_ = boundary.Execute(context.Background(), fail)
	r.Get("tiger")

	assert.Equal(t, map[string]string{"boundary": "open", "tiger": "closed"}, r.States())
}

func TestBreakers_ConcurrentGet(t *testing.T) {
	r := NewBreakers(DefaultBreakerConfig())
	var wg sync.WaitGroup
	got := make([]*Breaker, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = r.Get("shared")
		}()
	}
	wg.Wait()
	for _, b := range got {
		assert.Same(t, got[0], b)
	}
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
