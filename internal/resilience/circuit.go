// Package resilience provides circuit breakers and retries for calls to
// remote data sources.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/metrics"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets probe calls through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenProbes is the number of successful probes that close the
	// circuit again. Default: 1.
	HalfOpenProbes int

	// ShouldTrip decides whether an error counts as a failure. Nil counts
	// every non-nil error except context cancellation.
	ShouldTrip func(err error) bool
}

// DefaultBreakerConfig returns the defaults used for remote sources.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// Breaker is a circuit breaker guarding one named component. State changes
// are logged and exported as the gridlink_circuit_breaker_state gauge.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probes   int

	now func() time.Time
}

// NewBreaker creates a closed breaker for the named component.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}
	b := &Breaker{name: name, cfg: cfg, state: CircuitClosed, now: time.Now}
	metrics.SetCircuitBreakerState(name, CircuitClosed.String())
	return b
}

// Name returns the component the breaker guards.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call is Execute for functions that return a value.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, eris.Wrapf(err, "resilience: %s", b.name)
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current state, reporting half-open once an open
// circuit's reset timeout has elapsed.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset forces the circuit closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probes = 0
	b.transition(CircuitClosed)
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
		return ErrCircuitOpen
	}
	b.probes = 0
	b.transition(CircuitHalfOpen)
	return nil
}

func (b *Breaker) tripped(err error) bool {
	if err == nil {
		return false
	}
	if b.cfg.ShouldTrip != nil {
		return b.cfg.ShouldTrip(err)
	}
	return !eris.Is(err, context.Canceled)
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped(err) {
		if b.state == CircuitHalfOpen {
			b.probes++
			if b.probes < b.cfg.HalfOpenProbes {
				return
			}
			b.probes = 0
			b.transition(CircuitClosed)
		}
		b.failures = 0
		return
	}

	b.failures++
	if b.state == CircuitHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.openedAt = b.now()
		b.probes = 0
		b.transition(CircuitOpen)
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to CircuitState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	metrics.SetCircuitBreakerState(b.name, to.String())

	log := zap.L().With(zap.String("component", "resilience"), zap.String("breaker", b.name))
	if to == CircuitOpen {
		log.Warn("circuit opened",
			zap.Int("consecutive_failures", b.failures),
			zap.Duration("reset_timeout", b.cfg.ResetTimeout),
		)
		return
	}
	log.Info("circuit state changed", zap.Stringer("from", from), zap.Stringer("to", to))
}

// Breakers hands out one Breaker per component, sharing a config.
type Breakers struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*Breaker
}

// NewBreakers creates an empty registry.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for name, creating it on first use.
func (r *Breakers) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = NewBreaker(name, r.cfg)
		r.breakers[name] = b
	}
	return b
}

// States returns a snapshot of every breaker's state keyed by component.
func (r *Breakers) States() map[string]string {
	r.mu.Lock()
	snapshot := make(map[string]*Breaker, len(r.breakers))
	for name, b := range r.breakers {
		snapshot[name] = b
	}
	r.mu.Unlock()

	out := make(map[string]string, len(snapshot))
	for name, b := range snapshot {
		out[name] = b.State().String()
	}
	return out
}
