package llm

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// ErrCircuitOpen is returned without contacting the provider while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState is the breaker's current mode.
type CircuitBreakerState int

const (
	// StateClosed passes every request through.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects requests until the cooldown expires.
	StateOpen
	// StateHalfOpen lets a single probe through to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerMetrics observes breaker behavior.
type CircuitBreakerMetrics interface {
	RecordState(state CircuitBreakerState)
	RecordTrip()
	RecordSuccess()
	RecordFailure()
}

// CircuitBreaker opens after maxFailures consecutive failures and, once the
// cooldown has passed, admits one probe whose outcome closes or reopens it.
// Only failures that IsRetryable counts as transient trip the breaker; a
// rejected prompt says nothing about provider health.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	openedAt         time.Time
	probing          bool
	now              func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldownDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      max(maxFailures, 1),
		cooldownDuration: cooldownDuration,
		now:              time.Now,
	}
}

// Call runs fn unless the breaker is open. fn runs without the breaker's
// lock held so concurrent requests are not serialized.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldownDuration {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// A caller cancellation says nothing either way; the next call probes
	// again.
	if errors.Is(err, context.Canceled) {
		if cb.state == StateHalfOpen {
			cb.state = StateOpen
		}
		cb.probing = false
		return
	}

	if err == nil || !IsRetryable(err) {
		cb.failureCount = 0
		cb.probing = false
		cb.state = StateClosed
		return
	}

	cb.failureCount++
	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
	cb.probing = false
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerLLM struct {
	next    CoreLLM
	cb      *CircuitBreaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware guards the provider with a breaker that opens
// after maxFailures consecutive transient failures for cooldown.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics is CircuitBreakerMiddleware reporting
// to metrics, which may be nil.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb, metrics: metrics}
	}
}

func (c *circuitBreakerLLM) DoRequest(ctx context.Context, req Request) (string, int, int, error) {
	var response string
	var tokensIn, tokensOut int

	before := c.cb.GetState()
	err := c.cb.Call(func() error {
		var err error
		response, tokensIn, tokensOut, err = c.next.DoRequest(ctx, req)
		return err
	})

	if c.metrics != nil {
		after := c.cb.GetState()
		switch {
		case err == nil:
			c.metrics.RecordSuccess()
		case errors.Is(err, ErrCircuitOpen):
		default:
			c.metrics.RecordFailure()
		}
		if after == StateOpen && before != StateOpen {
			c.metrics.RecordTrip()
		}
		c.metrics.RecordState(after)
	}

	return response, tokensIn, tokensOut, err
}

func (c *circuitBreakerLLM) GetModel() string  { return c.next.GetModel() }
func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }

// collectorBreakerMetrics reports breaker activity through a
// ports.MetricsCollector.
type collectorBreakerMetrics struct {
	collector ports.MetricsCollector
	labels    map[string]string
}

// NewCollectorBreakerMetrics adapts collector to CircuitBreakerMetrics,
// labelling every sample with provider.
func NewCollectorBreakerMetrics(collector ports.MetricsCollector, provider string) CircuitBreakerMetrics {
	return &collectorBreakerMetrics{
		collector: collector,
		labels:    map[string]string{"provider": provider},
	}
}

func (m *collectorBreakerMetrics) RecordState(state CircuitBreakerState) {
	m.collector.RecordGauge("llm_circuit_breaker_state", float64(state), m.labels)
}

func (m *collectorBreakerMetrics) RecordTrip() {
	m.collector.RecordCounter("llm_circuit_breaker_trips_total", 1, m.labels)
}

func (m *collectorBreakerMetrics) RecordSuccess() {
	m.collector.RecordCounter("llm_circuit_breaker_requests_total", 1, withLabel(m.labels, "result", "success"))
}

func (m *collectorBreakerMetrics) RecordFailure() {
	m.collector.RecordCounter("llm_circuit_breaker_requests_total", 1, withLabel(m.labels, "result", "failure"))
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := maps.Clone(labels)
	out[key] = value
	return out
}
