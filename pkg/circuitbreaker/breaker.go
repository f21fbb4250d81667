// Package circuitbreaker stops the portal from hammering a backend that is
// down. It wraps sony/gobreaker with zap logging, OpenTelemetry counters
// and a span per guarded call.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is a breaker state as reported to logs, metrics and readiness.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is wrapped by errors for calls the breaker refused.
var ErrOpen = errors.New("circuit open")

// Config holds circuit breaker configuration
type Config struct {
	Name string
	// HalfOpenProbes is how many calls may test a recovering backend
	HalfOpenProbes uint32
	// Interval clears the counts while closed; zero never clears them
	Interval time.Duration
	// Cooldown is how long the breaker stays open
	Cooldown time.Duration
	// FailureThreshold consecutive failures open the breaker
	FailureThreshold uint32
	// IsFailure decides which errors count against the backend. Nil counts
	// every error except a cancelled caller.
	IsFailure func(error) bool
	// OnStateChange is called after every transition
	OnStateChange func(name string, to State)
}

// DefaultConfig returns the settings used for the MediHope backend. A page
// load issues at most two reads, so consecutive failures are the only
// trip rule.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		HalfOpenProbes:   1,
		Interval:         time.Minute,
		Cooldown:         15 * time.Second,
		FailureThreshold: 5,
	}
}

// CircuitBreaker guards calls to one backend.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger
	tracer trace.Tracer
	notify func(name string, to State)

	calls    metric.Int64Counter
	failures metric.Int64Counter
	refused  metric.Int64Counter
}

// New creates a breaker from cfg
func New(cfg Config, logger *zap.Logger) (*CircuitBreaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		return nil, fmt.Errorf("breaker %s: failure threshold must be positive", cfg.Name)
	}
	isFailure := cfg.IsFailure
	if isFailure == nil {
		isFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}

	c := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
		tracer: otel.Tracer("github.com/medihope/portal/circuitbreaker"),
		notify: cfg.OnStateChange,
	}

	meter := otel.Meter("github.com/medihope/portal/circuitbreaker")
	var err error
	if c.calls, err = meter.Int64Counter("circuit_breaker_requests_total",
		metric.WithDescription("Calls offered to the circuit breaker")); err != nil {
		return nil, fmt.Errorf("breaker %s: %w", cfg.Name, err)
	}
	if c.failures, err = meter.Int64Counter("circuit_breaker_failures_total",
		metric.WithDescription("Calls counted as backend failures")); err != nil {
		return nil, fmt.Errorf("breaker %s: %w", cfg.Name, err)
	}
	if c.refused, err = meter.Int64Counter("circuit_breaker_rejected_total",
		metric.WithDescription("Calls refused while the circuit was open")); err != nil {
		return nil, fmt.Errorf("breaker %s: %w", cfg.Name, err)
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenProbes,
		Interval:    cfg.Interval,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isFailure(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			c.transition(stateOf(from), stateOf(to))
		},
	})
	return c, nil
}

// Do runs fn through the breaker. A refused call returns an error
// wrapping ErrOpen without calling fn.
func Do[T any](ctx context.Context, c *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, span := c.tracer.Start(ctx, "circuit_breaker "+c.name,
		trace.WithAttributes(
			attribute.String("breaker.name", c.name),
			attribute.String("breaker.state", string(c.State())),
		))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("name", c.name))
	c.calls.Add(ctx, 1, attrs)

	out, err := c.cb.Execute(func() (interface{}, error) { return fn(ctx) })
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.refused.Add(ctx, 1, attrs)
		span.SetAttributes(attribute.Bool("breaker.refused", true))
		return zero, fmt.Errorf("%w: %s", ErrOpen, c.name)
	case err != nil:
		c.failures.Add(ctx, 1, attrs)
		span.RecordError(err)
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// Execute is Do for callers that do not need a typed result.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := Do(ctx, c, func(ctx context.Context) (struct{}, error) { return struct{}{}, fn(ctx) })
	return err
}

// State returns the current state
func (c *CircuitBreaker) State() State { return stateOf(c.cb.State()) }

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string { return c.name }

func (c *CircuitBreaker) transition(from, to State) {
	log := c.logger.Info
	if to == StateOpen {
		log = c.logger.Warn
	}
	log("circuit breaker state changed",
		zap.String("breaker", c.name),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if c.notify != nil {
		c.notify(c.name, to)
	}
}

func stateOf(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// HealthStatus summarizes a breaker for readiness checks
type HealthStatus struct {
	Name                string `json:"name"`
	State               State  `json:"state"`
	Requests            uint32 `json:"requests"`
	ConsecutiveFailures uint32 `json:"consecutiveFailures"`
	Healthy             bool   `json:"healthy"`
}

// Health reports the breaker healthy unless it is open. A half-open
// breaker is letting probes through and counts as healthy.
func (c *CircuitBreaker) Health() HealthStatus {
	counts := c.cb.Counts()
	state := c.State()
	return HealthStatus{
		Name:                c.name,
		State:               state,
		Requests:            counts.Requests,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		Healthy:             state != StateOpen,
	}
}
