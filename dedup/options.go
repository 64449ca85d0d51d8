package dedup

import (
	"errors"
	"time"
)

// ErrNegativeStoreTimeout is returned when a negative store timeout is supplied.
var ErrNegativeStoreTimeout = errors.New("negative store timeout supplied")

// Option defines a functional option for configuring a Guard.
type Option func(*Guard) error

// WithStoreTimeout bounds every key store call made by the guard.
//
// A timed-out call is surfaced as ErrStoreUnavailable, never as a definitive
// duplicate/non-duplicate answer. A zero timeout leaves the caller's context
// deadline in charge.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(g *Guard) error {
		if timeout < 0 {
			return ErrNegativeStoreTimeout
		}

		g.storeTimeout = timeout

		return nil
	}
}

// WithLogger sets the logger for the Guard.
//
// Info level: decision outcomes with durations (production-safe)
// Error level: store failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(g *Guard) error {
		g.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Guard.
// When both a Logger and a ContextualLogger are configured, the contextual
// logger wins, enabling automatic trace/span correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(g *Guard) error {
		g.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Guard.
// The collector will receive decision durations, duplicate detections,
// and store error counts.
func WithMetrics(collector MetricsCollector) Option {
	return func(g *Guard) error {
		g.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Guard.
// The collector will receive span creation for decision operations,
// context propagation, and error tracking.
func WithTracing(collector TracingCollector) Option {
	return func(g *Guard) error {
		g.tracingCollector = collector
		return nil
	}
}
