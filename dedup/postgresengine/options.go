package postgresengine

import (
	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

// Option defines a functional option for configuring a KeyStore.
type Option func(*KeyStore) error

// WithTableName sets the table name for the KeyStore.
func WithTableName(tableName string) Option {
	return func(ks *KeyStore) error {
		if tableName == "" {
			return dedup.ErrEmptyTableNameSupplied
		}

		ks.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the KeyStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: accepted keys, duplicate detections, durations (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger dedup.Logger) Option {
	return func(ks *KeyStore) error {
		ks.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the KeyStore.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled, enabling unified observability.
func WithContextualLogger(logger dedup.ContextualLogger) Option {
	return func(ks *KeyStore) error {
		ks.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the KeyStore.
// The collector will receive insert durations, duplicate hit counts,
// and database error counts.
func WithMetrics(collector dedup.MetricsCollector) Option {
	return func(ks *KeyStore) error {
		ks.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the KeyStore.
// The collector will receive span creation for conditional insert operations,
// context propagation, and error tracking.
func WithTracing(collector dedup.TracingCollector) Option {
	return func(ks *KeyStore) error {
		ks.tracingCollector = collector
		return nil
	}
}
