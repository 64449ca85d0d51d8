package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

const (
	metricInsertDuration = "dedup_keystore_insert_duration_seconds"
	metricDuplicateHits  = "dedup_keystore_duplicate_hits_total"
	metricStoreErrors    = "dedup_keystore_errors_total"
	spanNameInsert       = "dedup.keystore.insert_if_absent"
	spanAttrOperation    = "operation"
	spanAttrKey          = "idempotency_key"
	spanAttrInserted     = "inserted"
	spanAttrErrorType    = "error_type"
	operationInsert      = "insert_if_absent"
	statusSuccess        = "success"
	statusError          = "error"
	errorTypeBuildQuery  = "build_query"
	errorTypeDatabase    = "database"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if a logger is configured.
func (ks *KeyStore) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	if ks.contextualLogger != nil {
		ks.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
		return
	}

	if ks.logger != nil {
		ks.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (ks *KeyStore) logOperation(ctx context.Context, action string, args ...any) {
	if ks.contextualLogger != nil {
		ks.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if ks.logger != nil {
		ks.logger.Info(logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level if a logger is configured.
func (ks *KeyStore) logWarn(ctx context.Context, message string, args ...any) {
	if ks.contextualLogger != nil {
		ks.contextualLogger.WarnContext(ctx, message, args...)
		return
	}

	if ks.logger != nil {
		ks.logger.Warn(message, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (ks *KeyStore) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if ks.contextualLogger != nil {
		ks.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if ks.logger != nil {
		ks.logger.Error(message, allArgs...)
	}
}

func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// insertTracingObserver encapsulates tracing span lifecycle management for insert operations.
type insertTracingObserver struct {
	ks   *KeyStore
	span dedup.SpanContext
}

// startInsertTracing creates a new tracing observer for conditional insert operations.
func (ks *KeyStore) startInsertTracing(ctx context.Context, key dedup.IdempotencyKey) (*insertTracingObserver, context.Context) {
	if ks.tracingCollector == nil {
		return &insertTracingObserver{ks: ks}, ctx
	}

	newCtx, span := ks.tracingCollector.StartSpan(ctx, spanNameInsert, map[string]string{
		spanAttrOperation: operationInsert,
		spanAttrKey:       key.String(),
	})

	return &insertTracingObserver{ks: ks, span: span}, newCtx
}

// finishSuccess completes the insert tracing span for successful operations.
func (ito *insertTracingObserver) finishSuccess(inserted bool) {
	if ito.span == nil {
		return
	}

	ito.span.SetStatus(statusSuccess)
	ito.span.AddAttribute(spanAttrInserted, fmt.Sprintf("%t", inserted))

	ito.ks.tracingCollector.FinishSpan(ito.span, statusSuccess, map[string]string{
		spanAttrInserted: fmt.Sprintf("%t", inserted),
	})
}

// finishError completes the insert tracing span with error details.
func (ito *insertTracingObserver) finishError(errorType string) {
	if ito.span == nil {
		return
	}

	ito.span.SetStatus(statusError)
	ito.span.AddAttribute(spanAttrErrorType, errorType)

	ito.ks.tracingCollector.FinishSpan(ito.span, statusError, map[string]string{
		spanAttrErrorType: errorType,
	})
}

// insertMetricsObserver encapsulates the metrics collection for insert operations.
type insertMetricsObserver struct {
	ks  *KeyStore
	ctx context.Context
}

// startInsertMetrics creates a new metrics observer for conditional insert operations.
func (ks *KeyStore) startInsertMetrics(ctx context.Context) *insertMetricsObserver {
	return &insertMetricsObserver{ks: ks, ctx: ctx}
}

// recordSuccess records all metrics for a successful insert operation.
func (imo *insertMetricsObserver) recordSuccess(duration time.Duration) {
	imo.recordDuration(duration, statusSuccess)
}

// recordDuplicate records metrics for a duplicate key detection.
func (imo *insertMetricsObserver) recordDuplicate() {
	if imo.ks.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operationInsert}

	if contextual, ok := imo.ks.metricsCollector.(dedup.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(imo.ctx, metricDuplicateHits, labels)
	} else {
		imo.ks.metricsCollector.IncrementCounter(metricDuplicateHits, labels)
	}
}

// recordError records all metrics for a failed insert operation.
func (imo *insertMetricsObserver) recordError(errorType string, duration time.Duration) {
	if imo.ks.metricsCollector == nil {
		return
	}

	if duration > 0 {
		imo.recordDuration(duration, statusError)
	}

	labels := map[string]string{
		spanAttrOperation: operationInsert,
		"status":          statusError,
		spanAttrErrorType: errorType,
	}

	if contextual, ok := imo.ks.metricsCollector.(dedup.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(imo.ctx, metricStoreErrors, labels)
	} else {
		imo.ks.metricsCollector.IncrementCounter(metricStoreErrors, labels)
	}
}

func (imo *insertMetricsObserver) recordDuration(duration time.Duration, status string) {
	if imo.ks.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationInsert,
		"status":          status,
	}

	if contextual, ok := imo.ks.metricsCollector.(dedup.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(imo.ctx, metricInsertDuration, duration, labels)
	} else {
		imo.ks.metricsCollector.RecordDuration(metricInsertDuration, duration, labels)
	}
}
