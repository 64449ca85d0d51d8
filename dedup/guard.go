package dedup

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	logMsgDecisionMade       = "guard decision made"
	logMsgStoreCallFailed    = "key store call failed"
	logMsgOperation          = "guard operation: "
	logAttrError             = "error"
	logAttrKey               = "idempotency_key"
	logAttrPartition         = "partition"
	logAttrIsNew             = "is_new"
	logAttrDurationMS        = "duration_ms"
	metricDecisionDuration   = "dedup_guard_decision_duration_seconds"
	metricDuplicatesDetected = "dedup_guard_duplicates_detected_total"
	metricStoreErrors        = "dedup_guard_store_errors_total"
	spanNameIsNew            = "dedup.guard.is_new"
	spanAttrOperation        = "operation"
	spanAttrKey              = "idempotency_key"
	spanAttrIsNew            = "is_new"
	spanAttrErrorType        = "error_type"
	operationIsNew           = "is_new"
	statusSuccess            = "success"
	statusError              = "error"
	errorTypeStore           = "store_unavailable"
	errorTypeValidation      = "validation"
)

// Guard decides, for each incoming idempotency key, whether the associated
// action is new (must run) or a duplicate (must be skipped), without an
// intermediate read-then-write gap.
//
// The Guard owns no persistent state itself - it is a stateless coordinator
// over the KeyStore and can be shared freely across goroutines and service
// instances.
type Guard struct {
	store            KeyStore
	storeTimeout     time.Duration
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewGuard creates a new Guard over the given KeyStore with optional configuration.
func NewGuard(store KeyStore, options ...Option) (Guard, error) {
	if store == nil {
		return Guard{}, ErrNilKeyStore
	}

	g := Guard{store: store}

	for _, option := range options {
		if err := option(&g); err != nil {
			return Guard{}, err
		}
	}

	return g, nil
}

// IsNew atomically records the key as accepted for processing and reports
// whether the caller should proceed.
//
// It returns true exactly once per key: the caller that receives true must
// perform the side-effecting action, every caller that receives false must
// skip it. Concurrent callers racing on the same fresh key see exactly one
// true result.
//
// On a store failure the error wraps ErrStoreUnavailable and carries no
// verdict; the caller should retry the whole logical request with the same
// key or fail it outward. The guard never guesses "probably inserted".
func (g Guard) IsNew(ctx context.Context, key IdempotencyKey) (bool, error) {
	return g.decide(ctx, key, "")
}

// IsNewInPartition behaves like IsNew and additionally stamps the processing
// record with the partition that owns the side effect. The partition id is
// informational on the record; ordering within a partition is enforced by
// the ordering package, not by the guard.
func (g Guard) IsNewInPartition(ctx context.Context, key IdempotencyKey, partition PartitionID) (bool, error) {
	return g.decide(ctx, key, partition)
}

func (g Guard) decide(ctx context.Context, key IdempotencyKey, partition PartitionID) (bool, error) {
	ctx, span := g.startIsNewSpan(ctx, key)

	record, buildErr := BuildProcessingRecord(key, time.Now(), partition)
	if buildErr != nil {
		g.finishIsNewSpanError(span, errorTypeValidation)
		return false, buildErr
	}

	if g.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.storeTimeout)
		defer cancel()
	}

	start := time.Now()
	inserted, insertErr := g.store.InsertIfAbsent(ctx, record)
	duration := time.Since(start)

	if insertErr != nil {
		insertErr = g.asStoreUnavailable(insertErr)
		g.logErrorContext(ctx, logMsgStoreCallFailed, insertErr, logAttrKey, key.String())
		g.recordErrorMetrics(ctx, duration)
		g.finishIsNewSpanError(span, errorTypeStore)

		return false, insertErr
	}

	if !inserted {
		g.recordDuplicateMetrics(ctx)
	}

	g.recordDecisionMetrics(ctx, duration)

	logArgs := []any{
		logAttrKey, key.String(),
		logAttrIsNew, inserted,
		logAttrDurationMS, g.toMilliseconds(duration),
	}
	if partition != "" {
		logArgs = append(logArgs, logAttrPartition, string(partition))
	}
	g.logOperationContext(ctx, logMsgDecisionMade, logArgs...)

	g.finishIsNewSpanSuccess(span, inserted)

	return inserted, nil
}

// asStoreUnavailable makes sure every store failure surfaced by the guard wraps
// ErrStoreUnavailable, including context deadlines from the bounded store timeout.
func (g Guard) asStoreUnavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}

	return errors.Join(ErrStoreUnavailable, err)
}

func (g Guard) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// logOperationContext logs operational information, preferring the contextual logger.
func (g Guard) logOperationContext(ctx context.Context, action string, args ...any) {
	if g.contextualLogger != nil {
		g.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if g.logger != nil {
		g.logger.Info(logMsgOperation+action, args...)
	}
}

// logErrorContext logs error information, preferring the contextual logger.
func (g Guard) logErrorContext(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if g.contextualLogger != nil {
		g.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if g.logger != nil {
		g.logger.Error(message, allArgs...)
	}
}

func (g Guard) recordDecisionMetrics(ctx context.Context, duration time.Duration) {
	if g.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationIsNew,
		"status":          statusSuccess,
	}

	if contextual, ok := g.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricDecisionDuration, duration, labels)
	} else {
		g.metricsCollector.RecordDuration(metricDecisionDuration, duration, labels)
	}
}

func (g Guard) recordDuplicateMetrics(ctx context.Context) {
	if g.metricsCollector == nil {
		return
	}

	labels := map[string]string{spanAttrOperation: operationIsNew}

	if contextual, ok := g.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricDuplicatesDetected, labels)
	} else {
		g.metricsCollector.IncrementCounter(metricDuplicatesDetected, labels)
	}
}

func (g Guard) recordErrorMetrics(ctx context.Context, duration time.Duration) {
	if g.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationIsNew,
		"status":          statusError,
		spanAttrErrorType: errorTypeStore,
	}

	if contextual, ok := g.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metricDecisionDuration, duration, labels)
		contextual.IncrementCounterContext(ctx, metricStoreErrors, labels)
	} else {
		g.metricsCollector.RecordDuration(metricDecisionDuration, duration, labels)
		g.metricsCollector.IncrementCounter(metricStoreErrors, labels)
	}
}

func (g Guard) startIsNewSpan(ctx context.Context, key IdempotencyKey) (context.Context, SpanContext) {
	if g.tracingCollector == nil {
		return ctx, nil
	}

	return g.tracingCollector.StartSpan(ctx, spanNameIsNew, map[string]string{
		spanAttrOperation: operationIsNew,
		spanAttrKey:       key.String(),
	})
}

func (g Guard) finishIsNewSpanSuccess(span SpanContext, isNew bool) {
	if g.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(statusSuccess)
	span.AddAttribute(spanAttrIsNew, fmt.Sprintf("%t", isNew))

	g.tracingCollector.FinishSpan(span, statusSuccess, map[string]string{
		spanAttrIsNew: fmt.Sprintf("%t", isNew),
	})
}

func (g Guard) finishIsNewSpanError(span SpanContext, errorType string) {
	if g.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(statusError)
	span.AddAttribute(spanAttrErrorType, errorType)

	g.tracingCollector.FinishSpan(span, statusError, map[string]string{
		spanAttrErrorType: errorType,
	})
}
