package dedup_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/dedup-guard-go/dedup"
	"github.com/AntonStoeckl/dedup-guard-go/dedup/memoryengine"
	"github.com/AntonStoeckl/dedup-guard-go/testutil/helper"
	"github.com/AntonStoeckl/dedup-guard-go/testutil/keystorespy"
	"github.com/AntonStoeckl/dedup-guard-go/testutil/observability/testdoubles"
)

func Test_NewGuard_RejectsNilStore(t *testing.T) {
	// act
	_, err := NewGuard(nil)

	// assert
	assert.ErrorIs(t, err, ErrNilKeyStore)
}

func Test_NewGuard_RejectsNegativeStoreTimeout(t *testing.T) {
	// act
	_, err := NewGuard(memoryengine.NewKeyStore(), WithStoreTimeout(-time.Second))

	// assert
	assert.ErrorIs(t, err, ErrNegativeStoreTimeout)
}

func Test_IsNew_ReturnsTrueOnce_ThenFalseForever(t *testing.T) {
	// setup
	ctx := context.Background()
	guard, err := NewGuard(memoryengine.NewKeyStore())
	assert.NoError(t, err, "creating the guard failed")

	// arrange
	key := helper.GivenUniqueKey(t)

	// act + assert
	isNew, err := guard.IsNew(ctx, key)
	assert.NoError(t, err)
	assert.True(t, isNew, "first decision for a fresh key must be true")

	for i := 0; i < 5; i++ {
		isNew, err = guard.IsNew(ctx, key)
		assert.NoError(t, err)
		assert.False(t, isNew, "every later decision for the same key must be false")
	}
}

func Test_IsNew_RejectsEmptyKey(t *testing.T) {
	// setup
	guard, err := NewGuard(memoryengine.NewKeyStore())
	assert.NoError(t, err, "creating the guard failed")

	// act
	_, err = guard.IsNew(context.Background(), "")

	// assert
	assert.ErrorIs(t, err, ErrEmptyIdempotencyKey)
}

func Test_IsNew_Concurrent_ExactlyOneCallerWins(t *testing.T) {
	// setup
	ctx := context.Background()
	guard, err := NewGuard(memoryengine.NewKeyStore())
	assert.NoError(t, err, "creating the guard failed")

	const numCallers = 100

	// arrange
	key := helper.GivenUniqueKey(t)

	var winners atomic.Int64
	var failures atomic.Int64
	var startBarrier, done sync.WaitGroup
	startBarrier.Add(1)

	for i := 0; i < numCallers; i++ {
		done.Add(1)

		go func() {
			defer done.Done()
			startBarrier.Wait()

			isNew, decideErr := guard.IsNew(ctx, key)
			if decideErr != nil {
				failures.Add(1)
				return
			}

			if isNew {
				winners.Add(1)
			}
		}()
	}

	// act
	startBarrier.Done()
	done.Wait()

	// assert
	assert.Equal(t, int64(0), failures.Load(), "no caller should see an error")
	assert.Equal(t, int64(1), winners.Load(), "exactly one caller must receive true")
}

func Test_IsNew_When_StoreIsUnavailable_ReturnsNoVerdict_AndKeyStaysFresh(t *testing.T) {
	// setup
	ctx := context.Background()
	spy := keystorespy.New(memoryengine.NewKeyStore())
	guard, err := NewGuard(spy)
	assert.NoError(t, err, "creating the guard failed")

	// arrange
	key := helper.GivenUniqueKey(t)
	spy.FailInsertsWith(errors.New("connection refused"), 1)

	// act
	_, err = guard.IsNew(ctx, key)

	// assert
	assert.ErrorIs(t, err, ErrStoreUnavailable, "store failures must surface as ErrStoreUnavailable")

	// a failed decision must not consume the key, a retry must still win
	isNew, retryErr := guard.IsNew(ctx, key)
	assert.NoError(t, retryErr)
	assert.True(t, isNew, "the key must still be fresh after a failed decision")
}

func Test_IsNew_When_StoreErrorAlreadyWrapsStoreUnavailable_DoesNotDoubleWrap(t *testing.T) {
	// setup
	ctx := context.Background()
	spy := keystorespy.New(memoryengine.NewKeyStore())
	guard, err := NewGuard(spy)
	assert.NoError(t, err, "creating the guard failed")

	// arrange
	cause := errors.New("connection refused")
	spy.FailInsertsWith(errors.Join(ErrStoreUnavailable, cause), 1)

	// act
	_, err = guard.IsNew(ctx, helper.GivenUniqueKey(t))

	// assert
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause, "the original cause must stay visible")
}

func Test_IsNew_When_StoreTimeout_Expires(t *testing.T) {
	// setup
	guard, err := NewGuard(&blockingKeyStore{}, WithStoreTimeout(10*time.Millisecond))
	assert.NoError(t, err, "creating the guard failed")

	// act
	_, err = guard.IsNew(context.Background(), helper.GivenUniqueKey(t))

	// assert
	assert.ErrorIs(t, err, ErrStoreUnavailable, "an expired store timeout must surface as ErrStoreUnavailable")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_IsNewInPartition_DeduplicatesAcrossPartitions(t *testing.T) {
	// setup
	ctx := context.Background()
	guard, err := NewGuard(memoryengine.NewKeyStore())
	assert.NoError(t, err, "creating the guard failed")

	// arrange
	key := helper.GivenUniqueKey(t)

	// act + assert
	isNew, err := guard.IsNewInPartition(ctx, key, "cart-1")
	assert.NoError(t, err)
	assert.True(t, isNew)

	// the key identifies the logical request, the partition is metadata
	isNew, err = guard.IsNewInPartition(ctx, key, "cart-2")
	assert.NoError(t, err)
	assert.False(t, isNew, "the same key must be a duplicate regardless of partition")
}

func Test_IsNew_RecordsMetrics(t *testing.T) {
	// setup
	ctx := context.Background()
	metricsSpy := testdoubles.NewMetricsCollectorSpy()
	guard, err := NewGuard(memoryengine.NewKeyStore(), WithMetrics(metricsSpy))
	assert.NoError(t, err, "creating the guard failed")

	// arrange
	key := helper.GivenUniqueKey(t)

	// act
	_, _ = guard.IsNew(ctx, key)
	_, _ = guard.IsNew(ctx, key)

	// assert
	assert.Equal(t, 2, metricsSpy.DurationCount("dedup_guard_decision_duration_seconds"),
		"every decision should record its duration")
	assert.Equal(t, 1, metricsSpy.CounterCount("dedup_guard_duplicates_detected_total"),
		"only the second decision is a duplicate")
}

func Test_IsNew_RecordsErrorMetrics_OnStoreFailure(t *testing.T) {
	// setup
	ctx := context.Background()
	metricsSpy := testdoubles.NewMetricsCollectorSpy()
	spy := keystorespy.New(memoryengine.NewKeyStore())
	guard, err := NewGuard(spy, WithMetrics(metricsSpy))
	assert.NoError(t, err, "creating the guard failed")

	// arrange
	spy.FailInsertsWith(errors.New("connection refused"), 1)

	// act
	_, _ = guard.IsNew(ctx, helper.GivenUniqueKey(t))

	// assert
	assert.Equal(t, 1, metricsSpy.CounterCount("dedup_guard_store_errors_total"))
}

func Test_IsNew_EmitsSpans(t *testing.T) {
	// setup
	ctx := context.Background()
	tracingSpy := testdoubles.NewTracingCollectorSpy()
	guard, err := NewGuard(memoryengine.NewKeyStore(), WithTracing(tracingSpy))
	assert.NoError(t, err, "creating the guard failed")

	// act
	_, _ = guard.IsNew(ctx, helper.GivenUniqueKey(t))

	// assert
	spans := tracingSpy.GetSpanRecords()
	assert.Len(t, spans, 1)
	assert.Equal(t, "dedup.guard.is_new", spans[0].Name)
	assert.Equal(t, "success", spans[0].Status)
	assert.True(t, spans[0].Finished, "the span must be finished")
	assert.Equal(t, "true", spans[0].EndAttributes["is_new"])
}

func Test_IsNew_LogsDecisions(t *testing.T) {
	// setup
	ctx := context.Background()
	loggerSpy := testdoubles.NewLoggerSpy()
	guard, err := NewGuard(memoryengine.NewKeyStore(), WithLogger(loggerSpy))
	assert.NoError(t, err, "creating the guard failed")

	// act
	_, _ = guard.IsNew(ctx, helper.GivenUniqueKey(t))

	// assert
	assert.True(t, loggerSpy.HasLog("info", "guard decision made"))
}

func Test_IsNewInPartition_LogsThePartition(t *testing.T) {
	// setup
	ctx := context.Background()
	loggerSpy := testdoubles.NewLoggerSpy()
	guard, err := NewGuard(memoryengine.NewKeyStore(), WithLogger(loggerSpy))
	assert.NoError(t, err, "creating the guard failed")

	// act
	_, _ = guard.IsNewInPartition(ctx, helper.GivenUniqueKey(t), "cart-4711")

	// assert
	assert.True(t, recordHasAttr(loggerSpy.GetRecords(), "guard decision made", "partition", "cart-4711"),
		"the decision log must carry the partition")
}

func Test_IsNew_DoesNotLogAPartition(t *testing.T) {
	// setup
	ctx := context.Background()
	loggerSpy := testdoubles.NewLoggerSpy()
	guard, err := NewGuard(memoryengine.NewKeyStore(), WithLogger(loggerSpy))
	assert.NoError(t, err, "creating the guard failed")

	// act
	_, _ = guard.IsNew(ctx, helper.GivenUniqueKey(t))

	// assert
	for _, record := range loggerSpy.GetRecords() {
		for i := 0; i+1 < len(record.Args); i += 2 {
			assert.NotEqual(t, "partition", record.Args[i], "an unpartitioned decision must not log a partition")
		}
	}
}

func Test_IsNew_LogsStoreFailures(t *testing.T) {
	// setup
	ctx := context.Background()
	loggerSpy := testdoubles.NewLoggerSpy()
	spy := keystorespy.New(memoryengine.NewKeyStore())
	guard, err := NewGuard(spy, WithContextualLogger(loggerSpy))
	assert.NoError(t, err, "creating the guard failed")

	// arrange
	spy.FailInsertsWith(errors.New("connection refused"), 1)

	// act
	_, _ = guard.IsNew(ctx, helper.GivenUniqueKey(t))

	// assert
	assert.True(t, loggerSpy.HasLog("error", "key store call failed"))
}

// recordHasAttr reports whether a captured log record with the given message
// part carries the attribute key/value pair.
func recordHasAttr(records []testdoubles.SpyLogRecord, messagePart, attrKey, attrValue string) bool {
	for _, record := range records {
		if !strings.Contains(record.Message, messagePart) {
			continue
		}

		for i := 0; i+1 < len(record.Args); i += 2 {
			if record.Args[i] == attrKey && record.Args[i+1] == attrValue {
				return true
			}
		}
	}

	return false
}

// blockingKeyStore blocks until the context expires, to exercise the store timeout.
type blockingKeyStore struct{}

func (b *blockingKeyStore) InsertIfAbsent(ctx context.Context, _ ProcessingRecord) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (b *blockingKeyStore) Contains(ctx context.Context, _ IdempotencyKey) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (b *blockingKeyStore) Remove(ctx context.Context, _ IdempotencyKey) error {
	<-ctx.Done()
	return ctx.Err()
}
