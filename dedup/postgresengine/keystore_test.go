package postgresengine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
	"github.com/AntonStoeckl/dedup-guard-go/testutil/helper"
	"github.com/AntonStoeckl/dedup-guard-go/testutil/postgresengine/helper/postgreswrapper"
)

// The tests in this file need a running PostgreSQL instance with the
// processing_records table and are skipped unless POSTGRES_TEST_DSN is set.

func Test_InsertIfAbsent_InsertsAFreshKey(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	ks := wrapper.GetKeyStore()

	// arrange
	record := givenRecord(t, helper.GivenUniqueKey(t))

	// act
	inserted, err := ks.InsertIfAbsent(ctx, record)

	// assert
	assert.NoError(t, err)
	assert.True(t, inserted, "a fresh key must be inserted")

	// cleanup
	assert.NoError(t, ks.Remove(ctx, record.Key))
}

func Test_InsertIfAbsent_ReportsADuplicateKey(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	ks := wrapper.GetKeyStore()

	// arrange
	record := givenRecord(t, helper.GivenUniqueKey(t))
	_, err := ks.InsertIfAbsent(ctx, record)
	assert.NoError(t, err, "error in arranging test data")

	// act
	inserted, err := ks.InsertIfAbsent(ctx, record)

	// assert
	assert.NoError(t, err)
	assert.False(t, inserted, "a duplicate key must not be inserted again")

	// cleanup
	assert.NoError(t, ks.Remove(ctx, record.Key))
}

func Test_InsertIfAbsent_Concurrent_ExactlyOneInsertWins(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	ks := wrapper.GetKeyStore()

	const numCallers = 20

	// arrange
	record := givenRecord(t, helper.GivenUniqueKey(t))

	var winners atomic.Int64
	var failures atomic.Int64
	var startBarrier, done sync.WaitGroup
	startBarrier.Add(1)

	for i := 0; i < numCallers; i++ {
		done.Add(1)

		go func() {
			defer done.Done()
			startBarrier.Wait()

			inserted, insertErr := ks.InsertIfAbsent(ctx, record)
			if insertErr != nil {
				failures.Add(1)
				return
			}

			if inserted {
				winners.Add(1)
			}
		}()
	}

	// act
	startBarrier.Done()
	done.Wait()

	// assert
	assert.Equal(t, int64(0), failures.Load(), "no caller should see an error")
	assert.Equal(t, int64(1), winners.Load(), "the primary key constraint must arbitrate to one winner")

	// cleanup
	assert.NoError(t, ks.Remove(ctx, record.Key))
}

func Test_Contains_ReflectsInsertedKeys(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	ks := wrapper.GetKeyStore()

	// arrange
	record := givenRecord(t, helper.GivenUniqueKey(t))
	_, err := ks.InsertIfAbsent(ctx, record)
	assert.NoError(t, err, "error in arranging test data")

	// act + assert
	found, err := ks.Contains(ctx, record.Key)
	assert.NoError(t, err)
	assert.True(t, found)

	found, err = ks.Contains(ctx, helper.GivenUniqueKey(t))
	assert.NoError(t, err)
	assert.False(t, found)

	// cleanup
	assert.NoError(t, ks.Remove(ctx, record.Key))
}

func Test_Remove_MakesTheKeyFreshAgain(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	ks := wrapper.GetKeyStore()

	// arrange
	record := givenRecord(t, helper.GivenUniqueKey(t))
	_, err := ks.InsertIfAbsent(ctx, record)
	assert.NoError(t, err, "error in arranging test data")

	// act
	err = ks.Remove(ctx, record.Key)

	// assert
	assert.NoError(t, err)

	inserted, err := ks.InsertIfAbsent(ctx, record)
	assert.NoError(t, err)
	assert.True(t, inserted, "a removed key must be insertable again")

	// cleanup
	assert.NoError(t, ks.Remove(ctx, record.Key))
}

func Test_InsertIfAbsent_When_Context_Is_Cancelled(t *testing.T) {
	// setup
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	ks := wrapper.GetKeyStore()

	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	_, err := ks.InsertIfAbsent(ctx, givenRecord(t, helper.GivenUniqueKey(t)))

	// assert
	assert.ErrorIs(t, err, dedup.ErrStoreUnavailable,
		"a cancelled context must surface as a store failure, not a verdict")
}

func givenRecord(t testing.TB, key dedup.IdempotencyKey) dedup.ProcessingRecord {
	t.Helper()

	record, err := dedup.BuildProcessingRecord(key, time.Now().UTC(), "cart-1234")
	assert.NoError(t, err, "error in arranging test data")

	return record
}
