package memoryengine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
	. "github.com/AntonStoeckl/dedup-guard-go/dedup/memoryengine"
	"github.com/AntonStoeckl/dedup-guard-go/testutil/helper"
)

func Test_InsertIfAbsent_InsertsAFreshKey(t *testing.T) {
	// setup
	ctx := context.Background()
	ks := NewKeyStore()

	// arrange
	record := givenRecord(t, helper.GivenUniqueKey(t))

	// act
	inserted, err := ks.InsertIfAbsent(ctx, record)

	// assert
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 1, ks.Size())
}

func Test_InsertIfAbsent_ReportsADuplicateKey(t *testing.T) {
	// setup
	ctx := context.Background()
	ks := NewKeyStore()

	// arrange
	record := givenRecord(t, helper.GivenUniqueKey(t))
	_, err := ks.InsertIfAbsent(ctx, record)
	assert.NoError(t, err, "error in arranging test data")

	// act
	inserted, err := ks.InsertIfAbsent(ctx, record)

	// assert
	assert.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, ks.Size())
}

func Test_InsertIfAbsent_RejectsEmptyKey(t *testing.T) {
	// setup
	ks := NewKeyStore()

	// act
	_, err := ks.InsertIfAbsent(context.Background(), dedup.ProcessingRecord{})

	// assert
	assert.ErrorIs(t, err, dedup.ErrEmptyIdempotencyKey)
}

func Test_InsertIfAbsent_Concurrent_ExactlyOneInsertWins(t *testing.T) {
	// setup
	ctx := context.Background()
	ks := NewKeyStore()

	const numCallers = 100

	// arrange
	record := givenRecord(t, helper.GivenUniqueKey(t))

	var winners atomic.Int64
	var startBarrier, done sync.WaitGroup
	startBarrier.Add(1)

	for i := 0; i < numCallers; i++ {
		done.Add(1)

		go func() {
			defer done.Done()
			startBarrier.Wait()

			inserted, insertErr := ks.InsertIfAbsent(ctx, record)
			assert.NoError(t, insertErr)

			if inserted {
				winners.Add(1)
			}
		}()
	}

	// act
	startBarrier.Done()
	done.Wait()

	// assert
	assert.Equal(t, int64(1), winners.Load(), "exactly one insert must win")
	assert.Equal(t, 1, ks.Size())
}

func Test_Contains_ReflectsInsertedKeys(t *testing.T) {
	// setup
	ctx := context.Background()
	ks := NewKeyStore()

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
}

func Test_Contains_RejectsEmptyKey(t *testing.T) {
	// setup
	ks := NewKeyStore()

	// act
	_, err := ks.Contains(context.Background(), "")

	// assert
	assert.ErrorIs(t, err, dedup.ErrEmptyIdempotencyKey)
}

func Test_Remove_MakesTheKeyFreshAgain(t *testing.T) {
	// setup
	ctx := context.Background()
	ks := NewKeyStore()

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
}

func Test_Remove_IsIdempotent(t *testing.T) {
	// setup
	ks := NewKeyStore()

	// act
	err := ks.Remove(context.Background(), helper.GivenUniqueKey(t))

	// assert
	assert.NoError(t, err, "removing an absent key is not an error")
}

func givenRecord(t testing.TB, key dedup.IdempotencyKey) dedup.ProcessingRecord {
	t.Helper()

	record, err := dedup.BuildProcessingRecordWithoutPartition(key, time.Unix(0, 0).UTC())
	assert.NoError(t, err, "error in arranging test data")

	return record
}
