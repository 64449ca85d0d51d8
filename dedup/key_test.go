package dedup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/AntonStoeckl/dedup-guard-go/dedup"
)

func Test_NewIdempotencyKey_GeneratesUniqueKeys(t *testing.T) {
	// act
	first := NewIdempotencyKey()
	second := NewIdempotencyKey()

	// assert
	assert.False(t, first.IsEmpty(), "generated key should not be empty")
	assert.False(t, second.IsEmpty(), "generated key should not be empty")
	assert.NotEqual(t, first, second, "two generated keys should differ")
}

func Test_BuildIdempotencyKey_WrapsTheSuppliedIdentifier(t *testing.T) {
	// act
	key, err := BuildIdempotencyKey("payment-2024-000042")

	// assert
	assert.NoError(t, err)
	assert.Equal(t, "payment-2024-000042", key.String())
}

func Test_BuildIdempotencyKey_RejectsEmptyInput(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "empty string", input: ""},
		{name: "blank string", input: "   "},
		{name: "tabs and newlines", input: "\t\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := BuildIdempotencyKey(tc.input)

			// assert
			assert.ErrorIs(t, err, ErrEmptyIdempotencyKey)
		})
	}
}

func Test_BuildProcessingRecord_CarriesKeyTimestampAndPartition(t *testing.T) {
	// arrange
	key := NewIdempotencyKey()
	acceptedAt := time.Unix(0, 0).UTC()

	// act
	record, err := BuildProcessingRecord(key, acceptedAt, "cart-1234")

	// assert
	assert.NoError(t, err)
	assert.Equal(t, key, record.Key)
	assert.Equal(t, acceptedAt, record.AcceptedAt)
	assert.Equal(t, PartitionID("cart-1234"), record.Partition)
}

func Test_BuildProcessingRecord_RejectsEmptyKey(t *testing.T) {
	// act
	_, err := BuildProcessingRecord("", time.Now(), "cart-1234")

	// assert
	assert.ErrorIs(t, err, ErrEmptyIdempotencyKey)
}

func Test_BuildProcessingRecordWithoutPartition_LeavesPartitionEmpty(t *testing.T) {
	// arrange
	key := NewIdempotencyKey()

	// act
	record, err := BuildProcessingRecordWithoutPartition(key, time.Now())

	// assert
	assert.NoError(t, err)
	assert.Equal(t, PartitionID(""), record.Partition)
}
