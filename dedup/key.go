package dedup

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdempotencyKey is an opaque, caller-generated identifier that is unique per
// logical request and stable across retries of that same logical request.
//
// The same logical request must always be retried with the same key; a new
// logical request must never reuse a key. The guard treats the key as opaque
// and attaches no meaning to its contents.
type IdempotencyKey string

// NewIdempotencyKey generates a fresh key for a new logical request.
//
// It is a convenience for callers that have no natural request identifier;
// callers with one (message id, payment reference) should use BuildIdempotencyKey.
func NewIdempotencyKey() IdempotencyKey {
	return IdempotencyKey(uuid.New().String())
}

// BuildIdempotencyKey wraps a caller-supplied identifier as an IdempotencyKey.
// Returns an error if the identifier is empty or blank.
func BuildIdempotencyKey(id string) (IdempotencyKey, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrEmptyIdempotencyKey
	}

	return IdempotencyKey(id), nil
}

// String returns the key as a plain string.
func (k IdempotencyKey) String() string {
	return string(k)
}

// IsEmpty reports whether the key is empty or blank.
func (k IdempotencyKey) IsEmpty() bool {
	return strings.TrimSpace(string(k)) == ""
}

// PartitionID identifies the grouping unit used when the side effect is a
// full-state overwrite rather than a one-shot action. It is optional on a
// ProcessingRecord; an empty PartitionID means the record is unpartitioned.
type PartitionID string

// ProcessingRecord represents "this key has been accepted for processing".
//
// It is created exactly once per key by a successful insert-if-absent call and
// is never mutated afterwards. Records are deleted only by out-of-band
// administrative reconciliation, not as part of the guard contract.
//
// While its properties are exported, it should only be constructed with the
// supplied factory methods:
//   - BuildProcessingRecord
//   - BuildProcessingRecordWithoutPartition
type ProcessingRecord struct {
	Key        IdempotencyKey
	AcceptedAt time.Time
	Partition  PartitionID
}

// BuildProcessingRecord is a factory method for ProcessingRecord.
//
// Returns an error if the key is empty.
func BuildProcessingRecord(key IdempotencyKey, acceptedAt time.Time, partition PartitionID) (ProcessingRecord, error) {
	if key.IsEmpty() {
		return ProcessingRecord{}, ErrEmptyIdempotencyKey
	}

	return ProcessingRecord{
		Key:        key,
		AcceptedAt: acceptedAt,
		Partition:  partition,
	}, nil
}

// BuildProcessingRecordWithoutPartition is a factory method for ProcessingRecord
// for one-shot actions that have no partition.
//
// Returns an error if the key is empty.
func BuildProcessingRecordWithoutPartition(key IdempotencyKey, acceptedAt time.Time) (ProcessingRecord, error) {
	return BuildProcessingRecord(key, acceptedAt, "")
}
