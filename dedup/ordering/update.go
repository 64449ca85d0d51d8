package ordering

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

var (
	// ErrEmptyPartitionID is returned when an empty partition id is supplied.
	ErrEmptyPartitionID = errors.New("empty partition id supplied")

	// ErrZeroSequenceNumber is returned when a sequence number of zero is supplied;
	// per-partition sequences start at one.
	ErrZeroSequenceNumber = errors.New("zero sequence number supplied")

	// ErrInvalidSnapshotJSON is returned when snapshot JSON data is malformed or invalid.
	ErrInvalidSnapshotJSON = errors.New("snapshot json is not valid")

	// ErrOutOfOrderTimeout signals that an expected earlier update never arrived
	// within the configured bound. It is surfaced to an operator path, not
	// auto-recovered, because silently dropping or silently reordering risks a
	// wrong final state.
	ErrOutOfOrderTimeout = errors.New("expected earlier update did not arrive in time")
)

// Update carries one full-state snapshot for one partition.
//
// The sequence number is strictly increasing within the partition and is
// assigned by the sender (see Sequencer), including across retries of the
// same logical update.
//
// While its properties are exported, it should only be constructed with the
// BuildUpdate factory method.
type Update struct {
	Partition      dedup.PartitionID
	SequenceNumber uint64
	SnapshotJSON   []byte
	SentAt         time.Time
}

// BuildUpdate is a factory method for Update.
//
// Returns an error if the partition is empty, the sequence number is zero,
// or snapshotJSON is not valid JSON.
func BuildUpdate(
	partition dedup.PartitionID,
	sequenceNumber uint64,
	snapshotJSON []byte,
	sentAt time.Time,
) (Update, error) {

	if partition == "" {
		return Update{}, ErrEmptyPartitionID
	}

	if sequenceNumber == 0 {
		return Update{}, ErrZeroSequenceNumber
	}

	if !jsoniter.ConfigFastest.Valid(snapshotJSON) {
		return Update{}, ErrInvalidSnapshotJSON
	}

	return Update{
		Partition:      partition,
		SequenceNumber: sequenceNumber,
		SnapshotJSON:   snapshotJSON,
		SentAt:         sentAt,
	}, nil
}
