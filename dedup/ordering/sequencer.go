package ordering

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

// Sequencer assigns strictly increasing per-partition sequence numbers on the
// sender side. Sequences start at one; retries of the same logical update must
// reuse the number assigned to the first attempt, so callers assign the number
// once per logical update, not once per delivery attempt.
//
// A Sequencer is safe for concurrent use. It is in-process state: a sender
// fleet with multiple instances needs a single-writer-per-partition discipline
// (or an external sequence source) so that two instances never both assign
// numbers for the same partition.
type Sequencer struct {
	counters *xsync.MapOf[dedup.PartitionID, *atomic.Uint64]
}

// NewSequencer creates a new Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{
		counters: xsync.NewMapOf[dedup.PartitionID, *atomic.Uint64](),
	}
}

// Next returns the next sequence number for the partition.
func (s *Sequencer) Next(partition dedup.PartitionID) (uint64, error) {
	if partition == "" {
		return 0, ErrEmptyPartitionID
	}

	counter, _ := s.counters.LoadOrCompute(partition, func() *atomic.Uint64 {
		return new(atomic.Uint64)
	})

	return counter.Add(1), nil
}

// Current returns the last assigned sequence number for the partition,
// zero if none was assigned yet. Diagnostic use only.
func (s *Sequencer) Current(partition dedup.PartitionID) uint64 {
	counter, found := s.counters.Load(partition)
	if !found {
		return 0
	}

	return counter.Load()
}
