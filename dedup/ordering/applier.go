package ordering

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

const (
	defaultGapTimeout = 30 * time.Second

	logMsgUpdateApplied   = "update applied"
	logMsgUpdateDiscarded = "stale update discarded"
	logMsgUpdateBuffered  = "out-of-order update buffered"
	logMsgGapTimeout      = "gap in partition sequence outlived the configured bound"
	logAttrPartition      = "partition"
	logAttrSequence       = "sequence_number"
	logAttrLastApplied    = "last_applied"
	logAttrBufferedCount  = "buffered_count"
)

// ErrNilApplyFunc is returned when a nil apply function is supplied to NewApplier.
var ErrNilApplyFunc = errors.New("nil apply function supplied")

// ErrNegativeGapTimeout is returned when a negative gap timeout is supplied.
var ErrNegativeGapTimeout = errors.New("negative gap timeout supplied")

// Policy selects how the Applier treats updates that arrive out of order
// within a partition.
type Policy int

const (
	// StrictOrder buffers an update whose sequence number does not immediately
	// follow the last applied one and applies it once the gap closes. A gap
	// that outlives the configured bound raises ErrOutOfOrderTimeout through
	// the OnGapTimeout callback.
	StrictOrder Policy = iota

	// LatestWins applies any update newer than the last applied one, gap or
	// not, and discards updates at or below the last applied sequence number.
	// Suitable when every update carries the complete current state, so the
	// newest one supersedes everything before it.
	LatestWins
)

// ApplyFunc performs the full-state overwrite for one update at the consumer.
type ApplyFunc func(ctx context.Context, update Update) error

// Applier applies updates at a consumer while enforcing per-partition ordering.
//
// Updates within one partition are applied in sequence-number order (or
// newest-wins, depending on the Policy); partitions are independent and never
// block each other. An update at or below the last applied sequence number is
// not an error - it is a duplicate delivery or a stale overtaken snapshot and
// is discarded.
type Applier struct {
	applyFn      ApplyFunc
	policy       Policy
	gapTimeout   time.Duration
	onDiscarded  func(Update)
	onGapTimeout func(dedup.PartitionID, error)
	logger       dedup.Logger
	partitions   *xsync.MapOf[dedup.PartitionID, *partitionState]
}

type partitionState struct {
	mu          sync.Mutex
	lastApplied uint64
	buffered    map[uint64]Update
	gapTimer    *time.Timer
}

// ApplierOption defines a functional option for configuring an Applier.
type ApplierOption func(*Applier) error

// WithPolicy sets the ordering policy. The default is StrictOrder.
func WithPolicy(policy Policy) ApplierOption {
	return func(a *Applier) error {
		a.policy = policy
		return nil
	}
}

// WithGapTimeout bounds how long a sequence gap may stay open in StrictOrder
// mode before ErrOutOfOrderTimeout is raised through OnGapTimeout.
func WithGapTimeout(timeout time.Duration) ApplierOption {
	return func(a *Applier) error {
		if timeout < 0 {
			return ErrNegativeGapTimeout
		}

		if timeout > 0 {
			a.gapTimeout = timeout
		}

		return nil
	}
}

// WithOnDiscarded sets a callback invoked when a stale or duplicate update is
// discarded. Intended for logging/metrics only.
func WithOnDiscarded(onDiscarded func(Update)) ApplierOption {
	return func(a *Applier) error {
		a.onDiscarded = onDiscarded
		return nil
	}
}

// WithOnGapTimeout sets the operator callback invoked with ErrOutOfOrderTimeout
// when an expected earlier update never arrives within the gap timeout.
// The applier does not auto-recover; resolving the gap is an operator decision.
func WithOnGapTimeout(onGapTimeout func(dedup.PartitionID, error)) ApplierOption {
	return func(a *Applier) error {
		a.onGapTimeout = onGapTimeout
		return nil
	}
}

// WithLogger sets the logger for the Applier.
func WithLogger(logger dedup.Logger) ApplierOption {
	return func(a *Applier) error {
		a.logger = logger
		return nil
	}
}

// NewApplier creates a new Applier around the given apply function with
// optional configuration.
func NewApplier(applyFn ApplyFunc, options ...ApplierOption) (*Applier, error) {
	if applyFn == nil {
		return nil, ErrNilApplyFunc
	}

	a := &Applier{
		applyFn:    applyFn,
		policy:     StrictOrder,
		gapTimeout: defaultGapTimeout,
		partitions: xsync.NewMapOf[dedup.PartitionID, *partitionState](),
	}

	for _, option := range options {
		if err := option(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Apply delivers one update to the consumer, enforcing the partition's ordering.
//
// A stale or duplicate update (sequence number at or below the last applied
// one) is discarded and Apply returns nil. In StrictOrder mode an update that
// arrives ahead of a gap is buffered and Apply returns nil; it will be applied
// when the gap closes. Errors from the apply function are propagated unchanged
// and do not advance the partition's applied sequence.
func (a *Applier) Apply(ctx context.Context, update Update) error {
	if update.Partition == "" {
		return ErrEmptyPartitionID
	}

	if update.SequenceNumber == 0 {
		return ErrZeroSequenceNumber
	}

	state, _ := a.partitions.LoadOrCompute(update.Partition, func() *partitionState {
		return &partitionState{buffered: make(map[uint64]Update)}
	})

	state.mu.Lock()
	defer state.mu.Unlock()

	if update.SequenceNumber <= state.lastApplied {
		a.discard(update, state)
		return nil
	}

	if a.policy == LatestWins {
		return a.applyLocked(ctx, update, state)
	}

	if update.SequenceNumber == state.lastApplied+1 {
		if applyErr := a.applyLocked(ctx, update, state); applyErr != nil {
			return applyErr
		}

		if drainErr := a.drainBufferLocked(ctx, state); drainErr != nil {
			return drainErr
		}

		a.adjustGapTimerLocked(update.Partition, state)

		return nil
	}

	state.buffered[update.SequenceNumber] = update
	a.logOperation(logMsgUpdateBuffered,
		logAttrPartition, string(update.Partition),
		logAttrSequence, update.SequenceNumber,
		logAttrLastApplied, state.lastApplied,
		logAttrBufferedCount, len(state.buffered))
	a.adjustGapTimerLocked(update.Partition, state)

	return nil
}

// LastApplied returns the last applied sequence number for the partition,
// zero if nothing was applied yet. Diagnostic use only.
func (a *Applier) LastApplied(partition dedup.PartitionID) uint64 {
	state, found := a.partitions.Load(partition)
	if !found {
		return 0
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.lastApplied
}

// BufferedCount returns the number of buffered out-of-order updates for the
// partition. Diagnostic use only.
func (a *Applier) BufferedCount(partition dedup.PartitionID) int {
	state, found := a.partitions.Load(partition)
	if !found {
		return 0
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	return len(state.buffered)
}

func (a *Applier) applyLocked(ctx context.Context, update Update, state *partitionState) error {
	if applyErr := a.applyFn(ctx, update); applyErr != nil {
		return applyErr
	}

	state.lastApplied = update.SequenceNumber
	a.logOperation(logMsgUpdateApplied,
		logAttrPartition, string(update.Partition),
		logAttrSequence, update.SequenceNumber)

	return nil
}

// drainBufferLocked applies buffered successors as long as the next expected
// sequence number is present. An apply failure keeps the update buffered so a
// later Apply call can retry the drain.
func (a *Applier) drainBufferLocked(ctx context.Context, state *partitionState) error {
	for {
		next, found := state.buffered[state.lastApplied+1]
		if !found {
			return nil
		}

		if applyErr := a.applyLocked(ctx, next, state); applyErr != nil {
			return applyErr
		}

		delete(state.buffered, next.SequenceNumber)
	}
}

func (a *Applier) discard(update Update, state *partitionState) {
	a.logOperation(logMsgUpdateDiscarded,
		logAttrPartition, string(update.Partition),
		logAttrSequence, update.SequenceNumber,
		logAttrLastApplied, state.lastApplied)

	if a.onDiscarded != nil {
		a.onDiscarded(update)
	}
}

// adjustGapTimerLocked arms the gap timer while buffered updates wait behind a
// gap and disarms it once the buffer is empty.
func (a *Applier) adjustGapTimerLocked(partition dedup.PartitionID, state *partitionState) {
	if len(state.buffered) == 0 {
		if state.gapTimer != nil {
			state.gapTimer.Stop()
			state.gapTimer = nil
		}
		return
	}

	if state.gapTimer == nil {
		state.gapTimer = time.AfterFunc(a.gapTimeout, func() {
			a.reportGapTimeout(partition, state)
		})
	}
}

func (a *Applier) reportGapTimeout(partition dedup.PartitionID, state *partitionState) {
	state.mu.Lock()
	stillOpen := len(state.buffered) > 0
	state.gapTimer = nil
	lastApplied := state.lastApplied
	bufferedCount := len(state.buffered)
	state.mu.Unlock()

	if !stillOpen {
		return
	}

	a.logWarn(logMsgGapTimeout,
		logAttrPartition, string(partition),
		logAttrLastApplied, lastApplied,
		logAttrBufferedCount, bufferedCount)

	if a.onGapTimeout != nil {
		a.onGapTimeout(partition, ErrOutOfOrderTimeout)
	}
}

func (a *Applier) logOperation(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Applier) logWarn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
