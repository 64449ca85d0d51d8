package dedup

import (
	"context"
)

// KeyStore is the persistence abstraction mapping idempotency keys to
// processing records. It is the sole arbiter of duplicate detection and the
// only shared mutable resource in the design.
//
// Implementations must provide InsertIfAbsent as a single indivisible
// operation backed by a native conditional-insert primitive of the storage
// engine (ON CONFLICT DO NOTHING, SETNX, LoadOrStore). It must NOT be built
// by composing a separate existence read with a separate insert write; that
// composition reintroduces a race window between concurrent callers.
//
// Concurrent callers racing on the same key must see exactly one
// (true, nil) result and all others (false, nil), regardless of arrival
// order or timing skew (linearizability).
type KeyStore interface {
	// InsertIfAbsent atomically checks for existence of the record's key and,
	// if absent, inserts the record. Returns true if the insert happened
	// (the key was new), false if the key already existed (duplicate).
	//
	// A failure to reach the backend is reported as an error wrapping
	// ErrStoreUnavailable and carries no duplicate/non-duplicate verdict.
	InsertIfAbsent(ctx context.Context, record ProcessingRecord) (bool, error)

	// Contains reports whether a record exists for the key.
	//
	// Diagnostic use only. A dedup decision must never be derived from
	// Contains followed by InsertIfAbsent; InsertIfAbsent alone decides.
	Contains(ctx context.Context, key IdempotencyKey) (bool, error)

	// Remove deletes the record for the key.
	//
	// Reserved for out-of-band administrative reconciliation, for example
	// re-opening a key whose side effect is known to have failed after
	// acceptance. Removing a key for a live request reintroduces duplicates.
	Remove(ctx context.Context, key IdempotencyKey) error
}
