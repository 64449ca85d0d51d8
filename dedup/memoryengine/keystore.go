package memoryengine

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

// KeyStore is an in-process dedup.KeyStore backed by a concurrent map.
// The zero value is not usable; construct it with NewKeyStore.
type KeyStore struct {
	records *xsync.MapOf[string, dedup.ProcessingRecord]
}

// NewKeyStore creates a new in-memory KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		records: xsync.NewMapOf[string, dedup.ProcessingRecord](),
	}
}

// InsertIfAbsent atomically inserts the record unless its key is already present.
// LoadOrStore is the map's native conditional insert, so there is no window
// between the existence check and the insert.
func (ks *KeyStore) InsertIfAbsent(_ context.Context, record dedup.ProcessingRecord) (bool, error) {
	if record.Key.IsEmpty() {
		return false, dedup.ErrEmptyIdempotencyKey
	}

	_, loaded := ks.records.LoadOrStore(record.Key.String(), record)

	return !loaded, nil
}

// Contains reports whether a record exists for the key.
func (ks *KeyStore) Contains(_ context.Context, key dedup.IdempotencyKey) (bool, error) {
	if key.IsEmpty() {
		return false, dedup.ErrEmptyIdempotencyKey
	}

	_, found := ks.records.Load(key.String())

	return found, nil
}

// Remove deletes the record for the key. Reserved for administrative reconciliation.
func (ks *KeyStore) Remove(_ context.Context, key dedup.IdempotencyKey) error {
	if key.IsEmpty() {
		return dedup.ErrEmptyIdempotencyKey
	}

	ks.records.Delete(key.String())

	return nil
}

// Size returns the number of stored records. Diagnostic use only.
func (ks *KeyStore) Size() int {
	return ks.records.Size()
}
