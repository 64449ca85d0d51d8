// Package keystorespy provides a KeyStore test double that wraps a real store,
// counts calls, and injects failures on demand.
package keystorespy

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

// KeyStoreSpy wraps an inner dedup.KeyStore, recording every call and optionally
// failing InsertIfAbsent with a configured error before the inner store is reached.
// It is safe for concurrent use.
type KeyStoreSpy struct {
	inner dedup.KeyStore

	mu               sync.Mutex
	insertCalls      int
	containsCalls    int
	removeCalls      int
	insertFailures   int
	insertFailureErr error
}

// New creates a KeyStoreSpy around the given inner store.
func New(inner dedup.KeyStore) *KeyStoreSpy {
	return &KeyStoreSpy{inner: inner}
}

// FailInsertsWith makes the next count InsertIfAbsent calls fail with err
// without touching the inner store.
func (s *KeyStoreSpy) FailInsertsWith(err error, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertFailureErr = err
	s.insertFailures = count
}

// InsertIfAbsent implements dedup.KeyStore.
func (s *KeyStoreSpy) InsertIfAbsent(ctx context.Context, record dedup.ProcessingRecord) (bool, error) {
	s.mu.Lock()
	s.insertCalls++

	if s.insertFailures > 0 {
		s.insertFailures--
		failureErr := s.insertFailureErr
		s.mu.Unlock()

		return false, failureErr
	}
	s.mu.Unlock()

	return s.inner.InsertIfAbsent(ctx, record)
}

// Contains implements dedup.KeyStore.
func (s *KeyStoreSpy) Contains(ctx context.Context, key dedup.IdempotencyKey) (bool, error) {
	s.mu.Lock()
	s.containsCalls++
	s.mu.Unlock()

	return s.inner.Contains(ctx, key)
}

// Remove implements dedup.KeyStore.
func (s *KeyStoreSpy) Remove(ctx context.Context, key dedup.IdempotencyKey) error {
	s.mu.Lock()
	s.removeCalls++
	s.mu.Unlock()

	return s.inner.Remove(ctx, key)
}

// InsertCalls returns the number of InsertIfAbsent calls seen so far.
func (s *KeyStoreSpy) InsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertCalls
}

// ContainsCalls returns the number of Contains calls seen so far.
func (s *KeyStoreSpy) ContainsCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.containsCalls
}

// RemoveCalls returns the number of Remove calls seen so far.
func (s *KeyStoreSpy) RemoveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeCalls
}

// Ensure KeyStoreSpy implements dedup.KeyStore.
var _ dedup.KeyStore = (*KeyStoreSpy)(nil)
