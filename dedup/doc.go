// Package dedup provides core abstractions and types for idempotent
// "process-once" guarding of non-idempotent side effects under
// at-least-once delivery.
//
// This package defines the fundamental interfaces and types used across
// different key store implementations, including the atomic insert-if-absent
// contract, processing records, and common error definitions.
//
// The guard converts any number of repeated invocations of a caller-supplied
// action (identified by a caller-supplied idempotency key) into at-most-one
// execution of that action's committed effect, even under concurrent retries
// from multiple stateless service instances behind a load balancer.
//
// Key types:
//   - IdempotencyKey: opaque caller-generated identifier, stable across retries
//   - ProcessingRecord: marks "this key has been accepted for processing"
//   - KeyStore: persistence abstraction exposing the single atomic primitive
//   - Guard: stateless coordinator over a KeyStore
//
// Common usage pattern:
//
//	guard, err := dedup.NewGuard(store, dedup.WithStoreTimeout(3*time.Second))
//	if err != nil {
//		// handle error
//	}
//
//	isNew, err := guard.IsNew(ctx, key)
//	if err != nil {
//		// store unavailable: retry the whole logical request with the same key
//	}
//	if isNew {
//		// perform the side effect exactly here, never before IsNew
//	}
//
// The guard deliberately offers no "run this action for me" operation.
// Coupling the record insertion to the execution of an arbitrary action
// reintroduces a window between stages during which a concurrent retry can
// observe "not yet recorded" and also proceed. Tying insertion atomically
// only to the existence check eliminates that window by construction.
// The accepted consequence: if the action fails after IsNew returned true,
// the key stays marked as processed and retries are skipped. Detecting and
// resolving that case is the job of a separate reconciliation collaborator.
package dedup
