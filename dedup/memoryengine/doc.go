// Package memoryengine provides an in-process KeyStore implementation backed
// by a concurrent map.
//
// The atomic insert-if-absent primitive maps to a single LoadOrStore call, so
// concurrent callers racing on the same key see exactly one inserted result.
//
// The memory engine never reports the store as unavailable and shares nothing
// between processes; it is meant for tests and for single-instance callers
// that can tolerate losing the processed-key set on restart. Distributed
// deployments need one of the shared-store engines instead - a local mirror
// of "already processed" state reintroduces staleness-based races.
package memoryengine
