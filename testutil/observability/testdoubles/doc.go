// Package testdoubles provides spy implementations of the dedup observability
// interfaces for asserting on logging, metrics, and tracing behavior in tests.
package testdoubles
