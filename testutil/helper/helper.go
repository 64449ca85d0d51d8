// Package helper provides small arrangement helpers shared by the test suites.
package helper

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

// GivenUniqueKey returns a fresh idempotency key for arranging test data.
func GivenUniqueKey(t testing.TB) dedup.IdempotencyKey {
	t.Helper()

	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return dedup.IdempotencyKey(id.String())
}

// GivenUniquePartition returns a fresh partition id for arranging test data.
func GivenUniquePartition(t testing.TB) dedup.PartitionID {
	t.Helper()

	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return dedup.PartitionID(id.String())
}
