package postgresengine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
	"github.com/AntonStoeckl/dedup-guard-go/dedup/postgresengine/internal/adapters"
)

// fakeRows simulates a result set whose iteration fails mid-flight.
type fakeRows struct {
	next bool
	err  error
}

func (f *fakeRows) Next() bool          { return f.next }
func (f *fakeRows) Scan(_ ...any) error { return nil }
func (f *fakeRows) Err() error          { return f.err }
func (f *fakeRows) Close() error        { return nil }

type fakeAdapter struct {
	rows adapters.DBRows
}

func (f *fakeAdapter) Query(_ context.Context, _ string) (adapters.DBRows, error) {
	return f.rows, nil
}

func (f *fakeAdapter) Exec(_ context.Context, _ string) (adapters.DBResult, error) {
	return nil, errors.New("not implemented")
}

func Test_Contains_SurfacesRowIterationFailures(t *testing.T) {
	// arrange: Next reports no row because the connection broke mid-iteration
	iterationErr := errors.New("connection reset by peer")
	ks := &KeyStore{
		db:        &fakeAdapter{rows: &fakeRows{next: false, err: iterationErr}},
		tableName: defaultTableName,
	}

	// act
	_, err := ks.Contains(context.Background(), "order-4711")

	// assert
	assert.ErrorIs(t, err, dedup.ErrStoreUnavailable,
		"an iteration failure must not read as an absent key")
	assert.ErrorIs(t, err, iterationErr, "the original cause must stay visible")
}

func Test_Contains_ReportsAbsent_WhenIterationEndsCleanly(t *testing.T) {
	// arrange
	ks := &KeyStore{
		db:        &fakeAdapter{rows: &fakeRows{next: false, err: nil}},
		tableName: defaultTableName,
	}

	// act
	found, err := ks.Contains(context.Background(), "order-4711")

	// assert
	assert.NoError(t, err)
	assert.False(t, found)
}
