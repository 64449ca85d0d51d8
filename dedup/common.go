package dedup

import (
	"errors"
)

var (
	// ErrStoreUnavailable is returned when the key store cannot be reached or times out.
	// The caller cannot distinguish "definitely not inserted" from "insert happened but
	// the response was lost" in this case; retrying the whole logical request with the
	// same key is always safe with respect to duplicate execution.
	ErrStoreUnavailable = errors.New("key store unavailable")

	// ErrEmptyIdempotencyKey is returned when an empty idempotency key is supplied.
	ErrEmptyIdempotencyKey = errors.New("empty idempotency key supplied")

	// ErrNilKeyStore is returned when a nil key store is supplied to NewGuard.
	ErrNilKeyStore = errors.New("nil key store supplied")

	// ErrNilDatabaseConnection is returned when a nil database connection is supplied
	// to a storage engine constructor.
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")

	// ErrEmptyTableNameSupplied is returned when an empty table name is supplied
	// to a storage engine option.
	ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

	// ErrBuildingQueryFailed is returned when a storage engine fails to build
	// its backend query.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrGettingRowsAffectedFailed is returned when a storage engine cannot
	// determine how many rows its conditional insert affected.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")
)
