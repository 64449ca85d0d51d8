package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
	"github.com/AntonStoeckl/dedup-guard-go/dedup/postgresengine/internal/adapters"
)

const (
	defaultTableName             = "processing_records"
	logMsgBuildInsertQueryFailed = "failed to build insert query"
	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgBuildDeleteQueryFailed = "failed to build delete query"
	logMsgDBExecFailed           = "database execution failed during conditional insert"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgRowsAffectedFailed     = "failed to get rows affected count"
	logMsgKeyAccepted            = "key accepted for processing"
	logMsgDuplicateDetected      = "duplicate key detected"
	logMsgKeyRemoved             = "key removed by administrative request"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "keystore operation: "
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrKey                   = "idempotency_key"
	logAttrDurationMS            = "duration_ms"
	logAttrRowsAffected          = "rows_affected"
	logActionInsert              = "insert_if_absent"
	logActionContains            = "contains"
	logActionRemove              = "remove"
	colKey                       = "idempotency_key"
	colAcceptedAt                = "accepted_at"
	colPartition                 = "partition_id"
	dialectPostgres              = "postgres"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// KeyStore implements the dedup.KeyStore contract on top of PostgreSQL.
// It leverages a database adapter and supports customizable logging,
// metrics, tracing, and table configuration.
type KeyStore struct {
	db               adapters.DBAdapter
	tableName        string
	logger           dedup.Logger
	contextualLogger dedup.ContextualLogger
	metricsCollector dedup.MetricsCollector
	tracingCollector dedup.TracingCollector
}

// NewKeyStoreFromPGXPool creates a new KeyStore using a pgx Pool with optional configuration.
func NewKeyStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*KeyStore, error) {
	if db == nil {
		return nil, dedup.ErrNilDatabaseConnection
	}

	return newKeyStore(adapters.NewPGXAdapter(db), options...)
}

// NewKeyStoreFromSQLDB creates a new KeyStore using a sql.DB with optional configuration.
func NewKeyStoreFromSQLDB(db *sql.DB, options ...Option) (*KeyStore, error) {
	if db == nil {
		return nil, dedup.ErrNilDatabaseConnection
	}

	return newKeyStore(adapters.NewSQLAdapter(db), options...)
}

// NewKeyStoreFromSQLX creates a new KeyStore using a sqlx.DB with optional configuration.
func NewKeyStoreFromSQLX(db *sqlx.DB, options ...Option) (*KeyStore, error) {
	if db == nil {
		return nil, dedup.ErrNilDatabaseConnection
	}

	return newKeyStore(adapters.NewSQLXAdapter(db), options...)
}

func newKeyStore(db adapters.DBAdapter, options ...Option) (*KeyStore, error) {
	ks := &KeyStore{
		db:        db,
		tableName: defaultTableName,
	}

	for _, option := range options {
		if err := option(ks); err != nil {
			return nil, err
		}
	}

	return ks, nil
}

// InsertIfAbsent atomically checks for existence of the record's key and, if absent,
// inserts the record, in one indivisible ON CONFLICT DO NOTHING statement.
//
// Returns true if the insert happened (the key was new), false if the key already
// existed (duplicate). Concurrent callers racing on the same fresh key see exactly
// one true result; the database's primary key constraint arbitrates.
//
// Failures to reach the database are reported as errors wrapping
// dedup.ErrStoreUnavailable and carry no duplicate/non-duplicate verdict.
func (ks *KeyStore) InsertIfAbsent(ctx context.Context, record dedup.ProcessingRecord) (bool, error) {
	if record.Key.IsEmpty() {
		return false, dedup.ErrEmptyIdempotencyKey
	}

	tracing, ctx := ks.startInsertTracing(ctx, record.Key)
	metrics := ks.startInsertMetrics(ctx)

	sqlQuery, buildQueryErr := ks.buildInsertQuery(record)
	if buildQueryErr != nil {
		ks.logError(ctx, logMsgBuildInsertQueryFailed, buildQueryErr, logAttrKey, record.Key.String())
		tracing.finishError(errorTypeBuildQuery)
		metrics.recordError(errorTypeBuildQuery, 0)

		return false, buildQueryErr
	}

	rowsAffected, duration, execErr := ks.executeInsertQuery(ctx, sqlQuery)
	if execErr != nil {
		tracing.finishError(errorTypeDatabase)
		metrics.recordError(errorTypeDatabase, duration)

		return false, execErr
	}

	inserted := rowsAffected == 1

	if inserted {
		ks.logOperation(ctx, logMsgKeyAccepted,
			logAttrKey, record.Key.String(),
			logAttrDurationMS, toMilliseconds(duration))
	} else {
		ks.logOperation(ctx, logMsgDuplicateDetected,
			logAttrKey, record.Key.String(),
			logAttrRowsAffected, rowsAffected,
			logAttrDurationMS, toMilliseconds(duration))
		metrics.recordDuplicate()
	}

	tracing.finishSuccess(inserted)
	metrics.recordSuccess(duration)

	return inserted, nil
}

// Contains reports whether a record exists for the key.
//
// Diagnostic use only; a dedup decision must never be derived from Contains
// followed by InsertIfAbsent.
func (ks *KeyStore) Contains(ctx context.Context, key dedup.IdempotencyKey) (bool, error) {
	if key.IsEmpty() {
		return false, dedup.ErrEmptyIdempotencyKey
	}

	sqlQuery, buildQueryErr := ks.buildSelectQuery(key)
	if buildQueryErr != nil {
		ks.logError(ctx, logMsgBuildSelectQueryFailed, buildQueryErr, logAttrKey, key.String())
		return false, buildQueryErr
	}

	start := time.Now()
	rows, queryErr := ks.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	ks.logQueryWithDuration(ctx, sqlQuery, logActionContains, duration)

	if queryErr != nil {
		ks.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return false, errors.Join(dedup.ErrStoreUnavailable, queryErr)
	}

	defer ks.closeRows(ctx, rows)

	found := rows.Next()
	if !found {
		// an iteration failure must not read as "absent"
		if rowsErr := rows.Err(); rowsErr != nil {
			ks.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
			return false, errors.Join(dedup.ErrStoreUnavailable, rowsErr)
		}
	}

	return found, nil
}

// Remove deletes the record for the key.
//
// Reserved for out-of-band administrative reconciliation; removing a key for a
// live request reintroduces duplicate execution.
func (ks *KeyStore) Remove(ctx context.Context, key dedup.IdempotencyKey) error {
	if key.IsEmpty() {
		return dedup.ErrEmptyIdempotencyKey
	}

	sqlQuery, buildQueryErr := ks.buildDeleteQuery(key)
	if buildQueryErr != nil {
		ks.logError(ctx, logMsgBuildDeleteQueryFailed, buildQueryErr, logAttrKey, key.String())
		return buildQueryErr
	}

	start := time.Now()
	_, execErr := ks.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	ks.logQueryWithDuration(ctx, sqlQuery, logActionRemove, duration)

	if execErr != nil {
		ks.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return errors.Join(dedup.ErrStoreUnavailable, execErr)
	}

	ks.logOperation(ctx, logMsgKeyRemoved, logAttrKey, key.String())

	return nil
}

// executeInsertQuery executes the conditional insert and returns rows affected and duration.
func (ks *KeyStore) executeInsertQuery(ctx context.Context, sqlQuery string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	tag, execErr := ks.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	ks.logQueryWithDuration(ctx, sqlQuery, logActionInsert, duration)

	if execErr != nil {
		ks.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, duration, errors.Join(dedup.ErrStoreUnavailable, execErr)
	}

	rowsAffected, rowsAffectedErr := tag.RowsAffected()
	if rowsAffectedErr != nil {
		ks.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return 0, duration, errors.Join(dedup.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

func (ks *KeyStore) buildInsertQuery(record dedup.ProcessingRecord) (sqlQueryString, error) {
	var partitionValue any
	if record.Partition != "" {
		partitionValue = string(record.Partition)
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(ks.tableName).
		Cols(colKey, colAcceptedAt, colPartition).
		Vals(goqu.Vals{record.Key.String(), record.AcceptedAt, partitionValue}).
		OnConflict(goqu.DoNothing())

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(dedup.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (ks *KeyStore) buildSelectQuery(key dedup.IdempotencyKey) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(ks.tableName).
		Select(colKey).
		Where(goqu.Ex{colKey: key.String()}).
		Limit(1)

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(dedup.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (ks *KeyStore) buildDeleteQuery(key dedup.IdempotencyKey) (sqlQueryString, error) {
	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(ks.tableName).
		Where(goqu.Ex{colKey: key.String()})

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(dedup.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// closeRows safely closes database rows and logs any errors.
func (ks *KeyStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		ks.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}
