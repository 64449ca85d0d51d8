// Package postgresengine provides a PostgreSQL-backed implementation of the
// dedup.KeyStore contract.
//
// The atomic insert-if-absent primitive maps to a single
// INSERT ... ON CONFLICT (idempotency_key) DO NOTHING statement; the number of
// affected rows decides whether the key was new. The existence check and the
// insert are one indivisible statement executed by the database - the engine
// never composes a separate read with a separate write.
//
// The engine supports three PostgreSQL database libraries through a common
// adapter interface:
//   - pgxpool.Pool via NewKeyStoreFromPGXPool
//   - sql.DB via NewKeyStoreFromSQLDB
//   - sqlx.DB via NewKeyStoreFromSQLX
//
// Expected table schema (default table name "processing_records"):
//
//	CREATE TABLE processing_records (
//		idempotency_key TEXT PRIMARY KEY,
//		accepted_at     TIMESTAMP WITH TIME ZONE NOT NULL,
//		partition_id    TEXT
//	);
//
// Configuration uses functional options: WithTableName, WithLogger,
// WithContextualLogger, WithMetrics, WithTracing.
package postgresengine
