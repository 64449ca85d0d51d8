// Package postgreswrapper abstracts over the three database adapter types so
// the PostgreSQL integration tests can run against each of them.
package postgreswrapper

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dedup-guard-go/dedup/postgresengine"
	"github.com/AntonStoeckl/dedup-guard-go/testutil/postgresengine/config"
)

// Adapter type constants, selected via the ADAPTER_TYPE environment variable.
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper abstracts over the different adapter types.
type Wrapper interface {
	GetKeyStore() *postgresengine.KeyStore
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool *pgxpool.Pool
	ks   *postgresengine.KeyStore
}

func (w *PGXPoolWrapper) GetKeyStore() *postgresengine.KeyStore {
	return w.ks
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db *sql.DB
	ks *postgresengine.KeyStore
}

func (w *SQLDBWrapper) GetKeyStore() *postgresengine.KeyStore {
	return w.ks
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db *sqlx.DB
	ks *postgresengine.KeyStore
}

func (w *SQLXWrapper) GetKeyStore() *postgresengine.KeyStore {
	return w.ks
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the
// ADAPTER_TYPE environment variable, defaulting to pgx.pool. The test is
// skipped when POSTGRES_TEST_DSN is not set.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	if config.PostgresTestDSN() == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping PostgreSQL integration test")
	}

	adapterTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch adapterTypeFromEnv {
	case typeSQLDB:
		db := config.PostgresSQLDBConfig()
		ks, err := postgresengine.NewKeyStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating key store")

		return &SQLDBWrapper{db: db, ks: ks}

	case typeSQLXDB:
		db := config.PostgresSQLXConfig()
		ks, err := postgresengine.NewKeyStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating key store")

		return &SQLXWrapper{db: db, ks: ks}

	case typePGXPool:
		fallthrough
	default:
		pool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolConfig())
		require.NoError(t, err, "error creating pgx pool")

		ks, ksErr := postgresengine.NewKeyStoreFromPGXPool(pool, options...)
		require.NoError(t, ksErr, "error creating key store")

		return &PGXPoolWrapper{pool: pool, ks: ks}
	}
}
