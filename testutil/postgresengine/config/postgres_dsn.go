package config

import "os"

// PostgresTestDSN returns the DSN for the integration test database.
// It is read from the POSTGRES_TEST_DSN environment variable; an empty
// result means no test database is available and integration tests
// should be skipped.
func PostgresTestDSN() string {
	return os.Getenv("POSTGRES_TEST_DSN")
}
