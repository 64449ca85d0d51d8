package config

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq" // database/sql driver for the sql.DB based adapter
)

// PostgresSQLDBConfig creates a sql.DB connection pool for the test database.
func PostgresSQLDBConfig() *sql.DB {
	const defaultMaxOpenConnections = 50
	const defaultMaxIdleConnections = 10
	const defaultConnMaxLifetime = time.Hour
	const defaultConnMaxIdleTime = time.Minute * 5

	db, err := sql.Open("postgres", PostgresTestDSN())
	if err != nil {
		log.Fatal("Failed to open database connection, error: ", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	return db
}
