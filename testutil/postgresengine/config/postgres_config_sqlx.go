package config

import (
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq" // database/sql driver for the sqlx based adapter
)

// PostgresSQLXConfig creates a sqlx.DB connection pool for the test database.
func PostgresSQLXConfig() *sqlx.DB {
	const defaultMaxOpenConnections = 50
	const defaultMaxIdleConnections = 10
	const defaultConnMaxLifetime = time.Hour
	const defaultConnMaxIdleTime = time.Minute * 5

	db, err := sqlx.Open("postgres", PostgresTestDSN())
	if err != nil {
		log.Fatal("Failed to open database connection, error: ", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	return db
}
