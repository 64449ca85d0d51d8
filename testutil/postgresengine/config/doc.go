// Package config provides database configuration for the PostgreSQL integration tests.
package config
