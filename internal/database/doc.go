// Package database provides connection pool management for PostgreSQL.
//
// The recorder writes received trade and account updates to a single
// PostgreSQL database through a pgx connection pool.
package database
