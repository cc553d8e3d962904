package db

import (
	"context"
	"database/sql"
)

// Database defines the unified interface for relational database access.
// This abstraction allows switching between drivers without changing
// business logic.
type Database interface {
	// Query executes a query that returns rows
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// QueryRow executes a query that returns at most one row
	QueryRow(ctx context.Context, query string, args ...interface{}) Row

	// Exec executes a query that doesn't return rows
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)

	// Transaction executes a function within a database transaction
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)

	// Ping verifies a connection to the database is still alive
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

// Rows is the result of a query returning multiple rows.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of a query returning at most one row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Transaction groups statements executed atomically.
type Transaction interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Commit() error
	Rollback() error
}

// ErrNoRows re-exports the stdlib sentinel so callers don't import database/sql.
var ErrNoRows = sql.ErrNoRows
