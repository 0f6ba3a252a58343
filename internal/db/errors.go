package db

import "errors"

var (
	// ErrPoolShuttingDown is returned by pool operations issued after
	// Shutdown has been called.
	ErrPoolShuttingDown = errors.New("db: pool is shutting down")
	// ErrCheckoutTimeout is returned when a checkout waiter exceeds its
	// deadline before a connection becomes available.
	ErrCheckoutTimeout = errors.New("db: checkout timed out waiting for a connection")
	// ErrMigrationFailed wraps a migration's transactional failure.
	ErrMigrationFailed = errors.New("db: migration failed")
)
