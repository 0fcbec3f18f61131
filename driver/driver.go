// Package driver provides database driver abstractions for activitypg.
//
// This package defines the interfaces that database drivers must implement
// to back the remote data gateway. It supports multiple backends (pgx/v5,
// database/sql, in-memory) through a generic driver pattern.
package driver

import (
	"context"
)

// Driver provides database operations for activitypg.
// TTx is the native transaction type (e.g., pgx.Tx for pgx/v5, *sql.Tx for database/sql).
//
// Implementations should be created using the driver-specific New() functions:
//   - github.com/youssefsiam38/activitypg/driver/pgxv5.New(pool)
//   - github.com/youssefsiam38/activitypg/driver/databasesql.New(db, connStr)
//   - github.com/youssefsiam38/activitypg/driver/memory.New()
type Driver[TTx any] interface {
	// GetExecutor returns an executor for non-transactional operations.
	// The returned Executor uses the underlying connection pool.
	GetExecutor() Executor

	// UnwrapExecutor converts a native transaction to an ExecutorTx.
	// This allows gateway calls to join user-provided transactions.
	UnwrapExecutor(tx TTx) ExecutorTx

	// Begin starts a new transaction and returns an ExecutorTx.
	Begin(ctx context.Context) (ExecutorTx, error)

	// PoolIsSet returns true if the driver has a database pool configured.
	PoolIsSet() bool

	// GetStore returns the Store implementation backed by this driver.
	GetStore() Store

	// SupportsListener returns true if this driver can receive notifications.
	// When false, events are still sent with NOTIFY but nothing in this
	// process receives them.
	SupportsListener() bool

	// GetListener returns a Listener for receiving notifications.
	// The returned Listener must be closed when no longer needed.
	GetListener(ctx context.Context) (Listener, error)

	// GetNotifier returns a Notifier for sending notifications.
	GetNotifier() Notifier
}
