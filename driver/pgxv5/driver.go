// Package pgxv5 provides a pgx/v5 driver implementation for activitypg.
//
// This is the recommended driver, offering nested transactions via
// savepoints and LISTEN on a dedicated connection.
//
// Usage:
//
//	pool, _ := pgxpool.New(ctx, databaseURL)
//	drv := pgxv5.New(pool)
//	client, _ := activitypg.NewClient(drv, activitypg.DefaultClientConfig())
package pgxv5

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/driver/sqlstore"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Driver implements driver.Driver for pgx/v5.
type Driver struct {
	pool  *pgxpool.Pool
	store *sqlstore.Store
}

// New creates a new pgx/v5 driver with the given connection pool.
func New(pool *pgxpool.Pool) *Driver {
	d := &Driver{pool: pool}
	d.store = sqlstore.New(d)
	return d
}

// GetExecutor returns an executor for non-transactional operations.
func (d *Driver) GetExecutor() driver.Executor {
	return &Executor{pool: d.pool}
}

// UnwrapExecutor converts a pgx.Tx to an ExecutorTx.
func (d *Driver) UnwrapExecutor(tx pgx.Tx) driver.ExecutorTx {
	return &ExecutorTx{tx: tx}
}

// Begin starts a new transaction and returns an ExecutorTx.
func (d *Driver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: tx}, nil
}

// PoolIsSet returns true if the driver has a database pool configured.
func (d *Driver) PoolIsSet() bool {
	return d.pool != nil
}

// GetStore returns the SQL store backed by this driver.
func (d *Driver) GetStore() driver.Store {
	return d.store
}

// Migrate creates the activitypg tables if they do not exist.
func (d *Driver) Migrate(ctx context.Context) error {
	return d.store.Migrate(ctx)
}

// Pool returns the underlying pgxpool.Pool for advanced usage.
func (d *Driver) Pool() *pgxpool.Pool {
	return d.pool
}

// SupportsListener returns true as pgx supports dedicated LISTEN connections.
func (d *Driver) SupportsListener() bool {
	return true
}

// GetListener creates a new Listener for receiving PostgreSQL notifications.
// The connection is taken out of the pool and closed with the listener.
func (d *Driver) GetListener(ctx context.Context) (driver.Listener, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn.Hijack()}, nil
}

// GetNotifier returns a Notifier for sending PostgreSQL notifications.
func (d *Driver) GetNotifier() driver.Notifier {
	return &Notifier{pool: d.pool}
}

// querier is the subset shared by pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func exec(ctx context.Context, q querier, sql string, args ...any) (int64, error) {
	result, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return result.RowsAffected(), nil
}

func query(ctx context.Context, q querier, sql string, args ...any) (driver.Rows, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return &rowsWrapper{rows}, nil
}

// Executor wraps pgxpool.Pool for non-transactional operations.
type Executor struct {
	pool *pgxpool.Pool
}

// Begin starts a new transaction.
func (e *Executor) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: tx}, nil
}

// Exec executes a query that doesn't return rows.
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return exec(ctx, e.pool, sql, args...)
}

// Query executes a query that returns rows.
func (e *Executor) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	return query(ctx, e.pool, sql, args...)
}

// QueryRow executes a query that returns at most one row.
func (e *Executor) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return rowWrapper{e.pool.QueryRow(ctx, sql, args...)}
}

// ExecutorTx wraps pgx.Tx for transactional operations.
type ExecutorTx struct {
	tx pgx.Tx
}

// Begin starts a nested transaction (savepoint).
func (e *ExecutorTx) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := e.tx.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: tx}, nil
}

// Exec executes a query that doesn't return rows within the transaction.
func (e *ExecutorTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return exec(ctx, e.tx, sql, args...)
}

// Query executes a query that returns rows within the transaction.
func (e *ExecutorTx) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	return query(ctx, e.tx, sql, args...)
}

// QueryRow executes a query that returns at most one row within the transaction.
func (e *ExecutorTx) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return rowWrapper{e.tx.QueryRow(ctx, sql, args...)}
}

// Commit commits the transaction.
func (e *ExecutorTx) Commit(ctx context.Context) error {
	return e.tx.Commit(ctx)
}

// Rollback rolls back the transaction.
func (e *ExecutorTx) Rollback(ctx context.Context) error {
	return e.tx.Rollback(ctx)
}

// Tx returns the underlying pgx.Tx for advanced usage.
func (e *ExecutorTx) Tx() pgx.Tx {
	return e.tx
}

// rowWrapper adapts pgx.Row to driver.Row.
type rowWrapper struct {
	row pgx.Row
}

// Scan reads the row into dest, mapping pgx.ErrNoRows to driver.ErrNoRows.
func (r rowWrapper) Scan(dest ...any) error {
	return mapError(r.row.Scan(dest...))
}

// rowsWrapper adapts pgx.Rows to driver.Rows.
type rowsWrapper struct {
	pgx.Rows
}

// Close closes the Rows.
func (r *rowsWrapper) Close() {
	r.Rows.Close()
}

// Err returns any error encountered during iteration.
func (r *rowsWrapper) Err() error {
	return mapError(r.Rows.Err())
}

// mapError translates pgx errors into driver sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return driver.ErrNoRows
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", driver.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// Compile-time checks
var (
	_ driver.Driver[pgx.Tx] = (*Driver)(nil)
	_ driver.ExecutorTx     = (*ExecutorTx)(nil)
)
