// Package databasesql provides a database/sql driver implementation for
// activitypg backed by lib/pq.
//
// Usage:
//
//	db, _ := sql.Open("postgres", connStr)
//	drv := databasesql.New(db, connStr)
package databasesql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lib/pq"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/driver/sqlstore"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = pq.ErrorCode("23505")

// Driver implements driver.Driver using database/sql.
type Driver struct {
	db      *sql.DB
	connStr string
	store   *sqlstore.Store
}

// New creates a new database/sql driver using the provided connection.
// The connStr is required for creating listener connections.
func New(db *sql.DB, connStr string) *Driver {
	d := &Driver{db: db, connStr: connStr}
	d.store = sqlstore.New(d)
	return d
}

// Open opens a lib/pq connection pool and wraps it in a Driver.
func Open(connStr string) (*Driver, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return New(db, connStr), nil
}

// GetExecutor returns an executor for non-transactional operations.
func (d *Driver) GetExecutor() driver.Executor {
	return &Executor{db: d.db}
}

// UnwrapExecutor converts a *sql.Tx to an ExecutorTx.
func (d *Driver) UnwrapExecutor(tx *sql.Tx) driver.ExecutorTx {
	return &ExecutorTx{tx: tx}
}

// Begin starts a new transaction and returns an ExecutorTx.
func (d *Driver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: tx}, nil
}

// PoolIsSet returns true if the driver has a database pool configured.
func (d *Driver) PoolIsSet() bool {
	return d.db != nil
}

// GetStore returns the SQL store backed by this driver.
func (d *Driver) GetStore() driver.Store {
	return d.store
}

// Migrate creates the activitypg tables if they do not exist.
func (d *Driver) Migrate(ctx context.Context) error {
	return d.store.Migrate(ctx)
}

// DB returns the underlying database connection.
func (d *Driver) DB() *sql.DB {
	return d.db
}

// SupportsListener reports whether a connection string is available for
// opening a lib/pq listener.
func (d *Driver) SupportsListener() bool {
	return d.connStr != ""
}

// GetListener opens a lib/pq listener connection.
func (d *Driver) GetListener(ctx context.Context) (driver.Listener, error) {
	if d.connStr == "" {
		return nil, errors.New("databasesql: listener requires a connection string")
	}
	return NewListener(d.connStr), nil
}

// GetNotifier returns a Notifier for sending PostgreSQL notifications.
func (d *Driver) GetNotifier() driver.Notifier {
	return &Notifier{db: d.db}
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exec(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return result.RowsAffected()
}

func query(ctx context.Context, q querier, query string, args ...any) (driver.Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return &rowsWrapper{rows}, nil
}

// Executor wraps *sql.DB for non-transactional operations.
type Executor struct {
	db *sql.DB
}

// Begin starts a new transaction.
func (e *Executor) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: tx}, nil
}

// Exec executes a query that doesn't return rows.
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return exec(ctx, e.db, sql, args...)
}

// Query executes a query that returns rows.
func (e *Executor) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	return query(ctx, e.db, sql, args...)
}

// QueryRow executes a query that returns at most one row.
func (e *Executor) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return rowWrapper{e.db.QueryRowContext(ctx, sql, args...)}
}

// ExecutorTx wraps *sql.Tx. Nested Begin calls use savepoints.
type ExecutorTx struct {
	tx        *sql.Tx
	savepoint string
	depth     *atomic.Int64
}

// Begin starts a savepoint inside the transaction.
func (e *ExecutorTx) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	depth := e.depth
	if depth == nil {
		depth = &atomic.Int64{}
		e.depth = depth
	}
	name := fmt.Sprintf("activitypg_sp_%d", depth.Add(1))
	if _, err := e.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: e.tx, savepoint: name, depth: depth}, nil
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
	return rowWrapper{e.tx.QueryRowContext(ctx, sql, args...)}
}

// Commit commits the transaction, or releases the savepoint.
func (e *ExecutorTx) Commit(ctx context.Context) error {
	if e.savepoint != "" {
		_, err := e.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+e.savepoint)
		return err
	}
	return e.tx.Commit()
}

// Rollback rolls back the transaction, or to the savepoint.
func (e *ExecutorTx) Rollback(ctx context.Context) error {
	if e.savepoint != "" {
		_, err := e.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+e.savepoint)
		return err
	}
	return e.tx.Rollback()
}

// Tx returns the underlying *sql.Tx.
func (e *ExecutorTx) Tx() *sql.Tx {
	return e.tx
}

// rowWrapper adapts *sql.Row to driver.Row.
type rowWrapper struct {
	row *sql.Row
}

// Scan reads the row into dest, mapping sql.ErrNoRows to driver.ErrNoRows.
func (r rowWrapper) Scan(dest ...any) error {
	return mapError(r.row.Scan(dest...))
}

// rowsWrapper adapts *sql.Rows to driver.Rows.
type rowsWrapper struct {
	rows *sql.Rows
}

// Close closes the Rows. The close error is surfaced through Err.
func (r *rowsWrapper) Close() {
	_ = r.rows.Close()
}

// Err returns any error encountered during iteration.
func (r *rowsWrapper) Err() error {
	return mapError(r.rows.Err())
}

// Next prepares the next row for reading.
func (r *rowsWrapper) Next() bool {
	return r.rows.Next()
}

// Scan reads the current row into dest.
func (r *rowsWrapper) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// mapError translates database/sql and lib/pq errors into driver sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return driver.ErrNoRows
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", driver.ErrConflict, pqErr.Constraint)
	}
	return err
}

// Compile-time checks
var (
	_ driver.Driver[*sql.Tx] = (*Driver)(nil)
	_ driver.ExecutorTx      = (*ExecutorTx)(nil)
)
