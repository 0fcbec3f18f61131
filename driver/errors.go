package driver

import "errors"

// Driver package errors.
var (
	// ErrNoRows is returned by Row.Scan when the query matched nothing.
	ErrNoRows = errors.New("driver: no rows in result set")

	// ErrNotFound is returned by Store methods when the record does not exist.
	ErrNotFound = errors.New("driver: not found")

	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("driver: conflict")

	// ErrTxUnsupported is returned by drivers that cannot run SQL transactions.
	ErrTxUnsupported = errors.New("driver: transactions not supported")

	// ErrListenerClosed is returned by Listener methods after Close.
	ErrListenerClosed = errors.New("driver: listener closed")
)
