// Package memory provides an in-process driver for activitypg.
//
// It keeps every record in maps guarded by a mutex and delivers
// notifications between its own Notifier and Listeners. It backs unit tests
// and the "memory" database mode of activityd; SQL transactions are not
// supported.
package memory

import (
	"context"

	"github.com/youssefsiam38/activitypg/driver"
	"k8s.io/utils/clock"
)

// NoTx is the transaction type of the memory driver. No value of it is ever
// produced.
type NoTx struct{}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the clock used for record timestamps.
func WithClock(c clock.PassiveClock) Option {
	return func(d *Driver) { d.store.clock = c }
}

// Driver implements driver.Driver in memory.
type Driver struct {
	store *Store
	hub   *hub
}

// New creates an empty memory driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		store: NewStore(clock.RealClock{}),
		hub:   newHub(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetExecutor returns an executor that rejects every SQL call.
func (d *Driver) GetExecutor() driver.Executor {
	return unsupportedExecutor{}
}

// UnwrapExecutor returns an executor that rejects every SQL call.
func (d *Driver) UnwrapExecutor(NoTx) driver.ExecutorTx {
	return unsupportedExecutor{}
}

// Begin always fails with driver.ErrTxUnsupported.
func (d *Driver) Begin(context.Context) (driver.ExecutorTx, error) {
	return nil, driver.ErrTxUnsupported
}

// PoolIsSet returns true; the maps are always available.
func (d *Driver) PoolIsSet() bool {
	return true
}

// GetStore returns the in-memory store.
func (d *Driver) GetStore() driver.Store {
	return d.store
}

// SupportsListener returns true.
func (d *Driver) SupportsListener() bool {
	return true
}

// GetListener returns a new Listener attached to this driver's notifier.
func (d *Driver) GetListener(context.Context) (driver.Listener, error) {
	return d.hub.newListener(), nil
}

// GetNotifier returns the notifier shared by all listeners of this driver.
func (d *Driver) GetNotifier() driver.Notifier {
	return d.hub
}

type unsupportedExecutor struct{}

func (unsupportedExecutor) Begin(context.Context) (driver.ExecutorTx, error) {
	return nil, driver.ErrTxUnsupported
}

func (unsupportedExecutor) Exec(context.Context, string, ...any) (int64, error) {
	return 0, driver.ErrTxUnsupported
}

func (unsupportedExecutor) Query(context.Context, string, ...any) (driver.Rows, error) {
	return nil, driver.ErrTxUnsupported
}

func (unsupportedExecutor) QueryRow(context.Context, string, ...any) driver.Row {
	return errRow{driver.ErrTxUnsupported}
}

func (unsupportedExecutor) Commit(context.Context) error   { return driver.ErrTxUnsupported }
func (unsupportedExecutor) Rollback(context.Context) error { return driver.ErrTxUnsupported }

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// Compile-time check
var _ driver.Driver[NoTx] = (*Driver)(nil)
