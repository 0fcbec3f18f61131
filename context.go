package activitypg

import (
	"context"

	"github.com/youssefsiam38/activitypg/driver"
)

// WithTx returns a context whose gateway and auth calls run inside tx. The
// caller commits or rolls back tx.
//
// The type parameter TTx matches the driver:
//   - pgx.Tx for pgxv5.Driver
//   - *sql.Tx for databasesql.Driver
func (c *Client[TTx]) WithTx(ctx context.Context, tx TTx) context.Context {
	return driver.WithExecutor(ctx, c.driver.UnwrapExecutor(tx))
}

// InTx runs fn inside a new transaction and commits it when fn returns nil.
// The memory driver does not support transactions and returns
// driver.ErrTxUnsupported.
func (c *Client[TTx]) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := c.driver.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(driver.WithExecutor(ctx, tx)); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	return tx.Commit(ctx)
}
