package pgxv5

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/youssefsiam38/activitypg/driver"
)

// Listener implements driver.Listener on a connection hijacked from the pool.
type Listener struct {
	mu     sync.Mutex
	conn   *pgx.Conn
	closed bool
}

// Listen starts listening on the specified channel.
func (l *Listener) Listen(ctx context.Context, channel string) error {
	conn, err := l.connection()
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

// Unlisten stops listening on the specified channel.
func (l *Listener) Unlisten(ctx context.Context, channel string) error {
	conn, err := l.connection()
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, "UNLISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

// WaitForNotification blocks until a notification arrives or ctx is done.
func (l *Listener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	conn, err := l.connection()
	if err != nil {
		return nil, err
	}
	n, err := conn.WaitForNotification(ctx)
	if err != nil {
		return nil, err
	}
	return &driver.Notification{Channel: n.Channel, Payload: n.Payload}, nil
}

// Close closes the dedicated connection.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.conn.Close(ctx)
}

func (l *Listener) connection() (*pgx.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, driver.ErrListenerClosed
	}
	return l.conn, nil
}

// Notifier implements driver.Notifier using pg_notify.
type Notifier struct {
	pool *pgxpool.Pool
}

// Notify sends a notification on the specified channel.
func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

// Compile-time checks
var (
	_ driver.Listener = (*Listener)(nil)
	_ driver.Notifier = (*Notifier)(nil)
)
