package databasesql

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/youssefsiam38/activitypg/driver"
)

const (
	minReconnectInterval = 10 * time.Millisecond
	maxReconnectInterval = time.Minute
)

// Listener implements driver.Listener using a lib/pq listener connection.
// lib/pq reconnects on its own and re-issues LISTEN for every channel.
type Listener struct {
	pq *pq.Listener

	mu     sync.Mutex
	closed bool
}

// NewListener creates a Listener for the given connection string.
func NewListener(connStr string) *Listener {
	return &Listener{
		pq: pq.NewListener(connStr, minReconnectInterval, maxReconnectInterval, nil),
	}
}

// Listen starts listening on the specified channel.
func (l *Listener) Listen(_ context.Context, channel string) error {
	if l.isClosed() {
		return driver.ErrListenerClosed
	}
	err := l.pq.Listen(channel)
	if err == pq.ErrChannelAlreadyOpen {
		return nil
	}
	return err
}

// Unlisten stops listening on the specified channel.
func (l *Listener) Unlisten(_ context.Context, channel string) error {
	if l.isClosed() {
		return driver.ErrListenerClosed
	}
	err := l.pq.Unlisten(channel)
	if err == pq.ErrChannelNotOpen {
		return nil
	}
	return err
}

// WaitForNotification blocks until a notification arrives or ctx is done.
// The nil notification lib/pq sends after a reconnect is skipped.
func (l *Listener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case n, ok := <-l.pq.Notify:
			if !ok {
				return nil, driver.ErrListenerClosed
			}
			if n == nil {
				continue
			}
			return &driver.Notification{Channel: n.Channel, Payload: n.Extra}, nil
		}
	}
}

// Close closes the listener connection.
func (l *Listener) Close(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.pq.Close()
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Notifier implements driver.Notifier using database/sql.
type Notifier struct {
	db *sql.DB
}

// Notify sends a notification on the specified channel.
func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

// Compile-time checks
var (
	_ driver.Listener = (*Listener)(nil)
	_ driver.Notifier = (*Notifier)(nil)
)
