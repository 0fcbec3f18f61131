package memory

import (
	"context"
	"sync"

	"github.com/youssefsiam38/activitypg/driver"
)

// hub fans notifications out to every listener subscribed to the channel.
type hub struct {
	mu        sync.Mutex
	listeners map[*Listener]struct{}
}

func newHub() *hub {
	return &hub{listeners: make(map[*Listener]struct{})}
}

func (h *hub) newListener() *Listener {
	l := &Listener{
		hub:      h,
		channels: make(map[string]struct{}),
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.listeners[l] = struct{}{}
	h.mu.Unlock()
	return l
}

// Notify queues the notification on every listener of channel.
func (h *hub) Notify(_ context.Context, channel, payload string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.listeners {
		l.deliver(driver.Notification{Channel: channel, Payload: payload})
	}
	return nil
}

// Listener implements driver.Listener. Queued notifications are unbounded,
// matching the server-side queue of PostgreSQL.
type Listener struct {
	hub *hub

	mu       sync.Mutex
	channels map[string]struct{}
	queue    []driver.Notification
	closed   bool

	ready chan struct{}
	done  chan struct{}
}

func (l *Listener) deliver(n driver.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if _, ok := l.channels[n.Channel]; !ok {
		return
	}
	l.queue = append(l.queue, n)
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Listen starts listening on the specified channel.
func (l *Listener) Listen(_ context.Context, channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return driver.ErrListenerClosed
	}
	l.channels[channel] = struct{}{}
	return nil
}

// Unlisten stops listening on the specified channel.
func (l *Listener) Unlisten(_ context.Context, channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return driver.ErrListenerClosed
	}
	delete(l.channels, channel)
	return nil
}

// WaitForNotification returns the oldest queued notification, blocking until
// one arrives, ctx is done, or the listener is closed.
func (l *Listener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, driver.ErrListenerClosed
		}
		if len(l.queue) > 0 {
			n := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return &n, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.done:
			return nil, driver.ErrListenerClosed
		case <-l.ready:
		}
	}
}

// Close detaches the listener from the hub.
func (l *Listener) Close(context.Context) error {
	l.hub.mu.Lock()
	delete(l.hub.listeners, l)
	l.hub.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.queue = nil
	close(l.done)
	return nil
}

// Compile-time checks
var (
	_ driver.Listener = (*Listener)(nil)
	_ driver.Notifier = (*hub)(nil)
)
