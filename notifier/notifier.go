// Package notifier delivers activitypg change events over PostgreSQL
// LISTEN/NOTIFY.
//
// Mutations in the gateway and auth layers publish an event per change; the
// notifier keeps one listener connection open, reconnects after failures,
// and dispatches received events to subscribers in arrival order. With the
// memory driver the same flow runs in-process.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/activitypg/driver"
)

// EventType represents the type of event.
type EventType string

// Event types that can be subscribed to.
const (
	EventAuthStateChanged EventType = "auth_state_changed"
	EventNoteChanged      EventType = "note_changed"
	EventTodoChanged      EventType = "todo_changed"
	EventPhotoChanged     EventType = "photo_changed"
	EventReviewChanged    EventType = "review_changed"
)

// Operations carried in a Change payload.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Auth events carried in an AuthChange payload.
const (
	AuthSignedIn  = "signed_in"
	AuthSignedOut = "signed_out"
	AuthExpired   = "expired"
)

// Change is the payload of record change events.
type Change struct {
	Op     string `json:"op"`
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// AuthChange is the payload of EventAuthStateChanged.
type AuthChange struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

// Event represents a notification event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Payload is the raw event payload, JSON for events published by activitypg.
	Payload string

	// ReceivedAt is when the event was received.
	ReceivedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal([]byte(e.Payload), v); err != nil {
		return fmt.Errorf("notifier: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Handler is called when an event is received.
type Handler func(event *Event)

// Config holds configuration for the notifier.
type Config struct {
	// ReconnectDelay is the wait before the first reconnect after a
	// disconnect. It doubles for each further failure in a row.
	// Default: 5 seconds
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the reconnect wait.
	// Default: 1 minute
	MaxReconnectDelay time.Duration

	// OnError is called when an error occurs.
	OnError func(err error)

	// OnReconnect is called when the listener reconnects.
	OnReconnect func()

	// OnListening is called each time the listener has subscribed to every channel.
	OnListening func()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ReconnectDelay:    5 * time.Second,
		MaxReconnectDelay: time.Minute,
	}
}

// channelToEventType maps PostgreSQL channel names to event types.
var channelToEventType = map[string]EventType{
	driver.ChannelAuthStateChanged: EventAuthStateChanged,
	driver.ChannelNoteChanged:      EventNoteChanged,
	driver.ChannelTodoChanged:      EventTodoChanged,
	driver.ChannelPhotoChanged:     EventPhotoChanged,
	driver.ChannelReviewChanged:    EventReviewChanged,
}

// eventTypeToChannel maps event types to PostgreSQL channel names.
var eventTypeToChannel = map[EventType]string{
	EventAuthStateChanged: driver.ChannelAuthStateChanged,
	EventNoteChanged:      driver.ChannelNoteChanged,
	EventTodoChanged:      driver.ChannelTodoChanged,
	EventPhotoChanged:     driver.ChannelPhotoChanged,
	EventReviewChanged:    driver.ChannelReviewChanged,
}

// Subscription represents an active subscription to events.
type Subscription struct {
	eventType EventType
	handler   Handler
	id        int64
}

// Notifier provides event notification capabilities.
type Notifier struct {
	getListener func(ctx context.Context) (driver.Listener, error)
	notifier    driver.Notifier
	config      *Config

	mu            sync.RWMutex
	subscriptions map[EventType][]*Subscription
	nextSubID     int64

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewNotifier creates a new notifier.
// The getListener function returns a new listener instance for receiving notifications.
// The notifier is used for sending notifications.
// If getListener is nil, notifications will not be received (send-only mode).
func NewNotifier(
	getListener func(ctx context.Context) (driver.Listener, error),
	notifier driver.Notifier,
	config *Config,
) *Notifier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if config.MaxReconnectDelay < config.ReconnectDelay {
		config.MaxReconnectDelay = max(DefaultConfig().MaxReconnectDelay, config.ReconnectDelay)
	}

	return &Notifier{
		getListener:   getListener,
		notifier:      notifier,
		config:        config,
		subscriptions: make(map[EventType][]*Subscription),
	}
}

// Start begins listening for notifications.
func (n *Notifier) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	go n.run(ctx, n.done)

	return nil
}

// Stop stops the notifier and waits for the listen loop to exit.
func (n *Notifier) Stop(ctx context.Context) error {
	if !n.started.Load() {
		return ErrNotStarted
	}

	n.cancel()
	select {
	case <-n.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	n.started.Store(false)
	return nil
}

// Subscribe registers a handler for the given event type.
// Returns a function to unsubscribe.
func (n *Notifier) Subscribe(eventType EventType, handler Handler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub := &Subscription{
		eventType: eventType,
		handler:   handler,
		id:        n.nextSubID,
	}
	n.nextSubID++

	n.subscriptions[eventType] = append(n.subscriptions[eventType], sub)

	return func() {
		n.unsubscribe(eventType, sub.id)
	}
}

// unsubscribe removes a subscription.
func (n *Notifier) unsubscribe(eventType EventType, id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subscriptions[eventType]
	for i, sub := range subs {
		if sub.id == id {
			n.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

// Notify sends a notification.
func (n *Notifier) Notify(ctx context.Context, eventType EventType, payload string) error {
	if n.notifier == nil {
		return ErrNotifyNotSupported
	}

	channel, ok := eventTypeToChannel[eventType]
	if !ok {
		return ErrUnknownEventType
	}

	return n.notifier.Notify(ctx, channel, payload)
}

// NotifyJSON marshals v and sends it as the event payload.
func (n *Notifier) NotifyJSON(ctx context.Context, eventType EventType, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("notifier: encode %s payload: %w", eventType, err)
	}
	return n.Notify(ctx, eventType, string(payload))
}

// run keeps a listener connected until ctx is done.
func (n *Notifier) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var failures int
	for {
		listening := false
		err := n.listenLoop(ctx, func() { listening = true })
		if ctx.Err() != nil {
			return
		}
		if listening {
			failures = 0
		}
		if n.config.OnError != nil && err != nil {
			n.config.OnError(err)
		}

		delay := n.reconnectDelay(failures)
		failures++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			if n.config.OnReconnect != nil {
				n.config.OnReconnect()
			}
		}
	}
}

// reconnectDelay returns the wait after failures consecutive failed attempts.
func (n *Notifier) reconnectDelay(failures int) time.Duration {
	delay := n.config.ReconnectDelay
	for i := 0; i < failures && delay < n.config.MaxReconnectDelay; i++ {
		delay *= 2
	}
	return min(delay, n.config.MaxReconnectDelay)
}

// listenLoop creates a listener and dispatches notifications until an error
// occurs. listening is called once every channel is subscribed.
func (n *Notifier) listenLoop(ctx context.Context, listening func()) error {
	if n.getListener == nil {
		// No listener support, just wait for context cancellation
		<-ctx.Done()
		return ctx.Err()
	}

	listener, err := n.getListener(ctx)
	if err != nil {
		return err
	}
	if listener == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	defer func() { _ = listener.Close(context.WithoutCancel(ctx)) }()

	for channel := range channelToEventType {
		if err := listener.Listen(ctx, channel); err != nil {
			return err
		}
	}
	listening()
	if n.config.OnListening != nil {
		n.config.OnListening()
	}

	for {
		notification, err := listener.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		eventType, ok := channelToEventType[notification.Channel]
		if !ok {
			continue
		}

		n.dispatch(&Event{
			Type:       eventType,
			Payload:    notification.Payload,
			ReceivedAt: time.Now(),
		})
	}
}

// dispatch sends an event to all subscribed handlers.
func (n *Notifier) dispatch(event *Event) {
	n.mu.RLock()
	subs := make([]*Subscription, len(n.subscriptions[event.Type]))
	copy(subs, n.subscriptions[event.Type])
	n.mu.RUnlock()

	// Handlers run synchronously to keep delivery order.
	for _, sub := range subs {
		sub.handler(event)
	}
}

// IsRunning returns true if the notifier is running.
func (n *Notifier) IsRunning() bool {
	return n.started.Load()
}
