package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/driver/memory"
)

// mockNotifier implements driver.Notifier for testing.
type mockNotifier struct {
	notifications []struct {
		channel string
		payload string
	}
	mu        sync.Mutex
	notifyErr error
}

func (m *mockNotifier) Notify(ctx context.Context, channel, payload string) error {
	if m.notifyErr != nil {
		return m.notifyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, struct {
		channel string
		payload string
	}{channel, payload})
	return nil
}

// mockListener implements driver.Listener for testing.
type mockListener struct {
	notifications chan *driver.Notification
	closed        atomic.Bool
	listenErr     error
}

func newMockListener() *mockListener {
	return &mockListener{
		notifications: make(chan *driver.Notification, 10),
	}
}

func (m *mockListener) Listen(ctx context.Context, channel string) error {
	return m.listenErr
}

func (m *mockListener) Unlisten(ctx context.Context, channel string) error {
	return nil
}

func (m *mockListener) WaitForNotification(ctx context.Context) (*driver.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n := <-m.notifications:
		return n, nil
	}
}

func (m *mockListener) Close(ctx context.Context) error {
	m.closed.Store(true)
	return nil
}

// listeningConfig returns a config whose OnListening closes the returned channel once.
func listeningConfig() (*Config, <-chan struct{}) {
	ready := make(chan struct{})
	var once sync.Once
	cfg := DefaultConfig()
	cfg.OnListening = func() { once.Do(func() { close(ready) }) }
	return cfg, ready
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestNotifier_StartStop(t *testing.T) {
	n := NewNotifier(nil, nil, nil)

	ctx := context.Background()

	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !n.IsRunning() {
		t.Error("Expected notifier to be running")
	}

	if err := n.Start(ctx); err != ErrAlreadyStarted {
		t.Fatalf("Start() error = %v, want %v", err, ErrAlreadyStarted)
	}

	if err := n.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if n.IsRunning() {
		t.Error("Expected notifier to not be running")
	}

	// A stopped notifier can be started again.
	if err := n.Start(ctx); err != nil {
		t.Fatalf("restart Start() error = %v", err)
	}
	if err := n.Stop(ctx); err != nil {
		t.Fatalf("restart Stop() error = %v", err)
	}
}

func TestNotifier_StopNotStarted(t *testing.T) {
	n := NewNotifier(nil, nil, nil)

	if err := n.Stop(context.Background()); err != ErrNotStarted {
		t.Fatalf("Stop() error = %v, want %v", err, ErrNotStarted)
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	listener := newMockListener()
	getListener := func(ctx context.Context) (driver.Listener, error) {
		return listener, nil
	}

	cfg, ready := listeningConfig()
	n := NewNotifier(getListener, nil, cfg)

	events := make(chan *Event, 10)
	unsubscribe := n.Subscribe(EventNoteChanged, func(event *Event) {
		events <- event
	})

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Stop(ctx)
	waitFor(t, ready, "listener")

	listener.notifications <- &driver.Notification{
		Channel: driver.ChannelNoteChanged,
		Payload: "note-123",
	}

	select {
	case event := <-events:
		if event.Type != EventNoteChanged {
			t.Errorf("Event type = %v, want %v", event.Type, EventNoteChanged)
		}
		if event.Payload != "note-123" {
			t.Errorf("Event payload = %v, want note-123", event.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	unsubscribe()

	listener.notifications <- &driver.Notification{
		Channel: driver.ChannelNoteChanged,
		Payload: "note-456",
	}

	select {
	case event := <-events:
		t.Errorf("Received event after unsubscribe: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifier_IgnoresUnknownChannels(t *testing.T) {
	listener := newMockListener()
	cfg, ready := listeningConfig()
	n := NewNotifier(func(ctx context.Context) (driver.Listener, error) { return listener, nil }, nil, cfg)

	events := make(chan *Event, 10)
	n.Subscribe(EventTodoChanged, func(event *Event) { events <- event })

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Stop(ctx)
	waitFor(t, ready, "listener")

	listener.notifications <- &driver.Notification{Channel: "some_other_channel", Payload: "x"}
	listener.notifications <- &driver.Notification{Channel: driver.ChannelTodoChanged, Payload: "y"}

	select {
	case event := <-events:
		if event.Payload != "y" {
			t.Errorf("Expected only the todo event, got payload %q", event.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestNotifier_Notify(t *testing.T) {
	mock := &mockNotifier{}
	n := NewNotifier(nil, mock, nil)

	ctx := context.Background()

	if err := n.Notify(ctx, EventTodoChanged, "todo-123"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.notifications) != 1 {
		t.Fatalf("Sent %d notifications, want 1", len(mock.notifications))
	}
	if mock.notifications[0].channel != driver.ChannelTodoChanged {
		t.Errorf("Channel = %v, want %v", mock.notifications[0].channel, driver.ChannelTodoChanged)
	}
	if mock.notifications[0].payload != "todo-123" {
		t.Errorf("Payload = %v, want todo-123", mock.notifications[0].payload)
	}
}

func TestNotifier_NotifyJSON(t *testing.T) {
	mock := &mockNotifier{}
	n := NewNotifier(nil, mock, nil)

	change := Change{Op: OpDelete, ID: "p1", UserID: "u1"}
	if err := n.NotifyJSON(context.Background(), EventPhotoChanged, change); err != nil {
		t.Fatalf("NotifyJSON() error = %v", err)
	}

	mock.mu.Lock()
	payload := mock.notifications[0].payload
	mock.mu.Unlock()

	var got Change
	event := &Event{Type: EventPhotoChanged, Payload: payload}
	if err := event.Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != change {
		t.Errorf("Decode() = %+v, want %+v", got, change)
	}
}

func TestEvent_DecodeInvalid(t *testing.T) {
	event := &Event{Type: EventNoteChanged, Payload: "not json"}
	var c Change
	if err := event.Decode(&c); err == nil {
		t.Error("Expected Decode to fail on a non-JSON payload")
	}
}

func TestNotifier_NotifyNotSupported(t *testing.T) {
	n := NewNotifier(nil, nil, nil)

	err := n.Notify(context.Background(), EventNoteChanged, "note-123")
	if err != ErrNotifyNotSupported {
		t.Errorf("Notify() error = %v, want %v", err, ErrNotifyNotSupported)
	}
}

func TestNotifier_UnknownEventType(t *testing.T) {
	mock := &mockNotifier{}
	n := NewNotifier(nil, mock, nil)

	err := n.Notify(context.Background(), EventType("unknown"), "payload")
	if err != ErrUnknownEventType {
		t.Errorf("Notify() error = %v, want %v", err, ErrUnknownEventType)
	}
}

func TestNotifier_MultipleSubscribers(t *testing.T) {
	listener := newMockListener()
	getListener := func(ctx context.Context) (driver.Listener, error) {
		return listener, nil
	}

	cfg, ready := listeningConfig()
	n := NewNotifier(getListener, nil, cfg)

	var wg sync.WaitGroup
	wg.Add(2)
	var count1, count2 atomic.Int32

	n.Subscribe(EventReviewChanged, func(event *Event) {
		count1.Add(1)
		wg.Done()
	})
	n.Subscribe(EventReviewChanged, func(event *Event) {
		count2.Add(1)
		wg.Done()
	})

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, ready, "listener")

	listener.notifications <- &driver.Notification{
		Channel: driver.ChannelReviewChanged,
		Payload: "review-123",
	}

	wg.Wait()
	if err := n.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if count1.Load() != 1 {
		t.Errorf("Handler 1 called %d times, want 1", count1.Load())
	}
	if count2.Load() != 1 {
		t.Errorf("Handler 2 called %d times, want 1", count2.Load())
	}
	if !listener.closed.Load() {
		t.Error("Expected listener to be closed on Stop")
	}
}

func TestNotifier_ReconnectsAfterListenError(t *testing.T) {
	var attempts atomic.Int32
	good := newMockListener()
	getListener := func(ctx context.Context) (driver.Listener, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return good, nil
	}

	var reported atomic.Int32
	cfg, ready := listeningConfig()
	cfg.ReconnectDelay = time.Millisecond
	cfg.OnError = func(err error) { reported.Add(1) }

	n := NewNotifier(getListener, nil, cfg)
	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Stop(ctx)

	waitFor(t, ready, "reconnected listener")
	if reported.Load() != 1 {
		t.Errorf("OnError called %d times, want 1", reported.Load())
	}
}

func TestNotifier_MemoryDriverRoundTrip(t *testing.T) {
	drv := memory.New()
	cfg, ready := listeningConfig()
	n := NewNotifier(drv.GetListener, drv.GetNotifier(), cfg)

	events := make(chan *Event, 1)
	n.Subscribe(EventAuthStateChanged, func(event *Event) { events <- event })

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Stop(ctx)
	waitFor(t, ready, "listener")

	if err := n.NotifyJSON(ctx, EventAuthStateChanged, AuthChange{Event: AuthSignedOut, UserID: "u1"}); err != nil {
		t.Fatalf("NotifyJSON() error = %v", err)
	}

	select {
	case event := <-events:
		var change AuthChange
		if err := event.Decode(&change); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if change.Event != AuthSignedOut || change.UserID != "u1" {
			t.Errorf("Decoded %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for auth event")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", config.ReconnectDelay)
	}
	if config.MaxReconnectDelay != time.Minute {
		t.Errorf("MaxReconnectDelay = %v, want 1m", config.MaxReconnectDelay)
	}
}

func TestNotifier_ReconnectBackoff(t *testing.T) {
	n := NewNotifier(nil, nil, &Config{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: time.Second,
	})

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{50, time.Second},
	}
	for _, tt := range tests {
		if got := n.reconnectDelay(tt.failures); got != tt.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestNewNotifier_MaxReconnectDelayAtLeastInitial(t *testing.T) {
	n := NewNotifier(nil, nil, &Config{ReconnectDelay: 2 * time.Minute})
	if n.config.MaxReconnectDelay != 2*time.Minute {
		t.Errorf("MaxReconnectDelay = %v, want 2m", n.config.MaxReconnectDelay)
	}
}
