package driver

import "context"

// Notification represents a PostgreSQL NOTIFY notification.
type Notification struct {
	// Channel is the notification channel name.
	Channel string

	// Payload is the notification payload (may be empty).
	Payload string
}

// Listener provides PostgreSQL LISTEN/NOTIFY functionality.
//
// pgx/v5 implements it over a dedicated pooled connection, database/sql over
// a lib/pq listener connection. The in-memory driver delivers notifications
// sent through its own Notifier.
type Listener interface {
	// Listen starts listening on the specified channel.
	Listen(ctx context.Context, channel string) error

	// Unlisten stops listening on the specified channel.
	Unlisten(ctx context.Context, channel string) error

	// WaitForNotification waits for a notification on any subscribed channel.
	// Returns an error if the context is cancelled, the connection is lost,
	// or the listener is closed.
	WaitForNotification(ctx context.Context) (*Notification, error)

	// Close closes the listener connection.
	Close(ctx context.Context) error
}

// Notifier provides the ability to send NOTIFY notifications.
type Notifier interface {
	// Notify sends a notification on the specified channel with an optional payload.
	Notify(ctx context.Context, channel, payload string) error
}

// Notification channel names used by activitypg.
const (
	// ChannelAuthStateChanged is notified on sign-in, sign-out and session expiry.
	// Payload contains JSON: {"event": "...", "user_id": "...", "token_id": "..."}
	ChannelAuthStateChanged = "activitypg_auth_state_changed"

	// ChannelNoteChanged is notified after a note is created, updated or deleted.
	// Payload contains JSON: {"op": "...", "id": "...", "user_id": "..."}
	ChannelNoteChanged = "activitypg_note_changed"

	// ChannelTodoChanged is notified after a todo is created, updated or deleted.
	ChannelTodoChanged = "activitypg_todo_changed"

	// ChannelPhotoChanged is notified after a photo is created, updated or deleted.
	ChannelPhotoChanged = "activitypg_photo_changed"

	// ChannelReviewChanged is notified after a review is created, updated or deleted.
	ChannelReviewChanged = "activitypg_review_changed"
)
