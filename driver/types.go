package driver

import (
	"time"

	"github.com/google/uuid"
)

// Todo priority levels.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Note is a markdown note owned by a user.
type Note struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the note identifier as a string.
func (n *Note) Key() string { return n.ID.String() }

// Todo is a todo card with a priority level.
type Todo struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the todo identifier as a string.
func (t *Todo) Key() string { return t.ID.String() }

// Photo is an uploaded image with gallery metadata.
// ObjectKey addresses the image in the blob store; ImageURL is resolved
// by the gateway when the record is read.
type Photo struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	ObjectKey  string    `json:"object_key"`
	ImageURL   string    `json:"image_url,omitempty"`
	UploadDate time.Time `json:"upload_date"`
}

// Key returns the photo identifier as a string.
func (p *Photo) Key() string { return p.ID.String() }

// Review is a comment left on a photo.
type Review struct {
	ID        uuid.UUID `json:"id"`
	PhotoID   uuid.UUID `json:"photo_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the review identifier as a string.
func (r *Review) Key() string { return r.ID.String() }

// Profile holds display data for a user.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account able to sign in.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession is a bearer token issued at sign-in.
type AuthSession struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *AuthSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
