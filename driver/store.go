package driver

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines every persistence operation the gateway and auth layers need.
// Implementations read the transaction to use from the context (see WithExecutor).
type Store interface {
	NoteStore
	TodoStore
	PhotoStore
	ReviewStore
	ProfileStore
	UserStore
	LeaseStore
}

// ListParams filters and paginates a list query.
// OrderBy and OrderDir must already be validated by the caller; stores fall
// back to each table's default ordering when they are empty.
type ListParams struct {
	UserID   uuid.UUID
	Search   string
	Category string
	OrderBy  string
	OrderDir string
	Limit    int
	Offset   int
}

// NoteStore persists notes.
type NoteStore interface {
	CreateNote(ctx context.Context, params CreateNoteParams) (*Note, error)
	GetNote(ctx context.Context, id uuid.UUID) (*Note, error)
	ListNotes(ctx context.Context, params ListParams) ([]*Note, error)
	UpdateNote(ctx context.Context, id uuid.UUID, params UpdateNoteParams) (*Note, error)
	DeleteNote(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreateNoteParams holds the fields of a new note.
type CreateNoteParams struct {
	UserID  uuid.UUID
	Title   string
	Content string
}

// UpdateNoteParams holds changed note fields; nil fields are left unchanged.
type UpdateNoteParams struct {
	Title   *string
	Content *string
}

// TodoStore persists todos.
type TodoStore interface {
	CreateTodo(ctx context.Context, params CreateTodoParams) (*Todo, error)
	GetTodo(ctx context.Context, id uuid.UUID) (*Todo, error)
	ListTodos(ctx context.Context, params ListParams) ([]*Todo, error)
	UpdateTodo(ctx context.Context, id uuid.UUID, params UpdateTodoParams) (*Todo, error)
	DeleteTodo(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreateTodoParams holds the fields of a new todo.
type CreateTodoParams struct {
	UserID  uuid.UUID
	Title   string
	Content string
	Level   string
}

// UpdateTodoParams holds changed todo fields; nil fields are left unchanged.
type UpdateTodoParams struct {
	Title   *string
	Content *string
	Level   *string
}

// PhotoStore persists photo metadata. Image bytes live in the blob store.
type PhotoStore interface {
	CreatePhoto(ctx context.Context, params CreatePhotoParams) (*Photo, error)
	GetPhoto(ctx context.Context, id uuid.UUID) (*Photo, error)
	ListPhotos(ctx context.Context, params ListParams) ([]*Photo, error)
	UpdatePhoto(ctx context.Context, id uuid.UUID, params UpdatePhotoParams) (*Photo, error)
	DeletePhoto(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreatePhotoParams holds the fields of a new photo.
type CreatePhotoParams struct {
	UserID    uuid.UUID
	Name      string
	Category  string
	ObjectKey string
}

// UpdatePhotoParams holds changed photo fields; nil fields are left unchanged.
type UpdatePhotoParams struct {
	Name      *string
	ObjectKey *string
}

// ReviewStore persists photo reviews.
type ReviewStore interface {
	CreateReview(ctx context.Context, params CreateReviewParams) (*Review, error)
	GetReview(ctx context.Context, id uuid.UUID) (*Review, error)
	ListReviews(ctx context.Context, photoID uuid.UUID) ([]*Review, error)
	UpdateReview(ctx context.Context, id uuid.UUID, content string) (*Review, error)
	DeleteReview(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreateReviewParams holds the fields of a new review.
type CreateReviewParams struct {
	PhotoID uuid.UUID
	UserID  uuid.UUID
	Content string
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	// UpsertProfile inserts the profile or updates full_name on conflict.
	UpsertProfile(ctx context.Context, id uuid.UUID, fullName string) (*Profile, error)
}

// UserStore persists accounts and their bearer sessions.
type UserStore interface {
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	CreateAuthSession(ctx context.Context, session *AuthSession) error
	GetAuthSession(ctx context.Context, token string) (*AuthSession, error)
	DeleteAuthSession(ctx context.Context, token string) (bool, error)
	// DeleteExpiredAuthSessions removes sessions that expired before the given time
	// and returns their tokens' user IDs in deletion order.
	DeleteExpiredAuthSessions(ctx context.Context, before time.Time) ([]uuid.UUID, error)
}

// CreateUserParams holds the fields of a new account.
type CreateUserParams struct {
	Email        string
	FullName     string
	PasswordHash string
}

// LeaseStore persists named leader leases. At most one holder owns a lease
// name until it expires.
type LeaseStore interface {
	// LeaderAttemptElect takes the lease if it is free or expired.
	LeaderAttemptElect(ctx context.Context, params *LeaderElectParams) (bool, error)
	// LeaderAttemptReelect extends the lease if params.LeaderID still holds it.
	LeaderAttemptReelect(ctx context.Context, params *LeaderElectParams) (bool, error)
	// LeaderResign releases the lease if leaderID holds it.
	LeaderResign(ctx context.Context, name, leaderID string) error
}

// LeaderElectParams identifies a lease attempt.
type LeaderElectParams struct {
	Name     string
	LeaderID string
	TTL      time.Duration
}
