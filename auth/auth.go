// Package auth provides account sign-up, password sign-in and bearer-token
// sessions for activitypg.
//
// Passwords are hashed with bcrypt. Sign-in issues an opaque token stored in
// the auth sessions table; Authenticate resolves it back to the user.
// Sign-in, sign-out and expiry publish notifier.EventAuthStateChanged so
// session providers can follow the auth state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/notifier"
	"golang.org/x/crypto/bcrypt"
	"k8s.io/utils/clock"
)

// Errors returned by the auth package.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrSessionNotFound    = errors.New("auth: session not found")
	ErrSessionExpired     = errors.New("auth: session expired")
)

// Defaults.
const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	MinPasswordLength = 6
	maxPasswordBytes  = 72
	DefaultBcryptCost = bcrypt.DefaultCost
)

// Logger interface for structured logging.
// Compatible with activitypg.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher sends auth state events. *notifier.Notifier satisfies it.
type Publisher interface {
	NotifyJSON(ctx context.Context, eventType notifier.EventType, v any) error
}

// Config holds configuration for the auth service.
type Config struct {
	// SessionTTL is how long an issued token stays valid.
	// Defaults to 7 days.
	SessionTTL time.Duration

	// BcryptCost is the bcrypt work factor.
	// Defaults to bcrypt.DefaultCost.
	BcryptCost int

	// Clock stamps session expiry. Defaults to the real clock.
	Clock clock.PassiveClock

	// Logger for auth events. Nil disables logging.
	Logger Logger
}

func (c *Config) applyDefaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = DefaultBcryptCost
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *driver.User `json:"user"`
}

// Service implements sign-up, sign-in and token authentication.
type Service struct {
	store     driver.UserStore
	publisher Publisher
	config    Config
}

// New creates an auth service. publisher may be nil.
func New(store driver.UserStore, publisher Publisher, config *Config) *Service {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()
	return &Service{store: store, publisher: publisher, config: cfg}
}

// SignUp creates an account. The email must be a bare address and the
// password at least MinPasswordLength characters.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*driver.User, error) {
	email = strings.TrimSpace(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: email %q is not a valid address", ErrInvalidInput, email)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, driver.CreateUserParams{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, driver.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}

	s.log().Info("user signed up", "user_id", user.ID)
	return user, nil
}

// SignIn checks the password and issues a new session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session := &driver.AuthSession{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.config.Clock.Now().Add(s.config.SessionTTL),
		CreatedAt: s.config.Clock.Now(),
	}
	if err := s.store.CreateAuthSession(ctx, session); err != nil {
		return nil, fmt.Errorf("auth: create session: %w", err)
	}

	s.publish(ctx, notifier.AuthSignedIn, user.ID)
	s.log().Info("user signed in", "user_id", user.ID)
	return &Session{Token: session.Token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// SignOut revokes a token. Revoking an unknown token returns ErrSessionNotFound.
func (s *Service) SignOut(ctx context.Context, token string) error {
	session, err := s.store.GetAuthSession(ctx, token)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("auth: lookup session: %w", err)
	}
	if _, err := s.store.DeleteAuthSession(ctx, token); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}

	s.publish(ctx, notifier.AuthSignedOut, session.UserID)
	s.log().Info("user signed out", "user_id", session.UserID)
	return nil
}

// Authenticate resolves a token to its user. Expired tokens are deleted and
// reported as ErrSessionExpired.
func (s *Service) Authenticate(ctx context.Context, token string) (*driver.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	session, err := s.store.GetAuthSession(ctx, token)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("auth: lookup session: %w", err)
	}
	if session.Expired(s.config.Clock.Now()) {
		if _, err := s.store.DeleteAuthSession(ctx, token); err != nil {
			s.log().Warn("failed to delete expired session", "user_id", session.UserID, "error", err)
		}
		s.publish(ctx, notifier.AuthExpired, session.UserID)
		return nil, ErrSessionExpired
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}
	return user, nil
}

// ExpireSessions deletes every session that has expired and publishes an
// expiry event per affected user. It returns the number of sessions removed.
func (s *Service) ExpireSessions(ctx context.Context) (int, error) {
	userIDs, err := s.store.DeleteExpiredAuthSessions(ctx, s.config.Clock.Now())
	if err != nil {
		return 0, fmt.Errorf("auth: expire sessions: %w", err)
	}
	for _, id := range userIDs {
		s.publish(ctx, notifier.AuthExpired, id)
	}
	return len(userIDs), nil
}

func (s *Service) publish(ctx context.Context, event string, userID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	change := notifier.AuthChange{Event: event, UserID: userID.String()}
	if err := s.publisher.NotifyJSON(ctx, notifier.EventAuthStateChanged, change); err != nil {
		s.log().Warn("failed to publish auth event", "event", event, "user_id", userID, "error", err)
	}
}

func (s *Service) log() Logger {
	if s.config.Logger == nil {
		return nopLogger{}
	}
	return s.config.Logger
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
