// Package session tracks the signed-in user of a client. A Provider is
// created once at application start, resolves the stored token, follows
// auth state events and tells subscribers when the session changes.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/activitypg/auth"
	"github.com/youssefsiam38/activitypg/draft"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/notifier"
)

// DefaultEventTimeout bounds the profile lookup made when an auth event
// arrives.
const DefaultEventTimeout = 15 * time.Second

// Authenticator resolves a token to its user. *auth.Service satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*driver.User, error)
}

// Subscriber delivers notifier events. *notifier.Notifier satisfies it.
type Subscriber interface {
	Subscribe(eventType notifier.EventType, handler notifier.Handler) func()
}

// ProfileEnsurer returns a user's profile, creating it when missing.
// *gateway.Profiles satisfies it.
type ProfileEnsurer interface {
	Ensure(ctx context.Context, userID uuid.UUID, fullName string) (*driver.Profile, error)
}

// Logger is the logging interface used by this package.
// Compatible with activitypg.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// State is a snapshot of the session. A nil Session means signed out.
type State struct {
	Session  *auth.Session
	UserID   uuid.UUID
	FullName string
	Loading  bool
}

// SignedIn reports whether the state carries a user.
func (s State) SignedIn() bool { return s.Session != nil }

// Config configures a Provider.
type Config struct {
	// Auth resolves tokens. Required for Init.
	Auth Authenticator

	// Events delivers auth state events. Optional.
	Events Subscriber

	// Profiles ensures a profile exists at sign-in. Optional.
	Profiles ProfileEnsurer

	// Drafts are reset on sign-out. Optional.
	Drafts *draft.Drafts

	// EventTimeout bounds work done for one event.
	// Defaults to DefaultEventTimeout.
	EventTimeout time.Duration

	// Logger for session changes. Nil disables logging.
	Logger Logger
}

// Provider holds the session state.
type Provider struct {
	cfg    Config
	logger Logger
	unsub  func()

	mu     sync.Mutex
	state  State
	subs   map[int64]func(State)
	nextID int64
	closed bool
}

// New creates a provider in the loading state and subscribes to auth
// events.
func New(cfg Config) *Provider {
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = DefaultEventTimeout
	}
	var logger Logger = nopLogger{}
	if cfg.Logger != nil {
		logger = cfg.Logger
	}
	p := &Provider{
		cfg:    cfg,
		logger: logger,
		state:  State{Loading: true},
		subs:   make(map[int64]func(State)),
	}
	if cfg.Events != nil {
		p.unsub = cfg.Events.Subscribe(notifier.EventAuthStateChanged, p.handleEvent)
	}
	return p
}

// Init resolves token into the current session. An empty, unknown or
// expired token leaves the provider signed out without error.
func (p *Provider) Init(ctx context.Context, token string) error {
	if token == "" {
		p.set(State{})
		return nil
	}
	if p.cfg.Auth == nil {
		p.set(State{})
		return errors.New("session: no authenticator configured")
	}
	user, err := p.cfg.Auth.Authenticate(ctx, token)
	if err != nil {
		p.set(State{})
		if errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrSessionExpired) {
			p.logger.Debug("stored session is no longer valid", "error", err)
			return nil
		}
		return err
	}
	p.signIn(ctx, &auth.Session{Token: token, User: user})
	return nil
}

// SetSession installs a session obtained from sign-in.
func (p *Provider) SetSession(ctx context.Context, s *auth.Session) {
	if s == nil || s.User == nil {
		p.signOut("cleared")
		return
	}
	p.signIn(ctx, s)
}

// SignOut clears the session and resets drafts.
func (p *Provider) SignOut() { p.signOut(notifier.AuthSignedOut) }

// State returns the current snapshot.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Context returns ctx carrying the signed-in user, for gateway calls.
func (p *Provider) Context(ctx context.Context) context.Context {
	st := p.State()
	if st.Session == nil {
		return ctx
	}
	return auth.WithUser(ctx, st.Session.User)
}

// Subscribe calls fn with every new state until the returned function is
// called.
func (p *Provider) Subscribe(fn func(State)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Close stops following auth events and drops subscribers.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.subs = make(map[int64]func(State))
	p.mu.Unlock()
	if p.unsub != nil {
		p.unsub()
	}
}

func (p *Provider) signIn(ctx context.Context, s *auth.Session) {
	fullName := s.User.FullName
	if p.cfg.Profiles != nil {
		profile, err := p.cfg.Profiles.Ensure(auth.WithUser(ctx, s.User), s.User.ID, s.User.FullName)
		if err != nil {
			p.logger.Warn("failed to ensure profile", "user_id", s.User.ID, "error", err)
		} else if profile.FullName != "" {
			fullName = profile.FullName
		}
	}
	p.set(State{Session: s, UserID: s.User.ID, FullName: fullName})
	p.logger.Info("session started", "user_id", s.User.ID)
}

func (p *Provider) signOut(reason string) {
	prev := p.State()
	p.set(State{})
	if p.cfg.Drafts != nil {
		p.cfg.Drafts.ResetAll()
	}
	if prev.Session != nil {
		p.logger.Info("session ended", "user_id", prev.UserID, "reason", reason)
	}
}

func (p *Provider) handleEvent(event *notifier.Event) {
	var change notifier.AuthChange
	if err := event.Decode(&change); err != nil {
		p.logger.Warn("ignoring malformed auth event", "error", err)
		return
	}
	current := p.State()
	if current.Session == nil || change.UserID != current.UserID.String() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.EventTimeout)
	defer cancel()

	switch change.Event {
	case notifier.AuthSignedOut, notifier.AuthExpired:
		// Events are per user; another device signing out leaves this
		// token valid.
		if p.cfg.Auth != nil {
			_, err := p.cfg.Auth.Authenticate(ctx, current.Session.Token)
			if err == nil {
				return
			}
			if !errors.Is(err, auth.ErrSessionNotFound) && !errors.Is(err, auth.ErrSessionExpired) {
				p.logger.Warn("failed to recheck session", "user_id", current.UserID, "error", err)
				return
			}
		}
		p.signOut(change.Event)
	case notifier.AuthSignedIn:
		p.signIn(ctx, current.Session)
	}
}

func (p *Provider) set(s State) {
	p.mu.Lock()
	p.state = s
	subs := make([]func(State), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
