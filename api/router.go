package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/youssefsiam38/activitypg/auth"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/gateway"
)

// Defaults for Config.
const (
	DefaultPageSize       = 10
	DefaultMaxUploadBytes = 10 << 20
)

// Config holds API router configuration.
type Config struct {
	// PageSize is the list limit when none is given.
	PageSize int

	// MaxUploadBytes bounds multipart photo uploads.
	MaxUploadBytes int64

	// Gatherer is served at GET /metrics. Optional.
	Gatherer prometheus.Gatherer

	// Logger for structured logging.
	Logger Logger
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

// Logger interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Authenticator is the account surface used by the API. *auth.Service
// satisfies it.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, fullName string) (*driver.User, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*driver.User, error)
}

// router holds the API router state.
type router struct {
	auth   Authenticator
	gw     *gateway.Gateway
	config Config
}

// NewRouter creates a new API router.
func NewRouter(authn Authenticator, gw *gateway.Gateway, cfg *Config) http.Handler {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.applyDefaults()

	rt := &router{auth: authn, gw: gw, config: c}
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /auth/signup", rt.handleSignUp)
	mux.HandleFunc("POST /auth/signin", rt.handleSignIn)
	mux.HandleFunc("POST /auth/signout", rt.handleSignOut)

	// Profile
	mux.Handle("GET /profile", rt.authed(rt.handleGetProfile))
	mux.Handle("PUT /profile", rt.authed(rt.handleUpdateProfile))

	// Notes
	mux.Handle("GET /notes", rt.authed(rt.handleListNotes))
	mux.Handle("GET /notes/{id}", rt.authed(rt.handleGetNote))
	mux.Handle("GET /notes/{id}/html", rt.authed(rt.handleGetNoteHTML))
	mux.Handle("POST /notes", rt.authed(rt.handleCreateNote))
	mux.Handle("PATCH /notes/{id}", rt.authed(rt.handleUpdateNote))
	mux.Handle("DELETE /notes/{id}", rt.authed(rt.handleDeleteNote))

	// Todos
	mux.Handle("GET /todos", rt.authed(rt.handleListTodos))
	mux.Handle("GET /todos/{id}", rt.authed(rt.handleGetTodo))
	mux.Handle("POST /todos", rt.authed(rt.handleCreateTodo))
	mux.Handle("PATCH /todos/{id}", rt.authed(rt.handleUpdateTodo))
	mux.Handle("DELETE /todos/{id}", rt.authed(rt.handleDeleteTodo))

	// Photos
	mux.Handle("GET /photos", rt.authed(rt.handleListPhotos))
	mux.Handle("GET /photos/{id}", rt.authed(rt.handleGetPhoto))
	mux.Handle("POST /photos", rt.authed(rt.handleCreatePhoto))
	mux.Handle("PATCH /photos/{id}", rt.authed(rt.handleUpdatePhoto))
	mux.Handle("DELETE /photos/{id}", rt.authed(rt.handleDeletePhoto))

	// Reviews
	mux.Handle("GET /photos/{id}/reviews", rt.authed(rt.handleListReviews))
	mux.Handle("POST /photos/{id}/reviews", rt.authed(rt.handleCreateReview))
	mux.Handle("PATCH /reviews/{id}", rt.authed(rt.handleUpdateReview))
	mux.Handle("DELETE /reviews/{id}", rt.authed(rt.handleDeleteReview))

	// Blobs
	mux.HandleFunc("GET /blobs/{key...}", rt.handleGetBlob)

	if c.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{}))
	}

	return withMiddleware(mux, &rt.config)
}

// withMiddleware wraps the handler with common middleware.
func withMiddleware(handler http.Handler, cfg *Config) http.Handler {
	// Add JSON content type
	handler = jsonMiddleware(handler)
	// Add error recovery
	handler = recoveryMiddleware(handler, cfg.Logger)
	return handler
}

// jsonMiddleware sets JSON content type for all responses. Handlers serving
// other content overwrite it.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func recoveryMiddleware(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, `{"error":{"code":"internal_error","message":"internal server error"}}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authed resolves the bearer token and runs next with the user in the
// request context.
func (rt *router) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "bearer token required")
			return
		}
		user, err := rt.auth.Authenticate(r.Context(), token)
		if err != nil {
			rt.writeErr(w, err)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
