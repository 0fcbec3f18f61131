package activitypg

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/youssefsiam38/activitypg/api"
	"github.com/youssefsiam38/activitypg/auth"
	"github.com/youssefsiam38/activitypg/blob"
	"github.com/youssefsiam38/activitypg/draft"
	"github.com/youssefsiam38/activitypg/driver"
	"github.com/youssefsiam38/activitypg/gateway"
	"github.com/youssefsiam38/activitypg/hooks"
	"github.com/youssefsiam38/activitypg/leadership"
	"github.com/youssefsiam38/activitypg/maintenance"
	"github.com/youssefsiam38/activitypg/metrics"
	"github.com/youssefsiam38/activitypg/notifier"
	"github.com/youssefsiam38/activitypg/session"
)

// Version is the current activitypg version
const Version = "1.0.0"

// CleanupLease names the lease whose holder runs session cleanup.
const CleanupLease = "session_cleanup"

// ClientConfig holds configuration for the Client.
type ClientConfig struct {
	// InstanceID identifies this client in leader election (optional)
	// Default: a random UUID
	InstanceID string

	// Blobs stores photo images (optional)
	// Default: in-memory store
	Blobs blob.Store

	// URLExpiry is the lifetime of presigned photo URLs (optional)
	// Default: blob.DefaultURLExpiry
	URLExpiry time.Duration

	// SessionTTL is how long a sign-in token stays valid (optional)
	// Default: 7 days
	SessionTTL time.Duration

	// BcryptCost is the password hashing work factor (optional)
	BcryptCost int

	// CleanupInterval is how often the leader removes expired sessions (optional)
	// Default: 1 minute
	CleanupInterval time.Duration

	// LeaderTTL is how long the cleanup lease is valid (optional)
	// Default: 30 seconds
	LeaderTTL time.Duration

	// ElectionPeriod is how often a follower campaigns for the lease (optional)
	// Default: 10 seconds
	ElectionPeriod time.Duration

	// OnBecameLeader is called when this instance starts running cleanup
	OnBecameLeader func()

	// OnLostLeadership is called when this instance stops running cleanup
	OnLostLeadership func()

	// Pinger is checked by the heartbeat service (optional)
	// When nil the heartbeat service is not started and Healthy reports true.
	Pinger maintenance.Pinger

	// HeartbeatInterval is how often Pinger is checked (optional)
	// Default: 30 seconds
	HeartbeatInterval time.Duration

	// Registerer receives the gateway and auth collectors (optional)
	// When nil no metrics are recorded.
	Registerer prometheus.Registerer

	// Logger receives gateway, auth and maintenance logs (optional)
	Logger Logger

	// OnError is called when background operations fail
	OnError func(err error)
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		URLExpiry:         blob.DefaultURLExpiry,
		SessionTTL:        auth.DefaultSessionTTL,
		CleanupInterval:   maintenance.DefaultCleanupInterval,
		LeaderTTL:         leadership.DefaultLeaderTTL,
		ElectionPeriod:    leadership.DefaultElectionPeriod,
		HeartbeatInterval: maintenance.DefaultHeartbeatInterval,
	}
}

func (c *ClientConfig) applyDefaults() {
	d := DefaultClientConfig()
	if c.URLExpiry <= 0 {
		c.URLExpiry = d.URLExpiry
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.LeaderTTL <= 0 {
		c.LeaderTTL = d.LeaderTTL
	}
	if c.ElectionPeriod <= 0 {
		c.ElectionPeriod = d.ElectionPeriod
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}
	if c.Blobs == nil {
		c.Blobs = blob.NewMemory("")
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

// Client wires a database driver to the auth service, the gateway, change
// notifications and the maintenance services.
//
// TTx is the native transaction type from the driver (e.g., pgx.Tx, *sql.Tx).
type Client[TTx any] struct {
	driver  driver.Driver[TTx]
	store   driver.Store
	config  ClientConfig
	hooks   *hooks.Registry
	metrics *metrics.Recorder

	notif   *notifier.Notifier
	auth    *auth.Service
	gateway *gateway.Gateway

	// Background services
	elector   *leadership.Elector
	cleanup   *maintenance.Cleanup
	heartbeat *maintenance.Heartbeat

	unsubscribe func()
	started     atomic.Bool
	cancel      context.CancelFunc
}

// NewClient creates a client over drv. The transaction type TTx is inferred
// from the driver argument.
func NewClient[TTx any](drv driver.Driver[TTx], config *ClientConfig) (*Client[TTx], error) {
	if drv == nil {
		return nil, fmt.Errorf("%w: driver is required", ErrInvalidConfig)
	}
	if !drv.PoolIsSet() {
		return nil, fmt.Errorf("%w: driver pool is not set", ErrInvalidConfig)
	}

	var cfg ClientConfig
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()

	c := &Client[TTx]{
		driver: drv,
		store:  drv.GetStore(),
		config: cfg,
		hooks:  hooks.NewRegistry(),
	}

	c.hooks.Register(hooks.NewLoggingHooks(cfg.Logger))
	if cfg.Registerer != nil {
		rec, err := metrics.NewRecorder(cfg.Registerer)
		if err != nil {
			return nil, fmt.Errorf("activitypg: register metrics: %w", err)
		}
		c.metrics = rec
		c.hooks.Register(rec)
	}

	var getListener func(context.Context) (driver.Listener, error)
	if drv.SupportsListener() {
		getListener = drv.GetListener
	}
	c.notif = notifier.NewNotifier(getListener, drv.GetNotifier(), &notifier.Config{
		OnError: c.onError,
	})

	c.auth = auth.New(c.store, c.notif, &auth.Config{
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
		Logger:     cfg.Logger,
	})

	c.gateway = gateway.New(c.store, &gateway.Config{
		Blobs:     cfg.Blobs,
		Hooks:     c.hooks,
		Publisher: c.notif,
		URLExpiry: cfg.URLExpiry,
		Logger:    cfg.Logger,
	})

	c.cleanup = maintenance.NewCleanup(c.auth, &maintenance.CleanupConfig{
		Interval: cfg.CleanupInterval,
		OnExpiredSessions: func(count int) {
			cfg.Logger.Info("expired sessions removed", "count", count)
		},
		OnError: c.onError,
	})

	c.elector = leadership.NewElector(c.store, cfg.InstanceID, &leadership.Config{
		Name:           CleanupLease,
		LeaderTTL:      cfg.LeaderTTL,
		ElectionPeriod: cfg.ElectionPeriod,
		Logger:         cfg.Logger,
	}, leadership.Callbacks{
		OnBecameLeader:   c.onBecameLeader,
		OnLostLeadership: c.onLostLeadership,
	})

	if cfg.Pinger != nil {
		c.heartbeat = maintenance.NewHeartbeat(cfg.Pinger, &maintenance.HeartbeatConfig{
			Interval: cfg.HeartbeatInterval,
			OnError:  c.onError,
			OnRecover: func() {
				cfg.Logger.Info("database reachable again")
			},
		})
	}

	return c, nil
}

// Start begins background operations: the notifier, leader election and the
// heartbeat. Session cleanup runs while this instance holds the cleanup lease.
func (c *Client[TTx]) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrClientAlreadyStarted
	}

	ctx, c.cancel = context.WithCancel(ctx)

	if err := c.notif.Start(ctx); err != nil {
		c.started.Store(false)
		return fmt.Errorf("failed to start notifier: %w", err)
	}
	if c.metrics != nil {
		c.unsubscribe = c.notif.Subscribe(notifier.EventAuthStateChanged, c.recordAuthEvent)
	}

	if err := c.elector.Start(ctx); err != nil {
		c.stopNotifier(ctx)
		c.started.Store(false)
		return fmt.Errorf("failed to start leader election: %w", err)
	}

	if c.heartbeat != nil {
		if err := c.heartbeat.Start(ctx); err != nil {
			c.stopElector(ctx)
			c.stopNotifier(ctx)
			c.started.Store(false)
			return fmt.Errorf("failed to start heartbeat: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the background services.
func (c *Client[TTx]) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return ErrClientNotStarted
	}

	if c.cancel != nil {
		c.cancel()
	}

	// Stop services in reverse order (best-effort, continue on errors)
	if c.heartbeat != nil && c.heartbeat.IsRunning() {
		_ = c.heartbeat.Stop(ctx)
	}
	c.stopElector(ctx)
	c.stopNotifier(ctx)

	c.started.Store(false)
	return nil
}

// stopElector resigns the lease, which also stops cleanup.
func (c *Client[TTx]) stopElector(ctx context.Context) {
	if c.elector.IsRunning() {
		_ = c.elector.Stop(ctx)
	}
	if c.cleanup.IsRunning() {
		_ = c.cleanup.Stop(ctx)
	}
}

// onBecameLeader starts session cleanup on the elected instance.
func (c *Client[TTx]) onBecameLeader(ctx context.Context) {
	if err := c.cleanup.Start(ctx); err != nil {
		c.onError(fmt.Errorf("failed to start cleanup service: %w", err))
	}
	if c.config.OnBecameLeader != nil {
		c.config.OnBecameLeader()
	}
}

func (c *Client[TTx]) onLostLeadership(ctx context.Context) {
	if c.cleanup.IsRunning() {
		if err := c.cleanup.Stop(ctx); err != nil {
			c.onError(fmt.Errorf("failed to stop cleanup service: %w", err))
		}
	}
	if c.config.OnLostLeadership != nil {
		c.config.OnLostLeadership()
	}
}

func (c *Client[TTx]) stopNotifier(ctx context.Context) {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.notif.IsRunning() {
		_ = c.notif.Stop(ctx)
	}
}

func (c *Client[TTx]) recordAuthEvent(e *notifier.Event) {
	var change notifier.AuthChange
	if err := e.Decode(&change); err != nil {
		c.config.Logger.Warn("invalid auth event", "error", err)
		return
	}
	c.metrics.RecordAuthEvent(change.Event)
}

func (c *Client[TTx]) onError(err error) {
	c.config.Logger.Error("background operation failed", "error", err)
	if c.config.OnError != nil {
		c.config.OnError(err)
	}
}

// IsRunning returns true if the client is running.
func (c *Client[TTx]) IsRunning() bool {
	return c.started.Load()
}

// InstanceID returns the identity this client uses in leader election.
func (c *Client[TTx]) InstanceID() string {
	return c.config.InstanceID
}

// IsLeader reports whether this instance holds the cleanup lease.
func (c *Client[TTx]) IsLeader() bool {
	return c.elector.IsLeader()
}

// Healthy reports whether the last heartbeat ping succeeded. Without a
// Pinger it is always true.
func (c *Client[TTx]) Healthy() bool {
	if c.heartbeat == nil {
		return true
	}
	return c.heartbeat.Healthy()
}

// Driver returns the database driver.
func (c *Client[TTx]) Driver() driver.Driver[TTx] {
	return c.driver
}

// Store returns the storage interface for direct access.
func (c *Client[TTx]) Store() driver.Store {
	return c.store
}

// Auth returns the authentication service.
func (c *Client[TTx]) Auth() *auth.Service {
	return c.auth
}

// Gateway returns the remote data gateway.
func (c *Client[TTx]) Gateway() *gateway.Gateway {
	return c.gateway
}

// Notifier returns the change notifier.
func (c *Client[TTx]) Notifier() *notifier.Notifier {
	return c.notif
}

// Hooks returns the gateway hook registry. Hooks added after the first call
// still observe later calls.
func (c *Client[TTx]) Hooks() *hooks.Registry {
	return c.hooks
}

// Cleanup returns the session cleanup service.
func (c *Client[TTx]) Cleanup() *maintenance.Cleanup {
	return c.cleanup
}

// Handler returns the HTTP API. When cfg has no Gatherer and the configured
// Registerer can also gather, /metrics serves it.
func (c *Client[TTx]) Handler(cfg *api.Config) http.Handler {
	var apiCfg api.Config
	if cfg != nil {
		apiCfg = *cfg
	}
	if apiCfg.Gatherer == nil {
		if g, ok := c.config.Registerer.(prometheus.Gatherer); ok {
			apiCfg.Gatherer = g
		}
	}
	if apiCfg.Logger == nil {
		apiCfg.Logger = c.config.Logger
	}
	return api.NewRouter(c.auth, c.gateway, &apiCfg)
}

// NewSessionProvider returns a session provider that follows this client's
// auth events and ensures profiles through the gateway. drafts may be nil.
func (c *Client[TTx]) NewSessionProvider(drafts *draft.Drafts) *session.Provider {
	return session.New(session.Config{
		Auth:     c.auth,
		Events:   c.notif,
		Profiles: c.gateway.Profiles,
		Drafts:   drafts,
		Logger:   c.config.Logger,
	})
}
