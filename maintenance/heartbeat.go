// Package maintenance provides background services for activitypg servers.
//
// This package includes:
//   - Heartbeat service: pings the database and tracks whether it answers
//   - Cleanup service: removes expired sign-in sessions
package maintenance

import (
	"context"
	"sync/atomic"
	"time"
)

// Default heartbeat configuration values
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPingTimeout       = 5 * time.Second
)

// Pinger checks that a backend is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HeartbeatConfig holds configuration for the heartbeat service.
type HeartbeatConfig struct {
	// Interval is how often to ping.
	// Default: 30 seconds
	Interval time.Duration

	// Timeout bounds a single ping.
	// Default: 5 seconds
	Timeout time.Duration

	// OnError is called when a ping fails.
	// If nil, errors are silently ignored.
	OnError func(err error)

	// OnRecover is called when a ping succeeds after a failed one.
	OnRecover func()
}

// DefaultHeartbeatConfig returns the default heartbeat configuration.
func DefaultHeartbeatConfig() *HeartbeatConfig {
	return &HeartbeatConfig{
		Interval: DefaultHeartbeatInterval,
		Timeout:  DefaultPingTimeout,
	}
}

func (c *HeartbeatConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultHeartbeatInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultPingTimeout
	}
}

// Heartbeat pings the database periodically. Healthy reports the result of
// the last ping and backs the server's health endpoint.
type Heartbeat struct {
	pinger Pinger
	config HeartbeatConfig

	healthy  atomic.Bool
	failing  atomic.Bool
	lastPing atomic.Int64

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewHeartbeat creates a new heartbeat service. It reports unhealthy until
// the first ping succeeds.
func NewHeartbeat(pinger Pinger, config *HeartbeatConfig) *Heartbeat {
	if config == nil {
		config = DefaultHeartbeatConfig()
	}
	cfg := *config
	cfg.applyDefaults()

	return &Heartbeat{
		pinger: pinger,
		config: cfg,
	}
}

// Start begins pinging.
// It returns immediately and runs the heartbeat loop in a goroutine.
func (h *Heartbeat) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	h.done = make(chan struct{})
	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx)

	return nil
}

// Stop stops pinging.
func (h *Heartbeat) Stop(ctx context.Context) error {
	if !h.started.Load() {
		return ErrNotStarted
	}

	h.cancel()
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.started.Store(false)
	return nil
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.done)

	h.Beat(ctx)

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Beat(ctx)
		}
	}
}

// Beat pings once and records the result.
func (h *Heartbeat) Beat(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	err := h.pinger.Ping(pingCtx)
	if err != nil {
		h.healthy.Store(false)
		h.failing.Store(true)
		if h.config.OnError != nil {
			h.config.OnError(err)
		}
		return err
	}

	h.lastPing.Store(time.Now().UnixNano())
	h.healthy.Store(true)
	if h.failing.Swap(false) && h.config.OnRecover != nil {
		h.config.OnRecover()
	}
	return nil
}

// Healthy reports whether the last ping succeeded.
func (h *Heartbeat) Healthy() bool {
	return h.healthy.Load()
}

// LastPing returns the time of the last successful ping, or the zero time.
func (h *Heartbeat) LastPing() time.Time {
	n := h.lastPing.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// IsRunning returns true if the heartbeat service is running.
func (h *Heartbeat) IsRunning() bool {
	return h.started.Load()
}
