// Package leadership elects one activitypg instance to run work that must not
// run concurrently, such as expired session cleanup.
//
// Leadership is a TTL lease stored through driver.LeaseStore. The leader
// renews its lease before it expires; if it stops renewing, another instance
// takes over on its next election attempt.
package leadership

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/youssefsiam38/activitypg/driver"
)

// Default configuration values
const (
	DefaultLeaseName       = "default"
	DefaultLeaderTTL       = 30 * time.Second
	DefaultElectionPeriod  = 10 * time.Second
	DefaultReelectionDelay = 5 * time.Second
	DefaultResignTimeout   = 5 * time.Second
)

// Logger is the logging interface used by the elector.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config holds configuration for the leader election system.
type Config struct {
	// Name identifies the lease. Instances compete only for the same name.
	// Default: "default"
	Name string

	// LeaderTTL is how long a leader's lease is valid.
	// Default: 30 seconds
	LeaderTTL time.Duration

	// ElectionPeriod is how often to attempt becoming leader when not leader.
	// Default: 10 seconds
	ElectionPeriod time.Duration

	// ReelectionDelay is how long to wait between lease renewals. Must be
	// less than LeaderTTL.
	// Default: 5 seconds
	ReelectionDelay time.Duration

	// Clock drives the election timers.
	// Default: the real clock
	Clock clock.Clock

	Logger Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:            DefaultLeaseName,
		LeaderTTL:       DefaultLeaderTTL,
		ElectionPeriod:  DefaultElectionPeriod,
		ReelectionDelay: DefaultReelectionDelay,
	}
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultLeaseName
	}
	if c.LeaderTTL <= 0 {
		c.LeaderTTL = DefaultLeaderTTL
	}
	if c.ElectionPeriod <= 0 {
		c.ElectionPeriod = DefaultElectionPeriod
	}
	if c.ReelectionDelay <= 0 || c.ReelectionDelay >= c.LeaderTTL {
		c.ReelectionDelay = c.LeaderTTL / 3
	}
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}

// Callbacks are called when leadership status changes.
type Callbacks struct {
	// OnBecameLeader is called when this instance becomes the leader, with
	// the context passed to Start.
	OnBecameLeader func(ctx context.Context)

	// OnLostLeadership is called when this instance stops being the leader:
	// a failed renewal, Resign, or Stop while leading.
	OnLostLeadership func(ctx context.Context)
}

// Elector competes for one named lease.
type Elector struct {
	store      driver.LeaseStore
	instanceID string
	config     Config
	callbacks  Callbacks

	mu       sync.RWMutex
	isLeader bool

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewElector creates a new leader elector. instanceID must be unique among
// the competing instances.
func NewElector(store driver.LeaseStore, instanceID string, config *Config, callbacks Callbacks) *Elector {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()

	return &Elector{
		store:      store,
		instanceID: instanceID,
		config:     cfg,
		callbacks:  callbacks,
	}
}

// Start begins the election loop in a goroutine and returns immediately.
func (e *Elector) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	e.done = make(chan struct{})
	ctx, e.cancel = context.WithCancel(ctx)
	go e.runElectionLoop(ctx)

	return nil
}

// Stop stops the election loop. A leader resigns before Stop returns.
func (e *Elector) Stop(ctx context.Context) error {
	if !e.started.Load() {
		return ErrNotStarted
	}

	e.cancel()
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if wasLeader {
		resignCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultResignTimeout)
		defer cancel()
		if err := e.store.LeaderResign(resignCtx, e.config.Name, e.instanceID); err != nil {
			e.config.Logger.Warn("failed to resign leadership", "lease", e.config.Name, "error", err)
		}
		e.lost(ctx)
	}

	e.started.Store(false)
	return nil
}

// IsLeader returns true if this instance is currently the leader.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// IsRunning returns true if the elector is running.
func (e *Elector) IsRunning() bool {
	return e.started.Load()
}

// InstanceID returns the identity this elector campaigns with.
func (e *Elector) InstanceID() string {
	return e.instanceID
}

// Resign gives up leadership. The loop keeps running and may win the lease
// again on a later election attempt.
func (e *Elector) Resign(ctx context.Context) error {
	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if !wasLeader {
		return nil
	}

	if err := e.store.LeaderResign(ctx, e.config.Name, e.instanceID); err != nil {
		return err
	}
	e.lost(ctx)
	return nil
}

func (e *Elector) runElectionLoop(ctx context.Context) {
	defer close(e.done)

	e.attemptElection(ctx)

	for {
		delay := e.config.ElectionPeriod
		if e.IsLeader() {
			delay = e.config.ReelectionDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-e.config.Clock.After(delay):
			if e.IsLeader() {
				e.attemptReelection(ctx)
			} else {
				e.attemptElection(ctx)
			}
		}
	}
}

func (e *Elector) params() *driver.LeaderElectParams {
	return &driver.LeaderElectParams{
		Name:     e.config.Name,
		LeaderID: e.instanceID,
		TTL:      e.config.LeaderTTL,
	}
}

func (e *Elector) attemptElection(ctx context.Context) {
	elected, err := e.store.LeaderAttemptElect(ctx, e.params())
	if err != nil {
		if ctx.Err() == nil {
			e.config.Logger.Warn("leader election failed", "lease", e.config.Name, "error", err)
		}
		return
	}
	if !elected {
		return
	}

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = true
	e.mu.Unlock()

	if !wasLeader {
		e.config.Logger.Info("became leader", "lease", e.config.Name, "instance_id", e.instanceID)
		if e.callbacks.OnBecameLeader != nil {
			e.callbacks.OnBecameLeader(ctx)
		}
	}
}

func (e *Elector) attemptReelection(ctx context.Context) {
	reelected, err := e.store.LeaderAttemptReelect(ctx, e.params())
	if ctx.Err() != nil {
		// Stop resigns.
		return
	}
	if err == nil && reelected {
		return
	}
	if err != nil {
		e.config.Logger.Warn("leader renewal failed", "lease", e.config.Name, "error", err)
	}

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if wasLeader {
		e.lost(ctx)
	}
}

func (e *Elector) lost(ctx context.Context) {
	e.config.Logger.Info("lost leadership", "lease", e.config.Name, "instance_id", e.instanceID)
	if e.callbacks.OnLostLeadership != nil {
		e.callbacks.OnLostLeadership(ctx)
	}
}
