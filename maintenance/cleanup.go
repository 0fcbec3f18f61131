package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultCleanupInterval is how often expired sessions are removed.
const DefaultCleanupInterval = 1 * time.Minute

// Expirer removes expired sign-in sessions. *auth.Service satisfies it.
type Expirer interface {
	ExpireSessions(ctx context.Context) (int, error)
}

// CleanupConfig holds configuration for the cleanup service.
type CleanupConfig struct {
	// Interval is how often to run cleanup operations.
	// Default: 1 minute
	Interval time.Duration

	// OnExpiredSessions is called with the number of sessions removed in a
	// cycle. It is not called when nothing expired.
	OnExpiredSessions func(count int)

	// OnError is called when a cleanup operation fails.
	OnError func(err error)
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() *CleanupConfig {
	return &CleanupConfig{
		Interval: DefaultCleanupInterval,
	}
}

func (c *CleanupConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultCleanupInterval
	}
}

// CleanupResult holds the results of a cleanup operation.
type CleanupResult struct {
	// ExpiredSessions is the number of sessions removed.
	ExpiredSessions int

	// Errors contains any errors that occurred during cleanup.
	Errors []error
}

// Cleanup periodically removes expired sessions. Removing a session publishes
// an expiry event, so signed-in clients of that user notice.
type Cleanup struct {
	expirer Expirer
	config  CleanupConfig

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewCleanup creates a new cleanup service.
func NewCleanup(expirer Expirer, config *CleanupConfig) *Cleanup {
	if config == nil {
		config = DefaultCleanupConfig()
	}
	cfg := *config
	cfg.applyDefaults()

	return &Cleanup{
		expirer: expirer,
		config:  cfg,
	}
}

// Start begins the cleanup loop.
// It returns immediately and runs cleanup operations in a goroutine.
func (c *Cleanup) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.done = make(chan struct{})
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)

	return nil
}

// Stop stops the cleanup loop and waits for a running cycle to finish.
func (c *Cleanup) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return ErrNotStarted
	}

	c.cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.started.Store(false)
	return nil
}

func (c *Cleanup) run(ctx context.Context) {
	defer close(c.done)

	// Run cleanup immediately on start
	c.runCleanup(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runCleanup(ctx)
		}
	}
}

func (c *Cleanup) runCleanup(ctx context.Context) {
	result := c.RunOnce(ctx)

	if c.config.OnExpiredSessions != nil && result.ExpiredSessions > 0 {
		c.config.OnExpiredSessions(result.ExpiredSessions)
	}

	if c.config.OnError != nil {
		for _, err := range result.Errors {
			c.config.OnError(err)
		}
	}
}

// RunOnce performs cleanup operations once and returns the result.
func (c *Cleanup) RunOnce(ctx context.Context) *CleanupResult {
	result := &CleanupResult{}

	count, err := c.expirer.ExpireSessions(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("maintenance: expire sessions: %w", err))
	} else {
		result.ExpiredSessions = count
	}

	return result
}

// IsRunning returns true if the cleanup service is running.
func (c *Cleanup) IsRunning() bool {
	return c.started.Load()
}
