package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExpirer struct {
	calls atomic.Int32
	count int
	err   error
}

func (f *fakeExpirer) ExpireSessions(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func TestCleanup_StartStop(t *testing.T) {
	expirer := &fakeExpirer{}
	cleanup := NewCleanup(expirer, &CleanupConfig{
		Interval: 50 * time.Millisecond,
	})

	ctx := context.Background()

	if err := cleanup.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !cleanup.IsRunning() {
		t.Error("Expected cleanup to be running")
	}

	if err := cleanup.Start(ctx); err != ErrAlreadyStarted {
		t.Fatalf("Start() error = %v, want %v", err, ErrAlreadyStarted)
	}

	if err := cleanup.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if cleanup.IsRunning() {
		t.Error("Expected cleanup to not be running")
	}

	// A stopped service can be started again.
	if err := cleanup.Start(ctx); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if err := cleanup.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := expirer.calls.Load(); got < 2 {
		t.Errorf("ExpireSessions calls = %d, want >= 2", got)
	}
}

func TestCleanup_StopNotStarted(t *testing.T) {
	cleanup := NewCleanup(&fakeExpirer{}, nil)

	if err := cleanup.Stop(context.Background()); err != ErrNotStarted {
		t.Fatalf("Stop() error = %v, want %v", err, ErrNotStarted)
	}
}

func TestCleanup_RunOnce(t *testing.T) {
	backendErr := errors.New("connection refused")

	tests := []struct {
		name      string
		expirer   *fakeExpirer
		wantCount int
		wantErr   bool
	}{
		{name: "nothing expired", expirer: &fakeExpirer{}},
		{name: "expired sessions", expirer: &fakeExpirer{count: 3}, wantCount: 3},
		{name: "backend error", expirer: &fakeExpirer{err: backendErr}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewCleanup(tt.expirer, DefaultCleanupConfig()).RunOnce(context.Background())

			if result.ExpiredSessions != tt.wantCount {
				t.Errorf("ExpiredSessions = %d, want %d", result.ExpiredSessions, tt.wantCount)
			}
			if tt.wantErr {
				if len(result.Errors) != 1 || !errors.Is(result.Errors[0], backendErr) {
					t.Errorf("Errors = %v, want wrapped %v", result.Errors, backendErr)
				}
			} else if len(result.Errors) != 0 {
				t.Errorf("Errors = %v, want none", result.Errors)
			}
		})
	}
}

func TestCleanup_Callbacks(t *testing.T) {
	var expired atomic.Int32
	cleanup := NewCleanup(&fakeExpirer{count: 2}, &CleanupConfig{
		Interval: 50 * time.Millisecond,
		OnExpiredSessions: func(count int) {
			expired.Store(int32(count))
		},
	})

	ctx := context.Background()
	if err := cleanup.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Wait for at least one cleanup cycle
	time.Sleep(100 * time.Millisecond)

	if err := cleanup.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if expired.Load() != 2 {
		t.Errorf("OnExpiredSessions count = %d, want 2", expired.Load())
	}
}

func TestCleanup_OnError(t *testing.T) {
	var errCount atomic.Int32
	cleanup := NewCleanup(&fakeExpirer{err: errors.New("boom")}, &CleanupConfig{
		Interval: 50 * time.Millisecond,
		OnError: func(err error) {
			errCount.Add(1)
		},
	})

	ctx := context.Background()
	if err := cleanup.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if err := cleanup.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if errCount.Load() < 1 {
		t.Error("OnError was not called")
	}
}

func TestDefaultCleanupConfig(t *testing.T) {
	config := DefaultCleanupConfig()

	if config.Interval != DefaultCleanupInterval {
		t.Errorf("Interval = %v, want %v", config.Interval, DefaultCleanupInterval)
	}

	c := NewCleanup(&fakeExpirer{}, &CleanupConfig{})
	if c.config.Interval != DefaultCleanupInterval {
		t.Errorf("zero Interval defaulted to %v, want %v", c.config.Interval, DefaultCleanupInterval)
	}
}
