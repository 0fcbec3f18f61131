package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
}

func TestOnBeforeCall(t *testing.T) {
	r := NewRegistry()
	var captured Call

	r.OnBeforeCall(func(ctx context.Context, call Call) error {
		captured = call
		return nil
	})

	call := Call{Entity: "note", Op: "get", ID: "n1"}
	if err := r.TriggerBeforeCall(context.Background(), call); err != nil {
		t.Errorf("TriggerBeforeCall returned error: %v", err)
	}
	if captured != call {
		t.Errorf("expected call %+v, got %+v", call, captured)
	}
}

func TestOnAfterCall(t *testing.T) {
	r := NewRegistry()
	var captured Result
	callErr := errors.New("boom")

	r.OnAfterCall(func(ctx context.Context, call Call, result Result) error {
		captured = result
		return nil
	})

	err := r.TriggerAfterCall(context.Background(), Call{Entity: "todo", Op: "delete"}, Result{Duration: time.Second, Err: callErr})
	if err != nil {
		t.Errorf("TriggerAfterCall returned error: %v", err)
	}
	if captured.Duration != time.Second || !errors.Is(captured.Err, callErr) {
		t.Errorf("unexpected result %+v", captured)
	}
}

func TestOnPage(t *testing.T) {
	r := NewRegistry()
	var captured Page

	r.OnPage(func(ctx context.Context, call Call, page Page) error {
		captured = page
		return nil
	})

	page := Page{Offset: 10, Limit: 10, Count: 4, HasMore: false}
	if err := r.TriggerPage(context.Background(), Call{Entity: "photo", Op: "list"}, page); err != nil {
		t.Errorf("TriggerPage returned error: %v", err)
	}
	if captured != page {
		t.Errorf("expected page %+v, got %+v", page, captured)
	}
}

func TestOnMutation(t *testing.T) {
	r := NewRegistry()
	called := false

	r.OnMutation(func(ctx context.Context, call Call) error {
		called = true
		return nil
	})

	if err := r.TriggerMutation(context.Background(), Call{Entity: "review", Op: "create"}); err != nil {
		t.Errorf("TriggerMutation returned error: %v", err)
	}
	if !called {
		t.Error("hook was not called")
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	ctx := context.Background()
	if err := r.TriggerBeforeCall(ctx, Call{}); err != nil {
		t.Errorf("TriggerBeforeCall on nil registry returned %v", err)
	}
	if err := r.TriggerAfterCall(ctx, Call{}, Result{}); err != nil {
		t.Errorf("TriggerAfterCall on nil registry returned %v", err)
	}
	if err := r.TriggerPage(ctx, Call{}, Page{}); err != nil {
		t.Errorf("TriggerPage on nil registry returned %v", err)
	}
	if err := r.TriggerMutation(ctx, Call{}); err != nil {
		t.Errorf("TriggerMutation on nil registry returned %v", err)
	}
}

func TestHookStopsOnError(t *testing.T) {
	r := NewRegistry()
	called := []int{}
	expectedErr := errors.New("stop here")

	r.OnBeforeCall(func(ctx context.Context, call Call) error {
		called = append(called, 1)
		return nil
	})
	r.OnBeforeCall(func(ctx context.Context, call Call) error {
		called = append(called, 2)
		return expectedErr
	})
	r.OnBeforeCall(func(ctx context.Context, call Call) error {
		called = append(called, 3)
		return nil
	})

	err := r.TriggerBeforeCall(context.Background(), Call{})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if diff := cmp.Diff([]int{1, 2}, called); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	logger := &recordingLogger{}
	r.Register(NewLoggingHooks(logger))

	ctx := context.Background()
	call := Call{Entity: "note", Op: "update", ID: "n1", UserID: "u1"}
	_ = r.TriggerBeforeCall(ctx, call)
	_ = r.TriggerAfterCall(ctx, call, Result{Err: errors.New("conflict")})
	_ = r.TriggerPage(ctx, Call{Entity: "note", Op: "list"}, Page{Count: 3})
	_ = r.TriggerMutation(ctx, call)

	want := []string{
		"WARN gateway call failed",
		"DEBUG page loaded",
		"INFO record changed",
	}
	if diff := cmp.Diff(want, logger.lines()); diff != "" {
		t.Errorf("log lines mismatch (-want +got):\n%s", diff)
	}
}

func TestMetricsHooks(t *testing.T) {
	var names []string
	h := NewMetricsHooks(func(name string, value float64, tags map[string]string) {
		names = append(names, fmt.Sprintf("%s entity=%s", name, tags["entity"]))
	})

	ctx := context.Background()
	_ = h.AfterCall(ctx, Call{Entity: "todo", Op: "create"}, Result{Duration: time.Millisecond})
	_ = h.AfterCall(ctx, Call{Entity: "todo", Op: "create"}, Result{Err: errors.New("x")})
	_ = h.Page(ctx, Call{Entity: "todo", Op: "list"}, Page{Count: 10})

	want := []string{
		"gateway.call.duration_seconds entity=todo",
		"gateway.call.success entity=todo",
		"gateway.call.duration_seconds entity=todo",
		"gateway.call.error entity=todo",
		"gateway.page.items entity=todo",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentRegistrationAndTrigger(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	for i := 0; i < 10; i++ {
		r.OnMutation(func(ctx context.Context, call Call) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
	}

	wg.Add(200)
	for i := 0; i < 100; i++ {
		go func() {
			defer wg.Done()
			r.OnMutation(func(ctx context.Context, call Call) error {
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = r.TriggerMutation(context.Background(), Call{})
		}()
	}
	wg.Wait()

	if count != 1000 {
		t.Errorf("expected 1000 calls to the pre-registered hooks, got %d", count)
	}
}

type recordingLogger struct {
	mu  sync.Mutex
	out []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = append(l.out, level+" "+msg)
}

func (l *recordingLogger) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.out...)
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg) }
