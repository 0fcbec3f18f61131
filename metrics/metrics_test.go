package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/youssefsiam38/activitypg/hooks"
)

func newRecorder(t *testing.T) (*Recorder, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	return r, reg
}

func TestMetricNamingConvention(t *testing.T) {
	r, _ := newRecorder(t)
	for _, c := range r.Collectors() {
		ch := make(chan *prometheus.Desc, 10)
		c.Describe(ch)
		close(ch)

		for desc := range ch {
			if !strings.Contains(desc.String(), `fqName: "activitypg_`) {
				t.Errorf("metric %s does not start with activitypg_ prefix", desc)
			}
		}
	}
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("first NewRecorder() error = %v", err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Error("Expected second NewRecorder() on the same registry to fail")
	}
}

func TestObserveCall(t *testing.T) {
	r, _ := newRecorder(t)

	r.ObserveCall("note", "create", nil, 10*time.Millisecond)
	r.ObserveCall("note", "create", nil, 20*time.Millisecond)
	r.ObserveCall("note", "create", errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(r.calls.WithLabelValues("note", "create", "success")); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.calls.WithLabelValues("note", "create", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestRecorderAsHooks(t *testing.T) {
	r, reg := newRecorder(t)
	registry := hooks.NewRegistry()
	registry.Register(r)

	ctx := context.Background()
	call := hooks.Call{Entity: "photo", Op: "list"}
	_ = registry.TriggerAfterCall(ctx, call, hooks.Result{Duration: time.Millisecond})
	_ = registry.TriggerPage(ctx, call, hooks.Page{Count: 10})

	if got := testutil.ToFloat64(r.calls.WithLabelValues("photo", "list", "success")); got != 1 {
		t.Errorf("calls = %v, want 1", got)
	}
	n, err := testutil.GatherAndCount(reg, "activitypg_gateway_page_items")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("page item series = %d, want 1", n)
	}
}

func TestRecordAuthEvent(t *testing.T) {
	r, _ := newRecorder(t)
	r.RecordAuthEvent("signed_in")
	r.RecordAuthEvent("signed_in")
	r.RecordAuthEvent("signed_out")

	if got := testutil.ToFloat64(r.authEvents.WithLabelValues("signed_in")); got != 2 {
		t.Errorf("signed_in = %v, want 2", got)
	}
}
