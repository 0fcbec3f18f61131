// Package metrics exports Prometheus collectors for gateway calls and
// authentication events.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/youssefsiam38/activitypg/hooks"
)

// Namespace prefixes every metric name.
const Namespace = "activitypg"

// Recorder owns the collectors. Create one per registry.
type Recorder struct {
	calls      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pageItems  *prometheus.HistogramVec
	authEvents *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "gateway_calls_total",
				Help:      "Total number of gateway calls by entity, operation and result.",
			},
			[]string{"entity", "op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "Latency of gateway calls in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"entity", "op"},
		),
		pageItems: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "gateway_page_items",
				Help:      "Number of items returned per list page.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 1000},
			},
			[]string{"entity"},
		),
		authEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "auth_events_total",
				Help:      "Total number of authentication state changes by event.",
			},
			[]string{"event"},
		),
	}
	if reg != nil {
		for _, c := range r.Collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Collectors returns every collector owned by the recorder.
func (r *Recorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.calls, r.duration, r.pageItems, r.authEvents}
}

// ObserveCall records a gateway call's result and duration.
func (r *Recorder) ObserveCall(entity, op string, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.calls.WithLabelValues(entity, op, result).Inc()
	r.duration.WithLabelValues(entity, op).Observe(d.Seconds())
}

// ObservePage records the size of a list page.
func (r *Recorder) ObservePage(entity string, items int) {
	r.pageItems.WithLabelValues(entity).Observe(float64(items))
}

// RecordAuthEvent counts an authentication state change.
func (r *Recorder) RecordAuthEvent(event string) {
	r.authEvents.WithLabelValues(event).Inc()
}

// AfterCall implements the hooks after-call signature.
func (r *Recorder) AfterCall(_ context.Context, call hooks.Call, result hooks.Result) error {
	r.ObserveCall(call.Entity, call.Op, result.Err, result.Duration)
	return nil
}

// Page implements the hooks page signature.
func (r *Recorder) Page(_ context.Context, call hooks.Call, page hooks.Page) error {
	r.ObservePage(call.Entity, page.Count)
	return nil
}
