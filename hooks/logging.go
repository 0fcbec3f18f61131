package hooks

import (
	"context"
	"log/slog"
)

// Logger is the logging surface used by LoggingHooks.
// Compatible with activitypg.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with the default slog logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: slog.Default()}
}

// AfterCall logs every operation; failures at warn level.
func (h *LoggingHooks) AfterCall(ctx context.Context, call Call, result Result) error {
	args := []any{"entity", call.Entity, "op", call.Op, "duration", result.Duration}
	if call.ID != "" {
		args = append(args, "id", call.ID)
	}
	if result.Err != nil {
		h.logger.Warn("gateway call failed", append(args, "error", result.Err)...)
		return nil
	}
	h.logger.Debug("gateway call", args...)
	return nil
}

// Page logs loaded pages
func (h *LoggingHooks) Page(ctx context.Context, call Call, page Page) error {
	h.logger.Debug("page loaded",
		"entity", call.Entity,
		"offset", page.Offset,
		"count", page.Count,
		"has_more", page.HasMore,
	)
	return nil
}

// Mutation logs confirmed mutations
func (h *LoggingHooks) Mutation(ctx context.Context, call Call) error {
	h.logger.Info("record changed", "entity", call.Entity, "op", call.Op, "id", call.ID, "user_id", call.UserID)
	return nil
}

// MetricsHooks forwards call measurements to a callback
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics hooks with the provided callback
func NewMetricsHooks(onMetric func(name string, value float64, tags map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// AfterCall records duration and outcome
func (h *MetricsHooks) AfterCall(ctx context.Context, call Call, result Result) error {
	tags := map[string]string{"entity": call.Entity, "op": call.Op}

	h.OnMetric("gateway.call.duration_seconds", result.Duration.Seconds(), tags)
	if result.Err != nil {
		h.OnMetric("gateway.call.error", 1, tags)
	} else {
		h.OnMetric("gateway.call.success", 1, tags)
	}
	return nil
}

// Page records page sizes
func (h *MetricsHooks) Page(ctx context.Context, call Call, page Page) error {
	h.OnMetric("gateway.page.items", float64(page.Count), map[string]string{"entity": call.Entity})
	return nil
}
