package observable

import (
	"context"
	"log/slog"
	"time"
)

// DispatchEvent is the telemetry record for one dispatch phase.
type DispatchEvent struct {
	// Seq is the logical clock stamp. Strictly increasing per runtime.
	Seq int64

	// Cycle identifies the notification cycle. Both phases of one write
	// share a cycle token.
	Cycle string

	// Class is the observed instance's type name.
	Class string

	// Property is the observable property that changed.
	Property string

	// Phase is the dispatched phase.
	Phase Phase

	// Value is the value delivered to observers.
	Value any

	// Observers is the number of observers that completed in this phase.
	Observers int

	// Err is the observer error that aborted the cycle, if any.
	Err error

	// Timestamp is the wall-clock emission time. Informational only; event
	// ordering is defined by Seq.
	Timestamp time.Time
}

// Hook receives dispatch telemetry for logging, tracing or persistence.
// Hooks observe the runtime itself, not property values: they run for every
// dispatched phase regardless of subscriptions and must not write observable
// properties.
type Hook interface {
	OnDispatch(ctx context.Context, event DispatchEvent)
}

// NopHook discards all events.
type NopHook struct{}

// OnDispatch implements Hook.
func (NopHook) OnDispatch(ctx context.Context, event DispatchEvent) {}

// SlogHook emits dispatch events to a slog.Logger at debug level, or error
// level when the cycle was aborted by an observer failure.
type SlogHook struct {
	logger *slog.Logger
}

// NewSlogHook creates a SlogHook that emits to the given logger.
func NewSlogHook(logger *slog.Logger) *SlogHook {
	return &SlogHook{logger: logger}
}

// OnDispatch implements Hook.
func (h *SlogHook) OnDispatch(ctx context.Context, event DispatchEvent) {
	attrs := []slog.Attr{
		slog.Int64("seq", event.Seq),
		slog.String("cycle", event.Cycle),
		slog.String("class", event.Class),
		slog.String("property", event.Property),
		slog.String("phase", string(event.Phase)),
		slog.Any("value", event.Value),
		slog.Int("observers", event.Observers),
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	h.logger.LogAttrs(ctx, level, "dispatch", attrs...)
}

// MultiHook fans out events to multiple hooks.
type MultiHook struct {
	hooks []Hook
}

// NewMultiHook creates a MultiHook that forwards events to all non-nil
// hooks.
func NewMultiHook(hooks ...Hook) *MultiHook {
	filtered := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &MultiHook{hooks: filtered}
}

// OnDispatch implements Hook.
func (m *MultiHook) OnDispatch(ctx context.Context, event DispatchEvent) {
	for _, h := range m.hooks {
		h.OnDispatch(ctx, event)
	}
}
