package store

import (
	"context"
	"log/slog"

	"github.com/roach88/vigil/observable"
)

// RecordingHook persists every dispatch event of one run to a Store.
//
// The hook interface carries no error return, so write failures are logged
// and counted rather than propagated; a trace is diagnostics, not ground
// truth, and must never abort a dispatch cycle.
type RecordingHook struct {
	store    *Store
	runToken string
	failures int
}

// NewRecordingHook creates a hook that records dispatch events under the
// given run token.
func NewRecordingHook(store *Store, runToken string) *RecordingHook {
	return &RecordingHook{store: store, runToken: runToken}
}

// OnDispatch implements observable.Hook.
func (h *RecordingHook) OnDispatch(ctx context.Context, event observable.DispatchEvent) {
	errText := ""
	if event.Err != nil {
		errText = event.Err.Error()
	}
	err := h.store.WriteEvent(ctx, Event{
		RunToken:  h.runToken,
		Seq:       event.Seq,
		Cycle:     event.Cycle,
		Class:     event.Class,
		Property:  event.Property,
		Phase:     string(event.Phase),
		Value:     EncodeValue(event.Value),
		Observers: event.Observers,
		Error:     errText,
		CreatedAt: event.Timestamp,
	})
	if err != nil {
		h.failures++
		slog.Error("failed to persist dispatch event", "seq", event.Seq, "error", err)
	}
}

// Failures returns the number of events that could not be persisted.
func (h *RecordingHook) Failures() int {
	return h.failures
}

// RunToken returns the token this hook records under.
func (h *RecordingHook) RunToken() string {
	return h.runToken
}
