package observable

import (
	"context"
	"sync"
)

// Shared test fixtures. Classes register once per test binary; individual
// tests isolate subscription state by building their own Runtime.

// thermostat is the conventional case: read-write properties with setters.
type thermostat struct {
	target int
	mode   string
}

// meter is the computed case: total has no setter and is derived from two
// backing fields mutated outside the managed write path.
type meter struct {
	base      int
	surcharge int
}

// plainBox is never registered; used to exercise configuration errors.
type plainBox struct {
	n int
}

func init() {
	Register[thermostat](
		Accessor("target",
			func(t *thermostat) int { return t.target },
			func(t *thermostat, v int) { t.target = v },
		),
		Accessor("mode",
			func(t *thermostat) string { return t.mode },
			func(t *thermostat, v string) { t.mode = v },
		),
	)
	Register[meter](
		Getter("total", func(m *meter) int { return m.base + m.surcharge }),
		Accessor("base",
			func(m *meter) int { return m.base },
			func(m *meter, v int) { m.base = v },
		),
	)
}

// call records one observer invocation.
type call struct {
	instance any
	property string
	value    any
	phase    Phase
}

// recorder is an Observer that records every invocation. The optional fail
// error is returned on each call, and seen (via the read function) lets
// tests observe the property value as visible during dispatch.
type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  error
	read  func() any
	seen  []any
}

func (r *recorder) OnChange(ctx context.Context, c Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, call{instance: c.Instance, property: c.Property, value: c.Value, phase: c.Phase})
	if r.read != nil {
		r.seen = append(r.seen, r.read())
	}
	return r.fail
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.calls)
}

// eventHook records dispatch telemetry for assertions.
type eventHook struct {
	mu     sync.Mutex
	events []DispatchEvent
}

func (h *eventHook) OnDispatch(ctx context.Context, event DispatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
}

func (h *eventHook) all() []DispatchEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]DispatchEvent, len(h.events))
	copy(out, h.events)
	return out
}
