package harness

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/vigil/observable"
)

// TraceEvent is the JSON form of one dispatch phase in a snapshot. It
// mirrors observable.DispatchEvent minus the wall-clock timestamp, which
// would break golden comparison.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Cycle     string `json:"cycle"`
	Class     string `json:"class"`
	Property  string `json:"property"`
	Phase     string `json:"phase"`
	Value     any    `json:"value"`
	Observers int    `json:"observers"`
	Error     string `json:"error,omitempty"`
}

// TraceSnapshot is the complete deterministic output of one scenario run:
// the dispatch telemetry in clock order, the observer call log, and the
// errors the scenario expected and received.
type TraceSnapshot struct {
	Scenario    string       `json:"scenario"`
	Trace       []TraceEvent `json:"trace"`
	ObserverLog []string     `json:"observer_log"`
	Errors      []string     `json:"errors"`
}

// collectHook records dispatch events into a snapshot trace.
type collectHook struct {
	events []TraceEvent
}

func (h *collectHook) OnDispatch(ctx context.Context, event observable.DispatchEvent) {
	te := TraceEvent{
		Seq:       event.Seq,
		Cycle:     event.Cycle,
		Class:     event.Class,
		Property:  event.Property,
		Phase:     string(event.Phase),
		Value:     event.Value,
		Observers: event.Observers,
	}
	if event.Err != nil {
		te.Error = event.Err.Error()
	}
	h.events = append(h.events, te)
}

// runner carries the per-run state shared by the built-in observers.
type runner struct {
	rt      *observable.Runtime
	account *Account
	log     []string
	errors  []string

	observers map[string]observable.Observer
}

// builtinObservers wires the named observers a scenario can subscribe.
//
//	recorder  - logs every change it sees, never fails
//	rejector  - logs the change, then rejects it with an error
//	reentrant - attempts a write to the same property from inside its
//	            callback and logs the (rejected) outcome
func (r *runner) builtinObservers() map[string]observable.Observer {
	return map[string]observable.Observer{
		"recorder": observable.ObserverFunc(func(ctx context.Context, change observable.Change) error {
			r.log = append(r.log, fmt.Sprintf("recorder: %s=%v (%s)", change.Property, change.Value, change.Phase))
			return nil
		}),
		"rejector": observable.ObserverFunc(func(ctx context.Context, change observable.Change) error {
			r.log = append(r.log, fmt.Sprintf("rejector: %s=%v (%s)", change.Property, change.Value, change.Phase))
			return fmt.Errorf("change rejected")
		}),
		"reentrant": observable.ObserverFunc(func(ctx context.Context, change observable.Change) error {
			err := r.rt.Set(ctx, r.account, change.Property, change.Value)
			if observable.IsReentrantError(err) {
				r.log = append(r.log, fmt.Sprintf("reentrant: write to %s blocked (%s)", change.Property, change.Phase))
				return nil
			}
			return fmt.Errorf("reentrant write to %s was not blocked", change.Property)
		}),
	}
}

func (r *runner) observer(name string) (observable.Observer, error) {
	obs, ok := r.observers[name]
	if !ok {
		return nil, fmt.Errorf("unknown observer %q", name)
	}
	return obs, nil
}

// Run executes a scenario against a fresh Account on an isolated runtime
// and returns its snapshot. Tokens come from a sequential generator, so two
// runs of the same scenario produce byte-identical snapshots.
//
// A step whose error matches its expect_error is recorded in the snapshot
// and the run continues. An unexpected error, or an expected error that did
// not occur, aborts the run.
func Run(scenario *Scenario) (*TraceSnapshot, error) {
	return RunWithHook(scenario, nil)
}

// RunWithHook runs a scenario while also forwarding dispatch events to an
// extra hook, typically a store.RecordingHook persisting the trace. The
// snapshot is built from the harness's own collector either way.
func RunWithHook(scenario *Scenario, extra observable.Hook) (*TraceSnapshot, error) {
	collect := &collectHook{}
	var hook observable.Hook = collect
	if extra != nil {
		hook = observable.NewMultiHook(collect, extra)
	}
	r := &runner{
		rt:      observable.New(hook, observable.NewPrefixGenerator("tok")),
		account: &Account{},
	}
	r.observers = r.builtinObservers()

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := r.runStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("scenario %s, step %d: %w", scenario.Name, i, err)
		}
	}

	snap := &TraceSnapshot{
		Scenario:    scenario.Name,
		Trace:       collect.events,
		ObserverLog: r.log,
		Errors:      r.errors,
	}
	if snap.Trace == nil {
		snap.Trace = []TraceEvent{}
	}
	if snap.ObserverLog == nil {
		snap.ObserverLog = []string{}
	}
	if snap.Errors == nil {
		snap.Errors = []string{}
	}
	return snap, nil
}

func (r *runner) runStep(ctx context.Context, i int, step Step) error {
	switch {
	case step.Subscribe != nil:
		s := step.Subscribe
		obs, err := r.observer(s.Observer)
		if err != nil {
			return err
		}
		phase := observable.PhaseAfter
		if s.Phase != "" {
			phase = observable.Phase(s.Phase)
		}
		return r.rt.Subscribe(obs, r.account, s.Property, phase)

	case step.Unsubscribe != nil:
		s := step.Unsubscribe
		obs, err := r.observer(s.Observer)
		if err != nil {
			return err
		}
		removed, err := r.rt.Unsubscribe(obs, r.account, s.Property)
		if err != nil {
			return err
		}
		if s.ExpectRemoved != nil && removed != *s.ExpectRemoved {
			return fmt.Errorf("unsubscribe %s: removed=%v, want %v", s.Observer, removed, *s.ExpectRemoved)
		}
		return nil

	case step.Set != nil:
		s := step.Set
		value, err := coerceValue(s.Property, s.Value)
		if err != nil {
			return err
		}
		return r.checkError(i, s.ExpectError, r.rt.Set(ctx, r.account, s.Property, value))

	case step.Update != nil:
		s := step.Update
		err := r.rt.Update(ctx, r.account, s.Property, func() error {
			// Sorted so a multi-field update applies deterministically.
			for _, field := range slices.Sorted(maps.Keys(s.Fields)) {
				if err := r.account.applyField(field, s.Fields[field]); err != nil {
					return err
				}
			}
			if s.Fail != "" {
				return fmt.Errorf("%s", s.Fail)
			}
			return nil
		})
		return r.checkError(i, s.ExpectError, err)

	case step.Notify != nil:
		s := step.Notify
		value, err := coerceValue(s.Property, s.Value)
		if err != nil {
			return err
		}
		phase := observable.PhaseAfter
		if s.Phase != "" {
			phase = observable.Phase(s.Phase)
		}
		return r.checkError(i, s.ExpectError, r.rt.Notify(ctx, r.account, s.Property, value, phase))
	}
	return fmt.Errorf("empty step")
}

// checkError reconciles a step's outcome with its expectation. Expected
// errors are recorded in the snapshot; anything else is a run failure.
func (r *runner) checkError(step int, expect string, err error) error {
	if expect == "" {
		return err
	}
	if err == nil {
		return fmt.Errorf("expected error containing %q, got none", expect)
	}
	if !strings.Contains(err.Error(), expect) {
		return fmt.Errorf("expected error containing %q, got: %v", expect, err)
	}
	r.errors = append(r.errors, fmt.Sprintf("step %d: %v", step, err))
	return nil
}
