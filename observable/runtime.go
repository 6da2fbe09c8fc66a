package observable

import (
	"context"
	"fmt"
	"time"
)

// Runtime owns the subscription registry, the reentrancy guard, the logical
// clock and the telemetry hook. One process-wide Default runtime serves the
// package-level functions; tests and embedders may build isolated runtimes
// with New.
//
// Class descriptors are shared by all runtimes: what is observable is a
// property of the class, while who observes it is a property of the runtime.
//
// Execution model: single-threaded, synchronous, cooperative. Observers run
// one at a time in subscription order; there is no internal parallelism, no
// queuing, and no cancellation beyond the ctx handed to each observer.
// Concurrent mutation of the same instance's properties from independent
// goroutines without external synchronization is unsupported.
type Runtime struct {
	reg   *registry
	guard *guard
	clock *Clock
	hook  Hook
}

// New creates a runtime. A nil hook defaults to NopHook; a nil generator
// defaults to UUIDv7Generator.
func New(hook Hook, gen TokenGenerator) *Runtime {
	if hook == nil {
		hook = NopHook{}
	}
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	return &Runtime{
		reg:   newRegistry(gen),
		guard: newGuard(),
		clock: NewClock(),
		hook:  hook,
	}
}

var defaultRuntime = New(nil, nil)

// Default returns the process-wide runtime used by the package-level
// functions.
func Default() *Runtime {
	return defaultRuntime
}

// Subscribe registers an observer for one phase of an observable property.
//
// Fails with a configuration error if the property is not declared
// observable on the instance's class, or if the phase is not PhaseBefore or
// PhaseAfter. Re-subscribing the same observer under the same (instance,
// property, phase) key is a no-op; insertion order defines dispatch order.
//
// The registry holds the observer strongly until it is unsubscribed. It does
// not hold the instance: an otherwise-unreferenced instance remains
// collectable.
func (r *Runtime) Subscribe(observer Observer, instance any, propertyName string, phase Phase) error {
	if !phase.valid() {
		return NewBadPhaseError(phase)
	}
	if _, _, err := resolve(instance, propertyName); err != nil {
		return err
	}
	return r.reg.subscribe(instance, propertyName, phase, observer)
}

// Unsubscribe removes an observer from whichever phases it is registered
// under for (instance, property). An empty property name removes the
// observer from every observable property of the instance.
//
// Returns true if at least one entry was removed. "Valid property, not
// subscribed" is reported as false, never as an error; a property that is
// not observable at all is a configuration error.
func (r *Runtime) Unsubscribe(observer Observer, instance any, propertyName string) (bool, error) {
	if propertyName == "" {
		if _, err := descriptorOf(instance); err != nil {
			return false, err
		}
	} else if _, _, err := resolve(instance, propertyName); err != nil {
		return false, err
	}
	return r.reg.unsubscribe(instance, propertyName, observer)
}

// Get reads an observable property through its registered getter.
func (r *Runtime) Get(instance any, propertyName string) (any, error) {
	_, prop, err := resolve(instance, propertyName)
	if err != nil {
		return nil, err
	}
	return prop.get(instance), nil
}

// Set writes an observable property through its registered setter, running
// the full two-phase notification protocol:
//
//  1. mark (instance, property) active
//  2. before-phase observers, in subscription order, seeing the old value
//     through Get and the prospective value in the Change
//  3. the mutation
//  4. after-phase observers, seeing the new value
//  5. release the pair
//
// An observer error aborts the cycle at that point and propagates; a
// before-phase error means the mutation never happens. A write to a pair
// already under dispatch fails with a REENTRANT_WRITE error.
//
// With no observers attached the write is behaviorally identical to calling
// the setter directly.
func (r *Runtime) Set(ctx context.Context, instance any, propertyName string, value any) error {
	desc, prop, err := resolve(instance, propertyName)
	if err != nil {
		return err
	}
	if prop.set == nil {
		return NewNoSetterError(className(desc.class), propertyName)
	}

	token, _, tracked := r.reg.snapshot(instance, propertyName, PhaseBefore)
	if !tracked {
		// Never subscribed to: plain write, no cycle.
		prop.set(instance, value)
		return nil
	}

	if !r.guard.tryMark(token, propertyName) {
		return NewReentrantWriteError(className(desc.class), propertyName)
	}
	defer r.guard.unmark(token, propertyName)

	cycle := r.reg.gen.Generate()
	if err := r.dispatch(ctx, cycle, desc, instance, propertyName, value, PhaseBefore); err != nil {
		return err
	}
	prop.set(instance, value)
	return r.dispatch(ctx, cycle, desc, instance, propertyName, value, PhaseAfter)
}

// Notify invokes the dispatcher directly with a caller-supplied value, for
// either phase. It is the explicit entry point for owning code whose
// properties have no conventional setter, and the only way to fire a
// before-phase notification for such a property. It performs no mutation
// itself.
//
// Intended for the owning type and subclass-like embedders, not external
// callers.
func (r *Runtime) Notify(ctx context.Context, instance any, propertyName string, value any, phase Phase) error {
	if !phase.valid() {
		return NewBadPhaseError(phase)
	}
	desc, _, err := resolve(instance, propertyName)
	if err != nil {
		return err
	}

	token, _, tracked := r.reg.snapshot(instance, propertyName, phase)
	if !tracked {
		return nil
	}

	if !r.guard.tryMark(token, propertyName) {
		return NewReentrantWriteError(className(desc.class), propertyName)
	}
	defer r.guard.unmark(token, propertyName)

	cycle := r.reg.gen.Generate()
	return r.dispatch(ctx, cycle, desc, instance, propertyName, value, phase)
}

// Update runs fn inside a scoped update context for a computed property.
//
// The caller mutates whatever backing state the property depends on inside
// fn. On normal return the property is re-read through its getter and a
// single after-phase dispatch fires with the fresh value. If fn returns an
// error, no dispatch occurs and the error propagates unchanged.
//
// No before phase is attempted: the prospective value is unknowable until
// fn has run. Owning code that does know the value ahead of time should use
// Notify with PhaseBefore instead.
//
// The (instance, property) pair is held active for the whole scope, so
// writes to it from within fn or from the triggered observers fail with a
// REENTRANT_WRITE error.
func (r *Runtime) Update(ctx context.Context, instance any, propertyName string, fn func() error) error {
	desc, prop, err := resolve(instance, propertyName)
	if err != nil {
		return err
	}

	token, _, tracked := r.reg.snapshot(instance, propertyName, PhaseAfter)
	if !tracked {
		return fn()
	}

	if !r.guard.tryMark(token, propertyName) {
		return NewReentrantWriteError(className(desc.class), propertyName)
	}
	defer r.guard.unmark(token, propertyName)

	if err := fn(); err != nil {
		return err
	}

	cycle := r.reg.gen.Generate()
	return r.dispatch(ctx, cycle, desc, instance, propertyName, prop.get(instance), PhaseAfter)
}

// dispatch runs one phase: every observer registered under the key, in
// strict subscription order, one at a time. The observer list is snapshotted
// per phase, so observers registered during the before phase of a write do
// see its after phase.
//
// The first observer error aborts the remaining observers and propagates
// wrapped with the dispatch position. One telemetry event is emitted per
// phase, carrying the aborting error if any.
func (r *Runtime) dispatch(ctx context.Context, cycle string, desc *Descriptor, instance any, propertyName string, value any, phase Phase) error {
	_, observers, _ := r.reg.snapshot(instance, propertyName, phase)

	var dispatchErr error
	ran := 0
	for i, obs := range observers {
		change := Change{Instance: instance, Property: propertyName, Value: value, Phase: phase}
		if err := obs.OnChange(ctx, change); err != nil {
			dispatchErr = fmt.Errorf("observer %d for %s.%s (%s phase): %w",
				i, className(desc.class), propertyName, phase, err)
			break
		}
		ran++
	}

	r.hook.OnDispatch(ctx, DispatchEvent{
		Seq:       r.clock.Next(),
		Cycle:     cycle,
		Class:     className(desc.class),
		Property:  propertyName,
		Phase:     phase,
		Value:     value,
		Observers: ran,
		Err:       dispatchErr,
		Timestamp: time.Now(),
	})
	return dispatchErr
}

// TrackedInstances returns the number of instances the runtime currently
// holds subscription bookkeeping for. Used for testing and introspection.
func (r *Runtime) TrackedInstances() int {
	return r.reg.size()
}

// Package-level functions delegating to the Default runtime. These mirror
// the module-level surface user code is expected to import.

// Subscribe registers an observer on the Default runtime. See
// Runtime.Subscribe.
func Subscribe(observer Observer, instance any, propertyName string, phase Phase) error {
	return defaultRuntime.Subscribe(observer, instance, propertyName, phase)
}

// Unsubscribe removes an observer on the Default runtime. See
// Runtime.Unsubscribe.
func Unsubscribe(observer Observer, instance any, propertyName string) (bool, error) {
	return defaultRuntime.Unsubscribe(observer, instance, propertyName)
}

// Get reads an observable property on the Default runtime. See Runtime.Get.
func Get(instance any, propertyName string) (any, error) {
	return defaultRuntime.Get(instance, propertyName)
}

// Set writes an observable property on the Default runtime. See Runtime.Set.
func Set(ctx context.Context, instance any, propertyName string, value any) error {
	return defaultRuntime.Set(ctx, instance, propertyName, value)
}

// Notify fires an explicit notification on the Default runtime. See
// Runtime.Notify.
func Notify(ctx context.Context, instance any, propertyName string, value any, phase Phase) error {
	return defaultRuntime.Notify(ctx, instance, propertyName, value, phase)
}

// Update runs a scoped update on the Default runtime. See Runtime.Update.
func Update(ctx context.Context, instance any, propertyName string, fn func() error) error {
	return defaultRuntime.Update(ctx, instance, propertyName, fn)
}
