package observable

import (
	"context"
	"reflect"
	"unsafe"
)

// Phase identifies when an observer runs relative to the mutation.
type Phase string

const (
	// PhaseBefore runs prior to the mutation. Reading the property during
	// dispatch yields the old value.
	PhaseBefore Phase = "before"

	// PhaseAfter runs once the mutation is visible. Reading the property
	// during dispatch yields the new value.
	PhaseAfter Phase = "after"
)

// valid reports whether the phase is within the before/after domain. Entry
// points that accept a caller-supplied phase reject anything else with a
// BAD_PHASE error; accepting it would store the subscription under a key
// dispatch never reads.
func (p Phase) valid() bool {
	return p == PhaseBefore || p == PhaseAfter
}

// Change describes a single property change delivered to an observer.
type Change struct {
	// Instance is the object being observed.
	Instance any

	// Property is the name of the observable property.
	Property string

	// Value is the prospective new value (before phase) or the now-current
	// value (after phase).
	Value any

	// Phase identifies which side of the mutation this delivery is on.
	Phase Phase
}

// Observer receives property change notifications.
//
// Observers run synchronously, one at a time, in subscription order. An
// observer that performs asynchronous work must drive it to completion
// before returning; the dispatcher never interleaves observer executions.
//
// Returning a non-nil error aborts the remaining observers in the cycle and
// propagates to the caller of the triggering write or notify. For a
// before-phase observer, an error also suppresses the mutation.
type Observer interface {
	OnChange(ctx context.Context, change Change) error
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx context.Context, change Change) error

// OnChange implements Observer.
func (f ObserverFunc) OnChange(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// obsKey is the identity under which an observer is stored. Identity drives
// idempotent subscription and unsubscription matching.
type obsKey struct {
	typ reflect.Type
	val any
}

// observerKey derives a stable identity for an observer.
//
// Comparable observers (pointer receivers, comparable values) are keyed by
// value equality. Function-backed observers (ObserverFunc, other func types)
// are keyed by the closure allocation, so each distinct closure is a distinct
// observer even when built from the same function literal.
//
// Method values are re-allocated on every evaluation: keep the func value
// (or use a pointer-receiver Observer) if you need to unsubscribe it later.
//
// Returns a BAD_OBSERVER configuration error for nil observers and for
// non-comparable value types, which have no usable identity.
func observerKey(o Observer) (obsKey, error) {
	if o == nil {
		return obsKey{}, NewBadObserverError("observer is nil")
	}
	rt := reflect.TypeOf(o)
	if rt.Kind() == reflect.Func {
		return obsKey{typ: rt, val: ifaceData(o)}, nil
	}
	if rt.Comparable() {
		return obsKey{typ: rt, val: o}, nil
	}
	return obsKey{}, NewBadObserverError("observer type " + rt.String() + " is not comparable; use a pointer or func observer")
}

// ifaceData extracts the data word of an interface value. For func-typed
// observers this is the closure pointer, which uniquely identifies the
// closure allocation (reflect only exposes the shared code pointer).
func ifaceData(o Observer) uintptr {
	type iface struct {
		tab  unsafe.Pointer
		data unsafe.Pointer
	}
	return uintptr((*iface)(unsafe.Pointer(&o)).data)
}
