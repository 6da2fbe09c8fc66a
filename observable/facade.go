package observable

import "context"

// Handle binds one instance to a runtime for convenient subscription
// management. It is a pure pass-through to the runtime's registry and
// carries no state beyond the binding itself.
//
//	h, err := observable.Bind(thermostat)
//	...
//	h.Subscribe("target", logger)
type Handle struct {
	runtime  *Runtime
	instance any
}

// Bind validates the instance (non-nil pointer of a registered class) and
// returns a Handle on the Default runtime.
func Bind(instance any) (*Handle, error) {
	return BindTo(defaultRuntime, instance)
}

// BindTo is Bind against an explicit runtime.
func BindTo(runtime *Runtime, instance any) (*Handle, error) {
	if _, err := descriptorOf(instance); err != nil {
		return nil, err
	}
	return &Handle{runtime: runtime, instance: instance}, nil
}

// Subscribe registers an after-phase observer for the named property.
func (h *Handle) Subscribe(propertyName string, observer Observer) error {
	return h.runtime.Subscribe(observer, h.instance, propertyName, PhaseAfter)
}

// SubscribeBefore registers a before-phase observer for the named property.
func (h *Handle) SubscribeBefore(propertyName string, observer Observer) error {
	return h.runtime.Subscribe(observer, h.instance, propertyName, PhaseBefore)
}

// Unsubscribe removes the observer from whichever phases it is registered
// under for the named property. Returns true if anything was removed.
func (h *Handle) Unsubscribe(propertyName string, observer Observer) (bool, error) {
	return h.runtime.Unsubscribe(observer, h.instance, propertyName)
}

// UnsubscribeAll removes the observer from every observable property of the
// bound instance, in any phase.
func (h *Handle) UnsubscribeAll(observer Observer) (bool, error) {
	return h.runtime.Unsubscribe(observer, h.instance, "")
}

// On registers fn as an after-phase observer for the named property in a
// single expression, delivering only the new value. It returns the wrapped
// Observer so the caller can unsubscribe it later:
//
//	obs, err := h.On("value", func(ctx context.Context, v any) error {
//	    log.Printf("value is now %v", v)
//	    return nil
//	})
//	...
//	h.Unsubscribe("value", obs)
//
// Each call wraps a fresh observer: calling On twice with the same fn
// registers two independent subscriptions.
func (h *Handle) On(propertyName string, fn func(ctx context.Context, value any) error) (Observer, error) {
	obs := ObserverFunc(func(ctx context.Context, change Change) error {
		return fn(ctx, change.Value)
	})
	if err := h.runtime.Subscribe(obs, h.instance, propertyName, PhaseAfter); err != nil {
		return nil, err
	}
	return obs, nil
}

// Instance returns the bound instance.
func (h *Handle) Instance() any {
	return h.instance
}
