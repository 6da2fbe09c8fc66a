package observable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Subscribe
// =============================================================================

func TestRuntime_Subscribe_UnknownProperty(t *testing.T) {
	r := New(nil, nil)
	err := r.Subscribe(&recorder{}, &thermostat{}, "humidity", PhaseAfter)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestRuntime_Subscribe_UnregisteredClass(t *testing.T) {
	r := New(nil, nil)
	err := r.Subscribe(&recorder{}, &plainBox{}, "n", PhaseAfter)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestRuntime_Subscribe_NilObserver(t *testing.T) {
	r := New(nil, nil)
	err := r.Subscribe(nil, &thermostat{}, "target", PhaseAfter)
	require.Error(t, err)

	var pe *PropertyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeBadObserver, pe.Code)
}

func TestRuntime_Subscribe_Idempotent(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}
	obs := &recorder{}

	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseAfter))
	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseAfter))

	require.NoError(t, r.Set(context.Background(), obj, "target", 21))
	assert.Equal(t, 1, obs.count(), "double subscription must invoke once per change")
}

func TestRuntime_Subscribe_SamePropertyBothPhases(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}
	obs := &recorder{}

	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseBefore))
	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseAfter))

	require.NoError(t, r.Set(context.Background(), obj, "target", 5))
	require.Equal(t, 2, obs.count(), "one observer may register for both phases")
	assert.Equal(t, PhaseBefore, obs.calls[0].phase)
	assert.Equal(t, PhaseAfter, obs.calls[1].phase)
}

func TestRuntime_Subscribe_DistinctClosuresAreDistinct(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}

	count := 0
	makeObserver := func() Observer {
		return ObserverFunc(func(ctx context.Context, c Change) error {
			count++
			return nil
		})
	}

	require.NoError(t, r.Subscribe(makeObserver(), obj, "target", PhaseAfter))
	require.NoError(t, r.Subscribe(makeObserver(), obj, "target", PhaseAfter))

	require.NoError(t, r.Set(context.Background(), obj, "target", 1))
	assert.Equal(t, 2, count, "two closures from the same literal are two observers")
}

func TestRuntime_Subscribe_SameFuncValueIsIdempotent(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}

	count := 0
	obs := ObserverFunc(func(ctx context.Context, c Change) error {
		count++
		return nil
	})

	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseAfter))
	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseAfter))

	require.NoError(t, r.Set(context.Background(), obj, "target", 1))
	assert.Equal(t, 1, count)
}

type sliceObserver []int

func (sliceObserver) OnChange(ctx context.Context, c Change) error { return nil }

func TestRuntime_Subscribe_NonComparableObserver(t *testing.T) {
	r := New(nil, nil)
	err := r.Subscribe(sliceObserver{1}, &thermostat{}, "target", PhaseAfter)
	require.Error(t, err)

	var pe *PropertyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeBadObserver, pe.Code)
}

func TestRuntime_Subscribe_UnknownPhase(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}
	obs := &recorder{}

	err := r.Subscribe(obs, obj, "target", Phase("befor"))
	require.Error(t, err, "a typo'd phase must be rejected, not stored")
	assert.True(t, IsConfigurationError(err))

	var pe *PropertyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeBadPhase, pe.Code)

	require.NoError(t, r.Set(context.Background(), obj, "target", 7))
	assert.Equal(t, 0, obs.count())
	assert.Equal(t, 0, r.TrackedInstances(), "rejected subscription leaves no bookkeeping")
}

func TestRuntime_Notify_UnknownPhase(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}

	err := r.Notify(context.Background(), obj, "target", 1, Phase("during"))
	require.Error(t, err)

	var pe *PropertyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeBadPhase, pe.Code)
}

// =============================================================================
// Unsubscribe
// =============================================================================

func TestRuntime_Unsubscribe_RemovesAndReportsFalseAfter(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}
	obs := &recorder{}

	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseAfter))

	removed, err := r.Unsubscribe(obs, obj, "target")
	require.NoError(t, err)
	assert.True(t, removed, "first unsubscribe removes the subscription")

	removed, err = r.Unsubscribe(obs, obj, "target")
	require.NoError(t, err)
	assert.False(t, removed, "second unsubscribe finds nothing")
}

func TestRuntime_Unsubscribe_NotSubscribedIsNotAnError(t *testing.T) {
	r := New(nil, nil)
	removed, err := r.Unsubscribe(&recorder{}, &thermostat{}, "target")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRuntime_Unsubscribe_UnknownPropertyIsAnError(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Unsubscribe(&recorder{}, &thermostat{}, "humidity")
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestRuntime_Unsubscribe_RemovesBothPhases(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}
	obs := &recorder{}

	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseBefore))
	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseAfter))

	removed, err := r.Unsubscribe(obs, obj, "target")
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, r.Set(context.Background(), obj, "target", 9))
	assert.Equal(t, 0, obs.count(), "unsubscribed observer must not fire in any phase")
}

func TestRuntime_Unsubscribe_Wildcard(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}
	obs := &recorder{}
	other := &recorder{}

	require.NoError(t, r.Subscribe(obs, obj, "target", PhaseAfter))
	require.NoError(t, r.Subscribe(obs, obj, "mode", PhaseBefore))
	require.NoError(t, r.Subscribe(other, obj, "target", PhaseAfter))

	removed, err := r.Unsubscribe(obs, obj, "")
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, r.Set(context.Background(), obj, "target", 1))
	require.NoError(t, r.Set(context.Background(), obj, "mode", "eco"))

	assert.Equal(t, 0, obs.count(), "wildcard removes every subscription of the observer")
	assert.Equal(t, 1, other.count(), "other observers are untouched")
}

func TestRuntime_Unsubscribe_Wildcard_UnregisteredClass(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Unsubscribe(&recorder{}, &plainBox{}, "")
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

// =============================================================================
// Ordering and identity bookkeeping
// =============================================================================

func TestRuntime_DispatchOrder_IsSubscriptionOrder(t *testing.T) {
	r := New(nil, nil)
	obj := &thermostat{}

	var order []string
	named := func(name string) Observer {
		return ObserverFunc(func(ctx context.Context, c Change) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, r.Subscribe(named("first"), obj, "target", PhaseAfter))
	require.NoError(t, r.Subscribe(named("second"), obj, "target", PhaseAfter))
	require.NoError(t, r.Subscribe(named("third"), obj, "target", PhaseAfter))

	require.NoError(t, r.Set(context.Background(), obj, "target", 7))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRuntime_TrackedInstances_LazyAndPerInstance(t *testing.T) {
	r := New(nil, nil)
	a := &thermostat{}
	b := &thermostat{}

	assert.Equal(t, 0, r.TrackedInstances())

	require.NoError(t, r.Subscribe(&recorder{}, a, "target", PhaseAfter))
	assert.Equal(t, 1, r.TrackedInstances())

	require.NoError(t, r.Subscribe(&recorder{}, b, "target", PhaseAfter))
	assert.Equal(t, 2, r.TrackedInstances(), "identity is per instance, not per class")
}

func TestRuntime_Subscriptions_AreIndependentPerInstance(t *testing.T) {
	r := New(nil, nil)
	a := &thermostat{}
	b := &thermostat{}
	obs := &recorder{}

	require.NoError(t, r.Subscribe(obs, a, "target", PhaseAfter))

	require.NoError(t, r.Set(context.Background(), b, "target", 3))
	assert.Equal(t, 0, obs.count(), "changes to another instance must not fire")

	require.NoError(t, r.Set(context.Background(), a, "target", 3))
	assert.Equal(t, 1, obs.count())
}
