package observable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Update: scoped computation for setter-less properties
// =============================================================================

func TestRuntime_Update_FiresOnceWithRecomputedValue(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{base: 1, surcharge: 2}

	obs := &recorder{}
	require.NoError(t, r.Subscribe(obs, obj, "total", PhaseAfter))

	err := r.Update(context.Background(), obj, "total", func() error {
		obj.base = 10
		obj.surcharge = 5
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, 1, obs.count(), "one scope, one dispatch, regardless of backing mutations")
	assert.Equal(t, call{instance: obj, property: "total", value: 15, phase: PhaseAfter}, obs.calls[0])
}

func TestRuntime_Update_ErrorSuppressesDispatch(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{base: 1}

	obs := &recorder{}
	require.NoError(t, r.Subscribe(obs, obj, "total", PhaseAfter))

	boom := errors.New("partial mutation")
	err := r.Update(context.Background(), obj, "total", func() error {
		obj.base = 99
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, obs.count(), "a failed scope dispatches nothing")
	assert.Equal(t, 99, obj.base, "the scope does not roll back caller mutations")
	assert.Equal(t, 0, r.guard.size())
}

func TestRuntime_Update_NoBeforePhase(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{}

	before := &recorder{}
	require.NoError(t, r.Subscribe(before, obj, "total", PhaseBefore))

	require.NoError(t, r.Update(context.Background(), obj, "total", func() error {
		obj.base = 1
		return nil
	}))
	assert.Equal(t, 0, before.count(), "the prospective value is unknowable, so no before phase fires")
}

func TestRuntime_Update_UnknownProperty(t *testing.T) {
	r := New(nil, nil)
	err := r.Update(context.Background(), &meter{}, "subtotal", func() error { return nil })
	assert.True(t, IsConfigurationError(err))
}

func TestRuntime_Update_NoSubscribers_StillRunsScope(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{}

	require.NoError(t, r.Update(context.Background(), obj, "total", func() error {
		obj.base = 4
		return nil
	}))
	assert.Equal(t, 4, obj.base)
}

func TestRuntime_Update_ReentrantScope_Fails(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{}

	var nested error
	require.NoError(t, r.Subscribe(&recorder{}, obj, "total", PhaseAfter))

	err := r.Update(context.Background(), obj, "total", func() error {
		nested = r.Update(context.Background(), obj, "total", func() error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.True(t, IsReentrantError(nested), "the pair is held active for the whole scope")
}

func TestRuntime_Update_ObserverWritingPair_Fails(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{}

	var reentrant error
	obs := ObserverFunc(func(ctx context.Context, c Change) error {
		reentrant = r.Notify(ctx, obj, "total", 0, PhaseAfter)
		return nil
	})
	require.NoError(t, r.Subscribe(obs, obj, "total", PhaseAfter))

	require.NoError(t, r.Update(context.Background(), obj, "total", func() error {
		obj.base = 2
		return nil
	}))
	assert.True(t, IsReentrantError(reentrant))
}

// =============================================================================
// Notify: explicit entry point
// =============================================================================

func TestRuntime_Notify_AfterPhase(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{}

	obs := &recorder{}
	require.NoError(t, r.Subscribe(obs, obj, "total", PhaseAfter))

	require.NoError(t, r.Notify(context.Background(), obj, "total", 30, PhaseAfter))

	require.Equal(t, 1, obs.count())
	assert.Equal(t, call{instance: obj, property: "total", value: 30, phase: PhaseAfter}, obs.calls[0])
}

func TestRuntime_Notify_BeforePhaseForSetterlessProperty(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{base: 1}

	obs := &recorder{read: func() any { return obj.base + obj.surcharge }}
	require.NoError(t, r.Subscribe(obs, obj, "total", PhaseBefore))

	// The owner knows the prospective value ahead of mutating.
	require.NoError(t, r.Notify(context.Background(), obj, "total", 25, PhaseBefore))
	obj.base = 25

	require.Equal(t, 1, obs.count())
	assert.Equal(t, 25, obs.calls[0].value)
	assert.Equal(t, []any{1}, obs.seen, "before-phase notify runs prior to the owner's mutation")
}

func TestRuntime_Notify_PerformsNoMutation(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{base: 1}
	require.NoError(t, r.Subscribe(&recorder{}, obj, "total", PhaseAfter))

	require.NoError(t, r.Notify(context.Background(), obj, "total", 99, PhaseAfter))
	assert.Equal(t, 1, obj.base)
}

func TestRuntime_Notify_UnknownProperty(t *testing.T) {
	r := New(nil, nil)
	err := r.Notify(context.Background(), &meter{}, "subtotal", 1, PhaseAfter)
	assert.True(t, IsConfigurationError(err))
}

func TestRuntime_Notify_NoSubscribers_NoOp(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Notify(context.Background(), &meter{}, "total", 1, PhaseAfter))
	assert.Equal(t, 0, r.TrackedInstances())
}

func TestRuntime_Notify_ObserverError_Propagates(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{}

	boom := errors.New("boom")
	require.NoError(t, r.Subscribe(&recorder{fail: boom}, obj, "total", PhaseAfter))

	err := r.Notify(context.Background(), obj, "total", 2, PhaseAfter)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.guard.size())
}

func TestRuntime_Notify_ReentrantDuringDispatch_Fails(t *testing.T) {
	r := New(nil, nil)
	obj := &meter{}

	var reentrant error
	obs := ObserverFunc(func(ctx context.Context, c Change) error {
		reentrant = r.Notify(ctx, obj, "total", 1, PhaseAfter)
		return nil
	})
	require.NoError(t, r.Subscribe(obs, obj, "total", PhaseAfter))

	require.NoError(t, r.Notify(context.Background(), obj, "total", 0, PhaseAfter))
	assert.True(t, IsReentrantError(reentrant))
}
