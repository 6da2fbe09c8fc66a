package observable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_TryMark_FirstTime(t *testing.T) {
	g := newGuard()
	assert.True(t, g.tryMark("tok-1", "value"))
	assert.Equal(t, 1, g.size())
}

func TestGuard_TryMark_WhileActive(t *testing.T) {
	g := newGuard()
	require.True(t, g.tryMark("tok-1", "value"))
	assert.False(t, g.tryMark("tok-1", "value"), "an active pair is reentrant")
}

func TestGuard_TryMark_DifferentProperty(t *testing.T) {
	g := newGuard()
	require.True(t, g.tryMark("tok-1", "value"))
	assert.True(t, g.tryMark("tok-1", "mode"), "the guard is per property")
}

func TestGuard_TryMark_DifferentInstance(t *testing.T) {
	g := newGuard()
	require.True(t, g.tryMark("tok-1", "value"))
	assert.True(t, g.tryMark("tok-2", "value"), "the guard is per instance token")
}

func TestGuard_Unmark(t *testing.T) {
	g := newGuard()
	require.True(t, g.tryMark("tok-1", "value"))

	g.unmark("tok-1", "value")
	assert.Equal(t, 0, g.size())
	assert.True(t, g.tryMark("tok-1", "value"), "a released pair can be marked again")
}

func TestGuard_Unmark_DoesNotAffectOtherPairs(t *testing.T) {
	g := newGuard()
	require.True(t, g.tryMark("tok-1", "value"))
	require.True(t, g.tryMark("tok-2", "value"))

	g.unmark("tok-1", "value")
	assert.False(t, g.tryMark("tok-2", "value"))
}
