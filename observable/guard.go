package observable

import "sync"

// guard tracks (instance, property) pairs currently under active dispatch
// to prevent reentrant writes.
//
// A reentrant write happens when an observer, directly or indirectly, writes
// the very property whose change it is reacting to:
//
//	t.SetValue(4) → dispatch → observer calls t.SetValue(5) ← REENTRANT
//
// Without the guard this recurses until the stack blows. The guard marks the
// pair active before any observer runs and releases it when the full cycle
// (both phases of a write) completes, whether by normal return or by an
// observer failing. While a pair is active, any Set, Notify or Update on it
// fails immediately with a REENTRANT_WRITE error and does not mutate.
//
// The pair is keyed by the instance identity token, not the instance, so the
// guard holds no reference to observed objects.
//
// This is a same-call-stack check, not a cross-goroutine lock: concurrent
// writers are out of contract (the runtime is caller-synchronized). The map
// is still mutex-guarded so misuse fails cleanly rather than racing.
type guard struct {
	mu     sync.Mutex
	active map[guardKey]bool
}

type guardKey struct {
	token    string
	property string
}

func newGuard() *guard {
	return &guard{active: make(map[guardKey]bool)}
}

// tryMark marks the (token, property) pair active. Returns false if the
// pair is already active, meaning the attempted operation is reentrant.
func (g *guard) tryMark(token, property string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := guardKey{token: token, property: property}
	if g.active[key] {
		return false
	}
	g.active[key] = true
	return true
}

// unmark releases the pair at the end of a dispatch cycle.
func (g *guard) unmark(token, property string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.active, guardKey{token: token, property: property})
}

// size returns the number of active pairs. Used for testing and
// introspection; outside a dispatch cycle it must be zero.
func (g *guard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.active)
}
