package observable

import (
	"reflect"
	"runtime"
	"sync"
	"weak"
)

// phaseKey addresses one ordered observer list of an instance.
type phaseKey struct {
	property string
	phase    Phase
}

// subscription holds one registered observer together with the identity it
// was registered under. Slice position defines dispatch order.
type subscription struct {
	key obsKey
	obs Observer
}

// instanceEntry is the registry's bookkeeping for one observed instance.
//
// The entry holds the identity token and the observer lists. It deliberately
// holds no strong reference to the instance itself: observers are kept alive
// until unsubscribed, the observed object is not. The weak ref distinguishes
// the entry's original instance from a later allocation at the same address:
// once the original is reclaimed, ref.Value returns nil and the entry is
// stale regardless of what now lives there.
type instanceEntry struct {
	token string
	ref   weak.Pointer[byte]
	subs  map[phaseKey][]subscription
}

// stale reports whether the entry's original instance has been reclaimed.
func (e *instanceEntry) stale() bool {
	return e.ref.Value() == nil
}

// registry is the process-wide subscription table.
//
// Entries are keyed by the instance's address and created lazily on first
// subscription, when the identity token is assigned. A runtime cleanup is
// attached to the instance at that point, so the entry is purged once the
// instance becomes unreachable. Cleanups run at the runtime's leisure, after
// the allocator may already have reused the address, so every lookup and the
// purge itself re-check the entry's weak ref: a stale entry is never handed
// to a new occupant of the address, and a queued purge never deletes a
// successor's live bookkeeping.
//
// Thread-safety: the table is mutex-guarded so misuse from multiple
// goroutines fails cleanly rather than racing. Ordering across concurrent
// writers is explicitly out of contract.
type registry struct {
	mu      sync.Mutex
	entries map[uintptr]*instanceEntry
	gen     TokenGenerator
}

func newRegistry(gen TokenGenerator) *registry {
	return &registry{
		entries: make(map[uintptr]*instanceEntry),
		gen:     gen,
	}
}

// instanceAddr derives the address key of a pointer instance. The instance
// has already been validated as a non-nil pointer by descriptor resolution.
func instanceAddr(instance any) uintptr {
	return reflect.ValueOf(instance).Pointer()
}

// entryFor returns the entry for an instance, creating it (and assigning the
// identity token) when create is true. Returns nil when the instance has no
// entry and create is false.
//
// An entry left behind by a reclaimed previous occupant of the same address
// is discarded here rather than reused: the new instance gets a fresh token
// and empty observer lists.
func (r *registry) entryFor(instance any, create bool) *instanceEntry {
	v := reflect.ValueOf(instance)
	ptr := (*byte)(v.UnsafePointer())
	addr := v.Pointer()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[addr]
	if entry != nil && entry.stale() {
		delete(r.entries, addr)
		entry = nil
	}
	if entry == nil && create {
		entry = &instanceEntry{
			token: r.gen.Generate(),
			ref:   weak.Make(ptr),
			subs:  make(map[phaseKey][]subscription),
		}
		r.entries[addr] = entry

		// Purge the entry when the instance is reclaimed. The cleanup
		// receives only the address, never the instance, so registration
		// does not keep the instance alive.
		runtime.AddCleanup(ptr, func(a uintptr) { r.purge(a) }, addr)
	}
	return entry
}

// purge drops the bookkeeping for a reclaimed instance address. The entry at
// the address may already belong to a successor instance subscribed before
// this queued cleanup ran; it is deleted only when its own instance is gone.
func (r *registry) purge(addr uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry := r.entries[addr]; entry != nil && entry.stale() {
		delete(r.entries, addr)
	}
}

// subscribe appends the observer to the (instance, property, phase) list if
// it is not already present. Idempotent: re-subscribing the same observer
// under the same key is a no-op and never duplicates an entry.
func (r *registry) subscribe(instance any, propertyName string, phase Phase, obs Observer) error {
	key, err := observerKey(obs)
	if err != nil {
		return err
	}

	entry := r.entryFor(instance, true)

	r.mu.Lock()
	defer r.mu.Unlock()

	pk := phaseKey{property: propertyName, phase: phase}
	for _, sub := range entry.subs[pk] {
		if sub.key == key {
			return nil
		}
	}
	entry.subs[pk] = append(entry.subs[pk], subscription{key: key, obs: obs})
	return nil
}

// unsubscribe removes the observer from both phases of the named property.
// An empty property name is the wildcard: the observer is removed from every
// observable property of the instance, in any phase.
//
// Returns true if at least one entry was removed. Absence is not an error.
func (r *registry) unsubscribe(instance any, propertyName string, obs Observer) (bool, error) {
	key, err := observerKey(obs)
	if err != nil {
		return false, err
	}

	entry := r.entryFor(instance, false)
	if entry == nil {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := false
	for pk, subs := range entry.subs {
		if propertyName != "" && pk.property != propertyName {
			continue
		}
		for i, sub := range subs {
			if sub.key == key {
				entry.subs[pk] = append(subs[:i:i], subs[i+1:]...)
				removed = true
				break
			}
		}
		if len(entry.subs[pk]) == 0 {
			delete(entry.subs, pk)
		}
	}
	return removed, nil
}

// snapshot returns the identity token and the current observer list for one
// (instance, property, phase) key. The returned slice is a copy: dispatch
// iterates it without holding the registry lock, so observers may subscribe
// and unsubscribe freely while running.
//
// Returns ok=false when the instance has no registry entry at all, which
// means nothing can be observing it.
func (r *registry) snapshot(instance any, propertyName string, phase Phase) (token string, observers []Observer, ok bool) {
	entry := r.entryFor(instance, false)
	if entry == nil {
		return "", nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs := entry.subs[phaseKey{property: propertyName, phase: phase}]
	observers = make([]Observer, len(subs))
	for i, sub := range subs {
		observers[i] = sub.obs
	}
	return entry.token, observers, true
}

// token returns the identity token of an instance, or "" when the instance
// has never been subscribed to.
func (r *registry) token(instance any) string {
	entry := r.entryFor(instance, false)
	if entry == nil {
		return ""
	}
	return entry.token
}

// size returns the number of tracked instances. Used for testing and
// introspection.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
