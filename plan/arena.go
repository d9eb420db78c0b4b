// Package plan holds the logical plan (spec.md §3, component C5): an
// arena of typed entities linked only by stable keys, never by pointer, so
// the graph can carry cycles of references (operators <-> dataflows <->
// contexts) without any ownership cycle in the host language (spec.md §9
// "cyclic-by-design plan").
package plan

import "github.com/google/uuid"

// Key is a stable handle into one Arena[T]. It carries the arena's own id
// so a key minted by one Plan can never be mistaken for a key into another
// Plan's arena of the same element type (SPEC_FULL.md §7), and a
// generation counter so a key surviving past a Remove is detected as
// stale rather than silently resolving to whatever reused the slot.
type Key[T any] struct {
	arena uuid.UUID
	idx   uint32
	gen   uint32
}

// Valid reports whether k was ever minted (the zero Key is never valid).
func (k Key[T]) Valid() bool { return k.arena != uuid.Nil }

// Index exposes the raw slot index, used only for deterministic debug
// dumps (plan.Dump) — never for arena lookups outside this package.
func (k Key[T]) Index() uint32 { return k.idx }

type slot[T any] struct {
	gen   uint32
	alive bool
	val   T
}

// Arena is an append-only indexed collection whose keys stay valid for the
// arena's lifetime (GLOSSARY "Arena"). It additionally supports Remove,
// the generational-reuse behaviour spec.md §4.6 calls "Thunderdome-style",
// reused here as the one arena implementation backing every plan table.
type Arena[T any] struct {
	id    uuid.UUID
	slots []slot[T]
	free  []uint32
}

// NewArena creates an empty arena with a fresh identity.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{id: uuid.New()}
}

// Insert appends v (or reuses a freed slot) and returns its stable key.
func (a *Arena[T]) Insert(v T) Key[T] {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx].alive = true
		a.slots[idx].val = v
		return Key[T]{arena: a.id, idx: idx, gen: a.slots[idx].gen}
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{gen: 0, alive: true, val: v})
	return Key[T]{arena: a.id, idx: idx, gen: 0}
}

// Get resolves k to its value. The second return is false if k belongs to
// a different arena, is out of range, stale (generation mismatch), or was
// removed.
func (a *Arena[T]) Get(k Key[T]) (T, bool) {
	var zero T
	if k.arena != a.id || int(k.idx) >= len(a.slots) {
		return zero, false
	}
	s := a.slots[k.idx]
	if !s.alive || s.gen != k.gen {
		return zero, false
	}
	return s.val, true
}

// MustGet panics if k does not resolve; used only where the caller holds
// an invariant (e.g. freshly inserted keys) that guarantees it does.
func (a *Arena[T]) MustGet(k Key[T]) T {
	v, ok := a.Get(k)
	if !ok {
		panic("plan: arena key does not resolve")
	}
	return v
}

// Set replaces the value at k in place, without changing its generation.
func (a *Arena[T]) Set(k Key[T], v T) bool {
	if k.arena != a.id || int(k.idx) >= len(a.slots) {
		return false
	}
	s := &a.slots[k.idx]
	if !s.alive || s.gen != k.gen {
		return false
	}
	s.val = v
	return true
}

// Remove frees k's slot, bumping its generation so stale keys are
// detected on future Get calls.
func (a *Arena[T]) Remove(k Key[T]) bool {
	if k.arena != a.id || int(k.idx) >= len(a.slots) {
		return false
	}
	s := &a.slots[k.idx]
	if !s.alive || s.gen != k.gen {
		return false
	}
	s.alive = false
	s.gen++
	var zero T
	s.val = zero
	a.free = append(a.free, k.idx)
	return true
}

// Len returns the number of live elements.
func (a *Arena[T]) Len() int {
	return len(a.slots) - len(a.free)
}

// Keys returns the live keys in insertion order, stable for a given Plan
// (used by Plan.Validate and plan.Dump).
func (a *Arena[T]) Keys() []Key[T] {
	out := make([]Key[T], 0, a.Len())
	for idx, s := range a.slots {
		if s.alive {
			out = append(out, Key[T]{arena: a.id, idx: uint32(idx), gen: s.gen})
		}
	}
	return out
}

// Each calls f for every live (key, value) pair in insertion order.
func (a *Arena[T]) Each(f func(Key[T], T)) {
	for idx, s := range a.slots {
		if s.alive {
			f(Key[T]{arena: a.id, idx: uint32(idx), gen: s.gen}, s.val)
		}
	}
}
