// Package column implements the storage engine behind C6's uniform Column
// contract (spec.md §4.6): a generational slot store, plus four thin
// selector wrappers (Thunderdome, Mutability, Columnar, Copy) that expose
// the same underlying Store through the method names spec.md names for
// each selector. Generated table code (codegen/table) never touches Store
// directly — it instantiates one selector type per table (tables are not
// split into column groups) and calls only the methods that selector
// exposes.
package column

import "iter"

// Key is a generational row handle: stable across Hide/Reveal, invalidated
// (by generation mismatch) once Pull has physically removed the slot. It is
// the Go analogue of spec.md §4.6's "Thunderdome-style generational" Key,
// reused by every selector since all four share this engine.
type Key[T any] struct {
	idx uint32
	gen uint32
}

// Index exposes the raw slot index for debug output (plan.Dump's table
// counterpart); never use it to bypass Store's generation check.
func (k Key[T]) Index() uint32 { return k.idx }

type slot[T any] struct {
	gen    uint32
	alive  bool // false once Pull has physically removed this slot
	hidden bool // true once Hide has logically deleted a still-alive slot
	val    T
}

// Store is the generational-slot engine shared by every selector strategy.
// The four selectors differ in which of Store's methods they expose to
// generated code, not in the storage mechanism itself.
type Store[T any] struct {
	slots []slot[T]
	free  []uint32
}

// Append inserts v at a fresh slot (no prior deletion to reuse), the
// Insert algorithm's "new slot at end" case (spec.md §4.6 step (c)).
func (s *Store[T]) Append(v T) Key[T] {
	idx := uint32(len(s.slots))
	s.slots = append(s.slots, slot[T]{alive: true, val: v})
	return Key[T]{idx: idx, gen: 0}
}

// Place inserts v into idx, a slot previously freed by Pull — the Insert
// algorithm's "slot reused from deletion" case. idx must name a non-alive
// slot just taken from Store's free list by FreeSlot.
func (s *Store[T]) Place(idx uint32, v T) Key[T] {
	sl := &s.slots[idx]
	sl.alive = true
	sl.hidden = false
	sl.val = v
	return Key[T]{idx: idx, gen: sl.gen}
}

// FreeSlot returns a previously-pulled slot index for a paired associated
// column to Place into lockstep with the primary column's own choice
// (spec.md §4.6 step (d)); ok is false when Store has no freed slot and the
// caller should Append instead.
func (s *Store[T]) FreeSlot() (idx uint32, ok bool) {
	n := len(s.free)
	if n == 0 {
		return 0, false
	}
	idx = s.free[n-1]
	s.free = s.free[:n-1]
	return idx, true
}

func (s *Store[T]) resolve(k Key[T]) (*slot[T], bool) {
	if int(k.idx) >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[k.idx]
	if sl.gen != k.gen || !sl.alive {
		return nil, false
	}
	return sl, true
}

// Get returns an immutable, datastore-lifetime view of k's row (the `get`
// primitive — cheaper than Brw because it never checks hidden state for a
// borrow scope, spec.md §4.6).
func (s *Store[T]) Get(k Key[T]) (T, bool) {
	var zero T
	sl, ok := s.resolve(k)
	if !ok {
		return zero, false
	}
	return sl.val, true
}

// Brw borrows k's row immutably for the scope of a transaction window.
func (s *Store[T]) Brw(k Key[T]) (T, bool) {
	var zero T
	sl, ok := s.resolve(k)
	if !ok || sl.hidden {
		return zero, false
	}
	return sl.val, true
}

// BrwMut borrows k's row mutably, returning a pointer live for the scope
// of the caller's transaction window.
func (s *Store[T]) BrwMut(k Key[T]) (*T, bool) {
	sl, ok := s.resolve(k)
	if !ok || sl.hidden {
		return nil, false
	}
	return &sl.val, true
}

// Hide logically deletes k's row; it stays resolvable through Get (Brw
// and BrwMut report it missing) until Pull physically removes it (spec.md §4.6 Delete algorithm: "the
// row remains borrowable through existing refs until commit").
func (s *Store[T]) Hide(k Key[T]) bool {
	sl, ok := s.resolve(k)
	if !ok {
		return false
	}
	sl.hidden = true
	return true
}

// Reveal undoes a Hide, the Abort algorithm's response to a logged Hide
// entry being rolled back.
func (s *Store[T]) Reveal(k Key[T]) bool {
	sl, ok := s.resolve(k)
	if !ok || !sl.hidden {
		return false
	}
	sl.hidden = false
	return true
}

// Pull physically removes a hidden row, bumping its generation so stale
// keys are rejected and freeing the slot for a future Place.
func (s *Store[T]) Pull(k Key[T]) bool {
	sl, ok := s.resolve(k)
	if !ok || !sl.hidden {
		return false
	}
	sl.alive = false
	sl.gen++
	var zero T
	sl.val = zero
	s.free = append(s.free, k.idx)
	return true
}

// Unappend reverses an as-yet-uncommitted Append during Abort: the slot
// was never visible outside the aborting transaction, so it is freed
// without bumping the generation or requiring a prior Hide.
func (s *Store[T]) Unappend(k Key[T]) bool {
	sl, ok := s.resolve(k)
	if !ok {
		return false
	}
	sl.alive = false
	var zero T
	sl.val = zero
	s.free = append(s.free, k.idx)
	return true
}

// Replace swaps k's row for v wholesale, returning the previous value —
// the Copy selector's whole-row mutation primitive, and the primitive
// Update's "swap fields with the update payload" step (spec.md §4.6 step
// (d)) ultimately reduces to for every selector.
func (s *Store[T]) Replace(k Key[T], v T) (old T, ok bool) {
	sl, ok := s.resolve(k)
	if !ok || sl.hidden {
		return old, false
	}
	old = sl.val
	sl.val = v
	return old, true
}

// Count reports the number of live, non-hidden rows.
func (s *Store[T]) Count() int {
	n := 0
	for _, sl := range s.slots {
		if sl.alive && !sl.hidden {
			n++
		}
	}
	return n
}

// Scan streams every live, non-hidden key in slot order.
func (s *Store[T]) Scan() iter.Seq[Key[T]] {
	return func(yield func(Key[T]) bool) {
		for idx, sl := range s.slots {
			if !sl.alive || sl.hidden {
				continue
			}
			if !yield(Key[T]{idx: uint32(idx), gen: sl.gen}) {
				return
			}
		}
	}
}
