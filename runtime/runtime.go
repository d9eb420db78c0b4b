// Package runtime is the dataflow runtime contract generated query code
// (codegen/query) is written against (spec.md §4.7, §4.9). It is linked
// by the host program alongside the emitted file, never generated itself.
//
// A query's operator chain is compiled to a sequence of calls into this
// package, parameterized by one of the four "minister" profiles (Basic,
// Iter, Parallel, Chunk) selected in backend.Options. Every call takes a
// *Stats handle so a single query execution can report per-operator
// item counts (spec.md §4.9), the runtime analogue of diag's compile-time
// diagnostics.
package runtime

import "sync"

// StatSlot identifies one operator's stat-collection slot within a
// query's generated function body. codegen/query assigns these in
// operator declaration order starting at 0.
type StatSlot int

// Stats accumulates per-operator item counts for one query execution.
// Generated code allocates one Stats per call and threads it through
// every runtime function in the operator chain; a nil *Stats is valid
// and simply discards every record (queries that opt out of §4.9
// reporting pay nothing for it).
type Stats struct {
	mu     sync.Mutex
	counts map[StatSlot]int64
}

// NewStats returns an empty stats handle.
func NewStats() *Stats { return &Stats{counts: map[StatSlot]int64{}} }

func (s *Stats) record(slot StatSlot, n int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.counts == nil {
		s.counts = map[StatSlot]int64{}
	}
	s.counts[slot] += int64(n)
	s.mu.Unlock()
}

// Count returns how many items slot has processed so far.
func (s *Stats) Count(slot StatSlot) int64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[slot]
}

// Snapshot returns a copy of every slot's recorded count, for debug
// dumps and tests.
func (s *Stats) Snapshot() map[StatSlot]int64 {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[StatSlot]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
