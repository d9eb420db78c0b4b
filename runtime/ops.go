package runtime

import (
	"sort"

	"golang.org/x/sync/errgroup"
)

// forEachErr runs work(i) for i in [0, n) under the strategy p selects:
// sequential for Basic/Iter, a bounded errgroup.Group for Parallel, and a
// bounded errgroup.Group of fixed-size batches for Chunk (SPEC_FULL.md
// §2, wiring golang.org/x/sync). The first error returned by any work
// call is returned; others are discarded, matching errgroup.Group's own
// first-error-wins behaviour.
func forEachErr(p Profile, n int, work func(i int) error) error {
	switch pr := p.(type) {
	case Parallel:
		g := new(errgroup.Group)
		g.SetLimit(pr.Workers())
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error { return work(i) })
		}
		return g.Wait()
	case Chunk:
		g := new(errgroup.Group)
		g.SetLimit(pr.Workers())
		size := pr.ChunkSize()
		for start := 0; start < n; start += size {
			start := start
			end := start + size
			if end > n {
				end = n
			}
			g.Go(func() error {
				for i := start; i < end; i++ {
					if err := work(i); err != nil {
						return err
					}
				}
				return nil
			})
		}
		return g.Wait()
	default:
		for i := 0; i < n; i++ {
			if err := work(i); err != nil {
				return err
			}
		}
		return nil
	}
}

// Map applies f to every element of in, honouring p's concurrency
// strategy. Output order always matches input order regardless of
// profile (SPEC_FULL.md §8).
func Map[T, U any](p Profile, stats *Stats, slot StatSlot, in []T, f func(T) U) []U {
	out := make([]U, len(in))
	_ = forEachErr(p, len(in), func(i int) error {
		out[i] = f(in[i])
		return nil
	})
	stats.record(slot, len(in))
	return out
}

// MapSeq applies f to every element of in strictly sequentially in input
// order, regardless of the profile in force — the operator codegen/query
// uses for mutating table operators (Insert/Update/Delete), per spec.md
// §5's ordering guarantee.
func MapSeq[T, U any](stats *Stats, slot StatSlot, in []T, f func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	stats.record(slot, len(in))
	return out
}

// MapSingle applies f to one value outside any stream context (a query
// root bound by a scalar parameter rather than a table scan).
func MapSingle[T, U any](stats *Stats, slot StatSlot, v T, f func(T) U) U {
	stats.record(slot, 1)
	return f(v)
}

// Filter keeps every element for which pred returns true, preserving
// input order. The predicate evaluation itself is distributed per p;
// compaction into the result slice is always sequential.
func Filter[T any](p Profile, stats *Stats, slot StatSlot, in []T, pred func(T) bool) []T {
	keep := make([]bool, len(in))
	_ = forEachErr(p, len(in), func(i int) error {
		keep[i] = pred(in[i])
		return nil
	})
	out := make([]T, 0, len(in))
	for i, k := range keep {
		if k {
			out = append(out, in[i])
		}
	}
	stats.record(slot, len(out))
	return out
}

// All reports whether pred holds for every element of in.
func All[T any](stats *Stats, slot StatSlot, in []T, pred func(T) bool) bool {
	stats.record(slot, len(in))
	for _, v := range in {
		if !pred(v) {
			return false
		}
	}
	return true
}

// Is reports whether v appears in in.
func Is[T comparable](stats *Stats, slot StatSlot, in []T, v T) bool {
	stats.record(slot, len(in))
	for _, x := range in {
		if x == v {
			return true
		}
	}
	return false
}

// Count reports len(in), recording the same value as its stat.
func Count[T any](stats *Stats, slot StatSlot, in []T) int {
	stats.record(slot, len(in))
	return len(in)
}

// Fold reduces in to a single accumulator value in input order. Folding
// is inherently order-dependent, so it always runs sequentially
// regardless of profile.
func Fold[T, A any](stats *Stats, slot StatSlot, in []T, init A, f func(A, T) A) A {
	acc := init
	for _, v := range in {
		acc = f(acc, v)
	}
	stats.record(slot, len(in))
	return acc
}

// Combine reduces in to a single value using an associative/commutative
// operator and identity element (sem rejects Combine fields without an
// explicit identity — see sem.lowerOperator). Because the reduction is
// required to be associative, Parallel/Chunk profiles reduce each worker
// chunk independently before combining the partial results, rather than
// falling back to Fold's strict left-to-right order.
func Combine[T any](p Profile, stats *Stats, slot StatSlot, in []T, identity T, f func(T, T) T) T {
	stats.record(slot, len(in))
	if !p.Concurrent() || len(in) == 0 {
		acc := identity
		for _, v := range in {
			acc = f(acc, v)
		}
		return acc
	}

	workers := p.Workers()
	if workers > len(in) {
		workers = len(in)
	}
	chunkSize := (len(in) + workers - 1) / workers
	partials := make([]T, workers)
	for i := range partials {
		partials[i] = identity
	}
	_ = forEachErr(Parallel{workers: workers}, workers, func(w int) error {
		start := w * chunkSize
		end := start + chunkSize
		if start > len(in) {
			start = len(in)
		}
		if end > len(in) {
			end = len(in)
		}
		acc := identity
		for _, v := range in[start:end] {
			acc = f(acc, v)
		}
		partials[w] = acc
		return nil
	})
	acc := identity
	for _, p := range partials {
		acc = f(acc, p)
	}
	return acc
}

// Sort returns a sorted copy of in. Sort stability is explicitly not
// contractual (spec.md §9), so sort.Slice is used rather than
// sort.SliceStable to make the non-guarantee observable instead of
// accidentally stable.
func Sort[T any](stats *Stats, slot StatSlot, in []T, less func(a, b T) bool) []T {
	out := make([]T, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	stats.record(slot, len(out))
	return out
}

// Take returns at most the first n elements of in.
func Take[T any](stats *Stats, slot StatSlot, in []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if n > len(in) {
		n = len(in)
	}
	out := make([]T, n)
	copy(out, in[:n])
	stats.record(slot, n)
	return out
}
