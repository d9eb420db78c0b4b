package runtime

import "iter"

// ConsumeStream drains a push iterator (the shape a table's scan or an
// upstream collaborator hands a query) into the slice every other
// operator in this package expects.
func ConsumeStream[T any](stats *Stats, slot StatSlot, seq iter.Seq[T]) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	stats.record(slot, len(out))
	return out
}

// ConsumeBuffer marks an explicit materialization boundary: in is already
// a slice, but the call still registers a stat slot so codegen/query can
// report buffer sizes the way it reports every other operator's.
func ConsumeBuffer[T any](stats *Stats, slot StatSlot, in []T) []T {
	stats.record(slot, len(in))
	return in
}

// ConsumeSingle records a query's single-row input holder.
func ConsumeSingle[T any](stats *Stats, slot StatSlot, v T) T {
	stats.record(slot, 1)
	return v
}

// ExportStream converts a materialized slice back into a push iterator for
// a returning query's caller (the `collect()` terminal operator, or a
// table's own scan entry point).
func ExportStream[T any](stats *Stats, slot StatSlot, in []T) iter.Seq[T] {
	stats.record(slot, len(in))
	return func(yield func(T) bool) {
		for _, v := range in {
			if !yield(v) {
				return
			}
		}
	}
}

// ExportSingle records and returns a query's single-row result.
func ExportSingle[T any](stats *Stats, slot StatSlot, v T) T {
	stats.record(slot, 1)
	return v
}

// ErrorStream pairs a stream of values with one fallible step's
// per-element errors (e.g. a DeRef or UniqueRef table lookup run over a
// stream), returning the first error encountered and the values
// produced up to that point — query codegen's transactional wrapping
// treats any non-nil error as a signal to abort (spec.md §4.7).
func ErrorStream[T any](stats *Stats, slot StatSlot, in []T, errs []error) ([]T, error) {
	stats.record(slot, len(in))
	for i, err := range errs {
		if err != nil {
			return in[:i], err
		}
	}
	return in, nil
}

// ErrorSingle is ErrorStream's single-value counterpart, used by
// operators bound to a scalar (unique lookup, insert, update, delete,
// assert) rather than a stream.
func ErrorSingle[T any](stats *Stats, slot StatSlot, v T, err error) (T, error) {
	stats.record(slot, 1)
	return v, err
}
