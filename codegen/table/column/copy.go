package column

// Copy forbids in-place mutable borrows: every update goes through Replace,
// swapping the whole row by value rather than handing out a live pointer —
// spec.md §4.6's "copy-semantics" strategy, for column groups small enough
// that whole-row copy-in/copy-out is cheaper than pointer-tracked mutable
// borrows.
type Copy[T any] struct {
	Store[T]
}

func (c *Copy[T]) Insert(v T) Key[T] {
	if idx, ok := c.FreeSlot(); ok {
		return c.Place(idx, v)
	}
	return c.Append(v)
}

// BrwMut is still promoted from the embedded Store; codegen/table never
// emits a BrwMut call for this selector (Selector.exposesBrwMut) and
// updates rows through Replace, the copy-semantics primitive, instead.
