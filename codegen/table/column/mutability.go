package column

// Mutability is the default selector: it exposes Store's Brw/BrwMut split
// directly. codegen/table keeps each table in a single store, with no
// column groups and no immutable/mutable halves: reads go through Get and
// Update writes the new row through BrwMut. The type itself carries no
// extra state.
type Mutability[T any] struct {
	Store[T]
}

func (c *Mutability[T]) Insert(v T) Key[T] {
	if idx, ok := c.FreeSlot(); ok {
		return c.Place(idx, v)
	}
	return c.Append(v)
}
