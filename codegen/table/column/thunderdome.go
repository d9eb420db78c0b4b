package column

// Thunderdome exposes Store's full generational contract unchanged: the
// selector named directly after spec.md §4.6's "thunderdome-style
// generational" strategy, for column groups whose rows are large enough
// that generation-checked reuse of freed slots outweighs a flat copy.
type Thunderdome[T any] struct {
	Store[T]
}

func (c *Thunderdome[T]) Insert(v T) Key[T] {
	if idx, ok := c.FreeSlot(); ok {
		return c.Place(idx, v)
	}
	return c.Append(v)
}
