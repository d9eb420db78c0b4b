package column

// Columnar selects rows for field-at-a-time access: Project lets codegen
// read a single field across every live row without materializing whole
// rows, the intent behind spec.md §4.6's "columnar" strategy. The backing
// storage is the same generational Store as every other selector — a true
// per-field-slice layout would require codegen to split T into one slice
// per field, which this port collapses to a row store plus a projecting
// scan (see DESIGN.md).
type Columnar[T any] struct {
	Store[T]
}

func (c *Columnar[T]) Insert(v T) Key[T] {
	if idx, ok := c.FreeSlot(); ok {
		return c.Place(idx, v)
	}
	return c.Append(v)
}

// Project yields proj(row) for every live, non-hidden row in slot order,
// the columnar selector's characteristic field-pushdown scan.
func Project[T, F any](c *Columnar[T], proj func(T) F) []F {
	var out []F
	for k := range c.Scan() {
		v, ok := c.Get(k)
		if !ok {
			continue
		}
		out = append(out, proj(v))
	}
	return out
}
