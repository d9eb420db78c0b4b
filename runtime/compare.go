package runtime

import "fmt"

// Less orders two values of unknown dynamic type, the comparator
// codegen/query builds Sort's multi-key less functions from (spec.md
// §4.5 Sort) — struct fields generated from a query body are typed any
// throughout (see codegen/query's shape abstraction), so Go's native
// ordering operators are unavailable and every comparison routes
// through here instead. Known scalar kinds compare directly; anything
// else falls back to a string comparison of their formatted form so
// Sort always produces a total order rather than panicking.
func Less(a, b any) bool {
	switch x := a.(type) {
	case int:
		y, ok := b.(int)
		return ok && x < y
	case int32:
		y, ok := b.(int32)
		return ok && x < y
	case int64:
		y, ok := b.(int64)
		return ok && x < y
	case uint64:
		y, ok := b.(uint64)
		return ok && x < y
	case float32:
		y, ok := b.(float32)
		return ok && x < y
	case float64:
		y, ok := b.(float64)
		return ok && x < y
	case string:
		y, ok := b.(string)
		return ok && x < y
	case bool:
		y, ok := b.(bool)
		return ok && !x && y
	default:
		return fmt.Sprint(a) < fmt.Sprint(b)
	}
}
