// Package query renders one query's root Context (and every GroupBy/Lift
// body nested beneath it) into a Go function implementing spec.md §4.7's
// operator lowering contract: bind the input holder, declare whatever
// values the operator needs, emit the output holder statement, register a
// runtime.StatSlot, and record any table mutation the operator makes on
// the enclosing transaction scope.
package query

import (
	"fmt"

	"github.com/syssam/emdbc/plan"
)

// holder names the Go local variable an operator's output FlowKey is
// bound to. plan.Key.Index() exists precisely for this — deterministic,
// debug-friendly naming, never cross-arena lookup (plan/arena.go).
func holder(k plan.FlowKey) string {
	return fmt.Sprintf("v%d", k.Index())
}
