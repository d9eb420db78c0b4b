package plan

// Param is one named, typed input to a query or a nested context (spec.md
// §3.1, §4.3). Nested contexts (GroupBy's per-group body, Lift's per-row
// body) receive their own Param list distinct from the owning query's.
type Param struct {
	Name string
	Type ScalarKey
}

// Context is a linear sequence of operators sharing one parameter scope
// (spec.md §3.1 "Context"). A query's top-level body is a Context; so is
// each GroupBy/Lift operator's nested body. Ops is the ordered execution
// sequence; Discards lists operators whose output is intentionally
// dropped (sem converts a trailing unused flow into an explicit Discard
// rather than leaving it dangling, per spec.md §4.3 variable discipline).
// Return names the single operator, if any, whose output is this
// context's result.
type Context struct {
	Params   []Param
	Ops      []OpKey
	Discards []OpKey
	Return   *OpKey
}

// Query is a named, top-level compilation unit: a public entry point
// wrapping one root Context (spec.md §3.1, §4.1).
type Query struct {
	Name string
	Root ContextKey
}
