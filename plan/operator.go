package plan

// OpKind enumerates the operator catalogue of spec.md §4.5. Go has no
// closed sum types, so Operator below is a single struct carrying every
// variant's fields; only the fields relevant to Kind are populated, the
// same "case class" shape the teacher's loaded-schema types
// (compiler/load/schema.go's Field/Edge) use for a similarly-shaped
// closed set of field/edge kinds.
type OpKind int

const (
	OpRow OpKind = iota
	OpMap
	OpFilter
	OpFold
	OpCombine
	OpSort
	OpTake
	OpCount
	OpCollect
	OpAssert
	OpFork
	OpUnion
	OpExpand
	OpJoin
	OpGroupBy
	OpLift
	OpScanRefs
	OpUniqueRef
	OpDeRef
	OpInsert
	OpUpdate
	OpDelete
	OpReturn
	OpDiscard
)

func (k OpKind) String() string {
	names := [...]string{
		"Row", "Map", "Filter", "Fold", "Combine", "Sort", "Take", "Count",
		"Collect", "Assert", "Fork", "Union", "Expand", "Join", "GroupBy",
		"Lift", "ScanRefs", "UniqueRef", "DeRef", "Insert", "Update",
		"Delete", "Return", "Discard",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// SortKey is one `(field, asc|desc)` entry of a Sort operator.
type SortKey struct {
	Field string
	Asc   bool
}

// FoldField is one field's `(initial, update)` expression pair for Fold.
type FoldField struct {
	Initial string
	Update  string
}

// CombineField is one field's `(identity, update)` pair for Combine; Go
// expressions, required to be associative/commutative by construction
// (not checked — spec.md leaves that to the DSL author).
type CombineField struct {
	Identity string
	Update   string
}

// JoinKind tags a Join operator's matching strategy.
type JoinKind int

const (
	JoinCross JoinKind = iota
	JoinPredicate
	JoinEqui
)

// JoinSpec describes how two streams are matched.
type JoinSpec struct {
	Kind       JoinKind
	Predicate  string // JoinPredicate: Go boolean expression over left/right
	LeftField  string // JoinEqui
	RightField string // JoinEqui
	LeftAs     string // identifier the left row is embedded under
	RightAs    string // identifier the right row is embedded under
}

// Mutation tags whether an operator reads or mutates the tables it
// touches, driving commit/abort wiring (spec.md §4.5, §4.8).
type Mutation int

const (
	Reads Mutation = iota
	Mutates
)

// TableTouch records one (table, mutation-kind) observation an operator
// makes; Operator.Touches returns the set a scope handle accumulates.
type TableTouch struct {
	Table    TableKey
	Mutation Mutation
}

// Operator is one node of the plan's dataflow graph. Every variant names
// its input/output FlowKeys (zero, one, or many as the shape requires)
// and, for table-touching operators, the table it reads or mutates.
type Operator struct {
	Kind OpKind

	// Single input/output, the common case (Map, Filter, Fold, Combine,
	// Sort, Take, Count, Collect, Assert, Expand, DeRef, Insert, Update,
	// Delete, Return, Discard, UniqueRef, Lift).
	In  FlowKey
	Out FlowKey

	// Fork/Union have many-sided edges.
	Outs []FlowKey // Fork
	Ins  []FlowKey // Union

	// Join has two inputs and names its two sides.
	Left, Right FlowKey
	Join        JoinSpec

	// Field-level payloads.
	RowExprs     map[string]string // Row
	MapExprs     map[string]string // Map
	FilterExpr   string            // Filter
	FoldFields   map[string]FoldField
	CombineField map[string]CombineField
	SortBy       []SortKey
	TakeN        string // compile-time constant expression
	AssertExpr   string
	AssertName   string
	ExpandField  string

	// Nested-context operators.
	GroupByField string
	Inner        ContextKey // GroupBy, Lift

	// Table-touching operators.
	Table      TableKey
	Field      string // UniqueRef: unique-constraint alias
	Key        string // UniqueRef: expression producing the comparison value
	Named      string // DeRef: field name the dereferenced row is embedded under
	Unchecked  bool   // DeRef: producer just-minted the reference
	UpdateName string // Update: the operator's second argument; codegen does not read it
	Mapping    map[string]string // Update: field -> new-value expression
}

// Touches reports the tables this operator reads or mutates, and how
// (spec.md §4.5 "each operator declares which tables it reads vs
// mutates").
func (o Operator) Touches() []TableTouch {
	switch o.Kind {
	case OpScanRefs, OpUniqueRef, OpDeRef:
		return []TableTouch{{Table: o.Table, Mutation: Reads}}
	case OpInsert, OpUpdate, OpDelete:
		return []TableTouch{{Table: o.Table, Mutation: Mutates}}
	default:
		return nil
	}
}

// Inputs returns every FlowKey this operator consumes from.
func (o Operator) Inputs() []FlowKey {
	switch o.Kind {
	case OpRow, OpScanRefs:
		return nil
	case OpFork:
		return []FlowKey{o.In}
	case OpUnion:
		return append([]FlowKey{}, o.Ins...)
	case OpJoin:
		return []FlowKey{o.Left, o.Right}
	default:
		return []FlowKey{o.In}
	}
}

// Outputs returns every FlowKey this operator produces to.
func (o Operator) Outputs() []FlowKey {
	switch o.Kind {
	case OpFork:
		return append([]FlowKey{}, o.Outs...)
	case OpReturn, OpDiscard:
		return nil
	default:
		return []FlowKey{o.Out}
	}
}

// CanFail reports whether this operator has a run-time failure path, so
// its query can return an error (spec.md §4.7).
func (o Operator) CanFail() bool {
	switch o.Kind {
	case OpUniqueRef, OpDeRef, OpInsert, OpUpdate, OpDelete, OpAssert:
		return true
	default:
		return false
	}
}
