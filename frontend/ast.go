// Package frontend implements the DSL front end (spec.md §4.3, component
// C3): parsing table, query and backend declarations into an AST that
// preserves source spans and declaration order for sem.Lower.
package frontend

import "github.com/syssam/emdbc/diag"

// File is the root of one parsed source unit: its top-level declarations
// in the order they appeared (spec.md §4.3 "parser must accept the
// streams in declaration order").
type File struct {
	Tables   []TableDecl
	Queries  []QueryDecl
	Backends []BackendDecl
}

// TypeExpr is a splice of host (Go) type syntax captured verbatim by
// combi/lex.ParseTyped (spec.md §4.2 parse_typed).
type TypeExpr struct {
	Source string
	Span   diag.Span
}

// TableDecl is `table NAME { field: Type, ... } @ [ constraint, ... ]`.
type TableDecl struct {
	Name        string
	NameSpan    diag.Span
	Fields      []FieldDecl
	Constraints []ConstraintDecl
	Span        diag.Span
}

// FieldDecl is one `name: Type` entry of a table body.
type FieldDecl struct {
	Name     string
	NameSpan diag.Span
	Type     TypeExpr
}

// ConstraintKind tags one `@ [ ... ]` entry.
type ConstraintKind int

const (
	ConstraintUnique ConstraintKind = iota
	ConstraintPred
	ConstraintLimit
)

// ConstraintDecl is one `unique(field) as alias`, `pred(expr) as alias`,
// or `limit(expr) as alias` entry.
type ConstraintDecl struct {
	Kind    ConstraintKind
	Field   string    // ConstraintUnique
	Expr    string    // ConstraintPred, ConstraintLimit: Go expression source
	Alias   string
	Span    diag.Span
}

// QueryDecl is `query NAME(param: Type, ...) { stream_expr; ... }`.
type QueryDecl struct {
	Name     string
	NameSpan diag.Span
	Params   []ParamDecl
	Body     []StreamExpr
	Span     diag.Span
}

// ParamDecl is one `name: Type` query parameter.
type ParamDecl struct {
	Name string
	Type TypeExpr
}

// Connector is the `~>` (single) or `|>` (stream) operator-joining token.
type Connector int

const (
	ConnSingle Connector = iota // ~>
	ConnStream                  // |>
)

// StreamExpr is one `let x = ... ~>/|> op ~>/|> op ...;` line of a query
// or nested-context body, or a bare control form (`use x`, `return x`).
type StreamExpr struct {
	// Let names the variable this expression binds, empty if this line
	// is a bare `use`/`return`/terminal operator with no binding.
	Let     string
	LetSpan diag.Span

	// Use references a previously `let`-bound variable as this
	// expression's initial value instead of Ops[0] being a source
	// operator (spec.md §4.4 variable discipline).
	Use     string
	UseSpan diag.Span

	// Ops is the operator chain, each paired with the connector that
	// joins it to the previous stage (on a `let` line Conns[0] is always
	// ConnSingle and unused; on a `use` line it is the connector written
	// after the variable).
	Ops   []OperatorExpr
	Conns []Connector

	Span diag.Span
}

// OperatorExpr is one pipeline stage: `map { ... }`, `filter(expr)`,
// `ref(table)`, `groupby(field) { body }`, etc.
type OperatorExpr struct {
	Name string
	Span diag.Span

	// Args are positional textual arguments (field names, table names,
	// expressions, aliases) as written; semantic lowering interprets
	// them per Name.
	Args []string

	// FieldExprs carries `field: expr` pairs for Row/Map/Fold/Combine.
	FieldExprs []FieldExpr

	// Body is the nested stream-expression list for GroupBy/Lift.
	Body []StreamExpr
}

// FieldExpr is one `field: expr` entry inside a Row/Map/Fold/Combine
// operator body. Aux carries a fold/combine operator's second
// (update, or identity+update) expression when present.
type FieldExpr struct {
	Field string
	Expr  string
	Aux   string
}

// BackendDecl is `impl NAME as BACKEND { options }?;`.
type BackendDecl struct {
	Name     string
	Backend  string
	Options  map[string]string
	Span     diag.Span
}
