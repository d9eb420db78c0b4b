package plan

// TableKey, ScalarKey, RecordKey, FlowKey, OpKey, ContextKey, QueryKey are
// the stable handles exchanged between the front end's lowering pass
// (sem), the plan itself, and both code generators (codegen/table,
// codegen/query). None of these types ever embeds a pointer to a peer
// entity — only a Key (spec.md §3.1 "no entity owns another by pointer").
type (
	TableKey   = Key[Table]
	ScalarKey  = Key[ScalarType]
	RecordKey  = Key[RecordType]
	FlowKey    = Key[DataFlow]
	OpKey      = Key[Operator]
	ContextKey = Key[Context]
	QueryKey   = Key[Query]
)

// ScalarKind tags the variant held by a ScalarType (spec.md §3.1).
type ScalarKind int

const (
	// ScalarHost is a host-language (Go) type or expression, spliced
	// verbatim into generated code. spec.md names this variant
	// `Rust(type_context, token-blob)`; the host language here is Go, so
	// HostExpr carries the already-rendered Go type/expression text
	// produced by combi/lex.ParseTyped (see DESIGN.md Open Question).
	ScalarHost ScalarKind = iota
	// ScalarTableRef is a reference type into another table (a row handle).
	ScalarTableRef
	// ScalarTableGet names a single column's type, used by `get` operators.
	ScalarTableGet
	// ScalarRecord names a RecordType.
	ScalarRecord
	// ScalarBag is a record type wrapped as "bag of rows" (Collect's output).
	ScalarBag
	// ScalarRef is an indirection sharing a user-declared type alias; it
	// must be resolved via Plan.ResolveScalar before structural equality
	// checks.
	ScalarRef
)

// ScalarType is the atomic type vocabulary of the plan (GLOSSARY "Scalar
// type").
type ScalarType struct {
	Kind ScalarKind

	HostExpr string // ScalarHost

	Table TableKey // ScalarTableRef, ScalarTableGet
	Field string    // ScalarTableGet

	Record RecordKey // ScalarRecord, ScalarBag

	Ref ScalarKey // ScalarRef
}

// FieldKind distinguishes a record field declared in source (User) from
// one synthesised during lowering (Internal), e.g. the fresh field a
// DeRef operator adds to hold a dereferenced row.
type FieldKind int

const (
	FieldUser FieldKind = iota
	FieldInternal
)

// RecordField is one entry of a RecordType's ordered field list.
type RecordField struct {
	Name string
	Kind FieldKind
	Type ScalarKey
}

// RecordTypeKind tags whether a RecordType is a concrete field list or a
// Ref indirection sharing a user-declared alias (spec.md §3.1).
type RecordTypeKind int

const (
	RecordConcrete RecordTypeKind = iota
	RecordRefKind
)

// RecordType maps field names to scalar-type keys, in declaration order
// (GLOSSARY "Record type").
type RecordType struct {
	Kind   RecordTypeKind
	Fields []RecordField // RecordConcrete
	Ref    RecordKey     // RecordRefKind
}

// FieldByName looks up a concrete RecordType's field by name.
func (r RecordType) FieldByName(name string) (RecordField, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return RecordField{}, false
}

// UniqueConstraint names a column participating in a table's unique index.
type UniqueConstraint struct {
	Alias string
}

// ColumnConstraints holds the optional per-column constraints spec.md
// §3.1 names.
type ColumnConstraints struct {
	Unique *UniqueConstraint
}

// Column is one table field's type plus its constraints.
type Column struct {
	DataType    ScalarKey
	Constraints ColumnConstraints
}

// Field is one entry of a Table's ordered field->Column mapping.
type Field struct {
	Name   string
	Column Column
}

// PredConstraint is a `pred(expr) as alias` row predicate. Expr is
// rendered Go boolean-expression source referencing the table's field
// names, spliced by codegen/table into the generated `Borrows`-based
// check (spec.md §4.6).
type PredConstraint struct {
	Alias string
	Expr  string
}

// LimitConstraint is a `limit(expr) as alias` row-count cap.
type LimitConstraint struct {
	Alias string
	Max   int
}

// RowConstraints is a table's `@ [ ... ]` block, minus unique constraints
// (those live on the owning Column).
type RowConstraints struct {
	Limit      *LimitConstraint
	Predicates []PredConstraint
}

// Table is a plan table: name, ordered fields, and row constraints
// (spec.md §3.1). Tables are created once during lowering and never
// mutated afterward (spec.md §3.3).
type Table struct {
	Name        string
	Fields      []Field
	Constraints RowConstraints
}

// FieldByName looks up a table's column by field name.
func (t Table) FieldByName(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// UniqueAlias returns the field name carrying the given unique alias.
func (t Table) UniqueAlias(alias string) (string, bool) {
	for _, f := range t.Fields {
		if u := f.Column.Constraints.Unique; u != nil && u.Alias == alias {
			return f.Name, true
		}
	}
	return "", false
}
