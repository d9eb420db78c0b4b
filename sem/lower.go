// Package sem implements semantic lowering (spec.md §4.4, component C4):
// it walks a frontend.File in declaration order (tables, then queries) and
// builds a plan.Plan, emitting diagnostics for every failure mode the
// catalogue names along the way.
package sem

import (
	"fmt"
	"strconv"

	"github.com/syssam/emdbc/diag"
	"github.com/syssam/emdbc/frontend"
	"github.com/syssam/emdbc/plan"
)

// varState tracks one let-bound variable's lifecycle within a context:
// Available (Used == false) or Used, per spec.md §4.4's variable
// discipline. Producer/Flow identify the still-Incomplete dataflow edge a
// later `use` (or, if none comes, a synthesised Discard) will connect to.
type varState struct {
	Used     bool
	Producer plan.OpKey
	Flow     plan.FlowKey
	Data     plan.Data
	LetSpan  diag.Span
	UseSpan  diag.Span
}

// lowering is the state shared across an entire file: the table-name
// index (`tn`) and used-query-name set (`qs`) spec.md §4.4 names.
type lowering struct {
	p    *plan.Plan
	sink *diag.Sink

	tn map[string]plan.TableKey
	qs map[string]bool

	anyScalar plan.ScalarKey
	internal  int
}

// Lower processes f in declaration order and returns the resulting plan
// together with every diagnostic raised. A non-empty error-severity list
// means the plan is not safe to hand to codegen.
func Lower(f *frontend.File) (*plan.Plan, diag.List) {
	l := &lowering{
		p:    plan.New(),
		sink: &diag.Sink{},
		tn:   map[string]plan.TableKey{},
		qs:   map[string]bool{},
	}
	l.anyScalar = l.p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "any"})

	for _, td := range f.Tables {
		l.lowerTable(td)
	}
	for _, qd := range f.Queries {
		l.lowerQuery(qd)
	}

	if !l.sink.HasErrors() {
		if err := l.p.Validate(); err != nil {
			l.sink.Add(diag.New(diag.Error, diag.CodeInternal, diag.Span{}, "internal: lowered plan failed validation: %v", err))
		}
	}
	return l.p, l.sink.List()
}

func (l *lowering) freshInternalName() string {
	l.internal++
	return fmt.Sprintf("_%d", l.internal)
}

// anyRecord synthesises a fresh one-field record type standing in for an
// operator's output shape. Full expression type inference over arbitrary
// host (Go) expressions is out of scope;
// every record created this way carries a distinct Internal field name so
// invariant 5 still holds across the whole plan.
func (l *lowering) anyRecord() plan.RecordKey {
	return l.p.Records.Insert(plan.RecordType{
		Kind:   plan.RecordConcrete,
		Fields: []plan.RecordField{{Name: l.freshInternalName(), Kind: plan.FieldInternal, Type: l.anyScalar}},
	})
}

func (l *lowering) scalarRecord(hostType string) plan.RecordKey {
	sk := l.p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: hostType})
	return l.p.Records.Insert(plan.RecordType{
		Kind:   plan.RecordConcrete,
		Fields: []plan.RecordField{{Name: l.freshInternalName(), Kind: plan.FieldInternal, Type: sk}},
	})
}

func (l *lowering) recordForTable(tk plan.TableKey) plan.RecordKey {
	sk := l.p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarTableRef, Table: tk})
	return l.p.Records.Insert(plan.RecordType{
		Kind:   plan.RecordConcrete,
		Fields: []plan.RecordField{{Name: l.freshInternalName(), Kind: plan.FieldInternal, Type: sk}},
	})
}

func (l *lowering) table(name string) (plan.TableKey, bool) {
	tk, ok := l.tn[name]
	return tk, ok
}

// lowerTable processes one table declaration (spec.md §4.4, §3.1).
func (l *lowering) lowerTable(td frontend.TableDecl) {
	if _, exists := l.tn[td.Name]; exists {
		l.sink.Add(diag.New(diag.Error, diag.CodeTableRedefined, td.NameSpan, "table %q redefined", td.Name))
		return
	}

	var fields []plan.Field
	seenField := map[string]bool{}
	for _, fd := range td.Fields {
		if seenField[fd.Name] {
			l.sink.Add(diag.New(diag.Error, diag.CodeFieldRedefined, fd.NameSpan, "field %q redefined in table %q", fd.Name, td.Name))
			continue
		}
		seenField[fd.Name] = true
		sk := l.p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: fd.Type.Source})
		fields = append(fields, plan.Field{Name: fd.Name, Column: plan.Column{DataType: sk}})
	}

	var rc plan.RowConstraints
	uniqueSeen := map[string]bool{}
	predSeen := map[string]bool{}
	for _, cd := range td.Constraints {
		switch cd.Kind {
		case frontend.ConstraintUnique:
			if uniqueSeen[cd.Alias] {
				l.sink.Add(diag.New(diag.Error, diag.CodeConstraintDupUnique, cd.Span, "unique alias %q declared twice", cd.Alias))
				continue
			}
			uniqueSeen[cd.Alias] = true
			idx := fieldIndex(fields, cd.Field)
			if idx < 0 {
				l.sink.Add(diag.New(diag.Error, diag.CodeConstraintUnknownField, cd.Span, "unique constraint references unknown field %q", cd.Field))
				continue
			}
			fields[idx].Column.Constraints.Unique = &plan.UniqueConstraint{Alias: cd.Alias}
		case frontend.ConstraintPred:
			if predSeen[cd.Alias] {
				l.sink.Add(diag.New(diag.Error, diag.CodeConstraintDupPred, cd.Span, "predicate alias %q declared twice", cd.Alias))
				continue
			}
			predSeen[cd.Alias] = true
			rc.Predicates = append(rc.Predicates, plan.PredConstraint{Alias: cd.Alias, Expr: cd.Expr})
		case frontend.ConstraintLimit:
			if rc.Limit != nil {
				l.sink.Add(diag.New(diag.Error, diag.CodeConstraintDupLimit, cd.Span, "row limit declared twice"))
				continue
			}
			n, err := strconv.Atoi(cd.Expr)
			if err != nil {
				l.sink.Add(diag.New(diag.Error, diag.CodeConstraintBadLimitExpr, cd.Span, "limit expression %q is not a compile-time integer constant", cd.Expr))
				continue
			}
			rc.Limit = &plan.LimitConstraint{Alias: cd.Alias, Max: n}
		}
	}

	tk := l.p.Tables.Insert(plan.Table{Name: td.Name, Fields: fields, Constraints: rc})
	l.tn[td.Name] = tk
}

func fieldIndex(fields []plan.Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// lowerQuery processes one query declaration into a root Context plus a
// Query entry (spec.md §4.4, §3.1).
func (l *lowering) lowerQuery(qd frontend.QueryDecl) {
	if l.qs[qd.Name] {
		l.sink.Add(diag.New(diag.Error, diag.CodeQueryRedefined, qd.NameSpan, "query %q redefined", qd.Name))
		return
	}
	l.qs[qd.Name] = true

	var params []plan.Param
	for _, pd := range qd.Params {
		sk := l.p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: pd.Type.Source})
		params = append(params, plan.Param{Name: pd.Name, Type: sk})
	}

	ctxKey := l.p.Ctxs.Insert(plan.Context{Params: params})
	cb := &ctxBuilder{l: l, ctxKey: ctxKey, vs: map[string]*varState{}}
	cb.lowerBody(qd.Body)
	cb.finish()

	l.p.Queries.Insert(plan.Query{Name: qd.Name, Root: ctxKey})
}
