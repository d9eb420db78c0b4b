package query

import (
	"sort"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/emdbc/internal/ident"
	"github.com/syssam/emdbc/plan"
)

// shape tracks, for one FlowKey, enough of its Go representation for a
// later operator to generate against: the rendered Go type every holder
// variable of this flow is declared with, that type's zero-value
// composite literal (needed for early-return statements on the error
// path), the DSL field names available to bind for a struct-shaped
// value, and — for a table reference produced by ScanRefs/UniqueRef —
// which table it keys into, since DeRef needs that to pick a Get method
// and neither op.Table (unset by sem for deref) nor the plan's own
// RecordType carries it (sem lowers every operator's output to a generic
// placeholder record; see DESIGN.md).
type shape struct {
	goType jen.Code
	zero   jen.Code
	fields []string // DSL field names bindable via <var>.<Exported(name)>, struct shapes only
	table  plan.TableKey
	isKey  bool
	// keyField names the field that holds the row reference once a Key
	// has been wrapped into a larger record (DeRef's output) — set so a
	// later Update/Delete/DeRef can still recover the reference to act
	// on. Empty when the value itself is the Key (isKey) or carries no
	// reference at all.
	keyField string
}

// anyShape is the fallback for operators whose value has no further
// structure codegen can bind against (sem's anyRecord() placeholder
// applies uniformly to Row/Map/Fold/Combine/Expand output — full
// host-expression type inference is out of scope).
func anyShape() shape { return shape{goType: jen.Id("any"), zero: jen.Nil()} }

func intShape() shape { return shape{goType: jen.Int(), zero: jen.Lit(0)} }

func sliceShape(elem shape) shape {
	return shape{goType: jen.Index().Add(elem.goType), zero: jen.Nil()}
}

func keyShape(pkgOf map[plan.TableKey]string, modulePath string, tk plan.TableKey) shape {
	t := jen.Qual(modulePath+"/"+pkgOf[tk], "Key")
	return shape{goType: t, zero: jen.Qual(modulePath+"/"+pkgOf[tk], "Key").Values(), table: tk, isKey: true}
}

func rowShape(pkgOf map[plan.TableKey]string, modulePath string, p *plan.Plan, tk plan.TableKey) shape {
	t, _ := p.Tables.Get(tk)
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return shape{
		goType: jen.Qual(modulePath+"/"+pkgOf[tk], "Row"),
		zero:   jen.Qual(modulePath+"/"+pkgOf[tk], "Row").Values(),
		fields: names, table: tk,
	}
}

// structShape renders an anonymous struct type from field names, every
// field typed any — the same simplification anyShape documents.
func structShape(fields map[string]string) shape {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]jen.Code, 0, len(names))
	zeroParts := make([]jen.Code, 0, len(names))
	for _, n := range names {
		parts = append(parts, jen.Id(ident.Exported(n)).Id("any"))
		zeroParts = append(zeroParts, jen.Id(ident.Exported(n)).Id("any"))
	}
	return shape{goType: jen.Struct(parts...), zero: jen.Struct(zeroParts...).Values(), fields: names}
}

// namedStructShape renders a two-field struct embedding left/right join
// operands under their DSL-chosen aliases (JoinSpec.LeftAs/RightAs).
func namedStructShape(leftAs string, left shape, rightAs string, right shape) shape {
	fields := []jen.Code{
		jen.Id(ident.Exported(leftAs)).Add(left.goType),
		jen.Id(ident.Exported(rightAs)).Add(right.goType),
	}
	return shape{
		goType: jen.Struct(fields...),
		zero:   jen.Struct(fields...).Values(),
		fields: []string{leftAs, rightAs},
	}
}

// derefShape renders DeRef's output: the original reference preserved
// under a fixed "Key" field plus the freshly fetched row embedded under
// the DSL-chosen named field (spec.md §4.5 "appending to incoming
// record" — simplified to a fresh two-field record rather than true
// field-preserving append, since sem's anyRecord() upstream carries no
// field inventory for the incoming record to append onto; see
// DESIGN.md).
func derefShape(named string, key, row shape) shape {
	fields := []jen.Code{
		jen.Id("Key").Add(key.goType),
		jen.Id(ident.Exported(named)).Add(row.goType),
	}
	return shape{
		goType:   jen.Struct(fields...),
		zero:     jen.Struct(fields...).Values(),
		fields:   []string{named},
		table:    key.table,
		keyField: "Key",
	}
}

// fieldBindings emits `name := recv.Exported(name)` for every field s
// carries, the same local-binding idiom codegen/table's predicateCheck
// uses so a spliced raw expression can reference record fields bare.
func fieldBindings(recv string, s shape) []jen.Code {
	binds := make([]jen.Code, 0, len(s.fields))
	for _, f := range s.fields {
		binds = append(binds, jen.Id(f).Op(":=").Id(recv).Dot(ident.Exported(f)))
	}
	return binds
}
