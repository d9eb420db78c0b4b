// Package gentype renders plan ScalarType/RecordType values as jennifer
// Go-type code, shared by codegen/table (row field types) and
// codegen/query (parameter and holder-variable types) so the two
// generators agree on how a given plan type is spelled in Go.
package gentype

import (
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/emdbc/internal/ident"
	"github.com/syssam/emdbc/plan"
)

// GoType renders k as the Go type a generated file spells it with. self
// is the table package currently being generated (if any — query codegen
// passes the zero plan.TableKey), used to recognise self-references.
// modulePath prefixes cross-table imports; pkgOf names the already
// assigned package for every table.
//
// ScalarHost carries pre-rendered Go type syntax produced by
// combi/lex.ParseTyped (go/parser.ParseExpr under the hood, SPEC_FULL.md
// §4); splicing it back via jen.Id is jennifer's standard idiom for
// injecting a caller-supplied raw type expression rather than rebuilding
// it token by token.
func GoType(p *plan.Plan, k plan.ScalarKey, self plan.TableKey, pkgOf map[plan.TableKey]string, modulePath string) (jen.Code, error) {
	_, st, err := p.ResolveScalar(k)
	if err != nil {
		return nil, err
	}
	switch st.Kind {
	case plan.ScalarHost:
		return jen.Id(st.HostExpr), nil
	case plan.ScalarTableRef:
		if st.Table == self {
			return jen.Id("Key"), nil
		}
		pkg, ok := pkgOf[st.Table]
		if !ok {
			return nil, fmt.Errorf("gentype: dangling table reference in scalar type")
		}
		return jen.Qual(modulePath+"/"+pkg, "Key"), nil
	case plan.ScalarTableGet:
		tbl, ok := p.Tables.Get(st.Table)
		if !ok {
			return nil, fmt.Errorf("gentype: dangling table in ScalarTableGet")
		}
		f, ok := tbl.FieldByName(st.Field)
		if !ok {
			return nil, fmt.Errorf("gentype: unknown field %q in ScalarTableGet", st.Field)
		}
		return GoType(p, f.Column.DataType, self, pkgOf, modulePath)
	case plan.ScalarRecord:
		return RecordStructType(p, st.Record, self, pkgOf, modulePath)
	case plan.ScalarBag:
		elem, err := RecordStructType(p, st.Record, self, pkgOf, modulePath)
		if err != nil {
			return nil, err
		}
		return jen.Index().Add(elem), nil
	default:
		return nil, fmt.Errorf("gentype: unhandled scalar kind %d", st.Kind)
	}
}

// RecordStructType renders a RecordType as an anonymous Go struct literal
// type, one field per record field in declaration order.
func RecordStructType(p *plan.Plan, rk plan.RecordKey, self plan.TableKey, pkgOf map[plan.TableKey]string, modulePath string) (jen.Code, error) {
	_, rec, err := p.ResolveRecord(rk)
	if err != nil {
		return nil, err
	}
	fields := make([]jen.Code, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		ft, err := GoType(p, f.Type, self, pkgOf, modulePath)
		if err != nil {
			return nil, err
		}
		fields = append(fields, jen.Id(ident.Exported(f.Name)).Add(ft))
	}
	return jen.Struct(fields...), nil
}

// IsStringScalar reports whether k resolves to the host "string" type,
// used by both generators to decide when to fold case on a unique field.
func IsStringScalar(p *plan.Plan, k plan.ScalarKey) bool {
	_, st, err := p.ResolveScalar(k)
	return err == nil && st.Kind == plan.ScalarHost && st.HostExpr == "string"
}
