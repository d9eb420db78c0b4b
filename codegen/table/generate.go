package table

import (
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/emdbc/codegen/gentype"
	"github.com/syssam/emdbc/internal/ident"
	"github.com/syssam/emdbc/plan"
)

const (
	uuidPkg = "github.com/google/uuid"
)

// Generate renders one table's storage package: Row/Key/Table types, the
// insert/update/delete/commit/abort algorithms of spec.md §4.6, and the
// transaction log types, all in one flat Go package — the same flattening
// the teacher applies per entity. No separate insert types or per-alias
// update/get types are generated: Insert and Update both take a whole Row.
func Generate(p *plan.Plan, tk plan.TableKey, pkgOf map[plan.TableKey]string, modulePath string, sel Selector) (*jen.File, error) {
	t, ok := p.Tables.Get(tk)
	if !ok {
		return nil, fmt.Errorf("table: unknown table key")
	}
	pkgName, ok := pkgOf[tk]
	if !ok {
		return nil, fmt.Errorf("table: table %q missing from package assignment", t.Name)
	}

	columnPkg := modulePath + "/codegen/table/column"
	rowerrPkg := modulePath + "/rowerr"

	f := jen.NewFile(pkgName)
	f.HeaderComment(fmt.Sprintf("Code generated by emdbc for table %q (selector: %s). DO NOT EDIT.", t.Name, sel))

	rowFields := make([]jen.Code, 0, len(t.Fields))
	for _, fld := range t.Fields {
		ft, err := gentype.GoType(p, fld.Column.DataType, tk, pkgOf, modulePath)
		if err != nil {
			return nil, fmt.Errorf("table %s field %s: %w", t.Name, fld.Name, err)
		}
		rowFields = append(rowFields, jen.Id(ident.Exported(fld.Name)).Add(ft))
	}
	f.Comment("Row is the table's insert/storage record shape, one field per declared column.")
	f.Type().Id("Row").Struct(rowFields...)
	f.Line()
	f.Comment("Borrows is the read-only view unique and predicate constraint expressions are evaluated against.")
	f.Type().Id("Borrows").Op("=").Id("Row")
	f.Line()

	f.Comment("Key is a stable, generation-checked handle to one row.")
	f.Type().Id("Key").Struct(
		jen.Id("inner").Qual(columnPkg, "Key").Index(jen.Id("Row")),
	)
	f.Line()

	f.Type().Id("LogKind").Int()
	f.Const().Defs(
		jen.Id("LogAppend").Id("LogKind").Op("=").Iota(),
		jen.Id("LogHide"),
		jen.Id("LogUpdate"),
	)
	f.Line()
	f.Comment("Updates carries the pre-image of a row an Update operator just overwrote, so Abort can swap it back without re-logging.")
	f.Type().Id("Updates").Struct(jen.Id("Old").Id("Row"))
	f.Type().Id("LogItem").Struct(
		jen.Id("Kind").Id("LogKind"),
		jen.Id("Key").Id("Key"),
		jen.Id("Updates").Id("Updates"),
	)
	f.Line()

	storeType := jen.Qual(columnPkg, sel.columnTypeName()).Index(jen.Id("Row"))
	f.Comment("Table is the table's full storage module: the selected column-store strategy, its unique indexes, and its uncommitted transaction log.")
	f.Type().Id("Table").Struct(
		jen.Id("store").Add(storeType),
		jen.Id("uniques").Map(jen.String()).Map(jen.String()).Id("Key"),
		jen.Id("log").Index().Id("LogItem"),
		jen.Id("rollbackInProgress").Bool(),
		jen.Id("buildID").Qual(uuidPkg, "UUID"),
	)
	f.Line()

	f.Func().Id("New").Params().Op("*").Id("Table").Block(
		jen.Return(jen.Op("&").Id("Table").Values(jen.Dict{
			jen.Id("uniques"): jen.Map(jen.String()).Map(jen.String()).Id("Key").Values(),
			jen.Id("buildID"): jen.Qual(uuidPkg, "New").Call(),
		})),
	)
	f.Line()

	if err := genInsert(f, p, t, rowerrPkg); err != nil {
		return nil, err
	}
	genUpdate(f, p, t, sel, rowerrPkg)
	genDelete(f)
	genCommitAbort(f)
	genReadAccessors(f, columnPkg)
	genUniqueLookup(f, p, t)
	genUniqueFold(f, p, t)

	return f, nil
}

// genUniqueLookup emits the public unique-index lookup codegen/query
// generates against for a `unique(alias)` operator: canonicalize key the
// same way the matching field was canonicalized at insert/update time,
// then consult t.uniques[alias].
func genUniqueLookup(f *jen.File, p *plan.Plan, t plan.Table) {
	var cases []jen.Code
	for _, fld := range t.Fields {
		u := fld.Column.Constraints.Unique
		if u == nil {
			continue
		}
		var canon jen.Code
		if gentype.IsStringScalar(p, fld.Column.DataType) {
			canon = jen.Id("uniqueFold").Call(jen.Id("key").Assert(jen.String()))
		} else {
			canon = jen.Qual("fmt", "Sprint").Call(jen.Id("key"))
		}
		cases = append(cases, jen.Case(jen.Lit(u.Alias)).Block(
			jen.Id("ck").Op("=").Add(canon),
		))
	}

	f.Comment("Unique looks up the row whose field holding the named unique alias equals key.")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Unique").Params(jen.Id("alias").String(), jen.Id("key").Id("any")).Params(jen.Id("Key"), jen.Bool()).Block(
		jen.Var().Id("ck").String(),
		jen.Switch(jen.Id("alias")).Block(cases...),
		jen.List(jen.Id("k"), jen.Id("ok")).Op(":=").Id("t").Dot("uniques").Index(jen.Id("alias")).Index(jen.Id("ck")),
		jen.Return(jen.Id("k"), jen.Id("ok")),
	)
	f.Line()
}

// genUniqueFold emits the case-insensitive key-folding helper used by
// every string-typed unique field's comparisons, wiring
// golang.org/x/text/cases per SPEC_FULL.md §2. Emitted only when the
// table actually has a string unique field, so tables with none do not
// import golang.org/x/text for nothing.
func genUniqueFold(f *jen.File, p *plan.Plan, t plan.Table) {
	has := false
	for _, fld := range t.Fields {
		if fld.Column.Constraints.Unique != nil && gentype.IsStringScalar(p, fld.Column.DataType) {
			has = true
			break
		}
	}
	if !has {
		return
	}
	f.Comment("uniqueFold canonicalizes a string unique field for case-insensitive comparison.")
	f.Func().Id("uniqueFold").Params(jen.Id("s").String()).String().Block(
		jen.Return(jen.Qual("golang.org/x/text/cases", "Fold").Call().Dot("String").Call(jen.Id("s"))),
	)
	f.Line()
}

// uniqueKeyExpr renders the canonicalization a unique field's value goes
// through before it is used as a map key: string fields fold case via
// golang.org/x/text/cases (spec.md §2's "equal_fold" unique-index
// semantics), every other host type uses fmt.Sprint.
func uniqueKeyExpr(p *plan.Plan, fld plan.Field, varName string) jen.Code {
	access := jen.Id(varName).Dot(ident.Exported(fld.Name))
	if gentype.IsStringScalar(p, fld.Column.DataType) {
		return jen.Id("uniqueFold").Call(access)
	}
	return jen.Qual("fmt", "Sprint").Call(access)
}

// genInsert implements spec.md §4.6's Insert algorithm: predicates, then
// uniques, then the store Insert, then the log append.
func genInsert(f *jen.File, p *plan.Plan, t plan.Table, rowerrPkg string) error {
	body := []jen.Code{}

	if lim := t.Constraints.Limit; lim != nil {
		body = append(body,
			jen.If(jen.Id("t").Dot("store").Dot("Count").Call().Op(">=").Lit(lim.Max)).Block(
				jen.Return(jen.Id("Key").Values(), jen.Qual(rowerrPkg, "NewRowLimitError").Call(jen.Lit(t.Name), jen.Lit(lim.Max))),
			),
		)
	}

	for _, pr := range t.Constraints.Predicates {
		body = append(body, predicateCheck(t, pr, rowerrPkg, "row"))
	}

	for _, fld := range t.Fields {
		u := fld.Column.Constraints.Unique
		if u == nil {
			continue
		}
		keyExpr := uniqueKeyExpr(p, fld, "row")
		body = append(body,
			jen.If(jen.List(jen.Id("_"), jen.Id("ok")).Op(":=").Id("t").Dot("uniques").Index(jen.Lit(u.Alias)).Index(keyExpr), jen.Id("ok")).Block(
				jen.Return(jen.Id("Key").Values(), jen.Qual(rowerrPkg, "NewUniqueError").Call(jen.Lit(t.Name), jen.Lit(u.Alias), jen.Lit(fld.Name))),
			),
		)
	}

	body = append(body,
		jen.Id("inner").Op(":=").Id("t").Dot("store").Dot("Insert").Call(jen.Id("row")),
		jen.Id("k").Op(":=").Id("Key").Values(jen.Dict{jen.Id("inner"): jen.Id("inner")}),
	)

	for _, fld := range t.Fields {
		u := fld.Column.Constraints.Unique
		if u == nil {
			continue
		}
		keyExpr := uniqueKeyExpr(p, fld, "row")
		body = append(body,
			jen.If(jen.Id("t").Dot("uniques").Index(jen.Lit(u.Alias)).Op("==").Nil()).Block(
				jen.Id("t").Dot("uniques").Index(jen.Lit(u.Alias)).Op("=").Map(jen.String()).Id("Key").Values(),
			),
			jen.Id("t").Dot("uniques").Index(jen.Lit(u.Alias)).Index(keyExpr).Op("=").Id("k"),
		)
	}

	body = append(body,
		jen.If(jen.Op("!").Id("t").Dot("rollbackInProgress")).Block(
			jen.Id("t").Dot("log").Op("=").Append(jen.Id("t").Dot("log"), jen.Id("LogItem").Values(jen.Dict{
				jen.Id("Kind"): jen.Id("LogAppend"),
				jen.Id("Key"):  jen.Id("k"),
			})),
		),
		jen.Return(jen.Id("k"), jen.Nil()),
	)

	f.Comment("Insert evaluates predicates and unique constraints, then appends row to the table's storage.")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Insert").Params(jen.Id("row").Id("Row")).Params(jen.Id("Key"), jen.Error()).Block(body...)
	f.Line()
	return nil
}

// predicateCheck splices a `pred(expr) as alias` row constraint's raw Go
// boolean expression, binding the candidate row's fields as local
// variables of the same name so the expression can reference them
// directly (spec.md §4.6 "Predicate and unique evaluation use a generated
// borrow::Borrows so the same expression syntax serves both insert-time
// and update-time checks").
func predicateCheck(t plan.Table, pr plan.PredConstraint, rowerrPkg, rowVar string) jen.Code {
	binds := make([]jen.Code, 0, len(t.Fields))
	for _, fld := range t.Fields {
		binds = append(binds, jen.Id(fld.Name).Op(":=").Id(rowVar).Dot(ident.Exported(fld.Name)))
	}
	check := append(append([]jen.Code{}, binds...),
		jen.If(jen.Op("!").Parens(jen.Id(pr.Expr))).Block(
			jen.Return(jen.Id("Key").Values(), jen.Qual(rowerrPkg, "NewPredicateError").Call(jen.Lit(t.Name), jen.Lit(pr.Alias))),
		),
	)
	return jen.Func().Params().Block(check...).Call()
}

// genUpdate implements spec.md §4.6's Update algorithm, collapsed to a
// whole-row replace: codegen/query's per-alias Update operator computes
// the full new Row from the mapping expressions before calling this; no
// per-alias update types are generated.
func genUpdate(f *jen.File, p *plan.Plan, t plan.Table, sel Selector, rowerrPkg string) {
	body := []jen.Code{
		jen.List(jen.Id("oldRow"), jen.Id("ok")).Op(":=").Id("t").Dot("get").Call(jen.Id("k")),
		jen.If(jen.Op("!").Id("ok")).Block(
			jen.Return(jen.Qual(rowerrPkg, "NewKeyError").Call(jen.Lit(t.Name))),
		),
	}

	for _, pr := range t.Constraints.Predicates {
		body = append(body, predicateCheckErrOnly(t, pr, rowerrPkg, "next"))
	}

	var uniqueFields []plan.Field
	for _, fld := range t.Fields {
		if fld.Column.Constraints.Unique != nil {
			uniqueFields = append(uniqueFields, fld)
		}
	}
	for i, fld := range uniqueFields {
		u := fld.Column.Constraints.Unique
		oldKey := uniqueKeyExpr(p, fld, "oldRow")
		newKey := uniqueKeyExpr(p, fld, "next")
		body = append(body,
			jen.If(newKey.Clone().Op("!=").Add(oldKey)).Block(
				jen.If(jen.List(jen.Id("_"), jen.Id("ok")).Op(":=").Id("t").Dot("uniques").Index(jen.Lit(u.Alias)).Index(newKey.Clone()), jen.Id("ok")).Block(
					unwindUniques(p, uniqueFields[:i], "oldRow"),
					jen.Return(jen.Qual(rowerrPkg, "NewUniqueError").Call(jen.Lit(t.Name), jen.Lit(u.Alias), jen.Lit(fld.Name))),
				),
			),
		)
	}
	for _, fld := range uniqueFields {
		u := fld.Column.Constraints.Unique
		oldKey := uniqueKeyExpr(p, fld, "oldRow")
		newKey := uniqueKeyExpr(p, fld, "next")
		body = append(body,
			jen.Id("delete").Call(jen.Id("t").Dot("uniques").Index(jen.Lit(u.Alias)), oldKey),
			jen.Id("t").Dot("uniques").Index(jen.Lit(u.Alias)).Index(newKey).Op("=").Id("k"),
		)
	}

	if sel.exposesBrwMut() {
		body = append(body,
			jen.List(jen.Id("ptr"), jen.Id("_")).Op(":=").Id("t").Dot("store").Dot("BrwMut").Call(jen.Id("k").Dot("inner")),
			jen.Op("*").Id("ptr").Op("=").Id("next"),
		)
	} else {
		body = append(body,
			jen.Id("t").Dot("store").Dot("Replace").Call(jen.Id("k").Dot("inner"), jen.Id("next")),
		)
	}

	body = append(body,
		jen.If(jen.Op("!").Id("t").Dot("rollbackInProgress")).Block(
			jen.Id("t").Dot("log").Op("=").Append(jen.Id("t").Dot("log"), jen.Id("LogItem").Values(jen.Dict{
				jen.Id("Kind"):    jen.Id("LogUpdate"),
				jen.Id("Key"):     jen.Id("k"),
				jen.Id("Updates"): jen.Id("Updates").Values(jen.Dict{jen.Id("Old"): jen.Id("oldRow")}),
			})),
		),
		jen.Return(jen.Nil()),
	)

	f.Comment("Update borrows k mutably, checks predicates and unique constraints against the proposed row, then swaps fields and logs the pre-image.")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Update").Params(jen.Id("k").Id("Key"), jen.Id("next").Id("Row")).Error().Block(body...)
	f.Line()
}

func predicateCheckErrOnly(t plan.Table, pr plan.PredConstraint, rowerrPkg, rowVar string) jen.Code {
	binds := make([]jen.Code, 0, len(t.Fields))
	for _, fld := range t.Fields {
		binds = append(binds, jen.Id(fld.Name).Op(":=").Id(rowVar).Dot(ident.Exported(fld.Name)))
	}
	check := append(append([]jen.Code{}, binds...),
		jen.If(jen.Op("!").Parens(jen.Id(pr.Expr))).Block(
			jen.Return(jen.Qual(rowerrPkg, "NewPredicateError").Call(jen.Lit(t.Name), jen.Lit(pr.Alias))),
		),
		jen.Return(jen.Nil()),
	)
	return jen.If(jen.Err().Op(":=").Func().Params().Error().Block(check...).Call(), jen.Err().Op("!=").Nil()).Block(
		jen.Return(jen.Err()),
	)
}

func unwindUniques(p *plan.Plan, done []plan.Field, rowVar string) jen.Code {
	stmts := make([]jen.Code, 0, len(done))
	for i := len(done) - 1; i >= 0; i-- {
		fld := done[i]
		u := fld.Column.Constraints.Unique
		oldKey := uniqueKeyExpr(p, fld, rowVar)
		stmts = append(stmts, jen.Id("_").Op("=").Id("t").Dot("uniques").Index(jen.Lit(u.Alias)).Index(oldKey))
	}
	if len(stmts) == 0 {
		return jen.Empty()
	}
	return jen.Block(stmts...)
}

// genDelete implements spec.md §4.6's Delete algorithm: Hide plus a log
// entry; the row stays reachable through outstanding refs until Commit.
func genDelete(f *jen.File) {
	f.Comment("Delete logically hides k; the row remains borrowable through existing Keys until Commit.")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Delete").Params(jen.Id("k").Id("Key")).Error().Block(
		jen.If(jen.Op("!").Id("t").Dot("store").Dot("Hide").Call(jen.Id("k").Dot("inner"))).Block(
			jen.Return(jen.Qual("github.com/syssam/emdbc/rowerr", "ErrKeyNotFound")),
		),
		jen.If(jen.Op("!").Id("t").Dot("rollbackInProgress")).Block(
			jen.Id("t").Dot("log").Op("=").Append(jen.Id("t").Dot("log"), jen.Id("LogItem").Values(jen.Dict{
				jen.Id("Kind"): jen.Id("LogHide"),
				jen.Id("Key"):  jen.Id("k"),
			})),
		),
		jen.Return(jen.Nil()),
	)
	f.Line()
}

// genCommitAbort implements spec.md §4.6's Commit and Abort algorithms
// over the table's own transaction log.
func genCommitAbort(f *jen.File) {
	f.Comment("Commit physically removes every row hidden since the last Commit/Abort and clears the log.")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Commit").Params().Block(
		jen.For(jen.List(jen.Id("_"), jen.Id("item")).Op(":=").Range().Id("t").Dot("log")).Block(
			jen.If(jen.Id("item").Dot("Kind").Op("==").Id("LogHide")).Block(
				jen.Id("t").Dot("store").Dot("Pull").Call(jen.Id("item").Dot("Key").Dot("inner")),
			),
		),
		jen.Id("t").Dot("log").Op("=").Nil(),
	)
	f.Line()

	f.Comment("Abort unwinds the log in reverse insertion order, restoring the table to its state before the transaction began.")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Abort").Params().Block(
		jen.Id("t").Dot("rollbackInProgress").Op("=").True(),
		jen.For(jen.Id("i").Op(":=").Len(jen.Id("t").Dot("log")).Op("-").Lit(1), jen.Id("i").Op(">=").Lit(0), jen.Id("i").Op("--")).Block(
			jen.Id("item").Op(":=").Id("t").Dot("log").Index(jen.Id("i")),
			jen.Switch(jen.Id("item").Dot("Kind")).Block(
				jen.Case(jen.Id("LogAppend")).Block(
					jen.Id("t").Dot("store").Dot("Unappend").Call(jen.Id("item").Dot("Key").Dot("inner")),
				),
				jen.Case(jen.Id("LogHide")).Block(
					jen.Id("t").Dot("store").Dot("Reveal").Call(jen.Id("item").Dot("Key").Dot("inner")),
				),
				jen.Case(jen.Id("LogUpdate")).Block(
					jen.Id("t").Dot("store").Dot("Replace").Call(jen.Id("item").Dot("Key").Dot("inner"), jen.Id("item").Dot("Updates").Dot("Old")),
				),
			),
		),
		jen.Id("t").Dot("log").Op("=").Nil(),
		jen.Id("t").Dot("rollbackInProgress").Op("=").False(),
	)
	f.Line()
}

// genReadAccessors emits the table's Get/Scan/Count read surface.
func genReadAccessors(f *jen.File, columnPkg string) {
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("get").Params(jen.Id("k").Id("Key")).Params(jen.Id("Row"), jen.Bool()).Block(
		jen.Return(jen.Id("t").Dot("store").Dot("Get").Call(jen.Id("k").Dot("inner"))),
	)
	f.Comment("Get returns k's row without checking hidden state (the datastore-lifetime `get` view, spec.md §4.6).")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Get").Params(jen.Id("k").Id("Key")).Params(jen.Id("Row"), jen.Bool()).Block(
		jen.Return(jen.Id("t").Dot("get").Call(jen.Id("k"))),
	)
	f.Comment("Scan streams every live, non-hidden Key in slot order.")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Scan").Params().Qual("iter", "Seq").Index(jen.Id("Key")).Block(
		jen.Return(jen.Func().Params(jen.Id("yield").Func().Params(jen.Id("Key")).Bool()).Block(
			jen.For(jen.Id("inner").Op(":=").Range().Id("t").Dot("store").Dot("Scan").Call()).Block(
				jen.If(jen.Op("!").Id("yield").Call(jen.Id("Key").Values(jen.Dict{jen.Id("inner"): jen.Id("inner")}))).Block(
					jen.Return(),
				),
			),
		)),
	)
	f.Comment("Count reports the number of live, non-hidden rows.")
	f.Func().Params(jen.Id("t").Op("*").Id("Table")).Id("Count").Params().Int().Block(
		jen.Return(jen.Id("t").Dot("store").Dot("Count").Call()),
	)
}
