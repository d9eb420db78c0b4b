package query

import (
	"fmt"
	"regexp"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/emdbc/internal/ident"
	"github.com/syssam/emdbc/plan"
)

// emitContext renders one Context's operator list (the query's root body,
// or — via emitOps directly — a GroupBy/Lift nested body with its
// synthetic leading op already stripped by the caller). override rebinds
// specific FlowKeys to an enclosing Go identifier instead of their own
// holder variable (the nested "inner" binding); onErr supplies the
// statements a CanFail operator's failure path runs — abort-and-return at
// the top level, or record-into-a-closured-variable inside a nested body.
func (g *gen) emitContext(ctx plan.Context, override map[plan.FlowKey]string, onErr func(errVar string) []jen.Code) ([]jen.Code, jen.Code, map[plan.FlowKey]shape, error) {
	return g.emitOps(ctx.Ops, override, onErr)
}

func (g *gen) emitOps(ops []plan.OpKey, override map[plan.FlowKey]string, onErr func(errVar string) []jen.Code) ([]jen.Code, jen.Code, map[plan.FlowKey]shape, error) {
	shapes := map[plan.FlowKey]shape{}
	var stmts []jen.Code
	var retExpr jen.Code

	for _, opKey := range ops {
		op := g.p.Ops.MustGet(opKey)
		opStmts, err := g.emitOp(op, override, onErr, shapes)
		if err != nil {
			return nil, nil, nil, err
		}
		stmts = append(stmts, opStmts...)
		if op.Kind == plan.OpReturn && op.In.Valid() {
			retExpr = jen.Id(g.name(op.In, override))
		}
	}
	return stmts, retExpr, shapes, nil
}

func (g *gen) isStream(k plan.FlowKey) bool { return g.p.Flows.MustGet(k).With.Stream }

// dotFieldRE matches a `.lowerField` dotted access in a raw spliced
// expression (e.g. "row.balance"); rewriteFieldCasing capitalizes it to
// match the Exported Go field name every generated record type uses
// (codegen/table's Row, and codegen/query's own struct shapes), since the
// DSL's field-access syntax is written in the table's declared (lower)
// casing. This is a textual rewrite, not a real expression parser — it
// cannot distinguish a field access from e.g. a lower-cased method call,
// which the DSL's grammar never produces (see DESIGN.md).
var dotFieldRE = regexp.MustCompile(`\.([a-z][A-Za-z0-9_]*)`)

func rewriteFieldCasing(expr string) string {
	return dotFieldRE.ReplaceAllStringFunc(expr, func(m string) string {
		return "." + ident.Exported(m[1:])
	})
}

// spliceExpr renders a raw host-expression string (spec.md §4.5's
// field-expression payloads) as Go source text, after field-casing
// rewrite. These expressions are assumed well-formed Go by the frontend;
// codegen never re-parses or type-checks them.
func spliceExpr(expr string) jen.Code {
	if expr == "" {
		return jen.Nil()
	}
	return jen.Id(rewriteFieldCasing(expr))
}

// keyExprOfVar resolves the Go expression yielding the Key value a
// variable named recv represents: the value itself when s is a bare Key,
// or `<recv>.<keyField>` when it has been wrapped into a larger record
// (DeRef's output) that still carries the original reference. recv is
// passed explicitly rather than derived from a FlowKey's holder so a
// caller looping over a stream can supply its per-element loop variable
// instead of the whole slice.
func keyExprOfVar(recv string, s shape) jen.Code {
	name := jen.Id(recv)
	if s.keyField == "" {
		return name
	}
	return name.Dot(s.keyField)
}


func (g *gen) emitOp(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	switch op.Kind {
	case plan.OpScanRefs:
		return g.emitScanRefs(op, shapes)
	case plan.OpRow:
		return g.emitRow(op, override, shapes)
	case plan.OpMap:
		return g.emitMap(op, override, shapes)
	case plan.OpFilter:
		return g.emitFilter(op, override, shapes)
	case plan.OpFold:
		return g.emitFold(op, override, shapes)
	case plan.OpCombine:
		return g.emitCombine(op, override, shapes)
	case plan.OpSort:
		return g.emitSort(op, override, shapes)
	case plan.OpTake:
		return g.emitTake(op, override, shapes)
	case plan.OpCount:
		return g.emitCount(op, override, shapes)
	case plan.OpCollect:
		return g.emitCollect(op, override, shapes)
	case plan.OpAssert:
		return g.emitAssert(op, override, onErr, shapes)
	case plan.OpFork:
		return g.emitFork(op, override, shapes)
	case plan.OpUnion:
		return g.emitUnion(op, override, shapes)
	case plan.OpExpand:
		return g.emitExpand(op, override, shapes)
	case plan.OpJoin:
		return g.emitJoin(op, override, shapes)
	case plan.OpGroupBy:
		return g.emitGroupBy(op, override, onErr, shapes)
	case plan.OpLift:
		return g.emitLift(op, override, onErr, shapes)
	case plan.OpUniqueRef:
		return g.emitUniqueRef(op, override, onErr, shapes)
	case plan.OpDeRef:
		return g.emitDeRef(op, override, onErr, shapes)
	case plan.OpInsert:
		return g.emitInsert(op, override, onErr, shapes)
	case plan.OpUpdate:
		return g.emitUpdate(op, override, onErr, shapes)
	case plan.OpDelete:
		return g.emitDelete(op, override, onErr, shapes)
	case plan.OpReturn:
		return nil, nil
	case plan.OpDiscard:
		return []jen.Code{jen.Id("_").Op("=").Id(g.name(op.In, override))}, nil
	default:
		return nil, fmt.Errorf("unsupported operator %s", op.Kind)
	}
}

func (g *gen) emitScanRefs(op plan.Operator, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	shapes[op.Out] = keyShape(g.pkgOf, g.modulePath, op.Table)
	stmt := jen.Id(holder(op.Out)).Op(":=").Qual(runtimePkg, "ConsumeStream").Call(
		g.stats(), g.nextSlot(), g.tableAccessor(op.Table).Dot("Scan").Call(),
	)
	return []jen.Code{stmt}, nil
}

func (g *gen) emitRow(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	var stmts []jen.Code
	if op.In.Valid() {
		stmts = append(stmts, fieldBindings(g.name(op.In, override), shapes[op.In])...)
	}
	s := structShape(op.RowExprs)
	dict := jen.Dict{}
	for name, expr := range op.RowExprs {
		dict[jen.Id(ident.Exported(name))] = spliceExpr(expr)
	}
	stmts = append(stmts, jen.Id(holder(op.Out)).Op(":=").Add(s.goType.Clone()).Values(dict))
	shapes[op.Out] = s
	return stmts, nil
}

func (g *gen) emitMap(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	outShape := structShape(op.MapExprs)
	dict := jen.Dict{}
	for name, expr := range op.MapExprs {
		dict[jen.Id(ident.Exported(name))] = spliceExpr(expr)
	}
	body := append(fieldBindings("e", inShape), jen.Return(outShape.goType.Clone().Values(dict)))
	fn := jen.Func().Params(jen.Id("e").Add(inShape.goType.Clone())).Add(outShape.goType.Clone()).Block(body...)

	in := g.name(op.In, override)
	var call jen.Code
	if g.isStream(op.In) {
		call = jen.Qual(runtimePkg, "Map").Call(g.profile(), g.stats(), g.nextSlot(), jen.Id(in), fn)
	} else {
		call = jen.Qual(runtimePkg, "MapSingle").Call(g.stats(), g.nextSlot(), jen.Id(in), fn)
	}
	shapes[op.Out] = outShape
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

func (g *gen) emitFilter(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	if !g.isStream(op.In) {
		return nil, fmt.Errorf("filter requires a stream input")
	}
	inShape := shapes[op.In]
	body := append(fieldBindings("e", inShape), jen.Return(spliceExpr(op.FilterExpr)))
	fn := jen.Func().Params(jen.Id("e").Add(inShape.goType.Clone())).Bool().Block(body...)
	shapes[op.Out] = inShape
	call := jen.Qual(runtimePkg, "Filter").Call(g.profile(), g.stats(), g.nextSlot(), jen.Id(g.name(op.In, override)), fn)
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

func (g *gen) emitFold(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	if !g.isStream(op.In) {
		return nil, fmt.Errorf("fold requires a stream input")
	}
	inShape := shapes[op.In]
	fields := make(map[string]string, len(op.FoldFields))
	for name, ff := range op.FoldFields {
		fields[name] = ff.Update
	}
	accShape := structShape(fields)

	initDict := jen.Dict{}
	for name, ff := range op.FoldFields {
		initDict[jen.Id(ident.Exported(name))] = spliceExpr(ff.Initial)
	}
	initVal := accShape.goType.Clone().Values(initDict)

	updateDict := jen.Dict{}
	for name, ff := range op.FoldFields {
		updateDict[jen.Id(ident.Exported(name))] = spliceExpr(ff.Update)
	}
	body := append(fieldBindings("acc", accShape), fieldBindings("e", inShape)...)
	body = append(body, jen.Return(accShape.goType.Clone().Values(updateDict)))
	fn := jen.Func().Params(jen.Id("acc").Add(accShape.goType.Clone()), jen.Id("e").Add(inShape.goType.Clone())).
		Add(accShape.goType.Clone()).Block(body...)

	shapes[op.Out] = accShape
	call := jen.Qual(runtimePkg, "Fold").Call(g.stats(), g.nextSlot(), jen.Id(g.name(op.In, override)), initVal, fn)
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

func (g *gen) emitCombine(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	if !g.isStream(op.In) {
		return nil, fmt.Errorf("combine requires a stream input")
	}
	fields := make(map[string]string, len(op.CombineField))
	for name, cf := range op.CombineField {
		fields[name] = cf.Update
	}
	accShape := structShape(fields)

	identDict := jen.Dict{}
	for name, cf := range op.CombineField {
		identDict[jen.Id(ident.Exported(name))] = spliceExpr(cf.Identity)
	}
	identity := accShape.goType.Clone().Values(identDict)

	updateDict := jen.Dict{}
	for name, cf := range op.CombineField {
		updateDict[jen.Id(ident.Exported(name))] = spliceExpr(cf.Update)
	}
	body := append(fieldBindings("acc", accShape), fieldBindings("other", accShape)...)
	body = append(body, jen.Return(accShape.goType.Clone().Values(updateDict)))
	fn := jen.Func().Params(jen.Id("acc").Add(accShape.goType.Clone()), jen.Id("other").Add(accShape.goType.Clone())).
		Add(accShape.goType.Clone()).Block(body...)

	shapes[op.Out] = accShape
	call := jen.Qual(runtimePkg, "Combine").Call(g.profile(), g.stats(), g.nextSlot(), jen.Id(g.name(op.In, override)), identity, fn)
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

func (g *gen) emitSort(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	shapes[op.Out] = inShape

	var bodyStmts []jen.Code
	for i, k := range op.SortBy {
		af := jen.Id("a").Dot(ident.Exported(k.Field))
		bf := jen.Id("b").Dot(ident.Exported(k.Field))
		var cmp jen.Code
		if k.Asc {
			cmp = jen.Qual(runtimePkg, "Less").Call(af.Clone(), bf.Clone())
		} else {
			cmp = jen.Qual(runtimePkg, "Less").Call(bf.Clone(), af.Clone())
		}
		if i == len(op.SortBy)-1 {
			bodyStmts = append(bodyStmts, jen.Return(cmp))
			continue
		}
		bodyStmts = append(bodyStmts, jen.If(af.Clone().Op("!=").Add(bf.Clone())).Block(jen.Return(cmp)))
	}
	if len(bodyStmts) == 0 {
		bodyStmts = []jen.Code{jen.Return(jen.False())}
	}
	less := jen.Func().Params(jen.Id("a"), jen.Id("b").Add(inShape.goType.Clone())).Bool().Block(bodyStmts...)
	call := jen.Qual(runtimePkg, "Sort").Call(g.stats(), g.nextSlot(), jen.Id(g.name(op.In, override)), less)
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

func (g *gen) emitTake(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	shapes[op.Out] = shapes[op.In]
	call := jen.Qual(runtimePkg, "Take").Call(g.stats(), g.nextSlot(), jen.Id(g.name(op.In, override)), spliceExpr(op.TakeN))
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

func (g *gen) emitCount(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	shapes[op.Out] = intShape()
	call := jen.Qual(runtimePkg, "Count").Call(g.stats(), g.nextSlot(), jen.Id(g.name(op.In, override)))
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

func (g *gen) emitCollect(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	elem := shapes[op.In]
	shapes[op.Out] = shape{
		goType: jen.Qual("iter", "Seq").Index(elem.goType.Clone()),
		zero:   jen.Nil(),
	}
	call := jen.Qual(runtimePkg, "ExportStream").Call(g.stats(), g.nextSlot(), jen.Id(g.name(op.In, override)))
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

func (g *gen) emitAssert(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	shapes[op.Out] = inShape
	in := g.name(op.In, override)
	assertErr := jen.Qual(g.rowerrPkg(), "NewAssertError").Call(jen.Lit(g.queryName), jen.Lit(op.AssertName))

	if g.isStream(op.In) {
		stmts := []jen.Code{
			jen.Var().Id("errs" + holder(op.Out)).Index().Error().Op("=").Make(jen.Index().Error(), jen.Len(jen.Id(in))),
			jen.For(jen.List(jen.Id("i"), jen.Id("e")).Op(":=").Range().Id(in)).Block(
				append(fieldBindings("e", inShape),
					jen.If(jen.Op("!").Parens(spliceExpr(op.AssertExpr))).Block(
						jen.Id("errs"+holder(op.Out)).Index(jen.Id("i")).Op("=").Add(assertErr),
					),
				)...,
			),
		}
		errVar := "err" + holder(op.Out)
		stmts = append(stmts,
			jen.List(jen.Id(holder(op.Out)), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorStream").Call(g.stats(), g.nextSlot(), jen.Id(in), jen.Id("errs"+holder(op.Out))),
			jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
		)
		return stmts, nil
	}

	body := append(fieldBindings("e", inShape), jen.Var().Id("assertErr").Error(),
		jen.If(jen.Op("!").Parens(func() jen.Code {
			return spliceExpr(op.AssertExpr)
		}())).Block(jen.Id("assertErr").Op("=").Add(assertErr)))
	check := jen.Func().Params(jen.Id("e").Add(inShape.goType.Clone())).Error().Block(
		append(body, jen.Return(jen.Id("assertErr")))...,
	)
	errVar := "err" + holder(op.Out)
	stmts := []jen.Code{
		jen.List(jen.Id(holder(op.Out)), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorSingle").Call(
			g.stats(), g.nextSlot(), jen.Id(in), check.Call(jen.Id(in)),
		),
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
	}
	return stmts, nil
}

// emitFork implements spec.md §4.5's Fork. The builder (sem/context.go's
// ctxBuilder) binds every operator's result to a single `let` name, so in
// practice Outs is always empty and Fork's single declared Out is the one
// downstream consumer reuses; the multi-way runtime.Fork call is still
// emitted so a future multi-binding `let` form only needs to populate
// Outs, not touch codegen (see DESIGN.md).
func (g *gen) emitFork(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	outs := op.Outs
	if len(outs) == 0 {
		outs = []plan.FlowKey{op.Out}
	}
	in := g.name(op.In, override)
	inShape := shapes[op.In]
	forked := "forked" + holder(op.Out)
	var stmts []jen.Code
	if g.isStream(op.In) {
		stmts = append(stmts, jen.Id(forked).Op(":=").Qual(runtimePkg, "Fork").Call(g.stats(), g.nextSlot(), jen.Id(in), jen.Lit(len(outs))))
	} else {
		stmts = append(stmts, jen.Id(forked).Op(":=").Qual(runtimePkg, "ForkSingle").Call(g.stats(), g.nextSlot(), jen.Id(in), jen.Lit(len(outs))))
	}
	for i, out := range outs {
		stmts = append(stmts, jen.Id(holder(out)).Op(":=").Id(forked).Index(jen.Lit(i)))
		shapes[out] = inShape
	}
	return stmts, nil
}

// emitUnion implements spec.md §4.5's Union. As with Fork, sem's single-In
// builder never populates Ins; Union's sole real operand is op.In, and the
// runtime.Union call below degenerates to that one stream. Kept as a
// variadic call so a future multi-operand `union(a, b, c)` lowering only
// needs to populate Ins.
func (g *gen) emitUnion(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	ins := op.Ins
	if len(ins) == 0 {
		ins = []plan.FlowKey{op.In}
	}
	args := []jen.Code{g.stats(), g.nextSlot()}
	var elemShape shape
	for i, in := range ins {
		if i == 0 {
			elemShape = shapes[in]
		}
		args = append(args, jen.Id(g.name(in, override)))
	}
	shapes[op.Out] = elemShape
	call := jen.Qual(runtimePkg, "Union").Call(args...)
	return []jen.Code{jen.Id(holder(op.Out)).Op(":=").Add(call)}, nil
}

// emitExpand flattens one record-valued, slice-typed field of each input
// element into the outer stream (spec.md §4.5's Expand). Element field
// types are opaque (any) throughout this package's shapes, so the
// flattened field is read back as []any — a best-effort implementation
// given full field-type inference is out of scope (see DESIGN.md).
func (g *gen) emitExpand(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	shapes[op.Out] = anyShape()
	in := g.name(op.In, override)
	out := holder(op.Out)

	loopBody := append(fieldBindings("e", inShape),
		jen.If(jen.List(jen.Id("vs"), jen.Id("ok")).Op(":=").Id(ident.Unexported(op.ExpandField)).Assert(jen.Index().Id("any")), jen.Id("ok")).Block(
			jen.Id(out).Op("=").Append(jen.Id(out), jen.Id("vs").Op("...")),
		),
	)
	stmts := []jen.Code{
		jen.Var().Id(out).Index().Id("any"),
		jen.For(jen.List(jen.Id("_"), jen.Id("e")).Op(":=").Range().Id(in)).Block(loopBody...),
		jen.Id(out).Op("=").Qual(runtimePkg, "ConsumeBuffer").Call(g.stats(), g.nextSlot(), jen.Id(out)),
	}
	return stmts, nil
}

func (g *gen) emitJoin(op plan.Operator, override map[plan.FlowKey]string, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	leftShape, rightShape := shapes[op.Left], shapes[op.Right]
	left, right := g.name(op.Left, override), g.name(op.Right, override)
	leftAs, rightAs := op.Join.LeftAs, op.Join.RightAs
	if leftAs == "" {
		leftAs = "left"
	}
	if rightAs == "" {
		rightAs = "right"
	}
	outShape := namedStructShape(leftAs, leftShape, rightAs, rightShape)

	pairs := "pairs" + holder(op.Out)
	var joinCall jen.Code
	switch op.Join.Kind {
	case plan.JoinEqui:
		leftKeyFn := jen.Func().Params(jen.Id("e").Add(leftShape.goType.Clone())).Id("any").Block(
			append(fieldBindings("e", leftShape), jen.Return(jen.Id(ident.Unexported(op.Join.LeftField))))...,
		)
		rightKeyFn := jen.Func().Params(jen.Id("e").Add(rightShape.goType.Clone())).Id("any").Block(
			append(fieldBindings("e", rightShape), jen.Return(jen.Id(ident.Unexported(op.Join.RightField))))...,
		)
		joinCall = jen.Qual(runtimePkg, "EquiJoin").Call(g.stats(), g.nextSlot(), jen.Id(left), jen.Id(right), leftKeyFn, rightKeyFn)
	case plan.JoinPredicate:
		body := append(append(fieldBindings("l", leftShape), fieldBindings("r", rightShape)...), jen.Return(spliceExpr(op.Join.Predicate)))
		pred := jen.Func().Params(jen.Id("l").Add(leftShape.goType.Clone()), jen.Id("r").Add(rightShape.goType.Clone())).Bool().Block(body...)
		joinCall = jen.Qual(runtimePkg, "PredicateJoin").Call(g.profile(), g.stats(), g.nextSlot(), jen.Id(left), jen.Id(right), pred)
	default:
		joinCall = jen.Qual(runtimePkg, "CrossJoin").Call(g.stats(), g.nextSlot(), jen.Id(left), jen.Id(right))
	}

	rename := jen.Func().Params(jen.Id("p").Qual(runtimePkg, "Pair").Index(leftShape.goType.Clone(), rightShape.goType.Clone())).Add(outShape.goType.Clone()).Block(
		jen.Return(outShape.goType.Clone().Values(jen.Dict{
			jen.Id(ident.Exported(leftAs)):  jen.Id("p").Dot("Left"),
			jen.Id(ident.Exported(rightAs)): jen.Id("p").Dot("Right"),
		})),
	)

	shapes[op.Out] = outShape
	stmts := []jen.Code{
		jen.Id(pairs).Op(":=").Add(joinCall),
		jen.Id(holder(op.Out)).Op(":=").Qual(runtimePkg, "Map").Call(g.profile(), g.stats(), g.nextSlot(), jen.Id(pairs), rename),
	}
	return stmts, nil
}

// nestedBody renders a GroupBy/Lift body: sem seeds it with a synthetic
// first Row op standing in for the grouping/lifting source the closure
// parameter supplies at runtime (sem.lowerNested) — that op is never
// emitted; its FlowKey is bound directly to closureVar via override
// instead.
func (g *gen) nestedBody(ctxKey plan.ContextKey, closureVar string, errVar string) ([]jen.Code, jen.Code, map[plan.FlowKey]shape, error) {
	ctx := g.p.Ctxs.MustGet(ctxKey)
	if len(ctx.Ops) == 0 {
		return nil, jen.Nil(), map[plan.FlowKey]shape{}, nil
	}
	src := g.p.Ops.MustGet(ctx.Ops[0])
	override := map[plan.FlowKey]string{src.Out: closureVar}
	onErr := func(opErr string) []jen.Code {
		return []jen.Code{jen.Id(errVar).Op("=").Id(opErr), jen.Return(jen.Nil())}
	}
	return g.emitOps(ctx.Ops[1:], override, onErr)
}

// emitGroupBy and emitLift box every body's return value as any (the
// same anyRecord() simplification sem applies upstream to every
// operator's output, see DESIGN.md): a per-body retType would need the
// two-pass shape discovery Generate itself uses for the whole query,
// which is not worth the complexity for a nested context whose shape is
// already opaque to the rest of the plan.
func (g *gen) emitGroupBy(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	if !g.isStream(op.In) {
		return nil, fmt.Errorf("groupby requires a stream input")
	}
	inShape := shapes[op.In]
	in := g.name(op.In, override)
	errVar := "groupErr" + holder(op.Out)

	keyFn := jen.Func().Params(jen.Id("e").Add(inShape.goType.Clone())).Id("any").Block(
		append(fieldBindings("e", inShape), jen.Return(jen.Id(ident.Unexported(op.GroupByField))))...,
	)
	groups := "groups" + holder(op.Out)

	nested, retExpr, _, err := g.nestedBody(op.Inner, "g.Items", errVar)
	if err != nil {
		return nil, err
	}
	if retExpr == nil {
		retExpr = jen.Nil()
	}
	body := append(nested,
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(jen.Return(jen.Nil())),
		jen.Return(retExpr),
	)
	bodyFn := jen.Func().Params(jen.Id("g").Qual(runtimePkg, "Group").Index(jen.Id("any"), inShape.goType.Clone())).Id("any").Block(body...)

	shapes[op.Out] = anyShape()
	stmts := []jen.Code{
		jen.Var().Id(errVar).Error(),
		jen.Id(groups).Op(":=").Qual(runtimePkg, "GroupBy").Call(g.stats(), g.nextSlot(), jen.Id(in), keyFn),
		jen.Id(holder(op.Out)).Op(":=").Qual(runtimePkg, "Map").Call(g.profile(), g.stats(), g.nextSlot(), jen.Id(groups), bodyFn),
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
	}
	return stmts, nil
}

func (g *gen) emitLift(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	in := g.name(op.In, override)
	errVar := "liftErr" + holder(op.Out)

	nested, retExpr, _, err := g.nestedBody(op.Inner, "items", errVar)
	if err != nil {
		return nil, err
	}
	if retExpr == nil {
		retExpr = jen.Nil()
	}
	body := append([]jen.Code{
		jen.Id("items").Op(":=").Index().Add(inShape.goType.Clone()).Values(jen.Id("e")),
	}, nested...)
	body = append(body,
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(jen.Return(jen.Nil())),
		jen.Return(retExpr),
	)
	bodyFn := jen.Func().Params(jen.Id("e").Add(inShape.goType.Clone())).Id("any").Block(body...)

	shapes[op.Out] = anyShape()
	var call jen.Code
	if g.isStream(op.In) {
		call = jen.Qual(runtimePkg, "Map").Call(g.profile(), g.stats(), g.nextSlot(), jen.Id(in), bodyFn)
	} else {
		call = jen.Qual(runtimePkg, "MapSingle").Call(g.stats(), g.nextSlot(), jen.Id(in), bodyFn)
	}
	stmts := []jen.Code{
		jen.Var().Id(errVar).Error(),
		jen.Id(holder(op.Out)).Op(":=").Add(call),
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
	}
	return stmts, nil
}

// emitUniqueRef implements spec.md §4.5's `UniqueRef(table, field, from,
// out)`: per input element, look the comparison value up in the table's
// unique index named by op.Field, failing to the error channel on miss.
// The owning table is not carried on the operator itself (sem never sets
// Table for this kind); it is recovered from the input flow's shape,
// populated when that flow traces back to a ScanRefs (see shape.go).
func (g *gen) emitUniqueRef(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	tk := inShape.table
	in := g.name(op.In, override)
	out := holder(op.Out)
	outShape := keyShape(g.pkgOf, g.modulePath, tk)
	shapes[op.Out] = outShape
	keyErr := jen.Qual(g.rowerrPkg(), "NewKeyError").Call(jen.Lit(g.p.Tables.MustGet(tk).Name))

	if g.isStream(op.In) {
		ks, errs := "ks"+out, "errs"+out
		loop := append(fieldBindings("e", inShape),
			jen.List(jen.Id("k"), jen.Id("ok")).Op(":=").Add(g.tableAccessor(tk)).Dot("Unique").Call(jen.Lit(op.Field), spliceExpr(op.Key)),
			jen.If(jen.Id("ok")).Block(
				jen.Id(ks).Index(jen.Id("i")).Op("=").Id("k"),
			).Else().Block(
				jen.Id(errs).Index(jen.Id("i")).Op("=").Add(keyErr),
			),
		)
		errVar := "err" + out
		stmts := []jen.Code{
			jen.Id(ks).Op(":=").Make(jen.Index().Add(outShape.goType.Clone()), jen.Len(jen.Id(in))),
			jen.Id(errs).Op(":=").Make(jen.Index().Error(), jen.Len(jen.Id(in))),
			jen.For(jen.List(jen.Id("i"), jen.Id("e")).Op(":=").Range().Id(in)).Block(loop...),
			jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorStream").Call(g.stats(), g.nextSlot(), jen.Id(ks), jen.Id(errs)),
			jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
		}
		return stmts, nil
	}

	errVar := "err" + out
	lookup := append(fieldBindings("e", inShape),
		jen.List(jen.Id("k"), jen.Id("ok")).Op(":=").Add(g.tableAccessor(tk)).Dot("Unique").Call(jen.Lit(op.Field), spliceExpr(op.Key)),
		jen.If(jen.Op("!").Id("ok")).Block(jen.Return(jen.Id("k"), keyErr)),
		jen.Return(jen.Id("k"), jen.Nil()),
	)
	slot := g.nextSlot()
	lookupCall := jen.Func().Params(jen.Id("e").Add(inShape.goType.Clone())).Params(outShape.goType.Clone(), jen.Error()).
		Block(lookup...).Call(jen.Id(in))
	stmts := []jen.Code{
		jen.List(jen.Id("v"), jen.Id(errVar+"Raw")).Op(":=").Add(lookupCall),
		jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorSingle").Call(g.stats(), slot, jen.Id("v"), jen.Id(errVar+"Raw")),
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
	}
	return stmts, nil
}

// emitDeRef implements spec.md §4.5's DeRef: fetch the referenced row and
// embed it under op.Named, preserving the original reference under a
// fixed Key field so a later Update/Delete in the same chain can still
// act on it (derefShape). Unchecked is accepted but not special-cased —
// the Get/ok check always runs; a provably-valid reference simply never
// takes the miss branch (see DESIGN.md).
func (g *gen) emitDeRef(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	tk := inShape.table
	rowSh := rowShape(g.pkgOf, g.modulePath, g.p, tk)
	keySh := keyShape(g.pkgOf, g.modulePath, tk)
	outShape := derefShape(op.Named, keySh, rowSh)
	shapes[op.Out] = outShape

	in := g.name(op.In, override)
	out := holder(op.Out)
	keyErr := jen.Qual(g.rowerrPkg(), "NewKeyError").Call(jen.Lit(g.p.Tables.MustGet(tk).Name))

	if g.isStream(op.In) {
		rows, errs := "rows"+out, "errs"+out
		loop := jen.List(jen.Id("r"), jen.Id("ok")).Op(":=").Add(g.tableAccessor(tk)).Dot("Get").Call(keyExprOfVar("e", inShape))
		stmts := []jen.Code{
			jen.Id(rows).Op(":=").Make(jen.Index().Add(outShape.goType.Clone()), jen.Len(jen.Id(in))),
			jen.Id(errs).Op(":=").Make(jen.Index().Error(), jen.Len(jen.Id(in))),
			jen.For(jen.List(jen.Id("i"), jen.Id("e")).Op(":=").Range().Id(in)).Block(
				loop,
				jen.If(jen.Op("!").Id("ok")).Block(
					jen.Id(errs).Index(jen.Id("i")).Op("=").Add(keyErr),
				).Else().Block(
					jen.Id(rows).Index(jen.Id("i")).Op("=").Add(outShape.goType.Clone()).Values(jen.Dict{
						jen.Id("Key"):                     keyExprOfVar("e", inShape),
						jen.Id(ident.Exported(op.Named)): jen.Id("r"),
					}),
				),
			),
		}
		errVar := "err" + out
		stmts = append(stmts,
			jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorStream").Call(g.stats(), g.nextSlot(), jen.Id(rows), jen.Id(errs)),
			jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
		)
		return stmts, nil
	}

	errVar := "err" + out
	keyExpr := keyExprOfVar(in, inShape)
	stmts := []jen.Code{
		jen.List(jen.Id("r"), jen.Id("ok")).Op(":=").Add(g.tableAccessor(tk)).Dot("Get").Call(keyExpr),
		jen.Var().Id(out).Add(outShape.goType.Clone()),
		jen.Var().Id(errVar).Error(),
		jen.If(jen.Op("!").Id("ok")).Block(
			jen.Id(errVar).Op("=").Add(keyErr),
		).Else().Block(
			jen.Id(out).Op("=").Add(outShape.goType.Clone()).Values(jen.Dict{
				jen.Id("Key"):                     keyExprOfVar(in, inShape),
				jen.Id(ident.Exported(op.Named)): jen.Id("r"),
			}),
		),
		jen.List(jen.Id(out), jen.Id(errVar)).Op("=").Qual(runtimePkg, "ErrorSingle").Call(g.stats(), g.nextSlot(), jen.Id(out), jen.Id(errVar)),
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
	}
	return stmts, nil
}

func (g *gen) rowLiteralFromShape(tk plan.TableKey, recv string, recvShape shape) jen.Code {
	t := g.p.Tables.MustGet(tk)
	dict := jen.Dict{}
	for _, fld := range t.Fields {
		dict[jen.Id(ident.Exported(fld.Name))] = jen.Id(recv).Dot(ident.Exported(fld.Name))
	}
	_ = recvShape
	return jen.Qual(g.tablePkg(tk), "Row").Values(dict)
}

func (g *gen) emitInsert(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	in := g.name(op.In, override)
	out := holder(op.Out)
	outShape := keyShape(g.pkgOf, g.modulePath, op.Table)
	shapes[op.Out] = outShape

	if g.isStream(op.In) {
		ks, errs := "ks"+out, "errs"+out
		loop := append(fieldBindings("e", inShape),
			jen.List(jen.Id("k"), jen.Id("err")).Op(":=").Add(g.tableAccessor(op.Table)).Dot("Insert").Call(g.rowLiteralFromShape(op.Table, "e", inShape)),
			jen.Id(ks).Index(jen.Id("i")).Op("=").Id("k"),
			jen.Id(errs).Index(jen.Id("i")).Op("=").Id("err"),
		)
		errVar := "err" + out
		stmts := []jen.Code{
			jen.Id(ks).Op(":=").Make(jen.Index().Add(outShape.goType.Clone()), jen.Len(jen.Id(in))),
			jen.Id(errs).Op(":=").Make(jen.Index().Error(), jen.Len(jen.Id(in))),
			jen.For(jen.List(jen.Id("i"), jen.Id("e")).Op(":=").Range().Id(in)).Block(loop...),
			jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorStream").Call(g.stats(), g.nextSlot(), jen.Id(ks), jen.Id(errs)),
			jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
		}
		return stmts, nil
	}

	errVar := "err" + out
	stmts := []jen.Code{
		jen.List(jen.Id("k"), jen.Id(errVar)).Op(":=").Add(g.tableAccessor(op.Table)).Dot("Insert").Call(g.rowLiteralFromShape(op.Table, in, inShape)),
		jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorSingle").Call(g.stats(), g.nextSlot(), jen.Id("k"), jen.Id(errVar)),
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
	}
	return stmts, nil
}

// emitUpdate implements spec.md §4.5's whole-row-replace Update: fetch
// the current row, bind both it and the incoming record's own fields
// (covering both a fresh `deref` binding and a bare field reference) so
// op.Mapping's raw expressions can reference either, then replace
// whichever columns are not named in Mapping with their prior value.
func (g *gen) emitUpdate(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	in := g.name(op.In, override)
	out := holder(op.Out)
	t := g.p.Tables.MustGet(op.Table)
	keyErr := jen.Qual(g.rowerrPkg(), "NewKeyError").Call(jen.Lit(t.Name))
	shapes[op.Out] = inShape

	nextDict := func(recv string) jen.Dict {
		d := jen.Dict{}
		for _, fld := range t.Fields {
			if expr, ok := op.Mapping[fld.Name]; ok {
				d[jen.Id(ident.Exported(fld.Name))] = spliceExpr(expr)
			} else {
				d[jen.Id(ident.Exported(fld.Name))] = jen.Id(recv).Dot(ident.Exported(fld.Name))
			}
		}
		return d
	}

	applyOne := func(recv string) []jen.Code {
		body := append(fieldBindings(recv, inShape),
			jen.List(jen.Id("oldRow"), jen.Id("ok")).Op(":=").Add(g.tableAccessor(op.Table)).Dot("Get").Call(keyExprOfVar(recv, inShape)),
			jen.Var().Id("applyErr").Error(),
			jen.If(jen.Op("!").Id("ok")).Block(
				jen.Id("applyErr").Op("=").Add(keyErr),
			).Else().Block(
				jen.Id("applyErr").Op("=").Add(g.tableAccessor(op.Table)).Dot("Update").Call(
					keyExprOfVar(recv, inShape), jen.Qual(g.tablePkg(op.Table), "Row").Values(nextDict("oldRow")),
				),
			),
		)
		return body
	}

	errVar := "err" + out
	if g.isStream(op.In) {
		errs := "errs" + out
		loop := append(applyOne("e"), jen.Id(errs).Index(jen.Id("i")).Op("=").Id("applyErr"))
		stmts := []jen.Code{
			jen.Id(errs).Op(":=").Make(jen.Index().Error(), jen.Len(jen.Id(in))),
			jen.For(jen.List(jen.Id("i"), jen.Id("e")).Op(":=").Range().Id(in)).Block(loop...),
			jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorStream").Call(g.stats(), g.nextSlot(), jen.Id(in), jen.Id(errs)),
			jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
		}
		return stmts, nil
	}

	stmts := append(applyOne(in),
		jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorSingle").Call(g.stats(), g.nextSlot(), jen.Id(in), jen.Id("applyErr")),
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
	)
	return stmts, nil
}

func (g *gen) emitDelete(op plan.Operator, override map[plan.FlowKey]string, onErr func(string) []jen.Code, shapes map[plan.FlowKey]shape) ([]jen.Code, error) {
	inShape := shapes[op.In]
	in := g.name(op.In, override)
	out := holder(op.Out)
	errVar := "err" + out
	shapes[op.Out] = inShape

	if g.isStream(op.In) {
		errs := "errs" + out
		loop := jen.Id(errs).Index(jen.Id("i")).Op("=").Add(g.tableAccessor(op.Table)).Dot("Delete").Call(keyExprOfVar("e", inShape))
		stmts := []jen.Code{
			jen.Id(errs).Op(":=").Make(jen.Index().Error(), jen.Len(jen.Id(in))),
			jen.For(jen.List(jen.Id("i"), jen.Id("e")).Op(":=").Range().Id(in)).Block(loop),
			jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorStream").Call(g.stats(), g.nextSlot(), jen.Id(in), jen.Id(errs)),
			jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
		}
		return stmts, nil
	}

	stmts := []jen.Code{
		jen.List(jen.Id(out), jen.Id(errVar)).Op(":=").Qual(runtimePkg, "ErrorSingle").Call(
			g.stats(), g.nextSlot(), jen.Id(in), g.tableAccessor(op.Table).Dot("Delete").Call(keyExprOfVar(in, inShape)),
		),
		jen.If(jen.Id(errVar).Op("!=").Nil()).Block(onErr(errVar)...),
	}
	return stmts, nil
}
