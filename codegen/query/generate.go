package query

import (
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/emdbc/internal/ident"
	"github.com/syssam/emdbc/plan"
)

// gen holds the shared state one Generate call threads through every
// operator lowering: the plan being read, where each table's generated
// package lives, and the receiver/profile/stats expressions every runtime
// call splices in (spec.md §4.7's "runtime abstraction").
type gen struct {
	p          *plan.Plan
	pkgOf      map[plan.TableKey]string
	modulePath string
	dbRecv     string
	queryName  string
	slot       int
}

const runtimePkg = "github.com/syssam/emdbc/runtime"

func (g *gen) rowerrPkg() string { return g.modulePath + "/rowerr" }
func (g *gen) tablePkg(tk plan.TableKey) string {
	return g.modulePath + "/" + g.pkgOf[tk]
}
func (g *gen) tableField(tk plan.TableKey) string { return ident.Exported(g.pkgOf[tk]) }
func (g *gen) tableAccessor(tk plan.TableKey) jen.Code {
	return jen.Id(g.dbRecv).Dot(g.tableField(tk))
}
func (g *gen) stats() jen.Code   { return jen.Id(g.dbRecv).Dot("stats") }
func (g *gen) profile() jen.Code { return jen.Id(g.dbRecv).Dot("profile") }

func (g *gen) nextSlot() jen.Code {
	s := jen.Qual(runtimePkg, "StatSlot").Call(jen.Lit(g.slot))
	g.slot++
	return s
}

// name resolves the Go variable a FlowKey is known by: its holder() name,
// unless override rebinds it to an enclosing closure parameter (the
// nested-context "inner" binding, spec.md §4.7 "Nested contexts").
func (g *gen) name(k plan.FlowKey, override map[plan.FlowKey]string) string {
	if n, ok := override[k]; ok {
		return n
	}
	return holder(k)
}

// Generate renders one query's public method on the generated Database
// facade (spec.md §4.7, §6 — the facade type itself is emitted by
// backend.Facade.Generate, which calls this once per declared query).
//
// Emission runs twice: a dry pass discovers the body's final shape (so
// early-return statements on the error path can be given a zero value of
// the right type before that type is actually known), then a real pass
// builds the statements that are kept. Both passes are pure jen-tree
// construction with no side effects beyond the gen's slot counter, which
// is reset between them.
func Generate(p *plan.Plan, qk plan.QueryKey, pkgOf map[plan.TableKey]string, modulePath, dbPkg, dbType, dbRecv string) (*jen.File, error) {
	q, ok := p.Queries.Get(qk)
	if !ok {
		return nil, fmt.Errorf("query: unknown query key")
	}
	ctx, ok := p.Ctxs.Get(q.Root)
	if !ok {
		return nil, fmt.Errorf("query %s: missing root context", q.Name)
	}

	g := &gen{p: p, pkgOf: pkgOf, modulePath: modulePath, dbRecv: dbRecv, queryName: q.Name}

	params, retShape, err := g.signature(ctx)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}

	touches := collectTouches(p, q.Root)
	mutated := mutatedTables(touches)
	abort := func() []jen.Code {
		stmts := make([]jen.Code, 0, len(mutated))
		for _, tk := range mutated {
			stmts = append(stmts, g.tableAccessor(tk).Dot("Abort").Call())
		}
		return stmts
	}
	commit := func() []jen.Code {
		stmts := make([]jen.Code, 0, len(mutated))
		for _, tk := range mutated {
			stmts = append(stmts, g.tableAccessor(tk).Dot("Commit").Call())
		}
		return stmts
	}

	g.slot = 0
	onErr := func(errVar string) []jen.Code {
		return append(abort(), jen.Return(retShape.zero, jen.Id(errVar)))
	}
	stmts, retExpr, _, err := g.emitContext(ctx, nil, onErr)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	if len(mutated) > 0 {
		stmts = append(stmts, commit()...)
	}
	if retExpr == nil {
		retExpr = retShape.zero
	}
	stmts = append(stmts, jen.Return(retExpr, jen.Nil()))

	f := jen.NewFile(dbPkg)
	f.HeaderComment(fmt.Sprintf("Code generated by emdbc for query %q. DO NOT EDIT.", q.Name))
	f.Comment(fmt.Sprintf("%s implements the %q query.", ident.QueryFunc(q.Name), q.Name))
	f.Func().Params(jen.Id(dbRecv).Op("*").Id(dbType)).Id(ident.QueryFunc(q.Name)).
		Params(params...).Params(retShape.goType, jen.Error()).
		Block(stmts...)
	f.Line()

	return f, nil
}

// signature runs the dry (no-op onErr) pass over ctx to discover its
// parameter list and return shape without committing to any statements,
// the half of Generate's two-pass design that backend's Collaborator
// Hook interface emission also needs on its own.
func (g *gen) signature(ctx plan.Context) ([]jen.Code, shape, error) {
	params := make([]jen.Code, 0, len(ctx.Params))
	for _, pr := range ctx.Params {
		pt, err := g.paramType(pr)
		if err != nil {
			return nil, shape{}, err
		}
		params = append(params, jen.Id(ident.Unexported(pr.Name)).Add(pt))
	}

	noop := func(string) []jen.Code { return nil }
	_, _, shapes, err := g.emitContext(ctx, nil, noop)
	if err != nil {
		return nil, shape{}, err
	}
	retShape := anyShape()
	if ctx.Return != nil {
		rop := g.p.Ops.MustGet(*ctx.Return)
		if s, ok := shapes[rop.In]; ok {
			retShape = s
		}
	}
	return params, retShape, nil
}

// Signature reports the Go parameter list and return type a query would
// be rendered with, without rendering its body — used by
// backend.Facade.Generate to emit the Collaborator Hook interface
// (spec.md §6) describing a Datastore's query surface.
func Signature(p *plan.Plan, qk plan.QueryKey, pkgOf map[plan.TableKey]string, modulePath string) (params []jen.Code, ret jen.Code, err error) {
	q, ok := p.Queries.Get(qk)
	if !ok {
		return nil, nil, fmt.Errorf("query: unknown query key")
	}
	ctx, ok := p.Ctxs.Get(q.Root)
	if !ok {
		return nil, nil, fmt.Errorf("query %s: missing root context", q.Name)
	}
	g := &gen{p: p, pkgOf: pkgOf, modulePath: modulePath, queryName: q.Name}
	ps, retShape, err := g.signature(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	return ps, retShape.goType, nil
}

func (g *gen) paramType(pr plan.Param) (jen.Code, error) {
	_, st, err := g.p.ResolveScalar(pr.Type)
	if err != nil {
		return nil, err
	}
	if st.Kind != plan.ScalarHost {
		return nil, fmt.Errorf("param %q: only host-typed query parameters are supported", pr.Name)
	}
	return jen.Id(st.HostExpr), nil
}
