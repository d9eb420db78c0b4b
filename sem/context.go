package sem

import (
	"strings"

	"github.com/syssam/emdbc/diag"
	"github.com/syssam/emdbc/frontend"
	"github.com/syssam/emdbc/plan"
)

// ctxBuilder lowers one Context's (a query body, or a GroupBy/Lift nested
// body) ordered stream-expression list into operators, implementing the
// "linear builder" pattern of spec.md §4.4: each operator is inserted with
// its outgoing edge Incomplete, then the predecessor's edge is updated to
// Conn once the next operator is known.
type ctxBuilder struct {
	l      *lowering
	ctxKey plan.ContextKey
	vs     map[string]*varState

	ops  []plan.OpKey
	ret  *plan.OpKey
}

func (c *ctxBuilder) addOp(op plan.Operator) plan.OpKey {
	k := c.l.p.Ops.Insert(op)
	c.ops = append(c.ops, k)
	return k
}

func (c *ctxBuilder) setOut(opKey plan.OpKey, flow plan.FlowKey) {
	op := c.l.p.Ops.MustGet(opKey)
	op.Out = flow
	c.l.p.Ops.Set(opKey, op)
}

// link finalises the Incomplete edge flow, connecting it from its known
// producer to nextOp (spec.md §3.1 DataFlow lifecycle).
func (c *ctxBuilder) link(flow plan.FlowKey, nextOp plan.OpKey) {
	f := c.l.p.Flows.MustGet(flow)
	f.To = nextOp
	f.State = plan.FlowConn
	c.l.p.Flows.Set(flow, f)
}

func (c *ctxBuilder) lowerBody(exprs []frontend.StreamExpr) {
	for _, se := range exprs {
		c.lowerStreamExpr(se)
	}
}

// finish synthesises Discard operators for every variable left Available
// at the end of the context (spec.md §4.4 "variables not used by the end
// of the enclosing context are turned into Discard operators"), then
// writes the accumulated op list back into the Context.
func (c *ctxBuilder) finish() {
	var discards []plan.OpKey
	for name, v := range c.vs {
		if v.Used {
			continue
		}
		c.l.sink.Add(diag.New(diag.Warning, diag.CodeVariableUnusedWarning, v.LetSpan, "variable %q is never used", name))
		d := c.addOp(plan.Operator{Kind: plan.OpDiscard, In: v.Flow})
		c.link(v.Flow, d)
		discards = append(discards, d)
	}
	ctx := c.l.p.Ctxs.MustGet(c.ctxKey)
	ctx.Ops = c.ops
	ctx.Discards = discards
	ctx.Return = c.ret
	c.l.p.Ctxs.Set(c.ctxKey, ctx)
}

// lowerStreamExpr lowers one `let`/`use` line into zero or more operators,
// threading the running (producer, edge, data) triple through the chain.
func (c *ctxBuilder) lowerStreamExpr(se frontend.StreamExpr) {
	var curProducer plan.OpKey
	var curFlow plan.FlowKey
	var curData plan.Data
	have := false

	if se.Use != "" {
		v, ok := c.vs[se.Use]
		if !ok {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeUndeclaredVariable, se.UseSpan, "undeclared variable %q", se.Use))
			return
		}
		if v.Used {
			d := diag.New(diag.Error, diag.CodeVariableUsedTwice, se.UseSpan, "variable %q used twice", se.Use).
				WithSub(v.UseSpan, "first used here")
			c.l.sink.Add(d)
			return
		}
		v.Used = true
		v.UseSpan = se.UseSpan
		curProducer, curFlow, curData, have = v.Producer, v.Flow, v.Data, true
		if len(se.Ops) == 0 {
			return
		}
	}

	terminated := false
	for i, oe := range se.Ops {
		if have {
			wantStream := se.Conns[i] == frontend.ConnStream
			if wantStream != curData.Stream {
				c.l.sink.Add(diag.New(diag.Error, diag.CodeConnectorMismatch, oe.Span,
					"connector %s does not match producer's %s output", connectorDesc(se.Conns[i]), streamDesc(curData.Stream)))
			}
		}

		op, outData, ok := c.lowerOperator(oe, curData)
		if !ok {
			return
		}
		if have {
			op.In = curFlow
		}
		opKey := c.addOp(op)
		if have {
			c.link(curFlow, opKey)
		}

		switch op.Kind {
		case plan.OpReturn:
			if c.ret != nil {
				c.l.sink.Add(diag.New(diag.Error, diag.CodeMultipleReturns, oe.Span, "context already has a return operator"))
			} else {
				r := opKey
				c.ret = &r
			}
			have = false
			terminated = true
			continue
		case plan.OpDiscard:
			have = false
			terminated = true
			continue
		}

		newFlow := c.l.p.Flows.Insert(plan.DataFlow{State: plan.FlowIncomplete, From: opKey, With: outData})
		c.setOut(opKey, newFlow)
		curProducer, curFlow, curData, have = opKey, newFlow, outData, true
	}
	_ = curProducer

	if se.Let != "" {
		if terminated {
			// The chain ended in a terminal operator (Return/Discard); the
			// `let` name has nothing left to bind to and is simply unused.
			return
		}
		if !have {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeUnexpectedToken, se.LetSpan, "let binding %q produces no value", se.Let))
			return
		}
		if _, exists := c.vs[se.Let]; exists {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeVariableUsedTwice, se.LetSpan, "variable %q redeclared", se.Let))
			return
		}
		c.vs[se.Let] = &varState{Producer: curProducer, Flow: curFlow, Data: curData, LetSpan: se.LetSpan}
	}
}

func connectorDesc(c frontend.Connector) string {
	if c == frontend.ConnStream {
		return "stream (|>)"
	}
	return "single (~>)"
}

func streamDesc(stream bool) string {
	if stream {
		return "stream"
	}
	return "single"
}

func argOrEmpty(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// parseSortArg splits one Sort argument ("field" or "field desc") into its
// field name and ascending flag.
func parseSortArg(a string) (field string, asc bool) {
	parts := strings.Fields(a)
	if len(parts) == 0 {
		return "", true
	}
	if len(parts) > 1 && parts[1] == "desc" {
		return parts[0], false
	}
	return parts[0], true
}

// lowerOperator builds the Operator for one pipeline stage and determines
// its output Data (spec.md §4.5). Diagnostics are added directly to the
// sink; ok is false if no valid operator could be built.
func (c *ctxBuilder) lowerOperator(oe frontend.OperatorExpr, inData plan.Data) (plan.Operator, plan.Data, bool) {
	fieldExprs := func() map[string]string {
		m := map[string]string{}
		for _, fe := range oe.FieldExprs {
			m[fe.Field] = fe.Expr
		}
		return m
	}

	switch oe.Name {
	case "ref":
		tk, ok := c.l.table(argOrEmpty(oe.Args, 0))
		if !ok {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeUnknownTable, oe.Span, "unknown table %q", argOrEmpty(oe.Args, 0)))
			return plan.Operator{}, plan.Data{}, false
		}
		return plan.Operator{Kind: plan.OpScanRefs, Table: tk},
			plan.Data{RecordType: c.l.recordForTable(tk), Stream: true}, true

	case "row":
		return plan.Operator{Kind: plan.OpRow, RowExprs: fieldExprs()},
			plan.Data{RecordType: c.l.anyRecord(), Stream: false}, true

	case "map":
		return plan.Operator{Kind: plan.OpMap, MapExprs: fieldExprs()},
			plan.Data{RecordType: c.l.anyRecord(), Stream: inData.Stream}, true

	case "filter":
		return plan.Operator{Kind: plan.OpFilter, FilterExpr: argOrEmpty(oe.Args, 0)}, inData, true

	case "fold":
		fields := map[string]plan.FoldField{}
		for _, fe := range oe.FieldExprs {
			fields[fe.Field] = plan.FoldField{Initial: fe.Expr, Update: fe.Aux}
		}
		return plan.Operator{Kind: plan.OpFold, FoldFields: fields},
			plan.Data{RecordType: c.l.anyRecord(), Stream: false}, true

	case "combine":
		fields := map[string]plan.CombineField{}
		for _, fe := range oe.FieldExprs {
			if fe.Aux == "" {
				c.l.sink.Add(diag.New(diag.Error, diag.CodeCombineMissingIdentity, oe.Span,
					"combine field %q has no identity element", fe.Field))
				return plan.Operator{}, plan.Data{}, false
			}
			fields[fe.Field] = plan.CombineField{Identity: fe.Expr, Update: fe.Aux}
		}
		return plan.Operator{Kind: plan.OpCombine, CombineField: fields},
			plan.Data{RecordType: c.l.anyRecord(), Stream: false}, true

	case "sort":
		var keys []plan.SortKey
		seen := map[string]bool{}
		for _, a := range oe.Args {
			field, asc := parseSortArg(a)
			if seen[field] {
				c.l.sink.Add(diag.New(diag.Error, diag.CodeSortFieldRepeated, oe.Span, "sort field %q repeated", field))
				return plan.Operator{}, plan.Data{}, false
			}
			seen[field] = true
			keys = append(keys, plan.SortKey{Field: field, Asc: asc})
		}
		return plan.Operator{Kind: plan.OpSort, SortBy: keys}, inData, true

	case "take":
		return plan.Operator{Kind: plan.OpTake, TakeN: argOrEmpty(oe.Args, 0)}, inData, true

	case "count":
		return plan.Operator{Kind: plan.OpCount},
			plan.Data{RecordType: c.l.scalarRecord("int64"), Stream: false}, true

	case "collect":
		return plan.Operator{Kind: plan.OpCollect},
			plan.Data{RecordType: c.l.anyRecord(), Stream: false}, true

	case "assert":
		return plan.Operator{Kind: plan.OpAssert, AssertExpr: argOrEmpty(oe.Args, 0), AssertName: argOrEmpty(oe.Args, 1)},
			inData, true

	case "expand":
		return plan.Operator{Kind: plan.OpExpand, ExpandField: argOrEmpty(oe.Args, 0)},
			plan.Data{RecordType: c.l.anyRecord(), Stream: inData.Stream}, true

	case "fork":
		return plan.Operator{Kind: plan.OpFork}, inData, true

	case "union":
		if len(oe.Args) == 0 {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeUnionEmptyOperands, oe.Span, "union requires at least one operand"))
			return plan.Operator{}, plan.Data{}, false
		}
		return plan.Operator{Kind: plan.OpUnion}, inData, true

	case "unique":
		return plan.Operator{Kind: plan.OpUniqueRef, Field: argOrEmpty(oe.Args, 0), Key: argOrEmpty(oe.Args, 1)},
			plan.Data{RecordType: c.l.anyRecord(), Stream: inData.Stream}, true

	case "deref":
		return plan.Operator{Kind: plan.OpDeRef, Named: argOrEmpty(oe.Args, 0)},
			plan.Data{RecordType: c.l.anyRecord(), Stream: inData.Stream}, true

	case "insert":
		tk, ok := c.l.table(argOrEmpty(oe.Args, 0))
		if !ok {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeUnknownTable, oe.Span, "unknown table %q", argOrEmpty(oe.Args, 0)))
			return plan.Operator{}, plan.Data{}, false
		}
		return plan.Operator{Kind: plan.OpInsert, Table: tk},
			plan.Data{RecordType: c.l.recordForTable(tk), Stream: inData.Stream}, true

	case "update":
		tk, ok := c.l.table(argOrEmpty(oe.Args, 0))
		if !ok {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeUnknownTable, oe.Span, "unknown table %q", argOrEmpty(oe.Args, 0)))
			return plan.Operator{}, plan.Data{}, false
		}
		return plan.Operator{Kind: plan.OpUpdate, Table: tk, UpdateName: argOrEmpty(oe.Args, 1), Mapping: fieldExprs()},
			plan.Data{RecordType: c.l.anyRecord(), Stream: inData.Stream}, true

	case "delete":
		tk, ok := c.l.table(argOrEmpty(oe.Args, 0))
		if !ok {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeUnknownTable, oe.Span, "unknown table %q", argOrEmpty(oe.Args, 0)))
			return plan.Operator{}, plan.Data{}, false
		}
		return plan.Operator{Kind: plan.OpDelete, Table: tk}, inData, true

	case "join":
		return plan.Operator{Kind: plan.OpJoin, Join: plan.JoinSpec{Kind: plan.JoinCross}},
			plan.Data{RecordType: c.l.anyRecord(), Stream: true}, true

	case "groupby":
		if len(oe.Body) == 0 {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeGroupByEmptyContext, oe.Span, "groupby body is empty"))
			return plan.Operator{}, plan.Data{}, false
		}
		inner := c.lowerNested(oe.Body)
		return plan.Operator{Kind: plan.OpGroupBy, GroupByField: argOrEmpty(oe.Args, 0), Inner: inner},
			plan.Data{RecordType: c.l.anyRecord(), Stream: true}, true

	case "lift":
		if len(oe.Body) == 0 {
			c.l.sink.Add(diag.New(diag.Error, diag.CodeLiftEmptyContext, oe.Span, "lift body is empty"))
			return plan.Operator{}, plan.Data{}, false
		}
		inner := c.lowerNested(oe.Body)
		return plan.Operator{Kind: plan.OpLift, Inner: inner},
			plan.Data{RecordType: c.l.anyRecord(), Stream: inData.Stream}, true

	case "return":
		return plan.Operator{Kind: plan.OpReturn}, plan.Data{}, true

	case "discard":
		return plan.Operator{Kind: plan.OpDiscard}, plan.Data{}, true

	default:
		c.l.sink.Add(diag.New(diag.Error, diag.CodeUnknownOperator, oe.Span, "unknown operator %q", oe.Name))
		return plan.Operator{}, plan.Data{}, false
	}
}

// lowerNested lowers a GroupBy/Lift body into its own Context, seeded with
// a synthetic "inner" binding standing in for the grouping key / lifted
// value the runtime passes the closure at execution time (spec.md §4.7
// "Nested contexts").
func (c *ctxBuilder) lowerNested(body []frontend.StreamExpr) plan.ContextKey {
	innerKey := c.l.p.Ctxs.Insert(plan.Context{Params: []plan.Param{{Name: "inner", Type: c.l.anyScalar}}})
	nb := &ctxBuilder{l: c.l, ctxKey: innerKey, vs: map[string]*varState{}}

	rec := c.l.anyRecord()
	src := nb.addOp(plan.Operator{Kind: plan.OpRow})
	flow := c.l.p.Flows.Insert(plan.DataFlow{State: plan.FlowIncomplete, From: src, With: plan.Data{RecordType: rec, Stream: true}})
	nb.setOut(src, flow)
	nb.vs["inner"] = &varState{Producer: src, Flow: flow, Data: plan.Data{RecordType: rec, Stream: true}}

	nb.lowerBody(body)
	nb.finish()
	return innerKey
}
