package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Dump renders a line-oriented textual view of every arena and the edges
// between them: tables, queries, contexts, operators, and the dataflows
// linking them, including each flow's lifecycle state. It is a pure
// reader over the arenas with no new invariants of its own, the Go
// analogue of the original's dot-graph PlanViz backend
// (original_source/.../backend/planviz/edges.rs) minus the graphviz
// rendering step — SPEC_FULL.md §12 drops the graph-drawing output and
// keeps only the debugging payload, surfaced via `emdbc -dump-plan`.
func (p *Plan) Dump() string {
	var b strings.Builder

	fmt.Fprintf(&b, "tables (%d):\n", p.Tables.Len())
	p.Tables.Each(func(tk TableKey, t Table) {
		fmt.Fprintf(&b, "  [%d] %s\n", tk.Index(), t.Name)
		for _, f := range t.Fields {
			fmt.Fprintf(&b, "        %s\n", f.Name)
		}
	})

	fmt.Fprintf(&b, "queries (%d):\n", p.Queries.Len())
	qkeys := p.Queries.Keys()
	sort.Slice(qkeys, func(i, j int) bool { return qkeys[i].Index() < qkeys[j].Index() })
	for _, qk := range qkeys {
		q := p.Queries.MustGet(qk)
		fmt.Fprintf(&b, "  [%d] %s -> context[%d]\n", qk.Index(), q.Name, q.Root.Index())
	}

	fmt.Fprintf(&b, "contexts (%d):\n", p.Ctxs.Len())
	ckeys := p.Ctxs.Keys()
	sort.Slice(ckeys, func(i, j int) bool { return ckeys[i].Index() < ckeys[j].Index() })
	for _, ck := range ckeys {
		c := p.Ctxs.MustGet(ck)
		fmt.Fprintf(&b, "  [%d] params=%d ops=%d", ck.Index(), len(c.Params), len(c.Ops))
		if c.Return != nil {
			fmt.Fprintf(&b, " return=op[%d]", c.Return.Index())
		}
		b.WriteByte('\n')
		for _, ok := range c.Ops {
			dumpOp(&b, p, ok)
		}
	}

	fmt.Fprintf(&b, "dataflows (%d):\n", p.Flows.Len())
	fkeys := p.Flows.Keys()
	sort.Slice(fkeys, func(i, j int) bool { return fkeys[i].Index() < fkeys[j].Index() })
	for _, fk := range fkeys {
		f := p.Flows.MustGet(fk)
		state := "null"
		switch f.State {
		case FlowIncomplete:
			state = "incomplete"
		case FlowConn:
			state = "conn"
		}
		fmt.Fprintf(&b, "  [%d] op[%d] -> op[%d] (%s, stream=%v)\n",
			fk.Index(), f.From.Index(), f.To.Index(), state, f.With.Stream)
	}

	return b.String()
}

func dumpOp(b *strings.Builder, p *Plan, ok OpKey) {
	o := p.Ops.MustGet(ok)
	fmt.Fprintf(b, "      op[%d] %s", ok.Index(), o.Kind)
	if o.Table.Valid() {
		fmt.Fprintf(b, " table=%d", o.Table.Index())
	}
	b.WriteByte('\n')
}
