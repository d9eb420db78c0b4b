package query

import "github.com/syssam/emdbc/plan"

// collectTouches walks ctxKey's operator list, recursing into every
// GroupBy/Lift nested context, and returns the set of tables the whole
// subtree reads or mutates, first-occurrence ordered so the emitted
// commit/abort calls are deterministic. A table touched as both Reads and
// Mutates anywhere in the subtree is recorded as Mutates — "Mut overrides
// Imm".
func collectTouches(p *plan.Plan, ctxKey plan.ContextKey) []plan.TableTouch {
	ctx := p.Ctxs.MustGet(ctxKey)
	var out []plan.TableTouch
	index := map[plan.TableKey]int{}

	add := func(t plan.TableTouch) {
		if i, ok := index[t.Table]; ok {
			if t.Mutation == plan.Mutates {
				out[i].Mutation = plan.Mutates
			}
			return
		}
		index[t.Table] = len(out)
		out = append(out, t)
	}

	for _, opKey := range ctx.Ops {
		op := p.Ops.MustGet(opKey)
		for _, t := range op.Touches() {
			add(t)
		}
		if op.Kind == plan.OpGroupBy || op.Kind == plan.OpLift {
			for _, t := range collectTouches(p, op.Inner) {
				add(t)
			}
		}
	}
	return out
}

// mutatedTables returns the subset of touches that mutate, in first-seen
// order — the tables a query function must Commit on success and Abort
// on the first error.
func mutatedTables(touches []plan.TableTouch) []plan.TableKey {
	var out []plan.TableKey
	for _, t := range touches {
		if t.Mutation == plan.Mutates {
			out = append(out, t.Table)
		}
	}
	return out
}
