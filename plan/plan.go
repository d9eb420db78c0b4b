package plan

import "fmt"

// Plan bundles the seven arenas spec.md §3.1 names into one immutable
// (post-lowering) graph. sem.Lower is the only producer; codegen/table and
// codegen/query are the only consumers besides Validate itself.
type Plan struct {
	Tables  *Arena[Table]
	Scalars *Arena[ScalarType]
	Records *Arena[RecordType]
	Flows   *Arena[DataFlow]
	Ops     *Arena[Operator]
	Ctxs    *Arena[Context]
	Queries *Arena[Query]
}

// New returns an empty plan with one arena per entity kind, ready for a
// lowering pass to populate via Insert.
func New() *Plan {
	return &Plan{
		Tables:  NewArena[Table](),
		Scalars: NewArena[ScalarType](),
		Records: NewArena[RecordType](),
		Flows:   NewArena[DataFlow](),
		Ops:     NewArena[Operator](),
		Ctxs:    NewArena[Context](),
		Queries: NewArena[Query](),
	}
}

// ResolveScalar follows a ScalarRef chain to its terminal, non-Ref
// ScalarType, detecting cycles along the way (invariant 7).
func (p *Plan) ResolveScalar(k ScalarKey) (ScalarKey, ScalarType, error) {
	seen := map[ScalarKey]bool{}
	for {
		if seen[k] {
			return k, ScalarType{}, fmt.Errorf("plan: scalar ref cycle at %v", k)
		}
		seen[k] = true
		s, ok := p.Scalars.Get(k)
		if !ok {
			return k, ScalarType{}, fmt.Errorf("plan: dangling scalar key %v", k)
		}
		if s.Kind != ScalarRef {
			return k, s, nil
		}
		k = s.Ref
	}
}

// ResolveRecord follows a RecordRefKind chain to its terminal concrete
// RecordType, mirroring ResolveScalar for record-type aliasing.
func (p *Plan) ResolveRecord(k RecordKey) (RecordKey, RecordType, error) {
	seen := map[RecordKey]bool{}
	for {
		if seen[k] {
			return k, RecordType{}, fmt.Errorf("plan: record ref cycle at %v", k)
		}
		seen[k] = true
		r, ok := p.Records.Get(k)
		if !ok {
			return k, RecordType{}, fmt.Errorf("plan: dangling record key %v", k)
		}
		if r.Kind != RecordRefKind {
			return k, r, nil
		}
		k = r.Ref
	}
}

// DataEqual reports whether two Data payloads are equal after de-aliasing
// their record-type Ref indirections (invariant 2).
func (p *Plan) DataEqual(a, b Data) (bool, error) {
	ak, _, err := p.ResolveRecord(a.RecordType)
	if err != nil {
		return false, err
	}
	bk, _, err := p.ResolveRecord(b.RecordType)
	if err != nil {
		return false, err
	}
	return ak == bk && a.Stream == b.Stream, nil
}

// Validate checks the seven structural invariants of spec.md §3.2 against
// the plan as it stands. It is run once at the end of lowering (sem.Lower)
// and again, defensively, at the start of code generation.
func (p *Plan) Validate() error {
	if err := p.validateFlowStates(); err != nil {
		return err
	}
	if err := p.validateContexts(); err != nil {
		return err
	}
	if err := p.validateFieldNames(); err != nil {
		return err
	}
	if err := p.validateAliases(); err != nil {
		return err
	}
	if err := p.validateScalarRefAcyclic(); err != nil {
		return err
	}
	return nil
}

// invariant 1 and 2.
func (p *Plan) validateFlowStates() error {
	var err error
	p.Flows.Each(func(k FlowKey, f DataFlow) {
		if err != nil {
			return
		}
		if f.State != FlowConn {
			err = fmt.Errorf("plan: dataflow %v not fully connected (state %v)", k, f.State)
			return
		}
		from, ok := p.Ops.Get(f.From)
		if !ok {
			err = fmt.Errorf("plan: dataflow %v has dangling producer", k)
			return
		}
		to, ok := p.Ops.Get(f.To)
		if !ok {
			err = fmt.Errorf("plan: dataflow %v has dangling consumer", k)
			return
		}
		producedOK := false
		for _, o := range from.Outputs() {
			if o == k {
				producedOK = true
			}
		}
		consumedOK := false
		for _, in := range to.Inputs() {
			if in == k {
				consumedOK = true
			}
		}
		if !producedOK || !consumedOK {
			err = fmt.Errorf("plan: dataflow %v not referenced by its declared endpoints", k)
			return
		}
		eq, eqErr := p.DataEqual(f.With, f.With)
		if eqErr != nil {
			err = eqErr
			return
		}
		_ = eq // Data equality against itself only validates the Ref chain resolves.
	})
	return err
}

// invariants 3 and 4.
func (p *Plan) validateContexts() error {
	owner := map[OpKey]ContextKey{}
	var err error
	p.Ctxs.Each(func(ck ContextKey, c Context) {
		if err != nil {
			return
		}
		if c.Return != nil {
			found := false
			for _, ok := range c.Ops {
				if ok == *c.Return {
					found = true
					break
				}
			}
			if !found {
				err = fmt.Errorf("plan: context %v return operator not in its op list", ck)
				return
			}
		}
		for _, ok := range c.Ops {
			if prior, seen := owner[ok]; seen {
				err = fmt.Errorf("plan: operator %v shared between contexts %v and %v", ok, prior, ck)
				return
			}
			owner[ok] = ck
		}
	})
	return err
}

// invariant 5.
func (p *Plan) validateFieldNames() error {
	var err error
	p.Tables.Each(func(tk TableKey, t Table) {
		if err != nil {
			return
		}
		seen := map[string]bool{}
		for _, f := range t.Fields {
			if seen[f.Name] {
				err = fmt.Errorf("plan: table %v has duplicate field name %q", tk, f.Name)
				return
			}
			seen[f.Name] = true
		}
	})
	if err != nil {
		return err
	}
	internal := map[string]bool{}
	p.Records.Each(func(rk RecordKey, r RecordType) {
		if err != nil || r.Kind != RecordConcrete {
			return
		}
		for _, f := range r.Fields {
			if f.Kind != FieldInternal {
				continue
			}
			if internal[f.Name] {
				err = fmt.Errorf("plan: internal field name %q reused across record types", f.Name)
				return
			}
			internal[f.Name] = true
		}
	})
	return err
}

// invariant 6.
func (p *Plan) validateAliases() error {
	var err error
	p.Tables.Each(func(tk TableKey, t Table) {
		if err != nil {
			return
		}
		uniques := map[string]int{}
		for _, f := range t.Fields {
			if u := f.Column.Constraints.Unique; u != nil {
				uniques[u.Alias]++
			}
		}
		for alias, n := range uniques {
			if n != 1 {
				err = fmt.Errorf("plan: table %v unique alias %q claimed by %d columns", tk, alias, n)
				return
			}
		}
		preds := map[string]int{}
		for _, pr := range t.Constraints.Predicates {
			preds[pr.Alias]++
		}
		for alias, n := range preds {
			if n != 1 {
				err = fmt.Errorf("plan: table %v predicate alias %q declared %d times", tk, alias, n)
				return
			}
		}
	})
	return err
}

// invariant 7.
func (p *Plan) validateScalarRefAcyclic() error {
	var err error
	p.Scalars.Each(func(k ScalarKey, _ ScalarType) {
		if err != nil {
			return
		}
		if _, _, e := p.ResolveScalar(k); e != nil {
			err = e
		}
	})
	return err
}
