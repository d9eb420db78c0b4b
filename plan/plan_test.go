package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/plan"
)

// buildValidPlan constructs the smallest plan that satisfies all seven
// invariants: one table, one record type, a single Row -> Return context.
func buildValidPlan(t *testing.T) *plan.Plan {
	t.Helper()
	p := plan.New()

	scalar := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "int64"})
	rec := p.Records.Insert(plan.RecordType{
		Kind: plan.RecordConcrete,
		Fields: []plan.RecordField{
			{Name: "id", Kind: plan.FieldUser, Type: scalar},
		},
	})

	tk := p.Tables.Insert(plan.Table{
		Name: "users",
		Fields: []plan.Field{
			{Name: "id", Column: plan.Column{DataType: scalar}},
		},
	})
	_ = tk

	flow := p.Flows.Insert(plan.DataFlow{State: plan.FlowNull})

	rowOp := p.Ops.Insert(plan.Operator{Kind: plan.OpRow, Out: flow})
	retOp := p.Ops.Insert(plan.Operator{Kind: plan.OpReturn, In: flow})

	ok := p.Flows.Set(flow, plan.DataFlow{
		State: plan.FlowConn,
		From:  rowOp,
		To:    retOp,
		With:  plan.Data{RecordType: rec, Stream: false},
	})
	require.True(t, ok)

	p.Ctxs.Insert(plan.Context{
		Ops:    []plan.OpKey{rowOp, retOp},
		Return: &retOp,
	})

	return p
}

func TestValidatePassesOnWellFormedPlan(t *testing.T) {
	p := buildValidPlan(t)
	assert.NoError(t, p.Validate())
}

func TestValidateRejectsIncompleteFlow(t *testing.T) {
	p := plan.New()
	f := p.Flows.Insert(plan.DataFlow{State: plan.FlowIncomplete})
	p.Ops.Insert(plan.Operator{Kind: plan.OpRow, Out: f})
	assert.Error(t, p.Validate())
}

func TestValidateRejectsSharedOperatorAcrossContexts(t *testing.T) {
	p := buildValidPlan(t)
	var shared plan.OpKey
	p.Ops.Each(func(k plan.OpKey, _ plan.Operator) { shared = k })
	p.Ctxs.Insert(plan.Context{Ops: []plan.OpKey{shared}})
	assert.Error(t, p.Validate())
}

func TestValidateRejectsDuplicateUniqueAlias(t *testing.T) {
	p := plan.New()
	scalar := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "string"})
	p.Tables.Insert(plan.Table{
		Name: "accounts",
		Fields: []plan.Field{
			{Name: "email", Column: plan.Column{DataType: scalar, Constraints: plan.ColumnConstraints{
				Unique: &plan.UniqueConstraint{Alias: "by_email"},
			}}},
			{Name: "handle", Column: plan.Column{DataType: scalar, Constraints: plan.ColumnConstraints{
				Unique: &plan.UniqueConstraint{Alias: "by_email"},
			}}},
		},
	})
	assert.Error(t, p.Validate())
}

func TestValidateRejectsScalarRefCycle(t *testing.T) {
	p := plan.New()
	a := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarRef})
	b := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarRef, Ref: a})
	p.Scalars.Set(a, plan.ScalarType{Kind: plan.ScalarRef, Ref: b})
	assert.Error(t, p.Validate())
}

func TestResolveScalarFollowsRefChain(t *testing.T) {
	p := plan.New()
	host := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "int64"})
	alias := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarRef, Ref: host})

	resolvedKey, resolved, err := p.ResolveScalar(alias)
	require.NoError(t, err)
	assert.Equal(t, host, resolvedKey)
	assert.Equal(t, "int64", resolved.HostExpr)
}

func TestDataEqualDeAliasesRecordRefs(t *testing.T) {
	p := plan.New()
	scalar := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "int64"})
	concrete := p.Records.Insert(plan.RecordType{
		Kind:   plan.RecordConcrete,
		Fields: []plan.RecordField{{Name: "id", Kind: plan.FieldUser, Type: scalar}},
	})
	alias := p.Records.Insert(plan.RecordType{Kind: plan.RecordRefKind, Ref: concrete})

	eq, err := p.DataEqual(
		plan.Data{RecordType: concrete, Stream: true},
		plan.Data{RecordType: alias, Stream: true},
	)
	require.NoError(t, err)
	assert.True(t, eq)
}
