package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/emdbc/plan"
)

func TestOpKindString(t *testing.T) {
	assert.Equal(t, "Join", plan.OpJoin.String())
	assert.Equal(t, "Discard", plan.OpDiscard.String())
	assert.Equal(t, "Unknown", plan.OpKind(999).String())
}

func TestOperatorTouchesReadsVsMutates(t *testing.T) {
	p := plan.New()
	tk := p.Tables.Insert(plan.Table{Name: "users"})

	scan := plan.Operator{Kind: plan.OpScanRefs, Table: tk}
	touches := scan.Touches()
	assert := assert.New(t)
	assert.Len(touches, 1)
	assert.Equal(plan.Reads, touches[0].Mutation)

	ins := plan.Operator{Kind: plan.OpInsert, Table: tk}
	touches = ins.Touches()
	assert.Len(touches, 1)
	assert.Equal(plan.Mutates, touches[0].Mutation)

	mp := plan.Operator{Kind: plan.OpMap}
	assert.Empty(mp.Touches())
}

func TestOperatorInputsOutputsByShape(t *testing.T) {
	p := plan.New()
	f1 := p.Flows.Insert(plan.DataFlow{})
	f2 := p.Flows.Insert(plan.DataFlow{})
	f3 := p.Flows.Insert(plan.DataFlow{})

	row := plan.Operator{Kind: plan.OpRow, Out: f1}
	assert.Empty(t, row.Inputs())
	assert.Equal(t, []plan.FlowKey{f1}, row.Outputs())

	fork := plan.Operator{Kind: plan.OpFork, In: f1, Outs: []plan.FlowKey{f2, f3}}
	assert.Equal(t, []plan.FlowKey{f1}, fork.Inputs())
	assert.Equal(t, []plan.FlowKey{f2, f3}, fork.Outputs())

	union := plan.Operator{Kind: plan.OpUnion, Ins: []plan.FlowKey{f1, f2}, Out: f3}
	assert.Equal(t, []plan.FlowKey{f1, f2}, union.Inputs())
	assert.Equal(t, []plan.FlowKey{f3}, union.Outputs())

	join := plan.Operator{Kind: plan.OpJoin, Left: f1, Right: f2, Out: f3}
	assert.Equal(t, []plan.FlowKey{f1, f2}, join.Inputs())

	ret := plan.Operator{Kind: plan.OpReturn, In: f1}
	assert.Empty(t, ret.Outputs())
}

func TestOperatorCanFail(t *testing.T) {
	assert.True(t, (plan.Operator{Kind: plan.OpInsert}).CanFail())
	assert.True(t, (plan.Operator{Kind: plan.OpDeRef}).CanFail())
	assert.False(t, (plan.Operator{Kind: plan.OpMap}).CanFail())
}
