package query_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/codegen/query"
	"github.com/syssam/emdbc/codegen/table"
	"github.com/syssam/emdbc/plan"
)

// buildActiveUsersQuery hand-builds a plan with one table and one query,
// exercising the ScanRefs -> DeRef -> Filter -> Collect -> Return chain
// the way sem's ctxBuilder would link it (spec.md §3.1's DataFlow
// lifecycle: every edge promoted Incomplete -> Conn as its producer and
// consumer are both known).
func buildActiveUsersQuery(t *testing.T) (*plan.Plan, plan.QueryKey) {
	t.Helper()
	p := plan.New()

	idType := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "int64"})
	nameType := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "string"})
	activeType := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "bool"})

	tk := p.Tables.Insert(plan.Table{
		Name: "user",
		Fields: []plan.Field{
			{Name: "id", Column: plan.Column{DataType: idType}},
			{Name: "name", Column: plan.Column{DataType: nameType}},
			{Name: "active", Column: plan.Column{DataType: activeType}},
		},
	})

	anyRec := p.Records.Insert(plan.RecordType{Kind: plan.RecordConcrete})
	data := plan.Data{RecordType: anyRec, Stream: true}

	link := func(prev plan.OpKey, next plan.OpKey) plan.FlowKey {
		fk := p.Flows.Insert(plan.DataFlow{State: plan.FlowIncomplete, From: prev, With: data})
		op := p.Ops.MustGet(prev)
		op.Out = fk
		p.Ops.Set(prev, op)
		f := p.Flows.MustGet(fk)
		f.To = next
		f.State = plan.FlowConn
		p.Flows.Set(fk, f)
		return fk
	}

	scanOp := p.Ops.Insert(plan.Operator{Kind: plan.OpScanRefs, Table: tk})
	derefOp := p.Ops.Insert(plan.Operator{Kind: plan.OpDeRef, Named: "row"})
	filterOp := p.Ops.Insert(plan.Operator{Kind: plan.OpFilter, FilterExpr: "row.active"})
	collectOp := p.Ops.Insert(plan.Operator{Kind: plan.OpCollect})
	returnOp := p.Ops.Insert(plan.Operator{Kind: plan.OpReturn})

	f0 := link(scanOp, derefOp)
	derefOpVal := p.Ops.MustGet(derefOp)
	derefOpVal.In = f0
	p.Ops.Set(derefOp, derefOpVal)

	f1 := link(derefOp, filterOp)
	filterOpVal := p.Ops.MustGet(filterOp)
	filterOpVal.In = f1
	p.Ops.Set(filterOp, filterOpVal)

	f2 := link(filterOp, collectOp)
	collectOpVal := p.Ops.MustGet(collectOp)
	collectOpVal.In = f2
	p.Ops.Set(collectOp, collectOpVal)

	f3 := link(collectOp, returnOp)
	returnOpVal := p.Ops.MustGet(returnOp)
	returnOpVal.In = f3
	p.Ops.Set(returnOp, returnOpVal)

	ctx := p.Ctxs.Insert(plan.Context{
		Ops:    []plan.OpKey{scanOp, derefOp, filterOp, collectOp, returnOp},
		Return: &returnOp,
	})
	qk := p.Queries.Insert(plan.Query{Name: "activeUsers", Root: ctx})
	return p, qk
}

func TestGenerateRendersQueryMethod(t *testing.T) {
	p, qk := buildActiveUsersQuery(t)
	pkgOf := table.PackageNames(p)

	f, err := query.Generate(p, qk, pkgOf, "github.com/syssam/emdbc/example", "db", "Database", "d")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf))
	src := buf.String()

	assert.Contains(t, src, "package db")
	assert.Contains(t, src, "func (d *Database) ActiveUsers(")
	assert.Contains(t, src, "d.Users.Scan()")
	assert.Contains(t, src, "d.Users.Get(")
	assert.Contains(t, src, ".Active")
	assert.Contains(t, src, "runtime.Filter(")
	assert.Contains(t, src, "runtime.ExportStream(")
}

func TestGenerateAllCoversEveryQuery(t *testing.T) {
	p, _ := buildActiveUsersQuery(t)
	pkgOf := table.PackageNames(p)

	out, err := query.GenerateAll(p, pkgOf, "github.com/syssam/emdbc/example", "db", "Database", "d", 2)
	require.NoError(t, err)
	require.Len(t, out, 1)
	_, ok := out["activeUsers"]
	assert.True(t, ok)
}
