package backend_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/backend"
	"github.com/syssam/emdbc/diag"
	"github.com/syssam/emdbc/frontend"
	"github.com/syssam/emdbc/plan"
)

// buildActiveUsersPlan mirrors codegen/query's own test fixture: one
// table, one query deref-filtering over it, linked the way sem's
// ctxBuilder would (spec.md §3.1's DataFlow lifecycle).
func buildActiveUsersPlan(t *testing.T) *plan.Plan {
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

	link := func(prev, next plan.OpKey) {
		fk := p.Flows.Insert(plan.DataFlow{State: plan.FlowIncomplete, From: prev, With: data})
		op := p.Ops.MustGet(prev)
		op.Out = fk
		p.Ops.Set(prev, op)
		f := p.Flows.MustGet(fk)
		f.To = next
		f.State = plan.FlowConn
		p.Flows.Set(fk, f)

		nextOp := p.Ops.MustGet(next)
		nextOp.In = fk
		p.Ops.Set(next, nextOp)
	}

	scanOp := p.Ops.Insert(plan.Operator{Kind: plan.OpScanRefs, Table: tk})
	derefOp := p.Ops.Insert(plan.Operator{Kind: plan.OpDeRef, Named: "row"})
	filterOp := p.Ops.Insert(plan.Operator{Kind: plan.OpFilter, FilterExpr: "row.active"})
	collectOp := p.Ops.Insert(plan.Operator{Kind: plan.OpCollect})
	returnOp := p.Ops.Insert(plan.Operator{Kind: plan.OpReturn})

	link(scanOp, derefOp)
	link(derefOp, filterOp)
	link(filterOp, collectOp)
	link(collectOp, returnOp)

	ctx := p.Ctxs.Insert(plan.Context{
		Ops:    []plan.OpKey{scanOp, derefOp, filterOp, collectOp, returnOp},
		Return: &returnOp,
	})
	p.Queries.Insert(plan.Query{Name: "activeUsers", Root: ctx})
	return p
}

func TestFacadeGenerateRendersFullTree(t *testing.T) {
	p := buildActiveUsersPlan(t)

	out, diags := backend.Facade{}.Generate(p, "github.com/syssam/emdbc/example", backend.New())
	require.Empty(t, diags)

	require.Contains(t, out.TableFiles, "users")
	require.NotNil(t, out.DatabaseFile)
	require.Contains(t, out.QueryFiles, "activeUsers")
	assert.Nil(t, out.InterfaceFile)

	var dbSrc bytes.Buffer
	require.NoError(t, out.DatabaseFile.Render(&dbSrc))
	assert.Contains(t, dbSrc.String(), "type datastore struct")
	assert.Contains(t, dbSrc.String(), "User")
	assert.Contains(t, dbSrc.String(), "func NewDatastore()")

	var querySrc bytes.Buffer
	require.NoError(t, out.QueryFiles["activeUsers"].Render(&querySrc))
	assert.Contains(t, querySrc.String(), "func (d *datastore) ActiveUsers(")
}

func TestFacadeGenerateEmitsCollaboratorHook(t *testing.T) {
	p := buildActiveUsersPlan(t)

	opts := backend.New(backend.WithInterface("Store"), backend.WithPub(true))
	out, diags := backend.Facade{}.Generate(p, "github.com/syssam/emdbc/example", opts)
	require.Empty(t, diags)
	require.NotNil(t, out.InterfaceFile)

	var src bytes.Buffer
	require.NoError(t, out.InterfaceFile.Render(&src))
	assert.Contains(t, src.String(), "type Store interface")
	assert.Contains(t, src.String(), "ActiveUsers(")
}

func TestFromBackendDeclRejectsUnknownOption(t *testing.T) {
	bd := frontend.BackendDecl{
		Name:    "impl",
		Backend: "Serialized",
		Options: map[string]string{"bogus": "1"},
	}
	_, diags := backend.FromBackendDecl(bd)
	require.NotEmpty(t, diags)
	assert.Equal(t, diag.CodeUnknownBackendOption, diags[0].Code)
}

func TestFromBackendDeclParsesKnownOptions(t *testing.T) {
	bd := frontend.BackendDecl{
		Name:    "impl",
		Backend: "Serialized",
		Options: map[string]string{
			"op_impl": "Parallel",
			"pub":     "on",
			"ds_name": "Store",
		},
	}
	opts, diags := backend.FromBackendDecl(bd)
	require.Empty(t, diags)
	assert.Equal(t, "Parallel", opts.Profile)
	assert.True(t, opts.Pub)
	assert.Equal(t, "Store", opts.DSName)
}
