package frontend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/frontend"
)

const sample = `
table users {
	id: int64,
	email: string,
	balance: int64,
} @ [
	unique(email) as by_email,
	pred(balance >= 0) as non_negative,
	limit(10000) as max_rows,
]

query find_by_email(addr: string) {
	let u = ref(users) |> unique(email, addr) ~> return();
}

query credit(id: int64, amount: int64) {
	let r = ref(users) ~> unique(id, id) ~> deref(row);
	use r ~> update(id, row) {
		balance: row.balance + amount,
	} ~> return();
}

impl users_backend as sqlite_compat {
	profile: parallel,
	selector: thunderdome,
};
`

func TestParseSampleProgram(t *testing.T) {
	f, diags := frontend.Parse([]byte(sample), "sample.edb")
	require.False(t, diags.HasErrors(), "unexpected diagnostics: %+v", diags)

	require.Len(t, f.Tables, 1)
	tbl := f.Tables[0]
	assert.Equal(t, "users", tbl.Name)
	require.Len(t, tbl.Fields, 3)
	assert.Equal(t, "id", tbl.Fields[0].Name)
	assert.Equal(t, "int64", tbl.Fields[0].Type.Source)

	require.Len(t, tbl.Constraints, 3)
	assert.Equal(t, frontend.ConstraintUnique, tbl.Constraints[0].Kind)
	assert.Equal(t, "by_email", tbl.Constraints[0].Alias)
	assert.Equal(t, frontend.ConstraintPred, tbl.Constraints[1].Kind)
	assert.Equal(t, frontend.ConstraintLimit, tbl.Constraints[2].Kind)

	require.Len(t, f.Queries, 2)
	q0 := f.Queries[0]
	assert.Equal(t, "find_by_email", q0.Name)
	require.Len(t, q0.Params, 1)
	assert.Equal(t, "addr", q0.Params[0].Name)
	require.Len(t, q0.Body, 1)
	assert.Equal(t, "u", q0.Body[0].Let)
	require.Len(t, q0.Body[0].Ops, 3)
	assert.Equal(t, "ref", q0.Body[0].Ops[0].Name)
	assert.Equal(t, "unique", q0.Body[0].Ops[1].Name)
	assert.Equal(t, "return", q0.Body[0].Ops[2].Name)
	assert.Equal(t, frontend.ConnStream, q0.Body[0].Conns[1])

	q1 := f.Queries[1]
	require.Len(t, q1.Body, 2)
	assert.Equal(t, "r", q1.Body[1].Use)
	require.Len(t, q1.Body[1].Ops, 2)
	assert.Equal(t, "update", q1.Body[1].Ops[0].Name)
	require.Len(t, q1.Body[1].Ops[0].FieldExprs, 1)
	assert.Equal(t, "balance", q1.Body[1].Ops[0].FieldExprs[0].Field)
	assert.Equal(t, "row.balance + amount", q1.Body[1].Ops[0].FieldExprs[0].Expr)

	require.Len(t, f.Backends, 1)
	b := f.Backends[0]
	assert.Equal(t, "users_backend", b.Name)
	assert.Equal(t, "sqlite_compat", b.Backend)
	assert.Equal(t, "parallel", b.Options["profile"])
	assert.Equal(t, "thunderdome", b.Options["selector"])
}

func TestParseRecoversFromUnknownTopLevel(t *testing.T) {
	_, diags := frontend.Parse([]byte("bogus thing here"), "bad.edb")
	assert.True(t, diags.HasErrors())
}

func TestParseTableWithoutConstraints(t *testing.T) {
	src := `table t { id: int64 }`
	f, diags := frontend.Parse([]byte(src), "t.edb")
	require.False(t, diags.HasErrors())
	require.Len(t, f.Tables, 1)
	assert.Equal(t, "id", f.Tables[0].Fields[0].Name)
}

func TestParseGroupByNestedBody(t *testing.T) {
	src := `
query totals() {
	let g = ref(sales) |> groupby(category) {
		use inner ~> fold { total: 0 -> total + amount } ~> return();
	} ~> collect() ~> return();
}
`
	f, diags := frontend.Parse([]byte(src), "g.edb")
	require.False(t, diags.HasErrors())
	require.Len(t, f.Queries, 1)
	groupByOp := f.Queries[0].Body[0].Ops[1]
	assert.Equal(t, "groupby", groupByOp.Name)
	require.Len(t, groupByOp.Body, 1)
	require.Len(t, groupByOp.Body[0].Ops, 2)
	assert.Equal(t, "fold", groupByOp.Body[0].Ops[0].Name)
	assert.Equal(t, "0", groupByOp.Body[0].Ops[0].FieldExprs[0].Expr)
	assert.Equal(t, "total + amount", groupByOp.Body[0].Ops[0].FieldExprs[0].Aux)
}
