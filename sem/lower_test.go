package sem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/diag"
	"github.com/syssam/emdbc/frontend"
	"github.com/syssam/emdbc/sem"
)

func lowerSrc(t *testing.T, src string) (*frontend.File, diag.List) {
	t.Helper()
	f, diags := frontend.Parse([]byte(src), "t.edb")
	require.False(t, diags.HasErrors(), "parse errors: %+v", diags)
	return f, diags
}

func codes(diags diag.List) []diag.Code {
	var out []diag.Code
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestLowerValidProgramPassesValidate(t *testing.T) {
	src := `
table users {
	id: int64,
	email: string,
	balance: int64,
} @ [
	unique(email) as by_email,
	pred(balance >= 0) as non_negative,
]

query find_by_email(addr: string) {
	let u = ref(users) |> unique(email, addr) |> return();
}

query credit(id: int64, amount: int64) {
	let r = ref(users) |> unique(id, id) |> deref(row);
	use r |> update(users, row) {
		balance: row.balance + amount,
	} |> return();
}
`
	f, _ := lowerSrc(t, src)
	p, diags := sem.Lower(f)
	require.False(t, diags.HasErrors(), "lower errors: %+v", diags)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Tables.Len())
	assert.Equal(t, 2, p.Queries.Len())
	assert.NoError(t, p.Validate())
}

func TestLowerTableRedefined(t *testing.T) {
	src := `
table t { id: int64 }
table t { id: int64 }
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeTableRedefined)
}

func TestLowerFieldRedefined(t *testing.T) {
	src := `table t { id: int64, id: int64 }`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeFieldRedefined)
}

func TestLowerDuplicateUniqueAlias(t *testing.T) {
	src := `
table t {
	a: int64,
	b: int64,
} @ [
	unique(a) as dup,
	unique(b) as dup,
]`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeConstraintDupUnique)
}

func TestLowerDuplicatePredAlias(t *testing.T) {
	src := `
table t {
	a: int64,
} @ [
	pred(a >= 0) as dup,
	pred(a < 100) as dup,
]`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeConstraintDupPred)
}

func TestLowerDuplicateLimit(t *testing.T) {
	src := `
table t {
	a: int64,
} @ [
	limit(10) as l1,
	limit(20) as l2,
]`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeConstraintDupLimit)
}

func TestLowerConstraintUnknownField(t *testing.T) {
	src := `
table t {
	a: int64,
} @ [
	unique(missing) as by_missing,
]`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeConstraintUnknownField)
}

func TestLowerBadLimitExpr(t *testing.T) {
	src := `
table t {
	a: int64,
} @ [
	limit(not_a_number) as l1,
]`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeConstraintBadLimitExpr)
}

func TestLowerQueryRedefined(t *testing.T) {
	src := `
table t { id: int64 }
query q() {
	let u = ref(t) ~> return();
}
query q() {
	let u = ref(t) ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeQueryRedefined)
}

func TestLowerUndeclaredVariable(t *testing.T) {
	src := `
table t { id: int64 }
query q() {
	use missing ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeUndeclaredVariable)
}

func TestLowerVariableUsedTwice(t *testing.T) {
	src := `
table t { id: int64 }
query q() {
	let u = ref(t);
	use u ~> return();
	use u ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeVariableUsedTwice)
}

func TestLowerVariableUnusedWarning(t *testing.T) {
	src := `
table t { id: int64 }
query q() {
	let u = ref(t);
	let v = ref(t) ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	var found bool
	for _, d := range diags {
		if d.Code == diag.CodeVariableUnusedWarning {
			found = true
			assert.Equal(t, diag.Warning, d.Severity)
		}
	}
	assert.True(t, found, "expected unused-variable warning, got: %+v", diags)
}

func TestLowerConnectorMismatch(t *testing.T) {
	src := `
table t { id: int64 }
query q() {
	let u = ref(t) ~> count() ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeConnectorMismatch)
}

func TestLowerMultipleReturns(t *testing.T) {
	src := `
table t { id: int64 }
query q() {
	let u = ref(t);
	use u ~> return();
	let v = ref(t);
	use v ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeMultipleReturns)
}

func TestLowerCombineMissingIdentity(t *testing.T) {
	src := `
table sales { amount: int64 }
query totals() {
	let g = ref(sales) |> groupby(amount) {
		use inner ~> combine { total: amount } ~> return();
	} ~> collect() ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeCombineMissingIdentity)
}

func TestLowerSortFieldRepeated(t *testing.T) {
	src := `
table t { a: int64 }
query q() {
	let u = ref(t) |> sort(a, a) ~> collect() ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeSortFieldRepeated)
}

func TestLowerGroupByNestedProgram(t *testing.T) {
	src := `
table sales {
	category: string,
	amount: int64,
}

query totals() {
	let g = ref(sales) |> groupby(category) {
		use inner |> fold { total: 0 -> total + amount } ~> return();
	} |> collect() ~> return();
}
`
	f, _ := lowerSrc(t, src)
	p, diags := sem.Lower(f)
	require.False(t, diags.HasErrors(), "lower errors: %+v", diags)
	require.NoError(t, p.Validate())
	assert.Equal(t, 1, p.Queries.Len())
	assert.True(t, p.Ctxs.Len() >= 2, "expected a root context plus a nested groupby context")
}

func TestLowerUnknownTable(t *testing.T) {
	src := `
query q() {
	let u = ref(missing) ~> return();
}
`
	f, _ := lowerSrc(t, src)
	_, diags := sem.Lower(f)
	require.True(t, diags.HasErrors())
	assert.Contains(t, codes(diags), diag.CodeUnknownTable)
}
