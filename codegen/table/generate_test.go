package table_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/codegen/table"
	"github.com/syssam/emdbc/plan"
)

func buildUsersTable(t *testing.T) (*plan.Plan, plan.TableKey) {
	t.Helper()
	p := plan.New()

	idType := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "int64"})
	emailType := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "string"})
	ageType := p.Scalars.Insert(plan.ScalarType{Kind: plan.ScalarHost, HostExpr: "int"})

	tk := p.Tables.Insert(plan.Table{
		Name: "user",
		Fields: []plan.Field{
			{Name: "id", Column: plan.Column{DataType: idType}},
			{Name: "email", Column: plan.Column{
				DataType:    emailType,
				Constraints: plan.ColumnConstraints{Unique: &plan.UniqueConstraint{Alias: "by_email"}},
			}},
			{Name: "age", Column: plan.Column{DataType: ageType}},
		},
		Constraints: plan.RowConstraints{
			Limit:      &plan.LimitConstraint{Alias: "cap", Max: 1000},
			Predicates: []plan.PredConstraint{{Alias: "adult", Expr: "age >= 18"}},
		},
	})
	return p, tk
}

func TestGenerateRendersTableModule(t *testing.T) {
	p, tk := buildUsersTable(t)
	pkgOf := table.PackageNames(p)

	f, err := table.Generate(p, tk, pkgOf, "github.com/syssam/emdbc/example", table.SelectorMutability)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf))
	src := buf.String()

	assert.Contains(t, src, "type Row struct")
	assert.Contains(t, src, "Email string")
	assert.Contains(t, src, "func (t *Table) Insert(row Row) (Key, error)")
	assert.Contains(t, src, "func (t *Table) Update(k Key, next Row) error")
	assert.Contains(t, src, "func (t *Table) Delete(k Key) error")
	assert.Contains(t, src, "func (t *Table) Commit()")
	assert.Contains(t, src, "func (t *Table) Abort()")
	assert.Contains(t, src, "NewRowLimitError")
	assert.Contains(t, src, "NewPredicateError")
	assert.Contains(t, src, "NewUniqueError")
	assert.Contains(t, src, "uniqueFold")
	assert.Contains(t, src, "cases.Fold()")
}

func TestGenerateAllCoversEveryTable(t *testing.T) {
	p, _ := buildUsersTable(t)
	out, err := table.GenerateAll(p, "github.com/syssam/emdbc/example", table.SelectorThunderdome, 2)
	require.NoError(t, err)
	require.Len(t, out, 1)
	_, ok := out["users"]
	assert.True(t, ok)
}

func TestParseSelector(t *testing.T) {
	sel, ok := table.ParseSelector("columnar")
	require.True(t, ok)
	assert.Equal(t, table.SelectorColumnar, sel)

	_, ok = table.ParseSelector("bogus")
	assert.False(t, ok)
}
