package diag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/emdbc/diag"
)

func span(line int) diag.Span {
	return diag.Span{File: "t.edb", Start: diag.Pos{Line: line, Col: 1}, End: diag.Pos{Line: line, Col: 5}}
}

func TestSinkAccumulates(t *testing.T) {
	var s diag.Sink
	s.Errorf(diag.CodeTableRedefined, span(1), "table %q redefined", "users")
	s.Warnf(diag.CodeVariableUnusedWarning, span(2), "unused variable %q", "x")

	list := s.List()
	assert.Len(t, list, 2)
	assert.True(t, list.HasErrors())
	assert.Len(t, list.Errors(), 1)
	assert.Equal(t, diag.CodeTableRedefined, list[0].Code)
	assert.Equal(t, `table "users" redefined`, list[0].Message)
}

func TestDiagnosticWithSub(t *testing.T) {
	d := diag.New(diag.Error, diag.CodeTableRedefined, span(3), "table %q redefined", "orders").
		WithSub(span(1), "previously defined here")
	assert.Len(t, d.Subs, 1)
	assert.Equal(t, "previously defined here", d.Subs[0].Note)
	assert.Contains(t, d.Error(), "E0201")
}

func TestMerge(t *testing.T) {
	var a, b diag.Sink
	a.Errorf(diag.CodeTableRedefined, span(1), "a")
	b.Errorf(diag.CodeFieldRedefined, span(2), "b")
	a.Merge(&b)
	assert.Len(t, a.List(), 2)
	assert.True(t, a.HasErrors())
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", diag.Warning.String())
	assert.Equal(t, "error", diag.Error.String())
}
