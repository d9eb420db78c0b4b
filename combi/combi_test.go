package combi_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/emdbc/combi"
	"github.com/syssam/emdbc/diag"
)

// cursor is a minimal mutable input used to exercise the kernel without
// depending on combi/lex.
type cursor struct {
	toks []string
	pos  int
}

func (c *cursor) next() (string, bool) {
	if c.pos >= len(c.toks) {
		return "", false
	}
	t := c.toks[c.pos]
	c.pos++
	return t, true
}

func litParser(want string) combi.Parser[cursor, string] {
	return func(in *cursor) combi.Result[string] {
		start := in.pos
		tok, ok := in.next()
		if !ok || tok != want {
			in.pos = start
			return combi.Err[string](nil, errors.New("expected "+want))
		}
		return combi.Suc(tok)
	}
}

func TestSequenceSuccess(t *testing.T) {
	in := &cursor{toks: []string{"table", "users"}}
	p := combi.Sequence(litParser("table"), litParser("users"))
	r := p(in)
	assert.True(t, r.IsSuc())
	assert.Equal(t, "table", r.Value().First)
	assert.Equal(t, "users", r.Value().Second)
}

func TestSequenceShortCircuitsOnErr(t *testing.T) {
	in := &cursor{toks: []string{"table", "oops"}}
	p := combi.Sequence(litParser("table"), litParser("users"))
	r := p(in)
	assert.True(t, r.IsErr())
}

func TestMapSuccess(t *testing.T) {
	in := &cursor{toks: []string{"x"}}
	p := combi.MapSuccess(litParser("x"), func(s string) int { return len(s) })
	r := p(in)
	assert.True(t, r.IsSuc())
	assert.Equal(t, 1, r.Value())
}

func TestRecoverDowngradesErrToCon(t *testing.T) {
	in := &cursor{toks: []string{"nope"}}
	p := combi.Recover(litParser("table"), func(f combi.Fatal) combi.Result[string] {
		return combi.Continue("<missing>", diag.List{diag.New(diag.Error, diag.CodeExpectedIdent, diag.Span{}, "missing table keyword")})
	})
	r := p(in)
	assert.True(t, r.IsCon())
	assert.Equal(t, "<missing>", r.Value())
	assert.Len(t, r.Cont().Diags, 1)
}

func TestChoicePicksBranch(t *testing.T) {
	cond := func(*cursor) combi.Result[bool] { return combi.Suc(true) }
	c := &cursor{toks: []string{"table"}}
	r := combi.Choice(cond, litParser("table"), litParser("query"))(c)
	assert.True(t, r.IsSuc())
	assert.Equal(t, "table", r.Value())
}

func TestChoiceConBecomesErr(t *testing.T) {
	cond := func(*cursor) combi.Result[bool] {
		return combi.Continue(true, diag.List{diag.New(diag.Warning, diag.CodeUnknownConnector, diag.Span{}, "ambiguous")})
	}
	c := &cursor{toks: []string{"table"}}
	r := combi.Choice(cond, litParser("table"), litParser("query"))(c)
	assert.True(t, r.IsErr())
}

func TestManyAppendSep(t *testing.T) {
	sepCount := 0
	sep := func(*cursor) combi.Result[bool] {
		sepCount++
		return combi.Suc(sepCount <= 3)
	}
	item := func(in *cursor) combi.Result[string] {
		tok, _ := in.next()
		return combi.Suc(tok)
	}
	c := &cursor{toks: []string{"a", "b", "c"}}
	r := combi.ManyAppendSep(sep, item)(c)
	assert.True(t, r.IsSuc())
	assert.Equal(t, []string{"a", "b", "c"}, r.Value())
}

func TestManyAppendSome(t *testing.T) {
	c := &cursor{toks: []string{"a", "b"}}
	p := func(in *cursor) combi.Result[*string] {
		tok, ok := in.next()
		if !ok {
			return combi.Suc[*string](nil)
		}
		return combi.Suc(&tok)
	}
	r := combi.ManyAppendSome(p)(c)
	assert.True(t, r.IsSuc())
	assert.Equal(t, []string{"a", "b"}, r.Value())
}

func TestOr(t *testing.T) {
	f := func(*cursor) combi.Result[bool] { return combi.Suc(false) }
	tr := func(*cursor) combi.Result[bool] { return combi.Suc(true) }
	c := &cursor{}
	r := combi.Or(f, tr)(c)
	assert.True(t, r.IsSuc())
	assert.True(t, r.Value())
}

func TestPipeSuccessBind(t *testing.T) {
	c := &cursor{toks: []string{"table", "users"}}
	p := combi.PipeSuccess(litParser("table"), func(string) combi.Parser[cursor, string] {
		return litParser("users")
	})
	r := p(c)
	assert.True(t, r.IsSuc())
	assert.Equal(t, "users", r.Value())
}

func TestSelectDispatchesByIndex(t *testing.T) {
	sel := func(in *cursor) combi.Result[int] {
		tok, _ := in.next()
		if tok == "table" {
			return combi.Suc(0)
		}
		return combi.Suc(1)
	}
	children := []combi.Parser[cursor, string]{litParser("users"), litParser("query")}
	pick := func(i int) (combi.Parser[cursor, string], bool) {
		if i < 0 || i >= len(children) {
			return nil, false
		}
		return children[i], true
	}
	onMiss := func(int) combi.Fatal { return combi.Fatal{Err: errors.New("no such branch")} }
	c := &cursor{toks: []string{"table", "users"}}
	r := combi.Select(sel, pick, onMiss)(c)
	assert.True(t, r.IsSuc())
	assert.Equal(t, "users", r.Value())
}

func TestMapErrTransformsFatalOnly(t *testing.T) {
	p := combi.MapErr(litParser("table"), func(f combi.Fatal) combi.Fatal {
		f.Err = errors.New("wrapped: " + f.Err.Error())
		return f
	})
	c := &cursor{toks: []string{"nope"}}
	r := p(c)
	assert.True(t, r.IsErr())
	assert.Contains(t, r.Fatal().Err.Error(), "wrapped:")
}

func TestLiftAdaptsInnerParser(t *testing.T) {
	type outer struct{ inner cursor }
	innerP := litParser("table")
	lifted := combi.Lift(innerP,
		func(o *outer) *cursor { return &o.inner },
		func(s string) int { return len(s) },
	)
	o := &outer{inner: cursor{toks: []string{"table"}}}
	r := lifted(o)
	assert.True(t, r.IsSuc())
	assert.Equal(t, 5, r.Value())
}

func TestRecursive(t *testing.T) {
	// A toy "a a a ... b" recursive grammar built purely to exercise the
	// lazy self-reference: each 'a' recurses, terminating on 'b'.
	var rec combi.Parser[cursor, int]
	rec = combi.Recursive(func(self combi.Parser[cursor, int]) combi.Parser[cursor, int] {
		return func(in *cursor) combi.Result[int] {
			tok, ok := in.next()
			if !ok {
				return combi.Err[int](nil, errors.New("eof"))
			}
			if tok == "b" {
				return combi.Suc(0)
			}
			r := self(in)
			if r.IsErr() {
				return r
			}
			return combi.Suc(r.Value() + 1)
		}
	})
	c := &cursor{toks: []string{"a", "a", "a", "b"}}
	r := rec(c)
	assert.True(t, r.IsSuc())
	assert.Equal(t, 3, r.Value())
}
