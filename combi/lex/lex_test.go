package lex_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/emdbc/combi"
	"github.com/syssam/emdbc/combi/lex"
)

func TestLexBasicTable(t *testing.T) {
	src := `table users { name: String, credits: i32 } @ [ unique(name) as by_name ]`
	toks, diags := lex.Lex([]byte(src), "t.edb")
	require.Empty(t, diags)
	require.NotEmpty(t, toks)
	assert.Equal(t, lex.KindIdent, toks[0].Kind)
	assert.Equal(t, "table", toks[0].Text)
	assert.Equal(t, lex.KindEOF, toks[len(toks)-1].Kind)
}

func TestLexConnectors(t *testing.T) {
	toks, diags := lex.Lex([]byte("a ~> b |> c"), "t.edb")
	require.Empty(t, diags)
	var conns []string
	for _, tok := range toks {
		if tok.Kind == lex.KindPunct {
			conns = append(conns, tok.Text)
		}
	}
	assert.Equal(t, []string{"~>", "|>"}, conns)
}

func TestLexLiterals(t *testing.T) {
	toks, diags := lex.Lex([]byte(`42 3.5 "hi" true false`), "t.edb")
	require.Empty(t, diags)
	kinds := make([]lex.Kind, 0, 5)
	for _, tok := range toks {
		if tok.Kind != lex.KindEOF {
			kinds = append(kinds, tok.Kind)
		}
	}
	assert.Equal(t, []lex.Kind{lex.KindInt, lex.KindFloat, lex.KindString, lex.KindBool, lex.KindBool}, kinds)
}

func TestLexUnterminatedString(t *testing.T) {
	_, diags := lex.Lex([]byte(`"unterminated`), "t.edb")
	require.Len(t, diags, 1)
}

func TestLexComment(t *testing.T) {
	toks, diags := lex.Lex([]byte("table users // a comment\n{ }"), "t.edb")
	require.Empty(t, diags)
	assert.Equal(t, "table", toks[0].Text)
	assert.Equal(t, "users", toks[1].Text)
	assert.Equal(t, "{", toks[2].Text)
}

func TestStreamPrimitives(t *testing.T) {
	toks, _ := lex.Lex([]byte(`table users`), "t.edb")
	s := lex.New(toks, "t.edb")

	r := lex.GetIdent(s)
	require.True(t, r.IsSuc())
	assert.Equal(t, "table", r.Value().Text)

	assert.True(t, lex.PeekIdent("users")(s).Value())
	r2 := lex.MatchIdent("users")(s)
	require.True(t, r2.IsSuc())
	assert.True(t, s.IsEmpty())
}

func abCombinator(in *lex.TokenStream) combi.Result[[]string] {
	var got []string
	r1 := lex.GetIdent(in)
	if !r1.IsSuc() {
		return combi.Err[[]string](nil, fmt.Errorf("expected identifier"))
	}
	got = append(got, r1.Value().Text)
	lex.MatchPunct(",")(in)
	r2 := lex.GetIdent(in)
	if !r2.IsSuc() {
		return combi.Err[[]string](nil, fmt.Errorf("expected identifier"))
	}
	got = append(got, r2.Value().Text)
	return combi.Suc(got)
}

func TestInGroupHappyPath(t *testing.T) {
	toks, _ := lex.Lex([]byte(`{ a, b }`), "t.edb")
	s := lex.New(toks, "t.edb")

	r := lex.InGroup(lex.Brace, abCombinator)(s)
	require.True(t, r.IsSuc())
	assert.Equal(t, []string{"a", "b"}, r.Value())
	assert.True(t, s.IsEmpty())
}

func TestInGroupWrongDelimRecovers(t *testing.T) {
	toks, _ := lex.Lex([]byte(`( a )`), "t.edb")
	s := lex.New(toks, "t.edb")
	r := lex.InGroup(lex.Brace, abCombinator)(s)
	assert.True(t, r.IsCon())
}

func TestCollectUntilStopsAtTopLevelPunct(t *testing.T) {
	toks, _ := lex.Lex([]byte(`a b c ; d`), "t.edb")
	s := lex.New(toks, "t.edb")
	stop := lex.PeekPunct(";")
	r := lex.CollectUntil(stop)(s)
	require.True(t, r.IsSuc())
	sub := r.Value()
	var words []string
	for {
		ir := lex.GetIdent(sub)
		if !ir.IsSuc() {
			break
		}
		words = append(words, ir.Value().Text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, words)
	assert.True(t, lex.PeekPunct(";")(s).Value())
}
