package lex

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/syssam/emdbc/combi"
	"github.com/syssam/emdbc/diag"
)

// TokenStream is a peekable, span-preserving cursor over a Token slice —
// the host-token-tree wrapper spec.md §4.2 describes. It holds the
// unconsumed tail and the span of the previously consumed token so
// end-of-input errors can still point somewhere useful.
type TokenStream struct {
	toks     []Token
	pos      int
	lastSpan diag.Span
	file     string
}

// New wraps a flat token slice (as produced by Lex) in a TokenStream.
func New(toks []Token, file string) *TokenStream {
	return &TokenStream{toks: toks, file: file}
}

func (s *TokenStream) cur() Token {
	if s.pos >= len(s.toks) {
		if len(s.toks) > 0 {
			return s.toks[len(s.toks)-1] // EOF sentinel
		}
		return Token{Kind: KindEOF}
	}
	return s.toks[s.pos]
}

func (s *TokenStream) bump() Token {
	t := s.cur()
	if s.pos < len(s.toks) {
		s.pos++
	}
	s.lastSpan = t.Span
	return t
}

// IsEmpty reports whether only the EOF sentinel remains.
func (s *TokenStream) IsEmpty() bool { return s.cur().Kind == KindEOF }

// Peek returns the next pending token without consuming it, for callers
// (frontend's grammar driver) that need to dispatch on token shape before
// choosing which C1/C2 primitive to run.
func (s *TokenStream) Peek() Token { return s.cur() }

// LastSpan returns the span of the most recently consumed token, used to
// anchor "unexpected end of input" diagnostics usefully.
func (s *TokenStream) LastSpan() diag.Span { return s.lastSpan }

func eofDiag(s *TokenStream, want string) diag.Diagnostic {
	sp := s.cur().Span
	if s.IsEmpty() {
		sp = s.lastSpan
	}
	return diag.New(diag.Error, diag.CodeUnexpectedEOF, sp, "expected %s, found end of input", want)
}

// GetIdent consumes and returns any identifier token.
func GetIdent(s *TokenStream) combi.Result[Token] {
	t := s.cur()
	if t.Kind != KindIdent {
		if s.IsEmpty() {
			return combi.Err[Token](nil, fmt.Errorf("%s", eofDiag(s, "identifier").Message))
		}
		return combi.Err[Token](nil, fmt.Errorf("expected identifier, found %s %q at %s", t.Kind, t.Text, t.Span))
	}
	s.bump()
	return combi.Suc(t)
}

// MatchIdent consumes an identifier equal to text, or fails fatally.
func MatchIdent(text string) combi.Parser[TokenStream, Token] {
	return func(s *TokenStream) combi.Result[Token] {
		t := s.cur()
		if t.Kind != KindIdent || t.Text != text {
			return combi.Err[Token](nil, fmt.Errorf("expected %q, found %q at %s", text, t.Text, t.Span))
		}
		s.bump()
		return combi.Suc(t)
	}
}

// PeekIdent reports (without consuming) whether the current token is the
// identifier text.
func PeekIdent(text string) combi.Parser[TokenStream, bool] {
	return func(s *TokenStream) combi.Result[bool] {
		t := s.cur()
		return combi.Suc(t.Kind == KindIdent && t.Text == text)
	}
}

// GetPunct consumes and returns any punctuation token.
func GetPunct(s *TokenStream) combi.Result[Token] {
	t := s.cur()
	if t.Kind != KindPunct {
		return combi.Err[Token](nil, fmt.Errorf("expected punctuation, found %s %q at %s", t.Kind, t.Text, t.Span))
	}
	s.bump()
	return combi.Suc(t)
}

// MatchPunct consumes a punctuation token with the given text (e.g. "~>",
// ",", "@").
func MatchPunct(text string) combi.Parser[TokenStream, Token] {
	return func(s *TokenStream) combi.Result[Token] {
		t := s.cur()
		if t.Kind != KindPunct || t.Text != text {
			return combi.Err[Token](nil, fmt.Errorf("expected %q, found %q at %s", text, t.Text, t.Span))
		}
		s.bump()
		return combi.Suc(t)
	}
}

// PeekPunct reports (without consuming) whether the current token is the
// punctuation text.
func PeekPunct(text string) combi.Parser[TokenStream, bool] {
	return func(s *TokenStream) combi.Result[bool] {
		t := s.cur()
		return combi.Suc(t.Kind == KindPunct && t.Text == text)
	}
}

// GetLiteral consumes and returns any literal token (int/float/string/bool).
func GetLiteral(s *TokenStream) combi.Result[Token] {
	t := s.cur()
	switch t.Kind {
	case KindInt, KindFloat, KindString, KindBool:
		s.bump()
		return combi.Suc(t)
	default:
		return combi.Err[Token](nil, fmt.Errorf("expected literal, found %s %q at %s", t.Kind, t.Text, t.Span))
	}
}

// Terminal succeeds only at end of input.
func Terminal(s *TokenStream) combi.Result[struct{}] {
	if s.IsEmpty() {
		return combi.Suc(struct{}{})
	}
	return combi.Err[struct{}](nil, fmt.Errorf("expected end of input, found %q at %s", s.cur().Text, s.cur().Span))
}

var delimOpen = map[Delim]string{Paren: "(", Brace: "{", Bracket: "["}
var delimClose = map[Delim]string{Paren: ")", Brace: "}", Bracket: "]"}
var openToDelim = map[string]Delim{"(": Paren, "{": Brace, "[": Bracket}

// CollectUntil accumulates tokens into a sub-stream until stop succeeds
// (without consuming the stop token), then yields that sub-stream as a
// success value. It tracks bracket nesting so a `;` or `,` inside a nested
// group never ends the collection early.
func CollectUntil(stop combi.Parser[TokenStream, bool]) combi.Parser[TokenStream, *TokenStream] {
	return func(s *TokenStream) combi.Result[*TokenStream] {
		start := s.pos
		depth := 0
		for !s.IsEmpty() {
			if depth == 0 {
				mark := s.pos
				r := stop(s)
				s.pos = mark // stop is a lookahead predicate: never consumes
				if r.IsSuc() && r.Value() {
					break
				}
			}
			t := s.cur()
			if t.Kind == KindPunct {
				if _, ok := openToDelim[t.Text]; ok {
					depth++
				} else if t.Text == ")" || t.Text == "}" || t.Text == "]" {
					depth--
				}
			}
			s.bump()
		}
		sub := &TokenStream{toks: append([]Token{}, s.toks[start:s.pos]...), file: s.file}
		sub.toks = append(sub.toks, Token{Kind: KindEOF})
		return combi.Suc(sub)
	}
}

// InGroup expects a bracketed group with delimiter delim, runs inner on
// its contents, and requires inner to consume everything inside. A wrong
// delimiter yields a continuation (not fatal) so the outer parser can keep
// going (spec.md §4.2).
func InGroup[A any](delim Delim, inner combi.Parser[TokenStream, A]) combi.Parser[TokenStream, A] {
	return func(s *TokenStream) combi.Result[A] {
		var zero A
		open := s.cur()
		want := delimOpen[delim]
		if open.Kind != KindPunct || open.Text != want {
			d := diag.New(diag.Error, diag.CodeWrongGroupDelim, open.Span, "expected %q, found %q", want, open.Text)
			return combi.Continue(zero, diag.List{d})
		}
		s.bump()
		depth := 1
		innerStart := s.pos
		for depth > 0 {
			if s.IsEmpty() {
				d := diag.New(diag.Error, diag.CodeUnclosedGroup, open.Span, "unclosed %q group", want)
				return combi.Err[A](diag.List{d}, nil)
			}
			t := s.cur()
			if t.Kind == KindPunct {
				if _, ok := openToDelim[t.Text]; ok {
					depth++
				} else if t.Text == ")" || t.Text == "}" || t.Text == "]" {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			s.bump()
		}
		innerEnd := s.pos
		closeTok := s.bump() // consume the matching close delimiter
		_ = closeTok

		sub := &TokenStream{toks: append(append([]Token{}, s.toks[innerStart:innerEnd]...), Token{Kind: KindEOF}), file: s.file}
		r := inner(sub)
		if !sub.IsEmpty() && !r.IsErr() {
			d := diag.New(diag.Error, diag.CodeUnexpectedToken, sub.cur().Span, "unexpected trailing tokens inside group")
			return combi.Continue(r.Value(), append(append(diag.List{}, r.Diagnostics()...), d))
		}
		return r
	}
}

// ParseTyped runs inner to produce a sub-stream of Go source tokens, then
// invokes Go's own expression parser on the reconstructed source text.
// This is the substitute for spec.md's "host-language expression/type
// parser" (§4.2 parse_typed): since the host language is Go, the
// `Rust(type_context, token-blob)` scalar-type variant becomes a Go
// expression/type string evaluated with go/parser, not executed — it is
// spliced verbatim into generated code by codegen/table and codegen/query.
func ParseTyped(inner combi.Parser[TokenStream, *TokenStream]) combi.Parser[TokenStream, ast.Expr] {
	return func(s *TokenStream) combi.Result[ast.Expr] {
		r := inner(s)
		if r.IsErr() {
			return combi.Err[ast.Expr](r.Diagnostics(), nil)
		}
		src := renderSource(r.Value())
		expr, err := parser.ParseExprFrom(token.NewFileSet(), "", src, 0)
		if err != nil {
			d := diag.New(diag.Error, diag.CodeBadTypeExpr, s.lastSpan, "invalid Go expression/type %q: %v", src, err)
			if r.IsCon() {
				return combi.Err[ast.Expr](append(append(diag.List{}, r.Diagnostics()...), d), nil)
			}
			return combi.Err[ast.Expr](diag.List{d}, nil)
		}
		if r.IsCon() {
			return combi.Continue(expr, r.Diagnostics())
		}
		return combi.Suc(expr)
	}
}

// Render reconstructs source text from s's remaining tokens, used by the
// front end to capture raw Go expression text (predicate/limit/field
// expressions) without invoking ParseTyped's full go/parser round trip.
func (s *TokenStream) Render() string { return renderSource(s) }

func renderSource(s *TokenStream) string {
	var out string
	for _, t := range s.toks {
		if t.Kind == KindEOF {
			break
		}
		if t.Kind == KindString {
			out += fmt.Sprintf("%q", t.Text)
		} else {
			out += t.Text
		}
		out += " "
	}
	return out
}
