// Package lex is the token stream adapter (spec.md §4.2, component C2). It
// turns .edb DSL source text into a flat token list and exposes a
// peekable, span-preserving cursor over it, plus the primitive
// combi.Parser values (identifier, punctuation, literal, balanced group)
// the front end (frontend package) is built from.
//
// spec.md places the host language's macro-invocation mechanism out of
// scope; Go has none, so the "host token tree" this component wraps is
// produced by a small hand-written lexer over source text rather than a
// macro token tree (see SPEC_FULL.md §4).
package lex

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/syssam/emdbc/diag"
)

// Kind classifies a Token.
type Kind int

const (
	KindIdent Kind = iota
	KindPunct
	KindInt
	KindFloat
	KindString
	KindBool
	KindEOF
)

func (k Kind) String() string {
	switch k {
	case KindIdent:
		return "identifier"
	case KindPunct:
		return "punctuation"
	case KindInt:
		return "integer literal"
	case KindFloat:
		return "float literal"
	case KindString:
		return "string literal"
	case KindBool:
		return "bool literal"
	case KindEOF:
		return "end of input"
	default:
		return "unknown"
	}
}

// Delim identifies a bracket pairing, used by InGroup / CollectUntil.
type Delim int

const (
	Paren   Delim = iota // ( )
	Brace                // { }
	Bracket              // [ ]
)

// Token is one lexical unit with its source span.
type Token struct {
	Kind Kind
	Text string
	Span diag.Span
}

// Lex tokenises src (the contents of file) into a flat Token slice, plus
// any diagnostics for malformed literals. Lexing never aborts early: a bad
// token is replaced by a placeholder so downstream parsing can still make
// forward progress and report further errors, matching spec.md's
// recoverable-diagnostics policy.
func Lex(src []byte, file string) ([]Token, diag.List) {
	l := &lexer{src: string(src), file: file, line: 1, col: 1}
	var toks []Token
	var diags diag.List
	for {
		l.skipSpaceAndComments()
		if l.eof() {
			break
		}
		tok, d := l.next()
		if d != nil {
			diags = append(diags, *d)
		}
		toks = append(toks, tok)
	}
	toks = append(toks, Token{Kind: KindEOF, Span: l.span(l.pos, l.pos)})
	return toks, diags
}

type lexer struct {
	src        string
	file       string
	pos        int
	line, col  int
}

func (l *lexer) eof() bool { return l.pos >= len(l.src) }

func (l *lexer) peekByte() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) pos2() diag.Pos { return diag.Pos{Line: l.line, Col: l.col} }

func (l *lexer) span(start, end int) diag.Span {
	_, _ = start, end // retained for symmetry with Token spans; position tracked via l.line/l.col
	return diag.Span{File: l.file, Start: l.pos2(), End: l.pos2()}
}

func (l *lexer) advance() byte {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	b := l.src[l.pos]
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func (l *lexer) skipSpaceAndComments() {
	for !l.eof() {
		c := l.peekByte()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for !l.eof() && l.peekByte() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

const puncts = "(){}[]<>,:;@~|=!+-*/%.&"

func (l *lexer) next() (Token, *diag.Diagnostic) {
	start := l.pos2()
	c := l.peekByte()
	switch {
	case isIdentStart(rune(c)):
		var sb strings.Builder
		for !l.eof() && isIdentCont(rune(l.peekByte())) {
			sb.WriteByte(l.advance())
		}
		text := sb.String()
		if text == "true" || text == "false" {
			return Token{Kind: KindBool, Text: text, Span: diag.Span{File: l.file, Start: start, End: l.pos2()}}, nil
		}
		return Token{Kind: KindIdent, Text: text, Span: diag.Span{File: l.file, Start: start, End: l.pos2()}}, nil
	case c >= '0' && c <= '9':
		var sb strings.Builder
		isFloat := false
		for !l.eof() && (isDigit(l.peekByte()) || l.peekByte() == '.') {
			if l.peekByte() == '.' {
				isFloat = true
			}
			sb.WriteByte(l.advance())
		}
		text := sb.String()
		kind := KindInt
		if isFloat {
			kind = KindFloat
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				d := diag.New(diag.Error, diag.CodeExpectedLiteral, diag.Span{File: l.file, Start: start, End: l.pos2()}, "malformed float literal %q", text)
				return Token{Kind: kind, Text: text, Span: d.Primary}, &d
			}
		} else if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			d := diag.New(diag.Error, diag.CodeExpectedLiteral, diag.Span{File: l.file, Start: start, End: l.pos2()}, "malformed integer literal %q", text)
			return Token{Kind: kind, Text: text, Span: d.Primary}, &d
		}
		return Token{Kind: kind, Text: text, Span: diag.Span{File: l.file, Start: start, End: l.pos2()}}, nil
	case c == '"':
		l.advance()
		var sb strings.Builder
		closed := false
		for !l.eof() {
			ch := l.peekByte()
			if ch == '"' {
				l.advance()
				closed = true
				break
			}
			if ch == '\\' {
				l.advance()
				if !l.eof() {
					sb.WriteByte(l.advance())
				}
				continue
			}
			sb.WriteByte(l.advance())
		}
		sp := diag.Span{File: l.file, Start: start, End: l.pos2()}
		if !closed {
			d := diag.New(diag.Error, diag.CodeUnexpectedEOF, sp, "unterminated string literal")
			return Token{Kind: KindString, Text: sb.String(), Span: sp}, &d
		}
		return Token{Kind: KindString, Text: sb.String(), Span: sp}, nil
	case strings.ContainsRune(puncts, rune(c)):
		// Multi-character punctuation: ~> |> == != <= >= -> &&  ||
		two := ""
		if l.pos+1 < len(l.src) {
			two = l.src[l.pos : l.pos+2]
		}
		switch two {
		case "~>", "|>", "==", "!=", "<=", ">=", "->", "&&", "||":
			l.advance()
			l.advance()
			return Token{Kind: KindPunct, Text: two, Span: diag.Span{File: l.file, Start: start, End: l.pos2()}}, nil
		}
		ch := l.advance()
		return Token{Kind: KindPunct, Text: string(ch), Span: diag.Span{File: l.file, Start: start, End: l.pos2()}}, nil
	default:
		ch := l.advance()
		sp := diag.Span{File: l.file, Start: start, End: l.pos2()}
		d := diag.New(diag.Error, diag.CodeUnexpectedToken, sp, "unexpected character %q", ch)
		return Token{Kind: KindPunct, Text: string(ch), Span: sp}, &d
	}
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentCont(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
