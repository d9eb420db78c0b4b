package frontend

import (
	"github.com/syssam/emdbc/combi/lex"
	"github.com/syssam/emdbc/diag"
)

// parser drives recursive descent directly over C2's TokenStream
// primitives. Individual token-level decisions (get/match/peek) reuse the
// combi/lex combinators; the top-level grammar driver itself is plain Go
// control flow rather than combinator composition, since stitching ~20
// operator shapes and three declaration kinds through combi.Parser values
// buys type safety this hand-written descent gets for free from Go's own
// control flow, while still using C1's Result type at every leaf call.
// See DESIGN.md.
type parser struct {
	s    *lex.TokenStream
	sink *diag.Sink
}

// Parse lexes src and parses it into a File, collecting diagnostics for
// every recoverable failure along the way (spec.md §4.3).
func Parse(src []byte, file string) (*File, diag.List) {
	toks, lexDiags := lex.Lex(src, file)
	sink := &diag.Sink{}
	for _, d := range lexDiags {
		sink.Add(d)
	}

	p := &parser{s: lex.New(toks, file), sink: sink}
	f := &File{}

	for !p.s.IsEmpty() {
		switch {
		case peekIdent(p.s, "table"):
			if td, ok := p.parseTable(); ok {
				f.Tables = append(f.Tables, td)
			}
		case peekIdent(p.s, "query"):
			if qd, ok := p.parseQuery(); ok {
				f.Queries = append(f.Queries, qd)
			}
		case peekIdent(p.s, "impl"):
			if bd, ok := p.parseBackend(); ok {
				f.Backends = append(f.Backends, bd)
			}
		default:
			t := p.cur()
			p.sink.Add(diag.New(diag.Error, diag.CodeUnexpectedToken, t.Span,
				"expected %q, %q or %q, found %q", "table", "query", "impl", t.Text))
			p.bump() // skip one token and keep trying, per the Con-not-Err failure model
		}
	}
	return f, p.sink.List()
}

func peekIdent(s *lex.TokenStream, text string) bool {
	r := lex.PeekIdent(text)(s)
	return r.IsSuc() && r.Value()
}

func peekPunct(s *lex.TokenStream, text string) bool {
	r := lex.PeekPunct(text)(s)
	return r.IsSuc() && r.Value()
}

func (p *parser) cur() lex.Token {
	return p.s.Peek()
}

func (p *parser) bump() {
	// Discard exactly one token by requesting whichever primitive matches
	// the current token's kind.
	switch p.cur().Kind {
	case lex.KindIdent:
		lex.GetIdent(p.s)
	case lex.KindPunct:
		lex.GetPunct(p.s)
	default:
		lex.GetLiteral(p.s)
	}
}

func (p *parser) matchIdent(text string) bool {
	r := lex.MatchIdent(text)(p.s)
	return r.IsSuc()
}

func (p *parser) matchPunct(text string) bool {
	r := lex.MatchPunct(text)(p.s)
	return r.IsSuc()
}

func (p *parser) getIdent() (lex.Token, bool) {
	r := lex.GetIdent(p.s)
	if !r.IsSuc() {
		return lex.Token{}, false
	}
	return r.Value(), true
}

func (p *parser) getLiteral() (lex.Token, bool) {
	r := lex.GetLiteral(p.s)
	if !r.IsSuc() {
		return lex.Token{}, false
	}
	return r.Value(), true
}

func (p *parser) expectIdent(text string) bool {
	if p.matchIdent(text) {
		return true
	}
	p.sink.Add(diag.New(diag.Error, diag.CodeUnexpectedToken, p.s.LastSpan(), "expected %q", text))
	return false
}

func (p *parser) expectPunct(text string) bool {
	if p.matchPunct(text) {
		return true
	}
	p.sink.Add(diag.New(diag.Error, diag.CodeUnexpectedToken, p.s.LastSpan(), "expected %q", text))
	return false
}
