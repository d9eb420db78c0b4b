package frontend

import "strings"

// parseOptionList parses a `{ key: value, key: value, ... }` block shared
// by every `impl NAME as BACKEND { ... }` declaration (SPEC_FULL.md §12's
// options.rs-style typed backend-option parsing: the original keeps one
// small combinator for this shape rather than matching fields ad hoc, and
// this is its Go analogue). Values are raw token text, left untyped here —
// backend.FromBackendDecl interprets them against the known option keys.
// Caller has already consumed the opening "{"; parseOptionList consumes up
// to and including the closing "}".
func (p *parser) parseOptionList() map[string]string {
	out := map[string]string{}
	for !peekPunct(p.s, "}") && !p.s.IsEmpty() {
		keyTok, ok := p.getIdent()
		if !ok {
			break
		}
		if !p.expectPunct(":") {
			break
		}
		valToks := p.collectUntilPunct(",", "}")
		out[keyTok.Text] = strings.TrimSpace(renderTokens(valToks))
		if peekPunct(p.s, ",") {
			p.matchPunct(",")
		}
	}
	p.expectPunct("}")
	return out
}
