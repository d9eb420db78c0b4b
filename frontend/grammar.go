package frontend

import (
	"strings"

	"github.com/syssam/emdbc/combi/lex"
	"github.com/syssam/emdbc/diag"
)

// bumpToken consumes and returns exactly one token, whatever kind it is.
func (p *parser) bumpToken() lex.Token {
	t := p.cur()
	switch t.Kind {
	case lex.KindIdent:
		return lex.GetIdent(p.s).Value()
	case lex.KindPunct:
		return lex.GetPunct(p.s).Value()
	default:
		return lex.GetLiteral(p.s).Value()
	}
}

// collectUntilPunct consumes and returns tokens up to (not including) the
// first top-level occurrence of any of stops, tracking bracket depth so a
// nested `(...)`'s internal comma never ends the collection early.
func (p *parser) collectUntilPunct(stops ...string) []lex.Token {
	var out []lex.Token
	depth := 0
	for !p.s.IsEmpty() {
		t := p.cur()
		if depth == 0 && t.Kind == lex.KindPunct {
			for _, stop := range stops {
				if t.Text == stop {
					return out
				}
			}
		}
		if t.Kind == lex.KindPunct {
			switch t.Text {
			case "(", "{", "[":
				depth++
			case ")", "}", "]":
				depth--
			}
		}
		out = append(out, p.bumpToken())
	}
	return out
}

func renderTokens(toks []lex.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		dot := t.Kind == lex.KindPunct && t.Text == "."
		if i > 0 && !dot && !(toks[i-1].Kind == lex.KindPunct && toks[i-1].Text == ".") {
			sb.WriteByte(' ')
		}
		if t.Kind == lex.KindString {
			sb.WriteString(`"` + t.Text + `"`)
		} else {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// splitTopLevel splits toks on every top-level occurrence of the
// punctuation text sep, ignoring occurrences nested inside brackets.
func splitTopLevel(toks []lex.Token, sep string) [][]lex.Token {
	var groups [][]lex.Token
	var cur []lex.Token
	depth := 0
	for _, t := range toks {
		if depth == 0 && t.Kind == lex.KindPunct && t.Text == sep {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		if t.Kind == lex.KindPunct {
			switch t.Text {
			case "(", "{", "[":
				depth++
			case ")", "}", "]":
				depth--
			}
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	return groups
}

func spanFrom(start, last diag.Span) diag.Span {
	return diag.Span{File: start.File, Start: start.Start, End: last.End}
}

func (p *parser) matchConnector() (Connector, bool) {
	if p.matchPunct("~>") {
		return ConnSingle, true
	}
	if p.matchPunct("|>") {
		return ConnStream, true
	}
	return 0, false
}

// parseTable parses `table NAME { field: Type, ... } @ [ constraint, ... ]`.
func (p *parser) parseTable() (TableDecl, bool) {
	start := p.cur().Span
	p.matchIdent("table")
	nameTok, ok := p.getIdent()
	if !ok {
		p.sink.Add(diag.New(diag.Error, diag.CodeUnexpectedToken, p.cur().Span, "expected table name"))
		return TableDecl{}, false
	}
	td := TableDecl{Name: nameTok.Text, NameSpan: nameTok.Span}
	if !p.expectPunct("{") {
		return td, false
	}
	for !peekPunct(p.s, "}") && !p.s.IsEmpty() {
		fieldTok, ok := p.getIdent()
		if !ok {
			p.sink.Add(diag.New(diag.Error, diag.CodeUnexpectedToken, p.cur().Span, "expected field name"))
			break
		}
		if !p.expectPunct(":") {
			break
		}
		typeToks := p.collectUntilPunct(",", "}")
		td.Fields = append(td.Fields, FieldDecl{
			Name:     fieldTok.Text,
			NameSpan: fieldTok.Span,
			Type:     TypeExpr{Source: renderTokens(typeToks), Span: fieldTok.Span},
		})
		if peekPunct(p.s, ",") {
			p.matchPunct(",")
		}
	}
	p.expectPunct("}")

	if peekPunct(p.s, "@") {
		p.matchPunct("@")
		p.expectPunct("[")
		for !peekPunct(p.s, "]") && !p.s.IsEmpty() {
			if cd, ok := p.parseConstraint(); ok {
				td.Constraints = append(td.Constraints, cd)
			}
			if peekPunct(p.s, ",") {
				p.matchPunct(",")
			}
		}
		p.expectPunct("]")
	}
	p.matchPunct(";")
	td.Span = spanFrom(start, p.s.LastSpan())
	return td, true
}

func (p *parser) parseConstraint() (ConstraintDecl, bool) {
	kindTok, ok := p.getIdent()
	if !ok {
		return ConstraintDecl{}, false
	}
	if !p.expectPunct("(") {
		return ConstraintDecl{}, false
	}
	inner := p.collectUntilPunct(")")
	p.expectPunct(")")

	var cd ConstraintDecl
	switch kindTok.Text {
	case "unique":
		cd.Kind = ConstraintUnique
		cd.Field = renderTokens(inner)
	case "pred":
		cd.Kind = ConstraintPred
		cd.Expr = renderTokens(inner)
	case "limit":
		cd.Kind = ConstraintLimit
		cd.Expr = renderTokens(inner)
	default:
		p.sink.Add(diag.New(diag.Error, diag.CodeUnknownConstraint, kindTok.Span, "unknown constraint %q", kindTok.Text))
		return ConstraintDecl{}, false
	}
	if !p.expectIdent("as") {
		return cd, false
	}
	aliasTok, ok := p.getIdent()
	if !ok {
		return cd, false
	}
	cd.Alias = aliasTok.Text
	cd.Span = spanFrom(kindTok.Span, p.s.LastSpan())
	return cd, true
}

// parseQuery parses `query NAME(param: Type, ...) { stream_expr; ... }`.
func (p *parser) parseQuery() (QueryDecl, bool) {
	start := p.cur().Span
	p.matchIdent("query")
	nameTok, ok := p.getIdent()
	if !ok {
		p.sink.Add(diag.New(diag.Error, diag.CodeUnexpectedToken, p.cur().Span, "expected query name"))
		return QueryDecl{}, false
	}
	qd := QueryDecl{Name: nameTok.Text, NameSpan: nameTok.Span}
	if !p.expectPunct("(") {
		return qd, false
	}
	for !peekPunct(p.s, ")") && !p.s.IsEmpty() {
		pn, ok := p.getIdent()
		if !ok {
			break
		}
		if !p.expectPunct(":") {
			break
		}
		typeToks := p.collectUntilPunct(",", ")")
		qd.Params = append(qd.Params, ParamDecl{Name: pn.Text, Type: TypeExpr{Source: renderTokens(typeToks), Span: pn.Span}})
		if peekPunct(p.s, ",") {
			p.matchPunct(",")
		}
	}
	p.expectPunct(")")
	body, _ := p.parseStreamBody()
	qd.Body = body
	qd.Span = spanFrom(start, p.s.LastSpan())
	return qd, true
}

func (p *parser) parseStreamBody() ([]StreamExpr, bool) {
	if !p.expectPunct("{") {
		return nil, false
	}
	var exprs []StreamExpr
	for !peekPunct(p.s, "}") && !p.s.IsEmpty() {
		se, ok := p.parseStreamExpr()
		if ok {
			exprs = append(exprs, se)
			continue
		}
		// recover: skip to the next statement boundary and keep parsing
		p.collectUntilPunct(";", "}")
		if peekPunct(p.s, ";") {
			p.matchPunct(";")
		}
	}
	p.expectPunct("}")
	return exprs, true
}

func (p *parser) parseStreamExpr() (StreamExpr, bool) {
	start := p.cur().Span
	var se StreamExpr
	isLet := false

	switch {
	case peekIdent(p.s, "let"):
		isLet = true
		p.matchIdent("let")
		nameTok, ok := p.getIdent()
		if !ok {
			return se, false
		}
		se.Let, se.LetSpan = nameTok.Text, nameTok.Span
		if !p.expectPunct("=") {
			return se, false
		}
	case peekIdent(p.s, "use"):
		p.matchIdent("use")
		nameTok, ok := p.getIdent()
		if !ok {
			return se, false
		}
		se.Use, se.UseSpan = nameTok.Text, nameTok.Span
		if peekPunct(p.s, ";") {
			p.matchPunct(";")
			se.Span = spanFrom(start, p.s.LastSpan())
			return se, true
		}
	}

	needLeadingConn := !isLet
	for {
		if needLeadingConn {
			conn, ok := p.matchConnector()
			if !ok {
				p.sink.Add(diag.New(diag.Error, diag.CodeUnknownConnector, p.cur().Span, "expected %q or %q", "~>", "|>"))
				return se, false
			}
			se.Conns = append(se.Conns, conn)
		} else {
			se.Conns = append(se.Conns, ConnSingle)
		}
		op, ok := p.parseOperator()
		if !ok {
			return se, false
		}
		se.Ops = append(se.Ops, op)
		needLeadingConn = true
		if peekPunct(p.s, "~>") || peekPunct(p.s, "|>") {
			continue
		}
		break
	}
	p.expectPunct(";")
	se.Span = spanFrom(start, p.s.LastSpan())
	return se, true
}

func (p *parser) parseOperator() (OperatorExpr, bool) {
	nameTok, ok := p.getIdent()
	if !ok {
		p.sink.Add(diag.New(diag.Error, diag.CodeUnknownOperator, p.cur().Span, "expected operator name"))
		return OperatorExpr{}, false
	}
	op := OperatorExpr{Name: nameTok.Text, Span: nameTok.Span}

	if peekPunct(p.s, "(") {
		p.matchPunct("(")
		for !peekPunct(p.s, ")") && !p.s.IsEmpty() {
			argToks := p.collectUntilPunct(",", ")")
			op.Args = append(op.Args, strings.TrimSpace(renderTokens(argToks)))
			if peekPunct(p.s, ",") {
				p.matchPunct(",")
			}
		}
		p.expectPunct(")")
	}

	if peekPunct(p.s, "{") {
		switch nameTok.Text {
		case "groupby", "lift":
			body, _ := p.parseStreamBody()
			op.Body = body
		default:
			fes, _ := p.parseFieldExprBody()
			op.FieldExprs = fes
		}
	}
	return op, true
}

// parseFieldExprBody parses `{ field: expr, field: expr -> update, ... }`
// bodies for Row/Map/Fold/Combine: the `expr -> update` shape carries a
// Fold/Combine operator's (initial, update) pair.
func (p *parser) parseFieldExprBody() ([]FieldExpr, bool) {
	if !p.expectPunct("{") {
		return nil, false
	}
	var out []FieldExpr
	for !peekPunct(p.s, "}") && !p.s.IsEmpty() {
		fieldTok, ok := p.getIdent()
		if !ok {
			break
		}
		if !p.expectPunct(":") {
			break
		}
		exprToks := p.collectUntilPunct(",", "}")
		parts := splitTopLevel(exprToks, "->")
		fe := FieldExpr{Field: fieldTok.Text}
		if len(parts) == 2 {
			fe.Expr = strings.TrimSpace(renderTokens(parts[0]))
			fe.Aux = strings.TrimSpace(renderTokens(parts[1]))
		} else {
			fe.Expr = strings.TrimSpace(renderTokens(exprToks))
		}
		out = append(out, fe)
		if peekPunct(p.s, ",") {
			p.matchPunct(",")
		}
	}
	p.expectPunct("}")
	return out, true
}

// parseBackend parses `impl NAME as BACKEND { key: value, ... }?;`.
func (p *parser) parseBackend() (BackendDecl, bool) {
	start := p.cur().Span
	p.matchIdent("impl")
	nameTok, ok := p.getIdent()
	if !ok {
		p.sink.Add(diag.New(diag.Error, diag.CodeUnexpectedToken, p.cur().Span, "expected backend binding name"))
		return BackendDecl{}, false
	}
	bd := BackendDecl{Name: nameTok.Text, Options: map[string]string{}}
	if !p.expectIdent("as") {
		return bd, false
	}
	backendTok, ok := p.getIdent()
	if !ok {
		return bd, false
	}
	bd.Backend = backendTok.Text

	if peekPunct(p.s, "{") {
		p.matchPunct("{")
		bd.Options = p.parseOptionList()
	}
	p.matchPunct(";")
	bd.Span = spanFrom(start, p.s.LastSpan())
	return bd, true
}
