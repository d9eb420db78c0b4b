// Package combi is the parser-combinator kernel (spec.md §4.1, component
// C1). It is deliberately tiny and generic: every combinator is a plain
// function value of type Parser[In, S], and the three-way result algebra
// (success / continuation / fatal) is the single Result[S] type below.
//
// The Rust original this was distilled from is generic over the
// continuation and error payload types too, so a single kernel can serve
// many unrelated grammars. This port only ever has one front end (frontend
// package), so Cont and Fatal are fixed concrete types rather than type
// parameters — monomorphising removes a layer of self-referential generic
// constraints Go cannot express cleanly, without losing anything this
// compiler needs. See DESIGN.md for the rationale.
package combi

import "github.com/syssam/emdbc/diag"

// Kind tags which of the three Result variants is populated.
type Kind int

const (
	// KSuc: the combinator matched cleanly.
	KSuc Kind = iota
	// KCon: a recoverable failure. The combinator already committed to a
	// production (consumed tokens) but can still offer a best-effort
	// value so sibling parsers can keep running and surface more
	// diagnostics in the same pass (spec.md §4.1 "failure model").
	KCon
	// KErr: a fatal failure; no further progress is possible on this path.
	KErr
)

// Cont is the continuation payload: a recoverable failure's accumulated
// diagnostics. It has no Go methods of its own — the "combine_success" /
// "combine_con" algebra from spec.md is implemented as free functions
// (CombineSuccess, CombineCon below) since Cont itself carries no type
// parameter to combine against.
type Cont struct {
	Diags diag.List
}

// Fatal is the error payload: a hard stop, optionally wrapping an
// underlying Go error (e.g. a bad literal conversion) alongside any
// diagnostics accumulated before the fatal point.
type Fatal struct {
	Diags diag.List
	Err   error
}

// Result is the outcome of running a Parser: exactly one of a success
// value, a continuation (diagnostics + best-effort value), or a fatal
// failure.
type Result[S any] struct {
	kind  Kind
	suc   S
	con   Cont
	fatal Fatal
}

// Suc builds a successful Result.
func Suc[S any](v S) Result[S] { return Result[S]{kind: KSuc, suc: v} }

// Continue builds a recoverable Result: v is the best-effort value later
// combinators can still act on, diags the diagnostics collected so far.
func Continue[S any](v S, diags diag.List) Result[S] {
	return Result[S]{kind: KCon, suc: v, con: Cont{Diags: diags}}
}

// Err builds a fatal Result.
func Err[S any](diags diag.List, err error) Result[S] {
	return Result[S]{kind: KErr, fatal: Fatal{Diags: diags, Err: err}}
}

// Kind reports which variant r holds.
func (r Result[S]) Kind() Kind { return r.kind }

// IsSuc, IsCon, IsErr report the held variant.
func (r Result[S]) IsSuc() bool { return r.kind == KSuc }
func (r Result[S]) IsCon() bool { return r.kind == KCon }
func (r Result[S]) IsErr() bool { return r.kind == KErr }

// Value returns the held value for KSuc/KCon, or the zero value for KErr.
func (r Result[S]) Value() S { return r.suc }

// Cont returns the continuation payload; valid only when IsCon.
func (r Result[S]) Cont() Cont { return r.con }

// Fatal returns the fatal payload; valid only when IsErr.
func (r Result[S]) Fatal() Fatal { return r.fatal }

// Diagnostics returns whatever diagnostics r carries, regardless of kind.
func (r Result[S]) Diagnostics() diag.List {
	switch r.kind {
	case KCon:
		return r.con.Diags
	case KErr:
		return r.fatal.Diags
	default:
		return nil
	}
}

// Match dispatches to exactly one callback depending on r's kind, the
// idiomatic Go substitute for pattern-matching a closed sum type.
func (r Result[S]) Match(onSuc func(S), onCon func(S, Cont), onErr func(Fatal)) {
	switch r.kind {
	case KSuc:
		onSuc(r.suc)
	case KCon:
		onCon(r.suc, r.con)
	case KErr:
		onErr(r.fatal)
	}
}

// MapValue transforms the carried value (KSuc/KCon only) without touching
// diagnostics, the building block every Map* combinator uses.
func MapValue[A, B any](r Result[A], f func(A) B) Result[B] {
	switch r.kind {
	case KSuc:
		return Suc(f(r.suc))
	case KCon:
		return Continue(f(r.suc), r.con.Diags)
	default:
		return Result[B]{kind: KErr, fatal: r.fatal}
	}
}

// CombineSuccess implements Cont.combine_success(Suc)->Con (spec.md §4.1):
// folding a later success into an existing continuation keeps the
// diagnostics and replaces the carried value.
func CombineSuccess[S any](c Cont, v S) (S, Cont) { return v, c }

// CombineCon implements Con.combine_con(Con)->Con: merging two
// continuations concatenates their diagnostics, a's before b's.
func CombineCon(a, b Cont) Cont {
	return Cont{Diags: append(append(diag.List{}, a.Diags...), b.Diags...)}
}

// InheritCon implements Err.inherit_con(Con)->Err: a fatal result that
// follows a continuation absorbs its diagnostics rather than discarding
// them.
func InheritCon(f Fatal, c Cont) Fatal {
	f.Diags = append(append(diag.List{}, c.Diags...), f.Diags...)
	return f
}

// CatchCon implements Err.catch_con(Con)->Err: used by Choice, where a
// Con from the branch condition itself becomes a fatal result (spec.md
// §4.1: "a Con from cond becomes an Err — no recovery past a branch").
func CatchCon(c Cont, err error) Fatal {
	return Fatal{Diags: c.Diags, Err: err}
}
