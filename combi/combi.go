package combi

import (
	"sync"

	"github.com/syssam/emdbc/diag"
)

// Parser is the single abstraction of the kernel: given a pointer to a
// mutable input cursor (in this compiler, always a *lex.TokenStream), it
// advances the cursor and returns a Result. In is generic so the kernel
// has zero dependency on the token-stream adapter (combi/lex) — C2 builds
// concrete primitive parsers on top of this package, not the other way
// around.
type Parser[In, S any] func(in *In) Result[S]

// Pair is the tupled-success type Sequence produces.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Nothing always succeeds without consuming anything.
func Nothing[In any]() Parser[In, struct{}] {
	return func(*In) Result[struct{}] { return Suc(struct{}{}) }
}

// Sequence runs a then b, tupling their successes. A Con from a is
// propagated and merged with b's own result per the Cont/Fatal algebra; a
// Err from either short-circuits.
func Sequence[In, A, B any](a Parser[In, A], b Parser[In, B]) Parser[In, Pair[A, B]] {
	return func(in *In) Result[Pair[A, B]] {
		ra := a(in)
		if ra.IsErr() {
			return Result[Pair[A, B]]{kind: KErr, fatal: ra.Fatal()}
		}
		rb := b(in)
		switch {
		case rb.IsErr():
			if ra.IsCon() {
				return Result[Pair[A, B]]{kind: KErr, fatal: InheritCon(rb.Fatal(), ra.Cont())}
			}
			return Result[Pair[A, B]]{kind: KErr, fatal: rb.Fatal()}
		case ra.IsCon() && rb.IsCon():
			return Continue(Pair[A, B]{ra.Value(), rb.Value()}, CombineCon(ra.Cont(), rb.Cont()).Diags)
		case ra.IsCon():
			return Continue(Pair[A, B]{ra.Value(), rb.Value()}, ra.Cont().Diags)
		case rb.IsCon():
			return Continue(Pair[A, B]{ra.Value(), rb.Value()}, rb.Cont().Diags)
		default:
			return Suc(Pair[A, B]{ra.Value(), rb.Value()})
		}
	}
}

// MapSuccess transforms only the success-carrying value (KSuc and KCon);
// a Err passes through untouched.
func MapSuccess[In, A, B any](p Parser[In, A], f func(A) B) Parser[In, B] {
	return func(in *In) Result[B] { return MapValue(p(in), f) }
}

// MapErr transforms only the fatal payload.
func MapErr[In, A any](p Parser[In, A], f func(Fatal) Fatal) Parser[In, A] {
	return func(in *In) Result[A] {
		r := p(in)
		if r.IsErr() {
			return Result[A]{kind: KErr, fatal: f(r.Fatal())}
		}
		return r
	}
}

// MapAll lets f reclassify a success into any of the three results, the
// most general transform in the kernel.
func MapAll[In, A, B any](p Parser[In, A], f func(Result[A]) Result[B]) Parser[In, B] {
	return func(in *In) Result[B] { return f(p(in)) }
}

// Recover intercepts an Err from p and lets r decide the final result,
// typically by synthesising a best-effort value and downgrading to a Con
// so parsing can continue (spec.md §4.1 "recover(p, r)").
func Recover[In, A any](p Parser[In, A], r func(Fatal) Result[A]) Parser[In, A] {
	return func(in *In) Result[A] {
		res := p(in)
		if res.IsErr() {
			return r(res.Fatal())
		}
		return res
	}
}

// Choice runs cond to pick between t and f. A Con from cond itself is
// promoted to a Err — once a branch decision is uncertain, no sibling can
// safely guess which side to recover on (spec.md §4.1).
func Choice[In, A any](cond Parser[In, bool], t, f Parser[In, A]) Parser[In, A] {
	return func(in *In) Result[A] {
		rc := cond(in)
		switch {
		case rc.IsErr():
			return Result[A]{kind: KErr, fatal: rc.Fatal()}
		case rc.IsCon():
			return Result[A]{kind: KErr, fatal: CatchCon(rc.Cont(), nil)}
		case rc.Value():
			return t(in)
		default:
			return f(in)
		}
	}
}

// Select dispatches among N children by p's success value. pick maps the
// selector value to the chosen child parser; if it reports !ok, Select
// fails fatally (the selector produced an index with no matching child).
func Select[In, Sel, A any](p Parser[In, Sel], pick func(Sel) (Parser[In, A], bool), onMiss func(Sel) Fatal) Parser[In, A] {
	return func(in *In) Result[A] {
		rs := p(in)
		if rs.IsErr() {
			return Result[A]{kind: KErr, fatal: rs.Fatal()}
		}
		child, ok := pick(rs.Value())
		if !ok {
			f := onMiss(rs.Value())
			if rs.IsCon() {
				f = InheritCon(f, rs.Cont())
			}
			return Result[A]{kind: KErr, fatal: f}
		}
		ra := child(in)
		if rs.IsCon() && ra.IsSuc() {
			return Continue(ra.Value(), rs.Cont().Diags)
		}
		if rs.IsCon() && ra.IsCon() {
			return Continue(ra.Value(), CombineCon(rs.Cont(), ra.Cont()).Diags)
		}
		return ra
	}
}

// ManyAppendSep repeats: sep then item, accumulating items into a slice.
// sep's success is a continue/stop flag (true = keep going). Con results
// from either sep or item accumulate rather than aborting the loop.
func ManyAppendSep[In, Item any](sep Parser[In, bool], item Parser[In, Item]) Parser[In, []Item] {
	return func(in *In) Result[[]Item] {
		var items []Item
		var diags diag.List
		isCon := false
		for {
			rs := sep(in)
			if rs.IsErr() {
				f := rs.Fatal()
				if isCon {
					f.Diags = append(append(diag.List{}, diags...), f.Diags...)
				}
				return Result[[]Item]{kind: KErr, fatal: f}
			}
			if rs.IsCon() {
				isCon = true
				diags = append(diags, rs.Cont().Diags...)
			}
			if !rs.Value() {
				break
			}
			ri := item(in)
			if ri.IsErr() {
				f := ri.Fatal()
				if isCon {
					f.Diags = append(append(diag.List{}, diags...), f.Diags...)
				}
				return Result[[]Item]{kind: KErr, fatal: f}
			}
			if ri.IsCon() {
				isCon = true
				diags = append(diags, ri.Cont().Diags...)
			}
			items = append(items, ri.Value())
		}
		if isCon {
			return Continue(items, diags)
		}
		return Suc(items)
	}
}

// ManyAppendSome repeats p, which returns an option (nil ends the loop),
// accumulating the non-nil values.
func ManyAppendSome[In, Item any](p Parser[In, *Item]) Parser[In, []Item] {
	return func(in *In) Result[[]Item] {
		var items []Item
		var diags diag.List
		isCon := false
		for {
			r := p(in)
			if r.IsErr() {
				f := r.Fatal()
				if isCon {
					f.Diags = append(append(diag.List{}, diags...), f.Diags...)
				}
				return Result[[]Item]{kind: KErr, fatal: f}
			}
			if r.IsCon() {
				isCon = true
				diags = append(diags, r.Cont().Diags...)
			}
			v := r.Value()
			if v == nil {
				break
			}
			items = append(items, *v)
		}
		if isCon {
			return Continue(items, diags)
		}
		return Suc(items)
	}
}

// PipeMap is a pure value transform that can never itself fail; kept
// distinct from MapSuccess so call sites document that f is total.
func PipeMap[In, A, B any](p Parser[In, A], f func(A) B) Parser[In, B] {
	return MapSuccess(p, f)
}

// PipeSuccess forwards p's success value (and the shared input cursor) to
// consumer, the kernel's monadic bind — every multi-step grammar rule is
// built from chains of PipeSuccess.
func PipeSuccess[In, A, B any](p Parser[In, A], consumer func(A) Parser[In, B]) Parser[In, B] {
	return func(in *In) Result[B] {
		ra := p(in)
		if ra.IsErr() {
			return Result[B]{kind: KErr, fatal: ra.Fatal()}
		}
		rb := consumer(ra.Value())(in)
		if ra.IsCon() {
			switch {
			case rb.IsErr():
				f := rb.Fatal()
				f.Diags = append(append(diag.List{}, ra.Cont().Diags...), f.Diags...)
				return Result[B]{kind: KErr, fatal: f}
			case rb.IsCon():
				return Continue(rb.Value(), CombineCon(ra.Cont(), rb.Cont()).Diags)
			default:
				return Continue(rb.Value(), ra.Cont().Diags)
			}
		}
		return rb
	}
}

// Or is the logical short-circuit OR of two boolean parsers, propagating
// Con accumulation the same way Sequence does.
func Or[In any](a, b Parser[In, bool]) Parser[In, bool] {
	return func(in *In) Result[bool] {
		ra := a(in)
		if ra.IsErr() {
			return Result[bool]{kind: KErr, fatal: ra.Fatal()}
		}
		if ra.Value() {
			return ra
		}
		rb := b(in)
		if ra.IsCon() {
			switch {
			case rb.IsErr():
				return Result[bool]{kind: KErr, fatal: InheritCon(rb.Fatal(), ra.Cont())}
			case rb.IsCon():
				return Continue(rb.Value(), CombineCon(ra.Cont(), rb.Cont()).Diags)
			default:
				return Continue(rb.Value(), ra.Cont().Diags)
			}
		}
		return rb
	}
}

// Lift wraps p with pre/post conversions on its input and output types,
// letting a combinator built for one representation be reused at another
// (e.g. running a sub-stream parser against a collected group, spec.md
// §4.2 in_group).
func Lift[OuterIn, InnerIn, A, B any](
	p Parser[InnerIn, A],
	pre func(*OuterIn) *InnerIn,
	post func(A) B,
) Parser[OuterIn, B] {
	return func(in *OuterIn) Result[B] {
		inner := pre(in)
		return MapValue(p(inner), post)
	}
}

// cell holds a lazily-initialised Parser so Recursive can hand back a
// reference to a parser that does not exist yet. This is the "weak
// back-handle" design note from spec.md §9: Go's GC means there is no
// ownership cycle to break, so a plain pointer + sync.Once suffices where
// the original used a reference-counted cell.
type cell[In, S any] struct {
	once sync.Once
	p    Parser[In, S]
}

func (c *cell[In, S]) set(p Parser[In, S]) { c.once.Do(func() { c.p = p }) }

func (c *cell[In, S]) handle() Parser[In, S] {
	return func(in *In) Result[S] { return c.p(in) }
}

// Recursive builds a self-referential parser: f receives a handle to the
// parser it is itself constructing, so grammars like `stream_expr` (which
// can nest `lift`/`groupby` bodies containing further stream expressions)
// can be expressed directly.
func Recursive[In, S any](f func(self Parser[In, S]) Parser[In, S]) Parser[In, S] {
	c := &cell[In, S]{}
	p := f(c.handle())
	c.set(p)
	return p
}
