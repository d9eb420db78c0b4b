// Package diag defines the diagnostic types produced by the parser (combi,
// frontend) and semantic lowering (sem). The core only produces
// diagnostics; spec.md §1 assigns rendering to an external collaborator,
// so this package stops at a stable, ordered, serialisable value.
package diag

import "fmt"

// Pos is a single source location: 1-based line and column, matching the
// convention go/token uses.
type Pos struct {
	Line, Col int
}

// Span is a half-open source range within one file.
type Span struct {
	File       string
	Start, End Pos
}

// String renders a span as "file:line:col".
func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Start.Line, s.Start.Col)
}

// Severity classifies a diagnostic's impact on the build.
type Severity int

const (
	// Warning diagnostics do not abort the build (e.g. an unused `let`
	// silently turned into a Discard operator).
	Warning Severity = iota
	// Error diagnostics accumulate; a non-empty error list aborts the
	// build once the current recovery scope is exhausted (spec.md §7).
	Error
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// SubSpan attaches a secondary location and note to a Diagnostic, e.g. the
// "previously defined here" location of a table-redefinition error.
type SubSpan struct {
	Span Span
	Note string
}

// Diagnostic is the single external contract of the whole compiler's error
// reporting surface: severity, a primary span, a message, and zero or more
// sub-spans. Code is the stable catalogue identifier (see catalogue.go);
// wording is not contractual (spec.md §4.4).
type Diagnostic struct {
	Severity Severity
	Code     Code
	Primary  Span
	Message  string
	Subs     []SubSpan
}

// New builds a Diagnostic with no sub-spans.
func New(sev Severity, code Code, primary Span, msg string, args ...any) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Primary: primary, Message: fmt.Sprintf(msg, args...)}
}

// WithSub returns a copy of d with an additional sub-span.
func (d Diagnostic) WithSub(span Span, note string) Diagnostic {
	d.Subs = append(append([]SubSpan{}, d.Subs...), SubSpan{Span: span, Note: note})
	return d
}

// Error lets a Diagnostic satisfy the error interface, for the rare case a
// single diagnostic needs to be threaded through Go's error-returning
// conventions (e.g. from Sink.First()).
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Primary, d.Severity, d.Message, d.Code)
}

// List is an ordered collection of diagnostics, the unit the front end and
// semantic lowering hand to a host diagnostic sink.
type List []Diagnostic

// HasErrors reports whether any diagnostic in the list is Error severity.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns the subset of l with Error severity.
func (l List) Errors() List {
	var out List
	for _, d := range l {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// Sink accumulates diagnostics during a single parse/lowering pass. It is
// not safe for concurrent use; each goroutine (e.g. one per table during
// codegen fan-out) should own its own Sink and merge results afterward.
type Sink struct {
	list List
}

// Add appends a diagnostic to the sink.
func (s *Sink) Add(d Diagnostic) { s.list = append(s.list, d) }

// Errorf appends an Error-severity diagnostic built from a code/span/format.
func (s *Sink) Errorf(code Code, span Span, format string, args ...any) {
	s.Add(New(Error, code, span, format, args...))
}

// Warnf appends a Warning-severity diagnostic built from a code/span/format.
func (s *Sink) Warnf(code Code, span Span, format string, args ...any) {
	s.Add(New(Warning, code, span, format, args...))
}

// Merge appends another sink's diagnostics onto s, preserving order.
func (s *Sink) Merge(other *Sink) {
	if other == nil {
		return
	}
	s.list = append(s.list, other.list...)
}

// List returns the accumulated diagnostics.
func (s *Sink) List() List { return append(List{}, s.list...) }

// HasErrors reports whether the sink holds any Error-severity diagnostic.
func (s *Sink) HasErrors() bool { return s.list.HasErrors() }
