// Package rowerr defines the run-time error types shared by every table
// and query module a backend emits (spec.md §7). Generated code imports
// this package instead of re-declaring KeyError, constraint and rollback
// errors per table.
package rowerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by errors.Is across every generated table.
var (
	// ErrKeyNotFound is returned when a reference no longer resolves to a
	// live row (stale key, or a row hidden/pulled since the reference was
	// produced).
	ErrKeyNotFound = errors.New("emdbc: key not found")

	// ErrRowLimit is returned when an insert would exceed a table's
	// RowConstraints row-count limit.
	ErrRowLimit = errors.New("emdbc: row limit exceeded")

	// ErrRollback is returned when an abort could not fully unwind the
	// transaction log (should not happen for a well-formed generator, but
	// is surfaced rather than panicking).
	ErrRollback = errors.New("emdbc: rollback failed")
)

// KeyError represents a dereference of a stale or invalid row reference.
// Every generated update/get/delete error enum carries a KeyError variant.
type KeyError struct {
	Table string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("emdbc: %s: key not found", e.Table)
}

func (e *KeyError) Is(target error) bool { return target == ErrKeyNotFound }

// NewKeyError returns a KeyError for the named table.
func NewKeyError(table string) *KeyError { return &KeyError{Table: table} }

// IsKeyError reports whether err is (or wraps) a KeyError.
func IsKeyError(err error) bool {
	if err == nil {
		return false
	}
	var e *KeyError
	return errors.As(err, &e) || errors.Is(err, ErrKeyNotFound)
}

// UniqueError represents a unique-constraint conflict on insert or update.
// The Alias matches the `unique(field) as alias` constraint name from the
// table's `@ [ ... ]` block.
type UniqueError struct {
	Table string
	Alias string
	Field string
}

func (e *UniqueError) Error() string {
	return fmt.Sprintf("emdbc: %s: unique constraint %q on field %q violated", e.Table, e.Alias, e.Field)
}

// NewUniqueError returns a UniqueError for the given table/alias/field.
func NewUniqueError(table, alias, field string) *UniqueError {
	return &UniqueError{Table: table, Alias: alias, Field: field}
}

// IsUniqueError reports whether err is a UniqueError.
func IsUniqueError(err error) bool {
	if err == nil {
		return false
	}
	var e *UniqueError
	return errors.As(err, &e)
}

// PredicateError represents a row-predicate violation on insert or update.
type PredicateError struct {
	Table string
	Alias string
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("emdbc: %s: predicate %q violated", e.Table, e.Alias)
}

// NewPredicateError returns a PredicateError for the given table/alias.
func NewPredicateError(table, alias string) *PredicateError {
	return &PredicateError{Table: table, Alias: alias}
}

// IsPredicateError reports whether err is a PredicateError.
func IsPredicateError(err error) bool {
	if err == nil {
		return false
	}
	var e *PredicateError
	return errors.As(err, &e)
}

// RowLimitError represents a RowConstraints.Limit violation on insert.
type RowLimitError struct {
	Table string
	Limit int
}

func (e *RowLimitError) Error() string {
	return fmt.Sprintf("emdbc: %s: row limit %d exceeded", e.Table, e.Limit)
}

func (e *RowLimitError) Is(target error) bool { return target == ErrRowLimit }

// NewRowLimitError returns a RowLimitError for the given table/limit.
func NewRowLimitError(table string, limit int) *RowLimitError {
	return &RowLimitError{Table: table, Limit: limit}
}

// AssertError represents an `assert` operator failure inside a query body.
// Name is the operator's position-derived variant name (spec.md §7).
type AssertError struct {
	Query string
	Name  string
}

func (e *AssertError) Error() string {
	return fmt.Sprintf("emdbc: query %s: assertion %q failed", e.Query, e.Name)
}

// NewAssertError returns an AssertError for the given query/assertion name.
func NewAssertError(query, name string) *AssertError {
	return &AssertError{Query: query, Name: name}
}

// RollbackError wraps an error that occurred while aborting a transaction,
// so the original failure is never lost even if unwinding itself fails.
type RollbackError struct {
	Table string
	Err   error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("emdbc: %s: rollback failed: %v", e.Table, e.Err)
}

func (e *RollbackError) Unwrap() error     { return e.Err }
func (e *RollbackError) Is(t error) bool   { return t == ErrRollback }

// NewRollbackError wraps err as a RollbackError for the given table.
func NewRollbackError(table string, err error) *RollbackError {
	return &RollbackError{Table: table, Err: err}
}

// AggregateError collects multiple errors observed while committing or
// aborting a query that touches several tables (spec.md §5 ordering
// guarantees still apply: this is reporting only, not retried).
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "emdbc: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("emdbc: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError returns an AggregateError for the non-nil errs, or nil
// if there are none, or the single error unwrapped if there is exactly one.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return &AggregateError{Errors: filtered}
	}
}
