package rowerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/emdbc/rowerr"
)

func TestKeyError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := rowerr.NewKeyError("customers")
		assert.Equal(t, "emdbc: customers: key not found", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := rowerr.NewKeyError("customers")
		assert.True(t, errors.Is(err, rowerr.ErrKeyNotFound))
	})

	t.Run("IsKeyError wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("wrapper: %w", rowerr.NewKeyError("orders"))
		assert.True(t, rowerr.IsKeyError(wrapped))
		assert.False(t, rowerr.IsKeyError(nil))
		assert.False(t, rowerr.IsKeyError(errors.New("other")))
	})
}

func TestUniqueError(t *testing.T) {
	err := rowerr.NewUniqueError("customers", "by_reference", "reference")
	assert.Equal(t, `emdbc: customers: unique constraint "by_reference" on field "reference" violated`, err.Error())
	assert.True(t, rowerr.IsUniqueError(err))
}

func TestPredicateError(t *testing.T) {
	err := rowerr.NewPredicateError("users", "premium_or_credits")
	assert.Equal(t, `emdbc: users: predicate "premium_or_credits" violated`, err.Error())
	assert.True(t, rowerr.IsPredicateError(err))
}

func TestRowLimitError(t *testing.T) {
	err := rowerr.NewRowLimitError("users", 10)
	assert.Equal(t, "emdbc: users: row limit 10 exceeded", err.Error())
	assert.True(t, errors.Is(err, rowerr.ErrRowLimit))
}

func TestAssertError(t *testing.T) {
	err := rowerr.NewAssertError("category_sales", "positive_total")
	assert.Equal(t, `emdbc: query category_sales: assertion "positive_total" failed`, err.Error())
}

func TestRollbackError(t *testing.T) {
	inner := errors.New("boom")
	err := rowerr.NewRollbackError("users", inner)
	assert.Equal(t, "emdbc: users: rollback failed: boom", err.Error())
	assert.Equal(t, inner, errors.Unwrap(err))
	assert.True(t, errors.Is(err, rowerr.ErrRollback))
}

func TestAggregateError(t *testing.T) {
	assert.Nil(t, rowerr.NewAggregateError(nil, nil))

	single := errors.New("one")
	assert.Equal(t, single, rowerr.NewAggregateError(nil, single))

	agg := rowerr.NewAggregateError(errors.New("a"), errors.New("b"))
	require, ok := agg.(*rowerr.AggregateError)
	assert.True(t, ok)
	assert.Len(t, require.Errors, 2)
	assert.Contains(t, agg.Error(), "multiple errors")
}
