package ident_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/emdbc/internal/ident"
)

func TestExported(t *testing.T) {
	assert.Equal(t, "Balance", ident.Exported("balance"))
	assert.Equal(t, "ByEmail", ident.Exported("by_email"))
}

func TestUnexported(t *testing.T) {
	assert.Equal(t, "balance", ident.Unexported("balance"))
	assert.Equal(t, "byEmail", ident.Unexported("by_email"))
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "users", ident.PackageName("user"))
}

func TestErrorVariant(t *testing.T) {
	assert.Equal(t, "CreditKeyError", ident.ErrorVariant("credit", "key"))
}
