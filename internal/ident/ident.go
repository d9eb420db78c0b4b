// Package ident turns DSL-source names (table names, field names, query
// names, constraint aliases) into the exported Go identifiers and package
// names codegen/table and codegen/query emit, the same naming job the
// teacher's generator does for entity and edge names.
package ident

import "github.com/go-openapi/inflect"

// Exported camel-cases name and upper-cases its first letter, so a DSL
// field `balance` becomes the Go struct field `Balance`.
func Exported(name string) string {
	return inflect.Camelize(name)
}

// Unexported camel-cases name with a lower-case first letter, used for
// local variables codegen synthesises from a DSL name (`row`, `upd`).
func Unexported(name string) string {
	return inflect.CamelizeDownFirst(name)
}

// PackageName lower-cases and pluralizes a table name for its generated
// per-table storage package (`users`, `orders`), matching the teacher's
// per-entity `PackageDir()` convention.
func PackageName(tableName string) string {
	return inflect.Pluralize(inflect.Underscore(tableName))
}

// AliasPackage turns a constraint/update alias (`by_email`, `credit`) into
// its exported Go identifier (`ByEmail`, `Credit`). No generator calls it;
// no per-alias sub-packages are generated.
func AliasPackage(alias string) string {
	return Exported(alias)
}

// QueryFunc exports a query name into the Go function emitted for it.
func QueryFunc(name string) string {
	return Exported(name)
}

// ErrorVariant joins a query name and a DSL-facing name (an assert/unique
// alias, a table name) into an exported error-type name (`credit`, `key`
// gives `CreditKeyError`). No generator calls it; generated queries
// return the shared rowerr error types and no error enum is emitted.
func ErrorVariant(queryName, suffix string) string {
	return Exported(queryName) + Exported(suffix) + "Error"
}
