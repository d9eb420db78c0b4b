package backend

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"golang.org/x/tools/imports"

	"github.com/syssam/emdbc/codegen/query"
	"github.com/syssam/emdbc/codegen/table"
	"github.com/syssam/emdbc/diag"
	"github.com/syssam/emdbc/internal/ident"
	"github.com/syssam/emdbc/plan"
)

// Output is everything Facade.Generate renders: one file per table
// package, one source tree for the datastore package (the facade type
// itself plus one file per query method and, when requested, the
// Collaborator Hook interface), keyed the way WriteOutput expects to lay
// them onto disk.
type Output struct {
	// TableFiles maps a table's generated package name to its file.
	TableFiles map[string]*jen.File
	// DBPackage is the package name the datastore facade and every query
	// method live in.
	DBPackage string
	// DatabaseFile is the facade type + constructor.
	DatabaseFile *jen.File
	// QueryFiles maps a query's name to its generated method file.
	QueryFiles map[string]*jen.File
	// InterfaceFile is non-nil only when Options.Interface is set.
	InterfaceFile *jen.File
}

// Facade is C8's entry point: spec.md §6's back-end façade, turning one
// lowered plan plus Options into a full rendered Go source tree.
type Facade struct{}

// Generate runs C6 (codegen/table) over every table and C7 (codegen/query)
// over every query, both fanned out over bounded errgroups, then emits
// the Datastore facade type they attach to and — when Options.Interface
// is set — its Collaborator Hook interface (spec.md §6). modulePath is
// the module the generated tree will live under, used to build import
// paths between generated packages the way gentype.GoType already does
// for cross-table references.
func (Facade) Generate(p *plan.Plan, modulePath string, opts Options) (Output, diag.List) {
	var diags diag.List
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	opts.Log.Debug("backend: generating", "tables", p.Tables.Len(), "queries", p.Queries.Len(), "selector", opts.Selector, "profile", opts.Profile)

	if err := p.Validate(); err != nil {
		diags = append(diags, diag.New(diag.Error, diag.CodeInternal, diag.Span{}, "plan failed validation: %v", err))
		return Output{}, diags
	}

	pkgOf := table.PackageNames(p)
	dbPkg := "db"

	tableFiles, err := table.GenerateAll(p, modulePath, opts.Selector, opts.CodegenWorkers)
	if err != nil {
		diags = append(diags, diag.New(diag.Error, diag.CodeInternal, diag.Span{}, "table codegen: %v", err))
		return Output{}, diags
	}
	opts.Log.Debug("backend: tables generated", "count", len(tableFiles))

	dbFile, dsType, dsRecv, err := genDatabase(p, pkgOf, modulePath, dbPkg, opts)
	if err != nil {
		diags = append(diags, diag.New(diag.Error, diag.CodeInternal, diag.Span{}, "datastore codegen: %v", err))
		return Output{}, diags
	}

	queryFiles, err := query.GenerateAll(p, pkgOf, modulePath, dbPkg, dsType, dsRecv, opts.CodegenWorkers)
	if err != nil {
		diags = append(diags, diag.New(diag.Error, diag.CodeInternal, diag.Span{}, "query codegen: %v", err))
		return Output{}, diags
	}
	opts.Log.Debug("backend: queries generated", "count", len(queryFiles))

	out := Output{
		TableFiles:   tableFiles,
		DBPackage:    dbPkg,
		DatabaseFile: dbFile,
		QueryFiles:   queryFiles,
	}

	if opts.Interface != "" {
		ifaceFile, err := genInterface(p, pkgOf, modulePath, dbPkg, opts.Interface)
		if err != nil {
			diags = append(diags, diag.New(diag.Error, diag.CodeInternal, diag.Span{}, "interface codegen: %v", err))
			return out, diags
		}
		out.InterfaceFile = ifaceFile
		opts.Log.Debug("backend: collaborator hook emitted", "interface", opts.Interface)
	}

	return out, diags
}

// genInterface renders the Collaborator Hook trait of spec.md §6: a Go
// interface naming every query's method signature so unrelated packages
// can depend on the Datastore's shape without its implementation.
func genInterface(p *plan.Plan, pkgOf map[plan.TableKey]string, modulePath, dbPkg, name string) (*jen.File, error) {
	f := jen.NewFile(dbPkg)
	f.HeaderComment("Code generated by emdbc. DO NOT EDIT.")

	methods := make([]jen.Code, 0, p.Queries.Len())
	for _, qk := range p.Queries.Keys() {
		q := p.Queries.MustGet(qk)
		params, ret, err := query.Signature(p, qk, pkgOf, modulePath)
		if err != nil {
			return nil, fmt.Errorf("backend: interface %s: %w", name, err)
		}
		methods = append(methods, jen.Id(ident.QueryFunc(q.Name)).Params(params...).Params(ret, jen.Error()))
	}

	f.Commentf("%s describes a datastore's query surface without committing callers to its implementation (spec.md's Collaborator Hook).", ident.Exported(name))
	f.Type().Id(ident.Exported(name)).Interface(methods...)
	f.Line()
	return f, nil
}

// WriteOutput renders out to disk under dir: one subdirectory per table
// package, and dir/<DBPackage>/ for the datastore facade, every query
// method file, and the optional interface file — grounded on
// codegen/table.WriteAll's writeFile helper, reused here for the
// datastore/interface files that don't belong to any one table.
func WriteOutput(out Output, dir string) error {
	if err := table.WriteAll(out.TableFiles, dir); err != nil {
		return err
	}
	if err := query.WriteAll(out.QueryFiles, dir, out.DBPackage); err != nil {
		return err
	}
	if out.DatabaseFile != nil {
		if err := writeFile(out.DatabaseFile, dir, out.DBPackage, "database.go"); err != nil {
			return fmt.Errorf("backend: writing database.go: %w", err)
		}
	}
	if out.InterfaceFile != nil {
		if err := writeFile(out.InterfaceFile, dir, out.DBPackage, "interface.go"); err != nil {
			return fmt.Errorf("backend: writing interface.go: %w", err)
		}
	}
	return nil
}

func writeFile(f *jen.File, dir, subdir, filename string) error {
	pkgDir := filepath.Join(dir, subdir)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return err
	}
	fullPath := filepath.Join(pkgDir, filename)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return err
	}
	formatted, err := imports.Process(fullPath, buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("backend: formatting %s: %w", fullPath, err)
	}
	return os.WriteFile(fullPath, formatted, 0o644)
}
