package query

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/syssam/emdbc/plan"
)

// GenerateAll renders every query in p, fanning generation out over a
// bounded errgroup — the same worker-pool shape codegen/table.GenerateAll
// uses, reused here so backend.Facade.Generate can drive both table and
// query emission identically.
func GenerateAll(p *plan.Plan, pkgOf map[plan.TableKey]string, modulePath, dbPkg, dbType, dbRecv string, workers int) (map[string]*jen.File, error) {
	keys := p.Queries.Keys()

	if workers <= 0 {
		workers = 4
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)

	names := make([]string, len(keys))
	files := make([]*jen.File, len(keys))
	for i, qk := range keys {
		i, qk := i, qk
		g.Go(func() error {
			f, err := Generate(p, qk, pkgOf, modulePath, dbPkg, dbType, dbRecv)
			if err != nil {
				return err
			}
			q := p.Queries.MustGet(qk)
			files[i] = f
			names[i] = q.Name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]*jen.File, len(keys))
	for i := range keys {
		out[names[i]] = files[i]
	}
	return out, nil
}

// WriteAll renders out to <dir>/<dbPkgDir>/<query>.go — the same
// directory the Database facade type itself lives in, since the
// generated query methods attach to that type and Go requires every file
// of a package to share one directory. Grounded on codegen/table.WriteAll's
// writeFile helper.
func WriteAll(out map[string]*jen.File, dir, dbPkgDir string) error {
	for name, f := range out {
		if err := writeFile(f, dir, dbPkgDir, name+".go"); err != nil {
			return fmt.Errorf("query: writing %s: %w", name, err)
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
		return fmt.Errorf("query: formatting %s: %w", fullPath, err)
	}
	return os.WriteFile(fullPath, formatted, 0o644)
}
