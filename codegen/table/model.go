package table

import (
	"github.com/syssam/emdbc/internal/ident"
	"github.com/syssam/emdbc/plan"
)

// PackageNames assigns every table in p a stable, pluralized package name,
// the pass Generate needs before it can render any cross-table Key
// reference.
func PackageNames(p *plan.Plan) map[plan.TableKey]string {
	out := map[plan.TableKey]string{}
	p.Tables.Each(func(k plan.TableKey, t plan.Table) {
		out[k] = ident.PackageName(t.Name)
	})
	return out
}
