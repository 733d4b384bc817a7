package exec

import (
	"context"
	"sort"

	"github.com/orneryd/graphlite/pkg/gql/plan"
)

// projectIter implements Project: evaluates each column against the
// input row, producing a new row containing exactly the projected
// columns. Distinct deduplicates by the value-equality rule across the
// full stream, matching spec §4.5.4's row-equality rule (the teacher has
// no DISTINCT support at all — GraphLite adds it per spec §4.3's
// grammar).
type projectIter struct {
	n     *plan.PProject
	env   *Env
	input Iterator

	seen map[string]bool // populated only when Distinct
}

func newProjectIter(n *plan.PProject, env *Env, input Iterator) *projectIter {
	p := &projectIter{n: n, env: env, input: input}
	if n.Distinct {
		p.seen = map[string]bool{}
	}
	return p
}

func (p *projectIter) Open(ctx context.Context) error { return p.input.Open(ctx) }

func (p *projectIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		row, ok, err := p.input.Next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		out := make(Row, len(p.n.Columns))
		for _, c := range p.n.Columns {
			v, err := eval(c.Expr, row, p.env)
			if err != nil {
				return nil, false, err
			}
			out[c.Name] = v
		}
		if len(p.n.Columns) == 0 {
			out = row // RETURN * with nothing pruned
		}
		if p.n.Distinct {
			key := rowKey(out)
			if p.seen[key] {
				continue
			}
			p.seen[key] = true
		}
		return out, true, nil
	}
}

func (p *projectIter) Close() error { return p.input.Close() }

// rowKey renders a row into a canonical string for DISTINCT/set-op
// deduplication, ordering columns alphabetically so key equality matches
// value equality regardless of map iteration order.
func rowKey(row Row) string {
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sort.Strings(names)
	var b []byte
	for _, n := range names {
		b = append(b, n...)
		b = append(b, '=')
		b = append(b, row[n].String()...)
		b = append(b, ';')
	}
	return string(b)
}
