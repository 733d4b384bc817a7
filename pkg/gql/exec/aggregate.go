package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

// aggregateIter implements Aggregate: materializes the full input stream
// (grouping requires seeing every row before any group's aggregate can
// be finalized), groups by the evaluated group-key tuple — null keys
// group together, per spec §4.5.2 — and computes each aggregate
// expression per group.
type aggregateIter struct {
	n     *plan.PAggregate
	env   *Env
	input Iterator

	rows    []Row
	order   []string
	groups  map[string]Row
	emitted int
}

func newAggregateIter(n *plan.PAggregate, env *Env, input Iterator) *aggregateIter {
	return &aggregateIter{n: n, env: env, input: input}
}

func (a *aggregateIter) Open(ctx context.Context) error {
	if err := a.input.Open(ctx); err != nil {
		return err
	}
	a.groups = map[string]Row{}
	accs := map[string][]*accumulatorSet{}
	for {
		if err := checkDeadline(ctx); err != nil {
			return err
		}
		row, ok, err := a.input.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key, keyVals, err := a.groupKey(row)
		if err != nil {
			return err
		}
		set, seen := accs[key]
		if !seen {
			out := make(Row, len(a.n.Groups))
			for i, c := range a.n.Groups {
				out[c.Name] = keyVals[i]
			}
			a.groups[key] = out
			set = make([]*accumulatorSet, len(a.n.Aggs))
			for i, c := range a.n.Aggs {
				set[i] = newAccumulatorSet(c.Expr)
			}
			accs[key] = set
			a.order = append(a.order, key)
		}
		for i, c := range a.n.Aggs {
			if err := set[i].add(c.Expr, row, a.env); err != nil {
				return err
			}
		}
	}
	if len(a.order) == 0 && len(a.n.Groups) == 0 {
		// Ungrouped aggregate over an empty input still yields one row
		// (e.g. COUNT(*) = 0), per ISO GQL's aggregation semantics.
		key := ""
		a.groups[key] = Row{}
		accs[key] = make([]*accumulatorSet, len(a.n.Aggs))
		for i, c := range a.n.Aggs {
			accs[key][i] = newAccumulatorSet(c.Expr)
		}
		a.order = append(a.order, key)
	}
	for _, key := range a.order {
		row := a.groups[key]
		for i, c := range a.n.Aggs {
			row[c.Name] = accs[key][i].result()
		}
	}
	return nil
}

func (a *aggregateIter) groupKey(row Row) (string, []types.Value, error) {
	vals := make([]types.Value, len(a.n.Groups))
	for i, c := range a.n.Groups {
		v, err := eval(c.Expr, row, a.env)
		if err != nil {
			return "", nil, err
		}
		vals[i] = v
	}
	r := make(Row, len(vals))
	for i, v := range vals {
		r[a.n.Groups[i].Name] = v
	}
	return rowKey(r), vals, nil
}

func (a *aggregateIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	if a.emitted >= len(a.order) {
		return nil, false, nil
	}
	row := a.groups[a.order[a.emitted]]
	a.emitted++
	return row, true, nil
}

func (a *aggregateIter) Close() error { return a.input.Close() }

// accumulatorSet folds one aggregate expression's rows into a running
// result, per spec §4.5.2's COUNT/SUM/AVG/MIN/MAX/COLLECT and
// COUNT(DISTINCT x).
type accumulatorSet struct {
	name       string
	count      int64
	sum        float64
	sumIsFloat bool
	min, max   types.Value
	hasMinMax  bool
	collected  []types.Value
	distinct   map[string]bool
}

func newAccumulatorSet(e ast.Expr) *accumulatorSet {
	a := &accumulatorSet{}
	if call, ok := e.(*ast.FuncCall); ok {
		a.name = call.Name
		if call.Distinct {
			a.distinct = map[string]bool{}
		}
	}
	return a
}

func (a *accumulatorSet) add(e ast.Expr, row Row, env *Env) error {
	call, ok := e.(*ast.FuncCall)
	if !ok {
		return gqlerr.Internal(nil, "aggregate: expected a function call, got %T", e)
	}
	if call.Star {
		a.count++
		return nil
	}
	if len(call.Args) != 1 {
		return gqlerr.TypeErr("%s expects 1 argument, got %d", call.Name, len(call.Args))
	}
	v, err := eval(call.Args[0], row, env)
	if err != nil {
		return err
	}
	if v.IsNull() && call.Name != "COLLECT" {
		return nil // aggregates other than COLLECT skip null inputs
	}
	if a.distinct != nil {
		key := v.String()
		if a.distinct[key] {
			return nil
		}
		a.distinct[key] = true
	}
	switch call.Name {
	case "COUNT":
		if !v.IsNull() {
			a.count++
		}
	case "SUM":
		f, ok := numeric(v)
		if !ok {
			return gqlerr.TypeErr("SUM requires numeric values, got %s", v.Kind.TypeName())
		}
		a.sum += f
		a.sumIsFloat = a.sumIsFloat || v.Kind == types.KindFloat
		a.count++
	case "AVG":
		f, ok := numeric(v)
		if !ok {
			return gqlerr.TypeErr("AVG requires numeric values, got %s", v.Kind.TypeName())
		}
		a.sum += f
		a.count++
	case "MIN":
		if !a.hasMinMax {
			a.min, a.hasMinMax = v, true
		} else if cmp, ok := types.Compare(v, a.min); ok && cmp < 0 {
			a.min = v
		}
	case "MAX":
		if !a.hasMinMax {
			a.max, a.hasMinMax = v, true
		} else if cmp, ok := types.Compare(v, a.max); ok && cmp > 0 {
			a.max = v
		}
	case "COLLECT":
		if !v.IsNull() {
			a.collected = append(a.collected, v)
		}
	default:
		return gqlerr.New(gqlerr.KindSemantic, "%s is not an aggregate function", call.Name)
	}
	return nil
}

func (a *accumulatorSet) result() types.Value {
	switch a.name {
	case "COUNT":
		return types.Int(a.count)
	case "SUM":
		if a.count == 0 {
			return types.Int(0)
		}
		if a.sumIsFloat {
			return types.Float(a.sum)
		}
		return types.Int(int64(a.sum))
	case "AVG":
		if a.count == 0 {
			return types.Null()
		}
		return types.Float(a.sum / float64(a.count))
	case "MIN":
		if !a.hasMinMax {
			return types.Null()
		}
		return a.min
	case "MAX":
		if !a.hasMinMax {
			return types.Null()
		}
		return a.max
	case "COLLECT":
		return types.List(a.collected)
	default:
		return types.Null()
	}
}
