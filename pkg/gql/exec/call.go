package exec

import (
	"context"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

// callIter implements CALL gql.* (spec §4.5.6): a fixed, small set of
// system procedures that read the catalog (through env.Catalog, which in
// a running coordinator is backed by the session's version-checked
// catalog cache per §4.6) or the shared plan/result cache counters, and
// yield one row per result. Any child input is ignored: these procedures
// take no rows in GraphLite, only literal/parameter arguments.
type callIter struct {
	child Iterator
	rows  []Row
	idx   int
}

func newCallIter(n *plan.PCall, env *Env, child Iterator) (Iterator, error) {
	rows, err := runProcedure(n.Procedure, n.Args, env)
	if err != nil {
		return nil, err
	}
	return &callIter{child: child, rows: rows}, nil
}

func runProcedure(name string, args []ast.Expr, env *Env) ([]Row, error) {
	switch name {
	case "gql.list_schemas":
		return listSchemas(env)
	case "gql.list_graphs":
		return listGraphs(args, env)
	case "gql.cache_stats":
		return cacheStats(env)
	default:
		return nil, gqlerr.NotFound("procedure " + name)
	}
}

func listSchemas(env *Env) ([]Row, error) {
	names := env.Catalog.ListSchemas()
	rows := make([]Row, len(names))
	for i, name := range names {
		rows[i] = Row{"name": types.String(name)}
	}
	return rows, nil
}

func listGraphs(args []ast.Expr, env *Env) ([]Row, error) {
	if len(args) > 0 {
		v, err := eval(args[0], Row{}, env)
		if err != nil {
			return nil, err
		}
		if v.Kind != types.KindString {
			return nil, gqlerr.TypeErr("gql.list_graphs expects a schema name string")
		}
		names, err := env.Catalog.ListGraphs(v.Str)
		if err != nil {
			return nil, err
		}
		rows := make([]Row, len(names))
		for i, n := range names {
			rows[i] = Row{"schema": v, "name": types.String(n)}
		}
		return rows, nil
	}
	var rows []Row
	for _, schema := range env.Catalog.ListSchemas() {
		names, err := env.Catalog.ListGraphs(schema)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			rows = append(rows, Row{"schema": types.String(schema), "name": types.String(n)})
		}
	}
	return rows, nil
}

func cacheStats(env *Env) ([]Row, error) {
	if env.Cache == nil {
		return []Row{{
			"plan_hits": types.Int(0), "plan_misses": types.Int(0),
			"result_hits": types.Int(0), "result_misses": types.Int(0),
		}}, nil
	}
	return []Row{{
		"plan_hits":     types.Int(int64(env.Cache.PlanHits())),
		"plan_misses":   types.Int(int64(env.Cache.PlanMisses())),
		"result_hits":   types.Int(int64(env.Cache.ResultHits())),
		"result_misses": types.Int(int64(env.Cache.ResultMisses())),
	}}, nil
}

func (c *callIter) Open(ctx context.Context) error {
	if c.child != nil {
		return c.child.Open(ctx)
	}
	return nil
}

func (c *callIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	if c.idx >= len(c.rows) {
		return nil, false, nil
	}
	row := c.rows[c.idx]
	c.idx++
	return row, true, nil
}

func (c *callIter) Close() error {
	if c.child != nil {
		return c.child.Close()
	}
	return nil
}
