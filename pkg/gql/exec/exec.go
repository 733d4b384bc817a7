// Package exec implements GraphLite's volcano-style executor (spec
// §4.5): physical plans from pkg/gql/plan are lowered into a tree of
// Iterators, each exposing Open/Next/Close over row-bindings. The
// teacher's StorageExecutor (pkg/cypher/executor.go) interprets its
// regex-captured AST directly against *storage.Node/*storage.Edge with
// no separate iterator protocol; this package keeps the teacher's
// function-dispatch style (see functions.go) but drives it through a
// real operator tree instead.
package exec

import (
	"context"
	"time"

	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/storage"
	"github.com/orneryd/graphlite/pkg/types"
)

// CatalogReader is the subset of *catalog.Catalog that CALL gql.* system
// procedures (call.go) read. Defined here, rather than taking a
// *catalog.Catalog directly, so a running coordinator can supply the
// session's version-checked catalog cache (pkg/session's catalogCache)
// instead of the raw catalog (spec §4.5.6, §4.6: "read the catalog
// through the session's catalog cache").
type CatalogReader interface {
	ListSchemas() []string
	ListGraphs(schema string) ([]string, error)
}

// Row is one stream element: a binding of pattern/projection variable
// names to values, per spec §4.5's "rows carry named bindings".
type Row map[string]types.Value

// Clone returns a shallow copy of r, safe to mutate independently of the
// original (needed wherever an operator must hold onto a row across a
// Next call while also producing a derived one, e.g. Optional).
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Env is the per-query execution context threaded through every
// Iterator: the storage transaction and graph the query runs against,
// bound parameters, and the catalog for CALL procedures (spec §4.5.6's
// "read the catalog through the session's catalog cache").
type Env struct {
	Txn     *storage.Transaction
	Graph   storage.GraphPrefix
	Params  map[string]types.Value
	Catalog CatalogReader
	Cache   CacheStats

	// nowOnce caches the instant NOW()/DATE()/TIME()/DATETIME() resolve
	// to, so every call within one query sees the same value.
	nowOnce time.Time
}

func (e *Env) now() time.Time {
	if e.nowOnce.IsZero() {
		e.nowOnce = time.Now().UTC()
	}
	return e.nowOnce
}

// CacheStats is the subset of pkg/cache's counters CALL gql.cache_stats()
// reads. Defined here (rather than importing pkg/cache) to keep exec from
// depending on the cache package; pkg/coordinator supplies the concrete
// implementation.
type CacheStats interface {
	PlanHits() uint64
	PlanMisses() uint64
	ResultHits() uint64
	ResultMisses() uint64
}

// Iterator is the volcano protocol of spec §4.5: "each physical operator
// exposes open, next, close". Next returns ok=false (with a nil error)
// at end of stream.
type Iterator interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (Row, bool, error)
	Close() error
}

// checkDeadline implements spec §5's "operators check the deadline
// between next calls", returning gqlerr.Timeout if ctx has expired.
func checkDeadline(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return gqlerr.Timeout("query deadline exceeded")
	default:
		return nil
	}
}

// Build lowers a physical plan into an Iterator tree.
func Build(p plan.Physical, env *Env) (Iterator, error) {
	if p == nil {
		return &emptyIter{}, nil
	}
	switch n := p.(type) {
	case *plan.PScan:
		return newScanIter(n, env), nil
	case *plan.PExpand:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return newExpandIter(n, env, child), nil
	case *plan.PFilter:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &filterIter{env: env, pred: n.Predicate, input: child}, nil
	case *plan.PProject:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return newProjectIter(n, env, child), nil
	case *plan.PAggregate:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return newAggregateIter(n, env, child), nil
	case *plan.PSort:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &sortIter{env: env, keys: n.Keys, input: child}, nil
	case *plan.PSkipLimit:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &skipLimitIter{env: env, skip: n.Skip, limit: n.Limit, input: child}, nil
	case *plan.PSetOp:
		kids := n.Children()
		left, err := Build(kids[0], env)
		if err != nil {
			return nil, err
		}
		right, err := Build(kids[1], env)
		if err != nil {
			return nil, err
		}
		return newSetOpIter(n.Kind, left, right), nil
	case *plan.POptional:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &optionalIter{input: child}, nil
	case *plan.PUnwind:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &unwindIter{env: env, expr: n.Expr, as: n.As, input: child}, nil
	case *plan.PInsert:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &insertIter{env: env, paths: n.Paths, input: child}, nil
	case *plan.PSetProp:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &setPropIter{env: env, items: n.Items, input: child}, nil
	case *plan.PRemoveProp:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &removePropIter{env: env, items: n.Items, input: child}, nil
	case *plan.PDelete:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return &deleteIter{env: env, vars: n.Vars, detach: n.Detach, input: child}, nil
	case *plan.PCall:
		child, err := buildChild(n, env)
		if err != nil {
			return nil, err
		}
		return newCallIter(n, env, child)
	default:
		return nil, gqlerr.Internal(nil, "exec: unhandled physical node %T", p)
	}
}

func buildChild(p plan.Physical, env *Env) (Iterator, error) {
	kids := p.Children()
	if len(kids) != 1 {
		return &emptyIter{opened: true}, nil
	}
	return Build(kids[0], env)
}

// emptyIter produces exactly one empty-binding row, used as the base of a
// pipeline that starts from literal values only (e.g. UNWIND [1,2,3] with
// no preceding MATCH, or RETURN 1 with no FROM clause at all).
type emptyIter struct {
	opened bool
	done   bool
}

func (e *emptyIter) Open(ctx context.Context) error { e.opened = true; e.done = false; return nil }
func (e *emptyIter) Next(ctx context.Context) (Row, bool, error) {
	if !e.opened {
		return nil, false, gqlerr.Internal(nil, "exec: Next called before Open")
	}
	if e.done {
		return nil, false, nil
	}
	e.done = true
	return Row{}, true, nil
}
func (e *emptyIter) Close() error { return nil }
