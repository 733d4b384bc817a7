package coordinator

import (
	"context"
	"strconv"
	"time"

	"github.com/orneryd/graphlite/pkg/cache"
	"github.com/orneryd/graphlite/pkg/catalog"
	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/exec"
	"github.com/orneryd/graphlite/pkg/gql/parser"
	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/session"
	"github.com/orneryd/graphlite/pkg/types"
)

// Summary reports the outcome of a fully-drained ResultStream (spec §6's
// "Summary{RowsAffected, Elapsed, CacheHit}").
type Summary struct {
	RowsAffected int64
	Elapsed      time.Duration
	CacheHit     bool
}

// ResultStream is a pull-based row cursor over one executed statement's
// output, backed directly by the executor's Volcano iterator tree (spec
// §6's "Next pulls one binding at a time from the physical plan's root
// operator"), adapted from the teacher's eagerly-materialized
// cypher.ExecuteResult (pkg/cypher/types.go).
type ResultStream struct {
	columns []string
	iter    exec.Iterator
	ctx     context.Context

	coord *Coordinator
	sess  *session.Session
	txn   *session.Transaction
	owns  bool // true: ResultStream commits/rolls back txn itself on drain/Close

	start        time.Time
	rowsAffected int64
	done         bool
	cacheHit     bool
	finishErr    error

	cacheable   bool
	sig         plan.Signature
	paramHash   uint64
	graphID     uint32
	dataVersion uint64
	buffered    []exec.Row
}

// Columns returns the ordered output column names. A write-only
// statement with no RETURN/YIELD clause reports an empty slice.
func (r *ResultStream) Columns() []string { return r.columns }

// Next pulls the next row, mirroring pkg/gql/exec.Iterator's protocol:
// ok=false with a nil error marks a clean end of stream.
func (r *ResultStream) Next() (exec.Row, bool, error) {
	if r.done {
		return nil, false, nil
	}
	row, ok, err := r.iter.Next(r.ctx)
	if err != nil {
		r.finish(err)
		return nil, false, err
	}
	if !ok {
		r.finish(nil)
		return nil, false, r.finishErr
	}
	r.rowsAffected++
	if r.cacheable {
		r.buffered = append(r.buffered, row)
	}
	return row, true, nil
}

// Summary reports the running totals; accurate once the stream has been
// fully drained (Next returned ok=false) or closed early.
func (r *ResultStream) Summary() Summary {
	return Summary{RowsAffected: r.rowsAffected, Elapsed: time.Since(r.start), CacheHit: r.cacheHit}
}

// Close releases the underlying iterator and, for a stream the
// ResultStream itself opened an implicit transaction for, rolls it back
// if it was not already finalized by a full drain.
func (r *ResultStream) Close() error {
	if !r.done {
		r.finish(gqlerr.Internal(nil, "result stream closed before exhausted"))
	}
	if err := r.iter.Close(); err != nil {
		return err
	}
	return r.finishErr
}

func (r *ResultStream) finish(err error) {
	if r.done {
		return
	}
	r.done = true
	if r.owns && r.txn != nil {
		if err == nil {
			err = r.coord.sessmgr.Commit(r.sess, r.txn)
		} else {
			_ = r.coord.sessmgr.Rollback(r.sess, r.txn)
		}
	}
	if err == nil && r.cacheable {
		r.coord.results.Put(r.sig, r.paramHash, r.graphID, r.dataVersion, r.columns, r.buffered)
	}
	r.finishErr = err
}

// cachedResultStream wraps a result-cache hit in the same ResultStream
// shape, needing no iterator or live transaction.
func cachedResultStream(columns []string, rows []exec.Row) *ResultStream {
	return &ResultStream{
		columns:  columns,
		iter:     &bufferedIter{rows: rows},
		start:    time.Now(),
		done:     false,
		cacheHit: true,
	}
}

// bufferedIter replays a fixed row slice through the Iterator protocol,
// for result-cache hits that need no live executor tree.
type bufferedIter struct {
	rows []exec.Row
	i    int
}

func (b *bufferedIter) Open(context.Context) error { return nil }
func (b *bufferedIter) Close() error               { return nil }
func (b *bufferedIter) Next(context.Context) (exec.Row, bool, error) {
	if b.i >= len(b.rows) {
		return nil, false, nil
	}
	row := b.rows[b.i]
	b.i++
	return row, true, nil
}

// Execute parses, plans and begins executing src against s, returning a
// ResultStream the caller drains via Next (spec §6's execute).
func (c *Coordinator) Execute(ctx context.Context, s *session.Session, src string, params map[string]types.Value) (*ResultStream, error) {
	stmt, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	if err := parser.Validate(stmt); err != nil {
		return nil, err
	}

	switch st := stmt.(type) {
	case *ast.Query:
		return c.executeQuery(ctx, s, st, src, params)
	case *ast.SchemaStatement:
		return c.executeSchemaDDL(s, st)
	case *ast.GraphStatement:
		return c.executeGraphDDL(s, st)
	case *ast.SessionSetStatement:
		return c.executeSessionSet(s, st)
	case *ast.TxnStatement:
		return c.executeTxnControl(s, st)
	default:
		return nil, gqlerr.Internal(nil, "unhandled statement type %T", st)
	}
}

func (c *Coordinator) executeQuery(ctx context.Context, s *session.Session, q *ast.Query, src string, params map[string]types.Value) (*ResultStream, error) {
	if err := c.catalog.CheckPermission(s.Principal, opClassOf(q), resourceOf(s)); err != nil {
		return nil, err
	}

	g, err := c.currentGraph(s)
	if err != nil {
		return nil, err
	}

	logical, err := plan.Build(q)
	if err != nil {
		return nil, err
	}
	logical = plan.Optimize(logical)
	physical := plan.Lower(logical, c.catalog.Stats(g.ID))
	sig := plan.Sign(physical)

	cacheHit := false
	if cached, ok := c.plans.Get(sig, g.ID, g.Version); ok {
		physical = cached
		cacheHit = true
	} else {
		c.plans.Put(sig, g.ID, g.Version, physical)
	}

	mutating := containsMutation(physical)
	paramHash := cache.HashParams(params)
	if !mutating {
		if cols, rows, ok := c.results.Get(sig, paramHash, g.ID, g.DataVersion); ok {
			stream := cachedResultStream(cols, rows)
			stream.cacheHit = true
			return stream, nil
		}
	}

	txn, owns, err := c.acquireTxn(s)
	if err != nil {
		return nil, err
	}

	env := &exec.Env{
		Txn:     txn.Storage,
		Graph:   catalog.GraphPrefix(g),
		Params:  params,
		Catalog: s.Catalog(),
		Cache:   c.stats,
	}
	iter, err := exec.Build(physical, env)
	if err != nil {
		if owns {
			_ = c.sessmgr.Rollback(s, txn)
		}
		return nil, err
	}
	if err := iter.Open(ctx); err != nil {
		if owns {
			_ = c.sessmgr.Rollback(s, txn)
		}
		return nil, err
	}

	c.log.Query(src, strconv.FormatUint(uint64(sig), 16), cacheHit, nil)

	return &ResultStream{
		columns:     columnsOf(physical),
		iter:        iter,
		ctx:         ctx,
		coord:       c,
		sess:        s,
		txn:         txn,
		owns:        owns,
		start:       time.Now(),
		cacheHit:    false,
		cacheable:   !mutating,
		sig:         sig,
		paramHash:   paramHash,
		graphID:     g.ID,
		dataVersion: g.DataVersion,
	}, nil
}

// acquireTxn returns s's existing explicit transaction if it has one
// (owns=false: the caller remains responsible for Commit/Rollback), or
// begins a fresh implicit one the ResultStream itself will finalize.
func (c *Coordinator) acquireTxn(s *session.Session) (*session.Transaction, bool, error) {
	if t := s.Txn(); t != nil {
		return t, false, nil
	}
	t, err := c.sessmgr.BeginImplicit(s, session.ReadCommitted)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func containsMutation(p plan.Physical) bool {
	if p == nil {
		return false
	}
	switch p.(type) {
	case *plan.PInsert, *plan.PSetProp, *plan.PRemoveProp, *plan.PDelete:
		return true
	}
	for _, kid := range p.Children() {
		if containsMutation(kid) {
			return true
		}
	}
	return false
}

// columnsOf walks down to the outermost column-producing node. A plan
// with no RETURN/WITH/CALL...YIELD tail (e.g. a bare INSERT) has no
// output columns.
func columnsOf(p plan.Physical) []string {
	if p == nil {
		return nil
	}
	switch n := p.(type) {
	case *plan.PProject:
		names := make([]string, len(n.Columns))
		for i, col := range n.Columns {
			names[i] = col.Name
		}
		return names
	case *plan.PAggregate:
		names := make([]string, 0, len(n.Groups)+len(n.Aggs))
		for _, col := range n.Groups {
			names = append(names, col.Name)
		}
		for _, col := range n.Aggs {
			names = append(names, col.Name)
		}
		return names
	case *plan.PCall:
		return n.Yield
	case *plan.PSort, *plan.PSkipLimit, *plan.POptional, *plan.PSetOp:
		kids := p.Children()
		if len(kids) > 0 {
			return columnsOf(kids[0])
		}
	}
	return nil
}

// opClassOf picks the operation class a query's permission check is
// performed under (spec §4.2's grant model): a plan that writes is DML,
// otherwise DQL.
func opClassOf(q *ast.Query) catalog.OpClass {
	for _, cl := range q.Clauses {
		switch cl.(type) {
		case *ast.InsertClause, *ast.SetClause, *ast.RemoveClause, *ast.DeleteClause:
			return catalog.OpDML
		}
	}
	return catalog.OpDQL
}

func resourceOf(s *session.Session) string {
	schema := s.CurrentSchema()
	graph := s.CurrentGraph()
	if schema == "" {
		schema = "*"
	}
	if graph == "" {
		graph = "*"
	}
	return schema + "/" + graph
}
