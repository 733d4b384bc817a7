package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gql/plan"
	"github.com/orneryd/graphlite/pkg/storage"
	"github.com/orneryd/graphlite/pkg/types"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	engine, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	gp := storage.GraphPrefix{SchemaID: 1, GraphID: 1}
	tx := engine.Begin()

	people := []struct {
		name string
		age  int64
	}{{"alice", 30}, {"bob", 25}, {"carol", 30}}
	for _, p := range people {
		node := &types.Node{
			ID:     types.NewNodeID(),
			Labels: []string{"Person"},
			Properties: map[string]types.Value{
				"name": types.String(p.name),
				"age":  types.Int(p.age),
			},
		}
		require.NoError(t, tx.PutNode(gp, node))
	}
	return &Env{Txn: tx, Graph: gp}
}

func buildPhysical(t *testing.T, q *ast.Query) plan.Physical {
	t.Helper()
	logical, err := plan.Build(q)
	require.NoError(t, err)
	logical = plan.Optimize(logical)
	return plan.Lower(logical, nil)
}

func drainTest(t *testing.T, it Iterator) []Row {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, it.Open(ctx))
	var rows []Row
	for {
		row, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	require.NoError(t, it.Close())
	return rows
}

func personProp(prop string) ast.Expr {
	return &ast.PropertyAccess{Target: &ast.Ident{Name: "n"}, Property: prop}
}

func matchReturn(where ast.Expr, items ...*ast.ProjectItem) *ast.Query {
	return &ast.Query{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []*ast.PatternPath{{
			Nodes: []*ast.NodePattern{{Var: "n", Labels: []string{"Person"}}},
		}}, Where: where},
		&ast.ReturnClause{Items: items},
	}}
}

func TestScanIterYieldsEveryNode(t *testing.T) {
	env := newTestEnv(t)
	p := buildPhysical(t, matchReturn(nil, &ast.ProjectItem{Expr: &ast.Ident{Name: "n"}}))

	it, err := Build(p, env)
	require.NoError(t, err)
	rows := drainTest(t, it)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, types.KindNode, r["n"].Kind)
	}
}

func TestFilterIterKeepsOnlyMatchingRows(t *testing.T) {
	env := newTestEnv(t)
	pred := &ast.BinaryOp{Op: ">", Left: personProp("age"), Right: &ast.Literal{Kind: ast.LitInt, Int: 26}}
	p := buildPhysical(t, matchReturn(pred, &ast.ProjectItem{Expr: &ast.Ident{Name: "n"}}))

	// A non-equality predicate can't be folded into an IndexScan, so a
	// real PFilter node must survive lowering.
	proj, ok := p.(*plan.PProject)
	require.True(t, ok)
	_, ok = proj.Children()[0].(*plan.PFilter)
	require.True(t, ok, "a range predicate must stay a Filter, not fold into the scan's access path")

	it, err := Build(p, env)
	require.NoError(t, err)
	rows := drainTest(t, it)
	assert.Len(t, rows, 2, "only the two age-30 rows satisfy age > 26")
}

func TestProjectIterProducesNamedColumns(t *testing.T) {
	env := newTestEnv(t)
	p := buildPhysical(t, matchReturn(nil, &ast.ProjectItem{Expr: personProp("name"), Alias: "personName"}))

	it, err := Build(p, env)
	require.NoError(t, err)
	rows := drainTest(t, it)
	require.Len(t, rows, 3)
	got := make([]string, len(rows))
	for i, r := range rows {
		_, hasOld := r["n"]
		assert.False(t, hasOld, "Project must prune the input column")
		got[i] = r["personName"].Str
	}
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, got)
}

func TestProjectDistinctDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	q := matchReturn(nil, &ast.ProjectItem{Expr: personProp("age"), Alias: "age"})
	q.Clauses[1].(*ast.ReturnClause).Distinct = true
	p := buildPhysical(t, q)

	it, err := Build(p, env)
	require.NoError(t, err)
	rows := drainTest(t, it)
	assert.Len(t, rows, 2, "ages 30 and 25 collapse to two distinct rows despite three people")
}

func TestAggregateCountsPerGroup(t *testing.T) {
	env := newTestEnv(t)
	p := buildPhysical(t, matchReturn(nil,
		&ast.ProjectItem{Expr: personProp("age"), Alias: "age"},
		&ast.ProjectItem{Expr: &ast.FuncCall{Name: "COUNT", Star: true}, Alias: "c"},
	))

	agg, ok := p.(*plan.PAggregate)
	require.True(t, ok)
	assert.Len(t, agg.Groups, 1)
	assert.Len(t, agg.Aggs, 1)

	it, err := Build(p, env)
	require.NoError(t, err)
	rows := drainTest(t, it)
	require.Len(t, rows, 2, "ages 30 and 25 form two groups")
	counts := map[int64]int64{}
	for _, r := range rows {
		counts[r["age"].Int] = r["c"].Int
	}
	assert.Equal(t, int64(2), counts[30])
	assert.Equal(t, int64(1), counts[25])
}

func TestAggregateUngroupedOverEmptyInputYieldsOneRow(t *testing.T) {
	env := newTestEnv(t)
	pred := &ast.BinaryOp{Op: "=", Left: personProp("age"), Right: &ast.Literal{Kind: ast.LitInt, Int: 999}}
	p := buildPhysical(t, matchReturn(pred, &ast.ProjectItem{Expr: &ast.FuncCall{Name: "COUNT", Star: true}, Alias: "c"}))

	it, err := Build(p, env)
	require.NoError(t, err)
	rows := drainTest(t, it)
	require.Len(t, rows, 1, "an ungrouped COUNT(*) over zero matching rows still yields one row")
	assert.Equal(t, int64(0), rows[0]["c"].Int)
}

func TestSkipLimitBoundsRows(t *testing.T) {
	env := newTestEnv(t)
	q := matchReturn(nil, &ast.ProjectItem{Expr: &ast.Ident{Name: "n"}})
	ret := q.Clauses[1].(*ast.ReturnClause)
	ret.Skip = &ast.Literal{Kind: ast.LitInt, Int: 1}
	ret.Limit = &ast.Literal{Kind: ast.LitInt, Int: 1}
	p := buildPhysical(t, q)

	it, err := Build(p, env)
	require.NoError(t, err)
	rows := drainTest(t, it)
	assert.Len(t, rows, 1)
}

func TestSortOrdersByKey(t *testing.T) {
	env := newTestEnv(t)
	q := matchReturn(nil, &ast.ProjectItem{Expr: personProp("name"), Alias: "name"})
	ret := q.Clauses[1].(*ast.ReturnClause)
	ret.OrderBy = []*ast.OrderItem{{Expr: &ast.Ident{Name: "name"}}}
	p := buildPhysical(t, q)

	it, err := Build(p, env)
	require.NoError(t, err)
	rows := drainTest(t, it)
	require.Len(t, rows, 3)
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r["name"].Str
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, got)
}

func TestBuildNilPhysicalYieldsOneEmptyRow(t *testing.T) {
	it, err := Build(nil, &Env{})
	require.NoError(t, err)
	rows := drainTest(t, it)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0])
}
