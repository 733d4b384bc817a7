package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gqlerr"
)

func mustParse(t *testing.T, src string) ast.Statement {
	t.Helper()
	stmt, err := Parse(src)
	require.NoError(t, err, "source: %s", src)
	return stmt
}

func TestParseMatchReturnBuildsExpectedTree(t *testing.T) {
	q := mustParse(t, "MATCH (n:Person) WHERE n.age > 25 RETURN n.name AS name").(*ast.Query)
	require.Len(t, q.Clauses, 2)

	match := q.Clauses[0].(*ast.MatchClause)
	assert.False(t, match.Optional)
	require.Len(t, match.Patterns, 1)
	require.Len(t, match.Patterns[0].Nodes, 1)
	assert.Equal(t, "n", match.Patterns[0].Nodes[0].Var)
	assert.Equal(t, []string{"Person"}, match.Patterns[0].Nodes[0].Labels)
	require.NotNil(t, match.Where)

	ret := q.Clauses[1].(*ast.ReturnClause)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, "name", ret.Items[0].Alias)
	prop := ret.Items[0].Expr.(*ast.PropertyAccess)
	assert.Equal(t, "name", prop.Property)
	assert.Equal(t, "n", prop.Target.(*ast.Ident).Name)
}

func TestParseOptionalMatch(t *testing.T) {
	q := mustParse(t, "OPTIONAL MATCH (n:Person) RETURN n").(*ast.Query)
	match := q.Clauses[0].(*ast.MatchClause)
	assert.True(t, match.Optional)
}

func TestParseRelPatternDirectionsAndTypes(t *testing.T) {
	q := mustParse(t, "MATCH (a)-[r:KNOWS|LIKES]->(b) RETURN r").(*ast.Query)
	match := q.Clauses[0].(*ast.MatchClause)
	path := match.Patterns[0]
	require.Len(t, path.Nodes, 2)
	require.Len(t, path.Rels, 1)
	rel := path.Rels[0]
	assert.Equal(t, ast.RelRight, rel.Direction)
	assert.Equal(t, []string{"KNOWS", "LIKES"}, rel.Types)
	assert.Equal(t, "r", rel.Var)
}

func TestParseLeftPointingRelPattern(t *testing.T) {
	q := mustParse(t, "MATCH (a)<-[:KNOWS]-(b) RETURN a").(*ast.Query)
	rel := q.Clauses[0].(*ast.MatchClause).Patterns[0].Rels[0]
	assert.Equal(t, ast.RelLeft, rel.Direction)
}

func TestParseUndirectedRelPattern(t *testing.T) {
	q := mustParse(t, "MATCH (a)-[:KNOWS]-(b) RETURN a").(*ast.Query)
	rel := q.Clauses[0].(*ast.MatchClause).Patterns[0].Rels[0]
	assert.Equal(t, ast.RelEither, rel.Direction)
}

func TestParseBothDirectionsRejected(t *testing.T) {
	_, err := Parse("MATCH (a)<-[:KNOWS]->(b) RETURN a")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSyntax))
}

func TestParseNodePatternWithMapLiteral(t *testing.T) {
	q := mustParse(t, `INSERT (n:Person {name: 'alice', age: 30})`).(*ast.Query)
	insert := q.Clauses[0].(*ast.InsertClause)
	n := insert.Paths[0].Nodes[0]
	require.NotNil(t, n.Props)
	assert.Equal(t, []string{"name", "age"}, n.Props.Keys)
	assert.Equal(t, "alice", n.Props.Values[0].(*ast.Literal).Str)
	assert.Equal(t, int64(30), n.Props.Values[1].(*ast.Literal).Int)
}

func TestParseWithClauseNarrowsScope(t *testing.T) {
	q := mustParse(t, "MATCH (n:Person) WITH n.name AS name RETURN name").(*ast.Query)
	require.Len(t, q.Clauses, 3)
	with := q.Clauses[1].(*ast.WithClause)
	assert.Equal(t, "name", with.Items[0].Alias)
}

func TestParseWithReferencingUnprojectedVariableFailsValidation(t *testing.T) {
	_, err := Parse("MATCH (n:Person) WITH n.name AS name RETURN n")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSemantic), "RETURN n is out of scope once WITH narrows to just 'name'")
}

func TestParseOrderBySkipLimit(t *testing.T) {
	q := mustParse(t, "MATCH (n:Person) RETURN n.name AS name ORDER BY name DESC SKIP 1 LIMIT 10").(*ast.Query)
	ret := q.Clauses[1].(*ast.ReturnClause)
	require.Len(t, ret.OrderBy, 1)
	assert.True(t, ret.OrderBy[0].Descending)
	assert.Equal(t, int64(1), ret.Skip.(*ast.Literal).Int)
	assert.Equal(t, int64(10), ret.Limit.(*ast.Literal).Int)
}

func TestParseDistinctReturn(t *testing.T) {
	q := mustParse(t, "MATCH (n:Person) RETURN DISTINCT n.age AS age").(*ast.Query)
	assert.True(t, q.Clauses[1].(*ast.ReturnClause).Distinct)
}

func TestParseReturnStar(t *testing.T) {
	q := mustParse(t, "MATCH (n) RETURN *").(*ast.Query)
	assert.True(t, q.Clauses[1].(*ast.ReturnClause).Items[0].Star)
}

func TestParseUnwind(t *testing.T) {
	q := mustParse(t, "UNWIND [1, 2, 3] AS x RETURN x").(*ast.Query)
	unwind := q.Clauses[0].(*ast.UnwindClause)
	assert.Equal(t, "x", unwind.As)
	lit := unwind.Expr.(*ast.Literal)
	assert.Equal(t, ast.LitList, lit.Kind)
	assert.Len(t, lit.List, 3)
}

func TestParseListComprehension(t *testing.T) {
	q := mustParse(t, "MATCH (n) RETURN [x IN n.tags WHERE x <> '' | x] AS t").(*ast.Query)
	item := q.Clauses[1].(*ast.ReturnClause).Items[0]
	lc := item.Expr.(*ast.ListComprehension)
	assert.Equal(t, "x", lc.Var)
	require.NotNil(t, lc.Where)
	require.NotNil(t, lc.Expr)
}

func TestParseSetPropertyLabelAndAllProps(t *testing.T) {
	q := mustParse(t, "MATCH (n) SET n.age = 31, n:Admin, n = {name: 'x'}").(*ast.Query)
	set := q.Clauses[1].(*ast.SetClause)
	require.Len(t, set.Items, 3)
	assert.Equal(t, ast.SetProperty, set.Items[0].Kind)
	assert.Equal(t, "age", set.Items[0].Property)
	assert.Equal(t, ast.SetLabel, set.Items[1].Kind)
	assert.Equal(t, "Admin", set.Items[1].Label)
	assert.Equal(t, ast.SetAllProps, set.Items[2].Kind)
}

func TestParseRemoveLabelAndProperty(t *testing.T) {
	q := mustParse(t, "MATCH (n) REMOVE n:Admin, n.age").(*ast.Query)
	remove := q.Clauses[1].(*ast.RemoveClause)
	require.Len(t, remove.Items, 2)
	assert.Equal(t, "Admin", remove.Items[0].Label)
	assert.Equal(t, "age", remove.Items[1].Property)
}

func TestParseDetachDelete(t *testing.T) {
	q := mustParse(t, "MATCH (n) DETACH DELETE n").(*ast.Query)
	del := q.Clauses[1].(*ast.DeleteClause)
	assert.True(t, del.Detach)
	assert.Equal(t, []string{"n"}, del.Vars)
}

func TestParseCallWithYield(t *testing.T) {
	q := mustParse(t, "CALL db.labels() YIELD label RETURN label").(*ast.Query)
	call := q.Clauses[0].(*ast.CallClause)
	assert.Equal(t, "db.labels", call.Procedure)
	assert.Equal(t, []string{"label"}, call.Yield)
}

func TestParseCaseExpression(t *testing.T) {
	q := mustParse(t, "MATCH (n) RETURN CASE WHEN n.age > 18 THEN 'adult' ELSE 'minor' END AS bucket").(*ast.Query)
	c := q.Clauses[1].(*ast.ReturnClause).Items[0].Expr.(*ast.CaseExpr)
	require.Len(t, c.Whens, 1)
	require.NotNil(t, c.Else)
}

func TestParseUnionCombinesTwoQueries(t *testing.T) {
	q := mustParse(t, "MATCH (n:A) RETURN n.name AS x UNION MATCH (n:B) RETURN n.name AS x").(*ast.Query)
	require.NotNil(t, q.SetOp)
	assert.Equal(t, ast.SetOpUnion, q.SetOp.Kind)
}

func TestParseUnionAll(t *testing.T) {
	q := mustParse(t, "MATCH (n:A) RETURN n.name AS x UNION ALL MATCH (n:B) RETURN n.name AS x").(*ast.Query)
	assert.Equal(t, ast.SetOpUnionAll, q.SetOp.Kind)
}

func TestParseOperatorPrecedence(t *testing.T) {
	q := mustParse(t, "MATCH (n) WHERE n.a + 1 * 2 = 5 AND NOT n.b RETURN n").(*ast.Query)
	where := q.Clauses[0].(*ast.MatchClause).Where.(*ast.BinaryOp)
	assert.Equal(t, "AND", where.Op)
	eq := where.Left.(*ast.BinaryOp)
	assert.Equal(t, "=", eq.Op)
	add := eq.Left.(*ast.BinaryOp)
	assert.Equal(t, "+", add.Op)
	mul := add.Right.(*ast.BinaryOp)
	assert.Equal(t, "*", mul.Op, "multiplication must bind tighter than addition")
}

func TestParseStringConcatAndFunctionCall(t *testing.T) {
	q := mustParse(t, "MATCH (n) RETURN UPPER(n.name) AS shout").(*ast.Query)
	call := q.Clauses[1].(*ast.ReturnClause).Items[0].Expr.(*ast.FuncCall)
	assert.Equal(t, "UPPER", call.Name)
	require.Len(t, call.Args, 1)
}

func TestParseAggregateWithStarArg(t *testing.T) {
	q := mustParse(t, "MATCH (n) RETURN COUNT(*) AS c").(*ast.Query)
	call := q.Clauses[1].(*ast.ReturnClause).Items[0].Expr.(*ast.FuncCall)
	assert.True(t, call.Star)
}

func TestParseIsNullOperator(t *testing.T) {
	q := mustParse(t, "MATCH (n) WHERE n.age IS NOT NULL RETURN n").(*ast.Query)
	isNull := q.Clauses[0].(*ast.MatchClause).Where.(*ast.IsNullOp)
	assert.True(t, isNull.Not)
}

func TestParseCreateDropAlterSchemaDDL(t *testing.T) {
	stmt := mustParse(t, "CREATE SCHEMA /eng").(*ast.SchemaStatement)
	assert.Equal(t, ast.OpCreate, stmt.Op)
	assert.Equal(t, "/eng", stmt.Name)

	stmt = mustParse(t, "DROP SCHEMA /eng").(*ast.SchemaStatement)
	assert.Equal(t, ast.OpDrop, stmt.Op)

	stmt = mustParse(t, "ALTER SCHEMA /eng").(*ast.SchemaStatement)
	assert.Equal(t, ast.OpAlter, stmt.Op)
}

func TestParseGraphDDLSplitsLastSlash(t *testing.T) {
	stmt := mustParse(t, "CREATE GRAPH /eng/prod").(*ast.GraphStatement)
	assert.Equal(t, "/eng", stmt.SchemaName)
	assert.Equal(t, "prod", stmt.GraphName)
}

func TestParseGraphDDLWithoutSlashHasEmptySchema(t *testing.T) {
	stmt := mustParse(t, "CREATE GRAPH secondary").(*ast.GraphStatement)
	assert.Empty(t, stmt.SchemaName)
	assert.Equal(t, "secondary", stmt.GraphName)
}

func TestParseSessionSetSchemaAndGraph(t *testing.T) {
	stmt := mustParse(t, "SESSION SET SCHEMA /eng").(*ast.SessionSetStatement)
	assert.True(t, stmt.Schema)
	assert.Equal(t, "/eng", stmt.Name)

	stmt = mustParse(t, "SESSION SET GRAPH prod").(*ast.SessionSetStatement)
	assert.False(t, stmt.Schema)
	assert.Equal(t, "prod", stmt.Name)
}

func TestParseTxnControlWithIsolationLevel(t *testing.T) {
	stmt := mustParse(t, "BEGIN TRANSACTION ISOLATION LEVEL SERIALIZABLE").(*ast.TxnStatement)
	assert.Equal(t, ast.TxnBegin, stmt.Op)
	assert.Equal(t, "SERIALIZABLE", stmt.Isolation)

	stmt = mustParse(t, "COMMIT").(*ast.TxnStatement)
	assert.Equal(t, ast.TxnCommit, stmt.Op)

	stmt = mustParse(t, "ROLLBACK").(*ast.TxnStatement)
	assert.Equal(t, ast.TxnRollback, stmt.Op)
}

func TestParseEmptyQueryIsSyntaxError(t *testing.T) {
	_, err := Parse("")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSyntax))
}

func TestParseUndefinedVariableIsSemanticError(t *testing.T) {
	_, err := Parse("MATCH (n:Person) RETURN m")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSemantic))
}

func TestParseDuplicateAliasIsSemanticError(t *testing.T) {
	_, err := Parse("MATCH (n:Person) RETURN n.name AS x, n.age AS x")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSemantic))
}

func TestParseMixedAggregateAndBareVariableIsSemanticError(t *testing.T) {
	_, err := Parse("MATCH (n:Person) RETURN n.age, COUNT(*) AS c")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSemantic), "a non-aggregate item mixed with an aggregate must be a bare grouping-key identifier, not a property access")
}

func TestParseAggregateGroupedByPropertyIsValid(t *testing.T) {
	_, err := Parse("MATCH (n:Person) WITH n.age AS age RETURN age, COUNT(*) AS c")
	assert.NoError(t, err, "age is bound as a bare identifier by the preceding WITH, satisfying the grouping-key check")
}

func TestParseFuncCallWrongArityIsSemanticError(t *testing.T) {
	_, err := Parse("MATCH (n) RETURN UPPER(n.name, n.age) AS x")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSemantic))
}

func TestParseBareInsertWithNoReturnPassesValidation(t *testing.T) {
	_, err := Parse("INSERT (n:Person {name: 'alice'})")
	assert.NoError(t, err)
}

func TestParseSetOnUndefinedVariableIsSemanticError(t *testing.T) {
	_, err := Parse("MATCH (n) SET m.age = 1")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSemantic))
}

func TestParseGroupByHaving(t *testing.T) {
	q := mustParse(t, "MATCH (p:Person) RETURN p.city, COUNT(p) AS n GROUP BY p.city ORDER BY n DESC").(*ast.Query)
	ret := q.Clauses[1].(*ast.ReturnClause)
	require.Len(t, ret.GroupBy, 1)
	prop := ret.GroupBy[0].(*ast.PropertyAccess)
	assert.Equal(t, "city", prop.Property)
	require.Len(t, ret.OrderBy, 1)
}

func TestParseGroupByWithHaving(t *testing.T) {
	q := mustParse(t, "MATCH (p:Person) RETURN p.city, COUNT(p) AS n GROUP BY p.city HAVING n > 5").(*ast.Query)
	ret := q.Clauses[1].(*ast.ReturnClause)
	require.Len(t, ret.GroupBy, 1)
	require.NotNil(t, ret.Having)
	bin := ret.Having.(*ast.BinaryOp)
	assert.Equal(t, ">", bin.Op)
}

func TestParseWithGroupByHaving(t *testing.T) {
	q := mustParse(t, "MATCH (p:Person) WITH p.city AS city, COUNT(p) AS n GROUP BY p.city HAVING n > 5 RETURN city, n").(*ast.Query)
	with := q.Clauses[1].(*ast.WithClause)
	require.Len(t, with.GroupBy, 1)
	require.NotNil(t, with.Having)
}

func TestParseHavingWithoutGroupByIsSyntaxError(t *testing.T) {
	_, err := Parse("MATCH (p:Person) RETURN COUNT(p) AS n HAVING n > 5")
	assert.True(t, gqlerr.Is(err, gqlerr.KindSyntax), "HAVING requires a preceding GROUP BY clause")
}

func TestParseBacktickIdentifierAsLabel(t *testing.T) {
	q := mustParse(t, "MATCH (n:`weird label`) RETURN n").(*ast.Query)
	assert.Equal(t, []string{"weird label"}, q.Clauses[0].(*ast.MatchClause).Patterns[0].Nodes[0].Labels)
}
