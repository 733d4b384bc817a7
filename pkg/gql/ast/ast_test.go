package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasePositionReturnsEmbeddedPos(t *testing.T) {
	b := Base{Pos: Pos{Line: 4, Column: 9}}
	assert.Equal(t, Pos{Line: 4, Column: 9}, b.Position())
}

func TestExprImplementationsReportTheirOwnPosition(t *testing.T) {
	pos := Pos{Line: 1, Column: 3}
	exprs := []Expr{
		&Literal{Base: Base{Pos: pos}, Kind: LitInt, Int: 1},
		&Ident{Base: Base{Pos: pos}, Name: "n"},
		&Param{Base: Base{Pos: pos}, Name: "p"},
		&PropertyAccess{Base: Base{Pos: pos}, Target: &Ident{Name: "n"}, Property: "age"},
		&BinaryOp{Base: Base{Pos: pos}, Op: "+", Left: &Literal{}, Right: &Literal{}},
		&FuncCall{Base: Base{Pos: pos}, Name: "COUNT", Star: true},
	}
	for _, e := range exprs {
		assert.Equal(t, pos, e.Position())
	}
}

func TestProjectItemStarFlagAndAliasAreIndependent(t *testing.T) {
	star := &ProjectItem{Star: true}
	assert.True(t, star.Star)
	assert.Empty(t, star.Alias)

	aliased := &ProjectItem{Expr: &Ident{Name: "n"}, Alias: "person"}
	assert.False(t, aliased.Star)
	assert.Equal(t, "person", aliased.Alias)
}

func TestPatternPathRelCountMatchesNodeCountMinusOne(t *testing.T) {
	p := &PatternPath{
		Nodes: []*NodePattern{{Var: "a"}, {Var: "b"}, {Var: "c"}},
		Rels:  []*RelPattern{{Direction: RelRight}, {Direction: RelLeft}},
	}
	assert.Len(t, p.Rels, len(p.Nodes)-1)
}

func TestSetItemKindDistinguishesAssignmentForms(t *testing.T) {
	prop := &SetItem{Kind: SetProperty, Var: "n", Property: "age", Value: &Literal{Kind: LitInt, Int: 30}}
	assert.Equal(t, SetProperty, prop.Kind)

	label := &SetItem{Kind: SetLabel, Var: "n", Label: "Person"}
	assert.Equal(t, SetLabel, label.Kind)
	assert.Empty(t, label.Property)
}

func TestStatementInterfaceIsImplementedByEachTopLevelNode(t *testing.T) {
	var stmts = []Statement{
		&Query{},
		&SchemaStatement{Op: OpCreate, Name: "/social"},
		&GraphStatement{Op: OpDrop, GraphName: "g1"},
		&SessionSetStatement{Schema: true, Name: "/social"},
		&TxnStatement{Op: TxnBegin, Isolation: "SERIALIZABLE"},
	}
	assert.Len(t, stmts, 5)
}

func TestClauseInterfaceIsImplementedByEachPipelineStage(t *testing.T) {
	var clauses = []Clause{
		&MatchClause{},
		&WithClause{},
		&ReturnClause{},
		&UnwindClause{},
		&InsertClause{},
		&SetClause{},
		&RemoveClause{},
		&DeleteClause{},
		&CallClause{},
	}
	assert.Len(t, clauses, 9)
}
