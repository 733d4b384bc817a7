// Package ast defines the typed GQL abstract syntax tree that
// pkg/gql/parser builds and pkg/gql/plan consumes (spec §4.3). It replaces
// the teacher's regex-captured pseudo-AST (pkg/cypher/ast_builder.go) with
// a structured node tree that carries real source positions for error
// reporting.
package ast

// Pos is a (line, column) source position, 1-based, used for parse and
// semantic error reporting (spec §4.3).
type Pos struct {
	Line, Column int
}

// Statement is any top-level GQL statement.
type Statement interface {
	statementNode()
}

// Query is a full query pipeline: a sequence of clauses ending optionally
// in a set operation against another Query (UNION/INTERSECT/EXCEPT).
type Query struct {
	Clauses []Clause
	SetOp   *SetOp // nil unless this query is combined with another
}

func (*Query) statementNode() {}

// SetOpKind names a row-set combinator (spec §4.3, §4.5.4).
type SetOpKind int

const (
	SetOpUnion SetOpKind = iota
	SetOpUnionAll
	SetOpIntersect
	SetOpExcept
)

// SetOp combines the query it is attached to with Right using Kind.
type SetOp struct {
	Kind  SetOpKind
	Right *Query
	Pos   Pos
}

// Clause is one pipeline stage of a Query.
type Clause interface {
	clauseNode()
}

// MatchClause implements MATCH / OPTIONAL MATCH.
type MatchClause struct {
	Optional bool
	Patterns []*PatternPath
	Where    Expr // nil if absent
	Pos      Pos
}

func (*MatchClause) clauseNode() {}

// PatternPath is one comma-separated pattern within a MATCH: alternating
// node and relationship patterns, e.g. (a)-[r:KNOWS]->(b).
type PatternPath struct {
	Nodes []*NodePattern
	Rels  []*RelPattern // len(Rels) == len(Nodes)-1
	Pos   Pos
}

// NodePattern is one parenthesized node pattern: (var:Label1:Label2 {props}).
type NodePattern struct {
	Var    string // "" if anonymous
	Labels []string
	Props  *MapLiteral // nil if absent
	Pos    Pos
}

// RelDirection is the arrow direction of a relationship pattern.
type RelDirection int

const (
	RelRight RelDirection = iota // -[...]->
	RelLeft                      // <-[...]-
	RelEither                    // -[...]-
)

// RelPattern is one bracketed relationship pattern: -[var:TYPE {props}]->.
type RelPattern struct {
	Var       string
	Types     []string // alternative relationship types; empty means "any"
	Props     *MapLiteral
	Direction RelDirection
	Pos       Pos
}

// WithClause implements WITH: an intermediate projection that also scopes
// subsequent clauses to exactly its projected variables.
type WithClause struct {
	Items    []*ProjectItem
	Distinct bool
	Where    Expr
	GroupBy  []Expr // GROUP BY keys, evaluated against the pre-projection row
	Having   Expr   // HAVING predicate, evaluated against the post-aggregation row; requires GroupBy
	OrderBy  []*OrderItem
	Skip     Expr
	Limit    Expr
	Pos      Pos
}

func (*WithClause) clauseNode() {}

// ReturnClause implements RETURN.
type ReturnClause struct {
	Items    []*ProjectItem
	Distinct bool
	GroupBy  []Expr
	Having   Expr
	OrderBy  []*OrderItem
	Skip     Expr
	Limit    Expr
	Pos      Pos
}

func (*ReturnClause) clauseNode() {}

// ProjectItem is one RETURN/WITH projection entry.
type ProjectItem struct {
	Expr  Expr
	Alias string // "" means derive from Expr's textual form
	Star  bool   // RETURN * / WITH *
	Pos   Pos
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr       Expr
	Descending bool
}

// UnwindClause implements UNWIND expr AS var.
type UnwindClause struct {
	Expr Expr
	As   string
	Pos  Pos
}

func (*UnwindClause) clauseNode() {}

// InsertClause implements INSERT of one or more node/relationship
// patterns.
type InsertClause struct {
	Paths []*PatternPath
	Pos   Pos
}

func (*InsertClause) clauseNode() {}

// SetItemKind distinguishes SET var.prop = expr from SET var = map / SET
// var:Label.
type SetItemKind int

const (
	SetProperty SetItemKind = iota
	SetAllProps             // var = {map}
	SetLabel
)

// SetItem is one SET clause assignment.
type SetItem struct {
	Kind     SetItemKind
	Var      string
	Property string // for SetProperty
	Label    string // for SetLabel
	Value    Expr   // for SetProperty / SetAllProps
}

// SetClause implements SET.
type SetClause struct {
	Items []*SetItem
	Pos   Pos
}

func (*SetClause) clauseNode() {}

// RemoveItem is one REMOVE target: a property or a label.
type RemoveItem struct {
	Var      string
	Property string // "" if this removes a label instead
	Label    string
}

// RemoveClause implements REMOVE.
type RemoveClause struct {
	Items []*RemoveItem
	Pos   Pos
}

func (*RemoveClause) clauseNode() {}

// DeleteClause implements DELETE / DETACH DELETE.
type DeleteClause struct {
	Vars   []string
	Detach bool
	Pos    Pos
}

func (*DeleteClause) clauseNode() {}

// CallClause implements CALL proc(args) [YIELD cols].
type CallClause struct {
	Procedure string
	Args      []Expr
	Yield     []string
	Pos       Pos
}

func (*CallClause) clauseNode() {}

// --- DDL / session / transaction control statements ---

// SchemaOp names the DDL verb applied to a schema or graph.
type SchemaOp int

const (
	OpCreate SchemaOp = iota
	OpDrop
	OpAlter
)

// SchemaStatement implements CREATE/DROP/ALTER SCHEMA.
type SchemaStatement struct {
	Op   SchemaOp
	Name string
	Pos  Pos
}

func (*SchemaStatement) statementNode() {}

// GraphStatement implements CREATE/DROP/ALTER GRAPH.
type GraphStatement struct {
	Op         SchemaOp
	SchemaName string // "" means the session's current schema
	GraphName  string
	Pos        Pos
}

func (*GraphStatement) statementNode() {}

// SessionSetStatement implements SESSION SET SCHEMA|GRAPH <name>.
type SessionSetStatement struct {
	Schema bool // true: SET SCHEMA; false: SET GRAPH
	Name   string
	Pos    Pos
}

func (*SessionSetStatement) statementNode() {}

// TxnOp names a transaction-control verb.
type TxnOp int

const (
	TxnBegin TxnOp = iota
	TxnCommit
	TxnRollback
)

// TxnStatement implements BEGIN/COMMIT/ROLLBACK [TRANSACTION].
type TxnStatement struct {
	Op        TxnOp
	Isolation string // "" means default
	Pos       Pos
}

func (*TxnStatement) statementNode() {}

// --- Expressions ---

// Expr is any GQL value expression.
type Expr interface {
	exprNode()
	Position() Pos
}

// Base carries the source position shared by every Expr implementation.
// Embed it to satisfy Expr.Position without repeating the accessor.
type Base struct{ Pos Pos }

func (b Base) Position() Pos { return b.Pos }

// Literal is a scalar/list/map constant.
type Literal struct {
	Base
	Kind LiteralKind
	Bool bool
	Int  int64
	Flt  float64
	Str  string
	List []Expr
	Map  *MapLiteral
}

func (*Literal) exprNode() {}

// LiteralKind tags the concrete payload of a Literal.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBool
	LitInt
	LitFloat
	LitString
	LitList
	LitMap
)

// MapLiteral is an ordered set of key/expression pairs, used both for map
// literals and node/relationship property patterns.
type MapLiteral struct {
	Keys   []string
	Values []Expr
}

// Ident references a bound pattern variable.
type Ident struct {
	Base
	Name string
}

func (*Ident) exprNode() {}

// Param references a query parameter ($name).
type Param struct {
	Base
	Name string
}

func (*Param) exprNode() {}

// PropertyAccess is expr.property.
type PropertyAccess struct {
	Base
	Target   Expr
	Property string
}

func (*PropertyAccess) exprNode() {}

// IndexAccess is expr[index].
type IndexAccess struct {
	Base
	Target Expr
	Index  Expr
}

func (*IndexAccess) exprNode() {}

// UnaryOp is NOT expr / -expr.
type UnaryOp struct {
	Base
	Op   string
	Expr Expr
}

func (*UnaryOp) exprNode() {}

// BinaryOp is left OP right, covering arithmetic, comparison, boolean and
// string-match operators (STARTS WITH, ENDS WITH, CONTAINS, IN, =~).
type BinaryOp struct {
	Base
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryOp) exprNode() {}

// IsNullOp is expr IS [NOT] NULL.
type IsNullOp struct {
	Base
	Expr Expr
	Not  bool
}

func (*IsNullOp) exprNode() {}

// CaseExpr implements CASE [expr] WHEN ... THEN ... ELSE ... END.
type CaseExpr struct {
	Base
	Operand Expr // nil for the generic "CASE WHEN cond THEN" form
	Whens   []CaseWhen
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// CaseWhen is one WHEN/THEN arm of a CaseExpr.
type CaseWhen struct {
	When Expr
	Then Expr
}

// FuncCall is a builtin or aggregate function application: name(args...).
type FuncCall struct {
	Base
	Name     string
	Args     []Expr
	Distinct bool // COUNT(DISTINCT x)
	Star     bool // COUNT(*)
}

func (*FuncCall) exprNode() {}

// ListComprehension is [x IN list WHERE pred | expr] (parsed but only the
// plain filter/map subset is evaluated; see exec/eval.go).
type ListComprehension struct {
	Base
	Var    string
	Source Expr
	Where  Expr
	Expr   Expr
}

func (*ListComprehension) exprNode() {}

// PathExpr references a named path binding captured by a MATCH pattern
// (e.g. MATCH p = (a)-[]->(b)).
type PathExpr struct {
	Base
	Name string
}

func (*PathExpr) exprNode() {}
