// Package plan implements the two-phase logical/physical query planner of
// spec §4.4. The teacher's StorageExecutor interprets its regex-captured
// AST directly with no planning phase (pkg/cypher/executor.go); this
// package introduces the logical operator tree, the fixpoint rewrite
// passes and the cost-based physical lowering the teacher never had.
package plan

import (
	"fmt"
	"strings"

	"github.com/orneryd/graphlite/pkg/gql/ast"
)

// Logical is any logical operator node in the tree built from
// pkg/gql/ast (spec §4.4's logical phase: "purely structural; no costs
// yet").
type Logical interface {
	logicalNode()
	Children() []Logical
}

type logicalBase struct {
	kids []Logical
}

func (b *logicalBase) Children() []Logical { return b.kids }

// Scan reads every node (optionally filtered by label) from the current
// graph.
type Scan struct {
	logicalBase
	Var   string
	Label string // "" means unfiltered
}

func (*Scan) logicalNode() {}

// Expand follows adjacency from Var along Direction, optionally
// restricted to a relationship type, binding RelVar/ToVar.
type Expand struct {
	logicalBase
	Var       string // source variable, already bound
	RelVar    string
	RelType   string // "" means any type
	ToVar     string
	Direction ast.RelDirection
	Optional  bool // true for OPTIONAL MATCH's expansion step
}

func (*Expand) logicalNode() {}

// Filter applies Predicate to every row from its single child.
type Filter struct {
	logicalBase
	Predicate ast.Expr
}

func (*Filter) logicalNode() {}

// Project evaluates Columns against each input row, producing the output
// row shape.
type Project struct {
	logicalBase
	Columns  []Column
	Distinct bool
}

func (*Project) logicalNode() {}

// Column is one named output expression of a Project/Aggregate node.
type Column struct {
	Name string
	Expr ast.Expr
}

// Aggregate groups rows by Groups and computes Aggs per group.
type Aggregate struct {
	logicalBase
	Groups []Column
	Aggs   []Column
}

func (*Aggregate) logicalNode() {}

// Sort orders rows by Keys.
type Sort struct {
	logicalBase
	Keys []SortKey
}

func (*Sort) logicalNode() {}

// SortKey is one ORDER BY term.
type SortKey struct {
	Expr       ast.Expr
	Descending bool
}

// SkipLimit discards Skip rows then yields at most Limit further rows;
// either may be nil (no bound).
type SkipLimit struct {
	logicalBase
	Skip  ast.Expr
	Limit ast.Expr
}

func (*SkipLimit) logicalNode() {}

// SetOpKind mirrors ast.SetOpKind at the logical-plan level.
type SetOpKind int

const (
	SetOpUnion SetOpKind = iota
	SetOpUnionAll
	SetOpIntersect
	SetOpExcept
)

// SetOp combines the rows of two sub-plans.
type SetOp struct {
	logicalBase
	Kind SetOpKind
}

func (*SetOp) logicalNode() {}

// Optional marks its single child as producing a null-filled row instead
// of no row when it yields nothing, implementing OPTIONAL MATCH's
// left-outer semantics over the wrapped pattern.
type Optional struct {
	logicalBase
}

func (*Optional) logicalNode() {}

// Unwind expands a list-valued expression into one row per element.
type Unwind struct {
	logicalBase
	Expr ast.Expr
	As   string
}

func (*Unwind) logicalNode() {}

// Insert stages new node/relationship patterns into the active
// transaction's write batch.
type Insert struct {
	logicalBase
	Paths []*ast.PatternPath
}

func (*Insert) logicalNode() {}

// SetProp stages property/label assignments.
type SetProp struct {
	logicalBase
	Items []*ast.SetItem
}

func (*SetProp) logicalNode() {}

// RemoveProp stages property/label removals.
type RemoveProp struct {
	logicalBase
	Items []*ast.RemoveItem
}

func (*RemoveProp) logicalNode() {}

// Delete stages node/edge deletions.
type Delete struct {
	logicalBase
	Vars   []string
	Detach bool
}

func (*Delete) logicalNode() {}

// Call invokes a system procedure (spec §4.5.6).
type Call struct {
	logicalBase
	Procedure string
	Args      []ast.Expr
	Yield     []string
}

func (*Call) logicalNode() {}

func unary(child Logical) logicalBase {
	if child == nil {
		return logicalBase{}
	}
	return logicalBase{kids: []Logical{child}}
}

func binary(left, right Logical) logicalBase {
	return logicalBase{kids: []Logical{left, right}}
}

// Build lowers one parsed ast.Query into a logical operator tree,
// threading each clause's output as the next clause's input (spec §4.4:
// "AST -> tree of logical operators").
func Build(q *ast.Query) (Logical, error) {
	var cur Logical
	for _, clause := range q.Clauses {
		next, err := buildClause(clause, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if q.SetOp != nil {
		right, err := Build(q.SetOp.Right)
		if err != nil {
			return nil, err
		}
		cur = &SetOp{logicalBase: binary(cur, right), Kind: setOpKind(q.SetOp.Kind)}
	}
	return cur, nil
}

func setOpKind(k ast.SetOpKind) SetOpKind {
	switch k {
	case ast.SetOpUnionAll:
		return SetOpUnionAll
	case ast.SetOpIntersect:
		return SetOpIntersect
	case ast.SetOpExcept:
		return SetOpExcept
	default:
		return SetOpUnion
	}
}

func buildClause(c ast.Clause, input Logical) (Logical, error) {
	switch cl := c.(type) {
	case *ast.MatchClause:
		return buildMatch(cl, input)
	case *ast.WithClause:
		return buildProjection(cl.Items, cl.Distinct, cl.Where, cl.GroupBy, cl.Having, cl.OrderBy, cl.Skip, cl.Limit, input)
	case *ast.ReturnClause:
		return buildProjection(cl.Items, cl.Distinct, nil, cl.GroupBy, cl.Having, cl.OrderBy, cl.Skip, cl.Limit, input)
	case *ast.UnwindClause:
		return &Unwind{logicalBase: unary(input), Expr: cl.Expr, As: cl.As}, nil
	case *ast.InsertClause:
		return &Insert{logicalBase: unary(input), Paths: cl.Paths}, nil
	case *ast.SetClause:
		return &SetProp{logicalBase: unary(input), Items: cl.Items}, nil
	case *ast.RemoveClause:
		return &RemoveProp{logicalBase: unary(input), Items: cl.Items}, nil
	case *ast.DeleteClause:
		return &Delete{logicalBase: unary(input), Vars: cl.Vars, Detach: cl.Detach}, nil
	case *ast.CallClause:
		return &Call{logicalBase: unary(input), Procedure: cl.Procedure, Args: cl.Args, Yield: cl.Yield}, nil
	default:
		return input, nil
	}
}

// buildMatch lowers a MATCH/OPTIONAL MATCH's pattern list into a chain of
// Scan and Expand nodes, one Scan per anchor (the first node of each
// comma-separated pattern) and one Expand per hop, per spec §4.5.1's
// "pick anchor, scan its rows, expand along the pattern". The physical
// phase later picks which anchor is cheapest; here every pattern's first
// node is simply the structural anchor.
func buildMatch(m *ast.MatchClause, input Logical) (Logical, error) {
	cur := input
	for _, path := range m.Patterns {
		var err error
		cur, err = buildPattern(path, cur, m.Optional)
		if err != nil {
			return nil, err
		}
	}
	if m.Where != nil {
		cur = &Filter{logicalBase: unary(cur), Predicate: m.Where}
	}
	return cur, nil
}

func buildPattern(path *ast.PatternPath, input Logical, optional bool) (Logical, error) {
	first := path.Nodes[0]
	var cur Logical = &Scan{logicalBase: unary(input), Var: first.Var, Label: firstLabel(first.Labels)}
	if first.Props != nil {
		cur = &Filter{logicalBase: unary(cur), Predicate: propsPredicate(first.Var, first.Props)}
	}
	for i, rel := range path.Rels {
		to := path.Nodes[i+1]
		cur = &Expand{
			logicalBase: unary(cur),
			Var:         varAt(path, i),
			RelVar:      rel.Var,
			RelType:     firstType(rel.Types),
			ToVar:       to.Var,
			Direction:   rel.Direction,
			Optional:    optional,
		}
		if to.Props != nil {
			cur = &Filter{logicalBase: unary(cur), Predicate: propsPredicate(to.Var, to.Props)}
		}
		if rel.Props != nil {
			cur = &Filter{logicalBase: unary(cur), Predicate: propsPredicate(rel.Var, rel.Props)}
		}
	}
	if optional {
		cur = &Optional{logicalBase: unary(cur)}
	}
	return cur, nil
}

func varAt(path *ast.PatternPath, i int) string { return path.Nodes[i].Var }

func firstLabel(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

func firstType(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// propsPredicate rewrites a pattern's inline {k: v, ...} map into an
// equivalent conjunction of equality comparisons against the bound
// variable, so the Filter node's predicate language stays a single
// ast.Expr grammar throughout the plan.
func propsPredicate(v string, m *ast.MapLiteral) ast.Expr {
	var pred ast.Expr
	for i, key := range m.Keys {
		cmp := &ast.BinaryOp{
			Op:   "=",
			Left: &ast.PropertyAccess{Target: &ast.Ident{Name: v}, Property: key},
			Right: m.Values[i],
		}
		if pred == nil {
			pred = cmp
		} else {
			pred = &ast.BinaryOp{Op: "AND", Left: pred, Right: cmp}
		}
	}
	return pred
}

// buildProjection lowers one WITH/RETURN clause. The WHERE/HAVING filter
// is built last, after the Aggregate/Project node: both filter the rows a
// WITH/RETURN clause itself produces (its projected aliases, or its
// post-aggregation groups), not the rows flowing into it — unlike
// buildMatch's m.Where, which legitimately filters pre-projection since
// MATCH has no projection step of its own.
func buildProjection(items []*ast.ProjectItem, distinct bool, where ast.Expr, groupBy []ast.Expr, having ast.Expr, order []*ast.OrderItem, skip, limit ast.Expr, input Logical) (Logical, error) {
	cur := input

	hasAgg := len(groupBy) > 0
	for _, it := range items {
		if !it.Star && containsAggregateExpr(it.Expr) {
			hasAgg = true
		}
	}
	if hasAgg {
		var groups, aggs []Column
		seen := map[string]bool{}
		for _, it := range items {
			if it.Star {
				continue
			}
			col := Column{Name: columnName(it), Expr: it.Expr}
			if containsAggregateExpr(it.Expr) {
				aggs = append(aggs, col)
			} else {
				groups = append(groups, col)
				seen[exprKey(it.Expr)] = true
			}
		}
		// GROUP BY keys not already present among the projected columns
		// (e.g. grouping by a variable the RETURN/WITH items don't select)
		// still need to flow through the Aggregate node so HAVING/ORDER BY
		// can reference them.
		for _, g := range groupBy {
			k := exprKey(g)
			if seen[k] {
				continue
			}
			seen[k] = true
			groups = append(groups, Column{Name: exprText(g), Expr: g})
		}
		cur = &Aggregate{logicalBase: unary(cur), Groups: groups, Aggs: aggs}
	} else {
		cols := make([]Column, 0, len(items))
		star := false
		for _, it := range items {
			if it.Star {
				star = true
				continue
			}
			cols = append(cols, Column{Name: columnName(it), Expr: it.Expr})
		}
		if !star || len(cols) > 0 {
			cur = &Project{logicalBase: unary(cur), Columns: cols, Distinct: distinct}
		}
	}

	if where != nil {
		cur = &Filter{logicalBase: unary(cur), Predicate: where}
	}
	if having != nil {
		cur = &Filter{logicalBase: unary(cur), Predicate: having}
	}

	if len(order) > 0 {
		keys := make([]SortKey, len(order))
		for i, o := range order {
			keys[i] = SortKey{Expr: o.Expr, Descending: o.Descending}
		}
		cur = &Sort{logicalBase: unary(cur), Keys: keys}
	}
	if skip != nil || limit != nil {
		cur = &SkipLimit{logicalBase: unary(cur), Skip: skip, Limit: limit}
	}
	return cur, nil
}

// exprKey renders e into a string used only to de-duplicate GROUP BY keys
// against the projection's own grouping columns; exprText is reused for
// the common Ident/PropertyAccess/FuncCall shapes, with a pointer-derived
// fallback for anything else so two syntactically-unrenderable
// expressions are never mistaken for the same key.
func exprKey(e ast.Expr) string {
	if s := exprText(e); s != "" {
		return s
	}
	return fmt.Sprintf("%p", e)
}

// exprText renders the common grouping-key expression shapes into a
// stable textual name (e.g. p.city), used both for exprKey's dedup and
// to name a GROUP BY-only output column that no projection item already
// names.
func exprText(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.PropertyAccess:
		base := exprText(n.Target)
		if base == "" {
			return ""
		}
		return base + "." + n.Property
	case *ast.FuncCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = exprText(a)
		}
		return n.Name + "(" + strings.Join(args, ",") + ")"
	default:
		return ""
	}
}

func columnName(it *ast.ProjectItem) string {
	if it.Alias != "" {
		return it.Alias
	}
	if id, ok := it.Expr.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

func containsAggregateExpr(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.FuncCall:
		switch n.Name {
		case "COUNT", "SUM", "AVG", "MIN", "MAX", "COLLECT":
			return true
		}
		for _, a := range n.Args {
			if containsAggregateExpr(a) {
				return true
			}
		}
	case *ast.BinaryOp:
		return containsAggregateExpr(n.Left) || containsAggregateExpr(n.Right)
	case *ast.UnaryOp:
		return containsAggregateExpr(n.Expr)
	}
	return false
}
