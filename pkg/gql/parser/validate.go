package parser

import (
	"fmt"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gqlerr"
)

// aggregateFuncs names the builtin aggregate functions (spec §4.3's
// "aggregate/non-aggregate mixing" check); everything else in
// pkg/gql/exec/functions.go is scalar.
var aggregateFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
	"COLLECT": true,
}

// funcArity gives the fixed argument count for builtins whose arity is
// known at parse time; -1 means variadic/checked elsewhere (e.g.
// aggregates, which also accept the special Star/Distinct forms).
var funcArity = map[string]int{
	"UPPER": 1, "LOWER": 1, "TRIM": 1, "LENGTH": 1,
	"SUBSTRING": -1, "CONCAT": -1,
	"NOW": 0, "DATE": -1, "TIME": -1, "DATETIME": -1,
	"ABS": 1, "CEIL": 1, "FLOOR": 1, "ROUND": -1, "SQRT": 1, "POW": 2,
	"COUNT": -1, "SUM": 1, "AVG": 1, "MIN": 1, "MAX": 1, "COLLECT": 1,
	"TYPE": 1, "ID": 1, "LABELS": 1, "PROPERTIES": 1, "KEYS": 1,
}

// scope tracks the variables bound by clauses seen so far in a query
// pipeline, for undefined-variable and duplicate-alias detection.
type scope struct {
	vars map[string]bool
}

func newScope() *scope { return &scope{vars: map[string]bool{}} }

func (s *scope) bind(name string) {
	if name != "" {
		s.vars[name] = true
	}
}

func (s *scope) has(name string) bool { return s.vars[name] }

// reset replaces the bound set entirely, used after WITH/RETURN narrow
// scope to exactly their projected aliases.
func (s *scope) reset(names []string) {
	s.vars = map[string]bool{}
	for _, n := range names {
		s.bind(n)
	}
}

// Validate runs the semantic checks spec §4.3 assigns to the post-parse
// pass: scope tracking, duplicate alias detection, aggregate/non-aggregate
// mixing, undefined-variable references and builtin arity checks. It
// mutates nothing; a nil return means stmt is semantically well-formed.
func Validate(stmt ast.Statement) error {
	q, ok := stmt.(*ast.Query)
	if !ok {
		return nil // DDL/session/txn statements have no expression scope to check
	}
	return validateQuery(q)
}

func validateQuery(q *ast.Query) error {
	sc := newScope()
	for _, c := range q.Clauses {
		if err := validateClause(c, sc); err != nil {
			return err
		}
	}
	if q.SetOp != nil {
		if err := validateQuery(q.SetOp.Right); err != nil {
			return err
		}
	}
	return nil
}

func validateClause(c ast.Clause, sc *scope) error {
	switch cl := c.(type) {
	case *ast.MatchClause:
		for _, path := range cl.Patterns {
			bindPattern(path, sc)
		}
		if cl.Where != nil {
			if err := validateExpr(cl.Where, sc, false); err != nil {
				return err
			}
		}
		return nil

	case *ast.WithClause:
		if err := validateProjectItems(cl.Items, sc, len(cl.GroupBy) > 0); err != nil {
			return err
		}
		for _, g := range cl.GroupBy {
			if err := validateExpr(g, sc, false); err != nil {
				return err
			}
		}
		if cl.Having != nil && len(cl.GroupBy) == 0 {
			return gqlerr.Semantic(gqlerr.Location{}, "HAVING clause requires GROUP BY clause")
		}
		// WHERE/HAVING/ORDER BY on a WITH clause filter and order the rows
		// it projects, so they see the narrowed post-projection scope, not
		// the clause's input variables.
		if !hasStarItem(cl.Items) {
			sc.reset(projectedNames(cl.Items))
		}
		if cl.Where != nil {
			if err := validateExpr(cl.Where, sc, false); err != nil {
				return err
			}
		}
		if cl.Having != nil {
			if err := validateExpr(cl.Having, sc, true); err != nil {
				return err
			}
		}
		for _, o := range cl.OrderBy {
			if err := validateExpr(o.Expr, sc, true); err != nil {
				return err
			}
		}
		return nil

	case *ast.ReturnClause:
		if err := validateProjectItems(cl.Items, sc, len(cl.GroupBy) > 0); err != nil {
			return err
		}
		for _, g := range cl.GroupBy {
			if err := validateExpr(g, sc, false); err != nil {
				return err
			}
		}
		if cl.Having != nil && len(cl.GroupBy) == 0 {
			return gqlerr.Semantic(gqlerr.Location{}, "HAVING clause requires GROUP BY clause")
		}
		// RETURN is terminal, so unlike WITH there is nothing downstream to
		// narrow scope for; HAVING/ORDER BY still need the projected
		// aliases added on top of the input scope, since they run against
		// the post-aggregation row.
		post := newScope()
		for v := range sc.vars {
			post.bind(v)
		}
		for _, n := range projectedNames(cl.Items) {
			post.bind(n)
		}
		if cl.Having != nil {
			if err := validateExpr(cl.Having, post, true); err != nil {
				return err
			}
		}
		for _, o := range cl.OrderBy {
			if err := validateExpr(o.Expr, post, true); err != nil {
				return err
			}
		}
		return nil

	case *ast.UnwindClause:
		if err := validateExpr(cl.Expr, sc, false); err != nil {
			return err
		}
		sc.bind(cl.As)
		return nil

	case *ast.InsertClause:
		for _, path := range cl.Paths {
			bindPattern(path, sc)
			for _, n := range path.Nodes {
				if n.Props != nil {
					if err := validateMapExprs(n.Props, sc); err != nil {
						return err
					}
				}
			}
			for _, r := range path.Rels {
				if r.Props != nil {
					if err := validateMapExprs(r.Props, sc); err != nil {
						return err
					}
				}
			}
		}
		return nil

	case *ast.SetClause:
		for _, item := range cl.Items {
			if !sc.has(item.Var) {
				return gqlerr.Semantic(gqlerr.Location{}, "undefined variable %q in SET", item.Var)
			}
			if item.Value != nil {
				if err := validateExpr(item.Value, sc, false); err != nil {
					return err
				}
			}
		}
		return nil

	case *ast.RemoveClause:
		for _, item := range cl.Items {
			if !sc.has(item.Var) {
				return gqlerr.Semantic(gqlerr.Location{}, "undefined variable %q in REMOVE", item.Var)
			}
		}
		return nil

	case *ast.DeleteClause:
		for _, v := range cl.Vars {
			if !sc.has(v) {
				return gqlerr.Semantic(gqlerr.Location{}, "undefined variable %q in DELETE", v)
			}
		}
		return nil

	case *ast.CallClause:
		for _, a := range cl.Args {
			if err := validateExpr(a, sc, false); err != nil {
				return err
			}
		}
		for _, y := range cl.Yield {
			sc.bind(y)
		}
		return nil

	default:
		return nil
	}
}

func bindPattern(path *ast.PatternPath, sc *scope) {
	for _, n := range path.Nodes {
		sc.bind(n.Var)
	}
	for _, r := range path.Rels {
		sc.bind(r.Var)
	}
}

func hasStarItem(items []*ast.ProjectItem) bool {
	for _, it := range items {
		if it.Star {
			return true
		}
	}
	return false
}

func projectedNames(items []*ast.ProjectItem) []string {
	var names []string
	for _, it := range items {
		if it.Star {
			continue
		}
		if it.Alias != "" {
			names = append(names, it.Alias)
		} else if id, ok := it.Expr.(*ast.Ident); ok {
			names = append(names, id.Name)
		}
	}
	return names
}

// validateProjectItems checks each projection expression and enforces
// spec §4.3's aggregate/non-aggregate mixing rule: a projection list that
// contains an aggregate call may not also contain a bare variable
// reference outside an aggregate (every non-aggregate item must be a
// grouping key), and duplicate aliases are rejected. hasExplicitGroupBy
// skips the bare-identifier restriction: an explicit GROUP BY already
// names the grouping keys, so a non-aggregate item may be any expression
// (e.g. GROUP BY p.city alongside RETURN p.city, COUNT(p)).
func validateProjectItems(items []*ast.ProjectItem, sc *scope, hasExplicitGroupBy bool) error {
	seen := map[string]bool{}
	hasAgg := false
	for _, it := range items {
		if it.Star {
			continue
		}
		if containsAggregate(it.Expr) {
			hasAgg = true
		}
		if err := validateExpr(it.Expr, sc, false); err != nil {
			return err
		}
		alias := it.Alias
		if alias == "" {
			if id, ok := it.Expr.(*ast.Ident); ok {
				alias = id.Name
			}
		}
		if alias != "" {
			if seen[alias] {
				return gqlerr.Semantic(gqlerr.Location{}, "duplicate alias %q in projection", alias)
			}
			seen[alias] = true
		}
	}
	if hasAgg && !hasExplicitGroupBy {
		for _, it := range items {
			if it.Star || containsAggregate(it.Expr) {
				continue
			}
			if _, ok := it.Expr.(*ast.Ident); !ok {
				return gqlerr.Semantic(gqlerr.Location{}, "non-aggregate expression mixed with aggregates must be a grouping key")
			}
		}
	}
	return nil
}

func containsAggregate(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.FuncCall:
		if aggregateFuncs[n.Name] {
			return true
		}
		for _, a := range n.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *ast.BinaryOp:
		return containsAggregate(n.Left) || containsAggregate(n.Right)
	case *ast.UnaryOp:
		return containsAggregate(n.Expr)
	case *ast.PropertyAccess:
		return containsAggregate(n.Target)
	case *ast.IndexAccess:
		return containsAggregate(n.Target) || containsAggregate(n.Index)
	}
	return false
}

func validateMapExprs(m *ast.MapLiteral, sc *scope) error {
	for _, v := range m.Values {
		if err := validateExpr(v, sc, false); err != nil {
			return err
		}
	}
	return nil
}

// validateExpr walks e checking variable references against sc and
// builtin call arity. allowAggregate is only passed on to nested
// expressions; no check reads it, so aggregate calls are accepted in every
// expression position.
func validateExpr(e ast.Expr, sc *scope, allowAggregate bool) error {
	switch n := e.(type) {
	case nil:
		return nil
	case *ast.Ident:
		if !sc.has(n.Name) {
			return gqlerr.Semantic(gqlerr.Location{Line: n.Pos.Line, Column: n.Pos.Column}, "undefined variable %q", n.Name)
		}
		return nil
	case *ast.Literal:
		for _, item := range n.List {
			if err := validateExpr(item, sc, allowAggregate); err != nil {
				return err
			}
		}
		if n.Map != nil {
			if err := validateMapExprs(n.Map, sc); err != nil {
				return err
			}
		}
		return nil
	case *ast.Param:
		return nil
	case *ast.PropertyAccess:
		return validateExpr(n.Target, sc, allowAggregate)
	case *ast.IndexAccess:
		if err := validateExpr(n.Target, sc, allowAggregate); err != nil {
			return err
		}
		return validateExpr(n.Index, sc, allowAggregate)
	case *ast.UnaryOp:
		return validateExpr(n.Expr, sc, allowAggregate)
	case *ast.BinaryOp:
		if err := validateExpr(n.Left, sc, allowAggregate); err != nil {
			return err
		}
		return validateExpr(n.Right, sc, allowAggregate)
	case *ast.IsNullOp:
		return validateExpr(n.Expr, sc, allowAggregate)
	case *ast.CaseExpr:
		if n.Operand != nil {
			if err := validateExpr(n.Operand, sc, allowAggregate); err != nil {
				return err
			}
		}
		for _, w := range n.Whens {
			if err := validateExpr(w.When, sc, allowAggregate); err != nil {
				return err
			}
			if err := validateExpr(w.Then, sc, allowAggregate); err != nil {
				return err
			}
		}
		if n.Else != nil {
			return validateExpr(n.Else, sc, allowAggregate)
		}
		return nil
	case *ast.FuncCall:
		if arity, ok := funcArity[n.Name]; ok && arity >= 0 && !n.Star {
			if len(n.Args) != arity {
				return gqlerr.Semantic(gqlerr.Location{Line: n.Pos.Line, Column: n.Pos.Column},
					"%s expects %d argument(s), got %d", n.Name, arity, len(n.Args))
			}
		}
		for _, a := range n.Args {
			if err := validateExpr(a, sc, allowAggregate); err != nil {
				return err
			}
		}
		return nil
	case *ast.ListComprehension:
		if err := validateExpr(n.Source, sc, allowAggregate); err != nil {
			return err
		}
		inner := newScope()
		for v := range sc.vars {
			inner.bind(v)
		}
		inner.bind(n.Var)
		if n.Where != nil {
			if err := validateExpr(n.Where, inner, allowAggregate); err != nil {
				return err
			}
		}
		if n.Expr != nil {
			if err := validateExpr(n.Expr, inner, allowAggregate); err != nil {
				return err
			}
		}
		return nil
	case *ast.PathExpr:
		if !sc.has(n.Name) {
			return gqlerr.Semantic(gqlerr.Location{}, "undefined path variable %q", n.Name)
		}
		return nil
	default:
		return fmt.Errorf("validate: unhandled expression type %T", n)
	}
}
