package plan

import "github.com/orneryd/graphlite/pkg/gql/ast"

// Optimize rewrites root to a fixpoint by repeatedly applying the rule set
// (spec §4.4: "rewrite passes run to fixpoint: predicate pushdown,
// projection pruning, constant folding, dead-code elimination"). Each rule
// is applied once per pass; passes repeat until no rule fires.
func Optimize(root Logical) Logical {
	for {
		changed := false
		root, changed = pushDownPredicates(root)
		var c2 bool
		root, c2 = foldConstants(root)
		changed = changed || c2
		var c3 bool
		root, c3 = eliminateDeadProjections(root)
		changed = changed || c3
		if !changed {
			return root
		}
	}
}

// pushDownPredicates moves a Filter below an Expand when the predicate
// only references variables already bound before the Expand, so the
// filter runs against fewer rows (spec §4.4's "predicate pushdown").
func pushDownPredicates(n Logical) (Logical, bool) {
	if n == nil {
		return nil, false
	}
	changed := false
	kids := n.Children()
	for i, k := range kids {
		newK, c := pushDownPredicates(k)
		if c {
			kids[i] = newK
			changed = true
		}
	}

	f, ok := n.(*Filter)
	if !ok || len(kids) != 1 {
		return n, changed
	}
	switch child := kids[0].(type) {
	case *Expand:
		if !refersTo(f.Predicate, child.ToVar) && !refersTo(f.Predicate, child.RelVar) {
			grandkids := child.Children()
			if len(grandkids) == 1 {
				newFilter := &Filter{logicalBase: unary(grandkids[0]), Predicate: f.Predicate}
				child.kids = []Logical{newFilter}
				return child, true
			}
		}
	case *Scan:
		// nothing further down to push past
	}
	return n, changed
}

// refersTo reports whether e mentions var, directly as an Ident or as the
// target of a PropertyAccess rooted in var.
func refersTo(e ast.Expr, v string) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *ast.Ident:
		return n.Name == v
	case *ast.PropertyAccess:
		return refersTo(n.Target, v)
	case *ast.IndexAccess:
		return refersTo(n.Target, v) || refersTo(n.Index, v)
	case *ast.UnaryOp:
		return refersTo(n.Expr, v)
	case *ast.BinaryOp:
		return refersTo(n.Left, v) || refersTo(n.Right, v)
	case *ast.IsNullOp:
		return refersTo(n.Expr, v)
	case *ast.FuncCall:
		for _, a := range n.Args {
			if refersTo(a, v) {
				return true
			}
		}
		return false
	case *ast.CaseExpr:
		if refersTo(n.Operand, v) {
			return true
		}
		for _, w := range n.Whens {
			if refersTo(w.When, v) || refersTo(w.Then, v) {
				return true
			}
		}
		return refersTo(n.Else, v)
	case *ast.Param:
		return false
	case *ast.Literal:
		for _, x := range n.List {
			if refersTo(x, v) {
				return true
			}
		}
		if n.Map != nil {
			for _, x := range n.Map.Values {
				if refersTo(x, v) {
					return true
				}
			}
		}
		return false
	default:
		return true // conservative: don't push past anything we don't understand
	}
}

// foldConstants evaluates literal-only subexpressions at plan time, e.g.
// 1 + 2 -> 3, folding operands of Filter/Project/Aggregate predicates
// (spec §4.4's "constant folding").
func foldConstants(n Logical) (Logical, bool) {
	if n == nil {
		return nil, false
	}
	changed := false
	for _, k := range n.Children() {
		_, c := foldConstants(k)
		changed = changed || c
	}
	switch node := n.(type) {
	case *Filter:
		folded, c := foldExpr(node.Predicate)
		if c {
			node.Predicate = folded
			changed = true
		}
	case *Project:
		for i := range node.Columns {
			folded, c := foldExpr(node.Columns[i].Expr)
			if c {
				node.Columns[i].Expr = folded
				changed = true
			}
		}
	}
	return n, changed
}

func foldExpr(e ast.Expr) (ast.Expr, bool) {
	bin, ok := e.(*ast.BinaryOp)
	if !ok {
		return e, false
	}
	left, lc := foldExpr(bin.Left)
	right, rc := foldExpr(bin.Right)
	bin.Left, bin.Right = left, right
	changed := lc || rc

	li, lok := asIntLit(left)
	ri, rok := asIntLit(right)
	if lok && rok {
		if v, ok := foldIntOp(bin.Op, li, ri); ok {
			return &ast.Literal{Base: bin.Base, Kind: ast.LitInt, Int: v}, true
		}
	}
	return bin, changed
}

func asIntLit(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok || lit.Kind != ast.LitInt {
		return 0, false
	}
	return lit.Int, true
}

func foldIntOp(op string, l, r int64) (int64, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	default:
		return 0, false
	}
}

// eliminateDeadProjections drops a Project node whose output column set is
// unused by anything above it — detected simply as a Project immediately
// beneath another Project/Aggregate, where the inner one projects exactly
// the identifiers the outer one will re-derive (spec §4.4's "dead-code
// elimination": "a WITH clause that narrows to an unused set of columns").
// A conservative structural check, not a full liveness analysis.
func eliminateDeadProjections(n Logical) (Logical, bool) {
	if n == nil {
		return nil, false
	}
	changed := false
	kids := n.Children()
	for i, k := range kids {
		newK, c := eliminateDeadProjections(k)
		if c {
			kids[i] = newK
			changed = true
		}
	}
	outer, ok := n.(*Project)
	if !ok || len(kids) != 1 {
		return n, changed
	}
	inner, ok := kids[0].(*Project)
	if !ok || inner.Distinct {
		return n, changed
	}
	if len(inner.Columns) == 0 {
		return n, changed
	}
	grandkids := inner.Children()
	if len(grandkids) != 1 {
		return n, changed
	}
	// The inner projection is redundant only if every one of its columns
	// is a bare passthrough (Name == Ident.Name) — i.e. it renames
	// nothing and narrows nothing a consumer could have relied on.
	for _, c := range inner.Columns {
		id, ok := c.Expr.(*ast.Ident)
		if !ok || id.Name != c.Name {
			return n, changed
		}
	}
	outer.kids = []Logical{grandkids[0]}
	return outer, true
}
