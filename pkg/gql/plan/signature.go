package plan

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/orneryd/graphlite/pkg/gql/ast"
)

// Signature is the plan cache key of spec §4.7: a hash of the physical
// plan's shape and literal parameter slots, computed with xxhash/v2 the
// way the teacher's query cache hashes normalized Cypher text
// (pkg/cache/query_cache.go's cacheKey).
type Signature uint64

// Sign computes p's signature by hashing a canonical textual rendering
// of its operator tree. Two plans with identical shape, predicates and
// literals hash identically; parameter placeholders ($name) hash by name
// only, so the same parameterized query always reuses one cache entry
// regardless of the bound value (spec §4.7: "keyed by plan signature").
func Sign(p Physical) Signature {
	var b strings.Builder
	writeNode(&b, p)
	return Signature(xxhash.Sum64String(b.String()))
}

func writeNode(b *strings.Builder, p Physical) {
	if p == nil {
		b.WriteString("_")
		return
	}
	switch n := p.(type) {
	case *PScan:
		fmt.Fprintf(b, "Scan(%s,%s,%d,%s,%s)", n.Var, n.Label, n.Path, n.Property, exprStr(n.Value))
	case *PExpand:
		fmt.Fprintf(b, "Expand(%s,%s,%s,%s,%d,%v)", n.Var, n.RelVar, n.RelType, n.ToVar, n.Direction, n.Optional)
	case *PFilter:
		fmt.Fprintf(b, "Filter(%s)", exprStr(n.Predicate))
	case *PProject:
		b.WriteString("Project(")
		for _, c := range n.Columns {
			fmt.Fprintf(b, "%s=%s,", c.Name, exprStr(c.Expr))
		}
		fmt.Fprintf(b, "distinct=%v)", n.Distinct)
	case *PAggregate:
		b.WriteString("Aggregate(")
		for _, c := range n.Groups {
			fmt.Fprintf(b, "g:%s=%s,", c.Name, exprStr(c.Expr))
		}
		for _, c := range n.Aggs {
			fmt.Fprintf(b, "a:%s=%s,", c.Name, exprStr(c.Expr))
		}
		b.WriteString(")")
	case *PSort:
		b.WriteString("Sort(")
		for _, k := range n.Keys {
			fmt.Fprintf(b, "%s:%v,", exprStr(k.Expr), k.Descending)
		}
		b.WriteString(")")
	case *PSkipLimit:
		fmt.Fprintf(b, "SkipLimit(%s,%s)", exprStr(n.Skip), exprStr(n.Limit))
	case *PSetOp:
		fmt.Fprintf(b, "SetOp(%d)", n.Kind)
	case *POptional:
		b.WriteString("Optional(")
	case *PUnwind:
		fmt.Fprintf(b, "Unwind(%s AS %s)", exprStr(n.Expr), n.As)
	case *PInsert:
		fmt.Fprintf(b, "Insert(%d paths)", len(n.Paths))
	case *PSetProp:
		fmt.Fprintf(b, "SetProp(%d items)", len(n.Items))
	case *PRemoveProp:
		fmt.Fprintf(b, "RemoveProp(%d items)", len(n.Items))
	case *PDelete:
		fmt.Fprintf(b, "Delete(%v,%s)", n.Detach, strings.Join(n.Vars, ","))
	case *PCall:
		fmt.Fprintf(b, "Call(%s,yield=%s)", n.Procedure, strings.Join(n.Yield, ","))
	default:
		b.WriteString("?")
	}
	b.WriteString("[")
	for _, k := range p.Children() {
		writeNode(b, k)
		b.WriteString(",")
	}
	b.WriteString("]")
}

// exprStr renders e canonically for hashing: parameters by name only (so
// rebound values don't change the signature), literals by their kind and
// value.
func exprStr(e ast.Expr) string {
	switch n := e.(type) {
	case nil:
		return "_"
	case *ast.Param:
		return "$" + n.Name
	case *ast.Ident:
		return n.Name
	case *ast.Literal:
		switch n.Kind {
		case ast.LitNull:
			return "null"
		case ast.LitBool:
			return fmt.Sprintf("b:%v", n.Bool)
		case ast.LitInt:
			return fmt.Sprintf("i:%d", n.Int)
		case ast.LitFloat:
			return fmt.Sprintf("f:%v", n.Flt)
		case ast.LitString:
			return fmt.Sprintf("s:%q", n.Str)
		case ast.LitList:
			parts := make([]string, len(n.List))
			for i, item := range n.List {
				parts[i] = exprStr(item)
			}
			return "[" + strings.Join(parts, ",") + "]"
		case ast.LitMap:
			return mapStr(n.Map)
		}
		return "lit"
	case *ast.PropertyAccess:
		return exprStr(n.Target) + "." + n.Property
	case *ast.IndexAccess:
		return exprStr(n.Target) + "[" + exprStr(n.Index) + "]"
	case *ast.UnaryOp:
		return n.Op + exprStr(n.Expr)
	case *ast.BinaryOp:
		return "(" + exprStr(n.Left) + n.Op + exprStr(n.Right) + ")"
	case *ast.IsNullOp:
		if n.Not {
			return exprStr(n.Expr) + " IS NOT NULL"
		}
		return exprStr(n.Expr) + " IS NULL"
	case *ast.FuncCall:
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			parts[i] = exprStr(a)
		}
		star := ""
		if n.Star {
			star = "*"
		}
		return fmt.Sprintf("%s(%s%s)", n.Name, star, strings.Join(parts, ","))
	case *ast.CaseExpr:
		var b strings.Builder
		b.WriteString("CASE")
		for _, w := range n.Whens {
			fmt.Fprintf(&b, " WHEN %s THEN %s", exprStr(w.When), exprStr(w.Then))
		}
		if n.Else != nil {
			fmt.Fprintf(&b, " ELSE %s", exprStr(n.Else))
		}
		return b.String()
	case *ast.ListComprehension:
		return fmt.Sprintf("[%s IN %s WHERE %s | %s]", n.Var, exprStr(n.Source), exprStr(n.Where), exprStr(n.Expr))
	case *ast.PathExpr:
		return "path:" + n.Name
	default:
		return "?"
	}
}

func mapStr(m *ast.MapLiteral) string {
	if m == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{")
	for i, k := range m.Keys {
		fmt.Fprintf(&b, "%s:%s,", k, exprStr(m.Values[i]))
	}
	b.WriteString("}")
	return b.String()
}
