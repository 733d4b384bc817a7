package exec

import (
	"math"
	"regexp"
	"strings"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

// eval evaluates e against row and the query's bound parameters,
// implementing GQL's null-propagation rules: any operator applied to a
// null operand (other than IS NULL / IS NOT NULL, AND/OR short-circuits,
// and COALESCE-style functions) yields null rather than erroring.
func eval(e ast.Expr, row Row, env *Env) (types.Value, error) {
	switch n := e.(type) {
	case nil:
		return types.Null(), nil

	case *ast.Literal:
		return evalLiteral(n, row, env)

	case *ast.Ident:
		if v, ok := row[n.Name]; ok {
			return v, nil
		}
		return types.Null(), nil

	case *ast.Param:
		if v, ok := env.Params[n.Name]; ok {
			return v, nil
		}
		return types.Null(), nil

	case *ast.PropertyAccess:
		return evalPropertyAccess(n, row, env)

	case *ast.IndexAccess:
		return evalIndexAccess(n, row, env)

	case *ast.UnaryOp:
		return evalUnary(n, row, env)

	case *ast.BinaryOp:
		return evalBinary(n, row, env)

	case *ast.IsNullOp:
		v, err := eval(n.Expr, row, env)
		if err != nil {
			return types.Null(), err
		}
		isNull := v.IsNull()
		if n.Not {
			return types.Bool(!isNull), nil
		}
		return types.Bool(isNull), nil

	case *ast.CaseExpr:
		return evalCase(n, row, env)

	case *ast.FuncCall:
		return evalFuncCall(n, row, env)

	case *ast.ListComprehension:
		return evalListComprehension(n, row, env)

	case *ast.PathExpr:
		if v, ok := row[n.Name]; ok {
			return v, nil
		}
		return types.Null(), nil

	default:
		return types.Null(), gqlerr.Internal(nil, "eval: unhandled expression %T", n)
	}
}

func evalLiteral(n *ast.Literal, row Row, env *Env) (types.Value, error) {
	switch n.Kind {
	case ast.LitNull:
		return types.Null(), nil
	case ast.LitBool:
		return types.Bool(n.Bool), nil
	case ast.LitInt:
		return types.Int(n.Int), nil
	case ast.LitFloat:
		return types.Float(n.Flt), nil
	case ast.LitString:
		return types.String(n.Str), nil
	case ast.LitList:
		out := make([]types.Value, len(n.List))
		for i, item := range n.List {
			v, err := eval(item, row, env)
			if err != nil {
				return types.Null(), err
			}
			out[i] = v
		}
		return types.List(out), nil
	case ast.LitMap:
		m, err := evalMap(n.Map, row, env)
		if err != nil {
			return types.Null(), err
		}
		return types.Map(m), nil
	default:
		return types.Null(), nil
	}
}

func evalMap(m *ast.MapLiteral, row Row, env *Env) (map[string]types.Value, error) {
	out := make(map[string]types.Value, len(m.Keys))
	for i, k := range m.Keys {
		v, err := eval(m.Values[i], row, env)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func evalPropertyAccess(n *ast.PropertyAccess, row Row, env *Env) (types.Value, error) {
	target, err := eval(n.Target, row, env)
	if err != nil {
		return types.Null(), err
	}
	switch target.Kind {
	case types.KindNode:
		return target.NodeRef.Prop(n.Property), nil
	case types.KindEdge:
		return target.EdgeRef.Prop(n.Property), nil
	case types.KindMap:
		if v, ok := target.Map[n.Property]; ok {
			return v, nil
		}
		return types.Null(), nil
	case types.KindNull:
		return types.Null(), nil
	default:
		return types.Null(), nil
	}
}

func evalIndexAccess(n *ast.IndexAccess, row Row, env *Env) (types.Value, error) {
	target, err := eval(n.Target, row, env)
	if err != nil {
		return types.Null(), err
	}
	idx, err := eval(n.Index, row, env)
	if err != nil {
		return types.Null(), err
	}
	if target.IsNull() || idx.IsNull() {
		return types.Null(), nil
	}
	switch target.Kind {
	case types.KindList:
		if idx.Kind != types.KindInt {
			return types.Null(), nil
		}
		i := idx.Int
		if i < 0 {
			i += int64(len(target.List))
		}
		if i < 0 || i >= int64(len(target.List)) {
			return types.Null(), nil
		}
		return target.List[i], nil
	case types.KindMap:
		if idx.Kind != types.KindString {
			return types.Null(), nil
		}
		if v, ok := target.Map[idx.Str]; ok {
			return v, nil
		}
		return types.Null(), nil
	default:
		return types.Null(), nil
	}
}

func evalUnary(n *ast.UnaryOp, row Row, env *Env) (types.Value, error) {
	v, err := eval(n.Expr, row, env)
	if err != nil {
		return types.Null(), err
	}
	switch n.Op {
	case "NOT":
		if v.IsNull() {
			return types.Null(), nil
		}
		return types.Bool(!asBool(v)), nil
	case "-":
		switch v.Kind {
		case types.KindInt:
			return types.Int(-v.Int), nil
		case types.KindFloat:
			return types.Float(-v.Float), nil
		case types.KindNull:
			return types.Null(), nil
		default:
			return types.Null(), gqlerr.TypeErr("cannot negate %s", v.Kind.TypeName())
		}
	case "+":
		return v, nil
	default:
		return types.Null(), gqlerr.Internal(nil, "eval: unknown unary operator %q", n.Op)
	}
}

func asBool(v types.Value) bool {
	return v.Kind == types.KindBool && v.Bool
}

func evalBinary(n *ast.BinaryOp, row Row, env *Env) (types.Value, error) {
	switch n.Op {
	case "AND":
		return evalAnd(n, row, env)
	case "OR":
		return evalOr(n, row, env)
	case "XOR":
		l, err := eval(n.Left, row, env)
		if err != nil {
			return types.Null(), err
		}
		r, err := eval(n.Right, row, env)
		if err != nil {
			return types.Null(), err
		}
		if l.IsNull() || r.IsNull() {
			return types.Null(), nil
		}
		return types.Bool(asBool(l) != asBool(r)), nil
	}

	left, err := eval(n.Left, row, env)
	if err != nil {
		return types.Null(), err
	}
	right, err := eval(n.Right, row, env)
	if err != nil {
		return types.Null(), err
	}

	switch n.Op {
	case "=":
		if left.IsNull() || right.IsNull() {
			return types.Null(), nil
		}
		return types.Bool(left.Equal(right)), nil
	case "<>":
		if left.IsNull() || right.IsNull() {
			return types.Null(), nil
		}
		return types.Bool(!left.Equal(right)), nil
	case "<", ">", "<=", ">=":
		if left.IsNull() || right.IsNull() {
			return types.Null(), nil
		}
		cmp, ok := types.Compare(left, right)
		if !ok {
			return types.Null(), nil
		}
		return types.Bool(compareMatches(n.Op, cmp)), nil
	case "+", "-", "*", "/", "%", "^":
		return evalArith(n.Op, left, right)
	case "IN":
		return evalIn(left, right)
	case "STARTS WITH", "ENDS WITH", "CONTAINS":
		return evalStringMatch(n.Op, left, right)
	case "=~":
		return evalRegex(left, right)
	default:
		return types.Null(), gqlerr.Internal(nil, "eval: unknown binary operator %q", n.Op)
	}
}

func evalAnd(n *ast.BinaryOp, row Row, env *Env) (types.Value, error) {
	l, err := eval(n.Left, row, env)
	if err != nil {
		return types.Null(), err
	}
	if l.Kind == types.KindBool && !l.Bool {
		return types.Bool(false), nil
	}
	r, err := eval(n.Right, row, env)
	if err != nil {
		return types.Null(), err
	}
	if r.Kind == types.KindBool && !r.Bool {
		return types.Bool(false), nil
	}
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	return types.Bool(asBool(l) && asBool(r)), nil
}

func evalOr(n *ast.BinaryOp, row Row, env *Env) (types.Value, error) {
	l, err := eval(n.Left, row, env)
	if err != nil {
		return types.Null(), err
	}
	if l.Kind == types.KindBool && l.Bool {
		return types.Bool(true), nil
	}
	r, err := eval(n.Right, row, env)
	if err != nil {
		return types.Null(), err
	}
	if r.Kind == types.KindBool && r.Bool {
		return types.Bool(true), nil
	}
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	return types.Bool(asBool(l) || asBool(r)), nil
}

func compareMatches(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}

// evalArith mirrors the teacher's add/subtract/multiply/divide/modulo
// dispatch (pkg/cypher/functions.go) but operates on types.Value instead
// of interface{}, and propagates null instead of treating it as zero.
func evalArith(op string, l, r types.Value) (types.Value, error) {
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	if op == "+" && l.Kind == types.KindString && r.Kind == types.KindString {
		return types.String(l.Str + r.Str), nil
	}
	if op == "+" && l.Kind == types.KindList {
		return types.List(append(append([]types.Value{}, l.List...), r.List...)), nil
	}
	lf, lok := numeric(l)
	rf, rok := numeric(r)
	if !lok || !rok {
		return types.Null(), gqlerr.TypeErr("cannot apply %s to %s and %s", op, l.Kind.TypeName(), r.Kind.TypeName())
	}
	bothInt := l.Kind == types.KindInt && r.Kind == types.KindInt
	switch op {
	case "+":
		if bothInt {
			return types.Int(l.Int + r.Int), nil
		}
		return types.Float(lf + rf), nil
	case "-":
		if bothInt {
			return types.Int(l.Int - r.Int), nil
		}
		return types.Float(lf - rf), nil
	case "*":
		if bothInt {
			return types.Int(l.Int * r.Int), nil
		}
		return types.Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return types.Null(), gqlerr.New(gqlerr.KindType, "division by zero")
		}
		if bothInt && l.Int%r.Int == 0 {
			return types.Int(l.Int / r.Int), nil
		}
		return types.Float(lf / rf), nil
	case "%":
		if rf == 0 {
			return types.Null(), gqlerr.New(gqlerr.KindType, "modulo by zero")
		}
		if bothInt {
			return types.Int(l.Int % r.Int), nil
		}
		return types.Float(float64(int64(lf) % int64(rf))), nil
	case "^":
		return types.Float(math.Pow(lf, rf)), nil
	default:
		return types.Null(), gqlerr.Internal(nil, "eval: unknown arithmetic operator %q", op)
	}
}

func numeric(v types.Value) (float64, bool) {
	switch v.Kind {
	case types.KindInt:
		return float64(v.Int), true
	case types.KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

func evalIn(v, list types.Value) (types.Value, error) {
	if list.IsNull() {
		return types.Null(), nil
	}
	if list.Kind != types.KindList {
		return types.Null(), gqlerr.TypeErr("IN requires a list, got %s", list.Kind.TypeName())
	}
	if v.IsNull() {
		return types.Null(), nil
	}
	sawNull := false
	for _, item := range list.List {
		if item.IsNull() {
			sawNull = true
			continue
		}
		if v.Equal(item) {
			return types.Bool(true), nil
		}
	}
	if sawNull {
		return types.Null(), nil
	}
	return types.Bool(false), nil
}

func evalStringMatch(op string, l, r types.Value) (types.Value, error) {
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	if l.Kind != types.KindString || r.Kind != types.KindString {
		return types.Null(), gqlerr.TypeErr("%s requires strings", op)
	}
	switch op {
	case "STARTS WITH":
		return types.Bool(strings.HasPrefix(l.Str, r.Str)), nil
	case "ENDS WITH":
		return types.Bool(strings.HasSuffix(l.Str, r.Str)), nil
	case "CONTAINS":
		return types.Bool(strings.Contains(l.Str, r.Str)), nil
	default:
		return types.Null(), nil
	}
}

// evalRegex implements =~: right is a regular expression pattern matched
// against left in full (ISO GQL's =~ anchors the match, unlike bare
// regexp.MatchString).
func evalRegex(l, r types.Value) (types.Value, error) {
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	if l.Kind != types.KindString || r.Kind != types.KindString {
		return types.Null(), gqlerr.TypeErr("=~ requires strings")
	}
	re, err := regexp.Compile("^(?:" + r.Str + ")$")
	if err != nil {
		return types.Null(), gqlerr.New(gqlerr.KindType, "invalid regular expression %q: %v", r.Str, err)
	}
	return types.Bool(re.MatchString(l.Str)), nil
}

func evalCase(n *ast.CaseExpr, row Row, env *Env) (types.Value, error) {
	var operand types.Value
	hasOperand := n.Operand != nil
	if hasOperand {
		v, err := eval(n.Operand, row, env)
		if err != nil {
			return types.Null(), err
		}
		operand = v
	}
	for _, w := range n.Whens {
		if hasOperand {
			whenVal, err := eval(w.When, row, env)
			if err != nil {
				return types.Null(), err
			}
			if !operand.IsNull() && !whenVal.IsNull() && operand.Equal(whenVal) {
				return eval(w.Then, row, env)
			}
		} else {
			cond, err := eval(w.When, row, env)
			if err != nil {
				return types.Null(), err
			}
			if asBool(cond) {
				return eval(w.Then, row, env)
			}
		}
	}
	if n.Else != nil {
		return eval(n.Else, row, env)
	}
	return types.Null(), nil
}

func evalListComprehension(n *ast.ListComprehension, row Row, env *Env) (types.Value, error) {
	src, err := eval(n.Source, row, env)
	if err != nil {
		return types.Null(), err
	}
	if src.IsNull() {
		return types.Null(), nil
	}
	if src.Kind != types.KindList {
		return types.Null(), gqlerr.TypeErr("list comprehension source must be a list, got %s", src.Kind.TypeName())
	}
	var out []types.Value
	for _, item := range src.List {
		inner := row.Clone()
		inner[n.Var] = item
		if n.Where != nil {
			cond, err := eval(n.Where, inner, env)
			if err != nil {
				return types.Null(), err
			}
			if !asBool(cond) {
				continue
			}
		}
		expr := n.Expr
		if expr == nil {
			out = append(out, item)
			continue
		}
		v, err := eval(expr, inner, env)
		if err != nil {
			return types.Null(), err
		}
		out = append(out, v)
	}
	return types.List(out), nil
}

// matchPropsFilter evaluates pred against row and reports the result as a
// boolean; a nil pred matches every row. Its only caller is the Filter
// operator in filter.go.
func matchPropsFilter(pred ast.Expr, row Row, env *Env) (bool, error) {
	if pred == nil {
		return true, nil
	}
	v, err := eval(pred, row, env)
	if err != nil {
		return false, err
	}
	return asBool(v), nil
}
