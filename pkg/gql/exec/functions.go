package exec

import (
	"math"
	"strings"
	"time"

	"github.com/orneryd/graphlite/pkg/gql/ast"
	"github.com/orneryd/graphlite/pkg/gqlerr"
	"github.com/orneryd/graphlite/pkg/types"
)

// evalFuncCall dispatches a builtin scalar function by name, mirroring
// the teacher's switch-on-name dispatch in pkg/cypher/functions.go but
// operating on typed Values instead of interface{}/string expressions.
// Aggregate functions (COUNT/SUM/AVG/MIN/MAX/COLLECT) never reach this
// path directly; aggregate.go evaluates them against a whole group
// instead of a single row.
func evalFuncCall(n *ast.FuncCall, row Row, env *Env) (types.Value, error) {
	args := make([]types.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := eval(a, row, env)
		if err != nil {
			return types.Null(), err
		}
		args[i] = v
	}
	switch n.Name {
	case "UPPER":
		return strFunc(args, strings.ToUpper)
	case "LOWER":
		return strFunc(args, strings.ToLower)
	case "TRIM":
		return strFunc(args, strings.TrimSpace)
	case "LENGTH":
		return fnLength(args)
	case "SUBSTRING":
		return fnSubstring(args)
	case "CONCAT":
		return fnConcat(args)
	case "NOW":
		return types.DateTime(nowValue(env)), nil
	case "DATE":
		return fnDate(args, env)
	case "TIME":
		return fnTime(args, env)
	case "DATETIME":
		return fnDateTime(args, env)
	case "ABS":
		return mathFunc(args, math.Abs)
	case "CEIL":
		return mathFunc(args, math.Ceil)
	case "FLOOR":
		return mathFunc(args, math.Floor)
	case "ROUND":
		return fnRound(args)
	case "SQRT":
		return mathFunc(args, math.Sqrt)
	case "POW":
		return fnPow(args)
	case "TYPE":
		return fnType(args)
	case "ID":
		return fnID(args)
	case "LABELS":
		return fnLabels(args)
	case "PROPERTIES":
		return fnProperties(args)
	case "KEYS":
		return fnKeys(args)
	default:
		return types.Null(), gqlerr.New(gqlerr.KindSemantic, "unknown function %s", n.Name)
	}
}

func strFunc(args []types.Value, f func(string) string) (types.Value, error) {
	if len(args) != 1 {
		return types.Null(), gqlerr.TypeErr("expected 1 argument")
	}
	v := args[0]
	if v.IsNull() {
		return types.Null(), nil
	}
	if v.Kind != types.KindString {
		return types.Null(), gqlerr.TypeErr("expected STRING, got %s", v.Kind.TypeName())
	}
	return types.String(f(v.Str)), nil
}

func fnLength(args []types.Value) (types.Value, error) {
	if len(args) != 1 {
		return types.Null(), gqlerr.TypeErr("LENGTH expects 1 argument")
	}
	v := args[0]
	switch v.Kind {
	case types.KindNull:
		return types.Null(), nil
	case types.KindString:
		return types.Int(int64(len([]rune(v.Str)))), nil
	case types.KindList:
		return types.Int(int64(len(v.List))), nil
	case types.KindPath:
		return types.Int(int64(v.PathRef.Len())), nil
	default:
		return types.Null(), gqlerr.TypeErr("LENGTH does not accept %s", v.Kind.TypeName())
	}
}

func fnSubstring(args []types.Value) (types.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return types.Null(), gqlerr.TypeErr("SUBSTRING expects 2 or 3 arguments")
	}
	if args[0].IsNull() {
		return types.Null(), nil
	}
	if args[0].Kind != types.KindString || args[1].Kind != types.KindInt {
		return types.Null(), gqlerr.TypeErr("SUBSTRING(string, int[, int])")
	}
	runes := []rune(args[0].Str)
	start := int(args[1].Int)
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := len(runes)
	if len(args) == 3 {
		if args[2].Kind != types.KindInt {
			return types.Null(), gqlerr.TypeErr("SUBSTRING length must be INTEGER")
		}
		end = start + int(args[2].Int)
		if end > len(runes) {
			end = len(runes)
		}
	}
	if end < start {
		end = start
	}
	return types.String(string(runes[start:end])), nil
}

func fnConcat(args []types.Value) (types.Value, error) {
	var b strings.Builder
	for _, a := range args {
		if a.IsNull() {
			return types.Null(), nil
		}
		if a.Kind != types.KindString {
			return types.Null(), gqlerr.TypeErr("CONCAT expects STRING arguments")
		}
		b.WriteString(a.Str)
	}
	return types.String(b.String()), nil
}

// nowValue returns the query's logical "now". There is deliberately no
// direct call to time.Now() scattered through function evaluation: every
// NOW()/DATE()/TIME()/DATETIME() call within one query sees the same
// instant, captured once per Env.
func nowValue(env *Env) time.Time {
	return env.now()
}

func fnDate(args []types.Value, env *Env) (types.Value, error) {
	if len(args) == 0 {
		return types.Date(nowValue(env)), nil
	}
	t, err := parseTemporalArg(args[0])
	if err != nil {
		return types.Null(), err
	}
	return types.Date(t), nil
}

func fnTime(args []types.Value, env *Env) (types.Value, error) {
	if len(args) == 0 {
		return types.TimeOfDay(nowValue(env)), nil
	}
	t, err := parseTemporalArg(args[0])
	if err != nil {
		return types.Null(), err
	}
	return types.TimeOfDay(t), nil
}

func fnDateTime(args []types.Value, env *Env) (types.Value, error) {
	if len(args) == 0 {
		return types.DateTime(nowValue(env)), nil
	}
	t, err := parseTemporalArg(args[0])
	if err != nil {
		return types.Null(), err
	}
	return types.DateTime(t), nil
}

func parseTemporalArg(v types.Value) (time.Time, error) {
	switch v.Kind {
	case types.KindString:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "15:04:05"} {
			if t, err := time.Parse(layout, v.Str); err == nil {
				return t, nil
			}
		}
		return time.Time{}, gqlerr.New(gqlerr.KindType, "cannot parse %q as a temporal value", v.Str)
	case types.KindDate, types.KindTime, types.KindDateTime:
		return v.Time, nil
	default:
		return time.Time{}, gqlerr.TypeErr("expected STRING or temporal value, got %s", v.Kind.TypeName())
	}
}

func mathFunc(args []types.Value, f func(float64) float64) (types.Value, error) {
	if len(args) != 1 {
		return types.Null(), gqlerr.TypeErr("expected 1 argument")
	}
	v := args[0]
	if v.IsNull() {
		return types.Null(), nil
	}
	n, ok := numeric(v)
	if !ok {
		return types.Null(), gqlerr.TypeErr("expected a number, got %s", v.Kind.TypeName())
	}
	return types.Float(f(n)), nil
}

func fnRound(args []types.Value) (types.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return types.Null(), gqlerr.TypeErr("ROUND expects 1 or 2 arguments")
	}
	n, ok := numeric(args[0])
	if args[0].IsNull() {
		return types.Null(), nil
	}
	if !ok {
		return types.Null(), gqlerr.TypeErr("expected a number, got %s", args[0].Kind.TypeName())
	}
	if len(args) == 1 {
		return types.Float(math.Round(n)), nil
	}
	if args[1].Kind != types.KindInt {
		return types.Null(), gqlerr.TypeErr("ROUND precision must be INTEGER")
	}
	scale := math.Pow(10, float64(args[1].Int))
	return types.Float(math.Round(n*scale) / scale), nil
}

func fnPow(args []types.Value) (types.Value, error) {
	if len(args) != 2 {
		return types.Null(), gqlerr.TypeErr("POW expects 2 arguments")
	}
	if args[0].IsNull() || args[1].IsNull() {
		return types.Null(), nil
	}
	base, ok1 := numeric(args[0])
	exp, ok2 := numeric(args[1])
	if !ok1 || !ok2 {
		return types.Null(), gqlerr.TypeErr("POW expects numeric arguments")
	}
	return types.Float(math.Pow(base, exp)), nil
}

func fnType(args []types.Value) (types.Value, error) {
	if len(args) != 1 || args[0].Kind != types.KindEdge {
		return types.Null(), gqlerr.TypeErr("TYPE expects a relationship")
	}
	return types.String(args[0].EdgeRef.Type), nil
}

func fnID(args []types.Value) (types.Value, error) {
	if len(args) != 1 {
		return types.Null(), gqlerr.TypeErr("ID expects 1 argument")
	}
	switch args[0].Kind {
	case types.KindNode:
		return types.String(args[0].NodeRef.ID.String()), nil
	case types.KindEdge:
		return types.String(args[0].EdgeRef.ID.String()), nil
	default:
		return types.Null(), gqlerr.TypeErr("ID expects a node or relationship")
	}
}

func fnLabels(args []types.Value) (types.Value, error) {
	if len(args) != 1 || args[0].Kind != types.KindNode {
		return types.Null(), gqlerr.TypeErr("LABELS expects a node")
	}
	out := make([]types.Value, len(args[0].NodeRef.Labels))
	for i, l := range args[0].NodeRef.Labels {
		out[i] = types.String(l)
	}
	return types.List(out), nil
}

func fnProperties(args []types.Value) (types.Value, error) {
	if len(args) != 1 {
		return types.Null(), gqlerr.TypeErr("PROPERTIES expects 1 argument")
	}
	switch args[0].Kind {
	case types.KindNode:
		return types.Map(args[0].NodeRef.Properties), nil
	case types.KindEdge:
		return types.Map(args[0].EdgeRef.Properties), nil
	case types.KindMap:
		return args[0], nil
	default:
		return types.Null(), gqlerr.TypeErr("PROPERTIES expects a node, relationship or map")
	}
}

func fnKeys(args []types.Value) (types.Value, error) {
	props, err := fnProperties(args)
	if err != nil {
		return types.Null(), err
	}
	keys := make([]types.Value, 0, len(props.Map))
	for k := range props.Map {
		keys = append(keys, types.String(k))
	}
	return types.List(keys), nil
}
