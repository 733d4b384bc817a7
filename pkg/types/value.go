// Package types implements GraphLite's property-graph data model: the
// tagged-union Value, Node, Edge and Path primitives described in spec §3.
package types

import (
	"bytes"
	"fmt"
	"sort"
	"time"
)

// Kind tags the concrete type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindTime
	KindDateTime
	KindList
	KindMap
	KindNode
	KindEdge
	KindPath
)

// Value is GraphLite's tagged-union primitive (spec §3). Only one of the
// typed fields is meaningful, selected by Kind; helper constructors and
// accessors keep callers from touching the fields directly.
type Value struct {
	Kind Kind

	Bool     bool
	Int      int64
	Float    float64
	Str      string
	Time     time.Time
	List     []Value
	Map      map[string]Value
	NodeRef  *Node
	EdgeRef  *Edge
	PathRef  *Path
}

func Null() Value              { return Value{Kind: KindNull} }
func Bool(b bool) Value        { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value        { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value    { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value    { return Value{Kind: KindString, Str: s} }
func Date(t time.Time) Value   { return Value{Kind: KindDate, Time: t} }
func TimeOfDay(t time.Time) Value { return Value{Kind: KindTime, Time: t} }
func DateTime(t time.Time) Value  { return Value{Kind: KindDateTime, Time: t} }
func List(vs []Value) Value    { return Value{Kind: KindList, List: vs} }
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }
func NodeValue(n *Node) Value  { return Value{Kind: KindNode, NodeRef: n} }
func EdgeValue(e *Edge) Value  { return Value{Kind: KindEdge, EdgeRef: e} }
func PathValue(p *Path) Value  { return Value{Kind: KindPath, PathRef: p} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// FromGo wraps a native Go value (as produced by property-map literals or
// function results) into a Value. Unrecognized types map to null rather
// than panicking, matching storage's "never panic on malformed input"
// contract.
func FromGo(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case string:
		return String(t)
	case time.Time:
		return DateTime(t)
	case []Value:
		return List(t)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromGo(e)
		}
		return List(out)
	case map[string]Value:
		return Map(t)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = FromGo(e)
		}
		return Map(out)
	case *Node:
		return NodeValue(t)
	case *Edge:
		return EdgeValue(t)
	case *Path:
		return PathValue(t)
	default:
		return Null()
	}
}

// Go unwraps a Value back into a plain Go value, the inverse of FromGo for
// scalar kinds. Used at the coordinator boundary when handing rows back to
// callers.
func (v Value) Go() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindDate, KindTime, KindDateTime:
		return v.Time
	case KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.Go()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.Go()
		}
		return out
	case KindNode:
		return v.NodeRef
	case KindEdge:
		return v.EdgeRef
	case KindPath:
		return v.PathRef
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	case KindDate:
		return v.Time.Format("2006-01-02")
	case KindTime:
		return v.Time.Format("15:04:05")
	case KindDateTime:
		return v.Time.Format(time.RFC3339)
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + joinStrings(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v.Map[k].String()))
		}
		return "{" + joinStrings(parts, ", ") + "}"
	case KindNode:
		return fmt.Sprintf("(%s)", v.NodeRef.ID)
	case KindEdge:
		return fmt.Sprintf("[%s]", v.EdgeRef.ID)
	case KindPath:
		return v.PathRef.String()
	default:
		return "?"
	}
}

func joinStrings(parts []string, sep string) string {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(p)
	}
	return buf.String()
}

// Equal implements the structural equality rule of spec §3: equality is
// structural across matching kinds, and false (not null) across mismatched
// kinds — except that null is never equal to anything, including null,
// under the SQL-style set-operation rule used by Equal; see NullSafeEqual
// for MATCH/WHERE's three-valued semantics.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		// Numeric cross-kind equality: 1 = 1.0
		if v.Kind == KindInt && o.Kind == KindFloat {
			return float64(v.Int) == o.Float
		}
		if v.Kind == KindFloat && o.Kind == KindInt {
			return v.Float == float64(o.Int)
		}
		return false
	}
	switch v.Kind {
	case KindNull:
		return false // SQL semantics: null is not-equal to null (spec §4.5.4)
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindDate, KindTime, KindDateTime:
		return v.Time.Equal(o.Time)
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, e := range v.Map {
			oe, ok := o.Map[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	case KindNode:
		return v.NodeRef != nil && o.NodeRef != nil && v.NodeRef.ID == o.NodeRef.ID
	case KindEdge:
		return v.EdgeRef != nil && o.EdgeRef != nil && v.EdgeRef.ID == o.EdgeRef.ID
	case KindPath:
		return v.PathRef.Equal(o.PathRef)
	default:
		return false
	}
}

// NullSafeEqual implements three-valued logic equality: null compared to
// anything (including null) yields "unknown", represented here as
// (false, false). Non-null kinds compare structurally.
func NullSafeEqual(v, o Value) (result bool, known bool) {
	if v.Kind == KindNull || o.Kind == KindNull {
		return false, false
	}
	return v.Equal(o), true
}

// Compare orders two values within compatible kinds, matching spec §3:
// numeric types order by magnitude, strings order lexicographically. ok is
// false when the kinds are incompatible (comparison yields null).
func Compare(v, o Value) (cmp int, ok bool) {
	switch {
	case v.Kind == KindInt && o.Kind == KindInt:
		return cmpInt64(v.Int, o.Int), true
	case v.Kind == KindFloat && o.Kind == KindFloat:
		return cmpFloat64(v.Float, o.Float), true
	case v.Kind == KindInt && o.Kind == KindFloat:
		return cmpFloat64(float64(v.Int), o.Float), true
	case v.Kind == KindFloat && o.Kind == KindInt:
		return cmpFloat64(v.Float, float64(o.Int)), true
	case v.Kind == KindString && o.Kind == KindString:
		switch {
		case v.Str < o.Str:
			return -1, true
		case v.Str > o.Str:
			return 1, true
		default:
			return 0, true
		}
	case (v.Kind == KindDate || v.Kind == KindTime || v.Kind == KindDateTime) && v.Kind == o.Kind:
		switch {
		case v.Time.Before(o.Time):
			return -1, true
		case v.Time.After(o.Time):
			return 1, true
		default:
			return 0, true
		}
	case v.Kind == KindBool && o.Kind == KindBool:
		if v.Bool == o.Bool {
			return 0, true
		}
		if !v.Bool && o.Bool {
			return -1, true
		}
		return 1, true
	default:
		return 0, false
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// TypeName returns the GQL-surface name of v's kind, used in TypeError
// messages.
func (k Kind) TypeName() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindBool:
		return "BOOLEAN"
	case KindInt:
		return "INTEGER"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindDateTime:
		return "DATETIME"
	case KindList:
		return "LIST"
	case KindMap:
		return "MAP"
	case KindNode:
		return "NODE"
	case KindEdge:
		return "EDGE"
	case KindPath:
		return "PATH"
	default:
		return "UNKNOWN"
	}
}
