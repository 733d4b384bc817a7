package types

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"time"
)

// gobValue is the wire shape gob actually (de)serializes; Value itself
// can't be registered directly with gob because its pointer fields
// (*Node/*Edge/*Path) would recursively re-register Value. Encode/Decode
// flatten through this shape instead, matching the teacher's pattern of a
// dedicated export struct around its live types (storage.Neo4jNode mirrors
// storage.Node the same way).
type gobValue struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Time  time.Time
	List  []gobValue
	Map   map[string]gobValue
	// Node/Edge/Path values are never persisted directly — only their ids
	// are, via the storage manager's own encoding. Encode rejects them.
}

func toGobValue(v Value) (gobValue, error) {
	switch v.Kind {
	case KindNode, KindEdge, KindPath:
		return gobValue{}, fmt.Errorf("graphlite: cannot encode a %s value as a property", v.Kind.TypeName())
	case KindList:
		out := make([]gobValue, len(v.List))
		for i, e := range v.List {
			gv, err := toGobValue(e)
			if err != nil {
				return gobValue{}, err
			}
			out[i] = gv
		}
		return gobValue{Kind: v.Kind, List: out}, nil
	case KindMap:
		out := make(map[string]gobValue, len(v.Map))
		for k, e := range v.Map {
			gv, err := toGobValue(e)
			if err != nil {
				return gobValue{}, err
			}
			out[k] = gv
		}
		return gobValue{Kind: v.Kind, Map: out}, nil
	default:
		return gobValue{Kind: v.Kind, Bool: v.Bool, Int: v.Int, Float: v.Float, Str: v.Str, Time: v.Time}, nil
	}
}

func fromGobValue(gv gobValue) Value {
	switch gv.Kind {
	case KindList:
		out := make([]Value, len(gv.List))
		for i, e := range gv.List {
			out[i] = fromGobValue(e)
		}
		return Value{Kind: KindList, List: out}
	case KindMap:
		out := make(map[string]Value, len(gv.Map))
		for k, e := range gv.Map {
			out[k] = fromGobValue(e)
		}
		return Value{Kind: KindMap, Map: out}
	default:
		return Value{Kind: gv.Kind, Bool: gv.Bool, Int: gv.Int, Float: gv.Float, Str: gv.Str, Time: gv.Time}
	}
}

// EncodeValue serializes v for KV storage. decode(encode(v)) == v for every
// scalar, list and map value (spec §8 round-trip property); Node/Edge/Path
// values cannot appear in a property map and return an error.
func EncodeValue(v Value) ([]byte, error) {
	gv, err := toGobValue(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&gv); err != nil {
		return nil, fmt.Errorf("graphlite: encode value: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeValue is the inverse of EncodeValue. Any error is reported by the
// caller as storage Corruption, never a panic, per spec §4.1.
func DecodeValue(b []byte) (Value, error) {
	var gv gobValue
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&gv); err != nil {
		return Value{}, fmt.Errorf("graphlite: decode value: %w", err)
	}
	return fromGobValue(gv), nil
}

// EncodeProperties serializes a property map as a single blob.
func EncodeProperties(props map[string]Value) ([]byte, error) {
	return EncodeValue(Map(props))
}

// DecodeProperties is the inverse of EncodeProperties.
func DecodeProperties(b []byte) (map[string]Value, error) {
	v, err := DecodeValue(b)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindMap {
		return nil, fmt.Errorf("graphlite: decoded properties are not a map")
	}
	return v.Map, nil
}

// OrderedKeyBytes returns a byte encoding of v suitable for use as an index
// key component: integers and floats are encoded so that unsigned
// byte-lexicographic order matches numeric order (spec §4.1's index tree
// relies on this for range scans), strings are encoded as their raw UTF-8
// bytes (already lexicographically ordered), and all other kinds fall back
// to their String() form. Only scalar-ish kinds are expected; callers
// should not index list/map/node/edge/path properties.
func OrderedKeyBytes(v Value) []byte {
	switch v.Kind {
	case KindInt:
		// Flip the sign bit so two's-complement order becomes unsigned
		// byte order: this is the standard "orderable integer" trick.
		u := uint64(v.Int) ^ (1 << 63)
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, u)
		return b
	case KindFloat:
		bits := floatToOrderedUint64(v.Float)
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, bits)
		return b
	case KindString:
		return []byte(v.Str)
	case KindBool:
		if v.Bool {
			return []byte{1}
		}
		return []byte{0}
	case KindDate, KindTime, KindDateTime:
		return []byte(v.Time.UTC().Format(time.RFC3339Nano))
	default:
		return []byte(v.String())
	}
}

func floatToOrderedUint64(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		// Negative: flip every bit so larger magnitude negatives sort
		// smaller.
		return ^bits
	}
	// Positive: flip only the sign bit so it sorts after negatives.
	return bits | (1 << 63)
}
