package value

import (
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNull
	KindBool
	KindI64
	KindU64
	KindFloat
	KindString
	KindArray
	KindMap
	KindError
)

// KindAny is the wildcard used by port contracts. It is never the kind of a
// concrete Value.
const KindAny Kind = 0xFF

var kindNames = map[Kind]string{
	KindEmpty:  "empty",
	KindNull:   "null",
	KindBool:   "bool",
	KindI64:    "i64",
	KindU64:    "u64",
	KindFloat:  "float",
	KindString: "string",
	KindArray:  "array",
	KindMap:    "map",
	KindError:  "error",
	KindAny:    "any",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// KindFromName resolves a kind by its textual name, as used in keymap and
// node configuration files.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindEmpty, false
}

// Value is an immutable tagged union. The zero Value is Empty.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string // String and Error payloads
	arr  []Value
	m    *orderedmap.OrderedMap[string, Value]
}

// MapEntry is a single key/value pair used to construct Map values.
type MapEntry struct {
	K string
	V Value
}

// EmptyVal returns the Empty value, the true absence of a value. It is
// distinct from Null, which is a present-but-null value.
func EmptyVal() Value { return Value{kind: KindEmpty} }

// NullVal returns the Null value.
func NullVal() Value { return Value{kind: KindNull} }

// BoolVal returns a Bool value.
func BoolVal(b bool) Value { return Value{kind: KindBool, b: b} }

// I64Val returns a signed integer value.
func I64Val(i int64) Value { return Value{kind: KindI64, i: i} }

// U64Val returns an unsigned integer value.
func U64Val(u uint64) Value { return Value{kind: KindU64, u: u} }

// FloatVal returns a Float value.
func FloatVal(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringVal returns a String value.
func StringVal(s string) Value { return Value{kind: KindString, s: s} }

// ArrayVal returns an Array value preserving the supplied element order.
func ArrayVal(elems ...Value) Value {
	arr := make([]Value, len(elems))
	copy(arr, elems)
	return Value{kind: KindArray, arr: arr}
}

// MapVal returns a Map value preserving the supplied key order. A repeated
// key keeps its first position and takes the last supplied value.
func MapVal(entries ...MapEntry) Value {
	m := orderedmap.New[string, Value]()
	for _, e := range entries {
		m.Set(e.K, e.V)
	}
	return Value{kind: KindMap, m: m}
}

// ErrorVal returns an error-carrying value with the given message.
func ErrorVal(msg string) Value { return Value{kind: KindError, s: msg} }

// Kind reports the variant tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsError reports whether v carries an upstream failure.
func (v Value) IsError() bool { return v.kind == KindError }

func (v Value) expect(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: %s access on %s value", k, v.kind))
	}
}

// Bool returns the payload of a Bool value. It panics on any other kind.
func (v Value) Bool() bool { v.expect(KindBool); return v.b }

// I64 returns the payload of an I64 value. It panics on any other kind.
func (v Value) I64() int64 { v.expect(KindI64); return v.i }

// U64 returns the payload of a U64 value. It panics on any other kind.
func (v Value) U64() uint64 { v.expect(KindU64); return v.u }

// Float returns the payload of a Float value. It panics on any other kind.
func (v Value) Float() float64 { v.expect(KindFloat); return v.f }

// Str returns the payload of a String value. It panics on any other kind.
func (v Value) Str() string { v.expect(KindString); return v.s }

// ErrorMessage returns the message of an Error value. It panics on any
// other kind.
func (v Value) ErrorMessage() string { v.expect(KindError); return v.s }

// ArrayLen returns the element count of an Array value.
func (v Value) ArrayLen() int { v.expect(KindArray); return len(v.arr) }

// ArrayIndex returns element i of an Array value.
func (v Value) ArrayIndex(i int) Value { v.expect(KindArray); return v.arr[i] }

// ArrayItems returns a copy of the elements of an Array value.
func (v Value) ArrayItems() []Value {
	v.expect(KindArray)
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out
}

// MapLen returns the entry count of a Map value.
func (v Value) MapLen() int { v.expect(KindMap); return v.m.Len() }

// MapGet looks up a key in a Map value.
func (v Value) MapGet(key string) (Value, bool) {
	v.expect(KindMap)
	return v.m.Get(key)
}

// MapKeys returns the keys of a Map value in insertion order.
func (v Value) MapKeys() []string {
	v.expect(KindMap)
	keys := make([]string, 0, v.m.Len())
	for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// MapRange calls fn for each entry of a Map value in insertion order until
// fn returns false.
func (v Value) MapRange(fn func(key string, val Value) bool) {
	v.expect(KindMap)
	for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// String renders a debug representation. It is not one of the archive
// encodings; use the msgpack or YAML codecs for persistence.
func (v Value) String() string {
	switch v.kind {
	case KindEmpty:
		return "empty"
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindI64:
		return strconv.FormatInt(v.i, 10)
	case KindU64:
		return strconv.FormatUint(v.u, 10) + "u"
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindError:
		return "error(" + strconv.Quote(v.s) + ")"
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		var sb strings.Builder
		sb.WriteString("{")
		first := true
		v.MapRange(func(k string, e Value) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			sb.WriteString(e.String())
			return true
		})
		sb.WriteString("}")
		return sb.String()
	default:
		return v.kind.String()
	}
}
