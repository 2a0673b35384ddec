package eval

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind enumerates the closed set of types a fact value may hold.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindTime
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindTime:
		return "time"
	case KindFunc:
		return "func"
	}
	return "unknown"
}

// Func is a pre-registered callable exposed to rule expressions.
// Only the engine registers these; rule text can never define one.
type Func func(args []Value) (Value, error)

// Value is the tagged union flowing through the evaluator and the
// fact environment.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	t    time.Time
	fn   Func
}

func Null() Value             { return Value{kind: KindNull} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int(i int64) Value       { return Value{kind: KindInt, i: i} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func String(s string) Value   { return Value{kind: KindString, s: s} }
func List(vs ...Value) Value  { return Value{kind: KindList, list: vs} }
func Time(t time.Time) Value  { return Value{kind: KindTime, t: t} }
func Callable(fn Func) Value  { return Value{kind: KindFunc, fn: fn} }

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsNumber() bool    { return v.kind == KindInt || v.kind == KindFloat }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsInt() int64      { return v.i }
func (v Value) AsString() string  { return v.s }
func (v Value) AsList() []Value   { return v.list }
func (v Value) AsTime() time.Time { return v.t }
func (v Value) AsFunc() Func      { return v.fn }

// AsFloat promotes ints so mixed arithmetic works without special cases.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Truthy reports how the value behaves in a boolean context: null is
// false, numbers are true when nonzero, strings and lists when
// non-empty, times when non-zero.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindList:
		return len(v.list) > 0
	case KindTime:
		return !v.t.IsZero()
	case KindFunc:
		return v.fn != nil
	}
	return false
}

// Equal implements the == operator. Values of incompatible kinds are
// simply not equal; equality never errors.
func (v Value) Equal(o Value) bool {
	if v.IsNumber() && o.IsNumber() {
		if v.kind == KindInt && o.kind == KindInt {
			return v.i == o.i
		}
		return v.AsFloat() == o.AsFloat()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindFunc:
		return "<func>"
	}
	return ""
}

// FromAny converts caller-supplied primitives at the fact-environment
// boundary. Callers may not supply functions; those are injected by the
// engine itself.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		// JSON numbers arrive as float64; keep whole values as ints so
		// rule authors can compare them against int literals exactly.
		if x == float64(int64(x)) {
			return Int(int64(x)), nil
		}
		return Float(x), nil
	case string:
		return String(x), nil
	case time.Time:
		return Time(x), nil
	case []any:
		elems := make([]Value, 0, len(x))
		for _, e := range x {
			v, err := FromAny(e)
			if err != nil {
				return Null(), err
			}
			elems = append(elems, v)
		}
		return List(elems...), nil
	case Value:
		return x, nil
	}
	return Null(), fmt.Errorf("unsupported fact type %T", raw)
}

// ToAny lowers a value back to plain Go types for serialization.
// Functions lower to nil and are expected to be filtered out upstream.
func (v Value) ToAny() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindTime:
		return v.t
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.ToAny()
		}
		return out
	}
	return nil
}

// Env is one fact environment: identifier to value. It is owned by a
// single inference run and never shared across concurrent runs.
type Env map[string]Value

// Scalars returns the subset of the environment that can be snapshotted
// into an inference step (no lists, times rendered by the caller).
func (e Env) Scalars() map[string]any {
	out := make(map[string]any)
	for k, v := range e {
		switch v.kind {
		case KindBool, KindInt, KindFloat, KindString, KindNull:
			out[k] = v.ToAny()
		}
	}
	return out
}
