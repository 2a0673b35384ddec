package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Eval parses and evaluates an expression against a fact environment.
// Failures come back as *GrammarError or *EvalError; nothing panics and
// no expression can reach I/O or code outside the allow-list.
func Eval(src string, env Env) (Value, error) {
	node, err := Parse(src)
	if err != nil {
		return Null(), err
	}
	v, err := Evaluate(node, env)
	if err != nil {
		return Null(), &EvalError{Expr: src, Err: err}
	}
	return v, nil
}

// EvalBool evaluates an expression and reduces it to its truthiness.
func EvalBool(src string, env Env) (bool, error) {
	v, err := Eval(src, env)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// Evaluate walks a parsed node against the environment.
func Evaluate(node Node, env Env) (Value, error) {
	switch n := node.(type) {
	case Literal:
		return n.Val, nil

	case ListLit:
		elems := make([]Value, 0, len(n.Elems))
		for _, e := range n.Elems {
			v, err := Evaluate(e, env)
			if err != nil {
				return Null(), err
			}
			elems = append(elems, v)
		}
		return List(elems...), nil

	case Ident:
		if v, ok := env[n.Name]; ok {
			return v, nil
		}
		// Unknown facts resolve to null so rules can probe optional
		// fields without blowing up.
		return Null(), nil

	case Unary:
		return evalUnary(n, env)

	case Binary:
		return evalBinary(n, env)

	case Compare:
		return evalCompare(n, env)

	case Call:
		return evalCall(n, env)
	}
	return Null(), fmt.Errorf("unsupported node %T", node)
}

func evalUnary(n Unary, env Env) (Value, error) {
	x, err := Evaluate(n.X, env)
	if err != nil {
		return Null(), err
	}
	switch n.Op {
	case OpNot:
		return Bool(!x.Truthy()), nil
	case OpNeg:
		switch x.Kind() {
		case KindInt:
			return Int(-x.AsInt()), nil
		case KindFloat:
			return Float(-x.AsFloat()), nil
		}
		return Null(), fmt.Errorf("cannot negate %s", x.Kind())
	case OpPos:
		if x.IsNumber() {
			return x, nil
		}
		return Null(), fmt.Errorf("unary + needs a number, got %s", x.Kind())
	}
	return Null(), fmt.Errorf("unknown unary operator")
}

func evalBinary(n Binary, env Env) (Value, error) {
	l, err := Evaluate(n.L, env)
	if err != nil {
		return Null(), err
	}

	// and/or short-circuit and hand back the deciding operand.
	switch n.Op {
	case OpAnd:
		if !l.Truthy() {
			return l, nil
		}
		return Evaluate(n.R, env)
	case OpOr:
		if l.Truthy() {
			return l, nil
		}
		return Evaluate(n.R, env)
	}

	r, err := Evaluate(n.R, env)
	if err != nil {
		return Null(), err
	}

	// String concatenation is the one non-numeric arithmetic case.
	if n.Op == OpAdd && l.Kind() == KindString && r.Kind() == KindString {
		return String(l.AsString() + r.AsString()), nil
	}

	if !l.IsNumber() || !r.IsNumber() {
		return Null(), fmt.Errorf("arithmetic needs numbers, got %s and %s", l.Kind(), r.Kind())
	}

	bothInt := l.Kind() == KindInt && r.Kind() == KindInt
	switch n.Op {
	case OpAdd:
		if bothInt {
			return Int(l.AsInt() + r.AsInt()), nil
		}
		return Float(l.AsFloat() + r.AsFloat()), nil
	case OpSub:
		if bothInt {
			return Int(l.AsInt() - r.AsInt()), nil
		}
		return Float(l.AsFloat() - r.AsFloat()), nil
	case OpMul:
		if bothInt {
			return Int(l.AsInt() * r.AsInt()), nil
		}
		return Float(l.AsFloat() * r.AsFloat()), nil
	case OpDiv:
		// Division is always true division.
		if r.AsFloat() == 0 {
			return Null(), fmt.Errorf("division by zero")
		}
		return Float(l.AsFloat() / r.AsFloat()), nil
	case OpMod:
		if bothInt {
			if r.AsInt() == 0 {
				return Null(), fmt.Errorf("modulo by zero")
			}
			return Int(l.AsInt() % r.AsInt()), nil
		}
		if r.AsFloat() == 0 {
			return Null(), fmt.Errorf("modulo by zero")
		}
		return Float(math.Mod(l.AsFloat(), r.AsFloat())), nil
	case OpPow:
		if bothInt && r.AsInt() >= 0 {
			return Int(intPow(l.AsInt(), r.AsInt())), nil
		}
		return Float(math.Pow(l.AsFloat(), r.AsFloat())), nil
	}
	return Null(), fmt.Errorf("unknown binary operator")
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func evalCompare(n Compare, env Env) (Value, error) {
	left, err := Evaluate(n.First, env)
	if err != nil {
		return Null(), err
	}
	for i, op := range n.Ops {
		right, err := Evaluate(n.Rest[i], env)
		if err != nil {
			return Null(), err
		}
		ok, err := compare(op, left, right)
		if err != nil {
			return Null(), err
		}
		if !ok {
			return Bool(false), nil
		}
		left = right // chained: a < b < c
	}
	return Bool(true), nil
}

func compare(op CmpOp, l, r Value) (bool, error) {
	switch op {
	case CmpEQ:
		return l.Equal(r), nil
	case CmpNE:
		return !l.Equal(r), nil
	case CmpIn:
		return contains(r, l)
	case CmpNotIn:
		ok, err := contains(r, l)
		return !ok, err
	}

	// Ordering comparisons: numbers with numbers, strings with
	// strings, times with times. Anything else is an evaluation error
	// and the rule's condition degrades to false.
	switch {
	case l.IsNumber() && r.IsNumber():
		return orderFloat(op, l.AsFloat(), r.AsFloat()), nil
	case l.Kind() == KindString && r.Kind() == KindString:
		return orderCmp(op, strings.Compare(l.AsString(), r.AsString())), nil
	case l.Kind() == KindTime && r.Kind() == KindTime:
		return orderCmp(op, l.AsTime().Compare(r.AsTime())), nil
	}
	return false, fmt.Errorf("cannot order %s against %s", l.Kind(), r.Kind())
}

func orderFloat(op CmpOp, a, b float64) bool {
	switch op {
	case CmpLT:
		return a < b
	case CmpLE:
		return a <= b
	case CmpGT:
		return a > b
	case CmpGE:
		return a >= b
	}
	return false
}

func orderCmp(op CmpOp, c int) bool {
	switch op {
	case CmpLT:
		return c < 0
	case CmpLE:
		return c <= 0
	case CmpGT:
		return c > 0
	case CmpGE:
		return c >= 0
	}
	return false
}

func contains(container, needle Value) (bool, error) {
	switch container.Kind() {
	case KindList:
		for _, e := range container.AsList() {
			if e.Equal(needle) {
				return true, nil
			}
		}
		return false, nil
	case KindString:
		if needle.Kind() != KindString {
			return false, fmt.Errorf("'in <string>' needs a string, got %s", needle.Kind())
		}
		return strings.Contains(container.AsString(), needle.AsString()), nil
	}
	return false, fmt.Errorf("'in' needs a list or string, got %s", container.Kind())
}

func evalCall(n Call, env Env) (Value, error) {
	args := make([]Value, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := Evaluate(a, env)
		if err != nil {
			return Null(), err
		}
		args = append(args, v)
	}

	if fn, ok := builtins[n.Name]; ok {
		return fn(args)
	}
	// Callables pre-registered in the environment (the engine's special
	// functions). Only names already bound to a func qualify; a rule can
	// never conjure a new one.
	if v, ok := env[n.Name]; ok && v.Kind() == KindFunc {
		return v.AsFunc()(args)
	}
	return Null(), fmt.Errorf("function %q is not allowed", n.Name)
}

// builtins is the fixed allow-list of pure utility functions.
var builtins = map[string]Func{
	"len":   builtinLen,
	"str":   builtinStr,
	"int":   builtinInt,
	"float": builtinFloat,
	"bool":  builtinBool,
	"abs":   builtinAbs,
	"min":   builtinMin,
	"max":   builtinMax,
}

func wantArgs(name string, args []Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s() takes %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func builtinLen(args []Value) (Value, error) {
	if err := wantArgs("len", args, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind() {
	case KindString:
		return Int(int64(utf8.RuneCountInString(args[0].AsString()))), nil
	case KindList:
		return Int(int64(len(args[0].AsList()))), nil
	}
	return Null(), fmt.Errorf("len() needs a string or list, got %s", args[0].Kind())
}

func builtinStr(args []Value) (Value, error) {
	if err := wantArgs("str", args, 1); err != nil {
		return Null(), err
	}
	return String(args[0].String()), nil
}

func builtinInt(args []Value) (Value, error) {
	if err := wantArgs("int", args, 1); err != nil {
		return Null(), err
	}
	switch v := args[0]; v.Kind() {
	case KindInt:
		return v, nil
	case KindFloat:
		return Int(int64(v.AsFloat())), nil
	case KindBool:
		if v.AsBool() {
			return Int(1), nil
		}
		return Int(0), nil
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.AsString()), 10, 64)
		if err != nil {
			return Null(), fmt.Errorf("int(): %q is not an integer", v.AsString())
		}
		return Int(n), nil
	}
	return Null(), fmt.Errorf("int() cannot convert %s", args[0].Kind())
}

func builtinFloat(args []Value) (Value, error) {
	if err := wantArgs("float", args, 1); err != nil {
		return Null(), err
	}
	switch v := args[0]; v.Kind() {
	case KindInt:
		return Float(v.AsFloat()), nil
	case KindFloat:
		return v, nil
	case KindBool:
		if v.AsBool() {
			return Float(1), nil
		}
		return Float(0), nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
		if err != nil {
			return Null(), fmt.Errorf("float(): %q is not a number", v.AsString())
		}
		return Float(f), nil
	}
	return Null(), fmt.Errorf("float() cannot convert %s", args[0].Kind())
}

func builtinBool(args []Value) (Value, error) {
	if err := wantArgs("bool", args, 1); err != nil {
		return Null(), err
	}
	return Bool(args[0].Truthy()), nil
}

func builtinAbs(args []Value) (Value, error) {
	if err := wantArgs("abs", args, 1); err != nil {
		return Null(), err
	}
	switch v := args[0]; v.Kind() {
	case KindInt:
		if v.AsInt() < 0 {
			return Int(-v.AsInt()), nil
		}
		return v, nil
	case KindFloat:
		return Float(math.Abs(v.AsFloat())), nil
	}
	return Null(), fmt.Errorf("abs() needs a number, got %s", args[0].Kind())
}

func builtinMin(args []Value) (Value, error) {
	return pickExtreme("min", args, func(a, b float64) bool { return a < b })
}

func builtinMax(args []Value) (Value, error) {
	return pickExtreme("max", args, func(a, b float64) bool { return a > b })
}

// pickExtreme handles both min(a, b, ...) and min([a, b, ...]).
func pickExtreme(name string, args []Value, better func(a, b float64) bool) (Value, error) {
	items := args
	if len(args) == 1 && args[0].Kind() == KindList {
		items = args[0].AsList()
	}
	if len(items) == 0 {
		return Null(), fmt.Errorf("%s() needs at least one value", name)
	}
	best := items[0]
	if !best.IsNumber() {
		return Null(), fmt.Errorf("%s() needs numbers, got %s", name, best.Kind())
	}
	for _, v := range items[1:] {
		if !v.IsNumber() {
			return Null(), fmt.Errorf("%s() needs numbers, got %s", name, v.Kind())
		}
		if better(v.AsFloat(), best.AsFloat()) {
			best = v
		}
	}
	return best, nil
}
