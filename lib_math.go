package flatland

import (
	"fmt"
	"math"
	"strings"
)

// toNumber converts a value to float64, reporting whether it was an integer
func toNumber(v Value) (f float64, isInt bool, ok bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true, true
	case float64:
		return x, false, true
	case bool:
		if x {
			return 1, true, true
		}
		return 0, true, true
	}
	return 0, false, false
}

func numbers(name string, args []Value, min, max int) ([]float64, bool, error) {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return nil, false, newError(TypeError, "%s: wrong number of arguments (%d)", name, len(args))
	}
	out := make([]float64, len(args))
	allInt := true
	for i, a := range args {
		f, isInt, ok := toNumber(a)
		if !ok {
			return nil, false, newError(TypeError, "%s: not a number: %s", name, FormatExp(a))
		}
		out[i] = f
		allInt = allInt && isInt
	}
	return out, allInt, nil
}

// number returns an int64 when the result is integral and the operands were
func number(f float64, asInt bool) Value {
	if asInt && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return int64(f)
	}
	return f
}

// RegisterMathLib binds arithmetic, comparison, list and math builtins in the
// global scope
func RegisterMathLib(ev *Executor) {

	// ==================== arithmetic ====================

	arith := func(name string, op func(a, b float64) float64) {
		ev.RegisterBuiltin(name, func(ev *Executor, args []Value) (Value, error) {
			xs, allInt, err := numbers(name, args, 1, -1)
			if err != nil {
				return nil, err
			}
			if len(xs) == 1 && name == "-" {
				return number(-xs[0], allInt), nil
			}
			acc := xs[0]
			for _, x := range xs[1:] {
				acc = op(acc, x)
			}
			return number(acc, allInt), nil
		})
	}
	arith("+", func(a, b float64) float64 { return a + b })
	arith("-", func(a, b float64) float64 { return a - b })
	arith("*", func(a, b float64) float64 { return a * b })

	ev.RegisterBuiltin("/", func(ev *Executor, args []Value) (Value, error) {
		xs, _, err := numbers("/", args, 2, 2)
		if err != nil {
			return nil, err
		}
		if xs[1] == 0 {
			return nil, newError(TypeError, "/: division by zero")
		}
		return xs[0] / xs[1], nil
	})

	ev.RegisterBuiltin("%", func(ev *Executor, args []Value) (Value, error) {
		xs, allInt, err := numbers("%", args, 2, 2)
		if err != nil {
			return nil, err
		}
		if xs[1] == 0 {
			return nil, newError(TypeError, "%%: division by zero")
		}
		r := math.Mod(xs[0], xs[1])
		if r != 0 && (r < 0) != (xs[1] < 0) {
			r += xs[1]
		}
		return number(r, allInt), nil
	})

	// ==================== comparison ====================

	compare := func(name string, op func(a, b float64) bool) {
		ev.RegisterBuiltin(name, func(ev *Executor, args []Value) (Value, error) {
			xs, _, err := numbers(name, args, 2, 2)
			if err != nil {
				return nil, err
			}
			return op(xs[0], xs[1]), nil
		})
	}
	compare(">", func(a, b float64) bool { return a > b })
	compare("<", func(a, b float64) bool { return a < b })
	compare(">=", func(a, b float64) bool { return a >= b })
	compare("<=", func(a, b float64) bool { return a <= b })

	ev.RegisterBuiltin("=", func(ev *Executor, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, newError(TypeError, "=: wrong number of arguments (%d)", len(args))
		}
		a, _, okA := toNumber(args[0])
		b, _, okB := toNumber(args[1])
		if okA && okB {
			return a == b, nil
		}
		return FormatExp(args[0]) == FormatExp(args[1]), nil
	})

	ev.RegisterBuiltin("not", func(ev *Executor, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, newError(TypeError, "not: wrong number of arguments (%d)", len(args))
		}
		return !truthy(args[0]), nil
	})

	// ==================== sequencing and lists ====================

	ev.RegisterBuiltin("begin", func(ev *Executor, args []Value) (Value, error) {
		if len(args) == 0 {
			return nil, nil
		}
		return args[len(args)-1], nil
	})

	ev.RegisterBuiltin("list", func(ev *Executor, args []Value) (Value, error) {
		return append([]Value{}, args...), nil
	})

	ev.RegisterBuiltin("apply", func(ev *Executor, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, newError(TypeError, "apply: usage (apply proc list)")
		}
		list, ok := asList(args[1])
		if !ok {
			return nil, newError(TypeError, "apply: not a list: %s", FormatExp(args[1]))
		}
		return ev.Apply(args[0], list)
	})

	ev.RegisterBuiltin("map", func(ev *Executor, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, newError(TypeError, "map: usage (map proc list)")
		}
		list, ok := asList(args[1])
		if !ok {
			return nil, newError(TypeError, "map: not a list: %s", FormatExp(args[1]))
		}
		out := make([]Value, 0, len(list))
		for _, x := range list {
			v, err := ev.Apply(args[0], []Value{x})
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	})

	extreme := func(name string, better func(a, b float64) bool) {
		ev.RegisterBuiltin(name, func(ev *Executor, args []Value) (Value, error) {
			if len(args) == 1 {
				if list, ok := asList(args[0]); ok {
					args = list
				}
			}
			if len(args) == 0 {
				return nil, newError(TypeError, "%s: empty argument list", name)
			}
			best := args[0]
			bf, _, ok := toNumber(best)
			if !ok {
				return nil, newError(TypeError, "%s: not a number: %s", name, FormatExp(best))
			}
			for _, a := range args[1:] {
				f, _, ok := toNumber(a)
				if !ok {
					return nil, newError(TypeError, "%s: not a number: %s", name, FormatExp(a))
				}
				if better(f, bf) {
					best, bf = a, f
				}
			}
			return best, nil
		})
	}
	extreme("max", func(a, b float64) bool { return a > b })
	extreme("min", func(a, b float64) bool { return a < b })

	ev.RegisterBuiltin("null?", func(ev *Executor, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, newError(TypeError, "null?: wrong number of arguments (%d)", len(args))
		}
		list, ok := asList(args[0])
		return args[0] == nil || (ok && len(list) == 0), nil
	})

	ev.RegisterBuiltin("number?", func(ev *Executor, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, newError(TypeError, "number?: wrong number of arguments (%d)", len(args))
		}
		switch args[0].(type) {
		case int64, float64:
			return true, nil
		}
		return false, nil
	})

	ev.RegisterBuiltin("symbol?", func(ev *Executor, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, newError(TypeError, "symbol?: wrong number of arguments (%d)", len(args))
		}
		_, ok := args[0].(Symbol)
		return ok, nil
	})

	ev.RegisterBuiltin("procedure?", func(ev *Executor, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, newError(TypeError, "procedure?: wrong number of arguments (%d)", len(args))
		}
		switch args[0].(type) {
		case *Procedure, *Builtin:
			return true, nil
		}
		return false, nil
	})

	ev.RegisterBuiltin("print", func(ev *Executor, args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = FormatExp(a)
		}
		fmt.Fprintln(ev.out, strings.Join(parts, " "))
		return nil, nil
	})

	ev.RegisterBuiltin("randint", func(ev *Executor, args []Value) (Value, error) {
		xs, _, err := numbers("randint", args, 2, 2)
		if err != nil {
			return nil, err
		}
		lo, hi := int64(xs[0]), int64(xs[1])
		if hi < lo {
			return nil, newError(TypeError, "randint: empty range (%d %d)", lo, hi)
		}
		return lo + ev.ctx.Rand.Int63n(hi-lo+1), nil
	})

	// ==================== math ====================

	unary := func(name string, fn func(float64) float64) {
		ev.RegisterBuiltin(name, func(ev *Executor, args []Value) (Value, error) {
			xs, _, err := numbers(name, args, 1, 1)
			if err != nil {
				return nil, err
			}
			return fn(xs[0]), nil
		})
	}
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("asin", math.Asin)
	unary("acos", math.Acos)
	unary("atan", math.Atan)
	unary("sqrt", math.Sqrt)
	unary("exp", math.Exp)
	unary("log", math.Log)
	unary("radians", func(d float64) float64 { return d * math.Pi / 180 })
	unary("degrees", func(r float64) float64 { return r * 180 / math.Pi })

	binary := func(name string, fn func(a, b float64) float64) {
		ev.RegisterBuiltin(name, func(ev *Executor, args []Value) (Value, error) {
			xs, _, err := numbers(name, args, 2, 2)
			if err != nil {
				return nil, err
			}
			return fn(xs[0], xs[1]), nil
		})
	}
	binary("atan2", math.Atan2)
	binary("hypot", math.Hypot)
	binary("pow", math.Pow)

	ev.RegisterBuiltin("expt", func(ev *Executor, args []Value) (Value, error) {
		xs, allInt, err := numbers("expt", args, 2, 2)
		if err != nil {
			return nil, err
		}
		return number(math.Pow(xs[0], xs[1]), allInt && xs[1] >= 0), nil
	})

	integral := func(name string, fn func(float64) float64) {
		ev.RegisterBuiltin(name, func(ev *Executor, args []Value) (Value, error) {
			xs, _, err := numbers(name, args, 1, 1)
			if err != nil {
				return nil, err
			}
			return number(fn(xs[0]), true), nil
		})
	}
	integral("floor", math.Floor)
	integral("ceil", math.Ceil)

	ev.RegisterBuiltin("abs", func(ev *Executor, args []Value) (Value, error) {
		xs, allInt, err := numbers("abs", args, 1, 1)
		if err != nil {
			return nil, err
		}
		return number(math.Abs(xs[0]), allInt), nil
	})

	// (round x) rounds half to even and returns an integer; (round x n) keeps n digits
	ev.RegisterBuiltin("round", func(ev *Executor, args []Value) (Value, error) {
		xs, _, err := numbers("round", args, 1, 2)
		if err != nil {
			return nil, err
		}
		if len(xs) == 1 {
			return number(math.RoundToEven(xs[0]), true), nil
		}
		scale := math.Pow(10, math.Trunc(xs[1]))
		return math.RoundToEven(xs[0]*scale) / scale, nil
	})

	ev.env.Define("pi", math.Pi, GlobalScope)
	ev.env.Define("e", math.E, GlobalScope)
}

func asList(v Value) ([]Value, bool) {
	switch x := v.(type) {
	case []Value:
		return x, true
	case List:
		return x, true
	case nil:
		return nil, true
	}
	return nil, false
}
