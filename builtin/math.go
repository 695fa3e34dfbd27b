package builtin

import (
	"math"
	"math/rand"

	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

// installMath wires the Math namespace's constants and functions (spec
// §4.5), grounded on the host language's own Math object surface.
func installMath(th *machine.Thread) {
	m := value.NewObject(th.ObjectProto)
	m.SetAttr("PI", value.Number(math.Pi))
	m.SetAttr("E", value.Number(math.E))
	m.SetAttr("LN2", value.Number(math.Ln2))
	m.SetAttr("LN10", value.Number(math.Log(10)))
	m.SetAttr("SQRT2", value.Number(math.Sqrt2))

	for name, fn := range mathUnaryFns() {
		fn := fn
		m.SetAttr(name, method(name, func(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
			return value.Number(fn(toNumber(arg(args, 0)))), nil
		}))
	}

	m.SetAttr("round", method("round", mathRound))
	m.SetAttr("max", method("max", mathMax))
	m.SetAttr("min", method("min", mathMin))
	m.SetAttr("pow", method("pow", mathPow))
	m.SetAttr("random", method("random", mathRandom))
	m.SetAttr("hypot", method("hypot", mathHypot))

	th.Globals.SetAttr("Math", m)
}

func mathUnaryFns() map[string]func(float64) float64 {
	return map[string]func(float64) float64{
		"abs":   math.Abs,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"sqrt":  math.Sqrt,
		"cbrt":  math.Cbrt,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"atan":  math.Atan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"exp":   math.Exp,
		"trunc": math.Trunc,
		"sign": func(f float64) float64 {
			switch {
			case f > 0:
				return 1
			case f < 0:
				return -1
			default:
				return f
			}
		},
	}
}

func mathRound(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.Number(math.Floor(toNumber(arg(args, 0)) + 0.5)), nil
}

func mathMax(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(math.Inf(-1)), nil
	}
	best := math.Inf(-1)
	for _, a := range args {
		n := toNumber(a)
		if math.IsNaN(n) {
			return value.Number(math.NaN()), nil
		}
		if n > best {
			best = n
		}
	}
	return value.Number(best), nil
}

func mathMin(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Number(math.Inf(1)), nil
	}
	best := math.Inf(1)
	for _, a := range args {
		n := toNumber(a)
		if math.IsNaN(n) {
			return value.Number(math.NaN()), nil
		}
		if n < best {
			best = n
		}
	}
	return value.Number(best), nil
}

func mathPow(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.Number(math.Pow(toNumber(arg(args, 0)), toNumber(arg(args, 1)))), nil
}

func mathHypot(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	sum := 0.0
	for _, a := range args {
		n := toNumber(a)
		sum += n * n
	}
	return value.Number(math.Sqrt(sum)), nil
}

// mathRandom uses math/rand's package-level source: the sandboxed scripts
// this engine runs have no need for a cryptographically secure generator,
// matching the host language's own Math.random (not specified to be
// unpredictable).
func mathRandom(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.Number(rand.Float64()), nil
}
