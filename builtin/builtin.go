// Package builtin installs the host-callable primitives and prototype
// chains spec §4.5 calls the "builtin protocol": Object, Array, String,
// Number, Boolean, Function, Error(+subtypes), Math and JSON. Grounded on
// the teacher's commented-out builtin-method-table convention
// (lang/types/string.go, array.go in the teacher) generalized into real
// (*machine.Thread, value.Value, []value.Value) (value.Value, error) host
// functions, one per file per prototype, matching the teacher's one-
// function-per-opcode style in lang/machine/opcode.go.
package builtin

import (
	"fmt"
	"math"

	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

// Prototypes holds the prototype objects new values are linked against,
// so the machine's NEW_OBJECT/ARRAY_FROM/literal opcodes and this package's
// own constructors agree on identity.
type Prototypes struct {
	Object   *value.Object
	Array    *value.Object
	String   *value.Object
	Number   *value.Object
	Boolean  *value.Object
	Function *value.Object
	Error    *value.Object
	RegExp   *value.Object
}

// Install populates th.Globals with Math, JSON, the Object/Array/String/…
// constructors and their prototypes, ready for a freshly constructed
// Thread (spec §4.5 "installed on context construction").
func Install(th *machine.Thread) *Prototypes {
	p := &Prototypes{
		Object:   value.NewObject(nil),
		Function: value.NewObject(nil),
	}
	p.Array = value.NewObject(p.Object)
	p.String = value.NewObject(p.Object)
	p.Number = value.NewObject(p.Object)
	p.Boolean = value.NewObject(p.Object)
	p.Error = value.NewObject(p.Object)
	p.RegExp = value.NewObject(p.Object)

	th.ObjectProto = p.Object
	th.ArrayProto = p.Array
	th.StringProto = p.String
	th.NumberProto = p.Number
	th.BooleanProto = p.Boolean

	installObject(th, p)
	installArray(th, p)
	installString(th, p)
	installNumber(th, p)
	installMath(th)
	installJSON(th, p)
	installErrors(th, p)
	installRegexp(th, p)

	g := th.Globals
	g.SetAttr("undefined", value.Undef)
	g.SetAttr("NaN", value.Number(math.NaN()))
	g.SetAttr("Infinity", value.Number(math.Inf(1)))
	return p
}

func method(name string, fn func(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error)) *machine.Builtin {
	return machine.NewBuiltin(name, fn)
}

func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.Undef
	}
	return args[i]
}

func typeError(format string, a ...any) error {
	return &value.TypeError{Msg: fmt.Sprintf(format, a...)}
}

// toNumber and toStr are the coercions builtins need from host argument
// values; grounded on lang/machine/ops.go's toNumber but kept local since
// builtin must not import the unexported lang/machine internals.
func toNumber(v value.Value) float64 {
	switch n := v.(type) {
	case value.Number:
		return float64(n)
	case value.Boolean:
		if n {
			return 1
		}
		return 0
	case value.String:
		var f float64
		if _, err := fmt.Sscanf(string(n), "%g", &f); err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toStr(v value.Value) string { return v.String() }

// strictEquals mirrors lang/machine's unexported strictEquals (===):
// reference identity for objects/closures/builtins, value identity for
// primitives, NaN never equal to itself.
func strictEquals(a, b value.Value) bool {
	switch av := a.(type) {
	case value.Undefined:
		_, ok := b.(value.Undefined)
		return ok
	case value.Null:
		_, ok := b.(value.Null)
		return ok
	case value.Boolean:
		bv, ok := b.(value.Boolean)
		return ok && av == bv
	case value.Number:
		bv, ok := b.(value.Number)
		return ok && av == bv && float64(av) == float64(av)
	case value.String:
		bv, ok := b.(value.String)
		return ok && av == bv
	default:
		return a == b
	}
}

func toInt(v value.Value) int {
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}
