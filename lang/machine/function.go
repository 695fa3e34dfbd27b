// Package machine implements the stack-based bytecode interpreter that
// executes a lang/compiler.Module: call frames, the operand stack,
// exception-table-driven unwinding, the iteration protocol and the
// cooperative budget-polling contract (spec §4.3.2, §5). Grounded on the
// teacher's lang/machine package (machine.go's run loop, function.go's
// Funcode/Module split, frame.go, cell.go).
package machine

import (
	"github.com/duskvm/duskvm/lang/compiler"
	"github.com/duskvm/duskvm/lang/value"
)

// Closure is a callable language-level function value: a compiled Funcode
// plus the cells it captured from its defining scope.
type Closure struct {
	Funcode  *compiler.Funcode
	FreeVars []*value.Cell
}

func (c *Closure) String() string { return "function " + c.name() + "()" }
func (*Closure) Type() string     { return "function" }
func (*Closure) Truth() bool      { return true }
func (c *Closure) Name() string   { return c.name() }

func (c *Closure) name() string {
	if c.Funcode.Name == "" {
		return "<anonymous>"
	}
	return c.Funcode.Name
}

// Builtin is a host function exposed to scripts (spec §4.5, the builtin
// protocol). Grounded on the teacher's commented-out builtin method table
// pattern (lang/types), generalized into a real call surface here.
type Builtin struct {
	Fn   func(th *Thread, this value.Value, args []value.Value) (value.Value, error)
	name string

	// Proto, when set, lets this Builtin act as a `new`-constructible
	// native constructor (spec §4.5's Error/Array/Object constructors):
	// CALL_CTOR allocates `this` linked to Proto before invoking Fn,
	// mirroring what it already does for a Closure via protoFor.
	Proto *value.Object
}

// NewBuiltin wraps fn as a callable host function named name.
func NewBuiltin(name string, fn func(th *Thread, this value.Value, args []value.Value) (value.Value, error)) *Builtin {
	return &Builtin{Fn: fn, name: name}
}

// NewCtor wraps fn as a host function constructible via `new`, allocating
// a fresh object linked to proto as the `this` binding.
func NewCtor(name string, proto *value.Object, fn func(th *Thread, this value.Value, args []value.Value) (value.Value, error)) *Builtin {
	return &Builtin{Fn: fn, name: name, Proto: proto}
}

func (b *Builtin) String() string { return "function " + b.name + "() { [native code] }" }
func (*Builtin) Type() string     { return "function" }
func (*Builtin) Truth() bool      { return true }
func (b *Builtin) Name() string   { return b.name }
