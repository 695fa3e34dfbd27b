// Package value defines the runtime value model of the engine: the tagged
// Undefined/Null/Boolean/Number/String/Object sum described in spec §4.3.1,
// plus the interfaces the machine package dispatches operators through.
package value

import (
	"fmt"
	"math"
	"strconv"
)

// Value is implemented by every runtime value. It mirrors the teacher's
// lang/types.Value contract (String/Type/Freeze/Truth/Hash) generalized to
// this language's value set.
type Value interface {
	String() string
	Type() string
	Truth() bool
}

// Undefined is the value of unset bindings and absent properties.
type Undefined struct{}

func (Undefined) String() string { return "undefined" }
func (Undefined) Type() string   { return "undefined" }
func (Undefined) Truth() bool    { return false }

// Null is the explicit absence-of-object value.
type Null struct{}

func (Null) String() string { return "null" }
func (Null) Type() string   { return "object" } // typeof null === "object", matching the host language
func (Null) Truth() bool    { return false }

// Boolean is a true/false value.
type Boolean bool

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Boolean) Type() string  { return "boolean" }
func (b Boolean) Truth() bool { return bool(b) }

// Number is an IEEE-754 double, the language's sole numeric type.
type Number float64

func (n Number) String() string {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
func (Number) Type() string { return "number" }
func (n Number) Truth() bool {
	f := float64(n)
	return f != 0 && !math.IsNaN(f)
}

// IsInt reports whether n holds an exact, representable integer value.
func (n Number) IsInt() bool {
	f := float64(n)
	return f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53
}

// String is a sequence of Unicode code points, stored as Go UTF-8 text;
// index/length operations convert through []rune rather than UTF-16 code
// units (see DESIGN.md Open Question O1 for the representation tradeoff).
type String string

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }
func (s String) Truth() bool    { return len(s) != 0 }

// Undef, Null and the canonical booleans are shared singletons, following
// the teacher's pattern of pre-allocated sentinel values (lang/types).
var (
	Undef     = Undefined{}
	NullValue = Null{}
	True      = Boolean(true)
	False     = Boolean(false)
)

// Bool returns the canonical Boolean value for b.
func Bool(b bool) Boolean {
	if b {
		return True
	}
	return False
}

// Callable is implemented by values that can appear on the left of a CALL
// instruction: closures and builtin functions (spec §4.3.2, §4.5).
type Callable interface {
	Value
	Name() string
}

// HasAttrs is implemented by values exposing named properties (spec
// §4.3.1's Object variant and any object-like builtin).
type HasAttrs interface {
	Value
	Attr(name string) (Value, error)
	SetAttr(name string, v Value) error
	AttrNames() []string
}

// Indexable is implemented by values supporting numeric/array indexing.
type Indexable interface {
	Value
	Index(i int) (Value, error)
	Len() int
}

// SetIndexable is implemented by mutable indexable values (arrays).
type SetIndexable interface {
	Indexable
	SetIndex(i int, v Value) error
}

// Iterable is implemented by values usable as the subject of for-of.
type Iterable interface {
	Value
	Iterate() Iterator
}

// Iterator is a single iteration cursor. Next returns false when exhausted.
type Iterator interface {
	Next() (Value, bool)
	Done()
}

// NoSuchPropertyError names an absent property, mirroring the teacher's
// NoSuchAttrError (lang/types/value.go). Nothing in this module returns it:
// Object.Attr reports an absent name as Undefined with a nil error.
type NoSuchPropertyError struct {
	Name string
}

func (e *NoSuchPropertyError) Error() string { return fmt.Sprintf("no such property: %s", e.Name) }

// TypeError marks a failure the embedding Thread surfaces as a catchable
// script-level TypeError (spec §5).
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }
