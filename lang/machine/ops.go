package machine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/duskvm/duskvm/lang/compiler"
	"github.com/duskvm/duskvm/lang/value"
)

// add implements the `+` operator's string-concatenation-or-numeric-sum
// dispatch (spec §4.3.1): either operand being a string makes the result a
// string, otherwise both sides are coerced to numbers.
func add(a, b value.Value) value.Value {
	_, aStr := a.(value.String)
	_, bStr := b.(value.String)
	if aStr || bStr {
		return value.String(toStringValue(a) + toStringValue(b))
	}
	return value.Number(toNumber(a) + toNumber(b))
}

func toStringValue(v value.Value) string { return v.String() }

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
		if string(n) == "" {
			return 0
		}
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case value.Null:
		return 0
	default:
		return math.NaN()
	}
}

func toInt32(v value.Value) int32 {
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(f)))
}

// compareValues orders a and b for the relational operators. The second
// return value is false when the comparison is undefined (either side is
// NaN), in which case every relational predicate must evaluate to false.
func compareValues(a, b value.Value) (int, bool) {
	if as, ok := a.(value.String); ok {
		if bs, ok := b.(value.String); ok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	an, bn := toNumber(a), toNumber(b)
	if math.IsNaN(an) || math.IsNaN(bn) {
		return 0, false
	}
	switch {
	case an < bn:
		return -1, true
	case an > bn:
		return 1, true
	default:
		return 0, true
	}
}

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
		return ok && av == bv && !math.IsNaN(float64(av))
	case value.String:
		bv, ok := b.(value.String)
		return ok && av == bv
	default:
		return a == b // reference identity for objects/closures/builtins
	}
}

func looseEquals(a, b value.Value) bool {
	if strictEquals(a, b) {
		return true
	}
	_, aUndef := a.(value.Undefined)
	_, aNull := a.(value.Null)
	_, bUndef := b.(value.Undefined)
	_, bNull := b.(value.Null)
	if (aUndef || aNull) && (bUndef || bNull) {
		return true
	}
	if aUndef || aNull || bUndef || bNull {
		return false
	}
	_, aIsObj := a.(*value.Object)
	_, bIsObj := b.(*value.Object)
	if aIsObj || bIsObj {
		return false // no ToPrimitive coercion in this engine; object equality is reference-only
	}
	return toNumber(a) == toNumber(b)
}

func keyToString(v value.Value) string {
	if n, ok := v.(value.Number); ok && n.IsInt() {
		return strconv.FormatInt(int64(n), 10)
	}
	return v.String()
}

// getProp reads a named property, falling back to the builtin-protocol
// prototype (spec §4.5) th holds for String/Number/Boolean primitives once
// the value's own storage (length/index for strings) misses.
func getProp(th *Thread, obj value.Value, name string) (value.Value, error) {
	switch o := obj.(type) {
	case *value.Object:
		return o.Attr(name)
	case value.String:
		if name == "length" {
			return value.Number(len([]rune(string(o)))), nil
		}
		if i, err := strconv.Atoi(name); err == nil {
			r := []rune(string(o))
			if i >= 0 && i < len(r) {
				return value.String(string(r[i])), nil
			}
		}
		if th != nil && th.StringProto != nil {
			return th.StringProto.Attr(name)
		}
		return value.Undef, nil
	case value.Number:
		if th != nil && th.NumberProto != nil {
			return th.NumberProto.Attr(name)
		}
		return value.Undef, nil
	case value.Boolean:
		if th != nil && th.BooleanProto != nil {
			return th.BooleanProto.Attr(name)
		}
		return value.Undef, nil
	case *value.Regexp:
		switch name {
		case "source":
			return value.String(o.Source), nil
		case "flags":
			return value.String(o.FlagStr), nil
		case "lastIndex":
			return value.Number(o.LastIndex), nil
		case "global":
			return value.Bool(o.Prog.Flags.Global), nil
		case "ignoreCase":
			return value.Bool(o.Prog.Flags.IgnoreCase), nil
		case "multiline":
			return value.Bool(o.Prog.Flags.Multiline), nil
		case "sticky":
			return value.Bool(o.Prog.Flags.Sticky), nil
		case "dotAll":
			return value.Bool(o.Prog.Flags.DotAll), nil
		case "unicode":
			return value.Bool(o.Prog.Flags.Unicode), nil
		}
		if th != nil && th.RegExpProto != nil {
			return th.RegExpProto.Attr(name)
		}
		return value.Undef, nil
	case value.Undefined, value.Null:
		return value.Undef, &value.TypeError{
			Msg: fmt.Sprintf("Cannot read properties of %s (reading '%s')", obj.Type(), name),
		}
	case value.Callable:
		if name == "name" {
			return value.String(o.Name()), nil
		}
		return value.Undef, nil
	default:
		return value.Undef, nil
	}
}

func setProp(obj value.Value, name string, v value.Value) error {
	switch o := obj.(type) {
	case *value.Object:
		return o.SetAttr(name, v)
	case *value.Regexp:
		if name == "lastIndex" {
			o.LastIndex = int(toNumber(v))
		}
		return nil
	case value.Undefined, value.Null:
		return &value.TypeError{Msg: fmt.Sprintf("Cannot set properties of %s (setting '%s')", obj.Type(), name)}
	default:
		return nil // assigning a property to a primitive is a silent no-op, matching non-strict mode
	}
}

func getIndex(th *Thread, obj, idx value.Value) (value.Value, error) {
	return getProp(th, obj, keyToString(idx))
}

func setIndex(obj, idx, v value.Value) error {
	return setProp(obj, keyToString(idx), v)
}

func deleteProp(obj, key value.Value) bool {
	o, ok := obj.(*value.Object)
	if !ok {
		return true // deleting a property of a non-object is a no-op that reports success
	}
	return o.DeleteAttr(keyToString(key))
}

func hasProp(obj, key value.Value) bool {
	o, ok := obj.(*value.Object)
	if !ok {
		return false
	}
	name := keyToString(key)
	for n := o; n != nil; n = n.Proto() {
		for _, k := range n.AttrNames() {
			if k == name {
				return true
			}
		}
	}
	return false
}

// instanceOf compares a's prototype chain against the prototype object
// associated with constructor b (spec §4.3.1's construct protocol). Only
// closures and native constructors (a Builtin with a Proto) are accepted;
// every other right-hand side is a TypeError.
func instanceOf(th *Thread, a, b value.Value) (bool, error) {
	var target *value.Object
	switch f := b.(type) {
	case *Closure:
		target = th.protoFor(f)
	case *Builtin:
		if f.Proto == nil {
			return false, &value.TypeError{Msg: "Right-hand side of 'instanceof' is not callable"}
		}
		target = f.Proto
	default:
		return false, &value.TypeError{Msg: "Right-hand side of 'instanceof' is not callable"}
	}
	if re, ok := a.(*value.Regexp); ok {
		return target == th.RegExpProto && re != nil, nil
	}
	ao, ok := a.(*value.Object)
	if !ok {
		return false, nil
	}
	for p := ao.Proto(); p != nil; p = p.Proto() {
		if p == target {
			return true, nil
		}
	}
	return false, nil
}

func errToValue(err error) value.Value {
	if te, ok := err.(*value.TypeError); ok {
		return value.String("TypeError: " + te.Msg)
	}
	return value.String(err.Error())
}

// stringsIterator drives for-in, walking a snapshot of an object's own
// enumerable property names (spec §4.3.2's for-in semantics).
type stringsIterator struct {
	names []string
	i     int
}

func (it *stringsIterator) Next() (value.Value, bool) {
	if it.i >= len(it.names) {
		return value.Undef, false
	}
	v := value.String(it.names[it.i])
	it.i++
	return v, true
}
func (it *stringsIterator) Done() {}

func namesIterator(v value.Value) value.Iterator {
	if o, ok := v.(*value.Object); ok {
		return &stringsIterator{names: o.AttrNames()}
	}
	return &stringsIterator{}
}

// runeIterator drives for-of over a string's Unicode code points (see
// DESIGN.md Open Question O1 for the rune-based representation tradeoff).
type runeIterator struct {
	runes []rune
	i     int
}

func (it *runeIterator) Next() (value.Value, bool) {
	if it.i >= len(it.runes) {
		return value.Undef, false
	}
	v := value.String(string(it.runes[it.i]))
	it.i++
	return v, true
}
func (it *runeIterator) Done() {}

func iterate(v value.Value) (value.Iterator, error) {
	if it, ok := v.(value.Iterable); ok {
		return it.Iterate(), nil
	}
	if s, ok := v.(value.String); ok {
		return &runeIterator{runes: []rune(string(s))}, nil
	}
	return nil, &value.TypeError{Msg: v.Type() + " is not iterable"}
}

// innermostCovering returns the tightest exception entry guarding atPC,
// excluding any entry already consumed in this unwind chain (identified by
// its EndPC, since nested entries always end no later than their enclosing
// entry per the compiler's linear try/catch/finally layout).
func innermostCovering(entries []compiler.ExceptionEntry, atPC, excludeEnd int) *compiler.ExceptionEntry {
	var best *compiler.ExceptionEntry
	for i := range entries {
		e := &entries[i]
		if atPC < e.StartPC || atPC >= e.EndPC {
			continue
		}
		if excludeEnd >= 0 && e.EndPC <= excludeEnd {
			continue
		}
		if best == nil || e.EndPC < best.EndPC {
			best = e
		}
	}
	return best
}

func innermostFinally(entries []compiler.ExceptionEntry, atPC, excludeEnd int) *compiler.ExceptionEntry {
	var best *compiler.ExceptionEntry
	for i := range entries {
		e := &entries[i]
		if e.FinallyPC < 0 {
			continue
		}
		if atPC < e.StartPC || atPC >= e.EndPC {
			continue
		}
		if excludeEnd >= 0 && e.EndPC <= excludeEnd {
			continue
		}
		if best == nil || e.EndPC < best.EndPC {
			best = e
		}
	}
	return best
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
