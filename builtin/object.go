package builtin

import (
	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

// installObject wires Object.prototype's instance methods and the Object
// static namespace's keys/values/entries/assign (spec §4.5).
func installObject(th *machine.Thread, p *Prototypes) {
	p.Object.SetAttr("hasOwnProperty", method("hasOwnProperty", objHasOwnProperty))
	p.Object.SetAttr("toString", method("toString", objToString))
	p.Object.SetAttr("isPrototypeOf", method("isPrototypeOf", objIsPrototypeOf))

	ns := value.NewObject(p.Object)
	ns.SetAttr("keys", method("keys", objKeys))
	ns.SetAttr("values", method("values", objValues))
	ns.SetAttr("entries", method("entries", objEntries))
	ns.SetAttr("assign", method("assign", objAssign))
	ns.SetAttr("freeze", method("freeze", objFreeze))
	ns.SetAttr("isFrozen", method("isFrozen", objIsFrozen))
	ns.SetAttr("create", method("create", objCreate))
	ns.SetAttr("getPrototypeOf", method("getPrototypeOf", objGetPrototypeOf))
	th.Globals.SetAttr("Object", ns)
}

// ownNames returns o's own enumerable property names in insertion order
// (spec §4 "Ordering": property insertion order is preserved across every
// enumerating operation), which is exactly what AttrNames already gives.
func ownNames(o *value.Object) []string { return o.AttrNames() }

func objHasOwnProperty(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := this.(*value.Object)
	if !ok {
		return value.False, nil
	}
	name := keyStr(arg(args, 0))
	for _, n := range o.AttrNames() {
		if n == name {
			return value.True, nil
		}
	}
	return value.False, nil
}

func objToString(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.String(this.String()), nil
}

func objIsPrototypeOf(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	proto, ok := this.(*value.Object)
	if !ok {
		return value.False, nil
	}
	o, ok := arg(args, 0).(*value.Object)
	if !ok {
		return value.False, nil
	}
	for p := o.Proto(); p != nil; p = p.Proto() {
		if p == proto {
			return value.True, nil
		}
	}
	return value.False, nil
}

func objKeys(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := arg(args, 0).(*value.Object)
	if !ok {
		return value.NewArray(th.ArrayProto, nil), nil
	}
	names := ownNames(o)
	elems := make([]value.Value, len(names))
	for i, n := range names {
		elems[i] = value.String(n)
	}
	return value.NewArray(th.ArrayProto, elems), nil
}

func objValues(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := arg(args, 0).(*value.Object)
	if !ok {
		return value.NewArray(th.ArrayProto, nil), nil
	}
	names := ownNames(o)
	elems := make([]value.Value, len(names))
	for i, n := range names {
		elems[i], _ = o.Attr(n)
	}
	return value.NewArray(th.ArrayProto, elems), nil
}

func objEntries(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := arg(args, 0).(*value.Object)
	if !ok {
		return value.NewArray(th.ArrayProto, nil), nil
	}
	names := ownNames(o)
	elems := make([]value.Value, len(names))
	for i, n := range names {
		v, _ := o.Attr(n)
		elems[i] = value.NewArray(th.ArrayProto, []value.Value{value.String(n), v})
	}
	return value.NewArray(th.ArrayProto, elems), nil
}

func objAssign(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	target, ok := arg(args, 0).(*value.Object)
	if !ok {
		return value.Undef, typeError("Object.assign target must be an object")
	}
	for _, src := range args[min(1, len(args)):] {
		so, ok := src.(*value.Object)
		if !ok {
			continue
		}
		for _, n := range ownNames(so) {
			v, _ := so.Attr(n)
			target.SetAttr(n, v)
		}
	}
	return target, nil
}

func objFreeze(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	if o, ok := arg(args, 0).(*value.Object); ok {
		o.Freeze()
	}
	return arg(args, 0), nil
}

func objIsFrozen(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := arg(args, 0).(*value.Object)
	if !ok {
		return value.True, nil
	}
	return value.Bool(o.Frozen()), nil
}

func objCreate(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	proto, _ := arg(args, 0).(*value.Object)
	return value.NewObject(proto), nil
}

func objGetPrototypeOf(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := arg(args, 0).(*value.Object)
	if !ok || o.Proto() == nil {
		return value.NullValue, nil
	}
	return o.Proto(), nil
}

func keyStr(v value.Value) string { return v.String() }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
