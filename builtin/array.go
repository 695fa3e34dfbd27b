package builtin

import (
	"strings"

	"golang.org/x/exp/slices"

	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

// installArray wires Array.prototype's methods (spec §4.5's non-exhaustive
// list: map/filter/reduce/forEach/indexOf/lastIndexOf/find/findIndex/some/
// every/concat/slice/reverse/includes/shift/unshift/push/pop/join).
func installArray(th *machine.Thread, p *Prototypes) {
	set := func(name string, fn func(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error)) {
		p.Array.SetAttr(name, method(name, fn))
	}
	set("push", arrPush)
	set("pop", arrPop)
	set("shift", arrShift)
	set("unshift", arrUnshift)
	set("map", arrMap)
	set("filter", arrFilter)
	set("reduce", arrReduce)
	set("forEach", arrForEach)
	set("indexOf", arrIndexOf)
	set("lastIndexOf", arrLastIndexOf)
	set("find", arrFind)
	set("findIndex", arrFindIndex)
	set("some", arrSome)
	set("every", arrEvery)
	set("concat", arrConcat)
	set("slice", arrSlice)
	set("reverse", arrReverse)
	set("includes", arrIncludes)
	set("join", arrJoin)
	set("toString", arrJoin)
	set("sort", arrSort)
	set("splice", arrSplice)

	ns := value.NewObject(p.Object)
	ns.SetAttr("isArray", method("isArray", arrIsArray))
	ns.SetAttr("from", method("from", arrFrom))
	th.Globals.SetAttr("Array", ns)
}

func asArray(this value.Value) (*value.Object, bool) {
	o, ok := this.(*value.Object)
	if !ok || !o.IsArray() {
		return nil, false
	}
	return o, true
}

func arrPush(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.push called on non-array")
	}
	for _, v := range args {
		o.SetIndex(o.Len(), v)
	}
	return value.Number(o.Len()), nil
}

func arrPop(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok || o.Len() == 0 {
		return value.Undef, nil
	}
	elems := o.Elements()
	v := elems[len(elems)-1]
	o.SetAttr("length", value.Number(len(elems)-1))
	return v, nil
}

func arrShift(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok || o.Len() == 0 {
		return value.Undef, nil
	}
	elems := o.Elements()
	v := elems[0]
	rest := append([]value.Value(nil), elems[1:]...)
	replaceElements(o, rest)
	return v, nil
}

func arrUnshift(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.unshift called on non-array")
	}
	fresh := append(append([]value.Value(nil), args...), o.Elements()...)
	replaceElements(o, fresh)
	return value.Number(o.Len()), nil
}

// replaceElements swaps o's backing array via the public length/SetIndex
// API rather than reaching into value.Object's internals, since builtin
// has no access to the unexported array field.
func replaceElements(o *value.Object, elems []value.Value) {
	o.SetAttr("length", value.Number(0))
	for i, v := range elems {
		o.SetIndex(i, v)
	}
}

func arrMap(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.map called on non-array")
	}
	fn := arg(args, 0)
	out := make([]value.Value, o.Len())
	for i, v := range append([]value.Value(nil), o.Elements()...) {
		r, err := th.Call(fn, value.Undef, []value.Value{v, value.Number(i), o})
		if err != nil {
			return value.Undef, err
		}
		out[i] = r
	}
	return value.NewArray(th.ArrayProto, out), nil
}

func arrFilter(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.filter called on non-array")
	}
	fn := arg(args, 0)
	var out []value.Value
	for i, v := range append([]value.Value(nil), o.Elements()...) {
		r, err := th.Call(fn, value.Undef, []value.Value{v, value.Number(i), o})
		if err != nil {
			return value.Undef, err
		}
		if r.Truth() {
			out = append(out, v)
		}
	}
	return value.NewArray(th.ArrayProto, out), nil
}

func arrReduce(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.reduce called on non-array")
	}
	fn := arg(args, 0)
	elems := append([]value.Value(nil), o.Elements()...)
	var acc value.Value
	start := 0
	if len(args) > 1 {
		acc = args[1]
	} else {
		if len(elems) == 0 {
			return value.Undef, typeError("Reduce of empty array with no initial value")
		}
		acc = elems[0]
		start = 1
	}
	for i := start; i < len(elems); i++ {
		r, err := th.Call(fn, value.Undef, []value.Value{acc, elems[i], value.Number(i), o})
		if err != nil {
			return value.Undef, err
		}
		acc = r
	}
	return acc, nil
}

func arrForEach(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.forEach called on non-array")
	}
	fn := arg(args, 0)
	for i, v := range append([]value.Value(nil), o.Elements()...) {
		if _, err := th.Call(fn, value.Undef, []value.Value{v, value.Number(i), o}); err != nil {
			return value.Undef, err
		}
	}
	return value.Undef, nil
}

func arrIndexOf(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Number(-1), nil
	}
	target := arg(args, 0)
	for i, v := range o.Elements() {
		if strictEquals(v, target) {
			return value.Number(i), nil
		}
	}
	return value.Number(-1), nil
}

func arrLastIndexOf(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Number(-1), nil
	}
	target := arg(args, 0)
	elems := o.Elements()
	for i := len(elems) - 1; i >= 0; i-- {
		if strictEquals(elems[i], target) {
			return value.Number(i), nil
		}
	}
	return value.Number(-1), nil
}

func arrFind(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.find called on non-array")
	}
	fn := arg(args, 0)
	for i, v := range append([]value.Value(nil), o.Elements()...) {
		r, err := th.Call(fn, value.Undef, []value.Value{v, value.Number(i), o})
		if err != nil {
			return value.Undef, err
		}
		if r.Truth() {
			return v, nil
		}
	}
	return value.Undef, nil
}

func arrFindIndex(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Number(-1), typeError("Array.prototype.findIndex called on non-array")
	}
	fn := arg(args, 0)
	for i, v := range append([]value.Value(nil), o.Elements()...) {
		r, err := th.Call(fn, value.Undef, []value.Value{v, value.Number(i), o})
		if err != nil {
			return value.Undef, err
		}
		if r.Truth() {
			return value.Number(i), nil
		}
	}
	return value.Number(-1), nil
}

func arrSome(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.False, typeError("Array.prototype.some called on non-array")
	}
	fn := arg(args, 0)
	for i, v := range append([]value.Value(nil), o.Elements()...) {
		r, err := th.Call(fn, value.Undef, []value.Value{v, value.Number(i), o})
		if err != nil {
			return value.Undef, err
		}
		if r.Truth() {
			return value.True, nil
		}
	}
	return value.False, nil
}

func arrEvery(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.True, typeError("Array.prototype.every called on non-array")
	}
	fn := arg(args, 0)
	for i, v := range append([]value.Value(nil), o.Elements()...) {
		r, err := th.Call(fn, value.Undef, []value.Value{v, value.Number(i), o})
		if err != nil {
			return value.Undef, err
		}
		if !r.Truth() {
			return value.False, nil
		}
	}
	return value.True, nil
}

func arrConcat(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.concat called on non-array")
	}
	out := append([]value.Value(nil), o.Elements()...)
	for _, a := range args {
		if ao, ok := a.(*value.Object); ok && ao.IsArray() {
			out = append(out, ao.Elements()...)
		} else {
			out = append(out, a)
		}
	}
	return value.NewArray(th.ArrayProto, out), nil
}

func arrSlice(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.slice called on non-array")
	}
	elems := o.Elements()
	start, end := sliceRange(len(elems), args)
	out := append([]value.Value(nil), elems[start:end]...)
	return value.NewArray(th.ArrayProto, out), nil
}

func sliceRange(n int, args []value.Value) (int, int) {
	start, end := 0, n
	if len(args) > 0 {
		start = normalizeIndex(toInt(args[0]), n)
	}
	if len(args) > 1 {
		end = normalizeIndex(toInt(args[1]), n)
	}
	if end < start {
		end = start
	}
	return start, end
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func arrReverse(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.reverse called on non-array")
	}
	elems := o.Elements()
	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return o, nil
}

// arrSort sorts in place and returns the receiver, converting elements to
// strings for the default comparator or delegating to a supplied compareFn
// (spec §4.5's Array method list).
func arrSort(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.sort called on non-array")
	}
	elems := o.Elements()
	if fn := arg(args, 0); fn != value.Undef {
		var callErr error
		slices.SortFunc(elems, func(a, b value.Value) int {
			if callErr != nil {
				return 0
			}
			r, err := th.Call(fn, value.Undef, []value.Value{a, b})
			if err != nil {
				callErr = err
				return 0
			}
			switch n := toNumber(r); {
			case n < 0:
				return -1
			case n > 0:
				return 1
			default:
				return 0
			}
		})
		if callErr != nil {
			return value.Undef, callErr
		}
		return o, nil
	}
	slices.SortFunc(elems, func(a, b value.Value) int {
		return strings.Compare(a.String(), b.String())
	})
	return o, nil
}

// arrSplice removes/inserts elements in place and returns the removed
// elements as a new array (spec §4.5's Array method list).
func arrSplice(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.Undef, typeError("Array.prototype.splice called on non-array")
	}
	n := o.Len()
	start := normalizeIndex(toInt(arg(args, 0)), n)

	deleteCount := n - start
	if len(args) > 1 {
		if dc := int(toNumber(args[1])); dc < deleteCount {
			deleteCount = dc
		}
	}
	if deleteCount < 0 {
		deleteCount = 0
	}

	var inserted []value.Value
	if len(args) > 2 {
		inserted = args[2:]
	}

	elems := o.Elements()
	removed := append([]value.Value(nil), elems[start:start+deleteCount]...)

	rest := slices.Delete(elems, start, start+deleteCount)
	rest = slices.Insert(rest, start, inserted...)
	replaceElements(o, rest)

	return value.NewArray(th.ArrayProto, removed), nil
}

func arrIncludes(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.False, nil
	}
	target := arg(args, 0)
	for _, v := range o.Elements() {
		if strictEquals(v, target) {
			return value.True, nil
		}
		if isNaN(v) && isNaN(target) {
			return value.True, nil // Array.prototype.includes uses SameValueZero, unlike ===
		}
	}
	return value.False, nil
}

func isNaN(v value.Value) bool {
	n, ok := v.(value.Number)
	return ok && float64(n) != float64(n)
}

func arrJoin(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := asArray(this)
	if !ok {
		return value.String(""), nil
	}
	sep := ","
	if len(args) > 0 {
		if _, isUndef := args[0].(value.Undefined); !isUndef {
			sep = args[0].String()
		}
	}
	parts := make([]string, o.Len())
	for i, v := range o.Elements() {
		if _, isNull := v.(value.Null); isNull {
			parts[i] = ""
		} else if _, isUndef := v.(value.Undefined); isUndef {
			parts[i] = ""
		} else {
			parts[i] = v.String()
		}
	}
	return value.String(strings.Join(parts, sep)), nil
}

func arrIsArray(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := arg(args, 0).(*value.Object)
	return value.Bool(ok && o.IsArray()), nil
}

func arrFrom(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	src := arg(args, 0)
	var elems []value.Value
	switch s := src.(type) {
	case *value.Object:
		if s.IsArray() {
			elems = append([]value.Value(nil), s.Elements()...)
		} else {
			elems = drain(s.Iterate())
		}
	case value.String:
		for _, r := range string(s) {
			elems = append(elems, value.String(string(r)))
		}
	}
	return value.NewArray(th.ArrayProto, elems), nil
}

func drain(it value.Iterator) []value.Value {
	var out []value.Value
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	it.Done()
	return out
}
