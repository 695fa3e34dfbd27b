package value

import (
	"fmt"
	"strings"

	"github.com/dolthub/swiss"
)

// props is an insertion-ordered property record: a swiss.Map gives O(1)
// lookup (teacher's lang/machine/map.go uses the same library for its Map
// value), and a parallel order slice preserves first-insertion order for
// for-in enumeration (spec §4.3.1 Object invariants). Deleting a key leaves
// a tombstone in order (filtered out on iteration) rather than doing an
// O(n) slice removal on every delete.
type props struct {
	m     *swiss.Map[string, Value]
	order []string
	holes int
}

func newProps() *props {
	return &props{m: swiss.NewMap[string, Value](8)}
}

func (p *props) get(name string) (Value, bool) {
	return p.m.Get(name)
}

func (p *props) set(name string, v Value) {
	if _, ok := p.m.Get(name); !ok {
		p.order = append(p.order, name)
	}
	p.m.Put(name, v)
}

func (p *props) delete(name string) bool {
	if _, ok := p.m.Get(name); !ok {
		return false
	}
	p.m.Delete(name)
	for i, k := range p.order {
		if k == name {
			p.order[i] = ""
			p.holes++
			break
		}
	}
	p.compactIfSparse()
	return true
}

func (p *props) compactIfSparse() {
	if p.holes < 8 || p.holes*2 < len(p.order) {
		return
	}
	fresh := make([]string, 0, len(p.order)-p.holes)
	for _, k := range p.order {
		if k != "" {
			fresh = append(fresh, k)
		}
	}
	p.order = fresh
	p.holes = 0
}

func (p *props) names() []string {
	out := make([]string, 0, len(p.order)-p.holes)
	for _, k := range p.order {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func (p *props) len() int { return p.m.Count() }

// Object is the language's general-purpose reference type: a mutable,
// ordered property bag with an optional prototype link (spec §4.3.1).
type Object struct {
	class string // "Object", "Array", "Error", etc, surfaced by toString
	props *props
	proto *Object
	frozen bool

	// array holds dense indexed storage for values created via array
	// literals; non-negative integer keys live here rather than in props,
	// matching how real engines keep arrays dense (spec explicitly rules
	// out sparse arrays, §1 Non-goals).
	array []Value
}

// NewObject creates an empty plain object with the given prototype (which
// may be nil).
func NewObject(proto *Object) *Object {
	return &Object{class: "Object", props: newProps(), proto: proto}
}

// NewArray creates an array object backed by elems (taken by reference).
func NewArray(proto *Object, elems []Value) *Object {
	return &Object{class: "Array", props: newProps(), proto: proto, array: elems}
}

func (o *Object) String() string {
	if o.class == "Array" {
		parts := make([]string, len(o.array))
		for i, v := range o.array {
			parts[i] = v.String()
		}
		return strings.Join(parts, ",")
	}
	return "[object " + o.class + "]"
}

func (o *Object) Type() string { return "object" }
func (o *Object) Truth() bool  { return true }

// Class reports the internal [[Class]] tag used by Object.prototype.toString
// and by the machine to distinguish array fast paths from plain objects.
func (o *Object) Class() string { return o.class }

// IsArray reports whether o was created via NewArray.
func (o *Object) IsArray() bool { return o.class == "Array" }

func (o *Object) Attr(name string) (Value, error) {
	if o.IsArray() {
		if name == "length" {
			return Number(len(o.array)), nil
		}
		if i, ok := arrayIndex(name); ok && i < len(o.array) {
			return o.array[i], nil
		}
	}
	if v, ok := o.props.get(name); ok {
		return v, nil
	}
	if o.proto != nil {
		return o.proto.Attr(name)
	}
	return Undef, nil
}

func (o *Object) SetAttr(name string, v Value) error {
	if o.frozen {
		return &TypeError{Msg: fmt.Sprintf("cannot assign to property %q of a frozen object", name)}
	}
	if o.IsArray() {
		if name == "length" {
			n, ok := v.(Number)
			if !ok || !n.IsInt() || n < 0 {
				return &TypeError{Msg: "invalid array length"}
			}
			o.setLength(int(n))
			return nil
		}
		if i, ok := arrayIndex(name); ok {
			o.setIndexGrow(i, v)
			return nil
		}
	}
	o.props.set(name, v)
	return nil
}

func (o *Object) setLength(n int) {
	if n <= len(o.array) {
		o.array = o.array[:n]
		return
	}
	grown := make([]Value, n)
	copy(grown, o.array)
	for i := len(o.array); i < n; i++ {
		grown[i] = Undef
	}
	o.array = grown
}

func (o *Object) setIndexGrow(i int, v Value) {
	if i < len(o.array) {
		o.array[i] = v
		return
	}
	o.setLength(i + 1)
	o.array[i] = v
}

func (o *Object) AttrNames() []string {
	if !o.IsArray() {
		return o.props.names()
	}
	out := make([]string, 0, len(o.array)+o.props.len())
	for i := range o.array {
		out = append(out, fmt.Sprintf("%d", i))
	}
	return append(out, o.props.names()...)
}

func (o *Object) DeleteAttr(name string) bool {
	if o.IsArray() {
		if i, ok := arrayIndex(name); ok && i < len(o.array) {
			o.array[i] = Undef
			return true
		}
	}
	return o.props.delete(name)
}

// Index implements Indexable for arrays; non-array objects index via Attr
// with the stringified key, matching the language's dual object/array
// property-access syntax.
func (o *Object) Index(i int) (Value, error) {
	if i < 0 || i >= len(o.array) {
		return Undef, nil
	}
	return o.array[i], nil
}

func (o *Object) SetIndex(i int, v Value) error {
	if o.frozen {
		return &TypeError{Msg: "cannot assign to a frozen array"}
	}
	o.setIndexGrow(i, v)
	return nil
}

func (o *Object) Len() int {
	if o.IsArray() {
		return len(o.array)
	}
	return o.props.len()
}

// Freeze marks o immutable, backing Object.freeze (spec §4.5).
func (o *Object) Freeze() { o.frozen = true }
func (o *Object) Frozen() bool { return o.frozen }

// Proto returns o's prototype link, or nil at the top of the chain.
func (o *Object) Proto() *Object { return o.proto }

func (o *Object) SetProto(p *Object) { o.proto = p }

// Elements exposes the dense backing array directly; callers must not
// retain it across calls that might reallocate it (setLength/setIndexGrow).
func (o *Object) Elements() []Value { return o.array }

func (o *Object) Iterate() Iterator {
	if o.IsArray() {
		return &arrayIterator{o: o}
	}
	return &propsIterator{names: o.AttrNames(), obj: o}
}

type arrayIterator struct {
	o *Object
	i int
}

func (it *arrayIterator) Next() (Value, bool) {
	if it.i >= len(it.o.array) {
		return Undef, false
	}
	v := it.o.array[it.i]
	it.i++
	return v, true
}
func (it *arrayIterator) Done() {}

type propsIterator struct {
	names []string
	obj   *Object
	i     int
}

func (it *propsIterator) Next() (Value, bool) {
	if it.i >= len(it.names) {
		return Undef, false
	}
	v := String(it.names[it.i])
	it.i++
	return v, true
}
func (it *propsIterator) Done() {}

func arrayIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	n := 0
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if fmt.Sprintf("%d", n) != name {
		return 0, false // rejects leading zeros, e.g. "01"
	}
	return n, true
}
