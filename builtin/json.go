package builtin

import (
	"math"
	"sort"
	"strings"

	mjson "github.com/mcvoid/json"

	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

// installJSON wires the JSON namespace's parse/stringify (spec §4.5).
// Parsing is grounded on mcvoid/json's recursive-descent Value tree
// (parser.go's Parse/ParseString); stringify is hand-rolled since that
// package's own Value.String is explicitly documented there as "NOT valid
// JSON" and the package exposes no Marshal/stringify counterpart.
func installJSON(th *machine.Thread, p *Prototypes) {
	ns := value.NewObject(p.Object)
	ns.SetAttr("parse", method("parse", jsonParse))
	ns.SetAttr("stringify", method("stringify", jsonStringify))
	th.Globals.SetAttr("JSON", ns)
}

func jsonParse(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	src := arg(args, 0).String()
	v, err := mjson.ParseString(src)
	if err != nil {
		return value.Undef, &value.TypeError{Msg: "JSON.parse: " + err.Error()}
	}
	return fromJSON(th, v), nil
}

// fromJSON converts a parsed mcvoid/json.Value into the language's own
// value model. Object key order isn't preserved (AsObject returns a plain
// Go map): an object's keys are added in sorted order.
func fromJSON(th *machine.Thread, v *mjson.Value) value.Value {
	switch v.Type() {
	case mjson.Null:
		return value.NullValue
	case mjson.Boolean:
		b, _ := v.AsBoolean()
		return value.Bool(b)
	case mjson.Integer:
		n, _ := v.AsInteger()
		return value.Number(float64(n))
	case mjson.Number:
		n, _ := v.AsNumber()
		return value.Number(n)
	case mjson.String:
		s, _ := v.AsString()
		return value.String(s)
	case mjson.Array:
		elems, _ := v.AsArray()
		out := make([]value.Value, len(elems))
		for i, e := range elems {
			out[i] = fromJSON(th, e)
		}
		return value.NewArray(th.ArrayProto, out)
	case mjson.Object:
		m, _ := v.AsObject()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		o := value.NewObject(th.ObjectProto)
		for _, k := range keys {
			o.SetAttr(k, fromJSON(th, m[k]))
		}
		return o
	default:
		return value.Undef
	}
}

func jsonStringify(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	v := arg(args, 0)
	var b strings.Builder
	if !writeJSON(&b, v) {
		return value.Undef, nil
	}
	return value.String(b.String()), nil
}

// writeJSON serializes v per the language's JSON.stringify (spec §4.5),
// preserving own-property insertion order via AttrNames/Elements. Returns
// false when v has no JSON representation (undefined, function), matching
// JSON.stringify(undefined) === undefined.
func writeJSON(b *strings.Builder, v value.Value) bool {
	switch x := v.(type) {
	case value.Undefined:
		return false
	case value.Null:
		b.WriteString("null")
	case value.Boolean:
		if x {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case value.Number:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			b.WriteString("null")
		} else {
			b.WriteString(value.Number(f).String())
		}
	case value.String:
		writeJSONString(b, string(x))
	case *value.Object:
		if x.IsArray() {
			b.WriteByte('[')
			for i, e := range x.Elements() {
				if i > 0 {
					b.WriteByte(',')
				}
				if !writeJSON(b, e) {
					b.WriteString("null")
				}
			}
			b.WriteByte(']')
			return true
		}
		b.WriteByte('{')
		first := true
		for _, n := range x.AttrNames() {
			fv, _ := x.Attr(n)
			var vb strings.Builder
			if !writeJSON(&vb, fv) {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			writeJSONString(b, n)
			b.WriteByte(':')
			b.WriteString(vb.String())
		}
		b.WriteByte('}')
	default:
		return false
	}
	return true
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
