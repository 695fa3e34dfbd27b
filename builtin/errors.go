package builtin

import (
	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

// installErrors wires Error and its TypeError/RangeError/ReferenceError/
// SyntaxError subtypes (spec §4.5) as `new`-constructible natives, using
// Builtin.Proto (machine.NewCtor) the same way a Closure constructor gets
// an instance linked to protoFor(cl).
func installErrors(th *machine.Thread, p *Prototypes) {
	p.Error.SetAttr("name", value.String("Error"))
	p.Error.SetAttr("message", value.String(""))
	p.Error.SetAttr("toString", method("toString", errToString))

	th.Globals.SetAttr("Error", errCtor(p.Error, "Error"))

	for _, name := range []string{"TypeError", "RangeError", "ReferenceError", "SyntaxError"} {
		proto := value.NewObject(p.Error)
		proto.SetAttr("name", value.String(name))
		th.Globals.SetAttr(name, errCtor(proto, name))
	}
}

func errCtor(proto *value.Object, name string) *machine.Builtin {
	return machine.NewCtor(name, proto, func(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
		o, ok := this.(*value.Object)
		if !ok {
			o = value.NewObject(proto)
		}
		msg := ""
		if len(args) > 0 {
			msg = args[0].String()
		}
		o.SetAttr("message", value.String(msg))
		return o, nil
	})
}

func errToString(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	o, ok := this.(*value.Object)
	if !ok {
		return value.String(this.String()), nil
	}
	name := "Error"
	if n, err := o.Attr("name"); err == nil {
		if s, ok := n.(value.String); ok && s != "" {
			name = string(s)
		}
	}
	msg := ""
	if m, err := o.Attr("message"); err == nil {
		msg = m.String()
	}
	if msg == "" {
		return value.String(name), nil
	}
	return value.String(name + ": " + msg), nil
}
