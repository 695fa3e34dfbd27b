package builtin

import (
	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
	"github.com/duskvm/duskvm/regexp/matcher"
	"github.com/duskvm/duskvm/regexp/syntax"
)

// installRegexp wires RegExp.prototype.test/exec and a `new RegExp(...)`
// native constructor (spec §6.3) onto p.RegExp, which it also records as
// th.RegExpProto, the prototype the machine uses for regexp values.
func installRegexp(th *machine.Thread, p *Prototypes) {
	th.RegExpProto = p.RegExp
	p.RegExp.SetAttr("test", method("test", reTest))
	p.RegExp.SetAttr("exec", method("exec", reExec))
	p.RegExp.SetAttr("toString", method("toString", reToString))

	th.Globals.SetAttr("RegExp", machine.NewCtor("RegExp", p.RegExp, reCtor))
}

func asRegexp(th *machine.Thread, this value.Value) (*value.Regexp, error) {
	re, ok := this.(*value.Regexp)
	if !ok {
		return nil, typeError("not a RegExp")
	}
	return re, nil
}

func reCtor(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	pattern, flags := "", ""
	switch v := arg(args, 0).(type) {
	case *value.Regexp:
		pattern, flags = v.Source, v.FlagStr
	case value.Undefined:
		pattern = ""
	default:
		pattern = toStr(v)
	}
	if f := arg(args, 1); f != value.Undef {
		flags = toStr(f)
	}
	prog, err := syntax.Compile(pattern, flags)
	if err != nil {
		return nil, &value.TypeError{Msg: "SyntaxError: " + err.Error()}
	}
	return &value.Regexp{Prog: prog, Source: pattern, FlagStr: flags}, nil
}

func reMatchFrom(th *machine.Thread, re *value.Regexp, s []rune, from int) (*matcher.Match, error) {
	m := matcher.New(re.Prog)
	m.StackLimit = th.RegexStackLimit
	m.PollInterval = th.RegexPollInterval
	m.TimeLimit = th.RegexTimeLimit
	m.Poll = th.RegexPoll
	return m.Find(s, from)
}

// reExecStart returns the index a test/exec call should start searching
// from: lastIndex under the `g`/`y` flags, 0 otherwise (spec §6.3), and
// whether the call must update this.lastIndex afterward.
func reExecStart(re *value.Regexp) (int, bool) {
	if re.Prog.Flags.Global || re.Prog.Flags.Sticky {
		return re.LastIndex, true
	}
	return 0, false
}

func reTest(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	re, err := asRegexp(th, this)
	if err != nil {
		return nil, err
	}
	s := []rune(toStr(arg(args, 0)))
	start, tracks := reExecStart(re)
	if start > len(s) {
		if tracks {
			re.LastIndex = 0
		}
		return value.False, nil
	}
	m, err := reMatchFrom(th, re, s, start)
	if err != nil {
		return nil, err
	}
	if m == nil {
		if tracks {
			re.LastIndex = 0
		}
		return value.False, nil
	}
	if tracks {
		re.LastIndex = m.Groups[0][1]
	}
	return value.True, nil
}

func reExec(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	re, err := asRegexp(th, this)
	if err != nil {
		return nil, err
	}
	s := []rune(toStr(arg(args, 0)))
	start, tracks := reExecStart(re)
	if start > len(s) {
		if tracks {
			re.LastIndex = 0
		}
		return value.NullValue, nil
	}
	m, err := reMatchFrom(th, re, s, start)
	if err != nil {
		return nil, err
	}
	if m == nil {
		if tracks {
			re.LastIndex = 0
		}
		return value.NullValue, nil
	}
	if tracks {
		re.LastIndex = m.Groups[0][1]
	}

	elems := make([]value.Value, len(m.Groups))
	for i, g := range m.Groups {
		if g[0] < 0 {
			elems[i] = value.Undef
			continue
		}
		elems[i] = value.String(string(s[g[0]:g[1]]))
	}
	result := value.NewArray(th.ArrayProto, elems)
	result.SetAttr("index", value.Number(m.Groups[0][0]))
	result.SetAttr("input", value.String(string(s)))
	if len(re.Prog.Names) > 0 {
		groups := value.NewObject(nil)
		for name, idx := range re.Prog.Names {
			if idx < len(elems) {
				groups.SetAttr(name, elems[idx])
			}
		}
		result.SetAttr("groups", groups)
	} else {
		result.SetAttr("groups", value.Undef)
	}
	return result, nil
}

func reToString(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	re, err := asRegexp(th, this)
	if err != nil {
		return nil, err
	}
	return value.String(re.String()), nil
}
