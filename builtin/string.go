package builtin

import (
	"math"
	"strings"

	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

// installString wires String.prototype's methods (spec §4.5: charAt/
// charCodeAt/indexOf/lastIndexOf/substring/slice/split/toLowerCase/
// toUpperCase/trim/concat/repeat/startsWith/endsWith/includes/replace).
func installString(th *machine.Thread, p *Prototypes) {
	set := func(name string, fn func(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error)) {
		p.String.SetAttr(name, method(name, fn))
	}
	set("charAt", strCharAt)
	set("charCodeAt", strCharCodeAt)
	set("indexOf", strIndexOf)
	set("lastIndexOf", strLastIndexOf)
	set("substring", strSubstring)
	set("slice", strSlice)
	set("split", strSplit)
	set("toLowerCase", strToLowerCase)
	set("toUpperCase", strToUpperCase)
	set("trim", strTrim)
	set("concat", strConcat)
	set("repeat", strRepeat)
	set("startsWith", strStartsWith)
	set("endsWith", strEndsWith)
	set("includes", strIncludes)
	set("replace", strReplace)
	set("toString", strToString)
}

func asRunes(this value.Value) []rune {
	s, ok := this.(value.String)
	if !ok {
		s = value.String(this.String())
	}
	return []rune(string(s))
}

func strCharAt(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	r := asRunes(this)
	i := toInt(arg(args, 0))
	if i < 0 || i >= len(r) {
		return value.String(""), nil
	}
	return value.String(string(r[i])), nil
}

func strCharCodeAt(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	r := asRunes(this)
	i := toInt(arg(args, 0))
	if i < 0 || i >= len(r) {
		return value.Number(math.NaN()), nil
	}
	return value.Number(float64(r[i])), nil
}

func strIndexOf(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	s := this.String()
	sub := arg(args, 0).String()
	return value.Number(runeIndex(s, strings.Index(s, sub))), nil
}

func strLastIndexOf(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	s := this.String()
	sub := arg(args, 0).String()
	return value.Number(runeIndex(s, strings.LastIndex(s, sub))), nil
}

// runeIndex converts a byte offset (as strings.Index returns) to a rune
// offset, since the language's string indices are character positions.
func runeIndex(s string, byteIdx int) int {
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(s[:byteIdx]))
}

func strSubstring(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	r := asRunes(this)
	n := len(r)
	start := clamp(toInt(arg(args, 0)), 0, n)
	end := n
	if len(args) > 1 {
		end = clamp(toInt(args[1]), 0, n)
	}
	if start > end {
		start, end = end, start
	}
	return value.String(string(r[start:end])), nil
}

func strSlice(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	r := asRunes(this)
	start, end := sliceRange(len(r), args)
	return value.String(string(r[start:end])), nil
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

func strSplit(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	s := this.String()
	if len(args) == 0 {
		return value.NewArray(th.ArrayProto, []value.Value{value.String(s)}), nil
	}
	sep := args[0].String()
	var parts []string
	if sep == "" {
		for _, r := range s {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(s, sep)
	}
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = value.String(p)
	}
	return value.NewArray(th.ArrayProto, elems), nil
}

func strToLowerCase(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.String(strings.ToLower(this.String())), nil
}

func strToUpperCase(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.String(strings.ToUpper(this.String())), nil
}

func strTrim(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.String(strings.TrimSpace(this.String())), nil
}

func strConcat(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	var b strings.Builder
	b.WriteString(this.String())
	for _, a := range args {
		b.WriteString(a.String())
	}
	return value.String(b.String()), nil
}

func strRepeat(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	n := toInt(arg(args, 0))
	if n < 0 {
		return value.Undef, typeError("Invalid count value: %d", n)
	}
	return value.String(strings.Repeat(this.String(), n)), nil
}

func strStartsWith(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.Bool(strings.HasPrefix(this.String(), arg(args, 0).String())), nil
}

func strEndsWith(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.Bool(strings.HasSuffix(this.String(), arg(args, 0).String())), nil
}

func strIncludes(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.Bool(strings.Contains(this.String(), arg(args, 0).String())), nil
}

// strReplace replaces the first occurrence only. Both arguments are
// converted to strings: a RegExp search argument is searched for as the
// text of its string form, not matched as a pattern, and the replacement
// is inserted literally (no `$1`-style substitution).
func strReplace(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	s := this.String()
	old := arg(args, 0).String()
	repl := arg(args, 1).String()
	i := strings.Index(s, old)
	if i < 0 {
		return value.String(s), nil
	}
	return value.String(s[:i] + repl + s[i+len(old):]), nil
}

func strToString(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	return value.String(this.String()), nil
}
