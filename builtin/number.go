package builtin

import (
	"math"
	"strconv"
	"strings"

	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

// installNumber wires Number.prototype.toFixed/toString and the Number
// static namespace's isNaN/isFinite/isInteger/parseInt/parseFloat (spec
// §4.5).
func installNumber(th *machine.Thread, p *Prototypes) {
	p.Number.SetAttr("toFixed", method("toFixed", numToFixed))
	p.Number.SetAttr("toString", method("toString", numToString))

	ns := value.NewObject(p.Object)
	ns.SetAttr("isNaN", method("isNaN", numIsNaN))
	ns.SetAttr("isFinite", method("isFinite", numIsFinite))
	ns.SetAttr("isInteger", method("isInteger", numIsInteger))
	ns.SetAttr("parseInt", method("parseInt", numParseInt))
	ns.SetAttr("parseFloat", method("parseFloat", numParseFloat))
	ns.SetAttr("MAX_SAFE_INTEGER", value.Number(1<<53-1))
	ns.SetAttr("MIN_SAFE_INTEGER", value.Number(-(1<<53 - 1)))
	ns.SetAttr("EPSILON", value.Number(math.Nextafter(1, 2)-1))
	ns.SetAttr("NaN", value.Number(math.NaN()))
	ns.SetAttr("POSITIVE_INFINITY", value.Number(math.Inf(1)))
	ns.SetAttr("NEGATIVE_INFINITY", value.Number(math.Inf(-1)))
	th.Globals.SetAttr("Number", ns)
}

func numToFixed(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	n := toNumber(this)
	digits := 0
	if len(args) > 0 {
		digits = toInt(args[0])
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return value.String(value.Number(n).String()), nil
	}
	return value.String(strconv.FormatFloat(n, 'f', digits, 64)), nil
}

func numToString(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	n := toNumber(this)
	radix := 10
	if len(args) > 0 {
		radix = toInt(args[0])
	}
	if radix == 10 {
		return value.String(value.Number(n).String()), nil
	}
	if !value.Number(n).IsInt() {
		return value.Undef, typeError("toString radix other than 10 requires an integer value")
	}
	return value.String(strconv.FormatInt(int64(n), radix)), nil
}

func numIsNaN(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	n, ok := arg(args, 0).(value.Number)
	return value.Bool(ok && math.IsNaN(float64(n))), nil
}

func numIsFinite(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	n, ok := arg(args, 0).(value.Number)
	return value.Bool(ok && !math.IsNaN(float64(n)) && !math.IsInf(float64(n), 0)), nil
}

func numIsInteger(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	n, ok := arg(args, 0).(value.Number)
	return value.Bool(ok && n.IsInt()), nil
}

func numParseInt(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	s := strings.TrimSpace(arg(args, 0).String())
	radix := 10
	if len(args) > 1 && toInt(args[1]) != 0 {
		radix = toInt(args[1])
	}
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) {
		_, err := strconv.ParseInt(s[:end+1], radix, 64)
		if err != nil {
			break
		}
		end++
	}
	if end == 0 {
		return value.Number(math.NaN()), nil
	}
	n, _ := strconv.ParseInt(s[:end], radix, 64)
	if neg {
		n = -n
	}
	return value.Number(float64(n)), nil
}

func numParseFloat(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
	s := strings.TrimSpace(arg(args, 0).String())
	end := len(s)
	for end > 0 {
		if _, err := strconv.ParseFloat(s[:end], 64); err == nil {
			break
		}
		end--
	}
	if end == 0 {
		return value.Number(math.NaN()), nil
	}
	f, _ := strconv.ParseFloat(s[:end], 64)
	return value.Number(f), nil
}
