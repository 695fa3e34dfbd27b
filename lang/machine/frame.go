package machine

import (
	"github.com/duskvm/duskvm/lang/compiler"
	"github.com/duskvm/duskvm/lang/token"
	"github.com/duskvm/duskvm/lang/value"
)

// frame is one active call's register file: its operand stack, its local
// slots (each either a plain value.Value or, once captured, backed by a
// value.Cell), the instruction pointer and the `this` binding. Grounded on
// the teacher's lang/machine/frame.go.
type frame struct {
	closure *Closure
	locals  []value.Value // direct locals; cells[i] non-nil means locals[i] is stale and the cell is authoritative
	cells   []*value.Cell
	stack   []value.Value
	pc      int
	this    value.Value

	// pendingUnwind carries an in-flight disposition (return or throw)
	// across a jump into a finally block, so RET can resume it once the
	// finally body completes (spec §4.3.2).
	pendingUnwind *unwind

	// gosubStack holds return addresses for explicit GOSUB instructions.
	gosubStack []int

	// iters holds the active for-in/for-of iterators, innermost last.
	iters []value.Iterator
}

func newFrame(cl *Closure, this value.Value, args []value.Value) *frame {
	fr := &frame{
		closure: cl,
		locals:  make([]value.Value, cl.Funcode.NumLocals),
		cells:   make([]*value.Cell, cl.Funcode.NumLocals),
		stack:   make([]value.Value, 0, max(cl.Funcode.MaxStack, 8)),
		this:    this,
	}
	for i := range fr.locals {
		fr.locals[i] = value.Undef
	}
	n := cl.Funcode.NumParams
	for i := 0; i < n && i < len(args); i++ {
		fr.locals[i] = args[i]
	}
	if cl.Funcode.HasVarargs {
		rest := args
		if len(rest) > n {
			rest = rest[n:]
		} else {
			rest = nil
		}
		arr := make([]value.Value, len(rest))
		copy(arr, rest)
		fr.locals[n] = value.NewArray(nil, arr)
	}
	return fr
}

func (fr *frame) getLocal(i int) value.Value {
	if c := fr.cells[i]; c != nil {
		return c.Get()
	}
	return fr.locals[i]
}

func (fr *frame) setLocal(i int, v value.Value) {
	if c := fr.cells[i]; c != nil {
		c.Set(v)
		return
	}
	fr.locals[i] = v
}

// cellFor returns (creating if necessary) the heap cell backing local
// slot i, promoting it so both this frame and any closure capturing it
// observe the same box.
func (fr *frame) cellFor(i int) *value.Cell {
	if fr.cells[i] == nil {
		fr.cells[i] = value.NewCell(fr.locals[i])
	}
	return fr.cells[i]
}

func (fr *frame) push(v value.Value) { fr.stack = append(fr.stack, v) }

func (fr *frame) pop() value.Value {
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v
}

func (fr *frame) top() value.Value { return fr.stack[len(fr.stack)-1] }

func (fr *frame) dup() { fr.push(fr.top()) }

// pop2 pops the top two stack values, returning them in push order (the
// value pushed first, then the one pushed second) so callers read as
// `a, b := fr.pop2()` for a left-to-right binary operator a OP b.
func (fr *frame) pop2() (value.Value, value.Value) {
	b := fr.pop()
	a := fr.pop()
	return a, b
}

func (fr *frame) binaryNum(op func(a, b float64) float64) {
	a, b := fr.pop2()
	fr.push(value.Number(op(toNumber(a), toNumber(b))))
}

func (fr *frame) binaryInt32(op func(a, b int32) int32) {
	a, b := fr.pop2()
	fr.push(value.Number(float64(op(toInt32(a), toInt32(b)))))
}

func (fr *frame) compare(pred func(cmp int) bool) {
	a, b := fr.pop2()
	cmp, ok := compareValues(a, b)
	fr.push(value.Bool(ok && pred(cmp)))
}

// Position returns the current instruction's source position, for error
// reporting and stack traces.
func (fr *frame) Position() token.Pos {
	return fr.closure.Funcode.Positions.PosFor(fr.pc)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
