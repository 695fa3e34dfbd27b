package machine

import (
	"fmt"
	"math"

	"github.com/duskvm/duskvm/lang/compiler"
	"github.com/duskvm/duskvm/lang/value"
)

// unwindKind distinguishes which disposition is waiting to resume once a
// finally body (reached via a plain PC fallthrough, or via an explicit
// jump when the try body itself raised the disposition) finishes running.
type unwindKind int

const (
	unwindNone unwindKind = iota
	unwindReturn
	unwindThrow
)

type unwind struct {
	kind unwindKind
	val  value.Value

	// fromPC is the return/throw instruction that started this disposition;
	// excludeEnd, once set, restricts the next lookup to entries enclosing
	// the last one handled (EndPC greater than excludeEnd), so each hop
	// through nested finally blocks walks strictly outward.
	fromPC     int
	excludeEnd int
}

// ThrownValue wraps a script-level thrown value that escaped every frame
// on the call stack without being caught, surfacing to the embedder (spec
// §4.3.2). It implements error so it can travel through ordinary Go error
// returns across nested th.Call invocations; the machine detects and
// re-enters its own exception-table search whenever a nested call returns
// one, rather than using panic/recover to cross frames.
type ThrownValue struct {
	Val value.Value
}

func (t *ThrownValue) Error() string { return "uncaught exception: " + t.Val.String() }

// run executes fr's bytecode to completion: a return, an uncaught throw
// (*ThrownValue), or a budget violation (*BudgetError, never catchable by
// script code).
func (th *Thread) run(fr *frame) (value.Value, error) {
	code := fr.closure.Funcode.Code
	for {
		if err := th.stepBudget(); err != nil {
			return value.Undef, err
		}
		instrPC := fr.pc
		op := compiler.Opcode(code[fr.pc])
		fr.pc++

		if op < compiler.OpcodeArgMin {
			v, done, err := th.execSimple(fr, op, instrPC)
			if done {
				return v, err
			}
			continue
		}

		var arg uint32
		if jumpOpcodes[op] {
			arg, fr.pc = decodeJumpArg(code, fr.pc)
		} else {
			arg, fr.pc = decodeVarArg(code, fr.pc)
		}

		v, done, err := th.execArg(fr, op, arg, instrPC)
		if done {
			return v, err
		}
	}
}

func (th *Thread) stepBudget() error {
	th.steps++
	if th.steps%th.pollInterval() == 0 {
		return th.checkBudget()
	}
	return nil
}

// jumpOpcodes mirrors the compiler's own jump set: these opcodes carry a
// fixed 4-byte absolute bytecode address instead of a varint operand.
var jumpOpcodes = map[compiler.Opcode]bool{
	compiler.GOTO: true, compiler.IF_TRUE: true, compiler.IF_FALSE: true,
	compiler.GOSUB: true, compiler.FOR_OF_NEXT: true,
}

func decodeVarArg(code []byte, pc int) (uint32, int) {
	var arg uint32
	s := uint(0)
	for {
		b := code[pc]
		pc++
		arg |= uint32(b&0x7f) << s
		if b < 0x80 {
			break
		}
		s += 7
	}
	return arg, pc
}

func decodeJumpArg(code []byte, pc int) (uint32, int) {
	x := uint32(code[pc]) | uint32(code[pc+1])<<8 | uint32(code[pc+2])<<16 | uint32(code[pc+3])<<24
	return x, pc + 4
}

// execSimple handles the zero-operand opcode family. Returns done=true
// with the frame's result/error when execution of fr is over.
func (th *Thread) execSimple(fr *frame, op compiler.Opcode, pc int) (value.Value, bool, error) {
	switch op {
	case compiler.NOP:
	case compiler.PUSH_I0:
		fr.push(value.Number(0))
	case compiler.PUSH_I1:
		fr.push(value.Number(1))
	case compiler.PUSH_TRUE:
		fr.push(value.True)
	case compiler.PUSH_FALSE:
		fr.push(value.False)
	case compiler.PUSH_NULL:
		fr.push(value.NullValue)
	case compiler.PUSH_UNDEF:
		fr.push(value.Undef)
	case compiler.DROP:
		fr.pop()
	case compiler.DUP:
		fr.dup()
	case compiler.GET_LOC0, compiler.GET_LOC1, compiler.GET_LOC2, compiler.GET_LOC3:
		fr.push(fr.getLocal(int(op - compiler.GET_LOC0)))
	case compiler.PUT_LOC0, compiler.PUT_LOC1, compiler.PUT_LOC2, compiler.PUT_LOC3:
		fr.setLocal(int(op-compiler.PUT_LOC0), fr.pop())
	case compiler.RETURN:
		return th.doReturn(fr, fr.pop(), pc)
	case compiler.RETURN_UNDEF:
		return th.doReturn(fr, value.Undef, pc)
	case compiler.THROW:
		return th.doThrow(fr, fr.pop(), pc)
	case compiler.RET:
		return th.doRet(fr)
	case compiler.FOR_IN_START:
		v := fr.pop()
		fr.iters = append(fr.iters, namesIterator(v))
	case compiler.FOR_OF_START:
		v := fr.pop()
		it, err := iterate(v)
		if err != nil {
			return th.doThrow(fr, errToValue(err), pc)
		}
		fr.iters = append(fr.iters, it)
	case compiler.ITER_POP:
		fr.iters = fr.iters[:len(fr.iters)-1]
	case compiler.ADD:
		a, b := fr.pop2()
		fr.push(add(a, b))
	case compiler.SUB:
		fr.binaryNum(func(a, b float64) float64 { return a - b })
	case compiler.MUL:
		fr.binaryNum(func(a, b float64) float64 { return a * b })
	case compiler.DIV:
		fr.binaryNum(func(a, b float64) float64 { return a / b })
	case compiler.MOD:
		fr.binaryNum(math.Mod)
	case compiler.POW:
		fr.binaryNum(math.Pow)
	case compiler.NEG:
		fr.push(value.Number(-toNumber(fr.pop())))
	case compiler.UPLUS:
		fr.push(value.Number(toNumber(fr.pop())))
	case compiler.INC:
		fr.push(value.Number(toNumber(fr.pop()) + 1))
	case compiler.DEC:
		fr.push(value.Number(toNumber(fr.pop()) - 1))
	case compiler.SHL:
		fr.binaryInt32(func(a, b int32) int32 { return a << (uint32(b) & 31) })
	case compiler.SAR:
		fr.binaryInt32(func(a, b int32) int32 { return a >> (uint32(b) & 31) })
	case compiler.SHR:
		a, b := fr.pop2()
		fr.push(value.Number(float64(uint32(toInt32(a)) >> (uint32(toInt32(b)) & 31))))
	case compiler.BAND:
		fr.binaryInt32(func(a, b int32) int32 { return a & b })
	case compiler.BOR:
		fr.binaryInt32(func(a, b int32) int32 { return a | b })
	case compiler.BXOR:
		fr.binaryInt32(func(a, b int32) int32 { return a ^ b })
	case compiler.BNOT:
		fr.push(value.Number(float64(^toInt32(fr.pop()))))
	case compiler.LT:
		fr.compare(func(c int) bool { return c < 0 })
	case compiler.LTE:
		fr.compare(func(c int) bool { return c <= 0 })
	case compiler.GT:
		fr.compare(func(c int) bool { return c > 0 })
	case compiler.GTE:
		fr.compare(func(c int) bool { return c >= 0 })
	case compiler.EQ:
		a, b := fr.pop2()
		fr.push(value.Bool(looseEquals(a, b)))
	case compiler.NEQ:
		a, b := fr.pop2()
		fr.push(value.Bool(!looseEquals(a, b)))
	case compiler.STRICT_EQ:
		a, b := fr.pop2()
		fr.push(value.Bool(strictEquals(a, b)))
	case compiler.STRICT_NEQ:
		a, b := fr.pop2()
		fr.push(value.Bool(!strictEquals(a, b)))
	case compiler.LNOT:
		fr.push(value.Bool(!fr.pop().Truth()))
	case compiler.TYPEOF:
		fr.push(value.String(fr.pop().Type()))
	case compiler.DELETE:
		key, obj := fr.pop(), fr.pop()
		fr.push(value.Bool(deleteProp(obj, key)))
	case compiler.INSTANCEOF:
		b, a := fr.pop(), fr.pop()
		ok, err := instanceOf(th, a, b)
		if err != nil {
			return th.doThrow(fr, errToValue(err), pc)
		}
		fr.push(value.Bool(ok))
	case compiler.IN_OP:
		b, a := fr.pop(), fr.pop()
		fr.push(value.Bool(hasProp(b, a)))
	case compiler.NEW_OBJECT:
		if err := th.charge(64); err != nil {
			return value.Undef, true, err
		}
		fr.push(value.NewObject(th.ObjectProto))
	case compiler.PUSH_THIS:
		fr.push(fr.this)
	case compiler.ARGUMENTS:
		fr.push(value.NewArray(th.ArrayProto, append([]value.Value(nil), fr.locals[:fr.closure.Funcode.NumParams]...)))
	case compiler.NEW_TARGET:
		fr.push(value.Undef)
	case compiler.SET_PROTO:
		proto, obj := fr.pop(), fr.pop()
		if o, ok := obj.(*value.Object); ok {
			if p, ok := proto.(*value.Object); ok {
				o.SetProto(p)
			}
		}
		fr.push(obj)
	default:
		return value.Undef, true, fmt.Errorf("machine: unhandled opcode %s", op)
	}
	return value.Undef, false, nil
}

// execArg handles the opcode family that carries an immediate operand.
func (th *Thread) execArg(fr *frame, op compiler.Opcode, arg uint32, pc int) (value.Value, bool, error) {
	switch op {
	case compiler.PUSH_CONST:
		fr.push(fr.closure.Funcode.Module.Constants[arg])
	case compiler.GET_LOC:
		fr.push(fr.getLocal(int(arg)))
	case compiler.PUT_LOC:
		fr.setLocal(int(arg), fr.pop())
	case compiler.GET_VAR_REF:
		fr.push(th.freeVarCell(fr, arg).Get())
	case compiler.PUT_VAR_REF:
		th.freeVarCell(fr, arg).Set(fr.pop())
	case compiler.GET_GLOBAL:
		name := string(fr.closure.Funcode.Module.Constants[arg].(value.String))
		v, err := th.Globals.Attr(name)
		if err != nil {
			return th.doThrow(fr, errToValue(err), pc)
		}
		if _, isUndef := v.(value.Undefined); isUndef {
			return th.doThrow(fr, value.String("ReferenceError: "+name+" is not defined"), pc)
		}
		fr.push(v)
	case compiler.PUT_GLOBAL:
		name := string(fr.closure.Funcode.Module.Constants[arg].(value.String))
		th.Globals.SetAttr(name, fr.pop())
	case compiler.GET_FIELD:
		name := string(fr.closure.Funcode.Module.Constants[arg].(value.String))
		obj := fr.pop()
		v, err := getProp(th, obj, name)
		if err != nil {
			return th.doThrow(fr, errToValue(err), pc)
		}
		fr.push(v)
	case compiler.PUT_FIELD, compiler.DEFINE_FIELD:
		name := string(fr.closure.Funcode.Module.Constants[arg].(value.String))
		v, obj := fr.pop(), fr.pop()
		if err := setProp(obj, name, v); err != nil {
			return th.doThrow(fr, errToValue(err), pc)
		}
	case compiler.GET_ARRAY_EL:
		idx, obj := fr.pop(), fr.pop()
		v, err := getIndex(th, obj, idx)
		if err != nil {
			return th.doThrow(fr, errToValue(err), pc)
		}
		fr.push(v)
	case compiler.PUT_ARRAY_EL:
		v, idx, obj := fr.pop(), fr.pop(), fr.pop()
		if err := setIndex(obj, idx, v); err != nil {
			return th.doThrow(fr, errToValue(err), pc)
		}
	case compiler.GET_LENGTH:
		v, err := getProp(th, fr.pop(), "length")
		if err != nil {
			return th.doThrow(fr, errToValue(err), pc)
		}
		fr.push(v)
	case compiler.GOTO:
		fr.pc = int(arg)
	case compiler.IF_TRUE:
		if fr.pop().Truth() {
			fr.pc = int(arg)
		}
	case compiler.IF_FALSE:
		if !fr.pop().Truth() {
			fr.pc = int(arg)
		}
	case compiler.GOSUB:
		fr.gosubStack = append(fr.gosubStack, fr.pc)
		fr.pc = int(arg)
	case compiler.CALL, compiler.CALL_CTOR:
		return th.doCall(fr, op, int(arg), pc)
	case compiler.CALL_METHOD:
		return th.doMethodCall(fr, int(arg), pc)
	case compiler.FOR_OF_NEXT:
		it := fr.iters[len(fr.iters)-1]
		v, ok := it.Next()
		if !ok {
			fr.pc = int(arg)
			return value.Undef, false, nil
		}
		fr.push(v)
	case compiler.ARRAY_FROM:
		n := int(arg)
		if err := th.charge(int64(16 * (n + 1))); err != nil {
			return value.Undef, true, err
		}
		elems := make([]value.Value, n)
		copy(elems, fr.stack[len(fr.stack)-n:])
		fr.stack = fr.stack[:len(fr.stack)-n]
		fr.push(value.NewArray(th.ArrayProto, elems))
	case compiler.FCLOSURE:
		if err := th.charge(32); err != nil {
			return value.Undef, true, err
		}
		nested := fr.closure.Funcode.Nested[arg]
		cl := &Closure{Funcode: nested, FreeVars: make([]*value.Cell, len(nested.FreeVars))}
		for i, fv := range nested.FreeVars {
			if fv.Outer {
				cl.FreeVars[i] = fr.closure.FreeVars[fv.Index]
			} else {
				cl.FreeVars[i] = fr.cellFor(fv.Index)
			}
		}
		fr.push(cl)
	case compiler.REGEXP:
		re := fr.closure.Funcode.Module.Regexps[arg]
		prog, err := th.compileRegexp(re)
		if err != nil {
			return th.doThrow(fr, value.String("SyntaxError: "+err.Error()), pc)
		}
		if err := th.charge(64); err != nil {
			return value.Undef, true, err
		}
		fr.push(&value.Regexp{Prog: prog, Source: re.Pattern, FlagStr: re.Flags})
	default:
		// Opcodes at or above OpcodeArgMin that take no operand (their
		// encoded zero operand is already skipped) run in execSimple.
		return th.execSimple(fr, op, pc)
	}
	return value.Undef, false, nil
}

const freeVarBit = 1 << 30

func (th *Thread) freeVarCell(fr *frame, arg uint32) *value.Cell {
	if arg&freeVarBit != 0 {
		return fr.closure.FreeVars[arg&^freeVarBit]
	}
	return fr.cellFor(int(arg))
}

func (th *Thread) doCall(fr *frame, op compiler.Opcode, n int, pc int) (value.Value, bool, error) {
	args := make([]value.Value, n)
	copy(args, fr.stack[len(fr.stack)-n:])
	fr.stack = fr.stack[:len(fr.stack)-n]
	fn := fr.pop()

	this := value.Value(value.Undef)
	if op == compiler.CALL_CTOR {
		switch f := fn.(type) {
		case *Closure:
			this = value.NewObject(th.protoFor(f))
		case *Builtin:
			if f.Proto == nil {
				return th.doThrow(fr, value.String("TypeError: "+f.name+" is not a constructor"), pc)
			}
			this = value.NewObject(f.Proto)
		default:
			return th.doThrow(fr, value.String("TypeError: not a constructor"), pc)
		}
	}

	result, err := th.Call(fn, this, args)
	if err != nil {
		if tv, ok := err.(*ThrownValue); ok {
			return th.doThrow(fr, tv.Val, pc)
		}
		if _, ok := err.(*BudgetError); ok {
			return value.Undef, true, err
		}
		return th.doThrow(fr, errToValue(err), pc)
	}
	if op == compiler.CALL_CTOR {
		if _, isObj := result.(*value.Object); isObj {
			fr.push(result)
		} else {
			fr.push(this)
		}
		return value.Undef, false, nil
	}
	fr.push(result)
	return value.Undef, false, nil
}

func (th *Thread) doMethodCall(fr *frame, n int, pc int) (value.Value, bool, error) {
	args := make([]value.Value, n)
	copy(args, fr.stack[len(fr.stack)-n:])
	fr.stack = fr.stack[:len(fr.stack)-n]
	fn := fr.pop()
	this := fr.pop()

	result, err := th.Call(fn, this, args)
	if err != nil {
		if tv, ok := err.(*ThrownValue); ok {
			return th.doThrow(fr, tv.Val, pc)
		}
		if _, ok := err.(*BudgetError); ok {
			return value.Undef, true, err
		}
		return th.doThrow(fr, errToValue(err), pc)
	}
	fr.push(result)
	return value.Undef, false, nil
}

// doReturn runs any finally blocks enclosing pc before actually returning,
// per the spec's "finally runs under every disposition" invariant.
func (th *Thread) doReturn(fr *frame, v value.Value, pc int) (value.Value, bool, error) {
	if e := innermostFinally(fr.closure.Funcode.Exceptions, pc, -1); e != nil {
		fr.pendingUnwind = &unwind{kind: unwindReturn, val: v, fromPC: pc, excludeEnd: -1}
		fr.pc = e.FinallyPC
		return value.Undef, false, nil
	}
	return v, true, nil
}

func (th *Thread) doThrow(fr *frame, v value.Value, pc int) (value.Value, bool, error) {
	entries := fr.closure.Funcode.Exceptions
	if e := innermostCovering(entries, pc, -1); e != nil {
		if e.CatchPC >= 0 {
			fr.stack = fr.stack[:min(len(fr.stack), e.StackDepth)]
			fr.push(v)
			fr.pc = e.CatchPC
			return value.Undef, false, nil
		}
		fr.pendingUnwind = &unwind{kind: unwindThrow, val: v, fromPC: pc, excludeEnd: -1}
		fr.stack = fr.stack[:min(len(fr.stack), e.StackDepth)]
		fr.pc = e.FinallyPC
		return value.Undef, false, nil
	}
	return value.Undef, true, &ThrownValue{Val: v}
}

// doRet resolves a RET instruction: a plain subroutine return if GOSUB
// pushed one, resumption of a pending return/throw disposition once its
// finally body finishes, or (the common case: falling off the end of a
// finally reached by ordinary linear execution, nothing pending) a no-op
// that just continues to the next instruction.
func (th *Thread) doRet(fr *frame) (value.Value, bool, error) {
	if n := len(fr.gosubStack); n > 0 {
		fr.pc = fr.gosubStack[n-1]
		fr.gosubStack = fr.gosubStack[:n-1]
		return value.Undef, false, nil
	}
	if fr.pendingUnwind == nil {
		return value.Undef, false, nil
	}
	p := fr.pendingUnwind
	fr.pendingUnwind = nil
	entries := fr.closure.Funcode.Exceptions

	switch p.kind {
	case unwindReturn:
		if e := innermostFinally(entries, p.fromPC, p.excludeEnd); e != nil {
			p.excludeEnd = e.EndPC
			fr.pendingUnwind = p
			fr.pc = e.FinallyPC
			return value.Undef, false, nil
		}
		return p.val, true, nil
	case unwindThrow:
		if e := innermostCovering(entries, p.fromPC, p.excludeEnd); e != nil {
			if e.CatchPC >= 0 {
				fr.stack = fr.stack[:min(len(fr.stack), e.StackDepth)]
				fr.push(p.val)
				fr.pc = e.CatchPC
				return value.Undef, false, nil
			}
			p.excludeEnd = e.EndPC
			fr.pendingUnwind = p
			fr.stack = fr.stack[:min(len(fr.stack), e.StackDepth)]
			fr.pc = e.FinallyPC
			return value.Undef, false, nil
		}
		return value.Undef, true, &ThrownValue{Val: p.val}
	}
	return value.Undef, false, nil
}
