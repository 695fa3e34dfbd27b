package compiler

import (
	"fmt"
	"io"
)

// Disassemble prints fn's bytecode as pseudo-assembly to w, one
// instruction per line, recursing into nested function literals. Grounded
// on the teacher's asm.go pretty-printer.
func Disassemble(w io.Writer, fn *Funcode) {
	fmt.Fprintf(w, "function %s (%d params, %d locals, max stack %d)\n",
		fn.Name, fn.NumParams, fn.NumLocals, fn.MaxStack)
	pc := 0
	for pc < len(fn.Code) {
		pc = disasmOne(w, fn, pc)
	}
	for _, e := range fn.Exceptions {
		fmt.Fprintf(w, "  exception [%d,%d) catch=%d finally=%d depth=%d\n",
			e.StartPC, e.EndPC, e.CatchPC, e.FinallyPC, e.StackDepth)
	}
	for _, nested := range fn.Nested {
		Disassemble(w, nested)
	}
}

func disasmOne(w io.Writer, fn *Funcode, pc int) int {
	start := pc
	op := Opcode(fn.Code[pc])
	pc++
	if op < OpcodeArgMin {
		fmt.Fprintf(w, "%6d  %s\n", start, op)
		return pc
	}
	if isJump(op) {
		arg, next := decodeJumpArg(fn.Code, pc)
		fmt.Fprintf(w, "%6d  %-14s -> %d\n", start, op, arg)
		return next
	}
	arg, next := decodeUint32(fn.Code, pc)
	fmt.Fprintf(w, "%6d  %-14s %d\n", start, op, arg)
	return next
}
