package compiler

import (
	"github.com/duskvm/duskvm/lang/token"
	"github.com/duskvm/duskvm/lang/value"
)

// emit appends one instruction to fs's function code and returns its PC,
// updating the running stack high-water mark by delta (positive for
// instructions that push, negative for ones that pop).
func (c *compiler) emit(fs *funcState, op Opcode, arg uint32, delta int, pos token.Pos) int {
	pc := len(fs.fn.Code)
	fs.fn.Code = encodeInsn(fs.fn.Code, op, arg)
	fs.fn.Positions.add(pc, pos)
	c.stackDepth += delta
	if c.stackDepth > fs.fn.MaxStack {
		fs.fn.MaxStack = c.stackDepth
	}
	if c.stackDepth < 0 {
		// Indicates a compiler bug (stack-effect table out of sync with
		// actual emission), not a user error; caught during development.
		panic("compiler: operand stack underflow")
	}
	return pc
}

func (c *compiler) emit0(fs *funcState, op Opcode, delta int, pos token.Pos) int {
	return c.emit(fs, op, 0, delta, pos)
}

// emitJump emits a jump instruction with a placeholder 4-byte operand and
// returns the PC of the operand (not the instruction) for later patching.
func (c *compiler) emitJump(fs *funcState, op Opcode, delta int, pos token.Pos) int {
	pc := c.emit(fs, op, 0xffffffff, delta, pos)
	return pc + 1
}

// patchJump backfills the 4-byte operand at operandPC with the current code
// position, an absolute bytecode address (matching the teacher's
// jump-displacement convention: blocks are addressed absolutely, not
// PC-relative).
func (c *compiler) patchJump(fs *funcState, operandPC int) {
	c.patchJumpTo(fs, operandPC, len(fs.fn.Code))
}

func (c *compiler) patchJumpTo(fs *funcState, operandPC, target int) {
	code := fs.fn.Code
	b := encodeJumpArg(nil, uint32(target))
	copy(code[operandPC:operandPC+4], b)
}

// emitGoto emits a jump to a PC that is already known (a backward jump to
// a loop header, typically), patching its offset immediately instead of
// deferring to a later patchJump call.
func (c *compiler) emitGoto(fs *funcState, op Opcode, target int, delta int, pos token.Pos) {
	operandPC := c.emitJump(fs, op, delta, pos)
	c.patchJumpTo(fs, operandPC, target)
}

// pushConst interns v in the module constant pool (deduplicating is not
// attempted; constants are cheap and pool growth is bounded by program
// size) and emits PUSH_CONST.
func (c *compiler) pushConst(fs *funcState, v value.Value, pos token.Pos) {
	idx := len(c.mod.Constants)
	c.mod.Constants = append(c.mod.Constants, v)
	c.emit(fs, PUSH_CONST, uint32(idx), 1, pos)
}
