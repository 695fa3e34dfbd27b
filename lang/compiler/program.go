package compiler

import (
	"github.com/duskvm/duskvm/lang/token"
	"github.com/duskvm/duskvm/lang/value"
)

// Module is the output of compiling one source file or eval chunk: a
// toplevel Funcode plus the constant pool its bytecode indexes into (spec
// §4.3.2, "Compiled representation").
type Module struct {
	Name      string
	Toplevel  *Funcode
	Constants []value.Value
	Regexps   []*CompiledRegexp
}

// CompiledRegexp is a regex literal's source, compiled lazily by the
// regexp/syntax package the first time it executes; held here so the same
// literal compiles once even if the enclosing function runs many times.
type CompiledRegexp struct {
	Pattern string
	Flags   string
}

// Funcode is one function's compiled body: its bytecode, the exception
// table guarding it, and the bookkeeping the machine needs to build a call
// frame (spec §4.3.2). Grounded on the teacher's lang/machine/function.go
// (Funcode/Module split) and lang/compiler/opcode.go (stackEffect sizing).
type Funcode struct {
	Name        string
	Pos         token.Pos
	NumParams   int
	HasVarargs  bool
	NumLocals   int // locals + temporaries; sizes the frame's register file
	MaxStack    int // high-water mark, computed during emission
	Code        []byte
	Exceptions  []ExceptionEntry
	FreeVars    []FreeVar // names captured from the enclosing function
	Nested      []*Funcode
	Source      string // for disassembly and stack traces
	Positions   *SourceMap
	Module      *Module
}

// FreeVar describes one upvalue a nested function captures from its
// enclosing scope: Index is the enclosing function's local-cell slot
// (if Outer is false) or its own freevar slot (if Outer is true, i.e. the
// capture is itself inherited from a further-enclosing scope).
type FreeVar struct {
	Name  string
	Index int
	Outer bool
}

// ExceptionEntry guards a PC range with an optional catch and/or finally
// target, generalizing the teacher's deferred-execution bookkeeping into an
// explicit exception table (spec §4.3.2 "Exception handling").
//
//   - StartPC, EndPC: the guarded range [StartPC, EndPC).
//   - CatchPC: where to resume with the thrown value pushed, or -1.
//   - FinallyPC: the start of the finally body, or -1. Fall-through reaches
//     it in line; a return or throw leaving the guarded range jumps to it
//     with the pending disposition recorded for RET to resume.
//   - StackDepth: the operand stack depth to restore to before resuming.
type ExceptionEntry struct {
	StartPC   int
	EndPC     int
	CatchPC   int
	FinallyPC int
	StackDepth int
}

// SourceMap associates bytecode offsets with source positions for error
// reporting and stack traces (spec §4.3.2). Stored as parallel sorted
// slices rather than a map for compactness; PosFor does a binary search.
type SourceMap struct {
	pcs  []int
	poss []token.Pos
}

func (sm *SourceMap) add(pc int, pos token.Pos) {
	if len(sm.pcs) > 0 && sm.pcs[len(sm.pcs)-1] == pc {
		sm.poss[len(sm.poss)-1] = pos
		return
	}
	sm.pcs = append(sm.pcs, pc)
	sm.poss = append(sm.poss, pos)
}

// PosFor returns the source position most recently recorded at or before pc.
func (sm *SourceMap) PosFor(pc int) token.Pos {
	lo, hi := 0, len(sm.pcs)
	for lo < hi {
		mid := (lo + hi) / 2
		if sm.pcs[mid] <= pc {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return token.NoPos
	}
	return sm.poss[lo-1]
}
