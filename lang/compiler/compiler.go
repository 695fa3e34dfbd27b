package compiler

import (
	"fmt"

	"github.com/duskvm/duskvm/lang/scanner"
	"github.com/duskvm/duskvm/lang/token"
	"github.com/duskvm/duskvm/lang/value"
)

// compiler holds the entire one-pass compilation state: the scanner cursor,
// the current and lookahead tokens, and the function-state stack. Parsing
// and bytecode emission happen in the same walk (spec §4.2): there is no
// intermediate syntax tree for statements or expressions. Array literals
// (parseArrayLiteral, an explicit work stack) and member chains
// (parseMemberChain, a loop) nest without Go recursion; blocks and
// parenthesized expressions are parsed by recursive descent.
type compiler struct {
	sc   *scanner.Scanner
	fset *token.FileSet
	file *token.File

	tok token.Token
	val token.Value

	peeked    bool
	peekTok   token.Token
	peekVal   token.Value

	mod        *Module
	fs         *funcState
	stackDepth int

	errs []error
}

// Compile parses and compiles src (named name, for diagnostics and stack
// traces) into a Module ready for lang/machine to execute.
func Compile(fset *token.FileSet, name, src string) (*Module, error) {
	file := fset.AddFile(name, -1, len(src))
	c := &compiler{
		fset: fset,
		file: file,
		mod:  &Module{Name: name},
	}
	c.sc = scanner.New(file, src, c.handleError)
	c.next()

	top := &Funcode{Name: "<toplevel>", Source: src, Positions: &SourceMap{}, Module: c.mod}
	c.mod.Toplevel = top
	c.fs = newFuncState(nil, top)

	// The toplevel's completion value (what duskvm.Eval returns) is its last
	// top-level expression statement's value, if any. lastDropPC tracks the
	// DROP that statement emitted so it can be rewritten to a RETURN once
	// compilation finishes; DROP and RETURN are both encoded as the opcode
	// byte plus a one-byte zero operand and share the same one-value-pop
	// stack effect, so the swap needs no further bookkeeping. This only
	// tracks completion through the flat top-level statement list, not
	// through the dynamic control flow of a trailing if/while/block.
	lastDropPC := -1
	for c.tok != token.EOF {
		if c.tok == token.SEMI {
			c.next()
			continue
		}
		expr := isExprStmtStart(c.tok)
		c.parseStatement()
		if expr {
			lastDropPC = len(top.Code) - 2 // DROP's opcode byte, before its zero operand
		} else {
			lastDropPC = -1
		}
	}

	if lastDropPC >= 0 {
		top.Code[lastDropPC] = byte(RETURN)
	} else {
		c.emit0(c.fs, RETURN_UNDEF, 0, c.pos())
	}
	top.NumLocals = c.fs.numLocals

	if len(c.errs) > 0 {
		return nil, &CompileError{Errs: c.errs}
	}
	return c.mod, nil
}

// isExprStmtStart reports whether tok begins an expression statement (the
// default case of parseStatement), as opposed to a declaration or control
// statement whose completion value (if any) isn't just a popped expression.
func isExprStmtStart(tok token.Token) bool {
	switch tok {
	case token.LBRACE, token.VAR, token.FUNCTION, token.IF, token.WHILE, token.FOR,
		token.RETURN, token.BREAK, token.CONTINUE, token.THROW, token.TRY, token.SEMI, token.EOF:
		return false
	default:
		return true
	}
}

// CompileError aggregates every syntax/scope error found during a single
// compilation, mirroring the teacher's use of go/scanner.ErrorList to
// report every error found rather than bailing at the first one.
type CompileError struct {
	Errs []error
}

func (e *CompileError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errs[0], len(e.Errs)-1)
}

func (c *compiler) handleError(pos token.Position, msg string) {
	c.errs = append(c.errs, fmt.Errorf("%s: %s", pos, msg))
}

func (c *compiler) errorf(format string, args ...interface{}) {
	c.errs = append(c.errs, fmt.Errorf("%s: %s", c.file.Position(c.val.Pos), fmt.Sprintf(format, args...)))
}

func (c *compiler) pos() token.Pos { return c.val.Pos }

// next consumes the current token, pulling from the one-token lookahead
// buffer if parseMemberChain or similar callers already peeked.
func (c *compiler) next() {
	if c.peeked {
		c.tok, c.val = c.peekTok, c.peekVal
		c.peeked = false
		return
	}
	c.sc.RegexAllowed = c.regexAllowedHere()
	c.tok = c.sc.ScanNonComment(&c.val)
}

func (c *compiler) peek() token.Token {
	if !c.peeked {
		c.sc.RegexAllowed = c.regexAllowedHere()
		c.peekTok = c.sc.ScanNonComment(&c.peekVal)
		c.peeked = true
	}
	return c.peekTok
}

// regexAllowedHere reports whether a `/` at the current scan position
// should be lexed as the start of a regex literal rather than a division
// operator: true unless the previous token was one that can end an
// expression (an operand, `)`, `]`, `++`, `--`).
func (c *compiler) regexAllowedHere() bool {
	switch c.tok {
	case token.IDENT, token.INT, token.FLOAT, token.STRING, token.REGEXP,
		token.RPAREN, token.RBRACK, token.INC, token.DEC, token.THIS,
		token.TRUE, token.FALSE, token.NULL, token.UNDEFINED:
		return false
	default:
		return true
	}
}

func (c *compiler) accept(tok token.Token) bool {
	if c.tok == tok {
		c.next()
		return true
	}
	return false
}

func (c *compiler) expect(tok token.Token) {
	if c.tok != tok {
		c.errorf("expected %s, found %s", tok, c.tok)
		return
	}
	c.next()
}

// consumeSemi implements automatic semicolon insertion (spec §4.1): a
// semicolon is optional before `}`, at EOF, or when a newline preceded the
// current token.
func (c *compiler) consumeSemi() {
	if c.accept(token.SEMI) {
		return
	}
	if c.tok == token.RBRACE || c.tok == token.EOF || c.val.NewlineBefore {
		return
	}
	c.errorf("expected ;, found %s", c.tok)
}

// ---- statements ----

// parseStatements compiles statements until it sees `end` (RBRACE or EOF).
// A run of sequential statements is a loop, not recursion; a nested block
// statement recurses through parseStatement -> parseBlock -> parseStatements.
func (c *compiler) parseStatements(end token.Token) {
	for c.tok != end && c.tok != token.EOF {
		c.parseStatement()
	}
}

func (c *compiler) parseStatement() {
	switch c.tok {
	case token.LBRACE:
		c.parseBlock()
	case token.VAR:
		c.parseVarDecl()
		c.consumeSemi()
	case token.FUNCTION:
		c.parseFunctionDecl()
	case token.IF:
		c.parseIf()
	case token.WHILE:
		c.parseWhile()
	case token.FOR:
		c.parseFor()
	case token.RETURN:
		c.parseReturn()
	case token.BREAK:
		c.parseBreakContinue(true)
	case token.CONTINUE:
		c.parseBreakContinue(false)
	case token.THROW:
		c.parseThrow()
	case token.TRY:
		c.parseTry()
	case token.SEMI:
		c.next()
	default:
		pos := c.pos()
		c.parseExpr()
		c.emit0(c.fs, DROP, -1, pos)
		c.consumeSemi()
	}
}

// parseBlock compiles `{ stmt* }`, pushing a new blockScope onto fs.blocks
// for the block's declarations and popping it at the closing brace. Nesting
// recurses (parseStatement -> parseBlock -> parseStatements ->
// parseStatement), so each level of block depth costs Go call frames; name
// resolution walks fs.blocks (a slice) rather than a linked parent-pointer
// chain.
func (c *compiler) parseBlock() {
	c.expect(token.LBRACE)
	c.fs.pushBlock()
	c.parseStatements(token.RBRACE)
	c.fs.popBlock()
	c.expect(token.RBRACE)
}

func (c *compiler) parseVarDecl() {
	c.next() // `var`
	for {
		if c.tok != token.IDENT {
			c.errorf("expected identifier, found %s", c.tok)
			return
		}
		name := c.val.Raw
		pos := c.pos()
		c.next()
		b := c.fs.declare(name)
		if c.accept(token.EQ) {
			c.parseAssignExpr()
		} else {
			c.emit0(c.fs, PUSH_UNDEF, 1, pos)
		}
		c.storeLocal(b, pos)
		if !c.accept(token.COMMA) {
			break
		}
	}
}

// storeLocal emits the instruction that pops the top-of-stack value into
// b's slot, dispatching through PUT_VAR_REF when b names a heap cell: either
// a variable captured from an enclosing function (bindFree, addressed via
// the freeVarBit-tagged operand) or a local in this function already
// promoted to a cell because some nested closure captures it.
func (c *compiler) storeLocal(b *binding, pos token.Pos) {
	switch b.kind {
	case bindFree:
		c.emit(c.fs, PUT_VAR_REF, uint32(b.slot)|freeVarBit, -1, pos)
	case bindCell:
		c.emit(c.fs, PUT_VAR_REF, uint32(b.slot), -1, pos)
	default:
		if c.fs.cells[b.slot] {
			c.emit(c.fs, PUT_VAR_REF, uint32(b.slot), -1, pos)
			return
		}
		c.emit(c.fs, PUT_LOC, uint32(b.slot), -1, pos)
	}
}

func (c *compiler) parseFunctionDecl() {
	pos := c.pos()
	c.next() // `function`
	if c.tok != token.IDENT {
		c.errorf("expected function name, found %s", c.tok)
		return
	}
	name := c.val.Raw
	c.next()
	b := c.fs.declare(name)
	fn := c.parseFunctionBody(name, pos)
	c.emitClosure(fn, pos)
	c.storeLocal(b, pos)
}

func (c *compiler) emitClosure(fn *Funcode, pos token.Pos) {
	idx := len(c.curNestedList())
	*c.nestedSlot() = append(*c.nestedSlot(), fn)
	c.emit(c.fs, FCLOSURE, uint32(idx), 1, pos)
}

func (c *compiler) curNestedList() []*Funcode { return c.fs.fn.Nested }
func (c *compiler) nestedSlot() *[]*Funcode     { return &c.fs.fn.Nested }

// parseFunctionBody parses `(params) { body }` for a function declaration
// or expression, compiling it in its own funcState whose parent is the
// enclosing function (for free-variable resolution, scope.go).
func (c *compiler) parseFunctionBody(name string, pos token.Pos) *Funcode {
	fn := &Funcode{Name: name, Pos: pos, Positions: &SourceMap{}, Module: c.mod}
	parentFS, parentDepth := c.fs, c.stackDepth
	c.fs = newFuncState(parentFS, fn)
	c.stackDepth = 0

	c.expect(token.LPAREN)
	for c.tok != token.RPAREN && c.tok != token.EOF {
		if c.accept(token.DOTDOTDOT) {
			fn.HasVarargs = true
		}
		if c.tok != token.IDENT {
			c.errorf("expected parameter name, found %s", c.tok)
			break
		}
		c.fs.declare(c.val.Raw)
		fn.NumParams++
		c.next()
		if !c.accept(token.COMMA) {
			break
		}
	}
	c.expect(token.RPAREN)

	c.expect(token.LBRACE)
	c.parseStatements(token.RBRACE)
	c.expect(token.RBRACE)
	c.emit0(c.fs, RETURN_UNDEF, 0, pos)

	fn.NumLocals = c.fs.numLocals
	fn.FreeVars = c.fs.freeVars

	c.fs = parentFS
	c.stackDepth = parentDepth
	return fn
}

func (c *compiler) parseIf() {
	pos := c.pos()
	c.next()
	c.expect(token.LPAREN)
	c.parseExpr()
	c.expect(token.RPAREN)

	elseJump := c.emitJump(c.fs, IF_FALSE, -1, pos)
	c.parseStatement()
	if c.accept(token.ELSE) {
		endJump := c.emitJump(c.fs, GOTO, 0, pos)
		c.patchJump(c.fs, elseJump)
		c.parseStatement()
		c.patchJump(c.fs, endJump)
	} else {
		c.patchJump(c.fs, elseJump)
	}
}

func (c *compiler) parseWhile() {
	pos := c.pos()
	c.next()
	loop := c.fs.pushLoop("")
	start := len(c.fs.fn.Code)
	loop.continueAt = start

	c.expect(token.LPAREN)
	c.parseExpr()
	c.expect(token.RPAREN)
	exitJump := c.emitJump(c.fs, IF_FALSE, -1, pos)

	c.parseStatement()
	c.emitGoto(c.fs, GOTO, start, 0, pos)
	c.patchJump(c.fs, exitJump)

	c.patchLoopExits(loop, len(c.fs.fn.Code), start)
	c.fs.popLoop()
}

// patchLoopExits backfills every break/continue placeholder recorded while
// compiling the loop body, now that both the end-of-loop PC (breakTarget)
// and the continue PC are known.
func (c *compiler) patchLoopExits(loop *loopCtx, breakTarget, continueTarget int) {
	for _, off := range loop.breakFixups {
		c.patchJumpTo(c.fs, off, breakTarget)
	}
	for _, off := range loop.continueFixups {
		c.patchJumpTo(c.fs, off, continueTarget)
	}
}

func (c *compiler) parseFor() {
	pos := c.pos()
	c.next()
	c.expect(token.LPAREN)

	c.fs.pushBlock() // the loop header's `var i` (if any) scopes to the loop

	if c.tok == token.VAR {
		c.next() // `var`
		if c.tok != token.IDENT {
			c.errorf("expected identifier, found %s", c.tok)
			return
		}
		name := c.val.Raw
		b := c.fs.declare(name)
		c.next()

		switch {
		case c.tok == token.IN:
			c.next()
			c.finishForInOf(b, false, pos)
			c.fs.popBlock()
			return
		case c.tok == token.IDENT && c.val.Raw == "of":
			c.next()
			c.finishForInOf(b, true, pos)
			c.fs.popBlock()
			return
		case c.accept(token.EQ):
			c.parseAssignExpr()
			c.storeLocal(b, pos)
		default:
			c.emit0(c.fs, PUSH_UNDEF, 1, pos)
			c.storeLocal(b, pos)
		}
		// further `var` declarations in the same header, e.g. `var i = 0, j = 1`
		for c.accept(token.COMMA) {
			if c.tok != token.IDENT {
				c.errorf("expected identifier, found %s", c.tok)
				break
			}
			nb := c.fs.declare(c.val.Raw)
			c.next()
			if c.accept(token.EQ) {
				c.parseAssignExpr()
			} else {
				c.emit0(c.fs, PUSH_UNDEF, 1, pos)
			}
			c.storeLocal(nb, pos)
		}
	} else if c.tok != token.SEMI {
		c.parseExpr()
		c.emit0(c.fs, DROP, -1, pos)
	}
	c.expect(token.SEMI)

	loop := c.fs.pushLoop("")
	condPC := len(c.fs.fn.Code)
	var exitJump = -1
	if c.tok != token.SEMI {
		c.parseExpr()
		exitJump = c.emitJump(c.fs, IF_FALSE, -1, pos)
	}
	c.expect(token.SEMI)

	// The post-clause is parsed now but must run AFTER the body, so it is
	// emitted inline behind a GOTO that skips to the body; the body ends
	// with a GOTO back to it, and it ends with a GOTO back to the condition.
	bodyJumpOperand := c.emitJump(c.fs, GOTO, 0, pos)
	postPC := len(c.fs.fn.Code)
	if c.tok != token.RPAREN {
		c.parseExpr()
		c.emit0(c.fs, DROP, -1, pos)
	}
	c.emitGoto(c.fs, GOTO, condPC, 0, pos)
	c.expect(token.RPAREN)

	bodyPC := len(c.fs.fn.Code)
	c.patchJumpTo(c.fs, bodyJumpOperand, bodyPC)
	loop.continueAt = postPC

	c.parseStatement()
	c.emitGoto(c.fs, GOTO, postPC, 0, pos)

	end := len(c.fs.fn.Code)
	if exitJump != -1 {
		c.patchJumpTo(c.fs, exitJump, end)
	}
	c.patchLoopExits(loop, end, postPC)
	c.fs.popLoop()
	c.fs.popBlock()
}

// finishForInOf compiles the remainder of `for (var x in/of EXPR) STMT`
// once `var x` and the `in`/`of` keyword have already been consumed by
// parseFor (which needs that one token of lookahead to disambiguate a
// for-in/of header from a classic three-clause header).
func (c *compiler) finishForInOf(b *binding, isOf bool, pos token.Pos) {
	c.parseExpr()
	c.expect(token.RPAREN)

	if isOf {
		c.emit0(c.fs, FOR_OF_START, 0, pos)
	} else {
		c.emit0(c.fs, FOR_IN_START, 0, pos)
	}

	loop := c.fs.pushLoop("")
	start := len(c.fs.fn.Code)
	loop.continueAt = start
	exitJump := c.emitJump(c.fs, FOR_OF_NEXT, 1, pos)
	c.storeLocal(b, pos)

	c.parseStatement()
	c.emitGoto(c.fs, GOTO, start, 0, pos)
	c.patchJump(c.fs, exitJump)
	c.emit0(c.fs, ITER_POP, 0, pos)

	c.patchLoopExits(loop, len(c.fs.fn.Code), start)
	c.fs.popLoop()
}

func (c *compiler) parseReturn() {
	pos := c.pos()
	c.next()
	if c.tok == token.SEMI || c.tok == token.RBRACE || c.val.NewlineBefore {
		c.emit0(c.fs, RETURN_UNDEF, 0, pos)
	} else {
		c.parseExpr()
		c.emit0(c.fs, RETURN, -1, pos)
	}
	c.consumeSemi()
}

func (c *compiler) parseBreakContinue(isBreak bool) {
	pos := c.pos()
	c.next()
	label := ""
	if c.tok == token.IDENT && !c.val.NewlineBefore {
		label = c.val.Raw
		c.next()
	}
	c.consumeSemi()

	loop := c.fs.findLoop(label)
	if loop == nil {
		c.errorf("illegal %s statement", map[bool]string{true: "break", false: "continue"}[isBreak])
		return
	}
	off := c.emitJump(c.fs, GOTO, 0, pos)
	if isBreak {
		loop.breakFixups = append(loop.breakFixups, off)
	} else {
		loop.continueFixups = append(loop.continueFixups, off)
	}
}

func (c *compiler) parseThrow() {
	pos := c.pos()
	c.next()
	c.parseExpr()
	c.emit0(c.fs, THROW, -1, pos)
	c.consumeSemi()
}

// parseTry compiles try/catch/finally using an ExceptionEntry (spec
// §4.3.2): the guarded range covers the try block only, not the catch
// block; CatchPC/FinallyPC are patched once both clauses (if present) are
// compiled. Normal completion of the try or catch block falls through into
// the finally body; no GOSUB is emitted. A return or throw inside the
// guarded range is sent to FinallyPC by the machine's unwinder and resumed
// by the RET that ends the finally body.
func (c *compiler) parseTry() {
	pos := c.pos()
	c.next()
	entry := ExceptionEntry{CatchPC: -1, FinallyPC: -1, StackDepth: c.stackDepth}
	startPC := len(c.fs.fn.Code)

	c.parseBlock()
	entry.StartPC, entry.EndPC = startPC, len(c.fs.fn.Code)
	afterTry := c.emitJump(c.fs, GOTO, 0, pos)

	if c.tok == token.CATCH {
		c.next()
		entry.CatchPC = len(c.fs.fn.Code)
		c.fs.pushBlock()
		if c.accept(token.LPAREN) {
			if c.tok == token.IDENT {
				b := c.fs.declare(c.val.Raw)
				c.next()
				c.storeLocal(b, pos)
			}
			c.expect(token.RPAREN)
		} else {
			c.emit0(c.fs, DROP, -1, pos) // thrown value left unbound
		}
		c.parseStatements(token.RBRACE)
		c.expect(token.RBRACE)
		c.fs.popBlock()
	}
	c.patchJump(c.fs, afterTry)

	if c.tok == token.FINALLY {
		c.next()
		entry.FinallyPC = len(c.fs.fn.Code)
		c.parseBlock()
		c.emit0(c.fs, RET, 0, pos)
	}

	c.fs.fn.Exceptions = append(c.fs.fn.Exceptions, entry)
}

// ---- literals -> value.Value helpers used by expr.go ----

func numberConst(f float64) value.Value { return value.Number(f) }
func stringConst(s string) value.Value  { return value.String(s) }
