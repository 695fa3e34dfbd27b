package compiler

import (
	"github.com/duskvm/duskvm/lang/token"
	"github.com/duskvm/duskvm/lang/value"
)

// parseExpr compiles a comma expression, leaving only the last operand's
// value on the stack.
func (c *compiler) parseExpr() {
	c.parseAssignExpr()
	for c.accept(token.COMMA) {
		c.emit0(c.fs, DROP, -1, c.pos())
		c.parseAssignExpr()
	}
}

var compoundAssignOp = map[token.Token]Opcode{
	token.PLUS_EQ: ADD, token.MINUS_EQ: SUB, token.STAR_EQ: MUL, token.SLASH_EQ: DIV,
	token.PERCENT_EQ: MOD, token.AMP_EQ: BAND, token.PIPE_EQ: BOR, token.CIRCUMFLEX_EQ: BXOR,
	token.LTLT_EQ: SHL, token.GTGT_EQ: SAR,
}

// parseAssignExpr handles `=` and compound assignment, which are
// right-associative and bind loosest of all expression forms except the
// comma operator. The left-hand side is parsed once as an ordinary
// expression (through the conditional level) and then reinterpreted as an
// assignment target (local, global, property or index), matching how a
// single-pass compiler without a syntax tree must handle targets: each
// parse level returns an assignTarget describing what it just emitted,
// rather than the left-hand side being re-parsed.
func (c *compiler) parseAssignExpr() {
	pos := c.pos()
	target := c.parseConditional()

	switch {
	case c.tok == token.EQ:
		c.next()
		c.parseAssignExpr()
		c.assignTo(target, pos)
	case compoundAssignOp[c.tok] != NOP || c.tok == token.ANDAND_EQ || c.tok == token.OROR_EQ || c.tok == token.QQ_EQ:
		op := c.tok
		c.next()
		c.compoundAssign(target, op, pos)
	}
}

// assignTarget records enough about an already-compiled lvalue expression
// to emit the matching store instruction, without needing an AST node.
type assignTarget struct {
	kind  targetKind
	local *binding // for targetLocal
	// for targetField/targetIndex the object (and, for index, the key) are
	// already sitting on the operand stack beneath where the assigned
	// value will be pushed; fieldName records the property name literal.
	fieldName string
}

type targetKind int

const (
	targetNone targetKind = iota
	targetLocal
	targetGlobal
	targetField
	targetIndex
)

// parseConditional parses the full precedence ladder down to primary
// expressions. It returns an assignTarget describing the expression just
// compiled, valid only when that expression was in fact an lvalue (a bare
// identifier, a.b, or a[b]); parseAssignExpr ignores the return value
// otherwise.
func (c *compiler) parseConditional() assignTarget {
	pos := c.pos()
	target := c.parseNullish()
	if c.accept(token.QUESTION) {
		elseJump := c.emitJump(c.fs, IF_FALSE, -1, pos)
		c.parseAssignExpr()
		endJump := c.emitJump(c.fs, GOTO, 0, pos)
		c.patchJump(c.fs, elseJump)
		c.expect(token.COLON)
		c.parseAssignExpr()
		c.patchJump(c.fs, endJump)
		return assignTarget{}
	}
	return target
}

func (c *compiler) parseNullish() assignTarget {
	target := c.parseLogicalOr()
	for c.tok == token.QUESTIONQUESTION {
		pos := c.pos()
		c.next()
		c.emit0(c.fs, DUP, 1, pos)
		c.emit0(c.fs, PUSH_NULL, 1, pos)
		c.emit0(c.fs, EQ, -1, pos) // looseEquals treats null and undefined as equal
		c.emit0(c.fs, LNOT, 0, pos)
		skip := c.emitJump(c.fs, IF_TRUE, -1, pos)
		c.emit0(c.fs, DROP, -1, pos)
		c.parseLogicalOr()
		c.patchJump(c.fs, skip)
		target = assignTarget{}
	}
	return target
}

func (c *compiler) parseLogicalOr() assignTarget {
	target := c.parseLogicalAnd()
	for c.tok == token.OROR {
		pos := c.pos()
		c.next()
		c.emit0(c.fs, DUP, 1, pos)
		skip := c.emitJump(c.fs, IF_TRUE, -1, pos)
		c.emit0(c.fs, DROP, -1, pos)
		c.parseLogicalAnd()
		c.patchJump(c.fs, skip)
		target = assignTarget{}
	}
	return target
}

func (c *compiler) parseLogicalAnd() assignTarget {
	target := c.parseBitOr()
	for c.tok == token.ANDAND {
		pos := c.pos()
		c.next()
		c.emit0(c.fs, DUP, 1, pos)
		skip := c.emitJump(c.fs, IF_FALSE, -1, pos)
		c.emit0(c.fs, DROP, -1, pos)
		c.parseBitOr()
		c.patchJump(c.fs, skip)
		target = assignTarget{}
	}
	return target
}

// binLevel is one tier of strictly left-associative binary operators.
type binLevel struct {
	toks map[token.Token]Opcode
	next func(*compiler) assignTarget
}

func (c *compiler) parseBitOr() assignTarget {
	return c.parseBinary(map[token.Token]Opcode{token.PIPE: BOR}, (*compiler).parseBitXor)
}
func (c *compiler) parseBitXor() assignTarget {
	return c.parseBinary(map[token.Token]Opcode{token.CIRCUMFLEX: BXOR}, (*compiler).parseBitAnd)
}
func (c *compiler) parseBitAnd() assignTarget {
	return c.parseBinary(map[token.Token]Opcode{token.AMPERSAND: BAND}, (*compiler).parseEquality)
}
func (c *compiler) parseEquality() assignTarget {
	return c.parseBinary(map[token.Token]Opcode{
		token.EQEQ: EQ, token.NEQ: NEQ, token.EQEQEQ: STRICT_EQ, token.NEQEQ: STRICT_NEQ,
	}, (*compiler).parseRelational)
}
func (c *compiler) parseRelational() assignTarget {
	return c.parseBinary(map[token.Token]Opcode{
		token.LT: LT, token.LE: LTE, token.GT: GT, token.GE: GTE,
		token.INSTANCEOF: INSTANCEOF, token.IN: IN_OP,
	}, (*compiler).parseShift)
}
func (c *compiler) parseShift() assignTarget {
	return c.parseBinary(map[token.Token]Opcode{
		token.LTLT: SHL, token.GTGT: SAR, token.GTGTGT: SHR,
	}, (*compiler).parseAdditive)
}
func (c *compiler) parseAdditive() assignTarget {
	return c.parseBinary(map[token.Token]Opcode{token.PLUS: ADD, token.MINUS: SUB}, (*compiler).parseMultiplicative)
}
func (c *compiler) parseMultiplicative() assignTarget {
	return c.parseBinary(map[token.Token]Opcode{
		token.STAR: MUL, token.SLASH: DIV, token.PERCENT: MOD,
	}, (*compiler).parseExponent)
}

// parseExponent is right-associative, unlike every other binary tier.
func (c *compiler) parseExponent() assignTarget {
	target := c.parseUnary()
	if c.tok == token.STARSTAR {
		pos := c.pos()
		c.next()
		c.parseExponent()
		c.emit0(c.fs, POW, -1, pos)
		return assignTarget{}
	}
	return target
}

func (c *compiler) parseBinary(ops map[token.Token]Opcode, next func(*compiler) assignTarget) assignTarget {
	target := next(c)
	for {
		op, ok := ops[c.tok]
		if !ok {
			return target
		}
		pos := c.pos()
		c.next()
		next(c)
		c.emit0(c.fs, op, -1, pos)
		target = assignTarget{}
	}
}

func (c *compiler) parseUnary() assignTarget {
	pos := c.pos()
	switch c.tok {
	case token.NOT:
		c.next()
		c.parseUnary()
		c.emit0(c.fs, LNOT, 0, pos)
		return assignTarget{}
	case token.TILDE:
		c.next()
		c.parseUnary()
		c.emit0(c.fs, BNOT, 0, pos)
		return assignTarget{}
	case token.MINUS:
		c.next()
		c.parseUnary()
		c.emit0(c.fs, NEG, 0, pos)
		return assignTarget{}
	case token.PLUS:
		c.next()
		c.parseUnary()
		c.emit0(c.fs, UPLUS, 0, pos)
		return assignTarget{}
	case token.TYPEOF:
		c.next()
		c.parseUnary()
		c.emit0(c.fs, TYPEOF, 0, pos)
		return assignTarget{}
	case token.VOID:
		c.next()
		c.parseUnary()
		c.emit0(c.fs, DROP, -1, pos)
		c.emit0(c.fs, PUSH_UNDEF, 1, pos)
		return assignTarget{}
	case token.DELETE:
		c.next()
		target := c.parseUnary()
		c.emitDelete(target, pos)
		return assignTarget{}
	case token.INC, token.DEC:
		opTok := c.tok
		c.next()
		target := c.parseUnary()
		c.emitIncDec(target, opTok == token.INC, pos, true)
		return assignTarget{}
	default:
		return c.parsePostfix()
	}
}

func (c *compiler) parsePostfix() assignTarget {
	target := c.parseMemberChain()
	if (c.tok == token.INC || c.tok == token.DEC) && !c.val.NewlineBefore {
		isInc := c.tok == token.INC
		pos := c.pos()
		c.next()
		c.emitIncDec(target, isInc, pos, false)
		return assignTarget{}
	}
	return target
}

// parseMemberChain parses a primary expression followed by any run of
// `.name`, `[expr]`, and `(args)` suffixes as a flat loop, never recursing
// back into itself: a chain like `a[0][0]...[0]` a thousand levels deep
// compiles with one Go stack frame regardless of its length (spec
// §4.2.1). Each suffix emits its bytecode immediately; the loop only
// tracks enough state (the last property/index target) to support a
// trailing assignment or delete.
func (c *compiler) parseMemberChain() assignTarget {
	pos := c.pos()
	target := c.parsePrimary()
	var shortCircuit []int

	for {
		switch c.tok {
		case token.DOT:
			c.next()
			if c.tok != token.IDENT {
				c.errorf("expected property name, found %s", c.tok)
				c.finishOptionalChain(shortCircuit, pos)
				return assignTarget{}
			}
			name := c.val.Raw
			c.next()
			if c.tok == token.LPAREN {
				// Keep the receiver under the fetched method, matching
				// CALL_METHOD's expected [receiver, fn, args...] layout.
				c.emit0(c.fs, DUP, 1, pos)
				c.emitGetField(name, pos)
				c.parseArgsAndCall(pos, CALL_METHOD)
				target = assignTarget{}
				continue
			}
			if c.isAssignOpAhead() {
				// The object stays on the stack unread: this suffix is
				// about to be the target of `=`/a compound-assign op, and
				// assignTo/compoundAssign finish the store from here.
				c.finishOptionalChain(shortCircuit, pos)
				return assignTarget{kind: targetField, fieldName: name}
			}
			c.emitGetField(name, pos)
			target = assignTarget{kind: targetField, fieldName: name}
		case token.QUESTIONDOT:
			c.next()
			if c.tok != token.IDENT {
				c.errorf("expected property name, found %s", c.tok)
				c.finishOptionalChain(shortCircuit, pos)
				return assignTarget{}
			}
			name := c.val.Raw
			c.next()
			// a?.b must short-circuit the whole rest of the chain to
			// undefined when a is null/undefined, not just this one
			// field access; the jump is patched once the chain ends.
			c.emit0(c.fs, DUP, 1, pos)
			c.emit0(c.fs, PUSH_NULL, 1, pos)
			c.emit0(c.fs, EQ, -1, pos)
			shortCircuit = append(shortCircuit, c.emitJump(c.fs, IF_TRUE, -1, pos))
			c.emitGetField(name, pos)
			target = assignTarget{}
		case token.LBRACK:
			c.next()
			c.parseExpr()
			c.expect(token.RBRACK)
			if c.tok == token.LPAREN {
				// Computed-property method calls (`obj[key](...)`) are
				// invoked without a bound receiver: a simplification
				// rather than full dynamic
				// `this` resolution through an arbitrary index
				// expression.
				c.emit0(c.fs, GET_ARRAY_EL, -1, pos)
				c.parseArgsAndCall(pos, CALL)
				target = assignTarget{}
				continue
			}
			if c.isAssignOpAhead() {
				// obj and key both stay on the stack for assignTo/
				// compoundAssign to consume.
				c.finishOptionalChain(shortCircuit, pos)
				return assignTarget{kind: targetIndex}
			}
			c.emit0(c.fs, GET_ARRAY_EL, -1, pos)
			target = assignTarget{kind: targetIndex}
		case token.LPAREN:
			c.parseArgsAndCall(pos, CALL)
			target = assignTarget{}
		default:
			c.finishOptionalChain(shortCircuit, pos)
			return target
		}
	}
}

// finishOptionalChain patches the IF_TRUE jumps emitted for every `?.` link
// in the chain just parsed so they land here, once the rest of the chain
// (if any) has been compiled: a jump taken from any of them skips straight
// past it. The landing code replaces whatever receiver is left on the
// stack with undefined, matching the net one-value stack effect of the
// chain running to completion normally.
func (c *compiler) finishOptionalChain(shortCircuit []int, pos token.Pos) {
	if len(shortCircuit) == 0 {
		return
	}
	end := c.emitJump(c.fs, GOTO, 0, pos)
	for _, j := range shortCircuit {
		c.patchJump(c.fs, j)
	}
	c.emit0(c.fs, DROP, -1, pos)
	c.emit0(c.fs, PUSH_UNDEF, 1, pos)
	c.patchJump(c.fs, end)
}

// isAssignOpAhead reports whether the current token is `=` or a compound
// assignment operator. parseMemberChain calls this right after parsing a
// `.name`/`[expr]` suffix (before emitting its GET) to decide whether the
// suffix is about to be an assignment target: since assignment operators
// never appear mid-chain, checking the already-advanced current token here
// is unambiguous and needs no extra lookahead.
func (c *compiler) isAssignOpAhead() bool {
	switch c.tok {
	case token.EQ, token.ANDAND_EQ, token.OROR_EQ, token.QQ_EQ:
		return true
	}
	_, ok := compoundAssignOp[c.tok]
	return ok
}

func (c *compiler) emitGetField(name string, pos token.Pos) {
	idx := c.internConst(value.String(name))
	c.emit(c.fs, GET_FIELD, uint32(idx), 0, pos)
}

// parseArgsAndCall compiles `(arg, ...)` and emits the given call opcode.
// CALL_METHOD expects the stack to already hold [receiver, fn] beneath
// where the arguments go; CALL and CALL_CTOR expect just [fn].
func (c *compiler) parseArgsAndCall(pos token.Pos, op Opcode) {
	c.expect(token.LPAREN)
	n := 0
	for c.tok != token.RPAREN && c.tok != token.EOF {
		c.parseAssignExpr()
		n++
		if !c.accept(token.COMMA) {
			break
		}
	}
	c.expect(token.RPAREN)
	if op == CALL_METHOD {
		c.emit(c.fs, op, uint32(n), -(n + 1), pos) // pops receiver+fn+args, pushes result
	} else {
		c.emit(c.fs, op, uint32(n), -n, pos) // pops fn+args, pushes result
	}
}

// assignTo compiles `target = <value already on stack>`, leaving the
// assigned value on the stack as the expression's result. For field/index
// targets the object (and, for index, the key) are still sitting on the
// stack beneath the value (parseMemberChain deferred their read once it
// saw an assignment operator ahead); a scratch local preserves a copy of
// the value across the PUT so it survives as the expression's result,
// without needing stack-shuffling ops to reach behind the object/key.
func (c *compiler) assignTo(target assignTarget, pos token.Pos) {
	switch target.kind {
	case targetLocal:
		// parsePrimary already pushed the local's old value beneath the
		// new one: store the new value, drop the old, and read it back.
		c.storeLocal(target.local, pos)
		c.emit0(c.fs, DROP, -1, pos)
		c.readLocal(target.local, pos)
	case targetGlobal:
		c.errorf("assignment to an undeclared identifier is not supported")
	case targetField:
		tmp := c.fs.temp()
		c.emit0(c.fs, DUP, 1, pos)
		c.emit(c.fs, PUT_LOC, uint32(tmp), -1, pos)
		idx := c.internConst(value.String(target.fieldName))
		c.emit(c.fs, PUT_FIELD, uint32(idx), -2, pos)
		c.emit(c.fs, GET_LOC, uint32(tmp), 1, pos)
	case targetIndex:
		tmp := c.fs.temp()
		c.emit0(c.fs, DUP, 1, pos)
		c.emit(c.fs, PUT_LOC, uint32(tmp), -1, pos)
		c.emit0(c.fs, PUT_ARRAY_EL, -3, pos)
		c.emit(c.fs, GET_LOC, uint32(tmp), 1, pos)
	default:
		c.errorf("invalid assignment target")
	}
}

// compoundAssign compiles `target OP= rhs`. For field/index targets the
// object (and key) were left unread on the stack by parseMemberChain; they
// are stashed into scratch locals first so they can be read (for the
// current value) and then read again (for the final store) without
// re-evaluating the object/key sub-expressions.
func (c *compiler) compoundAssign(target assignTarget, op token.Token, pos token.Pos) {
	switch target.kind {
	case targetLocal:
		// The current value is already on the stack (parsePrimary read it).
		c.parseAssignExpr()
		c.emitCompoundOp(op, pos)
		c.emit0(c.fs, DUP, 1, pos)
		c.storeLocal(target.local, pos)

	case targetField:
		objTmp := c.fs.tempAt(0)
		valTmp := c.fs.tempAt(1)
		c.emit(c.fs, PUT_LOC, uint32(objTmp), -1, pos) // stack: [] ; objTmp = obj
		idx := c.internConst(value.String(target.fieldName))
		c.emit(c.fs, GET_LOC, uint32(objTmp), 1, pos) // [obj]
		c.emit(c.fs, GET_FIELD, uint32(idx), 0, pos)  // [curVal]
		c.parseAssignExpr()                           // [curVal, rhs]
		c.emitCompoundOp(op, pos)                     // [newVal]
		c.emit(c.fs, PUT_LOC, uint32(valTmp), -1, pos) // []; valTmp = newVal
		c.emit(c.fs, GET_LOC, uint32(objTmp), 1, pos)  // [obj]
		c.emit(c.fs, GET_LOC, uint32(valTmp), 1, pos)  // [obj, newVal]
		c.emit(c.fs, PUT_FIELD, uint32(idx), -2, pos)  // []
		c.emit(c.fs, GET_LOC, uint32(valTmp), 1, pos)  // [newVal]

	case targetIndex:
		keyTmp := c.fs.tempAt(0)
		objTmp := c.fs.tempAt(1)
		valTmp := c.fs.tempAt(2)
		c.emit(c.fs, PUT_LOC, uint32(keyTmp), -1, pos) // stack: [obj] ; keyTmp = key
		c.emit(c.fs, PUT_LOC, uint32(objTmp), -1, pos) // stack: [] ; objTmp = obj
		c.emit(c.fs, GET_LOC, uint32(objTmp), 1, pos)
		c.emit(c.fs, GET_LOC, uint32(keyTmp), 1, pos)
		c.emit0(c.fs, GET_ARRAY_EL, -1, pos) // [curVal]
		c.parseAssignExpr()                  // [curVal, rhs]
		c.emitCompoundOp(op, pos)            // [newVal]
		c.emit(c.fs, PUT_LOC, uint32(valTmp), -1, pos)
		c.emit(c.fs, GET_LOC, uint32(objTmp), 1, pos)
		c.emit(c.fs, GET_LOC, uint32(keyTmp), 1, pos)
		c.emit(c.fs, GET_LOC, uint32(valTmp), 1, pos)
		c.emit0(c.fs, PUT_ARRAY_EL, -3, pos)
		c.emit(c.fs, GET_LOC, uint32(valTmp), 1, pos)

	default:
		c.errorf("invalid compound assignment target")
	}
}

func (c *compiler) readTarget(target assignTarget, pos token.Pos) {
	switch target.kind {
	case targetLocal:
		c.readLocal(target.local, pos)
	}
}

func (c *compiler) readLocal(b *binding, pos token.Pos) {
	switch b.kind {
	case bindCell:
		c.emit(c.fs, GET_VAR_REF, uint32(b.slot), 1, pos)
	case bindFree:
		c.emit(c.fs, GET_VAR_REF, uint32(b.slot)|freeVarBit, 1, pos)
	default:
		c.emit(c.fs, GET_LOC, uint32(b.slot), 1, pos)
	}
}

func (c *compiler) emitCompoundOp(op token.Token, pos token.Pos) {
	switch op {
	case token.ANDAND_EQ, token.OROR_EQ, token.QQ_EQ:
		// rhs is already evaluated (no short-circuit): keep cur when it decides the operator, else rhs.
		tmp := c.fs.tempAt(3)
		c.emit(c.fs, PUT_LOC, uint32(tmp), -1, pos) // [cur]
		c.emit0(c.fs, DUP, 1, pos)                  // [cur, cur]
		keepOp := IF_FALSE                           // &&= keeps a falsy cur, ??= a non-nullish one
		if op == token.OROR_EQ {
			keepOp = IF_TRUE
		} else if op == token.QQ_EQ {
			c.emit0(c.fs, PUSH_NULL, 1, pos)
			c.emit0(c.fs, EQ, -1, pos) // [cur, cur == null]
		}
		keep := c.emitJump(c.fs, keepOp, -1, pos) // [cur]
		c.emit0(c.fs, DROP, -1, pos)
		c.emit(c.fs, GET_LOC, uint32(tmp), 1, pos) // [rhs]
		c.patchJump(c.fs, keep)
		return
	default:
		c.emit0(c.fs, compoundAssignOp[op], -1, pos)
	}
}

func (c *compiler) emitIncDec(target assignTarget, isInc bool, pos token.Pos, prefix bool) {
	if target.kind != targetLocal {
		c.errorf("invalid increment/decrement target")
		return
	}
	// The operand's current value is already on the stack (parsePrimary
	// read it). Prefix dups AFTER incrementing so the stored (and returned)
	// value is the new one; postfix dups BEFORE, so INC only touches the
	// copy that gets stored and the original old value is what's left as
	// the expression's result.
	if !prefix {
		c.emit0(c.fs, DUP, 1, pos)
	}
	if isInc {
		c.emit0(c.fs, INC, 0, pos)
	} else {
		c.emit0(c.fs, DEC, 0, pos)
	}
	if prefix {
		c.emit0(c.fs, DUP, 1, pos)
	}
	c.storeLocal(target.local, pos)
}

func (c *compiler) emitDelete(target assignTarget, pos token.Pos) {
	switch target.kind {
	case targetField, targetIndex:
		c.emit0(c.fs, DELETE, -1, pos)
	default:
		c.emit0(c.fs, PUSH_TRUE, 1, pos)
	}
}

func (c *compiler) internConst(v value.Value) int {
	idx := len(c.mod.Constants)
	c.mod.Constants = append(c.mod.Constants, v)
	return idx
}

// freeVarBit flags a GET_VAR_REF/PUT_VAR_REF operand as indexing the
// current frame's FreeVars array instead of its own cell slots; the
// machine masks it off before indexing (freeVarCell in
// lang/machine/machine.go).
const freeVarBit = 1 << 30

func (c *compiler) parsePrimary() assignTarget {
	pos := c.pos()
	switch c.tok {
	case token.INT:
		c.pushConst(c.fs, value.Number(float64(c.val.Int)), pos)
		c.next()
		return assignTarget{}
	case token.FLOAT:
		c.pushConst(c.fs, value.Number(c.val.Float), pos)
		c.next()
		return assignTarget{}
	case token.STRING:
		c.pushConst(c.fs, value.String(c.val.String), pos)
		c.next()
		return assignTarget{}
	case token.REGEXP:
		c.emitRegexpLiteral(pos)
		return assignTarget{}
	case token.TRUE:
		c.emit0(c.fs, PUSH_TRUE, 1, pos)
		c.next()
		return assignTarget{}
	case token.FALSE:
		c.emit0(c.fs, PUSH_FALSE, 1, pos)
		c.next()
		return assignTarget{}
	case token.NULL:
		c.emit0(c.fs, PUSH_NULL, 1, pos)
		c.next()
		return assignTarget{}
	case token.UNDEFINED:
		c.emit0(c.fs, PUSH_UNDEF, 1, pos)
		c.next()
		return assignTarget{}
	case token.THIS:
		c.emit0(c.fs, PUSH_THIS, 1, pos)
		c.next()
		return assignTarget{}
	case token.IDENT:
		name := c.val.Raw
		c.next()
		b := c.fs.resolve(name)
		if b.kind == bindGlobal {
			c.emitGetGlobal(name, pos)
			return assignTarget{kind: targetGlobal}
		}
		c.readLocal(&b, pos)
		return assignTarget{kind: targetLocal, local: &b}
	case token.FUNCTION:
		c.next()
		fnName := ""
		if c.tok == token.IDENT {
			fnName = c.val.Raw
			c.next()
		}
		fn := c.parseFunctionBody(fnName, pos)
		c.emitClosure(fn, pos)
		return assignTarget{}
	case token.NEW:
		c.next()
		c.parseMemberChainNoCall()
		if c.tok == token.LPAREN {
			c.parseArgsAndCall(pos, CALL_CTOR)
		} else {
			c.emit(c.fs, CALL_CTOR, 0, 0, pos) // `new Foo` with no argument list
		}
		return assignTarget{}
	case token.LPAREN:
		// Parenthesized expressions are fully transparent: they introduce
		// no scope, no assignTarget change, and no extra stack-machine
		// state. Each '(' reenters parseAssignExpr/parseConditional/.../
		// parsePrimary, so paren nesting depth is bounded by the Go call
		// stack; member chains and array literals are the forms parsed with
		// a loop or an explicit work stack elsewhere in this package.
		c.next()
		target := c.parseConditionalForParen()
		c.expect(token.RPAREN)
		return target
	case token.LBRACK:
		return c.parseArrayLiteral(pos)
	case token.LBRACE:
		return c.parseObjectLiteral(pos)
	default:
		c.errorf("unexpected token %s", c.tok)
		c.next()
		return assignTarget{}
	}
}

// parseConditionalForParen parses a full comma-free assignment expression
// inside parens (so `(a, b)` still works via parseExpr's caller, and
// `(x = 1)` remains assignable-looking to the enclosing context).
func (c *compiler) parseConditionalForParen() assignTarget {
	target := c.parseConditional()
	if c.tok == token.EQ {
		pos := c.pos()
		c.next()
		c.parseAssignExpr()
		c.assignTo(target, pos)
		return assignTarget{}
	}
	return target
}

// parseMemberChainNoCall parses a `new` expression's callee: a member
// chain without the trailing call, since `new a.b.c(args)` constructs
// `a.b.c` rather than calling it mid-chain.
func (c *compiler) parseMemberChainNoCall() {
	pos := c.pos()
	c.parsePrimary()
	for {
		switch c.tok {
		case token.DOT:
			c.next()
			name := c.val.Raw
			c.next()
			c.emitGetField(name, pos)
		case token.LBRACK:
			c.next()
			c.parseExpr()
			c.expect(token.RBRACK)
			c.emit0(c.fs, GET_ARRAY_EL, -1, pos)
		default:
			return
		}
	}
}

func (c *compiler) emitGetGlobal(name string, pos token.Pos) {
	idx := c.internConst(value.String(name))
	c.emit(c.fs, GET_GLOBAL, uint32(idx), 1, pos)
}

func (c *compiler) emitRegexpLiteral(pos token.Pos) {
	pattern, flags := splitRegexLiteral(c.val.Raw)
	idx := len(c.mod.Regexps)
	c.mod.Regexps = append(c.mod.Regexps, &CompiledRegexp{Pattern: pattern, Flags: flags})
	c.emit(c.fs, REGEXP, uint32(idx), 1, pos)
	c.next()
}

func splitRegexLiteral(raw string) (pattern, flags string) {
	// raw is `/pattern/flags`; find the final, unescaped '/'.
	for i := len(raw) - 1; i > 0; i-- {
		if raw[i] == '/' {
			return raw[1:i], raw[i+1:]
		}
	}
	return raw, ""
}

// parseArrayLiteral compiles `[e1, e2, ...]`. Nested array literals are the
// only case where this package keeps an explicit work stack (arrayFrame)
// instead of relying on Go recursion, because array literals can nest
// without any intervening statement or block to reset call depth, e.g.
// `[[[[...]]]]` a thousand levels deep (spec §4.2.1). Each element
// expression is still compiled by the ordinary (recursive) expression
// parser; only the bracket bookkeeping itself is iterative.
type arrayFrame struct {
	count int
	pos   token.Pos
}

func (c *compiler) parseArrayLiteral(startPos token.Pos) assignTarget {
	var frames []arrayFrame
	frames = append(frames, arrayFrame{pos: startPos})
	c.next() // consume the opening '['

	for len(frames) > 0 {
		top := &frames[len(frames)-1]
		switch {
		case c.tok == token.RBRACK:
			c.next()
			c.emit(c.fs, ARRAY_FROM, uint32(top.count), 1-top.count, top.pos)
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				frames[len(frames)-1].count++
			}
		case c.tok == token.COMMA:
			c.next()
		case c.tok == token.LBRACK:
			p := c.pos()
			frames = append(frames, arrayFrame{pos: p})
			c.next()
		default:
			c.parseAssignExpr()
			top.count++
			if c.tok != token.RBRACK {
				c.expect(token.COMMA)
			}
		}
	}
	return assignTarget{}
}

// parseObjectLiteral compiles `{ k: v, ... }`. Object literals are not
// named as a required deep-nesting case by the spec (array literals are);
// ordinary recursive descent (one Go frame per nesting level) is used
// here, same as for parenthesized expressions.
func (c *compiler) parseObjectLiteral(pos token.Pos) assignTarget {
	c.next() // consume '{'
	c.emit0(c.fs, NEW_OBJECT, 1, pos)
	for c.tok != token.RBRACE && c.tok != token.EOF {
		var name string
		switch c.tok {
		case token.IDENT:
			name = c.val.Raw
			c.next()
		case token.STRING:
			name = c.val.String
			c.next()
		case token.INT:
			name = c.val.Raw
			c.next()
		default:
			c.errorf("expected property name, found %s", c.tok)
			c.next()
			continue
		}
		if c.accept(token.COLON) {
			c.parseAssignExpr()
		} else {
			// shorthand `{ x }` means `{ x: x }`
			b := c.fs.resolve(name)
			c.readLocal(&b, pos)
		}
		idx := c.internConst(value.String(name))
		c.emit(c.fs, DEFINE_FIELD, uint32(idx), -1, pos)
		if !c.accept(token.COMMA) {
			break
		}
	}
	c.expect(token.RBRACE)
	return assignTarget{}
}
