package syntax

// compiler lowers the parser's AST into a flat Inst slice. Every
// sub-program a matcher can enter independently — a greedy_loop body or a
// lookaround body — gets its own trailing OpMatch so regexp/matcher's
// continuation-passing interpreter has a uniform "this span is done"
// signal regardless of nesting.
type compiler struct {
	insts []Inst
	flags Flags
}

func (c *compiler) add(i Inst) int {
	c.insts = append(c.insts, i)
	return len(c.insts) - 1
}

func (c *compiler) emit(n node) {
	switch v := n.(type) {
	case nil:
		// empty alternative branch, e.g. `(a|)`
	case *litNode:
		c.add(Inst{Op: OpChar, Rune: v.r})
	case *anyNode:
		c.add(Inst{Op: OpAny})
	case *classNode:
		c.add(Inst{Op: OpClass, Class: v.c})
	case *boundaryNode:
		if v.bol {
			c.add(Inst{Op: OpBOL})
		} else {
			c.add(Inst{Op: OpEOL})
		}
	case *wordBoundaryNode:
		c.add(Inst{Op: OpWordBoundary, Negate: v.negate})
	case *backrefNode:
		c.add(Inst{Op: OpBackref, N: v.n})
	case *concatNode:
		for _, sub := range v.subs {
			c.emit(sub)
		}
	case *altNode:
		c.emitAlt(v.subs)
	case *groupNode:
		c.emitGroup(v)
	case *repeatNode:
		c.emitRepeat(v)
	default:
		panic("syntax: unhandled node type in compiler.emit")
	}
}

// emitAlt lowers `a|b|c|...` as a right-leaning chain of splits:
//
//	split L1, Lrest
//	L1:   <a>
//	      jump Lend
//	Lrest: split L2, Lrest2
//	       ...
//	Lend:
func (c *compiler) emitAlt(subs []node) {
	if len(subs) == 1 {
		c.emit(subs[0])
		return
	}
	splitPC := c.add(Inst{Op: OpSplit})
	c.insts[splitPC].X = len(c.insts)
	c.emit(subs[0])
	jumpPC := c.add(Inst{Op: OpJump})
	c.insts[splitPC].Y = len(c.insts)
	c.emitAlt(subs[1:])
	c.insts[jumpPC].X = len(c.insts)
}

func (c *compiler) emitGroup(g *groupNode) {
	if g.isLook {
		lookPC := c.add(Inst{Op: OpLookaround, Positive: g.lookPos})
		bodyStart := len(c.insts)
		c.emit(g.sub)
		c.add(Inst{Op: OpMatch})
		c.insts[lookPC].BodyLen = len(c.insts) - bodyStart
		return
	}
	if g.capIdx > 0 {
		c.add(Inst{Op: OpSave, N: 2 * g.capIdx})
		c.emit(g.sub)
		c.add(Inst{Op: OpSave, N: 2*g.capIdx + 1})
		return
	}
	c.emit(g.sub)
}

func (c *compiler) emitRepeat(r *repeatNode) {
	loopPC := c.add(Inst{Op: OpGreedyLoop, Min: r.min, Max: r.max, Lazy: r.lazy})
	bodyStart := len(c.insts)
	c.emit(r.sub)
	c.add(Inst{Op: OpMatch})
	c.insts[loopPC].BodyLen = len(c.insts) - bodyStart
}
