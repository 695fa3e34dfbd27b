// Package matcher runs a compiled regexp/syntax.Program against input
// text. Grounded on the same bytecode-VM survey as regexp/syntax (spec
// §4.4.2): an explicit-stack backtracking interpreter. Here the "explicit
// stack" is continuation-passing Go recursion — each OpSplit/OpGreedyLoop
// choice point is one Go call frame — with a dedicated depth counter
// (choiceDepth, distinct from the plain instruction-dispatch step count)
// standing in for the spec's hand-maintained array of (pc, sp,
// capture_snapshot) frames; see DESIGN.md for why this substitution was
// made instead of building a literal heap-allocated stack slice.
package matcher

import (
	"errors"
	"time"

	"github.com/duskvm/duskvm/regexp/syntax"
)

// ErrStackOverflow is raised when the live backtracking depth exceeds
// StackLimit (spec §4.4.2, RegexStackOverflow).
var ErrStackOverflow = errors.New("regexp: backtrack stack limit exceeded")

// ErrTimeout is raised by a Poll callback or an exceeded TimeLimit (spec
// §4.4.2/§5, RegexTimeout — distinct from the VM's own TimeLimitError so
// callers can tell a pattern-induced abort from a script-induced one).
var ErrTimeout = errors.New("regexp: matcher timed out")

// Matcher runs one compiled Program. Zero value is not usable; use New.
type Matcher struct {
	Prog *syntax.Program

	// StackLimit bounds the live nesting of backtrack choice points
	// (OpSplit/OpGreedyLoop alternatives still pending); zero means the
	// spec's documented default of 10,000.
	StackLimit int

	// PollInterval is the number of instruction dispatches between Poll
	// invocations and deadline checks; zero means the spec's documented
	// default of 100.
	PollInterval int

	// Poll, if set, is called periodically so an embedder can cancel a
	// long-running match; a non-nil return aborts with that error.
	Poll func() error

	// TimeLimit, if positive, bounds wall-clock matching time starting
	// from the first Find call.
	TimeLimit time.Duration

	input       []rune
	caps        []int
	steps       int64
	choiceDepth int
	err         error
	deadline    time.Time
}

// New returns a Matcher ready to search with prog.
func New(prog *syntax.Program) *Matcher {
	return &Matcher{Prog: prog}
}

func (m *Matcher) stackLimit() int {
	if m.StackLimit <= 0 {
		return 10000
	}
	return m.StackLimit
}

func (m *Matcher) pollInterval() int64 {
	if m.PollInterval <= 0 {
		return 100
	}
	return int64(m.PollInterval)
}

func (m *Matcher) checkBudget() error {
	if m.Poll != nil {
		if err := m.Poll(); err != nil {
			return err
		}
	}
	if !m.deadline.IsZero() && time.Now().After(m.deadline) {
		return ErrTimeout
	}
	return nil
}

// Match is one successful search: Groups[0] is the whole match, Groups[i]
// the i-th capturing group; a [2]int{-1,-1} entry means that group didn't
// participate.
type Match struct {
	Groups [][2]int
}

// Find searches input for the program's first match starting at or after
// from (spec §6.3's exec semantics). The `y` (sticky) flag restricts the
// attempt to exactly `from` instead of scanning forward. Returns (nil,
// nil) for "no match", as opposed to a non-nil error for an aborted
// search (stack overflow, timeout, or a host Poll failure).
func (m *Matcher) Find(input []rune, from int) (*Match, error) {
	m.input = input
	if m.TimeLimit > 0 {
		m.deadline = time.Now().Add(m.TimeLimit)
	}
	sticky := m.Prog.Flags.Sticky
	for start := from; start <= len(input); start++ {
		m.caps = make([]int, (m.Prog.NumCaps+1)*2)
		for i := range m.caps {
			m.caps[i] = -1
		}
		m.choiceDepth = 0
		m.err = nil

		var end int
		ok := m.run(0, start, func(sp int) bool {
			end = sp
			return true
		})
		if m.err != nil {
			return nil, m.err
		}
		if ok {
			m.caps[0] = start
			m.caps[1] = end
			return &Match{Groups: capsToGroups(m.caps)}, nil
		}
		if sticky {
			break
		}
	}
	return nil, nil
}

func capsToGroups(caps []int) [][2]int {
	out := make([][2]int, len(caps)/2)
	for i := range out {
		out[i] = [2]int{caps[2*i], caps[2*i+1]}
	}
	return out
}

// cont is invoked when the span of instructions currently being
// interpreted reaches its own OpMatch — the top-level program's final
// instruction, or a loop/lookaround sub-body's synthetic trailing OpMatch
// (see regexp/syntax's compiler, which appends one to every sub-body).
type cont func(sp int) bool

func (m *Matcher) run(pc, sp int, k cont) bool {
	if m.err != nil {
		return false
	}
	m.steps++
	if m.steps%m.pollInterval() == 0 {
		if err := m.checkBudget(); err != nil {
			m.err = err
			return false
		}
	}

	inst := &m.Prog.Insts[pc]
	switch inst.Op {
	case syntax.OpChar:
		if sp < len(m.input) && charEq(m.input[sp], inst.Rune, m.Prog.Flags.IgnoreCase) {
			return m.run(pc+1, sp+1, k)
		}
		return false
	case syntax.OpAny:
		if sp < len(m.input) && (m.Prog.Flags.DotAll || m.input[sp] != '\n') {
			return m.run(pc+1, sp+1, k)
		}
		return false
	case syntax.OpClass:
		if sp < len(m.input) && inst.Class.Contains(m.input[sp], m.Prog.Flags.IgnoreCase) {
			return m.run(pc+1, sp+1, k)
		}
		return false
	case syntax.OpBOL:
		if sp == 0 || (m.Prog.Flags.Multiline && m.input[sp-1] == '\n') {
			return m.run(pc+1, sp, k)
		}
		return false
	case syntax.OpEOL:
		if sp == len(m.input) || (m.Prog.Flags.Multiline && m.input[sp] == '\n') {
			return m.run(pc+1, sp, k)
		}
		return false
	case syntax.OpWordBoundary:
		if isWordBoundary(m.input, sp) != inst.Negate {
			return m.run(pc+1, sp, k)
		}
		return false
	case syntax.OpSave:
		old := m.caps[inst.N]
		m.caps[inst.N] = sp
		if m.run(pc+1, sp, k) {
			return true
		}
		m.caps[inst.N] = old
		return false
	case syntax.OpJump:
		return m.run(inst.X, sp, k)
	case syntax.OpSplit:
		m.choiceDepth++
		if m.choiceDepth > m.stackLimit() {
			m.err = ErrStackOverflow
			m.choiceDepth--
			return false
		}
		ok := m.run(inst.X, sp, k)
		if !ok && m.err == nil {
			ok = m.run(inst.Y, sp, k)
		}
		m.choiceDepth--
		return ok
	case syntax.OpBackref:
		start, end := m.caps[2*inst.N], m.caps[2*inst.N+1]
		if start < 0 || end < 0 {
			return m.run(pc+1, sp, k) // unmatched group: treat as empty
		}
		n := end - start
		if sp+n > len(m.input) {
			return false
		}
		for i := 0; i < n; i++ {
			if !charEq(m.input[sp+i], m.input[start+i], m.Prog.Flags.IgnoreCase) {
				return false
			}
		}
		return m.run(pc+1, sp+n, k)
	case syntax.OpMatch:
		return k(sp)
	case syntax.OpGreedyLoop:
		return m.runLoop(inst, pc, sp, 0, k)
	case syntax.OpLookaround:
		return m.runLookaround(inst, pc, sp, k)
	default:
		return false
	}
}

// runLoop interprets a greedy_loop instruction. Zero-advance detection
// (spec §4.4.2): once a repetition matches without consuming input, the
// loop stops instead of repeating the same zero-width match forever,
// guaranteeing linear-time termination for patterns like `(a*)*`.
func (m *Matcher) runLoop(inst *syntax.Inst, loopPC, sp, count int, k cont) bool {
	bodyStart := loopPC + 1
	afterLoop := loopPC + 1 + inst.BodyLen

	canMore := inst.Max < 0 || count < inst.Max
	mustMore := count < inst.Min

	tryBody := func() bool {
		return m.run(bodyStart, sp, func(newSP int) bool {
			if newSP == sp {
				return m.run(afterLoop, newSP, k)
			}
			return m.runLoop(inst, loopPC, newSP, count+1, k)
		})
	}
	tryExit := func() bool {
		return m.run(afterLoop, sp, k)
	}

	if mustMore {
		return tryBody()
	}
	if !canMore {
		return tryExit()
	}

	m.choiceDepth++
	if m.choiceDepth > m.stackLimit() {
		m.err = ErrStackOverflow
		m.choiceDepth--
		return false
	}
	var ok bool
	if inst.Lazy {
		ok = tryExit()
		if !ok && m.err == nil {
			ok = tryBody()
		}
	} else {
		ok = tryBody()
		if !ok && m.err == nil {
			ok = tryExit()
		}
	}
	m.choiceDepth--
	return ok
}

func (m *Matcher) runLookaround(inst *syntax.Inst, pc, sp int, k cont) bool {
	bodyEnd := pc + 1 + inst.BodyLen
	saved := append([]int(nil), m.caps...)
	matched := m.run(pc+1, sp, func(int) bool { return true })
	if m.err != nil {
		return false
	}
	if matched != inst.Positive {
		copy(m.caps, saved)
		return false
	}
	if !inst.Positive {
		copy(m.caps, saved)
	}
	return m.run(bodyEnd, sp, k)
}

func isWordBoundary(input []rune, sp int) bool {
	before := sp > 0 && isWordRune(input[sp-1])
	after := sp < len(input) && isWordRune(input[sp])
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func charEq(a, b rune, ignoreCase bool) bool {
	if a == b {
		return true
	}
	if !ignoreCase {
		return false
	}
	return toLowerRune(a) == toLowerRune(b)
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
