package machine

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/duskvm/duskvm/lang/compiler"
	"github.com/duskvm/duskvm/lang/value"
	"github.com/duskvm/duskvm/regexp/syntax"
)

// Thread is one execution context: its call stack, its budget
// (step/time/recursion limits), the global object bindings resolve
// against, and the I/O streams builtins write to. Grounded on the
// teacher's lang/machine/thread.go.
type Thread struct {
	Name   string
	Stdout io.Writer
	Stderr io.Writer

	Globals *value.Object

	// MaxSteps caps the number of bytecode instructions a single Run may
	// execute; zero means unlimited. Checked every pollInterval steps
	// alongside the wall-clock deadline (spec §5 "Resource limiting").
	MaxSteps     int64
	TimeLimit    time.Duration
	PollInterval int64 // instructions between budget checks; 0 defaults to 100
	MaxCallDepth int

	// MemoryLimit caps the approximate number of bytes the script's own
	// allocations (objects, arrays, closures) may consume; zero means
	// unlimited. Charged at the few allocation sites the machine controls
	// directly (spec §5 "Resource limiting" — memory budget decremented per
	// allocation); property/array growth on an already-allocated object is
	// not separately metered, an intentional approximation.
	MemoryLimit int64
	allocBytes  int64

	// RegexStackLimit/RegexPollInterval/RegexTimeLimit/RegexPoll configure
	// every regexp/matcher.Matcher the RegExp builtin constructs (spec
	// §6.3 "Host callers may construct a regex with a custom
	// poll_callback, stack_limit, and poll_interval"); zero/nil fields
	// fall back to regexp/matcher's own defaults.
	RegexStackLimit   int
	RegexPollInterval int
	RegexTimeLimit    time.Duration
	RegexPoll         func() error

	// Poll, if set, is called every PollInterval instructions in addition
	// to the builtin step/time checks, letting an embedder cancel a
	// running script (spec §5).
	Poll func() error

	steps     int64
	deadline  time.Time
	cancelled atomic.Bool
	ctx       context.Context

	callStack []*frame

	// ctorProtos backs the `new` operator and instanceof: each closure used
	// as a constructor gets one stable prototype object, created lazily and
	// shared by every instance it constructs (spec §4.3.1 construct
	// protocol), instead of a fresh unlinked object per call.
	ctorProtos map[*compiler.Funcode]*value.Object

	// ObjectProto/ArrayProto/StringProto/NumberProto/BooleanProto back the
	// builtin protocol (spec §4.5): object/array literals link against
	// them at creation, and property lookup on the String/Number/Boolean
	// primitives falls back to the matching proto for method dispatch
	// (e.g. "abc".toUpperCase()). Left nil on a bare Thread with no
	// builtin package installed, in which case literals get an unlinked
	// prototype and primitive method calls simply miss.
	ObjectProto  *value.Object
	ArrayProto   *value.Object
	StringProto  *value.Object
	NumberProto  *value.Object
	BooleanProto *value.Object
	RegExpProto  *value.Object

	// regexCache memoizes regexp/syntax.Compile per regex literal (keyed
	// by its *compiler.CompiledRegexp, one per literal in the module), so
	// a literal inside a loop body or a function called repeatedly
	// compiles its pattern only once.
	regexCache map[*compiler.CompiledRegexp]*syntax.Program
}

// compileRegexp returns (compiling and caching if necessary) the Program
// for re, or the *syntax.Error Compile produced.
func (th *Thread) compileRegexp(re *compiler.CompiledRegexp) (*syntax.Program, error) {
	if th.regexCache == nil {
		th.regexCache = make(map[*compiler.CompiledRegexp]*syntax.Program)
	}
	if prog, ok := th.regexCache[re]; ok {
		return prog, nil
	}
	prog, err := syntax.Compile(re.Pattern, re.Flags)
	if err != nil {
		return nil, err
	}
	th.regexCache[re] = prog
	return prog, nil
}

// protoFor returns (creating if necessary) the prototype object shared by
// every instance cl constructs.
func (th *Thread) protoFor(cl *Closure) *value.Object {
	if th.ctorProtos == nil {
		th.ctorProtos = make(map[*compiler.Funcode]*value.Object)
	}
	p, ok := th.ctorProtos[cl.Funcode]
	if !ok {
		p = value.NewObject(nil)
		th.ctorProtos[cl.Funcode] = p
	}
	return p
}

// NewThread returns a Thread ready to run programs, with a fresh empty
// global object.
func NewThread() *Thread {
	return &Thread{
		Globals:      value.NewObject(nil),
		PollInterval: 100,
		MaxCallDepth: 2000,
	}
}

// RuntimeError wraps a script-level thrown value as a Go error, carrying
// the frame stack active at the moment of the throw for diagnostics.
type RuntimeError struct {
	Value  value.Value
	Pos    string
	Frames []string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: uncaught %s", e.Pos, e.Value.String())
}

// BudgetError is raised when a script exceeds MaxSteps, TimeLimit, or a
// host Poll callback's own limit; it is deliberately NOT catchable by
// script-level try/catch (spec §5), unlike RuntimeError.
type BudgetError struct {
	Reason string
}

func (e *BudgetError) Error() string { return "budget exceeded: " + e.Reason }

// charge accounts n more bytes against MemoryLimit, returning a BudgetError
// once the limit is crossed. A zero MemoryLimit never charges, so Threads
// that don't set one pay nothing for the bookkeeping beyond the branch.
func (th *Thread) charge(n int64) error {
	if th.MemoryLimit <= 0 {
		return nil
	}
	th.allocBytes += n
	if th.allocBytes > th.MemoryLimit {
		return &BudgetError{Reason: "memory limit exceeded"}
	}
	return nil
}

// RunProgram executes mod's toplevel code against this thread's globals
// and returns the completion value (the last expression statement's
// value, or undefined).
func (th *Thread) RunProgram(ctx context.Context, mod *compiler.Module) (value.Value, error) {
	th.ctx = ctx
	cl := &Closure{Funcode: mod.Toplevel}
	if th.TimeLimit > 0 {
		th.deadline = time.Now().Add(th.TimeLimit)
	}
	return th.call(cl, value.Undef, nil)
}

// Call invokes fn (a Closure or Builtin) with the given this-binding and
// arguments, as a script-level CALL/CALL_METHOD/CALL_CTOR instruction or a
// builtin calling back into script code would.
func (th *Thread) Call(fn value.Value, this value.Value, args []value.Value) (value.Value, error) {
	switch f := fn.(type) {
	case *Closure:
		return th.call(f, this, args)
	case *Builtin:
		return f.Fn(th, this, args)
	default:
		return value.Undef, &value.TypeError{Msg: fmt.Sprintf("%s is not a function", fn.Type())}
	}
}

func (th *Thread) call(cl *Closure, this value.Value, args []value.Value) (value.Value, error) {
	if len(th.callStack) >= th.maxCallDepth() {
		return value.Undef, &BudgetError{Reason: "call stack depth exceeded"}
	}
	fr := newFrame(cl, this, args)
	th.callStack = append(th.callStack, fr)
	defer func() { th.callStack = th.callStack[:len(th.callStack)-1] }()
	return th.run(fr)
}

func (th *Thread) maxCallDepth() int {
	if th.MaxCallDepth <= 0 {
		return 2000
	}
	return th.MaxCallDepth
}

func (th *Thread) pollInterval() int64 {
	if th.PollInterval <= 0 {
		return 100
	}
	return th.PollInterval
}

// checkBudget runs every pollInterval instructions (called from the run
// loop in machine.go); it never allocates on the fast path where nothing
// is exceeded.
func (th *Thread) checkBudget() error {
	if th.ctx != nil {
		select {
		case <-th.ctx.Done():
			return &BudgetError{Reason: th.ctx.Err().Error()}
		default:
		}
	}
	if th.MaxSteps > 0 && th.steps > th.MaxSteps {
		return &BudgetError{Reason: "step limit exceeded"}
	}
	if !th.deadline.IsZero() && time.Now().After(th.deadline) {
		return &BudgetError{Reason: "time limit exceeded"}
	}
	if th.Poll != nil {
		if err := th.Poll(); err != nil {
			return &BudgetError{Reason: err.Error()}
		}
	}
	return nil
}
