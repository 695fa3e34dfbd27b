// Package duskvm is the embedding surface: a Context owns one isolated
// script heap, global object and resource budget (spec §5, §6.1), compiles
// source text with lang/compiler and runs it on a lang/machine.Thread.
// Grounded on the teacher's lang/machine.Thread + RunProgram/Call plumbing,
// split here into the four spec-mandated error kinds instead of the
// teacher's single EvalError wrapper.
package duskvm

import (
	"context"
	"io"
	"time"

	"github.com/duskvm/duskvm/builtin"
	"github.com/duskvm/duskvm/lang/compiler"
	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/token"
	"github.com/duskvm/duskvm/lang/value"
)

// Context configures and runs scripts. Fields are plain struct fields set
// before the first Eval/Get/Set call, mirroring the teacher's
// machine.Thread configuration style rather than a functional-options API
// (see SPEC_FULL.md §4.3) — the teacher has no config/env loader of its
// own to follow here, so Context stays programmatic.
type Context struct {
	// MemoryLimit caps approximate script-allocation bytes; 0 = unlimited.
	MemoryLimit int64
	// TimeLimit caps wall-clock script execution time; 0 = unlimited.
	TimeLimit time.Duration
	// PollInterval is how many bytecode instructions elapse between budget
	// checks (step/time/host poll); 0 defaults to 100.
	PollInterval int64
	// MaxCallStackDepth caps recursion; 0 defaults to 2000.
	MaxCallStackDepth int
	// Poll, if set, is called during budget checks so an embedder can
	// cancel a running script for its own reasons (spec §5).
	Poll func() error

	// RegexStackLimit/RegexPollInterval/RegexTimeLimit/RegexPoll configure
	// every RegExp a script constructs (spec §6.3 "Host callers may
	// construct a regex with a custom poll_callback, stack_limit, and
	// poll_interval"); zero/nil fall back to regexp/matcher's defaults.
	RegexStackLimit   int
	RegexPollInterval int
	RegexTimeLimit    time.Duration
	RegexPoll         func() error

	Stdout io.Writer
	Stderr io.Writer

	th   *machine.Thread
	fset *token.FileSet
}

// New returns a ready-to-use Context with its own isolated global object,
// prototypes installed for the builtin protocol (spec §4.5).
func New() *Context {
	c := &Context{fset: token.NewFileSet()}
	c.th = machine.NewThread()
	builtin.Install(c.th)
	return c
}

func (c *Context) thread() *machine.Thread {
	if c.th == nil {
		c.th = machine.NewThread()
		builtin.Install(c.th)
	}
	c.th.MemoryLimit = c.MemoryLimit
	c.th.TimeLimit = c.TimeLimit
	c.th.PollInterval = c.PollInterval
	c.th.Poll = c.Poll
	if c.MaxCallStackDepth > 0 {
		c.th.MaxCallDepth = c.MaxCallStackDepth
	}
	if c.Stdout != nil {
		c.th.Stdout = c.Stdout
	}
	if c.Stderr != nil {
		c.th.Stderr = c.Stderr
	}
	c.th.RegexStackLimit = c.RegexStackLimit
	c.th.RegexPollInterval = c.RegexPollInterval
	c.th.RegexTimeLimit = c.RegexTimeLimit
	c.th.RegexPoll = c.RegexPoll
	return c.th
}

// SyntaxError wraps a compile-time failure (spec §6.1).
type SyntaxError struct{ err error }

func (e *SyntaxError) Error() string { return "syntax error: " + e.err.Error() }
func (e *SyntaxError) Unwrap() error { return e.err }

// RuntimeError wraps an uncaught script-level thrown value (spec §6.1).
type RuntimeError struct{ Value value.Value }

func (e *RuntimeError) Error() string { return "uncaught exception: " + e.Value.String() }

// MemoryLimitError is raised when a script exceeds Context.MemoryLimit; not
// catchable by script-level try/catch.
type MemoryLimitError struct{ err error }

func (e *MemoryLimitError) Error() string { return e.err.Error() }

// TimeLimitError is raised when a script exceeds Context.TimeLimit, its
// PollInterval-scheduled host Poll callback, or the passed-in context's own
// deadline; not catchable by script-level try/catch.
type TimeLimitError struct{ err error }

func (e *TimeLimitError) Error() string { return e.err.Error() }

// Eval compiles and runs src (named name, for diagnostics) against this
// context's persistent global state, returning its completion value: the
// last top-level expression statement's value, or undefined.
func (c *Context) Eval(ctx context.Context, name, src string) (value.Value, error) {
	mod, err := compiler.Compile(c.fset, name, src)
	if err != nil {
		return value.Undef, &SyntaxError{err: err}
	}
	th := c.thread()
	v, err := th.RunProgram(ctx, mod)
	if err != nil {
		return value.Undef, classifyRunErr(err)
	}
	return v, nil
}

func classifyRunErr(err error) error {
	switch e := err.(type) {
	case *machine.ThrownValue:
		return &RuntimeError{Value: e.Val}
	case *machine.BudgetError:
		switch e.Reason {
		case "memory limit exceeded":
			return &MemoryLimitError{err: e}
		case "time limit exceeded", "context canceled", "context deadline exceeded":
			return &TimeLimitError{err: e}
		case "call stack depth exceeded", "step limit exceeded":
			return e // uncatchable, but not one of the four named kinds
		default:
			return &TimeLimitError{err: e} // a host Poll callback's abort, reported with its own error text
		}
	default:
		return err
	}
}

// Get reads a property of the global object.
func (c *Context) Get(name string) (value.Value, error) {
	return c.thread().Globals.Attr(name)
}

// Set writes a host value as a global: primitives convert by value, and
// host callables become callable objects whose invocation re-enters host
// code synchronously (spec §6.1).
func (c *Context) Set(name string, v any) error {
	return c.thread().Globals.SetAttr(name, ToValue(v))
}

// ToValue converts a host Go value into a script-level value.Value, per
// the host/script bridge named in spec §6.1. Unrecognised types become
// value.Undefined rather than panicking, since a host embedding an
// unsupported type is a programming mistake to surface as a wrong result,
// not a crash of the whole process.
func ToValue(v any) value.Value {
	switch x := v.(type) {
	case nil:
		return value.NullValue
	case value.Value:
		return x
	case bool:
		return value.Bool(x)
	case string:
		return value.String(x)
	case float64:
		return value.Number(x)
	case int:
		return value.Number(float64(x))
	case func(*machine.Thread, value.Value, []value.Value) (value.Value, error):
		return machine.NewBuiltin("native", x)
	default:
		return value.Undef
	}
}
