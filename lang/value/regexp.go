package value

import "github.com/duskvm/duskvm/regexp/syntax"

// Regexp is a compiled /pattern/flags literal or `new RegExp(...)` result
// (spec §6.3). Prog is nil only for a Regexp built from a pattern that
// failed to compile, which RegExp's constructor prevents by erroring
// before ever returning one; every live Regexp value carries a Prog.
type Regexp struct {
	Prog      *syntax.Program
	Source    string
	FlagStr   string
	LastIndex int
}

func (r *Regexp) String() string { return "/" + r.Source + "/" + r.FlagStr }
func (*Regexp) Type() string     { return "object" }
func (*Regexp) Truth() bool      { return true }
