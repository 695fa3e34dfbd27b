package syntax

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileSimple(t *testing.T) {
	prog, err := Compile("ab+c", "")
	require.NoError(t, err)
	require.Equal(t, 0, prog.NumCaps)
	last := prog.Insts[len(prog.Insts)-1]
	require.Equal(t, OpMatch, last.Op)
}

func TestCompileCaptures(t *testing.T) {
	prog, err := Compile(`(a)(?<b>b)`, "")
	require.NoError(t, err)
	require.Equal(t, 2, prog.NumCaps)
	require.Equal(t, 2, prog.Names["b"])
}

func TestCompileFlags(t *testing.T) {
	prog, err := Compile("a", "gimsuy")
	require.NoError(t, err)
	require.True(t, prog.Flags.Global)
	require.True(t, prog.Flags.IgnoreCase)
	require.True(t, prog.Flags.Multiline)
	require.True(t, prog.Flags.DotAll)
	require.True(t, prog.Flags.Unicode)
	require.True(t, prog.Flags.Sticky)
}

func TestCompileInvalidFlag(t *testing.T) {
	_, err := Compile("a", "z")
	require.Error(t, err)
}

func TestCompileUnbalancedParen(t *testing.T) {
	_, err := Compile("(a", "")
	require.Error(t, err)

	_, err = Compile("a)", "")
	require.Error(t, err)
}

func TestCharClassContainsFoldCase(t *testing.T) {
	cc := &CharClass{Ranges: []Range{{'a', 'z'}}}
	require.True(t, cc.Contains('a', false))
	require.False(t, cc.Contains('A', false))
	require.True(t, cc.Contains('A', true))
}

func TestCharClassNegate(t *testing.T) {
	cc := &CharClass{Ranges: []Range{{'a', 'z'}}, Negate: true}
	require.False(t, cc.Contains('a', false))
	require.True(t, cc.Contains('0', false))
}

func TestGreedyLoopBodyLen(t *testing.T) {
	prog, err := Compile("(ab)*", "")
	require.NoError(t, err)
	var loop *Inst
	for i := range prog.Insts {
		if prog.Insts[i].Op == OpGreedyLoop {
			loop = &prog.Insts[i]
			break
		}
	}
	require.NotNil(t, loop)
	require.Equal(t, 0, loop.Min)
	require.Equal(t, -1, loop.Max)
}
