package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskvm/duskvm/regexp/syntax"
)

func find(t *testing.T, pattern, flags, input string) *Match {
	t.Helper()
	prog, err := syntax.Compile(pattern, flags)
	require.NoError(t, err)
	m := New(prog)
	match, err := m.Find([]rune(input), 0)
	require.NoError(t, err)
	return match
}

func TestLiteralMatch(t *testing.T) {
	m := find(t, "abc", "", "xxabcyy")
	require.NotNil(t, m)
	require.Equal(t, [2]int{2, 5}, m.Groups[0])
}

func TestNoMatch(t *testing.T) {
	m := find(t, "abc", "", "xyz")
	require.Nil(t, m)
}

func TestAlternation(t *testing.T) {
	m := find(t, "cat|dog", "", "I have a dog")
	require.NotNil(t, m)
	require.Equal(t, "dog", string([]rune("I have a dog")[m.Groups[0][0]:m.Groups[0][1]]))
}

func TestCapturingGroups(t *testing.T) {
	prog, err := syntax.Compile(`(\d+)-(\d+)`, "")
	require.NoError(t, err)
	m := New(prog)
	input := []rune("order 12-34 please")
	match, err := m.Find(input, 0)
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, "12", string(input[match.Groups[1][0]:match.Groups[1][1]]))
	require.Equal(t, "34", string(input[match.Groups[2][0]:match.Groups[2][1]]))
}

func TestQuantifierBounds(t *testing.T) {
	require.NotNil(t, find(t, "a{2,4}", "", "aaa"))
	require.Nil(t, find(t, "^a{2,4}$", "", "a"))
}

func TestIgnoreCase(t *testing.T) {
	require.NotNil(t, find(t, "abc", "i", "ABC"))
}

func TestAnchors(t *testing.T) {
	require.NotNil(t, find(t, "^abc$", "", "abc"))
	require.Nil(t, find(t, "^abc$", "", "xabc"))
}

func TestWordBoundary(t *testing.T) {
	require.NotNil(t, find(t, `\bcat\b`, "", "a cat sat"))
	require.Nil(t, find(t, `\bcat\b`, "", "concatenate"))
}

func TestBackreference(t *testing.T) {
	require.NotNil(t, find(t, `(\w+) \1`, "", "hello hello"))
	require.Nil(t, find(t, `(\w+) \1`, "", "hello world"))
}

func TestLookahead(t *testing.T) {
	require.NotNil(t, find(t, `foo(?=bar)`, "", "foobar"))
	require.Nil(t, find(t, `foo(?=bar)`, "", "foobaz"))
}

func TestNegativeLookahead(t *testing.T) {
	require.Nil(t, find(t, `foo(?!bar)`, "", "foobar"))
	require.NotNil(t, find(t, `foo(?!bar)`, "", "foobaz"))
}

// TestZeroAdvanceLoopTerminatesQuickly guards the spec's linear-time
// requirement for quantifier bodies that can match zero-width: without
// zero-advance detection, `(a*)*b` against a run of 'a's ending in a
// non-matching 'c' can blow up exponentially in a naive backtracking matcher.
func TestZeroAdvanceLoopTerminatesQuickly(t *testing.T) {
	prog, err := syntax.Compile(`(a*)*b`, "")
	require.NoError(t, err)
	m := New(prog)
	input := make([]rune, 0, 40)
	for i := 0; i < 35; i++ {
		input = append(input, 'a')
	}
	input = append(input, 'c') // never reaches 'b': forces full loop exhaustion

	done := make(chan struct{})
	go func() {
		_, _ = m.Find(input, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("zero-advance loop did not terminate quickly")
	}
}

func TestCatastrophicPatternTimesOut(t *testing.T) {
	prog, err := syntax.Compile("(a+)+b", "")
	require.NoError(t, err)
	m := New(prog)
	m.TimeLimit = 200 * time.Millisecond

	input := make([]rune, 0, 33)
	for i := 0; i < 30; i++ {
		input = append(input, 'a')
	}
	input = append(input, 'c')

	start := time.Now()
	_, err = m.Find(input, 0)
	elapsed := time.Since(start)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, elapsed, 2*time.Second)
}

func TestStickyFlagAnchorsAtFrom(t *testing.T) {
	prog, err := syntax.Compile("b", "y")
	require.NoError(t, err)
	m := New(prog)
	match, err := m.Find([]rune("abc"), 0)
	require.NoError(t, err)
	require.Nil(t, match) // sticky: must match exactly at from=0, "a" != "b"

	match, err = m.Find([]rune("abc"), 1)
	require.NoError(t, err)
	require.NotNil(t, match)
}
