package duskvm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskvm/duskvm/lang/value"
)

func TestEvalArithmeticCompletionValue(t *testing.T) {
	c := New()
	v, err := c.Eval(context.Background(), "test", "1 + 2 * 3;")
	require.NoError(t, err)
	require.Equal(t, value.Number(7), v)
}

func TestEvalUndefinedCompletionForDeclaration(t *testing.T) {
	c := New()
	v, err := c.Eval(context.Background(), "test", "var x = 1;")
	require.NoError(t, err)
	require.Equal(t, value.Undef, v)
}

func TestEvalVarReassignmentWithinOneScript(t *testing.T) {
	c := New()
	v, err := c.Eval(context.Background(), "test", "var counter = 0; counter = counter + 1; counter;")
	require.NoError(t, err)
	require.Equal(t, value.Number(1), v)
}

func TestEvalSyntaxErrorIsClassified(t *testing.T) {
	c := New()
	_, err := c.Eval(context.Background(), "test", "var = ;")
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
}

func TestEvalUncaughtThrowIsClassified(t *testing.T) {
	c := New()
	_, err := c.Eval(context.Background(), "test", `throw "boom";`)
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "boom", re.Value.String())
}

func TestEvalTryCatchRecoversFromThrow(t *testing.T) {
	c := New()
	v, err := c.Eval(context.Background(), "test", `
		var caught = 0;
		try {
			throw "x";
		} catch (e) {
			caught = 1;
		}
		caught;
	`)
	require.NoError(t, err)
	require.Equal(t, value.Number(1), v)
}

func TestEvalTimeLimitExceeded(t *testing.T) {
	c := New()
	c.TimeLimit = 10 * time.Millisecond
	_, err := c.Eval(context.Background(), "test", "while (true) {}")
	require.Error(t, err)
	var te *TimeLimitError
	require.ErrorAs(t, err, &te)
}

func TestEvalRegexLiteralTest(t *testing.T) {
	c := New()
	v, err := c.Eval(context.Background(), "test", `/ab+c/.test("xxabbbcxx");`)
	require.NoError(t, err)
	require.Equal(t, value.True, v)
}

func TestSetAndGetGlobal(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("host_value", 42.0))
	v, err := c.Eval(context.Background(), "test", "host_value + 1;")
	require.NoError(t, err)
	require.Equal(t, value.Number(43), v)
}
