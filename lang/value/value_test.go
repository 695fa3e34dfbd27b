package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumberString(t *testing.T) {
	require.Equal(t, "NaN", Number(nan()).String())
	require.Equal(t, "Infinity", Number(inf(1)).String())
	require.Equal(t, "-Infinity", Number(inf(-1)).String())
	require.Equal(t, "1.5", Number(1.5).String())
	require.Equal(t, "3", Number(3).String())
}

func TestNumberTruth(t *testing.T) {
	require.False(t, Number(0).Truth())
	require.False(t, Number(nan()).Truth())
	require.True(t, Number(1).Truth())
	require.True(t, Number(-1).Truth())
}

func TestNumberIsInt(t *testing.T) {
	require.True(t, Number(3).IsInt())
	require.False(t, Number(3.5).IsInt())
	require.False(t, Number(inf(1)).IsInt())
}

func TestStringTruth(t *testing.T) {
	require.False(t, String("").Truth())
	require.True(t, String("x").Truth())
}

func TestBoolCanonical(t *testing.T) {
	require.Same(t, &True, &True)
	require.Equal(t, True, Bool(true))
	require.Equal(t, False, Bool(false))
}

func TestNullTypeofIsObject(t *testing.T) {
	require.Equal(t, "object", NullValue.Type())
	require.False(t, NullValue.Truth())
}

func nan() float64  { var z float64; return z / z }
func inf(sign int) float64 {
	one := 1.0
	zero := 0.0
	if sign < 0 {
		one = -1.0
	}
	return one / zero
}
