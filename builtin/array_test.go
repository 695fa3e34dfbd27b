package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duskvm/duskvm/lang/machine"
	"github.com/duskvm/duskvm/lang/value"
)

func newTestThread(t *testing.T) *machine.Thread {
	t.Helper()
	th := machine.NewThread()
	Install(th)
	return th
}

func TestArrSortDefaultComparesAsStrings(t *testing.T) {
	th := newTestThread(t)
	arr := value.NewArray(th.ArrayProto, []value.Value{value.Number(10), value.Number(2), value.Number(1)})
	_, err := arrSort(th, arr, nil)
	require.NoError(t, err)
	require.Equal(t, []value.Value{value.Number(1), value.Number(10), value.Number(2)}, arr.Elements())
}

func TestArrSortWithCompareFn(t *testing.T) {
	th := newTestThread(t)
	arr := value.NewArray(th.ArrayProto, []value.Value{value.Number(10), value.Number(2), value.Number(1)})
	cmp := machine.NewBuiltin("cmp", func(th *machine.Thread, this value.Value, args []value.Value) (value.Value, error) {
		a := float64(args[0].(value.Number))
		b := float64(args[1].(value.Number))
		return value.Number(a - b), nil
	})
	_, err := arrSort(th, arr, []value.Value{cmp})
	require.NoError(t, err)
	require.Equal(t, []value.Value{value.Number(1), value.Number(2), value.Number(10)}, arr.Elements())
}

func TestArrSpliceRemovesAndInserts(t *testing.T) {
	th := newTestThread(t)
	arr := value.NewArray(th.ArrayProto, []value.Value{value.Number(1), value.Number(2), value.Number(3), value.Number(4)})
	removed, err := arrSplice(th, arr, []value.Value{value.Number(1), value.Number(2), value.String("a"), value.String("b")})
	require.NoError(t, err)

	removedArr, ok := removed.(*value.Object)
	require.True(t, ok)
	require.Equal(t, []value.Value{value.Number(2), value.Number(3)}, removedArr.Elements())
	require.Equal(t,
		[]value.Value{value.Number(1), value.String("a"), value.String("b"), value.Number(4)},
		arr.Elements(),
	)
}

func TestArrSpliceNegativeStart(t *testing.T) {
	th := newTestThread(t)
	arr := value.NewArray(th.ArrayProto, []value.Value{value.Number(1), value.Number(2), value.Number(3)})
	removed, err := arrSplice(th, arr, []value.Value{value.Number(-1)})
	require.NoError(t, err)
	removedArr := removed.(*value.Object)
	require.Equal(t, []value.Value{value.Number(3)}, removedArr.Elements())
	require.Equal(t, []value.Value{value.Number(1), value.Number(2)}, arr.Elements())
}

func TestArrReverseAndIncludes(t *testing.T) {
	th := newTestThread(t)
	arr := value.NewArray(th.ArrayProto, []value.Value{value.Number(1), value.Number(2), value.Number(3)})
	_, err := arrReverse(th, arr, nil)
	require.NoError(t, err)
	require.Equal(t, []value.Value{value.Number(3), value.Number(2), value.Number(1)}, arr.Elements())

	ok, err := arrIncludes(th, arr, []value.Value{value.Number(2)})
	require.NoError(t, err)
	require.Equal(t, value.True, ok)
}
