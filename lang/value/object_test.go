package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectAttrSetGet(t *testing.T) {
	o := NewObject(nil)
	require.NoError(t, o.SetAttr("a", Number(1)))
	v, err := o.Attr("a")
	require.NoError(t, err)
	require.Equal(t, Number(1), v)
}

func TestObjectAttrMissingReturnsUndefined(t *testing.T) {
	o := NewObject(nil)
	v, err := o.Attr("nope")
	require.NoError(t, err)
	require.Equal(t, Undef, v)
}

func TestObjectPrototypeChain(t *testing.T) {
	proto := NewObject(nil)
	require.NoError(t, proto.SetAttr("greeting", String("hi")))
	child := NewObject(proto)
	v, err := child.Attr("greeting")
	require.NoError(t, err)
	require.Equal(t, String("hi"), v)
}

func TestObjectAttrNamesPreservesInsertionOrder(t *testing.T) {
	o := NewObject(nil)
	require.NoError(t, o.SetAttr("z", Number(1)))
	require.NoError(t, o.SetAttr("a", Number(2)))
	require.NoError(t, o.SetAttr("m", Number(3)))
	require.Equal(t, []string{"z", "a", "m"}, o.AttrNames())
}

func TestObjectDeleteAttr(t *testing.T) {
	o := NewObject(nil)
	require.NoError(t, o.SetAttr("a", Number(1)))
	require.True(t, o.DeleteAttr("a"))
	require.False(t, o.DeleteAttr("a"))
	v, _ := o.Attr("a")
	require.Equal(t, Undef, v)
}

func TestObjectFrozenRejectsSetAttr(t *testing.T) {
	o := NewObject(nil)
	o.Freeze()
	require.True(t, o.Frozen())
	err := o.SetAttr("a", Number(1))
	require.Error(t, err)
}

func TestArrayLengthAndIndex(t *testing.T) {
	a := NewArray(nil, []Value{Number(1), Number(2), Number(3)})
	require.True(t, a.IsArray())
	require.Equal(t, 3, a.Len())

	v, err := a.Index(1)
	require.NoError(t, err)
	require.Equal(t, Number(2), v)

	require.NoError(t, a.SetIndex(5, Number(9)))
	require.Equal(t, 6, a.Len())
	v, err = a.Index(5)
	require.NoError(t, err)
	require.Equal(t, Number(9), v)

	v, err = a.Index(4)
	require.NoError(t, err)
	require.Equal(t, Undef, v)
}

func TestArraySetLengthTruncates(t *testing.T) {
	a := NewArray(nil, []Value{Number(1), Number(2), Number(3)})
	require.NoError(t, a.SetAttr("length", Number(1)))
	require.Equal(t, 1, a.Len())
}

func TestArrayRejectsNonArrayIndexKeyLeadingZero(t *testing.T) {
	a := NewArray(nil, []Value{Number(1)})
	require.NoError(t, a.SetAttr("01", String("not an index")))
	v, err := a.Attr("01")
	require.NoError(t, err)
	require.Equal(t, String("not an index"), v)
	require.Equal(t, 1, a.Len()) // stored as a named property, not a dense element
}
