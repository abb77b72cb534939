package fsvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithIntPromotion(t *testing.T) {
	v, err := Add(Int(1), Int(2))
	require.NoError(t, err)
	assert.Equal(t, Int(3), v)

	v, err = Add(Int(1), Float(2.5))
	require.NoError(t, err)
	assert.Equal(t, Float(3.5), v)

	v, err = Div(Int(7), Int(2))
	require.NoError(t, err)
	assert.Equal(t, Int(3), v, "integer division truncates toward zero")
}

func TestArithTypeMismatch(t *testing.T) {
	_, err := Add(Str("a"), Int(1))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestEqualCrossPromotion(t *testing.T) {
	eq, err := Equal(Int(2), Float(2.0))
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(Bool(true), Bool(true))
	require.NoError(t, err)
	assert.True(t, eq)

	_, err = Equal(Bool(true), Int(1))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestCompareOrdering(t *testing.T) {
	cmp, err := Compare(Int(1), Int(2))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = Compare(Str("b"), Str("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(None, nil))
	assert.False(t, Truthy(Bool(false), nil))
	assert.False(t, Truthy(Int(0), nil))
	assert.True(t, Truthy(Int(1), nil))
	assert.False(t, Truthy(Float(0), nil))
	assert.True(t, Truthy(Float(0.1), nil))
	assert.False(t, Truthy(Str(""), nil))
	assert.True(t, Truthy(Str("x"), nil))

	listPtr := Ptr{VarID: 42}
	lookup := func(p Ptr) (Value, bool) {
		if p == listPtr {
			return ListOf(nil), true
		}
		return Value{}, false
	}
	assert.False(t, Truthy(PtrVal(listPtr), lookup), "empty list is falsy")

	nonEmpty := Ptr{VarID: 43}
	lookup2 := func(p Ptr) (Value, bool) {
		if p == nonEmpty {
			return ListOf([]Value{Int(1)}), true
		}
		return Value{}, false
	}
	assert.True(t, Truthy(PtrVal(nonEmpty), lookup2))
}
