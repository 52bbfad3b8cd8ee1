package bytecode_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/vex/pkg/bytecode"
)

func TestValueKindPredicates(t *testing.T) {
	assert.True(t, bytecode.Nil.IsNil())
	assert.True(t, bytecode.True.IsBool())
	assert.True(t, bytecode.Number(1).IsNumber())
	assert.True(t, bytecode.FromObj(&bytecode.String{Chars: "x"}).IsObj())
}

func TestBoolReturnsSingletons(t *testing.T) {
	assert.Equal(t, bytecode.True, bytecode.Bool(true))
	assert.Equal(t, bytecode.False, bytecode.Bool(false))
}

func TestTruthMatchesLanguageRule(t *testing.T) {
	assert.False(t, bytecode.Truth(bytecode.Nil))
	assert.False(t, bytecode.Truth(bytecode.False))
	assert.True(t, bytecode.Truth(bytecode.True))
	assert.True(t, bytecode.Truth(bytecode.Number(0)))
	assert.True(t, bytecode.Truth(bytecode.FromObj(&bytecode.String{})))
}

func TestEqualNumbersByBitIdentityExceptNaN(t *testing.T) {
	assert.True(t, bytecode.Equal(bytecode.Number(1), bytecode.Number(1)))
	assert.False(t, bytecode.Equal(bytecode.Number(1), bytecode.Number(2)))
	nan := bytecode.Number(math.NaN())
	assert.False(t, bytecode.Equal(nan, nan))
}

func TestEqualObjectsByIdentity(t *testing.T) {
	a := &bytecode.String{Chars: "x"}
	b := &bytecode.String{Chars: "x"}

	assert.True(t, bytecode.Equal(bytecode.FromObj(a), bytecode.FromObj(a)))
	assert.False(t, bytecode.Equal(bytecode.FromObj(a), bytecode.FromObj(b)))
}

func TestEqualAcrossKindsIsFalse(t *testing.T) {
	assert.False(t, bytecode.Equal(bytecode.Number(0), bytecode.False))
	assert.False(t, bytecode.Equal(bytecode.Nil, bytecode.False))
}

func TestTypeNameForEachKind(t *testing.T) {
	assert.Equal(t, "nil", bytecode.Nil.TypeName())
	assert.Equal(t, "bool", bytecode.True.TypeName())
	assert.Equal(t, "number", bytecode.Number(1).TypeName())
	assert.Equal(t, "string", bytecode.FromObj(&bytecode.String{}).TypeName())
}

func TestIsStringDoesNotPanicOnNonObj(t *testing.T) {
	assert.False(t, bytecode.Number(1).IsString())
	assert.False(t, bytecode.Nil.IsString())
}

func TestHashStringIsStableAndDistinguishing(t *testing.T) {
	assert.Equal(t, bytecode.HashString("abc"), bytecode.HashString("abc"))
	assert.NotEqual(t, bytecode.HashString("abc"), bytecode.HashString("abd"))
}
