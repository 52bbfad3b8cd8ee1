package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/vex/pkg/bytecode"
)

func TestHeaderAccessorsRoundTrip(t *testing.T) {
	s := &bytecode.String{Chars: "x"}
	assert.False(t, bytecode.IsMarked(s))

	bytecode.SetMarked(s, true)
	assert.True(t, bytecode.IsMarked(s))

	other := &bytecode.String{Chars: "y"}
	bytecode.SetNextObj(s, other)
	assert.Same(t, other, bytecode.NextObj(s))
}

func TestObjTypeDiscriminatesEveryVariant(t *testing.T) {
	assert.Equal(t, bytecode.ObjTypeString, bytecode.Type(&bytecode.String{}))
	assert.Equal(t, bytecode.ObjTypeFunction, bytecode.Type(&bytecode.Function{}))
	assert.Equal(t, bytecode.ObjTypeClosure, bytecode.Type(&bytecode.Closure{}))
	assert.Equal(t, bytecode.ObjTypeUpvalue, bytecode.Type(&bytecode.Upvalue{}))
	assert.Equal(t, bytecode.ObjTypeNative, bytecode.Type(&bytecode.Native{}))
	assert.Equal(t, bytecode.ObjTypeInstance, bytecode.Type(bytecode.NewInstance("Error")))
}

func TestFunctionDisplayNameFallsBackToScript(t *testing.T) {
	anon := &bytecode.Function{}
	assert.Equal(t, "script", anon.DisplayName())

	named := &bytecode.Function{Name: &bytecode.String{Chars: "add"}}
	assert.Equal(t, "add", named.DisplayName())
}

func TestUpvalueOpenGetSetWritesThroughLocation(t *testing.T) {
	slot := bytecode.Number(1)
	up := &bytecode.Upvalue{Location: &slot}

	assert.True(t, up.IsOpen())
	assert.Equal(t, float64(1), up.Get().AsNumber())

	up.Set(bytecode.Number(2))
	assert.Equal(t, float64(2), slot.AsNumber(), "Set on an open upvalue must write through to the stack slot")
}

func TestUpvalueCloseDetachesFromLocation(t *testing.T) {
	slot := bytecode.Number(9)
	up := &bytecode.Upvalue{Location: &slot, Next: &bytecode.Upvalue{}}

	up.Close()

	assert.False(t, up.IsOpen())
	assert.Nil(t, up.Next)
	assert.Equal(t, float64(9), up.Get().AsNumber())

	up.Set(bytecode.Number(10))
	assert.Equal(t, float64(9), slot.AsNumber(), "Set on a closed upvalue must not write back through the old slot")
	assert.Equal(t, float64(10), up.Get().AsNumber())
}

func TestInstanceFieldAccess(t *testing.T) {
	inst := bytecode.NewInstance("Error")

	_, ok := inst.GetField("message")
	assert.False(t, ok)

	inst.SetField("message", bytecode.FromObj(&bytecode.String{Chars: "boom"}))
	v, ok := inst.GetField("message")
	require := assert.New(t)
	require.True(ok)
	require.Equal("boom", v.AsString().Chars)
}

func TestGoStringFormatsEachKind(t *testing.T) {
	assert.Equal(t, "nil", bytecode.Nil.GoString())
	assert.Equal(t, "true", bytecode.True.GoString())
	assert.Equal(t, "3", bytecode.Number(3).GoString())
	assert.Equal(t, "hi", bytecode.FromObj(&bytecode.String{Chars: "hi"}).GoString())

	fn := &bytecode.Function{Name: &bytecode.String{Chars: "add"}}
	assert.Equal(t, "<fn add>", bytecode.FromObj(fn).GoString())

	closure := &bytecode.Closure{Fn: fn}
	assert.Equal(t, "<fn add>", bytecode.FromObj(closure).GoString())

	nat := &bytecode.Native{Name: "clock"}
	assert.Equal(t, "<native clock>", bytecode.FromObj(nat).GoString())

	inst := bytecode.NewInstance("Error")
	assert.Equal(t, "<Error instance>", bytecode.FromObj(inst).GoString())
}
