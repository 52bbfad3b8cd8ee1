package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vex/pkg/bytecode"
)

func TestWriteIndexUsesInlineFormBelowThreshold(t *testing.T) {
	var c bytecode.Chunk
	err := c.WriteIndex(bytecode.OpConstant, 255, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(bytecode.OpConstant), 255}, c.Code)
}

func TestWriteIndexSwitchesToWideAtThreshold(t *testing.T) {
	var c bytecode.Chunk
	err := c.WriteIndex(bytecode.OpConstant, bytecode.MaxInlineIndex, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		byte(bytecode.OpWide), byte(bytecode.OpConstant),
		0, 1, 0,
	}, c.Code)
}

func TestWriteIndexRejectsIndexBeyondWideRange(t *testing.T) {
	var c bytecode.Chunk
	err := c.WriteIndex(bytecode.OpConstant, bytecode.MaxWideIndex, 1)
	assert.Error(t, err)
}

func TestAddConstantReturnsSequentialIndices(t *testing.T) {
	var c bytecode.Chunk
	a := c.AddConstant(bytecode.Number(1))
	b := c.AddConstant(bytecode.Number(2))
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, []bytecode.Value{bytecode.Number(1), bytecode.Number(2)}, c.Constants)
}

func TestGetLineIsRunLengthEncoded(t *testing.T) {
	var c bytecode.Chunk
	c.WriteByte(byte(bytecode.OpNil), 1)
	c.WriteByte(byte(bytecode.OpTrue), 1)
	c.WriteByte(byte(bytecode.OpFalse), 2)
	c.WriteByte(byte(bytecode.OpPop), 2)

	assert.Equal(t, 1, c.GetLine(0))
	assert.Equal(t, 1, c.GetLine(1))
	assert.Equal(t, 2, c.GetLine(2))
	assert.Equal(t, 2, c.GetLine(3))
}

func TestGetLineOnEmptyChunkReturnsZero(t *testing.T) {
	var c bytecode.Chunk
	assert.Equal(t, 0, c.GetLine(0))
}

func TestWriteJumpThenPatchJumpBackfillsForwardOffset(t *testing.T) {
	var c bytecode.Chunk
	placeholder := c.WriteJump(bytecode.OpJumpIfFalse, 1)
	c.WriteByte(byte(bytecode.OpPop), 1)
	c.WriteByte(byte(bytecode.OpPop), 1)

	err := c.PatchJump(placeholder)
	require.NoError(t, err)

	gotHi, gotLo := c.Code[placeholder], c.Code[placeholder+1]
	got := int(gotHi)<<8 | int(gotLo)
	assert.Equal(t, 2, got)
}

func TestPatchJumpRejectsOversizeBody(t *testing.T) {
	var c bytecode.Chunk
	placeholder := c.WriteJump(bytecode.OpJump, 1)
	for i := 0; i < bytecode.MaxJumpDistance+1; i++ {
		c.WriteByte(byte(bytecode.OpNop), 1)
	}

	err := c.PatchJump(placeholder)
	assert.Error(t, err)
}

func TestWriteLoopEmitsBackwardDistance(t *testing.T) {
	var c bytecode.Chunk
	loopStart := len(c.Code)
	c.WriteByte(byte(bytecode.OpNil), 1)
	c.WriteByte(byte(bytecode.OpPop), 1)

	err := c.WriteLoop(bytecode.OpLoop, loopStart, 1)
	require.NoError(t, err)

	opOffset := len(c.Code) - 3
	assert.Equal(t, byte(bytecode.OpLoop), c.Code[opOffset])
	hi, lo := c.Code[opOffset+1], c.Code[opOffset+2]
	dist := int(hi)<<8 | int(lo)
	assert.Equal(t, len(c.Code)-loopStart, dist)
}

func TestWriteLoopRejectsOversizeBody(t *testing.T) {
	var c bytecode.Chunk
	loopStart := len(c.Code)
	for i := 0; i < bytecode.MaxJumpDistance+1; i++ {
		c.WriteByte(byte(bytecode.OpNop), 1)
	}
	err := c.WriteLoop(bytecode.OpLoop, loopStart, 1)
	assert.Error(t, err)
}

func TestIndexedOperandDistinguishesFixedWidthOpcodes(t *testing.T) {
	assert.True(t, bytecode.IndexedOperand(bytecode.OpConstant))
	assert.True(t, bytecode.IndexedOperand(bytecode.OpGetUpvalue))
	assert.False(t, bytecode.IndexedOperand(bytecode.OpJump))
	assert.False(t, bytecode.IndexedOperand(bytecode.OpCall))
}

func TestOpCodeStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "ADD", bytecode.OpAdd.String())
	assert.Contains(t, bytecode.OpCode(255).String(), "UNKNOWN")
}
