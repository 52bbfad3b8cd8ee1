package compiler_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/compiler"
	"github.com/kristofer/vex/pkg/global"
	"github.com/kristofer/vex/pkg/heap"
)

func compile(t *testing.T, source string) *bytecode.Function {
	t.Helper()
	h := heap.New(heap.Config{})
	g := global.New()
	fn, errs := compiler.Compile(source, h, g)
	require.Empty(t, errs, "unexpected compile errors")
	require.NotNil(t, fn)
	return fn
}

func compileErr(t *testing.T, source string) []compiler.CompileError {
	t.Helper()
	h := heap.New(heap.Config{})
	g := global.New()
	fn, errs := compiler.Compile(source, h, g)
	require.Nil(t, fn)
	require.NotEmpty(t, errs)
	return errs
}

// opsOf walks chunk c the same way the disassembler does, so it stays
// correct across opcodes with variable-width operands (WIDE, CLOSURE's
// trailing upvalue metadata) without duplicating that decoding logic.
func opsOf(c *bytecode.Chunk) []bytecode.OpCode {
	var ops []bytecode.OpCode
	for offset := 0; offset < len(c.Code); {
		op := bytecode.OpCode(c.Code[offset])
		start := offset
		if op == bytecode.OpWide {
			op = bytecode.OpCode(c.Code[offset+1])
		}
		ops = append(ops, op)
		offset = bytecode.DisassembleInstruction(io.Discard, c, start)
	}
	return ops
}

func TestCompileNumberLiteral(t *testing.T) {
	fn := compile(t, "42;")

	assert.Equal(t, bytecode.OpConstant, bytecode.OpCode(fn.Chunk.Code[0]))
}

func TestCompileSmallIntegerLiteralsUseDedicatedOpcodes(t *testing.T) {
	tests := []struct {
		src string
		op  bytecode.OpCode
	}{
		{"-1;", bytecode.OpConstantM1},
		{"0;", bytecode.OpConstant0},
		{"1;", bytecode.OpConstant1},
		{"2;", bytecode.OpConstant2},
	}
	for _, tt := range tests {
		fn := compile(t, tt.src)
		assert.Equal(t, tt.op, bytecode.OpCode(fn.Chunk.Code[0]), "source %q", tt.src)
	}
}

func TestCompileLargeNumberUsesConstantPool(t *testing.T) {
	fn := compile(t, "1000;")

	assert.Equal(t, bytecode.OpConstant, bytecode.OpCode(fn.Chunk.Code[0]))
	require.Len(t, fn.Chunk.Constants, 1)
	assert.Equal(t, float64(1000), fn.Chunk.Constants[0].AsNumber())
}

func TestCompileStringLiteral(t *testing.T) {
	fn := compile(t, `"hello";`)

	require.Equal(t, bytecode.OpConstant, bytecode.OpCode(fn.Chunk.Code[0]))
	assert.Equal(t, "hello", fn.Chunk.Constants[0].AsString().Chars)
}

func TestCompileBooleanAndNilLiterals(t *testing.T) {
	tests := []struct {
		src string
		op  bytecode.OpCode
	}{
		{"true;", bytecode.OpTrue},
		{"false;", bytecode.OpFalse},
		{"nil;", bytecode.OpNil},
	}
	for _, tt := range tests {
		fn := compile(t, tt.src)
		assert.Equal(t, tt.op, bytecode.OpCode(fn.Chunk.Code[0]), "source %q", tt.src)
	}
}

func TestCompileVarDeclarationAndAssignmentUseLocalSlots(t *testing.T) {
	fn := compile(t, `{ var x = 1; x = 2; }`)

	assert.Contains(t, opsOf(fn.Chunk), bytecode.OpSetLocal)
}

func TestCompileTopLevelVarIsGlobal(t *testing.T) {
	fn := compile(t, `var x = 1;`)

	assert.Contains(t, opsOf(fn.Chunk), bytecode.OpDefineGlobal)
}

func TestCompileBinaryArithmetic(t *testing.T) {
	fn := compile(t, "3 + 4;")

	assert.Contains(t, opsOf(fn.Chunk), bytecode.OpAdd)
}

func TestCompileComparisonOperators(t *testing.T) {
	tests := []struct {
		src string
		op  bytecode.OpCode
	}{
		{"1 < 2;", bytecode.OpLess},
		{"1 > 2;", bytecode.OpGreater},
		{"1 == 2;", bytecode.OpEqual},
	}
	for _, tt := range tests {
		fn := compile(t, tt.src)
		assert.Contains(t, opsOf(fn.Chunk), tt.op, "source %q", tt.src)
	}
}

func TestCompileIfStatementEmitsConditionalJumps(t *testing.T) {
	fn := compile(t, `if (true) { 1; } else { 2; }`)

	ops := opsOf(fn.Chunk)
	assert.Contains(t, ops, bytecode.OpJumpIfFalse)
	assert.Contains(t, ops, bytecode.OpJump)
}

func TestCompileWhileLoopEmitsLoop(t *testing.T) {
	fn := compile(t, `while (false) { 1; }`)

	assert.Contains(t, opsOf(fn.Chunk), bytecode.OpLoop)
}

func TestCompileFunctionLiteralEmitsClosure(t *testing.T) {
	fn := compile(t, `fun add(a, b) { return a + b; } add(1, 2);`)

	ops := opsOf(fn.Chunk)
	assert.Contains(t, ops, bytecode.OpClosure)
	assert.Contains(t, ops, bytecode.OpCall)

	nested := findFunction(fn.Chunk, "add")
	require.NotNil(t, nested, "expected the compiled function literal in the constant pool")
	assert.Equal(t, 2, nested.Arity)
}

func TestCompileClosureCapturesEnclosingLocalAsUpvalue(t *testing.T) {
	fn := compile(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
	`)

	outer := findFunction(fn.Chunk, "makeCounter")
	require.NotNil(t, outer)

	inner := findFunction(outer.Chunk, "increment")
	require.NotNil(t, inner)
	assert.Equal(t, 1, inner.UpvalueCount)
	assert.Contains(t, opsOf(inner.Chunk), bytecode.OpGetUpvalue)
	assert.Contains(t, opsOf(inner.Chunk), bytecode.OpSetUpvalue)
}

func TestCompileStringInterpolationCallsJoinStr(t *testing.T) {
	h := heap.New(heap.Config{})
	g := global.New()
	fn, errs := compiler.Compile("var name = \"world\"; \"hello ${name}\";", h, g)
	require.Empty(t, errs, "unexpected compile errors")

	assert.Contains(t, opsOf(fn.Chunk), bytecode.OpCall)

	_, gotJoinStr := g.Resolve(h.InternString("joinStr"))
	assert.True(t, gotJoinStr, "expected joinStr to be referenced as a global")
}

func TestCompileCannotReturnFromTopLevel(t *testing.T) {
	compileErr(t, `return 1;`)
}

func TestCompileCannotReadLocalInOwnInitializer(t *testing.T) {
	compileErr(t, `{ var x = x; }`)
}

func TestCompileImmutableAssignmentIsCompileError(t *testing.T) {
	// a top-level `const` is declared immutable in the global environment
	// while compiling, so the compiler rejects the later assignment itself
	// (global.Environment.IsImmutable) before any SET_GLOBAL is emitted.
	errs := compileErr(t, `const x = 1; x = 2;`)
	assertHasMessage(t, errs, "Cannot assign to immutable variable.")
}

func findFunction(c *bytecode.Chunk, name string) *bytecode.Function {
	for _, v := range c.Constants {
		if v.IsObj() {
			if f, ok := v.AsObj().(*bytecode.Function); ok && f.DisplayName() == name {
				return f
			}
		}
	}
	return nil
}
