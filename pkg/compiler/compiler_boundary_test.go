package compiler_test

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/compiler"
)

// names returns n comma-separated distinct identifiers, p0..p(n-1).
func names(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("p%d", i)
	}
	return strings.Join(ps, ", ")
}

func TestCompileFunctionWith255ParamsIsAccepted(t *testing.T) {
	src := fmt.Sprintf("fun f(%s) { return p0; }", names(255))
	fn := compile(t, src)
	f := findFunction(fn.Chunk, "f")
	require.NotNil(t, f)
	assert.Equal(t, 255, f.Arity)
}

func TestCompileFunctionWith256ParamsErrors(t *testing.T) {
	src := fmt.Sprintf("fun f(%s) { return p0; }", names(256))
	errs := compileErr(t, src)
	assertHasMessage(t, errs, "Can't have more than 255 parameters.")
}

func TestCompileFunctionWith256LocalsErrors(t *testing.T) {
	var b strings.Builder
	b.WriteString("fun f() {\n")
	for i := 0; i < 256; i++ {
		fmt.Fprintf(&b, "var v%d = %d;\n", i, i)
	}
	b.WriteString("}")

	errs := compileErr(t, b.String())
	assertHasMessage(t, errs, "Too many local variables in function.")
}

// TestCompile257ConstantsForceWideEncoding drives the constant pool past
// MaxInlineIndex (256) so the 257th OP_CONSTANT (index 256) must be
// emitted in WIDE form (pkg/bytecode.Chunk.WriteIndex's inline/wide
// threshold).
func TestCompile257ConstantsForceWideEncoding(t *testing.T) {
	var b strings.Builder
	// the small-int opcodes (CONSTANT_M1/0/1/2) would collapse some literals
	// into dedicated opcodes rather than constant-pool entries, so every
	// value here is distinct and outside that dedicated range.
	for i := 0; i < 257; i++ {
		fmt.Fprintf(&b, "%d;\n", i+10)
	}
	fn := compile(t, b.String())

	assert.GreaterOrEqual(t, len(fn.Chunk.Constants), 257)

	sawWideConstant := false
	for offset := 0; offset < len(fn.Chunk.Code); {
		op := bytecode.OpCode(fn.Chunk.Code[offset])
		if op == bytecode.OpWide && offset+1 < len(fn.Chunk.Code) &&
			bytecode.OpCode(fn.Chunk.Code[offset+1]) == bytecode.OpConstant {
			sawWideConstant = true
		}
		offset = bytecode.DisassembleInstruction(io.Discard, fn.Chunk, offset)
	}
	assert.True(t, sawWideConstant, "expected at least one WIDE-encoded CONSTANT once the pool exceeds 256 entries")
}

func TestCompileClosureWith257UpvaluesErrors(t *testing.T) {
	var outer strings.Builder
	outer.WriteString("fun outer() {\n")
	for i := 0; i < 254; i++ {
		fmt.Fprintf(&outer, "var v%d = %d;\n", i, i)
	}
	outer.WriteString("fun middle() {\n")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&outer, "var m%d = %d;\n", i, i)
	}
	outer.WriteString("fun inner() {\n")
	for i := 0; i < 254; i++ {
		fmt.Fprintf(&outer, "print v%d;\n", i)
	}
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&outer, "print m%d;\n", i)
	}
	outer.WriteString("}\nreturn inner;\n}\nreturn middle;\n}")

	// outer's 254 variables plus `middle` fill its 256 local slots exactly
	// (slot 0 is the callee), so no locals error fires; inner then captures
	// 254 of outer's variables through middle plus middle's 3 own locals,
	// and the 257th capture overflows the 256-entry upvalue table.
	errs := compileErr(t, outer.String())
	assertHasMessage(t, errs, "Too many closure variables in function.")
}

func TestCompileLoopBodyLargerThanJumpRangeErrors(t *testing.T) {
	var b strings.Builder
	b.WriteString("while (true) {\n")
	// each statement compiles to several bytes; this comfortably exceeds
	// bytecode.MaxJumpDistance (65535) bytes of loop body.
	for i := 0; i < 20000; i++ {
		b.WriteString("1 + 1;\n")
	}
	b.WriteString("}")

	errs := compileErr(t, b.String())
	assertHasMessage(t, errs, "loop body too large")
}

func assertHasMessage(t *testing.T, errs []compiler.CompileError, substr string) {
	t.Helper()
	for _, e := range errs {
		if strings.Contains(e.Error(), substr) {
			return
		}
	}
	t.Errorf("expected one of %d errors to contain %q, got: %v", len(errs), substr, errs)
}
