package vm

import (
	"fmt"

	"github.com/kristofer/vex/pkg/bytecode"
)

// traceInstruction prints the current stack contents followed by the
// disassembly of the instruction about to execute, writing straight to
// an io.Writer rather than a logging package. This is pure output: no
// breakpoints, no stdin prompt, gated only by VM.trace.
func (vm *VM) traceInstruction(f *CallFrame) {
	fmt.Fprint(vm.traceWriter, "          ")
	for i := 0; i < vm.stackTop; i++ {
		fmt.Fprintf(vm.traceWriter, "[ %s ]", vm.stack[i].GoString())
	}
	fmt.Fprintln(vm.traceWriter)
	bytecode.DisassembleInstruction(vm.traceWriter, f.closure.Fn.Chunk, f.ip)
}
