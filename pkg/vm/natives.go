package vm

import (
	"fmt"

	"github.com/kristofer/vex/pkg/bytecode"
)

// callNative implements spec §4.6's native-call protocol: args is a copy
// of the evaluated arguments, and the native's (value, ok) result replaces
// the callee and its arguments on the stack. By convention (SPEC_FULL.md
// §3) a native reports failure by returning a *String error message with
// ok==false, which runtimeError surfaces as the runtime error text.
func (vm *VM) callNative(native *bytecode.Native, argCount int) error {
	if native.Arity >= 0 && argCount != native.Arity {
		return vm.runtimeError(fmt.Sprintf("Expected %d arguments but got %d.", native.Arity, argCount))
	}
	args := make([]bytecode.Value, argCount)
	copy(args, vm.stack[vm.stackTop-argCount:vm.stackTop])

	result, ok := native.Fn(vm.heap, args)
	vm.stackTop -= argCount + 1
	if !ok {
		msg := "native call failed"
		if result.IsString() {
			msg = result.AsString().Chars
		}
		return vm.runtimeError(msg)
	}
	vm.push(result)
	return nil
}
