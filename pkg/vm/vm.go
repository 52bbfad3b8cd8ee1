// Package vm implements the virtual machine of spec §4.6: a stack-based
// bytecode interpreter with a bounded call-frame stack, closures with
// upvalues, and a native-function call protocol.
package vm

import (
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/compiler"
	"github.com/kristofer/vex/pkg/global"
	"github.com/kristofer/vex/pkg/heap"
)

// InterpretResult is the three-way outcome of spec §6's `interpret`
// entry point.
type InterpretResult int

const (
	Ok InterpretResult = iota
	CompileErr
	RuntimeErr
)

// CallFrame is one activation record of spec §3.6: slots is the index
// into the VM's value stack where the callee's slot 0 (the callee itself,
// by convention) begins.
type CallFrame struct {
	closure *bytecode.Closure
	ip      int
	slots   int
}

// Config bundles the VM tunables spec §3.6/§4.6 leave as "e.g." constants
// (internal/config.Config is the program-level source of these values;
// see SPEC_FULL.md §1.3).
type Config struct {
	StackMax    int
	FramesMax   int
	Trace       bool
	TraceWriter io.Writer
	Stdout      io.Writer
}

// VM is the interpreter state of spec §3.6.
type VM struct {
	stack    []bytecode.Value
	stackTop int

	frames     []CallFrame
	frameCount int

	openUpvalues *bytecode.Upvalue

	heap    *heap.Heap
	globals *global.Environment

	trace       bool
	traceWriter io.Writer
	stdout      io.Writer
}

// New creates a VM sharing h (the object heap and string interner) and g
// (the global environment) with the compiler that will feed it bytecode —
// both must be the same instances passed to compiler.Compile so that
// globals resolved at compile time address the same slots at run time.
func New(h *heap.Heap, g *global.Environment, cfg Config) *VM {
	if cfg.StackMax <= 0 {
		cfg.StackMax = 256 * 64
	}
	if cfg.FramesMax <= 0 {
		cfg.FramesMax = 64
	}
	if cfg.TraceWriter == nil {
		cfg.TraceWriter = os.Stderr
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	vm := &VM{
		stack:       make([]bytecode.Value, cfg.StackMax),
		frames:      make([]CallFrame, cfg.FramesMax),
		heap:        h,
		globals:     g,
		trace:       cfg.Trace,
		traceWriter: cfg.TraceWriter,
		stdout:      cfg.Stdout,
	}
	h.SetVMRoot(vm)
	return vm
}

// DefineNative registers a native function as a global binding, per spec
// §6's `registerNative(name, arity?, fn)`.
func (vm *VM) DefineNative(name string, arity int, fn bytecode.NativeFn) {
	native := vm.heap.AllocateNative(name, arity, fn)
	nameStr := vm.heap.InternString(name)
	idx := vm.globals.Declare(nameStr, true)
	vm.globals.Define(idx, bytecode.FromObj(native))
}

// Interpret implements spec §6's `interpret(source) -> InterpretResult`:
// compile, then run the resulting top-level function as a zero-argument
// closure.
func (vm *VM) Interpret(source string) (InterpretResult, error) {
	fn, errs := compiler.Compile(source, vm.heap, vm.globals)
	if fn == nil {
		for _, e := range errs {
			fmt.Fprintln(vm.traceWriter, e.Error())
		}
		return CompileErr, errs[0]
	}

	vm.resetStack()
	vm.push(bytecode.FromObj(fn))
	closure := vm.heap.AllocateClosure(fn, nil)
	vm.pop()
	vm.push(bytecode.FromObj(closure))
	if err := vm.callClosure(closure, 0); err != nil {
		return RuntimeErr, err
	}

	if err := vm.run(); err != nil {
		return RuntimeErr, err
	}
	return Ok, nil
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v bytecode.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() bytecode.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) currentFrame() *CallFrame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte(f *CallFrame) byte {
	b := f.closure.Fn.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readIndex(f *CallFrame, wide bool) int {
	if wide {
		hi := int(vm.readByte(f))
		mid := int(vm.readByte(f))
		lo := int(vm.readByte(f))
		return hi<<16 | mid<<8 | lo
	}
	return int(vm.readByte(f))
}

func (vm *VM) readShort(f *CallFrame) int {
	hi := int(vm.readByte(f))
	lo := int(vm.readByte(f))
	return hi<<8 | lo
}

func (vm *VM) readConstant(f *CallFrame, wide bool) bytecode.Value {
	idx := vm.readIndex(f, wide)
	return f.closure.Fn.Chunk.Constants[idx]
}

// run is the dispatch loop of spec §4.6 "Dispatch": fetch, expand WIDE,
// switch on opcode.
func (vm *VM) run() error {
	f := vm.currentFrame()

	for {
		if vm.trace {
			vm.traceInstruction(f)
		}

		op := bytecode.OpCode(vm.readByte(f))
		wide := false
		if op == bytecode.OpWide {
			wide = true
			op = bytecode.OpCode(vm.readByte(f))
		}

		switch op {
		case bytecode.OpNop:

		case bytecode.OpConstant:
			vm.push(vm.readConstant(f, wide))
		case bytecode.OpConstantM1:
			vm.push(bytecode.Number(-1))
		case bytecode.OpConstant0:
			vm.push(bytecode.Number(0))
		case bytecode.OpConstant1:
			vm.push(bytecode.Number(1))
		case bytecode.OpConstant2:
			vm.push(bytecode.Number(2))

		case bytecode.OpNil:
			vm.push(bytecode.Nil)
		case bytecode.OpTrue:
			vm.push(bytecode.True)
		case bytecode.OpFalse:
			vm.push(bytecode.False)

		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpPopN:
			n := int(vm.readByte(f))
			vm.stackTop -= n
		case bytecode.OpDup:
			vm.push(vm.peek(0))

		case bytecode.OpGetLocal:
			slot := vm.readIndex(f, wide)
			vm.push(vm.stack[f.slots+slot])
		case bytecode.OpSetLocal:
			slot := vm.readIndex(f, wide)
			vm.stack[f.slots+slot] = vm.peek(0)
		case bytecode.OpIncLocal, bytecode.OpDecLocal:
			slot := int(vm.readByte(f))
			imm := float64(int8(vm.readByte(f)))
			cur := vm.stack[f.slots+slot]
			if !cur.IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			delta := imm
			if op == bytecode.OpDecLocal {
				delta = -imm
			}
			nv := bytecode.Number(cur.AsNumber() + delta)
			vm.stack[f.slots+slot] = nv
			vm.push(nv)

		case bytecode.OpGetGlobal:
			idx := vm.readIndex(f, wide)
			v, ok := vm.globals.Get(idx)
			if !ok {
				return vm.runtimeError("Undefined variable.")
			}
			vm.push(v)
		case bytecode.OpSetGlobal:
			idx := vm.readIndex(f, wide)
			if !vm.globals.Set(idx, vm.peek(0)) {
				if _, defined := vm.globals.Get(idx); !defined {
					return vm.runtimeError("Undefined variable.")
				}
				return vm.runtimeError("Cannot assign to immutable variable.")
			}
		case bytecode.OpDefineGlobal:
			idx := vm.readIndex(f, wide)
			vm.globals.Define(idx, vm.pop())

		case bytecode.OpGetUpvalue:
			slot := vm.readIndex(f, wide)
			vm.push(f.closure.Upvalues[slot].Get())
		case bytecode.OpSetUpvalue:
			slot := vm.readIndex(f, wide)
			f.closure.Upvalues[slot].Set(vm.peek(0))

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(bytecode.Bool(bytecode.Equal(a, b)))
		case bytecode.OpGreater:
			if err := vm.binaryNumberOp(func(a, b float64) bytecode.Value { return bytecode.Bool(a > b) }); err != nil {
				return err
			}
		case bytecode.OpLess:
			if err := vm.binaryNumberOp(func(a, b float64) bytecode.Value { return bytecode.Bool(a < b) }); err != nil {
				return err
			}

		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case bytecode.OpSubtract:
			if err := vm.binaryNumberOp(func(a, b float64) bytecode.Value { return bytecode.Number(a - b) }); err != nil {
				return err
			}
		case bytecode.OpMultiply:
			if err := vm.binaryNumberOp(func(a, b float64) bytecode.Value { return bytecode.Number(a * b) }); err != nil {
				return err
			}
		case bytecode.OpDivide:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			if vm.peek(0).AsNumber() == 0 {
				return vm.runtimeError("Division by zero.")
			}
			if err := vm.binaryNumberOp(func(a, b float64) bytecode.Value { return bytecode.Number(a / b) }); err != nil {
				return err
			}
		case bytecode.OpMod:
			if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
				return vm.runtimeError("Operands must be numbers.")
			}
			if vm.peek(0).AsNumber() == 0 {
				return vm.runtimeError("Division by zero.")
			}
			if err := vm.binaryNumberOp(func(a, b float64) bytecode.Value {
				return bytecode.Number(modFloat(a, b))
			}); err != nil {
				return err
			}

		case bytecode.OpNot:
			vm.push(bytecode.Bool(!bytecode.Truth(vm.pop())))
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(bytecode.Number(-vm.pop().AsNumber()))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.stdout, ToDisplayString(vm.pop()))

		case bytecode.OpJump:
			off := vm.readShort(f)
			f.ip += off
		case bytecode.OpJumpIfTrue:
			off := vm.readShort(f)
			if bytecode.Truth(vm.peek(0)) {
				f.ip += off
			}
		case bytecode.OpJumpIfFalse:
			off := vm.readShort(f)
			if !bytecode.Truth(vm.peek(0)) {
				f.ip += off
			}
		case bytecode.OpJumpIfNotEqual:
			off := vm.readShort(f)
			cond := bytecode.Truth(vm.pop())
			if !cond {
				f.ip += off
			}
		case bytecode.OpLoop:
			off := vm.readShort(f)
			f.ip -= off
		case bytecode.OpLoopIfFalse:
			off := vm.readShort(f)
			cond := bytecode.Truth(vm.pop())
			if !cond {
				f.ip -= off
			}

		case bytecode.OpCall:
			argCount := int(vm.readByte(f))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			f = vm.currentFrame()

		case bytecode.OpClosure:
			fnVal := vm.readConstant(f, wide)
			fn := fnVal.AsObj().(*bytecode.Function)
			upvalues := make([]*bytecode.Upvalue, fn.UpvalueCount)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(f) != 0
				index := int(vm.readByte(f))
				if isLocal {
					upvalues[i] = vm.captureUpvalue(f.slots + index)
				} else {
					upvalues[i] = f.closure.Upvalues[index]
				}
			}
			closure := vm.heap.AllocateClosure(fn, upvalues)
			vm.push(bytecode.FromObj(closure))

		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(f.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = f.slots
			vm.push(result)
			f = vm.currentFrame()

		default:
			return vm.runtimeError(fmt.Sprintf("unknown opcode %d", byte(op)))
		}
	}
}

func modFloat(a, b float64) float64 {
	return a - b*float64(int64(a/b))
}

func (vm *VM) binaryNumberOp(op func(a, b float64) bytecode.Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(op(a, b))
	return nil
}

// add implements spec §4.5's "ADD on two strings concatenates" special
// case alongside ordinary numeric addition.
func (vm *VM) add() error {
	if vm.peek(0).IsString() && vm.peek(1).IsString() {
		b := vm.pop().AsString()
		a := vm.pop().AsString()
		vm.push(bytecode.FromObj(vm.heap.ConcatStrings(a, b)))
		return nil
	}
	if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
		b := vm.pop().AsNumber()
		a := vm.pop().AsNumber()
		vm.push(bytecode.Number(a + b))
		return nil
	}
	return vm.runtimeError("Operands must be two numbers or two strings.")
}

// callValue implements spec §4.6 "Calls": dispatch by callee object kind.
func (vm *VM) callValue(callee bytecode.Value, argCount int) error {
	if callee.IsObj() {
		switch obj := callee.AsObj().(type) {
		case *bytecode.Closure:
			return vm.callClosure(obj, argCount)
		case *bytecode.Native:
			return vm.callNative(obj, argCount)
		}
	}
	return vm.runtimeError("Can only call functions and classes.")
}

func (vm *VM) callClosure(closure *bytecode.Closure, argCount int) error {
	if argCount != closure.Fn.Arity {
		return vm.runtimeError(fmt.Sprintf("Expected %d arguments but got %d.", closure.Fn.Arity, argCount))
	}
	if vm.frameCount == len(vm.frames) {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames[vm.frameCount] = CallFrame{closure: closure, ip: 0, slots: vm.stackTop - argCount - 1}
	vm.frameCount++
	return nil
}

// addrOf orders two stack slots by address, the Go stand-in for clox's raw
// pointer comparisons over the open-upvalue list (spec §4.6 "Upvalue
// capture": "the list is sorted by descending stack slot"). Location
// always points inside vm.stack, so comparing addresses is equivalent to
// comparing slot indices without threading an extra field through Upvalue.
func addrOf(v *bytecode.Value) uintptr { return uintptr(unsafe.Pointer(v)) }

// captureUpvalue implements spec §4.6 "Upvalue capture": reuse an existing
// open upvalue for slot if one exists, otherwise splice a new one in at
// the right position in the descending-by-slot list.
func (vm *VM) captureUpvalue(slot int) *bytecode.Upvalue {
	local := &vm.stack[slot]
	var prev *bytecode.Upvalue
	cur := vm.openUpvalues
	for cur != nil && addrOf(cur.Location) > addrOf(local) {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Location == local {
		return cur
	}
	created := vm.heap.AllocateUpvalue(local)
	created.Next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues implements the rest of spec §4.6 "Upvalue capture": every
// open upvalue at or above fromSlot is closed (copied to the heap) and
// unlinked, used both by OP_CLOSE_UPVALUE and by scope/frame exit. The
// next link is saved before Close() runs, since Close() clears it.
func (vm *VM) closeUpvalues(fromSlot int) {
	threshold := addrOf(&vm.stack[fromSlot])
	for vm.openUpvalues != nil && addrOf(vm.openUpvalues.Location) >= threshold {
		u := vm.openUpvalues
		next := u.Next
		u.Close()
		vm.openUpvalues = next
	}
}

// runtimeError implements spec §4.6 "Errors": format the message, capture
// a top-down stack trace from the active frames, then reset the VM to a
// reusable state.
func (vm *VM) runtimeError(message string) error {
	trace := make([]StackFrame, vm.frameCount)
	for i := 0; i < vm.frameCount; i++ {
		fr := &vm.frames[i]
		line := fr.closure.Fn.Chunk.GetLine(fr.ip - 1)
		trace[i] = StackFrame{FnName: fr.closure.Fn.DisplayName(), Line: line}
	}
	vm.resetStack()
	return newRuntimeError(message, trace)
}

// MarkRoots implements heap.RootMarker (spec §4.7 "Roots"): every value on
// the stack, every active frame's closure, every open upvalue, every
// global's value, and every global's name. The names table is a root in
// its own right: a name can be declared (indexed) before anything is ever
// stored under that index from a value reachable elsewhere, so scanning
// only the values would miss it.
func (vm *VM) MarkRoots(h *heap.Heap) {
	for i := 0; i < vm.stackTop; i++ {
		h.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		h.MarkObject(vm.frames[i].closure)
	}
	for u := vm.openUpvalues; u != nil; u = u.Next {
		h.MarkObject(u)
	}
	for i := 0; i < vm.globals.Count(); i++ {
		h.MarkValue(vm.globals.ValueAt(i))
	}
	vm.globals.MarkNames(h)
}
