// Package stdlib supplies the bodies for the native-function contract
// spec §6 describes and §1 explicitly scopes out of the core: `clock`,
// `sleep`, `str`, `number`, `bool`, `err`, `read`, `hasProperty`
// (SPEC_FULL.md §3). Each one is a single function matching
// bytecode.NativeFn, one per native rather than a dispatch table.
package stdlib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/heap"
	"github.com/kristofer/vex/pkg/vm"
)

// Registerer is the subset of *vm.VM the stdlib needs to install natives;
// satisfied by *vm.VM itself, kept as an interface so stdlib doesn't need
// to know anything else about the VM's internals.
type Registerer interface {
	DefineNative(name string, arity int, fn bytecode.NativeFn)
}

// Register installs every built-in named by spec §6's native list as a
// global binding on v, reading blocking `read` calls from stdin.
func Register(v Registerer) {
	RegisterWithStdin(v, os.Stdin)
}

// RegisterWithStdin is Register with an injectable stdin, used by tests
// that want to feed `read` without touching the process's real stdin.
func RegisterWithStdin(v Registerer, stdin io.Reader) {
	in := bufio.NewReader(stdin)

	v.DefineNative("clock", 0, clock)
	v.DefineNative("sleep", 1, sleep)
	v.DefineNative("str", 1, str)
	v.DefineNative("number", 1, number)
	v.DefineNative("bool", 1, boolFn)
	v.DefineNative("err", 1, errFn)
	v.DefineNative("hasProperty", 2, hasProperty)
	v.DefineNative("joinStr", -1, joinStr)
	v.DefineNative("read", 0, readLine(in))
}

func errorResult(strs bytecode.Strings, message string) (bytecode.Value, bool) {
	return bytecode.FromObj(strs.InternString(message)), false
}

// clock returns wall-clock seconds as a Number (SPEC_FULL.md §3: "via
// time.Now()").
func clock(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
	return bytecode.Number(float64(time.Now().UnixNano()) / 1e9), true
}

// sleep blocks the single execution thread for the given number of
// seconds (spec §5 "the only blocking operations are read and sleep").
func sleep(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
	n, ok := vm.ToNumber(args[0])
	if !ok || n < 0 {
		return errorResult(strs, "sleep: argument must be a non-negative number")
	}
	time.Sleep(time.Duration(n * float64(time.Second)))
	return bytecode.Nil, true
}

// str coerces its argument to a String via the same formatting rules PRINT
// uses (pkg/vm.ToDisplayString).
func str(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
	return bytecode.FromObj(strs.InternString(vm.ToDisplayString(args[0]))), true
}

// number coerces its argument to a Number, failing on a string that
// doesn't parse as a decimal literal.
func number(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
	n, ok := vm.ToNumber(args[0])
	if !ok {
		return errorResult(strs, fmt.Sprintf("number: cannot convert %s", args[0].TypeName()))
	}
	return bytecode.Number(n), true
}

// boolFn coerces its argument to a Bool using the language's truthiness
// rule (nil and false are falsy, everything else truthy).
func boolFn(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
	return bytecode.Bool(vm.ToBool(args[0])), true
}

// errFn builds the Instance value C1 names but leaves otherwise
// unspecified, carrying a single "message" field (SPEC_FULL.md §3). It
// needs pkg/heap's AllocateInstance, which bytecode.Strings doesn't
// expose, so it type-asserts back to the concrete *heap.Heap the VM
// always passes at the native-call boundary (pkg/vm/natives.go).
func errFn(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
	h, ok := strs.(*heap.Heap)
	if !ok {
		return errorResult(strs, "err: native called outside a heap-backed VM")
	}
	message := vm.ToDisplayString(args[0])
	inst := h.AllocateInstance("Error")
	inst.SetField("message", bytecode.FromObj(h.InternString(message)))
	return bytecode.FromObj(inst), true
}

// hasProperty reports whether v is an Instance carrying a field named by
// the second argument's string value.
func hasProperty(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
	if !args[1].IsString() {
		return errorResult(strs, "hasProperty: second argument must be a string")
	}
	if !args[0].IsObj() {
		return bytecode.False, true
	}
	inst, ok := args[0].AsObj().(*bytecode.Instance)
	if !ok {
		return bytecode.False, true
	}
	_, found := inst.GetField(args[1].AsString().Chars)
	return bytecode.Bool(found), true
}

// joinStr backs the compiler's string-interpolation lowering (spec §4.4
// "Interpolation": GET_GLOBAL(joinStr) followed by pushing each literal
// segment and embedded expression, then CALL argCount). It is variadic
// because the segment count varies per interpolated literal.
func joinStr(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
	var b []byte
	for _, a := range args {
		b = append(b, vm.ToDisplayString(a)...)
	}
	return bytecode.FromObj(strs.InternString(string(b))), true
}

// readLine returns a native reading one line from in (spec §5 "the read
// native"), with the trailing newline stripped and EOF reported as nil
// rather than an error, matching a REPL's Ctrl-D convention.
func readLine(in *bufio.Reader) bytecode.NativeFn {
	return func(strs bytecode.Strings, args []bytecode.Value) (bytecode.Value, bool) {
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return bytecode.Nil, true
		}
		line = trimNewline(line)
		return bytecode.FromObj(strs.InternString(line)), true
	}
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
		if n := len(s); n > 0 && s[n-1] == '\r' {
			s = s[:n-1]
		}
	}
	return s
}
