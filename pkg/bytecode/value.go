// Package bytecode defines the compiled form the compiler emits and the VM
// executes: the tagged Value union and object heap (spec §3.1-3.2), the
// Chunk and line table (spec §3.3), the instruction set (spec §4.5) and a
// pure disassembler (spec §4.3).
//
// Value and Obj live in the same package as Chunk because they are
// mutually recursive: a Function object owns a Chunk, and a Chunk's
// constant pool holds Values (including, for closures, other Function
// values). Splitting them across packages would force an import cycle,
// so the compiled program's data stays in one place instead of behind
// an artificial boundary.
package bytecode

import "math"

// Kind discriminates the arms of the tagged Value union.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	// KindEmpty is the hash-table sentinel value (spec §3.1); it is never
	// observable from script code.
	KindEmpty
	// KindUndefined marks a declared-but-not-yet-defined global (spec §3.5);
	// it is never observable from script code.
	KindUndefined
	KindObj
)

// Value is the tagged variant described by spec §3.1. Primitives are
// stored inline; Obj carries a reference into the object heap.
//
// A plain struct (rather than an interface per variant) is used so that
// Bool/Nil/Number values never allocate — the hot path of the VM pushes
// and pops these several million times per second in a long-running
// script.
type Value struct {
	kind Kind
	num  float64
	obj  Obj
}

// Nil, True, False, Empty and Undefined are the singleton non-Obj, non-Number
// values; they're returned by value rather than by pointer since Value is a
// small, copyable struct.
var (
	Nil       = Value{kind: KindNil}
	True      = Value{kind: KindBool, num: 1}
	False     = Value{kind: KindBool, num: 0}
	Empty     = Value{kind: KindEmpty}
	Undefined = Value{kind: KindUndefined}
)

// Bool returns the Value for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number returns the Value wrapping the float64 n.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// FromObj returns the Value wrapping the heap object o.
func FromObj(o Obj) Value { return Value{kind: KindObj, obj: o} }

// IsNil, IsBool, IsNumber, IsEmpty, IsUndefined, IsObj report the dynamic
// kind of v.
func (v Value) IsNil() bool       { return v.kind == KindNil }
func (v Value) IsBool() bool      { return v.kind == KindBool }
func (v Value) IsNumber() bool    { return v.kind == KindNumber }
func (v Value) IsEmpty() bool     { return v.kind == KindEmpty }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsObj() bool       { return v.kind == KindObj }

// AsBool, AsNumber and AsObj unwrap v. Callers must have checked the kind
// first (Is* above); no runtime guard is paid on the hot path.
func (v Value) AsBool() bool     { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObj() Obj       { return v.obj }

// Kind exposes the discriminant, mostly for error messages ("%s value is
// not iterable"-style diagnostics) and tests.
func (v Value) Kind() Kind { return v.kind }

// TypeName returns the lowercase name used in runtime-error messages and
// the built-in type-coercion natives.
func (v Value) TypeName() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindObj:
		return v.obj.objType().String()
	default:
		return "internal"
	}
}

// IsString and AsString are a convenience pair used throughout the
// compiler and VM, where string-typed Values are extremely common
// (identifiers, property names, concatenation).
func (v Value) IsString() bool {
	if v.kind != KindObj {
		return false
	}
	_, ok := v.obj.(*String)
	return ok
}

func (v Value) AsString() *String { return v.obj.(*String) }

// IsClosure and IsNative report the callable-object variants.
func (v Value) IsClosure() bool {
	if v.kind != KindObj {
		return false
	}
	_, ok := v.obj.(*Closure)
	return ok
}

func (v Value) IsNative() bool {
	if v.kind != KindObj {
		return false
	}
	_, ok := v.obj.(*Native)
	return ok
}

// Truth implements the language's truthiness rule: everything is truthy
// except nil and false (spec leaves this implicit via NOT/JUMP_IF_FALSE;
// this is the one place it's centralized).
func Truth(v Value) bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.num != 0
	default:
		return true
	}
}

// Equal implements the structural equality of spec §3.1: numbers compare
// by bit-identity except NaN != NaN, strings and all other objects by
// identity (interning makes string identity equivalent to byte equality).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil, KindEmpty, KindUndefined:
		return true
	case KindBool:
		return a.num == b.num
	case KindNumber:
		if math.IsNaN(a.num) || math.IsNaN(b.num) {
			return false
		}
		return math.Float64bits(a.num) == math.Float64bits(b.num)
	case KindObj:
		return a.obj == b.obj
	default:
		return false
	}
}
