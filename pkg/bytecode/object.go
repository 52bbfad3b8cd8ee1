package bytecode

import "fmt"

// ObjType discriminates the heap object variants of spec §3.2.
type ObjType uint8

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeNative
	ObjTypeInstance
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeString:
		return "string"
	case ObjTypeFunction:
		return "function"
	case ObjTypeClosure:
		return "closure"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeNative:
		return "native"
	case ObjTypeInstance:
		return "instance"
	default:
		return "object"
	}
}

// Header is the common prefix every heap object carries (spec §3.2): the
// GC's mark bit and the intrusive link through the VM-owned list of every
// live object. It stores no type tag; the variant is reported by the Obj
// interface's objType method. Embedding it in each concrete type
// gives every variant a shared header without an unsafe pointer cast: the
// Obj interface plus an embedded Header is Go's type-safe stand-in for a
// C-style common-prefix struct trick.
type Header struct {
	Marked bool
	Next   Obj
}

// Obj is implemented by every heap object variant. objType is unexported
// so that only this package can introduce new variants, matching the
// closed set spec §3.2 enumerates.
type Obj interface {
	objType() ObjType
	header() *Header
}

// Type returns the dynamic heap-object variant of o, exported for callers
// outside this package (the GC, the disassembler, runtime-error messages).
func Type(o Obj) ObjType { return o.objType() }

// IsMarked, SetMarked, NextObj and SetNextObj expose the header fields the
// garbage collector needs to read and mutate during a cycle, without
// exposing the Header type itself to package heap (which only needs the
// four accessors, not its layout).
func IsMarked(o Obj) bool   { return o.header().Marked }
func SetMarked(o Obj, m bool) { o.header().Marked = m }
func NextObj(o Obj) Obj     { return o.header().Next }
func SetNextObj(o Obj, n Obj) { o.header().Next = n }

// String is the heap representation of an interned, immutable string
// (spec §3.2). Chars holds the payload inline (a Go string already owns
// its bytes, so there's no separate "inline payload" allocation to model
// beyond what the runtime does for us).
type String struct {
	Header
	Chars string
	Hash  uint32
}

func (s *String) objType() ObjType { return ObjTypeString }
func (s *String) header() *Header  { return &s.Header }

// HashString computes the 32-bit FNV-1a hash spec §3.2 mandates for
// String objects and is also used by pkg/table's findString probe.
func HashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Function is the heap representation of a compiled function body (spec
// §3.2). It owns its Chunk; Name is nil for the implicit top-level
// script function the compiler returns from Compile.
type Function struct {
	Header
	Arity        int
	UpvalueCount int
	Name         *String
	Chunk        *Chunk
}

func (f *Function) objType() ObjType { return ObjTypeFunction }
func (f *Function) header() *Header  { return &f.Header }

// DisplayName returns the name used in stack traces: the function's own
// name, or "script" for the implicit top-level function (spec §6
// "Diagnostics format").
func (f *Function) DisplayName() string {
	if f.Name == nil {
		return "script"
	}
	return f.Name.Chars
}

// Closure pairs a Function with its resolved upvalues (spec §3.2). Module
// scripts that declare no nested functions still go through a Closure so
// the VM's call protocol has a single callable representation.
type Closure struct {
	Header
	Fn       *Function
	Upvalues []*Upvalue
}

func (c *Closure) objType() ObjType { return ObjTypeClosure }
func (c *Closure) header() *Header  { return &c.Header }

// Upvalue references an enclosing function's local, either live on the
// value stack (open) or copied onto the heap after the local's scope ends
// (closed) — spec §3.2. Next chains open upvalues in the VM's
// descending-by-slot list; it is unused once the upvalue is closed.
type Upvalue struct {
	Header
	Location *Value // non-nil while open: points into a CallFrame's stack slots
	Closed   Value
	Next     *Upvalue
}

func (u *Upvalue) objType() ObjType { return ObjTypeUpvalue }
func (u *Upvalue) header() *Header  { return &u.Header }

// IsOpen reports whether u still refers to a live stack slot.
func (u *Upvalue) IsOpen() bool { return u.Location != nil }

// Get returns the upvalue's current value, whether open or closed.
func (u *Upvalue) Get() Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

// Set writes through to the live slot (open) or the closed copy.
func (u *Upvalue) Set(v Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

// Close transitions an open upvalue to closed, per the CLOSE_UPVALUE
// operation of spec §4.5: it copies the live slot's value into Closed and
// repoints Location at nil so future Get/Set see the heap copy.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = nil
	u.Next = nil
}

// Strings lets a native function allocate and intern a heap String without
// this package importing pkg/heap (which already imports this package for
// Value/Obj — importing it back would cycle). pkg/heap.Heap satisfies this
// trivially; natives that build strings (joinStr, str) receive one through
// the VM's native-call protocol.
type Strings interface {
	InternString(chars string) *String
}

// NativeFn is the Go-idiomatic rendering of the native-function contract
// in spec §6: natives take the heap (for any string they need to build)
// and the already-evaluated positional arguments, and return either a
// result (ok==true) or an error Value — conventionally a *String — to
// report as a runtime error (ok==false). An explicit (Value, bool) return
// plays the same role as an in-place argument-slot write in a C-style
// native-call ABI, without exposing raw stack-slice aliasing across the
// VM/native boundary.
type NativeFn func(strs Strings, args []Value) (Value, bool)

// Native wraps a Go function registered with registerNative (spec §6).
type Native struct {
	Header
	Name  string
	Arity int // -1 means variadic / unchecked
	Fn    NativeFn
}

func (n *Native) objType() ObjType { return ObjTypeNative }
func (n *Native) header() *Header  { return &n.Header }

// Instance is the heap object variant named, but not otherwise specified,
// by spec §3.2's object list. It backs the `err` / `hasProperty` natives
// (spec §8, resolved in SPEC_FULL.md §3): a lightweight named bag of
// properties, with no user-facing class-declaration syntax. Fields uses a
// plain Go map rather than pkg/table to avoid a bytecode<->table import
// cycle (pkg/table's keys are bytecode.Value by construction); pkg/table
// itself remains reserved for string interning and the global
// environment's name index, exactly the two uses spec §4.2 calls out.
type Instance struct {
	Header
	ClassName string
	Fields    map[string]Value
}

func (i *Instance) objType() ObjType { return ObjTypeInstance }
func (i *Instance) header() *Header  { return &i.Header }

// NewInstance allocates an Instance value. Heap allocation (and GC
// bookkeeping) is the caller's responsibility via
// pkg/heap.Heap.AllocateInstance, which calls this constructor; this
// constructor only initializes the value itself.
func NewInstance(className string) *Instance {
	return &Instance{ClassName: className, Fields: make(map[string]Value)}
}

// GetField and SetField implement the property access `err`-produced
// Instances support: `err` sets the "message" field and the `hasProperty`
// native looks fields up by name. Script code has no property-access
// syntax of its own.
func (i *Instance) GetField(name string) (Value, bool) {
	v, ok := i.Fields[name]
	return v, ok
}

func (i *Instance) SetField(name string, v Value) { i.Fields[name] = v }

// GoString aids test failure output and panics on impossible bytecode
// (spec §7 "Fatal errors").
func (v Value) GoString() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case KindNumber:
		return fmt.Sprintf("%g", v.num)
	case KindEmpty:
		return "<empty>"
	case KindUndefined:
		return "<undefined>"
	case KindObj:
		switch o := v.obj.(type) {
		case *String:
			return o.Chars
		case *Function:
			return fmt.Sprintf("<fn %s>", o.DisplayName())
		case *Closure:
			return fmt.Sprintf("<fn %s>", o.Fn.DisplayName())
		case *Native:
			return fmt.Sprintf("<native %s>", o.Name)
		case *Instance:
			return fmt.Sprintf("<%s instance>", o.ClassName)
		default:
			return "<object>"
		}
	default:
		return "<?>"
	}
}
