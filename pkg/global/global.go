// Package global implements the global environment of spec §3.5: a name
// table mapping interned Strings to dense slot indices, backing the
// GET_GLOBAL/SET_GLOBAL/DEFINE_GLOBAL instructions. It is its own package,
// separate from both pkg/compiler and pkg/vm, because both of them need it
// — the compiler assigns indices at the declaration site, the VM reads and
// writes the slots at run time — and neither may import the other. A
// single Environment instance outlives one compile: a REPL session shares
// it across every line typed, exactly as the top-level script shares it
// across every nested function compiled within the same source.
package global

import (
	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/heap"
	"github.com/kristofer/vex/pkg/table"
)

// Slot is one entry of the dense values array (spec §3.5's Global{value,
// immutable}). A slot whose Value.IsUndefined() is declared but not yet
// defined; reading it is a runtime error.
type Slot struct {
	Value     bytecode.Value
	Immutable bool
}

// Environment is the triple of spec §3.5: a names table mapping String to
// integer index, plus the dense Slot array those indices address.
type Environment struct {
	names  table.Table
	values []Slot
}

// New creates an empty global environment.
func New() *Environment {
	return &Environment{}
}

// getOrCreate returns name's slot index, allocating an Undefined, mutable
// slot the first time this name is seen.
func (e *Environment) getOrCreate(name *bytecode.String) int {
	key := bytecode.FromObj(name)
	if v, ok := e.names.Get(key); ok {
		return int(v.AsNumber())
	}
	idx := len(e.values)
	e.values = append(e.values, Slot{Value: bytecode.Undefined})
	e.names.Set(key, bytecode.Number(float64(idx)))
	return idx
}

// Declare is called at a `var`/`const` declaration site: it returns name's
// slot index (creating one if needed) and (re)stamps its immutability,
// known statically from which keyword introduced it.
func (e *Environment) Declare(name *bytecode.String, immutable bool) int {
	idx := e.getOrCreate(name)
	e.values[idx].Immutable = immutable
	return idx
}

// ResolveOrCreate is called when an identifier resolves to neither a local
// nor an upvalue (spec §4.4: "otherwise global ... created on first
// assignment site"). Unlike Declare, it never touches an existing slot's
// immutability — a bare reference must not silently turn a `const` into a
// `var`.
func (e *Environment) ResolveOrCreate(name *bytecode.String) int {
	return e.getOrCreate(name)
}

// Resolve looks up name's slot index without creating one.
func (e *Environment) Resolve(name *bytecode.String) (int, bool) {
	v, ok := e.names.Get(bytecode.FromObj(name))
	if !ok {
		return 0, false
	}
	return int(v.AsNumber()), true
}

// Define stores value at index — the DEFINE_GLOBAL instruction's effect.
func (e *Environment) Define(index int, value bytecode.Value) {
	e.values[index].Value = value
}

// Get reads the slot at index. The second return is false if the slot has
// never been defined (still Undefined), which GET_GLOBAL reports as the
// runtime error "Undefined variable." (spec §3.5, §8 scenario 6).
func (e *Environment) Get(index int) (bytecode.Value, bool) {
	s := e.values[index]
	if s.Value.IsUndefined() {
		return bytecode.Nil, false
	}
	return s.Value, true
}

// IsImmutable reports whether index was declared `const`.
func (e *Environment) IsImmutable(index int) bool {
	return e.values[index].Immutable
}

// Set writes value to the slot at index, for SET_GLOBAL. It reports
// whether the write succeeded; Get/IsImmutable let the caller distinguish
// the two failure modes (undefined vs const) to word its runtime error.
func (e *Environment) Set(index int, value bytecode.Value) bool {
	s := &e.values[index]
	if s.Value.IsUndefined() || s.Immutable {
		return false
	}
	s.Value = value
	return true
}

// Count returns the number of declared slots.
func (e *Environment) Count() int { return len(e.values) }

// ValueAt returns the raw slot value at index (including Undefined),
// exposed for the VM's GC root marking.
func (e *Environment) ValueAt(index int) bytecode.Value { return e.values[index].Value }

// MarkNames marks every interned name key in e.names as a GC root. A name
// can be live here — indexing a declared global — while no value stored
// under any index happens to reference that same String object, so
// marking only ValueAt is not enough: an unmarked name gets evicted from
// the intern table on the next sweep, and re-interning it later produces
// a new *String whose identity no longer matches the index this
// Environment already recorded for it.
func (e *Environment) MarkNames(h *heap.Heap) {
	e.names.Each(func(key, _ bytecode.Value) {
		h.MarkValue(key)
	})
}
