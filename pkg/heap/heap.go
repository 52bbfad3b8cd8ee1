// Package heap owns every allocated bytecode.Obj and the mark-sweep
// garbage collector that reclaims them (spec §4.7). It is the allocator
// the compiler and VM both call into: the compiler allocates Function and
// String objects while compiling, the VM allocates Closures, Upvalues,
// Natives and Instances while running, and both contribute GC roots.
package heap

import (
	"fmt"
	"io"

	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/table"
)

// RootMarker is implemented by anything that can contribute GC roots: the
// VM (value stack, frames, open upvalues, globals) and each active
// Compiler in the enclosing chain (its function under construction) per
// spec §4.7 "Roots".
type RootMarker interface {
	MarkRoots(h *Heap)
}

// Config bundles the GC tunables spec §4.7 leaves as "e.g." constants,
// surfaced through internal/config so a deployment can tune them without
// a recompile.
type Config struct {
	GrowFactor       float64
	InitialThreshold int
	Stress           bool
	LogGC            bool
	LogWriter        io.Writer
}

// Heap is the object allocator and collector of spec §4.7. It owns:
//   - objects: the intrusive linked list of every live heap object,
//   - strings: the interning table (spec §3.2's invariant "for any two
//     Strings with equal bytes, their object identities are equal"),
//   - bytesAllocated/nextGC: the allocator's growth-triggered collection
//     policy (spec "Triggered from the allocator when the requested
//     growth would cross a threshold").
type Heap struct {
	cfg Config

	objects bytecode.Obj
	strings table.Table

	bytesAllocated int
	nextGC         int

	grayStack []bytecode.Obj

	vmRoot        RootMarker
	compilerRoots []RootMarker

	// collecting guards against re-entrant collection triggered by an
	// allocation made *during* a GC cycle (spec: "allocation during
	// marking/tracing is safe ... the GC never allocates" — the GC itself
	// never allocates, but it must not recurse if a root-marking callback
	// somehow does).
	collecting bool
}

// New creates a Heap with the given tunables.
func New(cfg Config) *Heap {
	if cfg.InitialThreshold <= 0 {
		cfg.InitialThreshold = 1 << 20
	}
	if cfg.GrowFactor <= 1 {
		cfg.GrowFactor = 2
	}
	if cfg.LogWriter == nil {
		cfg.LogWriter = io.Discard
	}
	return &Heap{cfg: cfg, nextGC: cfg.InitialThreshold}
}

// SetVMRoot registers the VM as a GC root source. There is exactly one
// VM per Heap, unlike compilers, which nest.
func (h *Heap) SetVMRoot(m RootMarker) { h.vmRoot = m }

// PushCompilerRoot registers a newly-entered Compiler as a root source
// (spec §4.7: "for each active Compiler in the enclosing chain, its
// function under construction"). pkg/compiler pushes each Compiler (the
// top-level one in Compile, and each nested function's) on entry and pops
// it on exit, mirroring the static enclosing chain.
func (h *Heap) PushCompilerRoot(m RootMarker) { h.compilerRoots = append(h.compilerRoots, m) }

// PopCompilerRoot undoes the most recent PushCompilerRoot.
func (h *Heap) PopCompilerRoot() {
	if n := len(h.compilerRoots); n > 0 {
		h.compilerRoots = h.compilerRoots[:n-1]
	}
}

// Strings exposes the interning table read-only-in-spirit accessors
// (InternString is the only mutator most callers need); the VM's `strings`
// root in spec §3.6 is this table.
func (h *Heap) Strings() *table.Table { return &h.strings }

// track runs a collection if warranted, then links o into the all-objects
// list and accounts its size toward the allocator's growth trigger. Every
// Allocate* helper below funnels through it. The threshold check and
// Collect() run before o joins the object list (CLox's ordering: the
// growth check lives in reallocate(), which runs before the new object
// exists at all), so a cycle triggered by this allocation never sees o on
// the object list unrooted — had o been linked in first, a cycle landing
// here (before the caller has stored o anywhere a root walk would find)
// would mark it dead and sweep it from the list despite the caller still
// holding a live pointer to it, leaking it past every future GC.
func (h *Heap) track(o bytecode.Obj, size int) {
	if h.cfg.Stress || h.bytesAllocated+size > h.nextGC {
		h.Collect()
	}

	bytecode.SetNextObj(o, h.objects)
	h.objects = o
	h.bytesAllocated += size
}

// InternString returns the canonical String object for chars, allocating
// one only if this is the first time these bytes have been seen (spec
// §4.2 "this enables interning without allocation" — in Go we still pay
// for the string header comparison, but never allocate a duplicate heap
// object, which is the invariant that matters: spec §3.2 "for any two
// Strings with equal bytes, their object identities are equal").
func (h *Heap) InternString(chars string) *bytecode.String {
	hash := bytecode.HashString(chars)
	if s := h.strings.FindString(chars, hash); s != nil {
		return s
	}
	s := &bytecode.String{Chars: chars, Hash: hash}
	h.track(s, len(chars)+16)
	h.strings.Set(bytecode.FromObj(s), bytecode.Nil)
	return s
}

// AllocateFunction creates a new, empty Function heap object ready for
// the compiler to populate with its Chunk.
func (h *Heap) AllocateFunction() *bytecode.Function {
	f := &bytecode.Function{Chunk: &bytecode.Chunk{}}
	h.track(f, 64)
	return f
}

// AllocateClosure wraps fn with resolved upvalues.
func (h *Heap) AllocateClosure(fn *bytecode.Function, upvalues []*bytecode.Upvalue) *bytecode.Closure {
	c := &bytecode.Closure{Fn: fn, Upvalues: upvalues}
	h.track(c, 32+8*len(upvalues))
	return c
}

// AllocateUpvalue creates a new open upvalue pointing at slot.
func (h *Heap) AllocateUpvalue(slot *bytecode.Value) *bytecode.Upvalue {
	u := &bytecode.Upvalue{Location: slot}
	h.track(u, 32)
	return u
}

// AllocateNative registers a native function as a heap object (so it can
// be stored in globals and passed around like any other callable).
func (h *Heap) AllocateNative(name string, arity int, fn bytecode.NativeFn) *bytecode.Native {
	n := &bytecode.Native{Name: name, Arity: arity, Fn: fn}
	h.track(n, 32)
	return n
}

// AllocateInstance creates a new Instance object (spec §3.2's otherwise-
// unspecified Instance variant; see SPEC_FULL.md §3).
func (h *Heap) AllocateInstance(className string) *bytecode.Instance {
	i := bytecode.NewInstance(className)
	h.track(i, 48)
	return i
}

// ConcatStrings implements the ADD-on-two-strings path of spec §4.6: it
// builds the concatenated bytes, computes their hash, and looks them up in
// the intern table first, returning the existing interned twin when one
// exists. Only a concatenation not yet interned gets a new String, which
// is tracked on the heap's object list and added to the intern table, so
// no duplicate String object is ever allocated.
func (h *Heap) ConcatStrings(a, b *bytecode.String) *bytecode.String {
	chars := a.Chars + b.Chars
	hash := bytecode.HashString(chars)
	if existing := h.strings.FindString(chars, hash); existing != nil {
		return existing
	}
	s := &bytecode.String{Chars: chars, Hash: hash}
	h.track(s, len(chars)+16)
	h.strings.Set(bytecode.FromObj(s), bytecode.Nil)
	return s
}

// Stats reports the allocator's running totals: bytes currently allocated
// and the threshold that triggers the next collection.
type Stats struct {
	BytesAllocated int
	NextGC         int
}

func (h *Heap) Stats() Stats { return Stats{BytesAllocated: h.bytesAllocated, NextGC: h.nextGC} }

// logf writes a GC trace line when LogGC is enabled, matching the
// teacher's debugger.go convention of writing directly to an io.Writer
// rather than reaching for a logging package.
func (h *Heap) logf(format string, args ...interface{}) {
	if h.cfg.LogGC {
		fmt.Fprintf(h.cfg.LogWriter, format, args...)
	}
}
