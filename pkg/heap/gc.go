package heap

import (
	"github.com/dustin/go-humanize"

	"github.com/kristofer/vex/pkg/bytecode"
)

// Collect runs one full mark-sweep cycle (spec §4.7). It is safe to call
// at any allocation boundary: the collector never allocates itself, and
// objects created mid-cycle (there are none, by the invariant above) would
// start unmarked and survive to the next cycle regardless.
func (h *Heap) Collect() {
	if h.collecting {
		return
	}
	h.collecting = true
	defer func() { h.collecting = false }()

	before := h.bytesAllocated
	h.markRoots()
	h.traceReferences()
	h.removeUnmarkedStrings()
	h.sweep()

	h.nextGC = int(float64(h.bytesAllocated) * h.cfg.GrowFactor)
	if h.nextGC < h.cfg.InitialThreshold {
		h.nextGC = h.cfg.InitialThreshold
	}
	h.logf("gc: collected %s (from %s to %s), next at %s\n",
		humanize.Bytes(uint64(before-h.bytesAllocated)),
		humanize.Bytes(uint64(before)),
		humanize.Bytes(uint64(h.bytesAllocated)),
		humanize.Bytes(uint64(h.nextGC)))
}

// markRoots marks every GC root: the VM's roots (value stack, globals,
// frames, open upvalues) and, for each active Compiler in the enclosing
// chain, its function under construction (spec §4.7 "Roots").
func (h *Heap) markRoots() {
	if h.vmRoot != nil {
		h.vmRoot.MarkRoots(h)
	}
	for _, c := range h.compilerRoots {
		c.MarkRoots(h)
	}
}

// MarkValue marks v's object (if it is one and isn't already marked) and
// pushes it onto the gray worklist for tracing. Root-marking callbacks
// (VM.MarkRoots, Compiler.MarkRoots) call this for every Value they own.
func (h *Heap) MarkValue(v bytecode.Value) {
	if v.IsObj() {
		h.MarkObject(v.AsObj())
	}
}

// MarkObject marks o, pushing it onto the gray stack the first time it is
// seen. Marking a nil interface (an absent optional reference) is a no-op.
func (h *Heap) MarkObject(o bytecode.Obj) {
	if o == nil || bytecode.IsMarked(o) {
		return
	}
	bytecode.SetMarked(o, true)
	h.grayStack = append(h.grayStack, o)
}

// traceReferences drains the gray stack, "blackening" each object by
// marking everything it references in turn (spec §4.7 step 2).
func (h *Heap) traceReferences() {
	for len(h.grayStack) > 0 {
		n := len(h.grayStack) - 1
		o := h.grayStack[n]
		h.grayStack = h.grayStack[:n]
		h.blacken(o)
	}
}

// blacken marks every object reachable in one hop from o, per spec
// §4.7's per-variant list: "function name, chunk constants, closure's
// function and its upvalues, upvalue's closed value".
func (h *Heap) blacken(o bytecode.Obj) {
	switch v := o.(type) {
	case *bytecode.String:
		// no further references
	case *bytecode.Function:
		if v.Name != nil {
			h.MarkObject(v.Name)
		}
		for _, c := range v.Chunk.Constants {
			h.MarkValue(c)
		}
	case *bytecode.Closure:
		h.MarkObject(v.Fn)
		for _, uv := range v.Upvalues {
			h.MarkObject(uv)
		}
	case *bytecode.Upvalue:
		if !v.IsOpen() {
			h.MarkValue(v.Closed)
		}
	case *bytecode.Native:
		// no further references
	case *bytecode.Instance:
		for _, fv := range v.Fields {
			h.MarkValue(fv)
		}
	}
}

// removeUnmarkedStrings implements spec §4.7 step 3 ("weak reference
// pass"): strings reachable only from the intern table itself must not
// resurrect, so any String not marked during tracing is dropped from the
// table before the sweep frees it.
func (h *Heap) removeUnmarkedStrings() {
	h.strings.DeleteUnmarkedStrings(func(s *bytecode.String) bool {
		return bytecode.IsMarked(s)
	})
}

// sweep walks the all-objects list, unlinking and discarding unmarked
// objects and clearing the mark bit on survivors (spec §4.7 step 4). Go
// has no manual free; "discard" means drop it from the list so nothing in
// the heap keeps it reachable, and the Go garbage collector reclaims the
// underlying memory in its own time. This still gives the mark-sweep
// cycle its spec-mandated externally observable behavior (object identity,
// weak string interning, bounded live-set growth) — see DESIGN.md.
func (h *Heap) sweep() {
	var prev bytecode.Obj
	cur := h.objects
	freed := 0
	for cur != nil {
		next := bytecode.NextObj(cur)
		if bytecode.IsMarked(cur) {
			bytecode.SetMarked(cur, false)
			prev = cur
			cur = next
			continue
		}
		// unlink
		if prev == nil {
			h.objects = next
		} else {
			bytecode.SetNextObj(prev, next)
		}
		freed += sizeOf(cur)
		cur = next
	}
	h.bytesAllocated -= freed
	if h.bytesAllocated < 0 {
		h.bytesAllocated = 0
	}
}

// sizeOf estimates an object's accounted size, mirroring the sizes
// track() charged on allocation, so sweep can give back roughly what was
// taken.
func sizeOf(o bytecode.Obj) int {
	switch v := o.(type) {
	case *bytecode.String:
		return len(v.Chars) + 16
	case *bytecode.Function:
		return 64
	case *bytecode.Closure:
		return 32 + 8*len(v.Upvalues)
	case *bytecode.Upvalue:
		return 32
	case *bytecode.Native:
		return 32
	case *bytecode.Instance:
		return 48
	default:
		return 16
	}
}
