// Package table implements the open-addressed hash table of spec §4.2,
// used both for string interning (pkg/heap) and for per-table variable
// lookup — the global environment's name index and, incidentally, any
// other name->slot map the VM needs (pkg/vm).
package table

import (
	"math"

	"github.com/kristofer/vex/pkg/bytecode"
)

// loadFactor is the threshold at which Table grows (spec §4.2: "load
// factor threshold 0.75").
const loadFactor = 0.75

// entry is one slot of the table. A slot is empty when Key.IsEmpty() and
// Value.IsNil(); it is a tombstone when Key.IsEmpty() and Value is
// anything else (spec §4.2's three-state slot scheme).
type entry struct {
	Key   bytecode.Value
	Value bytecode.Value
}

func (e entry) isEmpty() bool     { return e.Key.IsEmpty() && e.Value.IsNil() }
func (e entry) isTombstone() bool { return e.Key.IsEmpty() && !e.Value.IsNil() }

// Table is the open-addressed hash table of spec §4.2: linear probing,
// tombstone deletion, and doubling growth at 75% load.
type Table struct {
	entries []entry
	// count is occupied+tombstone slots, i.e. the quantity that drives the
	// load-factor growth decision (a tombstone still occupies a probe
	// position until the next rehash discards it).
	count int
}

// Count returns the number of live (non-tombstone) entries.
func (t *Table) Count() int {
	live := 0
	for _, e := range t.entries {
		if !e.isEmpty() && !e.isTombstone() {
			live++
		}
	}
	return live
}

// Capacity returns the current backing array size (0 before first growth).
func (t *Table) Capacity() int { return len(t.entries) }

// hashOf computes a probe hash for any Value. Strings use their cached
// FNV-1a hash (spec §3.2); other kinds get a cheap but stable hash since
// the table's spec-mandated use cases (interning, name maps) only ever
// key by String, but the probe/invariant tests in spec §8 exercise
// arbitrary Values too.
func hashOf(v bytecode.Value) uint32 {
	switch {
	case v.IsString():
		return v.AsString().Hash
	case v.IsNumber():
		bits := math.Float64bits(v.AsNumber())
		return uint32(bits) ^ uint32(bits>>32)
	case v.IsBool():
		if v.AsBool() {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Get looks up key, returning its value and whether it was found.
func (t *Table) Get(key bytecode.Value) (bytecode.Value, bool) {
	if len(t.entries) == 0 {
		return bytecode.Nil, false
	}
	e := t.find(key)
	if e.isEmpty() || e.isTombstone() {
		return bytecode.Nil, false
	}
	return e.Value, true
}

// Set stores value under key, growing the table first if needed. It
// returns true if key was not already present (a new entry was added,
// whether into an empty slot or a reused tombstone).
func (t *Table) Set(key, value bytecode.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*loadFactor {
		t.grow()
	}
	idx := t.findSlot(t.entries, key)
	e := &t.entries[idx]
	isNewSlot := e.isEmpty()
	isNewKey := isNewSlot || e.isTombstone()
	if isNewSlot {
		t.count++
	}
	e.Key = key
	e.Value = value
	return isNewKey
}

// Delete tombstones key's slot so later probes keep walking past it, per
// spec §4.2 ("stopping on tombstone only for insertion"). Returns true if
// key was present.
func (t *Table) Delete(key bytecode.Value) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := t.findSlot(t.entries, key)
	e := &t.entries[idx]
	if e.isEmpty() {
		return false
	}
	e.Key = bytecode.Empty
	e.Value = bytecode.True // any non-Nil marks a tombstone
	return true
}

// FindString probes the table by raw bytes and hash, without allocating a
// Value/String to compare against — the operation that makes interning
// possible without allocation (spec §4.2).
func (t *Table) FindString(chars string, hash uint32) *bytecode.String {
	if len(t.entries) == 0 {
		return nil
	}
	cap := len(t.entries)
	idx := int(hash) % cap
	for {
		e := &t.entries[idx]
		if e.isEmpty() {
			return nil
		}
		if e.Key.IsString() {
			s := e.Key.AsString()
			if s.Hash == hash && s.Chars == chars {
				return s
			}
		}
		idx = (idx + 1) % cap
	}
}

// find returns the entry housing key (or the terminating empty slot, if
// absent).
func (t *Table) find(key bytecode.Value) entry {
	idx := t.findSlot(t.entries, key)
	return t.entries[idx]
}

// findSlot implements the linear probe of spec §4.2: walk
// `(index+1) mod capacity` until an empty slot is seen, returning the
// first tombstone encountered along the way so Set can reuse it (get and
// delete ignore that reuse and keep walking since only insertion should
// stop early at a tombstone).
func (t *Table) findSlot(entries []entry, key bytecode.Value) int {
	capN := len(entries)
	idx := int(hashOf(key)) % capN
	var tombstone = -1
	for {
		e := &entries[idx]
		switch {
		case e.isEmpty():
			if tombstone != -1 {
				return tombstone
			}
			return idx
		case e.isTombstone():
			if tombstone == -1 {
				tombstone = idx
			}
		default:
			if bytecode.Equal(e.Key, key) {
				return idx
			}
		}
		idx = (idx + 1) % capN
	}
}

// grow doubles the table (or starts it at 8 slots) and rehashes,
// discarding tombstones as spec §4.2 requires ("rehash copies only
// occupied entries").
func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]entry, newCap)
	for i := range newEntries {
		newEntries[i] = entry{Key: bytecode.Empty, Value: bytecode.Nil}
	}

	newCount := 0
	for _, e := range t.entries {
		if e.isEmpty() || e.isTombstone() {
			continue
		}
		idx := t.findSlot(newEntries, e.Key)
		newEntries[idx] = e
		newCount++
	}
	t.entries = newEntries
	t.count = newCount
}

// Each calls fn for every live entry, in storage order. Iteration order is
// unspecified otherwise, matching the open-addressing scheme's lack of
// insertion ordering.
func (t *Table) Each(fn func(key, value bytecode.Value)) {
	for _, e := range t.entries {
		if e.isEmpty() || e.isTombstone() {
			continue
		}
		fn(e.Key, e.Value)
	}
}

// DeleteUnmarkedStrings removes every String key whose backing object is
// unmarked, per spec §4.7 step 3 ("weak reference pass"). marked reports
// whether a given heap object survived the mark phase.
func (t *Table) DeleteUnmarkedStrings(marked func(s *bytecode.String) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.isEmpty() || e.isTombstone() {
			continue
		}
		if s := e.Key.AsString(); !marked(s) {
			e.Key = bytecode.Empty
			e.Value = bytecode.True
		}
	}
}
