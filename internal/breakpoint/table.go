// Package breakpoint implements the breakpoint/assertion/logpoint table
// (component C5): id allocation, validation, and the per-address index
// rebuilt on every resume.
package breakpoint

import (
	"sync"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
)

// Kind distinguishes a plain user breakpoint from an assertion or a
// logpoint (spec §3 "Breakpoint").
type Kind int

const (
	KindUser Kind = iota
	KindAssert
	KindLog
)

// Breakpoint is one entry in the table.
type Breakpoint struct {
	ID        uint16
	Address   uint16
	Condition string // optional guard expression, "" if unset
	Log       string // optional format string, "" if unset
	Kind      Kind
	// LogEnabled gates whether an enabled logpoint currently fires;
	// toggled in bulk by enableLogpoints.
	LogEnabled bool
}

// Watchpoint has no id; it is keyed by (address, size) on removal
// (spec §3 "Watchpoint").
type Watchpoint struct {
	Address   uint16
	Size      uint16
	Access    byte
	Condition string
}

// Table owns the user/assert/log breakpoint collections, the watchpoint
// list, and the address index rebuilt on resume entry.
type Table struct {
	mu sync.Mutex

	nextID      uint16
	byID        map[uint16]*Breakpoint
	watchpoints []Watchpoint

	assertsEnabled bool

	// index is the per-address cache (spec §3 "Per-address breakpoint
	// index"); it is a cache, not truth, rebuilt wholesale on every
	// resume entry to avoid incremental-update bugs.
	index map[uint16][]*Breakpoint
}

// NewTable creates an empty breakpoint table.
func NewTable() *Table {
	return &Table{
		byID:  make(map[uint16]*Breakpoint),
		index: make(map[uint16][]*Breakpoint),
	}
}

// Add validates and inserts a breakpoint. addr is an int so out-of-range
// and negative requests (spec §8 boundary: "setBreakpoint(-1) returns 0")
// can be rejected instead of silently wrapping. Returns id=0 on rejection.
func (t *Table) Add(addr int, condition, log string, kind Kind) (uint16, error) {
	if addr < 0 || addr > 0xFFFF {
		return 0, dzrperr.Validation("ADDRESS_OUT_OF_RANGE",
			"breakpoint address out of range", map[string]interface{}{"address": addr})
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.allocateID()
	if !ok {
		return 0, dzrperr.Validation("IDS_EXHAUSTED", "breakpoint id space exhausted", nil)
	}

	bp := &Breakpoint{
		ID:         id,
		Address:    uint16(addr),
		Condition:  condition,
		Log:        log,
		Kind:       kind,
		LogEnabled: kind == KindLog,
	}
	t.byID[id] = bp
	return id, nil
}

// allocateID finds the next unused id in 1..65535, wrapping around.
// Must be called with t.mu held.
func (t *Table) allocateID() (uint16, bool) {
	if len(t.byID) >= 0xFFFF {
		return 0, false
	}
	for i := 0; i < 0xFFFF; i++ {
		t.nextID++
		if t.nextID == 0 {
			t.nextID = 1
		}
		if _, exists := t.byID[t.nextID]; !exists {
			return t.nextID, true
		}
	}
	return 0, false
}

// Remove deletes a breakpoint by id. Removal always succeeds exactly
// once for a given id (spec §8 invariant 1); a second removal is a no-op
// error, never a silent success.
func (t *Table) Remove(id uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		return dzrperr.Validation("UNKNOWN_BREAKPOINT_ID", "no breakpoint with that id", map[string]interface{}{"id": id})
	}
	delete(t.byID, id)
	return nil
}

// Get returns the breakpoint with the given id, if any.
func (t *Table) Get(id uint16) (Breakpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bp, ok := t.byID[id]
	if !ok {
		return Breakpoint{}, false
	}
	return *bp, true
}

// EnableAsserts toggles whether assertion breakpoints participate in the
// rebuilt index.
func (t *Table) EnableAsserts(enabled bool) {
	t.mu.Lock()
	t.assertsEnabled = enabled
	t.mu.Unlock()
}

// EnableLogpoints toggles LogEnabled for a set of logpoint ids.
func (t *Table) EnableLogpoints(ids []uint16, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if bp, ok := t.byID[id]; ok && bp.Kind == KindLog {
			bp.LogEnabled = enabled
		}
	}
}

// AddWatchpoint inserts a watchpoint; there is no id, only (address, size).
func (t *Table) AddWatchpoint(addr, size uint16, access byte, condition string) {
	t.mu.Lock()
	t.watchpoints = append(t.watchpoints, Watchpoint{Address: addr, Size: size, Access: access, Condition: condition})
	t.mu.Unlock()
}

// RemoveWatchpoint deletes the watchpoint keyed by (address, size).
func (t *Table) RemoveWatchpoint(addr, size uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, wp := range t.watchpoints {
		if wp.Address == addr && wp.Size == size {
			t.watchpoints = append(t.watchpoints[:i], t.watchpoints[i+1:]...)
			return nil
		}
	}
	return dzrperr.Validation("UNKNOWN_WATCHPOINT", "no watchpoint at that address/size",
		map[string]interface{}{"address": addr, "size": size})
}

// WatchpointsAt returns every watchpoint whose [Address, Address+Size)
// range covers addr. A zero-size watchpoint matches only addr itself.
func (t *Table) WatchpointsAt(addr uint16) []Watchpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Watchpoint
	for _, wp := range t.watchpoints {
		size := wp.Size
		if size == 0 {
			size = 1
		}
		if addr >= wp.Address && addr < wp.Address+size {
			out = append(out, wp)
		}
	}
	return out
}

// RebuildIndex recomputes the per-address index from scratch: the union
// of user breakpoints, enabled asserts, and enabled logpoints (spec §4.5).
// Called on every resume entry.
func (t *Table) RebuildIndex() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.index = make(map[uint16][]*Breakpoint, len(t.byID))
	for _, bp := range t.byID {
		switch bp.Kind {
		case KindAssert:
			if !t.assertsEnabled {
				continue
			}
		case KindLog:
			if !bp.LogEnabled {
				continue
			}
		}
		t.index[bp.Address] = append(t.index[bp.Address], bp)
	}
}

// At returns the breakpoints active at addr per the last-rebuilt index
// (spec §8 invariant 2: union of user, enabled-assert, enabled-log).
func (t *Table) At(addr uint16) []Breakpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := t.index[addr]
	out := make([]Breakpoint, len(entries))
	for i, bp := range entries {
		out[i] = *bp
	}
	return out
}

// MatchAssert finds an assert breakpoint at addr whose stored condition
// text equals condition, used to distinguish a plain breakpoint hit from
// an assertion failure (spec §4.5, §9 open question: the source's
// "condition equals breakpoint's condition" test conflates condition
// text with violation predicate; preserved here under test, not changed).
// An index entry that has been removed, or whose asserts have been
// disabled, since the last rebuild does not match.
func (t *Table) MatchAssert(addr uint16, condition string) (Breakpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, bp := range t.index[addr] {
		if bp.Kind != KindAssert || bp.Condition != condition {
			continue
		}
		if t.byID[bp.ID] != bp || !t.assertsEnabled {
			continue
		}
		return *bp, true
	}
	return Breakpoint{}, false
}
