// Package hwbreak implements the HW-breakpoint shim (component C9):
// bookkeeping for remotes that trap breakpoints by displacing the opcode
// at the target address rather than via dedicated breakpoint hardware.
package hwbreak

import (
	"sync"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
)

// Remote is the subset of the dispatcher the shim drives directly,
// bypassing the breakpoint table (which only tracks the logical
// address/condition, not the physical displaced byte).
type Remote interface {
	ReadByte(addr uint16) (byte, error)
	WriteMemory(addr uint16, data []byte) error
	AddBreakpoint(addr uint16) (uint16, error)
	RemoveBreakpoint(id uint16) error
}

// displaced records what ADD_BP overwrote at one address, so REMOVE_BP
// can restore it.
type displaced struct {
	address uint16
	opcode  byte
}

// Installer is the software-breakpoint-via-displacement bookkeeper. It
// wraps a Remote's ADD_BP/REMOVE_BP with the read-before-trap and
// restore-after-remove steps spec §4.9 requires.
type Installer struct {
	remote Remote

	mu   sync.Mutex
	byID map[uint16]displaced
}

// New creates an Installer driving remote.
func New(remote Remote) *Installer {
	return &Installer{remote: remote, byID: make(map[uint16]displaced)}
}

// Add reads the byte at addr before installing the trap; if that read
// fails, the add is rejected outright, preserving the invariant that an
// id present in byID always has a real displaced byte to restore.
func (in *Installer) Add(addr uint16) (uint16, error) {
	opcode, err := in.remote.ReadByte(addr)
	if err != nil {
		return 0, dzrperr.Validation("DISPLACED_READ_FAILED",
			"cannot install a breakpoint without first reading the byte it would displace",
			map[string]interface{}{"address": addr})
	}

	id, err := in.remote.AddBreakpoint(addr)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, nil
	}

	in.mu.Lock()
	in.byID[id] = displaced{address: addr, opcode: opcode}
	in.mu.Unlock()
	return id, nil
}

// Remove removes the trap via the protocol and restores the displaced
// byte. An id with no recorded displacement (never added through this
// shim) is a validation error, not a silent no-op.
func (in *Installer) Remove(id uint16) error {
	in.mu.Lock()
	d, ok := in.byID[id]
	in.mu.Unlock()
	if !ok {
		return dzrperr.Validation("UNKNOWN_HW_BREAKPOINT", "no displaced byte recorded for that id",
			map[string]interface{}{"id": id})
	}

	if err := in.remote.RemoveBreakpoint(id); err != nil {
		return err
	}
	if err := in.remote.WriteMemory(d.address, []byte{d.opcode}); err != nil {
		return err
	}

	in.mu.Lock()
	delete(in.byID, id)
	in.mu.Unlock()
	return nil
}

// DisplacedOpcode returns the byte recorded at id's installation, for
// diagnostics and tests.
func (in *Installer) DisplacedOpcode(id uint16) (byte, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	d, ok := in.byID[id]
	return d.opcode, ok
}
