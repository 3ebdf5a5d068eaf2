// Package condition implements the breakpoint condition evaluator and
// logpoint formatter (component C7): synchronous evaluation of a guard
// expression against the current register cache and memory.
package condition

import (
	"fmt"
	"strings"

	"github.com/zxnext/dzrp-mediator/internal/protocol"
	"github.com/zxnext/dzrp-mediator/internal/registers"
)

// MemoryReader reads a single byte from remote memory, used by "[addr]"
// dereference expressions.
type MemoryReader interface {
	ReadByte(addr uint16) (byte, error)
}

// registerNames maps every recognized register/flag token to how to read
// it off a RegisterSnapshot. 8-bit halves are derived from their 16-bit
// pair the way Z80 assemblers address them.
var registerNames = map[string]func(protocol.RegisterSnapshot) int64{
	"AF": func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegAF]) },
	"BC": func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegBC]) },
	"DE": func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegDE]) },
	"HL": func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegHL]) },
	"IX": func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegIX]) },
	"IY": func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegIY]) },
	"SP": func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegSP]) },
	"PC": func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegPC]) },
	"A":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegAF] >> 8) },
	"F":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegAF] & 0xFF) },
	"B":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegBC] >> 8) },
	"C":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegBC] & 0xFF) },
	"D":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegDE] >> 8) },
	"E":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegDE] & 0xFF) },
	"H":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegHL] >> 8) },
	"L":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegHL] & 0xFF) },
	"I":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegI]) },
	"R":  func(r protocol.RegisterSnapshot) int64 { return int64(r[protocol.RegR]) },
}

// Environment is the register/memory context an expression is evaluated
// against — an injected collaborator, never process-wide state (spec §9).
type Environment struct {
	Registers *registers.Cache
	Memory    MemoryReader
}

func (e *Environment) lookup(name string) (int64, bool, error) {
	fn, ok := registerNames[strings.ToUpper(name)]
	if !ok {
		return 0, false, nil
	}
	snap, err := e.Registers.Get()
	if err != nil {
		return 0, true, err
	}
	return fn(snap), true, nil
}

func (e *Environment) readMemory(addr int64) (int64, error) {
	if e.Memory == nil {
		return 0, fmt.Errorf("no memory reader configured")
	}
	b, err := e.Memory.ReadByte(uint16(addr))
	if err != nil {
		return 0, err
	}
	return int64(b), nil
}
