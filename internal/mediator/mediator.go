// Package mediator wires components C1-C9 into the single object a
// front-end talks to: one Mediator per remote connection, exposing every
// debugger-facing operation over the DZRP transport it owns.
package mediator

import (
	"time"

	"github.com/zxnext/dzrp-mediator/internal/breakpoint"
	"github.com/zxnext/dzrp-mediator/internal/condition"
	"github.com/zxnext/dzrp-mediator/internal/dispatcher"
	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
	"github.com/zxnext/dzrp-mediator/internal/hwbreak"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
	"github.com/zxnext/dzrp-mediator/internal/registers"
	"github.com/zxnext/dzrp-mediator/internal/session"
	"github.com/zxnext/dzrp-mediator/internal/snapshot"
	"github.com/zxnext/dzrp-mediator/internal/stepping"
	"github.com/zxnext/dzrp-mediator/internal/transport"
)

// Mediator is the session-scoped object gluing transport, codec,
// dispatcher, register cache, breakpoint table, condition evaluator,
// stepping controller, snapshot loader, and HW-breakpoint shim into the
// operation surface a debugger front-end drives (spec §6).
type Mediator struct {
	disp *dispatcher.Dispatcher
	regs *registers.Cache
	bps  *breakpoint.Table
	cond *condition.Evaluator
	step *stepping.Controller
	snap *snapshot.Loader
	hw   *hwbreak.Installer

	logger *session.Logger
	cfg    *session.Config

	stackUnwinder CallStackUnwinder
}

// CallStackUnwinder lets a front-end register its call-stack view so a
// snapshot load can clear it (spec §4.8). Nil by default.
type CallStackUnwinder interface {
	ClearCallStack()
}

// Connect dials the transport backend named by cfg.TransportKind, performs
// the INIT handshake, and returns a fully wired Mediator.
func Connect(cfg *session.Config, logger *session.Logger) (*Mediator, error) {
	connectTimeout := time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	responseTimeout := time.Duration(cfg.ResponseTimeoutMs) * time.Millisecond
	stepOutWatchdog := time.Duration(cfg.StepOutWatchdogMs) * time.Millisecond

	tr, err := dial(cfg, connectTimeout)
	if err != nil {
		return nil, err
	}

	m := New(tr, logger, responseTimeout, stepOutWatchdog)
	m.cfg = cfg
	if _, err := m.disp.Init(); err != nil {
		_ = tr.Disconnect()
		return nil, err
	}
	return m, nil
}

func dial(cfg *session.Config, connectTimeout time.Duration) (transport.Transport, error) {
	switch cfg.TransportKind {
	case "", "tcp":
		return transport.DialTCP(cfg.Host, cfg.Port, connectTimeout)
	case "serial":
		baud := cfg.SerialBaud
		if baud == 0 {
			baud = 115200
		}
		return transport.DialSerial(cfg.SerialDevice, baud)
	case "quic":
		return transport.DialQUIC(cfg.Host, cfg.Port, connectTimeout)
	default:
		return nil, dzrperr.Validation("UNKNOWN_TRANSPORT", "unrecognized transport kind",
			map[string]interface{}{"transport_kind": cfg.TransportKind})
	}
}

// New wires a Mediator around an already-connected Transport. Exported
// separately from Connect so tests can supply a net.Pipe() double.
// stepOutWatchdog bounds StepOut's resume wait; <=0 falls back to
// responseTimeout.
func New(tr transport.Transport, logger *session.Logger, responseTimeout, stepOutWatchdog time.Duration) *Mediator {
	disp := dispatcher.New(tr, logger, responseTimeout)
	regs := registers.NewCache(disp.GetRegisters)
	bps := breakpoint.NewTable()
	cond := condition.NewEvaluator(logger)
	stp := stepping.New(disp, regs, disp, bps, cond, logger, stepOutWatchdog)
	snap := snapshot.New(disp, regs, nil)
	hw := hwbreak.New(disp)

	return &Mediator{
		disp:   disp,
		regs:   regs,
		bps:    bps,
		cond:   cond,
		step:   stp,
		snap:   snap,
		hw:     hw,
		logger: logger,
	}
}

// SetCallStackUnwinder registers the collaborator whose view is cleared on
// snapshot load. Replaces snap's nil CallStackUnwinder with a thin adapter
// since snapshot.Loader captured it at construction time.
func (m *Mediator) SetCallStackUnwinder(u CallStackUnwinder) {
	m.stackUnwinder = u
	m.snap = snapshot.New(m.disp, m.regs, unwinderAdapter{m})
}

type unwinderAdapter struct{ m *Mediator }

func (a unwinderAdapter) ClearCallStack() {
	if a.m.stackUnwinder != nil {
		a.m.stackUnwinder.ClearCallStack()
	}
}

// Disconnect invalidates the register cache and tears down the underlying
// transport.
func (m *Mediator) Disconnect() error {
	m.regs.Invalidate()
	return m.disp.Disconnect()
}

// Done is closed when the session has disconnected, for a front-end to
// select on alongside its own shutdown signal.
func (m *Mediator) Done() <-chan struct{} { return m.disp.Done() }

// Continue resumes execution with no ephemeral step breakpoints.
func (m *Mediator) Continue() (string, error) { return m.step.Continue() }

// StepInto executes one source-level step, descending into calls.
func (m *Mediator) StepInto() (string, error) { return m.step.StepInto() }

// StepOver executes one source-level step without stopping inside a call
// or block-repeat instruction.
func (m *Mediator) StepOver() (string, error) { return m.step.StepOver() }

// StepOut runs until control returns to the current function's caller.
func (m *Mediator) StepOut() (string, error) { return m.step.StepOut() }

// Pause requests a manual break.
func (m *Mediator) Pause() error { return m.step.Pause() }

// SetBreakpoint installs a user breakpoint, optionally guarded by
// condition and/or firing a logpoint line instead of pausing.
func (m *Mediator) SetBreakpoint(addr int, condExpr, log string) (uint16, error) {
	kind := breakpoint.KindUser
	if log != "" {
		kind = breakpoint.KindLog
	}
	return m.bps.Add(addr, condExpr, log, kind)
}

// SetAssert installs an assertion breakpoint: it only matters while
// EnableAsserts(true) is in effect.
func (m *Mediator) SetAssert(addr int, condExpr string) (uint16, error) {
	return m.bps.Add(addr, condExpr, "", breakpoint.KindAssert)
}

// RemoveBreakpoint removes a breakpoint, assertion, or logpoint by id.
func (m *Mediator) RemoveBreakpoint(id uint16) error {
	return m.bps.Remove(id)
}

// EnableAsserts toggles whether assertion breakpoints participate in the
// next rebuilt index.
func (m *Mediator) EnableAsserts(enabled bool) {
	m.bps.EnableAsserts(enabled)
}

// EnableLogpoints toggles a set of logpoints on or off in bulk.
func (m *Mediator) EnableLogpoints(ids []uint16, enabled bool) {
	m.bps.EnableLogpoints(ids, enabled)
}

// SetWatchpoint installs a remote watchpoint. The remote report is
// unconditional; the stepping controller evaluates condExpr locally
// against the register/memory environment at the time the watchpoint
// notification arrives and suppresses the pause when it evaluates false
// (spec §4.7).
func (m *Mediator) SetWatchpoint(addr, size uint16, access protocol.WatchpointAccess, condExpr string) error {
	if err := m.disp.AddWatchpoint(addr, size, access); err != nil {
		return err
	}
	m.bps.AddWatchpoint(addr, size, byte(access), condExpr)
	return nil
}

// RemoveWatchpoint removes a watchpoint keyed by (address, size).
func (m *Mediator) RemoveWatchpoint(addr, size uint16) error {
	if err := m.disp.RemoveWatchpoint(addr, size); err != nil {
		return err
	}
	return m.bps.RemoveWatchpoint(addr, size)
}

// AddHWBreakpoint installs a displacement-based breakpoint via the C9 shim.
func (m *Mediator) AddHWBreakpoint(addr uint16) (uint16, error) { return m.hw.Add(addr) }

// RemoveHWBreakpoint removes a C9 displacement-based breakpoint.
func (m *Mediator) RemoveHWBreakpoint(id uint16) error { return m.hw.Remove(id) }

// ReadMemory reads length bytes starting at addr.
func (m *Mediator) ReadMemory(addr, length uint16) ([]byte, error) {
	return m.disp.ReadMemory(addr, length)
}

// WriteMemory writes data starting at addr.
func (m *Mediator) WriteMemory(addr uint16, data []byte) error {
	return m.disp.WriteMemory(addr, data)
}

// GetRegisters returns the current register snapshot, served from cache
// when valid.
func (m *Mediator) GetRegisters() (protocol.RegisterSnapshot, error) { return m.regs.Get() }

// SetRegister writes one register and invalidates the cache.
func (m *Mediator) SetRegister(idx protocol.RegisterIndex, value uint16) (uint16, error) {
	v, err := m.disp.SetRegister(idx, value)
	if err != nil {
		return 0, err
	}
	m.regs.Invalidate()
	return v, nil
}

// GetSlots returns the 8 bank numbers mapped into the 64K address space.
func (m *Mediator) GetSlots() ([8]byte, error) { return m.disp.GetSlots() }

// LoadSnapshot parses and replays a .sna/.nex file at path.
func (m *Mediator) LoadSnapshot(path string) error { return m.snap.Load(path) }

// SaveState captures the remote's opaque engine state to path, gzip
// compressed (spec §6 "saveState/restoreState").
func (m *Mediator) SaveState(path string) error {
	state, err := m.disp.ReadState()
	if err != nil {
		return err
	}
	return writeGzip(path, state)
}

// RestoreState reloads a state blob previously written by SaveState and
// invalidates the register cache afterward.
func (m *Mediator) RestoreState(path string) error {
	state, err := readGzip(path)
	if err != nil {
		return err
	}
	if err := m.disp.WriteState(state); err != nil {
		return err
	}
	m.regs.Invalidate()
	return nil
}

// Passthrough issues a ZX-Next auxiliary command (TBBlue registers,
// sprites, border) whose payload is opaque to the core.
func (m *Mediator) Passthrough(opcode protocol.Opcode, payload []byte) ([]byte, error) {
	return m.disp.Passthrough(opcode, payload)
}
