package dispatcher

import (
	"github.com/Masterminds/semver/v3"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

// supportedVersion is the constraint the mediator requires of the
// remote's advertised DZRP version (spec §4.11).
var supportedVersion = semver.MustParse(protocol.ProtocolVersion)

// Init performs the INIT handshake and validates the remote's protocol
// version against the version this mediator implements.
func (d *Dispatcher) Init() (protocol.InitResponse, error) {
	frame, err := d.Request(protocol.OpInit, protocol.EncodeInit())
	if err != nil {
		return protocol.InitResponse{}, err
	}
	resp, err := protocol.DecodeInitResponse(frame.Payload)
	if err != nil {
		return protocol.InitResponse{}, err
	}
	remoteVersion, err := semver.NewVersion(resp.Version)
	if err != nil {
		return protocol.InitResponse{}, dzrperr.Protocol("BAD_VERSION", "remote advertised an unparseable version: "+resp.Version)
	}
	if remoteVersion.Major() != supportedVersion.Major() {
		return protocol.InitResponse{}, dzrperr.Protocol("VERSION_MISMATCH",
			"remote DZRP major version "+remoteVersion.String()+" is incompatible with "+supportedVersion.String())
	}
	return resp, nil
}

// GetRegisters fetches the full register snapshot.
func (d *Dispatcher) GetRegisters() (protocol.RegisterSnapshot, error) {
	frame, err := d.Request(protocol.OpGetRegisters, nil)
	if err != nil {
		return protocol.RegisterSnapshot{}, err
	}
	return protocol.DecodeRegisters(frame.Payload)
}

// SetRegister writes one register and returns the remote's echoed
// (possibly clamped) value.
func (d *Dispatcher) SetRegister(idx protocol.RegisterIndex, value uint16) (uint16, error) {
	frame, err := d.Request(protocol.OpSetRegister, protocol.EncodeSetRegister(idx, value))
	if err != nil {
		return 0, err
	}
	if len(frame.Payload) < 2 {
		return value, nil
	}
	return uint16(frame.Payload[0]) | uint16(frame.Payload[1])<<8, nil
}

// AddBreakpoint installs a hardware/software breakpoint on the remote at
// addr and returns its remote-assigned id (0 if the remote rejected it).
func (d *Dispatcher) AddBreakpoint(addr uint16) (uint16, error) {
	frame, err := d.Request(protocol.OpAddBreakpoint, protocol.EncodeAddBreakpoint(addr))
	if err != nil {
		return 0, err
	}
	return protocol.DecodeAddBreakpointResponse(frame.Payload)
}

// RemoveBreakpoint removes a remote breakpoint by id.
func (d *Dispatcher) RemoveBreakpoint(id uint16) error {
	_, err := d.Request(protocol.OpRemoveBreakpoint, protocol.EncodeRemoveBreakpoint(id))
	return err
}

// AddWatchpoint installs a remote watchpoint.
func (d *Dispatcher) AddWatchpoint(addr, size uint16, access protocol.WatchpointAccess) error {
	_, err := d.Request(protocol.OpAddWatchpoint, protocol.EncodeAddWatchpoint(addr, size, access))
	return err
}

// RemoveWatchpoint removes a remote watchpoint keyed by (address, size).
func (d *Dispatcher) RemoveWatchpoint(addr, size uint16) error {
	_, err := d.Request(protocol.OpRemoveWatchpoint, protocol.EncodeRemoveWatchpoint(addr, size))
	return err
}

// ReadMemory reads length bytes starting at addr.
func (d *Dispatcher) ReadMemory(addr, length uint16) ([]byte, error) {
	frame, err := d.Request(protocol.OpReadMem, protocol.EncodeReadMem(addr, length))
	if err != nil {
		return nil, err
	}
	return frame.Payload, nil
}

// ReadByte reads a single byte, satisfying condition.MemoryReader.
func (d *Dispatcher) ReadByte(addr uint16) (byte, error) {
	data, err := d.ReadMemory(addr, 1)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, dzrperr.Protocol("SHORT_READ_MEM", "READ_MEM returned no bytes")
	}
	return data[0], nil
}

// WriteMemory writes data starting at addr.
func (d *Dispatcher) WriteMemory(addr uint16, data []byte) error {
	_, err := d.Request(protocol.OpWriteMem, protocol.EncodeWriteMem(addr, data))
	return err
}

// WriteBank writes one 8 KiB memory bank.
func (d *Dispatcher) WriteBank(bank uint8, data []byte) error {
	payload, err := protocol.EncodeWriteBank(bank, data)
	if err != nil {
		return err
	}
	_, err = d.Request(protocol.OpWriteBank, payload)
	return err
}

// GetSlots returns the 8 bank numbers currently mapped into the 64K
// address space.
func (d *Dispatcher) GetSlots() ([8]byte, error) {
	frame, err := d.Request(protocol.OpGetSlots, nil)
	if err != nil {
		return [8]byte{}, err
	}
	return protocol.DecodeGetSlots(frame.Payload)
}

// ReadState fetches the remote's opaque engine state blob, as saved to
// disk by saveState.
func (d *Dispatcher) ReadState() ([]byte, error) {
	frame, err := d.Request(protocol.OpReadState, protocol.EncodeReadState())
	if err != nil {
		return nil, err
	}
	return frame.Payload, nil
}

// WriteState restores a previously captured opaque engine state blob.
func (d *Dispatcher) WriteState(state []byte) error {
	_, err := d.Request(protocol.OpWriteState, protocol.EncodeWriteState(state))
	return err
}

// Passthrough issues a ZX-Next auxiliary command (TBBlue registers,
// sprites, border) whose request/response semantics are entirely defined
// by the remote; the core neither encodes nor interprets the payload.
func (d *Dispatcher) Passthrough(opcode protocol.Opcode, payload []byte) ([]byte, error) {
	frame, err := d.Request(opcode, payload)
	if err != nil {
		return nil, err
	}
	return frame.Payload, nil
}
