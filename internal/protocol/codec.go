package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
)

// BreakReason is the breakNumber carried by a pause notification (spec §6).
type BreakReason byte

const (
	NoReason        BreakReason = 0
	ManualBreak     BreakReason = 1
	BreakpointHit   BreakReason = 2
	WatchpointRead  BreakReason = 3
	WatchpointWrite BreakReason = 4
)

// EncodeInit builds the INIT request payload: protocol version [1,0,0].
func EncodeInit() []byte {
	return []byte{1, 0, 0}
}

// InitResponse is the decoded INIT reply: remote's echoed version and a
// raw capability bitset whose meaning is opaque to the core.
type InitResponse struct {
	Version      string
	Capabilities uint32
}

// DecodeInitResponse parses an INIT response payload.
func DecodeInitResponse(payload []byte) (InitResponse, error) {
	if len(payload) < 7 {
		return InitResponse{}, dzrperr.Protocol("SHORT_INIT", "INIT response too short")
	}
	version := fmt.Sprintf("%d.%d.%d", payload[0], payload[1], payload[2])
	caps := binary.LittleEndian.Uint32(payload[3:7])
	return InitResponse{Version: version, Capabilities: caps}, nil
}

// DecodeRegisters parses a GET_REGISTERS response: RegisterCount
// little-endian u16 words in RegisterIndex order.
func DecodeRegisters(payload []byte) (RegisterSnapshot, error) {
	var regs RegisterSnapshot
	want := int(RegisterCount) * 2
	if len(payload) < want {
		return regs, dzrperr.Protocol("SHORT_REGISTERS", fmt.Sprintf("expected %d bytes, got %d", want, len(payload)))
	}
	for i := 0; i < int(RegisterCount); i++ {
		regs[i] = binary.LittleEndian.Uint16(payload[i*2:])
	}
	return regs, nil
}

// EncodeSetRegister builds a SET_REGISTER request: the canonical index
// followed by a 1-byte value (I, R) or a 2-byte little-endian value
// (everything else).
func EncodeSetRegister(idx RegisterIndex, value uint16) []byte {
	if idx.Wide8Bit() {
		return []byte{byte(idx), byte(value)}
	}
	buf := make([]byte, 3)
	buf[0] = byte(idx)
	binary.LittleEndian.PutUint16(buf[1:], value)
	return buf
}

// EncodeContinue builds a CONTINUE request. bp1/bp2 are the ephemeral
// step breakpoints (spec §4.6); either or both may be absent.
func EncodeContinue(bp1, bp2 *uint16) []byte {
	buf := make([]byte, 0, 5)
	flags := byte(0)
	if bp1 != nil {
		flags |= 1
	}
	if bp2 != nil {
		flags |= 2
	}
	buf = append(buf, flags)
	if bp1 != nil {
		buf = binary.LittleEndian.AppendUint16(buf, *bp1)
	}
	if bp2 != nil {
		buf = binary.LittleEndian.AppendUint16(buf, *bp2)
	}
	return buf
}

// EncodeAddBreakpoint builds an ADD_BP request for a PC address.
func EncodeAddBreakpoint(addr uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, addr)
	return buf
}

// DecodeAddBreakpointResponse parses the assigned breakpoint id (0 if the
// remote rejected the request, e.g. out of hardware slots).
func DecodeAddBreakpointResponse(payload []byte) (uint16, error) {
	if len(payload) < 2 {
		return 0, dzrperr.Protocol("SHORT_ADD_BP", "ADD_BP response too short")
	}
	return binary.LittleEndian.Uint16(payload), nil
}

// EncodeRemoveBreakpoint builds a REMOVE_BP request.
func EncodeRemoveBreakpoint(id uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, id)
	return buf
}

// WatchpointAccess selects a watchpoint's trigger condition.
type WatchpointAccess byte

const (
	WatchRead      WatchpointAccess = 0
	WatchWrite     WatchpointAccess = 1
	WatchReadWrite WatchpointAccess = 2
)

// EncodeAddWatchpoint builds an ADD_WP request.
func EncodeAddWatchpoint(addr, size uint16, access WatchpointAccess) []byte {
	buf := make([]byte, 5)
	binary.LittleEndian.PutUint16(buf, addr)
	binary.LittleEndian.PutUint16(buf[2:], size)
	buf[4] = byte(access)
	return buf
}

// EncodeRemoveWatchpoint builds a REMOVE_WP request, keyed by (address, size).
func EncodeRemoveWatchpoint(addr, size uint16) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf, addr)
	binary.LittleEndian.PutUint16(buf[2:], size)
	return buf
}

// EncodeReadMem builds a READ_MEM request.
func EncodeReadMem(addr, length uint16) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf, addr)
	binary.LittleEndian.PutUint16(buf[2:], length)
	return buf
}

// EncodeWriteMem builds a WRITE_MEM request.
func EncodeWriteMem(addr uint16, data []byte) []byte {
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint16(buf, addr)
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(data)))
	copy(buf[4:], data)
	return buf
}

// BankSize is the size of one WRITE_BANK unit (spec §4.2: "one 8 KiB bank").
const BankSize = 8192

// EncodeWriteBank builds a WRITE_BANK request for one 8 KiB bank.
func EncodeWriteBank(bank uint8, data []byte) ([]byte, error) {
	if len(data) != BankSize {
		return nil, dzrperr.Validation("BAD_BANK_SIZE",
			fmt.Sprintf("bank payload must be %d bytes, got %d", BankSize, len(data)),
			map[string]interface{}{"bank": bank, "length": len(data)})
	}
	buf := make([]byte, 1+BankSize)
	buf[0] = bank
	copy(buf[1:], data)
	return buf, nil
}

// DecodeGetSlots parses a GET_SLOTS response into 8 bank numbers.
func DecodeGetSlots(payload []byte) ([8]byte, error) {
	var slots [8]byte
	if len(payload) < 8 {
		return slots, dzrperr.Protocol("SHORT_SLOTS", "GET_SLOTS response too short")
	}
	copy(slots[:], payload[:8])
	return slots, nil
}

// EncodeReadState builds a READ_STATE request: no payload, the remote
// returns its entire opaque engine state.
func EncodeReadState() []byte { return nil }

// EncodeWriteState builds a WRITE_STATE request carrying a previously
// read opaque state blob back to the remote.
func EncodeWriteState(state []byte) []byte { return state }

// PauseNotification is the payload of an asynchronous NTF_PAUSE message.
type PauseNotification struct {
	BreakNumber  BreakReason
	BreakAddress uint16
	Reason       string
}

// DecodePauseNotification parses: breakNumber (u8) | breakAddress (u16 LE) |
// length-prefixed UTF-8 reason suffix.
func DecodePauseNotification(payload []byte) (PauseNotification, error) {
	if len(payload) < 4 {
		return PauseNotification{}, dzrperr.Protocol("SHORT_PAUSE", "pause notification too short")
	}
	reason := BreakReason(payload[0])
	addr := binary.LittleEndian.Uint16(payload[1:3])
	strLen := int(payload[3])
	if len(payload) < 4+strLen {
		return PauseNotification{}, dzrperr.Protocol("SHORT_PAUSE_REASON", "pause notification reason truncated")
	}
	return PauseNotification{
		BreakNumber:  reason,
		BreakAddress: addr,
		Reason:       string(payload[4 : 4+strLen]),
	}, nil
}
