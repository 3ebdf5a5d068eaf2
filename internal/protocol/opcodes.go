// Package protocol implements the DZRP wire codec (component C2): framing,
// per-command encoding of requests, and decoding of response and
// notification payloads. Nothing here talks to a socket — see
// internal/transport for that.
package protocol

// Opcode identifies a DZRP command. Response frames echo the request
// opcode with bit 7 set (see ResponseOf).
type Opcode byte

const (
	OpInit               Opcode = 0x01
	OpGetRegisters       Opcode = 0x02
	OpSetRegister        Opcode = 0x03
	OpWriteBank          Opcode = 0x04
	OpContinue           Opcode = 0x05
	OpPause              Opcode = 0x06
	OpAddBreakpoint      Opcode = 0x07
	OpRemoveBreakpoint   Opcode = 0x08
	OpAddWatchpoint      Opcode = 0x09
	OpRemoveWatchpoint   Opcode = 0x0A
	OpReadMem            Opcode = 0x0B
	OpWriteMem           Opcode = 0x0C
	OpGetSlots           Opcode = 0x0D
	OpReadState          Opcode = 0x0E
	OpWriteState         Opcode = 0x0F
	OpGetTBBlueReg       Opcode = 0x10
	OpGetSpritesPalette  Opcode = 0x11
	OpGetSprites         Opcode = 0x12
	OpGetSpritePatterns  Opcode = 0x13
	OpGetSpriteClip      Opcode = 0x14
	OpSetBorder          Opcode = 0x15
)

// responseBit is set on a request opcode to form its paired response opcode.
const responseBit = 0x80

// ResponseOf returns the response opcode paired with a request opcode.
func ResponseOf(req Opcode) Opcode { return req | responseBit }

// IsResponse reports whether an opcode on the wire is a response frame.
func IsResponse(op Opcode) bool { return op&responseBit != 0 }

// RequestOf strips the response bit, recovering the request opcode a
// response frame is answering.
func RequestOf(resp Opcode) Opcode { return resp &^ responseBit }

// Channel tags a frame's logical stream. The core uses exactly one.
type Channel byte

const ChannelUARTData Channel = 1

// NotificationOpcode identifies an asynchronous notification. This is a
// disjoint number space from Opcode — a 1 here is NTF_PAUSE, not INIT.
type NotificationOpcode byte

const NtfPause NotificationOpcode = 1

// ProtocolVersion is the DZRP version this mediator implements.
const ProtocolVersion = "1.0.0"
