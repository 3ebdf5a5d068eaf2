package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
)

// Frame is one fully-reassembled DZRP message: a length-prefixed
// channel+opcode+payload triple (spec §4.1, §6).
type Frame struct {
	Channel Channel
	Opcode  Opcode
	Payload []byte
}

// maxFrameLength guards against a corrupt length prefix turning a single
// bad byte into an unbounded allocation.
const maxFrameLength = 1 << 20

// Encode serializes a frame to the wire format:
// u32 length (LE) | u8 channel | u8 opcode | payload.
// length counts everything after the length field itself.
func Encode(channel Channel, opcode Opcode, payload []byte) []byte {
	body := make([]byte, 2+len(payload))
	body[0] = byte(channel)
	body[1] = byte(opcode)
	copy(body[2:], payload)

	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

// Reader reassembles frames from a byte stream, buffering partial reads
// (spec §4.1: "a frame shorter than the prefix is held pending").
type Reader struct {
	r io.Reader
}

// NewReader wraps a byte stream as a frame reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame blocks until one complete frame has been reassembled, or
// returns a protocol error if the stream is malformed or closed.
func (fr *Reader) ReadFrame() (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		return Frame{}, dzrperr.Transport("READ_FAILED", err.Error())
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length < 2 || length > maxFrameLength {
		return Frame{}, dzrperr.Protocol("BAD_LENGTH", fmt.Sprintf("frame length %d out of range", length))
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return Frame{}, dzrperr.Transport("READ_FAILED", err.Error())
	}
	return Frame{
		Channel: Channel(body[0]),
		Opcode:  Opcode(body[1]),
		Payload: body[2:],
	}, nil
}
