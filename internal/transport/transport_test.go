package transport

import (
	"net"
	"testing"
	"time"

	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

func TestDuplexSendAndReceive(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	d := newDuplex(c1)
	defer d.Disconnect()

	go func() {
		_, _ = c2.Write(protocol.Encode(protocol.ChannelUARTData, protocol.OpGetRegisters, []byte{1, 2}))
	}()

	select {
	case fr := <-d.Frames():
		if fr.Opcode != protocol.OpGetRegisters {
			t.Fatalf("opcode = %v, want %v", fr.Opcode, protocol.OpGetRegisters)
		}
	case err := <-d.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}

	// net.Pipe writes block until the peer reads, so the remote end
	// consumes the outbound frame.
	go func() { _, _ = protocol.NewReader(c2).ReadFrame() }()
	if err := d.Send(protocol.Encode(protocol.ChannelUARTData, protocol.OpPause, nil)); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestDuplexDisconnectIsIdempotent(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c2.Close()
	d := newDuplex(c1)

	if err := d.Disconnect(); err != nil {
		t.Fatalf("first Disconnect: %v", err)
	}
	if err := d.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
}

func TestDuplexSurfacesReadError(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	d := newDuplex(c1)
	defer d.Disconnect()

	c2.Close()

	select {
	case _, ok := <-d.Frames():
		if ok {
			t.Fatal("expected frames channel to close on read error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frames channel to close")
	}
}
