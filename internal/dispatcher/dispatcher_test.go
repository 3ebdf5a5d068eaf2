package dispatcher

import (
	"net"
	"testing"
	"time"

	"github.com/zxnext/dzrp-mediator/internal/protocol"
	"github.com/zxnext/dzrp-mediator/internal/transport"
)

// newTestPair wires a Dispatcher to one end of an in-memory pipe and
// returns the other end for a test-authored fake remote to drive,
// mirroring the teacher's net.Pipe-based RSP server tests.
func newTestPair(t *testing.T) (*Dispatcher, net.Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })

	tr := transport.NewDuplex(c1)
	d := New(tr, nil, 500*time.Millisecond)
	return d, c2
}

func remoteReadFrame(t *testing.T, conn net.Conn) protocol.Frame {
	t.Helper()
	fr, err := protocol.NewReader(conn).ReadFrame()
	if err != nil {
		t.Fatalf("remote read: %v", err)
	}
	return fr
}

func TestRequestResponseRoundTrip(t *testing.T) {
	d, remote := newTestPair(t)

	go func() {
		fr := remoteReadFrame(t, remote)
		if fr.Opcode != protocol.OpGetRegisters {
			return
		}
		payload := make([]byte, int(protocol.RegisterCount)*2)
		payload[int(protocol.RegPC)*2] = 0x00
		payload[int(protocol.RegPC)*2+1] = 0x80
		remote.Write(protocol.Encode(protocol.ChannelUARTData, protocol.ResponseOf(protocol.OpGetRegisters), payload))
	}()

	regs, err := d.GetRegisters()
	if err != nil {
		t.Fatalf("GetRegisters: %v", err)
	}
	if regs[protocol.RegPC] != 0x8000 {
		t.Fatalf("PC = %#x, want 0x8000", regs[protocol.RegPC])
	}
}

func TestRequestTimesOut(t *testing.T) {
	d, remote := newTestPair(t)
	// The fake remote reads the request but never answers it.
	go func() { _, _ = protocol.NewReader(remote).ReadFrame() }()
	if _, err := d.GetRegisters(); err == nil {
		t.Fatal("expected timeout error when remote never responds")
	}
}

func TestContinueRejectsSecondWhileInFlight(t *testing.T) {
	d, remote := newTestPair(t)
	go remoteReadFrame(t, remote) // drain the CONTINUE request

	ch1, err := d.Continue(nil, nil)
	if err != nil {
		t.Fatalf("first Continue: %v", err)
	}
	if _, err := d.Continue(nil, nil); err == nil {
		t.Fatal("expected error issuing second CONTINUE while one is in flight")
	}

	addr := uint16(0x8000)
	remote.Write(protocol.Encode(protocol.ChannelUARTData, protocol.Opcode(protocol.NtfPause),
		encodePause(protocol.BreakpointHit, addr, "")))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pause")
	}

	// Now that the pause resolved, a new CONTINUE must be accepted.
	go remoteReadFrame(t, remote)
	if _, err := d.Continue(nil, nil); err != nil {
		t.Fatalf("Continue after prior pause resolved: %v", err)
	}
}

func TestAwaitPauseTimeoutClearsContinueAndShutsDown(t *testing.T) {
	d, remote := newTestPair(t)
	go remoteReadFrame(t, remote) // drain the first CONTINUE request

	ch1, err := d.Continue(nil, nil)
	if err != nil {
		t.Fatalf("first Continue: %v", err)
	}

	if _, err := d.AwaitPause(ch1, 50*time.Millisecond); err == nil {
		t.Fatal("expected timeout error when the pause never arrives")
	}

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("expected dispatcher to shut down after a fatal AwaitPause timeout")
	}

	// The first resume's slot must be cleared, not left wedged: the
	// dispatcher's transport is still open, so a second Continue must be
	// accepted rather than fail with CONTINUE_IN_FLIGHT.
	go remoteReadFrame(t, remote)
	ch2, err := d.Continue(nil, nil)
	if err != nil {
		t.Fatalf("Continue after fatal timeout should not be rejected as in-flight: %v", err)
	}

	// But the dispatcher itself is shut down, so the new resume can never
	// actually complete.
	if _, err := d.AwaitPause(ch2, 50*time.Millisecond); err == nil {
		t.Fatal("expected a disconnected error once the dispatcher has shut down")
	}
}

func TestOtherRequestsAllowedDuringContinue(t *testing.T) {
	d, remote := newTestPair(t)
	go remoteReadFrame(t, remote) // CONTINUE

	if _, err := d.Continue(nil, nil); err != nil {
		t.Fatalf("Continue: %v", err)
	}

	go func() {
		fr := remoteReadFrame(t, remote)
		if fr.Opcode != protocol.OpGetRegisters {
			t.Errorf("expected GET_REGISTERS while CONTINUE outstanding, got %#x", fr.Opcode)
		}
		payload := make([]byte, int(protocol.RegisterCount)*2)
		remote.Write(protocol.Encode(protocol.ChannelUARTData, protocol.ResponseOf(protocol.OpGetRegisters), payload))
	}()

	if _, err := d.GetRegisters(); err != nil {
		t.Fatalf("GetRegisters while CONTINUE outstanding: %v", err)
	}
}

func encodePause(reason protocol.BreakReason, addr uint16, suffix string) []byte {
	buf := []byte{byte(reason), byte(addr), byte(addr >> 8), byte(len(suffix))}
	return append(buf, suffix...)
}
