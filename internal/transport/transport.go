// Package transport provides the byte-oriented duplex channel to a DZRP
// remote (component C1): connecting, framing outbound requests, and
// reassembling inbound frames and asynchronous notifications.
package transport

import (
	"io"
	"sync"
	"time"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

// DefaultConnectTimeout is the spec's documented connection timeout.
const DefaultConnectTimeout = 1 * time.Second

// Transport is the duplex channel the dispatcher sends requests over and
// receives frames from. Implementations: TCP, serial, QUIC (spec §4.10).
type Transport interface {
	// Send writes one already-framed message to the remote.
	Send(frame []byte) error
	// Frames is the inbound stream of reassembled frames. Closed when the
	// transport disconnects.
	Frames() <-chan protocol.Frame
	// Errors carries fatal read-loop failures (malformed frame, closed
	// connection). At most one error is ever sent; the channel is never
	// closed.
	Errors() <-chan error
	// Disconnect is idempotent.
	Disconnect() error
}

// duplex wraps any io.ReadWriteCloser as a Transport, running one
// background goroutine that reassembles frames off the wire. This is the
// shared plumbing every concrete backend (TCP, serial, QUIC) delegates to,
// so C1's buffering/lifecycle logic is written once.
type duplex struct {
	conn   io.ReadWriteCloser
	frames chan protocol.Frame
	errs   chan error

	closeOnce sync.Once
	closeErr  error
}

// NewDuplex wraps any io.ReadWriteCloser (a pipe, a stdio pair, a test
// double) as a Transport, for backends with no dedicated dialer.
func NewDuplex(conn io.ReadWriteCloser) Transport {
	return newDuplex(conn)
}

// newDuplex wraps conn and starts the read loop.
func newDuplex(conn io.ReadWriteCloser) *duplex {
	d := &duplex{
		conn:   conn,
		frames: make(chan protocol.Frame, 16),
		errs:   make(chan error, 1),
	}
	go d.readLoop()
	return d
}

func (d *duplex) readLoop() {
	defer close(d.frames)
	r := protocol.NewReader(d.conn)
	for {
		fr, err := r.ReadFrame()
		if err != nil {
			select {
			case d.errs <- err:
			default:
			}
			return
		}
		d.frames <- fr
	}
}

func (d *duplex) Send(frame []byte) error {
	_, err := d.conn.Write(frame)
	if err != nil {
		return dzrperr.Transport("WRITE_FAILED", err.Error())
	}
	return nil
}

func (d *duplex) Frames() <-chan protocol.Frame { return d.frames }
func (d *duplex) Errors() <-chan error          { return d.errs }

// Disconnect is idempotent (spec §4.1).
func (d *duplex) Disconnect() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.conn.Close()
	})
	return d.closeErr
}
