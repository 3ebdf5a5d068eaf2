// Package dispatcher implements the request dispatcher (component C3):
// serializing outstanding requests, matching responses by opcode, and
// routing asynchronous pause notifications to whoever is awaiting a
// CONTINUE.
package dispatcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
	"github.com/zxnext/dzrp-mediator/internal/session"
	"github.com/zxnext/dzrp-mediator/internal/transport"
)

// Dispatcher serializes DZRP request/response round trips over one
// Transport and tracks the single in-flight CONTINUE, per spec §4.3: "no
// second CONTINUE may be issued until the previous pause has arrived".
type Dispatcher struct {
	t               transport.Transport
	logger          *session.Logger
	responseTimeout time.Duration

	reqMu sync.Mutex // serializes normal (non-CONTINUE) request/response round trips

	pendingMu     sync.Mutex
	pendingOp     protocol.Opcode
	pendingCh     chan protocol.Frame
	pendingActive bool

	continueMu      sync.Mutex
	continueResolve chan protocol.PauseNotification

	done     chan struct{}
	closeOne sync.Once
}

// New creates a Dispatcher driving t, using responseTimeout for every
// non-CONTINUE request (spec default: 3s).
func New(t transport.Transport, logger *session.Logger, responseTimeout time.Duration) *Dispatcher {
	if responseTimeout <= 0 {
		responseTimeout = 3 * time.Second
	}
	d := &Dispatcher{
		t:               t,
		logger:          logger,
		responseTimeout: responseTimeout,
		done:            make(chan struct{}),
	}
	go d.readLoop()
	return d
}

func (d *Dispatcher) readLoop() {
	for {
		select {
		case frame, ok := <-d.t.Frames():
			if !ok {
				d.shutdown()
				return
			}
			d.route(frame)
		case err := <-d.t.Errors():
			if d.logger != nil {
				d.logger.Error("transport error: %v", err)
			}
			d.shutdown()
			return
		}
	}
}

func (d *Dispatcher) route(frame protocol.Frame) {
	if protocol.IsResponse(frame.Opcode) {
		d.deliverResponse(frame)
		return
	}
	switch protocol.NotificationOpcode(frame.Opcode) {
	case protocol.NtfPause:
		ntf, err := protocol.DecodePauseNotification(frame.Payload)
		if err != nil {
			if d.logger != nil {
				d.logger.Error("malformed pause notification: %v", err)
			}
			return
		}
		d.deliverPause(ntf)
	default:
		if d.logger != nil {
			d.logger.Warn("unrecognized notification opcode %#x", frame.Opcode)
		}
	}
}

func (d *Dispatcher) deliverResponse(frame protocol.Frame) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	if d.pendingActive && frame.Opcode == d.pendingOp {
		d.pendingCh <- frame
		d.pendingActive = false
	}
}

func (d *Dispatcher) deliverPause(ntf protocol.PauseNotification) {
	d.continueMu.Lock()
	ch := d.continueResolve
	d.continueResolve = nil
	d.continueMu.Unlock()
	if ch != nil {
		ch <- ntf
	}
}

func (d *Dispatcher) shutdown() {
	d.closeOne.Do(func() { close(d.done) })
}

// Request sends one command and blocks for its matching response,
// serialized against every other non-CONTINUE request.
func (d *Dispatcher) Request(opcode protocol.Opcode, payload []byte) (protocol.Frame, error) {
	d.reqMu.Lock()
	defer d.reqMu.Unlock()

	respCh := make(chan protocol.Frame, 1)
	d.pendingMu.Lock()
	d.pendingOp = protocol.ResponseOf(opcode)
	d.pendingCh = respCh
	d.pendingActive = true
	d.pendingMu.Unlock()

	if err := d.t.Send(protocol.Encode(protocol.ChannelUARTData, opcode, payload)); err != nil {
		d.clearPending()
		return protocol.Frame{}, err
	}

	select {
	case fr := <-respCh:
		return fr, nil
	case <-time.After(d.responseTimeout):
		d.clearPending()
		return protocol.Frame{}, dzrperr.TimeoutWaitingFor(fmt.Sprintf("opcode %#x", opcode), d.responseTimeout.Milliseconds())
	case <-d.done:
		return protocol.Frame{}, dzrperr.Transport("DISCONNECTED", "session disconnected")
	}
}

func (d *Dispatcher) clearPending() {
	d.pendingMu.Lock()
	d.pendingActive = false
	d.pendingMu.Unlock()
}

// Continue issues CONTINUE and returns a channel that receives exactly
// one PauseNotification when the remote eventually pauses. It fails if a
// CONTINUE is already in flight (spec invariant: "continueResolve is
// non-null iff a resume is in flight").
func (d *Dispatcher) Continue(bp1, bp2 *uint16) (<-chan protocol.PauseNotification, error) {
	d.continueMu.Lock()
	defer d.continueMu.Unlock()

	if d.continueResolve != nil {
		return nil, dzrperr.Protocol("CONTINUE_IN_FLIGHT", "a CONTINUE is already awaiting its pause")
	}
	ch := make(chan protocol.PauseNotification, 1)
	d.continueResolve = ch

	payload := protocol.EncodeContinue(bp1, bp2)
	if err := d.t.Send(protocol.Encode(protocol.ChannelUARTData, protocol.OpContinue, payload)); err != nil {
		d.continueResolve = nil
		return nil, err
	}
	return ch, nil
}

// AwaitPause blocks for the pause paired with a prior Continue call,
// enforcing the step-out watchdog / response timeout. A timeout here is a
// fatal protocol error (spec §4.3): the remote's eventual pause, if it
// ever arrives, can no longer be attributed to the step that asked for
// it, so the dispatcher shuts down rather than leave continueResolve set
// with nothing left to clear it — that would wedge every later Continue
// behind a permanent CONTINUE_IN_FLIGHT.
func (d *Dispatcher) AwaitPause(ch <-chan protocol.PauseNotification, timeout time.Duration) (protocol.PauseNotification, error) {
	if timeout <= 0 {
		timeout = d.responseTimeout
	}
	select {
	case ntf := <-ch:
		return ntf, nil
	case <-time.After(timeout):
		d.continueMu.Lock()
		if d.continueResolve == ch {
			d.continueResolve = nil
		}
		d.continueMu.Unlock()
		d.shutdown()
		return protocol.PauseNotification{}, dzrperr.TimeoutWaitingFor("CONTINUE pause", timeout.Milliseconds())
	case <-d.done:
		return protocol.PauseNotification{}, dzrperr.Transport("DISCONNECTED", "session disconnected")
	}
}

// Pause sends a manual PAUSE request. The remote is expected to halt and
// emit NTF_PAUSE asynchronously; this call only confirms the request was
// accepted.
func (d *Dispatcher) Pause() error {
	_, err := d.Request(protocol.OpPause, nil)
	return err
}

// Disconnect tears down the underlying transport.
func (d *Dispatcher) Disconnect() error {
	d.shutdown()
	return d.t.Disconnect()
}

// Done is closed when the dispatcher has shut down (disconnect or fatal
// transport error).
func (d *Dispatcher) Done() <-chan struct{} { return d.done }
