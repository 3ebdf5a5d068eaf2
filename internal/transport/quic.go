package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
)

// DialQUIC connects to a remote over QUIC and opens one bidirectional
// stream, for remotes reachable only over an unreliable or NAT-traversed
// link (e.g. a cloud-hosted emulator). The DZRP framing in internal/
// protocol is transport-agnostic, so the stream is wrapped as a plain
// io.ReadWriteCloser and handed to the same duplex plumbing as TCP/serial.
func DialQUIC(host string, port int, connectTimeout time.Duration) (Transport, error) {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", host, port)
	tlsConf := quicClientTLSConfig()
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, dzrperr.Transport("CONNECT_FAILED", err.Error())
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "stream open failed")
		return nil, dzrperr.Transport("CONNECT_FAILED", err.Error())
	}
	return newDuplex(quicStream{stream: stream, conn: conn}), nil
}

// quicStream adapts a quic.Stream plus its parent Connection to
// io.ReadWriteCloser, closing the connection (not just the stream) on
// Close so the transport's Disconnect fully tears down the session.
type quicStream struct {
	stream *quic.Stream
	conn   *quic.Conn
}

func (q quicStream) Read(p []byte) (int, error)  { return q.stream.Read(p) }
func (q quicStream) Write(p []byte) (int, error) { return q.stream.Write(p) }

func (q quicStream) Close() error {
	_ = q.stream.Close()
	return q.conn.CloseWithError(0, "")
}

var _ io.ReadWriteCloser = quicStream{}
