package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
)

// DialTCP connects to a remote (software emulator, or a ZX Next bridge
// reachable over ethernet/Wi-Fi) and returns a ready Transport.
func DialTCP(host string, port int, connectTimeout time.Duration) (Transport, error) {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, dzrperr.Transport("CONNECT_FAILED", err.Error())
	}
	return newDuplex(conn), nil
}
