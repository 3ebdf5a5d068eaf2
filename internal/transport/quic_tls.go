package transport

import "crypto/tls"

// quicClientTLSConfig builds the minimal TLS config QUIC requires. The
// DZRP session has no certificate infrastructure of its own — the remote
// is typically a local emulator or a trusted bridge device — so transport
// security is left to whatever network perimeter the deployment provides.
func quicClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"dzrp"},
	}
}
