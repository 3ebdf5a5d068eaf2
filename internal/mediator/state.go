package mediator

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
)

// writeGzip compresses data and writes it to path (spec §6: saved state
// blobs are gzip compressed, since the remote's opaque state can run to
// several hundred kilobytes for a Next-class emulator).
func writeGzip(path string, data []byte) error {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return dzrperr.Snapshot(path, err)
	}
	if err := gw.Close(); err != nil {
		return dzrperr.Snapshot(path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return dzrperr.Snapshot(path, err)
	}
	return nil
}

// readGzip reads and decompresses a blob written by writeGzip.
func readGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dzrperr.Snapshot(path, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, dzrperr.Snapshot(path, err)
	}
	defer gr.Close()

	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, dzrperr.Snapshot(path, err)
	}
	return data, nil
}
