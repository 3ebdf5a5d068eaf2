package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

const (
	nexHeaderSize = 512
	nexMagic      = "Next"
)

// ParseNEX decodes a .nex image using a simplified header layout: a
// fixed 512-byte header with the "Next" magic at bytes 0-3, SP at 8-9,
// PC at 10-11, the bank count at 12-13 (all little-endian), and one bank
// index per bank from byte 16, followed by one 16 KiB block per bank the
// map names (spec §4.8).
func ParseNEX(path string, data []byte) (Snapshot, error) {
	if len(data) < nexHeaderSize {
		return Snapshot{}, shortFile(path, len(data), nexHeaderSize)
	}
	h := data[:nexHeaderSize]
	if string(h[0:4]) != nexMagic {
		return Snapshot{}, dzrperr.Snapshot(path, fmt.Errorf("missing %q magic", nexMagic))
	}

	sp := binary.LittleEndian.Uint16(h[8:10])
	pc := binary.LittleEndian.Uint16(h[10:12])
	numBanks := binary.LittleEndian.Uint16(h[12:14])
	loadMap := h[16 : 16+int(numBanks)]

	body := data[nexHeaderSize:]
	var pages []Page
	for _, bank := range loadMap {
		if len(body) < PageSize {
			return Snapshot{}, shortFile(path, len(data), len(data)+PageSize-len(body))
		}
		pages = append(pages, newPage(bank, body[:PageSize]))
		body = body[PageSize:]
	}

	var regs protocol.RegisterSnapshot
	regs[protocol.RegSP] = sp
	regs[protocol.RegPC] = pc
	return Snapshot{Registers: regs, OnlySPPC: true, Pages: pages}, nil
}
