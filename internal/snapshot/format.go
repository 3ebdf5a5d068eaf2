// Package snapshot implements the snapshot loader (component C8):
// parsing .sna and .nex memory images and replaying them onto the
// remote as WRITE_BANK/SET_REGISTER command sequences.
package snapshot

import (
	"fmt"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

// PageSize is one 16 KiB memory bank as carried in a .sna/.nex file.
// WRITE_BANK addresses half of one of these at a time (spec §4.8).
const PageSize = 16384

// Page is one 16 KiB bank to be replayed, tagged with its Next bank
// index (0-7 for a 128K model; 0, 2, 5 for the fixed 48K mapping).
type Page struct {
	Index uint8
	Data  [PageSize]byte
}

// Snapshot is a parsed memory image ready to replay.
type Snapshot struct {
	Registers protocol.RegisterSnapshot
	// OnlySPPC is set by .nex images: only SP and PC come from the
	// file, every other register is left to the loader stub already
	// running on the remote (spec §4.8).
	OnlySPPC bool
	Border   byte
	Pages    []Page
}

func shortFile(path string, got, want int) error {
	return dzrperr.Snapshot(path, fmt.Errorf("truncated file: have %d bytes, need at least %d", got, want))
}
