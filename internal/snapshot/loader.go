package snapshot

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
	"github.com/zxnext/dzrp-mediator/internal/registers"
)

// Writer is the subset of the dispatcher a snapshot replays onto.
type Writer interface {
	WriteBank(bank uint8, data []byte) error
	SetRegister(idx protocol.RegisterIndex, value uint16) (uint16, error)
}

// CallStackUnwinder is the external collaborator whose call-stack view
// must be cleared after a snapshot load (spec §4.8). Loader treats a
// nil collaborator as "nothing to clear".
type CallStackUnwinder interface {
	ClearCallStack()
}

// fullRegisterOrder is the SET_REGISTER sequence for a .sna load: every
// register, ending with PC last (spec §4.8).
var fullRegisterOrder = []protocol.RegisterIndex{
	protocol.RegAF, protocol.RegBC, protocol.RegDE, protocol.RegHL,
	protocol.RegIX, protocol.RegIY, protocol.RegSP,
	protocol.RegAFShadow, protocol.RegBCShadow, protocol.RegDEShadow, protocol.RegHLShadow,
	protocol.RegI, protocol.RegR, protocol.RegIM,
	protocol.RegPC,
}

// spPcOrder is the .nex SET_REGISTER sequence: only SP and PC.
var spPcOrder = []protocol.RegisterIndex{protocol.RegSP, protocol.RegPC}

// Loader drives C8: parsing a .sna/.nex file and replaying it onto the
// remote as WRITE_BANK/SET_REGISTER commands.
type Loader struct {
	writer Writer
	regs   *registers.Cache
	stack  CallStackUnwinder
}

// New creates a Loader. stack may be nil.
func New(writer Writer, regs *registers.Cache, stack CallStackUnwinder) *Loader {
	return &Loader{writer: writer, regs: regs, stack: stack}
}

// Load reads path, parses it by extension, and replays it.
func (l *Loader) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return dzrperr.Snapshot(path, err)
	}

	var snap Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sna":
		snap, err = ParseSNA(path, data)
	case ".nex":
		snap, err = ParseNEX(path, data)
	default:
		return dzrperr.Unsupported("snapshot extension " + filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return l.Replay(snap)
}

// Replay writes every bank and register in a parsed Snapshot to the
// remote, then invalidates the register cache and asks the call-stack
// collaborator to clear (spec §4.8).
func (l *Loader) Replay(snap Snapshot) error {
	for _, page := range snap.Pages {
		lower, upper := page.Data[:PageSize/2], page.Data[PageSize/2:]
		if err := l.writer.WriteBank(2*page.Index, lower); err != nil {
			return err
		}
		if err := l.writer.WriteBank(2*page.Index+1, upper); err != nil {
			return err
		}
	}

	order := fullRegisterOrder
	if snap.OnlySPPC {
		order = spPcOrder
	}
	for _, idx := range order {
		if _, err := l.writer.SetRegister(idx, snap.Registers[idx]); err != nil {
			return err
		}
	}

	l.regs.Invalidate()
	if l.stack != nil {
		l.stack.ClearCallStack()
	}
	return nil
}
