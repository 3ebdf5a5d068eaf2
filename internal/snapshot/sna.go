package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/zxnext/dzrp-mediator/internal/dzrperr"
	"github.com/zxnext/dzrp-mediator/internal/protocol"
)

const snaHeaderSize = 27
const sna48Size = snaHeaderSize + PageSize*3                   // 49179
const sna128Size = snaHeaderSize + PageSize*3 + 4 + PageSize*5 // 131103

// ParseSNA decodes a 48K or 128K .sna image (spec §4.8).
func ParseSNA(path string, data []byte) (Snapshot, error) {
	if len(data) < snaHeaderSize {
		return Snapshot{}, shortFile(path, len(data), snaHeaderSize)
	}
	h := data[:snaHeaderSize]

	var regs protocol.RegisterSnapshot
	regs[protocol.RegI] = uint16(h[0])
	regs[protocol.RegHLShadow] = binary.LittleEndian.Uint16(h[1:3])
	regs[protocol.RegDEShadow] = binary.LittleEndian.Uint16(h[3:5])
	regs[protocol.RegBCShadow] = binary.LittleEndian.Uint16(h[5:7])
	regs[protocol.RegAFShadow] = binary.LittleEndian.Uint16(h[7:9])
	regs[protocol.RegHL] = binary.LittleEndian.Uint16(h[9:11])
	regs[protocol.RegDE] = binary.LittleEndian.Uint16(h[11:13])
	regs[protocol.RegBC] = binary.LittleEndian.Uint16(h[13:15])
	regs[protocol.RegIY] = binary.LittleEndian.Uint16(h[15:17])
	regs[protocol.RegIX] = binary.LittleEndian.Uint16(h[17:19])
	regs[protocol.RegR] = uint16(h[20])
	regs[protocol.RegAF] = binary.LittleEndian.Uint16(h[21:23])
	regs[protocol.RegSP] = binary.LittleEndian.Uint16(h[23:25])
	regs[protocol.RegIM] = uint16(h[25])
	border := h[26]

	switch len(data) {
	case sna48Size:
		ram := data[snaHeaderSize:]
		pages := []Page{
			newPage(5, ram[0:PageSize]),
			newPage(2, ram[PageSize:2*PageSize]),
			newPage(0, ram[2*PageSize:3*PageSize]),
		}
		pc, sp, err := popPC(pages, regs[protocol.RegSP])
		if err != nil {
			return Snapshot{}, dzrperr.Snapshot(path, err)
		}
		regs[protocol.RegPC] = pc
		regs[protocol.RegSP] = sp
		return Snapshot{Registers: regs, Border: border, Pages: pages}, nil

	case sna128Size:
		ram := data[snaHeaderSize : snaHeaderSize+3*PageSize]
		tail := data[snaHeaderSize+3*PageSize:]
		regs[protocol.RegPC] = binary.LittleEndian.Uint16(tail[0:2])
		port7ffd := tail[2]
		curPage := uint8(port7ffd & 0x07)

		pages := []Page{
			newPage(5, ram[0:PageSize]),
			newPage(2, ram[PageSize:2*PageSize]),
			newPage(curPage, ram[2*PageSize:3*PageSize]),
		}
		rest := tail[4:]
		for _, p := range remainingPages(5, 2, curPage) {
			if len(rest) < PageSize {
				return Snapshot{}, shortFile(path, len(data), len(data)+PageSize-len(rest))
			}
			pages = append(pages, newPage(p, rest[:PageSize]))
			rest = rest[PageSize:]
		}
		return Snapshot{Registers: regs, Border: border, Pages: pages}, nil

	default:
		return Snapshot{}, dzrperr.Snapshot(path, fmt.Errorf("unrecognized .sna size %d (want %d for 48K or %d for 128K)", len(data), sna48Size, sna128Size))
	}
}

func newPage(index uint8, data []byte) Page {
	var p Page
	p.Index = index
	copy(p.Data[:], data)
	return p
}

func remainingPages(used ...uint8) []uint8 {
	seen := make(map[uint8]bool, len(used))
	for _, u := range used {
		seen[u] = true
	}
	var out []uint8
	for i := uint8(0); i < 8; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

// popPC recovers PC for the 48K .sna format, which does not store it
// directly: PC is the word at the stack pointer, popped as if by a RET.
func popPC(pages []Page, sp uint16) (pc, newSp uint16, err error) {
	lo, err := readRAM(pages, sp)
	if err != nil {
		return 0, 0, err
	}
	hi, err := readRAM(pages, sp+1)
	if err != nil {
		return 0, 0, err
	}
	return uint16(lo) | uint16(hi)<<8, sp + 2, nil
}

func readRAM(pages []Page, addr uint16) (byte, error) {
	if addr < 0x4000 {
		return 0, fmt.Errorf("stack pointer 0x%04x points outside the 48K RAM image", addr)
	}
	page := (addr - 0x4000) / PageSize
	offset := (addr - 0x4000) % PageSize
	pageIndex := []uint8{5, 2, 0}[page]
	for _, p := range pages {
		if p.Index == pageIndex {
			return p.Data[offset], nil
		}
	}
	return 0, fmt.Errorf("page %d not present in image", pageIndex)
}
