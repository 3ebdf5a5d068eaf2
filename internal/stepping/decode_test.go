package stepping

import "testing"

type fakeMem map[uint16]byte

func (m fakeMem) ReadByte(addr uint16) (byte, error) { return m[addr], nil }

func TestIsRetClassification(t *testing.T) {
	cases := []struct {
		op0, op1 byte
		want     bool
		name     string
	}{
		{0xC9, 0, true, "RET"},
		{0xED, 0x4D, true, "RETI"},
		{0xED, 0x45, true, "RETN"},
		{0xC0, 0, true, "RET NZ"},
		{0xC8, 0, true, "RET Z"},
		{0xD0, 0, true, "RET NC"},
		{0xD8, 0, true, "RET C"},
		{0xE0, 0, true, "RET PO"},
		{0xE8, 0, true, "RET PE"},
		{0xF0, 0, true, "RET P"},
		{0xF8, 0, true, "RET M"},
		{0xD9, 0, false, "EXX"},
		{0x00, 0, false, "NOP"},
	}
	for _, c := range cases {
		if got := isRet(c.op0, c.op1); got != c.want {
			t.Errorf("%s: isRet(%#x,%#x) = %v, want %v", c.name, c.op0, c.op1, got, c.want)
		}
	}
}

func TestDecodeCallNN(t *testing.T) {
	mem := fakeMem{0x8000: 0xCD, 0x8001: 0x00, 0x8002: 0x90}
	dec, err := decodeAt(mem, 0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if dec.length != 3 || !dec.callFamily {
		t.Fatalf("dec = %+v", dec)
	}
	if dec.branchTarget == nil || *dec.branchTarget != 0x9000 {
		t.Fatalf("branchTarget = %v, want 0x9000", dec.branchTarget)
	}
}

func TestDecodeConditionalCall(t *testing.T) {
	mem := fakeMem{0x8000: 0xCC, 0x8001: 0x34, 0x8002: 0x12} // CALL Z,1234h
	dec, err := decodeAt(mem, 0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.callFamily || dec.length != 3 {
		t.Fatalf("dec = %+v", dec)
	}
	if *dec.branchTarget != 0x1234 {
		t.Fatalf("branchTarget = %#x, want 0x1234", *dec.branchTarget)
	}
}

func TestDecodeRst(t *testing.T) {
	mem := fakeMem{0x8000: 0xEF} // RST 28h
	dec, err := decodeAt(mem, 0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.callFamily || dec.length != 1 || *dec.branchTarget != 0x28 {
		t.Fatalf("dec = %+v", dec)
	}
}

func TestDecodeBlockRepeatTargetsSelf(t *testing.T) {
	mem := fakeMem{0x8000: 0xED, 0x8001: 0xB0} // LDIR
	dec, err := decodeAt(mem, 0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.blockRepeat || dec.length != 2 {
		t.Fatalf("dec = %+v", dec)
	}
	if *dec.branchTarget != 0x8000 {
		t.Fatalf("branchTarget = %#x, want 0x8000", *dec.branchTarget)
	}
}

func TestDecodeJrRelative(t *testing.T) {
	mem := fakeMem{0x8000: 0x18, 0x8001: 0xFE} // JR -2 -> back to 0x8000
	dec, err := decodeAt(mem, 0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if dec.length != 2 || dec.callFamily {
		t.Fatalf("dec = %+v", dec)
	}
	if *dec.branchTarget != 0x8000 {
		t.Fatalf("branchTarget = %#x, want 0x8000", *dec.branchTarget)
	}
}

func TestDecodePlainOneByteInstruction(t *testing.T) {
	mem := fakeMem{0x8000: 0x00} // NOP
	dec, err := decodeAt(mem, 0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if dec.length != 1 || dec.callFamily || dec.blockRepeat || dec.branchTarget != nil {
		t.Fatalf("dec = %+v", dec)
	}
}
