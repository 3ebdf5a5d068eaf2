package protocol

import "testing"

func TestDecodeRegistersRoundTrip(t *testing.T) {
	payload := make([]byte, int(RegisterCount)*2)
	for i := 0; i < int(RegisterCount); i++ {
		payload[i*2] = byte(i)
		payload[i*2+1] = 0
	}
	regs, err := DecodeRegisters(payload)
	if err != nil {
		t.Fatalf("DecodeRegisters: %v", err)
	}
	if regs[RegPC] != uint16(RegPC) {
		t.Fatalf("regs[RegPC] = %d, want %d", regs[RegPC], RegPC)
	}
}

func TestDecodeRegistersTooShort(t *testing.T) {
	if _, err := DecodeRegisters([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated register payload")
	}
}

func TestEncodeSetRegisterWidth(t *testing.T) {
	wide := EncodeSetRegister(RegPC, 0x1234)
	if len(wide) != 3 {
		t.Fatalf("16-bit register encoding length = %d, want 3", len(wide))
	}
	narrow := EncodeSetRegister(RegI, 0xAB)
	if len(narrow) != 2 {
		t.Fatalf("8-bit register encoding length = %d, want 2", len(narrow))
	}
}

func TestEncodeContinueOneOrTwoBreakpoints(t *testing.T) {
	bp1 := uint16(0x7003)
	one := EncodeContinue(&bp1, nil)
	if len(one) != 3 {
		t.Fatalf("one-bp CONTINUE payload length = %d, want 3", len(one))
	}
	bp2 := uint16(0x1234)
	two := EncodeContinue(&bp1, &bp2)
	if len(two) != 5 {
		t.Fatalf("two-bp CONTINUE payload length = %d, want 5", len(two))
	}
	none := EncodeContinue(nil, nil)
	if len(none) != 1 {
		t.Fatalf("no-bp CONTINUE payload length = %d, want 1", len(none))
	}
}

func TestWriteBankRejectsWrongSize(t *testing.T) {
	if _, err := EncodeWriteBank(0, make([]byte, 100)); err == nil {
		t.Fatal("expected error for wrong bank size")
	}
	buf, err := EncodeWriteBank(3, make([]byte, BankSize))
	if err != nil {
		t.Fatalf("EncodeWriteBank: %v", err)
	}
	if buf[0] != 3 {
		t.Fatalf("bank number = %d, want 3", buf[0])
	}
}

func TestDecodePauseNotification(t *testing.T) {
	payload := []byte{byte(BreakpointHit), 0x00, 0x80, 5, 'h', 'e', 'l', 'l', 'o'}
	ntf, err := DecodePauseNotification(payload)
	if err != nil {
		t.Fatalf("DecodePauseNotification: %v", err)
	}
	if ntf.BreakNumber != BreakpointHit {
		t.Fatalf("BreakNumber = %v, want %v", ntf.BreakNumber, BreakpointHit)
	}
	if ntf.BreakAddress != 0x8000 {
		t.Fatalf("BreakAddress = %#x, want 0x8000", ntf.BreakAddress)
	}
	if ntf.Reason != "hello" {
		t.Fatalf("Reason = %q, want hello", ntf.Reason)
	}
}

func TestDecodePauseNotificationTruncatedReason(t *testing.T) {
	payload := []byte{byte(ManualBreak), 0, 0, 10, 'h', 'i'}
	if _, err := DecodePauseNotification(payload); err == nil {
		t.Fatal("expected error for truncated reason")
	}
}

func TestDecodeGetSlots(t *testing.T) {
	payload := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	slots, err := DecodeGetSlots(payload)
	if err != nil {
		t.Fatalf("DecodeGetSlots: %v", err)
	}
	for i, v := range slots {
		if int(v) != i {
			t.Fatalf("slots[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestDecodeInitResponse(t *testing.T) {
	payload := []byte{1, 0, 0, 0xFF, 0, 0, 0}
	resp, err := DecodeInitResponse(payload)
	if err != nil {
		t.Fatalf("DecodeInitResponse: %v", err)
	}
	if resp.Version != "1.0.0" {
		t.Fatalf("Version = %q, want 1.0.0", resp.Version)
	}
	if resp.Capabilities != 0xFF {
		t.Fatalf("Capabilities = %#x, want 0xFF", resp.Capabilities)
	}
}
