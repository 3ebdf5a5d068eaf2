package breakpoint

import "testing"

func TestAddRejectsNegativeAddress(t *testing.T) {
	tbl := NewTable()
	id, err := tbl.Add(-1, "", "", KindUser)
	if err == nil {
		t.Fatal("expected error for negative address")
	}
	if id != 0 {
		t.Fatalf("id = %d, want 0", id)
	}
}

func TestAddRejectsOutOfRangeAddress(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Add(0x10000, "", "", KindUser); err == nil {
		t.Fatal("expected error for out-of-range address")
	}
}

func TestAddAssignsUniqueIDs(t *testing.T) {
	tbl := NewTable()
	id1, err := tbl.Add(0x8000, "", "", KindUser)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := tbl.Add(0x9000, "", "", KindUser)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == 0 || id2 == 0 || id1 == id2 {
		t.Fatalf("expected distinct nonzero ids, got %d %d", id1, id2)
	}
}

func TestRemoveSucceedsExactlyOnce(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Add(0x8000, "", "", KindUser)
	if err := tbl.Remove(id); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := tbl.Remove(id); err == nil {
		t.Fatal("second Remove should fail")
	}
}

func TestRemovedBreakpointStopsCausingHits(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Add(0x8000, "", "", KindUser)
	tbl.RebuildIndex()
	if len(tbl.At(0x8000)) != 1 {
		t.Fatal("expected one breakpoint before removal")
	}
	if err := tbl.Remove(id); err != nil {
		t.Fatal(err)
	}
	tbl.RebuildIndex()
	if len(tbl.At(0x8000)) != 0 {
		t.Fatal("expected no breakpoints after removal and rebuild")
	}
}

func TestRebuildIndexIsUnionOfUserAssertLog(t *testing.T) {
	tbl := NewTable()
	tbl.Add(0x1000, "", "", KindUser)
	assertID, _ := tbl.Add(0x1000, "HL==0", "", KindAssert)
	logID, _ := tbl.Add(0x1000, "", "A={A}", KindLog)

	tbl.RebuildIndex()
	// Asserts disabled, log enabled by default on creation.
	entries := tbl.At(0x1000)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (user+log) with asserts disabled, got %d", len(entries))
	}

	tbl.EnableAsserts(true)
	tbl.RebuildIndex()
	entries = tbl.At(0x1000)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries with asserts enabled, got %d", len(entries))
	}

	tbl.EnableLogpoints([]uint16{logID}, false)
	tbl.RebuildIndex()
	entries = tbl.At(0x1000)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries with logpoint disabled, got %d", len(entries))
	}
	_ = assertID
}

func TestRebuildDoesNotLeakStaleEntries(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Add(0x2000, "", "", KindUser)
	tbl.RebuildIndex()
	tbl.Remove(id)
	tbl.Add(0x3000, "", "", KindUser)
	tbl.RebuildIndex()
	if len(tbl.At(0x2000)) != 0 {
		t.Fatal("stale entry at 0x2000 leaked across rebuild")
	}
	if len(tbl.At(0x3000)) != 1 {
		t.Fatal("expected new breakpoint at 0x3000")
	}
}

func TestWatchpointKeyedByAddressAndSize(t *testing.T) {
	tbl := NewTable()
	tbl.AddWatchpoint(0x4000, 2, 0, "")
	if err := tbl.RemoveWatchpoint(0x4000, 4); err == nil {
		t.Fatal("expected error removing watchpoint with mismatched size")
	}
	if err := tbl.RemoveWatchpoint(0x4000, 2); err != nil {
		t.Fatalf("RemoveWatchpoint: %v", err)
	}
}

func TestMatchAssertByConditionIdentity(t *testing.T) {
	tbl := NewTable()
	tbl.Add(0xA000, "HL==0", "", KindAssert)
	tbl.EnableAsserts(true)
	tbl.RebuildIndex()

	if _, ok := tbl.MatchAssert(0xA000, "HL==0"); !ok {
		t.Fatal("expected assert match on identical condition text")
	}
	if _, ok := tbl.MatchAssert(0xA000, "HL!=0"); ok {
		t.Fatal("did not expect assert match on different condition text")
	}
}
