package hogp

import (
	"bytes"
	"testing"

	"github.com/btknmle/btknmle/internal/gattdb"
)

func TestBuildProducesDistinctReportHandles(t *testing.T) {
	b := gattdb.NewBuilder(0)
	h := Build(b)
	db := b.Build()

	if h.KeyboardValue == h.MouseValue {
		t.Fatal("keyboard and mouse report values must not share a handle")
	}
	if h.KeyboardCCCD == h.MouseCCCD {
		t.Fatal("keyboard and mouse CCCDs must not share a handle")
	}

	s := db.NewSession()
	kv, err := s.Read(h.KeyboardValue)
	if err != nil {
		t.Fatal(err)
	}
	if len(kv) != KeyboardReportLen {
		t.Fatalf("got keyboard report of %d bytes, want %d", len(kv), KeyboardReportLen)
	}
	mv, err := s.Read(h.MouseValue)
	if err != nil {
		t.Fatal(err)
	}
	if len(mv) != MouseReportLen {
		t.Fatalf("got mouse report of %d bytes, want %d", len(mv), MouseReportLen)
	}
}

// A central attempting to switch protocol mode must not see a write
// error: this peripheral never implements boot protocol, so the write
// is accepted and simply has no effect on its behavior.
func TestProtocolModeAcceptsWrites(t *testing.T) {
	b := gattdb.NewBuilder(0)
	h := Build(b)
	db := b.Build()
	s := db.NewSession()

	v, err := s.Read(h.ProtocolMode)
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 1 || v[0] != reportProtocolMode {
		t.Fatalf("got %v, want {%#x}", v, reportProtocolMode)
	}

	if err := s.Write(h.ProtocolMode, []byte{0x00}); err != nil {
		t.Fatalf("expected the write to be accepted, got %v", err)
	}
}

func TestReportMapTagsBothReportIDs(t *testing.T) {
	needle := func(id byte) []byte { return []byte{0x85, id} }
	if !bytes.Contains(reportMap, needle(ReportIDKeyboard)) {
		t.Fatal("report map missing the keyboard report ID tag")
	}
	if !bytes.Contains(reportMap, needle(ReportIDMouse)) {
		t.Fatal("report map missing the mouse report ID tag")
	}
}

func TestServiceDiscoverable(t *testing.T) {
	b := gattdb.NewBuilder(0)
	Build(b)
	db := b.Build()
	s := db.NewSession()

	groups, err := s.ReadByGroupType(1, 0xFFFF, gattdb.TypePrimaryService)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d primary services, want 1", len(groups))
	}
	if !bytes.Equal(groups[0].Value, Service.Bytes()) {
		t.Fatalf("got service uuid % x, want % x", groups[0].Value, Service.Bytes())
	}
}
