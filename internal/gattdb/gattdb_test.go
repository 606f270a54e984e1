package gattdb

import (
	"testing"

	"github.com/btknmle/btknmle/internal/attpkt"
	"github.com/btknmle/btknmle/internal/bleuuid"
)

func buildSample(t *testing.T) *Database {
	t.Helper()
	b := NewBuilder(0x00B8)
	b.AddPrimaryService(bleuuid.UUID16(0x1800))
	b.AddCharacteristic(bleuuid.UUID16(0x2A00), []byte("btknmle"), PropRead)
	b.AddPrimaryService(bleuuid.UUID16(0x1801))
	b.AddPrimaryService(bleuuid.UUID16(0x180A))
	b.AddCharacteristic(bleuuid.UUID16(0x2A23), []byte{1, 2, 3, 4, 5, 6, 7, 8}, PropRead)
	return b.Build()
}

func TestHandleDensity(t *testing.T) {
	db := buildSample(t)
	if db.NumAttributes() != 7 {
		t.Fatalf("got %d attributes", db.NumAttributes())
	}
	for h := uint16(1); h <= uint16(db.NumAttributes()); h++ {
		if db.attr(h) == nil || db.attr(h).Handle != h {
			t.Fatalf("handle %d missing or mismatched", h)
		}
	}
}

func TestExchangeMTUScenario(t *testing.T) {
	db := buildSample(t)
	s := db.NewSession()
	got := s.ExchangeMTU(0x0040)
	if got != 0x0040 || s.MTU() != 64 {
		t.Fatalf("got %d mtu %d", got, s.MTU())
	}
}

func TestReadByGroupTypeLiteralScenario(t *testing.T) {
	b := NewBuilder(0x00B8)
	b.AddPrimaryService(bleuuid.UUID16(0x1800))                        // handle 1
	b.AddCharacteristic(bleuuid.UUID16(0x2A00), []byte{0}, PropRead)   // handles 2 (decl), 3 (value)
	b.AddDescriptor(bleuuid.UUID16(0x2901), []byte("x"))               // handle 4
	b.AddPrimaryService(bleuuid.UUID16(0x1801))                        // handle 5
	b.AddPrimaryService(bleuuid.UUID16(0x180A))                        // handle 6
	db := b.Build()
	s := db.NewSession()

	data, err := s.ReadByGroupType(1, 0xFFFF, bleuuid.UUID16(0x2800))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 3 {
		t.Fatalf("got %d groups: %+v", len(data), data)
	}
	if data[0].StartHandle != 1 || data[0].EndHandle != 4 {
		t.Fatalf("group 0: %+v", data[0])
	}
	if data[1].StartHandle != 5 || data[1].EndHandle != 5 {
		t.Fatalf("group 1: %+v", data[1])
	}
	if data[2].StartHandle != 6 || data[2].EndHandle != 6 {
		t.Fatalf("group 2: %+v", data[2])
	}
}

func TestReadMTUTruncation(t *testing.T) {
	b := NewBuilder(0x00B8)
	long := make([]byte, 40)
	for i := range long {
		long[i] = byte(i)
	}
	b.AddPrimaryService(bleuuid.UUID16(0x1800))
	h := b.AddCharacteristic(bleuuid.UUID16(0x2A00), long, PropRead)
	db := b.Build()
	s := db.NewSession()
	s.ExchangeMTU(23)
	v, err := s.Read(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != s.MTU()-1 {
		t.Fatalf("got len %d, want %d", len(v), s.MTU()-1)
	}
}

func TestReadUnreadableFails(t *testing.T) {
	b := NewBuilder(0)
	b.AddPrimaryService(bleuuid.UUID16(0x1800))
	h := b.AddCharacteristic(bleuuid.UUID16(0x2A00), []byte{1}, PropWrite)
	db := b.Build()
	s := db.NewSession()
	if _, err := s.Read(h); err != attpkt.ErrReadNotPermitted {
		t.Fatalf("got %v", err)
	}
}

func TestWriteCCCDValidation(t *testing.T) {
	b := NewBuilder(0)
	b.AddPrimaryService(bleuuid.UUID16(0x1800))
	b.AddCharacteristic(bleuuid.UUID16(0x2A00), []byte{1}, PropNotify)
	cccd := b.AddCCCD(0)
	db := b.Build()
	s := db.NewSession()

	if err := s.Write(cccd, []byte{0x01}); err != attpkt.ErrInvalidPDU {
		t.Fatalf("expected InvalidPDU for short write, got %v", err)
	}
	if err := s.Write(cccd, []byte{0xFF, 0xFF}); err != attpkt.ErrInvalidPDU {
		t.Fatalf("expected InvalidPDU for unknown bits, got %v", err)
	}
	if err := s.Write(cccd, []byte{0x01, 0x00}); err != nil {
		t.Fatal(err)
	}
	if s.CCCDValue(cccd) != CCCDNotification {
		t.Fatalf("got %v", s.CCCDValue(cccd))
	}
}

func TestAuthenticationGate(t *testing.T) {
	b := NewBuilder(0)
	b.AddPrimaryService(bleuuid.UUID16(0x1800))
	h := b.AddCharacteristic(bleuuid.UUID16(0x2A00), []byte{1}, PropRead)
	b.RequireAuthentication()
	db := b.Build()
	s := db.NewSession()

	if _, err := s.Read(h); err != attpkt.ErrInsufficientAuthentication {
		t.Fatalf("got %v", err)
	}
	s.SetAuthenticated(true)
	if _, err := s.Read(h); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoveryEmptyMapsToAttributeNotFound(t *testing.T) {
	db := buildSample(t)
	s := db.NewSession()
	if _, err := s.ReadByType(1, 0xFFFF, bleuuid.UUID16(0x2903)); err != attpkt.ErrAttributeNotFound {
		t.Fatalf("got %v", err)
	}
}
