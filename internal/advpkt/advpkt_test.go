package advpkt

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/btknmle/btknmle/internal/bleuuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []Item{
		Flags(FlagGeneralDiscoverableMode | FlagBrEdrNotSupported),
		CompleteListUUID16(bleuuid.UUID16(0x1812)),
		TxPower(-12),
		CompleteLocalName("btknmle"),
		Appearance(0x03C0),
	}
	enc, err := Encode(items)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, items) {
		t.Fatalf("got %+v want %+v", back, items)
	}
}

func TestEncodeTooLong(t *testing.T) {
	items := []Item{CompleteLocalName("this name is deliberately far too long to fit in one advertising report")}
	if _, err := Encode(items); err != ErrAdvertisingDataTooLong {
		t.Fatalf("expected ErrAdvertisingDataTooLong, got %v", err)
	}
}

func TestEncodeAtCap(t *testing.T) {
	// Flags(3) + Appearance(4) = 7 bytes, leaving 24 for the name's
	// 2-byte header + payload, i.e. a 22-byte name exactly hits the cap.
	items := []Item{
		Flags(FlagGeneralDiscoverableMode),
		Appearance(0x03C0),
		CompleteLocalName("1234567890123456789012"),
	}
	enc, err := Encode(items)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != MaxLen {
		t.Fatalf("got len %d, want %d", len(enc), MaxLen)
	}
}

func TestScanResponseScenario(t *testing.T) {
	items := []Item{CompleteListUUID16(bleuuid.UUID16(0x1812))}
	enc, err := Encode(items)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x03, 0x03, 0x12, 0x18}
	if !bytes.Equal(enc, want) {
		t.Fatalf("got % x want % x", enc, want)
	}
}
