package bleuuid

import "testing"

func TestUUID16RoundTrip(t *testing.T) {
	for v := uint16(0); v < 0xFFFF; v += 997 {
		u := UUID16(v)
		if !u.Is16() {
			t.Fatalf("UUID16(%x) not Is16", v)
		}
		if got := u.Short(); got != v {
			t.Fatalf("UUID16(%x).Short() = %x", v, got)
		}
		if got, err := Parse(u.Bytes()); err != nil || !got.Equal(u) {
			t.Fatalf("Parse(Bytes(UUID16(%x))) round trip failed: %v %v", v, got, err)
		}
	}
}

func TestLongEquality(t *testing.T) {
	short := UUID16(0x1800)
	long := short.Long()
	if !short.Equal(long) {
		t.Fatalf("short form should equal its expansion")
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{
		"1800",
		"0000180f-0000-1000-8000-00805f9b34fb",
		"09fc95c0-c111-11e3-9904-0002a5d5c51b",
	}
	for _, s := range cases {
		u := MustParseString(s)
		back := MustParseString(u.String())
		if !u.Equal(back) {
			t.Errorf("round trip mismatch for %q: %s vs %s", s, u, back)
		}
	}
}

func TestParseBadLength(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err != ErrBadLength {
		t.Fatalf("expected ErrBadLength, got %v", err)
	}
}
