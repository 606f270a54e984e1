package btaddr

import "testing"

func TestAddressDisplayRoundTrip(t *testing.T) {
	cases := [][6]byte{
		{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA},
		{0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
	}
	for _, octets := range cases {
		a := Address{Octets: octets}
		back, err := ParseAddress(a.String())
		if err != nil {
			t.Fatalf("ParseAddress(%q): %v", a, err)
		}
		if back != a {
			t.Errorf("round trip mismatch: %v != %v", back, a)
		}
	}
}

func TestAddressTypeRoundTrip(t *testing.T) {
	for _, want := range []AddressType{BrEdr, LePublic, LeRandom} {
		got, err := ParseAddressType(want.String())
		if err != nil || got != want {
			t.Errorf("AddressType round trip failed for %v: %v %v", want, got, err)
		}
	}
}

func TestLongTermKeyTypeRoundTrip(t *testing.T) {
	for _, want := range []LongTermKeyType{
		AuthenticatedKey, UnauthenticatedKey, AuthenticatedP256Key,
		UnauthenticatedP256Key, DebugKeyP256,
	} {
		got, err := ParseLongTermKeyType(want.String())
		if err != nil || got != want {
			t.Errorf("LongTermKeyType round trip failed for %v: %v %v", want, got, err)
		}
	}
}
