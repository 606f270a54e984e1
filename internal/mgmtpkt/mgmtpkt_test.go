package mgmtpkt

import (
	"reflect"
	"testing"

	"github.com/btknmle/btknmle/internal/btaddr"
)

func TestPacketRoundTrip(t *testing.T) {
	p := Packet{Code: CmdSetPowered, Index: ControllerIndex(0), Params: []byte{0x01}}
	back, err := Decode(p.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, back) {
		t.Fatalf("got %+v want %+v", back, p)
	}
}

func TestDecodeShortPacket(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err != ErrShortPacket {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	b := Packet{Code: 1, Index: 0, Params: []byte{1, 2}}.Encode()
	b = append(b, 0xFF) // trailing byte not accounted for in length field
	if _, err := Decode(b); err != ErrLengthMismatch {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for n := 0; n < 256; n++ {
		s := StatusFromByte(byte(n))
		if got := s.Byte(); got != byte(n) {
			t.Fatalf("Status round trip failed for %d: got %d", n, got)
		}
	}
}

func TestCurrentSettingsTruncation(t *testing.T) {
	for _, v := range []uint32{0, 0xFFFFFFFF, 0x12345678, 1 << 31} {
		s := CurrentSettings(v)
		back, err := DecodeSettings(EncodeSettings(s))
		if err != nil || back != s {
			t.Fatalf("CurrentSettings round trip failed for %#x: %v %v", v, back, err)
		}
	}
}

func TestAdvertisingFlagsRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 0xFFFFFFFF, 0x0000002A} {
		f := AdvertisingFlags(v)
		back, err := DecodeAdvertisingFlags(EncodeAdvertisingFlags(f))
		if err != nil || back != f {
			t.Fatalf("AdvertisingFlags round trip failed for %#x: %v %v", v, back, err)
		}
	}
}

func TestNameTooLong(t *testing.T) {
	long := make([]byte, CompleteNameLen)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := NewName(string(long)); err != ErrNameTooLong {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
	short := make([]byte, ShortNameLen)
	for i := range short {
		short[i] = 'b'
	}
	if _, err := NewShortName(string(short)); err != ErrNameTooLong {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
}

func TestNameRoundTrip(t *testing.T) {
	n, err := NewName("btknmle")
	if err != nil {
		t.Fatal(err)
	}
	if n.String() != "btknmle" {
		t.Fatalf("got %q", n.String())
	}
}

func TestCommandRoundTrip(t *testing.T) {
	addr := btaddr.Address{Octets: [6]byte{1, 2, 3, 4, 5, 6}}
	cases := []struct {
		name   string
		cmd    Command
		decode func([]byte) (Command, error)
	}{
		{"SetPowered", SetPowered{Powered: true}, func(b []byte) (Command, error) { c, e := DecodeSetPowered(b); return c, e }},
		{"SetConnectable", SetConnectable{Connectable: false}, func(b []byte) (Command, error) { c, e := DecodeSetConnectable(b); return c, e }},
		{"SetBrEdr", SetBrEdr{Enabled: true}, func(b []byte) (Command, error) { c, e := DecodeSetBrEdr(b); return c, e }},
		{"SetIOCapability", SetIOCapability{Capability: IOCapabilityKeyboardOnly}, func(b []byte) (Command, error) { c, e := DecodeSetIOCapability(b); return c, e }},
		{"SetAppearance", SetAppearance{Appearance: 0x03C0}, func(b []byte) (Command, error) { c, e := DecodeSetAppearance(b); return c, e }},
		{
			"UserPasskeyReply",
			UserPasskeyReply{Address: addr, AddressType: btaddr.LeRandom, Passkey: 123456},
			func(b []byte) (Command, error) { c, e := DecodeUserPasskeyReply(b); return c, e },
		},
		{
			"AddAdvertising",
			AddAdvertising{Instance: 1, Flags: FlagSwitchIntoConnectableMode, Duration: 0, Timeout: 60, AdvData: []byte{1, 2}, ScanRsp: []byte{3}},
			func(b []byte) (Command, error) { c, e := DecodeAddAdvertising(b); return c, e },
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			back, err := tt.decode(tt.cmd.Encode())
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(back, tt.cmd) {
				t.Fatalf("got %+v want %+v", back, tt.cmd)
			}
		})
	}
}

func TestLoadLongTermKeysRoundTrip(t *testing.T) {
	cmd := LoadLongTermKeys{Keys: []btaddr.LongTermKey{
		{
			Address:               btaddr.Address{Octets: [6]byte{1, 2, 3, 4, 5, 6}},
			AddressType:           btaddr.LeRandom,
			KeyType:               btaddr.AuthenticatedKey,
			Master:                true,
			EncryptionSize:        16,
			EncryptionDiversifier: 0xBEEF,
			RandomNumber:          [8]byte{1, 1, 1, 1, 1, 1, 1, 1},
			Value:                 [16]byte{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2},
		},
	}}
	back, err := DecodeLoadLongTermKeys(cmd.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, cmd) {
		t.Fatalf("got %+v want %+v", back, cmd)
	}
}

func TestEventRoundTrip(t *testing.T) {
	cc := CommandCompleteEvent{CommandCode: CmdSetPowered, Status: StatusSuccess, Params: []byte{0, 0, 0, 1}}
	if back, err := DecodeCommandComplete(cc.Encode()); err != nil || !reflect.DeepEqual(back, cc) {
		t.Fatalf("CommandComplete round trip failed: %+v %v", back, err)
	}

	cs := CommandStatusEvent{CommandCode: CmdAddAdvertising, Status: StatusBusy}
	if back, err := DecodeCommandStatus(cs.Encode()); err != nil || !reflect.DeepEqual(back, cs) {
		t.Fatalf("CommandStatus round trip failed: %+v %v", back, err)
	}

	ar := AdvertisingRemovedEvent{Instance: 1}
	if back, err := DecodeAdvertisingRemoved(ar.Encode()); err != nil || back != ar {
		t.Fatalf("AdvertisingRemoved round trip failed: %+v %v", back, err)
	}
}

func TestNewLongTermKeyEventRoundTrip(t *testing.T) {
	ev := NewLongTermKeyEvent{
		StoreHint: true,
		Key: btaddr.LongTermKey{
			Address:               btaddr.Address{Octets: [6]byte{9, 8, 7, 6, 5, 4}},
			AddressType:           btaddr.LePublic,
			KeyType:               btaddr.UnauthenticatedKey,
			EncryptionDiversifier: 42,
		},
	}
	back, err := DecodeNewLongTermKey(ev.Encode())
	if err != nil || !reflect.DeepEqual(back, ev) {
		t.Fatalf("got %+v err %v want %+v", back, err, ev)
	}
}
