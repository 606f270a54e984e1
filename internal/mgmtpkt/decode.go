package mgmtpkt

import (
	"encoding/binary"

	"github.com/btknmle/btknmle/internal/btaddr"
)

func decodeAddr(b []byte) (btaddr.Address, btaddr.AddressType, error) {
	if len(b) < 7 {
		return btaddr.Address{}, 0, ErrUnexpectedEOF
	}
	var a btaddr.Address
	copy(a.Octets[:], b[:6])
	return a, btaddr.AddressType(b[6]), nil
}

// DecodeSetPowered and friends below decode a command's own parameter
// bytes back into the typed struct; used by the codec round-trip
// property tests and by any future wire-level test double of the
// kernel MGMT endpoint.

func DecodeSetPowered(b []byte) (SetPowered, error) {
	if len(b) < 1 {
		return SetPowered{}, ErrUnexpectedEOF
	}
	return SetPowered{Powered: b[0] != 0}, nil
}

func DecodeSetConnectable(b []byte) (SetConnectable, error) {
	if len(b) < 1 {
		return SetConnectable{}, ErrUnexpectedEOF
	}
	return SetConnectable{Connectable: b[0] != 0}, nil
}

func DecodeSetBondable(b []byte) (SetBondable, error) {
	if len(b) < 1 {
		return SetBondable{}, ErrUnexpectedEOF
	}
	return SetBondable{Bondable: b[0] != 0}, nil
}

func DecodeSetLowEnergy(b []byte) (SetLowEnergy, error) {
	if len(b) < 1 {
		return SetLowEnergy{}, ErrUnexpectedEOF
	}
	return SetLowEnergy{Enabled: b[0] != 0}, nil
}

func DecodeSetBrEdr(b []byte) (SetBrEdr, error) {
	if len(b) < 1 {
		return SetBrEdr{}, ErrUnexpectedEOF
	}
	return SetBrEdr{Enabled: b[0] != 0}, nil
}

func DecodeSetSecureConnections(b []byte) (SetSecureConnections, error) {
	if len(b) < 1 {
		return SetSecureConnections{}, ErrUnexpectedEOF
	}
	return SetSecureConnections{Mode: SecureConnectionsMode(b[0])}, nil
}

func DecodeSetIOCapability(b []byte) (SetIOCapability, error) {
	if len(b) < 1 {
		return SetIOCapability{}, ErrUnexpectedEOF
	}
	return SetIOCapability{Capability: IOCapability(b[0])}, nil
}

func DecodeSetAppearance(b []byte) (SetAppearance, error) {
	if len(b) < 2 {
		return SetAppearance{}, ErrUnexpectedEOF
	}
	return SetAppearance{Appearance: binary.LittleEndian.Uint16(b)}, nil
}

func DecodeSetLocalName(b []byte) (SetLocalName, error) {
	if len(b) < CompleteNameLen+ShortNameLen {
		return SetLocalName{}, ErrUnexpectedEOF
	}
	var c SetLocalName
	copy(c.Name[:], b[:CompleteNameLen])
	copy(c.ShortName[:], b[CompleteNameLen:CompleteNameLen+ShortNameLen])
	return c, nil
}

func DecodeSetPrivacy(b []byte) (SetPrivacy, error) {
	if len(b) < 17 {
		return SetPrivacy{}, ErrUnexpectedEOF
	}
	var c SetPrivacy
	c.Privacy = b[0] != 0
	copy(c.IRK[:], b[1:17])
	return c, nil
}

func DecodeUserConfirmationReply(b []byte) (UserConfirmationReply, error) {
	a, t, err := decodeAddr(b)
	return UserConfirmationReply{Address: a, AddressType: t}, err
}

func DecodeUserConfirmationNegativeReply(b []byte) (UserConfirmationNegativeReply, error) {
	a, t, err := decodeAddr(b)
	return UserConfirmationNegativeReply{Address: a, AddressType: t}, err
}

func DecodeUserPasskeyReply(b []byte) (UserPasskeyReply, error) {
	a, t, err := decodeAddr(b)
	if err != nil {
		return UserPasskeyReply{}, err
	}
	if len(b) < 11 {
		return UserPasskeyReply{}, ErrUnexpectedEOF
	}
	return UserPasskeyReply{Address: a, AddressType: t, Passkey: binary.LittleEndian.Uint32(b[7:11])}, nil
}

func DecodeUserPasskeyNegativeReply(b []byte) (UserPasskeyNegativeReply, error) {
	a, t, err := decodeAddr(b)
	return UserPasskeyNegativeReply{Address: a, AddressType: t}, err
}

func DecodeLoadLongTermKeys(b []byte) (LoadLongTermKeys, error) {
	if len(b) < 2 {
		return LoadLongTermKeys{}, ErrUnexpectedEOF
	}
	n := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	const ltkRecordLen = 6 + 1 + 1 + 1 + 1 + 2 + 8 + 16 // 36
	keys := make([]btaddr.LongTermKey, 0, n)
	for i := 0; i < int(n); i++ {
		if len(b) < ltkRecordLen {
			return LoadLongTermKeys{}, ErrUnexpectedEOF
		}
		var k btaddr.LongTermKey
		copy(k.Address.Octets[:], b[0:6])
		k.AddressType = btaddr.AddressType(b[6])
		k.KeyType = btaddr.LongTermKeyType(b[7])
		k.Master = b[8] != 0
		k.EncryptionSize = b[9]
		k.EncryptionDiversifier = binary.LittleEndian.Uint16(b[10:12])
		copy(k.RandomNumber[:], b[12:20])
		copy(k.Value[:], b[20:36])
		keys = append(keys, k)
		b = b[ltkRecordLen:]
	}
	return LoadLongTermKeys{Keys: keys}, nil
}

func DecodeLoadIdentityResolvingKeys(b []byte) (LoadIdentityResolvingKeys, error) {
	if len(b) < 2 {
		return LoadIdentityResolvingKeys{}, ErrUnexpectedEOF
	}
	n := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	keys := make([]btaddr.IdentityResolvingKey, 0, n)
	for i := 0; i < int(n); i++ {
		if len(b) < 23 {
			return LoadIdentityResolvingKeys{}, ErrUnexpectedEOF
		}
		var k btaddr.IdentityResolvingKey
		copy(k.Address.Octets[:], b[0:6])
		k.AddressType = btaddr.AddressType(b[6])
		copy(k.Value[:], b[7:23])
		keys = append(keys, k)
		b = b[23:]
	}
	return LoadIdentityResolvingKeys{Keys: keys}, nil
}

func DecodeAddAdvertising(b []byte) (AddAdvertising, error) {
	if len(b) < 11 {
		return AddAdvertising{}, ErrUnexpectedEOF
	}
	var c AddAdvertising
	c.Instance = b[0]
	flags, err := DecodeAdvertisingFlags(b[1:5])
	if err != nil {
		return AddAdvertising{}, err
	}
	c.Flags = flags
	c.Duration = binary.LittleEndian.Uint16(b[5:7])
	c.Timeout = binary.LittleEndian.Uint16(b[7:9])
	advLen := int(b[9])
	scanLen := int(b[10])
	b = b[11:]
	if len(b) < advLen+scanLen {
		return AddAdvertising{}, ErrUnexpectedEOF
	}
	c.AdvData = append([]byte(nil), b[:advLen]...)
	c.ScanRsp = append([]byte(nil), b[advLen:advLen+scanLen]...)
	return c, nil
}

func DecodeRemoveAdvertising(b []byte) (RemoveAdvertising, error) {
	if len(b) < 1 {
		return RemoveAdvertising{}, ErrUnexpectedEOF
	}
	return RemoveAdvertising{Instance: b[0]}, nil
}

// --- response payloads ---

// ControllerInformation is the CommandComplete response body of
// ReadControllerInformation.
type ControllerInformation struct {
	Address           btaddr.Address
	Version           uint8
	Manufacturer      uint16
	SupportedSettings CurrentSettings
	CurrentSettings   CurrentSettings
	ClassOfDevice     [3]byte
	Name              Name
	ShortName         ShortName
}

func DecodeControllerInformation(b []byte) (ControllerInformation, error) {
	const want = 6 + 1 + 2 + 4 + 4 + 3 + CompleteNameLen + ShortNameLen
	if len(b) < want {
		return ControllerInformation{}, ErrUnexpectedEOF
	}
	var ci ControllerInformation
	copy(ci.Address.Octets[:], b[0:6])
	ci.Version = b[6]
	ci.Manufacturer = binary.LittleEndian.Uint16(b[7:9])
	ci.SupportedSettings = CurrentSettings(binary.LittleEndian.Uint32(b[9:13]))
	ci.CurrentSettings = CurrentSettings(binary.LittleEndian.Uint32(b[13:17]))
	copy(ci.ClassOfDevice[:], b[17:20])
	copy(ci.Name[:], b[20:20+CompleteNameLen])
	copy(ci.ShortName[:], b[20+CompleteNameLen:20+CompleteNameLen+ShortNameLen])
	return ci, nil
}

// DecodeAddAdvertisingResponse reads the one-byte instance id that
// AddAdvertising's CommandComplete carries.
func DecodeAddAdvertisingResponse(b []byte) (uint8, error) {
	if len(b) < 1 {
		return 0, ErrUnexpectedEOF
	}
	return b[0], nil
}

// AdvertisingFeatures is ReadAdvertisingFeatures's response body; the
// GAP orchestrator does not issue that command.
type AdvertisingFeatures struct {
	SupportedFlags  AdvertisingFlags
	MaxAdvDataLen   uint8
	MaxScanRspLen   uint8
	MaxInstances    uint8
	Instances       []uint8
}

func DecodeAdvertisingFeatures(b []byte) (AdvertisingFeatures, error) {
	if len(b) < 7 {
		return AdvertisingFeatures{}, ErrUnexpectedEOF
	}
	var f AdvertisingFeatures
	flags, err := DecodeAdvertisingFlags(b[0:4])
	if err != nil {
		return AdvertisingFeatures{}, err
	}
	f.SupportedFlags = flags
	f.MaxAdvDataLen = b[4]
	f.MaxScanRspLen = b[5]
	f.MaxInstances = b[6]
	n := int(0)
	if len(b) > 7 {
		n = int(b[7])
	}
	if len(b) < 8+n {
		return AdvertisingFeatures{}, ErrUnexpectedEOF
	}
	if n > 0 {
		f.Instances = append([]byte(nil), b[8:8+n]...)
	}
	return f, nil
}
