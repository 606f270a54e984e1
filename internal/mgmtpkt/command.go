package mgmtpkt

import (
	"encoding/binary"

	"github.com/btknmle/btknmle/internal/btaddr"
)

// Command is a MGMT command's parameter payload, self-describing its
// own command code the way the teacher's hci/cmd.CmdParam does.
type Command interface {
	Code() uint16
	Encode() []byte
}

// Build wraps a Command into the packet that the MGMT socket sends.
func Build(idx ControllerIndex, c Command) Packet {
	return Packet{Code: c.Code(), Index: idx, Params: c.Encode()}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func encodeAddr(a btaddr.Address, t btaddr.AddressType) []byte {
	b := make([]byte, 7)
	copy(b[:6], a.Octets[:])
	b[6] = byte(t)
	return b
}

// --- no-parameter commands ---

type ReadControllerInformation struct{}

func (ReadControllerInformation) Code() uint16 { return CmdReadControllerInformation }
func (ReadControllerInformation) Encode() []byte { return nil }

type ReadAdvertisingFeatures struct{}

func (ReadAdvertisingFeatures) Code() uint16   { return CmdReadAdvertisingFeatures }
func (ReadAdvertisingFeatures) Encode() []byte { return nil }

// --- single-byte boolean toggles ---

type SetPowered struct{ Powered bool }

func (SetPowered) Code() uint16           { return CmdSetPowered }
func (c SetPowered) Encode() []byte       { return []byte{boolByte(c.Powered)} }

type SetConnectable struct{ Connectable bool }

func (SetConnectable) Code() uint16     { return CmdSetConnectable }
func (c SetConnectable) Encode() []byte { return []byte{boolByte(c.Connectable)} }

type SetBondable struct{ Bondable bool }

func (SetBondable) Code() uint16     { return CmdSetBondable }
func (c SetBondable) Encode() []byte { return []byte{boolByte(c.Bondable)} }

type SetLowEnergy struct{ Enabled bool }

func (SetLowEnergy) Code() uint16     { return CmdSetLowEnergy }
func (c SetLowEnergy) Encode() []byte { return []byte{boolByte(c.Enabled)} }

type SetBrEdr struct{ Enabled bool }

func (SetBrEdr) Code() uint16     { return CmdSetBrEdr }
func (c SetBrEdr) Encode() []byte { return []byte{boolByte(c.Enabled)} }

// SecureConnectionsMode mirrors the kernel's tri-state: off, enabled
// (used if the remote supports it), only (refuse legacy pairing).
type SecureConnectionsMode uint8

const (
	SecureConnectionsDisabled SecureConnectionsMode = 0
	SecureConnectionsEnabled  SecureConnectionsMode = 1
	SecureConnectionsOnly     SecureConnectionsMode = 2
)

type SetSecureConnections struct{ Mode SecureConnectionsMode }

func (SetSecureConnections) Code() uint16     { return CmdSetSecureConnections }
func (c SetSecureConnections) Encode() []byte { return []byte{byte(c.Mode)} }

// IOCapability mirrors the SMP IO capability enumeration.
type IOCapability uint8

const (
	IOCapabilityDisplayOnly IOCapability = iota
	IOCapabilityDisplayYesNo
	IOCapabilityKeyboardOnly
	IOCapabilityNoInputNoOutput
	IOCapabilityKeyboardDisplay
)

type SetIOCapability struct{ Capability IOCapability }

func (SetIOCapability) Code() uint16     { return CmdSetIOCapability }
func (c SetIOCapability) Encode() []byte { return []byte{byte(c.Capability)} }

type SetAppearance struct{ Appearance uint16 }

func (SetAppearance) Code() uint16 { return CmdSetAppearance }
func (c SetAppearance) Encode() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, c.Appearance)
	return b
}

// --- names ---

type SetLocalName struct {
	Name      Name
	ShortName ShortName
}

func (SetLocalName) Code() uint16 { return CmdSetLocalName }
func (c SetLocalName) Encode() []byte {
	b := make([]byte, CompleteNameLen+ShortNameLen)
	copy(b[:CompleteNameLen], c.Name[:])
	copy(b[CompleteNameLen:], c.ShortName[:])
	return b
}

// --- privacy ---

type SetPrivacy struct {
	Privacy bool
	IRK     [16]byte
}

func (SetPrivacy) Code() uint16 { return CmdSetPrivacy }
func (c SetPrivacy) Encode() []byte {
	b := make([]byte, 17)
	b[0] = boolByte(c.Privacy)
	copy(b[1:], c.IRK[:])
	return b
}

// --- user confirmation / passkey ---

type UserConfirmationReply struct {
	Address     btaddr.Address
	AddressType btaddr.AddressType
}

func (UserConfirmationReply) Code() uint16     { return CmdUserConfirmationReply }
func (c UserConfirmationReply) Encode() []byte { return encodeAddr(c.Address, c.AddressType) }

type UserConfirmationNegativeReply struct {
	Address     btaddr.Address
	AddressType btaddr.AddressType
}

func (UserConfirmationNegativeReply) Code() uint16 { return CmdUserConfirmationNegativeReply }
func (c UserConfirmationNegativeReply) Encode() []byte {
	return encodeAddr(c.Address, c.AddressType)
}

type UserPasskeyReply struct {
	Address     btaddr.Address
	AddressType btaddr.AddressType
	Passkey     uint32
}

func (UserPasskeyReply) Code() uint16 { return CmdUserPasskeyReply }
func (c UserPasskeyReply) Encode() []byte {
	b := encodeAddr(c.Address, c.AddressType)
	pk := make([]byte, 4)
	binary.LittleEndian.PutUint32(pk, c.Passkey)
	return append(b, pk...)
}

type UserPasskeyNegativeReply struct {
	Address     btaddr.Address
	AddressType btaddr.AddressType
}

func (UserPasskeyNegativeReply) Code() uint16 { return CmdUserPasskeyNegativeReply }
func (c UserPasskeyNegativeReply) Encode() []byte {
	return encodeAddr(c.Address, c.AddressType)
}

// --- key loading ---

type LoadLongTermKeys struct{ Keys []btaddr.LongTermKey }

func (LoadLongTermKeys) Code() uint16 { return CmdLoadLongTermKeys }
func (c LoadLongTermKeys) Encode() []byte {
	b := make([]byte, 2, 2+len(c.Keys)*36)
	binary.LittleEndian.PutUint16(b, uint16(len(c.Keys)))
	for _, k := range c.Keys {
		b = append(b, k.Address.Octets[:]...)
		b = append(b, byte(k.AddressType))
		b = append(b, byte(k.KeyType))
		b = append(b, boolByte(k.Master))
		b = append(b, k.EncryptionSize)
		ed := make([]byte, 2)
		binary.LittleEndian.PutUint16(ed, k.EncryptionDiversifier)
		b = append(b, ed...)
		b = append(b, k.RandomNumber[:]...)
		b = append(b, k.Value[:]...)
	}
	return b
}

type LoadIdentityResolvingKeys struct{ Keys []btaddr.IdentityResolvingKey }

func (LoadIdentityResolvingKeys) Code() uint16 { return CmdLoadIdentityResolvingKeys }
func (c LoadIdentityResolvingKeys) Encode() []byte {
	b := make([]byte, 2, 2+len(c.Keys)*23)
	binary.LittleEndian.PutUint16(b, uint16(len(c.Keys)))
	for _, k := range c.Keys {
		b = append(b, k.Address.Octets[:]...)
		b = append(b, byte(k.AddressType))
		b = append(b, k.Value[:]...)
	}
	return b
}

// --- default system configuration ---

// SystemConfigParam is one type-length-value entry of the Set Default
// System Configuration command.
type SystemConfigParam struct {
	Type  uint16
	Value []byte
}

const (
	SysParamLEAdvertisementMinInterval uint16 = 0x000B
	SysParamLEAdvertisementMaxInterval uint16 = 0x000C
)

func u16Param(typ uint16, v uint16) SystemConfigParam {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return SystemConfigParam{Type: typ, Value: b}
}

type SetDefaultSystemConfiguration struct {
	LEAdvertisementMinInterval uint16
	LEAdvertisementMaxInterval uint16
}

func (SetDefaultSystemConfiguration) Code() uint16 { return CmdSetDefaultSystemConfiguration }
func (c SetDefaultSystemConfiguration) Encode() []byte {
	params := []SystemConfigParam{
		u16Param(SysParamLEAdvertisementMinInterval, c.LEAdvertisementMinInterval),
		u16Param(SysParamLEAdvertisementMaxInterval, c.LEAdvertisementMaxInterval),
	}
	var b []byte
	for _, p := range params {
		hdr := make([]byte, 3)
		binary.LittleEndian.PutUint16(hdr, p.Type)
		hdr[2] = byte(len(p.Value))
		b = append(b, hdr...)
		b = append(b, p.Value...)
	}
	return b
}

// --- advertising ---

type AddAdvertising struct {
	Instance    uint8
	Flags       AdvertisingFlags
	Duration    uint16
	Timeout     uint16
	AdvData     []byte
	ScanRsp     []byte
}

func (AddAdvertising) Code() uint16 { return CmdAddAdvertising }
func (c AddAdvertising) Encode() []byte {
	b := make([]byte, 1)
	b[0] = c.Instance
	b = append(b, EncodeAdvertisingFlags(c.Flags)...)
	du := make([]byte, 2)
	binary.LittleEndian.PutUint16(du, c.Duration)
	b = append(b, du...)
	to := make([]byte, 2)
	binary.LittleEndian.PutUint16(to, c.Timeout)
	b = append(b, to...)
	b = append(b, byte(len(c.AdvData)))
	b = append(b, byte(len(c.ScanRsp)))
	b = append(b, c.AdvData...)
	b = append(b, c.ScanRsp...)
	return b
}

type RemoveAdvertising struct{ Instance uint8 }

func (RemoveAdvertising) Code() uint16     { return CmdRemoveAdvertising }
func (c RemoveAdvertising) Encode() []byte { return []byte{c.Instance} }
