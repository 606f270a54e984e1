package mgmtpkt

import (
	"encoding/binary"

	"github.com/btknmle/btknmle/internal/btaddr"
)

// CommandCompleteEvent is the CommandComplete event body: the command
// it answers, its status, and the command-specific return parameters.
type CommandCompleteEvent struct {
	CommandCode uint16
	Status      Status
	Params      []byte
}

func DecodeCommandComplete(b []byte) (CommandCompleteEvent, error) {
	if len(b) < 3 {
		return CommandCompleteEvent{}, ErrUnexpectedEOF
	}
	params := append([]byte(nil), b[3:]...)
	return CommandCompleteEvent{
		CommandCode: binary.LittleEndian.Uint16(b[0:2]),
		Status:      StatusFromByte(b[2]),
		Params:      params,
	}, nil
}

func (e CommandCompleteEvent) Encode() []byte {
	b := make([]byte, 3+len(e.Params))
	binary.LittleEndian.PutUint16(b[0:2], e.CommandCode)
	b[2] = e.Status.Byte()
	copy(b[3:], e.Params)
	return b
}

// CommandStatusEvent is the CommandStatus event body.
type CommandStatusEvent struct {
	CommandCode uint16
	Status      Status
}

func DecodeCommandStatus(b []byte) (CommandStatusEvent, error) {
	if len(b) < 3 {
		return CommandStatusEvent{}, ErrUnexpectedEOF
	}
	return CommandStatusEvent{
		CommandCode: binary.LittleEndian.Uint16(b[0:2]),
		Status:      StatusFromByte(b[2]),
	}, nil
}

func (e CommandStatusEvent) Encode() []byte {
	b := make([]byte, 3)
	binary.LittleEndian.PutUint16(b[0:2], e.CommandCode)
	b[2] = e.Status.Byte()
	return b
}

// NewSettingsEvent reports the controller's current settings changed.
type NewSettingsEvent struct{ Settings CurrentSettings }

func DecodeNewSettings(b []byte) (NewSettingsEvent, error) {
	s, err := DecodeSettings(b)
	return NewSettingsEvent{Settings: s}, err
}

func (e NewSettingsEvent) Encode() []byte { return EncodeSettings(e.Settings) }

// NewLongTermKeyEvent is emitted when the controller establishes (or
// re-establishes) an LTK with a peer during bonding.
type NewLongTermKeyEvent struct {
	StoreHint bool
	Key       btaddr.LongTermKey
}

func DecodeNewLongTermKey(b []byte) (NewLongTermKeyEvent, error) {
	if len(b) < 1+36 {
		return NewLongTermKeyEvent{}, ErrUnexpectedEOF
	}
	hint := b[0] != 0
	k := btaddr.LongTermKey{}
	rest := b[1:]
	copy(k.Address.Octets[:], rest[0:6])
	k.AddressType = btaddr.AddressType(rest[6])
	k.KeyType = btaddr.LongTermKeyType(rest[7])
	k.Master = rest[8] != 0
	k.EncryptionSize = rest[9]
	k.EncryptionDiversifier = binary.LittleEndian.Uint16(rest[10:12])
	copy(k.RandomNumber[:], rest[12:20])
	copy(k.Value[:], rest[20:36])
	return NewLongTermKeyEvent{StoreHint: hint, Key: k}, nil
}

func (e NewLongTermKeyEvent) Encode() []byte {
	b := make([]byte, 1, 1+36)
	b[0] = boolByte(e.StoreHint)
	b = append(b, e.Key.Address.Octets[:]...)
	b = append(b, byte(e.Key.AddressType), byte(e.Key.KeyType), boolByte(e.Key.Master), e.Key.EncryptionSize)
	ed := make([]byte, 2)
	binary.LittleEndian.PutUint16(ed, e.Key.EncryptionDiversifier)
	b = append(b, ed...)
	b = append(b, e.Key.RandomNumber[:]...)
	b = append(b, e.Key.Value[:]...)
	return b
}

// NewIdentityResolvingKeyEvent is emitted when the controller resolves
// (or is given) a peer's IRK during bonding.
type NewIdentityResolvingKeyEvent struct {
	StoreHint bool
	Key       btaddr.IdentityResolvingKey
}

func DecodeNewIdentityResolvingKey(b []byte) (NewIdentityResolvingKeyEvent, error) {
	if len(b) < 1+23 {
		return NewIdentityResolvingKeyEvent{}, ErrUnexpectedEOF
	}
	hint := b[0] != 0
	rest := b[1:]
	var k btaddr.IdentityResolvingKey
	copy(k.Address.Octets[:], rest[0:6])
	k.AddressType = btaddr.AddressType(rest[6])
	copy(k.Value[:], rest[7:23])
	return NewIdentityResolvingKeyEvent{StoreHint: hint, Key: k}, nil
}

func (e NewIdentityResolvingKeyEvent) Encode() []byte {
	b := make([]byte, 1, 1+23)
	b[0] = boolByte(e.StoreHint)
	b = append(b, e.Key.Address.Octets[:]...)
	b = append(b, byte(e.Key.AddressType))
	b = append(b, e.Key.Value[:]...)
	return b
}

// DeviceConnectedEvent and DeviceDisconnectedEvent are observed
// informationally by the GAP orchestrator (spec.md §4.6).
type DeviceConnectedEvent struct {
	Address     btaddr.Address
	AddressType btaddr.AddressType
	Flags       uint32
	EIRData     []byte
}

func DecodeDeviceConnected(b []byte) (DeviceConnectedEvent, error) {
	if len(b) < 6+1+4+2 {
		return DeviceConnectedEvent{}, ErrUnexpectedEOF
	}
	var e DeviceConnectedEvent
	copy(e.Address.Octets[:], b[0:6])
	e.AddressType = btaddr.AddressType(b[6])
	e.Flags = binary.LittleEndian.Uint32(b[7:11])
	eirLen := int(binary.LittleEndian.Uint16(b[11:13]))
	if len(b) < 13+eirLen {
		return DeviceConnectedEvent{}, ErrUnexpectedEOF
	}
	e.EIRData = append([]byte(nil), b[13:13+eirLen]...)
	return e, nil
}

func (e DeviceConnectedEvent) Encode() []byte {
	b := make([]byte, 13, 13+len(e.EIRData))
	copy(b[0:6], e.Address.Octets[:])
	b[6] = byte(e.AddressType)
	binary.LittleEndian.PutUint32(b[7:11], e.Flags)
	binary.LittleEndian.PutUint16(b[11:13], uint16(len(e.EIRData)))
	return append(b, e.EIRData...)
}

type DeviceDisconnectedEvent struct {
	Address     btaddr.Address
	AddressType btaddr.AddressType
	Reason      uint8
}

func DecodeDeviceDisconnected(b []byte) (DeviceDisconnectedEvent, error) {
	if len(b) < 8 {
		return DeviceDisconnectedEvent{}, ErrUnexpectedEOF
	}
	var e DeviceDisconnectedEvent
	copy(e.Address.Octets[:], b[0:6])
	e.AddressType = btaddr.AddressType(b[6])
	e.Reason = b[7]
	return e, nil
}

func (e DeviceDisconnectedEvent) Encode() []byte {
	return []byte{
		e.Address.Octets[0], e.Address.Octets[1], e.Address.Octets[2],
		e.Address.Octets[3], e.Address.Octets[4], e.Address.Octets[5],
		byte(e.AddressType), e.Reason,
	}
}

// UserConfirmationRequestEvent and UserPasskeyRequestEvent drive the
// GAP orchestrator's pairing reply policy (spec.md §4.6).
type UserConfirmationRequestEvent struct {
	Address      btaddr.Address
	AddressType  btaddr.AddressType
	ConfirmHint  bool
	Value        uint32
}

func DecodeUserConfirmationRequest(b []byte) (UserConfirmationRequestEvent, error) {
	if len(b) < 12 {
		return UserConfirmationRequestEvent{}, ErrUnexpectedEOF
	}
	var e UserConfirmationRequestEvent
	copy(e.Address.Octets[:], b[0:6])
	e.AddressType = btaddr.AddressType(b[6])
	e.ConfirmHint = b[7] != 0
	e.Value = binary.LittleEndian.Uint32(b[8:12])
	return e, nil
}

func (e UserConfirmationRequestEvent) Encode() []byte {
	b := make([]byte, 12)
	copy(b[0:6], e.Address.Octets[:])
	b[6] = byte(e.AddressType)
	b[7] = boolByte(e.ConfirmHint)
	binary.LittleEndian.PutUint32(b[8:12], e.Value)
	return b
}

type UserPasskeyRequestEvent struct {
	Address     btaddr.Address
	AddressType btaddr.AddressType
}

func DecodeUserPasskeyRequest(b []byte) (UserPasskeyRequestEvent, error) {
	a, t, err := decodeAddr(b)
	return UserPasskeyRequestEvent{Address: a, AddressType: t}, err
}

func (e UserPasskeyRequestEvent) Encode() []byte { return encodeAddr(e.Address, e.AddressType) }

// AdvertisingRemovedEvent fires when an advertising instance's timeout
// elapses or it is explicitly removed.
type AdvertisingRemovedEvent struct{ Instance uint8 }

func DecodeAdvertisingRemoved(b []byte) (AdvertisingRemovedEvent, error) {
	if len(b) < 1 {
		return AdvertisingRemovedEvent{}, ErrUnexpectedEOF
	}
	return AdvertisingRemovedEvent{Instance: b[0]}, nil
}

func (e AdvertisingRemovedEvent) Encode() []byte { return []byte{e.Instance} }
