// Package btaddr holds the LE address, LTK and IRK value types shared
// between the MGMT codec, the GAP orchestrator and the key store.
package btaddr

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address is a six-octet Bluetooth device address, stored in wire
// (little-endian) order: Octets[5] is the most significant octet of
// the display form.
type Address struct {
	Octets [6]byte
}

// ParseAddress parses the colon-separated display form "XX:XX:XX:XX:XX:XX",
// most-significant octet first, into wire order.
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return Address{}, fmt.Errorf("btaddr: malformed address %q", s)
	}
	var a Address
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return Address{}, fmt.Errorf("btaddr: malformed address %q: %w", s, err)
		}
		a.Octets[5-i] = byte(v)
	}
	return a, nil
}

// String renders the display form, most significant octet first.
func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		a.Octets[5], a.Octets[4], a.Octets[3], a.Octets[2], a.Octets[1], a.Octets[0])
}

// AddressType distinguishes the three address kinds the MGMT API uses.
type AddressType uint8

const (
	BrEdr AddressType = iota
	LePublic
	LeRandom
)

func (t AddressType) String() string {
	switch t {
	case BrEdr:
		return "bredr"
	case LePublic:
		return "public"
	case LeRandom:
		return "random"
	default:
		return fmt.Sprintf("addresstype(%d)", uint8(t))
	}
}

// ParseAddressType parses the TOML enum spelling used by the key file.
func ParseAddressType(s string) (AddressType, error) {
	switch s {
	case "bredr":
		return BrEdr, nil
	case "public":
		return LePublic, nil
	case "random":
		return LeRandom, nil
	default:
		return 0, fmt.Errorf("btaddr: unknown address type %q", s)
	}
}

// LongTermKeyType distinguishes the bonding strength/algorithm of an LTK.
// The values are the MGMT wire encoding of the key type byte.
type LongTermKeyType uint8

const (
	AuthenticatedKey       LongTermKeyType = 0x01
	UnauthenticatedKey     LongTermKeyType = 0x00
	AuthenticatedP256Key   LongTermKeyType = 0x03
	UnauthenticatedP256Key LongTermKeyType = 0x02
	DebugKeyP256           LongTermKeyType = 0x04
)

func (t LongTermKeyType) String() string {
	switch t {
	case AuthenticatedKey:
		return "authenticated"
	case UnauthenticatedKey:
		return "unauthenticated"
	case AuthenticatedP256Key:
		return "authenticatedp256"
	case UnauthenticatedP256Key:
		return "unauthenticatedp256"
	case DebugKeyP256:
		return "debugp256"
	default:
		return fmt.Sprintf("keytype(%d)", uint8(t))
	}
}

// ParseLongTermKeyType parses the TOML enum spelling used by the key file.
func ParseLongTermKeyType(s string) (LongTermKeyType, error) {
	switch s {
	case "authenticated":
		return AuthenticatedKey, nil
	case "unauthenticated":
		return UnauthenticatedKey, nil
	case "authenticatedp256":
		return AuthenticatedP256Key, nil
	case "unauthenticatedp256":
		return UnauthenticatedP256Key, nil
	case "debugp256":
		return DebugKeyP256, nil
	default:
		return 0, fmt.Errorf("btaddr: unknown key type %q", s)
	}
}

// Authenticated reports whether t denotes an MITM-protected bonding.
func (t LongTermKeyType) Authenticated() bool {
	return t == AuthenticatedKey || t == AuthenticatedP256Key
}

// LongTermKey is a bonded peer's symmetric encryption key.
type LongTermKey struct {
	Address               Address
	AddressType           AddressType
	KeyType                LongTermKeyType
	Master                 bool
	EncryptionSize         uint8
	EncryptionDiversifier  uint16
	RandomNumber           [8]byte
	Value                  [16]byte
}

// IdentityResolvingKey lets a peer using a resolvable random address be
// recognised across reconnections.
type IdentityResolvingKey struct {
	Address     Address
	AddressType AddressType
	Value       [16]byte
}

// HexEncode, HexDecode16 and HexDecode8 are small helpers the TOML key
// store uses for the fixed-size key material.
func HexEncode(b []byte) string { return hex.EncodeToString(b) }

func HexDecode16(s string) ([16]byte, error) {
	var out [16]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		return out, fmt.Errorf("btaddr: expected 32 hex chars, got %q", s)
	}
	copy(out[:], b)
	return out, nil
}

func HexDecode8(s string) ([8]byte, error) {
	var out [8]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 8 {
		return out, fmt.Errorf("btaddr: expected 16 hex chars, got %q", s)
	}
	copy(out[:], b)
	return out, nil
}
