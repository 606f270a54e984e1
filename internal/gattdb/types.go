// Package gattdb implements the in-memory GATT attribute table: a
// handle-keyed database built once at startup (§4.4) and a per-connection
// Session overlay that answers the ATT discovery/read/write verbs against
// it without ever mutating the shared template.
package gattdb

import "github.com/btknmle/btknmle/internal/bleuuid"

// Permission is the bitset carried by every attribute, derived from its
// declaring characteristic's properties where applicable.
type Permission uint8

const (
	PermReadable              Permission = 1 << 0
	PermWritable               Permission = 1 << 1
	PermAuthorizationRequired  Permission = 1 << 2
	PermAuthenticationRequired Permission = 1 << 3
)

func (p Permission) Has(bit Permission) bool { return p&bit != 0 }

// Properties is the GATT characteristic properties octet (Bluetooth
// core spec, Characteristic Declaration value).
type Properties uint8

const (
	PropBroadcast          Properties = 1 << 0
	PropRead               Properties = 1 << 1
	PropWriteNoResponse    Properties = 1 << 2
	PropWrite              Properties = 1 << 3
	PropNotify             Properties = 1 << 4
	PropIndicate           Properties = 1 << 5
	PropSignedWrite        Properties = 1 << 6
	PropExtendedProperties Properties = 1 << 7
)

func permFromProperties(p Properties) Permission {
	var perm Permission
	if p&PropRead != 0 {
		perm |= PermReadable
	}
	if p&(PropWrite|PropWriteNoResponse|PropSignedWrite) != 0 {
		perm |= PermWritable
	}
	return perm
}

// CCCD is the two-byte Client Characteristic Configuration bitset.
type CCCD uint16

const (
	CCCDNotification CCCD = 1 << 0
	CCCDIndication    CCCD = 1 << 1
)

func (c CCCD) Bytes() []byte { return []byte{byte(c), byte(c >> 8)} }

// Well-known attribute type UUIDs this package constructs declarations
// and descriptors from.
var (
	TypePrimaryService      = bleuuid.UUID16(0x2800)
	TypeCharacteristic      = bleuuid.UUID16(0x2803)
	TypeUserDescription     = bleuuid.UUID16(0x2901)
	TypeClientCharConfig    = bleuuid.UUID16(0x2902)
	TypeReportReference     = bleuuid.UUID16(0x2908)
)

// Attribute is one row of the database.
type Attribute struct {
	Handle uint16
	Type   bleuuid.UUID
	Value  []byte
	Perm   Permission
}
