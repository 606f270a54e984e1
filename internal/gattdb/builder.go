package gattdb

import (
	"encoding/binary"

	"github.com/btknmle/btknmle/internal/bleuuid"
)

// DefaultServerMTUCapability is the local ATT_MTU this device advertises
// in Exchange MTU Response when no other value is configured; it matches
// the worked example in the ATT PDU end-to-end scenarios.
const DefaultServerMTUCapability = 0x00B8

// Builder assembles a Database with a monotonically increasing handle
// counter, starting at 1; handles are never reused.
type Builder struct {
	next       uint16
	attrs      []*Attribute
	capability uint16
}

// NewBuilder starts a fresh builder. capability is this device's local
// ATT_MTU ceiling; 0 selects DefaultServerMTUCapability.
func NewBuilder(capability uint16) *Builder {
	if capability == 0 {
		capability = DefaultServerMTUCapability
	}
	return &Builder{next: 1, capability: capability}
}

func (b *Builder) add(typ bleuuid.UUID, value []byte, perm Permission) uint16 {
	h := b.next
	b.attrs = append(b.attrs, &Attribute{
		Handle: h,
		Type:   typ,
		Value:  append([]byte(nil), value...),
		Perm:   perm,
	})
	b.next++
	return h
}

// AddPrimaryService declares a new service, starting a new group that
// Read By Group Type will later report.
func (b *Builder) AddPrimaryService(uuid bleuuid.UUID) uint16 {
	return b.add(TypePrimaryService, uuid.Bytes(), PermReadable)
}

// AddCharacteristic appends a characteristic declaration followed
// immediately by its value attribute, and returns the value's handle.
func (b *Builder) AddCharacteristic(typ bleuuid.UUID, initial []byte, props Properties) uint16 {
	valueHandle := b.next + 1
	decl := make([]byte, 1+2+typ.Len())
	decl[0] = byte(props)
	binary.LittleEndian.PutUint16(decl[1:3], valueHandle)
	copy(decl[3:], typ.Bytes())
	b.add(TypeCharacteristic, decl, PermReadable)
	return b.add(typ, initial, permFromProperties(props))
}

// AddDescriptor appends a descriptor with an arbitrary UUID, readable only.
func (b *Builder) AddDescriptor(uuid bleuuid.UUID, value []byte) uint16 {
	return b.add(uuid, value, PermReadable)
}

// AddUserDescription appends a Characteristic User Description (0x2901).
func (b *Builder) AddUserDescription(s string) uint16 {
	return b.add(TypeUserDescription, []byte(s), PermReadable)
}

// AddCCCD appends a Client Characteristic Configuration Descriptor
// (0x2902), readable and writable by the peer.
func (b *Builder) AddCCCD(initial CCCD) uint16 {
	return b.add(TypeClientCharConfig, initial.Bytes(), PermReadable|PermWritable)
}

// AddReportReference appends a Report Reference descriptor (0x2908):
// {report_id, report_type} as used by the HIDS Report characteristic.
func (b *Builder) AddReportReference(reportID, reportType uint8) uint16 {
	return b.add(TypeReportReference, []byte{reportID, reportType}, PermReadable)
}

// RequireAuthentication marks the most recently added attribute as requiring an
// authenticated link, used for HIDS characteristics that must not be
// readable before bonding completes.
func (b *Builder) RequireAuthentication() {
	if len(b.attrs) == 0 {
		return
	}
	b.attrs[len(b.attrs)-1].Perm |= PermAuthenticationRequired
}

// Build freezes the attribute list into an immutable Database.
func (b *Builder) Build() *Database {
	return &Database{attrs: append([]*Attribute(nil), b.attrs...), capability: b.capability}
}
