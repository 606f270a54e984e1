// Package advpkt encodes the advertising/scan-response data item list
// used by the HoGP peripheral role: a sequence of
// {length:u8, ad_type:u8, data:length-1 bytes} records, capped at 31
// octets total.
package advpkt

import (
	"errors"

	"github.com/btknmle/btknmle/internal/bleuuid"
)

// MaxLen is the maximum serialised length of an advertising or
// scan-response payload.
const MaxLen = 31

// ErrAdvertisingDataTooLong is returned by Encode when the serialised
// item list would exceed MaxLen octets.
var ErrAdvertisingDataTooLong = errors.New("advpkt: advertising data too long")

// AdType identifies an advertising data item's type.
type AdType uint8

const (
	TypeFlags              AdType = 0x01
	TypeCompleteListUUID16 AdType = 0x03
	TypeCompleteLocalName  AdType = 0x09
	TypeTxPower            AdType = 0x0A
	TypeAppearance         AdType = 0x19
)

// Item is one advertising data record.
type Item struct {
	Type AdType
	Data []byte
}

// Flags builds a Flags(0x01) item from a set of flag bits.
func Flags(v uint8) Item { return Item{Type: TypeFlags, Data: []byte{v}} }

const (
	FlagLimitedDiscoverableMode    uint8 = 1 << 0
	FlagGeneralDiscoverableMode    uint8 = 1 << 1
	FlagBrEdrNotSupported          uint8 = 1 << 2
	FlagSimultaneousLEAndBrEdrCtrl uint8 = 1 << 3
	FlagSimultaneousLEAndBrEdrHost uint8 = 1 << 4
)

// CompleteListUUID16 builds a CompleteListUuid16(0x03) item listing
// one or more 16-bit service UUIDs.
func CompleteListUUID16(uuids ...bleuuid.UUID) Item {
	var b []byte
	for _, u := range uuids {
		b = append(b, u.Bytes()...)
	}
	return Item{Type: TypeCompleteListUUID16, Data: b}
}

// TxPower builds a TxPower(0x0A) item from a dBm level.
func TxPower(dbm int8) Item { return Item{Type: TypeTxPower, Data: []byte{byte(dbm)}} }

// CompleteLocalName builds a CompleteLocalName(0x09) item.
func CompleteLocalName(name string) Item {
	return Item{Type: TypeCompleteLocalName, Data: []byte(name)}
}

// Appearance builds an Appearance(0x19) item from the 16-bit
// Bluetooth SIG appearance value.
func Appearance(v uint16) Item {
	return Item{Type: TypeAppearance, Data: []byte{byte(v), byte(v >> 8)}}
}

// Encode serialises a list of items into the wire form, enforcing the
// 31-octet total cap.
func Encode(items []Item) ([]byte, error) {
	var out []byte
	for _, it := range items {
		out = append(out, byte(len(it.Data)+1), byte(it.Type))
		out = append(out, it.Data...)
	}
	if len(out) > MaxLen {
		return nil, ErrAdvertisingDataTooLong
	}
	return out, nil
}

// Decode parses a wire-form item list. It does not enforce MaxLen:
// that is an Encode-time invariant on data this device produces, not
// a property of data it might read back.
func Decode(b []byte) ([]Item, error) {
	var items []Item
	for len(b) > 0 {
		if len(b) < 1 {
			return nil, ErrShortRecord
		}
		n := int(b[0])
		if n == 0 {
			b = b[1:]
			continue
		}
		if len(b) < 1+n {
			return nil, ErrShortRecord
		}
		items = append(items, Item{Type: AdType(b[1]), Data: append([]byte(nil), b[2:1+n]...)})
		b = b[1+n:]
	}
	return items, nil
}

// ErrShortRecord is returned by Decode when a record's declared length
// runs past the end of the buffer.
var ErrShortRecord = errors.New("advpkt: short advertising data record")
