// Package mgmtpkt implements bit-exact encode/decode for the Linux
// kernel Bluetooth management (MGMT) wire protocol: one packet per
// datagram, header then command- or event-specific parameters, all
// integers little-endian.
package mgmtpkt

import (
	"encoding/binary"
	"fmt"
)

// headerLen is code(2) + index(2) + param length(2).
const headerLen = 6

// NonController is the sentinel ControllerIndex meaning "the MGMT
// stack itself, not a particular controller".
const NonController ControllerIndex = 0xFFFF

// ControllerIndex identifies a local Bluetooth controller.
type ControllerIndex uint16

func (c ControllerIndex) String() string {
	if c == NonController {
		return "none"
	}
	return fmt.Sprintf("hci%d", uint16(c))
}

// Packet is one decoded MGMT datagram: a code (command or event), the
// controller it concerns, and its raw parameter bytes.
type Packet struct {
	Code   uint16
	Index  ControllerIndex
	Params []byte
}

// Encode serialises p to its wire form.
func (p Packet) Encode() []byte {
	b := make([]byte, headerLen+len(p.Params))
	binary.LittleEndian.PutUint16(b[0:2], p.Code)
	binary.LittleEndian.PutUint16(b[2:4], uint16(p.Index))
	binary.LittleEndian.PutUint16(b[4:6], uint16(len(p.Params)))
	copy(b[6:], p.Params)
	return b
}

// Decode parses one datagram. It fails with ErrShortPacket if b is
// shorter than the header, or ErrLengthMismatch if the declared
// parameter length disagrees with the remaining bytes.
func Decode(b []byte) (Packet, error) {
	if len(b) < headerLen {
		return Packet{}, ErrShortPacket
	}
	code := binary.LittleEndian.Uint16(b[0:2])
	idx := binary.LittleEndian.Uint16(b[2:4])
	plen := binary.LittleEndian.Uint16(b[4:6])
	rest := b[headerLen:]
	if int(plen) != len(rest) {
		return Packet{}, ErrLengthMismatch
	}
	params := make([]byte, len(rest))
	copy(params, rest)
	return Packet{Code: code, Index: ControllerIndex(idx), Params: params}, nil
}
