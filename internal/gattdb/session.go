package gattdb

import (
	"bytes"
	"encoding/binary"

	"github.com/btknmle/btknmle/internal/attpkt"
	"github.com/btknmle/btknmle/internal/bleuuid"
)

// MinMTU is the ATT minimum, below which the protocol cannot operate.
const MinMTU = 23

// Database is the immutable, handle-dense attribute table built once
// at startup. Handles are 1..N in declaration order, so attribute
// lookup is a direct slice index.
type Database struct {
	attrs      []*Attribute
	capability uint16
}

// NumAttributes reports N, the handle-dense attribute count.
func (db *Database) NumAttributes() int { return len(db.attrs) }

func (db *Database) attr(handle uint16) *Attribute {
	if handle == 0 || int(handle) > len(db.attrs) {
		return nil
	}
	return db.attrs[handle-1]
}

// NewSession opens a per-connection view of db: writable values and
// CCCDs live in an overlay so the shared template is never mutated.
func (db *Database) NewSession() *Session {
	return &Session{db: db, overlay: map[uint16][]byte{}, mtu: MinMTU}
}

// Session is one connection's live view of the database: its
// negotiated MTU, authentication state, and any attribute values the
// peer has written.
type Session struct {
	db            *Database
	overlay       map[uint16][]byte
	mtu           int
	authenticated bool
}

// MTU reports the currently negotiated ATT_MTU.
func (s *Session) MTU() int { return s.mtu }

// SetAuthenticated marks the underlying link as having completed an
// authenticated (MITM-protected) bond; it gates attributes that
// require it.
func (s *Session) SetAuthenticated(v bool) { s.authenticated = v }

func (s *Session) valueOf(a *Attribute) []byte {
	if v, ok := s.overlay[a.Handle]; ok {
		return v
	}
	return a.Value
}

// ExchangeMTU clamps client_mtu and the local capability to at least
// MinMTU, sets the session MTU to the smaller of the two, and returns
// that negotiated value.
func (s *Session) ExchangeMTU(clientMTU uint16) uint16 {
	if clientMTU < MinMTU {
		clientMTU = MinMTU
	}
	cap := s.db.capability
	if cap < MinMTU {
		cap = MinMTU
	}
	negotiated := clientMTU
	if cap < negotiated {
		negotiated = cap
	}
	s.mtu = int(negotiated)
	return negotiated
}

func (s *Session) checkReadable(a *Attribute) error {
	if a.Perm.Has(PermAuthenticationRequired) && !s.authenticated {
		return attpkt.ErrInsufficientAuthentication
	}
	if !a.Perm.Has(PermReadable) {
		return attpkt.ErrReadNotPermitted
	}
	return nil
}

func (s *Session) truncate(v []byte) []byte {
	max := s.mtu - 1
	if max < 0 {
		max = 0
	}
	if len(v) > max {
		return v[:max]
	}
	return v
}

// Read answers an ATT Read Request.
func (s *Session) Read(handle uint16) ([]byte, error) {
	a := s.db.attr(handle)
	if a == nil {
		return nil, attpkt.ErrAttributeNotFound
	}
	if err := s.checkReadable(a); err != nil {
		return nil, err
	}
	return s.truncate(s.valueOf(a)), nil
}

// ReadBlob answers an ATT Read Blob Request.
func (s *Session) ReadBlob(handle uint16, offset uint16) ([]byte, error) {
	a := s.db.attr(handle)
	if a == nil {
		return nil, attpkt.ErrAttributeNotFound
	}
	if err := s.checkReadable(a); err != nil {
		return nil, err
	}
	v := s.valueOf(a)
	if int(offset) > len(v) {
		return nil, attpkt.ErrInvalidOffset
	}
	return s.truncate(v[offset:]), nil
}

// Write answers an ATT Write Request, including the CCCD's bit-validity
// rule.
func (s *Session) Write(handle uint16, value []byte) error {
	a := s.db.attr(handle)
	if a == nil {
		return attpkt.ErrAttributeNotFound
	}
	if a.Perm.Has(PermAuthenticationRequired) && !s.authenticated {
		return attpkt.ErrInsufficientAuthentication
	}
	if !a.Perm.Has(PermWritable) {
		return attpkt.ErrWriteNotPermitted
	}
	if a.Type.Equal(TypeClientCharConfig) {
		if len(value) != 2 {
			return attpkt.ErrInvalidPDU
		}
		if binary.LittleEndian.Uint16(value)&^0x0003 != 0 {
			return attpkt.ErrInvalidPDU
		}
	}
	s.overlay[handle] = append([]byte(nil), value...)
	return nil
}

// CCCDValue reads back the session's current CCCD bits for a
// descriptor handle (0 if unwritten or the handle is not a CCCD).
func (s *Session) CCCDValue(handle uint16) CCCD {
	a := s.db.attr(handle)
	if a == nil || !a.Type.Equal(TypeClientCharConfig) {
		return 0
	}
	v := s.valueOf(a)
	if len(v) != 2 {
		return 0
	}
	return CCCD(binary.LittleEndian.Uint16(v))
}

// FindInformation answers ATT Find Information, stopping at a UUID
// width change or the MTU packing limit.
func (s *Session) FindInformation(begin, end uint16) ([]attpkt.InfoPair, error) {
	if begin == 0 || begin > end {
		return nil, attpkt.ErrInvalidHandle
	}
	var pairs []attpkt.InfoPair
	width, used, budget := -1, 0, s.mtu-2
	for _, a := range s.db.attrs {
		if a.Handle < begin || a.Handle > end {
			continue
		}
		w := a.Type.Len()
		if width == -1 {
			width = w
		} else if w != width {
			break
		}
		if entry := 2 + width; used+entry > budget {
			break
		} else {
			used += entry
		}
		pairs = append(pairs, attpkt.InfoPair{Handle: a.Handle, UUID: a.Type})
	}
	if len(pairs) == 0 {
		return nil, attpkt.ErrAttributeNotFound
	}
	return pairs, nil
}

// FindByTypeValue answers ATT Find By Type Value.
func (s *Session) FindByTypeValue(begin, end uint16, typ16 uint16, value []byte) ([]attpkt.HandleRange, error) {
	if begin == 0 || begin > end {
		return nil, attpkt.ErrInvalidHandle
	}
	typ := bleuuid.UUID16(typ16)
	var ranges []attpkt.HandleRange
	used, budget := 0, s.mtu-1
	n := len(s.db.attrs)
	for i, a := range s.db.attrs {
		if a.Handle < begin || a.Handle > end {
			continue
		}
		if !a.Type.Equal(typ) || !bytes.Equal(s.valueOf(a), value) {
			continue
		}
		groupEnd := end
		for j := i + 1; j < n; j++ {
			b := s.db.attrs[j]
			if b.Handle > end {
				break
			}
			if b.Type.Equal(typ) {
				groupEnd = b.Handle - 1
				break
			}
		}
		if used+4 > budget {
			break
		}
		used += 4
		ranges = append(ranges, attpkt.HandleRange{StartHandle: a.Handle, EndHandle: groupEnd})
	}
	if len(ranges) == 0 {
		return nil, attpkt.ErrAttributeNotFound
	}
	return ranges, nil
}

// ReadByType answers ATT Read By Type, requiring a uniform value
// length across the returned entries.
func (s *Session) ReadByType(begin, end uint16, typ bleuuid.UUID) ([]attpkt.AttributeData, error) {
	if begin == 0 || begin > end {
		return nil, attpkt.ErrInvalidHandle
	}
	var data []attpkt.AttributeData
	valLen, used, budget := -1, 0, s.mtu-2
	for _, a := range s.db.attrs {
		if a.Handle < begin || a.Handle > end || !a.Type.Equal(typ) {
			continue
		}
		v := s.valueOf(a)
		if valLen == -1 {
			valLen = len(v)
		} else if len(v) != valLen {
			break
		}
		if entry := 2 + valLen; used+entry > budget {
			break
		} else {
			used += entry
		}
		data = append(data, attpkt.AttributeData{Handle: a.Handle, Value: v})
	}
	if len(data) == 0 {
		return nil, attpkt.ErrAttributeNotFound
	}
	return data, nil
}

// ReadByGroupType answers ATT Read By Group Type, grouping each match
// up to the handle before the next attribute of the same type; the last
// group ends at the database's last handle, or at end if that is lower.
func (s *Session) ReadByGroupType(begin, end uint16, typ bleuuid.UUID) ([]attpkt.GroupData, error) {
	if begin == 0 || begin > end {
		return nil, attpkt.ErrInvalidHandle
	}
	var data []attpkt.GroupData
	valLen, used, budget := -1, 0, s.mtu-4
	n := len(s.db.attrs)
	for i, a := range s.db.attrs {
		if a.Handle < begin || a.Handle > end || !a.Type.Equal(typ) {
			continue
		}
		v := s.valueOf(a)
		if valLen == -1 {
			valLen = len(v)
		} else if len(v) != valLen {
			break
		}
		groupEnd := end
		if last := uint16(n); last < groupEnd {
			groupEnd = last
		}
		for j := i + 1; j < n; j++ {
			b := s.db.attrs[j]
			if b.Handle > end {
				break
			}
			if b.Type.Equal(typ) {
				groupEnd = b.Handle - 1
				break
			}
		}
		if entry := 4 + valLen; used+entry > budget {
			break
		} else {
			used += entry
		}
		data = append(data, attpkt.GroupData{StartHandle: a.Handle, EndHandle: groupEnd, Value: v})
	}
	if len(data) == 0 {
		return nil, attpkt.ErrAttributeNotFound
	}
	return data, nil
}
