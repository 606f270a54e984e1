// Package keystore persists bonded LTKs and IRKs to a TOML file, mode
// 0600, created on first use with a fresh random local resolvable
// private address key. The on-disk shape and upsert discipline mirror
// the original btknmle-keydb store: newest record first, exactly one
// record per peer address.
package keystore

import (
	"crypto/rand"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/btknmle/btknmle/internal/btaddr"
)

type record struct {
	Address               string `toml:"address"`
	AddressType           string `toml:"address_type"`
	Value                 string `toml:"value"`
	KeyType               string `toml:"key_type,omitempty"`
	Master                bool   `toml:"master,omitempty"`
	EncryptionSize        uint8  `toml:"encryption_size,omitempty"`
	EncryptionDiversifier uint16 `toml:"encryption_diversifier,omitempty"`
	RandomNumber          string `toml:"random_number,omitempty"`
}

type fileData struct {
	KeyForResolvablePrivateAddress string    `toml:"key_for_resolvable_private_address"`
	IRKs                           []record  `toml:"irks"`
	LTKs                           []record  `toml:"ltks"`
}

// Store is a mutex-guarded TOML-backed key database. Every mutating
// method truncates and rewrites the whole file in place and fsyncs it
// before returning; the rewrite is not atomic, so a crash during it can
// leave the file truncated or partly written.
type Store struct {
	mu   sync.Mutex
	path string
	data fileData
}

// Open loads path, creating it (mode 0600) with a fresh random local
// IRK seed if it does not yet exist or is empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		localKey := make([]byte, 16)
		if _, err := rand.Read(localKey); err != nil {
			return nil, fmt.Errorf("keystore: generating local key: %w", err)
		}
		s.data = fileData{KeyForResolvablePrivateAddress: btaddr.HexEncode(localKey)}
		if err := s.dumpLocked(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("keystore: reading %s: %w", path, err)
	}

	if len(b) == 0 {
		localKey := make([]byte, 16)
		if _, err := rand.Read(localKey); err != nil {
			return nil, fmt.Errorf("keystore: generating local key: %w", err)
		}
		s.data = fileData{KeyForResolvablePrivateAddress: btaddr.HexEncode(localKey)}
		if err := s.dumpLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := toml.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("keystore: parsing %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) dumpLocked() error {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("keystore: opening %s: %w", s.path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(s.data); err != nil {
		return fmt.Errorf("keystore: encoding %s: %w", s.path, err)
	}
	return f.Sync()
}

// KeyForResolvablePrivateAddress returns the 16-byte local IRK used to
// generate this device's own resolvable private address.
func (s *Store) KeyForResolvablePrivateAddress() ([16]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [16]byte
	b, err := btaddr.HexDecode16(s.data.KeyForResolvablePrivateAddress)
	if err != nil {
		return out, fmt.Errorf("keystore: corrupt key_for_resolvable_private_address: %w", err)
	}
	out = b
	return out, nil
}

// AddIRK upserts irk by address+address-type, newest first.
func (s *Store) AddIRK(irk btaddr.IdentityResolvingKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := record{
		Address:     irk.Address.String(),
		AddressType: irk.AddressType.String(),
		Value:       btaddr.HexEncode(irk.Value[:]),
	}
	s.data.IRKs = upsert(s.data.IRKs, rec)
	return s.dumpLocked()
}

// AddLTK upserts ltk by address+address-type, newest first.
func (s *Store) AddLTK(ltk btaddr.LongTermKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := record{
		Address:               ltk.Address.String(),
		AddressType:           ltk.AddressType.String(),
		Value:                 btaddr.HexEncode(ltk.Value[:]),
		KeyType:               ltk.KeyType.String(),
		Master:                ltk.Master,
		EncryptionSize:        ltk.EncryptionSize,
		EncryptionDiversifier: ltk.EncryptionDiversifier,
		RandomNumber:          btaddr.HexEncode(ltk.RandomNumber[:]),
	}
	s.data.LTKs = upsert(s.data.LTKs, rec)
	return s.dumpLocked()
}

func upsert(recs []record, rec record) []record {
	out := make([]record, 0, len(recs)+1)
	out = append(out, rec)
	for _, r := range recs {
		if r.Address == rec.Address && r.AddressType == rec.AddressType {
			continue
		}
		out = append(out, r)
	}
	return out
}

// IterIRKs returns every stored IRK, newest first.
func (s *Store) IterIRKs() ([]btaddr.IdentityResolvingKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]btaddr.IdentityResolvingKey, 0, len(s.data.IRKs))
	for _, r := range s.data.IRKs {
		irk, err := parseIRK(r)
		if err != nil {
			return nil, err
		}
		out = append(out, irk)
	}
	return out, nil
}

// IterLTKs returns every stored LTK, newest first.
func (s *Store) IterLTKs() ([]btaddr.LongTermKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]btaddr.LongTermKey, 0, len(s.data.LTKs))
	for _, r := range s.data.LTKs {
		ltk, err := parseLTK(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ltk)
	}
	return out, nil
}

// HasAuthenticatedLTK reports whether addr is covered by a stored LTK
// of an authenticated key type, the bonded-peer check the supervisor
// performs before treating a connection as authenticated.
func (s *Store) HasAuthenticatedLTK(addr btaddr.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.data.LTKs {
		if r.Address != addr.String() {
			continue
		}
		kt, err := btaddr.ParseLongTermKeyType(r.KeyType)
		if err != nil {
			return false, err
		}
		if kt.Authenticated() {
			return true, nil
		}
	}
	return false, nil
}

func parseIRK(r record) (btaddr.IdentityResolvingKey, error) {
	var irk btaddr.IdentityResolvingKey
	addr, err := btaddr.ParseAddress(r.Address)
	if err != nil {
		return irk, err
	}
	at, err := btaddr.ParseAddressType(r.AddressType)
	if err != nil {
		return irk, err
	}
	v, err := btaddr.HexDecode16(r.Value)
	if err != nil {
		return irk, err
	}
	return btaddr.IdentityResolvingKey{Address: addr, AddressType: at, Value: v}, nil
}

func parseLTK(r record) (btaddr.LongTermKey, error) {
	var ltk btaddr.LongTermKey
	addr, err := btaddr.ParseAddress(r.Address)
	if err != nil {
		return ltk, err
	}
	at, err := btaddr.ParseAddressType(r.AddressType)
	if err != nil {
		return ltk, err
	}
	kt, err := btaddr.ParseLongTermKeyType(r.KeyType)
	if err != nil {
		return ltk, err
	}
	value, err := btaddr.HexDecode16(r.Value)
	if err != nil {
		return ltk, err
	}
	rn, err := btaddr.HexDecode8(r.RandomNumber)
	if err != nil {
		return ltk, err
	}
	return btaddr.LongTermKey{
		Address:               addr,
		AddressType:           at,
		KeyType:               kt,
		Master:                r.Master,
		EncryptionSize:        r.EncryptionSize,
		EncryptionDiversifier: r.EncryptionDiversifier,
		RandomNumber:          rn,
		Value:                 value,
	}, nil
}
