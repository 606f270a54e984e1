package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btknmle/btknmle/internal/btaddr"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "db.toml")
}

func TestOpenCreatesFileWithLocalKey(t *testing.T) {
	path := tempPath(t)
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("got mode %v", info.Mode().Perm())
	}
	k1, err := s.KeyForResolvablePrivateAddress()
	if err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := s2.KeyForResolvablePrivateAddress()
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Fatalf("local key changed across reopen")
	}
}

func TestAddLTKIdempotence(t *testing.T) {
	s, err := Open(tempPath(t))
	if err != nil {
		t.Fatal(err)
	}
	addr, _ := btaddr.ParseAddress("00:11:22:33:44:55")
	k := btaddr.LongTermKey{
		Address:     addr,
		AddressType: btaddr.LeRandom,
		KeyType:     btaddr.AuthenticatedKey,
		Master:      true,
		Value:       [16]byte{1, 2, 3},
	}
	if err := s.AddLTK(k); err != nil {
		t.Fatal(err)
	}
	if err := s.AddLTK(k); err != nil {
		t.Fatal(err)
	}
	ltks, err := s.IterLTKs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ltks) != 1 {
		t.Fatalf("got %d LTKs, want 1", len(ltks))
	}
}

func TestAddIRKNewestFirst(t *testing.T) {
	s, err := Open(tempPath(t))
	if err != nil {
		t.Fatal(err)
	}
	a1, _ := btaddr.ParseAddress("00:11:22:33:44:55")
	a2, _ := btaddr.ParseAddress("55:44:33:22:11:00")
	if err := s.AddIRK(btaddr.IdentityResolvingKey{Address: a1, AddressType: btaddr.LePublic, Value: [16]byte{1}}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddIRK(btaddr.IdentityResolvingKey{Address: a2, AddressType: btaddr.LeRandom, Value: [16]byte{2}}); err != nil {
		t.Fatal(err)
	}
	irks, err := s.IterIRKs()
	if err != nil {
		t.Fatal(err)
	}
	if len(irks) != 2 || irks[0].Address != a2 {
		t.Fatalf("got %+v", irks)
	}
}

func TestHasAuthenticatedLTK(t *testing.T) {
	s, err := Open(tempPath(t))
	if err != nil {
		t.Fatal(err)
	}
	addr, _ := btaddr.ParseAddress("AA:BB:CC:DD:EE:FF")
	if err := s.AddLTK(btaddr.LongTermKey{Address: addr, AddressType: btaddr.LeRandom, KeyType: btaddr.UnauthenticatedKey}); err != nil {
		t.Fatal(err)
	}
	ok, err := s.HasAuthenticatedLTK(addr)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unauthenticated key should not satisfy the check")
	}

	if err := s.AddLTK(btaddr.LongTermKey{Address: addr, AddressType: btaddr.LeRandom, KeyType: btaddr.AuthenticatedKey}); err != nil {
		t.Fatal(err)
	}
	ok, err = s.HasAuthenticatedLTK(addr)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected authenticated key to satisfy the check")
	}
}
