package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func readAll(path string) ([]byte, error)  { return os.ReadFile(path) }
func writeAll(path string, b []byte) error { return os.WriteFile(path, b, 0o600) }

func seed42() [32]byte {
	var s [32]byte
	for i := range s {
		s[i] = 0x42
	}
	return s
}

func TestFromSeedDeterministicAcrossInvocations(t *testing.T) {
	a, err := FromSeed(seed42(), 0)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	b, err := FromSeed(seed42(), 0)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	if a.DSAPublicKey != b.DSAPublicKey {
		t.Fatalf("expected identical dsa public key across invocations")
	}
	if a.KEMPublicKey != b.KEMPublicKey {
		t.Fatalf("expected identical kem public key across invocations")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	id, err := FromSeed(seed42(), 1234)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "identity.bin")
	if err := Save(path, id); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != id {
		t.Fatalf("round-tripped identity does not match original")
	}
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.bin")
	id, err := FromSeed(seed42(), 0)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	if err := Save(path, id); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := readAll(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	truncatedPath := filepath.Join(t.TempDir(), "truncated.bin")
	if err := writeAll(truncatedPath, raw[:len(raw)-10]); err != nil {
		t.Fatalf("write truncated: %v", err)
	}

	if _, err := Load(truncatedPath); err == nil {
		t.Fatalf("expected truncated identity file to fail to load")
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.bin")
	id, err := FromSeed(seed42(), 0)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	if err := Save(path, id); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := readAll(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	raw[0] = 0xFF
	if err := writeAll(path, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected bad version byte to be rejected")
	}
}

func TestZeroClearsSecrets(t *testing.T) {
	id, err := FromSeed(seed42(), 0)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	id.Zero()
	if !bytes.Equal(id.DSASecretKey[:], make([]byte, len(id.DSASecretKey))) {
		t.Fatalf("expected dsa secret key to be zeroed")
	}
	if !bytes.Equal(id.KEMSecretKey[:], make([]byte, len(id.KEMSecretKey))) {
		t.Fatalf("expected kem secret key to be zeroed")
	}
}
