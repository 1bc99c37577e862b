package vault

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattneel/zault/zaulterr"
)

func mustOpen(t *testing.T, dir string) *Vault {
	t.Helper()
	v, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return v
}

func writeTempFile(t *testing.T, dir, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestAddGetSmallFileRoundTrip(t *testing.T) {
	vaultDir := t.TempDir()
	v := mustOpen(t, vaultDir)

	srcDir := t.TempDir()
	payload := []byte("Hello quantum world\n")
	src := writeTempFile(t, srcDir, "hello.txt", payload)

	hash, err := v.AddFile(src)
	if err != nil {
		t.Fatalf("add file: %v", err)
	}

	files, err := v.ListFiles()
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(files))
	}
	info := files[0]
	if info.Filename != "hello.txt" || info.Size != 20 || info.MimeType != "text/plain" || info.Hash != hash {
		t.Fatalf("unexpected file info: %+v", info)
	}

	outPath := filepath.Join(srcDir, "out.txt")
	if err := v.GetFile(hash, outPath); err != nil {
		t.Fatalf("get file: %v", err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-tripped bytes differ: got %q want %q", got, payload)
	}
}

func TestStoredBlocksContainNoPlaintextSubstring(t *testing.T) {
	vaultDir := t.TempDir()
	v := mustOpen(t, vaultDir)

	srcDir := t.TempDir()
	src := writeTempFile(t, srcDir, "hello.txt", []byte("Hello quantum world\n"))
	if _, err := v.AddFile(src); err != nil {
		t.Fatalf("add file: %v", err)
	}

	blocksDir := filepath.Join(vaultDir, "blocks")
	err := filepath.Walk(blocksDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		if bytes.Contains(raw, []byte("quantum")) {
			t.Fatalf("stored block %s contains plaintext substring", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk blocks: %v", err)
	}
}

func TestSignatureTamperSurfacesAsAuthFailed(t *testing.T) {
	vaultDir := t.TempDir()
	v := mustOpen(t, vaultDir)

	srcDir := t.TempDir()
	src := writeTempFile(t, srcDir, "hello.txt", []byte("Hello quantum world\n"))
	hash, err := v.AddFile(src)
	if err != nil {
		t.Fatalf("add file: %v", err)
	}

	files, err := v.ListFiles()
	if err != nil || len(files) != 1 {
		t.Fatalf("list files: %v / %d", err, len(files))
	}

	// Locate the content block (the one that is not the metadata block hash)
	// by scanning the shard directories and tampering with the one whose
	// decrypted kind we can't easily tell apart without internals, so
	// instead we tamper every non-metadata-hash block file we find.
	blocksDir := filepath.Join(vaultDir, "blocks")
	metaHex := hex.EncodeToString(hash[:])
	var contentPath string
	err = filepath.Walk(blocksDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		if filepath.Base(path) != metaHex {
			contentPath = path
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk blocks: %v", err)
	}
	if contentPath == "" {
		t.Fatalf("expected to find the content block file")
	}

	raw, err := os.ReadFile(contentPath)
	if err != nil {
		t.Fatalf("read content block: %v", err)
	}
	headerLen := 1 + 1 + 8 + 1952 + 12 + 4
	raw[headerLen] ^= 0x01
	if err := os.WriteFile(contentPath, raw, 0o644); err != nil {
		t.Fatalf("rewrite tampered block: %v", err)
	}

	var contentHash [32]byte
	copy(contentHash[:], mustDecodeHex(t, filepath.Base(contentPath)))

	if err := v.VerifyBlock(contentHash); !zaulterr.Is(err, zaulterr.AuthFailed) {
		t.Fatalf("expected AuthFailed from VerifyBlock, got %v", err)
	}

	outPath := filepath.Join(srcDir, "tampered-out.txt")
	if err := v.GetFile(hash, outPath); !zaulterr.Is(err, zaulterr.AuthFailed) {
		t.Fatalf("expected AuthFailed from GetFile, got %v", err)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file to be created after tamper detection")
	}
}

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	raw, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode hex %q: %v", s, err)
	}
	return raw
}

func TestShareAndReceiveAcrossIdentities(t *testing.T) {
	aliceDir, bobDir, charlieDir := t.TempDir(), t.TempDir(), t.TempDir()
	alice := mustOpen(t, aliceDir)
	bob := mustOpen(t, bobDir)
	charlie := mustOpen(t, charlieDir)

	srcDir := t.TempDir()
	payload := []byte("shared payload bytes")
	src := writeTempFile(t, srcDir, "payload.bin", payload)

	hash, err := alice.AddFile(src)
	if err != nil {
		t.Fatalf("alice add file: %v", err)
	}

	tok, err := alice.CreateShare(hash, bob.KEMPublicKey(), 2_000_000_000)
	if err != nil {
		t.Fatalf("create share: %v", err)
	}

	meta, err := alice.decryptMetadata(hash)
	if err != nil {
		t.Fatalf("decrypt metadata: %v", err)
	}
	exportPath := filepath.Join(srcDir, "export.bin")
	if err := alice.ExportBlocks([][32]byte{meta.ContentHash}, exportPath); err != nil {
		t.Fatalf("export blocks: %v", err)
	}
	if _, err := bob.ImportBlocks(exportPath); err != nil {
		t.Fatalf("bob import blocks: %v", err)
	}

	info, err := bob.RedeemShare(tok)
	if err != nil {
		t.Fatalf("bob redeem share: %v", err)
	}

	outPath := filepath.Join(srcDir, "bob-out.bin")
	if err := bob.GetSharedFile(info, outPath); err != nil {
		t.Fatalf("bob get shared file: %v", err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read bob output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("bob's recovered bytes differ from payload")
	}

	if _, err := charlie.RedeemShare(tok); !zaulterr.Is(err, zaulterr.AuthFailed) {
		t.Fatalf("expected charlie's redeem to fail with AuthFailed, got %v", err)
	}
}

func TestExpiredShareFailsRedeem(t *testing.T) {
	aliceDir, bobDir := t.TempDir(), t.TempDir()
	alice := mustOpen(t, aliceDir)
	bob := mustOpen(t, bobDir)

	srcDir := t.TempDir()
	src := writeTempFile(t, srcDir, "payload.bin", []byte("expiring payload"))
	hash, err := alice.AddFile(src)
	if err != nil {
		t.Fatalf("add file: %v", err)
	}

	tok, err := alice.CreateShare(hash, bob.KEMPublicKey(), 1)
	if err != nil {
		t.Fatalf("create share: %v", err)
	}

	if _, err := bob.RedeemShare(tok); !zaulterr.Is(err, zaulterr.ShareExpired) {
		t.Fatalf("expected ShareExpired, got %v", err)
	}
}

func TestVerifyBlockSucceedsForUntamperedBlock(t *testing.T) {
	vaultDir := t.TempDir()
	v := mustOpen(t, vaultDir)

	srcDir := t.TempDir()
	src := writeTempFile(t, srcDir, "a.txt", []byte("clean"))
	hash, err := v.AddFile(src)
	if err != nil {
		t.Fatalf("add file: %v", err)
	}
	if err := v.VerifyBlock(hash); err != nil {
		t.Fatalf("expected untampered metadata block to verify, got %v", err)
	}
}

func TestOpenIsDeterministicAcrossReopen(t *testing.T) {
	vaultDir := t.TempDir()
	v1 := mustOpen(t, vaultDir)
	pk1, err := v1.KEMPublicKey().MarshalBinary()
	if err != nil {
		t.Fatalf("marshal kem pk: %v", err)
	}

	v2 := mustOpen(t, vaultDir)
	pk2, err := v2.KEMPublicKey().MarshalBinary()
	if err != nil {
		t.Fatalf("marshal kem pk: %v", err)
	}

	if !bytes.Equal(pk1, pk2) {
		t.Fatalf("expected reopening an existing vault to load the same identity")
	}
}
