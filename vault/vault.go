// Package vault implements zault's top-level orchestration: identity,
// master key, and block store wired together into add/get/list/verify/
// share/receive/export/import. Ported from the teacher's node package,
// which wires CryptoProvider + BlockStore + chainstate into block
// production and verification (node/blockstore.go, node/main.go) —
// generalized from a blockchain node's mining/sync loop down to a
// synchronous, single-writer object store.
package vault

import (
	"crypto/rand"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/sign"
	"github.com/mattneel/zault/block"
	"github.com/mattneel/zault/blockstore"
	"github.com/mattneel/zault/identity"
	"github.com/mattneel/zault/metadata"
	"github.com/mattneel/zault/sharetoken"
	"github.com/mattneel/zault/zaulterr"
	"github.com/mattneel/zault/zcrypto"
)

// MaxSourceFileSize bounds add_file's input (§5).
const MaxSourceFileSize = 100 * 1024 * 1024

const identityFileName = "identity.bin"

// FileInfo is one list_files entry.
type FileInfo struct {
	Hash     [32]byte
	Filename string
	Size     uint64
	MimeType string
	Created  int64
}

// ShareInfo is the result of redeeming a share token: enough to fetch and
// decrypt the referenced content block, but — per §9's open question —
// not its original filename or MIME type, since those travel only inside
// the metadata block that create_share does not export.
type ShareInfo struct {
	FileHash     [32]byte
	ContentKey   [32]byte
	ContentNonce [12]byte
	GrantedBy    [zcrypto.DSAPublicKeySize]byte
}

// Vault is a local, content-addressed encrypted object store bound to one
// cryptographic identity.
type Vault struct {
	path      string
	id        identity.Identity
	masterKey [32]byte
	store     *blockstore.BlockStore
	dsaSecret sign.PrivateKey
	kemSecret kem.PrivateKey
	kemPublic kem.PublicKey
}

// Open loads the identity at path/identity.bin, creating a fresh one if
// absent, derives the master key, and opens the block store.
func Open(path string) (*Vault, error) {
	const op = "vault.Open"

	idPath := filepath.Join(path, identityFileName)
	id, err := identity.Load(idPath)
	if err != nil {
		if !zaulterr.Is(err, zaulterr.NotFound) {
			return nil, err
		}
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			return nil, zaulterr.Wrap(zaulterr.StorageFailure, op, mkErr)
		}
		id, err = identity.Generate(0)
		if err != nil {
			return nil, err
		}
		if err := identity.Save(idPath, id); err != nil {
			return nil, err
		}
	}

	store, err := blockstore.Open(path)
	if err != nil {
		return nil, err
	}

	dsaSecret, err := zcrypto.ParseDSASecretKey(id.DSASecretKey[:])
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}
	kemSecret, err := zcrypto.ParseKEMSecretKey(id.KEMSecretKey[:])
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}
	kemPublic, err := zcrypto.ParseKEMPublicKey(id.KEMPublicKey[:])
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}

	masterKey := zcrypto.DeriveKey(id.DSASecretKey[:], zcrypto.MasterKeyInfo)

	return &Vault{
		path:      path,
		id:        id,
		masterKey: masterKey,
		store:     store,
		dsaSecret: dsaSecret,
		kemSecret: kemSecret,
		kemPublic: kemPublic,
	}, nil
}

// KEMPublicKey exposes the identity's KEM public key, needed by other
// vaults to create a share addressed to this one.
func (v *Vault) KEMPublicKey() kem.PublicKey { return v.kemPublic }

// Close zeroes the in-memory identity and master key. The vault must not
// be used afterward.
func (v *Vault) Close() error {
	v.id.Zero()
	for i := range v.masterKey {
		v.masterKey[i] = 0
	}
	return nil
}

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// AddFile reads path, splits it into a signed content block and a signed
// metadata block (§4.2), stores both, and returns the metadata block's
// hash.
func (v *Vault) AddFile(path string) ([32]byte, error) {
	const op = "vault.AddFile"

	info, err := os.Stat(path)
	if err != nil {
		return [32]byte{}, zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	if info.Size() > MaxSourceFileSize {
		return [32]byte{}, zaulterr.New(zaulterr.InvalidArgument, op, "source file exceeds maximum size")
	}
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return [32]byte{}, zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}

	contentKeyBytes, err := randomBytes(32)
	if err != nil {
		return [32]byte{}, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}
	var contentKey [32]byte
	copy(contentKey[:], contentKeyBytes)

	contentNonceBytes, err := randomBytes(zcrypto.NonceSize)
	if err != nil {
		return [32]byte{}, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}
	var contentNonce [zcrypto.NonceSize]byte
	copy(contentNonce[:], contentNonceBytes)

	sealedContent, err := zcrypto.AEADSeal(contentKey, contentNonce, plaintext)
	if err != nil {
		return [32]byte{}, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}

	contentBlock, err := block.New(block.KindContent, 0, v.id.DSAPublicKey, sealedContent, contentNonce, [32]byte{})
	if err != nil {
		return [32]byte{}, err
	}
	contentBlock.Sign(v.dsaSecret)
	if err := v.store.Put(contentBlock.Hash, contentBlock); err != nil {
		return [32]byte{}, err
	}

	meta := &metadata.FileMetadata{
		Version:      metadata.CurrentVersion,
		Filename:     filepath.Base(path),
		Size:         uint64(len(plaintext)),
		MimeType:     metadata.DetectMIME(path),
		Created:      0,
		Modified:     0,
		ContentHash:  contentBlock.Hash,
		ContentKey:   contentKey,
		ContentNonce: contentNonce,
	}
	encodedMeta := meta.Encode()

	metaNonceBytes, err := randomBytes(zcrypto.NonceSize)
	if err != nil {
		return [32]byte{}, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}
	var metaNonce [zcrypto.NonceSize]byte
	copy(metaNonce[:], metaNonceBytes)

	sealedMeta, err := zcrypto.AEADSeal(v.masterKey, metaNonce, encodedMeta)
	if err != nil {
		return [32]byte{}, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}

	metaBlock, err := block.New(block.KindMetadata, 0, v.id.DSAPublicKey, sealedMeta, metaNonce, contentBlock.Hash)
	if err != nil {
		return [32]byte{}, err
	}
	metaBlock.Sign(v.dsaSecret)
	if err := v.store.Put(metaBlock.Hash, metaBlock); err != nil {
		return [32]byte{}, err
	}

	return metaBlock.Hash, nil
}

// decryptMetadata loads and decrypts the metadata block at hash, verifying
// its signature first.
func (v *Vault) decryptMetadata(hash [32]byte) (*metadata.FileMetadata, error) {
	const op = "vault.decryptMetadata"

	b, err := v.store.Get(hash)
	if err != nil {
		return nil, err
	}
	ok, err := b.VerifySignature()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, zaulterr.New(zaulterr.AuthFailed, op, "metadata block signature verification failed")
	}
	plaintext, err := zcrypto.AEADOpen(v.masterKey, b.Nonce, b.Data)
	if err != nil {
		return nil, zaulterr.New(zaulterr.AuthFailed, op, "metadata block failed to decrypt")
	}
	meta, err := metadata.Decode(plaintext)
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.InvalidMetadata, op, err)
	}
	return meta, nil
}

// GetFile loads the metadata block at hash, follows it to its content
// block, decrypts, and writes plaintext to outPath.
func (v *Vault) GetFile(hash [32]byte, outPath string) error {
	const op = "vault.GetFile"

	meta, err := v.decryptMetadata(hash)
	if err != nil {
		return err
	}

	contentBlk, err := v.store.Get(meta.ContentHash)
	if err != nil {
		return err
	}
	ok, err := contentBlk.VerifySignature()
	if err != nil {
		return err
	}
	if !ok {
		return zaulterr.New(zaulterr.AuthFailed, op, "content block signature verification failed")
	}
	plaintext, err := zcrypto.AEADOpen(meta.ContentKey, meta.ContentNonce, contentBlk.Data)
	if err != nil {
		return zaulterr.New(zaulterr.AuthFailed, op, "content block failed to decrypt")
	}

	if err := os.WriteFile(outPath, plaintext, 0o644); err != nil {
		return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	return nil
}

// ListFiles enumerates every metadata block the master key can decrypt,
// silently skipping any block that does not parse as a metadata block or
// does not decrypt — this keeps list robust against partial vaults and
// reserved block kinds (§7).
func (v *Vault) ListFiles() ([]FileInfo, error) {
	hashes, err := v.store.Enumerate()
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	for _, h := range hashes {
		b, err := v.store.Get(h)
		if err != nil {
			continue
		}
		if b.Kind != block.KindMetadata {
			continue
		}
		ok, err := b.VerifySignature()
		if err != nil || !ok {
			continue
		}
		plaintext, err := zcrypto.AEADOpen(v.masterKey, b.Nonce, b.Data)
		if err != nil {
			continue
		}
		meta, err := metadata.Decode(plaintext)
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Hash:     h,
			Filename: meta.Filename,
			Size:     meta.Size,
			MimeType: meta.MimeType,
			Created:  meta.Created,
		})
	}
	return out, nil
}

// VerifyBlock loads the block at hash and re-verifies its signature.
func (v *Vault) VerifyBlock(hash [32]byte) error {
	const op = "vault.VerifyBlock"
	b, err := v.store.Get(hash)
	if err != nil {
		return err
	}
	ok, err := b.VerifySignature()
	if err != nil {
		return err
	}
	if !ok {
		return zaulterr.New(zaulterr.AuthFailed, op, "signature verification failed")
	}
	return nil
}

// CreateShare builds an encrypted, KEM-wrapped ShareToken granting the
// bearer decryption access to fileHash's content block.
func (v *Vault) CreateShare(fileHash [32]byte, recipientKEMPublicKey kem.PublicKey, expiresAt int64) ([]byte, error) {
	meta, err := v.decryptMetadata(fileHash)
	if err != nil {
		return nil, err
	}

	token := &sharetoken.ShareToken{
		Version:      sharetoken.CurrentVersion,
		FileHash:     meta.ContentHash,
		ContentKey:   meta.ContentKey,
		ContentNonce: meta.ContentNonce,
		ExpiresAt:    expiresAt,
		GrantedBy:    v.id.DSAPublicKey,
		GrantedAt:    0,
	}

	sealed, err := sharetoken.Encrypt(token, recipientKEMPublicKey)
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

// RedeemShare decrypts tokenBytes with this vault's KEM secret key and
// checks expiry.
func (v *Vault) RedeemShare(tokenBytes []byte) (ShareInfo, error) {
	const op = "vault.RedeemShare"

	token, err := sharetoken.Decrypt(tokenBytes, v.kemSecret)
	if err != nil {
		return ShareInfo{}, err
	}
	if token.ExpiresAt != 0 && token.ExpiresAt < time.Now().Unix() {
		return ShareInfo{}, zaulterr.New(zaulterr.ShareExpired, op, "share token has expired")
	}

	return ShareInfo{
		FileHash:     token.FileHash,
		ContentKey:   token.ContentKey,
		ContentNonce: token.ContentNonce,
		GrantedBy:    token.GrantedBy,
	}, nil
}

// GetSharedFile loads the content block referenced by info, verifies its
// signature, decrypts with info's key material, and writes the plaintext
// to outPath.
func (v *Vault) GetSharedFile(info ShareInfo, outPath string) error {
	const op = "vault.GetSharedFile"

	b, err := v.store.Get(info.FileHash)
	if err != nil {
		return err
	}
	ok, err := b.VerifySignature()
	if err != nil {
		return err
	}
	if !ok {
		return zaulterr.New(zaulterr.AuthFailed, op, "content block signature verification failed")
	}
	plaintext, err := zcrypto.AEADOpen(info.ContentKey, info.ContentNonce, b.Data)
	if err != nil {
		return zaulterr.New(zaulterr.AuthFailed, op, "content block failed to decrypt")
	}
	if err := os.WriteFile(outPath, plaintext, 0o644); err != nil {
		return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	return nil
}

// exportMagic marks a file produced by ExportBlocks. ImportBlocks
// feature-detects its presence so streams written without it remain
// importable (§6).
var exportMagic = [8]byte{'Z', 'A', 'U', 'L', 'T', 'E', 'X', '1'}

// ExportBlocks writes hashes as a self-delimited record stream: an 8-byte
// magic prefix followed by repeated u32_le length ‖ block_bytes records.
func (v *Vault) ExportBlocks(hashes [][32]byte, outPath string) error {
	const op = "vault.ExportBlocks"

	f, err := os.Create(outPath)
	if err != nil {
		return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}
	defer f.Close()

	if _, err := f.Write(exportMagic[:]); err != nil {
		return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}

	for _, h := range hashes {
		b, err := v.store.Get(h)
		if err != nil {
			return err
		}
		raw := b.Serialize()

		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(raw)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
		}
		if _, err := f.Write(raw); err != nil {
			return zaulterr.Wrap(zaulterr.StorageFailure, op, err)
		}
	}
	return nil
}

// ImportBlocks parses a record stream produced by ExportBlocks (tolerating
// both presence and absence of the magic prefix), stores every block it
// finds, and returns the hashes observed.
func (v *Vault) ImportBlocks(inPath string) ([][32]byte, error) {
	const op = "vault.ImportBlocks"

	raw, err := os.ReadFile(inPath)
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.StorageFailure, op, err)
	}

	pos := 0
	if len(raw) >= len(exportMagic) && string(raw[:len(exportMagic)]) == string(exportMagic[:]) {
		pos = len(exportMagic)
	}

	var hashes [][32]byte
	for pos < len(raw) {
		if pos+4 > len(raw) {
			return nil, zaulterr.New(zaulterr.InvalidExportFile, op, "truncated record length")
		}
		recordLen := int(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		pos += 4
		if recordLen < 0 || pos+recordLen > len(raw) {
			return nil, zaulterr.New(zaulterr.InvalidExportFile, op, "truncated record body")
		}
		blockBytes := raw[pos : pos+recordLen]
		pos += recordLen

		b, err := block.Deserialize(blockBytes)
		if err != nil {
			return nil, zaulterr.Wrap(zaulterr.InvalidExportFile, op, err)
		}
		if err := v.store.Put(b.Hash, b); err != nil {
			return nil, err
		}
		hashes = append(hashes, b.Hash)
	}
	return hashes, nil
}
