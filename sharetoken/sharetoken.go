// Package sharetoken implements the ShareToken record and its KEM-wrapped
// encryption envelope (§4.4). A share grants the bearer a file's content
// key without exposing the vault's identity or master key.
package sharetoken

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/cloudflare/circl/kem"
	"github.com/mattneel/zault/zaulterr"
	"github.com/mattneel/zault/zcrypto"
)

const CurrentVersion uint8 = 1

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// onDiskSize is the fixed plaintext layout length: version(1) ‖
// file_hash(32) ‖ content_key(32) ‖ content_nonce(12) ‖ expires_at_le8 ‖
// granted_by(1952) ‖ granted_at_le8.
const onDiskSize = 1 + 32 + 32 + 12 + 8 + zcrypto.DSAPublicKeySize + 8

// ShareToken is the plaintext record carried inside a share payload.
type ShareToken struct {
	Version      uint8
	FileHash     [32]byte
	ContentKey   [32]byte
	ContentNonce [12]byte
	ExpiresAt    int64
	GrantedBy    [zcrypto.DSAPublicKeySize]byte
	GrantedAt    int64
}

// encode packs the token to its fixed plaintext layout.
func (t *ShareToken) encode() []byte {
	buf := make([]byte, 0, onDiskSize)
	buf = append(buf, t.Version)
	buf = append(buf, t.FileHash[:]...)
	buf = append(buf, t.ContentKey[:]...)
	buf = append(buf, t.ContentNonce[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(t.ExpiresAt))
	buf = append(buf, t.GrantedBy[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(t.GrantedAt))
	return buf
}

// decode parses a buffer produced by encode.
func decode(buf []byte) (*ShareToken, error) {
	const op = "sharetoken.decode"
	if len(buf) != onDiskSize {
		return nil, zaulterr.New(zaulterr.InvalidArgument, op, "wrong share token length")
	}
	var t ShareToken
	pos := 0
	t.Version = buf[pos]
	pos++
	copy(t.FileHash[:], buf[pos:pos+32])
	pos += 32
	copy(t.ContentKey[:], buf[pos:pos+32])
	pos += 32
	copy(t.ContentNonce[:], buf[pos:pos+12])
	pos += 12
	t.ExpiresAt = int64(binary.LittleEndian.Uint64(buf[pos : pos+8]))
	pos += 8
	copy(t.GrantedBy[:], buf[pos:pos+zcrypto.DSAPublicKeySize])
	pos += zcrypto.DSAPublicKeySize
	t.GrantedAt = int64(binary.LittleEndian.Uint64(buf[pos : pos+8]))
	return &t, nil
}

// Encrypt produces kem_ct(1088) ‖ nonce(12) ‖ aead(token ‖ tag) for
// recipientPublicKey (§4.4).
func Encrypt(token *ShareToken, recipientPublicKey kem.PublicKey) ([]byte, error) {
	const op = "sharetoken.Encrypt"

	ct, sharedSecret, err := zcrypto.KEMEncapsulate(recipientPublicKey)
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}
	derivedKey := zcrypto.DeriveKey(sharedSecret, zcrypto.ShareTokenInfo)

	nonceBytes, err := randomBytes(zcrypto.NonceSize)
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}
	var nonce [zcrypto.NonceSize]byte
	copy(nonce[:], nonceBytes)

	sealed, err := zcrypto.AEADSeal(derivedKey, nonce, token.encode())
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}

	out := make([]byte, 0, len(ct)+zcrypto.NonceSize+len(sealed))
	out = append(out, ct...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reverses Encrypt using the vault's KEM secret key. A wrong
// recipient surfaces as AuthFailed: ML-KEM's implicit rejection yields a
// deterministic-but-wrong shared secret, which then fails to open the AEAD
// payload.
func Decrypt(shareBytes []byte, recipientSecretKey kem.PrivateKey) (*ShareToken, error) {
	const op = "sharetoken.Decrypt"

	if len(shareBytes) < zcrypto.KEMCiphertextSize+zcrypto.NonceSize {
		return nil, zaulterr.New(zaulterr.InvalidArgument, op, "share payload too short")
	}
	ct := shareBytes[:zcrypto.KEMCiphertextSize]
	var nonce [zcrypto.NonceSize]byte
	copy(nonce[:], shareBytes[zcrypto.KEMCiphertextSize:zcrypto.KEMCiphertextSize+zcrypto.NonceSize])
	sealed := shareBytes[zcrypto.KEMCiphertextSize+zcrypto.NonceSize:]

	sharedSecret, err := zcrypto.KEMDecapsulate(recipientSecretKey, ct)
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.CryptoError, op, err)
	}
	derivedKey := zcrypto.DeriveKey(sharedSecret, zcrypto.ShareTokenInfo)

	plaintext, err := zcrypto.AEADOpen(derivedKey, nonce, sealed)
	if err != nil {
		return nil, zaulterr.New(zaulterr.AuthFailed, op, "share token failed to decrypt")
	}

	token, err := decode(plaintext)
	if err != nil {
		return nil, zaulterr.Wrap(zaulterr.InvalidArgument, op, err)
	}
	return token, nil
}
