// Package block implements zault's signed, content-addressed block: the
// in-memory record, its two distinct signing/hash preimages, full on-disk
// serialization, and the AEAD helpers content and metadata blocks share.
// Ported from the teacher's consensus.BlockHeader parsing style
// (consensus/block_parse.go) and its cursor-based wire codec
// (consensus/wire.go, consensus/wire_read.go), generalized from a fixed
// blockchain header to zault's variable-length signed record.
package block

import (
	"github.com/cloudflare/circl/sign"
	"github.com/mattneel/zault/zaulterr"
	"github.com/mattneel/zault/zcrypto"
)

// CurrentVersion is the only block layout version the core produces.
const CurrentVersion uint8 = 1

// MaxDataSize bounds a block's data payload (§5: "Maximum block data is
// 16 MiB").
const MaxDataSize = 16 * 1024 * 1024

// NonceSize is the AEAD nonce length carried by content/metadata blocks.
const NonceSize = zcrypto.NonceSize

// Kind discriminates block payload semantics. Only Content and Metadata are
// produced by the core; Index, Tombstone, and Share are reserved values the
// core neither produces nor interprets beyond skipping them on enumeration.
type Kind uint8

const (
	KindContent   Kind = 1
	KindMetadata  Kind = 2
	KindIndex     Kind = 3
	KindTombstone Kind = 4
	KindShare     Kind = 5
)

// Block is the smallest addressable unit of zault storage: a signed, typed,
// optionally-encrypted record with a self-describing content hash.
type Block struct {
	Version   uint8
	Kind      Kind
	Timestamp int64
	Author    [zcrypto.DSAPublicKeySize]byte
	Data      []byte
	Nonce     [NonceSize]byte
	Signature [zcrypto.DSASignatureSize]byte
	PrevHash  [32]byte
	Hash      [32]byte
}

// onDiskSize returns the serialized length of a block carrying dataLen
// bytes of payload.
func onDiskSize(dataLen int) int {
	return 1 + 1 + 8 + zcrypto.DSAPublicKeySize + NonceSize + 4 + dataLen + 32 + zcrypto.DSASignatureSize + 32
}

// New builds an unsigned block. Callers must call Sign before persisting
// it: an unsigned block has a zero Signature and Hash.
func New(kind Kind, timestamp int64, author [zcrypto.DSAPublicKeySize]byte, data []byte, nonce [NonceSize]byte, prevHash [32]byte) (*Block, error) {
	if len(data) > MaxDataSize {
		return nil, zaulterr.New(zaulterr.InvalidArgument, "block.New", "data exceeds maximum block size")
	}
	return &Block{
		Version:   CurrentVersion,
		Kind:      kind,
		Timestamp: timestamp,
		Author:    author,
		Data:      append([]byte(nil), data...),
		Nonce:     nonce,
		PrevHash:  prevHash,
	}, nil
}

// signingPreimage builds the exact byte string the signature covers (§4.3):
// version(1) ‖ kind(1) ‖ timestamp_le8 ‖ author(1952) ‖ nonce(12) ‖
// data_len_le4 ‖ data ‖ prev_hash(32). The data_len prefix is present here
// (and only here) to forbid splice attacks.
func (b *Block) signingPreimage() []byte {
	w := &writer{}
	w.writeU8(b.Version)
	w.writeU8(uint8(b.Kind))
	w.writeU64LE(uint64(b.Timestamp))
	w.writeBytes(b.Author[:])
	w.writeBytes(b.Nonce[:])
	w.writeU32LE(uint32(len(b.Data)))
	w.writeBytes(b.Data)
	w.writeBytes(b.PrevHash[:])
	return w.b
}

// hashPreimage builds the exact byte string the content hash covers (§4.3):
// version(1) ‖ kind(1) ‖ timestamp_le8 ‖ author(1952) ‖ data ‖ nonce(12) ‖
// signature(3309) ‖ prev_hash(32). Deliberately does not repeat data_len
// (the remainder of the buffer is length-determined) and, unlike the
// signing preimage, covers the signature — so the hash uniquely identifies
// a signed block.
func (b *Block) hashPreimage() []byte {
	w := &writer{}
	w.writeU8(b.Version)
	w.writeU8(uint8(b.Kind))
	w.writeU64LE(uint64(b.Timestamp))
	w.writeBytes(b.Author[:])
	w.writeBytes(b.Data)
	w.writeBytes(b.Nonce[:])
	w.writeBytes(b.Signature[:])
	w.writeBytes(b.PrevHash[:])
	return w.b
}

// Sign computes a deterministic ML-DSA-65 signature over the signing
// preimage and the resulting content hash over the hash preimage.
func (b *Block) Sign(sk sign.PrivateKey) {
	sig := zcrypto.SignDSA(sk, b.signingPreimage())
	copy(b.Signature[:], sig)
	b.Hash = zcrypto.SHA3_256(b.hashPreimage())
}

// VerifySignature reports whether Signature verifies against Author over
// the signing preimage.
func (b *Block) VerifySignature() (bool, error) {
	pk, err := zcrypto.ParseDSAPublicKey(b.Author[:])
	if err != nil {
		return false, zaulterr.Wrap(zaulterr.CryptoError, "block.VerifySignature", err)
	}
	return zcrypto.VerifyDSA(pk, b.signingPreimage(), b.Signature[:]), nil
}

// ComputeHash recomputes the content hash over the hash preimage. It does
// not consult the stored Hash field.
func (b *Block) ComputeHash() [32]byte {
	return zcrypto.SHA3_256(b.hashPreimage())
}

// Serialize produces the fixed on-disk layout (§4.3):
// version(1) ‖ kind(1) ‖ timestamp_le8 ‖ author(1952) ‖ nonce(12) ‖
// data_len_le4 ‖ data ‖ prev_hash(32) ‖ signature(3309) ‖ hash(32).
func (b *Block) Serialize() []byte {
	w := &writer{b: make([]byte, 0, onDiskSize(len(b.Data)))}
	w.writeU8(b.Version)
	w.writeU8(uint8(b.Kind))
	w.writeU64LE(uint64(b.Timestamp))
	w.writeBytes(b.Author[:])
	w.writeBytes(b.Nonce[:])
	w.writeU32LE(uint32(len(b.Data)))
	w.writeBytes(b.Data)
	w.writeBytes(b.PrevHash[:])
	w.writeBytes(b.Signature[:])
	w.writeBytes(b.Hash[:])
	return w.b
}

// Deserialize parses the on-disk layout, bounds-checking every field and
// failing with InvalidBlock on any shortfall or trailing bytes. It does not
// itself recompute or enforce the content hash: the stored Hash is not
// trusted as a security boundary by this package, since a tampered payload
// is already caught downstream by signature verification (a modified Data
// byte changes the signing preimage, so VerifySignature fails) — that is
// the check callers rely on (§8 scenario: tamper is surfaced as
// AuthFailed, not a parse error). ComputeHash is exposed for callers (e.g.
// tests, or a stricter caller) that want to confirm the stored Hash is
// still consistent with Data.
func Deserialize(buf []byte) (*Block, error) {
	c := newCursor(buf)
	var b Block

	version, err := c.readU8()
	if err != nil {
		return nil, err
	}
	b.Version = version

	kind, err := c.readU8()
	if err != nil {
		return nil, err
	}
	b.Kind = Kind(kind)

	ts, err := c.readU64LE()
	if err != nil {
		return nil, err
	}
	b.Timestamp = int64(ts)

	author, err := c.readExact(zcrypto.DSAPublicKeySize)
	if err != nil {
		return nil, err
	}
	copy(b.Author[:], author)

	nonce, err := c.readExact(NonceSize)
	if err != nil {
		return nil, err
	}
	copy(b.Nonce[:], nonce)

	dataLen, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	if dataLen > MaxDataSize {
		return nil, zaulterr.New(zaulterr.InvalidBlock, "block.Deserialize", "data length exceeds maximum")
	}
	data, err := c.readExact(int(dataLen))
	if err != nil {
		return nil, err
	}
	b.Data = append([]byte(nil), data...)

	prevHash, err := c.readExact(32)
	if err != nil {
		return nil, err
	}
	copy(b.PrevHash[:], prevHash)

	signature, err := c.readExact(zcrypto.DSASignatureSize)
	if err != nil {
		return nil, err
	}
	copy(b.Signature[:], signature)

	storedHash, err := c.readExact(32)
	if err != nil {
		return nil, err
	}
	copy(b.Hash[:], storedHash)

	if c.remaining() != 0 {
		return nil, zaulterr.New(zaulterr.InvalidBlock, "block.Deserialize", "trailing bytes after block")
	}

	return &b, nil
}
