// Package identity implements zault's dual-keypair cryptographic identity:
// generation, deterministic derivation from a seed, and fixed-layout
// persistence. Grounded on the teacher's versioned KeyStoreV1 record
// (node/keymgr.go) — a version byte followed by fixed-width fields, loaded
// with strict bounds and version checks.
package identity

import (
	"encoding/binary"
	"os"

	"github.com/mattneel/zault/zaulterr"
	"github.com/mattneel/zault/zcrypto"
)

const Version uint8 = 1

// Identity is a vault's dual-keypair cryptographic identity. DSASecretKey
// and KEMSecretKey are sensitive and must be zeroed via Zero once no longer
// needed.
type Identity struct {
	DSAPublicKey [zcrypto.DSAPublicKeySize]byte
	DSASecretKey [zcrypto.DSASecretKeySize]byte
	KEMPublicKey [zcrypto.KEMPublicKeySize]byte
	KEMSecretKey [zcrypto.KEMSecretKeySize]byte
	CreatedAt    int64
	Version      uint8
}

const onDiskSize = 1 +
	zcrypto.DSAPublicKeySize + zcrypto.DSASecretKeySize +
	zcrypto.KEMPublicKeySize + zcrypto.KEMSecretKeySize +
	8

// Generate draws both keypairs from the system CSPRNG.
func Generate(createdAt int64) (Identity, error) {
	dsa, err := zcrypto.GenerateDSA()
	if err != nil {
		return Identity{}, zaulterr.Wrap(zaulterr.CryptoError, "identity.Generate", err)
	}
	kem, err := zcrypto.GenerateKEM()
	if err != nil {
		return Identity{}, zaulterr.Wrap(zaulterr.CryptoError, "identity.Generate", err)
	}
	return packIdentity(dsa, kem, createdAt)
}

// FromSeed deterministically derives an identity from a 32-byte seed.
// ML-DSA is seeded directly; ML-KEM is seeded with seed‖SHA3-256(seed)
// expanded to the 64 bytes its internal KeyGen expects (§4.5).
func FromSeed(seed [32]byte, createdAt int64) (Identity, error) {
	dsa := zcrypto.DSAFromSeed(seed)

	digest := zcrypto.SHA3_256(seed[:])
	var kemSeed [zcrypto.KEMSeedSize]byte
	copy(kemSeed[:32], seed[:])
	copy(kemSeed[32:], digest[:])
	kem := zcrypto.KEMFromSeed(kemSeed)

	return packIdentity(dsa, kem, createdAt)
}

func packIdentity(dsa zcrypto.DSAKeyPair, kem zcrypto.KEMKeyPair, createdAt int64) (Identity, error) {
	dsaPub, err := zcrypto.DSAPublicKeyBytes(dsa.Public)
	if err != nil {
		return Identity{}, zaulterr.Wrap(zaulterr.CryptoError, "identity.packIdentity", err)
	}
	dsaSec, err := zcrypto.DSASecretKeyBytes(dsa.Secret)
	if err != nil {
		return Identity{}, zaulterr.Wrap(zaulterr.CryptoError, "identity.packIdentity", err)
	}
	kemPub, err := zcrypto.KEMPublicKeyBytes(kem.Public)
	if err != nil {
		return Identity{}, zaulterr.Wrap(zaulterr.CryptoError, "identity.packIdentity", err)
	}
	kemSec, err := zcrypto.KEMSecretKeyBytes(kem.Secret)
	if err != nil {
		return Identity{}, zaulterr.Wrap(zaulterr.CryptoError, "identity.packIdentity", err)
	}

	var id Identity
	id.Version = Version
	id.CreatedAt = createdAt
	copy(id.DSAPublicKey[:], dsaPub)
	copy(id.DSASecretKey[:], dsaSec)
	copy(id.KEMPublicKey[:], kemPub)
	copy(id.KEMSecretKey[:], kemSec)
	return id, nil
}

// Save persists the identity at path using the fixed layout:
// version(1) ‖ dsa_pk ‖ dsa_sk ‖ kem_pk ‖ kem_sk ‖ created_at_le8.
func Save(path string, id Identity) error {
	buf := make([]byte, 0, onDiskSize)
	buf = append(buf, id.Version)
	buf = append(buf, id.DSAPublicKey[:]...)
	buf = append(buf, id.DSASecretKey[:]...)
	buf = append(buf, id.KEMPublicKey[:]...)
	buf = append(buf, id.KEMSecretKey[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(id.CreatedAt))

	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return zaulterr.Wrap(zaulterr.StorageFailure, "identity.Save", err)
	}
	return nil
}

// Load reads back an identity persisted by Save. Truncation and an
// unrecognized version byte are both fatal.
func Load(path string) (Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, zaulterr.Wrap(zaulterr.NotFound, "identity.Load", err)
		}
		return Identity{}, zaulterr.Wrap(zaulterr.StorageFailure, "identity.Load", err)
	}
	if len(raw) != onDiskSize {
		return Identity{}, zaulterr.New(zaulterr.InvalidBlock, "identity.Load", "truncated identity file")
	}

	off := 0
	var id Identity
	id.Version = raw[off]
	off++
	if id.Version != Version {
		return Identity{}, zaulterr.New(zaulterr.InvalidBlock, "identity.Load", "unsupported identity version")
	}
	copy(id.DSAPublicKey[:], raw[off:off+zcrypto.DSAPublicKeySize])
	off += zcrypto.DSAPublicKeySize
	copy(id.DSASecretKey[:], raw[off:off+zcrypto.DSASecretKeySize])
	off += zcrypto.DSASecretKeySize
	copy(id.KEMPublicKey[:], raw[off:off+zcrypto.KEMPublicKeySize])
	off += zcrypto.KEMPublicKeySize
	copy(id.KEMSecretKey[:], raw[off:off+zcrypto.KEMSecretKeySize])
	off += zcrypto.KEMSecretKeySize
	id.CreatedAt = int64(binary.LittleEndian.Uint64(raw[off : off+8]))
	off += 8

	return id, nil
}

// Zero overwrites the identity's secret-key material. Callers must invoke
// this once the identity is no longer needed.
func (id *Identity) Zero() {
	for i := range id.DSASecretKey {
		id.DSASecretKey[i] = 0
	}
	for i := range id.KEMSecretKey {
		id.KEMSecretKey[i] = 0
	}
}
