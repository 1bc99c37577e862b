package zcrypto

import (
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// ML-KEM-768 fixed sizes (FIPS 203).
const (
	KEMPublicKeySize  = 1184
	KEMSecretKeySize  = 2400
	KEMCiphertextSize = 1088
	KEMSharedKeySize  = 32
	KEMSeedSize       = 64 // d(32) ‖ z(32)
)

func kemScheme() kem.Scheme { return mlkem768.Scheme() }

// KEMKeyPair is an ML-KEM-768 keypair.
type KEMKeyPair struct {
	Public kem.PublicKey
	Secret kem.PrivateKey
}

// GenerateKEM draws a fresh ML-KEM-768 keypair from the system CSPRNG.
func GenerateKEM() (KEMKeyPair, error) {
	pk, sk, err := kemScheme().GenerateKeyPair()
	if err != nil {
		return KEMKeyPair{}, fmt.Errorf("zcrypto: kem generate: %w", err)
	}
	return KEMKeyPair{Public: pk, Secret: sk}, nil
}

// KEMFromSeed deterministically derives an ML-KEM-768 keypair from a
// 64-byte seed (d‖z per FIPS 203's internal KeyGen).
func KEMFromSeed(seed [KEMSeedSize]byte) KEMKeyPair {
	pk, sk := kemScheme().DeriveKeyPair(seed[:])
	return KEMKeyPair{Public: pk, Secret: sk}
}

// KEMPublicKeyBytes packs a public key to its fixed-size wire form.
func KEMPublicKeyBytes(pk kem.PublicKey) ([]byte, error) {
	return pk.MarshalBinary()
}

// KEMSecretKeyBytes packs a secret key to its fixed-size wire form.
func KEMSecretKeyBytes(sk kem.PrivateKey) ([]byte, error) {
	return sk.MarshalBinary()
}

// ParseKEMPublicKey unpacks a KEMPublicKeySize-byte buffer.
func ParseKEMPublicKey(buf []byte) (kem.PublicKey, error) {
	if len(buf) != KEMPublicKeySize {
		return nil, fmt.Errorf("zcrypto: invalid kem public key length %d", len(buf))
	}
	pk, err := kemScheme().UnmarshalBinaryPublicKey(buf)
	if err != nil {
		return nil, fmt.Errorf("zcrypto: parse kem public key: %w", err)
	}
	return pk, nil
}

// ParseKEMSecretKey unpacks a KEMSecretKeySize-byte buffer.
func ParseKEMSecretKey(buf []byte) (kem.PrivateKey, error) {
	if len(buf) != KEMSecretKeySize {
		return nil, fmt.Errorf("zcrypto: invalid kem secret key length %d", len(buf))
	}
	sk, err := kemScheme().UnmarshalBinaryPrivateKey(buf)
	if err != nil {
		return nil, fmt.Errorf("zcrypto: parse kem secret key: %w", err)
	}
	return sk, nil
}

// KEMEncapsulate generates a shared secret and its ciphertext for pk.
func KEMEncapsulate(pk kem.PublicKey) (ciphertext, sharedSecret []byte, err error) {
	ct, ss, err := kemScheme().Encapsulate(pk)
	if err != nil {
		return nil, nil, fmt.Errorf("zcrypto: kem encapsulate: %w", err)
	}
	return ct, ss, nil
}

// KEMDecapsulate recovers the shared secret from ciphertext using sk.
// Wrong-recipient decapsulation returns implicit-rejection output
// (ML-KEM's defense against decryption-failure oracles) rather than an
// error; callers detect the mismatch only once the derived key fails to
// open the accompanying AEAD payload.
func KEMDecapsulate(sk kem.PrivateKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != KEMCiphertextSize {
		return nil, fmt.Errorf("zcrypto: invalid kem ciphertext length %d", len(ciphertext))
	}
	ss, err := kemScheme().Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("zcrypto: kem decapsulate: %w", err)
	}
	return ss, nil
}
