package zcrypto

import (
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// ML-DSA-65 fixed sizes (FIPS 204).
const (
	DSAPublicKeySize = 1952
	DSASecretKeySize = 4032
	DSASignatureSize = 3309
	DSASeedSize      = 32
)

func dsaScheme() sign.Scheme { return mldsa65.Scheme() }

// DSAKeyPair is an ML-DSA-65 keypair.
type DSAKeyPair struct {
	Public sign.PublicKey
	Secret sign.PrivateKey
}

// GenerateDSA draws a fresh ML-DSA-65 keypair from the system CSPRNG.
func GenerateDSA() (DSAKeyPair, error) {
	pk, sk, err := dsaScheme().GenerateKey()
	if err != nil {
		return DSAKeyPair{}, fmt.Errorf("zcrypto: dsa generate: %w", err)
	}
	return DSAKeyPair{Public: pk, Secret: sk}, nil
}

// DSAFromSeed deterministically derives an ML-DSA-65 keypair from a 32-byte
// seed.
func DSAFromSeed(seed [DSASeedSize]byte) DSAKeyPair {
	pk, sk := dsaScheme().DeriveKey(seed[:])
	return DSAKeyPair{Public: pk, Secret: sk}
}

// DSAPublicKeyBytes packs a public key to its fixed-size wire form.
func DSAPublicKeyBytes(pk sign.PublicKey) ([]byte, error) {
	return pk.MarshalBinary()
}

// DSASecretKeyBytes packs a secret key to its fixed-size wire form.
func DSASecretKeyBytes(sk sign.PrivateKey) ([]byte, error) {
	return sk.MarshalBinary()
}

// ParseDSAPublicKey unpacks a DSAPublicKeySize-byte buffer.
func ParseDSAPublicKey(buf []byte) (sign.PublicKey, error) {
	if len(buf) != DSAPublicKeySize {
		return nil, fmt.Errorf("zcrypto: invalid dsa public key length %d", len(buf))
	}
	pk, err := dsaScheme().UnmarshalBinaryPublicKey(buf)
	if err != nil {
		return nil, fmt.Errorf("zcrypto: parse dsa public key: %w", err)
	}
	return pk, nil
}

// ParseDSASecretKey unpacks a DSASecretKeySize-byte buffer.
func ParseDSASecretKey(buf []byte) (sign.PrivateKey, error) {
	if len(buf) != DSASecretKeySize {
		return nil, fmt.Errorf("zcrypto: invalid dsa secret key length %d", len(buf))
	}
	sk, err := dsaScheme().UnmarshalBinaryPrivateKey(buf)
	if err != nil {
		return nil, fmt.Errorf("zcrypto: parse dsa secret key: %w", err)
	}
	return sk, nil
}

// SignDSA produces a deterministic ML-DSA-65 signature over msg. Zault
// never uses the randomized (hedged) signing variant: reproducible
// signatures are required for the conformance fixtures in §8.
func SignDSA(sk sign.PrivateKey, msg []byte) []byte {
	return dsaScheme().Sign(sk, msg, nil)
}

// VerifyDSA checks an ML-DSA-65 signature over msg against pk.
func VerifyDSA(pk sign.PublicKey, msg, sig []byte) bool {
	return dsaScheme().Verify(pk, msg, sig, nil)
}
