// Package zcrypto is a thin, named re-export of zault's five cryptographic
// primitives: SHA3-256 hashing, ChaCha20-Poly1305 AEAD, HKDF-SHA3-256 key
// derivation, ML-DSA-65 signatures, and ML-KEM-768 key encapsulation. Every
// function here fixes its parameter set; callers never choose algorithms or
// sizes.
package zcrypto

import "golang.org/x/crypto/sha3"

// SHA3_256 returns the SHA3-256 digest of data.
func SHA3_256(data []byte) [32]byte {
	var out [32]byte
	h := sha3.New256()
	_, _ = h.Write(data)
	copy(out[:], h.Sum(nil))
	return out
}
