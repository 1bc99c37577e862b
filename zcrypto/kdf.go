package zcrypto

import (
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Protocol-fixed HKDF info labels. Both are part of the wire protocol and
// must never change without a version bump.
const (
	MasterKeyInfo  = "zault-vault-master-key-v1"
	ShareTokenInfo = "zault-share-token-v1"
)

// DeriveKey runs HKDF-SHA3-256 (empty salt) over ikm with the given info
// label and returns a 32-byte key.
func DeriveKey(ikm []byte, info string) [32]byte {
	var out [32]byte
	r := hkdf.New(sha3.New256, ikm, nil, []byte(info))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		// HKDF-Expand only fails when the requested length exceeds
		// 255*hash-size; 32 bytes never does.
		panic("zcrypto: hkdf expand failed: " + err.Error())
	}
	return out
}
