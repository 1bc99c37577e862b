package zcrypto

import (
	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the ChaCha20-Poly1305 nonce length used throughout zault.
const NonceSize = chacha20poly1305.NonceSize // 12

// TagSize is the Poly1305 authentication tag length appended to ciphertext.
const TagSize = 16

// AEADSeal encrypts plaintext under key/nonce with empty associated data,
// returning ciphertext‖tag.
func AEADSeal(key [32]byte, nonce [NonceSize]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce[:], plaintext, nil), nil
}

// AEADOpen decrypts a ciphertext‖tag buffer produced by AEADSeal. Any
// corruption of key, nonce, or sealed bytes yields a non-nil error.
func AEADOpen(key [32]byte, nonce [NonceSize]byte, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce[:], sealed, nil)
}
