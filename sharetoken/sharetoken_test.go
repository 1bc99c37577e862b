package sharetoken

import (
	"bytes"
	"testing"

	"github.com/mattneel/zault/zcrypto"
)

func TestEncryptUsesARandomNonceEachCall(t *testing.T) {
	recipient, err := zcrypto.GenerateKEM()
	if err != nil {
		t.Fatalf("generate kem: %v", err)
	}
	token := &ShareToken{Version: CurrentVersion}

	sealed1, err := Encrypt(token, recipient.Public)
	if err != nil {
		t.Fatalf("encrypt 1: %v", err)
	}
	sealed2, err := Encrypt(token, recipient.Public)
	if err != nil {
		t.Fatalf("encrypt 2: %v", err)
	}

	nonce1 := sealed1[zcrypto.KEMCiphertextSize : zcrypto.KEMCiphertextSize+zcrypto.NonceSize]
	nonce2 := sealed2[zcrypto.KEMCiphertextSize : zcrypto.KEMCiphertextSize+zcrypto.NonceSize]
	if bytes.Equal(nonce1, nonce2) {
		t.Fatalf("expected Encrypt to draw a fresh random nonce each call, got identical nonces %x", nonce1)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	recipient, err := zcrypto.GenerateKEM()
	if err != nil {
		t.Fatalf("generate kem: %v", err)
	}
	sender, err := zcrypto.GenerateDSA()
	if err != nil {
		t.Fatalf("generate dsa: %v", err)
	}
	senderPK, err := zcrypto.DSAPublicKeyBytes(sender.Public)
	if err != nil {
		t.Fatalf("pack sender public key: %v", err)
	}

	token := &ShareToken{
		Version:   CurrentVersion,
		ExpiresAt: 2_000_000_000,
		GrantedAt: 0,
	}
	token.FileHash[0] = 0xAB
	token.ContentKey[0] = 0xCD
	token.ContentNonce[0] = 0xEF
	copy(token.GrantedBy[:], senderPK)

	sealed, err := Encrypt(token, recipient.Public)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := Decrypt(sealed, recipient.Secret)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got.FileHash != token.FileHash || got.ContentKey != token.ContentKey || got.ContentNonce != token.ContentNonce {
		t.Fatalf("round-trip field mismatch")
	}
	if got.ExpiresAt != token.ExpiresAt || got.GrantedBy != token.GrantedBy {
		t.Fatalf("round-trip field mismatch (expiry/granted_by)")
	}
}

func TestDecryptWithWrongRecipientFails(t *testing.T) {
	recipient, err := zcrypto.GenerateKEM()
	if err != nil {
		t.Fatalf("generate kem: %v", err)
	}
	stranger, err := zcrypto.GenerateKEM()
	if err != nil {
		t.Fatalf("generate kem: %v", err)
	}

	token := &ShareToken{Version: CurrentVersion, ExpiresAt: 0}
	sealed, err := Encrypt(token, recipient.Public)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(sealed, stranger.Secret); err == nil {
		t.Fatalf("expected decrypt with wrong recipient to fail")
	}
}

func TestDecryptRejectsTruncatedPayload(t *testing.T) {
	recipient, err := zcrypto.GenerateKEM()
	if err != nil {
		t.Fatalf("generate kem: %v", err)
	}
	token := &ShareToken{Version: CurrentVersion}
	sealed, err := Encrypt(token, recipient.Public)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(sealed[:zcrypto.KEMCiphertextSize+5], recipient.Secret); err == nil {
		t.Fatalf("expected truncated payload to fail")
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	recipient, err := zcrypto.GenerateKEM()
	if err != nil {
		t.Fatalf("generate kem: %v", err)
	}
	token := &ShareToken{Version: CurrentVersion}
	sealed, err := Encrypt(token, recipient.Public)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	sealed[len(sealed)-1] ^= 0x01
	if _, err := Decrypt(sealed, recipient.Secret); err == nil {
		t.Fatalf("expected tampered payload to fail AEAD open")
	}
}
