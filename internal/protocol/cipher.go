package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const subkeySize = 32

var subkeyInfo = []byte("sessnet payload v1")

// deriveKey stretches the session key and salt into a 256-bit subkey.
func deriveKey(key, salt []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	sub := make([]byte, subkeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, salt, subkeyInfo), sub); err != nil {
		return nil, fmt.Errorf("protocol: derive key: %w", err)
	}
	return sub, nil
}

func seal(aead cipher.AEAD, plain []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("protocol: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func open(aead cipher.AEAD, data []byte) ([]byte, error) {
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrDecrypt
	}
	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// AESGCM is AES-256-GCM with a random 96-bit nonce prepended to the ciphertext.
type AESGCM struct{}

func (AESGCM) aead(key, salt []byte) (cipher.AEAD, error) {
	sub, err := deriveKey(key, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(sub)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (c AESGCM) Encrypt(plain, key, salt []byte) ([]byte, error) {
	aead, err := c.aead(key, salt)
	if err != nil {
		return nil, err
	}
	return seal(aead, plain)
}

func (c AESGCM) Decrypt(data, key, salt []byte) ([]byte, error) {
	aead, err := c.aead(key, salt)
	if err != nil {
		return nil, err
	}
	return open(aead, data)
}

// ChaCha20Poly1305 is the IETF ChaCha20-Poly1305 AEAD with a prepended nonce.
type ChaCha20Poly1305 struct{}

func (ChaCha20Poly1305) aead(key, salt []byte) (cipher.AEAD, error) {
	sub, err := deriveKey(key, salt)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.New(sub)
}

func (c ChaCha20Poly1305) Encrypt(plain, key, salt []byte) ([]byte, error) {
	aead, err := c.aead(key, salt)
	if err != nil {
		return nil, err
	}
	return seal(aead, plain)
}

func (c ChaCha20Poly1305) Decrypt(data, key, salt []byte) ([]byte, error) {
	aead, err := c.aead(key, salt)
	if err != nil {
		return nil, err
	}
	return open(aead, data)
}
