package protocol

import (
	"sync"

	"github.com/luciancaetano/sessnet/operation"
)

// Codec serializes operation models.
type Codec interface {
	Serialize(m operation.Model) ([]byte, error)
	Deserialize(data []byte, t operation.Type) (operation.Model, error)
}

// Cipher encrypts serialized payloads.
type Cipher interface {
	Encrypt(plain, key, salt []byte) ([]byte, error)
	Decrypt(data, key, salt []byte) ([]byte, error)
}

// Registry maps codec and cipher ids to their implementations.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	codecs  map[operation.ProtocolType]Codec
	ciphers map[operation.CryptoType]Cipher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		codecs:  make(map[operation.ProtocolType]Codec),
		ciphers: make(map[operation.CryptoType]Cipher),
	}
}

// DefaultRegistry returns a registry with every built-in codec and cipher.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterCodec(operation.ProtocolSimplePack, SimplePack{})
	r.RegisterCodec(operation.ProtocolMessagePack, MessagePack{})
	r.RegisterCipher(operation.CryptoAESGCM, AESGCM{})
	r.RegisterCipher(operation.CryptoChaCha20Poly1305, ChaCha20Poly1305{})
	return r
}

// RegisterCodec installs or replaces the codec for id.
func (r *Registry) RegisterCodec(id operation.ProtocolType, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[id] = c
}

// RegisterCipher installs or replaces the cipher for id.
func (r *Registry) RegisterCipher(id operation.CryptoType, c Cipher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ciphers[id] = c
}

// Codec returns the codec registered for id.
func (r *Registry) Codec(id operation.ProtocolType) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[id]
	if !ok {
		return nil, ErrUnknownProtocol
	}
	return c, nil
}

// Cipher returns the cipher registered for id.
func (r *Registry) Cipher(id operation.CryptoType) (Cipher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ciphers[id]
	if !ok {
		return nil, ErrUnknownCrypto
	}
	return c, nil
}
