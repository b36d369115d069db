package protocol

import (
	"fmt"
	"io"

	"github.com/luciancaetano/sessnet/operation"
)

// DefaultMaxPayloadSize bounds a single payload when no limit is configured.
const DefaultMaxPayloadSize = 10 * 1024 * 1024

// Framer turns operation models into frames and back, using the codecs and
// ciphers of its registry. A Framer is safe for concurrent use.
type Framer struct {
	registry   *Registry
	salt       []byte
	maxPayload int
}

// NewFramer creates a framer. A nil registry means DefaultRegistry and a
// non-positive maxPayload means DefaultMaxPayloadSize.
func NewFramer(registry *Registry, salt []byte, maxPayload int) *Framer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadSize
	}
	return &Framer{
		registry:   registry,
		salt:       salt,
		maxPayload: maxPayload,
	}
}

// Registry returns the framer's codec and cipher registry.
func (f *Framer) Registry() *Registry {
	return f.registry
}

// Encode serializes m into a plain frame. The header's type comes from m and
// any encryption fields are cleared.
func (f *Framer) Encode(h Header, m operation.Model) ([]byte, error) {
	h.Type = m.OperationType()
	h.Crypto = operation.CryptoNone
	h.Flags &^= FlagEncrypted

	payload, err := f.serialize(h.Protocol, m)
	if err != nil {
		return nil, err
	}
	return f.frame(h, payload)
}

// EncodeEncrypted serializes m and runs the payload through the cipher
// identified by crypto, keyed by key.
func (f *Framer) EncodeEncrypted(h Header, m operation.Model, crypto operation.CryptoType, key []byte) ([]byte, error) {
	h.Type = m.OperationType()
	h.Crypto = crypto
	h.Flags |= FlagEncrypted

	c, err := f.registry.Cipher(crypto)
	if err != nil {
		return nil, err
	}
	plain, err := f.serialize(h.Protocol, m)
	if err != nil {
		return nil, err
	}
	sealed, err := c.Encrypt(plain, key, f.salt)
	if err != nil {
		return nil, fmt.Errorf("protocol: encrypt %s: %w", h.Type, err)
	}
	return f.frame(h, sealed)
}

// Write encodes m and writes the frame to w.
func (f *Framer) Write(w io.Writer, h Header, m operation.Model) error {
	data, err := f.Encode(h, m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteEncrypt encodes and encrypts m and writes the frame to w.
func (f *Framer) WriteEncrypt(w io.Writer, h Header, m operation.Model, crypto operation.CryptoType, key []byte) error {
	data, err := f.EncodeEncrypted(h, m, crypto, key)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadFrame reads one frame from a stream and returns its header and the
// still possibly encrypted payload. The payload is a fresh slice owned by
// the caller.
func (f *Framer) ReadFrame(r io.Reader) (Header, []byte, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, nil, err
	}

	h, length, err := parseHeader(buf[:])
	if err != nil {
		return Header{}, nil, err
	}
	if length > f.maxPayload {
		return Header{}, nil, &FrameTooLargeError{Size: length, Limit: f.maxPayload}
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Header{}, nil, err
		}
	}
	return h, payload, nil
}

// DecodeFrame parses a message that holds exactly one frame. The returned
// payload aliases data.
func (f *Framer) DecodeFrame(data []byte) (Header, []byte, error) {
	h, length, err := parseHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	if length > f.maxPayload {
		return Header{}, nil, &FrameTooLargeError{Size: length, Limit: f.maxPayload}
	}
	if len(data)-HeaderSize < length {
		return Header{}, nil, &UnderflowError{What: "frame payload", Size: len(data) - HeaderSize, Minimum: length}
	}
	if len(data)-HeaderSize > length {
		return Header{}, nil, ErrTrailingBytes
	}
	return h, data[HeaderSize:], nil
}

// DeserializeModel decodes a plain payload.
func (f *Framer) DeserializeModel(h Header, payload []byte) (operation.Model, error) {
	if h.Flags.Has(FlagEncrypted) {
		return nil, ErrEncrypted
	}
	return f.deserialize(h, payload)
}

// DeserializeEncryptedModel decrypts payload with key and decodes it.
func (f *Framer) DeserializeEncryptedModel(h Header, payload, key []byte) (operation.Model, error) {
	if !h.Flags.Has(FlagEncrypted) {
		return nil, ErrNotEncrypted
	}
	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	c, err := f.registry.Cipher(h.Crypto)
	if err != nil {
		return nil, err
	}
	plain, err := c.Decrypt(payload, key, f.salt)
	if err != nil {
		return nil, err
	}
	return f.deserialize(h, plain)
}

// Decode picks the plain or encrypted path from the header flags.
func (f *Framer) Decode(h Header, payload, key []byte) (operation.Model, error) {
	if h.Flags.Has(FlagEncrypted) {
		return f.DeserializeEncryptedModel(h, payload, key)
	}
	return f.DeserializeModel(h, payload)
}

func (f *Framer) serialize(id operation.ProtocolType, m operation.Model) ([]byte, error) {
	codec, err := f.registry.Codec(id)
	if err != nil {
		return nil, err
	}
	return codec.Serialize(m)
}

func (f *Framer) deserialize(h Header, payload []byte) (operation.Model, error) {
	codec, err := f.registry.Codec(h.Protocol)
	if err != nil {
		return nil, err
	}
	m, err := codec.Deserialize(payload, h.Type)
	if err != nil {
		return nil, err
	}
	if m == nil || m.OperationType() != h.Type {
		return nil, &InvalidEnumValueError{Enum: "OperationType", Value: uint8(h.Type)}
	}
	return m, nil
}

func (f *Framer) frame(h Header, payload []byte) ([]byte, error) {
	if len(payload) > f.maxPayload {
		return nil, &FrameTooLargeError{Size: len(payload), Limit: f.maxPayload}
	}
	out := make([]byte, HeaderSize+len(payload))
	h.put(out, len(payload))
	copy(out[HeaderSize:], payload)
	return out, nil
}
