package protocol

import (
	"encoding/binary"

	"github.com/luciancaetano/sessnet/operation"
)

// HeaderSize is the size of the unencrypted frame preamble in bytes.
const HeaderSize = 8

// Flags are the per-frame send parameters.
type Flags uint8

const (
	FlagEncrypted Flags = 0x01
	FlagSync      Flags = 0x02
)

// Has returns true if the flags contain the specified flag.
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// FlagsFor converts send parameters to header flags.
func FlagsFor(params operation.SendParameters) Flags {
	var f Flags
	if params.Encrypted {
		f |= FlagEncrypted
	}
	if params.Sync {
		f |= FlagSync
	}
	return f
}

// Header precedes every payload on the wire.
//
// Wire format (8 bytes header + variable payload):
//
//	+---------+----------+--------+-------+-----------------------+
//	| OpType  | Protocol | Crypto | Flags | Payload length        |
//	| 1 byte  | 1 byte   | 1 byte | 1 byte| 4 bytes, big-endian   |
//	+---------+----------+--------+-------+-----------------------+
//
// Crypto is CryptoNone unless FlagEncrypted is set.
type Header struct {
	Type     operation.Type
	Protocol operation.ProtocolType
	Crypto   operation.CryptoType
	Flags    Flags
}

// SendParameters returns the flags as send parameters.
func (h Header) SendParameters() operation.SendParameters {
	return operation.SendParameters{
		Encrypted: h.Flags.Has(FlagEncrypted),
		Sync:      h.Flags.Has(FlagSync),
	}
}

func (h Header) put(buf []byte, length int) {
	buf[0] = byte(h.Type)
	buf[1] = byte(h.Protocol)
	buf[2] = byte(h.Crypto)
	buf[3] = byte(h.Flags)
	binary.BigEndian.PutUint32(buf[4:HeaderSize], uint32(length))
}

// parseHeader validates the preamble and returns the declared payload length.
func parseHeader(buf []byte) (Header, int, error) {
	if len(buf) < HeaderSize {
		return Header{}, 0, &UnderflowError{What: "frame header", Size: len(buf), Minimum: HeaderSize}
	}

	h := Header{
		Type:     operation.Type(buf[0]),
		Protocol: operation.ProtocolType(buf[1]),
		Crypto:   operation.CryptoType(buf[2]),
		Flags:    Flags(buf[3]),
	}
	if !h.Type.Valid() {
		return Header{}, 0, &InvalidEnumValueError{Enum: "OperationType", Value: buf[0]}
	}
	if h.Flags&^(FlagEncrypted|FlagSync) != 0 {
		return Header{}, 0, &InvalidEnumValueError{Enum: "Flags", Value: buf[3]}
	}
	if !h.Flags.Has(FlagEncrypted) && h.Crypto != operation.CryptoNone {
		return Header{}, 0, &InvalidEnumValueError{Enum: "CryptoType", Value: buf[2]}
	}

	length := binary.BigEndian.Uint32(buf[4:HeaderSize])
	return h, int(length), nil
}
