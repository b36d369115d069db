package protocol

import (
	"errors"
	"fmt"
)

// Common decoding errors.
var (
	ErrVarintOverflow     = errors.New("protocol: varint overflow")
	ErrAllocationTooLarge = errors.New("protocol: allocation size exceeds limit")
	ErrCollectionTooLarge = errors.New("protocol: collection count exceeds limit")
	ErrTrailingBytes      = errors.New("protocol: trailing bytes after payload")
	ErrUnknownProtocol    = errors.New("protocol: unknown codec")
	ErrUnknownCrypto      = errors.New("protocol: unknown cipher")
	ErrMissingKey         = errors.New("protocol: encryption key is empty")
	ErrDecrypt            = errors.New("protocol: payload decryption failed")
	ErrNotEncrypted       = errors.New("protocol: frame is not encrypted")
	ErrEncrypted          = errors.New("protocol: frame is encrypted")
)

// UnderflowError is returned when a buffer ends before a complete frame.
type UnderflowError struct {
	What    string
	Size    int
	Minimum int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("protocol: %s underflowed, provided %d bytes, needed at least %d", e.What, e.Size, e.Minimum)
}

// InvalidEnumValueError is returned when a header byte is outside its enumeration.
type InvalidEnumValueError struct {
	Enum  string
	Value uint8
}

func (e *InvalidEnumValueError) Error() string {
	return fmt.Sprintf("protocol: invalid enum value=%d (enum: %s)", e.Value, e.Enum)
}

// FrameTooLargeError is returned when a payload exceeds the framer's limit.
type FrameTooLargeError struct {
	Size  int
	Limit int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("protocol: payload size %d exceeds maximum %d bytes", e.Size, e.Limit)
}
