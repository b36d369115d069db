package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/luciancaetano/sessnet/operation"
)

// MessagePack encodes models with their msgpack struct tags.
type MessagePack struct{}

// Serialize encodes m.
func (MessagePack) Serialize(m operation.Model) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("msgpack: nil model")
	}
	data, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("msgpack: %s: %w", m.OperationType(), err)
	}
	return data, nil
}

// Deserialize decodes data as an operation of type t.
func (MessagePack) Deserialize(data []byte, t operation.Type) (operation.Model, error) {
	m := operation.New(t)
	if m == nil {
		return nil, &InvalidEnumValueError{Enum: "OperationType", Value: uint8(t)}
	}
	if err := msgpack.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("msgpack: %s: %w", t, err)
	}
	return m, nil
}
