package protocol

import (
	"fmt"
	"sort"

	"github.com/luciancaetano/sessnet/operation"
)

// SimplePack is a compact varint codec. Field order is fixed per variant and
// parameters are written in ascending key order.
type SimplePack struct{}

// Serialize encodes m.
func (SimplePack) Serialize(m operation.Model) ([]byte, error) {
	e := NewEncoder()

	switch v := m.(type) {
	case *operation.Request:
		e.WriteUint16(v.OperationCode)
		e.WriteUvarint(uint64(v.RequestID))
		writeParameters(e, v.Parameters)
	case *operation.Response:
		e.WriteUint16(v.OperationCode)
		e.WriteUvarint(uint64(v.ResponseID))
		e.WriteSvarint(int64(v.ReturnCode))
		e.WriteString(v.DebugMessage)
		writeParameters(e, v.Parameters)
	case *operation.Event:
		e.WriteUint16(v.EventCode)
		writeParameters(e, v.Parameters)
	case *operation.Ping, *operation.Pong:
	case *operation.Handshake:
		e.WriteString(v.SessionID)
		e.WriteLenBytes(v.EncryptKey)
		e.WriteString(v.AuthToken)
	case *operation.HandshakeAck:
		e.WriteUvarint(v.ConnectionID)
		e.WriteString(v.ServerSessionID)
	case *operation.Disconnect:
		e.WriteByte(byte(v.Reason))
		e.WriteString(v.Message)
	default:
		return nil, fmt.Errorf("simplepack: unsupported model %T", m)
	}

	return e.Bytes(), nil
}

// Deserialize decodes data as an operation of type t. The whole buffer must
// be consumed.
func (SimplePack) Deserialize(data []byte, t operation.Type) (operation.Model, error) {
	d := NewDecoder(data)

	m, err := readModel(d, t)
	if err != nil {
		return nil, fmt.Errorf("simplepack: %s: %w", t, err)
	}
	if !d.EOF() {
		return nil, fmt.Errorf("simplepack: %s: %w", t, ErrTrailingBytes)
	}
	return m, nil
}

func readModel(d *Decoder, t operation.Type) (operation.Model, error) {
	var err error

	switch t {
	case operation.TypeRequest:
		v := &operation.Request{}
		if v.OperationCode, err = d.ReadUint16(); err != nil {
			return nil, err
		}
		if v.RequestID, err = readUint32(d); err != nil {
			return nil, err
		}
		if v.Parameters, err = readParameters(d); err != nil {
			return nil, err
		}
		return v, nil

	case operation.TypeResponse:
		v := &operation.Response{}
		if v.OperationCode, err = d.ReadUint16(); err != nil {
			return nil, err
		}
		if v.ResponseID, err = readUint32(d); err != nil {
			return nil, err
		}
		code, err := d.ReadSvarint()
		if err != nil {
			return nil, err
		}
		if code < -1<<15 || code > 1<<15-1 {
			return nil, ErrVarintOverflow
		}
		v.ReturnCode = operation.ReturnCode(code)
		if v.DebugMessage, err = d.ReadString(); err != nil {
			return nil, err
		}
		if v.Parameters, err = readParameters(d); err != nil {
			return nil, err
		}
		return v, nil

	case operation.TypeEvent:
		v := &operation.Event{}
		if v.EventCode, err = d.ReadUint16(); err != nil {
			return nil, err
		}
		if v.Parameters, err = readParameters(d); err != nil {
			return nil, err
		}
		return v, nil

	case operation.TypePing:
		return &operation.Ping{}, nil

	case operation.TypePong:
		return &operation.Pong{}, nil

	case operation.TypeHandshake:
		v := &operation.Handshake{}
		if v.SessionID, err = d.ReadString(); err != nil {
			return nil, err
		}
		if v.EncryptKey, err = d.ReadLenBytes(); err != nil {
			return nil, err
		}
		if v.AuthToken, err = d.ReadString(); err != nil {
			return nil, err
		}
		return v, nil

	case operation.TypeHandshakeAck:
		v := &operation.HandshakeAck{}
		if v.ConnectionID, err = d.ReadUvarint(); err != nil {
			return nil, err
		}
		if v.ServerSessionID, err = d.ReadString(); err != nil {
			return nil, err
		}
		return v, nil

	case operation.TypeDisconnect:
		v := &operation.Disconnect{}
		reason, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		v.Reason = operation.DisconnectReason(reason)
		if v.Message, err = d.ReadString(); err != nil {
			return nil, err
		}
		return v, nil
	}

	return nil, &InvalidEnumValueError{Enum: "OperationType", Value: uint8(t)}
}

func readUint32(d *Decoder) (uint32, error) {
	v, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if v > 1<<32-1 {
		return 0, ErrVarintOverflow
	}
	return uint32(v), nil
}

func writeParameters(e *Encoder, params operation.Parameters) {
	e.WriteUvarint(uint64(len(params)))
	if len(params) == 0 {
		return
	}

	keys := make([]int, 0, len(params))
	for k := range params {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	for _, k := range keys {
		e.WriteByte(byte(k))
		e.WriteLenBytes(params[byte(k)])
	}
}

func readParameters(d *Decoder) (operation.Parameters, error) {
	count, err := d.ReadCollectionCount()
	if err != nil || count == 0 {
		return nil, err
	}

	params := make(operation.Parameters, count)
	for i := 0; i < count; i++ {
		key, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		value, err := d.ReadLenBytes()
		if err != nil {
			return nil, err
		}
		params[key] = value
	}
	return params, nil
}
