// Package operation defines the typed messages exchanged over a session:
// requests, responses, events, liveness checks, the handshake pair and
// disconnect notices.
package operation

// Type identifies the operation variant carried by a frame.
type Type uint8

const (
	TypeRequest      Type = 0x01
	TypeResponse     Type = 0x02
	TypeEvent        Type = 0x03
	TypePing         Type = 0x04
	TypePong         Type = 0x05
	TypeHandshake    Type = 0x06
	TypeHandshakeAck Type = 0x07
	TypeDisconnect   Type = 0x08
)

// Valid reports whether t is a known operation type.
func (t Type) Valid() bool {
	return t >= TypeRequest && t <= TypeDisconnect
}

// String returns the string representation of the operation type.
func (t Type) String() string {
	switch t {
	case TypeRequest:
		return "Request"
	case TypeResponse:
		return "Response"
	case TypeEvent:
		return "Event"
	case TypePing:
		return "Ping"
	case TypePong:
		return "Pong"
	case TypeHandshake:
		return "Handshake"
	case TypeHandshakeAck:
		return "HandshakeAck"
	case TypeDisconnect:
		return "Disconnect"
	default:
		return "Unknown"
	}
}

// Model is implemented by every operation variant.
type Model interface {
	OperationType() Type
}

// Parameters is the keyed payload of requests, responses and events.
type Parameters map[byte][]byte

// Request asks the server to run the handler registered for OperationCode.
type Request struct {
	OperationCode uint16     `msgpack:"c"`
	RequestID     uint32     `msgpack:"i"`
	Parameters    Parameters `msgpack:"p"`
}

// Response answers exactly one Request; ResponseID echoes its RequestID.
type Response struct {
	OperationCode uint16     `msgpack:"c"`
	ResponseID    uint32     `msgpack:"i"`
	ReturnCode    ReturnCode `msgpack:"r"`
	DebugMessage  string     `msgpack:"d"`
	Parameters    Parameters `msgpack:"p"`
}

// Event is a fire-and-forget notification in either direction.
type Event struct {
	EventCode  uint16     `msgpack:"c"`
	Parameters Parameters `msgpack:"p"`
}

// Ping is a liveness check. It is answered even before the handshake.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

// Handshake binds a connection to a logical session.
type Handshake struct {
	SessionID  string `msgpack:"s"`
	EncryptKey []byte `msgpack:"k"`
	AuthToken  string `msgpack:"t"`
}

// HandshakeAck confirms a successful bind.
type HandshakeAck struct {
	ConnectionID    uint64 `msgpack:"c"`
	ServerSessionID string `msgpack:"s"`
}

// Disconnect announces that the sender is about to close the connection.
type Disconnect struct {
	Reason  DisconnectReason `msgpack:"r"`
	Message string           `msgpack:"m"`
}

func (*Request) OperationType() Type      { return TypeRequest }
func (*Response) OperationType() Type     { return TypeResponse }
func (*Event) OperationType() Type        { return TypeEvent }
func (*Ping) OperationType() Type         { return TypePing }
func (*Pong) OperationType() Type         { return TypePong }
func (*Handshake) OperationType() Type    { return TypeHandshake }
func (*HandshakeAck) OperationType() Type { return TypeHandshakeAck }
func (*Disconnect) OperationType() Type   { return TypeDisconnect }

// New returns an empty model for t, or nil when t is unknown.
func New(t Type) Model {
	switch t {
	case TypeRequest:
		return &Request{}
	case TypeResponse:
		return &Response{}
	case TypeEvent:
		return &Event{}
	case TypePing:
		return &Ping{}
	case TypePong:
		return &Pong{}
	case TypeHandshake:
		return &Handshake{}
	case TypeHandshakeAck:
		return &HandshakeAck{}
	case TypeDisconnect:
		return &Disconnect{}
	default:
		return nil
	}
}
