package operation

// ReturnCode is the status carried by a Response.
type ReturnCode int16

const (
	ReturnOk                  ReturnCode = 0
	ReturnInternalServerError ReturnCode = -1
	ReturnOperationInvalid    ReturnCode = -2
)

func (c ReturnCode) String() string {
	switch c {
	case ReturnOk:
		return "Ok"
	case ReturnInternalServerError:
		return "InternalServerError"
	case ReturnOperationInvalid:
		return "OperationInvalid"
	default:
		return "Unknown"
	}
}

// DisconnectReason explains why a Disconnect was sent.
type DisconnectReason uint8

const (
	ReasonClientDisconnect DisconnectReason = iota + 1
	ReasonServerDisconnect
	ReasonInvalidOperationHandshake
	ReasonMaxSessionPerUser
	ReasonHandshakeTimeout
	ReasonIdleTimeout
	ReasonInvalidDataFormat
	ReasonRateLimitExceeded
	ReasonServerShutdown
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonClientDisconnect:
		return "ClientDisconnect"
	case ReasonServerDisconnect:
		return "ServerDisconnect"
	case ReasonInvalidOperationHandshake:
		return "InvalidOperationHandshake"
	case ReasonMaxSessionPerUser:
		return "MaxSessionPerUser"
	case ReasonHandshakeTimeout:
		return "HandshakeTimeout"
	case ReasonIdleTimeout:
		return "IdleTimeout"
	case ReasonInvalidDataFormat:
		return "InvalidDataFormat"
	case ReasonRateLimitExceeded:
		return "RateLimitExceeded"
	case ReasonServerShutdown:
		return "ServerShutdown"
	default:
		return "Unknown"
	}
}

// SendParameters control how an operation is written.
type SendParameters struct {
	// Encrypted runs the payload through the session cipher.
	Encrypted bool
	// Sync blocks until the transport has written the frame.
	Sync bool
}

// SendResult is the outcome of an emit attempt.
type SendResult uint8

const (
	SendOk SendResult = iota
	SendSessionNull
	SendDisconnected
	SendEncryptionNotSupported
	SendMessageTooBig
	SendBufferFull
	SendSerializeFailed
)

func (r SendResult) String() string {
	switch r {
	case SendOk:
		return "Ok"
	case SendSessionNull:
		return "SessionNull"
	case SendDisconnected:
		return "Disconnected"
	case SendEncryptionNotSupported:
		return "EncryptionNotSupported"
	case SendMessageTooBig:
		return "MessageTooBig"
	case SendBufferFull:
		return "SendBufferFull"
	case SendSerializeFailed:
		return "SerializeFailed"
	default:
		return "Unknown"
	}
}
