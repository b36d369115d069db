package operation

// TransportProtocol names the physical transport behind a session.
type TransportProtocol uint8

const (
	TransportTcp TransportProtocol = iota + 1
	TransportSsl
	TransportWs
	TransportWss
	TransportUdp
	TransportHttp
)

func (p TransportProtocol) String() string {
	switch p {
	case TransportTcp:
		return "tcp"
	case TransportSsl:
		return "ssl"
	case TransportWs:
		return "ws"
	case TransportWss:
		return "wss"
	case TransportUdp:
		return "udp"
	case TransportHttp:
		return "http"
	default:
		return "unknown"
	}
}

// Family groups transports that share a per-user session cap.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyTCP
	FamilyWebSocket
	FamilyUDP
	FamilyHTTP
)

// Family folds TLS into TCP and WSS into WS.
func (p TransportProtocol) Family() Family {
	switch p {
	case TransportTcp, TransportSsl:
		return FamilyTCP
	case TransportWs, TransportWss:
		return FamilyWebSocket
	case TransportUdp:
		return FamilyUDP
	case TransportHttp:
		return FamilyHTTP
	default:
		return FamilyUnknown
	}
}

func (f Family) String() string {
	switch f {
	case FamilyTCP:
		return "tcp"
	case FamilyWebSocket:
		return "websocket"
	case FamilyUDP:
		return "udp"
	case FamilyHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// ProtocolType identifies the codec used for a frame payload.
type ProtocolType uint8

const (
	ProtocolSimplePack  ProtocolType = 1
	ProtocolMessagePack ProtocolType = 2
)

func (p ProtocolType) String() string {
	switch p {
	case ProtocolSimplePack:
		return "simplepack"
	case ProtocolMessagePack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// CryptoType identifies the cipher used for an encrypted payload.
type CryptoType uint8

const (
	CryptoNone             CryptoType = 0
	CryptoAESGCM           CryptoType = 1
	CryptoChaCha20Poly1305 CryptoType = 2
)

func (c CryptoType) String() string {
	switch c {
	case CryptoNone:
		return "none"
	case CryptoAESGCM:
		return "aes-gcm"
	case CryptoChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}
