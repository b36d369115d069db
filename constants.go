package sessnet

// HTTP-as-RPC headers carrying the implicit handshake.
const (
	HeaderSessionID  = "X-Session-Id"
	HeaderAuthToken  = "X-Auth-Token"
	HeaderEncryptKey = "X-Encrypt-Key"
)

// Standard error messages
const (
	// Protocol errors
	ErrInvalidMessageFormat = "invalid message format"
	ErrSessionNotBound      = "session is not bound"
	ErrUnknownOperation     = "unknown operation code"
	ErrInternalError        = "internal error"
	ErrNoResponse           = "handler returned no response"

	// Handshake errors
	ErrIdentityMismatch   = "session is bound to a different user"
	ErrMaxSessionsPerUser = "maximum sessions per user reached"
	ErrHandshakeTimeout   = "handshake timeout"
	ErrIdleTimeout        = "idle timeout"
	ErrRateLimitExceeded  = "rate limit exceeded"

	// Connection errors
	ErrConnectionClosed     = "connection is closed"
	ErrServerAlreadyRunning = "server already running"
	ErrServerShutdown       = "server shutting down"
)
