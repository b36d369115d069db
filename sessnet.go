package sessnet

import (
	"context"
	"time"

	"github.com/luciancaetano/sessnet/operation"
)

// Server defines a multi-transport session server.
//
// Example usage:
//
//	import "github.com/luciancaetano/sessnet/server"
//
//	srv := server.New(server.Options{Config: server.DefaultConfig()})
//
//	srv.RegisterEventHandler(0x10, func(ctx context.Context, ev *operation.Event,
//	    params operation.SendParameters, peer *sessnet.UserPeer, s sessnet.Session) {
//	    srv.Broadcast(ev, params)
//	})
//
//	srv.Start(ctx)
type Server interface {
	// Start binds every configured listener and begins accepting connections.
	//
	// Returns an error if the server is already running or if any listener
	// cannot bind its address.
	Start(ctx context.Context) error

	// Stop sends Disconnect{ServerShutdown} to every session, closes the
	// listeners and waits for the accept loops to exit.
	Stop(ctx context.Context) error

	// RegisterRequestHandler registers the handler for a request operation code.
	//
	// The handler runs on the session fiber. Its response is always sent back
	// with ResponseID set to the request's RequestID; a nil response or an
	// error is answered with OperationInvalid or InternalServerError.
	//
	// Example:
	//
	//	srv.RegisterRequestHandler(0x01, func(ctx context.Context, req *operation.Request,
	//	    params operation.SendParameters, peer *sessnet.UserPeer, s sessnet.Session) (*operation.Response, error) {
	//	    return &operation.Response{Parameters: req.Parameters}, nil
	//	})
	RegisterRequestHandler(operationCode uint16, handler RequestHandlerFunc) error

	// RegisterEventHandler registers the handler for an event code.
	// Events from unbound sessions never reach it.
	RegisterEventHandler(eventCode uint16, handler EventHandlerFunc) error

	// SendEvent sends ev to every live connection bound to sessionID and
	// returns one result per connection.
	SendEvent(sessionID string, ev *operation.Event, params operation.SendParameters) []operation.SendResult

	// Broadcast sends ev to every bound session and returns how many were
	// accepted by their transports.
	Broadcast(ev *operation.Event, params operation.SendParameters) int

	// SessionCount returns the number of live transport sessions.
	SessionCount() int
}

// Session is one live transport connection, bound or not.
type Session interface {
	// ConnectionID is unique for the lifetime of the process.
	ConnectionID() uint64

	// ServerSessionID is an opaque id assigned when the connection is accepted.
	ServerSessionID() string

	// SessionID is the logical session id. It is empty until the handshake succeeds.
	SessionID() string

	// TransportProtocol returns the transport that carries this session.
	TransportProtocol() operation.TransportProtocol

	// RemoteAddr returns the peer's network address, typically "IP:port".
	RemoteAddr() string

	// IsConnected reports whether the transport can still send.
	IsConnected() bool

	// SendEvent emits an event on this connection.
	SendEvent(ev *operation.Event, params operation.SendParameters) operation.SendResult

	// Disconnect closes the connection immediately. It is safe to call more than once.
	Disconnect()

	// DisconnectAfter schedules a disconnect on the session fiber. Only the
	// first call arms the timer; it returns false for every later call.
	DisconnectAfter(d time.Duration) bool
}

// RequestHandlerFunc handles a request on a bound session.
type RequestHandlerFunc = func(ctx context.Context, req *operation.Request, params operation.SendParameters, peer *UserPeer, session Session) (*operation.Response, error)

// EventHandlerFunc handles an event on a bound session.
type EventHandlerFunc = func(ctx context.Context, ev *operation.Event, params operation.SendParameters, peer *UserPeer, session Session)

// OnConnectFn is called when a transport session is accepted, before its first frame is read.
//
// Note: This function is called synchronously during connection setup.
// Avoid long-running operations that could block new connections.
type OnConnectFn = func(session Session)

// OnDisconnectFn is called once when a transport session closes.
type OnDisconnectFn = func(session Session)

// TokenPayload is the identity carried by a verified auth token.
type TokenPayload struct {
	UserID    string
	PeerType  string
	SessionID string
}

// VerifiedToken is a successfully verified auth token.
type VerifiedToken struct {
	Header  map[string]any
	Payload TokenPayload
}

// TokenVerifier verifies handshake auth tokens.
type TokenVerifier interface {
	VerifyToken(token string) (*VerifiedToken, error)
}
