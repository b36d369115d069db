package session

import (
	"errors"

	"github.com/luciancaetano/sessnet/operation"
)

var (
	// ErrSendBufferFull is returned by SendAsync when the outbound queue is full.
	ErrSendBufferFull = errors.New("session: send buffer full")
	// ErrNotConnected is returned by writes on a closed transport.
	ErrNotConnected = errors.New("session: transport not connected")
)

// Transport is the raw connection under a session.
type Transport interface {
	Protocol() operation.TransportProtocol
	IsConnected() bool
	// Send writes a frame and blocks until it is on the wire.
	Send(frame []byte) error
	// SendAsync queues a frame without blocking.
	SendAsync(frame []byte) error
	Close() error
	RemoteAddr() string
}
