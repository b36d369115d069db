package transport

import (
	"bytes"
	"sync"

	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/operation"
)

// Buffered collects frames in memory. The HTTP-as-RPC handler uses it to
// gather the frames written while one POST is processed.
type Buffered struct {
	proto      operation.TransportProtocol
	remoteAddr string
	limit      int

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

// NewBuffered creates a buffered transport. A positive limit bounds how many
// frames SendAsync accepts.
func NewBuffered(proto operation.TransportProtocol, remoteAddr string, limit int) *Buffered {
	return &Buffered{proto: proto, remoteAddr: remoteAddr, limit: limit}
}

func (b *Buffered) Protocol() operation.TransportProtocol {
	return b.proto
}

func (b *Buffered) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

func (b *Buffered) Send(frame []byte) error {
	return b.append(frame, false)
}

func (b *Buffered) SendAsync(frame []byte) error {
	return b.append(frame, true)
}

func (b *Buffered) append(frame []byte, bounded bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return session.ErrNotConnected
	}
	if bounded && b.limit > 0 && len(b.frames) >= b.limit {
		return session.ErrSendBufferFull
	}
	b.frames = append(b.frames, append([]byte(nil), frame...))
	return nil
}

func (b *Buffered) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Buffered) RemoteAddr() string {
	return b.remoteAddr
}

// Frames returns the frames written so far.
func (b *Buffered) Frames() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.frames...)
}

// Bytes returns every frame written so far, concatenated.
func (b *Buffered) Bytes() []byte {
	return bytes.Join(b.Frames(), nil)
}
