package transport

import (
	"net"
	"time"

	"github.com/luciancaetano/sessnet/operation"
)

// Stream is a TCP or TLS connection carrying length-prefixed frames.
type Stream struct {
	*pump
	conn  net.Conn
	proto operation.TransportProtocol
}

// NewStream wraps conn. proto should be TransportTcp or TransportSsl.
func NewStream(conn net.Conn, proto operation.TransportProtocol, queueLength int) *Stream {
	s := &Stream{conn: conn, proto: proto}
	s.pump = newPump(queueLength, s.write, nil, conn.Close)
	return s
}

func (s *Stream) write(frame []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err := s.conn.Write(frame)
	return err
}

// Conn returns the underlying connection for the read loop.
func (s *Stream) Conn() net.Conn {
	return s.conn
}

func (s *Stream) Protocol() operation.TransportProtocol {
	return s.proto
}

func (s *Stream) IsConnected() bool {
	return !s.isClosed()
}

func (s *Stream) Send(frame []byte) error {
	return s.send(frame)
}

func (s *Stream) SendAsync(frame []byte) error {
	return s.sendAsync(frame)
}

func (s *Stream) Close() error {
	return s.close()
}

func (s *Stream) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
