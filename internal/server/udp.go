package server

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/internal/transport"
)

// maxDatagramSize is the largest UDP payload.
const maxDatagramSize = 64 * 1024

// serveUDP reads one frame per datagram. Every remote address gets its own
// session, created on its first datagram.
func (s *Server) serveUDP(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("udp read failed", zap.Error(err))
			continue
		}

		sess := s.udpSession(conn, addr)
		if !s.engine.Receive(sess, buf[:n]) {
			sess.Logger().Debug("udp peer dropped")
		}
	}
}

// udpSession is only called from the serveUDP goroutine.
func (s *Server) udpSession(conn *net.UDPConn, addr *net.UDPAddr) *session.Session {
	key := addr.String()
	if v, ok := s.udpPeers.Load(key); ok {
		if sess := v.(*session.Session); sess.IsConnected() {
			return sess
		}
		s.udpPeers.Delete(key)
	}

	sess := s.open(transport.NewDatagram(conn, addr, s.cfg.Session.SendQueueLength))
	s.udpPeers.Store(key, sess)
	return sess
}
