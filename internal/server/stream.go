package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/transport"
	"github.com/luciancaetano/sessnet/operation"
)

// acceptStream accepts TCP or TLS connections until ln is closed.
func (s *Server) acceptStream(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", zap.Stringer("addr", ln.Addr()), zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		proto := operation.TransportTcp
		if _, ok := conn.(*tls.Conn); ok {
			proto = operation.TransportSsl
		}
		go s.serveStream(conn, proto)
	}
}

// serveStream reads length-prefixed frames until the peer goes away or
// sends something that is not a frame.
func (s *Server) serveStream(conn net.Conn, proto operation.TransportProtocol) {
	tr := transport.NewStream(conn, proto, s.cfg.Session.SendQueueLength)
	sess := s.open(tr)
	defer sess.Disconnect()

	r := bufio.NewReader(conn)
	for {
		h, payload, err := s.framer.ReadFrame(r)
		if err != nil {
			if isConnError(err) {
				return
			}
			sess.Logger().Warn("invalid frame on stream", zap.Error(err))
			s.engine.Disconnect(sess, operation.ReasonInvalidDataFormat, sessnet.ErrInvalidMessageFormat)
			return
		}
		if !s.engine.ReceiveFrame(sess, h, payload) {
			return
		}
	}
}

// isConnError reports whether err comes from the connection rather than
// from the bytes read off it.
func isConnError(err error) bool {
	var netErr net.Error
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.As(err, &netErr)
}
