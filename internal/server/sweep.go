package server

import (
	"context"
	"time"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/operation"
)

// disconnectGrace lets the Disconnect frame reach the wire before the
// transport closes.
const disconnectGrace = 100 * time.Millisecond

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Session.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep expires sessions that never completed the handshake or stopped
// sending, and returns how many it scheduled for disconnect.
func (s *Server) sweep(now time.Time) int {
	handshakeTimeout := s.cfg.Session.HandshakeTimeout()
	idleTimeout := s.cfg.Session.IdleTimeout()

	expired := 0
	s.connections.Range(func(_, v any) bool {
		sess := v.(*session.Session)
		t := sess.Time()

		var (
			reason  operation.DisconnectReason
			message string
		)
		switch {
		case !sess.IsBound() && handshakeTimeout > 0 && now.Sub(t.Created) > handshakeTimeout:
			reason, message = operation.ReasonHandshakeTimeout, sessnet.ErrHandshakeTimeout
		case sess.IsBound() && idleTimeout > 0 && now.Sub(t.LastReceived) > idleTimeout:
			reason, message = operation.ReasonIdleTimeout, sessnet.ErrIdleTimeout
		default:
			return true
		}

		if sess.DisconnectAfter(disconnectGrace) {
			sess.Fiber().Enqueue(func() {
				if sess.SendDisconnect(reason, message) == operation.SendOk {
					s.metrics.Disconnect(reason.String())
				}
			})
			expired++
		}
		return true
	})
	return expired
}
