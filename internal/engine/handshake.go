package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/directory"
	"github.com/luciancaetano/sessnet/internal/protocol"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/operation"
)

// ErrEmptySessionID is returned when an implicit bind carries no session id.
var ErrEmptySessionID = errors.New("engine: empty session id")

// handleHandshake binds an unbound session to a logical session id.
//
// A bound session ignores further handshakes. A disabled transport family is
// refused first. An identity that conflicts with the peer already recorded
// for the session id is rejected before any older session is evicted, so it
// can never displace the rightful owner.
func (e *Engine) handleHandshake(ctx context.Context, s *session.Session, _ protocol.Header, m operation.Model) {
	hs := m.(*operation.Handshake)
	log := s.Logger().With(zap.String("sessionId", hs.SessionID))

	if s.IsBound() || hs.SessionID == "" {
		log.Debug("handshake ignored", zap.Bool("bound", s.IsBound()))
		e.metrics.Handshake("ignored")
		return
	}

	_, span := e.tracer.Start(ctx, "sessnet.handshake", trace.WithAttributes(
		attribute.String("sessnet.session_id", hs.SessionID),
		attribute.String("sessnet.transport", s.TransportProtocol().String()),
	))
	defer span.End()

	family := s.TransportProtocol().Family()
	limit := e.limitFor(family)
	if limit <= 0 {
		log.Warn("transport family disabled", zap.Stringer("family", family))
		e.rejectHandshake(s, span, "limit", operation.ReasonMaxSessionPerUser, sessnet.ErrMaxSessionsPerUser)
		return
	}

	candidate := e.resolvePeer(hs.SessionID, hs.AuthToken, log)
	if existing, ok := e.peers.Get(hs.SessionID); ok && directory.Conflicts(existing, candidate) {
		log.Warn("handshake identity does not match the bound peer",
			zap.String("userId", candidate.UserID),
			zap.String("boundUserId", existing.UserID),
			zap.Bool("authenticated", candidate.IsAuthenticated),
		)
		e.rejectHandshake(s, span, "identity_conflict", operation.ReasonInvalidOperationHandshake, sessnet.ErrIdentityMismatch)
		return
	}

	if !s.Bind(hs.SessionID, hs.EncryptKey) {
		e.metrics.Handshake("ignored")
		return
	}

	peer, err := e.peers.Commit(hs.SessionID, candidate)
	if err != nil {
		log.Warn("handshake lost an identity race", zap.Error(err))
		e.rejectHandshake(s, span, "identity_conflict", operation.ReasonInvalidOperationHandshake, sessnet.ErrIdentityMismatch)
		return
	}
	if !s.Attach() {
		// Closed while handshaking; Detach already ran without our pin.
		e.peers.Release(hs.SessionID)
		e.metrics.Handshake("closed")
		return
	}

	evicted, _ := e.sessions.Register(hs.SessionID, s, limit)
	if !s.IsConnected() {
		// Detach may have run before Register added the entry.
		e.sessions.Remove(hs.SessionID, s)
	}
	// The new pin is held, so releasing the evicted sessions never orphans the peer.
	for _, old := range evicted {
		old.Logger().Info("evicted by a newer session", zap.Uint64("newConnectionId", s.ConnectionID()))
		e.Disconnect(old, operation.ReasonMaxSessionPerUser, sessnet.ErrMaxSessionsPerUser)
	}

	s.TouchHandshaked()
	e.metrics.Handshake("bound")
	span.SetAttributes(attribute.Bool("sessnet.authenticated", peer.IsAuthenticated))
	log.Info("session bound",
		zap.String("userId", peer.UserID),
		zap.Bool("authenticated", peer.IsAuthenticated),
		zap.Int("evicted", len(evicted)),
	)

	ack := &operation.HandshakeAck{ConnectionID: s.ConnectionID(), ServerSessionID: s.ServerSessionID()}
	if result := e.emitter.Send(s, ack, operation.SendParameters{}); result != operation.SendOk {
		log.Debug("handshake ack not sent", zap.Stringer("result", result))
	}
}

// Detach removes a closing session from the directories and releases its
// identity pin. It is safe to call more than once.
func (e *Engine) Detach(s *session.Session) {
	if !s.Detach() {
		return
	}
	id := s.SessionID()
	if e.sessions != nil {
		e.sessions.Remove(id, s)
	}
	if e.peers != nil {
		e.peers.Release(id)
	}
}

func (e *Engine) rejectHandshake(s *session.Session, span trace.Span, outcome string, reason operation.DisconnectReason, message string) {
	e.metrics.Handshake(outcome)
	span.SetStatus(codes.Error, message)
	e.Disconnect(s, reason, message)
}

// BindImplicit binds a session that carries its identity out of band, as an
// HTTP-RPC call does in its headers. No acknowledgement is sent and no
// session cap applies. The caller must Detach s when it is done.
func (e *Engine) BindImplicit(s *session.Session, sessionID string, key []byte, token string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	log := s.Logger().With(zap.String("sessionId", sessionID))

	candidate := e.resolvePeer(sessionID, token, log)
	if _, err := e.peers.Commit(sessionID, candidate); err != nil {
		e.metrics.Handshake("identity_conflict")
		return err
	}
	s.Bind(sessionID, key)
	if !s.Attach() {
		e.peers.Release(sessionID)
		return errors.New(sessnet.ErrConnectionClosed)
	}
	s.TouchHandshaked()
	e.metrics.Handshake("implicit")
	return nil
}

// resolvePeer turns an auth token into a peer. A missing, invalid or
// mismatched token yields the anonymous peer of sessionID.
func (e *Engine) resolvePeer(sessionID, token string, log *zap.Logger) *sessnet.UserPeer {
	if token == "" || e.verifier == nil {
		return sessnet.NewAnonymousPeer(sessionID)
	}
	verified, err := e.verifier.VerifyToken(token)
	if err != nil {
		log.Warn("auth token rejected", zap.Error(err))
		return sessnet.NewAnonymousPeer(sessionID)
	}
	if verified.Payload.SessionID != "" && verified.Payload.SessionID != sessionID {
		log.Warn("auth token was issued for another session", zap.String("tokenSessionId", verified.Payload.SessionID))
		return sessnet.NewAnonymousPeer(sessionID)
	}
	return sessnet.NewUserPeer(verified.Payload.UserID, sessionID, verified.Payload.PeerType)
}
