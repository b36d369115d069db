package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/directory"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/internal/transport"
	"github.com/luciancaetano/sessnet/operation"
)

// router serves the WebSocket upgrade, HTTP-as-RPC and metrics endpoints.
func (s *Server) router(secure bool) http.Handler {
	l := s.cfg.Listeners
	proto := operation.TransportWs
	if secure {
		proto = operation.TransportWss
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(l.WebSocketPath, s.handleWebSocket(proto))
	r.Post(l.RPCPath, s.handleRPC)
	if l.MetricsPath != "" {
		r.Handle(l.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// handleWebSocket upgrades the request and starts the session read loop.
func (s *Server) handleWebSocket(proto operation.TransportProtocol) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already replied.
			s.logger.Debug("websocket upgrade failed", zap.String("remoteAddr", r.RemoteAddr), zap.Error(err))
			return
		}

		tr := transport.NewWebSocket(conn, proto, r.RemoteAddr, s.cfg.Session.SendQueueLength)
		sess := s.open(tr)

		// Start reading frames from the peer
		go s.readWebSocket(sess, tr)
	}
}

func (s *Server) readWebSocket(sess *session.Session, tr *transport.WebSocket) {
	defer sess.Disconnect()

	tr.PrepareRead(int64(s.cfg.Session.MaxMessageSize))
	for {
		messageType, data, err := tr.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				sess.Logger().Debug("unexpected websocket close", zap.Error(err))
			}
			return
		}

		// Reset read deadline after successful read
		tr.ExtendRead()

		if messageType != websocket.BinaryMessage {
			sess.Logger().Debug("ignoring non-binary websocket message", zap.Int("messageType", messageType))
			continue
		}
		if !s.engine.Receive(sess, data) {
			return
		}
	}
}

// handleRPC runs one frame through an implicitly bound, throwaway session
// and answers with every frame written while it was processed.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessnet.HeaderSessionID)
	if sessionID == "" {
		http.Error(w, sessnet.ErrSessionNotBound, http.StatusBadRequest)
		return
	}

	var key []byte
	if v := r.Header.Get(sessnet.HeaderEncryptKey); v != "" {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			http.Error(w, sessnet.ErrInvalidMessageFormat, http.StatusBadRequest)
			return
		}
		key = decoded
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.cfg.Session.MaxMessageSize)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, sessnet.ErrInvalidMessageFormat, http.StatusBadRequest)
		return
	}

	h, payload, err := s.framer.DecodeFrame(body)
	if err != nil {
		s.logger.Debug("invalid rpc frame", zap.String("remoteAddr", r.RemoteAddr), zap.Error(err))
		http.Error(w, sessnet.ErrInvalidMessageFormat, http.StatusBadRequest)
		return
	}

	tr := transport.NewBuffered(operation.TransportHttp, r.RemoteAddr, 0)
	sess := session.New(session.Options{
		Transport: tr,
		Pool:      s.pool,
		Sender:    s.engine.Emitter(),
		Logger:    s.logger,
		OnClose:   s.engine.Detach,
	})
	defer sess.Disconnect()

	if err := s.engine.BindImplicit(sess, sessionID, key, r.Header.Get(sessnet.HeaderAuthToken)); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, directory.ErrIdentityConflict) {
			status = http.StatusForbidden
		}
		sess.Logger().Warn("rpc bind rejected", zap.String("sessionId", sessionID), zap.Error(err))
		http.Error(w, sessnet.ErrIdentityMismatch, status)
		return
	}

	done := make(chan struct{})
	sess.Fiber().Enqueue(func() {
		defer close(done)
		s.engine.Process(sess, h, payload)
	})
	select {
	case <-done:
	case <-r.Context().Done():
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(tr.Bytes()); err != nil {
		sess.Logger().Debug("rpc response write failed", zap.Error(err))
	}
}
