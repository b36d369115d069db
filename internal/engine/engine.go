// Package engine decodes inbound frames and dispatches them on the session
// fiber: handshakes, requests, events and keep-alives on the server side,
// acknowledgements, responses and pushes on the client side.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/directory"
	"github.com/luciancaetano/sessnet/internal/metrics"
	"github.com/luciancaetano/sessnet/internal/protocol"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/operation"
)

// TracerName is the instrumentation name of engine spans.
const TracerName = "github.com/luciancaetano/sessnet"

// Role selects which operations an engine accepts.
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// ClientHandler receives the operations a server pushes to a client.
// Callbacks run on the session fiber.
type ClientHandler interface {
	OnHandshakeAck(s *session.Session, ack *operation.HandshakeAck)
	OnResponse(s *session.Session, resp *operation.Response)
	OnEvent(s *session.Session, ev *operation.Event, params operation.SendParameters)
	OnDisconnect(s *session.Session, d *operation.Disconnect)
	OnPong(s *session.Session)
}

// Config configures an Engine.
type Config struct {
	Role   Role
	Framer *protocol.Framer

	// Server role.
	Sessions           *directory.Sessions
	Peers              *directory.UserPeers
	Verifier           sessnet.TokenVerifier
	MaxSessionsPerUser func(operation.Family) int

	// Client role.
	Client ClientHandler

	DefaultProtocol operation.ProtocolType
	DefaultCrypto   operation.CryptoType
	MaxMessageSize  int
	Buffers         *session.BufferPool
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	Tracer          trace.Tracer
}

type handlerFunc func(ctx context.Context, s *session.Session, h protocol.Header, m operation.Model)

// Engine is safe for concurrent use. All work for one session runs on that
// session's fiber.
type Engine struct {
	role     Role
	framer   *protocol.Framer
	sessions *directory.Sessions
	peers    *directory.UserPeers
	verifier sessnet.TokenVerifier
	limitFor func(operation.Family) int
	client   ClientHandler
	buffers  *session.BufferPool
	emitter  *Emitter
	logger   *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	dispatch        map[operation.Type]handlerFunc
	requestHandlers sync.Map // map[uint16]sessnet.RequestHandlerFunc
	eventHandlers   sync.Map // map[uint16]sessnet.EventHandlerFunc
}

// New creates an engine. Server engines need Sessions and Peers, client
// engines need Client.
func New(cfg Config) *Engine {
	if cfg.Framer == nil {
		cfg.Framer = protocol.NewFramer(nil, nil, 0)
	}
	if cfg.DefaultProtocol == 0 {
		cfg.DefaultProtocol = operation.ProtocolSimplePack
	}
	if cfg.Buffers == nil {
		cfg.Buffers = session.NewBufferPool(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(TracerName)
	}
	if cfg.MaxSessionsPerUser == nil {
		cfg.MaxSessionsPerUser = func(operation.Family) int { return 1 }
	}

	e := &Engine{
		role:     cfg.Role,
		framer:   cfg.Framer,
		sessions: cfg.Sessions,
		peers:    cfg.Peers,
		verifier: cfg.Verifier,
		limitFor: cfg.MaxSessionsPerUser,
		client:   cfg.Client,
		buffers:  cfg.Buffers,
		emitter:  NewEmitter(cfg.Framer, cfg.DefaultProtocol, cfg.DefaultCrypto, cfg.MaxMessageSize, cfg.Metrics),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}

	if cfg.Role == RoleClient {
		e.dispatch = map[operation.Type]handlerFunc{
			operation.TypeHandshakeAck: e.handleHandshakeAck,
			operation.TypeResponse:     e.handleResponse,
			operation.TypeEvent:        e.handlePushedEvent,
			operation.TypeDisconnect:   e.handleDisconnect,
			operation.TypePing:         e.handlePing,
			operation.TypePong:         e.handlePong,
		}
	} else {
		e.dispatch = map[operation.Type]handlerFunc{
			operation.TypeHandshake: e.handleHandshake,
			operation.TypeRequest:   e.handleRequest,
			operation.TypeEvent:     e.handleEvent,
			operation.TypePing:      e.handlePing,
		}
	}
	return e
}

// Emitter returns the engine's emitter. It is the Sender of every session
// the engine serves.
func (e *Engine) Emitter() *Emitter {
	return e.emitter
}

func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// RegisterRequestHandler registers the handler for an operation code. A
// later registration for the same code replaces the earlier one.
func (e *Engine) RegisterRequestHandler(code uint16, handler sessnet.RequestHandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("engine: nil request handler for code %d", code)
	}
	e.requestHandlers.Store(code, handler)
	return nil
}

// RegisterEventHandler registers the handler for an event code.
func (e *Engine) RegisterEventHandler(code uint16, handler sessnet.EventHandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("engine: nil event handler for code %d", code)
	}
	e.eventHandlers.Store(code, handler)
	return nil
}

// Receive accepts one whole frame from a message transport. The data is
// copied, so the caller may reuse it. It returns false when the session was
// disconnected for exceeding its rate limit.
func (e *Engine) Receive(s *session.Session, data []byte) bool {
	if !e.admit(s) {
		return false
	}
	buf := e.buffers.Rent(data)
	s.Fiber().Enqueue(func() {
		defer e.buffers.Release(buf)
		h, payload, err := e.framer.DecodeFrame(*buf)
		if err != nil {
			e.drop(s, "frame", err)
			return
		}
		e.Process(s, h, payload)
	})
	return true
}

// ReceiveFrame accepts a frame already split by a stream reader. The payload
// must not be reused by the caller.
func (e *Engine) ReceiveFrame(s *session.Session, h protocol.Header, payload []byte) bool {
	if !e.admit(s) {
		return false
	}
	s.Fiber().Enqueue(func() {
		e.Process(s, h, payload)
	})
	return true
}

// Process decodes and dispatches one frame. It must run on the session fiber.
func (e *Engine) Process(s *session.Session, h protocol.Header, payload []byte) {
	if !s.IsConnected() {
		e.metrics.Dropped("closed")
		return
	}
	m, err := e.framer.Decode(h, payload, s.EncryptKey())
	if err != nil {
		e.drop(s, "decode", err)
		return
	}
	e.metrics.OperationReceived(h.Type.String())

	handle, ok := e.dispatch[h.Type]
	if !ok {
		s.Logger().Warn("operation not accepted in this role",
			zap.Stringer("type", h.Type),
			zap.Stringer("role", e.role),
		)
		e.metrics.Dropped("misrouted")
		return
	}
	handle(context.Background(), s, h, m)
}

// Disconnect writes a Disconnect with reason to s and closes it.
func (e *Engine) Disconnect(s *session.Session, reason operation.DisconnectReason, message string) {
	if s.SendDisconnect(reason, message) == operation.SendOk {
		e.metrics.Disconnect(reason.String())
	}
	s.Disconnect()
}

func (e *Engine) admit(s *session.Session) bool {
	if !s.AllowReceive() {
		s.Logger().Warn("rate limit exceeded")
		e.metrics.Dropped("rate_limited")
		e.Disconnect(s, operation.ReasonRateLimitExceeded, sessnet.ErrRateLimitExceeded)
		return false
	}
	s.TouchReceived()
	return true
}

func (e *Engine) drop(s *session.Session, cause string, err error) {
	s.Logger().Warn("dropping malformed frame", zap.String("cause", cause), zap.Error(err))
	e.metrics.Dropped(cause)
}

// peerFor returns the peer bound to s, or an anonymous stand-in when the
// directory entry has expired.
func (e *Engine) peerFor(s *session.Session) *sessnet.UserPeer {
	if e.peers != nil {
		if p, ok := e.peers.Get(s.SessionID()); ok {
			return p
		}
	}
	return sessnet.NewAnonymousPeer(s.SessionID())
}

func (e *Engine) handleRequest(ctx context.Context, s *session.Session, h protocol.Header, m operation.Model) {
	req := m.(*operation.Request)
	params := h.SendParameters()

	if !s.IsBound() {
		s.Logger().Warn("request before handshake", zap.Uint16("operationCode", req.OperationCode))
		e.reply(s, req, &operation.Response{
			ReturnCode:   operation.ReturnOperationInvalid,
			DebugMessage: sessnet.ErrSessionNotBound,
		}, params)
		return
	}
	s.TouchHandshaked()

	ctx, span := e.tracer.Start(ctx, "sessnet.request", trace.WithAttributes(
		attribute.Int("sessnet.operation_code", int(req.OperationCode)),
		attribute.Int64("sessnet.request_id", int64(req.RequestID)),
		attribute.String("sessnet.session_id", s.SessionID()),
		attribute.String("sessnet.transport", s.TransportProtocol().String()),
	))
	defer span.End()

	resp := e.invokeRequest(ctx, s, req, params)
	if resp.ReturnCode != operation.ReturnOk {
		span.SetStatus(codes.Error, resp.DebugMessage)
	}
	e.reply(s, req, resp, params)
}

// invokeRequest runs the registered handler and always yields a response.
func (e *Engine) invokeRequest(ctx context.Context, s *session.Session, req *operation.Request, params operation.SendParameters) (resp *operation.Response) {
	v, ok := e.requestHandlers.Load(req.OperationCode)
	if !ok {
		s.Logger().Debug("no handler for operation", zap.Uint16("operationCode", req.OperationCode))
		return &operation.Response{ReturnCode: operation.ReturnOperationInvalid, DebugMessage: sessnet.ErrUnknownOperation}
	}
	handler := v.(sessnet.RequestHandlerFunc)

	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("request handler panicked",
				zap.Uint16("operationCode", req.OperationCode),
				zap.Any("panic", r),
			)
			resp = &operation.Response{ReturnCode: operation.ReturnInternalServerError, DebugMessage: sessnet.ErrInternalError}
		}
	}()

	out, err := handler(ctx, req, params, e.peerFor(s), s)
	if err != nil {
		s.Logger().Warn("request handler failed",
			zap.Uint16("operationCode", req.OperationCode),
			zap.Error(err),
		)
		return &operation.Response{ReturnCode: operation.ReturnInternalServerError, DebugMessage: sessnet.ErrInternalError}
	}
	if out == nil {
		return &operation.Response{ReturnCode: operation.ReturnOperationInvalid, DebugMessage: sessnet.ErrNoResponse}
	}
	return out
}

func (e *Engine) reply(s *session.Session, req *operation.Request, resp *operation.Response, params operation.SendParameters) {
	resp.OperationCode = req.OperationCode
	resp.ResponseID = req.RequestID
	if result := e.emitter.Send(s, resp, params); result != operation.SendOk {
		s.Logger().Debug("response not sent",
			zap.Uint32("responseId", resp.ResponseID),
			zap.Stringer("result", result),
		)
	}
}

func (e *Engine) handleEvent(ctx context.Context, s *session.Session, h protocol.Header, m operation.Model) {
	ev := m.(*operation.Event)
	if !s.IsBound() {
		s.Logger().Warn("event before handshake", zap.Uint16("eventCode", ev.EventCode))
		e.metrics.Dropped("unbound")
		return
	}
	s.TouchHandshaked()

	v, ok := e.eventHandlers.Load(ev.EventCode)
	if !ok {
		s.Logger().Debug("no handler for event", zap.Uint16("eventCode", ev.EventCode))
		return
	}
	handler := v.(sessnet.EventHandlerFunc)

	ctx, span := e.tracer.Start(ctx, "sessnet.event", trace.WithAttributes(
		attribute.Int("sessnet.event_code", int(ev.EventCode)),
		attribute.String("sessnet.session_id", s.SessionID()),
	))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("event handler panicked", zap.Uint16("eventCode", ev.EventCode), zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
		}
	}()

	handler(ctx, ev, h.SendParameters(), e.peerFor(s), s)
}

func (e *Engine) handlePing(_ context.Context, s *session.Session, h protocol.Header, _ operation.Model) {
	e.emitter.Send(s, &operation.Pong{}, h.SendParameters())
}

func (e *Engine) handleHandshakeAck(_ context.Context, s *session.Session, _ protocol.Header, m operation.Model) {
	e.client.OnHandshakeAck(s, m.(*operation.HandshakeAck))
}

func (e *Engine) handleResponse(_ context.Context, s *session.Session, _ protocol.Header, m operation.Model) {
	e.client.OnResponse(s, m.(*operation.Response))
}

func (e *Engine) handlePushedEvent(_ context.Context, s *session.Session, h protocol.Header, m operation.Model) {
	e.client.OnEvent(s, m.(*operation.Event), h.SendParameters())
}

func (e *Engine) handleDisconnect(_ context.Context, s *session.Session, _ protocol.Header, m operation.Model) {
	e.client.OnDisconnect(s, m.(*operation.Disconnect))
}

func (e *Engine) handlePong(_ context.Context, s *session.Session, _ protocol.Header, _ operation.Model) {
	e.client.OnPong(s)
}
