// Package session implements the transport-agnostic session handle.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/sessnet/internal/config"
	"github.com/luciancaetano/sessnet/operation"
)

var lastConnectionID atomic.Uint64

// NextConnectionID returns a process-wide unique connection id.
func NextConnectionID() uint64 {
	return lastConnectionID.Add(1)
}

// Sender writes operations to a session.
type Sender interface {
	Send(s *Session, m operation.Model, params operation.SendParameters) operation.SendResult
}

// Time holds the session timestamps.
type Time struct {
	Created      time.Time
	Handshaked   time.Time
	LastReceived time.Time
}

// Options configure a new session.
type Options struct {
	Transport Transport
	Pool      *Pool
	Sender    Sender
	RateLimit *config.RateLimitConfig
	Logger    *zap.Logger
	// OnClose runs once, after the transport is closed.
	OnClose func(*Session)
}

const (
	attachNone int32 = iota
	attachLive
	attachDone
)

// Session is one transport connection and its handshake state.
type Session struct {
	connectionID    uint64
	serverSessionID string
	transport       Transport
	fiber           *Fiber
	sender          Sender
	limiter         *rate.Limiter // Rate limiter for incoming frames
	logger          *zap.Logger
	created         time.Time
	onClose         func(*Session)

	mu         sync.RWMutex
	sessionID  string
	encryptKey []byte

	handshaked   atomic.Int64
	lastReceived atomic.Int64

	attach          atomic.Int32
	disconnectArmed atomic.Bool
	closed          atomic.Bool
	closeOnce       sync.Once
}

// New creates an unbound session over opts.Transport.
func New(opts Options) *Session {
	var limiter *rate.Limiter
	if opts.RateLimit != nil && opts.RateLimit.Enabled {
		limiter = rate.NewLimiter(opts.RateLimit.MessagesPerSecond, opts.RateLimit.Burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		connectionID:    NextConnectionID(),
		serverSessionID: uuid.New().String(),
		transport:       opts.Transport,
		sender:          opts.Sender,
		limiter:         limiter,
		created:         time.Now(),
		onClose:         opts.OnClose,
	}
	s.logger = logger.With(
		zap.Uint64("connectionId", s.connectionID),
		zap.Stringer("transport", opts.Transport.Protocol()),
		zap.String("remoteAddr", opts.Transport.RemoteAddr()),
	)
	s.fiber = NewFiber(opts.Pool, s.logger)
	s.lastReceived.Store(s.created.UnixNano())
	return s
}

func (s *Session) ConnectionID() uint64 {
	return s.connectionID
}

func (s *Session) ServerSessionID() string {
	return s.serverSessionID
}

// SessionID returns the logical session id, empty until bound.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// EncryptKey returns the key bound at handshake.
func (s *Session) EncryptKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encryptKey
}

// IsBound reports whether the handshake has completed.
func (s *Session) IsBound() bool {
	return s.SessionID() != ""
}

// Bind sets the logical session id and key. It fails if the session is
// already bound or sessionID is empty.
func (s *Session) Bind(sessionID string, key []byte) bool {
	if sessionID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" {
		return false
	}
	s.sessionID = sessionID
	if len(key) > 0 {
		s.encryptKey = append([]byte(nil), key...)
	}
	return true
}

// Attach records that the session holds a directory entry. It fails once
// Detach has run, so an entry taken by a closing session can be rolled back.
func (s *Session) Attach() bool {
	return s.attach.CompareAndSwap(attachNone, attachLive)
}

// Detach ends the session's directory membership. It reports true exactly
// once, and only when Attach succeeded first.
func (s *Session) Detach() bool {
	return s.attach.Swap(attachDone) == attachLive
}

func (s *Session) TransportProtocol() operation.TransportProtocol {
	return s.transport.Protocol()
}

func (s *Session) Transport() Transport {
	return s.transport
}

func (s *Session) RemoteAddr() string {
	return s.transport.RemoteAddr()
}

func (s *Session) Logger() *zap.Logger {
	return s.logger
}

func (s *Session) Fiber() *Fiber {
	return s.fiber
}

// IsConnected reports whether the session is open and its transport can send.
func (s *Session) IsConnected() bool {
	return !s.closed.Load() && s.transport.IsConnected()
}

// Time returns a snapshot of the session timestamps.
func (s *Session) Time() Time {
	t := Time{Created: s.created}
	if ns := s.handshaked.Load(); ns != 0 {
		t.Handshaked = time.Unix(0, ns)
	}
	if ns := s.lastReceived.Load(); ns != 0 {
		t.LastReceived = time.Unix(0, ns)
	}
	return t
}

// TouchHandshaked stamps the last handshake or served operation.
func (s *Session) TouchHandshaked() {
	s.handshaked.Store(time.Now().UnixNano())
}

// TouchReceived stamps the last inbound frame.
func (s *Session) TouchReceived() {
	s.lastReceived.Store(time.Now().UnixNano())
}

// AllowReceive checks the inbound rate limit.
// Returns true if the frame is allowed, false if rate limited
func (s *Session) AllowReceive() bool {
	if s.limiter == nil {
		// Rate limiting disabled
		return true
	}
	return s.limiter.Allow()
}

// SendEvent emits ev through the session's sender.
func (s *Session) SendEvent(ev *operation.Event, params operation.SendParameters) operation.SendResult {
	return s.sender.Send(s, ev, params)
}

// SendDisconnect writes a Disconnect synchronously so it reaches the wire
// before the caller closes the transport.
func (s *Session) SendDisconnect(reason operation.DisconnectReason, message string) operation.SendResult {
	return s.sender.Send(s, &operation.Disconnect{Reason: reason, Message: message}, operation.SendParameters{Sync: true})
}

// Disconnect closes the transport once and runs the close hook.
func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if err := s.transport.Close(); err != nil {
			s.logger.Debug("transport close failed", zap.Error(err))
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// DisconnectAfter schedules Disconnect on the fiber after d. Only the first
// call arms it.
func (s *Session) DisconnectAfter(d time.Duration) bool {
	if !s.disconnectArmed.CompareAndSwap(false, true) {
		return false
	}
	if d <= 0 {
		s.fiber.Enqueue(s.Disconnect)
		return true
	}
	time.AfterFunc(d, func() {
		s.fiber.Enqueue(s.Disconnect)
	})
	return true
}
