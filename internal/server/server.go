// Package server runs the listeners of every transport and routes their
// frames into the engine.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/auth"
	"github.com/luciancaetano/sessnet/internal/config"
	"github.com/luciancaetano/sessnet/internal/directory"
	"github.com/luciancaetano/sessnet/internal/engine"
	"github.com/luciancaetano/sessnet/internal/logger"
	"github.com/luciancaetano/sessnet/internal/metrics"
	"github.com/luciancaetano/sessnet/internal/protocol"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/operation"
)

// Listener names accepted by Addr.
const (
	ListenerTCP   = "tcp"
	ListenerTLS   = "tls"
	ListenerUDP   = "udp"
	ListenerHTTP  = "http"
	ListenerHTTPS = "https"
)

// CheckOriginFn is a function that validates the origin of a WebSocket connection request.
// It receives the HTTP request and returns true if the origin is allowed, false otherwise.
// Use this to implement CORS policies for your WebSocket server.
type CheckOriginFn = func(r *http.Request) bool

// Options configure a Server. Only Config is required.
type Options struct {
	Config *config.Config
	Logger *zap.Logger

	// Registry receives the server metrics and backs the metrics endpoint.
	// Default: a fresh registry with the Go and process collectors.
	Registry *prometheus.Registry

	// TokenVerifier checks handshake tokens. Default: an HS256 verifier when
	// Config.Auth.Secret is set, otherwise every peer is anonymous.
	TokenVerifier sessnet.TokenVerifier

	// TLSConfig overrides the certificate files of the TLS and HTTPS listeners.
	TLSConfig *tls.Config

	CheckOrigin  CheckOriginFn
	OnConnect    sessnet.OnConnectFn
	OnDisconnect sessnet.OnDisconnectFn
	Tracer       trace.Tracer
}

// Server implements sessnet.Server.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	framer   *protocol.Framer
	engine   *engine.Engine
	sessions *directory.Sessions
	peers    *directory.UserPeers
	pool     *session.Pool
	upgrader websocket.Upgrader

	tlsConfig    *tls.Config
	onConnect    sessnet.OnConnectFn
	onDisconnect sessnet.OnDisconnectFn

	connections sync.Map // map[uint64]*session.Session
	udpPeers    sync.Map // map[string]*session.Session
	count       atomic.Int64

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	group       *errgroup.Group
	listeners   []net.Listener
	udpConn     *net.UDPConn
	httpServers []httpListener
	addrs       map[string]net.Addr
}

type httpListener struct {
	srv *http.Server
	ln  net.Listener
}

var _ sessnet.Server = (*Server)(nil)

// New creates a stopped server.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := logger.OrNop(opts.Logger)

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	verifier := opts.TokenVerifier
	if verifier == nil && cfg.Auth.Secret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
	}

	s := &Server{
		cfg:          cfg,
		logger:       log,
		registry:     registry,
		metrics:      metrics.New(metrics.WithRegistry(registry)),
		framer:       protocol.NewFramer(nil, []byte(cfg.Protocol.CryptoSalt), cfg.Session.MaxMessageSize),
		sessions:     directory.NewSessions(),
		peers:        directory.NewUserPeers(cfg.UserPeers.Size, cfg.UserPeers.TTL()),
		pool:         session.NewPool(cfg.Session.WorkerPoolSize),
		tlsConfig:    opts.TLSConfig,
		onConnect:    opts.OnConnect,
		onDisconnect: opts.OnDisconnect,
		addrs:        make(map[string]net.Addr),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
	s.engine = engine.New(engine.Config{
		Role:               engine.RoleServer,
		Framer:             s.framer,
		Sessions:           s.sessions,
		Peers:              s.peers,
		Verifier:           verifier,
		MaxSessionsPerUser: cfg.Session.MaxSessionsPerUser,
		DefaultProtocol:    cfg.Protocol.DefaultProtocol,
		DefaultCrypto:      cfg.Protocol.DefaultCrypto,
		MaxMessageSize:     cfg.Session.MaxMessageSize,
		Logger:             log,
		Metrics:            s.metrics,
		Tracer:             opts.Tracer,
	})
	return s
}

// Start binds every configured listener and starts serving. Bind errors are
// returned immediately; serve loops that fail within the first 100ms are
// reported as well.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New(sessnet.ErrServerAlreadyRunning)
	}
	s.running = true
	s.mu.Unlock()

	if err := s.listen(); err != nil {
		s.closeListeners()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)

	s.mu.Lock()
	s.cancel = cancel
	s.group = g
	for _, ln := range s.listeners {
		ln := ln
		g.Go(func() error { return s.acceptStream(gctx, ln) })
	}
	if s.udpConn != nil {
		g.Go(func() error { return s.serveUDP(gctx, s.udpConn) })
	}
	for _, h := range s.httpServers {
		h := h
		g.Go(func() error {
			if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", h.ln.Addr(), err)
			}
			return nil
		})
	}
	s.mu.Unlock()

	g.Go(func() error {
		s.sweepLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.closeListeners()
		return nil
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- g.Wait()
	}()

	// Check for immediate serve errors with a small timeout
	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if err == nil {
			err = errors.New(sessnet.ErrConnectionClosed)
		}
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		s.logger.Info("server started", zap.Any("listeners", s.listenerAddrs()))
		return nil
	}
}

// Stop sends Disconnect{ServerShutdown} to every session, closes the
// listeners and waits for the serve loops to exit.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, group, servers := s.cancel, s.group, s.httpServers
	s.mu.Unlock()

	var notify errgroup.Group
	notify.SetLimit(max(1, s.cfg.Session.WorkerPoolSize))
	s.connections.Range(func(_, v any) bool {
		sess := v.(*session.Session)
		notify.Go(func() error {
			s.engine.Disconnect(sess, operation.ReasonServerShutdown, sessnet.ErrServerShutdown)
			return nil
		})
		return true
	})
	_ = notify.Wait()

	var errs []error
	for _, h := range servers {
		if err := h.srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if cancel != nil {
		cancel()
	}
	if group != nil {
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	s.logger.Info("server stopped")
	return errors.Join(errs...)
}

// RegisterRequestHandler registers a handler for a request operation code.
func (s *Server) RegisterRequestHandler(operationCode uint16, handler sessnet.RequestHandlerFunc) error {
	return s.engine.RegisterRequestHandler(operationCode, handler)
}

// RegisterEventHandler registers a handler for an event code.
func (s *Server) RegisterEventHandler(eventCode uint16, handler sessnet.EventHandlerFunc) error {
	return s.engine.RegisterEventHandler(eventCode, handler)
}

// SendEvent sends ev to every connection bound to sessionID. With no live
// connection the single result is SendSessionNull.
func (s *Server) SendEvent(sessionID string, ev *operation.Event, params operation.SendParameters) []operation.SendResult {
	targets := s.sessions.Get(sessionID)
	if len(targets) == 0 {
		return []operation.SendResult{s.engine.Emitter().Send(nil, ev, params)}
	}
	results := make([]operation.SendResult, len(targets))
	for i, sess := range targets {
		results[i] = s.engine.Emitter().Send(sess, ev, params)
	}
	return results
}

// Broadcast sends ev to every bound session
func (s *Server) Broadcast(ev *operation.Event, params operation.SendParameters) int {
	sent := 0
	s.connections.Range(func(_, v any) bool {
		sess := v.(*session.Session)
		if sess.IsBound() && s.engine.Emitter().Send(sess, ev, params) == operation.SendOk {
			sent++
		}
		return true
	})
	return sent
}

// SessionCount returns the number of live transport sessions.
func (s *Server) SessionCount() int {
	return int(s.count.Load())
}

// Addr returns the bound address of a listener, or nil when it is disabled
// or the server is not running.
func (s *Server) Addr(listener string) net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addrs[listener]
}

// Registry returns the metrics registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// open wraps a new transport in a session and tracks it until it closes.
func (s *Server) open(tr session.Transport) *session.Session {
	sess := session.New(session.Options{
		Transport: tr,
		Pool:      s.pool,
		Sender:    s.engine.Emitter(),
		RateLimit: &s.cfg.RateLimit,
		Logger:    s.logger,
		OnClose:   s.closed,
	})
	s.connections.Store(sess.ConnectionID(), sess)
	s.count.Add(1)
	s.metrics.SessionOpened()
	sess.Logger().Debug("session opened")

	// Call onConnect callback if provided
	if s.onConnect != nil {
		s.onConnect(sess)
	}
	return sess
}

func (s *Server) closed(sess *session.Session) {
	s.connections.Delete(sess.ConnectionID())
	s.engine.Detach(sess)
	if sess.TransportProtocol() == operation.TransportUdp {
		s.udpPeers.CompareAndDelete(sess.RemoteAddr(), sess)
	}
	s.count.Add(-1)
	s.metrics.SessionClosed()
	sess.Logger().Debug("session closed", zap.String("sessionId", sess.SessionID()))

	if s.onDisconnect != nil {
		s.onDisconnect(sess)
	}
}

func (s *Server) listenerAddrs() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.addrs))
	for name, addr := range s.addrs {
		out[name] = addr.String()
	}
	return out
}
