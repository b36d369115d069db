// Package client is the dialing side of a sessnet connection. It performs the
// handshake, correlates requests with their responses and surfaces pushed
// events.
//
// Example:
//
//	c, err := client.DialTCP(ctx, "localhost:7000", client.Options{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if _, err := c.Handshake(ctx, "session-1", nil, token); err != nil {
//	    return err
//	}
//	resp, err := c.Request(ctx, 0x01, operation.Parameters{0: []byte("hi")}, operation.SendParameters{})
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/luciancaetano/sessnet/internal/engine"
	"github.com/luciancaetano/sessnet/internal/logger"
	"github.com/luciancaetano/sessnet/internal/protocol"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/operation"
)

// ErrClosed is returned by calls on a client whose connection is gone.
var ErrClosed = errors.New("client: connection closed")

// SendError reports an operation the client could not write.
type SendError struct {
	Result operation.SendResult
}

func (e *SendError) Error() string {
	return fmt.Sprintf("client: send failed: %s", e.Result)
}

// DisconnectedError reports a Disconnect sent by the server.
type DisconnectedError struct {
	Reason  operation.DisconnectReason
	Message string
}

func (e *DisconnectedError) Error() string {
	return fmt.Sprintf("client: disconnected by server: %s (%s)", e.Reason, e.Message)
}

// EventFunc receives events pushed by the server. It runs on the connection
// fiber, so it must not block on the same client.
type EventFunc func(ev *operation.Event, params operation.SendParameters)

// Options configure a client. The zero value uses simple-pack and AES-GCM.
type Options struct {
	Logger          *zap.Logger
	Protocol        operation.ProtocolType
	Crypto          operation.CryptoType
	CryptoSalt      []byte
	MaxMessageSize  int
	SendQueueLength int
	OnEvent         EventFunc
}

// Client is one connection to a server. It is safe for concurrent use.
type Client struct {
	logger  *zap.Logger
	framer  *protocol.Framer
	engine  *engine.Engine
	sess    *session.Session
	onEvent EventFunc

	nextRequestID atomic.Uint32

	mu         sync.Mutex
	pending    map[uint32]chan *operation.Response
	ack        chan *operation.HandshakeAck
	pongs      []chan struct{}
	disconnect *DisconnectedError

	done     chan struct{}
	doneOnce sync.Once
}

func newClient(opts Options, tr session.Transport) *Client {
	log := logger.OrNop(opts.Logger)
	if opts.Protocol == 0 {
		opts.Protocol = operation.ProtocolSimplePack
	}
	if opts.Crypto == 0 {
		opts.Crypto = operation.CryptoAESGCM
	}

	c := &Client{
		logger:  log,
		framer:  protocol.NewFramer(nil, opts.CryptoSalt, opts.MaxMessageSize),
		onEvent: opts.OnEvent,
		pending: make(map[uint32]chan *operation.Response),
		ack:     make(chan *operation.HandshakeAck, 1),
		done:    make(chan struct{}),
	}
	c.engine = engine.New(engine.Config{
		Role:            engine.RoleClient,
		Framer:          c.framer,
		Client:          handler{c},
		DefaultProtocol: opts.Protocol,
		DefaultCrypto:   opts.Crypto,
		MaxMessageSize:  opts.MaxMessageSize,
		Logger:          log,
	})
	c.sess = session.New(session.Options{
		Transport: tr,
		Pool:      session.NewPool(1),
		Sender:    c.engine.Emitter(),
		Logger:    log,
		OnClose:   func(*session.Session) { c.doneOnce.Do(func() { close(c.done) }) },
	})
	return c
}

// Handshake binds the connection to sessionID. key enables encrypted
// operations in both directions; token is an optional auth token. It returns
// once the server acknowledges or disconnects.
func (c *Client) Handshake(ctx context.Context, sessionID string, key []byte, token string) (*operation.HandshakeAck, error) {
	if !c.sess.Bind(sessionID, key) {
		return nil, errors.New("client: already bound or empty session id")
	}
	hs := &operation.Handshake{SessionID: sessionID, EncryptKey: key, AuthToken: token}
	if result := c.engine.Emitter().Send(c.sess, hs, operation.SendParameters{}); result != operation.SendOk {
		return nil, &SendError{Result: result}
	}

	select {
	case ack := <-c.ack:
		return ack, nil
	case <-c.done:
		return nil, c.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Request sends a request and waits for the response with the same id.
func (c *Client) Request(ctx context.Context, operationCode uint16, params operation.Parameters, sp operation.SendParameters) (*operation.Response, error) {
	id := c.nextRequestID.Add(1)
	ch := make(chan *operation.Response, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := &operation.Request{OperationCode: operationCode, RequestID: id, Parameters: params}
	if result := c.engine.Emitter().Send(c.sess, req, sp); result != operation.SendOk {
		return nil, &SendError{Result: result}
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		return nil, c.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendEvent sends a fire-and-forget event.
func (c *Client) SendEvent(eventCode uint16, params operation.Parameters, sp operation.SendParameters) operation.SendResult {
	return c.engine.Emitter().Send(c.sess, &operation.Event{EventCode: eventCode, Parameters: params}, sp)
}

// Ping sends a Ping and waits for the next Pong.
func (c *Client) Ping(ctx context.Context) error {
	pong := make(chan struct{})
	c.mu.Lock()
	c.pongs = append(c.pongs, pong)
	c.mu.Unlock()

	if result := c.engine.Emitter().Send(c.sess, &operation.Ping{}, operation.SendParameters{}); result != operation.SendOk {
		return &SendError{Result: result}
	}

	select {
	case <-pong:
		return nil
	case <-c.done:
		return c.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectionID returns the local connection id. The server's id for this
// connection is in the HandshakeAck.
func (c *Client) ConnectionID() uint64 {
	return c.sess.ConnectionID()
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Disconnected returns the Disconnect sent by the server, if any.
func (c *Client) Disconnected() (*DisconnectedError, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnect, c.disconnect != nil
}

// Close tells the server the client is leaving and closes the connection.
func (c *Client) Close() error {
	if c.sess.IsConnected() {
		c.sess.SendDisconnect(operation.ReasonClientDisconnect, "")
	}
	c.sess.Disconnect()
	return nil
}

func (c *Client) closedErr() error {
	if d, ok := c.Disconnected(); ok {
		return d
	}
	return ErrClosed
}

// handler receives operations from the client engine.
type handler struct {
	c *Client
}

func (h handler) OnHandshakeAck(_ *session.Session, ack *operation.HandshakeAck) {
	select {
	case h.c.ack <- ack:
	default:
		h.c.logger.Debug("unexpected handshake ack")
	}
}

func (h handler) OnResponse(_ *session.Session, resp *operation.Response) {
	h.c.mu.Lock()
	ch, ok := h.c.pending[resp.ResponseID]
	h.c.mu.Unlock()
	if !ok {
		h.c.logger.Debug("response without a pending request", zap.Uint32("responseId", resp.ResponseID))
		return
	}
	select {
	case ch <- resp:
	default:
		h.c.logger.Debug("duplicate response", zap.Uint32("responseId", resp.ResponseID))
	}
}

func (h handler) OnEvent(_ *session.Session, ev *operation.Event, params operation.SendParameters) {
	if h.c.onEvent != nil {
		h.c.onEvent(ev, params)
	}
}

func (h handler) OnDisconnect(s *session.Session, d *operation.Disconnect) {
	h.c.mu.Lock()
	h.c.disconnect = &DisconnectedError{Reason: d.Reason, Message: d.Message}
	h.c.mu.Unlock()
	h.c.logger.Info("disconnected by server", zap.Stringer("reason", d.Reason), zap.String("message", d.Message))
	s.Disconnect()
}

func (h handler) OnPong(*session.Session) {
	h.c.mu.Lock()
	pongs := h.c.pongs
	h.c.pongs = nil
	h.c.mu.Unlock()
	for _, p := range pongs {
		close(p)
	}
}
