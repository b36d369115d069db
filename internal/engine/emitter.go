package engine

import (
	"errors"

	"go.uber.org/zap"

	"github.com/luciancaetano/sessnet/internal/metrics"
	"github.com/luciancaetano/sessnet/internal/protocol"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/operation"
)

type sendOptions struct {
	protocol operation.ProtocolType
	crypto   operation.CryptoType
}

// SendOption overrides the default codec or cipher of one send.
type SendOption func(*sendOptions)

// WithProtocol selects the codec for one send.
func WithProtocol(p operation.ProtocolType) SendOption {
	return func(o *sendOptions) {
		o.protocol = p
	}
}

// WithCrypto selects the cipher for one encrypted send.
func WithCrypto(c operation.CryptoType) SendOption {
	return func(o *sendOptions) {
		o.crypto = c
	}
}

// Emitter frames operations and writes them to session transports.
type Emitter struct {
	framer          *protocol.Framer
	defaultProtocol operation.ProtocolType
	defaultCrypto   operation.CryptoType
	maxMessageSize  int
	metrics         *metrics.Metrics
}

// NewEmitter creates an emitter. A non-positive maxMessageSize disables the
// frame size check.
func NewEmitter(framer *protocol.Framer, defaultProtocol operation.ProtocolType, defaultCrypto operation.CryptoType, maxMessageSize int, m *metrics.Metrics) *Emitter {
	return &Emitter{
		framer:          framer,
		defaultProtocol: defaultProtocol,
		defaultCrypto:   defaultCrypto,
		maxMessageSize:  maxMessageSize,
		metrics:         m,
	}
}

// Send writes m with the default codec and cipher.
func (e *Emitter) Send(s *session.Session, m operation.Model, params operation.SendParameters) operation.SendResult {
	return e.SendOperation(s, m, params)
}

// SendOperation writes m to s. The checks run in order: a nil session, a
// closed transport, encryption without a key, serialization, the frame size
// ceiling, then the transport write itself. With params.Sync the write blocks;
// otherwise SendOk only means the frame was queued.
func (e *Emitter) SendOperation(s *session.Session, m operation.Model, params operation.SendParameters, opts ...SendOption) operation.SendResult {
	result := e.send(s, m, params, opts)
	e.metrics.SendResult(result.String())
	return result
}

func (e *Emitter) send(s *session.Session, m operation.Model, params operation.SendParameters, opts []SendOption) operation.SendResult {
	if s == nil {
		return operation.SendSessionNull
	}
	if !s.IsConnected() {
		return operation.SendDisconnected
	}

	o := sendOptions{protocol: e.defaultProtocol, crypto: e.defaultCrypto}
	for _, opt := range opts {
		opt(&o)
	}

	var key []byte
	if params.Encrypted {
		if key = s.EncryptKey(); len(key) == 0 {
			return operation.SendEncryptionNotSupported
		}
	}
	if m == nil {
		return operation.SendSerializeFailed
	}

	h := protocol.Header{Protocol: o.protocol, Flags: protocol.FlagsFor(params)}
	var (
		frame []byte
		err   error
	)
	if params.Encrypted {
		frame, err = e.framer.EncodeEncrypted(h, m, o.crypto, key)
	} else {
		frame, err = e.framer.Encode(h, m)
	}
	if err != nil {
		var tooLarge *protocol.FrameTooLargeError
		if errors.As(err, &tooLarge) {
			return operation.SendMessageTooBig
		}
		s.Logger().Warn("failed to encode operation", zap.Stringer("type", m.OperationType()), zap.Error(err))
		return operation.SendSerializeFailed
	}
	if e.maxMessageSize > 0 && len(frame) > e.maxMessageSize {
		return operation.SendMessageTooBig
	}

	if params.Sync {
		err = s.Transport().Send(frame)
	} else {
		err = s.Transport().SendAsync(frame)
	}
	switch {
	case err == nil:
		return operation.SendOk
	case errors.Is(err, session.ErrSendBufferFull):
		return operation.SendBufferFull
	default:
		return operation.SendDisconnected
	}
}
