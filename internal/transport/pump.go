// Package transport implements the raw connections under a session.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/luciancaetano/sessnet/internal/session"
)

const (
	// writeWait is the time allowed to write a frame.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = 54 * time.Second
)

type outbound struct {
	frame []byte
	done  chan error
}

// pump owns the outbound queue of a connection and its single writer goroutine.
type pump struct {
	ctx       context.Context
	cancel    context.CancelFunc
	sendCh    chan outbound
	write     func(frame []byte) error
	ping      func() error
	closeConn func() error

	mu     sync.RWMutex
	closed bool
}

func newPump(queueLength int, write func([]byte) error, ping func() error, closeConn func() error) *pump {
	if queueLength <= 0 {
		queueLength = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &pump{
		ctx:       ctx,
		cancel:    cancel,
		sendCh:    make(chan outbound, queueLength),
		write:     write,
		ping:      ping,
		closeConn: closeConn,
	}

	// Start the write pump
	go p.run()

	return p
}

// send queues frame and waits until the writer has written it.
func (p *pump) send(frame []byte) error {
	done := make(chan error, 1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return session.ErrNotConnected
	}
	select {
	case p.sendCh <- outbound{frame: frame, done: done}:
		p.mu.RUnlock()
	case <-p.ctx.Done():
		p.mu.RUnlock()
		return session.ErrNotConnected
	}

	select {
	case err := <-done:
		return err
	case <-p.ctx.Done():
		select {
		case err := <-done:
			return err
		default:
			return session.ErrNotConnected
		}
	}
}

// sendAsync queues frame without waiting.
func (p *pump) sendAsync(frame []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return session.ErrNotConnected
	}
	select {
	case p.sendCh <- outbound{frame: frame}:
		return nil
	default:
		return session.ErrSendBufferFull
	}
}

func (p *pump) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *pump) close() error {
	// Cancel first so a sender blocked on a full queue lets go of the read lock.
	p.cancel()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.closeConn()
}

func (p *pump) run() {
	var tick <-chan time.Time
	if p.ping != nil {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer p.close()

	for {
		select {
		case out := <-p.sendCh:
			err := p.write(out.frame)
			if out.done != nil {
				out.done <- err
			}
			if err != nil {
				return
			}

		case <-tick:
			// Send ping to keep connection alive
			if err := p.ping(); err != nil {
				return
			}

		case <-p.ctx.Done():
			return
		}
	}
}
