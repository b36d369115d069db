package session_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luciancaetano/sessnet/internal/config"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/internal/transport"
	"github.com/luciancaetano/sessnet/operation"
)

type recordingSender struct {
	mu     sync.Mutex
	models []operation.Model
	params []operation.SendParameters
}

func (r *recordingSender) Send(s *session.Session, m operation.Model, params operation.SendParameters) operation.SendResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, m)
	r.params = append(r.params, params)
	return operation.SendOk
}

func newTestSession(t *testing.T, opts session.Options) (*session.Session, *transport.Buffered) {
	t.Helper()
	tr := transport.NewBuffered(operation.TransportTcp, "127.0.0.1:1", 0)
	opts.Transport = tr
	if opts.Pool == nil {
		opts.Pool = session.NewPool(4)
	}
	if opts.Sender == nil {
		opts.Sender = &recordingSender{}
	}
	return session.New(opts), tr
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectionIDsAreUnique(t *testing.T) {
	t.Parallel()

	a, _ := newTestSession(t, session.Options{})
	b, _ := newTestSession(t, session.Options{})
	if a.ConnectionID() == b.ConnectionID() {
		t.Error("connection ids must differ")
	}
	if b.ConnectionID() < a.ConnectionID() {
		t.Error("connection ids must increase")
	}
	if a.ServerSessionID() == "" || a.ServerSessionID() == b.ServerSessionID() {
		t.Error("server session ids must be unique and non-empty")
	}
}

func TestBindOnce(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, session.Options{})
	if s.IsBound() || s.SessionID() != "" {
		t.Fatal("new session must be unbound")
	}
	if s.Bind("", []byte("k")) {
		t.Error("empty session id must not bind")
	}

	key := []byte("key")
	if !s.Bind("S", key) {
		t.Fatal("first Bind failed")
	}
	key[0] = 'X'
	if string(s.EncryptKey()) != "key" {
		t.Error("Bind must copy the key")
	}
	if s.Bind("T", nil) {
		t.Error("second Bind must fail")
	}
	if s.SessionID() != "S" {
		t.Errorf("SessionID() = %q, want S", s.SessionID())
	}
}

func TestTimestamps(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, session.Options{})
	tm := s.Time()
	if !tm.Handshaked.IsZero() {
		t.Error("Handshaked must be zero before the handshake")
	}
	if tm.LastReceived.Before(tm.Created) {
		t.Error("LastReceived starts at creation time")
	}

	time.Sleep(2 * time.Millisecond)
	s.TouchHandshaked()
	s.TouchReceived()
	tm2 := s.Time()
	if tm2.Handshaked.IsZero() || !tm2.LastReceived.After(tm.LastReceived) {
		t.Errorf("timestamps not refreshed: %+v", tm2)
	}
}

func TestDisconnectRunsHookOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s, tr := newTestSession(t, session.Options{OnClose: func(*session.Session) { calls.Add(1) }})

	s.Disconnect()
	s.Disconnect()
	if calls.Load() != 1 {
		t.Errorf("OnClose called %d times, want 1", calls.Load())
	}
	if s.IsConnected() || tr.IsConnected() {
		t.Error("session and transport must be closed")
	}
}

func TestDisconnectAfterIsIdempotent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s, _ := newTestSession(t, session.Options{OnClose: func(*session.Session) { calls.Add(1) }})

	if !s.DisconnectAfter(20 * time.Millisecond) {
		t.Fatal("first DisconnectAfter must arm")
	}
	if s.DisconnectAfter(0) {
		t.Error("second DisconnectAfter must be a no-op")
	}
	if !s.IsConnected() {
		t.Error("disconnect fired early")
	}

	waitUntil(t, func() bool { return calls.Load() == 1 })
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("OnClose called %d times, want 1", calls.Load())
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	limited, _ := newTestSession(t, session.Options{RateLimit: &config.RateLimitConfig{MessagesPerSecond: 1, Burst: 2, Enabled: true}})
	if !limited.AllowReceive() || !limited.AllowReceive() {
		t.Error("burst must be allowed")
	}
	if limited.AllowReceive() {
		t.Error("third frame within a second must be limited")
	}

	open, _ := newTestSession(t, session.Options{RateLimit: config.NoRateLimit()})
	for i := 0; i < 1000; i++ {
		if !open.AllowReceive() {
			t.Fatal("disabled limiter rejected a frame")
		}
	}
}

func TestSendHelpers(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	s, _ := newTestSession(t, session.Options{Sender: sender})

	s.SendEvent(&operation.Event{EventCode: 1}, operation.SendParameters{Encrypted: true})
	s.SendDisconnect(operation.ReasonIdleTimeout, "idle")

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.models) != 2 {
		t.Fatalf("sent %d models, want 2", len(sender.models))
	}
	d, ok := sender.models[1].(*operation.Disconnect)
	if !ok || d.Reason != operation.ReasonIdleTimeout || d.Message != "idle" {
		t.Errorf("disconnect = %#v", sender.models[1])
	}
	if !sender.params[1].Sync {
		t.Error("disconnect must be written synchronously")
	}
	if !sender.params[0].Encrypted {
		t.Error("event params not forwarded")
	}
}

func TestAttachDetach(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, session.Options{})
	if !s.Attach() {
		t.Fatal("first Attach must succeed")
	}
	if s.Attach() {
		t.Error("second Attach must fail")
	}
	if !s.Detach() {
		t.Error("Detach after Attach must report true")
	}
	if s.Detach() {
		t.Error("Detach must report true only once")
	}

	late, _ := newTestSession(t, session.Options{})
	if late.Detach() {
		t.Error("Detach without Attach must report false")
	}
	if late.Attach() {
		t.Error("Attach after Detach must fail")
	}
}
