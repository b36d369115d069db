package directory

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/luciancaetano/sessnet"
	"github.com/luciancaetano/sessnet/internal/session"
	"github.com/luciancaetano/sessnet/internal/transport"
	"github.com/luciancaetano/sessnet/operation"
)

func newSession(proto operation.TransportProtocol) *session.Session {
	return session.New(session.Options{
		Transport: transport.NewBuffered(proto, "test", 0),
		Pool:      session.NewPool(1),
	})
}

func TestRegisterEvictsOldestOfFamily(t *testing.T) {
	t.Parallel()

	d := NewSessions()
	tcp1 := newSession(operation.TransportTcp)
	ws := newSession(operation.TransportWs)
	tls := newSession(operation.TransportSsl)
	tcp3 := newSession(operation.TransportTcp)

	if ev, ok := d.Register("S", tcp1, 2); !ok || len(ev) != 0 {
		t.Fatalf("first register = %v, %v", ev, ok)
	}
	if ev, ok := d.Register("S", ws, 1); !ok || len(ev) != 0 {
		t.Fatalf("other family must not count: %v, %v", ev, ok)
	}
	if ev, ok := d.Register("S", tls, 2); !ok || len(ev) != 0 {
		t.Fatalf("second tcp-family register = %v, %v", ev, ok)
	}

	ev, ok := d.Register("S", tcp3, 2)
	if !ok {
		t.Fatal("third register rejected")
	}
	if len(ev) != 1 || ev[0] != tcp1 {
		t.Fatalf("evicted = %v, want the oldest tcp session", ev)
	}

	got := d.Get("S")
	want := []*session.Session{ws, tls, tcp3}
	if len(got) != len(want) {
		t.Fatalf("Get() = %d sessions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Get()[%d] = %d, want %d", i, got[i].ConnectionID(), want[i].ConnectionID())
		}
	}
}

func TestRegisterShrinkingLimit(t *testing.T) {
	t.Parallel()

	d := NewSessions()
	a := newSession(operation.TransportWs)
	b := newSession(operation.TransportWss)
	c := newSession(operation.TransportWs)

	d.Register("S", a, 3)
	d.Register("S", b, 3)
	ev, ok := d.Register("S", c, 1)
	if !ok || len(ev) != 2 || ev[0] != a || ev[1] != b {
		t.Fatalf("evicted = %v, %v; want a then b", ev, ok)
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestRegisterRejectsNonPositiveLimit(t *testing.T) {
	t.Parallel()

	d := NewSessions()
	s := newSession(operation.TransportTcp)
	for _, limit := range []int{0, -1} {
		if _, ok := d.Register("S", s, limit); ok {
			t.Errorf("limit %d accepted", limit)
		}
	}
	if d.Len() != 0 {
		t.Errorf("Len() = %d, want 0", d.Len())
	}
}

func TestRegisterTwiceIsNoop(t *testing.T) {
	t.Parallel()

	d := NewSessions()
	s := newSession(operation.TransportTcp)
	d.Register("S", s, 1)
	if ev, ok := d.Register("S", s, 1); !ok || len(ev) != 0 {
		t.Errorf("re-register = %v, %v", ev, ok)
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestRemoveAndRange(t *testing.T) {
	t.Parallel()

	d := NewSessions()
	a := newSession(operation.TransportTcp)
	b := newSession(operation.TransportUdp)
	d.Register("A", a, 1)
	d.Register("B", b, 1)

	seen := map[string]*session.Session{}
	d.Range(func(id string, s *session.Session) bool {
		seen[id] = s
		return true
	})
	if seen["A"] != a || seen["B"] != b {
		t.Errorf("Range saw %v", seen)
	}

	if !d.Remove("A", a) {
		t.Error("Remove(A) = false")
	}
	if d.Remove("A", a) {
		t.Error("second Remove(A) = true")
	}
	if d.Remove("", a) {
		t.Error("Remove with empty id = true")
	}
	if len(d.Get("A")) != 0 || d.Len() != 1 {
		t.Errorf("after remove: Get(A)=%v Len=%d", d.Get("A"), d.Len())
	}
}

func TestConcurrentRegister(t *testing.T) {
	t.Parallel()

	d := NewSessions()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("S%d", i%8)
			d.Register(id, newSession(operation.TransportTcp), 2)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if n := len(d.Get(fmt.Sprintf("S%d", i))); n != 2 {
			t.Errorf("S%d has %d sessions, want 2", i, n)
		}
	}
}

func TestUserPeersCommit(t *testing.T) {
	t.Parallel()

	d := NewUserPeers(0, 0)

	a := sessnet.NewUserPeer("A", "S", "player")
	a.SetProperty("room", "lobby")
	if bound, err := d.Commit("S", a); err != nil || bound != a {
		t.Fatalf("first commit = %v, %v", bound, err)
	}

	b := sessnet.NewUserPeer("B", "S", "player")
	bound, err := d.Commit("S", b)
	if !errors.Is(err, ErrIdentityConflict) {
		t.Fatalf("conflicting commit error = %v", err)
	}
	if bound != a {
		t.Error("conflict must report the existing peer")
	}
	if got, _ := d.Get("S"); got != a {
		t.Error("existing binding replaced on conflict")
	}

	refreshed := sessnet.NewUserPeer("A", "S", "admin")
	if bound, err := d.Commit("S", refreshed); err != nil || bound != refreshed {
		t.Fatalf("refresh commit = %v, %v", bound, err)
	}
	if v, _ := refreshed.Property("room"); v != "lobby" {
		t.Errorf("properties not carried over: %v", v)
	}

	d.Remove("S")
	if _, ok := d.Get("S"); ok || d.Len() != 0 {
		t.Error("Remove did not drop the peer")
	}
}

func TestUserPeersExpire(t *testing.T) {
	t.Parallel()

	d := NewUserPeers(10, 20*time.Millisecond)
	d.Commit("S", sessnet.NewAnonymousPeer("S"))
	if _, ok := d.Get("S"); !ok {
		t.Fatal("peer missing right after commit")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := d.Get("S"); !ok {
		t.Fatal("a pinned peer must never expire")
	}

	d.Release("S")
	if _, ok := d.Get("S"); !ok {
		t.Fatal("released peer must stay until its ttl")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := d.Get("S"); ok {
		t.Error("released peer should have expired")
	}
}

func TestUserPeersReleaseCountsPins(t *testing.T) {
	t.Parallel()

	d := NewUserPeers(0, 20*time.Millisecond)
	d.Commit("S", sessnet.NewAnonymousPeer("S"))
	d.Commit("S", sessnet.NewAnonymousPeer("S"))

	d.Release("S")
	time.Sleep(60 * time.Millisecond)
	if _, ok := d.Get("S"); !ok {
		t.Fatal("peer expired while one pin was still held")
	}

	d.Release("S")
	d.Release("S")
	time.Sleep(60 * time.Millisecond)
	if _, ok := d.Get("S"); ok {
		t.Error("peer should expire after the last release")
	}

	// Committing again revives an id from the released set.
	d.Commit("T", sessnet.NewAnonymousPeer("T"))
	d.Release("T")
	d.Commit("T", sessnet.NewAnonymousPeer("T"))
	time.Sleep(60 * time.Millisecond)
	if _, ok := d.Get("T"); !ok {
		t.Error("recommitted peer must be pinned again")
	}
}

// sameShardIDs returns n ids that land on one shard.
func sameShardIDs(n int) []string {
	want := shardIndex("id-0")
	ids := []string{"id-0"}
	for i := 1; len(ids) < n; i++ {
		id := fmt.Sprintf("id-%d", i)
		if shardIndex(id) == want {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestUserPeersSizeBound(t *testing.T) {
	t.Parallel()

	// One released peer per shard.
	d := NewUserPeers(shardCount, 0)
	ids := sameShardIDs(3)

	for _, id := range ids {
		d.Commit(id, sessnet.NewAnonymousPeer(id))
	}
	if d.Len() != 3 {
		t.Fatalf("pinned peers are never evicted, Len() = %d", d.Len())
	}

	for _, id := range ids {
		d.Release(id)
	}
	if _, ok := d.Get(ids[0]); ok {
		t.Error("oldest released peer should be evicted")
	}
	if _, ok := d.Get(ids[2]); !ok {
		t.Error("newest released peer must be kept")
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestConflicts(t *testing.T) {
	t.Parallel()

	authed := sessnet.NewUserPeer("A", "S", "")
	tests := []struct {
		name      string
		existing  *sessnet.UserPeer
		candidate *sessnet.UserPeer
		want      bool
	}{
		{"no existing peer", nil, sessnet.NewAnonymousPeer("S"), false},
		{"same user", authed, sessnet.NewUserPeer("A", "S", "admin"), false},
		{"other user", authed, sessnet.NewUserPeer("B", "S", ""), true},
		{"anonymous over authenticated", sessnet.NewUserPeer("S", "S", ""), sessnet.NewAnonymousPeer("S"), true},
		{"authenticated over anonymous", sessnet.NewAnonymousPeer("S"), sessnet.NewUserPeer("S", "S", ""), false},
		{"anonymous over anonymous", sessnet.NewAnonymousPeer("S"), sessnet.NewAnonymousPeer("S"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Conflicts(tt.existing, tt.candidate); got != tt.want {
				t.Errorf("Conflicts() = %v, want %v", got, tt.want)
			}
		})
	}
}
