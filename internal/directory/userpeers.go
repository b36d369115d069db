package directory

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/luciancaetano/sessnet"
)

// ErrIdentityConflict is returned when a session id is already bound to another user.
var ErrIdentityConflict = errors.New("directory: session id is bound to a different user")

// Conflicts reports whether candidate may not take over the binding held by
// existing: the user ids differ, or an authenticated peer would be replaced
// by an unauthenticated one.
func Conflicts(existing, candidate *sessnet.UserPeer) bool {
	if existing == nil {
		return false
	}
	return existing.UserID != candidate.UserID || (existing.IsAuthenticated && !candidate.IsAuthenticated)
}

type livePeer struct {
	peer *sessnet.UserPeer
	refs int
}

type peerShard struct {
	mu   sync.Mutex
	live map[string]*livePeer
	// Peers whose last session went away. Only these age out.
	orphans *expirable.LRU[string, *sessnet.UserPeer]
}

// UserPeers maps a logical session id to its identity. A peer is pinned
// while any session holds it (Commit / Release). Released peers are kept in
// a size and age bounded LRU so a reconnecting client keeps its identity;
// size 0 means unbounded and ttl 0 means no expiry.
type UserPeers struct {
	shards [shardCount]*peerShard
}

// NewUserPeers creates an empty directory. size bounds the released peers
// across all shards.
func NewUserPeers(size int, ttl time.Duration) *UserPeers {
	perShard := 0
	if size > 0 {
		perShard = (size + shardCount - 1) / shardCount
	}

	d := &UserPeers{}
	for i := range d.shards {
		d.shards[i] = &peerShard{
			live:    make(map[string]*livePeer),
			orphans: expirable.NewLRU[string, *sessnet.UserPeer](perShard, nil, ttl),
		}
	}
	return d
}

func (d *UserPeers) shardFor(sessionID string) *peerShard {
	return d.shards[shardIndex(sessionID)]
}

// lookup must be called with sh.mu held.
func (sh *peerShard) lookup(sessionID string) (*sessnet.UserPeer, bool) {
	if lp, ok := sh.live[sessionID]; ok {
		return lp.peer, true
	}
	return sh.orphans.Peek(sessionID)
}

// Get returns the peer bound to sessionID.
func (d *UserPeers) Get(sessionID string) (*sessnet.UserPeer, bool) {
	sh := d.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.lookup(sessionID)
}

// Commit binds candidate to sessionID and pins it for one session, unless
// the current peer conflicts with it. When the same user is already bound,
// candidate replaces it and inherits its properties. The bound peer is
// returned. Every successful Commit must be paired with a Release.
func (d *UserPeers) Commit(sessionID string, candidate *sessnet.UserPeer) (*sessnet.UserPeer, error) {
	sh := d.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	existing, ok := sh.lookup(sessionID)
	if ok {
		if Conflicts(existing, candidate) {
			return existing, ErrIdentityConflict
		}
		candidate.InheritProperties(existing)
	}

	if lp, ok := sh.live[sessionID]; ok {
		lp.peer = candidate
		lp.refs++
		return candidate, nil
	}
	sh.orphans.Remove(sessionID)
	sh.live[sessionID] = &livePeer{peer: candidate, refs: 1}
	return candidate, nil
}

// Release drops one pin taken by Commit. The last release hands the peer to
// the bounded LRU.
func (d *UserPeers) Release(sessionID string) {
	sh := d.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	lp, ok := sh.live[sessionID]
	if !ok {
		return
	}
	if lp.refs--; lp.refs > 0 {
		return
	}
	delete(sh.live, sessionID)
	sh.orphans.Add(sessionID, lp.peer)
}

// Remove drops the peer bound to sessionID, pinned or not.
func (d *UserPeers) Remove(sessionID string) {
	sh := d.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.live, sessionID)
	sh.orphans.Remove(sessionID)
}

// Len returns the number of bound peers.
func (d *UserPeers) Len() int {
	n := 0
	for _, sh := range d.shards {
		sh.mu.Lock()
		n += len(sh.live) + sh.orphans.Len()
		sh.mu.Unlock()
	}
	return n
}
