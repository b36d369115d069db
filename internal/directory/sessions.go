// Package directory holds the cross-session maps consulted during handshakes.
package directory

import (
	"hash/fnv"
	"sync"

	"github.com/luciancaetano/sessnet/internal/session"
)

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string][]*session.Session
}

// Sessions maps a logical session id to its live transport sessions. Ids are
// spread over independently locked shards.
type Sessions struct {
	shards [shardCount]*shard
}

// NewSessions creates an empty directory.
func NewSessions() *Sessions {
	d := &Sessions{}
	for i := range d.shards {
		d.shards[i] = &shard{sessions: make(map[string][]*session.Session)}
	}
	return d
}

func shardIndex(sessionID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return h.Sum32() % shardCount
}

func (d *Sessions) shardFor(sessionID string) *shard {
	return d.shards[shardIndex(sessionID)]
}

// Register adds s under sessionID while keeping at most limit sessions of
// s's transport family. When the family is full the oldest sessions are
// removed and returned so the caller can disconnect them. A limit <= 0
// rejects s. Registering the same session twice is a no-op.
func (d *Sessions) Register(sessionID string, s *session.Session, limit int) (evicted []*session.Session, ok bool) {
	if limit <= 0 {
		return nil, false
	}

	sh := d.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	family := s.TransportProtocol().Family()
	list := sh.sessions[sessionID]

	count := 0
	for _, existing := range list {
		if existing == s {
			return nil, true
		}
		if existing.TransportProtocol().Family() == family {
			count++
		}
	}

	// The list is kept in registration order, so the first match is the oldest.
	for count >= limit {
		for i, existing := range list {
			if existing.TransportProtocol().Family() == family {
				evicted = append(evicted, existing)
				list = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		count--
	}

	sh.sessions[sessionID] = append(list, s)
	return evicted, true
}

// Remove deletes s from sessionID's list.
func (d *Sessions) Remove(sessionID string, s *session.Session) bool {
	if sessionID == "" {
		return false
	}

	sh := d.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	list := sh.sessions[sessionID]
	for i, existing := range list {
		if existing != s {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(sh.sessions, sessionID)
		} else {
			sh.sessions[sessionID] = list
		}
		return true
	}
	return false
}

// Get returns a copy of the sessions bound to sessionID, oldest first.
func (d *Sessions) Get(sessionID string) []*session.Session {
	sh := d.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return append([]*session.Session(nil), sh.sessions[sessionID]...)
}

// Len returns the number of registered transport sessions.
func (d *Sessions) Len() int {
	n := 0
	for _, sh := range d.shards {
		sh.mu.RLock()
		for _, list := range sh.sessions {
			n += len(list)
		}
		sh.mu.RUnlock()
	}
	return n
}

// Range calls fn for every registered session until fn returns false. fn
// must not call back into the directory.
func (d *Sessions) Range(fn func(sessionID string, s *session.Session) bool) {
	for _, sh := range d.shards {
		sh.mu.RLock()
		for id, list := range sh.sessions {
			for _, s := range list {
				if !fn(id, s) {
					sh.mu.RUnlock()
					return
				}
			}
		}
		sh.mu.RUnlock()
	}
}
