package sessnet

import "sync"

// UserPeer is the identity bound to a logical session. It outlives any one
// connection; the identity fields never change after construction.
type UserPeer struct {
	UserID          string
	SessionID       string
	PeerType        string
	IsAuthenticated bool

	mu         sync.RWMutex
	properties map[string]any
}

// NewUserPeer returns a peer for a verified identity.
func NewUserPeer(userID, sessionID, peerType string) *UserPeer {
	return &UserPeer{
		UserID:          userID,
		SessionID:       sessionID,
		PeerType:        peerType,
		IsAuthenticated: true,
	}
}

// NewAnonymousPeer returns the default unauthenticated peer for a session;
// its user id is the session id itself.
func NewAnonymousPeer(sessionID string) *UserPeer {
	return &UserPeer{
		UserID:    sessionID,
		SessionID: sessionID,
	}
}

// Property returns the value stored under key.
func (p *UserPeer) Property(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.properties[key]
	return v, ok
}

// SetProperty stores value under key.
func (p *UserPeer) SetProperty(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.properties == nil {
		p.properties = make(map[string]any)
	}
	p.properties[key] = value
}

// DeleteProperty removes key.
func (p *UserPeer) DeleteProperty(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.properties, key)
}

// Properties returns a copy of the property bag.
func (p *UserPeer) Properties() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.properties))
	for k, v := range p.properties {
		out[k] = v
	}
	return out
}

// InheritProperties copies every property of prev that p does not already hold.
func (p *UserPeer) InheritProperties(prev *UserPeer) {
	if prev == nil || prev == p {
		return
	}
	props := prev.Properties()
	if len(props) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.properties == nil {
		p.properties = make(map[string]any, len(props))
	}
	for k, v := range props {
		if _, ok := p.properties[k]; !ok {
			p.properties[k] = v
		}
	}
}
