package engine

import (
	"sync"
)

// PresenceTracker maintains the set of peers currently online. The set
// is rebuilt wholesale from a snapshot on every (re)join of the presence
// scope and patched by join/leave deltas in between. Until the first
// snapshot after a (re)subscribe nobody is considered online.
type PresenceTracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		online: make(map[string]struct{}),
	}
}

// OnJoinSnapshot replaces the online set wholesale.
func (p *PresenceTracker) OnJoinSnapshot(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		p.online[id] = struct{}{}
	}
}

func (p *PresenceTracker) OnJoining(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[id] = struct{}{}
}

func (p *PresenceTracker) OnLeaving(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, id)
}

func (p *PresenceTracker) IsOnline(participantId string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.online[participantId]
	return ok
}

// Reset clears the set; called on every (re)subscription of the
// presence scope before the next snapshot arrives.
func (p *PresenceTracker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = make(map[string]struct{})
}
