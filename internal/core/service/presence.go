package service

import (
	"sync"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

// presence remembers which connection most recently joined as a given
// (room, user). A connection that reconnects before the old one is reaped
// takes over, so the late disconnect of the old one must not evict it.
type presence struct {
	mu     sync.Mutex
	owners map[domain.Binding]domain.SessionID
}

func newPresence() *presence {
	return &presence{owners: make(map[domain.Binding]domain.SessionID)}
}

func (p *presence) claim(b domain.Binding, sessionID domain.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owners[b] = sessionID
}

func (p *presence) forget(b domain.Binding) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.owners, b)
}

// release forgets b only if sessionID still owns it.
func (p *presence) release(b domain.Binding, sessionID domain.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if owner, ok := p.owners[b]; !ok || owner != sessionID {
		return false
	}
	delete(p.owners, b)
	return true
}
