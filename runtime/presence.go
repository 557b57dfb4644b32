package runtime

import (
	"sync"

	"chat-hub/domain"
)

// Presence is the single source of truth for "is this user online".
// It maps a user identity to the set of its live connections; a user
// appears in the map iff at least one connection is registered, so
// readers never observe an entry with an empty connection set.
type Presence struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]map[*Connection]struct{}
}

func NewPresence() *Presence {
	return &Presence{byUser: make(map[domain.UserID]map[*Connection]struct{})}
}

// Register adds a connection to the user's set, creating the set on
// first registration. Registering the same pair twice is a no-op.
func (p *Presence) Register(userID domain.UserID, conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byUser[userID]; !ok {
		p.byUser[userID] = make(map[*Connection]struct{})
	}
	p.byUser[userID][conn] = struct{}{}
}

// Deregister removes a connection; when the last connection of a user
// goes away the user entry is removed entirely. No-op if the pair is
// absent.
func (p *Presence) Deregister(userID domain.UserID, conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns, ok := p.byUser[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(p.byUser, userID)
	}
}

func (p *Presence) IsOnline(userID domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[userID]) > 0
}

// ConnectionsFor returns a snapshot of the user's live connections.
func (p *Presence) ConnectionsFor(userID domain.UserID) []*Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := p.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	snapshot := make([]*Connection, 0, len(conns))
	for conn := range conns {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// Count reports the number of distinct online users, not connections.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser)
}
