package runtime

import (
	"sync"

	"chat-hub/domain"
)

// Membership tracks which rooms each connection has joined, with both
// a forward index (connection -> rooms) and a reverse one
// (room -> connections) maintained under a single lock so the two are
// always mutual inverses. The reverse index is what makes dispatch
// O(members) instead of a scan over every connection.
//
// Membership does no authorization: callers validate community
// membership against the store before Join.
type Membership struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[*Connection]struct{}
	conns map[*Connection]map[domain.RoomID]struct{}
}

func NewMembership() *Membership {
	return &Membership{
		rooms: make(map[domain.RoomID]map[*Connection]struct{}),
		conns: make(map[*Connection]map[domain.RoomID]struct{}),
	}
}

func (m *Membership) Join(conn *Connection, room domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[room] == nil {
		m.rooms[room] = make(map[*Connection]struct{})
	}
	m.rooms[room][conn] = struct{}{}

	if m.conns[conn] == nil {
		m.conns[conn] = make(map[domain.RoomID]struct{})
	}
	m.conns[conn][room] = struct{}{}
}

func (m *Membership) Leave(conn *Connection, room domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(conn, room)
}

func (m *Membership) leaveLocked(conn *Connection, room domain.RoomID) {
	if members, ok := m.rooms[room]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
	if rooms, ok := m.conns[conn]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(m.conns, conn)
		}
	}
}

// RoomsOf returns a snapshot of the rooms the connection has joined.
func (m *Membership) RoomsOf(conn *Connection) []domain.RoomID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := m.conns[conn]
	if len(rooms) == 0 {
		return nil
	}
	snapshot := make([]domain.RoomID, 0, len(rooms))
	for room := range rooms {
		snapshot = append(snapshot, room)
	}
	return snapshot
}

// MembersOf returns a snapshot of every connection currently joined to
// the room.
func (m *Membership) MembersOf(room domain.RoomID) []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.rooms[room]
	if len(members) == 0 {
		return nil
	}
	snapshot := make([]*Connection, 0, len(members))
	for conn := range members {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// RoomCount reports the number of rooms with at least one member.
func (m *Membership) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// DropAll removes the connection from every room it was in. Once it
// returns, no MembersOf snapshot can contain the connection.
func (m *Membership) DropAll(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for room := range m.conns[conn] {
		m.leaveLocked(conn, room)
	}
	delete(m.conns, conn)
}
