package domain

import (
	"sort"
	"sync"
	"time"
)

// Session is the in-memory state of one authenticated connection.
// The identity is fixed at creation; the room set always contains the
// private room named by the identity's UID until the session is closed.
type Session struct {
	ID           string
	Identity     Identity
	CreatedAt    time.Time
	LastActiveAt time.Time
	rooms        map[string]struct{}
	closed       bool
	mu           sync.RWMutex
}

func NewSession(id string, identity Identity) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Identity:     identity,
		CreatedAt:    now,
		LastActiveAt: now,
		rooms:        make(map[string]struct{}),
	}
}

// PrivateRoom is the room every connection of this user is subscribed to.
func (s *Session) PrivateRoom() string {
	return s.Identity.UID
}

// AddRoom records a subscription. It reports false when already present
// or when the session is closed.
func (s *Session) AddRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.rooms[roomID]; ok {
		return false
	}
	s.rooms[roomID] = struct{}{}
	return true
}

// RemoveRoom drops a subscription and reports whether it existed.
func (s *Session) RemoveRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return false
	}
	delete(s.rooms, roomID)
	return true
}

// InRoom reports whether the session subscribes to roomID.
func (s *Session) InRoom(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Rooms returns the subscribed rooms in lexical order.
func (s *Session) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Close empties the room set and returns what it held. Later AddRoom calls
// are rejected.
func (s *Session) Close() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	s.rooms = make(map[string]struct{})
	s.closed = true
	return out
}

func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
