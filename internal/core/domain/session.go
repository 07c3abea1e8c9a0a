package domain

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Binding is one (room, user) pair stashed against a connection at join time.
type Binding struct {
	RoomID RoomID
	UserID UserID
}

// Session is the attribute stash of one physical connection. The transport
// creates it on connect and hands the same pointer to the signaling service,
// which populates it on join, and to the disconnect handler, which reads it.
type Session struct {
	id SessionID

	mu       sync.RWMutex
	sender   UserID
	bindings map[Binding]struct{}
}

func NewSession() *Session {
	return &Session{
		id:       NewSessionID(),
		bindings: make(map[Binding]struct{}),
	}
}

func (s *Session) ID() SessionID {
	return s.id
}

// Identify records the user id the connection speaks for. It is ignored while
// the session is bound to any room.
func (s *Session) Identify(userID UserID) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bindings) == 0 {
		s.sender = userID
	}
}

// Sender returns the user id the connection last identified or joined as.
func (s *Session) Sender() UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sender
}

// Bind stashes the pair. A connection may join the same room under several
// user ids; each pair is kept until it is unbound.
func (s *Session) Bind(roomID RoomID, userID UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[Binding{RoomID: roomID, UserID: userID}] = struct{}{}
	s.sender = userID
}

// Unbind drops the pair if it is still stashed and reports whether it was.
func (s *Session) Unbind(roomID RoomID, userID UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := Binding{RoomID: roomID, UserID: userID}
	if _, ok := s.bindings[b]; !ok {
		return false
	}
	delete(s.bindings, b)
	return true
}

// Bindings returns the stashed pairs ordered by room, then user.
func (s *Session) Bindings() []Binding {
	s.mu.RLock()
	out := lo.Keys(s.bindings)
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Binding) int {
		if c := strings.Compare(string(a.RoomID), string(b.RoomID)); c != 0 {
			return c
		}
		return strings.Compare(string(a.UserID), string(b.UserID))
	})
	return out
}

// BoundAs reports whether the connection joined some room as userID.
func (s *Session) BoundAs(userID UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for b := range s.bindings {
		if b.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Session) InRoom(roomID RoomID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for b := range s.bindings {
		if b.RoomID == roomID {
			return true
		}
	}
	return false
}
