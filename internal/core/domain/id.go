package domain

import (
	"github.com/google/uuid"
)

// RoomID and UserID are opaque client-chosen keys.
type RoomID string
type UserID string

func (id RoomID) String() string {
	return string(id)
}

func (id UserID) String() string {
	return string(id)
}

// SessionID identifies one physical connection.
type SessionID uuid.UUID

func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}
