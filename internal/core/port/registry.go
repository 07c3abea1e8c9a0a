package port

import "github.com/Wyydra/ya-signal/internal/core/domain"

// RoomRegistry is the authoritative membership store. Every method is atomic
// on its own; nothing spans two calls.
type RoomRegistry interface {
	Join(roomID domain.RoomID, userID domain.UserID, userName string)
	Leave(roomID domain.RoomID, userID domain.UserID)
	Members(roomID domain.RoomID) []domain.UserID
	IsMember(roomID domain.RoomID, userID domain.UserID) bool
	Size(roomID domain.RoomID) int
	DisplayName(userID domain.UserID) (string, bool)
	RoomCount() int
}
