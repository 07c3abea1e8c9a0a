package port

import (
	"context"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks

// Gateway is the delivery side of the transport. Calls hand the message off
// and return; nothing waits for the client to receive it.
type Gateway interface {
	// Broadcast delivers to every connection bound to the room topic.
	Broadcast(ctx context.Context, roomID domain.RoomID, msg domain.Message) error
	// SendToUser delivers to the private address of one user.
	SendToUser(ctx context.Context, userID domain.UserID, msg domain.Message) error
	// SendToSession delivers to a single connection.
	SendToSession(ctx context.Context, sessionID domain.SessionID, msg domain.Message) error
}
