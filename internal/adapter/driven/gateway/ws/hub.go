package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/rs/zerolog/log"
)

var ErrHubClosed = errors.New("hub closed")

type delivery struct {
	scope   string
	match   func(Client) bool
	payload []byte
}

// Hub implements port.Gateway. Room topics and user addresses are resolved
// from each client's session, so joining a room needs no subscription step.
// A user address covers every connection that joined as that user.
type Hub struct {
	clients     map[Client]bool
	connections atomic.Int64

	register   chan Client
	unregister chan Client
	deliver    chan delivery
	quit       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		register:   make(chan Client),
		unregister: make(chan Client),
		deliver:    make(chan delivery),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Broadcast(ctx context.Context, roomID domain.RoomID, msg domain.Message) error {
	return h.enqueue(ctx, "room:"+roomID.String(), msg, func(c Client) bool {
		return c.Session().InRoom(roomID)
	})
}

func (h *Hub) SendToUser(ctx context.Context, userID domain.UserID, msg domain.Message) error {
	return h.enqueue(ctx, "user:"+userID.String(), msg, func(c Client) bool {
		return c.Session().BoundAs(userID)
	})
}

func (h *Hub) SendToSession(ctx context.Context, sessionID domain.SessionID, msg domain.Message) error {
	return h.enqueue(ctx, "session:"+sessionID.String(), msg, func(c Client) bool {
		return c.Session().ID() == sessionID
	})
}

func (h *Hub) enqueue(ctx context.Context, scope string, msg domain.Message, match func(Client) bool) error {
	payload, err := domain.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Header().Type, err)
	}

	select {
	case h.deliver <- delivery{scope: scope, match: match, payload: payload}:
		return nil
	case <-h.quit:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connections reports how many clients are registered.
func (h *Hub) Connections() int {
	return int(h.connections.Load())
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.connections.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.connections.Store(int64(len(h.clients)))
			log.Debug().Str("session_id", client.Session().ID().String()).Msg("Client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Debug().Str("session_id", client.Session().ID().String()).Msg("Client unregistered")
			}

		case d := <-h.deliver:
			delivered := 0
			for client := range h.clients {
				if !d.match(client) {
					continue
				}
				if err := client.Send(d.payload); err != nil {
					log.Warn().Err(err).
						Str("session_id", client.Session().ID().String()).
						Str("scope", d.scope).
						Msg("Dropping slow client")
					h.drop(client)
					continue
				}
				delivered++
			}
			if delivered == 0 {
				log.Debug().Str("scope", d.scope).Msg("No recipient for message")
			}
		}
	}
}

func (h *Hub) drop(client Client) {
	delete(h.clients, client)
	h.connections.Store(int64(len(h.clients)))
	client.Close()
}

func (h *Hub) Register(c Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.quit:
		return ErrHubClosed
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}
