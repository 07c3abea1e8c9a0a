package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/ya-signal/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WSClient is the ws.Client for one browser connection. Writes happen only
// in writePump; Send just queues.
type WSClient struct {
	session *domain.Session
	conn    *websocket.Conn
	send    chan []byte

	mu     sync.Mutex
	closed bool
}

func newWSClient(conn *websocket.Conn, sendBuffer int) *WSClient {
	return &WSClient{
		session: domain.NewSession(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
}

func (c *WSClient) Session() *domain.Session {
	return c.session
}

func (c *WSClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ws.ErrClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ws.ErrSendBufferFull
	}
}

// Close stops the write pump, which then closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

func (c *WSClient) writePump(opts Options, l zerolog.Logger) {
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				l.Debug().Err(err).Msg("Write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := newWSClient(conn, h.opts.SendBuffer)
	sess := client.Session()

	l := log.With().Str("session_id", sess.ID().String()).Logger()

	if err := h.Hub.Register(client); err != nil {
		l.Warn().Err(err).Msg("Hub unavailable, closing connection")
		conn.Close()
		return
	}
	l.Info().Msg("New client connected")

	go client.writePump(h.opts, l)

	// The request context ends with this handler; cleanup must still run.
	ctx := context.WithoutCancel(r.Context())
	defer func() {
		h.Hub.Unregister(client)
		client.Close()
		h.Sessions.HandleDisconnect(ctx, sess)
		l.Info().Msg("Client disconnected")
	}()

	conn.SetReadLimit(h.opts.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	// listening for browser
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Warn().Err(err).Msg("Unexpected close error")
			}
			break
		}
		if kind != websocket.TextMessage {
			l.Debug().Int("frame_type", kind).Msg("Ignoring non-text frame")
			continue
		}
		h.Signaling.HandleFrame(ctx, sess, data)
	}
}
