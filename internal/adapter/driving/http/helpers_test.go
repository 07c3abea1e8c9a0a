package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Wyydra/ya-signal/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/ya-signal/internal/adapter/driven/metrics"
	"github.com/Wyydra/ya-signal/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/ya-signal/internal/core/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	registry *memory.RoomRegistry
	hub      *ws.Hub
}

func newTestServer(t *testing.T, mutate ...func(*Options)) testServer {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}

	registry := memory.NewRoomRegistry()
	hub := ws.NewHub()
	recorder := metrics.NewRecorder(registry.RoomCount, hub.Connections)
	signaling := service.NewSignalingService(registry, hub, service.WithMetrics(recorder))
	h := NewHandler(signaling, service.NewSessionService(signaling), hub, registry, recorder.Handler(), opts)

	go hub.Run()
	srv := httptest.NewServer(h.NewRouter())
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return testServer{Server: srv, registry: registry, hub: hub}
}

func (s testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

type frame struct {
	Type         string          `json:"type"`
	RoomID       string          `json:"roomId"`
	UserID       string          `json:"userId"`
	TargetUserID string          `json:"targetUserId"`
	Timestamp    int64           `json:"timestamp"`
	UserName     string          `json:"userName"`
	UserIDs      []string        `json:"userIds"`
	ErrorCode    string          `json:"errorCode"`
	ErrorMessage string          `json:"errorMessage"`
	Offer        json.RawMessage `json:"offer"`
	Answer       json.RawMessage `json:"answer"`
}

func receive(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}
