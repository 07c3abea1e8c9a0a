package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/ya-signal/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var fixedNow = time.UnixMilli(1700000000000)

type target string

const (
	toRoom    target = "room"
	toUser    target = "user"
	toSession target = "session"
)

type delivery struct {
	to        target
	roomID    domain.RoomID
	userID    domain.UserID
	sessionID domain.SessionID
	msg       domain.Message
}

// recordingGateway keeps every delivery in call order.
type recordingGateway struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (g *recordingGateway) Broadcast(_ context.Context, roomID domain.RoomID, msg domain.Message) error {
	g.record(delivery{to: toRoom, roomID: roomID, msg: msg})
	return nil
}

func (g *recordingGateway) SendToUser(_ context.Context, userID domain.UserID, msg domain.Message) error {
	g.record(delivery{to: toUser, userID: userID, msg: msg})
	return nil
}

func (g *recordingGateway) SendToSession(_ context.Context, sessionID domain.SessionID, msg domain.Message) error {
	g.record(delivery{to: toSession, sessionID: sessionID, msg: msg})
	return nil
}

func (g *recordingGateway) record(d delivery) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deliveries = append(g.deliveries, d)
}

func (g *recordingGateway) all() []delivery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]delivery(nil), g.deliveries...)
}

func (g *recordingGateway) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deliveries = nil
}

type fixture struct {
	registry  *memory.RoomRegistry
	gateway   *recordingGateway
	signaling *SignalingService
	sessions  *SessionService
}

func newFixture() fixture {
	registry := memory.NewRoomRegistry()
	gateway := &recordingGateway{}
	signaling := NewSignalingService(registry, gateway, WithClock(func() time.Time { return fixedNow }))
	return fixture{
		registry:  registry,
		gateway:   gateway,
		signaling: signaling,
		sessions:  NewSessionService(signaling),
	}
}

func (f fixture) join(sess *domain.Session, roomID domain.RoomID, userID domain.UserID, name string) {
	f.signaling.Dispatch(context.Background(), sess, domain.JoinRoom{
		Envelope: domain.Envelope{Type: domain.KindJoinRoom, RoomID: roomID, UserID: userID},
		UserName: name,
	})
}

// captureLogs redirects the global logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = previous })
	return &buf
}
