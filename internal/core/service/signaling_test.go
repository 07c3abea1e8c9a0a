package service

import (
	"context"
	"testing"
	"time"

	"github.com/Wyydra/ya-signal/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/port"
	"github.com/Wyydra/ya-signal/internal/core/port/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSignalingService_JoinAnnouncesSnapshotThenJoin(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	sess := domain.NewSession()

	// When A joins the room
	f.join(sess, "demo", "a", "Alice")

	// Then the registry and the session stash are populated
	req.True(f.registry.IsMember("demo", "a"))
	req.Equal([]domain.Binding{{RoomID: "demo", UserID: "a"}}, sess.Bindings())

	// And the room topic gets the snapshot first, then the join event
	got := f.gateway.all()
	req.Len(got, 2)
	req.Equal(delivery{to: toRoom, roomID: "demo", msg: domain.NewRoomUsers("demo", []domain.UserID{"a"}, fixedNow)}, got[0])
	req.Equal(delivery{to: toRoom, roomID: "demo", msg: domain.NewUserJoined("demo", "a", "Alice", fixedNow)}, got[1])
}

func TestSignalingService_LeaveAnnouncesLeaveThenSnapshot(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	alice, bob := domain.NewSession(), domain.NewSession()
	f.join(alice, "demo", "a", "Alice")
	f.join(bob, "demo", "b", "Bob")
	f.gateway.reset()

	// When A leaves explicitly
	f.signaling.Dispatch(context.Background(), alice, domain.LeaveRoom{
		Envelope: domain.Envelope{Type: domain.KindLeaveRoom, RoomID: "demo", UserID: "a"},
	})

	// Then A is gone from the registry and its stash
	req.False(f.registry.IsMember("demo", "a"))
	req.Empty(alice.Bindings())

	got := f.gateway.all()
	req.Len(got, 2)
	req.Equal(delivery{to: toRoom, roomID: "demo", msg: domain.NewUserLeft("demo", "a", fixedNow)}, got[0])
	req.Equal(delivery{to: toRoom, roomID: "demo", msg: domain.NewRoomUsers("demo", []domain.UserID{"b"}, fixedNow)}, got[1])

	// And a later disconnect of A announces nothing
	f.gateway.reset()
	f.sessions.HandleDisconnect(context.Background(), alice)
	req.Empty(f.gateway.all())
}

func TestSignalingService_LastLeaveRemovesRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	sess := domain.NewSession()
	f.join(sess, "demo", "a", "Alice")
	f.gateway.reset()

	f.signaling.HandleFrame(context.Background(), sess, []byte(`{"type":"LEAVE_ROOM","roomId":"demo","userId":"a"}`))

	req.Zero(f.registry.Size("demo"))
	req.Zero(f.registry.RoomCount())
	got := f.gateway.all()
	req.Len(got, 2)
	req.Equal(domain.NewRoomUsers("demo", nil, fixedNow), got[1].msg)
}

func TestSignalingService_ForwardIsPointToPoint(t *testing.T) {
	frames := map[domain.Kind]string{
		domain.KindOffer:        `{"type":"OFFER","roomId":"demo","userId":"a","targetUserId":"b","timestamp":5,"offer":{"type":"offer","sdp":"v=0"}}`,
		domain.KindAnswer:       `{"type":"ANSWER","roomId":"demo","userId":"a","targetUserId":"b","timestamp":5,"answer":{"type":"answer","sdp":"v=0"}}`,
		domain.KindICECandidate: `{"type":"ICE_CANDIDATE","roomId":"demo","userId":"a","targetUserId":"b","timestamp":5,"candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host","sdpMid":"0"}}`,
	}

	for kind, raw := range frames {
		t.Run(string(kind), func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			gateway := mocks.NewMockGateway(ctrl)
			registry := memory.NewRoomRegistry()
			signaling := NewSignalingService(registry, gateway)

			// Given A and B are in the room
			registry.Join("demo", "a", "Alice")
			registry.Join("demo", "b", "Bob")

			expected, err := domain.DecodeInbound([]byte(raw))
			req.NoError(err)

			// Then only B's private address receives the original message
			gateway.EXPECT().SendToUser(gomock.Any(), domain.UserID("b"), expected).Return(nil).Times(1)
			gateway.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			gateway.EXPECT().SendToSession(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			// When A signals B
			signaling.HandleFrame(context.Background(), domain.NewSession(), []byte(raw))
		})
	}
}

func TestSignalingService_ForwardKeepsPayloadBytes(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Join("demo", "a", "Alice")
	f.registry.Join("demo", "b", "Bob")
	payload := `{ "sdp" : "v=0\r\na=group:BUNDLE 0 <x> & y",
		"type": "offer", "x-extra": [1, 2, {"k": null}] }`

	f.signaling.HandleFrame(context.Background(), domain.NewSession(),
		[]byte(`{"type":"OFFER","roomId":"demo","userId":"a","targetUserId":"b","offer":`+payload+`}`))

	got := f.gateway.all()
	req.Len(got, 1)
	offer, ok := got[0].msg.(domain.Offer)
	req.True(ok)
	req.Equal(payload, string(offer.Offer))

	b, err := domain.Encode(offer)
	req.NoError(err)
	req.Contains(string(b), `"offer":`+payload)
}

func TestSignalingService_ForwardStampsMissingTimestamp(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Join("demo", "a", "Alice")
	f.registry.Join("demo", "b", "Bob")

	// When the client leaves the timestamp out
	f.signaling.HandleFrame(context.Background(), domain.NewSession(),
		[]byte(`{"type":"ICE_CANDIDATE","roomId":"demo","userId":"a","targetUserId":"b","candidate":{"candidate":"c"}}`))

	// Then the relay stamps it on the way through
	got := f.gateway.all()
	req.Len(got, 1)
	req.Equal(fixedNow.UnixMilli(), got[0].msg.Header().Timestamp)
}

func TestSignalingService_ForwardRequiresMembership(t *testing.T) {
	tests := []struct {
		name    string
		members []domain.UserID
		raw     string
	}{
		{
			name:    "target not in room",
			members: []domain.UserID{"a"},
			raw:     `{"type":"OFFER","roomId":"demo","userId":"a","targetUserId":"b","offer":{"sdp":"v=0"}}`,
		},
		{
			name:    "sender not in room",
			members: []domain.UserID{"b"},
			raw:     `{"type":"ANSWER","roomId":"demo","userId":"a","targetUserId":"b","answer":{"sdp":"v=0"}}`,
		},
		{
			name:    "no target",
			members: []domain.UserID{"a", "b"},
			raw:     `{"type":"ICE_CANDIDATE","roomId":"demo","userId":"a","candidate":{"candidate":"c"}}`,
		},
		{
			name:    "target in another room",
			members: []domain.UserID{"a"},
			raw:     `{"type":"ICE_CANDIDATE","roomId":"demo","userId":"a","targetUserId":"c","candidate":{"candidate":"c"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			gateway := mocks.NewMockGateway(ctrl)
			registry := memory.NewRoomRegistry()
			signaling := NewSignalingService(registry, gateway, WithClock(func() time.Time { return fixedNow }))
			for _, u := range tt.members {
				registry.Join("demo", u, string(u))
			}
			registry.Join("other", "c", "Carol")

			sess := domain.NewSession()

			// Then exactly one error reaches the sender and nothing is forwarded
			gateway.EXPECT().
				SendToSession(gomock.Any(), sess.ID(), domain.NewError("demo", "a", domain.CodeUserNotInRoom, fixedNow)).
				Return(nil).
				Times(1)

			signaling.HandleFrame(context.Background(), sess, []byte(tt.raw))
			req.True(ctrl.Satisfied())
		})
	}
}

func TestSignalingService_MalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code domain.ErrorCode
	}{
		{name: "join without name", raw: `{"type":"JOIN_ROOM","roomId":"demo","userId":"a"}`, code: domain.CodeJoinError},
		{name: "leave with bad timestamp", raw: `{"type":"LEAVE_ROOM","roomId":"demo","userId":"a","timestamp":"soon"}`, code: domain.CodeLeaveError},
		{name: "offer without payload", raw: `{"type":"OFFER","roomId":"demo","userId":"a","targetUserId":"b"}`, code: domain.CodeOfferError},
		{name: "answer with null payload", raw: `{"type":"ANSWER","roomId":"demo","userId":"a","targetUserId":"b","answer":null}`, code: domain.CodeAnswerError},
		{name: "candidate with bad target", raw: `{"type":"ICE_CANDIDATE","roomId":"demo","userId":"a","targetUserId":9,"candidate":{}}`, code: domain.CodeICECandidateError},
		{name: "unknown type", raw: `{"type":"HELLO","roomId":"demo","userId":"a"}`, code: domain.CodeInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture()
			f.registry.Join("demo", "b", "Bob")

			sess := domain.NewSession()
			f.signaling.HandleFrame(context.Background(), sess, []byte(tt.raw))

			// Then the sender alone gets one error with the operation's code
			got := f.gateway.all()
			req.Len(got, 1)
			req.Equal(toSession, got[0].to)
			req.Equal(sess.ID(), got[0].sessionID)
			errMsg, ok := got[0].msg.(domain.Error)
			req.True(ok)
			req.Equal(domain.UserID("a"), errMsg.UserID)
			req.Equal(tt.code, errMsg.ErrorCode)
			req.Equal(tt.code.Text(), errMsg.ErrorMessage)
			req.Equal(domain.RoomID("demo"), errMsg.RoomID)

			// And the room is untouched
			req.Equal([]domain.UserID{"b"}, f.registry.Members("demo"))
		})
	}
}

func TestSignalingService_GarbageFrameAnswersConnection(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	sess := domain.NewSession()

	f.signaling.HandleFrame(context.Background(), sess, []byte(`not json`))

	got := f.gateway.all()
	req.Len(got, 1)
	req.Equal(toSession, got[0].to)
	req.Equal(sess.ID(), got[0].sessionID)
	req.Equal(domain.NewError("", "", domain.CodeInvalidMessage, fixedNow), got[0].msg)
}

type panickingRegistry struct {
	port.RoomRegistry
}

func (panickingRegistry) Join(domain.RoomID, domain.UserID, string) {
	panic("boom")
}

func TestSignalingService_RecoversHandlerPanic(t *testing.T) {
	req := require.New(t)
	logs := captureLogs(t)
	gateway := &recordingGateway{}
	signaling := NewSignalingService(panickingRegistry{RoomRegistry: memory.NewRoomRegistry()}, gateway,
		WithClock(func() time.Time { return fixedNow }))

	sess := domain.NewSession()

	req.NotPanics(func() {
		signaling.HandleFrame(context.Background(), sess,
			[]byte(`{"type":"JOIN_ROOM","roomId":"demo","userId":"a","userName":"Alice"}`))
	})

	// Then the failed join leaves the connection unbound and answers it directly
	req.Empty(sess.Bindings())
	got := gateway.all()
	req.Len(got, 1)
	req.Equal(delivery{to: toSession, sessionID: sess.ID(), msg: domain.NewError("demo", "a", domain.CodeJoinError, fixedNow)}, got[0])
	req.Contains(logs.String(), "Handler failed")

	// And its disconnect announces nothing
	NewSessionService(signaling).HandleDisconnect(context.Background(), sess)
	req.Len(gateway.all(), 1)
}

func TestSignalingService_ErrorsFollowTheConnectionNotTheClaim(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	sess := domain.NewSession()
	f.join(sess, "demo", "a", "Alice")
	f.gateway.reset()

	// When a joined connection signals on behalf of someone else
	f.signaling.HandleFrame(context.Background(), sess,
		[]byte(`{"type":"OFFER","roomId":"demo","userId":"z","targetUserId":"a","offer":{"sdp":"v=0"}}`))

	// Then the error goes to the connection's own user
	got := f.gateway.all()
	req.Len(got, 1)
	req.Equal(toUser, got[0].to)
	req.Equal(domain.UserID("a"), got[0].userID)
}

func TestSignalingService_RejoinKeepsOneEntry(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	sess := domain.NewSession()

	f.join(sess, "r", "u", "Alice")
	f.join(sess, "r", "u", "Bob")

	req.Equal([]domain.UserID{"u"}, f.registry.Members("r"))
	name, ok := f.registry.DisplayName("u")
	req.True(ok)
	req.Equal("Bob", name)
}

type countingMetrics struct {
	frames    map[domain.Kind]int
	forwarded map[domain.Kind]int
	errors    map[domain.ErrorCode]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		frames:    map[domain.Kind]int{},
		forwarded: map[domain.Kind]int{},
		errors:    map[domain.ErrorCode]int{},
	}
}

func (m *countingMetrics) FrameReceived(k domain.Kind)   { m.frames[k]++ }
func (m *countingMetrics) SignalForwarded(k domain.Kind) { m.forwarded[k]++ }
func (m *countingMetrics) ErrorSent(c domain.ErrorCode)  { m.errors[c]++ }

func TestSignalingService_ReportsMetrics(t *testing.T) {
	req := require.New(t)
	metrics := newCountingMetrics()
	registry := memory.NewRoomRegistry()
	signaling := NewSignalingService(registry, &recordingGateway{}, WithMetrics(metrics))
	ctx := context.Background()

	signaling.HandleFrame(ctx, domain.NewSession(), []byte(`{"type":"JOIN_ROOM","roomId":"r","userId":"a","userName":"A"}`))
	signaling.HandleFrame(ctx, domain.NewSession(), []byte(`{"type":"JOIN_ROOM","roomId":"r","userId":"b","userName":"B"}`))
	signaling.HandleFrame(ctx, domain.NewSession(), []byte(`{"type":"OFFER","roomId":"r","userId":"a","targetUserId":"b","offer":{}}`))
	signaling.HandleFrame(ctx, domain.NewSession(), []byte(`{"type":"OFFER","roomId":"r","userId":"a","targetUserId":"x","offer":{}}`))

	req.Equal(2, metrics.frames[domain.KindJoinRoom])
	req.Equal(2, metrics.frames[domain.KindOffer])
	req.Equal(1, metrics.forwarded[domain.KindOffer])
	req.Equal(1, metrics.errors[domain.CodeUserNotInRoom])
}
