package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/Wyydra/ya-signal/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SignalingService validates and routes the five inbound message kinds.
// Failures never escape: each one becomes a single ERROR envelope for the
// originating user.
type SignalingService struct {
	registry port.RoomRegistry
	gateway  port.Gateway
	metrics  port.Metrics
	now      func() time.Time
	presence *presence
}

type Option func(*SignalingService)

func WithMetrics(m port.Metrics) Option {
	return func(s *SignalingService) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *SignalingService) {
		s.now = now
	}
}

func NewSignalingService(registry port.RoomRegistry, gateway port.Gateway, opts ...Option) *SignalingService {
	s := &SignalingService{
		registry: registry,
		gateway:  gateway,
		metrics:  port.NopMetrics{},
		now:      time.Now,
		presence: newPresence(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleFrame decodes one raw client frame and dispatches it.
func (s *SignalingService) HandleFrame(ctx context.Context, sess *domain.Session, raw []byte) {
	msg, err := domain.DecodeInbound(raw)
	if err != nil {
		var hdr domain.Envelope
		var decodeErr *domain.DecodeError
		if errors.As(err, &decodeErr) {
			hdr = decodeErr.Header
		}
		s.metrics.FrameReceived(hdr.Type)
		sess.Identify(hdr.UserID)

		log.Warn().Err(err).
			Str("session_id", sess.ID().String()).
			Msg("Rejected frame")
		s.sendError(ctx, sess, hdr.RoomID, domain.FailureCode(hdr.Type))
		return
	}
	s.Dispatch(ctx, sess, msg)
}

// Dispatch runs the handler for an already decoded message.
func (s *SignalingService) Dispatch(ctx context.Context, sess *domain.Session, msg domain.Message) {
	hdr := msg.Header()
	s.metrics.FrameReceived(hdr.Type)
	sess.Identify(hdr.UserID)

	l := log.With().
		Str("session_id", sess.ID().String()).
		Str("type", string(hdr.Type)).
		Str("room_id", hdr.RoomID.String()).
		Str("user_id", hdr.UserID.String()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("Handler failed")
			s.sendError(ctx, sess, hdr.RoomID, domain.FailureCode(hdr.Type))
		}
	}()

	if err := domain.Validate(msg); err != nil {
		l.Warn().Err(err).Msg("Invalid message")
		s.sendError(ctx, sess, hdr.RoomID, domain.FailureCode(hdr.Type))
		return
	}

	switch m := msg.(type) {
	case domain.JoinRoom:
		s.join(ctx, sess, m, l)
	case domain.LeaveRoom:
		s.leave(ctx, sess, m, l)
	case domain.Offer, domain.Answer, domain.ICECandidate:
		s.forward(ctx, sess, msg, l)
	default:
		l.Warn().Err(fmt.Errorf("%w: %s", domain.ErrUnknownKind, hdr.Type)).Msg("Unroutable message")
		s.sendError(ctx, sess, hdr.RoomID, domain.CodeInvalidMessage)
	}
}

func (s *SignalingService) join(ctx context.Context, sess *domain.Session, m domain.JoinRoom, l zerolog.Logger) {
	l.Info().Msg("User joining room")

	s.registry.Join(m.RoomID, m.UserID, m.UserName)
	sess.Bind(m.RoomID, m.UserID)
	s.presence.claim(domain.Binding{RoomID: m.RoomID, UserID: m.UserID}, sess.ID())

	// The snapshot goes out first so the newcomer knows the roster before
	// reacting to join events.
	s.broadcast(ctx, m.RoomID, domain.NewRoomUsers(m.RoomID, s.registry.Members(m.RoomID), s.now()), l)
	s.broadcast(ctx, m.RoomID, domain.NewUserJoined(m.RoomID, m.UserID, m.UserName, s.now()), l)

	l.Info().Int("room_size", s.registry.Size(m.RoomID)).Msg("User joined room")
}

func (s *SignalingService) leave(ctx context.Context, sess *domain.Session, m domain.LeaveRoom, l zerolog.Logger) {
	l.Info().Msg("User leaving room")

	sess.Unbind(m.RoomID, m.UserID)
	s.presence.forget(domain.Binding{RoomID: m.RoomID, UserID: m.UserID})
	s.announceLeave(ctx, m.RoomID, m.UserID, l)

	l.Info().Msg("User left room")
}

// announceLeave removes the membership and tells the rest of the room.
func (s *SignalingService) announceLeave(ctx context.Context, roomID domain.RoomID, userID domain.UserID, l zerolog.Logger) {
	s.registry.Leave(roomID, userID)
	s.broadcast(ctx, roomID, domain.NewUserLeft(roomID, userID, s.now()), l)
	s.broadcast(ctx, roomID, domain.NewRoomUsers(roomID, s.registry.Members(roomID), s.now()), l)
}

// forward relays an offer, answer or candidate to its target only. The
// message goes out as it came in, stamped with the current time if the client
// left the timestamp out.
func (s *SignalingService) forward(ctx context.Context, sess *domain.Session, msg domain.Message, l zerolog.Logger) {
	hdr := msg.Header()
	l = l.With().Str("target_user_id", hdr.TargetUserID.String()).Logger()

	if !s.registry.IsMember(hdr.RoomID, hdr.UserID) || !s.registry.IsMember(hdr.RoomID, hdr.TargetUserID) {
		l.Warn().Msg("Signal between users not in room")
		s.sendError(ctx, sess, hdr.RoomID, domain.CodeUserNotInRoom)
		return
	}

	if err := s.gateway.SendToUser(ctx, hdr.TargetUserID, domain.Stamped(msg, s.now())); err != nil {
		l.Error().Err(err).Msg("Failed to forward signal")
		return
	}
	s.metrics.SignalForwarded(hdr.Type)
	l.Debug().Msg("Signal forwarded")
}

func (s *SignalingService) broadcast(ctx context.Context, roomID domain.RoomID, msg domain.Message, l zerolog.Logger) {
	if err := s.gateway.Broadcast(ctx, roomID, msg); err != nil {
		l.Error().Err(err).Str("event", string(msg.Header().Type)).Msg("Failed to broadcast")
	}
}

// sendError answers the originating user. Until the connection has joined
// as that user there is no user address yet, so it goes to the connection.
func (s *SignalingService) sendError(ctx context.Context, sess *domain.Session, roomID domain.RoomID, code domain.ErrorCode) {
	userID := sess.Sender()
	msg := domain.NewError(roomID, userID, code, s.now())
	s.metrics.ErrorSent(code)

	var err error
	if userID != "" && sess.BoundAs(userID) {
		err = s.gateway.SendToUser(ctx, userID, msg)
	} else {
		err = s.gateway.SendToSession(ctx, sess.ID(), msg)
	}
	if err != nil {
		log.Error().Err(err).
			Str("session_id", sess.ID().String()).
			Str("code", string(code)).
			Msg("Failed to send error")
	}
}
