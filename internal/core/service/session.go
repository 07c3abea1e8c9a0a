package service

import (
	"context"

	"github.com/Wyydra/ya-signal/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// SessionService turns transport disconnects into room cleanup.
type SessionService struct {
	signaling *SignalingService
}

// NewSessionService shares registry, gateway and presence with signaling so
// that disconnect cleanup and explicit leave behave the same.
func NewSessionService(signaling *SignalingService) *SessionService {
	return &SessionService{signaling: signaling}
}

// HandleDisconnect cleans up every room the connection joined. A connection
// that never joined is ignored. Nothing here ever panics or returns an error
// to the caller.
func (s *SessionService) HandleDisconnect(ctx context.Context, sess *domain.Session) {
	l := log.With().Str("session_id", sess.ID().String()).Logger()

	bindings := sess.Bindings()
	if len(bindings) == 0 {
		l.Debug().Msg("Disconnect without room binding")
		return
	}
	for _, b := range bindings {
		s.cleanup(ctx, sess, b)
	}
}

func (s *SessionService) cleanup(ctx context.Context, sess *domain.Session, b domain.Binding) {
	l := log.With().
		Str("session_id", sess.ID().String()).
		Str("room_id", b.RoomID.String()).
		Str("user_id", b.UserID.String()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("Disconnect cleanup failed")
		}
	}()

	sess.Unbind(b.RoomID, b.UserID)
	if !s.signaling.presence.release(b, sess.ID()) {
		l.Debug().Msg("Binding taken over by another connection, skipping cleanup")
		return
	}

	l.Info().Msg("User disconnected from room")
	s.signaling.announceLeave(ctx, b.RoomID, b.UserID, l)
	l.Info().Msg("User cleanup completed")
}
