package ws

import (
	"errors"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client is one connection as the hub sees it. Send must not block: the hub
// calls it from its run loop.
type Client interface {
	Session() *domain.Session
	Send(payload []byte) error
	Close() error
}
