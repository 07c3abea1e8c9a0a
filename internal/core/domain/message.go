package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the wire discriminator carried in the "type" field.
type Kind string

const (
	KindJoinRoom     Kind = "JOIN_ROOM"
	KindLeaveRoom    Kind = "LEAVE_ROOM"
	KindOffer        Kind = "OFFER"
	KindAnswer       Kind = "ANSWER"
	KindICECandidate Kind = "ICE_CANDIDATE"

	KindUserJoined Kind = "USER_JOINED"
	KindUserLeft   Kind = "USER_LEFT"
	KindRoomUsers  Kind = "ROOM_USERS"
	KindError      Kind = "ERROR"
)

// Inbound reports whether clients are allowed to send this kind.
func (k Kind) Inbound() bool {
	switch k {
	case KindJoinRoom, KindLeaveRoom, KindOffer, KindAnswer, KindICECandidate:
		return true
	}
	return false
}

// Envelope is the header shared by every message, inbound and outbound.
type Envelope struct {
	Type         Kind   `json:"type"`
	RoomID       RoomID `json:"roomId" validate:"required,max=256"`
	UserID       UserID `json:"userId" validate:"required,max=256"`
	TargetUserID UserID `json:"targetUserId,omitempty" validate:"max=256"`
	Timestamp    int64  `json:"timestamp"`
}

func (e Envelope) Header() Envelope { return e }

func (Envelope) sealed() {}

// Message is the closed set of envelopes below. Only types embedding
// Envelope satisfy it.
type Message interface {
	Header() Envelope
	sealed()
}

type JoinRoom struct {
	Envelope
	UserName string `json:"userName" validate:"required,max=128"`
}

type LeaveRoom struct {
	Envelope
}

// Offer, Answer and ICECandidate carry browser payloads that are never
// inspected, only forwarded byte for byte.
type Offer struct {
	Envelope
	Offer json.RawMessage `json:"offer" validate:"rawjson"`
}

type Answer struct {
	Envelope
	Answer json.RawMessage `json:"answer" validate:"rawjson"`
}

type ICECandidate struct {
	Envelope
	Candidate json.RawMessage `json:"candidate" validate:"rawjson"`
}

type UserJoined struct {
	Envelope
	UserName string `json:"userName"`
}

type UserLeft struct {
	Envelope
}

type RoomUsers struct {
	Envelope
	UserIDs []UserID `json:"userIds"`
}

type Error struct {
	Envelope
	ErrorMessage string    `json:"errorMessage"`
	ErrorCode    ErrorCode `json:"errorCode"`
}

func envelope(kind Kind, roomID RoomID, userID UserID, at time.Time) Envelope {
	return Envelope{
		Type:      kind,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: at.UnixMilli(),
	}
}

func NewUserJoined(roomID RoomID, userID UserID, userName string, at time.Time) UserJoined {
	return UserJoined{
		Envelope: envelope(KindUserJoined, roomID, userID, at),
		UserName: userName,
	}
}

func NewUserLeft(roomID RoomID, userID UserID, at time.Time) UserLeft {
	return UserLeft{Envelope: envelope(KindUserLeft, roomID, userID, at)}
}

func NewRoomUsers(roomID RoomID, userIDs []UserID, at time.Time) RoomUsers {
	if userIDs == nil {
		userIDs = []UserID{}
	}
	return RoomUsers{
		Envelope: envelope(KindRoomUsers, roomID, "", at),
		UserIDs:  userIDs,
	}
}

func NewError(roomID RoomID, userID UserID, code ErrorCode, at time.Time) Error {
	return Error{
		Envelope:     envelope(KindError, roomID, userID, at),
		ErrorMessage: code.Text(),
		ErrorCode:    code,
	}
}

// DecodeInbound parses one client frame. Frames whose discriminator is
// missing, unknown, or names an outbound kind are rejected. A DecodeError
// carries whatever header fields could still be read.
func DecodeInbound(data []byte) (Message, error) {
	var hdr Envelope
	if err := json.Unmarshal(data, &hdr); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedMessage, err)}
		}
	}

	var (
		msg Message
		err error
	)
	switch hdr.Type {
	case KindJoinRoom:
		msg, err = decodeAs[JoinRoom](data)
	case KindLeaveRoom:
		msg, err = decodeAs[LeaveRoom](data)
	case KindOffer:
		msg, err = decodeAs[Offer](data)
	case KindAnswer:
		msg, err = decodeAs[Answer](data)
	case KindICECandidate:
		msg, err = decodeAs[ICECandidate](data)
	default:
		return nil, &DecodeError{Kind: hdr.Type, Header: hdr, Err: fmt.Errorf("%w: %q", ErrUnknownKind, hdr.Type)}
	}
	if err != nil {
		return nil, &DecodeError{Kind: hdr.Type, Header: hdr, Err: fmt.Errorf("%w: %v", ErrMalformedMessage, err)}
	}
	return msg, nil
}

// Stamped returns msg with its timestamp set to at when the sender left it
// out. Messages that carry one are returned unchanged.
func Stamped(msg Message, at time.Time) Message {
	if msg.Header().Timestamp != 0 {
		return msg
	}
	ts := at.UnixMilli()
	switch m := msg.(type) {
	case JoinRoom:
		m.Timestamp = ts
		return m
	case LeaveRoom:
		m.Timestamp = ts
		return m
	case Offer:
		m.Timestamp = ts
		return m
	case Answer:
		m.Timestamp = ts
		return m
	case ICECandidate:
		m.Timestamp = ts
		return m
	}
	return msg
}

func decodeAs[T Message](data []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
