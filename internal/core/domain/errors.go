package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind      = errors.New("unknown message type")
	ErrMalformedMessage = errors.New("malformed message")
)

// DecodeError keeps whatever discriminator could be read so the caller can
// still answer with the matching per-operation code.
type DecodeError struct {
	Kind   Kind
	Header Envelope
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorCode is the machine readable code of an ERROR envelope.
type ErrorCode string

const (
	CodeUserNotInRoom     ErrorCode = "USER_NOT_IN_ROOM"
	CodeJoinError         ErrorCode = "JOIN_ERROR"
	CodeLeaveError        ErrorCode = "LEAVE_ERROR"
	CodeOfferError        ErrorCode = "OFFER_ERROR"
	CodeAnswerError       ErrorCode = "ANSWER_ERROR"
	CodeICECandidateError ErrorCode = "ICE_CANDIDATE_ERROR"
	CodeInvalidMessage    ErrorCode = "INVALID_MESSAGE"
)

// Text is the human readable message sent alongside the code.
func (c ErrorCode) Text() string {
	switch c {
	case CodeUserNotInRoom:
		return "User not in room"
	case CodeJoinError:
		return "Failed to join room"
	case CodeLeaveError:
		return "Failed to leave room"
	case CodeOfferError:
		return "Failed to handle offer"
	case CodeAnswerError:
		return "Failed to handle answer"
	case CodeICECandidateError:
		return "Failed to handle ICE candidate"
	default:
		return "Invalid message"
	}
}

// FailureCode maps an inbound kind to the code reported when handling it fails.
func FailureCode(k Kind) ErrorCode {
	switch k {
	case KindJoinRoom:
		return CodeJoinError
	case KindLeaveRoom:
		return CodeLeaveError
	case KindOffer:
		return CodeOfferError
	case KindAnswer:
		return CodeAnswerError
	case KindICECandidate:
		return CodeICECandidateError
	default:
		return CodeInvalidMessage
	}
}
