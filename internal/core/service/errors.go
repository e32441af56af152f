package service

import (
	"errors"

	"github.com/rl1809/benefit-transfer/internal/port"
)

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrParticipantNotFound      = errors.New("participant not found")
	ErrInactiveParticipant      = errors.New("inactive participant")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")
	ErrDuplicateRequest         = errors.New("duplicate request")
)

// Outcome labels an error returned by this package for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrParticipantNotFound):
		return "not_found"
	case errors.Is(err, ErrInactiveParticipant):
		return "inactive"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrConcurrentUpdateConflict), errors.Is(err, port.ErrVersionConflict):
		return "conflict"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"
	default:
		return "error"
	}
}
