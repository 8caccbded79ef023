package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("not allowed to modify this appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMentorNotFound    = errors.New("mentor not found or not a valid mentor")
	ErrConflict          = errors.New("appointment changed concurrently")
	ErrAlreadyAccepted   = fmt.Errorf("%w: emergency request already accepted or no longer available", ErrConflict)
	ErrUnavailable       = errors.New("appointment store unavailable")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

func invalidTransition(current Status, ev Event) error {
	return fmt.Errorf("%w: appointment is %s and cannot be %s", ErrInvalidTransition, current, ev.pastTense())
}

// unavailable keeps both the class and the driver error in the chain.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
