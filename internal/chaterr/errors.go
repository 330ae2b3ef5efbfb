// Package chaterr holds the error taxonomy shared by the chat session layer.
package chaterr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthorizationDenied means the user is not a participant or the room is archived.
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrValidation          = errors.New("validation error")
	// ErrClassifierUnavailable is absorbed by the moderation guard and never reaches clients.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrPersistence           = errors.New("persistence failure")
	ErrEditWindowExpired     = errors.New("edit window expired")
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")

	ErrMessageDeleted = fmt.Errorf("%w: message is deleted", ErrValidation)
)

// Message returns the text sent to a client in an error event. Internal
// failures are not echoed verbatim.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMessageDeleted):
		return "Message has been deleted"
	case errors.Is(err, ErrAuthorizationDenied):
		return "Access denied to this room"
	case errors.Is(err, ErrEditWindowExpired):
		return "Message can no longer be edited"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrConflict):
		return "Already exists"
	case errors.Is(err, ErrValidation):
		return strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	case errors.Is(err, ErrPersistence):
		return "Failed to save message"
	default:
		return "Internal error"
	}
}
