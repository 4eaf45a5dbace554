package message

import "errors"

var (
	// ErrValidation is returned when caller supplied input is rejected.
	ErrValidation = errors.New("validation failed")

	// ErrPermission is returned when the actor's role does not allow the operation.
	ErrPermission = errors.New("permission denied")

	// ErrInvalidState is returned for a transition the current status does not allow.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrNotFound is returned when no message exists with the given ID.
	ErrNotFound = errors.New("message not found")

	// ErrNotConfigured is returned by Submit when no HR address is set.
	ErrNotConfigured = errors.New("hr email is not configured")
)
