package control

import "errors"

var (
	// ErrNotFound indicates an unknown session ID.
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyExists indicates a Start with a duplicate session ID.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrInvalidTransition indicates a disallowed status change. The
	// session state is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOutOfRange indicates a command index outside the session queue.
	ErrOutOfRange = errors.New("command index out of range")

	// ErrExternalService indicates a generation, tool, or judgment call
	// failed. It degrades the affected turn or analysis step, never the
	// session.
	ErrExternalService = errors.New("external service failure")
)
