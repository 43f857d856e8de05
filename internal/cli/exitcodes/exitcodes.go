package exitcodes

import (
	"errors"

	"github.com/criteo/install-registry/internal/installer"
	"github.com/criteo/install-registry/internal/models"
	"github.com/criteo/install-registry/internal/storage"
)

// Exit codes for different error scenarios
const (
	ExitSuccess            = 0 // Success
	ExitGeneralError       = 1 // General error (unreadable tree, unknown error)
	ExitInvalidArguments   = 2 // Invalid arguments/usage (missing flags, bad key)
	ExitNotFound           = 3 // Entity not found in the requested view or source
	ExitConflict           = 4 // Some requested installs or removals were not applied
	ExitSourceUnavailable  = 5 // Install source cannot be read
	ExitStorageUnavailable = 6 // Activation record cannot be read or written
)

// Error carries the exit code a command wants the process to end with
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCode wraps err so FromError reports code
func WithCode(code int, err error) error {
	return &Error{Code: code, Err: err}
}

// FromError maps a command error to a process exit code
func FromError(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	switch {
	case errors.Is(err, models.ErrInvalidKey), errors.Is(err, installer.ErrUnknownView):
		return ExitInvalidArguments
	case errors.Is(err, installer.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, installer.ErrSourceUnavailable):
		return ExitSourceUnavailable
	case errors.Is(err, storage.ErrStorageUnavailable):
		return ExitStorageUnavailable
	default:
		return ExitGeneralError
	}
}
