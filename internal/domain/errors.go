package domain

import "github.com/pkg/errors"

// Error kinds shared by the record types, the formatter and the stores.
// Failures wrap one of these so callers can branch with errors.Is.
var (
	// ErrInvalidArgument marks malformed or missing caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRuntime marks internal-consistency failures such as catalog misses.
	ErrRuntime = errors.New("runtime error")
	// ErrNotFound marks a lookup of a catalog entry that does not exist.
	ErrNotFound = errors.New("not found")
)

// InvalidArgument wraps ErrInvalidArgument with a formatted message.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// Runtime wraps ErrRuntime with a formatted message.
func Runtime(format string, args ...interface{}) error {
	return errors.Wrapf(ErrRuntime, format, args...)
}

// IsInvalidArgument reports whether err is an ErrInvalidArgument.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsRuntime reports whether err is an ErrRuntime.
func IsRuntime(err error) bool { return errors.Is(err, ErrRuntime) }

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
