package status

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("status: not found")
	ErrInvalid     = errors.New("status: invalid")
	ErrDuplicate   = errors.New("status: duplicate")
	ErrUnavailable = errors.New("status: unavailable")
)

// NotFound wraps ErrNotFound with a formatted detail message.
func NotFound(format string, a ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrNotFound)
}

// Invalid wraps ErrInvalid with a formatted detail message.
func Invalid(format string, a ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrInvalid)
}

// Duplicate wraps ErrDuplicate with a formatted detail message.
func Duplicate(format string, a ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrDuplicate)
}

// Unavailable wraps ErrUnavailable with a formatted detail message.
func Unavailable(format string, a ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrUnavailable)
}

// IsDomain reports whether err carries one of the typed failures above,
// as opposed to an unexpected infrastructure error.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalid) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrUnavailable)
}
