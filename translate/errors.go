package translate

import (
	"fmt"

	"github.com/gamma-programme/rospitch/errors"
)

// Error reports why a single event could not be translated.
// It unwraps to an invalid-class error so callers can drop and continue.
type Error struct {
	Channel string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("translate %s.%s: %v", e.Channel, e.Field, e.Err)
}

// Unwrap returns the classified cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(channel, field string, cause error) *Error {
	if !errors.IsInvalid(cause) {
		cause = errors.WrapInvalid(cause, "Engine", "Translate", fmt.Sprintf("map field %s", field))
	}
	return &Error{Channel: channel, Field: field, Err: cause}
}
