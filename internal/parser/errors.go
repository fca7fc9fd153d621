package parser

import (
	"errors"
	"fmt"
)

// ErrInvalidJSON wraps any failure to decode the (fence-stripped) payload
// as JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// ErrMissingField wraps a required-field validation failure. Use
// errors.Is(err, ErrMissingField) to detect the class, or inspect the
// message for which field.
var ErrMissingField = errors.New("missing required field")

// ErrUnknownActionKind wraps a next_action value outside the closed
// ActionKind enum.
var ErrUnknownActionKind = errors.New("unknown action kind")

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

func unknownKind(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownActionKind, name)
}

func invalidJSON(cause error) error {
	return fmt.Errorf("%w: %v", ErrInvalidJSON, cause)
}
