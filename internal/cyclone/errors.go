package cyclone

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrInvalidThresholds is returned by NewDetector.
	ErrInvalidThresholds = errors.New("invalid thresholds")
)

// ValidationError reports detector input that cannot be analysed.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Field)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
