package booking

import (
	"errors"
	"fmt"
)

// Errors returned by the Coordinator. Callers match them with errors.Is; the
// wrapped text is safe to show to clients except for ErrStore, whose detail
// belongs in logs only.
var (
	ErrValidation        = errors.New("validation failed")
	ErrSlotUnavailable   = errors.New("time slot unavailable")
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStore             = errors.New("appointment store failure")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
