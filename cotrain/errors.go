package cotrain

import "errors"

var (
	// ErrInvalidTransition is returned when a step is called in the wrong state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRunComplete is returned by Run once the artifact has been persisted.
	ErrRunComplete = errors.New("run already complete")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)
