package attendance

import "errors"

// Sentinel kinds for attendance errors.
var (
	// ErrEmptyInput is returned when a caller explicitly scopes a computation
	// to an empty set. It means "nothing to compute", not a fault.
	ErrEmptyInput = errors.New("empty input")
)
