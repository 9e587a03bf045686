package warcraftlogs

import (
	"errors"
	"fmt"
)

// Sentinel kinds for log API errors.
var (
	// ErrGuildNotFound means the API has no guild for the requested id.
	ErrGuildNotFound = errors.New("guild not found")
	// ErrTransport is the kind of every *TransportError.
	ErrTransport = errors.New("log api transport error")
	// ErrUnorderedPage means a partition returned a record newer than the one
	// before it, so a since-bound cut-off could drop records.
	ErrUnorderedPage = errors.New("log api returned records out of order")
)

// TransportError describes a failed exchange with the log API: a non-2xx
// status, GraphQL errors in the body, an undecodable body, a network failure
// or an open circuit.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Body)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *TransportError) Unwrap() error { return e.Err }

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
