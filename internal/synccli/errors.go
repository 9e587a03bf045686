package synccli

import "errors"

var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrBadID         = errors.New("invalid id")
	ErrBadSince      = errors.New("invalid since")
)
