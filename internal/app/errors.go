package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrCharacterNotFound = errors.New("character not found")
	ErrReportNotFound    = errors.New("report not found")
	ErrNotStarted        = errors.New("service not started")
	// ErrSyncDisabled is returned by log API operations when no client or
	// guild is configured.
	ErrSyncDisabled = errors.New("log api sync disabled")
)
