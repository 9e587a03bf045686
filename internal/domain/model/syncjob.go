package model

import "time"

// SyncJob asks the worker pool to pull attendance from the log API and
// persist it. Jobs are delivered at least once.
type SyncJob struct {
	ID         string    // unique id, also used for idempotency
	TagIDs     []int     // guild tags to page through, in order; empty means whole guild
	ZoneID     int       // optional zone filter, 0 for all
	Since      time.Time // lower bound on report start time; zero means no bound
	Fresh      bool      // bypass the response cache
	Attempt    int       // delivery attempt, starting at 1
	EnqueuedAt time.Time
}
