package model

import "time"

// Report is a stored raid report without its presences.
type Report struct {
	Code       string    `json:"code"`
	Title      string    `json:"title,omitempty"`
	StartTime  time.Time `json:"start_time"`
	ZoneID     int       `json:"zone_id"`
	GuildTagID *int      `json:"guild_tag_id"`
}

// Rank is a guild rank. Only ranks that count toward attendance are
// considered by the attendance entry points.
type Rank struct {
	ID                     int    `json:"id"`
	Name                   string `json:"name"`
	CountsTowardAttendance bool   `json:"counts_toward_attendance"`
}

// GuildTag is a report tag. Reports under a counting tag feed attendance.
type GuildTag struct {
	ID                     int    `json:"id"`
	Name                   string `json:"name"`
	CountsTowardAttendance bool   `json:"counts_toward_attendance"`
}

// ReportFilter selects stored reports and the presences loaded with them.
// Nil or empty slices do not filter, except RankIDs: a non-nil empty
// RankIDs keeps the reports but loads no presences.
type ReportFilter struct {
	Codes        []string
	TagIDs       []int
	ZoneIDs      []int
	Since        *time.Time // inclusive
	Before       *time.Time // exclusive
	CharacterIDs []int      // presences of other characters are left out
	RankIDs      []int      // presences whose rank at the time is outside this set are left out
}
