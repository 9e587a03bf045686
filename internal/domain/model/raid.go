// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"time"
)

// PlayerPresence is one character's entry in a raid record.
type PlayerPresence struct {
	CharacterID int      `json:"character_id"`
	Presence    Presence `json:"presence"`
	// RankID is the rank held at the time of the record, nil when unknown.
	RankID *int `json:"rank_id,omitempty"`
}

// RaidRecord is one raid session, or several merged sessions of one raid day.
// Merged records carry a composite Code joined with "+".
type RaidRecord struct {
	Code      string                    `json:"code"`
	StartTime time.Time                 `json:"start_time"`
	ZoneID    int                       `json:"zone_id,omitempty"`
	Players   map[string]PlayerPresence `json:"players"`
}

// Clone returns a copy whose Players map can be modified independently.
func (r RaidRecord) Clone() RaidRecord {
	out := r
	out.Players = make(map[string]PlayerPresence, len(r.Players))
	for name, p := range r.Players {
		out.Players[name] = p
	}
	return out
}

// PlayerNames returns the record's character names in ascending order.
func (r RaidRecord) PlayerNames() []string {
	names := make([]string, 0, len(r.Players))
	for name := range r.Players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Character is a roster member as known by the persistence layer.
type Character struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ClassName string `json:"class_name,omitempty"`
	// RankID is the currently held rank.
	RankID *int `json:"rank_id,omitempty"`
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(v int) *int { return &v }
