// Package raidday groups raid records into raid days.
//
// A raid day runs from 05:00 to 04:59 the next calendar day in the
// configured timezone, so a session starting after midnight belongs to the
// previous evening.
package raidday

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

// DefaultOffset is subtracted from the local start time before truncating to a date.
const DefaultOffset = 5 * time.Hour

// codeSeparator joins the codes of merged records.
const codeSeparator = "+"

// Option applies a configuration option to the Grouper.
type Option func(*Grouper)

// WithLocation sets the timezone raid days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(g *Grouper) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithOffset sets the day-boundary offset. Negative values are ignored.
func WithOffset(offset time.Duration) Option {
	return func(g *Grouper) {
		if offset >= 0 {
			g.offset = offset
		}
	}
}

// Grouper merges records that fall on the same raid day.
type Grouper struct {
	loc    *time.Location
	offset time.Duration
}

// New creates a Grouper. Defaults to UTC and DefaultOffset.
func New(opts ...Option) *Grouper {
	g := &Grouper{
		loc:    time.UTC,
		offset: DefaultOffset,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Location returns the configured timezone.
func (g *Grouper) Location() *time.Location { return g.loc }

// Key returns midnight (in the grouper's timezone) of the raid day t belongs to.
func (g *Grouper) Key(t time.Time) time.Time {
	shifted := t.In(g.loc).Add(-g.offset)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, g.loc)
}

// Date formats the raid day of t as YYYY-MM-DD.
func (g *Grouper) Date(t time.Time) string {
	return g.Key(t).Format(time.DateOnly)
}

// SortRecords returns a copy of records stably sorted by start time ascending.
func SortRecords(records []model.RaidRecord) []model.RaidRecord {
	out := make([]model.RaidRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Merge collapses records sharing a raid day into one record each.
//
// records must be sorted ascending by start time (see SortRecords). Groups
// keep the order of their first member, so the output stays ascending.
// A merged record takes the first member's start time, joins all codes with
// "+" and keeps, per character, the entry with the highest presence
// priority (first seen on ties). Single-record groups are returned as is.
func (g *Grouper) Merge(records []model.RaidRecord) []model.RaidRecord {
	if len(records) == 0 {
		return []model.RaidRecord{}
	}

	var order []time.Time
	groups := make(map[time.Time][]model.RaidRecord)
	for _, r := range records {
		k := g.Key(r.StartTime)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	out := make([]model.RaidRecord, 0, len(order))
	for _, k := range order {
		out = append(out, mergeGroup(groups[k]))
	}
	return out
}

func mergeGroup(group []model.RaidRecord) model.RaidRecord {
	if len(group) == 1 {
		return group[0]
	}

	codes := make([]string, len(group))
	players := make(map[string]model.PlayerPresence)
	for i, r := range group {
		codes[i] = r.Code
		for name, p := range r.Players {
			if current, ok := players[name]; ok {
				players[name] = model.PreferPresence(current, p)
				continue
			}
			players[name] = p
		}
	}

	return model.RaidRecord{
		Code:      strings.Join(codes, codeSeparator),
		StartTime: group[0].StartTime,
		ZoneID:    group[0].ZoneID,
		Players:   players,
	}
}
