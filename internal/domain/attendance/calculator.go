// Package attendance computes per-character attendance from raid records.
package attendance

import (
	"math"
	"sort"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/raidday"
)

// percentScale is the multiplier used to keep two decimals when rounding.
const percentScale = 100

// Option applies a configuration option to Calculator and MatrixBuilder.
type Option func(*options)

type options struct {
	grouper *raidday.Grouper
}

// WithGrouper sets the raid-day grouper used before computing.
func WithGrouper(g *raidday.Grouper) Option {
	return func(o *options) {
		if g != nil {
			o.grouper = g
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{grouper: raidday.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Calculator turns raid records into CharacterAttendanceStats.
type Calculator struct {
	grouper *raidday.Grouper
}

// NewCalculator creates a calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	o := buildOptions(opts)
	return &Calculator{grouper: o.grouper}
}

// Grouper returns the raid-day grouper used by the calculator.
func (c *Calculator) Grouper() *raidday.Grouper { return c.grouper }

// Calculate sorts and merges records into raid days, then computes stats.
func (c *Calculator) Calculate(records []model.RaidRecord) []model.CharacterAttendanceStats {
	return Compute(c.grouper.Merge(raidday.SortRecords(records)))
}

// Compute derives stats from records already merged into ascending raid days.
//
// The first record a character appears in anchors them; only raid days on or
// after the anchor count toward their total. Present and Benched both count as
// attended. The result is sorted by name.
func Compute(merged []model.RaidRecord) []model.CharacterAttendanceStats {
	if len(merged) == 0 {
		return []model.CharacterAttendanceStats{}
	}

	anchors := make(map[string]*model.CharacterAttendanceStats)
	for _, r := range merged {
		for name, p := range r.Players {
			if _, ok := anchors[name]; ok {
				continue
			}
			anchors[name] = &model.CharacterAttendanceStats{
				ID:              p.CharacterID,
				Name:            name,
				FirstAttendance: r.StartTime,
			}
		}
	}

	out := make([]model.CharacterAttendanceStats, 0, len(anchors))
	for name, s := range anchors {
		for _, r := range merged {
			if r.StartTime.Before(s.FirstAttendance) {
				continue
			}
			s.TotalReports++
			if p, ok := r.Players[name]; ok && p.Presence.Attended() {
				s.ReportsAttended++
			}
		}
		s.Percentage = Percentage(s.ReportsAttended, s.TotalReports)
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Percentage returns attended/total as a percentage rounded to two decimals,
// or 0 when total is 0.
func Percentage(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(total)*percentScale*percentScale) / percentScale
}

// firstAppearance returns, per character, the index of the first record
// they appear in.
func firstAppearance(merged []model.RaidRecord) map[string]int {
	first := make(map[string]int)
	for i, r := range merged {
		for name := range r.Players {
			if _, ok := first[name]; !ok {
				first[name] = i
			}
		}
	}
	return first
}

// FilterSince drops records that start before since. A zero since keeps all.
func FilterSince(records []model.RaidRecord, since time.Time) []model.RaidRecord {
	if since.IsZero() {
		return records
	}
	out := make([]model.RaidRecord, 0, len(records))
	for _, r := range records {
		if !r.StartTime.Before(since) {
			out = append(out, r)
		}
	}
	return out
}
