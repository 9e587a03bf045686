package attendance

import (
	"sort"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/raidday"
)

// MatrixFilters narrows the reports and characters shown in a matrix.
// Nil slices mean "use the counting defaults".
type MatrixFilters struct {
	RankIDs     []int
	ZoneIDs     []int
	GuildTagIDs []int
	Since       *time.Time
	Before      *time.Time
}

// MatchesTime reports whether t lies in [Since, Before).
func (f MatrixFilters) MatchesTime(t time.Time) bool {
	if f.Since != nil && t.Before(*f.Since) {
		return false
	}
	if f.Before != nil && !t.Before(*f.Before) {
		return false
	}
	return true
}

// MatchesZone reports whether zoneID passes the zone filter.
func (f MatrixFilters) MatchesZone(zoneID int) bool {
	if len(f.ZoneIDs) == 0 {
		return true
	}
	for _, z := range f.ZoneIDs {
		if z == zoneID {
			return true
		}
	}
	return false
}

// MatrixBuilder builds raid x character presence grids.
type MatrixBuilder struct {
	grouper *raidday.Grouper
}

// NewMatrixBuilder creates a matrix builder with configuration options.
func NewMatrixBuilder(opts ...Option) *MatrixBuilder {
	o := buildOptions(opts)
	return &MatrixBuilder{grouper: o.grouper}
}

// Build merges records into raid days and lays them out newest first.
//
// roster supplies rank and class for each character name; characters that
// appear in records but not in roster are still listed. Each row has one
// entry per column: nil before the character's first appearance, otherwise
// the column's presence (Absent when the character is missing from it).
func (b *MatrixBuilder) Build(records []model.RaidRecord, roster map[string]model.Character) model.AttendanceMatrix {
	merged := b.grouper.Merge(raidday.SortRecords(records))
	if len(merged) == 0 {
		return model.AttendanceMatrix{Raids: []model.MatrixRaid{}, Rows: []model.MatrixRow{}}
	}

	first := firstAppearance(merged)
	n := len(merged)

	raids := make([]model.MatrixRaid, n)
	for col := 0; col < n; col++ {
		r := merged[n-1-col]
		key := b.grouper.Key(r.StartTime)
		raids[col] = model.MatrixRaid{
			Code:      r.Code,
			Date:      key.Format(time.DateOnly),
			DayOfWeek: key.Weekday().String(),
		}
	}

	stats := make(map[string]model.CharacterAttendanceStats, len(first))
	for _, s := range Compute(merged) {
		stats[s.Name] = s
	}

	rows := make([]model.MatrixRow, 0, len(first))
	for name, firstIndex := range first {
		row := model.MatrixRow{
			CharacterID: stats[name].ID,
			Name:        name,
			Percentage:  stats[name].Percentage,
			Attendance:  make([]*model.Presence, n),
		}
		if c, ok := roster[name]; ok {
			row.RankID = c.RankID
			row.ClassName = c.ClassName
			if row.CharacterID == 0 {
				row.CharacterID = c.ID
			}
		}
		for col := 0; col < n; col++ {
			idx := n - 1 - col
			if idx < firstIndex {
				continue
			}
			p := model.Absent
			if pp, ok := merged[idx].Players[name]; ok {
				p = pp.Presence
			}
			row.Attendance[col] = &p
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return model.AttendanceMatrix{Raids: raids, Rows: rows}
}
