package model

import "time"

// CharacterAttendanceStats is the attendance summary for one character.
type CharacterAttendanceStats struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	FirstAttendance time.Time `json:"first_attendance"`
	TotalReports    int       `json:"total_reports"`
	ReportsAttended int       `json:"reports_attended"`
	Percentage      float64   `json:"percentage"`
}

// AttendanceExport is the shape consumed by the export job.
type AttendanceExport struct {
	ID         int               `json:"id"`
	Name       string            `json:"name"`
	Attendance AttendanceSummary `json:"attendance"`
}

// AttendanceSummary is the nested attendance block of AttendanceExport.
type AttendanceSummary struct {
	FirstAttendance string  `json:"first_attendance"`
	Attended        int     `json:"attended"`
	Total           int     `json:"total"`
	Percentage      float64 `json:"percentage"`
}

// Export converts the stats into the export job shape.
func (s CharacterAttendanceStats) Export() AttendanceExport {
	return AttendanceExport{
		ID:   s.ID,
		Name: s.Name,
		Attendance: AttendanceSummary{
			FirstAttendance: s.FirstAttendance.UTC().Format(time.RFC3339),
			Attended:        s.ReportsAttended,
			Total:           s.TotalReports,
			Percentage:      s.Percentage,
		},
	}
}

// MatrixRaid is one column of the attendance matrix.
type MatrixRaid struct {
	Code      string `json:"code"`
	Date      string `json:"date"`
	DayOfWeek string `json:"day_of_week"`
}

// MatrixRow is one character's line in the attendance matrix. Attendance is
// aligned with AttendanceMatrix.Raids; nil entries precede the first appearance.
type MatrixRow struct {
	CharacterID int         `json:"character_id"`
	Name        string      `json:"name"`
	RankID      *int        `json:"rank_id"`
	ClassName   string      `json:"class_name,omitempty"`
	Percentage  float64     `json:"percentage"`
	Attendance  []*Presence `json:"attendance"`
}

// AttendanceMatrix is the raid x character presence grid.
type AttendanceMatrix struct {
	Raids []MatrixRaid `json:"raids"`
	Rows  []MatrixRow  `json:"rows"`
}
