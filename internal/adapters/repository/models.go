package repository

import "time"

type rankRow struct {
	ID                     int `gorm:"primaryKey;autoIncrement:false"`
	Name                   string
	CountsTowardAttendance bool `gorm:"not null;default:false"`
}

func (rankRow) TableName() string { return "ranks" }

type guildTagRow struct {
	ID                     int `gorm:"primaryKey;autoIncrement:false"`
	Name                   string
	CountsTowardAttendance bool `gorm:"not null;default:false"`
}

func (guildTagRow) TableName() string { return "guild_tags" }

type characterRow struct {
	ID        int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"uniqueIndex;not null"`
	ClassName string
	RankID    *int `gorm:"index"`
}

func (characterRow) TableName() string { return "characters" }

type reportRow struct {
	Code       string `gorm:"primaryKey"`
	Title      string
	StartTime  time.Time `gorm:"index;not null"`
	ZoneID     int       `gorm:"index"`
	GuildTagID *int      `gorm:"index"`
}

func (reportRow) TableName() string { return "reports" }

type characterReportRow struct {
	CharacterID int    `gorm:"primaryKey;autoIncrement:false"`
	ReportCode  string `gorm:"primaryKey;index"`
	Presence    int    `gorm:"not null"`
	RankID      *int
}

func (characterReportRow) TableName() string { return "character_report" }

// presenceRow is the join of character_report with characters.
type presenceRow struct {
	ReportCode  string
	CharacterID int
	Name        string
	Presence    int
	RankID      *int
}
