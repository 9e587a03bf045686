// Package repository persists guild ranks, tags, characters, reports and
// per-report presences.
package repository

import (
	"context"

	"github.com/okian/rollcall/internal/domain/model"
)

// Store provides read/write access to attendance data.
type Store interface {
	// CountingRankIDs returns the ranks that count toward attendance.
	CountingRankIDs(ctx context.Context) ([]int, error)
	// CountingTagIDs returns the guild tags whose reports count toward attendance.
	CountingTagIDs(ctx context.Context) ([]int, error)
	// Characters returns characters currently holding one of rankIDs, by name.
	// A nil rankIDs returns every character.
	Characters(ctx context.Context, rankIDs []int) ([]model.Character, error)
	// CharacterByName returns ErrNotFound for unknown names.
	CharacterByName(ctx context.Context, name string) (model.Character, error)
	// ReportByCode returns ErrNotFound for unknown codes.
	ReportByCode(ctx context.Context, code string) (model.Report, error)
	// Reports returns matching reports, oldest first, with their presences.
	Reports(ctx context.Context, f model.ReportFilter) ([]model.RaidRecord, error)

	// UpsertTags stores tags, keeping existing counting flags.
	UpsertTags(ctx context.Context, tags []model.GuildTag) error
	// UpsertCharacters stores characters and their current rank, creating
	// missing rank rows.
	UpsertCharacters(ctx context.Context, chars []model.Character) error
	// UpsertReport stores a report and presences for known characters, taking
	// each character's current rank as the rank at the time. It returns the
	// number of presences written.
	UpsertReport(ctx context.Context, r model.RaidRecord, tagID *int) (int, error)
	// SetCountingRanks marks exactly ids as counting, creating missing rows.
	SetCountingRanks(ctx context.Context, ids []int) error
	// SetCountingTags marks exactly ids as counting, creating missing rows.
	SetCountingTags(ctx context.Context, ids []int) error

	// Counts returns the number of stored characters and reports.
	Counts(ctx context.Context) (characters, reports int64, err error)
	// Ping checks the database connection.
	Ping(ctx context.Context) error
	Close() error
}
