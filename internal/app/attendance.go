package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/attendance"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/metrics"
)

// GuildAttendance returns stats for every character holding a counting rank,
// over reports under counting tags.
func (s *Service) GuildAttendance(ctx context.Context) ([]model.CharacterAttendanceStats, error) {
	defer observe("guild", time.Now())
	ranks, err := s.store.CountingRankIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("guild attendance: %w", err)
	}
	return s.rosterAttendance(ctx, ranks, nil)
}

// RankAttendance is GuildAttendance for the given ranks. An empty rank set
// returns attendance.ErrEmptyInput.
func (s *Service) RankAttendance(ctx context.Context, rankIDs []int) ([]model.CharacterAttendanceStats, error) {
	defer observe("ranks", time.Now())
	if len(rankIDs) == 0 {
		return nil, fmt.Errorf("rank attendance: %w", attendance.ErrEmptyInput)
	}
	return s.rosterAttendance(ctx, rankIDs, nil)
}

// CharacterAttendance returns the stats of one character over counting
// reports in which the character held a counting rank.
func (s *Service) CharacterAttendance(ctx context.Context, name string) ([]model.CharacterAttendanceStats, error) {
	defer observe("character", time.Now())
	c, err := s.store.CharacterByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("character attendance: %w", err)
	}

	ranks, err := s.store.CountingRankIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("character attendance: %w", err)
	}
	tags, err := s.store.CountingTagIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("character attendance: %w", err)
	}
	if len(ranks) == 0 || len(tags) == 0 {
		return []model.CharacterAttendanceStats{}, nil
	}

	records, err := s.store.Reports(ctx, model.ReportFilter{
		TagIDs:       tags,
		CharacterIDs: []int{c.ID},
		RankIDs:      ranks,
	})
	if err != nil {
		return nil, fmt.Errorf("character attendance: %w", err)
	}
	return s.calculator.Calculate(records), nil
}

// ReportAttendance returns guild attendance for the characters listed in
// one report. A report outside the counting tags yields an empty result.
func (s *Service) ReportAttendance(ctx context.Context, code string) ([]model.CharacterAttendanceStats, error) {
	defer observe("report", time.Now())
	r, err := s.store.ReportByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("report attendance: %w", err)
	}

	tags, err := s.store.CountingTagIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("report attendance: %w", err)
	}
	if r.GuildTagID == nil || !slices.Contains(tags, *r.GuildTagID) {
		return []model.CharacterAttendanceStats{}, nil
	}

	ranks, err := s.store.CountingRankIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("report attendance: %w", err)
	}
	if len(ranks) == 0 {
		return []model.CharacterAttendanceStats{}, nil
	}

	inReport, err := s.store.Reports(ctx, model.ReportFilter{Codes: []string{code}, RankIDs: ranks})
	if err != nil {
		return nil, fmt.Errorf("report attendance: %w", err)
	}
	ids := make([]int, 0)
	for _, rec := range inReport {
		for _, p := range rec.Players {
			ids = append(ids, p.CharacterID)
		}
	}
	if len(ids) == 0 {
		return []model.CharacterAttendanceStats{}, nil
	}
	return s.rosterAttendance(ctx, ranks, ids)
}

// rosterAttendance computes stats over counting reports for characters
// currently holding one of ranks, optionally narrowed to ids.
func (s *Service) rosterAttendance(ctx context.Context, ranks, ids []int) ([]model.CharacterAttendanceStats, error) {
	if len(ranks) == 0 {
		return []model.CharacterAttendanceStats{}, nil
	}
	tags, err := s.store.CountingTagIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting tags: %w", err)
	}
	if len(tags) == 0 {
		return []model.CharacterAttendanceStats{}, nil
	}

	chars, err := s.store.Characters(ctx, ranks)
	if err != nil {
		return nil, fmt.Errorf("characters: %w", err)
	}
	charIDs := make([]int, 0, len(chars))
	for _, c := range chars {
		if ids == nil || slices.Contains(ids, c.ID) {
			charIDs = append(charIDs, c.ID)
		}
	}
	if len(charIDs) == 0 {
		return []model.CharacterAttendanceStats{}, nil
	}

	records, err := s.store.Reports(ctx, model.ReportFilter{
		TagIDs:       tags,
		CharacterIDs: charIDs,
		RankIDs:      ranks,
	})
	if err != nil {
		return nil, fmt.Errorf("reports: %w", err)
	}
	return s.calculator.Calculate(records), nil
}

// Matrix builds the attendance matrix. Omitted rank or tag ids fall back to
// the counting ones.
func (s *Service) Matrix(ctx context.Context, f attendance.MatrixFilters) (model.AttendanceMatrix, error) {
	defer observe("matrix", time.Now())
	empty := model.AttendanceMatrix{Raids: []model.MatrixRaid{}, Rows: []model.MatrixRow{}}

	ranks := f.RankIDs
	if len(ranks) == 0 {
		var err error
		if ranks, err = s.store.CountingRankIDs(ctx); err != nil {
			return empty, fmt.Errorf("matrix: %w", err)
		}
	}
	tags := f.GuildTagIDs
	if len(tags) == 0 {
		var err error
		if tags, err = s.store.CountingTagIDs(ctx); err != nil {
			return empty, fmt.Errorf("matrix: %w", err)
		}
	}
	if len(ranks) == 0 || len(tags) == 0 {
		return empty, nil
	}

	chars, err := s.store.Characters(ctx, ranks)
	if err != nil {
		return empty, fmt.Errorf("matrix: %w", err)
	}
	if len(chars) == 0 {
		return empty, nil
	}
	roster := make(map[string]model.Character, len(chars))
	ids := make([]int, len(chars))
	for i, c := range chars {
		roster[c.Name] = c
		ids[i] = c.ID
	}

	records, err := s.store.Reports(ctx, model.ReportFilter{
		TagIDs:       tags,
		ZoneIDs:      f.ZoneIDs,
		Since:        f.Since,
		Before:       f.Before,
		CharacterIDs: ids,
		RankIDs:      ranks,
	})
	if err != nil {
		return empty, fmt.Errorf("matrix: %w", err)
	}
	return s.matrix.Build(records, roster), nil
}

func observe(entryPoint string, start time.Time) {
	metrics.RecordAggregationLatency(entryPoint, float64(time.Since(start).Microseconds())/1000)
}
