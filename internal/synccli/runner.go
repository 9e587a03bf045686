package synccli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// Service is the part of the attendance service a run needs.
type Service interface {
	Sync(ctx context.Context, job model.SyncJob) (int, error)
	GuildAttendance(ctx context.Context) ([]model.CharacterAttendanceStats, error)
	RankAttendance(ctx context.Context, rankIDs []int) ([]model.CharacterAttendanceStats, error)
}

// Stats summarizes one run.
type Stats struct {
	ReportsWritten int
	Characters     int
	StartTime      time.Time
	Duration       time.Duration
}

// Run syncs once unless cfg.SkipSync is set, then writes the attendance
// table to out in cfg.Format.
func Run(ctx context.Context, cfg *Config, svc Service, out io.Writer) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if err := cfg.Validate(); err != nil {
		return stats, err
	}
	log := logger.Get().Named("synccli")

	if !cfg.SkipSync {
		job := model.SyncJob{
			ID:         uuid.NewString(),
			TagIDs:     cfg.TagIDs,
			ZoneID:     cfg.ZoneID,
			Since:      cfg.Since,
			Fresh:      cfg.Fresh,
			Attempt:    1,
			EnqueuedAt: stats.StartTime,
		}
		log.Info(ctx, "syncing",
			logger.String("jobID", job.ID),
			logger.Ints("tagIDs", job.TagIDs),
			logger.Int("zoneID", job.ZoneID),
			logger.Bool("fresh", job.Fresh))

		n, err := svc.Sync(ctx, job)
		if err != nil {
			return stats, fmt.Errorf("sync failed: %w", err)
		}
		stats.ReportsWritten = n
	}

	var (
		rows []model.CharacterAttendanceStats
		err  error
	)
	if len(cfg.RankIDs) > 0 {
		rows, err = svc.RankAttendance(ctx, cfg.RankIDs)
	} else {
		rows, err = svc.GuildAttendance(ctx)
	}
	if err != nil {
		return stats, fmt.Errorf("attendance failed: %w", err)
	}
	stats.Characters = len(rows)

	if problems := verify(rows); len(problems) > 0 {
		for _, p := range problems {
			log.Warn(ctx, "attendance consistency warning", logger.String("problem", p))
		}
	}

	if err := write(out, cfg.Format, rows); err != nil {
		return stats, fmt.Errorf("write output: %w", err)
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "run completed",
		logger.Int("reportsWritten", stats.ReportsWritten),
		logger.Int("characters", stats.Characters),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// verify reports rows whose counts contradict each other.
func verify(rows []model.CharacterAttendanceStats) []string {
	var problems []string
	for i, r := range rows {
		if r.ReportsAttended > r.TotalReports {
			problems = append(problems, fmt.Sprintf("%s attended %d of %d reports", r.Name, r.ReportsAttended, r.TotalReports))
		}
		if r.Percentage < 0 || r.Percentage > 100 {
			problems = append(problems, fmt.Sprintf("%s has percentage %.2f", r.Name, r.Percentage))
		}
		if i > 0 && rows[i-1].Name > r.Name {
			problems = append(problems, fmt.Sprintf("rows not sorted by name at %s", r.Name))
		}
	}
	return problems
}
