package service

import (
	"context"
	"fmt"

	"github.com/okian/rollcall/internal/adapters/warcraftlogs"
	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

// Sync refreshes the roster and tags, then streams the job's reports from
// the log API into the store. A code already written by an earlier tag of
// the same job is skipped. It returns the number of reports written.
func (s *Service) Sync(ctx context.Context, job model.SyncJob) (int, error) { //nolint:gocritic // jobs travel by value
	if s.api == nil || s.guildID == 0 {
		return 0, ErrSyncDisabled
	}

	roster, err := s.api.Roster(ctx, s.guildID, s.attendanceTTL, job.Fresh)
	if err != nil {
		return 0, fmt.Errorf("sync roster: %w", err)
	}
	if err := s.store.UpsertCharacters(ctx, roster); err != nil {
		return 0, fmt.Errorf("sync roster: %w", err)
	}

	tags, err := s.api.Tags(ctx, s.guildID, s.reportTTL)
	if err != nil {
		return 0, fmt.Errorf("sync tags: %w", err)
	}
	stored := make([]model.GuildTag, len(tags))
	for i, t := range tags {
		stored[i] = model.GuildTag{ID: t.ID, Name: t.Name}
	}
	if err := s.store.UpsertTags(ctx, stored); err != nil {
		return 0, fmt.Errorf("sync tags: %w", err)
	}

	partitions := job.TagIDs
	if len(partitions) == 0 {
		partitions = []int{0}
	}

	seen := dedupe.NewCodeSet()
	written := 0
	for _, tag := range partitions {
		q := warcraftlogs.Query{
			GuildID:  s.guildID,
			ZoneID:   job.ZoneID,
			Since:    job.Since,
			PageSize: s.pageSize,
			TTL:      s.attendanceTTL,
			Fresh:    job.Fresh,
		}
		var tagID *int
		if tag != 0 {
			q.TagIDs = []int{tag}
			tagID = model.IntPtr(tag)
		}

		for rec, err := range warcraftlogs.NewSource(s.api, q).Lazy(ctx) {
			if err != nil {
				return written, fmt.Errorf("sync tag %d: %w", tag, err)
			}
			if seen.SeenAndRecord(ctx, rec.Code) {
				continue
			}
			if _, err := s.store.UpsertReport(ctx, rec, tagID); err != nil {
				return written, fmt.Errorf("sync report %s: %w", rec.Code, err)
			}
			written++
		}
		s.logger.Debug(ctx, "tag synced",
			logger.String("job_id", job.ID),
			logger.Int("tag", tag),
			logger.Int("written", written),
		)
	}
	return written, nil
}
