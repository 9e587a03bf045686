package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/metrics"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// inChunk bounds the number of bind variables per IN clause.
const inChunk = 500

// GormStore implements Store on gorm.
type GormStore struct {
	db *gorm.DB
}

// Open connects to driver/dsn and migrates the schema.
func Open(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get database instance: %w", err)
		}
		// one connection so an in-memory database is shared by every query
		sqlDB.SetMaxOpenConns(1)
	}

	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewGormStore wraps an open connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates every table.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(
		&rankRow{},
		&guildTagRow{},
		&characterRow{},
		&reportRow{},
		&characterReportRow{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func observe(query string, start time.Time) {
	metrics.RecordStoreQueryLatency(query, float64(time.Since(start).Microseconds())/1000)
}

func (s *GormStore) CountingRankIDs(ctx context.Context) ([]int, error) {
	defer observe("counting_ranks", time.Now())
	var ids []int
	if err := s.db.WithContext(ctx).Model(&rankRow{}).
		Where("counts_toward_attendance = ?", true).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list counting ranks: %w", err)
	}
	return ids, nil
}

func (s *GormStore) CountingTagIDs(ctx context.Context) ([]int, error) {
	defer observe("counting_tags", time.Now())
	var ids []int
	if err := s.db.WithContext(ctx).Model(&guildTagRow{}).
		Where("counts_toward_attendance = ?", true).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list counting tags: %w", err)
	}
	return ids, nil
}

func (s *GormStore) Characters(ctx context.Context, rankIDs []int) ([]model.Character, error) {
	defer observe("characters", time.Now())
	q := s.db.WithContext(ctx).Model(&characterRow{})
	if rankIDs != nil {
		if len(rankIDs) == 0 {
			return []model.Character{}, nil
		}
		q = q.Where("rank_id IN ?", rankIDs)
	}
	var rows []characterRow
	if err := q.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	out := make([]model.Character, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *GormStore) CharacterByName(ctx context.Context, name string) (model.Character, error) {
	defer observe("character_by_name", time.Now())
	var row characterRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Character{}, fmt.Errorf("character %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return model.Character{}, fmt.Errorf("get character: %w", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) ReportByCode(ctx context.Context, code string) (model.Report, error) {
	defer observe("report_by_code", time.Now())
	var row reportRow
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Report{}, fmt.Errorf("report %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("get report: %w", err)
	}
	return model.Report{
		Code:       row.Code,
		Title:      row.Title,
		StartTime:  row.StartTime.UTC(),
		ZoneID:     row.ZoneID,
		GuildTagID: row.GuildTagID,
	}, nil
}

// Reports loads matching reports and then their presences in chunks.
// Reports with no matching presence are still returned with empty Players.
func (s *GormStore) Reports(ctx context.Context, f model.ReportFilter) ([]model.RaidRecord, error) {
	defer observe("reports", time.Now())
	q := s.db.WithContext(ctx).Model(&reportRow{})
	if len(f.Codes) > 0 {
		q = q.Where("code IN ?", f.Codes)
	}
	if len(f.TagIDs) > 0 {
		q = q.Where("guild_tag_id IN ?", f.TagIDs)
	}
	if len(f.ZoneIDs) > 0 {
		q = q.Where("zone_id IN ?", f.ZoneIDs)
	}
	if f.Since != nil {
		q = q.Where("start_time >= ?", f.Since.UTC())
	}
	if f.Before != nil {
		q = q.Where("start_time < ?", f.Before.UTC())
	}

	var rows []reportRow
	if err := q.Order("start_time, code").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	out := make([]model.RaidRecord, len(rows))
	index := make(map[string]int, len(rows))
	codes := make([]string, len(rows))
	for i, r := range rows {
		out[i] = model.RaidRecord{
			Code:      r.Code,
			StartTime: r.StartTime.UTC(),
			ZoneID:    r.ZoneID,
			Players:   map[string]model.PlayerPresence{},
		}
		index[r.Code] = i
		codes[i] = r.Code
	}

	for start := 0; start < len(codes); start += inChunk {
		end := min(start+inChunk, len(codes))
		pq := s.db.WithContext(ctx).Table("character_report AS cr").
			Select("cr.report_code, cr.character_id, c.name, cr.presence, cr.rank_id").
			Joins("JOIN characters c ON c.id = cr.character_id").
			Where("cr.report_code IN ?", codes[start:end])
		if len(f.CharacterIDs) > 0 {
			pq = pq.Where("cr.character_id IN ?", f.CharacterIDs)
		}
		if f.RankIDs != nil {
			if len(f.RankIDs) == 0 {
				continue
			}
			pq = pq.Where("cr.rank_id IN ?", f.RankIDs)
		}
		var presences []presenceRow
		if err := pq.Scan(&presences).Error; err != nil {
			return nil, fmt.Errorf("list presences: %w", err)
		}
		for _, p := range presences {
			out[index[p.ReportCode]].Players[p.Name] = model.PlayerPresence{
				CharacterID: p.CharacterID,
				Presence:    model.Presence(p.Presence),
				RankID:      p.RankID,
			}
		}
	}
	return out, nil
}

func (s *GormStore) UpsertTags(ctx context.Context, tags []model.GuildTag) error {
	if len(tags) == 0 {
		return nil
	}
	rows := make([]guildTagRow, len(tags))
	for i, t := range tags {
		rows[i] = guildTagRow{ID: t.ID, Name: t.Name, CountsTowardAttendance: t.CountsTowardAttendance}
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert tags: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertCharacters(ctx context.Context, chars []model.Character) error {
	if len(chars) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ranks []rankRow
		seen := map[int]bool{}
		rows := make([]characterRow, len(chars))
		for i, c := range chars {
			rows[i] = characterRow{ID: c.ID, Name: c.Name, ClassName: c.ClassName, RankID: c.RankID}
			if c.RankID != nil && !seen[*c.RankID] {
				seen[*c.RankID] = true
				ranks = append(ranks, rankRow{ID: *c.RankID, Name: fmt.Sprintf("Rank %d", *c.RankID)})
			}
		}
		if len(ranks) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ranks).Error; err != nil {
				return fmt.Errorf("ensure ranks: %w", err)
			}
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "class_name", "rank_id"}),
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("upsert characters: %w", err)
		}
		return nil
	})
}

func (s *GormStore) UpsertReport(ctx context.Context, r model.RaidRecord, tagID *int) (int, error) {
	written := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := reportRow{Code: r.Code, StartTime: r.StartTime.UTC(), ZoneID: r.ZoneID, GuildTagID: tagID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"start_time", "zone_id", "guild_tag_id"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert report: %w", err)
		}

		names := r.PlayerNames()
		if len(names) == 0 {
			return nil
		}
		var chars []characterRow
		if err := tx.Where("name IN ?", names).Find(&chars).Error; err != nil {
			return fmt.Errorf("resolve characters: %w", err)
		}
		if len(chars) == 0 {
			return nil
		}
		pivots := make([]characterReportRow, 0, len(chars))
		for _, c := range chars {
			pivots = append(pivots, characterReportRow{
				CharacterID: c.ID,
				ReportCode:  r.Code,
				Presence:    int(r.Players[c.Name].Presence),
				RankID:      c.RankID,
			})
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "character_id"}, {Name: "report_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"presence", "rank_id"}),
		}).Create(&pivots).Error; err != nil {
			return fmt.Errorf("upsert presences: %w", err)
		}
		written = len(pivots)
		return nil
	})
	return written, err
}

func (s *GormStore) SetCountingRanks(ctx context.Context, ids []int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setCounting(tx, &rankRow{}, "Rank", ids, func(id int) any {
			return &rankRow{ID: id, Name: fmt.Sprintf("Rank %d", id)}
		})
	})
}

func (s *GormStore) SetCountingTags(ctx context.Context, ids []int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setCounting(tx, &guildTagRow{}, "Tag", ids, func(id int) any {
			return &guildTagRow{ID: id, Name: fmt.Sprintf("Tag %d", id)}
		})
	})
}

func setCounting(tx *gorm.DB, table any, kind string, ids []int, newRow func(int) any) error {
	for _, id := range ids {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(newRow(id)).Error; err != nil {
			return fmt.Errorf("ensure %s %d: %w", kind, id, err)
		}
	}
	if err := tx.Model(table).Where("1 = 1").Update("counts_toward_attendance", false).Error; err != nil {
		return fmt.Errorf("reset %s flags: %w", kind, err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(table).Where("id IN ?", ids).Update("counts_toward_attendance", true).Error; err != nil {
		return fmt.Errorf("set %s flags: %w", kind, err)
	}
	return nil
}

func (s *GormStore) Counts(ctx context.Context) (int64, int64, error) {
	var chars, reports int64
	if err := s.db.WithContext(ctx).Model(&characterRow{}).Count(&chars).Error; err != nil {
		return 0, 0, fmt.Errorf("count characters: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&reportRow{}).Count(&reports).Error; err != nil {
		return 0, 0, fmt.Errorf("count reports: %w", err)
	}
	return chars, reports, nil
}

func (r characterRow) toModel() model.Character {
	return model.Character{ID: r.ID, Name: r.Name, ClassName: r.ClassName, RankID: r.RankID}
}
