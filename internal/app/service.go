// Package service wires the attendance store, the log API and the sync job
// runner into the operations exposed by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	syncqueue "github.com/okian/rollcall/internal/adapters/mq/queue"
	workerpool "github.com/okian/rollcall/internal/adapters/mq/worker"
	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/warcraftlogs"
	"github.com/okian/rollcall/internal/domain/attendance"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/raidday"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Default TTLs for cached log API responses.
const (
	DefaultReportTTL     = 5 * time.Minute
	DefaultAttendanceTTL = 12 * time.Hour
)

// LogAPI is the part of the log API client the service uses.
type LogAPI interface {
	warcraftlogs.Fetcher
	Roster(ctx context.Context, guildID int, ttl time.Duration, fresh bool) ([]model.Character, error)
	Tags(ctx context.Context, guildID int, ttl time.Duration) ([]warcraftlogs.GuildTag, error)
}

// Service implements the API dependencies for the attendance system.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	api        LogAPI
	calculator *attendance.Calculator
	matrix     *attendance.MatrixBuilder
	queue      *syncqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	guildID        int
	syncTagIDs     []int
	pageSize       int
	maxPagesPerTag int
	reportTTL      time.Duration
	attendanceTTL  time.Duration
	workerCount    int
	queueSize      int
	maxAttempts    int
	retryBackoff   time.Duration

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogAPI sets the log API client used by sync jobs and external queries.
func WithLogAPI(api LogAPI) Option {
	return func(s *Service) { s.api = api }
}

// WithGuildID sets the guild whose reports are synced.
func WithGuildID(id int) Option {
	return func(s *Service) { s.guildID = id }
}

// WithSyncTagIDs sets the tags synced when a job does not name any.
func WithSyncTagIDs(ids []int) Option {
	return func(s *Service) { s.syncTagIDs = append([]int(nil), ids...) }
}

// WithGrouper sets the raid-day grouper shared by statistics and matrices.
func WithGrouper(g *raidday.Grouper) Option {
	return func(s *Service) {
		if g != nil {
			s.calculator = attendance.NewCalculator(attendance.WithGrouper(g))
			s.matrix = attendance.NewMatrixBuilder(attendance.WithGrouper(g))
		}
	}
}

// WithPaging sets the log API page size and the per-tag page cap of
// multi-tag queries.
func WithPaging(pageSize, maxPagesPerTag int) Option {
	return func(s *Service) {
		if pageSize > 0 {
			s.pageSize = pageSize
		}
		if maxPagesPerTag > 0 {
			s.maxPagesPerTag = maxPagesPerTag
		}
	}
}

// WithCacheTTLs sets how long report listings and attendance pages are cached.
func WithCacheTTLs(reports, attendance time.Duration) Option {
	return func(s *Service) {
		if reports > 0 {
			s.reportTTL = reports
		}
		if attendance > 0 {
			s.attendanceTTL = attendance
		}
	}
}

// WithWorkerCount sets the number of sync workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of waiting sync jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRetry sets how often a failing sync job is delivered and the first
// backoff between deliveries.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if backoff > 0 {
			s.retryBackoff = backoff
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		calculator:     attendance.NewCalculator(),
		matrix:         attendance.NewMatrixBuilder(),
		pageSize:       warcraftlogs.DefaultPageSize,
		maxPagesPerTag: warcraftlogs.DefaultMaxPagesPerTag,
		reportTTL:      DefaultReportTTL,
		attendanceTTL:  DefaultAttendanceTTL,
		workerCount:    runtime.NumCPU(),
		queueSize:      64,
		maxAttempts:    3,
		retryBackoff:   time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start creates the sync queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.queue = syncqueue.NewInMemoryQueue(syncqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s,
		workerpool.WithMaxAttempts(s.maxAttempts),
		workerpool.WithRetryBackoff(s.retryBackoff),
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "attendance service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("guildID", s.guildID),
		logger.Ints("syncTagIDs", s.syncTagIDs),
	)
	return nil
}

// Stop drains the sync queue and stops the workers. The store is left open.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "attendance service stopped")
}

// SyncRequest describes a sync job submitted by a caller.
type SyncRequest struct {
	TagIDs []int
	ZoneID int
	Since  time.Time
	Fresh  bool
}

// EnqueueSync queues a sync job and returns its id.
func (s *Service) EnqueueSync(ctx context.Context, req SyncRequest) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", ErrNotStarted
	}
	if s.api == nil || s.guildID == 0 {
		return "", ErrSyncDisabled
	}

	tags := req.TagIDs
	if len(tags) == 0 {
		tags = s.syncTagIDs
	}
	job := model.SyncJob{
		ID:         uuid.NewString(),
		TagIDs:     append([]int(nil), tags...),
		ZoneID:     req.ZoneID,
		Since:      req.Since,
		Fresh:      req.Fresh,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue sync job: %w", err)
	}
	metrics.RecordSyncJob("enqueued")
	s.logger.Debug(ctx, "sync job enqueued",
		logger.String("job_id", job.ID),
		logger.Ints("tags", job.TagIDs),
	)
	return job.ID, nil
}

// QueryExternal pages through the merged, newest-first reports of tagIDs
// straight from the log API. Empty tagIDs uses the configured sync tags.
func (s *Service) QueryExternal(ctx context.Context, tagIDs []int, page, perPage int) (warcraftlogs.Page, error) {
	if s.api == nil || s.guildID == 0 {
		return warcraftlogs.Page{}, ErrSyncDisabled
	}
	if len(tagIDs) == 0 {
		tagIDs = s.syncTagIDs
	}
	src := warcraftlogs.NewSource(s.api, warcraftlogs.Query{
		GuildID:        s.guildID,
		TagIDs:         tagIDs,
		MaxPagesPerTag: s.maxPagesPerTag,
		TTL:            s.reportTTL,
	})
	out, err := src.QueryMultiTag(ctx, page, perPage)
	if err != nil {
		return warcraftlogs.Page{}, fmt.Errorf("query external reports: %w", err)
	}
	return out, nil
}

// Ready reports whether the service can answer requests.
func (s *Service) Ready(ctx context.Context) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"guildID":     s.guildID,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
	}
	if chars, reports, err := s.store.Counts(ctx); err == nil {
		stats["characters"] = chars
		stats["reports"] = reports
		metrics.UpdateCharactersTracked(int(chars))
	}
	if b, ok := s.api.(interface{ BreakerState() string }); ok {
		stats["breakerState"] = b.BreakerState()
	}
	return stats
}
