// Package wiring builds the long-lived components both binaries share from
// a loaded configuration.
package wiring

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/rollcall/internal/adapters/cache"
	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/adapters/warcraftlogs"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/domain/raidday"
	"github.com/okian/rollcall/pkg/logger"
)

// Components holds everything Build opened. Close releases it.
type Components struct {
	Store   *repository.GormStore
	Cache   cache.Store
	Client  *warcraftlogs.Client
	Service *service.Service
}

// Build opens the store and cache, seeds counting flags from cfg and
// constructs the log API client and the service. The service is not started.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Components, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	grouper := raidday.New(raidday.WithLocation(loc), raidday.WithOffset(cfg.RaidDayOffset))

	store, err := repository.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	c := &Components{Store: store}

	if len(cfg.CountingRankIDs) > 0 {
		if err := store.SetCountingRanks(ctx, cfg.CountingRankIDs); err != nil {
			return nil, errors.Join(fmt.Errorf("seed counting ranks: %w", err), c.Close())
		}
	}
	if len(cfg.CountingTagIDs) > 0 {
		if err := store.SetCountingTags(ctx, cfg.CountingTagIDs); err != nil {
			return nil, errors.Join(fmt.Errorf("seed counting tags: %w", err), c.Close())
		}
	}

	kv, err := cache.OpenBadger(cfg.CachePath)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open cache: %w", err), c.Close())
	}
	c.Cache = kv

	c.Client = warcraftlogs.NewClient(
		warcraftlogs.WithBaseURL(cfg.WCLBaseURL),
		warcraftlogs.WithTokenURL(cfg.WCLTokenURL),
		warcraftlogs.WithCredentials(cfg.WCLClientID, cfg.WCLClientSecret),
		warcraftlogs.WithCache(kv),
		warcraftlogs.WithRateLimit(cfg.WCLRequestsPerSecond, cfg.WCLBurst),
		warcraftlogs.WithBreaker(cfg.WCLBreakerFailures, cfg.WCLBreakerOpenFor),
	)

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithGrouper(grouper),
		service.WithPaging(cfg.WCLPageSize, cfg.WCLMaxPagesPerTag),
		service.WithCacheTTLs(cfg.WCLReportTTL, cfg.WCLAttendanceTTL),
		service.WithWorkerCount(cfg.SyncWorkerCount),
		service.WithQueueSize(cfg.SyncQueueSize),
		service.WithRetry(cfg.SyncMaxAttempts, cfg.SyncRetryBackoff),
		service.WithSyncTagIDs(cfg.SyncTagIDs),
	}
	if cfg.WCLGuildID > 0 {
		opts = append(opts, service.WithLogAPI(c.Client), service.WithGuildID(cfg.WCLGuildID))
	} else {
		log.Warn(ctx, "wcl_guild_id not set; sync disabled")
	}
	c.Service = service.New(store, opts...)

	return c, nil
}

// Close releases the cache and the store.
func (c *Components) Close() error {
	var errs []error
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
