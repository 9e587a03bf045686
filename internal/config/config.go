// Package config defines service configuration and its loading.
//
// Conventions:
// - New returns a Config holding every default.
// - Load layers a YAML file and ROLLCALL_ env vars over the defaults.
// - Errors returned by this package wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0s"`

	// Timezone and RaidDayOffset decide which calendar day a raid belongs to.
	Timezone      string        `koanf:"timezone" validate:"required,timezone"`
	RaidDayOffset time.Duration `koanf:"raid_day_offset" validate:"gte=0s,lt=24h"`

	DBDriver string `koanf:"db_driver" validate:"oneof=sqlite postgres"`
	DBDSN    string `koanf:"db_dsn" validate:"required"`

	// CachePath is the badger directory. Empty keeps the cache in memory.
	CachePath string `koanf:"cache_path"`

	WCLBaseURL           string        `koanf:"wcl_base_url" validate:"required,url"`
	WCLTokenURL          string        `koanf:"wcl_token_url" validate:"required,url"`
	WCLClientID          string        `koanf:"wcl_client_id"`
	WCLClientSecret      string        `koanf:"wcl_client_secret" validate:"required_with=WCLClientID"`
	WCLGuildID           int           `koanf:"wcl_guild_id" validate:"gte=0"`
	WCLPageSize          int           `koanf:"wcl_page_size" validate:"gte=1,lte=100"`
	WCLMaxPagesPerTag    int           `koanf:"wcl_max_pages_per_tag" validate:"gte=1"`
	WCLReportTTL         time.Duration `koanf:"wcl_report_ttl" validate:"gte=0s"`
	WCLAttendanceTTL     time.Duration `koanf:"wcl_attendance_ttl" validate:"gte=0s"`
	WCLRequestsPerSecond float64       `koanf:"wcl_requests_per_second" validate:"gte=0"`
	WCLBurst             int           `koanf:"wcl_burst" validate:"gte=1"`
	WCLBreakerFailures   uint32        `koanf:"wcl_breaker_failures" validate:"gte=1"`
	WCLBreakerOpenFor    time.Duration `koanf:"wcl_breaker_open_for" validate:"gt=0s"`

	SyncWorkerCount  int           `koanf:"sync_worker_count" validate:"gte=1"`
	SyncQueueSize    int           `koanf:"sync_queue_size" validate:"gte=1"`
	SyncMaxAttempts  int           `koanf:"sync_max_attempts" validate:"gte=1"`
	SyncRetryBackoff time.Duration `koanf:"sync_retry_backoff" validate:"gt=0s"`
	// SyncTagIDs are the tags synced when a job names none.
	SyncTagIDs []int `koanf:"sync_tag_ids" validate:"dive,gt=0"`

	// CountingRankIDs and CountingTagIDs are written to the store at startup
	// when set. Empty leaves the stored flags untouched.
	CountingRankIDs []int `koanf:"counting_rank_ids" validate:"dive,gte=0"`
	CountingTagIDs  []int `koanf:"counting_tag_ids" validate:"dive,gt=0"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		ShutdownTimeout:      10 * time.Second,
		Timezone:             "UTC",
		RaidDayOffset:        5 * time.Hour,
		DBDriver:             "sqlite",
		DBDSN:                "rollcall.db",
		WCLBaseURL:           "https://www.warcraftlogs.com/api/v2/client",
		WCLTokenURL:          "https://www.warcraftlogs.com/oauth/token",
		WCLPageSize:          100,
		WCLMaxPagesPerTag:    10,
		WCLReportTTL:         5 * time.Minute,
		WCLAttendanceTTL:     12 * time.Hour,
		WCLRequestsPerSecond: 2,
		WCLBurst:             4,
		WCLBreakerFailures:   5,
		WCLBreakerOpenFor:    30 * time.Second,
		SyncWorkerCount:      runtime.NumCPU(),
		SyncQueueSize:        64,
		SyncMaxAttempts:      3,
		SyncRetryBackoff:     2 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Location returns the raid-day timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}
