// Package synccli runs one sync pass in-process and prints guild attendance.
package synccli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Output formats.
const (
	FormatTable  = "table"
	FormatJSON   = "json"
	FormatExport = "export"
)

// Config holds the options of one run.
type Config struct {
	TagIDs   []int     // tags to sync; empty uses the configured sync tags
	ZoneID   int       // zone filter, 0 for all
	Since    time.Time // zero means no lower bound
	Fresh    bool      // bypass the response cache
	RankIDs  []int     // print these ranks instead of the counting ranks
	Format   string
	SkipSync bool // only print what the store already holds
}

// Validate checks the output format.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatTable, FormatJSON, FormatExport:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, c.Format)
	}
}

// ParseIDs parses a comma separated id list. Blank input gives nil.
func ParseIDs(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrBadID, p)
		}
		out = append(out, id)
	}
	return out, nil
}

// ParseSince accepts a date (2006-01-02) or an RFC 3339 timestamp.
func ParseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadSince, raw)
	}
	return t, nil
}
