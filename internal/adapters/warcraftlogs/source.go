package warcraftlogs

import (
	"context"
	"iter"
	"sort"
	"sync/atomic"
	"time"

	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/metrics"
)

// Source defaults.
const (
	DefaultPageSize       = 100
	DefaultMaxPagesPerTag = 10
	multiTagPageSize      = 100
)

// DuplicateRule decides which copy of a report wins when the same code
// arrives from more than one partition.
type DuplicateRule int

const (
	// LaterPartitionWins keeps the copy from the last partition that returned it.
	LaterPartitionWins DuplicateRule = iota
	// FirstSeenWins keeps the first copy and drops the rest.
	FirstSeenWins
)

func (r DuplicateRule) String() string {
	if r == FirstSeenWins {
		return "first-seen-wins"
	}
	return "later-partition-wins"
}

// Fetcher returns one page of attendance. *Client implements it.
type Fetcher interface {
	Attendance(ctx context.Context, req AttendanceRequest) (Page, error)
}

// Query selects what a Source returns. It is copied on construction.
type Query struct {
	GuildID        int
	TagIDs         []int // one partition per tag, in order; empty means the whole guild
	ZoneID         int
	Since          time.Time // inclusive; zero means unbounded
	Before         time.Time // exclusive; zero means unbounded
	PlayerNames    []string  // keep only these players; empty keeps everyone
	PageSize       int
	MaxPagesPerTag int
	TTL            time.Duration
	// Fresh bypasses the response cache for the first fetch made through
	// the Source: every page of that Get, Lazy iteration or QueryMultiTag.
	// Later fetches read the cache again.
	Fresh bool
}

// Page is one page of raid records with its pagination metadata.
type Page struct {
	Data         []model.RaidRecord `json:"data"`
	Total        int                `json:"total"`
	PerPage      int                `json:"per_page"`
	CurrentPage  int                `json:"current_page"`
	From         int                `json:"from"`
	To           int                `json:"to"`
	LastPage     int                `json:"last_page"`
	HasMorePages bool               `json:"has_more_pages"`
}

// Source pages through guild attendance partition by partition.
type Source struct {
	fetcher Fetcher
	q       Query
	players map[string]struct{}
	fresh   atomic.Bool
}

// NewSource creates a Source over fetcher for q.
func NewSource(fetcher Fetcher, q Query) *Source {
	q.TagIDs = append([]int(nil), q.TagIDs...)
	q.PlayerNames = append([]string(nil), q.PlayerNames...)
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.MaxPagesPerTag <= 0 {
		q.MaxPagesPerTag = DefaultMaxPagesPerTag
	}
	s := &Source{fetcher: fetcher, q: q}
	s.fresh.Store(q.Fresh)
	if len(q.PlayerNames) > 0 {
		s.players = make(map[string]struct{}, len(q.PlayerNames))
		for _, n := range q.PlayerNames {
			s.players[n] = struct{}{}
		}
	}
	return s
}

// Query returns a copy of the source's query.
func (s *Source) Query() Query {
	q := s.q
	q.TagIDs = append([]int(nil), s.q.TagIDs...)
	q.PlayerNames = append([]string(nil), s.q.PlayerNames...)
	return q
}

// partitions returns the tag ids to page through; 0 stands for the whole guild.
func (s *Source) partitions() []int {
	if len(s.q.TagIDs) == 0 {
		return []int{0}
	}
	return s.q.TagIDs
}

func (s *Source) request(tag, page, limit int, fresh bool) AttendanceRequest {
	return AttendanceRequest{
		GuildID: s.q.GuildID,
		TagID:   tag,
		ZoneID:  s.q.ZoneID,
		Page:    page,
		Limit:   limit,
		TTL:     s.q.TTL,
		Fresh:   fresh,
	}
}

// Get fetches every page of every partition and returns the matching records
// in ascending start order. Duplicates resolve by LaterPartitionWins.
func (s *Source) Get(ctx context.Context) ([]model.RaidRecord, error) {
	fresh := s.fresh.Swap(false)
	var all []model.RaidRecord
	for _, tag := range s.partitions() {
		for page := 1; ; page++ {
			p, err := s.fetcher.Attendance(ctx, s.request(tag, page, s.q.PageSize, fresh))
			if err != nil {
				return nil, err
			}
			all = append(all, p.Data...)
			if !p.HasMorePages {
				break
			}
		}
	}

	out := s.filter(MergeByCode(all, LaterPartitionWins))
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Lazy yields records one at a time, fetching pages only as the consumer
// pulls. Codes already yielded are skipped (FirstSeenWins).
//
// Pages are expected newest first: the first record older than Since ends
// its partition. A record newer than its predecessor in the same partition
// yields ErrUnorderedPage and stops the sequence. Calling Lazy again starts
// over from page 1.
func (s *Source) Lazy(ctx context.Context) iter.Seq2[model.RaidRecord, error] {
	return func(yield func(model.RaidRecord, error) bool) {
		seen := dedupe.NewCodeSet()
		fresh := s.fresh.Swap(false)
		for _, tag := range s.partitions() {
			var prev time.Time
		pages:
			for page := 1; ; page++ {
				p, err := s.fetcher.Attendance(ctx, s.request(tag, page, s.q.PageSize, fresh))
				if err != nil {
					yield(model.RaidRecord{}, err)
					return
				}
				for _, r := range p.Data {
					if !prev.IsZero() && r.StartTime.After(prev) {
						yield(model.RaidRecord{}, ErrUnorderedPage)
						return
					}
					prev = r.StartTime
					if !s.q.Since.IsZero() && r.StartTime.Before(s.q.Since) {
						break pages
					}
					if !s.q.Before.IsZero() && !r.StartTime.Before(s.q.Before) {
						continue
					}
					rec, ok := s.filterPlayers(r)
					if !ok {
						continue
					}
					// Only yielded codes are recorded; a copy filtered out
					// here must not shadow a matching copy in a later tag.
					if seen.SeenAndRecord(ctx, rec.Code) {
						metrics.RecordDuplicateDropped()
						continue
					}
					metrics.RecordRecordYielded()
					if !yield(rec, nil) {
						return
					}
				}
				if !p.HasMorePages {
					break
				}
			}
		}
	}
}

// QueryMultiTag fetches up to MaxPagesPerTag pages of 100 records per tag,
// merges them by code (LaterPartitionWins), orders them newest first and
// returns the requested window.
func (s *Source) QueryMultiTag(ctx context.Context, page, perPage int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPageSize
	}

	fresh := s.fresh.Swap(false)
	var all []model.RaidRecord
	for _, tag := range s.partitions() {
		for p := 1; p <= s.q.MaxPagesPerTag; p++ {
			res, err := s.fetcher.Attendance(ctx, s.request(tag, p, multiTagPageSize, fresh))
			if err != nil {
				return Page{}, err
			}
			all = append(all, res.Data...)
			if !res.HasMorePages {
				break
			}
		}
	}

	merged := s.filter(MergeByCode(all, LaterPartitionWins))
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].StartTime.After(merged[j].StartTime) })
	return Paginate(merged, page, perPage), nil
}

// Paginate slices records into the 1-based page of perPage records.
func Paginate(records []model.RaidRecord, page, perPage int) Page {
	total := len(records)
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	out := Page{
		Data:         []model.RaidRecord{},
		Total:        total,
		PerPage:      perPage,
		CurrentPage:  page,
		LastPage:     lastPage,
		HasMorePages: page < lastPage,
	}
	start := (page - 1) * perPage
	if start >= total {
		return out
	}
	end := min(start+perPage, total)
	out.Data = records[start:end]
	out.From = start + 1
	out.To = end
	return out
}

// MergeByCode collapses records sharing a code. Output keeps the position of
// each code's first occurrence; rule picks which copy's content is kept.
func MergeByCode(records []model.RaidRecord, rule DuplicateRule) []model.RaidRecord {
	index := make(map[string]int, len(records))
	out := make([]model.RaidRecord, 0, len(records))
	for _, r := range records {
		i, dup := index[r.Code]
		if !dup {
			index[r.Code] = len(out)
			out = append(out, r)
			continue
		}
		metrics.RecordDuplicateDropped()
		if rule == LaterPartitionWins {
			out[i] = r
		}
	}
	return out
}

func (s *Source) filter(records []model.RaidRecord) []model.RaidRecord {
	out := make([]model.RaidRecord, 0, len(records))
	for _, r := range records {
		if !s.q.Since.IsZero() && r.StartTime.Before(s.q.Since) {
			continue
		}
		if !s.q.Before.IsZero() && !r.StartTime.Before(s.q.Before) {
			continue
		}
		if rec, ok := s.filterPlayers(r); ok {
			out = append(out, rec)
		}
	}
	return out
}

// filterPlayers drops players not in the name filter. It reports false when
// no players are left.
func (s *Source) filterPlayers(r model.RaidRecord) (model.RaidRecord, bool) {
	if s.players == nil {
		return r, true
	}
	kept := make(map[string]model.PlayerPresence)
	for name, p := range r.Players {
		if _, ok := s.players[name]; ok {
			kept[name] = p
		}
	}
	if len(kept) == 0 {
		return r, false
	}
	r.Players = kept
	return r, true
}
