// Package warcraftlogs talks to the combat-log GraphQL API and exposes guild
// attendance as paginated, deduplicated raid records.
package warcraftlogs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/okian/rollcall/internal/adapters/cache"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/metrics"
)

// Client defaults.
const (
	DefaultBaseURL  = "https://www.warcraftlogs.com/api/v2/client"
	DefaultTokenURL = "https://www.warcraftlogs.com/oauth/token"

	defaultTimeout          = 30 * time.Second
	defaultRequestsPerSec   = 2
	defaultBurst            = 4
	defaultBreakerFailures  = 5
	defaultBreakerOpenDelay = time.Minute
	maxErrorBodySize        = 4 * 1024
	rosterPageSize          = 100
	breakerName             = "warcraftlogs"
	cachePrefix             = "wcl:resp:"
	tokenPrefix             = "wcl:token:"
)

// Client is a GraphQL client for the log API with token caching, response
// caching, client-side rate limiting and a circuit breaker. It never retries.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string

	http    *http.Client
	cache   cache.Store
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	tokens  singleflight.Group

	breakerFailures  uint32
	breakerOpenDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the GraphQL endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithTokenURL sets the OAuth token endpoint.
func WithTokenURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.tokenURL = u
		}
	}
}

// WithCredentials sets the OAuth client credentials. Without them requests
// are sent unauthenticated.
func WithCredentials(id, secret string) Option {
	return func(c *Client) {
		c.clientID = id
		c.clientSecret = secret
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithCache sets the store used for tokens and responses.
func WithCache(s cache.Store) Option {
	return func(c *Client) { c.cache = s }
}

// WithRateLimit sets the client-side token bucket. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker sets how many consecutive failures open the circuit and how
// long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.breakerFailures = failures
		}
		if openFor > 0 {
			c.breakerOpenDelay = openFor
		}
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:          DefaultBaseURL,
		tokenURL:         DefaultTokenURL,
		http:             &http.Client{Timeout: defaultTimeout},
		limiter:          rate.NewLimiter(rate.Limit(defaultRequestsPerSec), defaultBurst),
		breakerFailures:  defaultBreakerFailures,
		breakerOpenDelay: defaultBreakerOpenDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker(c.breakerFailures, c.breakerOpenDelay)
	return c
}

func newBreaker(failures uint32, openFor time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	metrics.UpdateCircuitBreakerState(breakerName, 0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateCircuitBreakerState(name, stateToFloat(to))
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerState returns the circuit breaker state name.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// AttendanceRequest selects one page of guild attendance.
type AttendanceRequest struct {
	GuildID int
	TagID   int // 0 for the whole guild
	ZoneID  int // 0 for all zones
	Page    int
	Limit   int
	TTL     time.Duration
	Fresh   bool
}

// Attendance fetches one attendance page.
func (c *Client) Attendance(ctx context.Context, req AttendanceRequest) (Page, error) {
	vars := map[string]any{
		"guildID": req.GuildID,
		"page":    req.Page,
		"limit":   req.Limit,
	}
	if req.TagID != 0 {
		vars["guildTagID"] = req.TagID
	}
	if req.ZoneID != 0 {
		vars["zoneID"] = req.ZoneID
	}

	var data attendanceData
	if err := c.Query(ctx, "attendance", attendanceQuery, vars, req.TTL, req.Fresh, &data); err != nil {
		return Page{}, err
	}
	if data.GuildData.Guild == nil {
		return Page{}, fmt.Errorf("guild %d: %w", req.GuildID, ErrGuildNotFound)
	}
	metrics.RecordAPIPageFetch("attendance")
	return data.GuildData.Guild.Attendance.toPage(), nil
}

// Roster returns every guild member with their current rank.
func (c *Client) Roster(ctx context.Context, guildID int, ttl time.Duration, fresh bool) ([]model.Character, error) {
	var out []model.Character
	for page := 1; ; page++ {
		vars := map[string]any{"guildID": guildID, "limit": rosterPageSize, "page": page}
		var data rosterData
		if err := c.Query(ctx, "roster", rosterQuery, vars, ttl, fresh, &data); err != nil {
			return nil, err
		}
		if data.GuildData.Guild == nil {
			return nil, fmt.Errorf("guild %d: %w", guildID, ErrGuildNotFound)
		}
		metrics.RecordAPIPageFetch("roster")
		members := data.GuildData.Guild.Members
		for _, m := range members.Data {
			out = append(out, model.Character{
				ID:        m.ID,
				Name:      m.Name,
				ClassName: classNames[m.ClassID],
				RankID:    model.IntPtr(m.GuildRank),
			})
		}
		if !members.HasMorePages {
			return out, nil
		}
	}
}

// Tags returns the guild's report tags.
func (c *Client) Tags(ctx context.Context, guildID int, ttl time.Duration) ([]GuildTag, error) {
	var data tagsData
	if err := c.Query(ctx, "tags", tagsQuery, map[string]any{"guildID": guildID}, ttl, false, &data); err != nil {
		return nil, err
	}
	if data.GuildData.Guild == nil {
		return nil, fmt.Errorf("guild %d: %w", guildID, ErrGuildNotFound)
	}
	return data.GuildData.Guild.Tags, nil
}

// Query runs a GraphQL query and decodes its data into out.
//
// Successful responses are cached for ttl under a key derived from the query
// and its variables. fresh skips the cache read for this call only; the
// result is still written.
func (c *Client) Query(ctx context.Context, op, query string, vars map[string]any, ttl time.Duration, fresh bool, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}
	key := cacheKey(query, vars)

	if c.cache != nil && ttl > 0 && !fresh {
		if cached, err := c.cache.Get(ctx, key); err == nil && json.Unmarshal(cached, out) == nil {
			metrics.RecordCacheHit()
			return nil
		}
		metrics.RecordCacheMiss()
	}

	data, err := c.post(ctx, op, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		metrics.RecordAPIError("decode")
		return &TransportError{Op: op, Body: "undecodable data", Err: err}
	}
	if c.cache != nil && ttl > 0 {
		_ = c.cache.Set(ctx, key, data, ttl)
	}
	return nil
}

// post sends the GraphQL body and returns the response's data member.
func (c *Client) post(ctx context.Context, op string, body []byte) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, op, token, body)
	})
	metrics.RecordAPIRequestLatency(op, float64(time.Since(start).Microseconds())/1000)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordAPIError("circuit_open")
		return nil, &TransportError{Op: op, Err: err}
	}
	return data, err
}

func (c *Client) roundTrip(ctx context.Context, op, token string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.RecordAPIError("network")
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordAPIError("status")
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: readBodyForError(resp.Body)}
	}

	var gql graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		metrics.RecordAPIError("decode")
		return nil, &TransportError{Op: op, Body: "undecodable body", Err: err}
	}
	if len(gql.Errors) > 0 {
		msgs := make([]string, len(gql.Errors))
		for i, e := range gql.Errors {
			msgs[i] = e.Message
		}
		metrics.RecordAPIError("graphql")
		return nil, &TransportError{Op: op, Body: strings.Join(msgs, "; ")}
	}
	if len(gql.Data) == 0 || string(gql.Data) == "null" {
		metrics.RecordAPIError("decode")
		return nil, &TransportError{Op: op, Body: "response has no data"}
	}
	return gql.Data, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token or fetches a new one. Concurrent
// fetches share one request.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.clientID == "" {
		return "", nil
	}
	key := tokenPrefix + c.clientID
	if c.cache != nil {
		if v, err := c.cache.Get(ctx, key); err == nil {
			return string(v), nil
		}
	}

	v, err, _ := c.tokens.Do(key, func() (any, error) {
		tok, err := c.fetchToken(ctx)
		if err != nil {
			return "", err
		}
		if c.cache != nil && tok.ExpiresIn > 0 {
			_ = c.cache.Set(ctx, key, []byte(tok.AccessToken), time.Duration(tok.ExpiresIn)*time.Second)
		}
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (tokenResponse, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return tokenResponse{}, ctx.Err()
		}
		return tokenResponse{}, &TransportError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordAPIError("token")
		return tokenResponse{}, &TransportError{Op: "token", StatusCode: resp.StatusCode, Body: readBodyForError(resp.Body)}
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		metrics.RecordAPIError("token")
		return tokenResponse{}, &TransportError{Op: "token", Body: "undecodable token response", Err: err}
	}
	return tok, nil
}

// cacheKey hashes the query with its variables. Map keys are marshalled in
// sorted order, so equal variables give equal keys.
func cacheKey(query string, vars map[string]any) string {
	h := sha256.New()
	h.Write([]byte(query))
	b, _ := json.Marshal(vars)
	h.Write(b)
	return cachePrefix + hex.EncodeToString(h.Sum(nil))
}

func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(body)
}
