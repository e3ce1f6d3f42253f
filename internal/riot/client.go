package riot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"match-crawler/internal/metrics"
)

const (
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
	DefaultRetryAfter = 15 * time.Second

	defaultRequestTimeout = 30 * time.Second
	apiKeyParam           = "api_key"
)

// ErrCredentialRejected means the API answered 401 or 403: the key is invalid
// or expired. Nothing can succeed after this, so the crawl must stop.
var ErrCredentialRejected = errors.New("riot: api key rejected")

// Pauser suspends the calling flow. It returns early with ctx.Err() when the
// context is cancelled.
type Pauser interface {
	Pause(ctx context.Context, d time.Duration) error
}

type timerPauser struct{}

// TimerPauser returns a Pauser backed by a real timer.
func TimerPauser() Pauser {
	return timerPauser{}
}

func (timerPauser) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Requester issues GET requests against the Riot API, absorbing throttling
// and transient failures.
type Requester struct {
	apiKey            string
	httpClient        *http.Client
	limiter           *Limiter
	pauser            Pauser
	defaultRetryAfter time.Duration
	logger            *zap.Logger
}

// RequesterOption configures a Requester
type RequesterOption func(*Requester)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RequesterOption {
	return func(r *Requester) {
		r.httpClient = c
	}
}

// WithLimiter installs a proactive request limiter.
func WithLimiter(l *Limiter) RequesterOption {
	return func(r *Requester) {
		r.limiter = l
	}
}

// WithPauser replaces the timer used for 429 backoff (useful for testing).
func WithPauser(p Pauser) RequesterOption {
	return func(r *Requester) {
		r.pauser = p
	}
}

// WithDefaultRetryAfter sets the backoff used when Retry-After is absent.
func WithDefaultRetryAfter(d time.Duration) RequesterOption {
	return func(r *Requester) {
		if d > 0 {
			r.defaultRetryAfter = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RequesterOption {
	return func(r *Requester) {
		r.logger = l
	}
}

// NewRequester creates a Requester that authenticates with apiKey.
func NewRequester(apiKey string, opts ...RequesterOption) *Requester {
	r := &Requester{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		pauser:            TimerPauser(),
		defaultRetryAfter: DefaultRetryAfter,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch GETs rawURL and decodes a 200 body into out.
//
// Returns:
//   - (true, nil) when the body was decoded
//   - (false, nil) for "no data": any other status, a transport failure or a
//     body that does not decode into out
//   - (false, err) only when the key was rejected (ErrCredentialRejected) or
//     ctx was cancelled
//
// A 429 pauses for the server-declared Retry-After and repeats the identical
// request. There is no retry ceiling.
func (r *Requester) Fetch(ctx context.Context, rawURL string, out any) (bool, error) {
	signed, err := r.sign(rawURL)
	if err != nil {
		r.logger.Warn("invalid request url", zap.String("url", rawURL), zap.Error(err))
		return false, nil
	}

	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return false, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, nil)
		if err != nil {
			r.logger.Warn("failed to create request", zap.String("url", rawURL), zap.Error(err))
			return false, nil
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			metrics.ObserveRequest("transport_error")
			r.logger.Warn("request error", zap.String("url", rawURL), zap.Error(err))
			return false, nil
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			wait := r.retryAfter(resp.Header.Get("Retry-After"))
			drain(resp)
			metrics.ObserveRequest("rate_limited")
			metrics.ObserveRateLimitPause(wait)
			r.logger.Warn("rate limit hit, pausing",
				zap.String("url", rawURL),
				zap.Duration("retry_after", wait))
			if err := r.pauser.Pause(ctx, wait); err != nil {
				return false, err
			}
			continue

		case http.StatusUnauthorized, http.StatusForbidden:
			drain(resp)
			metrics.ObserveRequest("rejected")
			return false, fmt.Errorf("%w: status %d", ErrCredentialRejected, resp.StatusCode)

		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			drain(resp)
			if err != nil {
				metrics.ObserveRequest("no_data")
				r.logger.Debug("malformed response body", zap.String("url", rawURL), zap.Error(err))
				return false, nil
			}
			metrics.ObserveRequest("ok")
			return true, nil

		default:
			drain(resp)
			metrics.ObserveRequest("no_data")
			r.logger.Debug("no data",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode))
			return false, nil
		}
	}
}

func (r *Requester) sign(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(apiKeyParam, r.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *Requester) retryAfter(header string) time.Duration {
	if header == "" {
		return r.defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return r.defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// Fetcher is the request contract the typed Client is built on.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, out any) (bool, error)
}

// Client is a typed view over the Riot endpoints the crawler needs. Every
// getter returns a nil value with a nil error when the API had no data.
type Client struct {
	fetcher   Fetcher
	endpoints Endpoints
}

// NewClient creates a Client.
func NewClient(fetcher Fetcher, endpoints Endpoints) *Client {
	return &Client{fetcher: fetcher, endpoints: endpoints}
}

// GetLeagueEntries fetches one ladder page.
func (c *Client) GetLeagueEntries(ctx context.Context, platform, tier, division string, page int) ([]LeagueEntry, error) {
	var entries []LeagueEntry
	ok, err := c.fetcher.Fetch(ctx, c.endpoints.LeagueEntries(platform, tier, division, page), &entries)
	if err != nil || !ok {
		return nil, err
	}
	return entries, nil
}

// GetSummoner resolves an encrypted summoner id.
func (c *Client) GetSummoner(ctx context.Context, platform, summonerID string) (*SummonerResponse, error) {
	var summoner SummonerResponse
	ok, err := c.fetcher.Fetch(ctx, c.endpoints.Summoner(platform, summonerID), &summoner)
	if err != nil || !ok {
		return nil, err
	}
	return &summoner, nil
}

// GetMatchHistory fetches ranked match IDs for a player
func (c *Client) GetMatchHistory(ctx context.Context, route, puuid string, count int) ([]string, error) {
	var matchIDs []string
	ok, err := c.fetcher.Fetch(ctx, c.endpoints.MatchHistory(route, puuid, count), &matchIDs)
	if err != nil || !ok {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatch fetches match details
func (c *Client) GetMatch(ctx context.Context, route, matchID string) (*MatchResponse, error) {
	var match MatchResponse
	ok, err := c.fetcher.Fetch(ctx, c.endpoints.Match(route, matchID), &match)
	if err != nil || !ok {
		return nil, err
	}
	return &match, nil
}

// GetTimeline fetches match timeline
func (c *Client) GetTimeline(ctx context.Context, route, matchID string) (*TimelineResponse, error) {
	var timeline TimelineResponse
	ok, err := c.fetcher.Fetch(ctx, c.endpoints.Timeline(route, matchID), &timeline)
	if err != nil || !ok {
		return nil, err
	}
	return &timeline, nil
}
