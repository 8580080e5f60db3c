// Package market reads public price data from CoinGecko through a small
// TTL cache.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://api.coingecko.com/api/v3"
	DefaultTTL         = 5 * time.Minute
	DefaultMinInterval = 100 * time.Millisecond

	fetchTimeout = 30 * time.Second
)

var ErrRateLimited = errors.New("rate limit exceeded")

// StatusError is a non-2xx, non-429 upstream answer.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coingecko api error: %d", e.StatusCode)
}

type cacheEntry struct {
	data    []byte
	fetched time.Time
}

// Client fetches CoinGecko endpoints. Responses are cached per URL for the
// TTL; when a refresh fails the last good response is served instead.
// Concurrent misses on one URL share a single upstream request.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithMinInterval spaces upstream requests at least d apart. Zero disables
// spacing.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		ttl:     DefaultTTL,
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) lookup(url string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[url]
	return e, ok
}

func (c *Client) fresh(e cacheEntry) bool {
	return c.now().Sub(e.fetched) < c.ttl
}

// cached returns the cached body for endpoint regardless of age.
func (c *Client) cached(endpoint string) ([]byte, bool) {
	e, ok := c.lookup(c.baseURL + endpoint)
	return e.data, ok
}

// get returns the body for endpoint, from cache when fresh.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	url := c.baseURL + endpoint
	if e, ok := c.lookup(url); ok && c.fresh(e) {
		return e.data, nil
	}

	// The shared fetch outlives any single caller's cancellation; each caller
	// stops waiting on its own ctx.
	ch := c.group.DoChan(url, func() (any, error) {
		if e, ok := c.lookup(url); ok && c.fresh(e) {
			return e.data, nil
		}

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		data, err := c.fetch(fctx, url)
		if err != nil {
			if e, ok := c.lookup(url); ok {
				c.log.Warn().Err(err).Str("url", url).Msg("using expired cache due to API error")
				return e.data, nil
			}
			return nil, err
		}

		c.mu.Lock()
		c.cache[url] = cacheEntry{data: data, fetched: c.now()}
		c.mu.Unlock()
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read coingecko response: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("coingecko returned invalid json")
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	data, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
