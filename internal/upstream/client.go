// Package upstream fetches raw IPO listings from the public data providers.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 10 * time.Second
	// DefaultMinInterval is the minimum spacing between two requests.
	DefaultMinInterval = 5 * time.Second
	// DefaultMaxRetries for transient errors.
	DefaultMaxRetries = 3
	// RetryBaseDelay is the initial backoff delay.
	RetryBaseDelay = 1 * time.Second
	// maxBodyBytes caps how much of a response is read.
	maxBodyBytes = 8 << 20
)

// DefaultUserAgents is the pool rotated across requests.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// StatusError reports a non-success HTTP status from an upstream.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
}

// Client is the rate-limited HTTP client shared by the upstream adapters.
// Requests are spaced by a minimum interval plus random jitter, rotate the
// User-Agent header and retry transient failures with exponential backoff.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgents []string
	maxRetries int
	retryBase  time.Duration
	jitterMin  time.Duration
	jitterMax  time.Duration
	logger     zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMinInterval sets the minimum spacing between requests. Zero disables
// the limiter.
func WithMinInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithJitter adds a random pause in [min, max) before every request.
func WithJitter(min, max time.Duration) Option {
	return func(c *Client) {
		c.jitterMin, c.jitterMax = min, max
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryBaseDelay sets the first backoff delay.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryBase = d
	}
}

// WithUserAgents replaces the rotated User-Agent pool.
func WithUserAgents(agents ...string) Option {
	return func(c *Client) {
		if len(agents) > 0 {
			c.userAgents = agents
		}
	}
}

// WithLogger sets the logger used for retry and pacing events.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client with polite defaults for scraping public pages.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		userAgents: DefaultUserAgents,
		maxRetries: DefaultMaxRetries,
		retryBase:  RetryBaseDelay,
		jitterMin:  500 * time.Millisecond,
		jitterMax:  1500 * time.Millisecond,
		logger:     zerolog.Nop(),
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x1b873593)),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Get fetches rawURL with the given query parameters.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	target, err := withQuery(rawURL, query)
	if err != nil {
		return nil, err
	}
	return c.doWithRetry(ctx, http.MethodGet, target, nil, "")
}

// PostForm posts a form-encoded body to rawURL.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	return c.doWithRetry(ctx, http.MethodPost, rawURL, form, "application/x-www-form-urlencoded")
}

// GetGBK fetches a GBK-encoded page and returns it as UTF-8.
func (c *Client) GetGBK(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	body, err := c.Get(ctx, rawURL, query)
	if err != nil {
		return nil, err
	}
	return DecodeGBK(body)
}

// DecodeGBK converts GBK bytes to UTF-8.
func DecodeGBK(body []byte) ([]byte, error) {
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("decode gbk: %w", err)
	}
	return out, nil
}

func (c *Client) doWithRetry(ctx context.Context, method, target string, form url.Values, contentType string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s, ...
			delay := c.retryBase * time.Duration(1<<uint(attempt-1))
			c.logger.Debug().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Str("url", target).Msg("retrying upstream request")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		if err := sleep(ctx, c.jitter()); err != nil {
			return nil, err
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent())
		req.Header.Set("Accept", "text/html,application/json,application/xhtml+xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: target}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: target}
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) userAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userAgents[c.rng.IntN(len(c.userAgents))]
}

func (c *Client) jitter() time.Duration {
	if c.jitterMax <= c.jitterMin {
		return c.jitterMin
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jitterMin + time.Duration(c.rng.Int64N(int64(c.jitterMax-c.jitterMin)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func withQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	values := u.Query()
	for key, vals := range query {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// IsStatus reports whether err carries the given upstream HTTP status.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
