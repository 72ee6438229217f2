package httpclient

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bighogz/finscan/internal/common"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMinDelay = 1 * time.Second
	DefaultMaxDelay = 3 * time.Second
	maxBodyBytes    = 8 << 20
)

// BrowserUserAgent is sent on every request; the scraped sites block
// generic clients.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Shared HTTP client with timeout and connection reuse.
var Default = &http.Client{
	Timeout: DefaultTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Fetcher performs polite GETs: a random pause before each request, a
// browser user agent and an optional process-wide rate limit.
type Fetcher struct {
	client   *http.Client
	minDelay time.Duration
	maxDelay time.Duration
	limiter  *rate.Limiter
	logger   *common.Logger
}

type Option func(*Fetcher)

func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithDelay sets the uniform pause range. Zero disables the pause.
func WithDelay(minDelay, maxDelay time.Duration) Option {
	return func(f *Fetcher) {
		f.minDelay = minDelay
		f.maxDelay = maxDelay
	}
}

// WithRateLimit caps requests per second. Zero or less removes the cap.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(f *Fetcher) {
		if requestsPerSecond <= 0 {
			f.limiter = nil
			return
		}
		burst := max(1, int(requestsPerSecond))
		f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

func WithLogger(l *common.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   Default,
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		logger:   common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) delay() time.Duration {
	if f.maxDelay <= f.minDelay {
		return max(f.minDelay, 0)
	}
	return f.minDelay + rand.N(f.maxDelay-f.minDelay)
}

func (f *Fetcher) pause(ctx context.Context) error {
	d := f.delay()
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

// Wait applies the politeness pause and rate limit without issuing a
// request, for callers whose HTTP happens inside a third-party library.
func (f *Fetcher) Wait(ctx context.Context) error {
	if err := f.pause(ctx); err != nil {
		return err
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return nil
}

// Get fetches url and returns the body. Extra headers override the defaults.
func (f *Fetcher) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if err := f.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	f.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).Msg("fetched")
	return body, nil
}
