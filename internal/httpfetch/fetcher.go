// Package httpfetch implements the resilient HTTP/HTML fetcher (C1): a
// small GET/HEAD client with bounded retries, IPv4-forced DNS resolution,
// and optional 429 exponential backoff, built the way the teacher's
// internal/resilience and internal/httputil packages compose retry,
// rate-limiting, and response-size bounding for upstream calls.
package httpfetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aicatalog/cpe/internal/httputil"
	"github.com/aicatalog/cpe/internal/resilience"
	pipelineerrors "github.com/aicatalog/cpe/pkg/errors"
)

// DefaultUserAgent is used unless the caller configures a different one.
// It is a browser-like string so documentation sites that block bare Go
// HTTP clients still serve content.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Method is the subset of HTTP methods the fetcher supports.
type Method string

const (
	MethodGET  Method = "GET"
	MethodHEAD Method = "HEAD"
)

// Options configures a single fetch call.
type Options struct {
	Method          Method
	Timeout         time.Duration
	MaxRetries      int               // default 3
	RetryBackoff    time.Duration     // fixed inter-attempt delay, default 2s
	ForceIPv4       bool
	UserAgent       string
	Backoff429      bool              // enable exponential backoff specifically for 429 responses
	Backoff429Base  time.Duration     // base delay for 429 backoff, default 5s
	MaxResponseSize int64             // default httputil.DefaultMaxResponseBodyBytes
	Headers         map[string]string // extra request headers, e.g. Authorization
}

// DefaultOptions returns the fetcher defaults described in §4.1: 3
// attempts, 2s fixed inter-attempt backoff, GET, no IPv4 forcing.
func DefaultOptions() Options {
	return Options{
		Method:          MethodGET,
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    2 * time.Second,
		UserAgent:       DefaultUserAgent,
		Backoff429Base:  5 * time.Second,
		MaxResponseSize: httputil.DefaultMaxResponseBodyBytes,
	}
}

// Result is the outcome of a successful fetch.
type Result struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Fetcher issues resilient HTTP requests on behalf of the HTML extractors
// and provider extractors. One Fetcher is shared across all calls made by
// a single extractor so its circuit breakers and rate limiters accumulate
// per-host state across the run.
type Fetcher struct {
	client   *http.Client
	limiters *resilience.Manager
	logger   *slog.Logger
}

// New creates a Fetcher. No HTTP client is passed in: clientFor builds one
// per request, with IPv4-capable dialing, from that request's Options.
func New(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		limiters: resilience.NewManager(resilience.ManagerConfig{
			CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
			DefaultRate:    5,
			DefaultBurst:   10,
		}),
		logger: logger,
	}
}

// Fetch performs a GET or HEAD with bounded retries. It returns the first
// 2xx response. Transient network errors, timeouts, and 5xx/429 responses
// are retried, for at most opts.MaxRetries attempts in total, with
// opts.RetryBackoff between attempts (or exponential 429 backoff when opts.Backoff429 is set).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	opts = fillDefaults(opts)

	host, err := hostOf(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	cb := f.limiters.GetCircuitBreaker(host)
	limiter := f.limiters.GetRateLimiter(host)

	var lastErr error
	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if !cb.Allow() {
			return nil, pipelineerrors.NewFetchError(string(opts.Method), rawURL, 0, fmt.Errorf("circuit open for host %s", host))
		}
		if err := waitForToken(ctx, limiter); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		res, status, ferr := f.doOnce(ctx, rawURL, opts)
		if ferr == nil && status >= 200 && status < 300 {
			cb.RecordSuccess()
			return res, nil
		}

		cb.RecordFailure()
		lastErr = pipelineerrors.NewFetchError(string(opts.Method), rawURL, status, ferr)

		f.logger.Warn("fetch attempt failed",
			"url", rawURL, "attempt", attempt, "status", status, "error", ferr)

		if !pipelineerrors.IsRetryableStatus(status) {
			break
		}
		if attempt == attempts {
			break
		}

		delay := opts.RetryBackoff
		if opts.Backoff429 && status == http.StatusTooManyRequests {
			delay = opts.Backoff429Base * time.Duration(1<<uint(attempt-1))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// Accessible performs a HEAD probe and reports whether the URL returned a
// 2xx status. It never returns an error for a non-2xx or unreachable URL;
// per C1/property 9, a falsy result without raising is the expected shape.
func (f *Fetcher) Accessible(ctx context.Context, rawURL string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	res, err := f.Fetch(ctx, rawURL, Options{Method: MethodHEAD, Timeout: timeout, MaxRetries: 1})
	return err == nil && res != nil && res.StatusCode >= 200 && res.StatusCode < 300
}

func (f *Fetcher) doOnce(ctx context.Context, rawURL string, opts Options) (*Result, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, string(opts.Method), rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	client := f.clientFor(opts)
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, rerr := httputil.ReadLimitedBody(resp.Body, opts.MaxResponseSize)
	if rerr != nil && rerr != httputil.ErrResponseBodyTooLarge {
		return nil, resp.StatusCode, rerr
	}

	return &Result{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, resp.StatusCode, nil
}

// clientFor builds an *http.Client whose transport dials the literal first
// A record of the target host when ForceIPv4 is set, while leaving the TLS
// ServerName (SNI) and certificate verification bound to the original
// hostname — only the connection's destination address changes.
func (f *Fetcher) clientFor(opts Options) *http.Client {
	transport := &http.Transport{}
	if opts.ForceIPv4 {
		transport.DialContext = ipv4DialContext
		transport.TLSClientConfig = &tls.Config{}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}
}

// ipv4DialContext resolves host to its first IPv4 (A) address and dials
// that literal address, while net/http still presents the original
// hostname as the TLS ServerName because the Host header / URL hostname is
// unchanged — only the TCP destination is pinned to IPv4.
func ipv4DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	resolver := net.DefaultResolver
	ips, err := resolver.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("resolve A record for %s: %w", host, err)
	}
	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

func fillDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Method == "" {
		opts.Method = def.Method
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Backoff429Base <= 0 {
		opts.Backoff429Base = def.Backoff429Base
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = def.MaxResponseSize
	}
	return opts
}

// waitForToken polls the token bucket until a token is available or ctx is
// cancelled. The teacher's RateLimiter is non-blocking (Allow only); the
// fetcher needs a blocking wait, so it polls at a fraction of the refill
// interval instead of failing the request outright.
func waitForToken(ctx context.Context, limiter *resilience.RateLimiter) error {
	if limiter.Allow() {
		return nil
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if limiter.Allow() {
				return nil
			}
		}
	}
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// ReadAll drains a body reader using the shared size cap, exported for
// callers (e.g. the HTML extractor) that already hold an *http.Response.
func ReadAll(r io.Reader, max int64) ([]byte, error) {
	return httputil.ReadLimitedBody(r, max)
}
