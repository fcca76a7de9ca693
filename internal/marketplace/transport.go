package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

// Transport performs GET requests against the marketplace.
// A non-2xx status is not an error at this level; err is reserved for
// failures to obtain a response at all.
type Transport interface {
	Get(ctx context.Context, rawURL string) (status int, body []byte, err error)
}

// StatusError is returned when the marketplace answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketplace request failed: url %s, status %d", e.URL, e.StatusCode)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *StatusError) IsRetryable() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// GetBody fetches rawURL and returns the body of a 2xx response.
func GetBody(ctx context.Context, t Transport, rawURL string) ([]byte, error) {
	status, body, err := t.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{URL: rawURL, StatusCode: status}
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes a 2xx JSON response into dst.
func GetJSON(ctx context.Context, t Transport, rawURL string, dst any) error {
	body, err := GetBody(ctx, t, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// NewHTTPTransport creates a transport. Without options it issues
// unthrottled requests with a 30s timeout and no retries.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent:    DefaultUserAgent,
		logger:       slog.Default(),
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) TransportOption {
	return func(t *HTTPTransport) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

// WithRateLimit caps outgoing requests at rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) TransportOption {
	return func(t *HTTPTransport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.maxRetries = max
		t.retryBackoff = backoff
	}
}

// WithProxies routes each request through a randomly chosen proxy.
func WithProxies(proxies []*url.URL) TransportOption {
	return func(t *HTTPTransport) {
		if len(proxies) == 0 {
			return
		}
		pool := append([]*url.URL(nil), proxies...)
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.Proxy = func(*http.Request) (*url.URL, error) {
			return pool[rand.IntN(len(pool))], nil
		}
		t.httpClient.Transport = base
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = hc
	}
}

// ParseProxies parses proxy URLs from configuration.
func ParseProxies(raw []string) ([]*url.URL, error) {
	out := make([]*url.URL, 0, len(raw))
	for _, r := range raw {
		u, err := url.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", r, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("parse proxy %q: missing scheme or host", r)
		}
		out = append(out, u)
	}
	return out, nil
}

// Get implements Transport.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string) (int, []byte, error) {
	var (
		status  int
		body    []byte
		err     error
		backoff = t.retryBackoff
	)

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))
			t.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"url", rawURL,
			)

			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		status, body, err = t.doRequest(ctx, rawURL)
		if err == nil && !retryableStatus(status) {
			return status, body, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, err
		}
	}

	if err != nil {
		if t.maxRetries > 0 {
			return 0, nil, fmt.Errorf("max retries exceeded: %w", err)
		}
		return 0, nil, err
	}
	return status, body, nil
}

func (t *HTTPTransport) doRequest(ctx context.Context, rawURL string) (int, []byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, nil
}
