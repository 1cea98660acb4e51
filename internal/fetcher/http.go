package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Retry      resilience.Policy
}

// HTTPFetcher downloads over HTTP with pacing and retries on transient
// failures (network errors, 429, 5xx).
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "flood-cli/1.0"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetries("http", "download")
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: NewAdaptiveLimiter(opts.RatePerSec, opts.Burst),
	}
}

// Download implements Fetcher. The caller closes the body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := resilience.RetryVal(ctx, f.opts.Retry, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		return Do(ctx, f.client, f.limiter, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", rawURL)
	}
	return resp.Body, nil
}

// Do sends one paced request. Transient statuses are returned as
// resilience.TransientError and any other non-2xx status as a plain error;
// in both cases the body is closed.
func Do(ctx context.Context, client *http.Client, lim *AdaptiveLimiter, req *http.Request) (*http.Response, error) {
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: %s %s", req.Method, req.URL)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		lim.OnSuccess()
		return resp, nil
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		lim.OnThrottle()
	}
	statusErr := eris.Errorf("fetcher: %s %s: status %d", req.Method, req.URL, resp.StatusCode)
	if resilience.IsTransientStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
	}
	return nil, statusErr
}
