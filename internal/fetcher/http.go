package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// PerHostRate is requests per second allowed to any one host.
	PerHostRate float64
}

// HTTPFetcher downloads over HTTP with per-host rate limiting and retries.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	policy resilience.Policy

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "provider-cli/1.0"
	}
	if opts.PerHostRate <= 0 {
		opts.PerHostRate = 5
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		policy:   resilience.DefaultPolicy().WithAttempts(opts.MaxRetries).Logged(metrics.DependencySource, "download"),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.opts.PerHostRate), 1)
		f.limiters[host] = lim
	}
	return lim
}

// Download fetches rawURL and returns the body of a 200 response.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	lim := f.limiterFor(rawURL)
	start := time.Now()
	body, err := resilience.DoVal(ctx, f.policy, func(ctx context.Context) (io.ReadCloser, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: http get")
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, &resilience.StatusError{StatusCode: resp.StatusCode}
		}
		return resp.Body, nil
	})
	metrics.ObserveCall(metrics.DependencySource, start, err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DownloadToFile implements Fetcher.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, dst string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	return writeFile(dst, body)
}

func writeFile(dst string, r io.Reader) (int64, error) {
	file, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, r)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}
	return n, nil
}
