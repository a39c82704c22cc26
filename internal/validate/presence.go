package validate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/model"
)

// ReasonNoURL is reported for an empty website.
const ReasonNoURL = "No URL provided"

// Presence defaults.
const (
	DefaultPresenceTimeout = 5 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
	DefaultUserAgent       = "provider-cli/1.0 (+presence check)"
)

var phoneSeparators = strings.NewReplacer("-", "", " ", "", ".", "", "(", "", ")", "", "+", "")

// Presence checks a provider's claimed website.
type Presence struct {
	http      *http.Client
	maxBody   int64
	userAgent string
}

// PresenceOption configures a Presence validator.
type PresenceOption func(*Presence)

// WithPresenceHTTPClient sets the HTTP client used for page fetches.
func WithPresenceHTTPClient(hc *http.Client) PresenceOption {
	return func(p *Presence) {
		p.http = hc
	}
}

// WithPresenceTimeout sets the page fetch timeout.
func WithPresenceTimeout(d time.Duration) PresenceOption {
	return func(p *Presence) {
		if d > 0 {
			p.http.Timeout = d
		}
	}
}

// WithMaxBodyBytes caps how much of the page is read for corroboration.
func WithMaxBodyBytes(n int64) PresenceOption {
	return func(p *Presence) {
		if n > 0 {
			p.maxBody = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) PresenceOption {
	return func(p *Presence) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// NewPresence returns a presence validator.
func NewPresence(opts ...PresenceOption) *Presence {
	p := &Presence{
		http:      &http.Client{Timeout: DefaultPresenceTimeout},
		maxBody:   DefaultMaxBodyBytes,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate fetches rawURL once. When expectedPhone is non-empty the page
// text is searched for it after stripping separators from both.
func (p *Presence) Validate(ctx context.Context, rawURL, expectedPhone string) model.PresenceOutcome {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return model.PresenceOutcome{Reason: ReasonNoURL}
	}
	target := withScheme(rawURL)
	out := model.PresenceOutcome{URL: rawURL}

	start := time.Now()
	body, status, err := p.fetch(ctx, target)
	metrics.ObserveCall(metrics.DependencyWebsite, start, err)
	out.StatusCode = status

	if err != nil {
		zap.L().Debug("validate: website error", zap.String("url", target), zap.Error(err))
		out.Reason = fmt.Sprintf("Website error: %v", err)
		return out
	}
	if status < 200 || status >= 300 {
		out.Reason = fmt.Sprintf("Website unreachable (Status %d)", status)
		return out
	}

	out.Reachable = true
	if phone := normalizePhone(expectedPhone); phone != "" {
		found := strings.Contains(normalizePhone(string(body)), phone)
		out.Corroborated = &found
	}
	return out
}

func (p *Presence) fetch(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func withScheme(u string) string {
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return "https://" + u
}

func normalizePhone(s string) string {
	return phoneSeparators.Replace(s)
}
