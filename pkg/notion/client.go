// Package notion wraps the Notion API for the review-queue database.
package notion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/provider-cli/internal/resilience"
)

// Client defines the Notion API operations used by this application.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s). Zero
// disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetryPolicy replaces the retry policy for rate-limited or 5xx calls.
func WithRetryPolicy(p resilience.Policy) ClientOption {
	return func(c *notionClient) { c.policy = p }
}

type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
	policy  resilience.Policy
}

// NewClient creates a Notion client for the given integration token.
func NewClient(token string, opts ...ClientOption) Client {
	policy := resilience.DefaultPolicy().Logged("notion", "api")
	policy.Retryable = retryable
	c := &notionClient{
		inner:   notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
		policy:  policy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryable reports whether a Notion API error is worth another attempt.
func retryable(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return resilience.IsTransientStatus(apiErr.Status)
	}
	return resilience.IsTransient(err)
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := resilience.DoVal(ctx, c.policy, func(ctx context.Context) (*notionapi.DatabaseQueryResponse, error) {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		return c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("notion: query database %s", dbID))
	}
	return resp, nil
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	page, err := resilience.DoVal(ctx, c.policy, func(ctx context.Context) (*notionapi.Page, error) {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		return c.inner.Page.Create(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: create page")
	}
	return page, nil
}
