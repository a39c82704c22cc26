// Package oracle is the generative text-completion boundary. Callers treat
// every response as a best-effort guess and parse it with ParseJSON.
package oracle

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/config"
	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/resilience"
	"github.com/sells-group/provider-cli/pkg/anthropic"
)

// ErrDisabled is returned by the "none" provider.
var ErrDisabled = eris.New("oracle: disabled")

// Prompt is one completion request.
type Prompt struct {
	System string
	User   string
	// JSON asks providers that support it for a JSON response.
	JSON bool
}

// Oracle completes prompts with free text.
type Oracle interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Disabled always fails with ErrDisabled.
type Disabled struct{}

// Complete implements Oracle.
func (Disabled) Complete(context.Context, Prompt) (string, error) {
	return "", ErrDisabled
}

// Guarded bounds an Oracle with a per-call timeout, retries transient
// failures, and skips calls while its breaker is open.
type Guarded struct {
	inner   Oracle
	timeout time.Duration
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// Guard wraps o. A zero timeout leaves calls unbounded beyond ctx.
func Guard(o Oracle, timeout time.Duration, breaker *resilience.Breaker) *Guarded {
	return &Guarded{
		inner:   o,
		timeout: timeout,
		policy:  resilience.DefaultPolicy().WithAttempts(2).Logged(metrics.DependencyOracle, "complete"),
		breaker: breaker,
	}
}

// Complete implements Oracle.
func (g *Guarded) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := g.breaker.Allow(); err != nil {
		return "", err
	}

	start := time.Now()
	out, err := resilience.DoVal(ctx, g.policy, func(ctx context.Context) (string, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.inner.Complete(ctx, p)
	})
	metrics.ObserveCall(metrics.DependencyOracle, start, err)

	if !eris.Is(err, ErrDisabled) {
		g.breaker.Record(err)
	}
	return out, err
}

// New builds the configured provider wrapped in Guard.
func New(ctx context.Context, cfg *config.Config) (Oracle, error) {
	var base Oracle
	switch cfg.Oracle.Provider {
	case "anthropic":
		base = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Oracle.MaxTokens)
	case "gemini":
		g, err := NewGemini(ctx, GeminiConfig{
			APIKey:  cfg.Gemini.Key,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		base = g
	case "none", "":
		return Disabled{}, nil
	default:
		return nil, eris.Errorf("oracle: unknown provider %q", cfg.Oracle.Provider)
	}

	zap.L().Debug("oracle: configured", zap.String("provider", cfg.Oracle.Provider))
	return Guard(base, cfg.Oracle.Timeout(), resilience.NewBreaker(5, time.Minute)), nil
}
