// Package validate checks provider records against the NPI registry and the
// provider's claimed website. Validators never return errors: every failure
// is folded into the outcome's reason.
package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/resilience"
	"github.com/sells-group/provider-cli/pkg/npi"
)

// Registry outcome reasons.
const (
	ReasonNoIdentifier = "No identifier provided"
	ReasonNotFound     = "Identifier not found in registry"
)

// NameMismatchPenalty is subtracted from the match fraction for each supplied
// name part that the registry name does not contain.
const NameMismatchPenalty = 0.3

// UnknownClassification is used when no taxonomy is flagged primary.
const UnknownClassification = "Unknown"

// Registry validates identifiers against the NPI registry.
type Registry struct {
	client  npi.Client
	policy  resilience.Policy
	limiter *rate.Limiter
	fold    cases.Caser
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRetryPolicy sets the retry policy for registry lookups.
func WithRetryPolicy(p resilience.Policy) RegistryOption {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithRateLimit throttles lookups to perSecond with a burst of one. Zero or
// less disables throttling.
func WithRateLimit(perSecond float64) RegistryOption {
	return func(r *Registry) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			r.limiter = nil
		}
	}
}

// NewRegistry returns a registry validator using client.
func NewRegistry(client npi.Client, opts ...RegistryOption) *Registry {
	r := &Registry{
		client: client,
		policy: resilience.DefaultPolicy().WithAttempts(2).Logged(metrics.DependencyRegistry, "lookup"),
		fold:   cases.Fold(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.policy.Retryable = retryableLookup
	return r
}

// Validate looks up identifier and compares the supplied names with the
// registry's. Blank identifiers short-circuit without a network call.
func (r *Registry) Validate(ctx context.Context, identifier, firstName, lastName string) model.ValidationOutcome {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return model.InvalidValidation(ReasonNoIdentifier)
	}

	log := zap.L().With(zap.String("identifier", identifier))

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return model.InvalidValidation(fmt.Sprintf("Connection error: %v", err))
		}
	}

	start := time.Now()
	resp, err := resilience.DoVal(ctx, r.policy, func(ctx context.Context) (*npi.Response, error) {
		return r.client.Lookup(ctx, identifier)
	})
	metrics.ObserveCall(metrics.DependencyRegistry, start, err)

	if err != nil {
		var se *npi.StatusError
		if errors.As(err, &se) {
			log.Debug("validate: registry status", zap.Int("status", se.StatusCode))
			return model.InvalidValidation(fmt.Sprintf("API error %d", se.StatusCode))
		}
		log.Debug("validate: registry unreachable", zap.Error(err))
		return model.InvalidValidation(fmt.Sprintf("Connection error: %v", err))
	}

	if resp == nil || resp.ResultCount <= 0 || len(resp.Results) == 0 {
		return model.InvalidValidation(ReasonNotFound)
	}

	result := resp.Results[0]
	classification := UnknownClassification
	if tax, ok := result.PrimaryTaxonomy(); ok {
		classification = tax.Desc
	}

	return model.ValidationOutcome{
		Valid:          true,
		Identifier:     identifier,
		Status:         result.Basic.Status,
		Classification: classification,
		NameMatch:      r.nameMatch(firstName, lastName, result.Basic),
		RegistryName:   result.Basic.FullName(),
		LastUpdated:    result.Basic.LastUpdated,
		Raw:            result.Raw,
	}
}

// nameMatch starts at 1.0 and subtracts NameMismatchPenalty for each
// supplied name that is not a case-insensitive substring of the registry
// name. Empty supplied names are not compared.
func (r *Registry) nameMatch(first, last string, basic npi.Basic) float64 {
	score := 1.0
	if !r.contains(basic.FirstName, first) {
		score -= NameMismatchPenalty
	}
	if !r.contains(basic.LastName, last) {
		score -= NameMismatchPenalty
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (r *Registry) contains(registry, supplied string) bool {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return true
	}
	return strings.Contains(r.fold.String(registry), r.fold.String(supplied))
}

func retryableLookup(err error) bool {
	var se *npi.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientStatus(se.StatusCode)
	}
	return resilience.IsTransient(err)
}
