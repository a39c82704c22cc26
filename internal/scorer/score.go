// Package scorer turns validation outcomes into a confidence score and an
// issue list. Scoring is pure: no I/O, no logging, no clock.
package scorer

import (
	"fmt"
	"math"

	"github.com/sells-group/provider-cli/internal/model"
)

// Issue messages.
const (
	IssueInvalid      = "Invalid identifier or API Error"
	IssueNameMismatch = "Name mismatch with Registry"
)

// Penalties applied to the base score of 1.0.
const (
	InactivePenalty    = 0.5
	UnreachablePenalty = 0.1
)

// DefaultActiveCode is the registry status code for an active provider.
const DefaultActiveCode = "A"

// Scorer scores validation outcomes against a configured active status code.
type Scorer struct {
	activeCode string
}

// New returns a Scorer that treats activeCode as the active registry status.
// An empty code falls back to DefaultActiveCode.
func New(activeCode string) Scorer {
	if activeCode == "" {
		activeCode = DefaultActiveCode
	}
	return Scorer{activeCode: activeCode}
}

// Score computes the confidence score and issues for a validation outcome and
// an optional presence outcome. Registry penalties apply first, the presence
// penalty last, and the result is clamped once to [0, 1] and rounded to two
// decimal places.
func (s Scorer) Score(v model.ValidationOutcome, p *model.PresenceOutcome) (float64, []string) {
	if !v.Valid {
		return 0.0, []string{IssueInvalid}
	}

	score := 1.0
	issues := []string{}

	if v.NameMatch < 1.0 {
		score -= 1.0 - v.NameMatch
		issues = append(issues, IssueNameMismatch)
	}

	if v.Status != s.activeCode {
		score -= InactivePenalty
		issues = append(issues, fmt.Sprintf("Provider Inactive (Status: %s)", v.Status))
	}

	if p != nil && !p.Reachable {
		score -= UnreachablePenalty
		issues = append(issues, fmt.Sprintf("Website unreachable: %s", p.URL))
	}

	return round2(clamp(score)), issues
}

// Score scores with the default active code.
func Score(v model.ValidationOutcome, p *model.PresenceOutcome) (float64, []string) {
	return New(DefaultActiveCode).Score(v, p)
}

func clamp(x float64) float64 {
	return math.Min(1.0, math.Max(0.0, x))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
