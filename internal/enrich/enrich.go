// Package enrich asks the oracle for supplementary attributes of a validated
// provider. Enrichment is best-effort and never fails the caller.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/oracle"
)

const systemPrompt = "You are a medical data assistant. Output JSON only."

// MaxSpecialties caps the suggested specialties kept from a response.
const MaxSpecialties = 3

type response struct {
	Specialties   []string `json:"specialties"`
	Certification string   `json:"certification"`
}

// Enricher produces Enrichment for valid validation outcomes.
type Enricher struct {
	oracle oracle.Oracle
}

// New returns an Enricher backed by o.
func New(o oracle.Oracle) *Enricher {
	return &Enricher{oracle: o}
}

// Enrich returns suggested specialties and a certification for v. Invalid
// outcomes are skipped without calling the oracle. Any oracle failure yields
// an empty Enrichment with Fallback set.
func (e *Enricher) Enrich(ctx context.Context, v model.ValidationOutcome) model.Enrichment {
	if !v.Valid {
		return model.Enrichment{Specialties: []string{}, Skipped: true}
	}

	parsed := oracle.Ask[response](ctx, e.oracle, oracle.Prompt{
		System: systemPrompt,
		User:   buildPrompt(v),
		JSON:   true,
	})
	if !parsed.OK {
		zap.L().Debug("enrich: fallback",
			zap.String("identifier", v.Identifier),
			zap.String("reason", parsed.Fallback),
		)
		metrics.OracleFallback("enrich")
		return model.Enrichment{Specialties: []string{}, Fallback: parsed.Fallback}
	}

	return model.Enrichment{
		Specialties:   cleanList(parsed.Value.Specialties, MaxSpecialties),
		Certification: strings.TrimSpace(parsed.Value.Certification),
	}
}

func buildPrompt(v model.ValidationOutcome) string {
	payload := string(v.Raw)
	if payload == "" {
		payload = fmt.Sprintf(`{"name": %q, "taxonomy": %q}`, v.RegistryName, v.Classification)
	}
	return strings.TrimSpace(`
Given this provider: ` + payload + `
Primary taxonomy: ` + v.Classification + `
Suggest 3 likely medical specialties and 1 board certification based on their taxonomy.
Return as JSON: { "specialties": [], "certification": "" }
`)
}

func cleanList(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
