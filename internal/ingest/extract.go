package ingest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/oracle"
)

const extractSystem = "Output JSON list of objects only."

// Extract asks the oracle to pull provider candidates out of free text.
// Blank text and unusable answers both yield an empty, non-nil slice.
func Extract(ctx context.Context, o oracle.Oracle, text string) []model.CandidateRecord {
	if strings.TrimSpace(text) == "" {
		return []model.CandidateRecord{}
	}
	parsed := oracle.Ask[[]model.CandidateRecord](ctx, o, oracle.Prompt{
		System: extractSystem,
		User: "Extract provider information from this OCR text into a JSON list. " +
			"Fields: npi (string), first_name, last_name, website (optional). Text: " + text,
		JSON: true,
	})
	if !parsed.OK {
		zap.L().Warn("ingest: extraction fallback", zap.String("reason", parsed.Fallback))
		metrics.OracleFallback("extract")
		return []model.CandidateRecord{}
	}
	if parsed.Value == nil {
		return []model.CandidateRecord{}
	}
	return parsed.Value
}
