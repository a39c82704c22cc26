package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/normalize"
	"github.com/sells-group/provider-cli/internal/oracle"
)

const mapperSystem = "You are a data mapping assistant. Output JSON only."

var mapperFields = []string{
	normalize.FieldIdentifier,
	normalize.FieldFirstName,
	normalize.FieldLastName,
	normalize.FieldWebsite,
	normalize.FieldPhone,
}

// ColumnMapper asks the oracle which source columns hold which fields.
type ColumnMapper struct {
	oracle oracle.Oracle
}

// NewColumnMapper returns a ColumnMapper backed by o.
func NewColumnMapper(o oracle.Oracle) *ColumnMapper {
	return &ColumnMapper{oracle: o}
}

// Map returns the mapping for columns. An unusable answer yields an empty
// mapping so the normalizer falls back to its heuristics.
func (m *ColumnMapper) Map(ctx context.Context, columns []string) normalize.ColumnMapping {
	if len(columns) == 0 {
		return normalize.ColumnMapping{}
	}
	parsed := oracle.Ask[map[string]any](ctx, m.oracle, oracle.Prompt{
		System: mapperSystem,
		User:   mapperPrompt(columns),
		JSON:   true,
	})
	if !parsed.OK {
		zap.L().Debug("ingest: column mapping fallback", zap.String("reason", parsed.Fallback))
		metrics.OracleFallback("mapping")
		return normalize.ColumnMapping{}
	}

	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	mapping := normalize.SanitizeMapping(parsed.Value)
	for field, col := range mapping {
		if !known[col] {
			delete(mapping, field)
		}
	}
	return mapping
}

func mapperPrompt(columns []string) string {
	cols, _ := json.Marshal(columns)
	fields, _ := json.Marshal(mapperFields)
	return fmt.Sprintf(`Map these spreadsheet columns to the fields %s.
Columns: %s
Return a JSON object keyed by field with the matching column name as the value. Use null when no column matches.`, fields, cols)
}
