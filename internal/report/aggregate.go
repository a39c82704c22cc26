// Package report aggregates record outcomes into a batch summary.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/provider-cli/internal/model"
)

// ActionThreshold is the score below which a record is listed for follow-up.
// A record scored exactly 0.8 is labelled Needs Review but is not listed.
const ActionThreshold = 0.8

// HighPriorityBelow marks action items as High priority.
const HighPriorityBelow = 0.5

// DefaultAccuracy is the accuracy figure used when none is configured.
const DefaultAccuracy = 0.95

// Aggregate summarizes outcomes. Valid and Flagged are counted from status
// labels; the action list is driven by raw scores.
func Aggregate(outcomes []model.RecordOutcome, accuracy float64, now time.Time) model.BatchReport {
	r := model.BatchReport{
		GeneratedAt: now.UTC(),
		Total:       len(outcomes),
		Accuracy:    accuracy,
		ActionItems: []model.ActionItem{},
	}

	for _, o := range outcomes {
		if o.Status == model.RecordStatusValid {
			r.Valid++
		} else {
			r.Flagged++
		}

		if o.Score < ActionThreshold {
			priority := model.PriorityMedium
			if o.Score < HighPriorityBelow {
				priority = model.PriorityHigh
			}
			issues := append([]string{}, o.Issues...)
			r.ActionItems = append(r.ActionItems, model.ActionItem{
				Provider: o.Record.DisplayName(),
				Issues:   issues,
				Priority: priority,
			})
		}
	}

	return r
}

// Format renders a report for terminal output.
func Format(r model.BatchReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Provider Validation Report\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Processed: %d\n", r.Total)
	fmt.Fprintf(&b, "- Valid: %d\n", r.Valid)
	fmt.Fprintf(&b, "- Flagged: %d\n", r.Flagged)
	fmt.Fprintf(&b, "- Accuracy: %.0f%%\n\n", r.Accuracy*100)

	b.WriteString("## Action Items\n")
	if len(r.ActionItems) == 0 {
		b.WriteString("None.\n")
		return b.String()
	}
	for _, item := range r.ActionItems {
		name := item.Provider
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", item.Priority, name, strings.Join(item.Issues, "; "))
	}
	return b.String()
}
