// Package chat answers free-text questions about a completed batch.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/oracle"
)

// MaxContextItems is how many flagged items are included in the context.
const MaxContextItems = 5

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = eris.New("chat: question is empty")

const systemPrompt = "You are an assistant for a healthcare provider directory team. " +
	"Answer using only the batch context provided. Be brief."

// Assistant answers questions with the oracle.
type Assistant struct {
	oracle oracle.Oracle
}

// New returns an Assistant backed by o.
func New(o oracle.Oracle) *Assistant {
	return &Assistant{oracle: o}
}

// Answer asks the oracle about result. Oracle failures are returned to the
// caller.
func (a *Assistant) Answer(ctx context.Context, result *model.JobResult, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if result == nil {
		return "", eris.New("chat: job has no result")
	}

	answer, err := a.oracle.Complete(ctx, oracle.Prompt{
		System: systemPrompt,
		User:   BuildContext(result.Report) + "\nQuestion: " + question,
	})
	if err != nil {
		return "", eris.Wrap(err, "chat: ask oracle")
	}
	return strings.TrimSpace(answer), nil
}

// BuildContext summarizes a report for the oracle.
func BuildContext(r model.BatchReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch summary: %d processed, %d valid, %d flagged, accuracy %.0f%%.\n",
		r.Total, r.Valid, r.Flagged, r.Accuracy*100)

	items := r.ActionItems
	if len(items) > MaxContextItems {
		items = items[:MaxContextItems]
	}
	if len(items) == 0 {
		b.WriteString("No flagged providers.\n")
		return b.String()
	}
	b.WriteString("Flagged providers:\n")
	for _, it := range items {
		name := it.Provider
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", it.Priority, name, strings.Join(it.Issues, "; "))
	}
	return b.String()
}
