// Package review pushes a batch's action items into a Notion database so
// reviewers can work them.
package review

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/pkg/notion"
)

// Property names in the review database.
const (
	PropProvider = "Provider"
	PropPriority = "Priority"
	PropIssues   = "Issues"
	PropJob      = "Job"
)

// Sync creates one review page per action item.
type Sync struct {
	client notion.Client
	dbID   string
}

// New returns a Sync writing to dbID.
func New(client notion.Client, dbID string) *Sync {
	return &Sync{client: client, dbID: dbID}
}

// Push creates pages for the report's action items. Jobs that already have
// pages in the database are skipped so a re-run never duplicates them.
func (s *Sync) Push(ctx context.Context, jobID string, report model.BatchReport) (int, error) {
	if len(report.ActionItems) == 0 {
		return 0, nil
	}

	existing, err := notion.QueryByText(ctx, s.client, s.dbID, PropJob, jobID)
	if err != nil {
		return 0, eris.Wrap(err, "review: check existing pages")
	}
	if len(existing) > 0 {
		zap.L().Info("review: job already synced", zap.String("job_id", jobID), zap.Int("pages", len(existing)))
		return 0, nil
	}

	created := 0
	for _, item := range report.ActionItems {
		if ctx.Err() != nil {
			return created, eris.Wrap(ctx.Err(), "review: push cancelled")
		}
		if _, err := notion.CreateInDatabase(ctx, s.client, s.dbID, properties(jobID, item)); err != nil {
			return created, eris.Wrapf(err, "review: create page for %q", item.Provider)
		}
		created++
	}
	return created, nil
}

func properties(jobID string, item model.ActionItem) notionapi.Properties {
	name := item.Provider
	if name == "" {
		name = "(unnamed)"
	}
	return notionapi.Properties{
		PropProvider: notion.Title(name),
		PropPriority: notion.Select(string(item.Priority)),
		PropIssues:   notion.Text(strings.Join(item.Issues, "; ")),
		PropJob:      notion.Text(jobID),
	}
}
