package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/provider-cli/internal/model"
)

func TestFormatJobsList(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	completed := created.Add(90 * time.Second)
	list := []model.Job{
		{
			ID: "job-a", Kind: model.InputKindTabular, Phase: model.JobPhaseCompleted,
			Progress:  model.Progress{Current: 3, Total: 3},
			CreatedAt: created, UpdatedAt: completed, CompletedAt: &completed,
		},
		{
			ID: "job-b", Kind: model.InputKindDocument, Phase: model.JobPhaseFailed,
			Error:     "ingest: resolve source: fetcher: source not found",
			CreatedAt: created, UpdatedAt: created.Add(time.Second),
		},
	}

	var buf bytes.Buffer
	formatJobsList(&buf, list)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "job-a")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "2026-03-01 09:30")
	assert.Contains(t, out, "source not found")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "", truncate("", 5))
}
