package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-cli/internal/config"
	"github.com/sells-group/provider-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestMemory(t *testing.T) Store {
	t.Helper()
	return NewMemory()
}

func sampleResult() *model.JobResult {
	return &model.JobResult{
		Processed: 1,
		Outcomes: []model.RecordOutcome{{
			Record:     model.ProviderRecord{Identifier: "1234567890", FirstName: "Jane", LastName: "Doe"},
			Validation: model.ValidationOutcome{Valid: true, Status: "A", NameMatch: 1, RegistryName: "JANE DOE"},
			Score:      1.0,
			Issues:     []string{},
			Status:     model.RecordStatusValid,
		}},
		Report: model.BatchReport{Total: 1, Valid: 1, Accuracy: 0.95, ActionItems: []model.ActionItem{}},
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetJob", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, model.InputKindTabular, "/tmp/roster.csv")
		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, model.JobPhaseInitializing, job.Phase)

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, model.InputKindTabular, got.Kind)
		assert.Equal(t, "/tmp/roster.csv", got.Source)
		assert.Equal(t, model.JobPhaseInitializing, got.Phase)
		assert.Nil(t, got.Result)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("UpdateJobProgress", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, model.InputKindDocument, "scan.pdf")
		require.NoError(t, err)

		progress := model.Progress{Current: 2, Total: 5, Provider: "Jane Doe"}
		require.NoError(t, s.UpdateJob(ctx, job.ID, model.JobPhaseValidating, progress))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobPhaseValidating, got.Phase)
		assert.Equal(t, progress, got.Progress)
	})

	t.Run("UpdateJobRejectsTerminalPhase", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, model.InputKindTabular, "a.csv")
		require.NoError(t, err)
		assert.Error(t, s.UpdateJob(ctx, job.ID, model.JobPhaseCompleted, model.Progress{}))
	})

	t.Run("CompleteJob", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, model.InputKindTabular, "a.csv")
		require.NoError(t, err)
		require.NoError(t, s.CompleteJob(ctx, job.ID, sampleResult()))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobPhaseCompleted, got.Phase)
		require.NotNil(t, got.Result)
		require.Len(t, got.Result.Outcomes, 1)
		assert.Equal(t, "1234567890", got.Result.Outcomes[0].Record.Identifier)
		assert.Equal(t, 1.0, got.Result.Outcomes[0].Score)
		assert.InDelta(t, 0.95, got.Result.Report.Accuracy, 0.0001)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("TerminalJobIsImmutable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job, err := s.CreateJob(ctx, model.InputKindTabular, "a.csv")
		require.NoError(t, err)
		require.NoError(t, s.FailJob(ctx, job.ID, "source unreadable"))

		err = s.UpdateJob(ctx, job.ID, model.JobPhaseValidating, model.Progress{})
		assert.True(t, errors.Is(err, ErrJobTerminal), "update: %v", err)
		err = s.CompleteJob(ctx, job.ID, sampleResult())
		assert.True(t, errors.Is(err, ErrJobTerminal), "complete: %v", err)
		err = s.FailJob(ctx, job.ID, "again")
		assert.True(t, errors.Is(err, ErrJobTerminal), "fail: %v", err)

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobPhaseFailed, got.Phase)
		assert.Equal(t, "source unreadable", got.Error)
		assert.Nil(t, got.Result)
	})

	t.Run("UnknownJob", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetJob(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.Is(s.UpdateJob(ctx, "missing", model.JobPhaseMapping, model.Progress{}), ErrNotFound))
		assert.True(t, errors.Is(s.FailJob(ctx, "missing", "x"), ErrNotFound))
	})

	t.Run("ListJobs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.CreateJob(ctx, model.InputKindTabular, "a.csv")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		second, err := s.CreateJob(ctx, model.InputKindDocument, "b.pdf")
		require.NoError(t, err)
		require.NoError(t, s.CompleteJob(ctx, first.ID, sampleResult()))

		all, err := s.ListJobs(ctx, JobFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, second.ID, all[0].ID)
		for _, j := range all {
			assert.Nil(t, j.Result)
		}

		completed, err := s.ListJobs(ctx, JobFilter{Phase: model.JobPhaseCompleted})
		require.NoError(t, err)
		require.Len(t, completed, 1)
		assert.Equal(t, first.ID, completed[0].ID)

		paged, err := s.ListJobs(ctx, JobFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, first.ID, paged[0].ID)
	})
}

func TestMemoryStore(t *testing.T) {
	storeTestSuite(t, newTestMemory)
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestMemoryStore_ReadsAreCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	job, err := s.CreateJob(ctx, model.InputKindTabular, "a.csv")
	require.NoError(t, err)
	result := sampleResult()
	require.NoError(t, s.CompleteJob(ctx, job.ID, result))

	result.Outcomes[0].Score = 0.1
	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	got.Result.Outcomes[0].Issues = append(got.Result.Outcomes[0].Issues, "mutated")

	again, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Result.Outcomes[0].Score)
	assert.Empty(t, again.Result.Outcomes[0].Issues)
}

func TestMemoryStore_ConcurrentReadersAndWriter(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	job, err := s.CreateJob(ctx, model.InputKindTabular, "a.csv")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				got, err := s.GetJob(ctx, job.ID)
				if assert.NoError(t, err) {
					assert.LessOrEqual(t, got.Progress.Current, got.Progress.Total)
				}
			}
		}()
	}
	for i := 1; i <= 50; i++ {
		require.NoError(t, s.UpdateJob(ctx, job.ID, model.JobPhaseValidating, model.Progress{Current: i, Total: 50}))
	}
	wg.Wait()
}

func TestNew_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, config.StoreConfig{Driver: "mysql"})
	assert.Error(t, err)
}
