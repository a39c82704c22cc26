package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/store"
)

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, jobID string) error {
	return m.Called(ctx, jobID).Error(0)
}

func TestManager_SubmitQueuesJob(t *testing.T) {
	st := store.NewMemory()
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	m := NewManager(st, d)
	id, err := m.Submit(context.Background(), "providers.csv", model.InputKindTabular)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	job, err := m.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.JobPhaseInitializing, job.Phase)
	assert.Equal(t, "providers.csv", job.Source)
	d.AssertCalled(t, "Dispatch", mock.Anything, id)
}

func TestManager_SubmitRejectsBadInput(t *testing.T) {
	m := NewManager(store.NewMemory(), &mockDispatcher{})

	_, err := m.Submit(context.Background(), "providers.csv", model.InputKind("spreadsheet"))
	assert.ErrorContains(t, err, "unknown input kind")

	_, err = m.Submit(context.Background(), "", model.InputKindTabular)
	assert.ErrorContains(t, err, "source is required")
}

func TestManager_DispatchFailureFailsJob(t *testing.T) {
	st := store.NewMemory()
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(errors.New("temporal unavailable"))

	m := NewManager(st, d)
	_, err := m.Submit(context.Background(), "scan.pdf", model.InputKindDocument)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs: dispatch")

	jobs, err := m.List(context.Background(), store.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobPhaseFailed, jobs[0].Phase)
	assert.Equal(t, "dispatch failed: temporal unavailable", jobs[0].Error)
}

func TestManager_ResultRequiresCompletion(t *testing.T) {
	st := store.NewMemory()
	id := newJob(t, st, model.InputKindTabular)
	m := NewManager(st, &mockDispatcher{})

	_, err := m.Result(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotCompleted)

	_, err = m.Export(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotCompleted)

	_, err = m.Result(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_ExportCompleted(t *testing.T) {
	st := store.NewMemory()
	id := newJob(t, st, model.InputKindTabular)

	outcomes := []model.RecordOutcome{{
		Record: model.ProviderRecord{Identifier: "1234567893", FirstName: "Jane", LastName: "Doe"},
		Score:  0.9,
		Status: model.RecordStatusValid,
		Issues: []string{},
	}}
	require.NoError(t, st.CompleteJob(context.Background(), id, &model.JobResult{Processed: 1, Outcomes: outcomes}))

	m := NewManager(st, &mockDispatcher{})
	rows, err := m.Export(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1234567893", rows[0].Identifier)
	assert.Equal(t, "Jane Doe", rows[0].Name)
}

func TestManager_RecoverInterrupted(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	queued := newJob(t, st, model.InputKindTabular)
	running := newJob(t, st, model.InputKindTabular)
	require.NoError(t, st.UpdateJob(ctx, running, model.JobPhaseValidating, model.Progress{Current: 1, Total: 3}))
	done := newJob(t, st, model.InputKindTabular)
	require.NoError(t, st.CompleteJob(ctx, done, &model.JobResult{}))

	m := NewManager(st, &mockDispatcher{})
	n, err := m.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{queued, running} {
		job, err := st.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobPhaseFailed, job.Phase)
		assert.Equal(t, ReasonInterrupted, job.Error)
	}
	job, err := st.GetJob(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, model.JobPhaseCompleted, job.Phase)
}
