package jobs

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/export"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/store"
)

// ErrNotCompleted is returned when a result is requested for a job that has
// not completed.
var ErrNotCompleted = eris.New("jobs: job has not completed")

// Dispatcher hands a persisted job to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Manager is the submission and query surface over jobs.
type Manager struct {
	store      store.Store
	dispatcher Dispatcher
}

// NewManager creates a Manager.
func NewManager(st store.Store, d Dispatcher) *Manager {
	return &Manager{store: st, dispatcher: d}
}

// Submit persists a new job for source and dispatches it. It returns as
// soon as the job is queued.
func (m *Manager) Submit(ctx context.Context, source string, kind model.InputKind) (string, error) {
	if !kind.Valid() {
		return "", eris.Errorf("jobs: unknown input kind %q", kind)
	}
	if source == "" {
		return "", eris.New("jobs: source is required")
	}

	job, err := m.store.CreateJob(ctx, kind, source)
	if err != nil {
		return "", eris.Wrap(err, "jobs: create")
	}
	if err := m.dispatcher.Dispatch(ctx, job.ID); err != nil {
		if failErr := m.store.FailJob(context.WithoutCancel(ctx), job.ID, "dispatch failed: "+err.Error()); failErr != nil {
			zap.L().Warn("jobs: could not record dispatch failure", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return "", eris.Wrap(err, "jobs: dispatch")
	}

	zap.L().Info("jobs: submitted", zap.String("job_id", job.ID), zap.String("kind", string(kind)))
	return job.ID, nil
}

// Status returns the current state of a job, including its result once
// completed.
func (m *Manager) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return m.store.GetJob(ctx, jobID)
}

// List returns recent jobs without result payloads.
func (m *Manager) List(ctx context.Context, filter store.JobFilter) ([]model.Job, error) {
	return m.store.ListJobs(ctx, filter)
}

// Result returns the result of a completed job.
func (m *Manager) Result(ctx context.Context, jobID string) (*model.JobResult, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Phase != model.JobPhaseCompleted || job.Result == nil {
		return nil, eris.Wrapf(ErrNotCompleted, "jobs: %s is %s", jobID, job.Phase)
	}
	return job.Result, nil
}

// Export flattens a completed job's outcomes.
func (m *Manager) Export(ctx context.Context, jobID string) ([]export.Row, error) {
	result, err := m.Result(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return export.Rows(result.Outcomes), nil
}

// ReasonInterrupted is recorded on jobs found running at startup.
const ReasonInterrupted = "Interrupted by restart"

// RecoverInterrupted fails every non-terminal job. Call it at startup when
// jobs run in-process, since nothing will resume them.
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	phases := []model.JobPhase{
		model.JobPhaseInitializing,
		model.JobPhaseMapping,
		model.JobPhaseExtracting,
		model.JobPhaseValidating,
		model.JobPhaseReporting,
	}

	var n int
	for _, phase := range phases {
		for {
			stale, err := m.store.ListJobs(ctx, store.JobFilter{Phase: phase})
			if err != nil {
				return n, eris.Wrapf(err, "jobs: list %s", phase)
			}
			if len(stale) == 0 {
				break
			}
			for _, j := range stale {
				if err := m.store.FailJob(ctx, j.ID, ReasonInterrupted); err != nil {
					return n, eris.Wrapf(err, "jobs: fail interrupted %s", j.ID)
				}
				n++
			}
		}
	}
	return n, nil
}
