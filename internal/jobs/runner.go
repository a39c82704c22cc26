// Package jobs runs batch validation jobs asynchronously and tracks their
// lifecycle in a store.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/metrics"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/pipeline"
	"github.com/sells-group/provider-cli/internal/report"
	"github.com/sells-group/provider-cli/internal/store"
)

// ReasonCancelled is the failure recorded for jobs cancelled before they
// started.
const ReasonCancelled = "Cancelled before start"

// Loader produces the records of a job's source.
type Loader interface {
	Load(ctx context.Context, source string, kind model.InputKind) ([]model.ProviderRecord, error)
}

// Processor validates and scores records.
type Processor interface {
	Run(ctx context.Context, records []model.ProviderRecord, progress pipeline.ProgressFunc) []model.RecordOutcome
}

// Reviewer publishes a completed job's action items.
type Reviewer interface {
	Push(ctx context.Context, jobID string, report model.BatchReport) (int, error)
}

// Runner drives one job through its phases.
type Runner struct {
	store     store.Store
	loader    Loader
	processor Processor
	accuracy  float64
	reviewer  Reviewer
	now       func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithReviewer pushes action items after each completed job.
func WithReviewer(r Reviewer) RunnerOption {
	return func(rn *Runner) { rn.reviewer = r }
}

// WithAccuracy sets the accuracy figure reported for each batch.
func WithAccuracy(a float64) RunnerOption {
	return func(rn *Runner) { rn.accuracy = a }
}

// NewRunner creates a Runner.
func NewRunner(st store.Store, loader Loader, processor Processor, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:     st,
		loader:    loader,
		processor: processor,
		accuracy:  report.DefaultAccuracy,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the job. Job-level failures are recorded on the job and
// are not returned; the error is non-nil only when job state itself could
// not be read or written. Running a terminal job is a no-op.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	return r.RunWithProgress(ctx, jobID, nil)
}

// RunWithProgress is Run with an extra observer for record progress.
func (r *Runner) RunWithProgress(ctx context.Context, jobID string, observe pipeline.ProgressFunc) (err error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrap(err, "jobs: load job")
	}
	if job.Terminal() {
		return nil
	}

	log := zap.L().With(zap.String("job_id", jobID), zap.String("kind", string(job.Kind)))
	if ctx.Err() != nil {
		return r.fail(context.WithoutCancel(ctx), log, jobID, ReasonCancelled)
	}
	log.Info("jobs: starting", zap.String("source", job.Source))
	defer metrics.JobStarted()()

	// Terminal writes must land even when ctx is cancelled.
	finalCtx := context.WithoutCancel(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("jobs: runner panicked", zap.Any("panic", rec))
			err = r.fail(finalCtx, log, jobID, fmt.Sprintf("Internal error: %v", rec))
		}
	}()

	phase := model.JobPhaseMapping
	if job.Kind == model.InputKindDocument {
		phase = model.JobPhaseExtracting
	}
	if err := r.store.UpdateJob(finalCtx, jobID, phase, model.Progress{}); err != nil {
		return eris.Wrapf(err, "jobs: enter %s", phase)
	}

	records, loadErr := r.loader.Load(ctx, job.Source, job.Kind)
	if loadErr != nil {
		log.Warn("jobs: source unreadable", zap.Error(loadErr))
		return r.fail(finalCtx, log, jobID, loadErr.Error())
	}

	total := len(records)
	if err := r.store.UpdateJob(finalCtx, jobID, model.JobPhaseValidating, model.Progress{Total: total}); err != nil {
		return eris.Wrap(err, "jobs: enter validating")
	}

	outcomes := r.processor.Run(ctx, records, func(p model.Progress) {
		if err := r.store.UpdateJob(finalCtx, jobID, model.JobPhaseValidating, p); err != nil {
			log.Warn("jobs: progress update failed", zap.Error(err))
		}
		if observe != nil {
			observe(p)
		}
	})

	if err := r.store.UpdateJob(finalCtx, jobID, model.JobPhaseReporting, model.Progress{Current: total, Total: total}); err != nil {
		return eris.Wrap(err, "jobs: enter reporting")
	}
	rep := report.Aggregate(outcomes, r.accuracy, r.now().UTC())

	result := &model.JobResult{Processed: len(outcomes), Outcomes: outcomes, Report: rep}
	if err := r.store.CompleteJob(finalCtx, jobID, result); err != nil {
		return eris.Wrap(err, "jobs: complete")
	}
	metrics.JobFinished(string(model.JobPhaseCompleted))
	log.Info("jobs: completed",
		zap.Int("processed", rep.Total),
		zap.Int("valid", rep.Valid),
		zap.Int("flagged", rep.Flagged),
	)

	if r.reviewer != nil && len(rep.ActionItems) > 0 {
		n, err := r.reviewer.Push(finalCtx, jobID, rep)
		if err != nil {
			log.Warn("jobs: review sync failed", zap.Error(err))
		} else {
			log.Info("jobs: review items pushed", zap.Int("pages", n))
		}
	}
	return nil
}

// Abandon marks a job that will never run as failed.
func (r *Runner) Abandon(ctx context.Context, jobID, reason string) error {
	return r.fail(ctx, zap.L().With(zap.String("job_id", jobID)), jobID, reason)
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, jobID, reason string) error {
	if err := r.store.FailJob(ctx, jobID, reason); err != nil {
		return eris.Wrap(err, "jobs: record failure")
	}
	metrics.JobFinished(string(model.JobPhaseFailed))
	log.Info("jobs: failed", zap.String("error", reason))
	return nil
}
