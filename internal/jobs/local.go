package jobs

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// JobRunner executes one job.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

type abandoner interface {
	Abandon(ctx context.Context, jobID, reason string) error
}

// LocalDispatcher runs jobs in-process on a bounded number of goroutines.
// Jobs beyond the bound wait for a slot.
type LocalDispatcher struct {
	runner JobRunner
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLocalDispatcher allows up to maxConcurrent jobs at once (minimum 1).
func NewLocalDispatcher(runner JobRunner, maxConcurrent int) *LocalDispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalDispatcher{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dispatch schedules jobID and returns immediately. The job runs on the
// dispatcher's own context, not the caller's.
func (d *LocalDispatcher) Dispatch(_ context.Context, jobID string) error {
	if d.ctx.Err() != nil {
		return eris.New("jobs: dispatcher is shut down")
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			d.abandon(jobID)
			return
		}
		defer d.sem.Release(1)
		if d.ctx.Err() != nil {
			d.abandon(jobID)
			return
		}

		if err := d.runner.Run(d.ctx, jobID); err != nil {
			zap.L().Error("jobs: run failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}()
	return nil
}

func (d *LocalDispatcher) abandon(jobID string) {
	zap.L().Warn("jobs: not started before shutdown", zap.String("job_id", jobID))
	a, ok := d.runner.(abandoner)
	if !ok {
		return
	}
	if err := a.Abandon(context.Background(), jobID, ReasonCancelled); err != nil {
		zap.L().Error("jobs: abandon failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// Wait blocks until every dispatched job has returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting jobs, cancels running ones between records and
// waits for them to record a terminal state or ctx to expire.
func (d *LocalDispatcher) Shutdown(ctx context.Context) error {
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "jobs: shutdown")
	}
}
