package jobs

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/config"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/pipeline"
)

// WorkflowName is the registered name of the batch workflow.
const WorkflowName = "ValidateBatch"

const (
	defaultActivityTimeout = 2 * time.Hour
	heartbeatTimeout       = 5 * time.Minute
	heartbeatInterval      = 30 * time.Second
)

// ValidateBatchInput is the workflow argument.
type ValidateBatchInput struct {
	JobID   string        `json:"job_id"`
	Timeout time.Duration `json:"timeout"`
}

// WorkflowID derives the Temporal workflow ID for a job.
func WorkflowID(jobID string) string {
	return "validate-batch-" + jobID
}

// ValidateBatch runs a job as a single activity. Jobs are not retried: the
// runner records failures on the job itself.
func ValidateBatch(ctx workflow.Context, in ValidateBatchInput) error {
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = defaultActivityTimeout
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var a *Activities
	return workflow.ExecuteActivity(ctx, a.RunJob, in.JobID).Get(ctx, nil)
}

type progressRunner interface {
	RunWithProgress(ctx context.Context, jobID string, observe pipeline.ProgressFunc) error
}

// Activities holds the activity implementations registered on a worker.
type Activities struct {
	runner progressRunner
}

// NewActivities wraps a runner for registration.
func NewActivities(r progressRunner) *Activities {
	return &Activities{runner: r}
}

// RunJob runs the job, heartbeating on every record and on a timer for
// long ingestion phases.
func (a *Activities) RunJob(ctx context.Context, jobID string) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, model.Progress{})
			}
		}
	}()

	return a.runner.RunWithProgress(ctx, jobID, func(p model.Progress) {
		activity.RecordHeartbeat(ctx, p)
	})
}

// WorkflowStarter is the part of client.Client the dispatcher needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, wf interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// TemporalDispatcher starts one workflow per job on a task queue.
type TemporalDispatcher struct {
	client    WorkflowStarter
	taskQueue string
	timeout   time.Duration
}

// NewTemporalDispatcher creates a TemporalDispatcher.
func NewTemporalDispatcher(c WorkflowStarter, cfg config.TemporalConfig) *TemporalDispatcher {
	return &TemporalDispatcher{
		client:    c,
		taskQueue: cfg.TaskQueue,
		timeout:   time.Duration(cfg.ActivityTimeoutMins) * time.Minute,
	}
}

func (d *TemporalDispatcher) Dispatch(ctx context.Context, jobID string) error {
	run, err := d.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(jobID),
		TaskQueue: d.taskQueue,
	}, WorkflowName, ValidateBatchInput{JobID: jobID, Timeout: d.timeout})
	if err != nil {
		return eris.Wrapf(err, "jobs: start workflow for %s", jobID)
	}
	zap.L().Debug("jobs: workflow started",
		zap.String("job_id", jobID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
	)
	return nil
}

// DialTemporal connects to the Temporal frontend, logging through zap.
func DialTemporal(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewTemporalLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrap(err, "jobs: dial temporal")
	}
	return c, nil
}

// NewWorker registers the workflow and activities on taskQueue.
func NewWorker(c client.Client, taskQueue string, runner progressRunner, maxConcurrent int) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: max(maxConcurrent, 1),
	})
	w.RegisterWorkflowWithOptions(ValidateBatch, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivity(NewActivities(runner))
	return w
}

// TemporalLogger adapts zap to the Temporal SDK logger.
type TemporalLogger struct {
	s *zap.SugaredLogger
}

// NewTemporalLogger wraps l.
func NewTemporalLogger(l *zap.Logger) TemporalLogger {
	return TemporalLogger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar().With("component", "temporal")}
}

func (l TemporalLogger) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l TemporalLogger) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l TemporalLogger) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l TemporalLogger) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }
