// Package store persists batch job state. Every driver enforces that a job
// reaches a terminal phase once and is never written again.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-cli/internal/config"
	"github.com/sells-group/provider-cli/internal/db"
	"github.com/sells-group/provider-cli/internal/model"
)

var (
	// ErrNotFound is returned for unknown job IDs.
	ErrNotFound = eris.New("store: job not found")
	// ErrJobTerminal is returned when writing to a completed or failed job.
	ErrJobTerminal = eris.New("store: job is terminal")
)

// JobFilter narrows ListJobs.
type JobFilter struct {
	Phase  model.JobPhase `json:"phase,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// DefaultListLimit caps ListJobs when the filter sets no limit.
const DefaultListLimit = 100

func (f JobFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines job persistence. Readers get copies; only the job runner
// writes.
type Store interface {
	CreateJob(ctx context.Context, kind model.InputKind, source string) (*model.Job, error)
	// UpdateJob moves a running job to a non-terminal phase and sets its progress.
	UpdateJob(ctx context.Context, id string, phase model.JobPhase, progress model.Progress) error
	CompleteJob(ctx context.Context, id string, result *model.JobResult) error
	FailJob(ctx context.Context, id string, reason string) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, eris.Wrap(err, "store: connect postgres")
		}
		return NewPostgres(pool, pool.Close), nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func checkUpdatePhase(phase model.JobPhase) error {
	if phase.Terminal() {
		return eris.Errorf("store: phase %q must be set with CompleteJob or FailJob", phase)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
