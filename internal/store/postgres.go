package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-cli/internal/db"
	"github.com/sells-group/provider-cli/internal/model"
)

// PostgresStore implements Store on a pgx pool. Completed jobs also get one
// job_records row per outcome for SQL-side reporting.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres wraps pool. closeFn, if set, is called by Close.
func NewPostgres(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind         TEXT NOT NULL,
	source       TEXT NOT NULL,
	phase        TEXT NOT NULL DEFAULT 'initializing',
	progress     JSONB NOT NULL DEFAULT '{}',
	result       JSONB,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_jobs_phase ON jobs(phase);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);

CREATE TABLE IF NOT EXISTS job_records (
	job_id           TEXT NOT NULL REFERENCES jobs(id),
	idx              INTEGER NOT NULL,
	identifier       TEXT NOT NULL,
	provider         TEXT NOT NULL,
	status           TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	issues           TEXT NOT NULL,
	PRIMARY KEY (job_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_job_records_status ON job_records(status);
`

var jobRecordColumns = []string{"job_id", "idx", "identifier", "provider", "status", "confidence_score", "issues"}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, kind model.InputKind, source string) (*model.Job, error) {
	id := uuid.New().String()
	t := now()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, kind, source, phase, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(kind), source, string(model.JobPhaseInitializing), t, t,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.Job{
		ID:        id,
		Kind:      kind,
		Source:    source,
		Phase:     model.JobPhaseInitializing,
		CreatedAt: t,
		UpdatedAt: t,
	}, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, id string, phase model.JobPhase, progress model.Progress) error {
	if err := checkUpdatePhase(phase); err != nil {
		return err
	}
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal progress")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET phase = $1, progress = $2, updated_at = $3 WHERE id = $4 AND phase NOT IN ('completed', 'failed')`,
		string(phase), progressJSON, now(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.unwritten(ctx, s.pool, id)
	}
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id string, result *model.JobResult) error {
	if result == nil {
		return eris.New("postgres: complete job: nil result")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin complete")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	t := now()
	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET phase = $1, result = $2, updated_at = $3, completed_at = $4 WHERE id = $5 AND phase NOT IN ('completed', 'failed')`,
		string(model.JobPhaseCompleted), resultJSON, t, t, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.unwritten(ctx, tx, id)
	}

	if _, err := db.CopyFrom(ctx, tx, "job_records", jobRecordColumns, jobRecordRows(id, result.Outcomes)); err != nil {
		return eris.Wrapf(err, "postgres: copy records for %s", id)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit complete")
}

func (s *PostgresStore) FailJob(ctx context.Context, id string, reason string) error {
	t := now()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET phase = $1, error = $2, updated_at = $3, completed_at = $4 WHERE id = $5 AND phase NOT IN ('completed', 'failed')`,
		string(model.JobPhaseFailed), reason, t, t, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.unwritten(ctx, s.pool, id)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, source, phase, progress, result, error, created_at, updated_at, completed_at FROM jobs WHERE id = $1`,
		id,
	)
	job, err := scanPgJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, kind, source, phase, progress, NULL::jsonb, error, created_at, updated_at, completed_at FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Phase != "" {
		query += fmt.Sprintf(` AND phase = $%d`, argIdx)
		args = append(args, string(filter.Phase))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// unwritten explains why a guarded update touched no rows.
func (s *PostgresStore) unwritten(ctx context.Context, q queryRower, id string) error {
	var phase string
	err := q.QueryRow(ctx, `SELECT phase FROM jobs WHERE id = $1`, id).Scan(&phase)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: lookup job %s", id)
	}
	return eris.Wrapf(ErrJobTerminal, "postgres: %s is %s", id, phase)
}

func scanPgJob(row pgx.Row) (*model.Job, error) {
	var (
		j            model.Job
		kind, phase  string
		progressJSON []byte
		resultJSON   *[]byte
		completedAt  *time.Time
	)
	if err := row.Scan(&j.ID, &kind, &j.Source, &phase, &progressJSON, &resultJSON, &j.Error, &j.CreatedAt, &j.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	j.Kind = model.InputKind(kind)
	j.Phase = model.JobPhase(phase)
	j.CompletedAt = completedAt

	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &j.Progress); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal progress")
		}
	}
	if resultJSON != nil {
		j.Result = &model.JobResult{}
		if err := json.Unmarshal(*resultJSON, j.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &j, nil
}

func jobRecordRows(jobID string, outcomes []model.RecordOutcome) [][]any {
	rows := make([][]any, 0, len(outcomes))
	for i, o := range outcomes {
		rows = append(rows, []any{
			jobID,
			i,
			o.Record.Identifier,
			o.Record.DisplayName(),
			string(o.Status),
			o.Score,
			strings.Join(o.Issues, "; "),
		})
	}
	return rows
}
