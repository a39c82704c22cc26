package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/provider-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	source       TEXT NOT NULL,
	phase        TEXT NOT NULL DEFAULT 'initializing',
	progress     TEXT NOT NULL DEFAULT '{}',
	result       TEXT,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_jobs_phase ON jobs(phase);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, kind model.InputKind, source string) (*model.Job, error) {
	id := uuid.New().String()
	t := now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, kind, source, phase, progress, created_at, updated_at) VALUES (?, ?, ?, ?, '{}', ?, ?)`,
		id, string(kind), source, string(model.JobPhaseInitializing), t, t,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
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

func (s *SQLiteStore) UpdateJob(ctx context.Context, id string, phase model.JobPhase, progress model.Progress) error {
	if err := checkUpdatePhase(phase); err != nil {
		return err
	}
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET phase = ?, progress = ?, updated_at = ? WHERE id = ? AND phase NOT IN ('completed', 'failed')`,
		string(phase), string(progressJSON), now(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", id)
	}
	return s.checkWritten(ctx, res, id)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id string, result *model.JobResult) error {
	if result == nil {
		return eris.New("sqlite: complete job: nil result")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	t := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET phase = ?, result = ?, updated_at = ?, completed_at = ? WHERE id = ? AND phase NOT IN ('completed', 'failed')`,
		string(model.JobPhaseCompleted), string(resultJSON), t, t, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", id)
	}
	return s.checkWritten(ctx, res, id)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id string, reason string) error {
	t := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET phase = ?, error = ?, updated_at = ?, completed_at = ? WHERE id = ? AND phase NOT IN ('completed', 'failed')`,
		string(model.JobPhaseFailed), reason, t, t, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", id)
	}
	return s.checkWritten(ctx, res, id)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, source, phase, progress, result, error, created_at, updated_at, completed_at FROM jobs WHERE id = ?`,
		id,
	)
	job, err := scanJob(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: %s", id)
	}
	return job, err
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, kind, source, phase, progress, NULL, error, created_at, updated_at, completed_at FROM jobs WHERE 1=1`
	var args []any

	if filter.Phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(filter.Phase))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close() //nolint:errcheck

	jobs := []model.Job{}
	for rows.Next() {
		j, err := scanJob(rows, false)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

// checkWritten maps a zero-row guarded update to ErrNotFound or
// ErrJobTerminal.
func (s *SQLiteStore) checkWritten(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	var phase string
	err = s.db.QueryRowContext(ctx, `SELECT phase FROM jobs WHERE id = ?`, id).Scan(&phase)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: lookup job %s", id)
	}
	return eris.Wrapf(ErrJobTerminal, "sqlite: %s is %s", id, phase)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable, withResult bool) (*model.Job, error) {
	var (
		j            model.Job
		kind, phase  string
		progressJSON string
		resultJSON   sql.NullString
		completedAt  sql.NullTime
	)
	err := row.Scan(&j.ID, &kind, &j.Source, &phase, &progressJSON, &resultJSON, &j.Error, &j.CreatedAt, &j.UpdatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	j.Kind = model.InputKind(kind)
	j.Phase = model.JobPhase(phase)

	if err := json.Unmarshal([]byte(progressJSON), &j.Progress); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal progress")
	}
	if withResult && resultJSON.Valid {
		j.Result = &model.JobResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), j.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		j.CompletedAt = &t
	}
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return &j, nil
}
