package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-cli/internal/model"
)

// MemoryStore keeps jobs in a map guarded by a RWMutex. It is only visible
// to the process that created it.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateJob(_ context.Context, kind model.InputKind, source string) (*model.Job, error) {
	t := now()
	job := &model.Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Source:    source,
		Phase:     model.JobPhaseInitializing,
		CreatedAt: t,
		UpdatedAt: t,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return cloneJob(job)
}

// mutate applies fn to a non-terminal job under the write lock.
func (s *MemoryStore) mutate(id string, fn func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "memory: %s", id)
	}
	if job.Terminal() {
		return eris.Wrapf(ErrJobTerminal, "memory: %s", id)
	}
	fn(job)
	job.UpdatedAt = now()
	return nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, id string, phase model.JobPhase, progress model.Progress) error {
	if err := checkUpdatePhase(phase); err != nil {
		return err
	}
	return s.mutate(id, func(j *model.Job) {
		j.Phase = phase
		j.Progress = progress
	})
}

func (s *MemoryStore) CompleteJob(_ context.Context, id string, result *model.JobResult) error {
	if result == nil {
		return eris.New("memory: complete job: nil result")
	}
	// Store a private copy so later caller mutations cannot leak in.
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "memory: marshal result")
	}
	var stored model.JobResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return eris.Wrap(err, "memory: copy result")
	}

	return s.mutate(id, func(j *model.Job) {
		t := now()
		j.Phase = model.JobPhaseCompleted
		j.Result = &stored
		j.CompletedAt = &t
	})
}

func (s *MemoryStore) FailJob(_ context.Context, id string, reason string) error {
	return s.mutate(id, func(j *model.Job) {
		t := now()
		j.Phase = model.JobPhaseFailed
		j.Error = reason
		j.CompletedAt = &t
	})
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: %s", id)
	}
	return cloneJob(job)
}

func (s *MemoryStore) ListJobs(_ context.Context, filter JobFilter) ([]model.Job, error) {
	s.mu.RLock()
	matched := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filter.Phase == "" || j.Phase == filter.Phase {
			// List views omit the result payload.
			c := *j
			c.Result = nil
			c.CompletedAt = copyTime(j.CompletedAt)
			matched = append(matched, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []model.Job{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.limit() {
		matched = matched[:filter.limit()]
	}
	return matched, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// cloneJob deep-copies a job through JSON so readers never share the
// result slices with the store.
func cloneJob(j *model.Job) (*model.Job, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, eris.Wrap(err, "memory: marshal job")
	}
	var c model.Job
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "memory: unmarshal job")
	}
	return &c, nil
}
