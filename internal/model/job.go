package model

import "time"

// JobPhase is the lifecycle label of a batch job.
type JobPhase string

const (
	JobPhaseInitializing JobPhase = "initializing"
	JobPhaseMapping      JobPhase = "mapping"
	JobPhaseExtracting   JobPhase = "extracting"
	JobPhaseValidating   JobPhase = "validating"
	JobPhaseReporting    JobPhase = "reporting"
	JobPhaseCompleted    JobPhase = "completed"
	JobPhaseFailed       JobPhase = "failed"
)

// Terminal reports whether the phase ends the job.
func (p JobPhase) Terminal() bool {
	return p == JobPhaseCompleted || p == JobPhaseFailed
}

// Progress describes which record a validating job is working on.
// Current counts records started, not records finished.
type Progress struct {
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Provider string `json:"provider,omitempty"`
}

// JobResult is the terminal payload of a completed job.
type JobResult struct {
	Processed int             `json:"processed"`
	Outcomes  []RecordOutcome `json:"data"`
	Report    BatchReport     `json:"report"`
}

// Job tracks one asynchronous batch execution.
type Job struct {
	ID          string     `json:"job_id"`
	Kind        InputKind  `json:"kind"`
	Source      string     `json:"source"`
	Phase       JobPhase   `json:"phase"`
	Progress    Progress   `json:"progress"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	return j.Phase.Terminal()
}
