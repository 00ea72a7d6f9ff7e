package domain

import (
	"encoding/json"
	"time"
)

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindImage      JobKind = "image"
	JobKindMultiImage JobKind = "multi-image"
	JobKindVideo      JobKind = "video"
)

// JobStatus enumerates job lifecycle states. Transitions are monotonic:
// processing moves to exactly one of success or failed and never back.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// GenerationJob is the durable audit record for one generation request.
// It is created before the provider task submission and mutated only on
// terminal transitions.
type GenerationJob struct {
	ID             string
	Kind           JobKind
	Status         JobStatus
	Prompt         string
	InputURLs      []string
	Model          string
	Settings       json.RawMessage
	ExternalTaskID *string
	OutputURL      string
	ErrorMessage   string
	CostUSD        float64
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Terminal reports whether the job reached a state with no further
// transitions.
func (j *GenerationJob) Terminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusFailed
}

// JobUpdate carries a partial durable update. Nil fields are left
// untouched by the persister.
type JobUpdate struct {
	ExternalTaskID *string
	Status         *JobStatus
	OutputURL      *string
	ErrorMessage   *string
	CostUSD        *float64
	CompletedAt    *time.Time
}
