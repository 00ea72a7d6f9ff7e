package domain

import "context"

// JobRepository defines persistence for generation job records. Callers
// treat it as best-effort bookkeeping: failures are logged, never allowed
// to abort a generation.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	Update(ctx context.Context, jobID string, update JobUpdate) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	ListStaleProcessing(ctx context.Context, olderThanSeconds int) ([]GenerationJob, error)
}
