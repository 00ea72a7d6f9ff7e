package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"solohub/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new generation job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new generation record. Terminal fields may already be
// populated when the durable write is retried at reconcile time.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	query := `
INSERT INTO generations (id, kind, status, prompt, input_urls, model, settings_json, external_task_id, output_url, error_message, cost_usd, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Kind,
		job.Status,
		job.Prompt,
		job.InputURLs,
		job.Model,
		job.Settings,
		job.ExternalTaskID,
		nullableString(job.OutputURL),
		nullableString(job.ErrorMessage),
		job.CostUSD,
		job.CompletedAt,
	)
	return err
}

// Update applies a partial update. Terminal status transitions only land
// on rows still marked processing, so a late duplicate write is a no-op.
func (r *JobRepositoryPG) Update(ctx context.Context, jobID string, update domain.JobUpdate) error {
	query := `
UPDATE generations
SET status = COALESCE($2, status),
    external_task_id = COALESCE($3, external_task_id),
    output_url = COALESCE($4, output_url),
    error_message = COALESCE($5, error_message),
    cost_usd = COALESCE($6, cost_usd),
    completed_at = COALESCE($7, completed_at),
    updated_at = NOW()
WHERE id = $1
  AND ($2 IS NULL OR status = 'processing');
`
	_, err := r.pool.Exec(ctx, query,
		jobID,
		update.Status,
		update.ExternalTaskID,
		update.OutputURL,
		update.ErrorMessage,
		update.CostUSD,
		update.CompletedAt,
	)
	return err
}

// GetByID fetches a generation by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	query := `
SELECT id, kind, status, prompt, input_urls, model, settings_json, external_task_id, output_url, error_message, cost_usd, created_at, completed_at
FROM generations
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	job, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListStaleProcessing returns processing rows older than the given age,
// oldest first. These are candidates for orphan reconciliation.
func (r *JobRepositoryPG) ListStaleProcessing(ctx context.Context, olderThanSeconds int) ([]domain.GenerationJob, error) {
	query := `
SELECT id, kind, status, prompt, input_urls, model, settings_json, external_task_id, output_url, error_message, cost_usd, created_at, completed_at
FROM generations
WHERE status = 'processing'
  AND created_at < NOW() - make_interval(secs => $1)
ORDER BY created_at ASC
LIMIT 100;
`
	rows, err := r.pool.Query(ctx, query, olderThanSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanGeneration(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var outputURL, errorMessage *string
	if err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.Status,
		&job.Prompt,
		&job.InputURLs,
		&job.Model,
		&job.Settings,
		&job.ExternalTaskID,
		&outputURL,
		&errorMessage,
		&job.CostUSD,
		&job.CreatedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	if outputURL != nil {
		job.OutputURL = *outputURL
	}
	if errorMessage != nil {
		job.ErrorMessage = *errorMessage
	}
	return &job, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
