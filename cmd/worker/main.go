package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solohub/internal/adapter/repo"
	"solohub/internal/domain"
	"solohub/internal/infra"
	"solohub/internal/providers/kie"
)

// sweeper closes out generations that lost their in-process flow: a
// crash or deploy between task creation and the terminal update leaves
// rows stuck in processing. Each sweep re-polls the provider once per
// stale row and writes the terminal state it finds.
type sweeper struct {
	jobs    domain.JobRepository
	checker *kie.Client
	logger  infra.Logger

	staleAge time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	kieClient, err := kie.NewClient(kie.Options{
		APIKey:  cfg.KieAPIKey,
		BaseURL: cfg.KieBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure task client")
	}

	s := &sweeper{
		jobs:     repo.NewJobRepository(pool),
		checker:  kieClient,
		logger:   logger,
		staleAge: cfg.StaleJobAge,
	}

	if err := s.Run(ctx, cfg.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (s *sweeper) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info().Dur("interval", interval).Msg("worker: started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *sweeper) sweep(ctx context.Context) {
	stale, err := s.jobs.ListStaleProcessing(ctx, int(s.staleAge/time.Second))
	if err != nil {
		s.logger.Error().Err(err).Msg("worker: list stale generations failed")
		return
	}
	for _, job := range stale {
		if ctx.Err() != nil {
			return
		}
		s.reconcile(ctx, job)
	}
}

func (s *sweeper) reconcile(ctx context.Context, job domain.GenerationJob) {
	if job.ExternalTaskID == nil || *job.ExternalTaskID == "" {
		// Never reached the provider; nothing can complete it anymore.
		s.close(ctx, job.ID, domain.JobStatusFailed, "", "orphaned before task creation", 0)
		return
	}

	status, err := s.checker.PollOnce(ctx, *job.ExternalTaskID)
	if err != nil {
		var mErr *domain.MalformedResultError
		if errors.As(err, &mErr) {
			s.close(ctx, job.ID, domain.JobStatusFailed, "", "provider returned malformed result", 0)
			return
		}
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: re-poll failed, will retry next sweep")
		return
	}

	switch status.Phase {
	case domain.ProviderSucceeded:
		s.close(ctx, job.ID, domain.JobStatusSuccess, status.URL, "", domain.EstimateCost(job.Model))
	case domain.ProviderFailed:
		s.close(ctx, job.ID, domain.JobStatusFailed, "", status.Reason, 0)
	default:
		// Still generating provider-side but far past the polling budget.
		s.close(ctx, job.ID, domain.JobStatusFailed, "", "Timeout", 0)
	}
}

func (s *sweeper) close(ctx context.Context, jobID string, status domain.JobStatus, outputURL, errMsg string, cost float64) {
	completed := time.Now().UTC()
	update := domain.JobUpdate{
		Status:      &status,
		CostUSD:     &cost,
		CompletedAt: &completed,
	}
	if outputURL != "" {
		update.OutputURL = &outputURL
	}
	if errMsg != "" {
		update.ErrorMessage = &errMsg
	}
	if err := s.jobs.Update(ctx, jobID, update); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: close stale generation failed")
		return
	}
	s.logger.Info().Str("job_id", jobID).Str("status", string(status)).Msg("worker: stale generation closed")
}
