package genflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solohub/internal/domain"
)

const (
	// DefaultPollInterval is the fixed wait between status checks.
	DefaultPollInterval = 5 * time.Second
	// DefaultMaxAttempts caps the polling loop at roughly five minutes.
	DefaultMaxAttempts = 60
)

// Progress is one typed progress event, emitted before each wait with
// monotonically increasing elapsed time.
type Progress struct {
	ElapsedSeconds int    `json:"elapsedSeconds"`
	Message        string `json:"message"`
}

// ProgressFunc receives progress events. It must not block.
type ProgressFunc func(Progress)

// StatusChecker is the single-poll surface the poller consumes.
type StatusChecker interface {
	PollOnce(ctx context.Context, taskID string) (domain.ProviderStatus, error)
}

// Poller converts an opaque task id into a terminal canonical status by
// polling the provider at a fixed interval. Attempts are strictly
// sequential; a network failure during any attempt is fatal for the job
// and the attempt cap is the only backpressure mechanism.
type Poller struct {
	Checker     StatusChecker
	Interval    time.Duration
	MaxAttempts int
}

// NewPoller applies the default interval and attempt cap when unset.
func NewPoller(checker StatusChecker, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{Checker: checker, Interval: interval, MaxAttempts: maxAttempts}
}

// Budget returns the total wall-clock polling budget.
func (p *Poller) Budget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Interval
}

// Poll drives the status loop until a terminal provider state, a fatal
// error, cancellation, or the attempt cap. When the cap is exhausted it
// returns domain.ErrTimedOut without issuing another request.
func (p *Poller) Poll(ctx context.Context, taskID string, progress ProgressFunc) (domain.ProviderStatus, error) {
	intervalSeconds := int(p.Interval / time.Second)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.ProviderStatus{}, err
		}
		if progress != nil {
			elapsed := (attempt - 1) * intervalSeconds
			progress(Progress{
				ElapsedSeconds: elapsed,
				Message:        fmt.Sprintf("Generating... (%ds)", elapsed),
			})
		}

		status, err := p.Checker.PollOnce(ctx, taskID)
		if err != nil {
			var mErr *domain.MalformedResultError
			if errors.As(err, &mErr) {
				return domain.ProviderStatus{}, mErr
			}
			return domain.ProviderStatus{}, &domain.PollingNetworkError{Attempt: attempt, Err: err}
		}
		if status.Phase != domain.ProviderPending {
			return status, nil
		}

		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-time.After(p.Interval):
		case <-ctx.Done():
			return domain.ProviderStatus{}, ctx.Err()
		}
	}
	return domain.ProviderStatus{}, domain.ErrTimedOut
}
