package genflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"solohub/internal/domain"
)

// scriptedChecker returns its responses in order and counts requests.
type scriptedChecker struct {
	responses []pollResponse
	calls     int
}

type pollResponse struct {
	status domain.ProviderStatus
	err    error
}

func (c *scriptedChecker) PollOnce(ctx context.Context, taskID string) (domain.ProviderStatus, error) {
	idx := c.calls
	c.calls++
	if idx >= len(c.responses) {
		return domain.Pending(), nil
	}
	return c.responses[idx].status, c.responses[idx].err
}

func pendingTimes(n int) []pollResponse {
	out := make([]pollResponse, n)
	for i := range out {
		out[i] = pollResponse{status: domain.Pending()}
	}
	return out
}

func TestPollReturnsOnSuccess(t *testing.T) {
	checker := &scriptedChecker{responses: append(pendingTimes(2), pollResponse{status: domain.Succeeded("https://cdn.test/a.png")})}
	poller := NewPoller(checker, time.Millisecond, 10)

	status, err := poller.Poll(context.Background(), "task-1", nil)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if status.Phase != domain.ProviderSucceeded || status.URL != "https://cdn.test/a.png" {
		t.Fatalf("status = %+v", status)
	}
	if checker.calls != 3 {
		t.Fatalf("calls = %d, want 3", checker.calls)
	}
}

func TestPollReturnsProviderFailure(t *testing.T) {
	checker := &scriptedChecker{responses: append(pendingTimes(1), pollResponse{status: domain.Failure("nsfw content")})}
	poller := NewPoller(checker, time.Millisecond, 10)

	status, err := poller.Poll(context.Background(), "task-1", nil)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if status.Phase != domain.ProviderFailed || status.Reason != "nsfw content" {
		t.Fatalf("status = %+v", status)
	}
}

func TestPollTimesOutAfterExactAttemptCap(t *testing.T) {
	checker := &scriptedChecker{}
	poller := NewPoller(checker, time.Millisecond, 5)

	_, err := poller.Poll(context.Background(), "task-1", nil)
	if !errors.Is(err, domain.ErrTimedOut) {
		t.Fatalf("error = %v, want ErrTimedOut", err)
	}
	if checker.calls != 5 {
		t.Fatalf("calls = %d, want exactly 5", checker.calls)
	}
}

func TestPollWrapsNetworkErrors(t *testing.T) {
	checker := &scriptedChecker{responses: append(pendingTimes(2), pollResponse{err: errors.New("connection reset")})}
	poller := NewPoller(checker, time.Millisecond, 10)

	_, err := poller.Poll(context.Background(), "task-1", nil)
	var pErr *domain.PollingNetworkError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want PollingNetworkError", err)
	}
	if pErr.Attempt != 3 {
		t.Fatalf("attempt = %d, want 3", pErr.Attempt)
	}
	if checker.calls != 3 {
		t.Fatalf("calls = %d, want 3 (network errors are fatal)", checker.calls)
	}
}

func TestPollPassesThroughMalformedResult(t *testing.T) {
	checker := &scriptedChecker{responses: []pollResponse{{err: &domain.MalformedResultError{TaskID: "task-1"}}}}
	poller := NewPoller(checker, time.Millisecond, 10)

	_, err := poller.Poll(context.Background(), "task-1", nil)
	var mErr *domain.MalformedResultError
	if !errors.As(err, &mErr) {
		t.Fatalf("error = %v, want MalformedResultError", err)
	}
	var pErr *domain.PollingNetworkError
	if errors.As(err, &pErr) {
		t.Fatal("malformed result must not be wrapped as a network error")
	}
}

func TestPollHonorsCancellation(t *testing.T) {
	checker := &scriptedChecker{}
	poller := NewPoller(checker, time.Hour, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := poller.Poll(ctx, "task-1", nil)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not return after cancellation")
	}
}

func TestPollProgressElapsedIsMonotonic(t *testing.T) {
	checker := &scriptedChecker{responses: append(pendingTimes(3), pollResponse{status: domain.Succeeded("u")})}
	poller := NewPoller(checker, time.Second, 10)
	poller.Interval = time.Millisecond

	// Progress reports are computed from the attempt counter, not the
	// wall clock, so a 1ms interval still yields deterministic values.
	var events []Progress
	_, err := poller.Poll(context.Background(), "task-1", func(p Progress) {
		events = append(events, p)
	})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].ElapsedSeconds < events[i-1].ElapsedSeconds {
			t.Fatalf("elapsed went backwards: %v", events)
		}
	}
	if events[0].Message == "" {
		t.Fatal("progress message should not be empty")
	}
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller(&scriptedChecker{}, 0, 0)
	if p.Interval != DefaultPollInterval {
		t.Fatalf("Interval = %v, want %v", p.Interval, DefaultPollInterval)
	}
	if p.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("MaxAttempts = %d, want %d", p.MaxAttempts, DefaultMaxAttempts)
	}
	if p.Budget() != DefaultPollInterval*DefaultMaxAttempts {
		t.Fatalf("Budget = %v", p.Budget())
	}
}
