package genflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solohub/internal/domain"
	"solohub/internal/domain/jsoncfg"
	"solohub/internal/history"
	"solohub/internal/infra"
	"solohub/internal/providers/kie"
)

// MaxAssets caps multi-asset submissions.
const MaxAssets = 5

// State names one step of the per-job state machine.
type State string

const (
	StateIdle       State = "idle"
	StateAssetReady State = "asset_ready"
	StateSubmitted  State = "submitted"
	StatePolling    State = "polling"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// Provider is the task API surface one flow drives.
type Provider interface {
	CreateTask(ctx context.Context, req kie.TaskRequest) (string, error)
	StatusChecker
}

// Uploader transfers local asset bytes and returns a hosted URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// NotifyFunc receives the final result, exactly once per flow.
type NotifyFunc func(domain.GenerationResult)

// AssetRef names one input asset: either an already hosted URL or local
// bytes that must be uploaded first.
type AssetRef struct {
	URL      string
	Data     []byte
	Filename string
}

// Input is one user-initiated generation request. JobID may be set by
// the caller when the durable identifier must be known up front;
// otherwise the flow assigns one.
type Input struct {
	JobID          string
	Kind           domain.JobKind
	Prompt         string
	Assets         []AssetRef
	Model          string
	Settings       jsoncfg.SettingsJSON
	AsProductPhoto bool
}

// Outcome is the terminal value of one flow run.
type Outcome struct {
	State  State
	JobID  string
	Result domain.GenerationResult
}

// Flow orchestrates one generation end to end: durable create, asset
// resolution, task submission, bounded polling, and the terminal
// dual-persist. Durable bookkeeping and the history cache are best-effort
// relative to the user-visible result; their failures are logged and
// never abort the flow.
type Flow struct {
	provider Provider
	uploader Uploader
	jobs     domain.JobRepository
	cache    *history.Cache
	poller   *Poller
	logger   *infra.Logger
	notify   NotifyFunc
}

// Options wires a Flow. Jobs, cache, and notify may each be nil; the
// corresponding terminal step is then skipped.
type Options struct {
	Provider Provider
	Uploader Uploader
	Jobs     domain.JobRepository
	Cache    *history.Cache
	Poller   *Poller
	Logger   *infra.Logger
	Notify   NotifyFunc
}

// NewFlow builds a flow with the default poller when none is provided.
func NewFlow(opts Options) (*Flow, error) {
	if opts.Provider == nil {
		return nil, errors.New("genflow: provider is required")
	}
	poller := opts.Poller
	if poller == nil {
		poller = NewPoller(opts.Provider, 0, 0)
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Flow{
		provider: opts.Provider,
		uploader: opts.Uploader,
		jobs:     opts.Jobs,
		cache:    opts.Cache,
		poller:   poller,
		logger:   logger,
		notify:   opts.Notify,
	}, nil
}

// Budget returns the wall-clock polling budget of this flow.
func (f *Flow) Budget() time.Duration {
	return f.poller.Budget()
}

// Run drives the state machine to a terminal outcome. It never returns
// an error: every failure mode is folded into a terminal Failed or
// TimedOut result with a human-readable message.
func (f *Flow) Run(ctx context.Context, input Input, progress ProgressFunc) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().Interface("panic", r).Msg("genflow: flow panicked")
			outcome = f.finish(ctx, outcome.JobID, input, StateFailed,
				failResult(outcome.Result.TaskID, input.Prompt, fmt.Sprintf("internal error: %v", r)))
		}
		if f.notify != nil {
			f.notify(outcome.Result)
		}
	}()

	if err := validateInput(input); err != nil {
		return f.finish(ctx, "", input, StateFailed, failResult("", input.Prompt, err.Error()))
	}

	// Durable record first, so the audit trail exists before any
	// provider side effects. A create failure does not stop the flow;
	// the terminal update retries the write (see finish).
	jobID := f.createJob(ctx, input)

	emit(progress, 0, "Uploading assets...")
	inputURLs, err := f.resolveAssets(ctx, input.Assets)
	if err != nil {
		return f.finish(ctx, jobID, input, StateFailed, failResult("", input.Prompt, err.Error()))
	}

	emit(progress, 0, "Submitting generation task...")
	taskID, err := f.provider.CreateTask(ctx, buildTaskRequest(input, inputURLs))
	if err != nil {
		return f.finish(ctx, jobID, input, StateFailed, failResult("", input.Prompt, err.Error()))
	}
	f.logger.Info().Str("job_id", jobID).Str("task_id", taskID).Msg("genflow: task submitted")
	f.updateJob(ctx, jobID, domain.JobUpdate{ExternalTaskID: &taskID})

	status, err := f.poller.Poll(ctx, taskID, progress)
	switch {
	case err == nil && status.Phase == domain.ProviderSucceeded:
		return f.finish(ctx, jobID, input, StateSucceeded, successResult(taskID, input, status.URL))
	case err == nil:
		return f.finish(ctx, jobID, input, StateFailed, failResult(taskID, input.Prompt, status.Reason))
	case errors.Is(err, domain.ErrTimedOut):
		return f.finish(ctx, jobID, input, StateTimedOut, failResult(taskID, input.Prompt, "Timeout"))
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return f.finish(ctx, jobID, input, StateFailed, failResult(taskID, input.Prompt, "generation cancelled"))
	default:
		return f.finish(ctx, jobID, input, StateFailed, failResult(taskID, input.Prompt, err.Error()))
	}
}

// finish performs the terminal dual-persist: durable update, history
// write, and (via the deferred notify in Run) the caller notification.
// The steps are isolated; one failing never skips the others.
func (f *Flow) finish(ctx context.Context, jobID string, input Input, state State, result domain.GenerationResult) Outcome {
	status := domain.JobStatusFailed
	var cost float64
	if state == StateSucceeded {
		status = domain.JobStatusSuccess
		cost = domain.EstimateCost(input.Model)
	}
	completed := time.Now().UTC()
	outputURL := result.OutputURL()
	update := domain.JobUpdate{
		Status:       &status,
		ErrorMessage: &result.Error,
		CostUSD:      &cost,
		CompletedAt:  &completed,
	}
	if outputURL != "" {
		update.OutputURL = &outputURL
	}
	if result.TaskID != "" {
		update.ExternalTaskID = &result.TaskID
	}
	if jobID == "" {
		// The initial durable create failed; retry it now with the full
		// terminal payload so the external task keeps a durable linkage.
		jobID = f.recreateJob(ctx, input, result, status, cost, completed)
	} else {
		f.updateJob(ctx, jobID, update)
	}

	if state == StateSucceeded && f.cache != nil {
		f.cache.Record(ctx, domain.EntryFromResult(input.Kind, result))
	}

	return Outcome{State: state, JobID: jobID, Result: result}
}

func (f *Flow) createJob(ctx context.Context, input Input) string {
	if f.jobs == nil {
		return ""
	}
	job := &domain.GenerationJob{
		ID:       jobIDFor(input),
		Kind:     input.Kind,
		Status:   domain.JobStatusProcessing,
		Prompt:   input.Prompt,
		Model:    input.Model,
		Settings: jsoncfg.MustMarshal(input.Settings),
	}
	for _, asset := range input.Assets {
		if asset.URL != "" {
			job.InputURLs = append(job.InputURLs, asset.URL)
		}
	}
	if err := f.jobs.Create(ctx, job); err != nil {
		f.logger.Error().Err(err).Msg("genflow: durable create failed, continuing without linkage")
		return ""
	}
	return job.ID
}

func (f *Flow) recreateJob(ctx context.Context, input Input, result domain.GenerationResult, status domain.JobStatus, cost float64, completed time.Time) string {
	if f.jobs == nil {
		return ""
	}
	job := &domain.GenerationJob{
		ID:           jobIDFor(input),
		Kind:         input.Kind,
		Status:       status,
		Prompt:       input.Prompt,
		Model:        input.Model,
		Settings:     jsoncfg.MustMarshal(input.Settings),
		OutputURL:    result.OutputURL(),
		ErrorMessage: result.Error,
		CostUSD:      cost,
		CompletedAt:  &completed,
	}
	if result.TaskID != "" {
		taskID := result.TaskID
		job.ExternalTaskID = &taskID
	}
	if err := f.jobs.Create(ctx, job); err != nil {
		f.logger.Error().Err(err).Str("task_id", result.TaskID).Msg("genflow: durable record lost for task")
		return ""
	}
	return job.ID
}

func (f *Flow) updateJob(ctx context.Context, jobID string, update domain.JobUpdate) {
	if f.jobs == nil || jobID == "" {
		return
	}
	if err := f.jobs.Update(ctx, jobID, update); err != nil {
		f.logger.Error().Err(err).Str("job_id", jobID).Msg("genflow: durable update failed")
	}
}

// resolveAssets turns every asset reference into a hosted URL, uploading
// local bytes through the collaborator. Input order is preserved.
func (f *Flow) resolveAssets(ctx context.Context, assets []AssetRef) ([]string, error) {
	urls := make([]string, 0, len(assets))
	for _, asset := range assets {
		if strings.TrimSpace(asset.URL) != "" {
			urls = append(urls, strings.TrimSpace(asset.URL))
			continue
		}
		if f.uploader == nil {
			return nil, &domain.UploadError{Err: errors.New("no uploader configured for local asset")}
		}
		hosted, err := f.uploader.Upload(ctx, asset.Filename, asset.Data)
		if err != nil {
			return nil, err
		}
		urls = append(urls, hosted)
	}
	return urls, nil
}

func buildTaskRequest(input Input, inputURLs []string) kie.TaskRequest {
	req := kie.TaskRequest{
		Model:        input.Model,
		Prompt:       input.Prompt,
		AspectRatio:  input.Settings.AspectRatio,
		Resolution:   input.Settings.Resolution,
		OutputFormat: input.Settings.OutputFormat,
	}
	if input.AsProductPhoto && len(inputURLs) == 1 {
		req.ProductPhoto = inputURLs[0]
	} else {
		req.ImageInput = inputURLs
	}
	return req
}

func validateInput(input Input) error {
	if strings.TrimSpace(input.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if strings.TrimSpace(input.Model) == "" {
		return errors.New("model is required")
	}
	if len(input.Assets) == 0 {
		return errors.New("at least one asset is required")
	}
	if input.Kind == domain.JobKindMultiImage && len(input.Assets) < 2 {
		return errors.New("multi-image generation requires at least 2 assets")
	}
	if len(input.Assets) > MaxAssets {
		return fmt.Errorf("at most %d assets are supported", MaxAssets)
	}
	return nil
}

func successResult(taskID string, input Input, outputURL string) domain.GenerationResult {
	res := domain.GenerationResult{
		TaskID:    taskID,
		State:     domain.ResultStateSuccess,
		Prompt:    input.Prompt,
		CreatedAt: time.Now().UTC(),
	}
	if input.Kind == domain.JobKindVideo {
		res.VideoURL = outputURL
	} else {
		res.ImageURL = outputURL
	}
	return res
}

func failResult(taskID, prompt, message string) domain.GenerationResult {
	return domain.GenerationResult{
		TaskID:    taskID,
		State:     domain.ResultStateFail,
		Error:     message,
		Prompt:    prompt,
		CreatedAt: time.Now().UTC(),
	}
}

func jobIDFor(input Input) string {
	if input.JobID != "" {
		return input.JobID
	}
	return uuid.NewString()
}

func emit(progress ProgressFunc, elapsed int, message string) {
	if progress != nil {
		progress(Progress{ElapsedSeconds: elapsed, Message: message})
	}
}
