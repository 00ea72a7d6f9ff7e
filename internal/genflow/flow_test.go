package genflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"solohub/internal/domain"
	"solohub/internal/domain/jsoncfg"
	"solohub/internal/history"
	"solohub/internal/providers/kie"
	"solohub/internal/storage"
)

type stubProvider struct {
	createReq *kie.TaskRequest
	createErr error
	taskID    string
	statuses  []pollResponse
	pollCalls int
}

func (p *stubProvider) CreateTask(ctx context.Context, req kie.TaskRequest) (string, error) {
	copied := req
	p.createReq = &copied
	if p.createErr != nil {
		return "", p.createErr
	}
	if p.taskID == "" {
		return "task-1", nil
	}
	return p.taskID, nil
}

func (p *stubProvider) PollOnce(ctx context.Context, taskID string) (domain.ProviderStatus, error) {
	idx := p.pollCalls
	p.pollCalls++
	if idx >= len(p.statuses) {
		return domain.Pending(), nil
	}
	return p.statuses[idx].status, p.statuses[idx].err
}

type stubUploader struct {
	uploads []string
	err     error
}

func (u *stubUploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploads = append(u.uploads, filename)
	return fmt.Sprintf("https://hosted.test/%d-%s", len(u.uploads), filename), nil
}

type memoryRepo struct {
	mu        sync.Mutex
	jobs      map[string]*domain.GenerationJob
	createErr error
	failOnce  bool
	updates   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{jobs: make(map[string]*domain.GenerationJob)}
}

func (r *memoryRepo) Create(ctx context.Context, job *domain.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		if r.failOnce {
			r.createErr = nil
		}
		return err
	}
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, jobID string, update domain.JobUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Status != nil {
		if job.Status != domain.JobStatusProcessing {
			return nil
		}
		job.Status = *update.Status
	}
	if update.ExternalTaskID != nil {
		job.ExternalTaskID = update.ExternalTaskID
	}
	if update.OutputURL != nil {
		job.OutputURL = *update.OutputURL
	}
	if update.ErrorMessage != nil {
		job.ErrorMessage = *update.ErrorMessage
	}
	if update.CostUSD != nil {
		job.CostUSD = *update.CostUSD
	}
	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *memoryRepo) ListStaleProcessing(ctx context.Context, olderThanSeconds int) ([]domain.GenerationJob, error) {
	return nil, nil
}

type flowFixture struct {
	provider *stubProvider
	uploader *stubUploader
	repo     *memoryRepo
	cache    *history.Cache
	flow     *Flow
	notified []domain.GenerationResult
}

func newFlowFixture(t *testing.T, provider *stubProvider) *flowFixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	f := &flowFixture{
		provider: provider,
		uploader: &stubUploader{},
		repo:     newMemoryRepo(),
		cache:    history.NewCache(store, "generation-history", 10, nil),
	}
	flow, err := NewFlow(Options{
		Provider: provider,
		Uploader: f.uploader,
		Jobs:     f.repo,
		Cache:    f.cache,
		Poller:   NewPoller(provider, time.Millisecond, 5),
		Notify:   func(res domain.GenerationResult) { f.notified = append(f.notified, res) },
	})
	if err != nil {
		t.Fatalf("NewFlow returned error: %v", err)
	}
	f.flow = flow
	return f
}

func imageInput() Input {
	return Input{
		Kind:     domain.JobKindImage,
		Prompt:   "a red chair",
		Model:    "nano-banana",
		Assets:   []AssetRef{{URL: "https://img.test/src.png"}},
		Settings: jsoncfg.SettingsJSON{AspectRatio: "1:1", Resolution: "4K", OutputFormat: "png"},
	}
}

func TestRunSuccessPersistsEverywhere(t *testing.T) {
	provider := &stubProvider{statuses: append(pendingTimes(2), pollResponse{status: domain.Succeeded("https://cdn.test/out.png")})}
	f := newFlowFixture(t, provider)
	ctx := context.Background()

	outcome := f.flow.Run(ctx, imageInput(), nil)

	if outcome.State != StateSucceeded {
		t.Fatalf("state = %v, want succeeded", outcome.State)
	}
	if outcome.Result.State != domain.ResultStateSuccess || outcome.Result.ImageURL != "https://cdn.test/out.png" {
		t.Fatalf("result = %+v", outcome.Result)
	}
	if outcome.Result.TaskID != "task-1" {
		t.Fatalf("task id = %q", outcome.Result.TaskID)
	}

	job, err := f.repo.GetByID(ctx, outcome.JobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusSuccess {
		t.Fatalf("durable status = %v, want success", job.Status)
	}
	if job.OutputURL != "https://cdn.test/out.png" {
		t.Fatalf("durable output = %q", job.OutputURL)
	}
	if job.CostUSD != domain.EstimateCost("nano-banana") {
		t.Fatalf("durable cost = %v", job.CostUSD)
	}
	if job.CompletedAt == nil {
		t.Fatal("durable completed_at should be set")
	}

	entries := f.cache.Load(ctx)
	if len(entries) != 1 || entries[0].TaskID != "task-1" {
		t.Fatalf("history = %+v, want one entry for task-1", entries)
	}
	if len(f.notified) != 1 {
		t.Fatalf("notify count = %d, want exactly 1", len(f.notified))
	}
}

func TestRunProviderFailure(t *testing.T) {
	provider := &stubProvider{statuses: []pollResponse{{status: domain.Failure("nsfw content")}}}
	f := newFlowFixture(t, provider)
	ctx := context.Background()

	outcome := f.flow.Run(ctx, imageInput(), nil)

	if outcome.State != StateFailed {
		t.Fatalf("state = %v, want failed", outcome.State)
	}
	if outcome.Result.Error != "nsfw content" {
		t.Fatalf("error = %q", outcome.Result.Error)
	}
	job, err := f.repo.GetByID(ctx, outcome.JobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusFailed || job.ErrorMessage != "nsfw content" {
		t.Fatalf("durable record = %+v", job)
	}
	if entries := f.cache.Load(ctx); len(entries) != 0 {
		t.Fatalf("failures must not enter history, got %+v", entries)
	}
	if len(f.notified) != 1 {
		t.Fatalf("notify count = %d, want exactly 1", len(f.notified))
	}
}

func TestRunTimeout(t *testing.T) {
	provider := &stubProvider{}
	f := newFlowFixture(t, provider)
	ctx := context.Background()

	outcome := f.flow.Run(ctx, imageInput(), nil)

	if outcome.State != StateTimedOut {
		t.Fatalf("state = %v, want timed out", outcome.State)
	}
	if outcome.Result.Error != "Timeout" {
		t.Fatalf("error = %q, want Timeout", outcome.Result.Error)
	}
	if provider.pollCalls != 5 {
		t.Fatalf("poll calls = %d, want 5", provider.pollCalls)
	}
	job, err := f.repo.GetByID(ctx, outcome.JobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("durable status = %v, want failed", job.Status)
	}
}

func TestRunUploadsLocalAssetsInOrder(t *testing.T) {
	provider := &stubProvider{statuses: []pollResponse{{status: domain.Succeeded("https://cdn.test/out.png")}}}
	f := newFlowFixture(t, provider)

	input := imageInput()
	input.Kind = domain.JobKindMultiImage
	input.Assets = []AssetRef{
		{Data: []byte("a"), Filename: "first.png"},
		{URL: "https://img.test/mid.png"},
		{Data: []byte("b"), Filename: "third.png"},
	}
	outcome := f.flow.Run(context.Background(), input, nil)

	if outcome.State != StateSucceeded {
		t.Fatalf("state = %v, want succeeded", outcome.State)
	}
	want := []string{
		"https://hosted.test/1-first.png",
		"https://img.test/mid.png",
		"https://hosted.test/2-third.png",
	}
	if len(f.provider.createReq.ImageInput) != len(want) {
		t.Fatalf("image_input = %v", f.provider.createReq.ImageInput)
	}
	for i, url := range want {
		if f.provider.createReq.ImageInput[i] != url {
			t.Fatalf("image_input[%d] = %q, want %q", i, f.provider.createReq.ImageInput[i], url)
		}
	}
}

func TestRunUploadFailureStopsBeforeSubmission(t *testing.T) {
	provider := &stubProvider{}
	f := newFlowFixture(t, provider)
	f.uploader.err = &domain.UploadError{Status: 502}

	input := imageInput()
	input.Assets = []AssetRef{{Data: []byte("a"), Filename: "x.png"}}
	outcome := f.flow.Run(context.Background(), input, nil)

	if outcome.State != StateFailed {
		t.Fatalf("state = %v, want failed", outcome.State)
	}
	if provider.createReq != nil {
		t.Fatal("task must not be created when upload fails")
	}
	if len(f.notified) != 1 {
		t.Fatalf("notify count = %d, want exactly 1", len(f.notified))
	}
}

func TestRunProductPhotoVariant(t *testing.T) {
	provider := &stubProvider{statuses: []pollResponse{{status: domain.Succeeded("u")}}}
	f := newFlowFixture(t, provider)

	input := imageInput()
	input.AsProductPhoto = true
	outcome := f.flow.Run(context.Background(), input, nil)

	if outcome.State != StateSucceeded {
		t.Fatalf("state = %v", outcome.State)
	}
	if f.provider.createReq.ProductPhoto != "https://img.test/src.png" {
		t.Fatalf("productPhoto = %q", f.provider.createReq.ProductPhoto)
	}
	if len(f.provider.createReq.ImageInput) != 0 {
		t.Fatalf("image_input should be empty, got %v", f.provider.createReq.ImageInput)
	}
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"empty prompt", func(in *Input) { in.Prompt = "  " }},
		{"no assets", func(in *Input) { in.Assets = nil }},
		{"multi-image needs two", func(in *Input) {
			in.Kind = domain.JobKindMultiImage
			in.Assets = in.Assets[:1]
		}},
		{"too many assets", func(in *Input) {
			in.Assets = make([]AssetRef, MaxAssets+1)
			for i := range in.Assets {
				in.Assets[i] = AssetRef{URL: fmt.Sprintf("https://img.test/%d.png", i)}
			}
		}},
		{"missing model", func(in *Input) { in.Model = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &stubProvider{}
			f := newFlowFixture(t, provider)
			input := imageInput()
			tc.mutate(&input)

			outcome := f.flow.Run(context.Background(), input, nil)
			if outcome.State != StateFailed {
				t.Fatalf("state = %v, want failed", outcome.State)
			}
			if provider.createReq != nil {
				t.Fatal("invalid input must not reach the provider")
			}
		})
	}
}

func TestRunRetriesDurableCreateAtTerminal(t *testing.T) {
	provider := &stubProvider{statuses: []pollResponse{{status: domain.Succeeded("https://cdn.test/out.png")}}}
	f := newFlowFixture(t, provider)
	f.repo.createErr = errors.New("db unavailable")
	f.repo.failOnce = true

	outcome := f.flow.Run(context.Background(), imageInput(), nil)

	if outcome.State != StateSucceeded {
		t.Fatalf("state = %v, want succeeded", outcome.State)
	}
	if outcome.JobID == "" {
		t.Fatal("terminal create retry should assign a job id")
	}
	job, err := f.repo.GetByID(context.Background(), outcome.JobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusSuccess || job.OutputURL != "https://cdn.test/out.png" {
		t.Fatalf("recreated record = %+v", job)
	}
	if job.ExternalTaskID == nil || *job.ExternalTaskID != "task-1" {
		t.Fatalf("recreated record lost task linkage: %+v", job.ExternalTaskID)
	}
}

func TestRunTaskCreationFailure(t *testing.T) {
	provider := &stubProvider{createErr: &domain.TaskCreationError{Status: 500, Message: "boom"}}
	f := newFlowFixture(t, provider)

	outcome := f.flow.Run(context.Background(), imageInput(), nil)

	if outcome.State != StateFailed {
		t.Fatalf("state = %v, want failed", outcome.State)
	}
	if provider.pollCalls != 0 {
		t.Fatal("polling must not start when task creation fails")
	}
	job, err := f.repo.GetByID(context.Background(), outcome.JobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("durable status = %v, want failed", job.Status)
	}
}

func TestRunHonorsCallerJobID(t *testing.T) {
	provider := &stubProvider{statuses: []pollResponse{{status: domain.Succeeded("u")}}}
	f := newFlowFixture(t, provider)

	input := imageInput()
	input.JobID = "caller-assigned-id"
	outcome := f.flow.Run(context.Background(), input, nil)

	if outcome.JobID != "caller-assigned-id" {
		t.Fatalf("job id = %q, want caller-assigned-id", outcome.JobID)
	}
	if _, err := f.repo.GetByID(context.Background(), "caller-assigned-id"); err != nil {
		t.Fatalf("durable record missing: %v", err)
	}
}
