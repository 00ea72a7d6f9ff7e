package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solohub/internal/domain"
	"solohub/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("kie: api key is required")

// Options configures the KIE task API client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the provider's task creation and
// record-info endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// TaskRequest captures the inputs of one task creation call. ImageInput
// and ProductPhoto are mutually exclusive payload shapes; which one a
// model expects is decided by the caller.
type TaskRequest struct {
	Model        string
	Prompt       string
	ImageInput   []string
	ProductPhoto string
	AspectRatio  string
	Resolution   string
	OutputFormat string
}

type taskInput struct {
	Prompt       string   `json:"prompt"`
	ImageInput   []string `json:"image_input,omitempty"`
	ProductPhoto string   `json:"productPhoto,omitempty"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	Resolution   string   `json:"resolution,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
}

type createTaskRequest struct {
	Model string    `json:"model"`
	Input taskInput `json:"input"`
}

type createTaskResponse struct {
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RecordInfo is the raw status envelope returned by the provider. State
// is one of generating, success or fail; ResultJSON is itself a
// JSON-encoded string holding the result URLs.
type RecordInfo struct {
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailMsg    string `json:"failMsg"`
}

type recordInfoResponse struct {
	Data    RecordInfo `json:"data"`
	Code    int        `json:"code"`
	Message string     `json:"message"`
}

type resultEnvelope struct {
	ResultURLs []string `json:"resultUrls"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kie.ai/api/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateTask submits a generation task and returns the opaque task id.
// Any non-2xx response or a response without a task id yields a
// domain.TaskCreationError.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("kie: prompt is required")
	}
	payload := createTaskRequest{
		Model: req.Model,
		Input: taskInput{
			Prompt:       prompt,
			ImageInput:   req.ImageInput,
			ProductPhoto: req.ProductPhoto,
			AspectRatio:  req.AspectRatio,
			Resolution:   req.Resolution,
			OutputFormat: req.OutputFormat,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kie: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/createTask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kie: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.TaskCreationError{Err: fmt.Errorf("kie: http request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.TaskCreationError{Err: fmt.Errorf("kie: read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		var detail createTaskResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return "", &domain.TaskCreationError{Status: resp.StatusCode, Message: detail.Message}
		}
		return "", &domain.TaskCreationError{Status: resp.StatusCode}
	}
	var decoded createTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.TaskCreationError{Err: fmt.Errorf("kie: decode response: %w", err)}
	}
	taskID := strings.TrimSpace(decoded.Data.TaskID)
	if taskID == "" {
		return "", &domain.TaskCreationError{Status: resp.StatusCode, Message: "response carries no task id"}
	}
	c.logger.Debug().
		Str("model", req.Model).
		Str("task_id", taskID).
		Msg("kie: task created")
	return taskID, nil
}

// PollOnce fetches the record info for a task and maps it to the
// canonical provider status.
func (c *Client) PollOnce(ctx context.Context, taskID string) (domain.ProviderStatus, error) {
	if !c.HasCredentials() {
		return domain.ProviderStatus{}, ErrMissingAPIKey
	}
	endpoint := c.baseURL + "/jobs/recordInfo?taskId=" + url.QueryEscape(taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.ProviderStatus{}, fmt.Errorf("kie: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ProviderStatus{}, fmt.Errorf("kie: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ProviderStatus{}, fmt.Errorf("kie: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return domain.ProviderStatus{}, fmt.Errorf("kie: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded recordInfoResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.ProviderStatus{}, fmt.Errorf("kie: decode response: %w", err)
	}
	return MapStatus(taskID, decoded.Data)
}

// MapStatus normalizes one raw record-info envelope into the canonical
// tagged union. It is independent of the polling loop so each provider
// shape stays unit-testable on its own.
func MapStatus(taskID string, info RecordInfo) (domain.ProviderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(info.State)) {
	case "generating", "queuing", "waiting", "":
		return domain.Pending(), nil
	case "success":
		outputURL, err := firstResultURL(info.ResultJSON)
		if err != nil || outputURL == "" {
			return domain.ProviderStatus{}, &domain.MalformedResultError{TaskID: taskID}
		}
		return domain.Succeeded(outputURL), nil
	case "fail":
		reason := strings.TrimSpace(info.FailMsg)
		if reason == "" {
			reason = "generation failed"
		}
		return domain.Failure(reason), nil
	default:
		return domain.ProviderStatus{}, fmt.Errorf("kie: unknown state %q", info.State)
	}
}

// firstResultURL unwraps the nested JSON-encoded result envelope and
// returns its first URL.
func firstResultURL(resultJSON string) (string, error) {
	trimmed := strings.TrimSpace(resultJSON)
	if trimmed == "" {
		return "", errors.New("kie: empty result envelope")
	}
	var envelope resultEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return "", fmt.Errorf("kie: decode result envelope: %w", err)
	}
	for _, u := range envelope.ResultURLs {
		if cleaned := strings.TrimSpace(u); cleaned != "" {
			return cleaned, nil
		}
	}
	return "", errors.New("kie: result envelope carries no urls")
}
