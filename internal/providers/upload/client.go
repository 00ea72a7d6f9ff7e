package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solohub/internal/domain"
	"solohub/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("upload: api key is required")

// Options configures the asset upload client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client transfers local asset bytes to the upload collaborator and
// returns the public URL it assigns. The service itself is an opaque
// collaborator; only its wire contract is relied upon here.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.imgbb.com/1"
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

// Upload sends the asset as a multipart form and returns the hosted URL.
// Any transport error or non-2xx response yields a domain.UploadError.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if len(data) == 0 {
		return "", errors.New("upload: empty asset")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", sanitizeFilename(filename))
	if err != nil {
		return "", fmt.Errorf("upload: build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("upload: write form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("upload: close form: %w", err)
	}

	endpoint := c.baseURL + "/upload?key=" + url.QueryEscape(c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.UploadError{Err: fmt.Errorf("upload: http request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.UploadError{Err: fmt.Errorf("upload: read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return "", &domain.UploadError{Status: resp.StatusCode}
	}
	var decoded uploadResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.UploadError{Err: fmt.Errorf("upload: decode response: %w", err)}
	}
	hosted := strings.TrimSpace(decoded.Data.URL)
	if hosted == "" {
		return "", &domain.UploadError{Err: errors.New("upload: response carries no url")}
	}
	c.logger.Debug().Str("url", hosted).Msg("upload: asset hosted")
	return hosted, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "asset.png"
	}
	return name
}
