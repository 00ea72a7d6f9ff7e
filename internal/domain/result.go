package domain

import "time"

// ResultState is the caller-facing terminal state vocabulary, mirroring
// the provider's own success/fail wording.
type ResultState string

const (
	ResultStateSuccess ResultState = "success"
	ResultStateFail    ResultState = "fail"
)

// GenerationResult is the final value handed to the caller once a flow
// reaches a terminal state.
type GenerationResult struct {
	TaskID    string      `json:"taskId"`
	State     ResultState `json:"state"`
	ImageURL  string      `json:"imageUrl,omitempty"`
	VideoURL  string      `json:"videoUrl,omitempty"`
	Error     string      `json:"error,omitempty"`
	Prompt    string      `json:"prompt,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`
}

// OutputURL returns whichever output reference the result carries.
func (r GenerationResult) OutputURL() string {
	if r.ImageURL != "" {
		return r.ImageURL
	}
	return r.VideoURL
}

// ProviderPhase tags the canonical provider status union.
type ProviderPhase int

const (
	ProviderPending ProviderPhase = iota
	ProviderSucceeded
	ProviderFailed
)

// ProviderStatus is the canonical form of one status-poll response,
// normalized from the provider's loosely typed envelope by a
// provider-specific adapter.
type ProviderStatus struct {
	Phase  ProviderPhase
	URL    string
	Reason string
}

// Pending returns the canonical in-progress status.
func Pending() ProviderStatus { return ProviderStatus{Phase: ProviderPending} }

// Succeeded returns a canonical success carrying the first output URL.
func Succeeded(url string) ProviderStatus {
	return ProviderStatus{Phase: ProviderSucceeded, URL: url}
}

// Failure returns a canonical failure carrying the provider message.
func Failure(reason string) ProviderStatus {
	return ProviderStatus{Phase: ProviderFailed, Reason: reason}
}
