package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		model string
		want  float64
	}{
		{"nano-banana", 0.020},
		{"nano-banana-pro", 0.090},
		{"runway", 0.250},
		{"veo3", 0.400},
		{"veo3_fast", 0.150},
		{"unknown-model", 0},
	}
	for _, tc := range tests {
		if got := EstimateCost(tc.model); got != tc.want {
			t.Fatalf("EstimateCost(%q) = %v, want %v", tc.model, got, tc.want)
		}
	}
}

func TestErrorUnwrapping(t *testing.T) {
	base := errors.New("connection reset")

	var uErr *UploadError
	if !errors.As(&UploadError{Err: base}, &uErr) {
		t.Fatal("UploadError should satisfy errors.As")
	}
	if !errors.Is(&UploadError{Err: base}, base) {
		t.Fatal("UploadError should unwrap to its cause")
	}

	var pErr *PollingNetworkError
	wrapped := &PollingNetworkError{Attempt: 3, Err: base}
	if !errors.As(error(wrapped), &pErr) || pErr.Attempt != 3 {
		t.Fatalf("PollingNetworkError attempt = %d", pErr.Attempt)
	}
	if !errors.Is(wrapped, base) {
		t.Fatal("PollingNetworkError should unwrap to its cause")
	}
}

func TestGenerationResultOutputURL(t *testing.T) {
	img := GenerationResult{ImageURL: "https://cdn.test/a.png"}
	if img.OutputURL() != "https://cdn.test/a.png" {
		t.Fatalf("OutputURL = %q", img.OutputURL())
	}
	vid := GenerationResult{VideoURL: "https://cdn.test/a.mp4"}
	if vid.OutputURL() != "https://cdn.test/a.mp4" {
		t.Fatalf("OutputURL = %q", vid.OutputURL())
	}
}

func TestHistoryEntryResultRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	res := GenerationResult{
		TaskID:    "task-1",
		State:     ResultStateSuccess,
		VideoURL:  "https://cdn.test/a.mp4",
		Prompt:    "waves",
		CreatedAt: now,
	}
	entry := EntryFromResult(JobKindVideo, res)
	if entry.State != HistoryStateSuccess || entry.OutputURL != "https://cdn.test/a.mp4" {
		t.Fatalf("entry = %+v", entry)
	}
	back := entry.Result()
	if back.VideoURL != res.VideoURL || back.ImageURL != "" {
		t.Fatalf("round trip = %+v", back)
	}
	if back.State != ResultStateSuccess {
		t.Fatalf("state = %v", back.State)
	}
}

func TestJobTerminal(t *testing.T) {
	if (&GenerationJob{Status: JobStatusProcessing}).Terminal() {
		t.Fatal("processing is not terminal")
	}
	if !(&GenerationJob{Status: JobStatusSuccess}).Terminal() {
		t.Fatal("success is terminal")
	}
	if !(&GenerationJob{Status: JobStatusFailed}).Terminal() {
		t.Fatal("failed is terminal")
	}
}
