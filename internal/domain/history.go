package domain

import "time"

// HistoryState mirrors the provider state vocabulary stored in the local
// resumable cache.
type HistoryState string

const (
	HistoryStateGenerating HistoryState = "generating"
	HistoryStateSuccess    HistoryState = "success"
	HistoryStateFail       HistoryState = "fail"
)

// HistoryEntry is the subset of a generation job kept in the local cache
// so the UI can resume instantly without waiting on the durable store.
type HistoryEntry struct {
	TaskID    string       `json:"taskId"`
	State     HistoryState `json:"state"`
	OutputURL string       `json:"outputUrl,omitempty"`
	Prompt    string       `json:"prompt,omitempty"`
	Kind      JobKind      `json:"kind,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Result converts the cached entry back into the caller-facing shape.
func (e HistoryEntry) Result() GenerationResult {
	res := GenerationResult{
		TaskID:    e.TaskID,
		Prompt:    e.Prompt,
		CreatedAt: e.CreatedAt,
	}
	if e.State == HistoryStateSuccess {
		res.State = ResultStateSuccess
		if e.Kind == JobKindVideo {
			res.VideoURL = e.OutputURL
		} else {
			res.ImageURL = e.OutputURL
		}
	} else {
		res.State = ResultStateFail
	}
	return res
}

// EntryFromResult builds the cached representation of a terminal result.
func EntryFromResult(kind JobKind, res GenerationResult) HistoryEntry {
	state := HistoryStateFail
	if res.State == ResultStateSuccess {
		state = HistoryStateSuccess
	}
	return HistoryEntry{
		TaskID:    res.TaskID,
		State:     state,
		OutputURL: res.OutputURL(),
		Prompt:    res.Prompt,
		Kind:      kind,
		CreatedAt: res.CreatedAt,
	}
}
