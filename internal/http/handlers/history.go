package handlers

import (
	"net/http"

	"solohub/internal/domain"
)

// HistoryList returns the local resumable history, newest first.
func (a *App) HistoryList(w http.ResponseWriter, r *http.Request) {
	entries := a.History.Load(r.Context())
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": entries})
}

// HistoryLatest returns the most recent successful generation, if any.
func (a *App) HistoryLatest(w http.ResponseWriter, r *http.Request) {
	entry, ok := a.History.Latest(r.Context())
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "no completed generation in history")
		return
	}
	a.json(w, http.StatusOK, entry)
}

// HistoryClear wipes the local history cache.
func (a *App) HistoryClear(w http.ResponseWriter, r *http.Request) {
	a.History.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
