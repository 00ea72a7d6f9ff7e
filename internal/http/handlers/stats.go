package handlers

import (
	"net/http"

	"solohub/internal/sqlinline"
)

func (a *App) GenerationStats(w http.ResponseWriter, r *http.Request) {
	row := a.SQL.QueryRow(r.Context(), sqlinline.QGenerationStats)
	var (
		total, succeeded, failed, processing, videoSucceeded, last24 int64
		totalCostUSD                                                 float64
	)
	if err := row.Scan(&total, &succeeded, &failed, &processing, &videoSucceeded, &last24, &totalCostUSD); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"total":           total,
		"succeeded":       succeeded,
		"failed":          failed,
		"processing":      processing,
		"video_succeeded": videoSucceeded,
		"last_24h":        last24,
		"total_cost_usd":  totalCostUSD,
	})
}
