package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"solohub/internal/domain"
	"solohub/internal/domain/jsoncfg"
	"solohub/internal/genflow"
	"solohub/internal/sqlinline"
)

type assetPayload struct {
	URL        string `json:"url"`
	DataBase64 string `json:"data_base64"`
	Filename   string `json:"filename"`
}

type generateRequest struct {
	Kind           string               `json:"kind"`
	Prompt         string               `json:"prompt"`
	Model          string               `json:"model"`
	Assets         []assetPayload       `json:"assets"`
	Settings       jsoncfg.SettingsJSON `json:"settings"`
	AsProductPhoto bool                 `json:"as_product_photo"`
}

type generateResponse struct {
	JobID            string  `json:"job_id"`
	Status           string  `json:"status"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Generate accepts a generation request, answers 202 immediately, and
// drives the flow to completion in the background.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	input, err := a.buildInput(req)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ctx, cancel := a.detachedCtx(a.Flow.Budget())
	go func() {
		defer cancel()
		outcome := a.Flow.Run(ctx, input, nil)
		a.Logger.Info().
			Str("job_id", outcome.JobID).
			Str("state", string(outcome.State)).
			Msg("generation finished")
	}()

	a.json(w, http.StatusAccepted, generateResponse{
		JobID:            input.JobID,
		Status:           string(domain.JobStatusProcessing),
		EstimatedCostUSD: domain.EstimateCost(input.Model),
	})
}

func (a *App) buildInput(req generateRequest) (genflow.Input, error) {
	kind := domain.JobKind(req.Kind)
	switch kind {
	case domain.JobKindImage, domain.JobKindMultiImage, domain.JobKindVideo:
	case "":
		kind = domain.JobKindImage
	default:
		return genflow.Input{}, errors.New("unsupported kind")
	}

	settings := req.Settings
	if kind == domain.JobKindVideo {
		if settings.OutputFormat == "" {
			settings.OutputFormat = "mp4"
		}
		if settings.Duration == 0 {
			settings.Duration = jsoncfg.DefaultVideoDuration
		}
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return genflow.Input{}, err
	}

	assets := make([]genflow.AssetRef, 0, len(req.Assets))
	for _, asset := range req.Assets {
		if asset.URL != "" {
			assets = append(assets, genflow.AssetRef{URL: asset.URL})
			continue
		}
		data, err := base64.StdEncoding.DecodeString(asset.DataBase64)
		if err != nil || len(data) == 0 {
			return genflow.Input{}, errors.New("asset must carry url or data_base64")
		}
		assets = append(assets, genflow.AssetRef{Data: data, Filename: asset.Filename})
	}

	return genflow.Input{
		JobID:          uuid.NewString(),
		Kind:           kind,
		Prompt:         req.Prompt,
		Assets:         assets,
		Model:          req.Model,
		Settings:       settings,
		AsProductPhoto: req.AsProductPhoto,
	}, nil
}

// GenerationStatus returns the durable record of one generation.
func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "generation not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load generation")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":               job.ID,
		"kind":             job.Kind,
		"status":           job.Status,
		"prompt":           job.Prompt,
		"model":            job.Model,
		"settings":         json.RawMessage(job.Settings),
		"external_task_id": job.ExternalTaskID,
		"output_url":       job.OutputURL,
		"error_message":    job.ErrorMessage,
		"cost_usd":         job.CostUSD,
		"created_at":       job.CreatedAt,
		"completed_at":     job.CompletedAt,
	})
}

// GenerationsRecent lists the newest durable records.
func (a *App) GenerationsRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	rows, err := a.SQL.Query(r.Context(), sqlinline.QRecentGenerations, limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list generations")
		return
	}
	defer rows.Close()

	items := make([]map[string]any, 0, limit)
	for rows.Next() {
		var (
			id, kind, status, prompt, model string
			externalTaskID, outputURL       *string
			errorMessage                    *string
			costUSD                         float64
			createdAt                       any
			completedAt                     any
		)
		if err := rows.Scan(&id, &kind, &status, &prompt, &model, &externalTaskID, &outputURL, &errorMessage, &costUSD, &createdAt, &completedAt); err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to scan generation")
			return
		}
		items = append(items, map[string]any{
			"id":               id,
			"kind":             kind,
			"status":           status,
			"prompt":           prompt,
			"model":            model,
			"external_task_id": externalTaskID,
			"output_url":       outputURL,
			"error_message":    errorMessage,
			"cost_usd":         costUSD,
			"created_at":       createdAt,
			"completed_at":     completedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
