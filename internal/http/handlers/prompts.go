package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"solohub/internal/middleware"
	"solohub/internal/providers/prompt"
)

type promptEnhanceRequest struct {
	Prompt string `json:"prompt"`
	Kind   string `json:"kind"`
	Style  string `json:"style"`
}

func (a *App) PromptEnhance(w http.ResponseWriter, r *http.Request) {
	var req promptEnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	res, err := a.Enhancer.Enhance(r.Context(), prompt.EnhanceRequest{
		Prompt: req.Prompt,
		Kind:   req.Kind,
		Style:  req.Style,
		Locale: locale,
	})
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "enhancer failed")
		return
	}
	a.json(w, http.StatusOK, res)
}
