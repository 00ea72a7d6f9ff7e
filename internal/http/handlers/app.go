package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"solohub/internal/domain"
	"solohub/internal/genflow"
	"solohub/internal/history"
	"solohub/internal/infra"
	"solohub/internal/providers/prompt"
)

// flowSlack is added on top of the polling budget when a generation is
// detached from its originating request.
const flowSlack = 2 * time.Minute

// App bundles the dependencies handlers need.
type App struct {
	SQL      infra.SQLExecutor
	Jobs     domain.JobRepository
	Flow     *genflow.Flow
	History  *history.Cache
	Enhancer prompt.Enhancer
	Cfg      *infra.Config
	Logger   infra.Logger

	// BaseCtx outlives individual requests; detached generation flows
	// derive from it so process shutdown still cancels them.
	BaseCtx context.Context
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, errorBody{Error: slug, Message: message})
}

// detachedCtx derives a context for work that must survive the HTTP
// request but not the process.
func (a *App) detachedCtx(budget time.Duration) (context.Context, context.CancelFunc) {
	base := a.BaseCtx
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, budget+flowSlack)
}
