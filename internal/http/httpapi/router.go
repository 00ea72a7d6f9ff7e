package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"solohub/internal/http/handlers"
	"solohub/internal/middleware"
)

// NewRouter wires every HTTP surface of the service.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) stdhttp.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Cfg.CORSAllowedOrigins),
		middleware.I18N(app.Cfg.DefaultLocale, lookup),
		middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/generations", func(r chi.Router) {
		r.Post("/", app.Generate)
		r.Get("/", app.GenerationsRecent)
		r.Get("/{job_id}", app.GenerationStatus)
	})

	r.Route("/v1/history", func(r chi.Router) {
		r.Get("/", app.HistoryList)
		r.Get("/latest", app.HistoryLatest)
		r.Delete("/", app.HistoryClear)
	})

	r.Post("/v1/prompts/enhance", app.PromptEnhance)
	r.Get("/v1/stats/generations", app.GenerationStats)

	return r
}
