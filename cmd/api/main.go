package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"solohub/internal/adapter/repo"
	"solohub/internal/genflow"
	"solohub/internal/history"
	"solohub/internal/http/handlers"
	"solohub/internal/http/httpapi"
	"solohub/internal/infra"
	"solohub/internal/infra/geoip"
	"solohub/internal/middleware"
	"solohub/internal/providers/kie"
	"solohub/internal/providers/prompt"
	"solohub/internal/providers/upload"
	"solohub/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	jobs := repo.NewJobRepository(dbpool)

	fileStore, err := storage.NewFileStore(cfg.HistoryPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure history storage")
	}
	cache := history.NewCache(fileStore, "generation-history", cfg.HistoryLimit, &logger)

	kieClient, err := kie.NewClient(kie.Options{
		APIKey:  cfg.KieAPIKey,
		BaseURL: cfg.KieBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure task client")
	}
	uploadClient, err := upload.NewClient(upload.Options{
		APIKey:  cfg.UploadAPIKey,
		BaseURL: cfg.UploadBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure upload client")
	}

	flow, err := genflow.NewFlow(genflow.Options{
		Provider: kieClient,
		Uploader: uploadClient,
		Jobs:     jobs,
		Cache:    cache,
		Poller:   genflow.NewPoller(kieClient, cfg.PollInterval, cfg.PollMaxAttempts),
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation flow")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, locale falls back to headers")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	app := &handlers.App{
		SQL:      runner,
		Jobs:     jobs,
		Flow:     flow,
		History:  cache,
		Enhancer: prompt.NewStaticEnhancer(),
		Cfg:      cfg,
		Logger:   logger,
		BaseCtx:  ctx,
	}

	router := httpapi.NewRouter(app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
