package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ImperatorDravidor/inflio-sub007/internal/analysis"
	"github.com/ImperatorDravidor/inflio-sub007/internal/api"
	"github.com/ImperatorDravidor/inflio-sub007/internal/config"
	"github.com/ImperatorDravidor/inflio-sub007/internal/logger"
	"github.com/ImperatorDravidor/inflio-sub007/internal/media"
	"github.com/ImperatorDravidor/inflio-sub007/internal/persist"
	"github.com/ImperatorDravidor/inflio-sub007/internal/pipeline"
	"github.com/ImperatorDravidor/inflio-sub007/internal/progress"
	"github.com/ImperatorDravidor/inflio-sub007/internal/report"
	"github.com/ImperatorDravidor/inflio-sub007/internal/retry"
	"github.com/ImperatorDravidor/inflio-sub007/internal/transcription"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "ingestion-pipeline").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	store, err := progress.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open run store")
	}
	defer store.Close()

	gateway, err := persist.Open(cfg.ContentDBPath, &report.Writer{Dir: cfg.ReportDir})
	if err != nil {
		log.WithError(err).Fatal("failed to open content store")
	}
	defer gateway.Close()

	policy := retry.Policy{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		IsRetryable:  retry.Transient,
	}

	// Adapter strategy is fixed at startup: real remote clients or the
	// deterministic fallback-only ones.
	var transcriber transcription.Service
	if cfg.TranscriptionMode == config.ModeFallback {
		log.Warn("transcription running in fallback-only mode")
		transcriber = transcription.FallbackOnly{}
	} else {
		transcriber = transcription.NewClient(transcription.ClientOptions{
			BaseURL:      cfg.TranscribeURL,
			APIKey:       cfg.TranscribeAPIKey,
			Resolver:     media.NewStorageResolver(cfg.StorageURL, cfg.StorageAPIKey),
			SignedURLTTL: cfg.SignedURLTTL,
			PollInterval: cfg.TranscribePollInterval,
			JobTimeout:   cfg.TranscribeTimeout,
			Policy:       policy,
		})
	}

	var analyzer analysis.Service
	if cfg.AnalysisMode == config.ModeFallback {
		log.Warn("analysis running in fallback-only mode")
		analyzer = analysis.FallbackOnly{}
	} else {
		analyzer = analysis.NewClient(analysis.ClientOptions{
			GatewayURL: cfg.AnalysisURL,
			APIKey:     cfg.AnalysisAPIKey,
			Model:      cfg.AnalysisModel,
			Timeout:    cfg.AnalysisTimeout,
			Policy:     policy,
		})
	}

	orch := pipeline.New(pipeline.Options{
		Transcriber: transcriber,
		Analyzer:    analyzer,
		Tracker:     store,
		Gateway:     gateway,
		RunTimeout:  cfg.RunTimeout,
	})

	router := api.NewRouter(api.NewPipelineHandler(orch, store))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	orch.Shutdown()
	log.Info("stopped")
}
