package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/taxindex/internal/api"
	"github.com/dgallion1/taxindex/internal/catalog"
	"github.com/dgallion1/taxindex/internal/config"
	"github.com/dgallion1/taxindex/internal/metrics"
	"github.com/dgallion1/taxindex/internal/pipeline"
	"github.com/dgallion1/taxindex/internal/source"
	"github.com/dgallion1/taxindex/internal/stats"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize shared state.
	cat := catalog.New()
	statuses := make([]string, 0, len(pipeline.FinalStatuses))
	for _, st := range pipeline.FinalStatuses {
		statuses = append(statuses, string(st))
	}
	m := metrics.New(statuses...)
	fetcher := source.NewFetcher(cfg.MaxSourceBytes, source.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
	})

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, fetcher, cat, m, log)
	orch.Start(ctx)
	if jobs, err := orch.LoadConfigured(); err != nil {
		log.Error("initial load not queued", "error", err)
	} else {
		for _, j := range jobs {
			log.Info("queued initial load", "job_id", j.ID, "dialect", j.Dialect, "source", j.Source)
		}
	}

	// Initialize HTTP server.
	srv := api.NewServer(orch, m, stats.NewQueries(cfg.StatsWindow), log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting taxindex", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
