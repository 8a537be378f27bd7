package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/vmalyshev/studycast/internal/adapters/http"
	"github.com/vmalyshev/studycast/internal/bootstrap"
	"github.com/vmalyshev/studycast/internal/config"
	"github.com/vmalyshev/studycast/internal/observability/logging"
	"github.com/vmalyshev/studycast/internal/observability/metrics"
)

const service = "studycast-api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(httpadapter.RouterConfig{
		Sessions:       app.Sessions,
		Podcasts:       app.Podcasts,
		Catalog:        app.Catalog,
		Storage:        app.Storage,
		Metrics:        metrics.NewHTTPServerMetrics(service),
		Service:        service,
		MaxUploadBytes: cfg.MaxUploadSizeBytes,
		RequestsPerMin: cfg.ClientRequestsPerMin,
		Logger:         logger,
	})
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
