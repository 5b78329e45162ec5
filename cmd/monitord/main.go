// Command monitord runs the channel monitor service: it subscribes to
// broadcast channels through the channel gateway, normalizes and scores
// incoming messages, and persists them to the warehouse.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gadicohen93/Veriver/internal/api"
	"github.com/gadicohen93/Veriver/internal/channel"
	"github.com/gadicohen93/Veriver/internal/config"
	"github.com/gadicohen93/Veriver/internal/logger"
	"github.com/gadicohen93/Veriver/internal/media"
	"github.com/gadicohen93/Veriver/internal/monitor"
	"github.com/gadicohen93/Veriver/internal/normalize"
	"github.com/gadicohen93/Veriver/internal/scoring"
	"github.com/gadicohen93/Veriver/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting channel monitor",
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
	)

	ctx := context.Background()

	warehouse, err := store.OpenClickHouse(ctx, store.ClickHouseConfig{
		Addr:     cfg.Warehouse.Addr,
		Database: cfg.Warehouse.Database,
		Username: cfg.Warehouse.Username,
		Password: cfg.Warehouse.Password,
		Table:    cfg.Warehouse.Table,
	})
	if err != nil {
		log.Fatal("failed to connect to warehouse", logger.Error(err))
	}
	defer func() { _ = warehouse.Close() }()

	if err := warehouse.EnsureTable(ctx); err != nil {
		log.Fatal("failed to ensure message table", logger.Error(err))
	}

	bucket, err := media.OpenBlobStore(ctx, cfg.Media.BucketURL, cfg.Media.PublicBaseURL)
	if err != nil {
		log.Fatal("failed to open media bucket", logger.Error(err))
	}
	defer func() { _ = bucket.Close() }()

	client := channel.NewGatewayClient(cfg.Gateway.URL, log)
	defer client.Close()

	mediaHandler, err := media.NewHandler(client, bucket, cfg.Media.StagingDir, log)
	if err != nil {
		log.Fatal("failed to initialize media handler", logger.Error(err))
	}

	scorer := scoring.NewScorer(scoring.NewAnthropicClient(scoring.AnthropicConfig{
		APIKey:    cfg.Scoring.APIKey,
		Model:     cfg.Scoring.Model,
		MaxTokens: cfg.Scoring.MaxTokens,
		Timeout:   cfg.Scoring.Timeout,
	}), log)

	messageStore := store.New(warehouse, store.Options{
		MaxRetries:   cfg.Warehouse.MaxRetries,
		InitialDelay: cfg.Warehouse.RetryDelay,
		MaxDelay:     cfg.Warehouse.MaxDelay,
	}, log)

	normalizer := normalize.New(mediaHandler, scorer)

	mon := monitor.New(client, normalizer, messageStore, monitor.Options{
		BackfillLimit: cfg.Service.BackfillLimit,
	}, log)

	handler := api.NewHandler(mon, cfg.Service.Version, log)
	server := api.NewServer(handler, api.ServerConfig{
		Port:  cfg.Service.Port,
		Debug: cfg.Service.Debug,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", logger.Error(err))
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", logger.Error(err))
			_ = server.Close()
		}
	}

	log.Info("channel monitor stopped")
}
