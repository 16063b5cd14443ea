package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"jurisearch/internal/activities"
	"jurisearch/internal/config"
	"jurisearch/internal/logging"
	"jurisearch/internal/storage"
	"jurisearch/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("temporal dial failed", zap.Error(err))
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("postgres connect failed", zap.Error(err))
	}
	defer db.Close()
	a, err := activities.New(cfg, db)
	if err != nil {
		logger.Fatal("activities init failed", zap.Error(err))
	}
	activities.Register(w, a)

	logger.Info("jurisearch worker started",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("embed_providers", cfg.EmbedProviders),
		zap.String("llm_providers", cfg.LLMProviders))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker exited", zap.Error(err))
	}
}
