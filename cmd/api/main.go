package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"jurisearch/internal/api"
	"jurisearch/internal/config"
	"jurisearch/internal/logging"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	h := api.NewServer(cfg, logger)
	logger.Info("jurisearch api listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("embed_providers", cfg.EmbedProviders),
		zap.String("llm_providers", cfg.LLMProviders))
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		logger.Fatal("api server exited", zap.Error(err))
	}
}
