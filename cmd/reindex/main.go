// Command reindex backfills embeddings for chunks that have no vector under
// the configured model, e.g. after switching embedding models.
package main

import (
	"context"
	"flag"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"jurisearch/internal/config"
	"jurisearch/internal/embedding"
	"jurisearch/internal/logging"
	"jurisearch/internal/providers"
	"jurisearch/internal/storage"
	"jurisearch/internal/vector"
)

func main() {
	workers := flag.Int("workers", 4, "concurrent embedding workers")
	batch := flag.Int("batch", 200, "chunks fetched per round")
	flag.Parse()

	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	cancel()
	if err != nil {
		logger.Fatal("postgres connect failed", zap.Error(err))
	}
	defer db.Close()

	pm, err := providers.NewManager(cfg)
	if err != nil {
		logger.Fatal("provider init failed", zap.Error(err))
	}
	chunkRepo := storage.NewChunkRepo(db)
	store := embedding.NewStore(
		pm.FirstEmbedProvider(),
		chunkRepo,
		vector.NewSearcher(db.Pool),
		cfg.EmbedModel,
		cfg.EmbedDim,
		cfg.SimilarityThreshold,
		logger,
	)

	pool, err := ants.NewPool(*workers)
	if err != nil {
		logger.Fatal("pool init failed", zap.Error(err))
	}
	defer pool.Release()

	total := 0
	failed := 0
	for {
		chunks, err := chunkRepo.ListChunksMissingEmbedding(context.Background(), cfg.EmbedModel, *batch)
		if err != nil {
			logger.Fatal("list missing chunks failed", zap.Error(err))
		}
		if len(chunks) == 0 {
			break
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, c := range chunks {
			chunk := c
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				cctx, ccancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer ccancel()
				if err := store.Add(cctx, chunk); err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					logger.Warn("re-embed failed",
						zap.String("chunk_id", chunk.ChunkID),
						zap.String("case_id", chunk.CaseID),
						zap.Error(err))
				}
			}); err != nil {
				wg.Done()
				logger.Warn("pool submit failed", zap.Error(err))
			}
		}
		wg.Wait()
		total += len(chunks)
		logger.Info("re-embed round complete", zap.Int("processed", total), zap.Int("failed", failed))
	}

	count, err := chunkRepo.CountEmbeddings(context.Background(), cfg.EmbedModel)
	if err == nil {
		logger.Info("reindex finished",
			zap.Int("processed", total),
			zap.Int("failed", failed),
			zap.String("model", cfg.EmbedModel),
			zap.Int("embeddings_stored", count))
	}
}
