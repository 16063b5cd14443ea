// Command create-schema applies the database schema. Safe to re-run.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"jurisearch/internal/config"
	"jurisearch/internal/logging"
	"jurisearch/internal/storage"
)

func ddl(embedDim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS cases (
			id UUID PRIMARY KEY,
			case_number TEXT NOT NULL UNIQUE,
			court TEXT NOT NULL DEFAULT 'TJSP',
			chamber TEXT,
			county TEXT,
			judge TEXT,
			judgment_date DATE,
			compensation_amount DOUBLE PRECISION,
			category TEXT,
			source_url TEXT,
			file_path TEXT,
			status TEXT NOT NULL DEFAULT 'downloaded',
			fail_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_status ON cases (status)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_judgment_date ON cases (judgment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_county ON cases (county)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_chamber ON cases (chamber)`,

		`CREATE TABLE IF NOT EXISTS documents (
			case_id UUID PRIMARY KEY REFERENCES cases(id) ON DELETE CASCADE,
			raw_text TEXT NOT NULL,
			text_size INTEGER NOT NULL DEFAULT 0,
			summary TEXT,
			tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('portuguese', raw_text)) STORED,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_tsv ON documents USING GIN (tsv)`,

		`CREATE TABLE IF NOT EXISTS chunks (
			chunk_id TEXT PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			start_offset INTEGER NOT NULL DEFAULT 0,
			end_offset INTEGER NOT NULL DEFAULT 0,
			chunk_text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_case ON chunks (case_id, chunk_index)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embeddings (
			chunk_id TEXT NOT NULL REFERENCES chunks(chunk_id) ON DELETE CASCADE,
			case_id UUID NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
			embedding_model TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chunk_id, embedding_model)
		)`, embedDim),
		`CREATE INDEX IF NOT EXISTS idx_embeddings_case ON embeddings (case_id)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_vector ON embeddings
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,

		`CREATE TABLE IF NOT EXISTS search_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			query TEXT NOT NULL,
			mode TEXT NOT NULL,
			semantic_weight DOUBLE PRECISION NOT NULL DEFAULT 0.7,
			filters JSONB,
			total_found INTEGER NOT NULL DEFAULT 0,
			returned INTEGER NOT NULL DEFAULT 0,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			case_ids TEXT[],
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_logs_created ON search_logs (created_at)`,
	}
}

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("postgres connect failed", zap.Error(err))
	}
	defer db.Close()

	for _, stmt := range ddl(cfg.EmbedDim) {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			logger.Fatal("schema statement failed", zap.String("stmt", stmt), zap.Error(err))
		}
	}
	logger.Info("schema applied", zap.Int("embed_dim", cfg.EmbedDim))
}
