package storage

import (
	"context"
	"fmt"

	"jurisearch/internal/models"
	"jurisearch/internal/vector"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceChunks swaps a case's chunk set atomically. Embeddings hanging off
// the old chunks cascade-delete, so a re-chunk always forces a re-embed.
func (r *ChunkRepo) ReplaceChunks(ctx context.Context, caseID string, chunks []models.Chunk) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE case_id=$1::uuid`, caseID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, case_id, chunk_index, start_offset, end_offset, chunk_text)
VALUES ($1, $2::uuid, $3, $4, $5, $6)`,
			c.ChunkID, caseID, c.ChunkIndex, c.StartOffset, c.EndOffset, c.Text)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace chunks: %w", err)
	}
	return nil
}

func (r *ChunkRepo) ListChunksByCase(ctx context.Context, caseID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, case_id::text, chunk_index, start_offset, end_offset, chunk_text
FROM chunks WHERE case_id=$1::uuid ORDER BY chunk_index`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.CaseID, &c.ChunkIndex, &c.StartOffset, &c.EndOffset, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// UpsertEmbedding stores at most one vector per (chunk, model). Re-embedding
// the same chunk with the same model overwrites in place.
func (r *ChunkRepo) UpsertEmbedding(ctx context.Context, e models.Embedding) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO embeddings (chunk_id, case_id, embedding_model, embedding)
VALUES ($1, $2::uuid, $3, $4::vector)
ON CONFLICT (chunk_id, embedding_model)
DO UPDATE SET embedding = EXCLUDED.embedding, case_id = EXCLUDED.case_id, updated_at = NOW()`,
		e.ChunkID, e.CaseID, e.Model, vector.ToLiteral(e.Vector))
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// ListChunksMissingEmbedding finds chunks of indexed or processed cases that
// have no vector for the given model. Drives bulk re-embedding.
func (r *ChunkRepo) ListChunksMissingEmbedding(ctx context.Context, model string, limit int) ([]models.Chunk, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT c.chunk_id, c.case_id::text, c.chunk_index, c.start_offset, c.end_offset, c.chunk_text
FROM chunks c
LEFT JOIN embeddings e ON e.chunk_id = c.chunk_id AND e.embedding_model = $1
WHERE e.chunk_id IS NULL
ORDER BY c.case_id, c.chunk_index
LIMIT $2`, model, limit)
	if err != nil {
		return nil, fmt.Errorf("list chunks missing embedding: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.CaseID, &c.ChunkIndex, &c.StartOffset, &c.EndOffset, &c.Text); err != nil {
			return nil, fmt.Errorf("scan missing chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missing chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepo) CountEmbeddings(ctx context.Context, model string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM embeddings WHERE embedding_model=$1`, model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}
