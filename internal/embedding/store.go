// Package embedding maps text to vectors and persists them per chunk.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"jurisearch/internal/models"
	"jurisearch/internal/providers"
	"jurisearch/internal/util"
)

// VectorWriter persists one vector per (chunk, model).
type VectorWriter interface {
	UpsertEmbedding(ctx context.Context, e models.Embedding) error
}

// CaseSearcher ranks cases against a query vector.
type CaseSearcher interface {
	SearchCases(ctx context.Context, queryVec []float32, model string, limit int, threshold float64) ([]models.CaseScore, error)
}

// Store ties an embedding provider to vector persistence and similarity
// search. All stored and queried vectors are L2-normalized here, so cosine
// distances in the database compare like-for-like.
type Store struct {
	provider  providers.EmbeddingProvider
	writer    VectorWriter
	searcher  CaseSearcher
	model     string
	dim       int
	threshold float64
	log       *zap.Logger
}

func NewStore(provider providers.EmbeddingProvider, writer VectorWriter, searcher CaseSearcher, model string, dim int, threshold float64, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{provider: provider, writer: writer, searcher: searcher, model: model, dim: dim, threshold: threshold, log: log}
}

func (s *Store) Model() string { return s.model }

// Embed converts one text into a normalized vector. Empty or whitespace-only
// input is rejected before any provider call.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, util.ErrEmptyText
	}
	vecs, _, err := s.provider.Embed(ctx, providers.EmbedRequest{
		Operation: "embed",
		Inputs:    []string{text},
		Dimension: s.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed text: provider returned %d vectors for 1 input", len(vecs))
	}
	return s.checkAndNormalize(vecs[0])
}

// Add embeds a chunk and stores the vector, overwriting any previous vector
// for the same chunk and model.
func (s *Store) Add(ctx context.Context, chunk models.Chunk) error {
	vec, err := s.Embed(ctx, chunk.Text)
	if err != nil {
		return err
	}
	err = s.writer.UpsertEmbedding(ctx, models.Embedding{
		ChunkID: chunk.ChunkID,
		CaseID:  chunk.CaseID,
		Model:   s.model,
		Vector:  vec,
	})
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// BatchStatus reports the outcome of one chunk in a batch add.
type BatchStatus struct {
	ChunkID string
	Err     error
}

// AddBatch embeds and stores chunks together. One provider batch call covers
// all non-empty inputs; if the batch call fails, each chunk is retried alone
// so a single poison input cannot sink the batch. Per-chunk outcomes come
// back positionally.
func (s *Store) AddBatch(ctx context.Context, chunks []models.Chunk) []BatchStatus {
	statuses := make([]BatchStatus, len(chunks))
	inputs := make([]string, 0, len(chunks))
	indexes := make([]int, 0, len(chunks))
	for i, c := range chunks {
		statuses[i].ChunkID = c.ChunkID
		if strings.TrimSpace(c.Text) == "" {
			statuses[i].Err = util.ErrEmptyText
			continue
		}
		inputs = append(inputs, c.Text)
		indexes = append(indexes, i)
	}
	if len(inputs) == 0 {
		return statuses
	}

	vecs, _, err := s.provider.Embed(ctx, providers.EmbedRequest{
		Operation: "embed",
		Inputs:    inputs,
		Dimension: s.dim,
	})
	if err != nil || len(vecs) != len(inputs) {
		if err != nil {
			s.log.Warn("batch embed failed, falling back to per-chunk calls",
				zap.Int("chunks", len(inputs)), zap.Error(err))
		}
		for _, i := range indexes {
			statuses[i].Err = s.Add(ctx, chunks[i])
		}
		return statuses
	}

	for pos, i := range indexes {
		vec, err := s.checkAndNormalize(vecs[pos])
		if err != nil {
			statuses[i].Err = err
			continue
		}
		err = s.writer.UpsertEmbedding(ctx, models.Embedding{
			ChunkID: chunks[i].ChunkID,
			CaseID:  chunks[i].CaseID,
			Model:   s.model,
			Vector:  vec,
		})
		if err != nil {
			statuses[i].Err = fmt.Errorf("store embedding: %w", err)
		}
	}
	return statuses
}

// Search embeds the query and returns cases ranked by best-chunk similarity.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.CaseScore, error) {
	vec, err := s.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.searcher.SearchCases(ctx, vec, s.model, limit, s.threshold)
}

func (s *Store) checkAndNormalize(vec []float32) ([]float32, error) {
	if s.dim > 0 && len(vec) != s.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d want %d", len(vec), s.dim)
	}
	return Normalize(vec)
}

// Normalize scales a vector to unit length. Every vector that reaches the
// database goes through here, so stored cosine distances stay comparable.
func Normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, f := range vec {
		sum += float64(f) * float64(f)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, fmt.Errorf("embedding is the zero vector")
	}
	out := make([]float32, len(vec))
	for i, f := range vec {
		out[i] = float32(float64(f) / norm)
	}
	return out, nil
}
