package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"jurisearch/internal/models"
)

type SearchLogRepo struct {
	db *DB
}

func NewSearchLogRepo(db *DB) *SearchLogRepo {
	return &SearchLogRepo{db: db}
}

func (r *SearchLogRepo) InsertSearchLog(ctx context.Context, l models.SearchLog) error {
	filters, err := json.Marshal(l.Filters)
	if err != nil {
		return fmt.Errorf("marshal search log filters: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO search_logs (query, mode, semantic_weight, filters, total_found, returned, degraded, duration_ms, case_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.Query, l.Mode, l.SemanticWeight, filters, l.TotalFound, l.Returned, l.Degraded, l.DurationMillis, l.CaseIDs)
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	return nil
}
