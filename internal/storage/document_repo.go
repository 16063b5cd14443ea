package storage

import (
	"context"
	"fmt"

	"jurisearch/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) UpsertDocument(ctx context.Context, caseID, rawText string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (case_id, raw_text, text_size)
VALUES ($1::uuid, $2, $3)
ON CONFLICT (case_id)
DO UPDATE SET raw_text = EXCLUDED.raw_text, text_size = EXCLUDED.text_size, updated_at = NOW()`,
		caseID, rawText, len(rawText))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) SetSummary(ctx context.Context, caseID, summary string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET summary=$2, updated_at=NOW() WHERE case_id=$1::uuid`,
		caseID, summary)
	if err != nil {
		return fmt.Errorf("set document summary: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, caseID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT case_id::text, raw_text, text_size, COALESCE(summary,''), created_at, updated_at
FROM documents WHERE case_id=$1::uuid`, caseID).
		Scan(&d.CaseID, &d.RawText, &d.TextSize, &d.Summary, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}
