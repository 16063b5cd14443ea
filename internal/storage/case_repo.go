package storage

import (
	"context"
	"fmt"
	"strings"

	"jurisearch/internal/models"
)

type CaseRepo struct {
	db *DB
}

func NewCaseRepo(db *DB) *CaseRepo {
	return &CaseRepo{db: db}
}

const caseColumns = `id::text, case_number, court, COALESCE(chamber,''), COALESCE(county,''), COALESCE(judge,''),
       judgment_date, compensation_amount, COALESCE(category,''), COALESCE(source_url,''), COALESCE(file_path,''),
       status, COALESCE(fail_reason,''), created_at, updated_at`

func scanCase(row interface{ Scan(...any) error }) (models.Case, error) {
	var c models.Case
	err := row.Scan(&c.ID, &c.CaseNumber, &c.Court, &c.Chamber, &c.County, &c.Judge,
		&c.JudgmentDate, &c.CompensationAmount, &c.Category, &c.SourceURL, &c.FilePath,
		&c.Status, &c.FailReason, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *CaseRepo) UpsertCase(ctx context.Context, c models.Case) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO cases (id, case_number, court, chamber, county, judge, judgment_date, compensation_amount, category, source_url, file_path, status, fail_reason)
VALUES ($1::uuid, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, $8, NULLIF($9,''), NULLIF($10,''), NULLIF($11,''), $12, NULLIF($13,''))
ON CONFLICT (case_number)
DO UPDATE SET
  court = EXCLUDED.court,
  chamber = COALESCE(EXCLUDED.chamber, cases.chamber),
  county = COALESCE(EXCLUDED.county, cases.county),
  judge = COALESCE(EXCLUDED.judge, cases.judge),
  judgment_date = COALESCE(EXCLUDED.judgment_date, cases.judgment_date),
  compensation_amount = COALESCE(EXCLUDED.compensation_amount, cases.compensation_amount),
  category = COALESCE(EXCLUDED.category, cases.category),
  source_url = COALESCE(EXCLUDED.source_url, cases.source_url),
  file_path = COALESCE(EXCLUDED.file_path, cases.file_path),
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		c.ID, c.CaseNumber, c.Court, c.Chamber, c.County, c.Judge, c.JudgmentDate,
		c.CompensationAmount, c.Category, c.SourceURL, c.FilePath, c.Status, c.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert case: %w", err)
	}
	return nil
}

func (r *CaseRepo) UpdateCaseStatus(ctx context.Context, caseID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE cases SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE id=$1::uuid`,
		caseID, status, failReason)
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	return nil
}

func (r *CaseRepo) GetCaseByID(ctx context.Context, caseID string) (models.Case, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=$1::uuid`, caseID)
	c, err := scanCase(row)
	if err != nil {
		return models.Case{}, fmt.Errorf("get case by id: %w", err)
	}
	return c, nil
}

func (r *CaseRepo) GetCaseByNumber(ctx context.Context, caseNumber string) (models.Case, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE case_number=$1`, caseNumber)
	c, err := scanCase(row)
	if err != nil {
		return models.Case{}, fmt.Errorf("get case by number: %w", err)
	}
	return c, nil
}

func (r *CaseRepo) ListCasesByStatus(ctx context.Context, status string, limit int) ([]models.Case, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + caseColumns + ` FROM cases`
	args := []any{limit}
	if status != "" {
		query += ` WHERE status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()
	out := make([]models.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

// DeleteCase hard-deletes a case; documents, chunks and embeddings go with it
// via ON DELETE CASCADE. Admin-only path.
func (r *CaseRepo) DeleteCase(ctx context.Context, caseID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM cases WHERE id=$1::uuid`, caseID)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	return nil
}

// FilterCaseIDs intersects candidate case IDs with the set of cases matching
// every predicate. Predicates compose into a single WHERE clause so adding a
// filter never touches ranking code.
func (r *CaseRepo) FilterCaseIDs(ctx context.Context, candidates []string, preds []models.Predicate) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString(`SELECT id::text FROM cases WHERE id = ANY($1::uuid[])`)
	args := []any{candidates}
	for _, p := range preds {
		args = append(args, p.Value)
		fmt.Fprintf(&b, " AND %s %s $%d", p.Column, p.Op, len(args))
	}
	rows, err := r.db.Pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("filter case ids: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0, len(candidates))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan filtered case id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filtered case ids: %w", err)
	}
	return out, nil
}

// FetchCasesByIDs loads display metadata for a ranked ID list in one batch.
// Output order is not guaranteed; callers reorder against their ranking.
func (r *CaseRepo) FetchCasesByIDs(ctx context.Context, ids []string) ([]models.Case, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch cases by ids: %w", err)
	}
	defer rows.Close()
	out := make([]models.Case, 0, len(ids))
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fetched case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetched cases: %w", err)
	}
	return out, nil
}

// Facets aggregates chamber, county and compensation-bracket counts over the
// given case IDs.
func (r *CaseRepo) Facets(ctx context.Context, ids []string) (models.Facets, error) {
	f := models.Facets{
		Chamber:      map[string]int{},
		County:       map[string]int{},
		Compensation: map[string]int{},
	}
	if len(ids) == 0 {
		return f, nil
	}
	if err := r.countsInto(ctx, f.Chamber, `SELECT COALESCE(chamber,''), COUNT(*) FROM cases WHERE id = ANY($1::uuid[]) GROUP BY 1`, ids); err != nil {
		return f, err
	}
	if err := r.countsInto(ctx, f.County, `SELECT COALESCE(county,''), COUNT(*) FROM cases WHERE id = ANY($1::uuid[]) GROUP BY 1`, ids); err != nil {
		return f, err
	}
	if err := r.countsInto(ctx, f.Compensation, `
SELECT CASE
         WHEN compensation_amount IS NULL THEN 'unspecified'
         WHEN compensation_amount < 5000 THEN '<5k'
         WHEN compensation_amount < 20000 THEN '5k-20k'
         WHEN compensation_amount < 50000 THEN '20k-50k'
         ELSE '>50k'
       END, COUNT(*)
FROM cases WHERE id = ANY($1::uuid[]) GROUP BY 1`, ids); err != nil {
		return f, err
	}
	return f, nil
}

func (r *CaseRepo) countsInto(ctx context.Context, dst map[string]int, query string, ids []string) error {
	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("facet counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan facet count: %w", err)
		}
		if key == "" {
			continue
		}
		dst[key] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate facet counts: %w", err)
	}
	return nil
}
