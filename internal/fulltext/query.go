// Package fulltext runs Portuguese full-text queries over decision documents.
package fulltext

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"jurisearch/internal/models"
)

// Queryer is the subset of pgxpool.Pool the index needs.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Index searches the generated tsvector column on documents using the
// portuguese configuration, so queries stem the same way the column does.
type Index struct {
	q Queryer
}

func NewIndex(q Queryer) *Index {
	return &Index{q: q}
}

// SanitizeQuery strips tsquery operator characters so raw user input can never
// change the query structure. plainto_tsquery treats the result as plain words.
func SanitizeQuery(s string) string {
	repl := strings.NewReplacer(
		"&", " ", "|", " ", "!", " ", "(", " ", ")", " ",
		":", " ", "*", " ", "<", " ", ">", " ", "'", " ", "\\", " ",
	)
	return strings.Join(strings.Fields(repl.Replace(s)), " ")
}

// SearchCases ranks cases by ts_rank of their document against the query and
// returns a ts_headline fragment per hit. A malformed-query error is retried
// once with a sanitized query before giving up.
func (ix *Index) SearchCases(ctx context.Context, query string, limit int) ([]models.CaseScore, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := ix.search(ctx, query, limit)
	if err != nil && isMalformedQuery(err) {
		out, err = ix.search(ctx, SanitizeQuery(query), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	return out, nil
}

func (ix *Index) search(ctx context.Context, query string, limit int) ([]models.CaseScore, error) {
	rows, err := ix.q.Query(ctx, `
SELECT d.case_id::text,
       ts_rank(d.tsv, q)::float8 AS rank,
       ts_headline('portuguese', d.raw_text, q,
                   'MaxFragments=2, MaxWords=24, MinWords=8, StartSel=<mark>, StopSel=</mark>') AS headline
FROM documents d, plainto_tsquery('portuguese', $1) q
WHERE d.tsv @@ q
ORDER BY rank DESC
LIMIT $2`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.CaseScore, 0, limit)
	for rows.Next() {
		var cs models.CaseScore
		if err := rows.Scan(&cs.CaseID, &cs.Score, &cs.Highlight); err != nil {
			return nil, fmt.Errorf("scan fulltext hit: %w", err)
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isMalformedQuery(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "syntax error in tsquery") ||
		strings.Contains(msg, "tsquery")
}
