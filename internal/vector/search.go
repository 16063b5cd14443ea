// Package vector runs pgvector similarity queries over chunk embeddings.
package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"jurisearch/internal/models"
	"jurisearch/internal/util"
)

// Queryer is the subset of pgxpool.Pool the searcher needs.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Searcher struct {
	q Queryer
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// ToLiteral renders a vector as the pgvector input literal, e.g. [0.1,0.2].
func ToLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// SearchCases ranks cases by their best-matching chunk under the given model.
// Cosine distance maps to similarity = 1 - distance; cases whose best chunk
// falls below threshold are dropped. One row per case, newest chunk wins ties.
func (s *Searcher) SearchCases(ctx context.Context, queryVec []float32, model string, limit int, threshold float64) ([]models.CaseScore, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q.Query(ctx, `
SELECT case_id, similarity, chunk_text FROM (
  SELECT e.case_id::text AS case_id,
         1 - (e.embedding <=> $1::vector) AS similarity,
         c.chunk_text,
         ROW_NUMBER() OVER (
           PARTITION BY e.case_id
           ORDER BY e.embedding <=> $1::vector, c.chunk_index DESC
         ) AS rn
  FROM embeddings e
  JOIN chunks c ON c.chunk_id = e.chunk_id
  WHERE e.embedding_model = $2
) ranked
WHERE rn = 1 AND similarity >= $3
ORDER BY similarity DESC
LIMIT $4`, ToLiteral(queryVec), model, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	out := make([]models.CaseScore, 0, limit)
	for rows.Next() {
		var cs models.CaseScore
		var chunkText string
		if err := rows.Scan(&cs.CaseID, &cs.Score, &chunkText); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		cs.Highlight = util.DisplaySnippet(chunkText, 240)
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector hits: %w", err)
	}
	return out, nil
}
