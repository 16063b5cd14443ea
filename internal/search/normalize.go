package search

import "jurisearch/internal/models"

// minMaxNormalize rescales one branch's scores into [0,1] so semantic cosine
// similarities and keyword ts_rank values blend on the same scale. With a
// single hit, or when all scores tie, every score maps to 1.
func minMaxNormalize(scores []models.CaseScore) map[string]float64 {
	out := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := scores[0].Score, scores[0].Score
	for _, s := range scores[1:] {
		if s.Score < lo {
			lo = s.Score
		}
		if s.Score > hi {
			hi = s.Score
		}
	}
	span := hi - lo
	for _, s := range scores {
		if span == 0 {
			out[s.CaseID] = 1
			continue
		}
		out[s.CaseID] = (s.Score - lo) / span
	}
	return out
}
