package search

import "jurisearch/internal/models"

// buildResults joins the ranked list with fetched case metadata, preserving
// rank order. A ranked case with no stored record is a data integrity
// problem: it is excluded and reported, never served half-empty.
func buildResults(ranked []rankedCase, byID map[string]models.Case, scoreType string) ([]models.SearchResult, []DataIntegrityError) {
	results := make([]models.SearchResult, 0, len(ranked))
	var dropped []DataIntegrityError
	for _, rc := range ranked {
		c, ok := byID[rc.id]
		if !ok {
			dropped = append(dropped, DataIntegrityError{CaseID: rc.id, Reason: "no case record for ranked id"})
			continue
		}
		if c.CaseNumber == "" {
			dropped = append(dropped, DataIntegrityError{CaseID: rc.id, Reason: "case record missing case number"})
			continue
		}
		results = append(results, models.SearchResult{
			CaseID:             c.ID,
			CaseNumber:         c.CaseNumber,
			Score:              rc.score,
			ScoreType:          scoreType,
			Highlight:          rc.highlight,
			Judge:              c.Judge,
			Chamber:            c.Chamber,
			County:             c.County,
			JudgmentDate:       c.JudgmentDate,
			CompensationAmount: c.CompensationAmount,
			Category:           c.Category,
			SourceURL:          c.SourceURL,
		})
	}
	return results, dropped
}
