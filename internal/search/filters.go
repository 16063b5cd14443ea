package search

import (
	"jurisearch/internal/models"
)

// ValidateFilters rejects filter combinations that can never match.
func ValidateFilters(f models.Filters) error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return &ValidationError{Field: "date_from", Reason: "must not be after date_to"}
	}
	if f.MinAmount != nil && *f.MinAmount < 0 {
		return &ValidationError{Field: "min_amount", Reason: "must not be negative"}
	}
	if f.MaxAmount != nil && *f.MaxAmount < 0 {
		return &ValidationError{Field: "max_amount", Reason: "must not be negative"}
	}
	if f.MinAmount != nil && f.MaxAmount != nil && *f.MinAmount > *f.MaxAmount {
		return &ValidationError{Field: "min_amount", Reason: "must not exceed max_amount"}
	}
	return nil
}

// BuildPredicates translates a filter set into composable predicates. Each
// predicate carries both its SQL fragment and an in-memory check, so storage
// and ranking stay agreed on semantics.
func BuildPredicates(f models.Filters) []models.Predicate {
	var preds []models.Predicate
	if f.DateFrom != nil {
		from := *f.DateFrom
		preds = append(preds, models.Predicate{
			Column: "judgment_date", Op: ">=", Value: from,
			Match: func(c models.Case) bool { return c.JudgmentDate != nil && !c.JudgmentDate.Before(from) },
		})
	}
	if f.DateTo != nil {
		to := *f.DateTo
		preds = append(preds, models.Predicate{
			Column: "judgment_date", Op: "<=", Value: to,
			Match: func(c models.Case) bool { return c.JudgmentDate != nil && !c.JudgmentDate.After(to) },
		})
	}
	if f.County != "" {
		county := f.County
		preds = append(preds, models.Predicate{
			Column: "county", Op: "=", Value: county,
			Match: func(c models.Case) bool { return c.County == county },
		})
	}
	if f.Chamber != "" {
		chamber := f.Chamber
		preds = append(preds, models.Predicate{
			Column: "chamber", Op: "=", Value: chamber,
			Match: func(c models.Case) bool { return c.Chamber == chamber },
		})
	}
	if f.Judge != "" {
		judge := f.Judge
		preds = append(preds, models.Predicate{
			Column: "judge", Op: "=", Value: judge,
			Match: func(c models.Case) bool { return c.Judge == judge },
		})
	}
	if f.MinAmount != nil {
		min := *f.MinAmount
		preds = append(preds, models.Predicate{
			Column: "compensation_amount", Op: ">=", Value: min,
			Match: func(c models.Case) bool { return c.CompensationAmount != nil && *c.CompensationAmount >= min },
		})
	}
	if f.MaxAmount != nil {
		max := *f.MaxAmount
		preds = append(preds, models.Predicate{
			Column: "compensation_amount", Op: "<=", Value: max,
			Match: func(c models.Case) bool { return c.CompensationAmount != nil && *c.CompensationAmount <= max },
		})
	}
	return preds
}
