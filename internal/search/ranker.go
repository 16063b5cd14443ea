// Package search fuses semantic and keyword retrieval into one ranked answer.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jurisearch/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	// Retrieval depth for both branches. Fixed rather than derived from the
	// requested limit: the pool feeds min-max normalization, so a
	// limit-dependent pool would reshuffle blended scores between page sizes
	// and a case served at a small limit could vanish at a larger one.
	branchPoolSize = 2 * maxLimit
)

// SemanticSearcher is the embedding-store branch.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.CaseScore, error)
}

// KeywordSearcher is the full-text branch.
type KeywordSearcher interface {
	SearchCases(ctx context.Context, query string, limit int) ([]models.CaseScore, error)
}

// MetadataStore filters, enriches and aggregates over case metadata.
type MetadataStore interface {
	FilterCaseIDs(ctx context.Context, candidates []string, preds []models.Predicate) ([]string, error)
	FetchCasesByIDs(ctx context.Context, ids []string) ([]models.Case, error)
	Facets(ctx context.Context, ids []string) (models.Facets, error)
}

type Request struct {
	Query          string         `json:"query"`
	Mode           string         `json:"mode,omitempty"`
	Keywords       []string       `json:"keywords,omitempty"`
	Limit          int            `json:"limit,omitempty"`
	SemanticWeight *float64       `json:"semantic_weight,omitempty"`
	Filters        models.Filters `json:"filters,omitempty"`
}

type Response struct {
	Results        []models.SearchResult `json:"results"`
	TotalFound     int                   `json:"total_found"`
	Mode           string                `json:"mode"`
	Degraded       bool                  `json:"degraded"`
	DegradedBranch string                `json:"degraded_branch,omitempty"`
	Facets         models.Facets         `json:"facets"`
	ExecutionMS    int64                 `json:"execution_ms"`
}

// Ranker runs both retrieval branches in parallel, blends their scores and
// serves enriched, filtered, faceted results.
type Ranker struct {
	semantic      SemanticSearcher
	keyword       KeywordSearcher
	meta          MetadataStore
	defaultWeight float64
	branchTimeout time.Duration
	log           *zap.Logger
}

func NewRanker(semantic SemanticSearcher, keyword KeywordSearcher, meta MetadataStore, defaultWeight float64, branchTimeout time.Duration, log *zap.Logger) *Ranker {
	if log == nil {
		log = zap.NewNop()
	}
	if defaultWeight < 0 || defaultWeight > 1 {
		defaultWeight = 0.7
	}
	if branchTimeout <= 0 {
		branchTimeout = 4 * time.Second
	}
	return &Ranker{
		semantic:      semantic,
		keyword:       keyword,
		meta:          meta,
		defaultWeight: defaultWeight,
		branchTimeout: branchTimeout,
		log:           log,
	}
}

func (r *Ranker) validate(req *Request) error {
	req.Query = strings.TrimSpace(req.Query)
	if n := len([]rune(req.Query)); n < 3 || n > 500 {
		return &ValidationError{Field: "query", Reason: "must be between 3 and 500 characters"}
	}
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	if req.Limit < 1 || req.Limit > maxLimit {
		return &ValidationError{Field: "limit", Reason: "must be between 1 and 100"}
	}
	if req.Mode == "" {
		req.Mode = models.ModeHybrid
	}
	switch req.Mode {
	case models.ModeHybrid, models.ModeSemantic, models.ModeKeyword:
	default:
		return &ValidationError{Field: "mode", Reason: "must be hybrid, semantic or keyword"}
	}
	if req.SemanticWeight != nil && (*req.SemanticWeight < 0 || *req.SemanticWeight > 1) {
		return &ValidationError{Field: "semantic_weight", Reason: "must be between 0 and 1"}
	}
	return ValidateFilters(req.Filters)
}

type rankedCase struct {
	id        string
	score     float64
	highlight string
}

// Search executes a full query: validation, parallel retrieval, score fusion,
// metadata filtering, enrichment and facets.
func (r *Ranker) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	if err := r.validate(&req); err != nil {
		return Response{}, err
	}
	weight := r.defaultWeight
	if req.SemanticWeight != nil {
		weight = *req.SemanticWeight
	}

	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = ExtractKeywords(req.Query)
	}
	if len(keywords) == 0 && req.Mode != models.ModeKeyword {
		// Query is all stopwords; a semantic embedding of it carries no
		// signal, so serve keyword-only against the raw text.
		r.log.Warn("query empty after stopword stripping, serving keyword mode", zap.String("query", req.Query))
		req.Mode = models.ModeKeyword
	}
	kwQuery := req.Query
	if len(keywords) > 0 {
		kwQuery = strings.Join(keywords, " ")
	}

	semHits, kwHits, degradedBranch, err := r.retrieve(ctx, req, kwQuery, branchPoolSize)
	if err != nil {
		return Response{}, err
	}

	effectiveMode := req.Mode
	if degradedBranch == "semantic" {
		effectiveMode = models.ModeKeyword
	} else if degradedBranch == "keyword" {
		effectiveMode = models.ModeSemantic
	}

	ranked := r.combine(semHits, kwHits, weight, effectiveMode)

	ids := make([]string, len(ranked))
	for i, rc := range ranked {
		ids[i] = rc.id
	}

	preds := BuildPredicates(req.Filters)
	if len(preds) > 0 && len(ids) > 0 {
		kept, err := r.meta.FilterCaseIDs(ctx, ids, preds)
		if err != nil {
			return Response{}, &UpstreamUnavailable{Branch: "metadata", Err: err}
		}
		keep := make(map[string]struct{}, len(kept))
		for _, id := range kept {
			keep[id] = struct{}{}
		}
		filtered := ranked[:0]
		for _, rc := range ranked {
			if _, ok := keep[rc.id]; ok {
				filtered = append(filtered, rc)
			}
		}
		ranked = filtered
		ids = kept
	}

	resp := Response{
		Mode:           effectiveMode,
		Degraded:       degradedBranch != "",
		DegradedBranch: degradedBranch,
		TotalFound:     len(ranked),
		Results:        []models.SearchResult{},
		Facets:         models.Facets{Chamber: map[string]int{}, County: map[string]int{}, Compensation: map[string]int{}},
	}
	if len(ranked) == 0 {
		resp.ExecutionMS = time.Since(start).Milliseconds()
		return resp, nil
	}

	cases, err := r.meta.FetchCasesByIDs(ctx, ids)
	if err != nil {
		return Response{}, &UpstreamUnavailable{Branch: "metadata", Err: err}
	}
	byID := make(map[string]models.Case, len(cases))
	for _, c := range cases {
		byID[c.ID] = c
	}

	results, dropped := buildResults(ranked, byID, effectiveMode)
	for _, d := range dropped {
		r.log.Warn("dropping ranked case without stored record", zap.String("case_id", d.CaseID), zap.String("reason", d.Reason))
	}
	resp.TotalFound = len(results)
	sortResults(results)
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	resp.Results = results

	// Facets cover every matching case, not just the served page.
	if facets, err := r.meta.Facets(ctx, ids); err != nil {
		r.log.Warn("facet aggregation failed", zap.Error(err))
	} else {
		resp.Facets = facets
	}
	resp.ExecutionMS = time.Since(start).Milliseconds()
	return resp, nil
}

// retrieve runs the branches the mode asks for. In hybrid mode a single
// failed branch degrades the answer instead of failing it; both branches
// failing is an error.
func (r *Ranker) retrieve(ctx context.Context, req Request, kwQuery string, pool int) (sem, kw []models.CaseScore, degradedBranch string, err error) {
	var semErr, kwErr error
	g, gctx := errgroup.WithContext(ctx)

	runSemantic := req.Mode == models.ModeHybrid || req.Mode == models.ModeSemantic
	runKeyword := req.Mode == models.ModeHybrid || req.Mode == models.ModeKeyword

	if runSemantic {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(gctx, r.branchTimeout)
			defer cancel()
			hits, err := r.semantic.Search(bctx, req.Query, pool)
			if err != nil {
				semErr = classifyBranchErr("semantic", err)
				return nil
			}
			sem = hits
			return nil
		})
	}
	if runKeyword {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(gctx, r.branchTimeout)
			defer cancel()
			hits, err := r.keyword.SearchCases(bctx, kwQuery, pool)
			if err != nil {
				kwErr = classifyBranchErr("keyword", err)
				return nil
			}
			kw = hits
			return nil
		})
	}
	_ = g.Wait()

	switch req.Mode {
	case models.ModeSemantic:
		return sem, nil, "", semErr
	case models.ModeKeyword:
		return nil, kw, "", kwErr
	}
	if semErr != nil && kwErr != nil {
		return nil, nil, "", semErr
	}
	if semErr != nil {
		r.log.Warn("semantic branch degraded", zap.Error(semErr))
		return nil, kw, "semantic", nil
	}
	if kwErr != nil {
		r.log.Warn("keyword branch degraded", zap.Error(kwErr))
		return sem, nil, "keyword", nil
	}
	return sem, kw, "", nil
}

func classifyBranchErr(branch string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamTimeout{Branch: branch, Err: err}
	}
	return &UpstreamUnavailable{Branch: branch, Err: err}
}

// combine normalizes each branch to [0,1] and blends them. A case seen by
// only one branch scores zero on the other. Keyword headlines win the
// highlight slot since they mark the matched terms.
func (r *Ranker) combine(sem, kw []models.CaseScore, weight float64, mode string) []rankedCase {
	switch mode {
	case models.ModeSemantic:
		weight = 1
	case models.ModeKeyword:
		weight = 0
	}
	semNorm := minMaxNormalize(sem)
	kwNorm := minMaxNormalize(kw)

	highlights := make(map[string]string, len(sem)+len(kw))
	for _, s := range sem {
		if s.Highlight != "" {
			highlights[s.CaseID] = s.Highlight
		}
	}
	for _, k := range kw {
		if k.Highlight != "" {
			highlights[k.CaseID] = k.Highlight
		}
	}

	seen := make(map[string]struct{}, len(sem)+len(kw))
	order := make([]string, 0, len(sem)+len(kw))
	for _, s := range sem {
		if _, ok := seen[s.CaseID]; !ok {
			seen[s.CaseID] = struct{}{}
			order = append(order, s.CaseID)
		}
	}
	for _, k := range kw {
		if _, ok := seen[k.CaseID]; !ok {
			seen[k.CaseID] = struct{}{}
			order = append(order, k.CaseID)
		}
	}

	out := make([]rankedCase, 0, len(order))
	for _, id := range order {
		score := weight*semNorm[id] + (1-weight)*kwNorm[id]
		out = append(out, rankedCase{id: id, score: score, highlight: highlights[id]})
	}
	return out
}

// sortResults orders by blended score, then newest judgment date, then case
// number so equal inputs always serve the same page.
func sortResults(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		di, dj := results[i].JudgmentDate, results[j].JudgmentDate
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.After(*dj)
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		}
		return results[i].CaseNumber < results[j].CaseNumber
	})
}
