package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"jurisearch/internal/models"
)

type fakeSemantic struct {
	hits []models.CaseScore
	err  error
}

func (f *fakeSemantic) Search(context.Context, string, int) ([]models.CaseScore, error) {
	return f.hits, f.err
}

type fakeKeyword struct {
	hits     []models.CaseScore
	err      error
	gotQuery string
}

func (f *fakeKeyword) SearchCases(_ context.Context, query string, _ int) ([]models.CaseScore, error) {
	f.gotQuery = query
	return f.hits, f.err
}

type fakeMeta struct {
	cases     map[string]models.Case
	facetsErr error
}

func (f *fakeMeta) FilterCaseIDs(_ context.Context, candidates []string, preds []models.Predicate) ([]string, error) {
	var out []string
	for _, id := range candidates {
		c, ok := f.cases[id]
		if !ok {
			continue
		}
		match := true
		for _, p := range preds {
			if !p.Match(c) {
				match = false
				break
			}
		}
		if match {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeMeta) FetchCasesByIDs(_ context.Context, ids []string) ([]models.Case, error) {
	var out []models.Case
	for _, id := range ids {
		if c, ok := f.cases[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeMeta) Facets(_ context.Context, ids []string) (models.Facets, error) {
	if f.facetsErr != nil {
		return models.Facets{}, f.facetsErr
	}
	fac := models.Facets{Chamber: map[string]int{}, County: map[string]int{}, Compensation: map[string]int{}}
	for _, id := range ids {
		c, ok := f.cases[id]
		if !ok {
			continue
		}
		if c.Chamber != "" {
			fac.Chamber[c.Chamber]++
		}
		if c.County != "" {
			fac.County[c.County]++
		}
	}
	return fac, nil
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func amount(v float64) *float64 { return &v }

func testCases() map[string]models.Case {
	return map[string]models.Case{
		"c1": {ID: "c1", CaseNumber: "1001234-56.2023.8.26.0100", Court: "TJSP", Chamber: "3ª Câmara de Direito Privado", County: "São Paulo", Judge: "Des. Almeida", JudgmentDate: date("2023-06-15"), CompensationAmount: amount(10000), Category: "dano moral", Status: models.StatusIndexed},
		"c2": {ID: "c2", CaseNumber: "1005678-90.2023.8.26.0114", Court: "TJSP", Chamber: "5ª Câmara de Direito Privado", County: "Campinas", Judge: "Des. Souza", JudgmentDate: date("2023-09-01"), CompensationAmount: amount(25000), Category: "dano moral", Status: models.StatusIndexed},
		"c3": {ID: "c3", CaseNumber: "1009999-11.2022.8.26.0100", Court: "TJSP", Chamber: "3ª Câmara de Direito Privado", County: "São Paulo", Judge: "Des. Lima", JudgmentDate: date("2022-11-20"), CompensationAmount: amount(4000), Category: "dano material", Status: models.StatusIndexed},
	}
}

func newTestRanker(sem SemanticSearcher, kw KeywordSearcher, meta MetadataStore) *Ranker {
	return NewRanker(sem, kw, meta, 0.7, 2*time.Second, nil)
}

func TestHybridBlendsBothBranches(t *testing.T) {
	sem := &fakeSemantic{hits: []models.CaseScore{
		{CaseID: "c1", Score: 0.9},
		{CaseID: "c2", Score: 0.5},
	}}
	kw := &fakeKeyword{hits: []models.CaseScore{
		{CaseID: "c2", Score: 0.8, Highlight: "<mark>negativação</mark> indevida"},
		{CaseID: "c3", Score: 0.2},
	}}
	r := newTestRanker(sem, kw, &fakeMeta{cases: testCases()})

	resp, err := r.Search(context.Background(), Request{Query: "negativação indevida dano moral"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Degraded {
		t.Fatal("unexpected degradation")
	}
	if resp.TotalFound != 3 {
		t.Fatalf("expected 3 found, got %d", resp.TotalFound)
	}
	// Normalized: sem c1=1 c2=0, kw c2=1 c3=0.
	// c1 = 0.7, c2 = 0.3, c3 = 0.
	if resp.Results[0].CaseID != "c1" || resp.Results[1].CaseID != "c2" || resp.Results[2].CaseID != "c3" {
		t.Fatalf("unexpected order: %s %s %s", resp.Results[0].CaseID, resp.Results[1].CaseID, resp.Results[2].CaseID)
	}
	if resp.Results[1].Highlight == "" {
		t.Fatal("keyword highlight lost in blending")
	}
	if resp.Results[0].Judge == "" || resp.Results[0].CaseNumber == "" {
		t.Fatal("results not enriched with case metadata")
	}
}

func TestWeightExtremesMatchSingleBranch(t *testing.T) {
	sem := &fakeSemantic{hits: []models.CaseScore{{CaseID: "c1", Score: 0.9}, {CaseID: "c2", Score: 0.1}}}
	kw := &fakeKeyword{hits: []models.CaseScore{{CaseID: "c2", Score: 0.9}, {CaseID: "c1", Score: 0.1}}}
	r := newTestRanker(sem, kw, &fakeMeta{cases: testCases()})

	one := 1.0
	resp, err := r.Search(context.Background(), Request{Query: "dano moral", SemanticWeight: &one})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results[0].CaseID != "c1" {
		t.Fatalf("weight=1 should follow semantic order, got %s first", resp.Results[0].CaseID)
	}

	zero := 0.0
	resp, err = r.Search(context.Background(), Request{Query: "dano moral", SemanticWeight: &zero})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results[0].CaseID != "c2" {
		t.Fatalf("weight=0 should follow keyword order, got %s first", resp.Results[0].CaseID)
	}
}

func TestHybridDegradesWhenOneBranchFails(t *testing.T) {
	sem := &fakeSemantic{err: errors.New("provider down")}
	kw := &fakeKeyword{hits: []models.CaseScore{{CaseID: "c2", Score: 0.8}}}
	r := newTestRanker(sem, kw, &fakeMeta{cases: testCases()})

	resp, err := r.Search(context.Background(), Request{Query: "dano moral"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Degraded || resp.DegradedBranch != "semantic" {
		t.Fatalf("expected semantic degradation, got %+v", resp)
	}
	if resp.Mode != models.ModeKeyword {
		t.Fatalf("expected effective keyword mode, got %s", resp.Mode)
	}
	if len(resp.Results) != 1 || resp.Results[0].CaseID != "c2" {
		t.Fatalf("expected keyword results to survive, got %+v", resp.Results)
	}
}

func TestHybridFailsWhenBothBranchesFail(t *testing.T) {
	sem := &fakeSemantic{err: errors.New("provider down")}
	kw := &fakeKeyword{err: errors.New("db down")}
	r := newTestRanker(sem, kw, &fakeMeta{cases: testCases()})

	_, err := r.Search(context.Background(), Request{Query: "dano moral"})
	var unavailable *UpstreamUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UpstreamUnavailable, got %v", err)
	}
}

func TestBranchTimeoutClassified(t *testing.T) {
	sem := &fakeSemantic{err: context.DeadlineExceeded}
	r := newTestRanker(sem, &fakeKeyword{}, &fakeMeta{cases: testCases()})

	_, err := r.Search(context.Background(), Request{Query: "dano moral", Mode: models.ModeSemantic})
	var timeout *UpstreamTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected UpstreamTimeout, got %v", err)
	}
	if timeout.Branch != "semantic" {
		t.Fatalf("wrong branch: %s", timeout.Branch)
	}
}

func TestValidationErrors(t *testing.T) {
	r := newTestRanker(&fakeSemantic{}, &fakeKeyword{}, &fakeMeta{cases: testCases()})
	bad := 1.5
	minA, maxA := 5000.0, 1000.0
	reqs := []Request{
		{Query: "   "},
		{Query: "dano moral", Limit: 500},
		{Query: "dano moral", Mode: "fuzzy"},
		{Query: "dano moral", SemanticWeight: &bad},
		{Query: "dano moral", Filters: models.Filters{DateFrom: date("2023-12-01"), DateTo: date("2023-01-01")}},
		{Query: "dano moral", Filters: models.Filters{MinAmount: &minA, MaxAmount: &maxA}},
	}
	for i, req := range reqs {
		_, err := r.Search(context.Background(), req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("request %d: expected ValidationError, got %v", i, err)
		}
	}
}

func TestFiltersNarrowResultsAndTotal(t *testing.T) {
	sem := &fakeSemantic{hits: []models.CaseScore{
		{CaseID: "c1", Score: 0.9},
		{CaseID: "c2", Score: 0.8},
		{CaseID: "c3", Score: 0.7},
	}}
	r := newTestRanker(sem, &fakeKeyword{}, &fakeMeta{cases: testCases()})

	resp, err := r.Search(context.Background(), Request{
		Query:   "dano moral",
		Mode:    models.ModeSemantic,
		Filters: models.Filters{County: "São Paulo", MinAmount: amount(5000)},
	})
	if err != nil {
		t.Fatal(err)
	}
	// c2 is Campinas, c3 is under 5000; only c1 matches both.
	if resp.TotalFound != 1 || len(resp.Results) != 1 || resp.Results[0].CaseID != "c1" {
		t.Fatalf("expected only c1, got %+v", resp)
	}
}

func TestTieBreakPrefersNewerJudgment(t *testing.T) {
	sem := &fakeSemantic{hits: []models.CaseScore{
		{CaseID: "c1", Score: 0.5},
		{CaseID: "c2", Score: 0.5},
	}}
	r := newTestRanker(sem, &fakeKeyword{}, &fakeMeta{cases: testCases()})

	resp, err := r.Search(context.Background(), Request{Query: "dano moral", Mode: models.ModeSemantic})
	if err != nil {
		t.Fatal(err)
	}
	// Equal scores normalize to 1 for both; c2 was judged later.
	if resp.Results[0].CaseID != "c2" {
		t.Fatalf("expected newer judgment first, got %s", resp.Results[0].CaseID)
	}
}

func TestRankedCaseWithoutRecordIsExcluded(t *testing.T) {
	sem := &fakeSemantic{hits: []models.CaseScore{
		{CaseID: "c1", Score: 0.9},
		{CaseID: "ghost", Score: 0.95},
	}}
	r := newTestRanker(sem, &fakeKeyword{}, &fakeMeta{cases: testCases()})

	resp, err := r.Search(context.Background(), Request{Query: "dano moral", Mode: models.ModeSemantic})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].CaseID != "c1" {
		t.Fatalf("ghost case should be excluded, got %+v", resp.Results)
	}
	if resp.TotalFound != 1 {
		t.Fatalf("total should exclude integrity drops, got %d", resp.TotalFound)
	}
}

func TestFacetsCoverAllMatches(t *testing.T) {
	sem := &fakeSemantic{hits: []models.CaseScore{
		{CaseID: "c1", Score: 0.9},
		{CaseID: "c2", Score: 0.8},
		{CaseID: "c3", Score: 0.7},
	}}
	r := newTestRanker(sem, &fakeKeyword{}, &fakeMeta{cases: testCases()})

	resp, err := r.Search(context.Background(), Request{Query: "dano moral", Mode: models.ModeSemantic, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("limit not applied: %d results", len(resp.Results))
	}
	if resp.Facets.County["São Paulo"] != 2 || resp.Facets.County["Campinas"] != 1 {
		t.Fatalf("facets should cover all matches, got %+v", resp.Facets.County)
	}
	if resp.TotalFound != 3 {
		t.Fatalf("total should count beyond the page, got %d", resp.TotalFound)
	}
}

func TestKeywordBranchSearchesExtractedTerms(t *testing.T) {
	kw := &fakeKeyword{hits: []models.CaseScore{{CaseID: "c1", Score: 0.4}}}
	r := newTestRanker(&fakeSemantic{}, kw, &fakeMeta{cases: testCases()})

	_, err := r.Search(context.Background(), Request{Query: "a negativação foi indevida no serasa"})
	if err != nil {
		t.Fatal(err)
	}
	if kw.gotQuery != "negativação indevida serasa" {
		t.Fatalf("keyword branch got %q", kw.gotQuery)
	}
}

func TestStopwordOnlyQueryFallsBackToKeywordMode(t *testing.T) {
	sem := &fakeSemantic{err: errors.New("must not be reached")}
	kw := &fakeKeyword{hits: []models.CaseScore{{CaseID: "c1", Score: 0.4}}}
	r := newTestRanker(sem, kw, &fakeMeta{cases: testCases()})

	resp, err := r.Search(context.Background(), Request{Query: "o que é isso"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Mode != models.ModeKeyword {
		t.Fatalf("expected keyword fallback, got %s", resp.Mode)
	}
	if resp.Degraded {
		t.Fatal("fallback is not a degradation")
	}
	if kw.gotQuery != "o que é isso" {
		t.Fatalf("fallback should search the raw query, got %q", kw.gotQuery)
	}
	if len(resp.Results) != 1 || resp.Results[0].CaseID != "c1" {
		t.Fatalf("expected keyword results, got %+v", resp.Results)
	}
}

// pagedSemantic and pagedKeyword honor the limit argument, like the real
// branches do.
type pagedSemantic struct{ hits []models.CaseScore }

func (f *pagedSemantic) Search(_ context.Context, _ string, limit int) ([]models.CaseScore, error) {
	if limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

type pagedKeyword struct{ hits []models.CaseScore }

func (f *pagedKeyword) SearchCases(_ context.Context, _ string, limit int) ([]models.CaseScore, error) {
	if limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func TestLargerLimitNeverDropsServedCase(t *testing.T) {
	// Semantic branch: one clear top hit, a wide plateau, then a declining
	// tail, so a limit-dependent pool would shift that branch's score range.
	semHits := []models.CaseScore{{CaseID: "s000", Score: 1.0}}
	for i := 1; i <= 30; i++ {
		semHits = append(semHits, models.CaseScore{CaseID: fmt.Sprintf("s%03d", i), Score: 0.2})
	}
	for i := 31; i <= 43; i++ {
		semHits = append(semHits, models.CaseScore{CaseID: fmt.Sprintf("s%03d", i), Score: 0.2 - float64(i-30)*0.01})
	}
	kwHits := []models.CaseScore{
		{CaseID: "s000", Score: 1.0},
		{CaseID: "kwonly", Score: 0.4},
		{CaseID: "s043", Score: 0.0},
	}

	cases := map[string]models.Case{}
	for _, h := range append(append([]models.CaseScore{}, semHits...), kwHits...) {
		if _, ok := cases[h.CaseID]; !ok {
			cases[h.CaseID] = models.Case{ID: h.CaseID, CaseNumber: "10-" + h.CaseID, Court: "TJSP", Status: models.StatusIndexed}
		}
	}
	r := newTestRanker(&pagedSemantic{hits: semHits}, &pagedKeyword{hits: kwHits}, &fakeMeta{cases: cases})

	servedAt := func(limit int) []string {
		resp, err := r.Search(context.Background(), Request{Query: "dano moral", Limit: limit})
		if err != nil {
			t.Fatal(err)
		}
		ids := make([]string, 0, len(resp.Results))
		for _, res := range resp.Results {
			ids = append(ids, res.CaseID)
		}
		return ids
	}

	small := servedAt(21)
	large := servedAt(22)
	seen := make(map[string]struct{}, len(large))
	for _, id := range large {
		seen[id] = struct{}{}
	}
	for _, id := range small {
		if _, ok := seen[id]; !ok {
			t.Fatalf("case %s served at limit=21 but gone at limit=22", id)
		}
	}
}

func TestDefaultsApplied(t *testing.T) {
	sem := &fakeSemantic{hits: []models.CaseScore{{CaseID: "c1", Score: 0.9}}}
	kw := &fakeKeyword{hits: []models.CaseScore{{CaseID: "c1", Score: 0.4}}}
	r := newTestRanker(sem, kw, &fakeMeta{cases: testCases()})

	resp, err := r.Search(context.Background(), Request{Query: "dano moral"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Mode != models.ModeHybrid {
		t.Fatalf("expected hybrid default, got %s", resp.Mode)
	}
	if resp.Results[0].ScoreType != models.ModeHybrid {
		t.Fatalf("unexpected score type %s", resp.Results[0].ScoreType)
	}
}
