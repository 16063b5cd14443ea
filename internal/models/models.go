package models

import "time"

// Case lifecycle statuses. A case moves downloaded -> processed -> indexed,
// or to error with a fail reason at any step.
const (
	StatusDownloaded = "downloaded"
	StatusProcessed  = "processed"
	StatusIndexed    = "indexed"
	StatusError      = "error"
)

// Search modes accepted by the search surface.
const (
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
	ModeHybrid   = "hybrid"
)

type Case struct {
	ID                 string     `json:"id"`
	CaseNumber         string     `json:"case_number"`
	Court              string     `json:"court"`
	Chamber            string     `json:"chamber,omitempty"`
	County             string     `json:"county,omitempty"`
	Judge              string     `json:"judge,omitempty"`
	JudgmentDate       *time.Time `json:"judgment_date,omitempty"`
	CompensationAmount *float64   `json:"compensation_amount,omitempty"`
	Category           string     `json:"category,omitempty"`
	SourceURL          string     `json:"source_url,omitempty"`
	FilePath           string     `json:"file_path,omitempty"`
	Status             string     `json:"status"`
	FailReason         string     `json:"fail_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type Document struct {
	CaseID    string    `json:"case_id"`
	RawText   string    `json:"raw_text,omitempty"`
	TextSize  int       `json:"text_size"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Chunk struct {
	ChunkID     string    `json:"chunk_id"`
	CaseID      string    `json:"case_id"`
	ChunkIndex  int       `json:"chunk_index"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Embedding is the stored vector for one chunk under one model tag.
// At most one row exists per (chunk_id, model).
type Embedding struct {
	ChunkID   string    `json:"chunk_id"`
	CaseID    string    `json:"case_id"`
	Model     string    `json:"model"`
	Vector    []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// CaseScore is one retrieval branch's opinion of a case: best chunk similarity
// for the semantic branch, text rank for the keyword branch.
type CaseScore struct {
	CaseID    string  `json:"case_id"`
	Score     float64 `json:"score"`
	Highlight string  `json:"highlight,omitempty"`
}

// Filters holds the metadata filter set of a search request. Nil/empty fields
// mean no constraint.
type Filters struct {
	DateFrom  *time.Time `json:"date_from,omitempty"`
	DateTo    *time.Time `json:"date_to,omitempty"`
	County    string     `json:"county,omitempty"`
	Chamber   string     `json:"chamber,omitempty"`
	Judge     string     `json:"judge,omitempty"`
	MinAmount *float64   `json:"min_amount,omitempty"`
	MaxAmount *float64   `json:"max_amount,omitempty"`
}

func (f Filters) Empty() bool {
	return f.DateFrom == nil && f.DateTo == nil && f.County == "" &&
		f.Chamber == "" && f.Judge == "" && f.MinAmount == nil && f.MaxAmount == nil
}

// Predicate is one composable filter condition. Column/Op/Value feed SQL
// construction in storage; Match mirrors the same condition in memory so
// ranking code and tests can verify results without a database round trip.
type Predicate struct {
	Column string
	Op     string
	Value  any
	Match  func(Case) bool
}

type SearchResult struct {
	CaseID             string     `json:"case_id"`
	CaseNumber         string     `json:"case_number"`
	Score              float64    `json:"score"`
	ScoreType          string     `json:"score_type"`
	Highlight          string     `json:"highlight,omitempty"`
	Judge              string     `json:"judge,omitempty"`
	Chamber            string     `json:"chamber,omitempty"`
	County             string     `json:"county,omitempty"`
	JudgmentDate       *time.Time `json:"judgment_date,omitempty"`
	CompensationAmount *float64   `json:"compensation_amount,omitempty"`
	Category           string     `json:"category,omitempty"`
	SourceURL          string     `json:"source_url,omitempty"`
}

// Facets are pre-aggregated counts used to populate filter UIs.
type Facets struct {
	Chamber      map[string]int `json:"chamber,omitempty"`
	County       map[string]int `json:"county,omitempty"`
	Compensation map[string]int `json:"compensation,omitempty"`
}

// SearchLog records a served query for analytics; never read on the serving path.
type SearchLog struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	Mode           string    `json:"mode"`
	SemanticWeight float64   `json:"semantic_weight"`
	Filters        Filters   `json:"filters"`
	TotalFound     int       `json:"total_found"`
	Returned       int       `json:"returned"`
	Degraded       bool      `json:"degraded"`
	DurationMillis int64     `json:"duration_ms"`
	CaseIDs        []string  `json:"case_ids"`
	CreatedAt      time.Time `json:"created_at"`
}
