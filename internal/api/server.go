package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"jurisearch/internal/config"
	"jurisearch/internal/embedding"
	"jurisearch/internal/fulltext"
	"jurisearch/internal/models"
	"jurisearch/internal/providers"
	"jurisearch/internal/search"
	"jurisearch/internal/storage"
	"jurisearch/internal/vector"
	"jurisearch/internal/workflows"
)

type Server struct {
	cfg           config.Config
	db            *storage.DB
	caseRepo      *storage.CaseRepo
	docRepo       *storage.DocumentRepo
	searchLogRepo *storage.SearchLogRepo
	ranker        *search.Ranker
	providers     *providers.Manager
	temporal      tclient.Client
	log           *zap.Logger
}

func NewServer(cfg config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}

	caseRepo := storage.NewCaseRepo(db)
	store := embedding.NewStore(
		pm.FirstEmbedProvider(),
		storage.NewChunkRepo(db),
		vector.NewSearcher(db.Pool),
		cfg.EmbedModel,
		cfg.EmbedDim,
		cfg.SimilarityThreshold,
		log,
	)
	ranker := search.NewRanker(
		store,
		fulltext.NewIndex(db.Pool),
		caseRepo,
		cfg.SemanticWeight,
		time.Duration(cfg.BranchTimeoutMillis)*time.Millisecond,
		log,
	)

	return &Server{
		cfg:           cfg,
		db:            db,
		caseRepo:      caseRepo,
		docRepo:       storage.NewDocumentRepo(db),
		searchLogRepo: storage.NewSearchLogRepo(db),
		ranker:        ranker,
		providers:     pm,
		temporal:      tc,
		log:           log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/cases", s.handleCases)
	mux.HandleFunc("/cases/", s.handleCaseScoped)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/ingest/progress", s.handleIngestProgress)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}

	resp, err := s.ranker.Search(r.Context(), req)
	if err != nil {
		writeSearchErr(w, err)
		return
	}
	s.logSearch(req, resp)
	writeJSON(w, http.StatusOK, resp)
}

// logSearch records the query for analytics. Failures never touch the
// response path.
func (s *Server) logSearch(req search.Request, resp search.Response) {
	weight := s.cfg.SemanticWeight
	if req.SemanticWeight != nil {
		weight = *req.SemanticWeight
	}
	caseIDs := make([]string, 0, len(resp.Results))
	for _, res := range resp.Results {
		caseIDs = append(caseIDs, res.CaseID)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := s.searchLogRepo.InsertSearchLog(ctx, models.SearchLog{
			Query:          req.Query,
			Mode:           resp.Mode,
			SemanticWeight: weight,
			Filters:        req.Filters,
			TotalFound:     resp.TotalFound,
			Returned:       len(resp.Results),
			Degraded:       resp.Degraded,
			DurationMillis: resp.ExecutionMS,
			CaseIDs:        caseIDs,
		})
		if err != nil {
			s.log.Warn("search log insert failed", zap.Error(err))
		}
	}()
}

func (s *Server) handleCases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		cases, err := s.caseRepo.ListCasesByStatus(r.Context(), status, 200)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
	case http.MethodPost:
		var req models.Case
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.CaseNumber = strings.TrimSpace(req.CaseNumber)
		if req.CaseNumber == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("case_number is required"))
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		if req.Court == "" {
			req.Court = "TJSP"
		}
		if req.Status == "" {
			req.Status = models.StatusDownloaded
		}
		if err := s.caseRepo.UpsertCase(r.Context(), req); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": req.ID, "case_number": req.CaseNumber, "status": req.Status})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleCaseScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/cases/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	caseNumber := parts[0]
	c, err := s.caseRepo.GetCaseByNumber(r.Context(), caseNumber)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}

	if len(parts) == 2 && parts[1] == "document" {
		doc, err := s.docRepo.GetDocument(r.Context(), c.ID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"case_id":   doc.CaseID,
			"text_size": doc.TextSize,
			"summary":   doc.Summary,
			"raw_text":  doc.RawText,
		})
		return
	}
	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, c)
		return
	}
	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		BatchLimit int `json:"batch_limit"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "case-ingest",
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.CaseIngestWorkflow, workflows.CaseIngestInput{
		BatchLimit:      req.BatchLimit,
		MaxChildren:     s.cfg.IngestMaxChildren,
		ChunkSize:       s.cfg.ChunkSize,
		ChunkOverlap:    s.cfg.ChunkOverlap,
		EmbedProviders:  s.providers.EmbedCount(),
		LLMProviders:    s.providers.LLMCount(),
		EmbedOrder:      s.providers.PreferredEmbedOrder(),
		LLMOrder:        s.providers.PreferredLLMOrder(),
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleIngestProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var prog workflows.CaseIngestProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), "case-ingest", "", workflows.QueryGetIngestProgress)
	if err != nil {
		// No live workflow to query; derive progress from case statuses.
		cases, cErr := s.caseRepo.ListCasesByStatus(r.Context(), "", 500)
		if cErr != nil {
			writeErr(w, http.StatusInternalServerError, cErr)
			return
		}
		per := make(map[string]string, len(cases))
		done := 0
		failed := 0
		for _, c := range cases {
			per[c.CaseNumber] = c.Status
			switch c.Status {
			case models.StatusIndexed:
				done++
			case models.StatusError:
				failed++
			}
		}
		writeJSON(w, http.StatusOK, workflows.CaseIngestProgress{
			Total:   len(cases),
			Done:    done,
			Failed:  failed,
			PerCase: per,
		})
		return
	}
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// writeSearchErr maps the search error taxonomy onto HTTP statuses.
func writeSearchErr(w http.ResponseWriter, err error) {
	var verr *search.ValidationError
	var timeout *search.UpstreamTimeout
	var unavailable *search.UpstreamUnavailable
	switch {
	case errors.As(err, &verr):
		writeErr(w, http.StatusBadRequest, verr)
	case errors.As(err, &timeout):
		writeErr(w, http.StatusGatewayTimeout, timeout)
	case errors.As(err, &unavailable):
		writeErr(w, http.StatusBadGateway, unavailable)
	default:
		writeErr(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "JS-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500 && status != http.StatusBadGateway && status != http.StatusGatewayTimeout:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "JS-DB-5001",
				Message: "Database schema is not initialized. Run create-schema and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "JS-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "JS-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "JS-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "JS-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "JS-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "JS-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "JS-API-5020"
		msg = "A retrieval backend is unavailable. Retry shortly."
	case status == http.StatusGatewayTimeout:
		code = "JS-API-5040"
		msg = "A retrieval backend timed out. Retry shortly."
	}

	// For 4xx, surface validation detail without leaking internals.
	if status >= 400 && status < 500 && err != nil {
		var verr *search.ValidationError
		switch {
		case errors.As(err, &verr):
			msg = "Invalid " + verr.Field + ": " + verr.Reason + "."
		case strings.Contains(raw, "case_number is required"):
			msg = "A case number is required."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
