package workflows

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"jurisearch/internal/activities"
	"jurisearch/internal/models"
	"jurisearch/internal/providers"
)

const (
	QueryGetIngestProgress = "GetIngestProgress"
	QueryGetCaseStatus     = "GetCaseStatus"
)

type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}, retries: map[string]int{}}
}

// CaseIngestWorkflow drains the queue of downloaded cases, processing each in
// a child workflow with bounded parallelism.
func CaseIngestWorkflow(ctx workflow.Context, input CaseIngestInput) (string, error) {
	progress := CaseIngestProgress{
		PerCase:       map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (CaseIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var pending activities.ListPendingCasesOutput
	if err := workflow.ExecuteActivity(ctx, "ListPendingCasesActivity", activities.ListPendingCasesInput{Limit: input.BatchLimit}).Get(ctx, &pending); err != nil {
		return "", err
	}
	progress.Total = len(pending.Cases)

	maxChildren := input.MaxChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	for i := 0; i < len(pending.Cases); i += maxChildren {
		end := i + maxChildren
		if end > len(pending.Cases) {
			end = len(pending.Cases)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		batch := pending.Cases[i:end]
		for _, pc := range batch {
			progress.PerCase[pc.CaseNumber] = "processing"
			workflowID := "case-" + sanitizeID(pc.CaseNumber)
			cwo := workflow.ChildWorkflowOptions{WorkflowID: workflowID}
			childCtx := workflow.WithChildOptions(ctx, cwo)
			f := workflow.ExecuteChildWorkflow(childCtx, CaseProcessWorkflow, CaseProcessInput{
				CaseID:          pc.CaseID,
				CaseNumber:      pc.CaseNumber,
				FilePath:        pc.FilePath,
				ChunkSize:       input.ChunkSize,
				ChunkOverlap:    input.ChunkOverlap,
				EmbedProviders:  input.EmbedProviders,
				LLMProviders:    input.LLMProviders,
				EmbedOrder:      input.EmbedOrder,
				LLMOrder:        input.LLMOrder,
				CooldownSeconds: input.CooldownSeconds,
			})
			futures = append(futures, f)
			progress.ChildWorkflow[pc.CaseNumber] = workflowID
		}

		for idx, f := range futures {
			var childStatus string
			err := f.Get(ctx, &childStatus)
			caseNumber := batch[idx].CaseNumber
			if err != nil {
				progress.Failed++
				progress.PerCase[caseNumber] = "failed"
				continue
			}
			if childStatus == models.StatusError {
				progress.Failed++
			} else {
				progress.Done++
			}
			progress.PerCase[caseNumber] = childStatus
		}
	}
	return "completed", nil
}

// CaseProcessWorkflow takes one downloaded decision through text extraction,
// summarization, chunking and embedding. Missing text fails the case cleanly;
// a failed summary never blocks indexing.
func CaseProcessWorkflow(ctx workflow.Context, input CaseProcessInput) (string, error) {
	status := CaseStatus{
		CaseID:      input.CaseID,
		CaseNumber:  input.CaseNumber,
		CurrentStep: "init",
		Status:      "processing",
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetCaseStatus, func() (CaseStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	embedOrder := providerOrder(input.EmbedOrder, input.EmbedProviders)
	llmOrder := providerOrder(input.LLMOrder, input.LLMProviders)
	embedState := newProviderState()
	llmState := newProviderState()

	failCase := func(reason string) (string, error) {
		status.Status = models.StatusError
		status.FailReason = reason
		status.Steps[status.CurrentStep] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateCaseStatusActivity", activities.UpdateCaseStatusInput{
			CaseID: input.CaseID, Status: models.StatusError, FailReason: reason,
		}).Get(ctx, nil)
		return status.Status, nil
	}

	status.CurrentStep = "extract_text"
	status.Steps[status.CurrentStep] = "processing"
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{FilePath: input.FilePath}).Get(ctx, &textOut); err != nil {
		if isNoTextError(err) {
			return failCase("no extractable text found (OCR not enabled)")
		}
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "persist_document"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "PersistDocumentActivity", activities.PersistDocumentInput{CaseID: input.CaseID, Text: textOut.Text}).Get(ctx, nil); err != nil {
		if isInvalidTextEncodingError(err) {
			return failCase("decision contains invalid text encoding after extraction")
		}
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "summarize"
	status.Steps[status.CurrentStep] = "processing"
	summary, sumErr := callSummaryWithFailover(ctx, &llmState, llmOrder, cooldown, activities.GenerateSummaryInput{
		Operation: "case_summary",
		CaseID:    input.CaseID,
		Text:      textOut.Text,
	}, status.RetryCounts)
	if sumErr == nil && strings.TrimSpace(summary.Summary) != "" {
		status.Providers = append(status.Providers, summary.ProviderName)
		_ = workflow.ExecuteActivity(ctx, "StoreSummaryActivity", activities.StoreSummaryInput{CaseID: input.CaseID, Summary: summary.Summary}).Get(ctx, nil)
		status.Steps[status.CurrentStep] = "done"
	} else {
		status.Steps[status.CurrentStep] = "skipped"
	}

	status.CurrentStep = "chunk_document"
	status.Steps[status.CurrentStep] = "processing"
	var chunkOut activities.ChunkDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkDocumentActivity", activities.ChunkDocumentInput{
		CaseID:       input.CaseID,
		Text:         textOut.Text,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &chunkOut); err != nil {
		return "", err
	}
	if len(chunkOut.Chunks) == 0 {
		return failCase("document produced no usable chunks")
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "replace_chunks"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "ReplaceChunksActivity", activities.ReplaceChunksInput{CaseID: input.CaseID, Chunks: chunkOut.Chunks}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	_ = workflow.ExecuteActivity(ctx, "UpdateCaseStatusActivity", activities.UpdateCaseStatusInput{
		CaseID: input.CaseID, Status: models.StatusProcessed,
	}).Get(ctx, nil)

	status.CurrentStep = "embed_chunks"
	status.Steps[status.CurrentStep] = "processing"
	embedOut, err := callEmbedWithFailover(ctx, &embedState, embedOrder, cooldown, activities.EmbedChunksInput{
		Operation: "embed",
		CaseID:    input.CaseID,
		Chunks:    chunkOut.Chunks,
	}, status.RetryCounts)
	if err != nil {
		return failCase("embedding providers exhausted: " + err.Error())
	}
	status.Providers = append(status.Providers, embedOut.ProviderName)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "upsert_embeddings"
	status.Steps[status.CurrentStep] = "processing"
	var upsertOut activities.UpsertEmbeddingsOutput
	if err := workflow.ExecuteActivity(ctx, "UpsertEmbeddingsActivity", activities.UpsertEmbeddingsInput{
		CaseID:  input.CaseID,
		Model:   embedOut.Model,
		Chunks:  chunkOut.Chunks,
		Vectors: embedOut.Vectors,
	}).Get(ctx, &upsertOut); err != nil {
		return "", err
	}
	if upsertOut.Stored == 0 {
		return failCase("no embeddings stored for document")
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "write_artifacts"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "WriteCaseArtifactsActivity", activities.WriteCaseArtifactsInput{
		CaseID:     input.CaseID,
		CaseNumber: input.CaseNumber,
		Metadata: map[string]any{
			"case_id":      input.CaseID,
			"case_number":  input.CaseNumber,
			"chunk_count":  len(chunkOut.Chunks),
			"stored":       upsertOut.Stored,
			"skipped":      upsertOut.Skipped,
			"embed_model":  embedOut.Model,
			"generated_at": workflow.Now(ctx),
		},
		Chunks: chunkOut.Chunks,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "mark_indexed"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpdateCaseStatusActivity", activities.UpdateCaseStatusInput{
		CaseID: input.CaseID, Status: models.StatusIndexed,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = models.StatusIndexed
	return status.Status, nil
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, order []int, cooldown time.Duration, input activities.EmbedChunksInput, retryCounts map[string]int) (activities.EmbedChunksOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < len(order)*4; attempt++ {
		idx := order[attempt%len(order)]
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedChunksOutput
		err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", input).Get(ctx, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch providers.ClassifyError(err) {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedChunksOutput{}, lastErr
}

func callSummaryWithFailover(ctx workflow.Context, state *providerState, order []int, cooldown time.Duration, input activities.GenerateSummaryInput, retryCounts map[string]int) (activities.GenerateSummaryOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < len(order)*2; attempt++ {
		idx := order[attempt%len(order)]
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.GenerateSummaryOutput
		err := workflow.ExecuteActivity(ctx, "GenerateSummaryActivity", input).Get(ctx, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		key := fmt.Sprintf("summary-%d", idx)
		retryCounts[key]++
		switch providers.ClassifyError(err) {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate, providers.ErrorTransient:
			if retryCounts[key] <= 1 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return activities.GenerateSummaryOutput{}, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func isNoTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func isInvalidTextEncodingError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "invalid byte sequence") || strings.Contains(e, "sqlstate 22021")
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// providerOrder returns the failover attempt order. The starter supplies a
// preference order (real providers ahead of mock); absent one, providers are
// tried sequentially.
func providerOrder(order []int, count int) []int {
	if len(order) > 0 {
		return order
	}
	n := defaultCount(count)
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
