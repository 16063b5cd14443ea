package activities

type ListPendingCasesInput struct {
	Limit int `json:"limit"`
}

type PendingCase struct {
	CaseID     string `json:"case_id"`
	CaseNumber string `json:"case_number"`
	FilePath   string `json:"file_path"`
}

type ListPendingCasesOutput struct {
	Cases []PendingCase `json:"cases"`
}

type ExtractTextInput struct {
	FilePath string `json:"file_path"`
}

type ExtractTextOutput struct {
	Text string `json:"text"`
}

type PersistDocumentInput struct {
	CaseID string `json:"case_id"`
	Text   string `json:"text"`
}

type GenerateSummaryInput struct {
	Operation     string `json:"operation"`
	CaseID        string `json:"case_id"`
	Text          string `json:"text"`
	ProviderIndex int    `json:"provider_index"`
}

type GenerateSummaryOutput struct {
	Summary      string `json:"summary"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type StoreSummaryInput struct {
	CaseID  string `json:"case_id"`
	Summary string `json:"summary"`
}

type ChunkDocumentInput struct {
	CaseID       string `json:"case_id"`
	Text         string `json:"text"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type ChunkItem struct {
	ChunkID     string `json:"chunk_id"`
	CaseID      string `json:"case_id"`
	ChunkIndex  int    `json:"chunk_index"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Text        string `json:"text"`
}

type ChunkDocumentOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type ReplaceChunksInput struct {
	CaseID string      `json:"case_id"`
	Chunks []ChunkItem `json:"chunks"`
}

type EmbedChunksInput struct {
	Operation     string      `json:"operation"`
	CaseID        string      `json:"case_id"`
	ProviderIndex int         `json:"provider_index"`
	Chunks        []ChunkItem `json:"chunks"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type UpsertEmbeddingsInput struct {
	CaseID  string      `json:"case_id"`
	Model   string      `json:"model"`
	Chunks  []ChunkItem `json:"chunks"`
	Vectors [][]float32 `json:"vectors"`
}

type UpsertEmbeddingsOutput struct {
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

type UpdateCaseStatusInput struct {
	CaseID     string `json:"case_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
}

type WriteCaseArtifactsInput struct {
	CaseID     string         `json:"case_id"`
	CaseNumber string         `json:"case_number"`
	Metadata   map[string]any `json:"metadata"`
	Chunks     []ChunkItem    `json:"chunks"`
}
