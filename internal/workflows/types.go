package workflows

type CaseIngestInput struct {
	BatchLimit      int   `json:"batch_limit"`
	MaxChildren     int   `json:"max_children"`
	ChunkSize       int   `json:"chunk_size"`
	ChunkOverlap    int   `json:"chunk_overlap"`
	EmbedProviders  int   `json:"embed_providers"`
	LLMProviders    int   `json:"llm_providers"`
	EmbedOrder      []int `json:"embed_order,omitempty"`
	LLMOrder        []int `json:"llm_order,omitempty"`
	CooldownSeconds int   `json:"cooldown_seconds"`
}

type CaseIngestProgress struct {
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	PerCase       map[string]string `json:"per_case"`
	ChildWorkflow map[string]string `json:"child_workflow"`
}

type CaseProcessInput struct {
	CaseID          string `json:"case_id"`
	CaseNumber      string `json:"case_number"`
	FilePath        string `json:"file_path"`
	ChunkSize       int    `json:"chunk_size"`
	ChunkOverlap    int    `json:"chunk_overlap"`
	EmbedProviders  int    `json:"embed_providers"`
	LLMProviders    int    `json:"llm_providers"`
	EmbedOrder      []int  `json:"embed_order,omitempty"`
	LLMOrder        []int  `json:"llm_order,omitempty"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

type CaseStatus struct {
	CaseID      string            `json:"case_id"`
	CaseNumber  string            `json:"case_number"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	Providers   []string          `json:"providers,omitempty"`
	RetryCounts map[string]int    `json:"retry_counts,omitempty"`
	Steps       map[string]string `json:"steps"`
}
