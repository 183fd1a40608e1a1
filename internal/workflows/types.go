package workflows

type AnalyzeContractInput struct {
	ContractID    string `json:"contract_id"`
	MaxChunkChars int    `json:"max_chunk_chars"`
	Concurrency   int    `json:"concurrency"`
	MaxAttempts   int    `json:"max_attempts"`
}

// AnalysisProgress is returned by the GetAnalysisProgress query.
type AnalysisProgress struct {
	ContractID  string   `json:"contract_id"`
	CurrentStep string   `json:"current_step"`
	Status      string   `json:"status"`
	FailReason  string   `json:"fail_reason,omitempty"`
	TotalChunks int      `json:"total_chunks"`
	Done        int      `json:"done"`
	ChunkStatus []string `json:"chunk_status"`
	Provider    string   `json:"provider,omitempty"`
}
