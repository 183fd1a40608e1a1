package activities

import "lexisense/internal/models"

type SetContractStatusInput struct {
	ContractID string                `json:"contract_id"`
	Status     models.ContractStatus `json:"status"`
	FailReason string                `json:"fail_reason,omitempty"`
}

type CountChunksInput struct {
	ContractID    string `json:"contract_id"`
	MaxChunkChars int    `json:"max_chunk_chars"`
}

type CountChunksOutput struct {
	Count int `json:"count"`
}

type AnalyzeChunkInput struct {
	ContractID    string `json:"contract_id"`
	ChunkIndex    int    `json:"chunk_index"`
	MaxChunkChars int    `json:"max_chunk_chars"`
}

type AnalyzeChunkOutput struct {
	Partial      models.PartialAnalysis `json:"partial"`
	ProviderName string                 `json:"provider_name"`
	Model        string                 `json:"model"`
}

type SaveAnalysisInput struct {
	ContractID string                `json:"contract_id"`
	Result     models.AnalysisResult `json:"result"`
}
