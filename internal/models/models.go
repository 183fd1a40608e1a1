package models

import "time"

type ContractStatus string

const (
	StatusProcessing ContractStatus = "processing"
	StatusAnalyzed   ContractStatus = "analyzed"
	StatusFailed     ContractStatus = "failed"
)

type Contract struct {
	ContractID  string          `json:"contract_id"`
	Tenant      string          `json:"tenant,omitempty"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type,omitempty"`
	ObjectKey   string          `json:"object_key,omitempty"`
	Text        string          `json:"-"`
	Status      ContractStatus  `json:"status"`
	FailReason  string          `json:"fail_reason,omitempty"`
	Analysis    *AnalysisResult `json:"analysis,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Party struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// KeyDate is a labelled calendar date in YYYY-MM-DD form.
type KeyDate struct {
	Label string `json:"label"`
	Date  string `json:"date"`
}

type Risk struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// PartialAnalysis is the validated extraction of a single chunk.
type PartialAnalysis struct {
	Summary string    `json:"summary"`
	Parties []Party   `json:"parties"`
	Dates   []KeyDate `json:"dates"`
	Risks   []Risk    `json:"risks"`
}

// AnalysisResult is the merged analysis persisted against a contract.
type AnalysisResult struct {
	Summary    string    `json:"summary"`
	Parties    []Party   `json:"parties"`
	Dates      []KeyDate `json:"dates"`
	Risks      []Risk    `json:"risks"`
	ChunkCount int       `json:"chunk_count"`
	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}
