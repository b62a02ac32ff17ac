package inspection

import "time"

// AnalysisID identifier type
type AnalysisID string

// Analysis is a stored analysis run, kept for auditing and retrieval.
type Analysis struct {
	ID           AnalysisID `json:"id"`
	TenantID     string     `json:"tenant_id"`
	InspectionID string     `json:"inspection_id,omitempty"`
	Mode         Mode       `json:"mode"`
	Language     Language   `json:"language"`
	Provider     string     `json:"provider,omitempty"`
	SpecCodes    []string   `json:"spec_codes"`
	EvidenceURL  string     `json:"evidence_url,omitempty"`
	Degraded     bool       `json:"degraded"`
	Result       string     `json:"result"` // envelope JSON
	CreatedAt    time.Time  `json:"created_at"`
}

// PaginatedAnalyses is one page of analysis records.
type PaginatedAnalyses struct {
	Data     []*Analysis `json:"data"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}
