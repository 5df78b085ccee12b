package models

import "time"

type RemapSet struct {
	TenantID  string            `json:"tenant_id"`
	UserID    string            `json:"user_id"`
	Field     string            `json:"field"`
	Entries   map[string]string `json:"entries"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type AnalysisRun struct {
	ID           string
	TenantID     string
	UserID       *string
	SheetID      string
	OK           bool
	AnalyzedRows int
	IssueCount   int
	ErrorCount   int
	CreatedAt    time.Time
}
