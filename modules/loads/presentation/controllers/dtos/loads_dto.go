package dtos

// APIError standardizes JSON error responses.
type APIError struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// AnalyzeRequest tunes one analysis invocation. The zero value runs the
// configured defaults; Overrides force header-to-field assignments for this
// call only and are merged over any operator override file.
type AnalyzeRequest struct {
	MaxRows   int               `json:"maxRows" validate:"omitempty,gte=1,lte=10000"`
	Overrides map[string]string `json:"overrides" validate:"omitempty,dive,required"`
}

// AutofixApplyRequest selects which repairs to run. Both flags default to
// off; TimezoneOffset accepts Z, UTC or a fixed offset such as -06:00.
type AutofixApplyRequest struct {
	CreateMissingColumns bool   `json:"createMissingColumns"`
	NormalizeDates       bool   `json:"normalizeDates"`
	TimezoneOffset       string `json:"timezoneOffset"`
}

// RemapSaveRequest replaces the caller's literal table for one field.
type RemapSaveRequest struct {
	Entries map[string]string `json:"entries" validate:"required"`
}

// RemapResponse is one user's literal table for a single field.
type RemapResponse struct {
	Field     string            `json:"field"`
	Entries   map[string]string `json:"entries"`
	UpdatedAt string            `json:"updatedAt"`
}

// RunListQuery bounds the run log listing. A zero Limit falls back to the
// service default.
type RunListQuery struct {
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=200"`
}

// RunResponse is one audit entry from the analysis run log.
type RunResponse struct {
	ID           string `json:"id"`
	SheetID      string `json:"sheetId"`
	OK           bool   `json:"ok"`
	AnalyzedRows int    `json:"analyzedRows"`
	Issues       int    `json:"issues"`
	Errors       int    `json:"errors"`
	CreatedAt    string `json:"createdAt"`
}

// RunListResponse wraps recent runs, newest first.
type RunListResponse struct {
	Data  []RunResponse `json:"data"`
	Total int           `json:"total"`
}
