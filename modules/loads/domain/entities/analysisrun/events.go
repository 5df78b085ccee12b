package analysisrun

import "github.com/google/uuid"

// AnalyzedEvent is published after every recorded sheet analysis.
type AnalyzedEvent struct {
	SheetID      string
	TenantID     uuid.UUID
	UserID       uuid.UUID
	OK           bool
	AnalyzedRows int
	Issues       int
	Errors       int
}
