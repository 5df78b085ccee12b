package services

import (
	"context"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
)

// Suggester proposes fields for headers the deterministic resolver left
// unmapped. Proposals are advisory; they never alter the mapping.
type Suggester interface {
	SuggestHeaders(ctx context.Context, unmappedHeaders []string, missingFields []load.Field) (map[string]load.Field, error)
}
