package remap

import (
	"github.com/google/uuid"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
)

// SavedEvent is published when a remap table is created or replaced.
type SavedEvent struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Field    load.Field
	Entries  int
}

// DeletedEvent is published when a remap table is removed.
type DeletedEvent struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Field    load.Field
}
