package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/pkg/eventbus"
)

// RemapService manages the per-user literal rewrite tables applied to the
// fields that support them.
type RemapService struct {
	repo      remap.Repository
	publisher eventbus.EventBus
}

func NewRemapService(repo remap.Repository, publisher eventbus.EventBus) *RemapService {
	return &RemapService{repo: repo, publisher: publisher}
}

func (s *RemapService) GetByField(ctx context.Context, userID uuid.UUID, field load.Field) (remap.Set, error) {
	if !remap.Supported(field) {
		return nil, errors.Wrapf(remap.ErrUnsupportedField, "field %q", field)
	}
	return s.repo.GetByUserAndField(ctx, userID, field)
}

// Save replaces the user's table for the field with the given entries.
func (s *RemapService) Save(ctx context.Context, tenantID, userID uuid.UUID, field load.Field, entries map[string]string) (remap.Set, error) {
	if !remap.Supported(field) {
		return nil, errors.Wrapf(remap.ErrUnsupportedField, "field %q", field)
	}
	set := remap.New(tenantID, userID, field,
		remap.WithEntries(entries),
		remap.WithUpdatedAt(time.Now()),
	)
	saved, err := s.repo.Save(ctx, set)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.Publish(remap.SavedEvent{
			TenantID: tenantID,
			UserID:   userID,
			Field:    field,
			Entries:  len(entries),
		})
	}
	return saved, nil
}

func (s *RemapService) Delete(ctx context.Context, tenantID, userID uuid.UUID, field load.Field) error {
	if !remap.Supported(field) {
		return errors.Wrapf(remap.ErrUnsupportedField, "field %q", field)
	}
	if err := s.repo.Delete(ctx, userID, field); err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.Publish(remap.DeletedEvent{TenantID: tenantID, UserID: userID, Field: field})
	}
	return nil
}
