package remap

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
)

var (
	ErrRemapNotFound    = errors.New("remap not found")
	ErrUnsupportedField = errors.New("field does not support remaps")
)

// SupportedFields lists the canonical fields whose literals users may remap.
func SupportedFields() []load.Field {
	return []load.Field{load.FieldStatus, load.FieldBroker}
}

func Supported(f load.Field) bool {
	for _, s := range SupportedFields() {
		if s == f {
			return true
		}
	}
	return false
}

type Repository interface {
	GetByUserAndField(ctx context.Context, userID uuid.UUID, field load.Field) (Set, error)
	Save(ctx context.Context, set Set) (Set, error)
	Delete(ctx context.Context, userID uuid.UUID, field load.Field) error
}

// Set is one user's literal replacement table for a single field. Lookups are
// exact: values without an entry pass through untouched.
type Set interface {
	TenantID() uuid.UUID
	UserID() uuid.UUID
	Field() load.Field
	Entries() map[string]string
	UpdatedAt() time.Time

	Apply(value string) string
	WithEntries(entries map[string]string) Set
}

type set struct {
	tenantID  uuid.UUID
	userID    uuid.UUID
	field     load.Field
	entries   map[string]string
	updatedAt time.Time
}

func New(tenantID, userID uuid.UUID, field load.Field, opts ...Option) Set {
	s := &set{
		tenantID:  tenantID,
		userID:    userID,
		field:     field,
		entries:   map[string]string{},
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Option func(*set)

func WithEntries(entries map[string]string) Option {
	return func(s *set) {
		if entries != nil {
			s.entries = entries
		}
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(s *set) {
		if !updatedAt.IsZero() {
			s.updatedAt = updatedAt
		}
	}
}

func (s *set) TenantID() uuid.UUID {
	return s.tenantID
}

func (s *set) UserID() uuid.UUID {
	return s.userID
}

func (s *set) Field() load.Field {
	return s.field
}

func (s *set) Entries() map[string]string {
	return s.entries
}

func (s *set) UpdatedAt() time.Time {
	return s.updatedAt
}

func (s *set) Apply(value string) string {
	if mapped, ok := s.entries[value]; ok {
		return mapped
	}
	return value
}

func (s *set) WithEntries(entries map[string]string) Set {
	return &set{
		tenantID:  s.tenantID,
		userID:    s.userID,
		field:     s.field,
		entries:   entries,
		updatedAt: time.Now(),
	}
}
