package analysisrun

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("analysis run not found")

type Repository interface {
	Save(ctx context.Context, run Run) error
	List(ctx context.Context, limit int) ([]Run, error)
}

// Run is the audit record of one analysis invocation.
type Run interface {
	ID() uuid.UUID
	TenantID() uuid.UUID
	UserID() uuid.UUID
	SheetID() string
	OK() bool
	AnalyzedRows() int
	IssueCount() int
	ErrorCount() int
	CreatedAt() time.Time
}

type run struct {
	id           uuid.UUID
	tenantID     uuid.UUID
	userID       uuid.UUID
	sheetID      string
	ok           bool
	analyzedRows int
	issueCount   int
	errorCount   int
	createdAt    time.Time
}

func New(tenantID, userID uuid.UUID, sheetID string, opts ...Option) Run {
	r := &run{
		id:        uuid.New(),
		tenantID:  tenantID,
		userID:    userID,
		sheetID:   sheetID,
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type Option func(*run)

func WithID(id uuid.UUID) Option {
	return func(r *run) {
		if id != uuid.Nil {
			r.id = id
		}
	}
}

func WithOutcome(ok bool, analyzedRows, issueCount, errorCount int) Option {
	return func(r *run) {
		r.ok = ok
		r.analyzedRows = analyzedRows
		r.issueCount = issueCount
		r.errorCount = errorCount
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(r *run) {
		if !createdAt.IsZero() {
			r.createdAt = createdAt
		}
	}
}

func (r *run) ID() uuid.UUID        { return r.id }
func (r *run) TenantID() uuid.UUID  { return r.tenantID }
func (r *run) UserID() uuid.UUID    { return r.userID }
func (r *run) SheetID() string      { return r.sheetID }
func (r *run) OK() bool             { return r.ok }
func (r *run) AnalyzedRows() int    { return r.analyzedRows }
func (r *run) IssueCount() int      { return r.issueCount }
func (r *run) ErrorCount() int      { return r.errorCount }
func (r *run) CreatedAt() time.Time { return r.createdAt }
