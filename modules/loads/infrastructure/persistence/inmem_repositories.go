package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/analysisrun"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/pkg/composables"
)

type SafeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		m: make(map[K]V),
	}
}

func (s *SafeMap[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *SafeMap[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, found := s.m[key]
	return val, found
}

func (s *SafeMap[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *SafeMap[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make([]V, 0, len(s.m))
	for _, v := range s.m {
		values = append(values, v)
	}
	return values
}

type remapKey struct {
	tenantID uuid.UUID
	userID   uuid.UUID
	field    load.Field
}

// InmemRemapRepository keeps remap sets in process memory. It backs the CLI
// and tests, where no Redis is around.
type InmemRemapRepository struct {
	storage *SafeMap[remapKey, remap.Set]
}

func NewInmemRemapRepository() *InmemRemapRepository {
	return &InmemRemapRepository{
		storage: NewSafeMap[remapKey, remap.Set](),
	}
}

func (r *InmemRemapRepository) GetByUserAndField(ctx context.Context, userID uuid.UUID, field load.Field) (remap.Set, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	set, found := r.storage.Get(remapKey{tenantID: tenantID, userID: userID, field: field})
	if !found {
		return nil, remap.ErrRemapNotFound
	}
	return set, nil
}

func (r *InmemRemapRepository) Save(ctx context.Context, set remap.Set) (remap.Set, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	r.storage.Set(remapKey{tenantID: tenantID, userID: set.UserID(), field: set.Field()}, set)
	return set, nil
}

func (r *InmemRemapRepository) Delete(ctx context.Context, userID uuid.UUID, field load.Field) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	r.storage.Delete(remapKey{tenantID: tenantID, userID: userID, field: field})
	return nil
}

// InmemAnalysisRunRepository keeps the run log in process memory.
type InmemAnalysisRunRepository struct {
	storage *SafeMap[uuid.UUID, analysisrun.Run]
}

func NewInmemAnalysisRunRepository() *InmemAnalysisRunRepository {
	return &InmemAnalysisRunRepository{
		storage: NewSafeMap[uuid.UUID, analysisrun.Run](),
	}
}

func (r *InmemAnalysisRunRepository) Save(ctx context.Context, run analysisrun.Run) error {
	if _, err := composables.UseTenantID(ctx); err != nil {
		return err
	}
	r.storage.Set(run.ID(), run)
	return nil
}

func (r *InmemAnalysisRunRepository) List(ctx context.Context, limit int) ([]analysisrun.Run, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	all := r.storage.Values()
	runs := make([]analysisrun.Run, 0, len(all))
	for _, run := range all {
		if run.TenantID() == tenantID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt().After(runs[j].CreatedAt())
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
