package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/modules/loads/infrastructure/persistence/models"
	"github.com/loadwise/loadwise/pkg/composables"
)

// RemapRepository stores remap sets in Redis, one hash per tenant and user
// with the field name as the hash key.
type RemapRepository struct {
	redis  *redis.Client
	prefix string
}

func NewRemapRepository(redis *redis.Client) remap.Repository {
	return &RemapRepository{redis: redis, prefix: "loads:remaps:v1"}
}

func (r *RemapRepository) GetByUserAndField(ctx context.Context, userID uuid.UUID, field load.Field) (remap.Set, error) {
	hashKey, err := r.hashKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	result, err := r.redis.HGet(ctx, hashKey, string(field)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, remap.ErrRemapNotFound
		}
		return nil, err
	}
	var model models.RemapSet
	if err := json.Unmarshal([]byte(result), &model); err != nil {
		return nil, err
	}
	return ToDomainRemapSet(model)
}

func (r *RemapRepository) Save(ctx context.Context, set remap.Set) (remap.Set, error) {
	hashKey, err := r.hashKey(ctx, set.UserID())
	if err != nil {
		return nil, err
	}
	setJson, err := json.Marshal(ToDBRemapSet(set))
	if err != nil {
		return nil, err
	}
	if err := r.redis.HSet(ctx, hashKey, string(set.Field()), setJson).Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func (r *RemapRepository) Delete(ctx context.Context, userID uuid.UUID, field load.Field) error {
	hashKey, err := r.hashKey(ctx, userID)
	if err != nil {
		return err
	}
	return r.redis.HDel(ctx, hashKey, string(field)).Err()
}

func (r *RemapRepository) hashKey(ctx context.Context, userID uuid.UUID) (string, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:{%s}:%s", r.prefix, tenantID.String(), userID.String()), nil
}
