package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-mini/internal/domain"
)

const userCacheKeyPrefix = "user:"

// CachedUserRepository is a read-through Redis cache over a UserRepository.
// Identity resolution runs on every ticket detail and comment listing, so
// lookups by id are cached with a TTL. Cache failures degrade to the inner
// repository and are logged, never surfaced.
type CachedUserRepository struct {
	inner  UserRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserRepository wraps inner with a Redis cache. A nil client
// disables caching entirely.
func NewCachedUserRepository(inner UserRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedUserRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedUserRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (r *CachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.inner.Create(ctx, user)
}

func (r *CachedUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if user := r.cacheGet(ctx, id); user != nil {
		return user, nil
	}
	user, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, user)
	return user, nil
}

func (r *CachedUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	// Email lookups only happen at login; not worth a second key space.
	return r.inner.GetByEmail(ctx, email)
}

func (r *CachedUserRepository) ListByIDs(ctx context.Context, ids []string) (map[string]domain.User, error) {
	result := make(map[string]domain.User, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if user := r.cacheGet(ctx, id); user != nil {
			result[id] = *user
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}
	fetched, err := r.inner.ListByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, user := range fetched {
		result[id] = user
		u := user
		r.cacheSet(ctx, &u)
	}
	return result, nil
}

func (r *CachedUserRepository) cacheGet(ctx context.Context, id string) *domain.User {
	if r.client == nil {
		return nil
	}
	payload, err := r.client.Get(ctx, userCacheKeyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil && r.logger != nil {
			r.logger.Debug("user cache get failed", zap.String("user_id", id), zap.Error(err))
		}
		return nil
	}
	var user domain.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil
	}
	return &user
}

func (r *CachedUserRepository) cacheSet(ctx context.Context, user *domain.User) {
	if r.client == nil || user == nil {
		return
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, userCacheKeyPrefix+user.ID, payload, r.ttl).Err(); err != nil && r.logger != nil {
		r.logger.Debug("user cache set failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}
