package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"chainsync/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	tokenCacheKeyPrefix = "chainsync:token:"
	defaultCacheTTL     = 24 * time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

type keyCache interface {
	Exists(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// CachedRepository answers token existence checks from Redis before asking
// the row store.
type CachedRepository struct {
	*Repository
	cache keyCache
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: redisCache{client: client}, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) TokenMetadataExists(ctx context.Context, chain domain.Chain, address string) (bool, error) {
	if r.cache == nil {
		return r.Repository.TokenMetadataExists(ctx, chain, address)
	}
	key := tokenCacheKey(chain, address)
	if hit, err := r.cache.Exists(ctx, key); err == nil && hit {
		return true, nil
	}
	exists, err := r.Repository.TokenMetadataExists(ctx, chain, address)
	if err != nil {
		return false, err
	}
	if exists {
		_ = r.cache.Mark(ctx, key, r.ttl)
	}
	return exists, nil
}

func (r *CachedRepository) SaveTokenMetadata(ctx context.Context, metadata domain.TokenMetadata) error {
	if err := r.Repository.SaveTokenMetadata(ctx, metadata); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Mark(ctx, tokenCacheKey(metadata.Chain, metadata.TokenAddress), r.ttl)
	}
	return nil
}

// Close releases the Redis connection; the wrapped stores are closed by
// their owners.
func (r *CachedRepository) Close() error {
	if closer, ok := r.cache.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func tokenCacheKey(chain domain.Chain, address string) string {
	return tokenCacheKeyPrefix + chain.String() + ":" + strings.ToLower(address)
}

type redisCache struct {
	client *redis.Client
}

func (c redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c redisCache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, key, "1", ttl).Err()
}

func (c redisCache) Close() error {
	return c.client.Close()
}
