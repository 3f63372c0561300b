package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenVersionKeyPrefix = "auth:token_version:"

// TokenVersionStore tracks the per-user refresh-token revocation counter.
type TokenVersionStore interface {
	Current(ctx context.Context, userID string) (int64, error)
	Increment(ctx context.Context, userID string) (int64, error)
}

type tokenVersionStore struct {
	pool *pgxpool.Pool
}

// NewTokenVersionStore returns a Postgres-backed store reading users.token_version.
func NewTokenVersionStore(pool *pgxpool.Pool) TokenVersionStore {
	return &tokenVersionStore{pool: pool}
}

func (s *tokenVersionStore) Current(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT token_version FROM users WHERE id=$1`

	var version int64
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *tokenVersionStore) Increment(ctx context.Context, userID string) (int64, error) {
	const query = `
        UPDATE users SET token_version=token_version+1, updated_at=NOW()
        WHERE id=$1
        RETURNING token_version`

	var version int64
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// versionCache is the key/value surface the cached store needs from Redis.
type versionCache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	// Raise stores version unless the cache already holds an equal or newer one, and returns
	// the value held afterwards. Cached versions never move backwards.
	Raise(ctx context.Context, key string, version int64, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// raiseVersionLua writes ARGV[1] to KEYS[1] only when the key is absent, unparsable or holds
// a smaller version. ARGV[2] is the TTL in milliseconds; 0 means no expiry.
var raiseVersionLua = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]))
local version = tonumber(ARGV[1])
if current and current >= version then
  return current
end
if tonumber(ARGV[2]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return version
`)

type redisVersionCache struct {
	client *redis.Client
}

func (c redisVersionCache) Get(ctx context.Context, key string) (int64, bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cached token version %q: %w", raw, err)
	}
	return version, true, nil
}

func (c redisVersionCache) Raise(ctx context.Context, key string, version int64, ttl time.Duration) (int64, error) {
	return raiseVersionLua.Run(ctx, c.client, []string{key}, version, ttl.Milliseconds()).Int64()
}

func (c redisVersionCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// CachedTokenVersionStore fronts a TokenVersionStore with a short-TTL Redis cache. Cache
// failures fall through to the inner store.
type CachedTokenVersionStore struct {
	inner  TokenVersionStore
	cache  versionCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedTokenVersionStore wraps inner with Redis caching.
func NewCachedTokenVersionStore(inner TokenVersionStore, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedTokenVersionStore {
	return newCachedTokenVersionStore(inner, redisVersionCache{client: client}, ttl, logger)
}

func newCachedTokenVersionStore(inner TokenVersionStore, cache versionCache, ttl time.Duration, logger *zap.Logger) *CachedTokenVersionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedTokenVersionStore{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// Current returns the cached version, loading it on a miss. A fill never overwrites a newer
// version written by a concurrent Increment; the newer value is returned instead.
func (s *CachedTokenVersionStore) Current(ctx context.Context, userID string) (int64, error) {
	key := tokenVersionKeyPrefix + userID

	version, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("token version cache read failed", zap.String("user_id", userID), zap.Error(err))
	} else if hit {
		return version, nil
	}

	version, err = s.inner.Current(ctx, userID)
	if err != nil {
		return 0, err
	}
	held, err := s.cache.Raise(ctx, key, version, s.ttl)
	if err != nil {
		s.logger.Warn("token version cache write failed", zap.String("user_id", userID), zap.Error(err))
		return version, nil
	}
	return held, nil
}

// Increment bumps the version in the inner store and raises the cached copy. If the cache can
// be neither raised nor evicted the call fails: a stale entry would keep revoked refresh tokens
// alive until it expires.
func (s *CachedTokenVersionStore) Increment(ctx context.Context, userID string) (int64, error) {
	version, err := s.inner.Increment(ctx, userID)
	if err != nil {
		return 0, err
	}

	key := tokenVersionKeyPrefix + userID
	_, raiseErr := s.cache.Raise(ctx, key, version, s.ttl)
	if raiseErr == nil {
		return version, nil
	}
	if delErr := s.cache.Delete(ctx, key); delErr != nil {
		return 0, fmt.Errorf("invalidate cached token version: %w", errors.Join(raiseErr, delErr))
	}
	s.logger.Warn("token version cache update failed; entry evicted", zap.String("user_id", userID), zap.Error(raiseErr))
	return version, nil
}
