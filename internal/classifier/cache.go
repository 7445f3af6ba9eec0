package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by Cache.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores detection results.
type Cache interface {
	Get(key string) (string, error)
	Set(key, value string, ttl time.Duration) error
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedis connects to addr. The connection is lazy; errors surface on
// first use.
func DialRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// Get returns ErrCacheMiss for absent keys.
func (r *RedisCache) Get(key string) (string, error) {
	v, err := r.client.Get(key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

// Set stores value for ttl.
func (r *RedisCache) Set(key, value string, ttl time.Duration) error {
	if err := r.client.Set(key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachedDetector memoizes another detector. Cache failures are logged
// and never fail a detection.
type CachedDetector struct {
	inner     Detector
	cache     Cache
	namespace string
	ttl       time.Duration
	log       *zap.Logger
}

// NewCachedDetector wraps inner. namespace separates results of
// different providers and models.
func NewCachedDetector(inner Detector, cache Cache, namespace string, ttl time.Duration, log *zap.Logger) *CachedDetector {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedDetector{inner: inner, cache: cache, namespace: namespace, ttl: ttl, log: log.Named("classifier.cache")}
}

// Key returns the cache key for c.
func (d *CachedDetector) Key(c Content) string {
	sum := sha256.Sum256([]byte(c.Title + "\x00" + c.Description))
	return "mela:brand:" + d.namespace + ":" + hex.EncodeToString(sum[:])
}

// Lookup returns the cached answer for c, if any.
func (d *CachedDetector) Lookup(c Content) (string, bool) {
	v, err := d.cache.Get(d.Key(c))
	switch {
	case err == nil && v != "":
		return v, true
	case err != nil && !errors.Is(err, ErrCacheMiss):
		d.log.Warn("cache read failed", zap.Error(err))
	}
	return "", false
}

// DetectBrand answers from the cache when it can.
func (d *CachedDetector) DetectBrand(ctx context.Context, c Content) (string, error) {
	if v, ok := d.Lookup(c); ok {
		return v, nil
	}
	return d.detectAndStore(ctx, c)
}

// detectAndStore asks the inner detector and caches its answer.
func (d *CachedDetector) detectAndStore(ctx context.Context, c Content) (string, error) {
	name, err := d.inner.DetectBrand(ctx, c)
	if err != nil {
		return "", err
	}

	if err := d.cache.Set(d.Key(c), name, d.ttl); err != nil {
		d.log.Warn("cache write failed", zap.Error(err))
	}
	return name, nil
}
