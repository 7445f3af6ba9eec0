package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memCache) Set(key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func countingDetector(answer string, calls *int) Detector {
	return DetectorFunc(func(context.Context, Content) (string, error) {
		*calls++
		return answer, nil
	})
}

func TestCachedDetectorMemoizes(t *testing.T) {
	var calls int
	cache := newMemCache()
	d := NewCachedDetector(countingDetector("Gucci", &calls), cache, "gateway:m", time.Hour, nil)

	ctx := context.Background()
	c := Content{Title: "Bag", Description: "Leather"}
	for i := 0; i < 3; i++ {
		got, err := d.DetectBrand(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, "Gucci", got)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, time.Hour, cache.ttls[d.Key(c)])
}

func TestCachedDetectorKey(t *testing.T) {
	d := NewCachedDetector(nil, newMemCache(), "ns", 0, nil)

	a := d.Key(Content{Title: "ab", Description: "c"})
	b := d.Key(Content{Title: "a", Description: "bc"})
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "mela:brand:ns:")
	assert.Equal(t, a, d.Key(Content{Title: "ab", Description: "c"}))
}

func TestCachedDetectorFallsThroughOnCacheError(t *testing.T) {
	var calls int
	cache := newMemCache()
	cache.err = errors.New("connection refused")
	d := NewCachedDetector(countingDetector("Mango", &calls), cache, "ns", time.Minute, nil)

	for i := 0; i < 2; i++ {
		got, err := d.DetectBrand(context.Background(), Content{Title: "Dress"})
		require.NoError(t, err)
		assert.Equal(t, "Mango", got)
	}
	assert.Equal(t, 2, calls)
}

func TestCachedDetectorDoesNotCacheErrors(t *testing.T) {
	cache := newMemCache()
	inner := DetectorFunc(func(context.Context, Content) (string, error) { return "", errors.New("down") })
	d := NewCachedDetector(inner, cache, "ns", time.Minute, nil)

	_, err := d.DetectBrand(context.Background(), Content{Title: "x"})
	require.Error(t, err)
	assert.Empty(t, cache.data)
}

func TestRedisCacheUnreachable(t *testing.T) {
	client := DialRedis("127.0.0.1:1", "", 0)
	defer client.Close()

	var calls int
	d := NewCachedDetector(countingDetector("Reiss", &calls), NewRedisCache(client), "ns", time.Minute, nil)

	got, err := d.DetectBrand(context.Background(), Content{Title: "Blazer"})
	require.NoError(t, err)
	assert.Equal(t, "Reiss", got)
	assert.Equal(t, 1, calls)
}
