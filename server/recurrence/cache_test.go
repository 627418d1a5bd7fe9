package recurrence

import (
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
)

var (
	cacheFrom = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cacheTo   = time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
)

func countedDaily(n int) *Rule {
	return &Rule{
		Type:        Daily,
		Interval:    1,
		StartTime:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Occurrences: mo.Some(n),
		TimeZone:    "UTC",
	}
}

func TestRecurrenceCache_BasicOperations(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: time.Minute,
	})
	defer cache.Close()

	rule := countedDaily(5)

	result, found := cache.Get("test", rule, cacheFrom, cacheTo)
	assert.False(t, found, "expected cache miss")
	assert.Nil(t, result)

	cache.Set("test", rule, cacheFrom, cacheTo, true)

	result, found = cache.Get("test", rule, cacheFrom, cacheTo)
	assert.True(t, found, "expected cache hit")
	assert.Equal(t, true, result)

	// same rule, different range
	_, found = cache.Get("test", rule, cacheFrom, cacheTo.Add(time.Hour))
	assert.False(t, found)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 2, stats.Misses)
}

func TestRecurrenceCache_TTLExpiration(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             100 * time.Millisecond,
		MaxEntries:      100,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer cache.Close()

	rule := countedDaily(5)
	cache.Set("test", rule, cacheFrom, cacheTo, true)

	_, found := cache.Get("test", rule, cacheFrom, cacheTo)
	assert.True(t, found, "expected cache hit immediately after set")

	time.Sleep(150 * time.Millisecond)

	_, found = cache.Get("test", rule, cacheFrom, cacheTo)
	assert.False(t, found, "expected cache miss after TTL expiration")
}

func TestRecurrenceCache_DifferentKeys(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	daily := countedDaily(5)
	weekly := countedDaily(5)
	weekly.Type = Weekly
	weekly.DayOfWeek = []time.Weekday{time.Monday}

	cache.Set("test", daily, cacheFrom, cacheTo, true)
	cache.Set("test", weekly, cacheFrom, cacheTo, false)
	cache.Set("other", daily, cacheFrom, cacheTo, "other")

	r1, ok1 := cache.Get("test", daily, cacheFrom, cacheTo)
	r2, ok2 := cache.Get("test", weekly, cacheFrom, cacheTo)
	r3, ok3 := cache.Get("other", daily, cacheFrom, cacheTo)

	assert.True(t, ok1 && ok2 && ok3)
	assert.Equal(t, true, r1)
	assert.Equal(t, false, r2)
	assert.Equal(t, "other", r3)
}

func TestRecurrenceCache_Stats(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	assert.Equal(t, 0, cache.Stats().TotalEntries)

	for i := 1; i <= 5; i++ {
		cache.Set("test", countedDaily(i), cacheFrom, cacheTo, true)
	}

	stats := cache.Stats()
	assert.Equal(t, 5, stats.TotalEntries)
	assert.Equal(t, 5, stats.ActiveEntries)
	assert.Equal(t, 0, stats.ExpiredEntries)
}

func TestRecurrenceCache_MaxEntriesEviction(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      3,
		CleanupInterval: time.Minute,
	})
	defer cache.Close()

	for i := 1; i <= 3; i++ {
		cache.Set("test", countedDaily(i), cacheFrom, cacheTo, true)
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 3, cache.Stats().TotalEntries)

	cache.Set("test", countedDaily(4), cacheFrom, cacheTo, false)
	assert.Equal(t, 3, cache.Stats().TotalEntries)

	result, found := cache.Get("test", countedDaily(4), cacheFrom, cacheTo)
	assert.True(t, found, "newest entry must survive eviction")
	assert.Equal(t, false, result)

	_, found = cache.Get("test", countedDaily(1), cacheFrom, cacheTo)
	assert.False(t, found, "least recently used entry must be evicted")
}

func TestRecurrenceCache_ConcurrentAccess(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: time.Minute,
	})
	defer cache.Close()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				rule := countedDaily(g*50 + i)
				cache.Set("test", rule, cacheFrom, cacheTo, i)
				cache.Get("test", rule, cacheFrom, cacheTo)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Stats().TotalEntries, 100)
}

func TestRecurrenceCache_CloseTwice(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{TTL: time.Minute, MaxEntries: 10})
	cache.Set("test", countedDaily(1), cacheFrom, cacheTo, true)
	cache.Close()
	cache.Close()
	assert.Equal(t, 0, cache.Stats().TotalEntries)
}

func TestEngine_CachedExpansionMatchesUncached(t *testing.T) {
	cached := NewEngineWithConfig(Profiles["high-performance"])
	defer cached.Close()
	plain := NewEngine()
	rule := countedDaily(10)

	first, err := cached.Occurrences(rule, cacheFrom, cacheTo, ExpansionOptions{})
	assert.NoError(t, err)
	second, err := cached.Occurrences(rule, cacheFrom, cacheTo, ExpansionOptions{MaxOccurrences: 4})
	assert.NoError(t, err)
	want, err := plain.Occurrences(rule, cacheFrom, cacheTo, ExpansionOptions{})
	assert.NoError(t, err)

	assert.Equal(t, want, first)
	assert.Equal(t, want[:4], second)
	assert.Equal(t, 1, cached.cache.Stats().TotalEntries)
	assert.Equal(t, 1, cached.cache.Stats().Hits)
}
