package recurrence

import (
	"time"
)

// EngineConfig tunes the expansion cache and the overlap probe of an Engine.
type EngineConfig struct {
	CacheEnabled bool
	CacheConfig  CacheConfig

	// HasOccurrenceInRange first expands at most ProbeWindow of a range
	// wider than ProbeThreshold, then looks at no more than
	// ProbeOccurrences starts past that window.
	ProbeThreshold   time.Duration
	ProbeWindow      time.Duration
	ProbeOccurrences int
}

const day = 24 * time.Hour

// DefaultEngineConfig suits a server answering month and week views.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	ProbeThreshold:   93 * day,
	ProbeWindow:      93 * day,
	ProbeOccurrences: 100,
}

// HighPerformanceConfig keeps more expansions around for longer.
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},

	ProbeThreshold:   31 * day,
	ProbeWindow:      31 * day,
	ProbeOccurrences: 50,
}

// LowMemoryConfig caches few expansions and evicts them quickly.
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},

	ProbeThreshold:   183 * day,
	ProbeWindow:      183 * day,
	ProbeOccurrences: 200,
}

// DisabledCacheConfig expands every request from scratch. It is what
// NewEngine uses, so library callers get no background goroutine.
var DisabledCacheConfig = EngineConfig{
	ProbeThreshold:   366 * day,
	ProbeWindow:      366 * day,
	ProbeOccurrences: MaxOccurrences,
}

// Profiles names the configs selectable with CALREST_RECURRENCE_PROFILE.
var Profiles = map[string]EngineConfig{
	"default":          DefaultEngineConfig,
	"high-performance": HighPerformanceConfig,
	"low-memory":       LowMemoryConfig,
	"disabled":         DisabledCacheConfig,
}

// NewEngineWithConfig builds an engine; the cache, when enabled, runs a
// cleanup goroutine until Close.
func NewEngineWithConfig(config EngineConfig) *Engine {
	var cache *RecurrenceCache
	if config.CacheEnabled {
		cache = NewRecurrenceCache(config.CacheConfig)
	}
	return &Engine{cache: cache, config: config}
}
