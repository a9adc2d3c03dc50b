package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caseprep/caseprep/pkg/errors"
	"github.com/caseprep/caseprep/pkg/types"
)

// Config holds the policy for one cache instance. It is immutable after
// construction; changing policy means constructing a new instance.
type Config struct {
	MaxAge             time.Duration `yaml:"max_age"`
	MaxEntries         int           `yaml:"max_entries"`
	CompressionEnabled bool          `yaml:"compression_enabled"`
	AutoCleanupEnabled bool          `yaml:"auto_cleanup_enabled"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	DebounceWindow     time.Duration `yaml:"debounce_window"`
}

// DefaultConfig returns the policy used when no configuration is supplied.
func DefaultConfig() *Config {
	return &Config{
		MaxAge:             30 * time.Minute,
		MaxEntries:         1000,
		CompressionEnabled: true,
		AutoCleanupEnabled: true,
		CleanupInterval:    5 * time.Minute,
		DebounceWindow:     defaultDebounceWindow,
	}
}

// AnalysisCache is the two-tier cache for AI-analysis results: an in-memory
// LRU table backed by a debounced durable tier. Construct one per scope via
// New and pass it explicitly; there is no package-level instance.
type AnalysisCache struct {
	config   *Config
	store    *store
	bridge   *persistenceBridge
	stats    *statsRecorder
	prefetch *prefetchCoordinator
	logger   *zap.Logger

	stopCh    chan struct{}
	closeOnce sync.Once
}

// New builds a cache instance over the given durable backend. The durable
// tier is read once to restore persisted statistics; a corrupt or absent
// blob starts the instance fresh. A nil config uses DefaultConfig and a nil
// logger is replaced with a nop logger.
func New(cfg *Config, backend types.Backend, logger *zap.Logger) *AnalysisCache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("analysiscache")

	stats := newStatsRecorder()
	bridge := newPersistenceBridge(backend, stats, logger, cfg.CompressionEnabled, cfg.DebounceWindow)
	if persisted := bridge.Restore(context.Background()); persisted != nil {
		stats.Restore(*persisted)
	}

	st := newStore(cfg.MaxEntries, cfg.MaxAge, stats, bridge, logger)
	bridge.onQuotaCleanup = st.Cleanup

	c := &AnalysisCache{
		config:   cfg,
		store:    st,
		bridge:   bridge,
		stats:    stats,
		prefetch: newPrefetchCoordinator(st, logger),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	if cfg.AutoCleanupEnabled {
		interval := cfg.CleanupInterval
		if interval <= 0 {
			interval = DefaultConfig().CleanupInterval
		}
		go c.cleanupLoop(interval)
	}

	return c
}

// Get returns the cached payload for key, or absent.
func (c *AnalysisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return c.store.Get(ctx, key)
}

// GetJSON unmarshals the cached payload for key into dest. The second
// return is false when the key is absent.
func (c *AnalysisCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	payload, ok := c.store.Get(ctx, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return true, fmt.Errorf("decode cached payload for %s: %w", key, err)
	}
	return true, nil
}

// Set stores payload under key with the default TTL.
func (c *AnalysisCache) Set(key string, payload []byte) {
	c.store.Set(key, payload, 0)
}

// SetWithTTL stores payload under key with an explicit TTL.
func (c *AnalysisCache) SetWithTTL(key string, payload []byte, ttl time.Duration) {
	c.store.Set(key, payload, ttl)
}

// SetJSON marshals value and stores it under key with the default TTL.
func (c *AnalysisCache) SetJSON(key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", key, err)
	}
	c.store.Set(key, payload, 0)
	return nil
}

// Delete removes key from both tiers.
func (c *AnalysisCache) Delete(key string) {
	c.store.Delete(key)
}

// Clear empties both tiers. Cumulative statistics are preserved; use
// ResetStatistics to zero them.
func (c *AnalysisCache) Clear(ctx context.Context) {
	c.store.Clear(ctx)
}

// Cleanup sweeps expired entries from both tiers now and returns the number
// removed. The background scheduler calls this on its interval; it is also
// safe to call on demand.
func (c *AnalysisCache) Cleanup(ctx context.Context) int {
	removed := c.store.Cleanup(ctx)
	c.bridge.Flush(ctx)
	return removed
}

// Statistics returns a snapshot of the cumulative statistics.
func (c *AnalysisCache) Statistics() types.CacheStatistics {
	return c.stats.Snapshot()
}

// StatsSummary returns the condensed dashboard view.
func (c *AnalysisCache) StatsSummary() types.StatsSummary {
	return c.stats.Summary()
}

// ResetStatistics zeroes every cumulative counter.
func (c *AnalysisCache) ResetStatistics() {
	c.stats.Reset()
	c.stats.SetMemoryUsage(c.store.Len(), 0)
}

// RecordError lets collaborating components charge a failure to this
// cache's error counters.
func (c *AnalysisCache) RecordError(kind errors.Kind) {
	c.stats.RecordError(kind)
}

// Warmup populates the given keys through the loader, skipping keys already
// cached. Per-key loader failures are logged and swallowed.
func (c *AnalysisCache) Warmup(ctx context.Context, keys []string, loader types.Loader) {
	c.prefetch.Warmup(ctx, keys, loader)
}

// Prefetch publishes populate notifications for keys related to currentKey.
// Best effort and non-blocking.
func (c *AnalysisCache) Prefetch(currentKey string, strategy types.PrefetchStrategy) {
	c.prefetch.Prefetch(currentKey, strategy)
}

// SubscribePopulate registers a handler for prefetch populate
// notifications. The handler typically resolves the key via the analysis
// loader and calls Warmup.
func (c *AnalysisCache) SubscribePopulate(fn func(key string)) {
	c.prefetch.Subscribe(fn)
}

// PerformanceReport renders a human-readable statistics report.
func (c *AnalysisCache) PerformanceReport() string {
	s := c.stats.Snapshot()

	var sb strings.Builder
	writef := func(format string, args ...interface{}) { fmt.Fprintf(&sb, format, args...) }

	writef("Analysis Cache Performance Report\n")
	writef("=================================\n\n")
	writef("Requests:      %d total, %d hits, %d misses (hit rate %.1f%%)\n",
		s.TotalRequests, s.CacheHits, s.CacheMisses, s.HitRate*100)
	writef("Latency:       %.2fms average (fast %d / medium %d / slow %d)\n",
		s.AverageResponseTimeMs, s.Performance.Fast, s.Performance.Medium, s.Performance.Slow)
	writef("Memory:        %d entries, %d bytes (peak %d, avg item %.0f bytes)\n",
		s.ItemCount, s.SizeBytes, s.Memory.PeakUsage, s.Memory.AverageItemSize)
	writef("Evictions:     %d\n", s.Memory.EvictionCount)
	writef("Operations:    get %d / set %d / delete %d / cleanup %d\n",
		s.Operations.Get, s.Operations.Set, s.Operations.Delete, s.Operations.Cleanup)
	writef("Errors:        storage %d / compression %d / parse %d / network %d (storage failures %d)\n",
		s.Errors.Storage, s.Errors.Compression, s.Errors.Parse, s.Errors.Network, s.Memory.StorageFailures)
	if !s.LastCleanup.IsZero() {
		writef("Last cleanup:  %s\n", s.LastCleanup.Format(time.RFC3339))
	}

	return sb.String()
}

// Close stops the cleanup scheduler and flushes any pending durable write.
// Idempotent; the cache keeps serving memory reads afterwards but schedules
// no further persistence.
func (c *AnalysisCache) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		c.bridge.Close(ctx)
	})
}

func (c *AnalysisCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Cleanup(context.Background())
		}
	}
}
