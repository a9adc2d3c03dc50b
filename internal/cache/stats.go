package cache

import (
	"sync"
	"time"

	"github.com/caseprep/caseprep/pkg/errors"
	"github.com/caseprep/caseprep/pkg/types"
)

// Latency bucket boundaries for timed operations.
const (
	fastThreshold = 100 * time.Millisecond
	slowThreshold = 500 * time.Millisecond
)

// Operation names recorded in the operation counters.
const (
	opGet     = "get"
	opSet     = "set"
	opDelete  = "delete"
	opCleanup = "cleanup"
)

// statsRecorder aggregates the cumulative counters and derived metrics for
// one cache instance. Every other component reports into it; none of them
// read raw cache state through it. All methods are safe for concurrent use.
type statsRecorder struct {
	mu sync.Mutex
	s  types.CacheStatistics

	// timedOps counts operations that contributed to the running average,
	// which is maintained incrementally rather than resummed.
	timedOps uint64
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{}
}

// RecordRequest records the outcome and latency of one get request.
func (r *statsRecorder) RecordRequest(hit bool, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.s.TotalRequests++
	if hit {
		r.s.CacheHits++
	} else {
		r.s.CacheMisses++
	}
	r.s.HitRate = float64(r.s.CacheHits) / float64(r.s.TotalRequests)
	r.observeLatencyLocked(elapsed)
}

// ObserveLatency buckets and averages a timed operation that is not a get
// request (set, cleanup).
func (r *statsRecorder) ObserveLatency(elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observeLatencyLocked(elapsed)
}

func (r *statsRecorder) observeLatencyLocked(elapsed time.Duration) {
	switch {
	case elapsed < fastThreshold:
		r.s.Performance.Fast++
	case elapsed <= slowThreshold:
		r.s.Performance.Medium++
	default:
		r.s.Performance.Slow++
	}

	r.timedOps++
	ms := float64(elapsed.Microseconds()) / 1000.0
	r.s.AverageResponseTimeMs += (ms - r.s.AverageResponseTimeMs) / float64(r.timedOps)
}

// RecordOperation increments the counter for the named operation.
func (r *statsRecorder) RecordOperation(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch op {
	case opGet:
		r.s.Operations.Get++
	case opSet:
		r.s.Operations.Set++
	case opDelete:
		r.s.Operations.Delete++
	case opCleanup:
		r.s.Operations.Cleanup++
	}
}

// RecordError increments the error counter for the given kind.
func (r *statsRecorder) RecordError(kind errors.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case errors.KindStorage:
		r.s.Errors.Storage++
	case errors.KindCompression:
		r.s.Errors.Compression++
	case errors.KindParse:
		r.s.Errors.Parse++
	case errors.KindNetwork:
		r.s.Errors.Network++
	}
}

// RecordEviction counts one LRU eviction.
func (r *statsRecorder) RecordEviction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Memory.EvictionCount++
}

// RecordStorageFailure counts one durable-tier write failure.
func (r *statsRecorder) RecordStorageFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Memory.StorageFailures++
}

// SetMemoryUsage updates the live item count and byte size, tracking peak
// usage and average item size.
func (r *statsRecorder) SetMemoryUsage(itemCount int, sizeBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.s.ItemCount = itemCount
	r.s.SizeBytes = sizeBytes
	if sizeBytes > r.s.Memory.PeakUsage {
		r.s.Memory.PeakUsage = sizeBytes
	}
	if itemCount > 0 {
		r.s.Memory.AverageItemSize = float64(sizeBytes) / float64(itemCount)
	} else {
		r.s.Memory.AverageItemSize = 0
	}
}

// SetLastCleanup records when the most recent expiry sweep finished.
func (r *statsRecorder) SetLastCleanup(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.LastCleanup = t
}

// Snapshot returns a copy of the current statistics.
func (r *statsRecorder) Snapshot() types.CacheStatistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s
}

// Summary returns the condensed dashboard view.
func (r *statsRecorder) Summary() types.StatsSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.StatsSummary{
		HitRate:     r.s.HitRate,
		AvgTimeMs:   r.s.AverageResponseTimeMs,
		MemoryUsage: r.s.SizeBytes,
		Errors:      r.s.TotalErrors(),
	}
}

// Reset zeroes all cumulative counters. Live memory gauges are restored by
// the next SetMemoryUsage call.
func (r *statsRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s = types.CacheStatistics{}
	r.timedOps = 0
}

// Restore replaces the counters with a snapshot loaded from the durable
// tier. Live memory gauges are overwritten by the next SetMemoryUsage call.
func (r *statsRecorder) Restore(s types.CacheStatistics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s = s
	r.timedOps = s.Performance.Fast + s.Performance.Medium + s.Performance.Slow
}
