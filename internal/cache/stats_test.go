package cache

import (
	"testing"
	"time"

	"github.com/caseprep/caseprep/pkg/errors"
	"github.com/caseprep/caseprep/pkg/types"
)

func TestStatsRecorderHitRate(t *testing.T) {
	r := newStatsRecorder()

	r.RecordRequest(true, time.Millisecond)
	r.RecordRequest(true, time.Millisecond)
	r.RecordRequest(true, time.Millisecond)
	r.RecordRequest(false, time.Millisecond)

	s := r.Snapshot()
	if s.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", s.TotalRequests)
	}
	if s.CacheHits != 3 || s.CacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 3/1", s.CacheHits, s.CacheMisses)
	}
	if s.HitRate != 0.75 {
		t.Errorf("HitRate = %v, want 0.75", s.HitRate)
	}
}

func TestStatsRecorderLatencyBuckets(t *testing.T) {
	r := newStatsRecorder()

	r.ObserveLatency(10 * time.Millisecond)  // fast
	r.ObserveLatency(99 * time.Millisecond)  // fast, below boundary
	r.ObserveLatency(100 * time.Millisecond) // medium, boundary is inclusive
	r.ObserveLatency(500 * time.Millisecond) // medium, boundary is inclusive
	r.ObserveLatency(501 * time.Millisecond) // slow

	s := r.Snapshot()
	if s.Performance.Fast != 2 {
		t.Errorf("Fast = %d, want 2", s.Performance.Fast)
	}
	if s.Performance.Medium != 2 {
		t.Errorf("Medium = %d, want 2", s.Performance.Medium)
	}
	if s.Performance.Slow != 1 {
		t.Errorf("Slow = %d, want 1", s.Performance.Slow)
	}
}

func TestStatsRecorderIncrementalMean(t *testing.T) {
	r := newStatsRecorder()

	r.ObserveLatency(10 * time.Millisecond)
	r.ObserveLatency(20 * time.Millisecond)
	r.ObserveLatency(30 * time.Millisecond)

	s := r.Snapshot()
	if got, want := s.AverageResponseTimeMs, 20.0; got < want-0.01 || got > want+0.01 {
		t.Errorf("AverageResponseTimeMs = %v, want ~%v", got, want)
	}
}

func TestStatsRecorderOperationsAndErrors(t *testing.T) {
	r := newStatsRecorder()

	r.RecordOperation(opGet)
	r.RecordOperation(opGet)
	r.RecordOperation(opSet)
	r.RecordOperation(opDelete)
	r.RecordOperation(opCleanup)

	r.RecordError(errors.KindStorage)
	r.RecordError(errors.KindCompression)
	r.RecordError(errors.KindParse)
	r.RecordError(errors.KindNetwork)
	r.RecordError(errors.KindNetwork)

	s := r.Snapshot()
	if s.Operations.Get != 2 || s.Operations.Set != 1 || s.Operations.Delete != 1 || s.Operations.Cleanup != 1 {
		t.Errorf("Operations = %+v", s.Operations)
	}
	if s.Errors.Storage != 1 || s.Errors.Compression != 1 || s.Errors.Parse != 1 || s.Errors.Network != 2 {
		t.Errorf("Errors = %+v", s.Errors)
	}
	if got := s.TotalErrors(); got != 5 {
		t.Errorf("TotalErrors() = %d, want 5", got)
	}
}

func TestStatsRecorderMemoryMetrics(t *testing.T) {
	r := newStatsRecorder()

	r.SetMemoryUsage(4, 4000)
	r.SetMemoryUsage(2, 1000)

	s := r.Snapshot()
	if s.ItemCount != 2 || s.SizeBytes != 1000 {
		t.Errorf("live gauges = %d items / %d bytes, want 2/1000", s.ItemCount, s.SizeBytes)
	}
	if s.Memory.PeakUsage != 4000 {
		t.Errorf("PeakUsage = %d, want 4000", s.Memory.PeakUsage)
	}
	if s.Memory.AverageItemSize != 500 {
		t.Errorf("AverageItemSize = %v, want 500", s.Memory.AverageItemSize)
	}

	r.SetMemoryUsage(0, 0)
	if got := r.Snapshot().Memory.AverageItemSize; got != 0 {
		t.Errorf("AverageItemSize after empty = %v, want 0", got)
	}
}

func TestStatsRecorderResetAndRestore(t *testing.T) {
	r := newStatsRecorder()
	r.RecordRequest(true, 10*time.Millisecond)
	r.RecordEviction()
	r.RecordStorageFailure()

	r.Reset()
	s := r.Snapshot()
	if s.TotalRequests != 0 || s.Memory.EvictionCount != 0 || s.Memory.StorageFailures != 0 {
		t.Errorf("after Reset snapshot = %+v", s)
	}

	persisted := types.CacheStatistics{
		TotalRequests:         10,
		CacheHits:             7,
		CacheMisses:           3,
		HitRate:               0.7,
		AverageResponseTimeMs: 12.5,
		Performance:           types.PerformanceBuckets{Fast: 8, Medium: 1, Slow: 1},
	}
	r.Restore(persisted)

	// The running average must continue from the restored sample count, not
	// restart at one.
	r.ObserveLatency(12500 * time.Microsecond)
	got := r.Snapshot()
	if got.TotalRequests != 10 || got.CacheHits != 7 {
		t.Errorf("restored counters = %+v", got)
	}
	if got.AverageResponseTimeMs < 12.49 || got.AverageResponseTimeMs > 12.51 {
		t.Errorf("AverageResponseTimeMs after restore+observe = %v, want ~12.5", got.AverageResponseTimeMs)
	}
}

func TestStatsRecorderSummary(t *testing.T) {
	r := newStatsRecorder()
	r.RecordRequest(true, time.Millisecond)
	r.RecordRequest(false, time.Millisecond)
	r.RecordError(errors.KindStorage)
	r.SetMemoryUsage(1, 256)

	sum := r.Summary()
	if sum.HitRate != 0.5 {
		t.Errorf("Summary HitRate = %v, want 0.5", sum.HitRate)
	}
	if sum.MemoryUsage != 256 {
		t.Errorf("Summary MemoryUsage = %d, want 256", sum.MemoryUsage)
	}
	if sum.Errors != 1 {
		t.Errorf("Summary Errors = %d, want 1", sum.Errors)
	}
}
