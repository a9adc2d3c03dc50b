package types

import "time"

// KeyParts is the decoded form of a composite cache key. CaseID is optional;
// analysis results that are not tied to a case omit it. A key that cannot be
// parsed decodes to EntityType "unknown".
type KeyParts struct {
	CaseID      string `json:"case_id,omitempty"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	Perspective string `json:"perspective"`
}

// OperationCounts tracks how many times each cache operation ran.
type OperationCounts struct {
	Get     uint64 `json:"get"`
	Set     uint64 `json:"set"`
	Delete  uint64 `json:"delete"`
	Cleanup uint64 `json:"cleanup"`
}

// PerformanceBuckets classifies timed operations by latency.
type PerformanceBuckets struct {
	Fast   uint64 `json:"fast"`   // < 100ms
	Medium uint64 `json:"medium"` // 100ms - 500ms
	Slow   uint64 `json:"slow"`   // > 500ms
}

// ErrorCounts tracks swallowed failures by kind.
type ErrorCounts struct {
	Storage     uint64 `json:"storage"`
	Compression uint64 `json:"compression"`
	Parse       uint64 `json:"parse"`
	Network     uint64 `json:"network"`
}

// MemoryMetrics tracks in-memory tier resource usage.
type MemoryMetrics struct {
	PeakUsage       int64   `json:"peak_usage"`
	AverageItemSize float64 `json:"average_item_size"`
	EvictionCount   uint64  `json:"eviction_count"`
	StorageFailures uint64  `json:"storage_failures"`
}

// CacheStatistics is the cumulative statistics record for one cache instance.
// HitRate is always the cumulative ratio CacheHits/TotalRequests (0 when no
// requests have been made).
type CacheStatistics struct {
	TotalRequests         uint64             `json:"total_requests"`
	CacheHits             uint64             `json:"cache_hits"`
	CacheMisses           uint64             `json:"cache_misses"`
	HitRate               float64            `json:"hit_rate"`
	ItemCount             int                `json:"item_count"`
	SizeBytes             int64              `json:"size_bytes"`
	AverageResponseTimeMs float64            `json:"average_response_time_ms"`
	LastCleanup           time.Time          `json:"last_cleanup"`
	Operations            OperationCounts    `json:"operations"`
	Performance           PerformanceBuckets `json:"performance"`
	Errors                ErrorCounts        `json:"errors"`
	Memory                MemoryMetrics      `json:"memory"`
}

// TotalErrors returns the sum of all error counters.
func (s CacheStatistics) TotalErrors() uint64 {
	return s.Errors.Storage + s.Errors.Compression + s.Errors.Parse + s.Errors.Network
}

// StatsSummary is the condensed statistics view exposed to dashboards.
type StatsSummary struct {
	HitRate     float64 `json:"hit_rate"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MemoryUsage int64   `json:"memory_usage"`
	Errors      uint64  `json:"errors"`
}
