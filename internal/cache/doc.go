/*
Package cache implements the intelligent analysis cache: a two-tier store
that shields expensive AI-analysis calls from repeated invocation.

# Architecture

	┌───────────────────────────────────────────┐
	│            Application                    │
	│   (dispute analysis, dialogue scoring)    │
	└───────────────────────────────────────────┘
	                    │
	┌───────────────────────────────────────────┐
	│            AnalysisCache                  │  ← This Package
	│  ┌─────────────────────────────────────┐  │
	│  │        Memory tier (store)          │  │
	│  │  • LRU eviction at max_entries      │  │
	│  │  • Lazy + scheduled TTL expiry      │  │
	│  └─────────────────────────────────────┘  │
	│                    │                      │
	│  ┌─────────────────────────────────────┐  │
	│  │   Persistence bridge (debounced)    │  │
	│  │  • Coalesces writes (~1s window)    │  │
	│  │  • Optional gzip compression        │  │
	│  │  • Failures counted, never raised   │  │
	│  └─────────────────────────────────────┘  │
	└───────────────────────────────────────────┘
	                    │
	┌───────────────────────────────────────────┐
	│   Durable backend (file or S3 blob)       │
	└───────────────────────────────────────────┘

Reads hit memory first; a memory miss performs one bounded read of the
durable tier and repopulates memory on success. Writes land in memory
immediately and reach the durable tier through a coalescing buffer, so
Get/Set/Delete never block on backend I/O.

No persistence failure is ever surfaced to a caller: quota-exceeded writes
trigger one expiry sweep and a single retry, after which the cache degrades
to memory-only operation. The only caller-visible error in the package is an
invalid key part in EncodeKey.

Statistics (hit rate, latency buckets, error counts, memory metrics) are
tracked per instance, persisted inside the durable blob, and restored on
startup. Prefetch and Warmup provide best-effort background population of
related keys through a caller-supplied loader.
*/
package cache
