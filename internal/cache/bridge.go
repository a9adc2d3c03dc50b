package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caseprep/caseprep/pkg/errors"
	"github.com/caseprep/caseprep/pkg/types"
)

// envelopeVersion is the durable blob format version. The format must stay
// readable across upgrades; bump only with a migration path.
const envelopeVersion = 1

// defaultDebounceWindow is the coalescing window for durable writes.
const defaultDebounceWindow = time.Second

// persistedEntry is the durable-tier representation of one cache entry.
// When compression is enabled only Payload, ExpiresAt, and AccessCount are
// persisted; the remaining metadata is rebuilt on load.
type persistedEntry struct {
	Payload      []byte     `json:"data"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AccessCount  uint64     `json:"access_count"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	SizeBytes    int64      `json:"size_bytes,omitempty"`
}

// envelope is the whole-table snapshot written to the durable tier. The
// statistics record travels with the entry table so counters survive
// restarts.
type envelope struct {
	Version int                       `json:"version"`
	SavedAt time.Time                 `json:"saved_at"`
	Entries map[string]persistedEntry `json:"entries"`
	Stats   *types.CacheStatistics    `json:"stats,omitempty"`
}

// persistenceBridge owns all traffic to the durable tier. Writes are
// coalesced: mutations update an in-process image of the durable table and
// arm a debounce timer; the timer (or an explicit Flush) performs one
// physical write. No failure crossing this boundary ever reaches a cache
// caller; everything is counted and swallowed.
type persistenceBridge struct {
	backend  types.Backend
	stats    *statsRecorder
	logger   *zap.Logger
	compress bool
	window   time.Duration

	// onQuotaCleanup frees space after a failed write, before the single
	// retry. Wired by the cache facade to the store's expiry sweep.
	onQuotaCleanup func(ctx context.Context) int

	mu     sync.Mutex
	table  map[string]persistedEntry
	dirty  bool
	gen    uint64 // bumped on every mutation, guards the retry settle
	timer  *time.Timer
	closed bool
}

func newPersistenceBridge(backend types.Backend, stats *statsRecorder, logger *zap.Logger, compress bool, window time.Duration) *persistenceBridge {
	if window <= 0 {
		window = defaultDebounceWindow
	}
	return &persistenceBridge{
		backend:  backend,
		stats:    stats,
		logger:   logger,
		compress: compress,
		window:   window,
		table:    make(map[string]persistedEntry),
	}
}

// Restore reads the durable tier once at startup, seeds the bridge's table
// image so later flushes do not clobber existing entries, and returns the
// persisted statistics if present. Corrupt blobs count a parse error and the
// cache starts fresh.
func (b *persistenceBridge) Restore(ctx context.Context) *types.CacheStatistics {
	env, ok := b.read(ctx)
	if !ok {
		return nil
	}

	b.mu.Lock()
	b.table = env.Entries
	if b.table == nil {
		b.table = make(map[string]persistedEntry)
	}
	b.mu.Unlock()

	return env.Stats
}

// Load reads the durable tier and looks up one key. Read or parse failures
// are counted and reported as absent.
func (b *persistenceBridge) Load(ctx context.Context, key string) (persistedEntry, bool) {
	env, ok := b.read(ctx)
	if !ok {
		return persistedEntry{}, false
	}
	e, found := env.Entries[key]
	return e, found
}

// Enqueue records a created or updated entry for the next debounced write.
func (b *persistenceBridge) Enqueue(key string, e persistedEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.table[key] = e
	b.markDirtyLocked()
}

// EnqueueRemove records a deletion for the next debounced write.
func (b *persistenceBridge) EnqueueRemove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if _, ok := b.table[key]; !ok {
		return
	}
	delete(b.table, key)
	b.markDirtyLocked()
}

func (b *persistenceBridge) markDirtyLocked() {
	b.dirty = true
	b.gen++
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, func() {
			b.Flush(context.Background())
		})
	}
}

// Flush performs the physical write of the coalesced table, if anything is
// pending. A write failure (quota exceeded or otherwise) triggers one
// cleanup pass and a single retry; a second failure is logged and swallowed,
// leaving the table dirty so a later mutation retries.
func (b *persistenceBridge) Flush(ctx context.Context) {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if !b.dirty {
		b.mu.Unlock()
		return
	}
	payload, err := b.encodeLocked()
	if err != nil {
		// Serialization failed; nothing sane to write. Counted, swallowed.
		b.stats.RecordError(errors.KindOf(err))
		b.dirty = false
		b.mu.Unlock()
		b.logger.Warn("cache snapshot serialization failed", zap.Error(err))
		return
	}
	b.dirty = false
	b.mu.Unlock()

	if err := b.backend.Write(ctx, payload); err != nil {
		b.stats.RecordError(errors.KindOf(err))
		b.stats.RecordStorageFailure()
		b.logger.Warn("durable tier write failed, running cleanup before retry",
			zap.Error(err), zap.Bool("quota_exceeded", errors.IsQuotaExceeded(err)))

		if b.onQuotaCleanup != nil {
			b.onQuotaCleanup(ctx)
		}

		b.mu.Lock()
		payload, err = b.encodeLocked()
		retryGen := b.gen
		b.mu.Unlock()
		if err != nil {
			b.stats.RecordError(errors.KindOf(err))
			return
		}

		if err := b.backend.Write(ctx, payload); err != nil {
			b.stats.RecordError(errors.KindOf(err))
			b.stats.RecordStorageFailure()
			b.logger.Warn("durable tier write failed after cleanup, continuing memory-only",
				zap.Error(err))
			b.mu.Lock()
			b.dirty = true
			b.mu.Unlock()
			return
		}

		// The cleanup pass re-dirtied the table via its removals and the
		// retry just wrote that state. Settle the buffer unless another
		// mutation landed after the retry snapshot was taken.
		b.mu.Lock()
		if b.gen == retryGen {
			b.dirty = false
			if b.timer != nil {
				b.timer.Stop()
				b.timer = nil
			}
		}
		b.mu.Unlock()
	}
}

// Clear drops the durable blob and any pending write. The cumulative
// statistics outlive a Clear, so the empty table is left dirty: the next
// flush (debounced or at Close) writes a stats-only envelope rather than
// leaving the counters with no durable copy.
func (b *persistenceBridge) Clear(ctx context.Context) {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.table = make(map[string]persistedEntry)
	b.dirty = false
	b.mu.Unlock()

	if err := b.backend.Remove(ctx); err != nil {
		b.stats.RecordError(errors.KindOf(err))
		b.logger.Warn("durable tier remove failed", zap.Error(err))
	}

	b.mu.Lock()
	if !b.closed {
		b.markDirtyLocked()
	}
	b.mu.Unlock()
}

// Close stops the debounce timer and flushes any pending write so no
// in-flight mutation is lost on shutdown. Idempotent.
func (b *persistenceBridge) Close(ctx context.Context) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.Flush(ctx)
}

func (b *persistenceBridge) encodeLocked() ([]byte, error) {
	env := envelope{
		Version: envelopeVersion,
		SavedAt: time.Now(),
		Entries: b.table,
	}
	stats := b.stats.Snapshot()
	env.Stats = &stats

	if b.compress {
		compact := make(map[string]persistedEntry, len(b.table))
		for k, e := range b.table {
			compact[k] = persistedEntry{
				Payload:     e.Payload,
				ExpiresAt:   e.ExpiresAt,
				AccessCount: e.AccessCount,
			}
		}
		env.Entries = compact

		raw, err := json.Marshal(env)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCompression, "marshal snapshot", err).WithComponent("bridge")
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCompression, "compress snapshot", err).WithComponent("bridge")
		}
		if err := zw.Close(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCompression, "compress snapshot", err).WithComponent("bridge")
		}
		return buf.Bytes(), nil
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageWrite, "marshal snapshot", err).WithComponent("bridge")
	}
	return raw, nil
}

func (b *persistenceBridge) read(ctx context.Context) (envelope, bool) {
	data, found, err := b.backend.Read(ctx)
	if err != nil {
		b.stats.RecordError(errors.KindOf(err))
		b.logger.Warn("durable tier read failed", zap.Error(err))
		return envelope{}, false
	}
	if !found {
		return envelope{}, false
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		b.stats.RecordError(errors.KindParse)
		b.logger.Warn("durable tier blob unreadable, treating as absent", zap.Error(err))
		return envelope{}, false
	}
	return env, true
}

func decodeEnvelope(data []byte) (envelope, error) {
	// Gzip is sniffed rather than configured so a compression setting
	// change does not orphan an existing blob.
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return envelope{}, errors.Wrap(errors.ErrCodeParse, "open compressed snapshot", err)
		}
		defer func() { _ = zr.Close() }()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return envelope{}, errors.Wrap(errors.ErrCodeParse, "decompress snapshot", err)
		}
		data = raw
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, errors.Wrap(errors.ErrCodeParse, "unmarshal snapshot", err)
	}
	if env.Version != envelopeVersion {
		return envelope{}, errors.New(errors.ErrCodeParse, "unsupported snapshot version")
	}
	return env, nil
}
