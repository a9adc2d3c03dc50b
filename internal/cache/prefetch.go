package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/caseprep/caseprep/pkg/types"
)

// prefetchCoordinator turns an access into best-effort background
// population of related keys. It knows nothing about how values are
// computed: it publishes populate notifications and any subscriber (usually
// the analysis loader layer) responds by calling Warmup.
type prefetchCoordinator struct {
	store  *store
	logger *zap.Logger

	mu          sync.Mutex
	subscribers []func(key string)
}

func newPrefetchCoordinator(store *store, logger *zap.Logger) *prefetchCoordinator {
	return &prefetchCoordinator{store: store, logger: logger}
}

// Subscribe registers a handler for populate notifications. Handlers run on
// background goroutines and must not block indefinitely.
func (p *prefetchCoordinator) Subscribe(fn func(key string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Prefetch computes keys related to currentKey via the strategy and
// publishes a populate notification for each one not already cached.
// Fire-and-forget: the caller is never blocked and per-key failures
// (including a panicking strategy) are swallowed.
func (p *prefetchCoordinator) Prefetch(currentKey string, strategy types.PrefetchStrategy) {
	if strategy == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Warn("prefetch strategy panicked", zap.Any("panic", r))
			}
		}()

		for _, key := range strategy(currentKey) {
			if key == "" || key == currentKey || p.store.Contains(key) {
				continue
			}
			p.publish(key)
		}
	}()
}

func (p *prefetchCoordinator) publish(key string) {
	p.mu.Lock()
	subs := make([]func(string), len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, fn := range subs {
		go func(fn func(string)) {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Warn("prefetch subscriber panicked",
						zap.String("key", key), zap.Any("panic", r))
				}
			}()
			fn(key)
		}(fn)
	}
}

// Warmup populates every not-yet-cached key by invoking the loader, all
// keys concurrently. A failing loader is logged and skipped; it never
// aborts the sibling keys.
func (p *prefetchCoordinator) Warmup(ctx context.Context, keys []string, loader types.Loader) {
	if loader == nil {
		return
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		if key == "" || p.store.Contains(key) {
			continue
		}

		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Warn("warmup loader panicked",
						zap.String("key", key), zap.Any("panic", r))
				}
			}()

			payload, err := loader(ctx, key)
			if err != nil {
				p.logger.Warn("warmup loader failed", zap.String("key", key), zap.Error(err))
				return
			}
			p.store.Set(key, payload, 0)
		}(key)
	}
	wg.Wait()
}
