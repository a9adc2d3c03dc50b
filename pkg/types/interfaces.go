package types

import "context"

// Backend is the durable key/value tier behind the cache. It stores a single
// opaque blob holding the serialized cache table. Implementations must be
// safe for concurrent use.
//
// Read returns (nil, false, nil) when no blob has been written yet. Write
// returns an error satisfying errors.IsQuotaExceeded when the blob would not
// fit the backend's capacity.
type Backend interface {
	Read(ctx context.Context) (data []byte, found bool, err error)
	Write(ctx context.Context, data []byte) error
	Remove(ctx context.Context) error
}

// Loader computes the value for a key that is not cached. It represents the
// expensive analysis call the cache shields; it is supplied by callers of
// Warmup and by prefetch subscribers.
type Loader func(ctx context.Context, key string) ([]byte, error)

// PrefetchStrategy derives keys related to the one just accessed. Returned
// keys that are already cached are ignored.
type PrefetchStrategy func(currentKey string) []string
