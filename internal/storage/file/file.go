// Package file implements the default durable tier: a quota-bounded blob
// store backed by a single file on local disk.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/caseprep/caseprep/pkg/errors"
)

// Store persists the cache blob at a fixed path. Writes are atomic
// (temp file + rename) so a crash mid-write never leaves a torn blob.
type Store struct {
	mu     sync.Mutex
	path   string
	quota  int64 // max blob size in bytes; 0 means unbounded
	logger *zap.Logger
}

// New creates a file store writing to path. The parent directory is created
// if missing.
func New(path string, quota int64, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageWrite, "create store directory", err).
			WithComponent("filestore")
	}
	return &Store{path: path, quota: quota, logger: logger}, nil
}

// Read returns the current blob, or found=false when none has been written.
func (s *Store) Read(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(errors.ErrCodeStorageRead, "read blob", err).
			WithComponent("filestore").WithOperation("read")
	}
	return data, true, nil
}

// Write replaces the blob atomically. A blob larger than the quota is
// rejected with a quota-exceeded error before touching disk.
func (s *Store) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.quota > 0 && int64(len(data)) > s.quota {
		return errors.New(errors.ErrCodeQuotaExceeded, "blob exceeds store quota").
			WithComponent("filestore").WithOperation("write")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "write blob", err).
			WithComponent("filestore").WithOperation("write")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeStorageWrite, "replace blob", err).
			WithComponent("filestore").WithOperation("write")
	}
	return nil
}

// Remove deletes the blob. Removing an absent blob is not an error.
func (s *Store) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeStorageWrite, "remove blob", err).
			WithComponent("filestore").WithOperation("remove")
	}
	return nil
}
