package cache

import (
	"context"
	"sync"

	"github.com/caseprep/caseprep/pkg/errors"
)

// memBackend is an in-memory durable tier for tests. It counts physical
// operations and can be armed to fail a number of upcoming writes.
type memBackend struct {
	mu         sync.Mutex
	blob       []byte
	present    bool
	writes     int
	removes    int
	failWrites int
	writeErr   error

	// onWrite fires once, after the next successful write commits. Lets
	// tests inject a mutation into the window between a write and its
	// caller's bookkeeping.
	onWrite func()
}

func newMemBackend() *memBackend {
	return &memBackend{}
}

func (m *memBackend) Read(ctx context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return nil, false, nil
	}
	return append([]byte(nil), m.blob...), true, nil
}

func (m *memBackend) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	if m.failWrites > 0 {
		m.failWrites--
		err := m.writeErr
		m.mu.Unlock()
		if err != nil {
			return err
		}
		return errors.New(errors.ErrCodeQuotaExceeded, "blob exceeds store quota")
	}
	m.blob = append([]byte(nil), data...)
	m.present = true
	m.writes++
	hook := m.onWrite
	m.onWrite = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (m *memBackend) Remove(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = nil
	m.present = false
	m.removes++
	return nil
}

func (m *memBackend) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memBackend) failNextWrites(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
	m.writeErr = err
}

func (m *memBackend) corrupt(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), data...)
	m.present = true
}
