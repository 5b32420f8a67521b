package storage

import (
	"context"
	"sync"

	"kredilakay/internal/domain"
)

// Memory is an in-process Backend. It reports itself as kind, so it can
// stand in for either real backend.
type Memory struct {
	mu    sync.Mutex
	kind  domain.StorageBackendKind
	blobs map[string][]byte
}

func NewMemory(kind domain.StorageBackendKind) *Memory {
	return &Memory{kind: kind, blobs: make(map[string][]byte)}
}

func (m *Memory) Kind() domain.StorageBackendKind { return m.kind }

func (m *Memory) Put(ctx context.Context, locator string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateLocator(locator); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[locator]; ok {
		return ErrExists
	}
	m.blobs[locator] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[locator]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, locator)
	return nil
}

// Tamper replaces the stored bytes for locator. Tests use it to simulate
// corruption at rest.
func (m *Memory) Tamper(locator string, fn func([]byte) []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[locator]
	if !ok {
		return false
	}
	m.blobs[locator] = fn(append([]byte(nil), data...))
	return true
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
