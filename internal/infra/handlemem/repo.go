// Package handlemem keeps handles and audit events in process memory.
package handlemem

import (
	"context"
	"sync"

	"kredilakay/internal/domain"
)

type HandleRepository struct {
	mu      sync.Mutex
	handles map[string]domain.SealedArtifactHandle
}

func NewHandleRepository() *HandleRepository {
	return &HandleRepository{handles: make(map[string]domain.SealedArtifactHandle)}
}

func (r *HandleRepository) Save(ctx context.Context, handle domain.SealedArtifactHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[handle.ID] = handle
	return nil
}

func (r *HandleRepository) Get(ctx context.Context, id string) (domain.SealedArtifactHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.SealedArtifactHandle{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		return domain.SealedArtifactHandle{}, domain.ErrNotFound
	}
	return h, nil
}

func (r *HandleRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
