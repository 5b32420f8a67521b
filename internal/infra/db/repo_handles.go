package db

import (
	"context"
	"errors"
	"fmt"

	"kredilakay/internal/domain"

	"gorm.io/gorm"
)

type HandleRepository struct {
	db *gorm.DB
}

func NewHandleRepository(db *gorm.DB) *HandleRepository {
	return &HandleRepository{db: db}
}

// Save inserts the handle. Handles are custody records and are never
// updated in place.
func (r *HandleRepository) Save(ctx context.Context, handle domain.SealedArtifactHandle) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if handle.ID == "" {
		return errors.New("handle id is required")
	}
	model := handleModelFromDomain(handle)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("save handle: %w", err)
	}
	return nil
}

func (r *HandleRepository) Get(ctx context.Context, id string) (domain.SealedArtifactHandle, error) {
	if r.db == nil {
		return domain.SealedArtifactHandle{}, errDBUnavailable
	}
	var model HandleModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SealedArtifactHandle{}, domain.ErrNotFound
		}
		return domain.SealedArtifactHandle{}, err
	}
	return handleFromModel(model), nil
}

// ListBySubject returns a subject's handles, oldest first.
func (r *HandleRepository) ListBySubject(ctx context.Context, subjectID string) ([]domain.SealedArtifactHandle, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []HandleModel
	if err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.SealedArtifactHandle, 0, len(models))
	for _, m := range models {
		out = append(out, handleFromModel(m))
	}
	return out, nil
}

func handleModelFromDomain(h domain.SealedArtifactHandle) HandleModel {
	return HandleModel{
		ID:             h.ID,
		SubjectID:      h.SubjectID,
		Kind:           string(h.Kind),
		StorageBackend: string(h.StorageBackend),
		StorageLocator: h.StorageLocator,
		ContentHash:    h.ContentHash,
		EncryptedSize:  h.EncryptedSize,
		OriginalSize:   h.OriginalSize,
		Algorithm:      h.Algorithm,
		KeyID:          h.KeyID,
		PageCount:      h.PageCount,
		Signed:         h.Signed,
		CreatedAt:      h.CreatedAt.UTC(),
	}
}

func handleFromModel(m HandleModel) domain.SealedArtifactHandle {
	return domain.SealedArtifactHandle{
		ID:             m.ID,
		SubjectID:      m.SubjectID,
		Kind:           domain.DocumentKind(m.Kind),
		StorageBackend: domain.StorageBackendKind(m.StorageBackend),
		StorageLocator: m.StorageLocator,
		ContentHash:    m.ContentHash,
		EncryptedSize:  m.EncryptedSize,
		OriginalSize:   m.OriginalSize,
		Algorithm:      m.Algorithm,
		KeyID:          m.KeyID,
		PageCount:      m.PageCount,
		Signed:         m.Signed,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}
