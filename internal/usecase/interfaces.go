package usecase

import (
	"context"
	"time"

	"kredilakay/internal/domain"
)

type Clock func() time.Time

type Composer interface {
	Compose(ctx context.Context, spec domain.DocumentSpec) (domain.Artifact, error)
}

type Annotator interface {
	Annotate(ctx context.Context, artifact domain.Artifact, overlays domain.OverlaySet) (domain.Artifact, error)
}

type Sealer interface {
	Seal(ctx context.Context, artifact domain.Artifact, signer *domain.SigningIdentity) (domain.SealingResult, error)
	Verify(ctx context.Context, artifact domain.Artifact) domain.VerificationReport
}

type Vault interface {
	Store(ctx context.Context, artifact domain.Artifact, scope domain.StorageScope) (domain.SealedArtifactHandle, error)
	Retrieve(ctx context.Context, handle domain.SealedArtifactHandle) (domain.Artifact, error)
	Delete(ctx context.Context, handle domain.SealedArtifactHandle) error
}

type HandleRepository interface {
	Save(ctx context.Context, handle domain.SealedArtifactHandle) error
	Get(ctx context.Context, id string) (domain.SealedArtifactHandle, error)
}

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	ListByStream(ctx context.Context, stream string) ([]domain.AuditEvent, error)
}
