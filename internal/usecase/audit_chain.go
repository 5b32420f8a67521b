package usecase

import (
	"context"
	"errors"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/auditchain"
)

// VerifyAuditChain reloads a stream and checks every link.
func VerifyAuditChain(ctx context.Context, repo AuditEventRepository, stream string) error {
	if repo == nil {
		return errors.New("audit repository required")
	}
	if stream == "" {
		stream = domain.AuditSystemStream
	}
	events, err := repo.ListByStream(ctx, stream)
	if err != nil {
		return err
	}
	return auditchain.Verify(stream, events)
}
