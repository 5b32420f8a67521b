package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"kredilakay/internal/domain"
)

type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{
		Repo:  repo,
		Clock: clock,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.EventType == "" || event.Result == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Stream == "" {
		event.Stream = domain.AuditSystemStream
	}
	if event.Payload == nil {
		event.Payload = map[string]string{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

// EmitProduced records a produce outcome. On failure handle is the zero
// value and only kind is known.
func (e *AuditEmitter) EmitProduced(ctx context.Context, subjectID string, kind domain.DocumentKind, handle domain.SealedArtifactHandle, result domain.AuditResult, errorCode string) error {
	payload := map[string]string{"kind": string(kind)}
	if handle.ID != "" {
		payload["content_hash"] = handle.ContentHash
		payload["backend"] = string(handle.StorageBackend)
		payload["algorithm"] = handle.Algorithm
		payload["key_id"] = handle.KeyID
		payload["signed"] = strconv.FormatBool(handle.Signed)
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		Stream:    subjectID,
		EventType: domain.AuditEventDocumentProduced,
		HandleID:  handle.ID,
		Payload:   payload,
		Result:    result,
		ErrorCode: errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitRetrieved(ctx context.Context, handle domain.SealedArtifactHandle, report domain.VerificationReport, result domain.AuditResult, errorCode string) error {
	payload := map[string]string{
		"kind":           string(handle.Kind),
		"checksum_match": strconv.FormatBool(report.ChecksumMatch),
		"signatures":     strconv.Itoa(len(report.Signatures)),
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		Stream:    handle.SubjectID,
		EventType: domain.AuditEventDocumentRetrieved,
		HandleID:  handle.ID,
		Payload:   payload,
		Result:    result,
		ErrorCode: errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitIntegrityViolation(ctx context.Context, handle domain.SealedArtifactHandle, stage string) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		Stream:    handle.SubjectID,
		EventType: domain.AuditEventIntegrityViolation,
		HandleID:  handle.ID,
		Payload: map[string]string{
			"stage":         stage,
			"expected_hash": handle.ContentHash,
			"locator":       handle.StorageLocator,
		},
		Result:    domain.AuditResultFailure,
		ErrorCode: "integrity_violation",
	})
	return err
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
