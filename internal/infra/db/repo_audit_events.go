package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/auditchain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	// Postgres keeps microseconds; hash what will be read back.
	event.CreatedAt = event.CreatedAt.Truncate(time.Microsecond)
	if event.EventType == "" {
		return domain.AuditEvent{}, errors.New("event_type is required")
	}
	if event.Stream == "" {
		event.Stream = domain.AuditSystemStream
	}

	payload, err := auditchain.PayloadBytes(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}

	var out domain.AuditEvent
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, prevHash, err := nextAuditSeq(ctx, tx, event.Stream)
		if err != nil {
			return err
		}
		linked, err := auditchain.Link(event, seq, prevHash)
		if err != nil {
			return err
		}
		model := auditEventModelFromDomain(linked, payload)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = linked
		return nil
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return out, nil
}

func (r *AuditEventRepository) ListByStream(ctx context.Context, stream string) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if stream == "" {
		stream = domain.AuditSystemStream
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("stream = ?", stream).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		payload, err := auditchain.DecodePayload(model.PayloadCBOR)
		if err != nil {
			return nil, fmt.Errorf("decode audit payload seq %d: %w", model.Seq, err)
		}
		out = append(out, auditEventFromModel(model, payload))
	}
	return out, nil
}

func auditEventModelFromDomain(event domain.AuditEvent, payload []byte) AuditEventModel {
	return AuditEventModel{
		ID:            event.ID,
		Stream:        event.Stream,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		HandleID:      stringPtrIfNotEmpty(event.HandleID),
		PayloadCBOR:   payload,
		PayloadHash:   event.PayloadHash,
		Result:        string(event.Result),
		ErrorCode:     stringPtrIfNotEmpty(event.ErrorCode),
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt.UTC(),
	}
}

func auditEventFromModel(model AuditEventModel, payload map[string]string) domain.AuditEvent {
	return domain.AuditEvent{
		ID:            model.ID,
		Stream:        model.Stream,
		Seq:           model.Seq,
		EventType:     domain.AuditEventType(model.EventType),
		HandleID:      stringValue(model.HandleID),
		Payload:       payload,
		PayloadHash:   model.PayloadHash,
		Result:        domain.AuditResult(model.Result),
		ErrorCode:     stringValue(model.ErrorCode),
		PrevEventHash: model.PrevEventHash,
		EventHash:     model.EventHash,
		CreatedAt:     model.CreatedAt.UTC(),
	}
}

// nextAuditSeq claims the next sequence number for stream. The row lock
// on custody_audit_seq serialises appends per stream.
func nextAuditSeq(ctx context.Context, tx *gorm.DB, stream string) (int64, string, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO custody_audit_seq (stream, seq) VALUES (?, 0) ON CONFLICT (stream) DO NOTHING",
		stream,
	).Error; err != nil {
		return 0, "", err
	}

	var currentSeq int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq FROM custody_audit_seq WHERE stream = ? FOR UPDATE",
		stream,
	).Scan(&currentSeq).Error; err != nil {
		return 0, "", err
	}
	nextSeq := currentSeq + 1
	if err := tx.WithContext(ctx).Exec(
		"UPDATE custody_audit_seq SET seq = ? WHERE stream = ?",
		nextSeq,
		stream,
	).Error; err != nil {
		return 0, "", err
	}

	prevHash := auditchain.ZeroHash
	if currentSeq > 0 {
		var prev AuditEventModel
		if err := tx.WithContext(ctx).
			Where("stream = ? AND seq = ?", stream, currentSeq).
			Take(&prev).Error; err != nil {
			return 0, "", err
		}
		prevHash = prev.EventHash
	}
	if prevHash == "" {
		return 0, "", fmt.Errorf("missing previous event hash for stream %s", stream)
	}
	return nextSeq, prevHash, nil
}
