package handlemem

import (
	"context"
	"errors"
	"sync"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/auditchain"

	"github.com/google/uuid"
)

// AuditEventRepository chains events per stream under a single lock.
type AuditEventRepository struct {
	mu      sync.Mutex
	streams map[string][]domain.AuditEvent
}

func NewAuditEventRepository() *AuditEventRepository {
	return &AuditEventRepository{streams: make(map[string][]domain.AuditEvent)}
}

func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuditEvent{}, err
	}
	if event.EventType == "" {
		return domain.AuditEvent{}, errors.New("event_type is required")
	}
	if event.Stream == "" {
		event.Stream = domain.AuditSystemStream
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Payload = clonePayload(event.Payload)

	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.streams[event.Stream]
	prev := auditchain.ZeroHash
	if n := len(chain); n > 0 {
		prev = chain[n-1].EventHash
	}
	linked, err := auditchain.Link(event, int64(len(chain)+1), prev)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	r.streams[event.Stream] = append(chain, linked)
	return linked, nil
}

func (r *AuditEventRepository) ListByStream(ctx context.Context, stream string) ([]domain.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stream == "" {
		stream = domain.AuditSystemStream
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEvent, 0, len(r.streams[stream]))
	for _, ev := range r.streams[stream] {
		ev.Payload = clonePayload(ev.Payload)
		out = append(out, ev)
	}
	return out, nil
}

func clonePayload(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
