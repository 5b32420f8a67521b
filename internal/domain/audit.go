package domain

import "time"

const (
	// AuditSystemStream collects events that are not tied to a subject.
	AuditSystemStream = "__system__"
	AuditChainVersion = "custody_audit_v1"
)

type AuditEventType string

const (
	AuditEventDocumentProduced   AuditEventType = "document_produced"
	AuditEventDocumentRetrieved  AuditEventType = "document_retrieved"
	AuditEventIntegrityViolation AuditEventType = "integrity_violation"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// AuditEvent is one link of a per-stream hash chain. EventHash covers the
// stream, sequence, type, payload hash, previous hash and timestamp.
type AuditEvent struct {
	ID            string
	Stream        string
	Seq           int64
	EventType     AuditEventType
	HandleID      string
	Payload       map[string]string
	PayloadHash   string
	Result        AuditResult
	ErrorCode     string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
