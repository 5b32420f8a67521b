package db

import "time"

type HandleModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	SubjectID      string    `gorm:"index;not null"`
	Kind           string    `gorm:"not null"`
	StorageBackend string    `gorm:"not null"`
	StorageLocator string    `gorm:"uniqueIndex;not null"`
	ContentHash    string    `gorm:"not null"`
	EncryptedSize  int64     `gorm:"not null"`
	OriginalSize   int64     `gorm:"not null"`
	Algorithm      string    `gorm:"not null"`
	KeyID          string    `gorm:"not null"`
	PageCount      int       `gorm:"not null"`
	Signed         bool      `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (HandleModel) TableName() string {
	return "sealed_artifact_handles"
}

type AuditEventModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Stream        string `gorm:"type:text;index;not null"`
	Seq           int64  `gorm:"not null"`
	EventType     string `gorm:"column:event_type;not null"`
	HandleID      *string
	PayloadCBOR   []byte `gorm:"column:payload_cbor;type:bytea;not null"`
	PayloadHash   string `gorm:"not null"`
	Result        string `gorm:"not null"`
	ErrorCode     *string
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (AuditEventModel) TableName() string {
	return "custody_audit_events"
}
