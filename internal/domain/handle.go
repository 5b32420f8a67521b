package domain

import "time"

type StorageBackendKind string

const (
	StorageBackendLocal  StorageBackendKind = "local"
	StorageBackendObject StorageBackendKind = "object"
)

// StorageScope carries the naming inputs for a stored artifact.
type StorageScope struct {
	Kind      DocumentKind
	SubjectID string
}

// SealedArtifactHandle is the only durable reference to an encrypted
// artifact. ContentHash is the SHA-256 of the plaintext handed to the vault.
type SealedArtifactHandle struct {
	ID             string
	SubjectID      string
	Kind           DocumentKind
	StorageBackend StorageBackendKind
	StorageLocator string
	ContentHash    string
	EncryptedSize  int64
	OriginalSize   int64
	Algorithm      string
	KeyID          string
	PageCount      int
	Signed         bool
	CreatedAt      time.Time
}
