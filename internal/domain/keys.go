package domain

import (
	"context"

	"filippo.io/age"
)

// KeyCustodian supplies key material by reference. Implementations never
// persist what they hand out.
type KeyCustodian interface {
	// DataKey returns the 32-byte master key identified by keyID.
	DataKey(ctx context.Context, keyID string) ([]byte, error)
	// AgeIdentity returns the X25519 identity for keyID.
	AgeIdentity(ctx context.Context, keyID string) (*age.X25519Identity, error)
	// SigningIdentity returns the certificate and signer for ref.
	SigningIdentity(ctx context.Context, ref string) (*SigningIdentity, error)
}
