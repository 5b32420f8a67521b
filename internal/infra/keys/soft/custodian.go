package soft

import (
	"context"
	"fmt"
	"os"
	"sync"

	"kredilakay/internal/config"
	"kredilakay/internal/domain"
	"kredilakay/internal/infra/keys/material"

	"filippo.io/age"
)

// DefaultSigningRef is the reference FromConfig registers the configured
// signing identity under.
const DefaultSigningRef = "default"

// Custodian holds key material in process memory.
type Custodian struct {
	mu       sync.RWMutex
	dataKeys map[string][]byte
	ages     map[string]*age.X25519Identity
	signers  map[string]*domain.SigningIdentity
}

func New() *Custodian {
	return &Custodian{
		dataKeys: make(map[string][]byte),
		ages:     make(map[string]*age.X25519Identity),
		signers:  make(map[string]*domain.SigningIdentity),
	}
}

// FromConfig loads the data key, age identity and signing identity named
// by cfg. Signing material is optional; a custodian without it still
// serves unsigned produces.
func FromConfig(cfg config.Config) (*Custodian, error) {
	c := New()
	if cfg.EncryptionKeyHex != "" {
		key, err := material.DataKey(cfg.EncryptionKeyHex)
		if err != nil {
			return nil, err
		}
		c.PutDataKey(cfg.EncryptionKeyID, key)
	}
	if cfg.AgeIdentity != "" {
		id, err := material.AgeIdentity(cfg.AgeIdentity)
		if err != nil {
			return nil, err
		}
		c.PutAgeIdentity(cfg.EncryptionKeyID, id)
	}

	var rec material.SigningRecord
	switch {
	case cfg.SigningP12Path != "":
		data, err := os.ReadFile(cfg.SigningP12Path)
		if err != nil {
			return nil, fmt.Errorf("read signing bundle: %w", err)
		}
		rec.P12, rec.P12Password = data, cfg.SigningP12Password
	case cfg.SigningCertPEMPath != "" && cfg.SigningKeyPEMPath != "":
		certPEM, err := os.ReadFile(cfg.SigningCertPEMPath)
		if err != nil {
			return nil, fmt.Errorf("read signing certificate: %w", err)
		}
		keyPEM, err := os.ReadFile(cfg.SigningKeyPEMPath)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		rec.CertPEM, rec.KeyPEM = string(certPEM), string(keyPEM)
	default:
		return c, nil
	}
	rec.Reason, rec.Location, rec.Contact = cfg.SigningReason, cfg.SigningLocation, cfg.SigningContact
	id, err := rec.Identity()
	if err != nil {
		return nil, err
	}
	c.PutSigningIdentity(DefaultSigningRef, id)
	return c, nil
}

func (c *Custodian) PutDataKey(keyID string, key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataKeys[keyID] = append([]byte(nil), key...)
}

func (c *Custodian) PutAgeIdentity(keyID string, id *age.X25519Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ages[keyID] = id
}

func (c *Custodian) PutSigningIdentity(ref string, id *domain.SigningIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signers[ref] = id
}

func (c *Custodian) DataKey(_ context.Context, keyID string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.dataKeys[keyID]
	if !ok {
		return nil, fmt.Errorf("data key %q: %w", keyID, domain.ErrKeyUnknown)
	}
	return append([]byte(nil), key...), nil
}

func (c *Custodian) AgeIdentity(_ context.Context, keyID string) (*age.X25519Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ages[keyID]
	if !ok {
		return nil, fmt.Errorf("age identity %q: %w", keyID, domain.ErrKeyUnknown)
	}
	return id, nil
}

func (c *Custodian) SigningIdentity(_ context.Context, ref string) (*domain.SigningIdentity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.signers[ref]
	if !ok {
		return nil, fmt.Errorf("signing identity %q: %w", ref, domain.ErrMissingCredentials)
	}
	return id, nil
}
