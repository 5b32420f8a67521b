package vaultkv

import (
	"context"
	"errors"
	"fmt"

	"kredilakay/internal/config"
	"kredilakay/internal/domain"
	"kredilakay/internal/infra/keys/material"
	"kredilakay/internal/infra/vaultclient"

	"filippo.io/age"
)

// Vault KV v2 layout, env-scoped:
//
//	kredilakay/{env}/keys/{key_id}     fields: data_key_hex, age_identity
//	kredilakay/{env}/signing/{ref}     fields: cert_pem, key_pem, chain_pem, p12, ...
const (
	keyPathFormat     = "kredilakay/%s/keys/%s"
	signingPathFormat = "kredilakay/%s/signing/%s"
)

type kvClient interface {
	ReadKV(ctx context.Context, name string, out any) error
	WriteKV(ctx context.Context, name string, payload any) error
}

// Custodian reads key material from Vault on every call.
type Custodian struct {
	client kvClient
	env    string
}

func New(client kvClient, env string) (*Custodian, error) {
	if client == nil {
		return nil, errors.New("vault client is required")
	}
	if env == "" {
		return nil, errors.New("CUSTODY_ENV is required")
	}
	return &Custodian{client: client, env: env}, nil
}

func NewFromConfig(cfg config.Config) (*Custodian, error) {
	if cfg.VaultAddr == "" || cfg.VaultToken == "" {
		return nil, errors.New("VAULT_ADDR and VAULT_TOKEN are required")
	}
	return New(vaultclient.New(cfg.VaultAddr, cfg.VaultToken, cfg.VaultMount), cfg.CustodyEnv)
}

func (c *Custodian) DataKey(ctx context.Context, keyID string) ([]byte, error) {
	rec, err := c.readKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	return material.DataKey(rec.DataKeyHex)
}

func (c *Custodian) AgeIdentity(ctx context.Context, keyID string) (*age.X25519Identity, error) {
	rec, err := c.readKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	return material.AgeIdentity(rec.AgeIdentity)
}

func (c *Custodian) SigningIdentity(ctx context.Context, ref string) (*domain.SigningIdentity, error) {
	if ref == "" {
		return nil, domain.ErrMissingCredentials
	}
	var rec material.SigningRecord
	if err := c.client.ReadKV(ctx, fmt.Sprintf(signingPathFormat, c.env, ref), &rec); err != nil {
		if errors.Is(err, vaultclient.ErrSecretNotFound) {
			return nil, fmt.Errorf("signing identity %q: %w", ref, domain.ErrMissingCredentials)
		}
		return nil, err
	}
	return rec.Identity()
}

// PutKey writes a key record. Existing versions stay readable through
// Vault's own history; handles only ever name the key id.
func (c *Custodian) PutKey(ctx context.Context, keyID string, rec material.KeyRecord) error {
	if keyID == "" {
		return errors.New("key id is required")
	}
	return c.client.WriteKV(ctx, fmt.Sprintf(keyPathFormat, c.env, keyID), rec)
}

func (c *Custodian) readKey(ctx context.Context, keyID string) (material.KeyRecord, error) {
	var rec material.KeyRecord
	if keyID == "" {
		return rec, domain.ErrKeyUnknown
	}
	if err := c.client.ReadKV(ctx, fmt.Sprintf(keyPathFormat, c.env, keyID), &rec); err != nil {
		if errors.Is(err, vaultclient.ErrSecretNotFound) {
			return rec, fmt.Errorf("key %q: %w", keyID, domain.ErrKeyUnknown)
		}
		return rec, err
	}
	return rec, nil
}
