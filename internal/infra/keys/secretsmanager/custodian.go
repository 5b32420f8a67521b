// Package secretsmanager serves key material stored as JSON secrets in
// AWS Secrets Manager.
package secretsmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kredilakay/internal/config"
	"kredilakay/internal/domain"
	"kredilakay/internal/infra/awsconf"
	"kredilakay/internal/infra/keys/material"

	"filippo.io/age"
	"github.com/aws/aws-sdk-go-v2/aws"
	sm "github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// Secret ids: kredilakay/{env}/keys/{key_id} and kredilakay/{env}/signing/{ref}.
const (
	keySecretFormat     = "kredilakay/%s/keys/%s"
	signingSecretFormat = "kredilakay/%s/signing/%s"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *sm.GetSecretValueInput, optFns ...func(*sm.Options)) (*sm.GetSecretValueOutput, error)
}

type Custodian struct {
	client secretsAPI
	env    string
}

func New(client secretsAPI, env string) (*Custodian, error) {
	if client == nil {
		return nil, errors.New("secrets manager client is required")
	}
	if env == "" {
		return nil, errors.New("CUSTODY_ENV is required")
	}
	return &Custodian{client: client, env: env}, nil
}

func NewFromConfig(ctx context.Context, cfg config.Config) (*Custodian, error) {
	if cfg.AWSRegion == "" {
		return nil, errors.New("AWS_REGION is required")
	}
	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := sm.NewFromConfig(awsCfg, func(o *sm.Options) {
		if cfg.AWSSecretsManagerEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSSecretsManagerEndpoint)
		}
	})
	return New(client, cfg.CustodyEnv)
}

func (c *Custodian) DataKey(ctx context.Context, keyID string) ([]byte, error) {
	var rec material.KeyRecord
	if err := c.read(ctx, fmt.Sprintf(keySecretFormat, c.env, keyID), &rec, domain.ErrKeyUnknown); err != nil {
		return nil, err
	}
	return material.DataKey(rec.DataKeyHex)
}

func (c *Custodian) AgeIdentity(ctx context.Context, keyID string) (*age.X25519Identity, error) {
	var rec material.KeyRecord
	if err := c.read(ctx, fmt.Sprintf(keySecretFormat, c.env, keyID), &rec, domain.ErrKeyUnknown); err != nil {
		return nil, err
	}
	return material.AgeIdentity(rec.AgeIdentity)
}

func (c *Custodian) SigningIdentity(ctx context.Context, ref string) (*domain.SigningIdentity, error) {
	var rec material.SigningRecord
	if err := c.read(ctx, fmt.Sprintf(signingSecretFormat, c.env, ref), &rec, domain.ErrMissingCredentials); err != nil {
		return nil, err
	}
	return rec.Identity()
}

func (c *Custodian) read(ctx context.Context, secretID string, out any, missing error) error {
	resp, err := c.client.GetSecretValue(ctx, &sm.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("%s: %w", secretID, missing)
		}
		return fmt.Errorf("get secret %s: %w", secretID, err)
	}
	raw := resp.SecretBinary
	if resp.SecretString != nil {
		raw = []byte(aws.ToString(resp.SecretString))
	}
	if len(raw) == 0 {
		return fmt.Errorf("%s: %w", secretID, missing)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode secret %s: %w", secretID, err)
	}
	return nil
}
