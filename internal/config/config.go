package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	StorageBackendLocal  = "local"
	StorageBackendObject = "object"

	KeySourceSoft  = "soft"
	KeySourceVault = "vault"
	KeySourceAWS   = "aws"

	CipherXChaCha20Poly1305 = "XChaCha20-Poly1305"
	CipherAES256GCM         = "AES-256-GCM"
	CipherAgeX25519         = "age-X25519"
)

type Config struct {
	LogLevel    string
	PostgresDSN string
	CustodyEnv  string

	StorageBackend   string
	LocalStoragePath string
	S3Bucket         string
	S3Prefix         string
	S3Endpoint       string

	AWSRegion                 string
	AWSAccessKeyID            string
	AWSSecretAccessKey        string
	AWSSessionToken           string
	AWSSecretsManagerEndpoint string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VaultAddr  string
	VaultToken string
	VaultMount string

	KeySource        string
	EncryptionKeyHex string
	EncryptionKeyID  string
	VaultCipher      string
	AgeIdentity      string

	SigningCertPEMPath string
	SigningKeyPEMPath  string
	SigningP12Path     string
	SigningP12Password string
	SigningReason      string
	SigningLocation    string
	SigningContact     string
	TrustRootsPEMPath  string

	ResourceDir      string
	WatermarkText    string
	VerifyBaseURL    string
	PenaltyGraceDays int
	PenaltyCurrency  string
}

func FromEnv() Config {
	return Config{
		LogLevel:                  envDefault("LOG_LEVEL", "info"),
		PostgresDSN:               os.Getenv("POSTGRES_DSN"),
		CustodyEnv:                envDefault("CUSTODY_ENV", "development"),
		StorageBackend:            envDefault("STORAGE_BACKEND", StorageBackendLocal),
		LocalStoragePath:          envDefault("LOCAL_STORAGE_PATH", "secure_storage"),
		S3Bucket:                  os.Getenv("S3_BUCKET"),
		S3Prefix:                  os.Getenv("S3_PREFIX"),
		S3Endpoint:                os.Getenv("S3_ENDPOINT"),
		AWSRegion:                 os.Getenv("AWS_REGION"),
		AWSAccessKeyID:            os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:        os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSSessionToken:           os.Getenv("AWS_SESSION_TOKEN"),
		AWSSecretsManagerEndpoint: os.Getenv("AWS_SECRETS_MANAGER_ENDPOINT"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:                   envIntDefault("REDIS_DB", 0),
		VaultAddr:                 os.Getenv("VAULT_ADDR"),
		VaultToken:                os.Getenv("VAULT_TOKEN"),
		VaultMount:                envDefault("VAULT_KV_MOUNT", "secret"),
		KeySource:                 envDefault("KEY_SOURCE", KeySourceSoft),
		EncryptionKeyHex:          os.Getenv("ENCRYPTION_KEY_HEX"),
		EncryptionKeyID:           envDefault("ENCRYPTION_KEY_ID", "default"),
		VaultCipher:               envDefault("VAULT_CIPHER", CipherXChaCha20Poly1305),
		AgeIdentity:               os.Getenv("AGE_IDENTITY"),
		SigningCertPEMPath:        os.Getenv("SIGNING_CERT_PEM_PATH"),
		SigningKeyPEMPath:         os.Getenv("SIGNING_KEY_PEM_PATH"),
		SigningP12Path:            os.Getenv("SIGNING_P12_PATH"),
		SigningP12Password:        os.Getenv("SIGNING_P12_PASSWORD"),
		SigningReason:             envDefault("SIGNING_REASON", "KrediGest Document Certification"),
		SigningLocation:           envDefault("SIGNING_LOCATION", "Port-au-Prince, Haiti"),
		SigningContact:            os.Getenv("SIGNING_CONTACT"),
		TrustRootsPEMPath:         os.Getenv("TRUST_ROOTS_PEM_PATH"),
		ResourceDir:               os.Getenv("RESOURCE_DIR"),
		WatermarkText:             envDefault("WATERMARK_TEXT", "KREDILAKAY - CONFIDENTIEL"),
		VerifyBaseURL:             envDefault("VERIFY_BASE_URL", "http://localhost:8000"),
		PenaltyGraceDays:          envIntDefault("PENALTY_GRACE_DAYS", 0),
		PenaltyCurrency:           envDefault("PENALTY_CURRENCY", "HTG"),
	}
}

// Validate checks that the selected backends have what they need. Secrets
// are only checked for presence.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case StorageBackendLocal:
		if c.LocalStoragePath == "" {
			errs = append(errs, errors.New("LOCAL_STORAGE_PATH is required for local storage"))
		}
	case StorageBackendObject:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for object storage"))
		}
		if c.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION is required for object storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	switch c.VaultCipher {
	case CipherXChaCha20Poly1305, CipherAES256GCM, CipherAgeX25519:
	default:
		errs = append(errs, fmt.Errorf("unknown VAULT_CIPHER %q", c.VaultCipher))
	}
	switch c.KeySource {
	case KeySourceSoft:
		if c.VaultCipher == CipherAgeX25519 {
			if c.AgeIdentity == "" {
				errs = append(errs, errors.New("AGE_IDENTITY is required for age-X25519"))
			}
		} else if key, err := hex.DecodeString(c.EncryptionKeyHex); err != nil || len(key) != 32 {
			errs = append(errs, errors.New("ENCRYPTION_KEY_HEX must be 64 hex characters"))
		}
	case KeySourceVault:
		if c.VaultAddr == "" || c.VaultToken == "" {
			errs = append(errs, errors.New("VAULT_ADDR and VAULT_TOKEN are required for vault key source"))
		}
	case KeySourceAWS:
		if c.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION is required for aws key source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown KEY_SOURCE %q", c.KeySource))
	}
	if c.PenaltyGraceDays < 0 {
		errs = append(errs, errors.New("PENALTY_GRACE_DAYS must not be negative"))
	}
	if c.PenaltyCurrency != "" && !isCurrencyCode(c.PenaltyCurrency) {
		errs = append(errs, fmt.Errorf("PENALTY_CURRENCY %q is not a three-letter code", c.PenaltyCurrency))
	}
	return errors.Join(errs...)
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (c Config) Production() bool {
	return strings.EqualFold(c.CustodyEnv, "production")
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
