package config

import (
	"strings"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("VAULT_CIPHER", "")
	t.Setenv("PENALTY_GRACE_DAYS", "")
	t.Setenv("PENALTY_CURRENCY", "")
	cfg := FromEnv()
	if cfg.StorageBackend != StorageBackendLocal {
		t.Fatalf("unexpected backend %q", cfg.StorageBackend)
	}
	if cfg.VaultCipher != CipherXChaCha20Poly1305 {
		t.Fatalf("unexpected cipher %q", cfg.VaultCipher)
	}
	if cfg.PenaltyGraceDays != 0 {
		t.Fatalf("unexpected grace %d", cfg.PenaltyGraceDays)
	}
	if cfg.PenaltyCurrency != "HTG" {
		t.Fatalf("unexpected currency %q", cfg.PenaltyCurrency)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "object")
	t.Setenv("PENALTY_GRACE_DAYS", "5")
	t.Setenv("PENALTY_CURRENCY", "USD")
	t.Setenv("REDIS_DB", "nope")
	cfg := FromEnv()
	if cfg.StorageBackend != StorageBackendObject {
		t.Fatalf("unexpected backend %q", cfg.StorageBackend)
	}
	if cfg.PenaltyGraceDays != 5 {
		t.Fatalf("unexpected grace %d", cfg.PenaltyGraceDays)
	}
	if cfg.PenaltyCurrency != "USD" {
		t.Fatalf("unexpected currency %q", cfg.PenaltyCurrency)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.RedisDB)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		StorageBackend:   StorageBackendLocal,
		LocalStoragePath: "/tmp/x",
		VaultCipher:      CipherXChaCha20Poly1305,
		KeySource:        KeySourceSoft,
		EncryptionKeyHex: strings.Repeat("ab", 32),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short key", func(c *Config) { c.EncryptionKeyHex = "abcd" }, "ENCRYPTION_KEY_HEX"},
		{"object without bucket", func(c *Config) { c.StorageBackend = StorageBackendObject; c.AWSRegion = "us-east-1" }, "S3_BUCKET"},
		{"unknown cipher", func(c *Config) { c.VaultCipher = "rot13" }, "VAULT_CIPHER"},
		{"vault without token", func(c *Config) { c.KeySource = KeySourceVault; c.VaultAddr = "http://vault" }, "VAULT_TOKEN"},
		{"age without identity", func(c *Config) { c.VaultCipher = CipherAgeX25519 }, "AGE_IDENTITY"},
		{"bad currency", func(c *Config) { c.PenaltyCurrency = "gourdes" }, "PENALTY_CURRENCY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}
