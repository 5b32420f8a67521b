package main

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"kredilakay/internal/config"
	"kredilakay/internal/domain"
	"kredilakay/internal/infra/annotate"
	"kredilakay/internal/infra/compose"
	"kredilakay/internal/infra/db"
	"kredilakay/internal/infra/handlemem"
	"kredilakay/internal/infra/keys/secretsmanager"
	"kredilakay/internal/infra/keys/soft"
	"kredilakay/internal/infra/keys/vaultkv"
	"kredilakay/internal/infra/render"
	"kredilakay/internal/infra/resources"
	"kredilakay/internal/infra/seal"
	"kredilakay/internal/infra/storage"
	"kredilakay/internal/infra/vault"
	"kredilakay/internal/logging"
	"kredilakay/internal/metrics"
	"kredilakay/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const locatorReservationTTL = 10 * time.Minute

type cli struct {
	cfg         config.Config
	logger      *zap.Logger
	metricsFile string
}

func (c *cli) init() error {
	c.cfg = config.FromEnv()
	logger, err := logging.New(c.cfg.LogLevel, !c.cfg.Production())
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

// app is the wired pipeline for one command invocation.
type app struct {
	custody  *usecase.Custody
	sealer   *seal.Sealer
	handles  usecase.HandleRepository
	audit    usecase.AuditEventRepository
	registry *prometheus.Registry
	closers  []func() error

	// persistent is false when handles and audit live in process memory.
	persistent bool
}

func (c *cli) withApp(cmd *cobra.Command, fn func(*app) error) error {
	a, err := openApp(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.close(c.logger)

	runErr := fn(a)
	if c.metricsFile != "" {
		if err := prometheus.WriteToTextfile(c.metricsFile, a.registry); err != nil {
			c.logger.Warn("write metrics textfile failed", zap.Error(err))
		}
	}
	return runErr
}

func openApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := &app{registry: prometheus.NewRegistry()}

	backend, err := openBackend(ctx, cfg, a)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	keys, err := openKeys(ctx, cfg)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	v, err := vault.New(backend, keys, vault.Options{
		Cipher: cfg.VaultCipher,
		KeyID:  cfg.EncryptionKeyID,
		Logger: logger.Named("vault"),
	})
	if err != nil {
		a.close(logger)
		return nil, err
	}

	provider, err := resources.WithOverrides(cfg.ResourceDir)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	roots, err := trustRoots(cfg)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	a.sealer = seal.New(roots)

	store, err := db.NewStore(cfg, logger)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	if store.DB != nil {
		a.handles, a.audit = store.Handles, store.Audit
		a.persistent = true
	} else {
		a.handles, a.audit = handlemem.NewHandleRepository(), handlemem.NewAuditEventRepository()
	}

	a.custody = usecase.NewCustody(
		compose.New(render.New(provider), provider),
		annotate.New(provider, annotate.PenaltyPolicy{GraceDays: cfg.PenaltyGraceDays, Currency: cfg.PenaltyCurrency}),
		a.sealer,
		v,
		a.handles,
	)
	a.custody.Keys = keys
	a.custody.Audit = usecase.NewAuditEmitter(a.audit, nil)
	a.custody.Metrics = metrics.New(a.registry)
	a.custody.Logger = logger.Named("custody")
	a.custody.VerifyBaseURL = cfg.VerifyBaseURL
	return a, nil
}

func (a *app) close(logger *zap.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

func openBackend(ctx context.Context, cfg config.Config, a *app) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendLocal:
		return storage.NewLocal(cfg.LocalStoragePath)
	case config.StorageBackendObject:
		var reserver storage.Reserver
		if cfg.RedisAddr != "" {
			r, err := storage.NewRedisReserver(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, locatorReservationTTL)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, r.Close)
			reserver = r
		}
		return storage.NewObjectFromConfig(ctx, cfg, reserver)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func openKeys(ctx context.Context, cfg config.Config) (domain.KeyCustodian, error) {
	switch cfg.KeySource {
	case config.KeySourceSoft:
		return soft.FromConfig(cfg)
	case config.KeySourceVault:
		return vaultkv.NewFromConfig(cfg)
	case config.KeySourceAWS:
		return secretsmanager.NewFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown key source %q", cfg.KeySource)
	}
}

func trustRoots(cfg config.Config) (*x509.CertPool, error) {
	if cfg.TrustRootsPEMPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(cfg.TrustRootsPEMPath)
	if err != nil {
		return nil, fmt.Errorf("read trust roots: %w", err)
	}
	return seal.ParseTrustRoots(data)
}

var errNoDatabase = errors.New("POSTGRES_DSN is required for this command")
