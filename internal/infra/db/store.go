package db

import (
	"fmt"

	"kredilakay/internal/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB      *gorm.DB
	Handles *HandleRepository
	Audit   *AuditEventRepository
}

// NewStore opens postgres when POSTGRES_DSN is set. Without it the store
// has no DB and callers fall back to in-memory repositories.
func NewStore(cfg config.Config, logger *zap.Logger) (*Store, error) {
	if cfg.PostgresDSN == "" {
		if logger != nil {
			logger.Warn("POSTGRES_DSN not set; handle records will not persist")
		}
		return &Store{}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{
		DB:      gdb,
		Handles: NewHandleRepository(gdb),
		Audit:   NewAuditEventRepository(gdb),
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
