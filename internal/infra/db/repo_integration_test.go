//go:build integration

package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/auditchain"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestHandleRepository_SaveGet(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)
	repo := NewHandleRepository(db)
	ctx := context.Background()

	h := domain.SealedArtifactHandle{
		ID:             uuid.NewString(),
		SubjectID:      "L-" + uuid.NewString()[:8],
		Kind:           domain.DocumentKindContract,
		StorageBackend: domain.StorageBackendLocal,
		StorageLocator: "contract/L/20240101/" + uuid.NewString() + ".pdf.enc",
		ContentHash:    strings.Repeat("c", 64),
		EncryptedSize:  120,
		OriginalSize:   80,
		Algorithm:      "XChaCha20-Poly1305",
		KeyID:          "default",
		PageCount:      2,
		Signed:         true,
		CreatedAt:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.Save(ctx, h); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(ctx, h.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StorageLocator != h.StorageLocator || got.ContentHash != h.ContentHash || !got.CreatedAt.Equal(h.CreatedAt) {
		t.Fatalf("unexpected handle %+v", got)
	}
	if err := repo.Save(ctx, h); err == nil {
		t.Fatal("saving the same handle twice should fail")
	}
	if _, err := repo.Get(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, err := repo.ListBySubject(ctx, h.SubjectID)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
}

func TestAuditEventRepository_Append_HashChain(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)
	repo := NewAuditEventRepository(db)
	ctx := context.Background()
	stream := "L-" + uuid.NewString()[:8]

	first, err := repo.Append(ctx, domain.AuditEvent{
		Stream:    stream,
		EventType: domain.AuditEventDocumentProduced,
		HandleID:  uuid.NewString(),
		Payload:   map[string]string{"kind": "contract"},
		Result:    domain.AuditResultSuccess,
		CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 123456789, time.UTC),
	})
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	if first.Seq != 1 || first.PrevEventHash != auditchain.ZeroHash {
		t.Fatalf("unexpected first event %+v", first)
	}
	second, err := repo.Append(ctx, domain.AuditEvent{
		Stream:    stream,
		EventType: domain.AuditEventDocumentRetrieved,
		Payload:   map[string]string{"kind": "contract"},
		Result:    domain.AuditResultFailure,
		ErrorCode: "not_found",
	})
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if second.Seq != 2 || second.PrevEventHash != first.EventHash {
		t.Fatalf("unexpected second event %+v", second)
	}

	events, err := repo.ListByStream(ctx, stream)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := auditchain.Verify(stream, events); err != nil {
		t.Fatalf("verify chain: %v", err)
	}

	if err := db.Exec("UPDATE custody_audit_events SET result = 'success' WHERE id = ?", second.ID).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}
	events, _ = repo.ListByStream(ctx, stream)
	if err := auditchain.Verify(stream, events); err == nil {
		t.Fatal("expected tampered chain to fail verification")
	}
}

func TestRepositoriesWithoutDB(t *testing.T) {
	if err := NewHandleRepository(nil).Save(context.Background(), domain.SealedArtifactHandle{ID: "x"}); !errors.Is(err, errDBUnavailable) {
		t.Fatalf("expected errDBUnavailable, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	lockTestDB(t, db)
	applyMigrations(t, db)
	return db
}

func lockTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("open db conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_lock(424242)"); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(424242)")
		_ = conn.Close()
	})
}

func applyMigrations(t *testing.T, db *gorm.DB) {
	t.Helper()
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		sqlBytes, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read migration %s: %v", name, err)
		}
		if err := db.Exec(string(sqlBytes)).Error; err != nil {
			t.Fatalf("apply migration %s: %v", name, err)
		}
	}
}

func resetDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`TRUNCATE sealed_artifact_handles, custody_audit_events, custody_audit_seq`).Error; err != nil {
		t.Fatalf("reset db: %v", err)
	}
}
