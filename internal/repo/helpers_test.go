package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
)

// newTestDB opens a private in-memory SQLite store. With migrate set the
// embedded migrations are applied; without it the store is empty, which is
// how tests reach the "no such table" error paths.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(context.Background(), Options{URL: dsn, ConnectAttempts: 1})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if migrate {
		if _, err := Migrate(context.Background(), db); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return db
}

// newFileDB opens a migrated SQLite file store, for tests that need real
// cross-connection locking (WAL + busy_timeout).
func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := openFile(filepath.Join(t.TempDir(), "newscheck.db"))
	if err != nil {
		t.Fatalf("open file db: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if _, err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// openFile opens a SQLite file store with the production pool bounds.
func openFile(path string) (*gorm.DB, error) {
	return Open(context.Background(), Options{URL: path, ConnectAttempts: 1, MaxOpenConns: 10, MaxIdleConns: 10})
}

func countDetections(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.DetectionResult{}).Count(&n).Error; err != nil {
		t.Fatalf("count detections: %v", err)
	}
	return n
}
