package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/auth"
	"github.com/tbourn/go-newscheck-backend/internal/domain"
	"github.com/tbourn/go-newscheck-backend/internal/repo"
)

const testSecret = "services-test-secret-at-least-32-chars"

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repo.Open(context.Background(), repo.Options{URL: dsn, ConnectAttempts: 1})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	if _, err := repo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newFileServiceDB is used where real concurrent writers are exercised.
func newFileServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.Open(context.Background(), repo.Options{URL: filepath.Join(t.TempDir(), "svc.db"), ConnectAttempts: 1, MaxOpenConns: 10, MaxIdleConns: 10})
	if err != nil {
		t.Fatalf("open file db: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	if _, err := repo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestAuthService(t *testing.T, db *gorm.DB) *AuthService {
	t.Helper()
	tm, err := auth.NewTokenManager(testSecret, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	svc, err := NewAuthService(db, auth.NewPasswordHasher(bcrypt.MinCost), tm)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

// stubClassifier returns a fixed verdict or error.
type stubClassifier struct {
	verdict Verdict
	err     error
	seen    []string
}

func (s *stubClassifier) Classify(_ context.Context, text string) (Verdict, error) {
	s.seen = append(s.seen, text)
	return s.verdict, s.err
}

func countDetections(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.DetectionResult{}).Count(&n).Error; err != nil {
		t.Fatalf("count detections: %v", err)
	}
	return n
}
