//go:build integration

package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
)

var (
	pgOnce sync.Once
	pgURL  string
	pgErr  error
)

// newPostgresDB starts one PostgreSQL container per test run and returns a
// freshly migrated handle. Tables are truncated between tests.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	pgOnce.Do(func() { pgURL, pgErr = startPostgres() })
	if pgErr != nil {
		t.Fatalf("postgres container: %v", pgErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := Open(ctx, Options{URL: pgURL, ConnectAttempts: 5, ConnectDelay: time.Second, MaxOpenConns: 20, MaxIdleConns: 20})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if _, err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := db.Exec("TRUNCATE users, detection_results, idempotency_keys RESTART IDENTITY").Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func startPostgres() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "newscheck",
			"POSTGRES_PASSWORD": "newscheck",
			"POSTGRES_DB":       "newscheck",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("mapped port: %w", err)
	}
	return fmt.Sprintf("postgres://newscheck:newscheck@%s:%s/newscheck?sslmode=disable", host, port.Port()), nil
}

func TestPostgres_DuplicateEmail(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()

	first := &domain.User{Username: "ann", Email: "ann@example.com", HashedPassword: []byte("h1")}
	if err := CreateUser(ctx, db, first); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	err := CreateUser(ctx, db, &domain.User{Username: "ann2", Email: "ann@example.com", HashedPassword: []byte("h2")})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	got, err := GetUserByEmail(ctx, db, "ann@example.com")
	if err != nil || got.ID != first.ID || string(got.HashedPassword) != "h1" {
		t.Fatalf("first record changed: %+v %v", got, err)
	}
}

func TestPostgres_ConcurrentDetections(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()

	const n = 50
	ids := make([]int64, n)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := InTx(ctx, db, func(tx *gorm.DB) error {
				d := &domain.DetectionResult{Text: fmt.Sprintf("text %d", i), Confidence: 0.1}
				if err := CreateDetection(ctx, tx, d); err != nil {
					return err
				}
				ids[i] = d.ID
				return nil
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("detection: %v", err)
	}

	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for i := 1; i < n; i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not unique and increasing: %v", ids)
		}
	}
	if c := countDetections(t, db); c != n {
		t.Fatalf("count = %d; want %d", c, n)
	}
}

func TestPostgres_MigrateDownAndUp(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()

	if _, err := MigrateDown(ctx, db); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	st, err := MigrationsStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrationsStatus: %v", err)
	}
	pending := 0
	for _, s := range st {
		if !s.Applied {
			pending++
		}
	}
	if pending != 1 {
		t.Fatalf("pending = %d; want 1", pending)
	}
	if _, err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}
