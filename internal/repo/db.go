// Package repo implements the persistence layer for users, detections and
// idempotency records on top of GORM. This file owns connection bootstrap:
// DATABASE_URL parsing, dialect selection (PostgreSQL over pgx or pure-Go
// SQLite), pool bounds and the startup liveness probe with retry.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Dialect names the SQL backend behind a connection URL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// sqlitePragmas are applied by the driver to every pooled connection.
// _txlock=immediate takes the write lock at BEGIN so read-then-write
// transactions wait on busy_timeout instead of failing on lock upgrade.
const sqlitePragmas = "_pragma=busy_timeout(5000)" +
	"&_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(1)" +
	"&_txlock=immediate"

// Options configures Open.
type Options struct {
	URL             string
	ConnectAttempts int
	ConnectDelay    time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	Tracing         bool // register the GORM OpenTelemetry plugin
	Debug           bool // log every SQL statement
}

// ErrUnsupportedURL is returned by ParseURL for unknown schemes.
var ErrUnsupportedURL = errors.New("unsupported database url")

// ParseURL maps a DATABASE_URL to a dialect and driver DSN.
//
//	postgres://... | postgresql://...   -> PostgreSQL, URL passed through
//	sqlite:///relative.db               -> SQLite file "relative.db"
//	sqlite:////abs/path.db              -> SQLite file "/abs/path.db"
//	file:...                            -> SQLite URI passed through
//	anything without a scheme           -> SQLite file path
func ParseURL(raw string) (Dialect, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty", ErrUnsupportedURL)
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.HasPrefix(lower, "sqlite://"):
		p := raw[len("sqlite://"):]
		p = strings.TrimPrefix(p, "/")
		if p == "" {
			return "", "", fmt.Errorf("%w: sqlite url without path", ErrUnsupportedURL)
		}
		return DialectSQLite, p, nil
	case strings.HasPrefix(lower, "file:"):
		return DialectSQLite, raw, nil
	case strings.Contains(raw, "://"):
		scheme, _, _ := strings.Cut(raw, "://")
		return "", "", fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, scheme)
	default:
		return DialectSQLite, raw, nil
	}
}

// openConn is swapped in tests to simulate an unreachable store.
var openConn = func(ctx context.Context, d Dialect, dsn string, opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         gormLogger(opts.Debug),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch d {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectSQLite:
		if err := ensureParentDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(withSQLitePragmas(dsn))
	default:
		return nil, fmt.Errorf("%w: dialect %q", ErrUnsupportedURL, d)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to the store described by opts.URL, retrying the whole
// open+ping sequence ConnectAttempts times with a fixed ConnectDelay. The
// returned handle has its pool bounded and, if requested, query tracing on.
func Open(ctx context.Context, opts Options) (*gorm.DB, error) {
	d, dsn, err := ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	attempts := opts.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var db *gorm.DB
	for i := 1; i <= attempts; i++ {
		db, err = openConn(ctx, d, dsn, opts)
		if err == nil {
			break
		}
		log.Warn().Err(err).
			Int("attempt", i).
			Int("max_attempts", attempts).
			Str("dialect", string(d)).
			Msg("database not ready")
		if i == attempts {
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempts, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.ConnectDelay):
		}
	}

	configurePool(db, opts.MaxOpenConns, opts.MaxIdleConns)
	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("gorm tracing plugin: %w", err)
		}
	}
	log.Info().Str("dialect", string(d)).Msg("database connected")
	return db, nil
}

// Ping checks store liveness.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func configurePool(db *gorm.DB, maxOpen, maxIdle int) {
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxIdle)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

func gormLogger(debug bool) logger.Interface {
	if debug {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

// ensureParentDir fails early when the database file's directory is missing,
// instead of the driver's opaque "out of memory (14)".
func ensureParentDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || strings.HasPrefix(dsn, ":memory:") {
		return nil
	}
	path, _, _ := strings.Cut(dsn, "?")
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return err
		}
	}
	return nil
}
