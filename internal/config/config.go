// Package config loads the service settings from environment variables.
// Every knob has a default except the two secrets-bearing values
// (DATABASE_URL and JWT_SECRET), which must be provided explicitly.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig holds the relational store settings.
type DBConfig struct {
	URL             string        // DATABASE_URL (postgres://..., sqlite://path, file:..., or a bare path)
	ConnectAttempts int           // DB_CONNECT_ATTEMPTS
	ConnectDelay    time.Duration // DB_CONNECT_DELAY
	MaxOpenConns    int           // DB_MAX_OPEN_CONNS
	MaxIdleConns    int           // DB_MAX_IDLE_CONNS
	AutoMigrate     bool          // DB_AUTO_MIGRATE: apply pending migrations on serve
}

// AuthConfig holds session token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        // JWT_SECRET
	TokenTTL   time.Duration // TOKEN_TTL
	BcryptCost int           // BCRYPT_COST
}

// DetectConfig tunes the detection endpoint.
type DetectConfig struct {
	MaxTextRunes int    // MAX_TEXT_RUNES
	Trigger      string // DETECT_TRIGGER
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int   // bytes
	MaxBodyBytes      int64 // request body cap
	GinMode           string

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool
	APIBasePath    string

	DB     DBConfig
	Auth   AuthConfig
	Detect DetectConfig

	// Rate limiting
	RateRPS       float64 // tokens per second (>= 0)
	RateBurst     int     // bucket size (>= 1)
	AuthRateRPS   float64 // stricter bucket for /token and /register
	AuthRateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/")),

		DB: dbFromEnv(),
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			TokenTTL:   getdur("TOKEN_TTL", 30*time.Minute),
			BcryptCost: getint("BCRYPT_COST", bcrypt.DefaultCost),
		},
		Detect: DetectConfig{
			MaxTextRunes: getint("MAX_TEXT_RUNES", 500),
			Trigger:      getenv("DETECT_TRIGGER", "fake"),
		},

		RateRPS:       getfloat("RATE_RPS", 5.0),
		RateBurst:     getint("RATE_BURST", 10),
		AuthRateRPS:   getfloat("AUTH_RATE_RPS", 0.5),
		AuthRateBurst: getint("AUTH_RATE_BURST", 5),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-newscheck-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.MaxIdleConns > cfg.DB.MaxOpenConns {
		cfg.DB.MaxIdleConns = cfg.DB.MaxOpenConns
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if cfg.DB.URL == "" {
		return cfg, errors.New("DATABASE_URL must be set")
	}
	if cfg.DB.ConnectAttempts < 1 {
		return cfg, errors.New("DB_CONNECT_ATTEMPTS must be >= 1")
	}
	if cfg.DB.ConnectDelay < 0 {
		return cfg, errors.New("DB_CONNECT_DELAY must be >= 0")
	}
	if cfg.DB.MaxOpenConns < 1 {
		return cfg, errors.New("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if cfg.Auth.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET must be set")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("TOKEN_TTL must be > 0")
	}
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		return cfg, errors.New("BCRYPT_COST must be between 4 and 31")
	}
	if cfg.Detect.MaxTextRunes < 1 {
		return cfg, errors.New("MAX_TEXT_RUNES must be >= 1")
	}
	if strings.TrimSpace(cfg.Detect.Trigger) == "" {
		return cfg, errors.New("DETECT_TRIGGER must not be empty")
	}
	if cfg.RateRPS < 0 || cfg.AuthRateRPS < 0 {
		return cfg, errors.New("RATE_RPS and AUTH_RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 || cfg.AuthRateBurst < 1 {
		return cfg, errors.New("RATE_BURST and AUTH_RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// LoadDB reads only the store settings. Commands that never serve HTTP, such
// as migrations, use it so they do not require JWT_SECRET.
func LoadDB() (DBConfig, error) {
	db := dbFromEnv()
	if db.URL == "" {
		return db, errors.New("DATABASE_URL must be set")
	}
	if db.ConnectAttempts < 1 {
		return db, errors.New("DB_CONNECT_ATTEMPTS must be >= 1")
	}
	if db.ConnectDelay < 0 {
		return db, errors.New("DB_CONNECT_DELAY must be >= 0")
	}
	if db.MaxOpenConns < 1 {
		return db, errors.New("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if db.MaxIdleConns > db.MaxOpenConns {
		db.MaxIdleConns = db.MaxOpenConns
	}
	return db, nil
}

func dbFromEnv() DBConfig {
	return DBConfig{
		URL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ConnectAttempts: getint("DB_CONNECT_ATTEMPTS", 5),
		ConnectDelay:    getdur("DB_CONNECT_DELAY", 3*time.Second),
		MaxOpenConns:    getint("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getint("DB_MAX_IDLE_CONNS", 10),
		AutoMigrate:     getbool("DB_AUTO_MIGRATE", true),
	}
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
