// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware and route handlers.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/docs"
	"github.com/tbourn/go-newscheck-backend/internal/auth"
	"github.com/tbourn/go-newscheck-backend/internal/config"
	"github.com/tbourn/go-newscheck-backend/internal/domain"
	"github.com/tbourn/go-newscheck-backend/internal/http/handlers"
	"github.com/tbourn/go-newscheck-backend/internal/http/middleware"
	"github.com/tbourn/go-newscheck-backend/internal/repo"
	"github.com/tbourn/go-newscheck-backend/internal/services"
)

// userResolver adapts AuthService.UserByEmail to middleware.UserResolver,
// which reports a missing user as (nil, nil).
func userResolver(svc *services.AuthService) middleware.UserResolver {
	return func(ctx context.Context, email string) (*domain.User, error) {
		u, err := svc.UserByEmail(ctx, email)
		if errors.Is(err, services.ErrUserNotFound) {
			return nil, nil
		}
		return u, err
	}
}

// idempotencyLookup reports whether a live record exists for (scope, key).
// Store errors count as a miss; the service repeats the lookup.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, scope, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and builds the services they depend on.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Identify: resolve the bearer token, never rejects
//  8. CORS and Security headers
//
// API routes then add the per user/IP limiter. POST /detect runs the
// idempotency validator first so replays skip that limiter; /register and
// /token also pass the per-IP credential limiter, which never skips.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) error {
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}
	authSvc, err := services.NewAuthService(db, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	detectSvc := &services.DetectionService{
		DB:             db,
		Classifier:     services.NewKeywordClassifier(cfg.Detect.Trigger),
		MaxTextRunes:   cfg.Detect.MaxTextRunes,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	h := handlers.New(authSvc, detectSvc, func(ctx context.Context) error { return repo.Ping(ctx, db) })

	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limit and response compression
	r.Use(limitBody(cfg.MaxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Session identification; protected routes add RequireUser
	r.Use(middleware.Identify(tokens, userResolver(authSvc)))

	// 8) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey, "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers; token and profile responses are never cached
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStoreRoutes: []string{path.Join(cfg.APIBasePath, "/token"), path.Join(cfg.APIBasePath, "/users/me")},
		BrowserPolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness
	r.GET("/health", handlers.Health)

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Token-bucket limiter per user/IP; only idempotent replays skip it.
	limit := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		AllowReplays().Handler()
	// Credential endpoints add a stricter per-IP bucket.
	authLimit := middleware.NewRateLimiter(cfg.AuthRateRPS, cfg.AuthRateBurst, middleware.KeyByIP()).
		Named("auth").Handler()
	idempotency := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(db),
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/", limit, h.Status)

		api.POST("/register", limit, authLimit, h.Register)
		api.POST("/token", limit, authLimit, h.Token)

		me := api.Group("/users/me", limit, middleware.RequireUser())
		me.GET("", h.Me)
		me.GET("/detections", h.History)

		api.POST("/detect", idempotency, limit, h.Detect)
	}
	return nil
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Values <= 0 disable it.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
