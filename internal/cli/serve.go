package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/config"
	httpapi "github.com/tbourn/go-newscheck-backend/internal/http"
	"github.com/tbourn/go-newscheck-backend/internal/observability"
	"github.com/tbourn/go-newscheck-backend/internal/repo"
	"github.com/tbourn/go-newscheck-backend/internal/sysutil"
)

// purgeInterval is how often expired idempotency records are deleted.
const purgeInterval = time.Hour

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Usage:

	newscheck serve
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, version, nil)
		},
	}
}

// run wires the service and serves until ctx is done, then drains in-flight
// requests within cfg.ShutdownTimeout. When ready is non-nil it receives the
// bound address once the listener is up.
func run(ctx context.Context, cfg config.Config, version string, ready chan<- string) error {
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(version, "dev"))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(ctx, repo.Options{
		URL:             cfg.DB.URL,
		ConnectAttempts: cfg.DB.ConnectAttempts,
		ConnectDelay:    cfg.DB.ConnectDelay,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		Tracing:         cfg.OTEL.Enabled,
		Debug:           cfg.LogLevel == "debug",
	})
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(db) }()

	if cfg.DB.AutoMigrate {
		n, err := repo.Migrate(ctx, db)
		if err != nil {
			return err
		}
		log.Info().Int("applied", n).Msg("migrations up to date")
	}

	r := gin.New()
	if err := httpapi.RegisterRoutes(r, db, cfg); err != nil {
		return err
	}
	srv := newHTTPServer(cfg, r)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	log.Info().Str("addr", ln.Addr().String()).Str("version", version).Msg("server starting")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	pctx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeLoop(pctx, db, purgeInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func newHTTPServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// purgeLoop deletes expired idempotency records every interval until ctx
// is done.
func purgeLoop(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged idempotency keys")
			}
		}
	}
}
