package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/perf"
	"github.com/pulsechat/pulsechat-server/internal/store/memory"
	redisstore "github.com/pulsechat/pulsechat-server/internal/store/redis"
	"github.com/pulsechat/pulsechat-server/internal/store/sqlite"
	transporthttp "github.com/pulsechat/pulsechat-server/internal/transport/http"
)

// App wires together core, store and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           core.Store
	metrics         *perf.Metrics
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.StoreBackend).Msg("store initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(auth.NewMemoryRegistry(), jwtConfig)

	metrics := perf.NewMetrics(10)

	hub := core.NewHub(st, core.HubConfig{
		InactivityThreshold: cfg.InactivityThreshold,
		PresenceSweep:       cfg.PresenceSweep,
		TypingThrottle:      cfg.TypingThrottle,
		NotificationTTL:     time.Duration(cfg.NotificationDays) * 24 * time.Hour,
	}, metrics, logger)

	server := transporthttp.NewServer(hub, authService, metrics, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		metrics:         metrics,
		log:             logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return sqlite.New(cfg.DatabasePath, cfg.HistoryCap, cfg.NotificationCap)
	case "redis":
		return redisstore.New(ctx, cfg.RedisAddr, cfg.HistoryCap, cfg.NotificationCap)
	default:
		return memory.New(cfg.HistoryCap, cfg.NotificationCap), nil
	}
}

// Run starts the hub and HTTP server and blocks until context cancellation
// or fatal error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.cleanup()
	return err
}

// cleanup closes the store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
