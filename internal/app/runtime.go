package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/users-console/internal/auth"
	"github.com/odyssey-erp/users-console/internal/observability"
	"github.com/odyssey-erp/users-console/internal/platform/cache"
	"github.com/odyssey-erp/users-console/internal/remote"
	"github.com/odyssey-erp/users-console/internal/shared"
	"github.com/odyssey-erp/users-console/internal/users"
	"github.com/odyssey-erp/users-console/internal/view"
)

const (
	testModeEnv       = "CONSOLE_TEST_MODE"
	sessionCookieName = "console_session"
	shutdownTimeout   = 10 * time.Second
)

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the CONSOLE_TEST_MODE flag once.
func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	detectTestMode()
}

// Runtime holds the long-lived dependencies of a running console.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Redis   *redis.Client
	Metrics *observability.Metrics
	Handler http.Handler
}

// NewRuntime connects to Redis and wires every handler into the router.
func NewRuntime(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = NewLogger(cfg)
	}
	redisClient, err := cache.New(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	sessionManager := shared.NewSessionManager(redisClient, sessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	metrics := observability.NewMetrics()
	remoteClient := remote.NewClient(remote.Options{
		BaseURL:  cfg.RemoteBaseURL,
		APIKey:   cfg.RemoteAPIKey,
		Timeout:  cfg.RemoteTimeout,
		Observer: metrics,
	})

	authHandler := auth.NewHandler(logger, auth.NewService(remoteClient), templates, sessionManager, csrfManager)
	usersHandler := users.NewHandler(logger, users.NewService(remoteClient), templates, csrfManager)

	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		Metrics:        metrics,
	})

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Redis:   redisClient,
		Metrics: metrics,
		Handler: router,
	}, nil
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts the server down gracefully.
func (rt *Runtime) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:         rt.Config.AppAddr,
		Handler:      rt.Handler,
		ReadTimeout:  rt.Config.AppReadTimeout,
		WriteTimeout: rt.Config.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info("starting http server", slog.String("addr", rt.Config.AppAddr), slog.String("remote", rt.Config.RemoteBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	rt.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Close releases the Redis connection pool.
func (rt *Runtime) Close() error {
	if rt == nil || rt.Redis == nil {
		return nil
	}
	return rt.Redis.Close()
}
