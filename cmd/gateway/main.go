package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/events"
	"github.com/your-org/edge-gateway/internal/route"
	"github.com/your-org/edge-gateway/internal/service/auth"
	"github.com/your-org/edge-gateway/internal/service/cache"
	httpTransport "github.com/your-org/edge-gateway/internal/transport/http"
	"github.com/your-org/edge-gateway/pkg/logger"
	"github.com/your-org/edge-gateway/pkg/resilience/ratelimit"
)

var (
	// Version is set during build
	Version = "dev"
	// BuildTime is set during build
	BuildTime = "unknown"
	// GitCommit is set during build
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("edge-gateway %s\n", Version)
		fmt.Printf("Build time: %s\n", BuildTime)
		fmt.Printf("Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting edge-gateway",
		logger.String("version", Version),
		logger.String("commit", GitCommit),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx, cfg, *configPath)
	if err != nil {
		logger.Fatal("failed to initialize application", logger.Err(err))
	}

	app.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", logger.String("signal", sig.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", logger.Err(err))
	}

	logger.Info("edge-gateway stopped")
}

// App holds all application components.
type App struct {
	httpServer   *httpTransport.Server
	redisClient  redis.UniversalClient
	cacheService *cache.Service
	authService  *auth.Service
	bootstrapper *route.Bootstrapper
	listener     *events.Listener
	watcher      *config.Watcher
}

// initializeApp creates and wires all application components.
func initializeApp(ctx context.Context, cfg *config.Config, configPath string) (*App, error) {
	redisClient := cache.NewUniversalClient(cfg.Redis)

	cacheService := cache.NewService(redisClient, cfg.Cache)
	if err := cacheService.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start cache service: %w", err)
	}

	authService := auth.NewService(ctx, cacheService, *cfg)

	registry := route.NewRegistry()
	bootstrapper := route.NewBootstrapper(registry, cfg.ControlPlane, cfg.Backend)
	if cfg.ControlPlane.URL != "" {
		if err := bootstrapper.Refresh(ctx); err != nil {
			// The event stream repairs the table once the control plane
			// comes back; starting with an empty table is acceptable
			logger.Warn("initial route bootstrap failed", logger.Err(err))
		}
	}

	handler := events.NewHandler(registry, cacheService, bootstrapper, cfg.Backend.URL)
	listener := events.NewListener(redisClient, cfg.Events, handler)

	var opts []httpTransport.ServerOption
	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewLimiter(cfg.RateLimit, redisClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		opts = append(opts, httpTransport.WithRateLimiter(limiter))
	}

	httpServer := httpTransport.NewServer(cfg, authService, registry, cacheService, Version, opts...)

	var watcher *config.Watcher
	if configPath != "" {
		w, err := config.NewWatcher(configPath, logger.L())
		if err != nil {
			logger.Warn("config watching unavailable", logger.Err(err))
		} else {
			watcher = w
		}
	}

	return &App{
		httpServer:   httpServer,
		redisClient:  redisClient,
		cacheService: cacheService,
		authService:  authService,
		bootstrapper: bootstrapper,
		listener:     listener,
		watcher:      watcher,
	}, nil
}

// Start launches the background components and the HTTP server.
func (a *App) Start(ctx context.Context) {
	a.listener.Start(ctx)

	if a.watcher != nil {
		updates, err := a.watcher.Watch(ctx)
		if err != nil {
			logger.Warn("config watch failed to start", logger.Err(err))
		} else {
			go a.applyConfigUpdates(ctx, updates)
		}
	}

	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Fatal("HTTP server error", logger.Err(err))
		}
	}()

	logger.Info("application started")
}

// applyConfigUpdates picks up runtime-tunable settings from reloaded
// configs. Structural settings require a restart.
func (a *App) applyConfigUpdates(ctx context.Context, updates <-chan config.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := logger.SetLevel(update.Config.Logging.Level); err != nil {
				logger.Warn("invalid log level in reloaded config",
					logger.String("level", update.Config.Logging.Level),
					logger.Err(err),
				)
			}
			// Credentials or endpoints may have rotated
			a.authService.EvictDecoders()
			logger.Info("runtime configuration applied")
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", logger.Err(err))
	}

	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			logger.Error("failed to close config watcher", logger.Err(err))
		}
	}

	if err := a.redisClient.Close(); err != nil {
		logger.Error("failed to close redis client", logger.Err(err))
	}

	return nil
}
