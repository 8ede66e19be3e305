package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-auth-bridge/config"
	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	"github.com/target/mmk-auth-bridge/internal/ports"
	"github.com/target/mmk-auth-bridge/internal/service"
	"golang.org/x/sync/errgroup"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth *service.AuthService
	// Sweeper is nil when the backend expires records on its own.
	Sweeper *service.SweeperService
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB               // Optional: postgres backend only
	RedisClient redis.UniversalClient // Optional: redis backend only
	// Provider overrides the configured identity provider (tests).
	Provider ports.IdentityProvider
	Logger   *slog.Logger
}

// NewServices builds the provider, stores and services for the configured backend.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps require configuration")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	provider := deps.Provider
	if provider == nil {
		var err error
		provider, err = BuildIdentityProvider(ctx, ProviderConfig{Auth: cfg.Auth, Logger: logger})
		if err != nil {
			return ServiceContainer{}, err
		}
	}

	// Memory-backed tokens never leave the process and stay unsealed.
	var encryptor cryptoutil.Encryptor
	if cfg.Session.Backend != config.SessionBackendMemory {
		encryptor = CreateEncryptor(cfg.Session.EncryptionKey, logger)
	}
	stores, err := BuildStores(StoreConfig{
		Session:     cfg.Session,
		DB:          deps.DB,
		RedisClient: deps.RedisClient,
		Encryptor:   encryptor,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	auth, err := BuildAuthService(AuthConfig{Config: cfg, Provider: provider, Stores: stores, Logger: logger})
	if err != nil {
		return ServiceContainer{}, err
	}

	container := ServiceContainer{Auth: auth}
	if len(stores.SweepTargets) > 0 {
		sweeper, sweepErr := service.NewSweeperService(service.SweeperServiceOptions{
			Targets: stores.SweepTargets,
			Config:  cfg.Sweeper,
			Logger:  logger,
		})
		if sweepErr != nil {
			return ServiceContainer{}, fmt.Errorf("build sweeper: %w", sweepErr)
		}
		container.Sweeper = sweeper
	}
	return container, nil
}

// ServiceOrchestrationConfig contains everything needed to run the enabled services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// buildBackgroundServices lists the runnable services for the enabled modes.
func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) ([]backgroundService, error) {
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return nil, fmt.Errorf("determine enabled services: %w", err)
	}

	var out []backgroundService
	if enabled[config.ServiceModeHTTP] {
		server, serverErr := NewHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
		if serverErr != nil {
			return nil, serverErr
		}
		timeout := cfg.Config.HTTP.ShutdownTimeout
		out = append(out, backgroundService{
			mode: config.ServiceModeHTTP,
			name: "http",
			start: func(ctx context.Context) error {
				return ServeHTTP(ctx, server, timeout, logger)
			},
		})
	}

	if enabled[config.ServiceModeSweeper] {
		if cfg.Services.Sweeper == nil {
			logger.Info("sweeper enabled but the session backend expires records itself, skipping",
				"backend", cfg.Config.Session.Backend)
		} else {
			sweeper := cfg.Services.Sweeper
			out = append(out, backgroundService{
				mode: config.ServiceModeSweeper,
				name: "sweeper",
				start: func(ctx context.Context) error {
					if runErr := sweeper.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
						return runErr
					}
					return nil
				},
			})
		}
	}

	if len(out) == 0 {
		return nil, errors.New("no runnable services enabled")
	}
	return out, nil
}

// RunServicesWithShutdown runs all enabled services and handles graceful shutdown.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	services, err := buildBackgroundServices(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServices(ctx, services, logger)
}

// runServices starts every service and waits for all of them. The first failure
// cancels the others.
func runServices(ctx context.Context, services []backgroundService, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", svc.name, "mode", svc.mode)
			if err := svc.start(gctx); err != nil {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.InfoContext(gctx, "background service stopped", "service", svc.name)
			return nil
		})
	}
	return g.Wait()
}
