package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-auth-bridge/config"
	"github.com/target/mmk-auth-bridge/internal/adapters/devauth"
	"github.com/target/mmk-auth-bridge/internal/adapters/memory"
	"github.com/target/mmk-auth-bridge/internal/adapters/oidc"
	redisadapter "github.com/target/mmk-auth-bridge/internal/adapters/redis"
	"github.com/target/mmk-auth-bridge/internal/data"
	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	"github.com/target/mmk-auth-bridge/internal/ports"
	"github.com/target/mmk-auth-bridge/internal/service"
)

// providerHTTPTimeout caps discovery, JWKS and token calls made to the identity provider.
const providerHTTPTimeout = 30 * time.Second

// ProviderConfig contains configuration for the identity provider.
type ProviderConfig struct {
	Auth       config.AuthConfig
	HTTPClient *http.Client // Optional
	Logger     *slog.Logger
}

// BuildIdentityProvider creates the identity provider for the configured auth mode.
// In oauth mode this runs OIDC discovery against the authority.
//
//nolint:ireturn // the provider is selected at runtime.
func BuildIdentityProvider(ctx context.Context, cfg ProviderConfig) (ports.IdentityProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if cfg.Logger != nil {
			cfg.Logger.Warn("dev auth enabled, every login signs in as the configured identity",
				"subject", cfg.Auth.DevAuth.Subject)
		}
		return devauth.NewProvider(devauth.Config{
			Subject:  cfg.Auth.DevAuth.Subject,
			Name:     cfg.Auth.DevAuth.Name,
			Email:    cfg.Auth.DevAuth.Email,
			TenantID: cfg.Auth.DevAuth.TenantID,
			Roles:    cfg.Auth.DevAuth.Roles,
		})

	case config.AuthModeOAuth:
		client := cfg.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: providerHTTPTimeout}
		}
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			Issuer:       cfg.Auth.Authority,
			LogoutURL:    cfg.Auth.LogoutURL,
			Prompt:       cfg.Auth.Prompt,
			HTTPClient:   client,
		})
		if err != nil {
			return nil, fmt.Errorf("build oidc provider: %w", err)
		}
		if cfg.Logger != nil {
			cfg.Logger.Info("oidc provider ready", "authority", cfg.Auth.Authority)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// StoreConfig contains the dependencies for the session and flow stores.
type StoreConfig struct {
	Session     config.SessionConfig
	DB          *sql.DB               // Required for the postgres backend
	RedisClient redis.UniversalClient // Required for the redis backend
	Encryptor   cryptoutil.Encryptor  // Optional
	Logger      *slog.Logger
}

// Stores bundles the stores for one backend.
type Stores struct {
	Sessions ports.SessionStore
	Flows    ports.FlowStore
	// SweepTargets lists stores that only shed expired records when swept.
	// Redis expires keys itself, so the redis backend has none.
	SweepTargets []service.SweepTarget
}

// BuildStores creates the session and flow stores for the configured backend.
func BuildStores(cfg StoreConfig) (Stores, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendMemory, "":
		sessions := memory.NewSessionStore(memory.SessionStoreOptions{})
		flows := memory.NewFlowStore(nil)
		return Stores{
			Sessions: sessions,
			Flows:    flows,
			SweepTargets: []service.SweepTarget{
				{Name: "sessions", Store: sessions},
				{Name: "flows", Store: flows},
			},
		}, nil

	case config.SessionBackendRedis:
		if cfg.RedisClient == nil {
			return Stores{}, errors.New("redis session backend requires a redis client")
		}
		prefix := cfg.Session.RedisPrefix
		return Stores{
			Sessions: redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{
				Client:    cfg.RedisClient,
				Prefix:    prefix + "session:",
				Encryptor: cfg.Encryptor,
			}),
			Flows: redisadapter.NewFlowStore(cfg.RedisClient, prefix+"flow:"),
		}, nil

	case config.SessionBackendPostgres:
		if cfg.DB == nil {
			return Stores{}, errors.New("postgres session backend requires a database")
		}
		sessions := data.NewSessionRepo(data.SessionRepoOptions{DB: cfg.DB, Encryptor: cfg.Encryptor})
		flows := memory.NewFlowStore(nil)
		return Stores{
			Sessions: sessions,
			Flows:    flows,
			SweepTargets: []service.SweepTarget{
				{Name: "sessions", Store: sessions},
				{Name: "flows", Store: flows},
			},
		}, nil

	default:
		return Stores{}, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}
}

// AuthConfig contains configuration for the auth service.
type AuthConfig struct {
	Config   *config.AppConfig
	Provider ports.IdentityProvider
	Stores   Stores
	Logger   *slog.Logger
}

// BuildAuthService wires the flow coordinator, assertion minter and session stores.
func BuildAuthService(cfg AuthConfig) (*service.AuthService, error) {
	if cfg.Config == nil {
		return nil, errors.New("auth service requires configuration")
	}
	appCfg := cfg.Config

	flows, err := service.NewFlowCoordinator(service.FlowCoordinatorOptions{
		Provider:        cfg.Provider,
		Flows:           cfg.Stores.Flows,
		FlowTTL:         appCfg.Session.FlowTTL,
		ExchangeTimeout: appCfg.Session.ExchangeTimeout,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build flow coordinator: %w", err)
	}

	var minter *service.AssertionMinter
	if appCfg.Assertion.Secret != "" {
		minter = service.NewAssertionMinter(service.AssertionMinterOptions{
			Secret:     []byte(appCfg.Assertion.Secret),
			Issuer:     appCfg.Assertion.Issuer,
			Audience:   appCfg.Assertion.Audience,
			DefaultTTL: appCfg.Assertion.TTL(),
			MaxTTL:     appCfg.Assertion.MaxTTL(),
		})
	} else if cfg.Logger != nil {
		cfg.Logger.Warn("INTERNAL_JWT_SECRET not set, /assertion is disabled")
	}

	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Flows:      flows,
		Sessions:   cfg.Stores.Sessions,
		Provider:   cfg.Provider,
		Minter:     minter,
		Scopes:     appCfg.Auth.Scopes,
		SessionTTL: appCfg.Session.TTL(),
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}
	return svc, nil
}
