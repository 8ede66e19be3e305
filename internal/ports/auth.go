package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
)

// AuthRequest carries what the provider needs to build an authorization URL.
type AuthRequest struct {
	State        string
	Nonce        string
	PKCEVerifier string // the S256 challenge is derived from this
	Scopes       []string
	RedirectURI  string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code         string
	PKCEVerifier string
	Nonce        string
	RedirectURI  string
}

// IdentityProvider performs the OIDC authorization-code exchange against an external IdP.
// Exchange must fail with an AppError coded provider_rejected for provider error payloads
// and provider_unreachable for transport failures or timeouts.
type IdentityProvider interface {
	AuthCodeURL(req AuthRequest) (string, error)
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.ProviderTokenResult, error)
	// EndSessionURL returns the provider logout URL that sends the browser back to postLogoutRedirect.
	EndSessionURL(postLogoutRedirect string) string
}

// FlowStore holds in-progress login attempts keyed by an opaque per-browser flow key.
type FlowStore interface {
	Put(ctx context.Context, key string, flow domainauth.FlowState, ttl time.Duration) error
	// Take atomically returns and removes the flow. Of several concurrent Take calls
	// for the same key, at most one observes ok == true.
	Take(ctx context.Context, key string) (flow domainauth.FlowState, ok bool, err error)
}

// SessionStore binds opaque session handles to session records.
type SessionStore interface {
	Create(ctx context.Context, identity domainauth.CanonicalIdentity, tokens domainauth.TokenSet, ttl time.Duration) (string, error)
	// Get returns ok == false for unknown and expired handles.
	Get(ctx context.Context, handle string) (rec domainauth.SessionRecord, ok bool, err error)
	// Destroy is idempotent.
	Destroy(ctx context.Context, handle string) error
}

// Sweeper is implemented by stores that need explicit purging of expired records.
type Sweeper interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
