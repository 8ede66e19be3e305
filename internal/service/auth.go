package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = time.Hour

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Flows      *FlowCoordinator       // Required
	Sessions   ports.SessionStore     // Required
	Provider   ports.IdentityProvider // Required: end-session URLs
	Minter     *AssertionMinter       // Optional: without it IssueAssertion reports not_configured
	Scopes     []string               // Optional: defaults to openid profile email
	SessionTTL time.Duration          // Optional: defaults to DefaultSessionTTL
	Logger     *slog.Logger           // Optional
}

// AuthService orchestrates login, session lookup, assertion issuance and logout.
type AuthService struct {
	flows      *FlowCoordinator
	sessions   ports.SessionStore
	provider   ports.IdentityProvider
	minter     *AssertionMinter
	scopes     []string
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Flows == nil {
		return nil, errors.New("FlowCoordinator is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("IdentityProvider is required")
	}
	s := &AuthService{
		flows:      opts.Flows,
		sessions:   opts.Sessions,
		provider:   opts.Provider,
		minter:     opts.Minter,
		scopes:     opts.Scopes,
		sessionTTL: opts.SessionTTL,
		logger:     opts.Logger,
	}
	if len(s.scopes) == 0 {
		s.scopes = []string{"openid", "profile", "email"}
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.minter == nil {
		s.minter = NewAssertionMinter(AssertionMinterOptions{})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "auth_service")
	return s, nil
}

// SessionTTL reports the configured session lifetime.
func (s *AuthService) SessionTTL() time.Duration { return s.sessionTTL }

// FlowTTL reports how long a login attempt may wait for its callback.
func (s *AuthService) FlowTTL() time.Duration { return s.flows.FlowTTL() }

// BeginLoginInput describes where the provider should send the browser back to.
type BeginLoginInput struct {
	RedirectURI string
	ReturnTo    string
}

// BeginLogin starts a login attempt with the configured scopes.
func (s *AuthService) BeginLogin(ctx context.Context, in BeginLoginInput) (InitiateResult, error) {
	res, err := s.flows.Initiate(ctx, InitiateInput{
		Scopes:      s.scopes,
		RedirectURI: in.RedirectURI,
		ReturnTo:    in.ReturnTo,
	})
	if err != nil {
		return InitiateResult{}, fmt.Errorf("begin login: %w", err)
	}
	return res, nil
}

// CompleteLoginResult carries the new session handle and where to send the browser.
type CompleteLoginResult struct {
	Handle   string
	Identity domainauth.CanonicalIdentity
	ReturnTo string
}

// CompleteLogin finishes the flow, normalizes the ID token claims and creates a session.
// No session exists unless every step succeeded.
func (s *AuthService) CompleteLogin(
	ctx context.Context,
	flowKey string,
	params domainauth.CallbackParams,
) (*CompleteLoginResult, error) {
	res, err := s.flows.Complete(ctx, flowKey, params)
	if err != nil {
		return nil, err
	}

	identity := domainauth.Normalize(res.Provider.IDTokenClaims)
	if identity.Subject == "" {
		s.logger.WarnContext(ctx, "id token has no subject", "tid", identity.TenantID)
		return nil, apperrors.ProviderRejected("invalid_id_token", "id token has no subject", nil)
	}
	handle, err := s.sessions.Create(ctx, identity, res.Provider.Tokens, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.InfoContext(ctx, "login completed", "sub", identity.Subject, "tid", identity.TenantID)

	return &CompleteLoginResult{Handle: handle, Identity: identity, ReturnTo: res.ReturnTo}, nil
}

// GetSession resolves a handle to a live session or a not_authenticated error.
func (s *AuthService) GetSession(ctx context.Context, handle string) (domainauth.SessionRecord, error) {
	if handle == "" {
		return domainauth.SessionRecord{}, apperrors.NotAuthenticated("no session")
	}
	rec, ok, err := s.sessions.Get(ctx, handle)
	if err != nil {
		return domainauth.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return domainauth.SessionRecord{}, apperrors.NotAuthenticated("session expired or unknown")
	}
	return rec, nil
}

// IssueAssertion mints an internal assertion for the session's identity.
// The session is checked before the signing secret.
func (s *AuthService) IssueAssertion(ctx context.Context, handle string, ttl time.Duration) (Assertion, error) {
	rec, err := s.GetSession(ctx, handle)
	if err != nil {
		return Assertion{}, err
	}
	a, err := s.minter.Mint(rec.Identity, ttl)
	if err != nil {
		return Assertion{}, err
	}
	return a, nil
}

// Logout destroys the session and returns the provider end-session URL that brings
// the browser back to postLogoutRedirect. The session is gone even if the caller
// never follows the redirect.
func (s *AuthService) Logout(ctx context.Context, handle, postLogoutRedirect string) (string, error) {
	if handle != "" {
		if err := s.sessions.Destroy(ctx, handle); err != nil {
			return "", fmt.Errorf("destroy session: %w", err)
		}
	}
	return s.provider.EndSessionURL(postLogoutRedirect), nil
}
