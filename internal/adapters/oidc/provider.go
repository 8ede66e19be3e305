// Package oidc implements ports.IdentityProvider against an OpenID Connect provider
// using go-oidc for discovery and ID token verification and x/oauth2 for the
// authorization-code + PKCE exchange.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// Provider implements ports.IdentityProvider using OIDC/OAuth2.
type Provider struct {
	config     oauth2.Config
	httpClient *http.Client
	logoutURL  string
	prompt     string
	verifier   *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	// Issuer is the authority URL; discovery is fetched from Issuer + "/.well-known/openid-configuration".
	Issuer string
	// LogoutURL overrides the discovered end_session_endpoint (optional).
	LogoutURL string
	// Prompt is sent as the prompt parameter when non-empty (e.g. "select_account").
	Prompt     string
	HTTPClient *http.Client     // Optional, defaults to a client with a 30s timeout
	Now        func() time.Time // Optional, clock for ID token expiry checks
}

// discoveryExtras are discovery fields go-oidc does not surface directly.
type discoveryExtras struct {
	EndSessionEndpoint string `json:"end_session_endpoint"`
}

// NewProvider runs OIDC discovery against the issuer and builds the provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.Issuer == "" {
		return nil, errors.New("issuer is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(config.Issuer, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	p := &Provider{
		config: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     op.Endpoint(),
		},
		httpClient: httpClient,
		logoutURL:  config.LogoutURL,
		prompt:     config.Prompt,
		verifier:   op.Verifier(&gooidc.Config{ClientID: config.ClientID, Now: config.Now}),
	}

	if p.logoutURL == "" {
		var extras discoveryExtras
		if claimsErr := op.Claims(&extras); claimsErr == nil {
			p.logoutURL = extras.EndSessionEndpoint
		}
	}
	return p, nil
}

// oauthConfig returns a per-request copy bound to the flow's redirect URI and scopes.
func (p *Provider) oauthConfig(redirectURI string, scopes []string) *oauth2.Config {
	cfg := p.config
	cfg.RedirectURL = redirectURI
	cfg.Scopes = scopes
	return &cfg
}

// AuthCodeURL builds the authorization URL with state, nonce and an S256 PKCE challenge.
func (p *Provider) AuthCodeURL(req ports.AuthRequest) (string, error) {
	if req.RedirectURI == "" {
		return "", errors.New("redirect URI is required")
	}
	if req.State == "" || req.Nonce == "" || req.PKCEVerifier == "" {
		return "", errors.New("state, nonce and PKCE verifier are required")
	}
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", req.Nonce),
		oauth2.S256ChallengeOption(req.PKCEVerifier),
	}
	if p.prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", p.prompt))
	}
	return p.oauthConfig(req.RedirectURI, req.Scopes).AuthCodeURL(req.State, opts...), nil
}

// Exchange redeems the code, verifies the ID token and checks its nonce.
// Failures are classified into provider_rejected, provider_unreachable or csrf_or_expired.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ProviderTokenResult, error) {
	if in.Code == "" {
		return domainauth.ProviderTokenResult{}, apperrors.ProviderRejected("invalid_request", "authorization code is missing", nil)
	}
	if in.Nonce == "" || in.PKCEVerifier == "" {
		return domainauth.ProviderTokenResult{}, errors.New("nonce and PKCE verifier are required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	cfg := p.oauthConfig(in.RedirectURI, nil)
	tok, err := cfg.Exchange(ctx, in.Code, oauth2.VerifierOption(in.PKCEVerifier))
	if err != nil {
		return domainauth.ProviderTokenResult{}, classifyExchangeError(err)
	}

	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return domainauth.ProviderTokenResult{}, apperrors.ProviderRejected("invalid_id_token", "token response has no id_token", nil)
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		if ctx.Err() != nil {
			return domainauth.ProviderTokenResult{}, apperrors.ProviderUnreachable(err)
		}
		return domainauth.ProviderTokenResult{}, apperrors.ProviderRejected("invalid_id_token", "id token failed verification", err)
	}
	if !cryptoutil.Equal(idTok.Nonce, in.Nonce) {
		return domainauth.ProviderTokenResult{}, apperrors.CsrfOrExpired("id token nonce does not match the login flow")
	}

	claims := map[string]any{}
	if err := idTok.Claims(&claims); err != nil {
		return domainauth.ProviderTokenResult{}, apperrors.ProviderRejected("invalid_id_token", "id token claims are not a JSON object", err)
	}

	scope, _ := tok.Extra("scope").(string)
	return domainauth.ProviderTokenResult{
		IDTokenClaims: claims,
		Tokens: domainauth.TokenSet{
			IDToken:     rawID,
			AccessToken: tok.AccessToken,
			TokenType:   tok.TokenType,
			Scope:       scope,
			ExpiresIn:   tok.ExpiresIn,
			Expiry:      tok.Expiry,
		},
	}, nil
}

func classifyExchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode == "" && re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			return apperrors.ProviderUnreachable(err)
		}
		code := re.ErrorCode
		if code == "" {
			code = "token_endpoint_error"
		}
		return apperrors.ProviderRejected(code, re.ErrorDescription, err)
	}
	return apperrors.ProviderUnreachable(err)
}

// EndSessionURL returns the provider logout URL carrying post_logout_redirect_uri.
// Without a known end-session endpoint the browser goes straight to postLogoutRedirect.
func (p *Provider) EndSessionURL(postLogoutRedirect string) string {
	if p.logoutURL == "" {
		return postLogoutRedirect
	}
	u, err := url.Parse(p.logoutURL)
	if err != nil {
		return postLogoutRedirect
	}
	if postLogoutRedirect != "" {
		q := u.Query()
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
