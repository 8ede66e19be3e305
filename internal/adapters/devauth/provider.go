// Package devauth provides a config-driven IdentityProvider for local development.
package devauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// Config controls the dev identity. Subject and Email are required.
type Config struct {
	Subject  string
	Name     string
	Email    string
	TenantID string
	Roles    []string
}

// Provider short-circuits the OAuth flow by redirecting straight back to our own
// callback with a fixed code. Exchange ignores the code and returns claims for the
// configured identity, echoing the flow's nonce so the normal checks still run.
type Provider struct {
	cfg Config
	now func() time.Time
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	cfg.Roles = append([]string(nil), cfg.Roles...)
	return &Provider{cfg: cfg, now: time.Now}, nil
}

func (p *Provider) AuthCodeURL(req ports.AuthRequest) (string, error) {
	if req.RedirectURI == "" {
		return "", errors.New("redirect URI is required")
	}
	u, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", "dev")
	q.Set("state", req.State)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.ProviderTokenResult, error) {
	roles := make([]any, 0, len(p.cfg.Roles))
	for _, r := range p.cfg.Roles {
		roles = append(roles, r)
	}
	claims := map[string]any{
		"sub":                p.cfg.Subject,
		"oid":                p.cfg.Subject,
		"name":               p.cfg.Name,
		"preferred_username": p.cfg.Email,
		"tid":                p.cfg.TenantID,
		"roles":              roles,
		"nonce":              in.Nonce,
	}
	return domainauth.ProviderTokenResult{
		IDTokenClaims: claims,
		Tokens: domainauth.TokenSet{
			AccessToken: "dev",
			TokenType:   "Bearer",
			Expiry:      p.now().Add(time.Hour),
		},
	}, nil
}

// EndSessionURL has no provider session to end; it returns the redirect unchanged.
func (p *Provider) EndSessionURL(postLogoutRedirect string) string {
	return postLogoutRedirect
}
