// Package auth contains hand-written test doubles for auth ports.
// They are lightweight and suitable for scenario tests without codegen.
package auth

import (
	"context"
	"net/url"
	"sync"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

var _ ports.IdentityProvider = (*FakeIdentityProvider)(nil)

// FakeIdentityProvider simulates an IdP that accepts any code and returns fixed
// claims, echoing the nonce it was given. It records the last request it saw.
// Safe for concurrent use.
type FakeIdentityProvider struct {
	AuthURL   string
	LogoutURL string
	Claims    map[string]any
	Tokens    domainauth.TokenSet

	// ExchangeFunc, when set, replaces the default Exchange behavior.
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.ProviderTokenResult, error)

	mu            sync.Mutex
	lastAuth      ports.AuthRequest
	lastExchange  ports.ExchangeInput
	exchangeCalls int
}

// NewFakeIdentityProvider returns a provider with Azure-shaped default claims.
func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{
		AuthURL:   "https://idp.example.com/authorize",
		LogoutURL: "https://idp.example.com/logout",
		Claims: map[string]any{
			"sub":                "mock-sub-1",
			"oid":                "mock-oid-1",
			"tid":                "mock-tenant",
			"name":               "Mock User",
			"preferred_username": "mock.user@example.com",
			"roles":              []any{"Reader"},
		},
		Tokens: domainauth.TokenSet{IDToken: "mock-id-token", AccessToken: "mock-access-token", TokenType: "Bearer"},
	}
}

func (f *FakeIdentityProvider) AuthCodeURL(req ports.AuthRequest) (string, error) {
	f.mu.Lock()
	f.lastAuth = req
	f.mu.Unlock()

	u, err := url.Parse(f.AuthURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("state", req.State)
	q.Set("nonce", req.Nonce)
	q.Set("redirect_uri", req.RedirectURI)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *FakeIdentityProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ProviderTokenResult, error) {
	f.mu.Lock()
	f.lastExchange = in
	f.exchangeCalls++
	f.mu.Unlock()

	if f.ExchangeFunc != nil {
		return f.ExchangeFunc(ctx, in)
	}
	claims := make(map[string]any, len(f.Claims)+1)
	for k, v := range f.Claims {
		claims[k] = v
	}
	claims["nonce"] = in.Nonce
	return domainauth.ProviderTokenResult{IDTokenClaims: claims, Tokens: f.Tokens}, nil
}

func (f *FakeIdentityProvider) EndSessionURL(postLogoutRedirect string) string {
	if f.LogoutURL == "" {
		return postLogoutRedirect
	}
	return f.LogoutURL + "?post_logout_redirect_uri=" + url.QueryEscape(postLogoutRedirect)
}

// LastAuthRequest returns the most recent AuthCodeURL input.
func (f *FakeIdentityProvider) LastAuthRequest() ports.AuthRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

// LastExchange returns the most recent Exchange input.
func (f *FakeIdentityProvider) LastExchange() ports.ExchangeInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastExchange
}

// ExchangeCalls reports how many times Exchange ran.
func (f *FakeIdentityProvider) ExchangeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls
}
