package auth

// Package auth contains domain-level types for the login flow, sessions, and
// internal assertions. It is pure and free of framework/adapter concerns.

import (
	"errors"
	"strings"
	"time"
)

// DefaultFlowTTL bounds how long an initiated login may wait for its callback.
const DefaultFlowTTL = 10 * time.Minute

// FlowState is the per-attempt record proving a callback belongs to a login we started.
// It is stored server-side keyed by an opaque per-browser flow key and consumed once.
type FlowState struct {
	State        string    `json:"state"`
	Nonce        string    `json:"nonce"`
	PKCEVerifier string    `json:"pkce_verifier"`
	Scopes       []string  `json:"scopes"`
	RedirectURI  string    `json:"redirect_uri"`
	ReturnTo     string    `json:"return_to,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

var errIncompleteFlow = errors.New("flow state is incomplete")

// Validate reports whether the flow carries every field the callback needs.
func (f FlowState) Validate() error {
	if strings.TrimSpace(f.State) == "" ||
		strings.TrimSpace(f.Nonce) == "" ||
		strings.TrimSpace(f.PKCEVerifier) == "" ||
		strings.TrimSpace(f.RedirectURI) == "" ||
		f.CreatedAt.IsZero() {
		return errIncompleteFlow
	}
	return nil
}

// ExpiredAt reports whether the flow is older than ttl at the given instant.
func (f FlowState) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	return now.Sub(f.CreatedAt) > ttl
}

// CanonicalIdentity is the normalized user record derived from provider claims.
// Optional fields are empty strings and Roles is never nil.
type CanonicalIdentity struct {
	Subject  string   `json:"sub"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	TenantID string   `json:"tid"`
	ObjectID string   `json:"oid"`
	Roles    []string `json:"roles"`
}

// TokenSet holds the raw provider tokens kept alongside a session.
type TokenSet struct {
	IDToken     string    `json:"id_token,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	TokenType   string    `json:"token_type,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresIn   int64     `json:"expires_in,omitempty"`
	Expiry      time.Time `json:"expiry,omitzero"`
}

// ProviderTokenResult is what a successful code exchange yields.
type ProviderTokenResult struct {
	IDTokenClaims map[string]any
	Tokens        TokenSet
}

// SessionRecord is the server-side record bound to an opaque session handle.
type SessionRecord struct {
	Handle    string            `json:"handle"`
	Identity  CanonicalIdentity `json:"identity"`
	Tokens    TokenSet          `json:"tokens"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Permanent bool              `json:"permanent"`
}

// ExpiredAt reports whether the record is past its absolute expiry.
func (s SessionRecord) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// CallbackParams are the query parameters the provider sends back to the redirect URI.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}
