package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-bridge/internal/errors"
)

// Assertion defaults expected by watsonx Orchestrate relying parties.
const (
	DefaultAssertionIssuer   = "wxo-auth-service"
	DefaultAssertionAudience = "watsonx-orchestrate"
	DefaultAssertionTTL      = time.Hour
)

// AssertionClaims is the payload of an internal assertion. It never carries provider tokens.
type AssertionClaims struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	TenantID string   `json:"tid"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Assertion is a signed internal token and its decoded claims.
type Assertion struct {
	Token     string
	ExpiresAt time.Time
	Claims    AssertionClaims
}

// AssertionMinterOptions configures an AssertionMinter.
type AssertionMinterOptions struct {
	Secret     []byte           // Optional: without it Mint reports not_configured
	Issuer     string           // Optional: defaults to DefaultAssertionIssuer
	Audience   string           // Optional: defaults to DefaultAssertionAudience
	DefaultTTL time.Duration    // Optional: used when Mint gets a non-positive ttl
	MaxTTL     time.Duration    // Optional: upper bound for any ttl, defaults to DefaultAssertionTTL
	Now        func() time.Time // Optional: defaults to time.Now
}

// AssertionMinter issues HS256 assertions that relying parties verify with the shared secret.
type AssertionMinter struct {
	secret     []byte
	issuer     string
	audience   string
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
}

// NewAssertionMinter constructs an AssertionMinter. A missing secret is not an error here.
func NewAssertionMinter(opts AssertionMinterOptions) *AssertionMinter {
	m := &AssertionMinter{
		secret:     append([]byte(nil), opts.Secret...),
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		defaultTTL: opts.DefaultTTL,
		maxTTL:     opts.MaxTTL,
		now:        opts.Now,
	}
	if m.issuer == "" {
		m.issuer = DefaultAssertionIssuer
	}
	if m.audience == "" {
		m.audience = DefaultAssertionAudience
	}
	if m.maxTTL <= 0 {
		m.maxTTL = DefaultAssertionTTL
	}
	if m.defaultTTL <= 0 || m.defaultTTL > m.maxTTL {
		m.defaultTTL = m.maxTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Configured reports whether a signing secret is present.
func (m *AssertionMinter) Configured() bool { return len(m.secret) > 0 }

// Mint signs an assertion for identity valid for min(ttl, MaxTTL).
func (m *AssertionMinter) Mint(identity domainauth.CanonicalIdentity, ttl time.Duration) (Assertion, error) {
	if !m.Configured() {
		return Assertion{}, apperrors.NotConfigured("internal assertion signing secret is not configured")
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	ttl = min(ttl, m.maxTTL)

	subject := identity.Subject
	if subject == "" {
		subject = identity.ObjectID
	}
	roles := identity.Roles
	if roles == nil {
		roles = []string{}
	}

	now := m.now()
	claims := AssertionClaims{
		Name:     identity.Name,
		Email:    identity.Email,
		TenantID: identity.TenantID,
		Roles:    append([]string(nil), roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Assertion{}, fmt.Errorf("sign assertion: %w", err)
	}
	return Assertion{Token: signed, ExpiresAt: claims.ExpiresAt.Time, Claims: claims}, nil
}

// Verify parses and validates an assertion issued by this minter: HS256 only,
// matching issuer and audience, and a live exp/nbf window.
func (m *AssertionMinter) Verify(token string) (*AssertionClaims, error) {
	if !m.Configured() {
		return nil, apperrors.NotConfigured("internal assertion signing secret is not configured")
	}
	claims := &AssertionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify assertion: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("verify assertion: token is not valid")
	}
	return claims, nil
}
