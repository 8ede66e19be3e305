package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SessionBackend selects where sessions and login flows are kept.
type SessionBackend string

const (
	// SessionBackendMemory keeps everything in process. Sessions do not survive restarts.
	SessionBackendMemory SessionBackend = "memory"
	// SessionBackendRedis keeps sessions and flows in Redis.
	SessionBackendRedis SessionBackend = "redis"
	// SessionBackendPostgres keeps sessions in Postgres and flows in memory.
	SessionBackendPostgres SessionBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackend.
func (b *SessionBackend) UnmarshalText(text []byte) error {
	v := SessionBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case SessionBackendMemory, SessionBackendRedis, SessionBackendPostgres:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid SessionBackend: %q (valid options: memory, redis, postgres)", v)
	}
}

// SessionConfig controls session lifetime, login flow bounds and storage.
type SessionConfig struct {
	// TTLMinutes is the absolute session lifetime in minutes.
	TTLMinutes int `env:"SESSION_TTL_MIN" envDefault:"60"`

	// FlowTTL bounds how long a login may wait for its callback.
	FlowTTL time.Duration `env:"FLOW_TTL" envDefault:"10m"`

	// ExchangeTimeout bounds the code-for-token call to the provider.
	ExchangeTimeout time.Duration `env:"EXCHANGE_TIMEOUT" envDefault:"15s"`

	Backend SessionBackend `env:"SESSION_BACKEND" envDefault:"memory"`

	// EncryptionKey seals provider tokens stored in redis or postgres.
	// A 64-char hex string is used as-is; anything else is hashed to 32 bytes.
	EncryptionKey string `env:"SESSION_ENCRYPTION_KEY"`

	// RedisPrefix namespaces session and flow keys.
	RedisPrefix string `env:"SESSION_REDIS_PREFIX" envDefault:"authbridge:"`
}

// Sanitize clamps lifetimes to sane minimums.
func (s *SessionConfig) Sanitize() {
	if s.TTLMinutes < 1 {
		s.TTLMinutes = 1
	}
	if s.FlowTTL < time.Minute {
		s.FlowTTL = time.Minute
	}
	if s.ExchangeTimeout <= 0 {
		s.ExchangeTimeout = 15 * time.Second
	}
	if s.Backend == "" {
		s.Backend = SessionBackendMemory
	}
	s.EncryptionKey = strings.TrimSpace(s.EncryptionKey)
}

// Validate requires an encryption key for out-of-process backends outside dev mode.
func (s *SessionConfig) Validate(isDev bool) error {
	if s.Backend != SessionBackendMemory && s.EncryptionKey == "" && !isDev {
		return fmt.Errorf("SESSION_ENCRYPTION_KEY is required for the %s session backend", s.Backend)
	}
	return nil
}

// TTL returns the session lifetime.
func (s *SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// CookieConfig controls the session and flow cookies.
type CookieConfig struct {
	Secure   bool   `env:"COOKIE_SECURE"     envDefault:"true"`
	SameSite string `env:"COOKIE_SAMESITE"   envDefault:"Lax"`
	Domain   string `env:"APP_COOKIE_DOMAIN" envDefault:""`
}

// Sanitize normalizes SameSite to Lax or Strict.
func (c *CookieConfig) Sanitize() {
	switch strings.ToLower(strings.TrimSpace(c.SameSite)) {
	case "strict":
		c.SameSite = "Strict"
	default:
		c.SameSite = "Lax"
	}
	c.Domain = strings.TrimSpace(c.Domain)
}

// SameSiteMode maps the configured value to net/http.
func (c *CookieConfig) SameSiteMode() http.SameSite {
	if c.SameSite == "Strict" {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

// MinAssertionSecretBytes is the shortest accepted HS256 secret.
const MinAssertionSecretBytes = 32

// AssertionConfig controls internal assertions handed to relying parties.
type AssertionConfig struct {
	// Secret is optional; without it the assertion endpoint reports not configured.
	Secret        string `env:"INTERNAL_JWT_SECRET"`
	Issuer        string `env:"INTERNAL_JWT_ISSUER"      envDefault:"wxo-auth-service"`
	Audience      string `env:"INTERNAL_JWT_AUDIENCE"    envDefault:"watsonx-orchestrate"`
	TTLMinutes    int    `env:"INTERNAL_JWT_TTL_MIN"     envDefault:"60"`
	MaxTTLMinutes int    `env:"INTERNAL_JWT_MAX_TTL_MIN" envDefault:"60"`
}

// Sanitize keeps the default TTL within the maximum.
func (a *AssertionConfig) Sanitize() {
	if a.MaxTTLMinutes < 1 {
		a.MaxTTLMinutes = 1
	}
	if a.TTLMinutes < 1 || a.TTLMinutes > a.MaxTTLMinutes {
		a.TTLMinutes = a.MaxTTLMinutes
	}
}

// Validate rejects a secret that is set but too short.
func (a *AssertionConfig) Validate() error {
	if a.Secret != "" && len(a.Secret) < MinAssertionSecretBytes {
		return fmt.Errorf("INTERNAL_JWT_SECRET must be at least %d bytes", MinAssertionSecretBytes)
	}
	if a.Issuer == "" || a.Audience == "" {
		return errors.New("INTERNAL_JWT_ISSUER and INTERNAL_JWT_AUDIENCE cannot be empty")
	}
	return nil
}

// TTL returns the default assertion lifetime.
func (a *AssertionConfig) TTL() time.Duration { return time.Duration(a.TTLMinutes) * time.Minute }

// MaxTTL returns the upper bound for any assertion lifetime.
func (a *AssertionConfig) MaxTTL() time.Duration { return time.Duration(a.MaxTTLMinutes) * time.Minute }
