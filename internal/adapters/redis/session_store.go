// Package redis provides Redis-backed session and login-flow stores for
// deployments that run more than one bridge process.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-auth-bridge/internal/adapters/sessionrecord"
	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

const (
	defaultSessionPrefix = "session:"
	maxCreateAttempts    = 3
)

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore keeps session records in Redis with a key TTL equal to the session lifetime.
// Provider tokens are sealed with the configured Encryptor before they are written.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	codec  sessionrecord.Codec
	now    func() time.Time
}

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Client    redis.UniversalClient
	Prefix    string               // Optional: defaults to "session:"
	Encryptor cryptoutil.Encryptor // Optional: defaults to a no-op encryptor
	Now       func() time.Time     // Optional: defaults to time.Now
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	s := &SessionStore{
		client: opts.Client,
		prefix: opts.Prefix,
		codec:  sessionrecord.NewCodec(opts.Encryptor),
		now:    opts.Now,
	}
	if s.prefix == "" {
		s.prefix = defaultSessionPrefix
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Create writes the record with SET NX so an existing handle is never overwritten.
func (s *SessionStore) Create(
	ctx context.Context,
	identity domainauth.CanonicalIdentity,
	tokens domainauth.TokenSet,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		return "", errors.New("session ttl must be positive")
	}
	now := s.now()
	for range maxCreateAttempts {
		handle, err := cryptoutil.RandomToken(cryptoutil.TokenBytes)
		if err != nil {
			return "", fmt.Errorf("generate session handle: %w", err)
		}
		data, err := s.codec.Marshal(domainauth.SessionRecord{
			Handle:    handle,
			Identity:  identity,
			Tokens:    tokens,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
			Permanent: true,
		})
		if err != nil {
			return "", err
		}
		ok, err := s.client.SetNX(ctx, s.prefix+handle, data, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return handle, nil
		}
	}
	return "", errors.New("could not allocate a unique session handle")
}

func (s *SessionStore) Get(ctx context.Context, handle string) (domainauth.SessionRecord, bool, error) {
	if handle == "" {
		return domainauth.SessionRecord{}, false, nil
	}

	data, err := s.client.Get(ctx, s.prefix+handle).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.SessionRecord{}, false, nil
		}
		return domainauth.SessionRecord{}, false, fmt.Errorf("redis get: %w", err)
	}

	rec, err := s.codec.Unmarshal(data)
	if err != nil {
		return domainauth.SessionRecord{}, false, err
	}

	// Key TTL and record expiry can disagree under clock skew; the record wins.
	if rec.ExpiredAt(s.now()) {
		if delErr := s.Destroy(ctx, handle); delErr != nil {
			return domainauth.SessionRecord{}, false, fmt.Errorf("cleanup expired session: %w", delErr)
		}
		return domainauth.SessionRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *SessionStore) Destroy(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.prefix+handle).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
