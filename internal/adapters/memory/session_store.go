// Package memory provides in-process adapters for sessions and login flows.
// They are the default backend and the reference for the redis/postgres adapters.
package memory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/target/mmk-auth-bridge/internal/data/cryptoutil"
	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
	"github.com/target/mmk-auth-bridge/internal/ports"
)

const (
	shardCount        = 32
	maxCreateAttempts = 3
)

var (
	_ ports.SessionStore = (*SessionStore)(nil)
	_ ports.Sweeper      = (*SessionStore)(nil)
)

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.SessionRecord
}

// SessionStore keeps sessions in sharded maps so unrelated handles do not contend.
// Operations on one handle are serialized by its shard lock.
type SessionStore struct {
	shards [shardCount]*sessionShard
	now    func() time.Time
}

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Now func() time.Time // Optional: defaults to time.Now
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	s := &SessionStore{now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}
	for i := range s.shards {
		s.shards[i] = &sessionShard{sessions: make(map[string]domainauth.SessionRecord)}
	}
	return s
}

func (s *SessionStore) shard(handle string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(handle))
	return s.shards[h.Sum32()%shardCount]
}

func (s *SessionStore) Create(
	_ context.Context,
	identity domainauth.CanonicalIdentity,
	tokens domainauth.TokenSet,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		return "", errors.New("session ttl must be positive")
	}
	now := s.now()
	identity.Roles = slices.Clone(identity.Roles)
	for range maxCreateAttempts {
		handle, err := cryptoutil.RandomToken(cryptoutil.TokenBytes)
		if err != nil {
			return "", fmt.Errorf("generate session handle: %w", err)
		}
		sh := s.shard(handle)
		sh.mu.Lock()
		if _, exists := sh.sessions[handle]; exists {
			sh.mu.Unlock()
			continue
		}
		sh.sessions[handle] = domainauth.SessionRecord{
			Handle:    handle,
			Identity:  identity,
			Tokens:    tokens,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
			Permanent: true,
		}
		sh.mu.Unlock()
		return handle, nil
	}
	return "", errors.New("could not allocate a unique session handle")
}

func (s *SessionStore) Get(_ context.Context, handle string) (domainauth.SessionRecord, bool, error) {
	if handle == "" {
		return domainauth.SessionRecord{}, false, nil
	}
	sh := s.shard(handle)
	sh.mu.RLock()
	rec, ok := sh.sessions[handle]
	sh.mu.RUnlock()
	if !ok || rec.ExpiredAt(s.now()) {
		return domainauth.SessionRecord{}, false, nil
	}
	// Records are immutable; callers get their own roles slice.
	rec.Identity.Roles = slices.Clone(rec.Identity.Roles)
	return rec, true, nil
}

func (s *SessionStore) Destroy(_ context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	sh := s.shard(handle)
	sh.mu.Lock()
	delete(sh.sessions, handle)
	sh.mu.Unlock()
	return nil
}

// PurgeExpired removes expired sessions and reports how many were dropped.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	var purged int64
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		sh.mu.Lock()
		for handle, rec := range sh.sessions {
			if rec.ExpiredAt(now) {
				delete(sh.sessions, handle)
				purged++
			}
		}
		sh.mu.Unlock()
	}
	return purged, nil
}

// Len returns the number of stored records, expired or not.
func (s *SessionStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}
